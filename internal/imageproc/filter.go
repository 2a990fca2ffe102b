package imageproc

import (
	"fmt"
	"image"
	"math"

	"github.com/disintegration/imaging"
)

// Filter names a color filter.
type Filter string

const (
	FilterGrayscale Filter = "grayscale"
	FilterSepia     Filter = "sepia"
	FilterEnhance   Filter = "enhance"
)

var filters = map[Filter]func(image.Image) *image.NRGBA{
	FilterGrayscale: Grayscale,
	FilterSepia:     Sepia,
	FilterEnhance:   AutoContrast,
}

// ParseFilter validates a filter name. An empty name selects FilterEnhance.
func ParseFilter(s string) (Filter, error) {
	if s == "" {
		return FilterEnhance, nil
	}
	f := Filter(s)
	if _, ok := filters[f]; !ok {
		return "", fmt.Errorf("%w: %q", ErrUnknownFilter, s)
	}
	return f, nil
}

// Grayscale replaces each pixel's color with its luminance using the
// ITU-R 601 integer weights. Alpha is kept. Gray input is returned unchanged.
func Grayscale(img image.Image) *image.NRGBA {
	dst := imaging.Clone(img)
	pix := dst.Pix
	for i := 0; i+3 < len(pix); i += 4 {
		r, g, b := uint32(pix[i]), uint32(pix[i+1]), uint32(pix[i+2])
		y := uint8((19595*r + 38470*g + 7471*b + 1<<15) >> 16)
		pix[i], pix[i+1], pix[i+2] = y, y, y
	}
	return dst
}

// Sepia applies the classic sepia matrix to every pixel. Each output channel
// is truncated to an integer and clamped to 255.
func Sepia(img image.Image) *image.NRGBA {
	dst := imaging.Clone(img)
	pix := dst.Pix
	for i := 0; i+3 < len(pix); i += 4 {
		r, g, b := float64(pix[i]), float64(pix[i+1]), float64(pix[i+2])
		pix[i] = clampChannel(0.393*r + 0.769*g + 0.189*b)
		pix[i+1] = clampChannel(0.349*r + 0.686*g + 0.168*b)
		pix[i+2] = clampChannel(0.272*r + 0.534*g + 0.131*b)
	}
	return dst
}

func clampChannel(v float64) uint8 {
	if v >= 255 {
		return 255
	}
	if v <= 0 {
		return 0
	}
	return uint8(v)
}

// AutoContrast stretches each color channel so its observed minimum maps to
// 0 and its maximum to 255. Constant channels and alpha are left unchanged.
func AutoContrast(img image.Image) *image.NRGBA {
	dst := imaging.Clone(img)
	pix := dst.Pix

	lo := [3]uint8{255, 255, 255}
	hi := [3]uint8{}
	for i := 0; i+3 < len(pix); i += 4 {
		for c := 0; c < 3; c++ {
			v := pix[i+c]
			lo[c] = min(lo[c], v)
			hi[c] = max(hi[c], v)
		}
	}

	var lut [3][256]uint8
	for c := 0; c < 3; c++ {
		for v := 0; v < 256; v++ {
			lut[c][v] = uint8(v)
		}
		if hi[c] <= lo[c] {
			continue
		}
		span := float64(hi[c] - lo[c])
		for v := int(lo[c]); v <= int(hi[c]); v++ {
			lut[c][v] = uint8(math.Round(float64(v-int(lo[c])) * 255 / span))
		}
	}

	for i := 0; i+3 < len(pix); i += 4 {
		pix[i] = lut[0][pix[i]]
		pix[i+1] = lut[1][pix[i+1]]
		pix[i+2] = lut[2][pix[i+2]]
	}
	return dst
}
