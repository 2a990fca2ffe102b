package imageproc

import (
	"image"
	"image/color"
	"math"

	"github.com/disintegration/imaging"
)

// FitDimensions returns the largest w×h not exceeding bound that keeps the
// aspect ratio of the input. Inputs already inside the bound are unchanged.
func FitDimensions(w, h int, bound Size) (int, int) {
	if w <= bound.Width && h <= bound.Height {
		return w, h
	}
	if w*bound.Height > h*bound.Width {
		nh := int(math.Round(float64(h) * float64(bound.Width) / float64(w)))
		return bound.Width, max(nh, 1)
	}
	nw := int(math.Round(float64(w) * float64(bound.Height) / float64(h)))
	return max(nw, 1), bound.Height
}

// FitWithin scales img down to fit bound. It never upscales or crops.
func FitWithin(img image.Image, bound Size) image.Image {
	b := img.Bounds()
	w, h := FitDimensions(b.Dx(), b.Dy(), bound)
	if w == b.Dx() && h == b.Dy() {
		return img
	}
	return imaging.Resize(img, w, h, imaging.Lanczos)
}

// DropAlpha returns an opaque copy of img. Color values are kept as stored
// and only the alpha channel is discarded.
func DropAlpha(img image.Image) *image.NRGBA {
	out := imaging.Clone(img)
	for i := 3; i < len(out.Pix); i += 4 {
		out.Pix[i] = 0xff
	}
	return out
}

// Flatten composites img over an opaque background, blending by alpha.
func Flatten(img image.Image, bg color.Color) image.Image {
	b := img.Bounds()
	canvas := imaging.New(b.Dx(), b.Dy(), bg)
	return imaging.Overlay(canvas, img, image.Pt(0, 0), 1.0)
}
