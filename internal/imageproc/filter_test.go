package imageproc

import (
	"errors"
	"image"
	"image/color"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func solid(c color.NRGBA) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, 3, 2))
	for y := 0; y < 2; y++ {
		for x := 0; x < 3; x++ {
			img.SetNRGBA(x, y, c)
		}
	}
	return img
}

func pixelAt(img *image.NRGBA, x, y int) color.NRGBA {
	return img.NRGBAAt(x, y)
}

func TestSepia(t *testing.T) {
	tests := []struct {
		name string
		in   color.NRGBA
		want color.NRGBA
	}{
		{"black stays black", color.NRGBA{0, 0, 0, 255}, color.NRGBA{0, 0, 0, 255}},
		{"white clamps red and green", color.NRGBA{255, 255, 255, 255}, color.NRGBA{255, 255, 238, 255}},
		{"mid gray", color.NRGBA{128, 128, 128, 255}, color.NRGBA{172, 153, 119, 255}},
		{"pure red", color.NRGBA{255, 0, 0, 255}, color.NRGBA{100, 88, 69, 255}},
		{"alpha kept", color.NRGBA{10, 20, 30, 77}, color.NRGBA{24, 22, 17, 77}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out := Sepia(solid(tt.in))
			assert.Equal(t, tt.want, pixelAt(out, 2, 1))
		})
	}
}

func TestSepia_MatchesFormulaEverywhere(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	img := image.NewNRGBA(image.Rect(0, 0, 16, 16))
	rng.Read(img.Pix)
	for i := 3; i < len(img.Pix); i += 4 {
		img.Pix[i] = 255
	}

	out := Sepia(img)
	for i := 0; i < len(img.Pix); i += 4 {
		r, g, b := float64(img.Pix[i]), float64(img.Pix[i+1]), float64(img.Pix[i+2])
		want := [3]uint8{
			clampChannel(0.393*r + 0.769*g + 0.189*b),
			clampChannel(0.349*r + 0.686*g + 0.168*b),
			clampChannel(0.272*r + 0.534*g + 0.131*b),
		}
		got := [3]uint8{out.Pix[i], out.Pix[i+1], out.Pix[i+2]}
		require.Equal(t, want, got, "pixel offset %d", i)
	}
}

func TestGrayscale_Idempotent(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	img := image.NewNRGBA(image.Rect(0, 0, 20, 10))
	rng.Read(img.Pix)
	for i := 3; i < len(img.Pix); i += 4 {
		img.Pix[i] = 255
	}

	once := Grayscale(img)
	for i := 0; i < len(once.Pix); i += 4 {
		require.Equal(t, once.Pix[i], once.Pix[i+1])
		require.Equal(t, once.Pix[i], once.Pix[i+2])
	}
	twice := Grayscale(once)
	assert.Equal(t, once.Pix, twice.Pix)
}

func TestGrayscale_Luminance(t *testing.T) {
	out := Grayscale(solid(color.NRGBA{255, 0, 0, 255}))
	assert.Equal(t, color.NRGBA{76, 76, 76, 255}, pixelAt(out, 0, 0))
}

func TestAutoContrast(t *testing.T) {
	img := image.NewNRGBA(image.Rect(0, 0, 3, 1))
	img.SetNRGBA(0, 0, color.NRGBA{50, 77, 0, 255})
	img.SetNRGBA(1, 0, color.NRGBA{125, 77, 40, 255})
	img.SetNRGBA(2, 0, color.NRGBA{200, 77, 100, 255})

	out := AutoContrast(img)

	assert.Equal(t, color.NRGBA{0, 77, 0, 255}, pixelAt(out, 0, 0))
	assert.Equal(t, color.NRGBA{128, 77, 102, 255}, pixelAt(out, 1, 0))
	assert.Equal(t, color.NRGBA{255, 77, 255, 255}, pixelAt(out, 2, 0))
}

func TestAutoContrast_StretchesEveryChannel(t *testing.T) {
	rng := rand.New(rand.NewSource(3))
	img := image.NewNRGBA(image.Rect(0, 0, 32, 32))
	for i := 0; i < len(img.Pix); i += 4 {
		img.Pix[i] = uint8(60 + rng.Intn(100))
		img.Pix[i+1] = uint8(10 + rng.Intn(30))
		img.Pix[i+2] = 200
		img.Pix[i+3] = 255
	}

	out := AutoContrast(img)

	for c := 0; c < 2; c++ {
		lo, hi := uint8(255), uint8(0)
		for i := c; i < len(out.Pix); i += 4 {
			lo = min(lo, out.Pix[i])
			hi = max(hi, out.Pix[i])
		}
		assert.Equal(t, uint8(0), lo, "channel %d min", c)
		assert.Equal(t, uint8(255), hi, "channel %d max", c)
	}
	for i := 2; i < len(out.Pix); i += 4 {
		require.Equal(t, uint8(200), out.Pix[i], "constant channel must not change")
	}
}

func TestParseFilter(t *testing.T) {
	f, err := ParseFilter("")
	require.NoError(t, err)
	assert.Equal(t, FilterEnhance, f)

	f, err = ParseFilter("sepia")
	require.NoError(t, err)
	assert.Equal(t, FilterSepia, f)

	_, err = ParseFilter("vintage")
	assert.True(t, errors.Is(err, ErrUnknownFilter))
}
