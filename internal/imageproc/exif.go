package imageproc

import (
	"bytes"
	"fmt"

	"github.com/rwcarlsen/goexif/exif"
	"github.com/rwcarlsen/goexif/tiff"
)

var exifFields = []struct {
	name  string
	field exif.FieldName
}{
	{"DateTimeOriginal", exif.DateTimeOriginal},
	{"DateTimeDigitized", exif.DateTimeDigitized},
	{"SubsecTimeOriginal", exif.SubSecTimeOriginal},
	{"PixelXDimension", exif.PixelXDimension},
	{"PixelYDimension", exif.PixelYDimension},
	{"Make", exif.Make},
	{"Model", exif.Model},
}

// readExif never fails: missing or unreadable metadata yields an empty map.
func readExif(raw []byte) map[string]any {
	out := make(map[string]any)

	x, _ := exif.Decode(bytes.NewReader(raw))
	if x == nil {
		return out
	}
	for _, f := range exifFields {
		tag, err := x.Get(f.field)
		if err != nil {
			continue
		}
		if v, ok := tagValue(tag); ok {
			out[f.name] = v
		}
	}
	if _, err := x.Get(exif.GPSInfoIFDPointer); err == nil {
		out["GPSInfo"] = true
	}
	return out
}

func tagValue(tag *tiff.Tag) (any, bool) {
	switch tag.Format() {
	case tiff.StringVal:
		s, err := tag.StringVal()
		return s, err == nil
	case tiff.IntVal:
		v, err := tag.Int64(0)
		return v, err == nil
	case tiff.RatVal:
		num, den, err := tag.Rat2(0)
		return fmt.Sprintf("%d/%d", num, den), err == nil
	case tiff.FloatVal:
		v, err := tag.Float(0)
		return v, err == nil
	default:
		return tag.String(), true
	}
}
