// Package imageproc applies stateless transforms to a single raster image:
// bounded resize, thumbnailing, JPEG compression, color filters and EXIF
// extraction. Sources are local paths or http(s) URLs; every derived image is
// written as a new file under the processor's output directory.
package imageproc

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"image/color"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"

	// Decoders for image.Decode.
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	"github.com/disintegration/imaging"
	_ "golang.org/x/image/webp"
)

var (
	// ErrSource is returned when the source cannot be read or downloaded.
	ErrSource = errors.New("image source unavailable")
	// ErrDecode is returned when the source bytes are not a supported image.
	ErrDecode = errors.New("unsupported image data")
	// ErrInvalidSize is returned for non-positive bounds.
	ErrInvalidSize = errors.New("size must be positive")
	// ErrInvalidQuality is returned for a quality outside 1..100.
	ErrInvalidQuality = errors.New("quality must be between 1 and 100")
	// ErrUnknownFilter is returned for a filter name outside the supported set.
	ErrUnknownFilter = errors.New("unknown filter type")
)

// Size is a bounding box in pixels.
type Size struct {
	Width  int
	Height int
}

var (
	// DefaultResize is the bound used by Resize when none is given.
	DefaultResize = Size{Width: 800, Height: 800}
	// DefaultThumbnail is the bound used by Thumbnail when none is given.
	DefaultThumbnail = Size{Width: 200, Height: 200}
)

// DefaultQuality is the JPEG quality used when a caller does not specify one.
const DefaultQuality = 85

// Fetcher downloads remote sources.
type Fetcher interface {
	Fetch(ctx context.Context, rawURL string) ([]byte, error)
}

// Processor runs image operations and writes results to its output directory.
// It holds no mutable state and is safe for concurrent use.
type Processor struct {
	dir        string
	fetcher    Fetcher
	background color.Color
}

// Option customizes a Processor.
type Option func(*Processor)

// WithBackground makes compression blend translucent pixels over c instead
// of discarding alpha.
func WithBackground(c color.Color) Option {
	return func(p *Processor) { p.background = c }
}

// New creates a Processor writing into dir, creating the directory if needed.
func New(dir string, fetcher Fetcher, opts ...Option) (*Processor, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create output dir: %w", err)
	}
	p := &Processor{dir: dir, fetcher: fetcher}
	for _, opt := range opts {
		opt(p)
	}
	return p, nil
}

// Dir returns the output directory.
func (p *Processor) Dir() string {
	return p.dir
}

// Fit scales src so that neither side exceeds bound, preserving aspect ratio
// and never upscaling. The result is written next to the other outputs with
// the given suffix unless outPath is set. It returns the output path.
func (p *Processor) Fit(ctx context.Context, src string, bound Size, suffix, outPath string) (out string, err error) {
	defer func() { observe(suffix, err) }()

	if bound.Width <= 0 || bound.Height <= 0 {
		return "", ErrInvalidSize
	}
	_, img, err := p.load(ctx, src)
	if err != nil {
		return "", err
	}
	if outPath == "" {
		outPath = p.outputPath(src, suffix, "")
	}
	return p.save(outPath, FitWithin(img, bound), nil)
}

// Resize bounds src to size, or to DefaultResize when size is zero.
func (p *Processor) Resize(ctx context.Context, src string, size Size, outPath string) (string, error) {
	if size == (Size{}) {
		size = DefaultResize
	}
	return p.Fit(ctx, src, size, "resized", outPath)
}

// Thumbnail bounds src to size, or to DefaultThumbnail when size is zero.
func (p *Processor) Thumbnail(ctx context.Context, src string, size Size, outPath string) (string, error) {
	if size == (Size{}) {
		size = DefaultThumbnail
	}
	return p.Fit(ctx, src, size, "thumb", outPath)
}

// Compress re-encodes src as an opaque JPEG at the given quality.
func (p *Processor) Compress(ctx context.Context, src string, quality int, outPath string) (out string, err error) {
	defer func() { observe("compressed", err) }()

	if quality < 1 || quality > 100 {
		return "", ErrInvalidQuality
	}
	_, img, err := p.load(ctx, src)
	if err != nil {
		return "", err
	}
	if outPath == "" {
		outPath = p.outputPath(src, "compressed", ".jpg")
	}
	var opaque image.Image = DropAlpha(img)
	if p.background != nil {
		opaque = Flatten(img, p.background)
	}
	format := imaging.JPEG
	return p.save(outPath, opaque, &format, imaging.JPEGQuality(quality))
}

// ApplyFilter runs one of the color filters over src.
func (p *Processor) ApplyFilter(ctx context.Context, src string, filter Filter, outPath string) (out string, err error) {
	defer func() { observe("filter", err) }()

	if filter == "" {
		filter = FilterEnhance
	}
	apply, ok := filters[filter]
	if !ok {
		return "", fmt.Errorf("%w: %q", ErrUnknownFilter, filter)
	}
	_, img, err := p.load(ctx, src)
	if err != nil {
		return "", err
	}
	if outPath == "" {
		outPath = p.outputPath(src, string(filter), "")
	}
	return p.save(outPath, apply(img), nil)
}

// ExtractExif returns the supported EXIF tags present in src. An image
// without a metadata block yields an empty map.
func (p *Processor) ExtractExif(ctx context.Context, src string) (tags map[string]any, err error) {
	defer func() { observe("exif", err) }()

	raw, err := p.read(ctx, src)
	if err != nil {
		return nil, err
	}
	return readExif(raw), nil
}

func (p *Processor) read(ctx context.Context, src string) ([]byte, error) {
	if IsRemote(src) {
		if p.fetcher == nil {
			return nil, fmt.Errorf("%w: no fetcher for %s", ErrSource, src)
		}
		raw, err := p.fetcher.Fetch(ctx, src)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrSource, err)
		}
		return raw, nil
	}
	raw, err := os.ReadFile(src)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrSource, err)
	}
	return raw, nil
}

func (p *Processor) load(ctx context.Context, src string) ([]byte, image.Image, error) {
	raw, err := p.read(ctx, src)
	if err != nil {
		return nil, nil, err
	}
	img, _, err := image.Decode(bytes.NewReader(raw))
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %w", ErrDecode, err)
	}
	return raw, img, nil
}

// save encodes img fully in memory, then moves it into place with a rename so
// readers never observe a partially written file.
func (p *Processor) save(outPath string, img image.Image, format *imaging.Format, opts ...imaging.EncodeOption) (string, error) {
	f := imaging.PNG
	if format != nil {
		f = *format
	} else if detected, err := imaging.FormatFromFilename(outPath); err == nil {
		f = detected
	}

	var buf bytes.Buffer
	if err := imaging.Encode(&buf, img, f, opts...); err != nil {
		return "", fmt.Errorf("encode %s: %w", outPath, err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(outPath), ".imageproc-*")
	if err != nil {
		return "", fmt.Errorf("create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(buf.Bytes()); err != nil {
		tmp.Close()
		return "", fmt.Errorf("write %s: %w", outPath, err)
	}
	if err := tmp.Close(); err != nil {
		return "", fmt.Errorf("close %s: %w", outPath, err)
	}
	if err := os.Rename(tmp.Name(), outPath); err != nil {
		return "", fmt.Errorf("rename %s: %w", outPath, err)
	}
	return outPath, nil
}

// outputPath derives <dir>/<name>_<suffix><ext> from src.
func (p *Processor) outputPath(src, suffix, ext string) string {
	return filepath.Join(p.dir, OutputName(src, suffix, ext))
}

// OutputName derives <name>_<suffix><ext> from the base name of src. An
// empty ext keeps the source extension; extensions the encoder cannot write
// are replaced with .png.
func OutputName(src, suffix, ext string) string {
	base := sourceBase(src)
	origExt := filepath.Ext(base)
	name := strings.TrimSuffix(base, origExt)
	if ext == "" {
		ext = origExt
		if _, err := imaging.FormatFromExtension(ext); err != nil {
			ext = ".png"
		}
	}
	return name + "_" + suffix + ext
}

func sourceBase(src string) string {
	base := filepath.Base(src)
	if IsRemote(src) {
		if u, err := url.Parse(src); err == nil {
			base = path.Base(u.Path)
		}
	}
	if base == "" || base == "." || base == "/" {
		return "image"
	}
	return base
}

// IsRemote reports whether src is an http(s) URL.
func IsRemote(src string) bool {
	return strings.HasPrefix(src, "http://") || strings.HasPrefix(src, "https://")
}
