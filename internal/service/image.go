package service

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"github.com/hatchling/journal/internal/imageproc"
	"github.com/hatchling/journal/internal/models"
)

// Image operation types accepted by Process.
const (
	OpResize    = "resize"
	OpThumbnail = "thumbnail"
	OpCompress  = "compress"
	OpFilter    = "filter"
	OpExif      = "exif"
)

// ImageProcessor runs the image transforms.
type ImageProcessor interface {
	Resize(ctx context.Context, src string, size imageproc.Size, outPath string) (string, error)
	Thumbnail(ctx context.Context, src string, size imageproc.Size, outPath string) (string, error)
	Compress(ctx context.Context, src string, quality int, outPath string) (string, error)
	ApplyFilter(ctx context.Context, src string, filter imageproc.Filter, outPath string) (string, error)
	ExtractExif(ctx context.Context, src string) (map[string]any, error)
	// Dir is the directory outputs are written to.
	Dir() string
}

// Publisher makes a local file reachable and returns its URL.
type Publisher interface {
	Publish(ctx context.Context, localPath string) (string, error)
}

// MediaAttacher links media to an owned entry.
type MediaAttacher interface {
	Get(ctx context.Context, authorID, id string) (*models.Entry, error)
	AttachMedia(ctx context.Context, authorID, id, mediaURL string) error
}

// ImageOperation is one step of a processing request.
type ImageOperation struct {
	Type       string
	Size       []int
	Quality    *int
	FilterType string
}

// ProcessImageInput names a source image, the operations to run on it in
// order and optionally an entry to attach the last produced image to.
type ProcessImageInput struct {
	AuthorID   string
	ImageURL   string
	Operations []ImageOperation
	EntryID    string
}

// ImageService runs image operations and publishes their output.
type ImageService struct {
	proc      ImageProcessor
	publisher Publisher
	entries   MediaAttacher
	uploadDir string
}

// NewImageService constructs an ImageService. Uploads are written to uploadDir.
func NewImageService(proc ImageProcessor, publisher Publisher, entries MediaAttacher, uploadDir string) *ImageService {
	return &ImageService{proc: proc, publisher: publisher, entries: entries, uploadDir: uploadDir}
}

// Process runs in.Operations against the source and returns the result
// map keyed resized_url, thumbnail_url, compressed_url, filtered_url and
// exif_data.
func (s *ImageService) Process(ctx context.Context, in ProcessImageInput) (map[string]any, error) {
	if in.ImageURL == "" {
		return nil, models.Invalid("image_url", "image_url is required")
	}
	if !s.allowedSource(in.ImageURL) {
		return nil, models.Invalid("image_url", "image_url must be an http(s) URL or an uploaded image")
	}
	if len(in.Operations) == 0 {
		return nil, models.Invalid("operations", "at least one operation is required")
	}
	for i, op := range in.Operations {
		if err := validateOperation(op); err != nil {
			return nil, models.Invalid(fmt.Sprintf("operations[%d]", i), err.Error())
		}
	}
	if in.EntryID != "" {
		if _, err := s.entries.Get(ctx, in.AuthorID, in.EntryID); err != nil {
			return nil, err
		}
	}

	// Outputs of one request share a unique prefix so requests on sources
	// with the same name never overwrite each other.
	prefix := uuid.NewString()
	results := make(map[string]any, len(in.Operations))
	var last string
	for _, op := range in.Operations {
		key, out, err := s.run(ctx, in.ImageURL, prefix, op)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", op.Type, err)
		}
		if op.Type == OpExif {
			results[key] = out
			continue
		}
		published, err := s.publisher.Publish(ctx, out.(string))
		if err != nil {
			return nil, fmt.Errorf("%s: %w", op.Type, err)
		}
		results[key] = published
		last = published
	}

	if in.EntryID != "" && last != "" {
		if err := s.entries.AttachMedia(ctx, in.AuthorID, in.EntryID, last); err != nil {
			return nil, err
		}
	}
	return results, nil
}

func validateOperation(op ImageOperation) error {
	switch op.Type {
	case OpResize, OpThumbnail:
		if op.Size != nil && (len(op.Size) != 2 || op.Size[0] <= 0 || op.Size[1] <= 0) {
			return imageproc.ErrInvalidSize
		}
	case OpCompress:
		if op.Quality != nil && (*op.Quality < 1 || *op.Quality > 100) {
			return imageproc.ErrInvalidQuality
		}
	case OpFilter:
		if _, err := imageproc.ParseFilter(op.FilterType); err != nil {
			return err
		}
	case OpExif:
	default:
		return fmt.Errorf("unknown operation type %q", op.Type)
	}
	return nil
}

// allowedSource accepts remote URLs and local files inside the upload or
// output directory.
func (s *ImageService) allowedSource(src string) bool {
	if imageproc.IsRemote(src) {
		return true
	}
	path, err := resolvePath(src)
	if err != nil {
		return false
	}
	for _, dir := range []string{s.uploadDir, s.proc.Dir()} {
		if dir == "" {
			continue
		}
		root, err := resolvePath(dir)
		if err != nil {
			continue
		}
		if rel, err := filepath.Rel(root, path); err == nil && rel != "." && rel != ".." &&
			!strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
			return true
		}
	}
	return false
}

// resolvePath returns the absolute form of p with symlinks followed where
// the path exists.
func resolvePath(p string) (string, error) {
	abs, err := filepath.Abs(p)
	if err != nil {
		return "", err
	}
	if resolved, err := filepath.EvalSymlinks(abs); err == nil {
		return resolved, nil
	}
	return abs, nil
}

func (s *ImageService) run(ctx context.Context, src, prefix string, op ImageOperation) (string, any, error) {
	var size imageproc.Size
	if len(op.Size) == 2 {
		size = imageproc.Size{Width: op.Size[0], Height: op.Size[1]}
	}
	outPath := func(suffix, ext string) string {
		return filepath.Join(s.proc.Dir(), prefix+"_"+imageproc.OutputName(src, suffix, ext))
	}

	switch op.Type {
	case OpResize:
		out, err := s.proc.Resize(ctx, src, size, outPath("resized", ""))
		return "resized_url", out, err
	case OpThumbnail:
		out, err := s.proc.Thumbnail(ctx, src, size, outPath("thumb", ""))
		return "thumbnail_url", out, err
	case OpCompress:
		quality := imageproc.DefaultQuality
		if op.Quality != nil {
			quality = *op.Quality
		}
		out, err := s.proc.Compress(ctx, src, quality, outPath("compressed", ".jpg"))
		return "compressed_url", out, err
	case OpFilter:
		f, _ := imageproc.ParseFilter(op.FilterType)
		out, err := s.proc.ApplyFilter(ctx, src, f, outPath(string(f), ""))
		return "filtered_url", out, err
	default:
		tags, err := s.proc.ExtractExif(ctx, src)
		return "exif_data", tags, err
	}
}

// Upload stores an uploaded image, publishes it and, when entryID is set,
// attaches it to that entry.
func (s *ImageService) Upload(ctx context.Context, authorID, filename string, r io.Reader, entryID string) (string, error) {
	name := filepath.Base(filepath.Clean(strings.TrimSpace(filename)))
	if name == "" || name == "." || name == string(filepath.Separator) {
		return "", models.Invalid("image", "empty filename")
	}
	if entryID != "" {
		if _, err := s.entries.Get(ctx, authorID, entryID); err != nil {
			return "", err
		}
	}

	if err := os.MkdirAll(s.uploadDir, 0o755); err != nil {
		return "", fmt.Errorf("create upload dir: %w", err)
	}
	dst := filepath.Join(s.uploadDir, uuid.NewString()+"_"+name)
	if err := writeFile(dst, r); err != nil {
		return "", err
	}

	url, err := s.publisher.Publish(ctx, dst)
	if err != nil {
		return "", err
	}
	if entryID != "" {
		if err := s.entries.AttachMedia(ctx, authorID, entryID, url); err != nil {
			return "", err
		}
	}
	return url, nil
}

func writeFile(path string, r io.Reader) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("save upload: %w", err)
	}
	if _, err := io.Copy(f, r); err != nil {
		f.Close()
		os.Remove(path)
		return fmt.Errorf("save upload: %w", err)
	}
	if err := f.Close(); err != nil {
		os.Remove(path)
		return fmt.Errorf("save upload: %w", err)
	}
	return nil
}
