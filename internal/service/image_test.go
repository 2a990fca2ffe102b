package service

import (
	"context"
	"errors"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/hatchling/journal/internal/imageproc"
	"github.com/hatchling/journal/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const remoteSrc = "https://example.com/a.png"

type fakeProcessor struct {
	calls    []string
	outPaths []string
	err      error
}

func (f *fakeProcessor) Dir() string { return "/out" }

func (f *fakeProcessor) record(op string, outPath string) (string, error) {
	f.calls = append(f.calls, op)
	f.outPaths = append(f.outPaths, outPath)
	if f.err != nil {
		return "", f.err
	}
	return "/out/" + op + ".png", nil
}

func (f *fakeProcessor) Resize(_ context.Context, _ string, _ imageproc.Size, out string) (string, error) {
	return f.record("resize", out)
}
func (f *fakeProcessor) Thumbnail(_ context.Context, _ string, _ imageproc.Size, out string) (string, error) {
	return f.record("thumbnail", out)
}
func (f *fakeProcessor) Compress(_ context.Context, _ string, _ int, out string) (string, error) {
	return f.record("compress", out)
}
func (f *fakeProcessor) ApplyFilter(_ context.Context, _ string, filter imageproc.Filter, out string) (string, error) {
	return f.record("filter_"+string(filter), out)
}
func (f *fakeProcessor) ExtractExif(context.Context, string) (map[string]any, error) {
	f.calls = append(f.calls, "exif")
	return map[string]any{"Make": "Canon"}, f.err
}

type prefixPublisher struct{ err error }

func (p prefixPublisher) Publish(_ context.Context, local string) (string, error) {
	if p.err != nil {
		return "", p.err
	}
	return "https://cdn.test/media/" + filepath.Base(local), nil
}

type mockAttacher struct {
	getErr   error
	attached string
}

func (m *mockAttacher) Get(_ context.Context, _, id string) (*models.Entry, error) {
	if m.getErr != nil {
		return nil, m.getErr
	}
	return &models.Entry{ID: id}, nil
}
func (m *mockAttacher) AttachMedia(_ context.Context, _, _, mediaURL string) error {
	m.attached = mediaURL
	return nil
}

func intPtr(v int) *int { return &v }

func TestImageProcess(t *testing.T) {
	proc := &fakeProcessor{}
	entries := &mockAttacher{}
	s := NewImageService(proc, prefixPublisher{}, entries, t.TempDir())

	results, err := s.Process(context.Background(), ProcessImageInput{
		AuthorID: "u1",
		ImageURL: "https://example.com/kid.jpg",
		Operations: []ImageOperation{
			{Type: OpThumbnail, Size: []int{100, 100}},
			{Type: OpExif},
			{Type: OpCompress, Quality: intPtr(60)},
			{Type: OpFilter, FilterType: "sepia"},
		},
		EntryID: "e1",
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"thumbnail", "exif", "compress", "filter_sepia"}, proc.calls)
	assert.Equal(t, map[string]any{
		"thumbnail_url":  "https://cdn.test/media/thumbnail.png",
		"exif_data":      map[string]any{"Make": "Canon"},
		"compressed_url": "https://cdn.test/media/compress.png",
		"filtered_url":   "https://cdn.test/media/filter_sepia.png",
	}, results)
	assert.Equal(t, "https://cdn.test/media/filter_sepia.png", entries.attached)

	require.Len(t, proc.outPaths, 3)
	prefix := strings.TrimSuffix(filepath.Base(proc.outPaths[0]), "_kid_thumb.jpg")
	assert.NotEqual(t, filepath.Base(proc.outPaths[0]), prefix)
	assert.Equal(t, []string{
		filepath.Join("/out", prefix+"_kid_thumb.jpg"),
		filepath.Join("/out", prefix+"_kid_compressed.jpg"),
		filepath.Join("/out", prefix+"_kid_sepia.jpg"),
	}, proc.outPaths)
}

func TestImageProcess_DefaultFilterAndNoAttachForExifOnly(t *testing.T) {
	proc := &fakeProcessor{}
	entries := &mockAttacher{}
	s := NewImageService(proc, prefixPublisher{}, entries, t.TempDir())

	_, err := s.Process(context.Background(), ProcessImageInput{
		ImageURL:   remoteSrc,
		Operations: []ImageOperation{{Type: OpExif}},
		EntryID:    "e1",
	})
	require.NoError(t, err)
	assert.Empty(t, entries.attached)

	_, err = s.Process(context.Background(), ProcessImageInput{
		ImageURL:   remoteSrc,
		Operations: []ImageOperation{{Type: OpFilter}, {Type: OpResize}},
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"exif", "filter_enhance", "resize"}, proc.calls)
}

func TestImageProcess_Invalid(t *testing.T) {
	tests := []struct {
		name string
		in   ProcessImageInput
	}{
		{"no source", ProcessImageInput{Operations: []ImageOperation{{Type: OpExif}}}},
		{"no operations", ProcessImageInput{ImageURL: remoteSrc}},
		{"unknown op", ProcessImageInput{ImageURL: remoteSrc, Operations: []ImageOperation{{Type: "rotate"}}}},
		{"bad size", ProcessImageInput{ImageURL: remoteSrc, Operations: []ImageOperation{{Type: OpResize, Size: []int{0, 10}}}}},
		{"short size", ProcessImageInput{ImageURL: remoteSrc, Operations: []ImageOperation{{Type: OpThumbnail, Size: []int{10}}}}},
		{"bad quality", ProcessImageInput{ImageURL: remoteSrc, Operations: []ImageOperation{{Type: OpCompress, Quality: intPtr(101)}}}},
		{"bad filter", ProcessImageInput{ImageURL: remoteSrc, Operations: []ImageOperation{{Type: OpFilter, FilterType: "vivid"}}}},
		{"local file outside storage", ProcessImageInput{ImageURL: "/etc/passwd", Operations: []ImageOperation{{Type: OpExif}}}},
		{"relative escape", ProcessImageInput{ImageURL: "uploads/../../secret.png", Operations: []ImageOperation{{Type: OpExif}}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			proc := &fakeProcessor{}
			_, err := NewImageService(proc, prefixPublisher{}, &mockAttacher{}, t.TempDir()).
				Process(context.Background(), tt.in)
			var verr *models.ValidationError
			assert.ErrorAs(t, err, &verr)
			assert.Empty(t, proc.calls, "nothing runs before validation passes")
		})
	}
}

func TestImageProcess_Failures(t *testing.T) {
	t.Run("entry not owned", func(t *testing.T) {
		proc := &fakeProcessor{}
		_, err := NewImageService(proc, prefixPublisher{}, &mockAttacher{getErr: models.ErrNotFound}, t.TempDir()).
			Process(context.Background(), ProcessImageInput{ImageURL: remoteSrc, Operations: []ImageOperation{{Type: OpResize}}, EntryID: "e9"})
		assert.ErrorIs(t, err, models.ErrNotFound)
		assert.Empty(t, proc.calls)
	})
	t.Run("source unavailable", func(t *testing.T) {
		proc := &fakeProcessor{err: imageproc.ErrSource}
		_, err := NewImageService(proc, prefixPublisher{}, &mockAttacher{}, t.TempDir()).
			Process(context.Background(), ProcessImageInput{ImageURL: remoteSrc, Operations: []ImageOperation{{Type: OpResize}}})
		assert.ErrorIs(t, err, imageproc.ErrSource)
		assert.ErrorContains(t, err, "resize:")
	})
	t.Run("publish", func(t *testing.T) {
		_, err := NewImageService(&fakeProcessor{}, prefixPublisher{err: errors.New("s3 denied")}, &mockAttacher{}, t.TempDir()).
			Process(context.Background(), ProcessImageInput{ImageURL: remoteSrc, Operations: []ImageOperation{{Type: OpResize}}})
		assert.ErrorContains(t, err, "s3 denied")
	})
}

func TestImageUpload(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "uploads")
	entries := &mockAttacher{}
	s := NewImageService(&fakeProcessor{}, prefixPublisher{}, entries, dir)

	url, err := s.Upload(context.Background(), "u1", "../../etc/kid.jpg", strings.NewReader("jpegdata"), "e1")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(url, "https://cdn.test/media/"))
	assert.True(t, strings.HasSuffix(url, "_kid.jpg"))
	assert.Equal(t, url, entries.attached)

	files, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, files, 1)
	data, err := os.ReadFile(filepath.Join(dir, files[0].Name()))
	require.NoError(t, err)
	assert.Equal(t, "jpegdata", string(data))
}

func TestImageUpload_Errors(t *testing.T) {
	s := NewImageService(&fakeProcessor{}, prefixPublisher{}, &mockAttacher{getErr: models.ErrNotFound}, t.TempDir())

	_, err := s.Upload(context.Background(), "u1", "  ", strings.NewReader("x"), "")
	var verr *models.ValidationError
	assert.ErrorAs(t, err, &verr)

	_, err = s.Upload(context.Background(), "u1", "a.jpg", strings.NewReader("x"), "e404")
	assert.ErrorIs(t, err, models.ErrNotFound)
}

type pathPublisher struct{}

func (pathPublisher) Publish(_ context.Context, local string) (string, error) { return local, nil }

func writeSolidPNG(t *testing.T, path string, c color.NRGBA) {
	t.Helper()
	img := image.NewNRGBA(image.Rect(0, 0, 4, 4))
	for y := 0; y < 4; y++ {
		for x := 0; x < 4; x++ {
			img.SetNRGBA(x, y, c)
		}
	}
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	f, err := os.Create(path)
	require.NoError(t, err)
	require.NoError(t, png.Encode(f, img))
	require.NoError(t, f.Close())
}

func TestImageProcess_SameNameSourcesKeepSeparateOutputs(t *testing.T) {
	uploads := t.TempDir()
	proc, err := imageproc.New(t.TempDir(), nil)
	require.NoError(t, err)
	s := NewImageService(proc, pathPublisher{}, &mockAttacher{}, uploads)

	red := color.NRGBA{R: 255, A: 255}
	blue := color.NRGBA{B: 255, A: 255}
	srcA := filepath.Join(uploads, "userA", "photo.png")
	srcB := filepath.Join(uploads, "userB", "photo.png")
	writeSolidPNG(t, srcA, red)
	writeSolidPNG(t, srcB, blue)

	ops := []ImageOperation{{Type: OpResize}}
	resA, err := s.Process(context.Background(), ProcessImageInput{AuthorID: "a", ImageURL: srcA, Operations: ops})
	require.NoError(t, err)
	resB, err := s.Process(context.Background(), ProcessImageInput{AuthorID: "b", ImageURL: srcB, Operations: ops})
	require.NoError(t, err)

	outA, outB := resA["resized_url"].(string), resB["resized_url"].(string)
	assert.NotEqual(t, outA, outB)
	assert.True(t, strings.HasSuffix(outA, "_photo_resized.png"))

	f, err := os.Open(outA)
	require.NoError(t, err)
	defer f.Close()
	img, err := png.Decode(f)
	require.NoError(t, err)
	assert.Equal(t, red, color.NRGBAModel.Convert(img.At(1, 1)))
}

func TestImageProcess_AcceptsOwnOutputs(t *testing.T) {
	proc, err := imageproc.New(t.TempDir(), nil)
	require.NoError(t, err)
	s := NewImageService(proc, pathPublisher{}, &mockAttacher{}, t.TempDir())

	src := filepath.Join(proc.Dir(), "earlier_kid_resized.png")
	writeSolidPNG(t, src, color.NRGBA{G: 200, A: 255})

	res, err := s.Process(context.Background(), ProcessImageInput{
		ImageURL:   src,
		Operations: []ImageOperation{{Type: OpThumbnail}},
	})
	require.NoError(t, err)
	assert.Contains(t, res["thumbnail_url"], "_earlier_kid_resized_thumb.png")
}
