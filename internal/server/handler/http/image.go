package http

import (
	"context"
	"errors"
	"io"
	"net/http"

	"github.com/hatchling/journal/internal/middleware"
	"github.com/hatchling/journal/internal/service"
	"go.uber.org/zap"
)

// maxUploadSize bounds multipart image uploads.
const maxUploadSize = 32 << 20

// ImageService defines the image operations required by ImageHandler.
type ImageService interface {
	Process(ctx context.Context, in service.ProcessImageInput) (map[string]any, error)
	Upload(ctx context.Context, authorID, filename string, r io.Reader, entryID string) (string, error)
}

// ImageHandler serves image processing and upload.
type ImageHandler struct {
	ImageService ImageService
	Log          *zap.Logger
}

type imageOperation struct {
	Type       string `json:"type" validate:"required"`
	Size       []int  `json:"size"`
	Quality    *int   `json:"quality"`
	FilterType string `json:"filter_type"`
}

type processImageRequest struct {
	ImageURL   string           `json:"image_url" validate:"required"`
	Operations []imageOperation `json:"operations" validate:"required,min=1,dive"`
	EntryID    string           `json:"entry_id"`
}

// Process handles POST /api/image/process.
func (h *ImageHandler) Process(w http.ResponseWriter, r *http.Request) {
	var req processImageRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, h.Log, err)
		return
	}

	ops := make([]service.ImageOperation, 0, len(req.Operations))
	for _, op := range req.Operations {
		ops = append(ops, service.ImageOperation(op))
	}
	results, err := h.ImageService.Process(r.Context(), service.ProcessImageInput{
		AuthorID:   middleware.GetUserIDFromContext(r.Context()),
		ImageURL:   req.ImageURL,
		Operations: ops,
		EntryID:    req.EntryID,
	})
	if err != nil {
		writeError(w, r, h.Log, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"message": "Image processed successfully",
		"results": results,
	})
}

// Upload handles POST /api/image/upload with a multipart "image" file and
// an optional "entry_id" field.
func (h *ImageHandler) Upload(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadSize)
	if err := r.ParseMultipartForm(maxUploadSize); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeMessage(w, http.StatusRequestEntityTooLarge, "image too large")
			return
		}
		writeMessage(w, http.StatusBadRequest, "No image file provided")
		return
	}
	file, header, err := r.FormFile("image")
	if err != nil {
		writeMessage(w, http.StatusBadRequest, "No image file provided")
		return
	}
	defer file.Close()
	if header.Filename == "" {
		writeMessage(w, http.StatusBadRequest, "Empty filename")
		return
	}

	url, err := h.ImageService.Upload(r.Context(), middleware.GetUserIDFromContext(r.Context()),
		header.Filename, file, r.FormValue("entry_id"))
	if err != nil {
		writeError(w, r, h.Log, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"message":   "Image uploaded successfully",
		"image_url": url,
	})
}
