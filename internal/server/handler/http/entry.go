// Package http provides the chi router and JSON handlers of the journal API.
package http

import (
	"context"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/hatchling/journal/internal/middleware"
	"github.com/hatchling/journal/internal/models"
	"github.com/hatchling/journal/internal/service"
	"go.uber.org/zap"
)

// EntryService defines the entry operations required by EntryHandler.
type EntryService interface {
	Create(ctx context.Context, in service.CreateEntryInput) (*models.Entry, error)
	List(ctx context.Context, in service.ListEntriesInput) (*service.EntryPage, error)
	Get(ctx context.Context, authorID, id string) (*models.Entry, error)
	Update(ctx context.Context, authorID, id string, in service.UpdateEntryInput) error
	Delete(ctx context.Context, authorID, id string) error
}

// EntryHandler serves the journal entry endpoints.
type EntryHandler struct {
	EntryService EntryService
	Log          *zap.Logger
}

type createEntryRequest struct {
	Content       string   `json:"content" validate:"required"`
	Tags          []string `json:"tags"`
	DateOfMemory  string   `json:"date_of_memory"`
	Privacy       string   `json:"privacy" validate:"omitempty,oneof=private shared public"`
	SourceType    string   `json:"source_type" validate:"omitempty,oneof=app sms voice"`
	JournalID     string   `json:"journal_id"`
	MediaURL      *string  `json:"media_url"`
	Transcription *string  `json:"transcription"`
}

// Create handles POST /api/entry.
func (h *EntryHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req createEntryRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, h.Log, err)
		return
	}

	e, err := h.EntryService.Create(r.Context(), service.CreateEntryInput{
		AuthorID:      middleware.GetUserIDFromContext(r.Context()),
		Content:       req.Content,
		Tags:          req.Tags,
		DateOfMemory:  req.DateOfMemory,
		Privacy:       req.Privacy,
		Source:        req.SourceType,
		JournalID:     req.JournalID,
		MediaURL:      req.MediaURL,
		Transcription: req.Transcription,
	})
	if err != nil {
		writeError(w, r, h.Log, err)
		return
	}

	writeJSON(w, http.StatusCreated, map[string]any{
		"message":  "Entry created successfully",
		"entry_id": e.ID,
		"tags":     e.Tags,
	})
}

// List handles GET /api/entries.
func (h *EntryHandler) List(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	in := service.ListEntriesInput{
		AuthorID:  middleware.GetUserIDFromContext(r.Context()),
		JournalID: q.Get("journal_id"),
		Tag:       q.Get("tag"),
		StartDate: q.Get("start_date"),
		EndDate:   q.Get("end_date"),
		Sort:      q.Get("sort"),
	}
	var err error
	if in.Limit, err = queryInt(q.Get("limit"), "limit"); err != nil {
		writeError(w, r, h.Log, err)
		return
	}
	if in.Offset, err = queryInt(q.Get("offset"), "offset"); err != nil {
		writeError(w, r, h.Log, err)
		return
	}

	page, err := h.EntryService.List(r.Context(), in)
	if err != nil {
		writeError(w, r, h.Log, err)
		return
	}
	entries := page.Entries
	if entries == nil {
		entries = []models.Entry{}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"entries": entries,
		"total":   page.Total,
		"limit":   page.Limit,
		"offset":  page.Offset,
	})
}

func queryInt(raw, field string) (int, error) {
	if raw == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, models.Invalid(field, field+" must be an integer")
	}
	return n, nil
}

// Get handles GET /api/entry/{id}.
func (h *EntryHandler) Get(w http.ResponseWriter, r *http.Request) {
	e, err := h.EntryService.Get(r.Context(), middleware.GetUserIDFromContext(r.Context()), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, h.Log, err)
		return
	}
	writeJSON(w, http.StatusOK, e)
}

type updateEntryRequest struct {
	Content       *string   `json:"content"`
	Tags          *[]string `json:"tags"`
	DateOfMemory  *string   `json:"date_of_memory"`
	Privacy       *string   `json:"privacy"`
	MediaURL      *string   `json:"media_url"`
	Transcription *string   `json:"transcription"`
}

// Update handles PATCH /api/entry/{id}. Fields outside the allow-list are
// ignored.
func (h *EntryHandler) Update(w http.ResponseWriter, r *http.Request) {
	var req updateEntryRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, h.Log, err)
		return
	}
	id := chi.URLParam(r, "id")

	err := h.EntryService.Update(r.Context(), middleware.GetUserIDFromContext(r.Context()), id, service.UpdateEntryInput(req))
	if err != nil {
		writeError(w, r, h.Log, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"message":  "Entry updated successfully",
		"entry_id": id,
	})
}

// Delete handles DELETE /api/entry/{id}.
func (h *EntryHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := h.EntryService.Delete(r.Context(), middleware.GetUserIDFromContext(r.Context()), id); err != nil {
		writeError(w, r, h.Log, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"message":  "Entry deleted successfully",
		"entry_id": id,
	})
}
