// Package service implements the journal business logic on top of the
// repositories and outbound integrations. Each service declares the narrow
// interfaces it consumes.
package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/hatchling/journal/internal/models"
	"go.uber.org/zap"
)

const (
	// DefaultPageSize is used when a listing does not specify a limit.
	DefaultPageSize = 20
	// MaxPageSize caps the limit of a listing.
	MaxPageSize = 100
)

const dateOnly = "2006-01-02"

// EntryRepository defines the persistence operations required by the entry service.
type EntryRepository interface {
	// Create stores a new entry.
	Create(ctx context.Context, e *models.Entry) error
	// List returns one page of non-deleted entries and the total match count.
	List(ctx context.Context, f models.EntryFilter) ([]models.Entry, int, error)
	// Get returns a non-deleted entry owned by authorID.
	Get(ctx context.Context, authorID, id string) (*models.Entry, error)
	// Update applies an allow-listed patch to an owned entry.
	Update(ctx context.Context, authorID, id string, p models.EntryPatch, at time.Time) error
	// SoftDelete flags an owned entry as deleted.
	SoftDelete(ctx context.Context, authorID, id string, at time.Time) error
}

// Tagger suggests tags for free text.
type Tagger interface {
	SuggestTags(ctx context.Context, content string) ([]string, error)
}

// EntryService creates, lists and edits journal entries.
type EntryService struct {
	repo   EntryRepository
	tagger Tagger
	log    *zap.Logger
	now    func() time.Time
}

// NewEntryService constructs an EntryService.
func NewEntryService(repo EntryRepository, tagger Tagger, log *zap.Logger) *EntryService {
	return &EntryService{repo: repo, tagger: tagger, log: log, now: time.Now}
}

// CreateEntryInput is a new entry as submitted by a client. Empty optional
// fields take their defaults.
type CreateEntryInput struct {
	AuthorID      string
	Content       string
	Tags          []string
	DateOfMemory  string
	Privacy       string
	Source        string
	JournalID     string
	MediaURL      *string
	Transcription *string
}

// Create validates in, fills defaults, asks the tagger when no tags were
// given and stores the entry. A tagger failure leaves the entry untagged.
func (s *EntryService) Create(ctx context.Context, in CreateEntryInput) (*models.Entry, error) {
	content := strings.TrimSpace(in.Content)
	if content == "" {
		return nil, models.Invalid("content", "content is required")
	}

	now := s.now().UTC()
	e := &models.Entry{
		ID:            uuid.NewString(),
		Content:       content,
		MediaURL:      in.MediaURL,
		Transcription: in.Transcription,
		Tags:          in.Tags,
		DateOfMemory:  now,
		CreatedAt:     now,
		AuthorID:      in.AuthorID,
		Privacy:       models.PrivacyPrivate,
		Source:        models.SourceApp,
		JournalID:     models.DefaultJournalID,
	}
	if in.Privacy != "" {
		e.Privacy = models.Privacy(in.Privacy)
		if !e.Privacy.Valid() {
			return nil, models.Invalid("privacy", "must be one of private, shared, public")
		}
	}
	if in.Source != "" {
		e.Source = models.SourceType(in.Source)
		if !e.Source.Valid() {
			return nil, models.Invalid("source_type", "must be one of app, sms, voice")
		}
	}
	if in.JournalID != "" {
		e.JournalID = in.JournalID
	}
	if in.DateOfMemory != "" {
		d, _, err := ParseDate(in.DateOfMemory)
		if err != nil {
			return nil, models.Invalid("date_of_memory", err.Error())
		}
		e.DateOfMemory = d
	}

	if len(e.Tags) == 0 {
		e.Tags = s.suggest(ctx, content)
	}

	if err := s.repo.Create(ctx, e); err != nil {
		return nil, fmt.Errorf("create entry: %w", err)
	}
	return e, nil
}

func (s *EntryService) suggest(ctx context.Context, text string) []string {
	tags, err := s.tagger.SuggestTags(ctx, text)
	if err != nil {
		s.log.Warn("tag suggestion failed", zap.Error(err))
		return []string{}
	}
	if tags == nil {
		return []string{}
	}
	return tags
}

// ListEntriesInput carries the raw listing query of the caller.
type ListEntriesInput struct {
	AuthorID  string
	JournalID string
	Tag       string
	StartDate string
	EndDate   string
	Limit     int
	Offset    int
	Sort      string
}

// EntryPage is one page of a listing.
type EntryPage struct {
	Entries []models.Entry
	Total   int
	Limit   int
	Offset  int
}

// List returns the caller's entries matching in.
func (s *EntryService) List(ctx context.Context, in ListEntriesInput) (*EntryPage, error) {
	f := models.EntryFilter{
		AuthorID:  in.AuthorID,
		JournalID: in.JournalID,
		Tag:       in.Tag,
		Limit:     in.Limit,
		Offset:    in.Offset,
	}
	if f.JournalID == "" {
		f.JournalID = models.DefaultJournalID
	}
	switch {
	case f.Limit < 0:
		return nil, models.Invalid("limit", "must not be negative")
	case f.Limit == 0:
		f.Limit = DefaultPageSize
	case f.Limit > MaxPageSize:
		f.Limit = MaxPageSize
	}
	if f.Offset < 0 {
		return nil, models.Invalid("offset", "must not be negative")
	}

	switch strings.ToLower(in.Sort) {
	case "", "desc":
	case "asc":
		f.Ascending = true
	default:
		return nil, models.Invalid("sort", "must be asc or desc")
	}

	if in.StartDate != "" {
		from, _, err := ParseDate(in.StartDate)
		if err != nil {
			return nil, models.Invalid("start_date", err.Error())
		}
		f.From = &from
	}
	if in.EndDate != "" {
		to, dayOnly, err := ParseDate(in.EndDate)
		if err != nil {
			return nil, models.Invalid("end_date", err.Error())
		}
		// A bare date covers the whole day.
		if dayOnly {
			to = to.Add(24*time.Hour - time.Nanosecond)
		}
		f.To = &to
	}

	entries, total, err := s.repo.List(ctx, f)
	if err != nil {
		return nil, fmt.Errorf("list entries: %w", err)
	}
	return &EntryPage{Entries: entries, Total: total, Limit: f.Limit, Offset: f.Offset}, nil
}

// Get returns one of the caller's entries.
func (s *EntryService) Get(ctx context.Context, authorID, id string) (*models.Entry, error) {
	return s.repo.Get(ctx, authorID, id)
}

// UpdateEntryInput holds the allow-listed fields of an update. Nil fields
// are not changed.
type UpdateEntryInput struct {
	Content       *string
	Tags          *[]string
	DateOfMemory  *string
	Privacy       *string
	MediaURL      *string
	Transcription *string
}

// Update applies in to an owned entry. At least one field must be set.
func (s *EntryService) Update(ctx context.Context, authorID, id string, in UpdateEntryInput) error {
	p := models.EntryPatch{
		Content:       in.Content,
		MediaURL:      in.MediaURL,
		Transcription: in.Transcription,
	}
	if in.Tags != nil {
		p.Tags = *in.Tags
		if p.Tags == nil {
			p.Tags = []string{}
		}
	}
	if in.Privacy != nil {
		privacy := models.Privacy(*in.Privacy)
		if !privacy.Valid() {
			return models.Invalid("privacy", "must be one of private, shared, public")
		}
		p.Privacy = &privacy
	}
	if in.DateOfMemory != nil {
		d, _, err := ParseDate(*in.DateOfMemory)
		if err != nil {
			return models.Invalid("date_of_memory", err.Error())
		}
		p.DateOfMemory = &d
	}
	if p.Empty() {
		return models.Invalid("", "no valid fields to update")
	}
	return s.repo.Update(ctx, authorID, id, p, s.now().UTC())
}

// Delete soft-deletes an owned entry.
func (s *EntryService) Delete(ctx context.Context, authorID, id string) error {
	return s.repo.SoftDelete(ctx, authorID, id, s.now().UTC())
}

// AttachMedia points an owned entry at mediaURL.
func (s *EntryService) AttachMedia(ctx context.Context, authorID, id, mediaURL string) error {
	return s.repo.Update(ctx, authorID, id, models.EntryPatch{MediaURL: &mediaURL}, s.now().UTC())
}

// ParseDate accepts RFC 3339 timestamps and YYYY-MM-DD dates. dayOnly
// reports which form matched.
func ParseDate(s string) (t time.Time, dayOnly bool, err error) {
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t.UTC(), false, nil
	}
	if t, err := time.Parse(dateOnly, s); err == nil {
		return t, true, nil
	}
	return time.Time{}, false, fmt.Errorf("invalid date %q, want RFC 3339 or YYYY-MM-DD", s)
}
