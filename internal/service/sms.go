package service

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"path"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/hatchling/journal/internal/models"
	"go.uber.org/zap"
)

// maxMedia is the most attachments Twilio delivers with one message.
const maxMedia = 10

const (
	confirmText      = "Added to your memory jar 🍃"
	confirmMediaOnly = "Added to your memory jar 🍃 Want to add a note?"
)

var audioExtensions = map[string]string{
	".mp3": "audio/mpeg",
	".wav": "audio/wav",
	".m4a": "audio/mp4",
}

// Media is one attachment of an inbound message.
type Media struct {
	URL         string
	ContentType string
}

// IsAudio reports whether the attachment is a voice note.
func (m Media) IsAudio() bool {
	if strings.HasPrefix(strings.ToLower(m.ContentType), "audio/") {
		return true
	}
	_, ok := audioExtensions[strings.ToLower(mediaExt(m.URL))]
	return ok
}

// filename names the attachment for transcription, which infers the
// format from the extension.
func (m Media) filename() string {
	name := path.Base(mediaPath(m.URL))
	if _, ok := audioExtensions[strings.ToLower(path.Ext(name))]; ok {
		return name
	}
	for ext, ct := range audioExtensions {
		if strings.EqualFold(m.ContentType, ct) {
			return name + ext
		}
	}
	return name + ".mp3"
}

func mediaPath(raw string) string {
	if u, err := url.Parse(raw); err == nil {
		return u.Path
	}
	return raw
}

func mediaExt(raw string) string {
	return path.Ext(mediaPath(raw))
}

// InboundSMS is a parsed Twilio messaging webhook.
type InboundSMS struct {
	From  string
	Body  string
	Media []Media
}

// ParseInbound reads From, Body, NumMedia and the MediaUrlN and
// MediaContentTypeN fields of a webhook form.
func ParseInbound(form url.Values) (InboundSMS, error) {
	msg := InboundSMS{
		From: strings.TrimSpace(form.Get("From")),
		Body: form.Get("Body"),
	}
	if msg.From == "" {
		return InboundSMS{}, models.Invalid("From", "sender is required")
	}

	n := 0
	if raw := form.Get("NumMedia"); raw != "" {
		var err error
		n, err = strconv.Atoi(raw)
		if err != nil || n < 0 {
			return InboundSMS{}, models.Invalid("NumMedia", "must be a non-negative integer")
		}
	}
	for i := 0; i < min(n, maxMedia); i++ {
		u := form.Get("MediaUrl" + strconv.Itoa(i))
		if u == "" {
			continue
		}
		msg.Media = append(msg.Media, Media{URL: u, ContentType: form.Get("MediaContentType" + strconv.Itoa(i))})
	}
	return msg, nil
}

// SMSUserRepository looks up the account owning a phone number.
type SMSUserRepository interface {
	GetByPhone(ctx context.Context, phone string) (*models.User, error)
}

// EntryCreator stores new entries.
type EntryCreator interface {
	Create(ctx context.Context, e *models.Entry) error
}

// UnknownSMSQueue keeps messages from numbers without an account.
type UnknownSMSQueue interface {
	Enqueue(ctx context.Context, msg models.UnknownSMS) error
}

// MediaDownloader fetches message attachments.
type MediaDownloader interface {
	DownloadMedia(ctx context.Context, mediaURL string) ([]byte, error)
}

// Transcriber converts speech to text.
type Transcriber interface {
	Transcribe(ctx context.Context, filename string, audio []byte) (string, error)
}

// SMSService turns inbound text messages into journal entries.
type SMSService struct {
	users       SMSUserRepository
	entries     EntryCreator
	queue       UnknownSMSQueue
	media       MediaDownloader
	transcriber Transcriber
	tagger      Tagger
	sender      SMSSender
	log         *zap.Logger
	now         func() time.Time
}

// NewSMSService constructs an SMSService.
func NewSMSService(
	users SMSUserRepository,
	entries EntryCreator,
	queue UnknownSMSQueue,
	media MediaDownloader,
	transcriber Transcriber,
	tagger Tagger,
	sender SMSSender,
	log *zap.Logger,
) *SMSService {
	return &SMSService{
		users:       users,
		entries:     entries,
		queue:       queue,
		media:       media,
		transcriber: transcriber,
		tagger:      tagger,
		sender:      sender,
		log:         log,
		now:         time.Now,
	}
}

// Handle stores msg as an entry of the sending user. Messages from unknown
// numbers are queued and nil is returned for the entry. Transcription,
// tagging and the confirmation text are best effort.
func (s *SMSService) Handle(ctx context.Context, msg InboundSMS) (*models.Entry, error) {
	now := s.now().UTC()

	u, err := s.users.GetByPhone(ctx, msg.From)
	if errors.Is(err, models.ErrNotFound) {
		urls := make([]string, 0, len(msg.Media))
		for _, m := range msg.Media {
			urls = append(urls, m.URL)
		}
		err := s.queue.Enqueue(ctx, models.UnknownSMS{
			ID:         uuid.NewString(),
			FromNumber: msg.From,
			Body:       msg.Body,
			MediaURLs:  urls,
			ReceivedAt: now,
		})
		if err != nil {
			return nil, fmt.Errorf("queue unknown sms: %w", err)
		}
		s.log.Info("queued sms from unknown number", zap.String("from", msg.From))
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("lookup sender: %w", err)
	}

	body := strings.TrimSpace(msg.Body)
	e := &models.Entry{
		ID:           uuid.NewString(),
		Content:      body,
		Tags:         []string{},
		DateOfMemory: now,
		CreatedAt:    now,
		AuthorID:     u.ID,
		Privacy:      u.DefaultPrivacy,
		Source:       models.SourceSMS,
		JournalID:    models.DefaultJournalID,
	}
	if !e.Privacy.Valid() {
		e.Privacy = models.PrivacyPrivate
	}
	if len(msg.Media) > 0 {
		e.MediaURL = &msg.Media[0].URL
	}

	if text := s.transcribe(ctx, msg.Media); text != "" {
		e.Transcription = &text
		if e.Content == "" {
			e.Content = text
		}
	}

	tagText := strings.TrimSpace(body + " " + deref(e.Transcription))
	if tagText != "" {
		tags, err := s.tagger.SuggestTags(ctx, tagText)
		if err != nil {
			s.log.Warn("tag suggestion failed", zap.Error(err))
		} else if tags != nil {
			e.Tags = tags
		}
	}

	if err := s.entries.Create(ctx, e); err != nil {
		return nil, fmt.Errorf("create sms entry: %w", err)
	}

	reply := confirmText
	if body == "" && len(msg.Media) > 0 {
		reply = confirmMediaOnly
	}
	if err := s.sender.Send(ctx, msg.From, reply); err != nil {
		s.log.Warn("failed to send sms confirmation", zap.String("to", msg.From), zap.Error(err))
	}
	return e, nil
}

// transcribe returns the text of the first audio attachment, or "".
func (s *SMSService) transcribe(ctx context.Context, media []Media) string {
	for _, m := range media {
		if !m.IsAudio() {
			continue
		}
		audio, err := s.media.DownloadMedia(ctx, m.URL)
		if err != nil {
			s.log.Warn("failed to download voice note", zap.String("url", m.URL), zap.Error(err))
			return ""
		}
		text, err := s.transcriber.Transcribe(ctx, m.filename(), audio)
		if err != nil {
			s.log.Warn("transcription failed", zap.String("url", m.URL), zap.Error(err))
			return ""
		}
		return text
	}
	return ""
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
