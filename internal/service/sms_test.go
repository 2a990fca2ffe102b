package service

import (
	"context"
	"errors"
	"net/url"
	"testing"
	"time"

	"github.com/hatchling/journal/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

type smsUsersFunc func(ctx context.Context, phone string) (*models.User, error)

func (f smsUsersFunc) GetByPhone(ctx context.Context, phone string) (*models.User, error) {
	return f(ctx, phone)
}

type entryCreatorFunc func(ctx context.Context, e *models.Entry) error

func (f entryCreatorFunc) Create(ctx context.Context, e *models.Entry) error { return f(ctx, e) }

type queueFunc func(ctx context.Context, msg models.UnknownSMS) error

func (f queueFunc) Enqueue(ctx context.Context, msg models.UnknownSMS) error { return f(ctx, msg) }

type mockMedia struct {
	calls []string
	data  []byte
	err   error
}

func (m *mockMedia) DownloadMedia(_ context.Context, u string) ([]byte, error) {
	m.calls = append(m.calls, u)
	return m.data, m.err
}

type mockTranscriber struct {
	filename string
	text     string
	err      error
}

func (m *mockTranscriber) Transcribe(_ context.Context, filename string, _ []byte) (string, error) {
	m.filename = filename
	return m.text, m.err
}

func TestParseInbound(t *testing.T) {
	form := url.Values{
		"From":              {"+15551234567"},
		"Body":              {"Hello"},
		"NumMedia":          {"3"},
		"MediaUrl0":         {"https://api.twilio.com/m/ME1"},
		"MediaContentType0": {"image/jpeg"},
		"MediaUrl2":         {"https://api.twilio.com/m/ME3.mp3"},
	}
	msg, err := ParseInbound(form)
	require.NoError(t, err)
	assert.Equal(t, "+15551234567", msg.From)
	assert.Equal(t, "Hello", msg.Body)
	assert.Equal(t, []Media{
		{URL: "https://api.twilio.com/m/ME1", ContentType: "image/jpeg"},
		{URL: "https://api.twilio.com/m/ME3.mp3"},
	}, msg.Media)
}

func TestParseInbound_Malformed(t *testing.T) {
	tests := []struct {
		name string
		form url.Values
	}{
		{"no sender", url.Values{"Body": {"hi"}}},
		{"bad media count", url.Values{"From": {"+1"}, "NumMedia": {"two"}}},
		{"negative media count", url.Values{"From": {"+1"}, "NumMedia": {"-1"}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseInbound(tt.form)
			var verr *models.ValidationError
			assert.ErrorAs(t, err, &verr)
		})
	}
}

func TestMedia_IsAudio(t *testing.T) {
	tests := []struct {
		m    Media
		want bool
		name string
	}{
		{Media{URL: "https://x/a.MP3"}, true, "a.MP3"},
		{Media{URL: "https://x/a.wav?sig=1"}, true, "a.wav"},
		{Media{URL: "https://x/a.m4a"}, true, "a.m4a"},
		{Media{URL: "https://x/ME1", ContentType: "audio/mpeg"}, true, "ME1.mp3"},
		{Media{URL: "https://x/ME2", ContentType: "audio/ogg"}, true, "ME2.mp3"},
		{Media{URL: "https://x/p.jpg", ContentType: "image/jpeg"}, false, ""},
	}
	for _, tt := range tests {
		t.Run(tt.m.URL, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.m.IsAudio())
			if tt.want {
				assert.Equal(t, tt.name, tt.m.filename())
			}
		})
	}
}

func newSMSService(users SMSUserRepository, entries EntryCreator, queue UnknownSMSQueue,
	media MediaDownloader, tr Transcriber, tagger Tagger, sender SMSSender, log *zap.Logger,
) *SMSService {
	s := NewSMSService(users, entries, queue, media, tr, tagger, sender, log)
	s.now = func() time.Time { return fixedNow }
	return s
}

func knownUser(context.Context, string) (*models.User, error) {
	return &models.User{ID: "u1", DefaultPrivacy: models.PrivacyShared}, nil
}

func TestSMSHandle_TextMessage(t *testing.T) {
	var stored *models.Entry
	sender := &mockSender{}
	tagger := &mockTagger{SuggestTagsFunc: func(_ context.Context, text string) ([]string, error) {
		assert.Equal(t, "First word: dada", text)
		return []string{"Milestone"}, nil
	}}
	s := newSMSService(smsUsersFunc(knownUser),
		entryCreatorFunc(func(_ context.Context, e *models.Entry) error { stored = e; return nil }),
		nil, &mockMedia{}, &mockTranscriber{}, tagger, sender, zap.NewNop())

	e, err := s.Handle(context.Background(), InboundSMS{From: "+1555", Body: " First word: dada "})
	require.NoError(t, err)
	require.Same(t, stored, e)
	assert.Equal(t, "First word: dada", e.Content)
	assert.Equal(t, "u1", e.AuthorID)
	assert.Equal(t, models.SourceSMS, e.Source)
	assert.Equal(t, models.PrivacyShared, e.Privacy)
	assert.Equal(t, models.DefaultJournalID, e.JournalID)
	assert.Equal(t, []string{"Milestone"}, e.Tags)
	assert.Nil(t, e.MediaURL)
	assert.Nil(t, e.Transcription)
	assert.Equal(t, "+1555", sender.to)
	assert.Equal(t, "Added to your memory jar 🍃", sender.body)
}

func TestSMSHandle_VoiceNote(t *testing.T) {
	media := &mockMedia{data: []byte("audio")}
	tr := &mockTranscriber{text: "she laughed at the dog"}
	sender := &mockSender{}
	var tagText string
	tagger := &mockTagger{SuggestTagsFunc: func(_ context.Context, text string) ([]string, error) {
		tagText = text
		return []string{"Funny"}, nil
	}}
	s := newSMSService(smsUsersFunc(knownUser),
		entryCreatorFunc(func(context.Context, *models.Entry) error { return nil }),
		nil, media, tr, tagger, sender, zap.NewNop())

	e, err := s.Handle(context.Background(), InboundSMS{
		From: "+1555",
		Media: []Media{
			{URL: "https://api.twilio.com/m/photo", ContentType: "image/jpeg"},
			{URL: "https://api.twilio.com/m/note", ContentType: "audio/mpeg"},
		},
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"https://api.twilio.com/m/note"}, media.calls)
	assert.Equal(t, "note.mp3", tr.filename)
	require.NotNil(t, e.Transcription)
	assert.Equal(t, "she laughed at the dog", *e.Transcription)
	assert.Equal(t, "she laughed at the dog", e.Content)
	assert.Equal(t, "https://api.twilio.com/m/photo", *e.MediaURL)
	assert.Equal(t, "she laughed at the dog", tagText)
	assert.Equal(t, "Added to your memory jar 🍃 Want to add a note?", sender.body)
}

func TestSMSHandle_BestEffortFailures(t *testing.T) {
	core, logs := observer.New(zap.WarnLevel)
	sender := &mockSender{err: errors.New("undeliverable")}
	tagger := &mockTagger{SuggestTagsFunc: func(context.Context, string) ([]string, error) {
		return nil, errors.New("openai down")
	}}
	s := newSMSService(smsUsersFunc(knownUser),
		entryCreatorFunc(func(context.Context, *models.Entry) error { return nil }),
		nil, &mockMedia{data: []byte("a")}, &mockTranscriber{err: errors.New("bad audio")}, tagger, sender,
		zap.New(core))

	e, err := s.Handle(context.Background(), InboundSMS{
		From:  "+1555",
		Body:  "bath",
		Media: []Media{{URL: "https://x/v.m4a"}},
	})
	require.NoError(t, err)
	assert.Nil(t, e.Transcription)
	assert.Equal(t, []string{}, e.Tags)
	assert.Equal(t, 1, logs.FilterMessage("transcription failed").Len())
	assert.Equal(t, 1, logs.FilterMessage("tag suggestion failed").Len())
	assert.Equal(t, 1, logs.FilterMessage("failed to send sms confirmation").Len())
}

func TestSMSHandle_UnknownSenderQueued(t *testing.T) {
	var queued models.UnknownSMS
	s := newSMSService(
		smsUsersFunc(func(context.Context, string) (*models.User, error) { return nil, models.ErrNotFound }),
		entryCreatorFunc(func(context.Context, *models.Entry) error {
			t.Fatal("no entry for unknown sender")
			return nil
		}),
		queueFunc(func(_ context.Context, msg models.UnknownSMS) error { queued = msg; return nil }),
		&mockMedia{}, &mockTranscriber{}, &mockTagger{}, &mockSender{}, zap.NewNop())

	e, err := s.Handle(context.Background(), InboundSMS{
		From:  "+1999",
		Body:  "who is this",
		Media: []Media{{URL: "https://x/1.jpg"}},
	})
	require.NoError(t, err)
	assert.Nil(t, e)
	assert.NotEmpty(t, queued.ID)
	assert.Equal(t, "+1999", queued.FromNumber)
	assert.Equal(t, "who is this", queued.Body)
	assert.Equal(t, []string{"https://x/1.jpg"}, queued.MediaURLs)
	assert.Equal(t, fixedNow, queued.ReceivedAt)
}

func TestSMSHandle_Errors(t *testing.T) {
	t.Run("lookup", func(t *testing.T) {
		s := newSMSService(
			smsUsersFunc(func(context.Context, string) (*models.User, error) { return nil, errors.New("db") }),
			nil, nil, nil, nil, nil, nil, zap.NewNop())
		_, err := s.Handle(context.Background(), InboundSMS{From: "+1"})
		assert.ErrorContains(t, err, "lookup sender")
	})
	t.Run("store", func(t *testing.T) {
		s := newSMSService(smsUsersFunc(knownUser),
			entryCreatorFunc(func(context.Context, *models.Entry) error { return errors.New("db") }),
			nil, &mockMedia{}, &mockTranscriber{}, nil, &mockSender{}, zap.NewNop())
		_, err := s.Handle(context.Background(), InboundSMS{From: "+1"})
		assert.ErrorContains(t, err, "create sms entry")
	})
}
