// Package ai wraps the OpenAI endpoints used for tag suggestions and voice
// note transcription.
package ai

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
)

// ErrDisabled is returned when no API key is configured.
var ErrDisabled = errors.New("openai is not configured")

// CommonTags are preferred over custom tags when they fit.
var CommonTags = []string{
	"Milestone", "Funny", "Sweet Moment", "Food", "Sleep", "Health", "Family", "Friends", "Outing",
}

const maxTags = 3

// Client calls the OpenAI REST API.
type Client struct {
	http       *resty.Client
	model      string
	audioModel string
}

// NewClient creates a Client. apiURL is normally https://api.openai.com/v1.
func NewClient(apiURL, apiKey, model, audioModel string, timeout time.Duration) *Client {
	c := resty.New().
		SetBaseURL(strings.TrimRight(apiURL, "/")).
		SetAuthToken(apiKey).
		SetTimeout(timeout)
	return &Client{http: c, model: model, audioModel: audioModel}
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	MaxTokens   int           `json:"max_tokens"`
	Temperature float64       `json:"temperature"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
}

type apiError struct {
	Error struct {
		Message string `json:"message"`
	} `json:"error"`
}

func tagPrompt(content string) string {
	return fmt.Sprintf(`Based on the following parenting memory, suggest up to 3 relevant tags from this list: %s.
If none of these tags fit, suggest up to 2 custom tags that would be appropriate.
Return only the tag names separated by commas, nothing else.

Memory: %s`, strings.Join(CommonTags, ", "), content)
}

// SuggestTags asks the model for up to three tags describing content.
func (c *Client) SuggestTags(ctx context.Context, content string) ([]string, error) {
	var (
		out    chatResponse
		apiErr apiError
	)
	resp, err := c.http.R().
		SetContext(ctx).
		SetBody(chatRequest{
			Model:       c.model,
			Messages:    []chatMessage{{Role: "user", Content: tagPrompt(content)}},
			MaxTokens:   50,
			Temperature: 0.3,
		}).
		SetResult(&out).
		SetError(&apiErr).
		Post("/chat/completions")
	if err != nil {
		return nil, fmt.Errorf("suggest tags: %w", err)
	}
	if resp.IsError() {
		return nil, fmt.Errorf("suggest tags: status %d: %s", resp.StatusCode(), apiErr.Error.Message)
	}
	if len(out.Choices) == 0 {
		return []string{}, nil
	}
	return ParseTags(out.Choices[0].Message.Content), nil
}

// ParseTags splits a comma separated model answer into at most three
// distinct, trimmed tags.
func ParseTags(answer string) []string {
	tags := make([]string, 0, maxTags)
	seen := make(map[string]bool)
	for _, part := range strings.Split(answer, ",") {
		tag := strings.Trim(strings.TrimSpace(part), `."'`)
		if tag == "" || seen[strings.ToLower(tag)] {
			continue
		}
		seen[strings.ToLower(tag)] = true
		tags = append(tags, tag)
		if len(tags) == maxTags {
			break
		}
	}
	return tags
}

type transcriptionResponse struct {
	Text string `json:"text"`
}

// Transcribe converts an audio file to text.
func (c *Client) Transcribe(ctx context.Context, filename string, audio []byte) (string, error) {
	var (
		out    transcriptionResponse
		apiErr apiError
	)
	resp, err := c.http.R().
		SetContext(ctx).
		SetFileReader("file", filename, bytes.NewReader(audio)).
		SetFormData(map[string]string{"model": c.audioModel}).
		SetResult(&out).
		SetError(&apiErr).
		Post("/audio/transcriptions")
	if err != nil {
		return "", fmt.Errorf("transcribe: %w", err)
	}
	if resp.IsError() {
		return "", fmt.Errorf("transcribe: status %d: %s", resp.StatusCode(), apiErr.Error.Message)
	}
	return strings.TrimSpace(out.Text), nil
}

// Disabled is used when no API key is configured.
type Disabled struct{}

// SuggestTags returns no tags.
func (Disabled) SuggestTags(context.Context, string) ([]string, error) {
	return []string{}, nil
}

// Transcribe always fails with ErrDisabled.
func (Disabled) Transcribe(context.Context, string, []byte) (string, error) {
	return "", ErrDisabled
}
