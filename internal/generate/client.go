// Package generate is the HTTP client for the external generator service:
// structured text reflections and text-encoded speech audio.
package generate

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"

	"github.com/daybreakapp/daybreak/internal/daily"
)

// Common errors for generator calls.
var (
	// ErrUnavailable is returned when the generator service is unreachable.
	ErrUnavailable = errors.New("generator unavailable")

	// ErrBadResponse is returned when the generator responds with an
	// unexpected status or an unusable body.
	ErrBadResponse = errors.New("generator returned unusable response")
)

// dailyPrompt is sent when no topic is given.
const dailyPrompt = "a short reflection for today"

// reflectionSchema describes the structured output the text generator must
// return: every field is required.
var reflectionSchema = map[string]any{
	"type": "object",
	"properties": map[string]any{
		"title":      map[string]any{"type": "string"},
		"reference":  map[string]any{"type": "string"},
		"body":       map[string]any{"type": "string"},
		"actionItem": map[string]any{"type": "string"},
		"closing":    map[string]any{"type": "string"},
	},
	"required": []string{"title", "reference", "body", "actionItem", "closing"},
}

// reflectionRequest is the wire format of a text generation call.
type reflectionRequest struct {
	Prompt string         `json:"prompt"`
	Schema map[string]any `json:"schema"`
}

// speechRequest is the wire format of a speech generation call.
type speechRequest struct {
	Text       string `json:"text"`
	SampleRate int    `json:"sampleRate"`
	Channels   int    `json:"channels"`
}

// speechResponse carries the text-encoded PCM payload.
type speechResponse struct {
	Audio string `json:"audio"`
}

// ClientConfig configures a generator client.
type ClientConfig struct {
	// BaseURL is the generator service root, e.g. "https://gen.example.com".
	BaseURL string

	// Timeout bounds each call. Zero means 30 seconds.
	Timeout time.Duration

	// SampleRate and Channels describe the PCM format requested for speech.
	SampleRate int
	Channels   int

	// HTTPClient overrides the default pooled client, mainly for tests.
	HTTPClient *http.Client
}

// Client talks to the external generator service.
type Client struct {
	httpClient *http.Client
	baseURL    string
	sampleRate int
	channels   int
}

// NewClient creates a generator client with connection pooling.
func NewClient(cfg ClientConfig) *Client {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{
			Transport: &http.Transport{
				MaxIdleConns:        10,
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     90 * time.Second,
			},
			Timeout: cfg.Timeout,
		}
	}
	return &Client{
		httpClient: httpClient,
		baseURL:    cfg.BaseURL,
		sampleRate: cfg.SampleRate,
		channels:   cfg.Channels,
	}
}

// GenerateReflection asks the text generator for a structured reflection.
// An empty topic requests the generic daily prompt.
func (c *Client) GenerateReflection(ctx context.Context, topic string) (*daily.Reflection, error) {
	prompt := dailyPrompt
	if topic != "" {
		prompt = fmt.Sprintf("a short reflection on %s", topic)
	}

	body, err := c.post(ctx, "/v1/reflection", reflectionRequest{
		Prompt: prompt,
		Schema: reflectionSchema,
	})
	if err != nil {
		return nil, err
	}

	var reflection daily.Reflection
	if err := json.Unmarshal(body, &reflection); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBadResponse, err)
	}
	if reflection.Title == "" || reflection.Body == "" {
		return nil, fmt.Errorf("%w: required fields missing", ErrBadResponse)
	}
	return &reflection, nil
}

// GenerateSpeech asks the audio generator to synthesize text, returning the
// text-encoded PCM payload for the codec to decode.
func (c *Client) GenerateSpeech(ctx context.Context, text string) (string, error) {
	body, err := c.post(ctx, "/v1/speech", speechRequest{
		Text:       text,
		SampleRate: c.sampleRate,
		Channels:   c.channels,
	})
	if err != nil {
		return "", err
	}

	var resp speechResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return "", fmt.Errorf("%w: %v", ErrBadResponse, err)
	}
	if resp.Audio == "" {
		return "", fmt.Errorf("%w: empty audio payload", ErrBadResponse)
	}
	return resp.Audio, nil
}

// post issues one JSON request and returns the response body.
func (c *Client) post(ctx context.Context, path string, payload any) ([]byte, error) {
	encoded, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(encoded))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	requestID := uuid.NewString()
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Request-ID", requestID)

	started := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("%w: status %d: %s", ErrBadResponse, resp.StatusCode, detail)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	log.Debug("generator call completed",
		"path", path,
		"request_id", requestID,
		"elapsed", time.Since(started),
		"bytes", len(body))
	return body, nil
}
