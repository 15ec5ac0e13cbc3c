// Package voice transcribes chat voice notes through a
// Whisper-compatible API so they can be handled like text messages.
package voice

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"time"

	openai "github.com/sashabaranov/go-openai"
)

// Backend identifies which transcription service to use.
type Backend string

const (
	BackendGroq   Backend = "groq"
	BackendOpenAI Backend = "openai"
)

// backendConfig holds endpoint and model defaults for each backend.
type backendConfig struct {
	BaseURL string
	Model   string
}

var backends = map[Backend]backendConfig{
	BackendGroq: {
		BaseURL: "https://api.groq.com/openai/v1",
		Model:   "whisper-large-v3",
	},
	BackendOpenAI: {
		BaseURL: "https://api.openai.com/v1",
		Model:   "whisper-1",
	},
}

// Transcriber sends audio data to a Whisper-compatible API and returns text.
type Transcriber struct {
	backend    Backend
	baseURL    string
	model      string
	httpClient *http.Client
	client     *openai.Client
}

// Option configures a Transcriber.
type Option func(*Transcriber)

// WithBaseURL overrides the default API base URL for the chosen backend.
func WithBaseURL(baseURL string) Option {
	return func(t *Transcriber) {
		t.baseURL = baseURL
	}
}

// WithModel overrides the default model for the chosen backend.
func WithModel(model string) Option {
	return func(t *Transcriber) {
		t.model = model
	}
}

// WithHTTPClient sets a custom HTTP client (useful for testing).
func WithHTTPClient(client *http.Client) Option {
	return func(t *Transcriber) {
		t.httpClient = client
	}
}

// NewTranscriber creates a Transcriber for the given backend and API key.
// Returns an error if the backend is unknown or the API key is empty.
func NewTranscriber(b Backend, apiKey string, opts ...Option) (*Transcriber, error) {
	cfg, ok := backends[b]
	if !ok {
		return nil, fmt.Errorf("unknown voice backend: %q", b)
	}
	if apiKey == "" {
		return nil, fmt.Errorf("API key required for voice backend %q", b)
	}

	t := &Transcriber{
		backend: b,
		baseURL: cfg.BaseURL,
		model:   cfg.Model,
	}
	for _, opt := range opts {
		opt(t)
	}

	clientCfg := openai.DefaultConfig(apiKey)
	clientCfg.BaseURL = t.baseURL
	if t.httpClient != nil {
		clientCfg.HTTPClient = t.httpClient
	} else {
		clientCfg.HTTPClient = &http.Client{Timeout: 30 * time.Second}
	}
	t.client = openai.NewClientWithConfig(clientCfg)
	return t, nil
}

// Transcribe sends audio bytes to the Whisper API and returns the
// transcribed text. filename carries the format hint (e.g. "audio.ogg").
func (t *Transcriber) Transcribe(ctx context.Context, audioData []byte, filename string) (string, error) {
	resp, err := t.client.CreateTranscription(ctx, openai.AudioRequest{
		Model:    t.model,
		FilePath: filename,
		Reader:   bytes.NewReader(audioData),
	})
	if err != nil {
		return "", fmt.Errorf("transcription request failed: %w", err)
	}
	return resp.Text, nil
}
