package elevenlabs

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync/atomic"
	"time"

	"novacontent/internal/speech"
)

const (
	baseURL      = "https://api.elevenlabs.io/v1"
	timeout      = 120 * time.Second
	outputFormat = "mp3_44100_128"
)

var _ speech.Provider = (*Client)(nil)

type Client struct {
	apiKeys    []string
	keyIndex   uint64
	httpClient *http.Client
	baseURL    string
	voiceID    string
	modelID    string
	stability  float64
	similarity float64
}

type Config struct {
	APIKeys    []string
	VoiceID    string
	ModelID    string
	Stability  float64
	Similarity float64
}

type option func(*Client)

func withBaseURL(url string) option {
	return func(c *Client) {
		c.baseURL = url
	}
}

func withHTTPClient(client *http.Client) option {
	return func(c *Client) {
		c.httpClient = client
	}
}

func NewClient(cfg Config) *Client {
	return newClient(cfg)
}

func newClient(cfg Config, opts ...option) *Client {
	keys := cfg.APIKeys
	if len(keys) == 0 {
		keys = []string{""}
	}
	voiceID := cfg.VoiceID
	if voiceID == "" {
		voiceID = speech.DefaultVoiceID
	}
	modelID := cfg.ModelID
	if modelID == "" {
		modelID = speech.DefaultModelID
	}

	c := &Client{
		apiKeys:    keys,
		httpClient: &http.Client{Timeout: timeout},
		baseURL:    baseURL,
		voiceID:    voiceID,
		modelID:    modelID,
		stability:  cfg.Stability,
		similarity: cfg.Similarity,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Client) Extension() string {
	return "mp3"
}

// Synthesize streams the encoded audio straight into w.
func (c *Client) Synthesize(ctx context.Context, req speech.Request, w io.Writer) error {
	voiceID := req.VoiceID
	if voiceID == "" {
		voiceID = c.voiceID
	}
	modelID := req.ModelID
	if modelID == "" {
		modelID = c.modelID
	}

	httpReq, err := c.buildRequest(ctx, voiceID, modelID, req.Text)
	if err != nil {
		return err
	}

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return fmt.Errorf("send request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return &speech.StatusError{StatusCode: resp.StatusCode, Body: string(body)}
	}

	if _, err := io.Copy(w, resp.Body); err != nil {
		return fmt.Errorf("stream audio: %w", err)
	}
	return nil
}

func (c *Client) nextAPIKey() string {
	if len(c.apiKeys) == 1 {
		return c.apiKeys[0]
	}
	idx := atomic.AddUint64(&c.keyIndex, 1)
	return c.apiKeys[idx%uint64(len(c.apiKeys))]
}

func (c *Client) buildRequest(ctx context.Context, voiceID, modelID, text string) (*http.Request, error) {
	payload := map[string]any{
		"text":     text,
		"model_id": modelID,
	}
	if c.stability > 0 || c.similarity > 0 {
		payload["voice_settings"] = map[string]any{
			"stability":        c.stability,
			"similarity_boost": c.similarity,
		}
	}

	data, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	url := fmt.Sprintf("%s/text-to-speech/%s/stream?output_format=%s", c.baseURL, voiceID, outputFormat)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "audio/mpeg")
	req.Header.Set("xi-api-key", c.nextAPIKey())

	return req, nil
}
