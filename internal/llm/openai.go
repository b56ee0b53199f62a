package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const systemPrompt = "You standardize graduate admissions data. Given a raw program and " +
	"university description, reply with exactly one JSON object of the form " +
	`{"standardized_program": "...", "standardized_university": "..."} using ` +
	"canonical English names of known universities. No prose, no markdown."

// Config points the client at an OpenAI-compatible chat completions endpoint.
// Local gateways (Ollama, vLLM) work as long as they speak the same schema.
type Config struct {
	Endpoint string
	Model    string
	APIKey   string
	Timeout  time.Duration
}

// Client implements Normalizer over an OpenAI-style chat HTTP API.
type Client struct {
	cfg Config
	hc  *http.Client
}

// NewClient builds a Client.
func NewClient(cfg Config) *Client {
	if cfg.Endpoint == "" {
		cfg.Endpoint = "https://api.openai.com/v1/chat/completions"
	}
	if cfg.Model == "" {
		cfg.Model = "gpt-4o-mini"
	}
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 60 * time.Second
	}
	return &Client{
		cfg: cfg,
		hc:  &http.Client{Timeout: timeout},
	}
}

// Normalize sends one chat completion per record and parses the strict JSON
// reply. Any transport, status, or shape problem is surfaced as an error;
// no retries happen here.
func (c *Client) Normalize(ctx context.Context, program, university string) (Canonical, error) {
	prompt := fmt.Sprintf("%s, %s", program, university)
	payload, err := json.Marshal(map[string]any{
		"model": c.cfg.Model,
		"messages": []map[string]string{
			{"role": "system", "content": systemPrompt},
			{"role": "user", "content": prompt},
		},
		"temperature": 0,
	})
	if err != nil {
		return Canonical{}, fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.Endpoint, bytes.NewReader(payload))
	if err != nil {
		return Canonical{}, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.cfg.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
	}

	resp, err := c.hc.Do(req)
	if err != nil {
		return Canonical{}, fmt.Errorf("normalization request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return Canonical{}, fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode >= 400 {
		return Canonical{}, fmt.Errorf("normalization error %d: %s", resp.StatusCode, snippet(body))
	}

	var parsed struct {
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
		} `json:"choices"`
	}
	if err := json.Unmarshal(body, &parsed); err != nil {
		return Canonical{}, fmt.Errorf("decode completion: %w", err)
	}
	if len(parsed.Choices) == 0 {
		return Canonical{}, fmt.Errorf("completion returned no choices")
	}
	return parseCanonical(parsed.Choices[0].Message.Content)
}

// parseCanonical extracts the JSON object from a completion, tolerating code
// fences and surrounding prose the model should not have produced.
func parseCanonical(content string) (Canonical, error) {
	text := strings.TrimSpace(content)
	if start := strings.Index(text, "{"); start >= 0 {
		if end := strings.LastIndex(text, "}"); end > start {
			text = text[start : end+1]
		}
	}
	var c Canonical
	if err := json.Unmarshal([]byte(text), &c); err != nil {
		return Canonical{}, fmt.Errorf("malformed normalization reply: %w", err)
	}
	if c.Program == "" || c.University == "" {
		return Canonical{}, fmt.Errorf("normalization reply missing fields: %s", snippet([]byte(text)))
	}
	return c, nil
}

func snippet(b []byte) string {
	s := strings.TrimSpace(string(b))
	if len(s) > 200 {
		s = s[:200] + "..."
	}
	return s
}
