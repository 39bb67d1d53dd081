package quizgen

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// AssistClient wraps the stateless hint and speech services. Both are
// strictly optional: callers surface failures as non-fatal notices and never
// block quiz progression on them.
type AssistClient struct {
	explainURL string
	speechURL  string
	http       *http.Client
}

func NewAssistClient(explainURL, speechURL string) *AssistClient {
	return &AssistClient{
		explainURL: explainURL,
		speechURL:  speechURL,
		http:       &http.Client{Timeout: 60 * time.Second},
	}
}

// NewAssistClientWithHTTP is test-only.
func NewAssistClientWithHTTP(explainURL, speechURL string, hc *http.Client) *AssistClient {
	return &AssistClient{explainURL: explainURL, speechURL: speechURL, http: hc}
}

// Explain asks for a concept explanation of a question. The service is
// instructed never to reveal the correct answer.
func (c *AssistClient) Explain(ctx context.Context, question string, answers []string) (string, error) {
	if c.explainURL == "" {
		return "", fmt.Errorf("hint service not configured")
	}
	var out struct {
		Explanation string `json:"explanation"`
	}
	err := c.post(ctx, c.explainURL, map[string]any{
		"question": question,
		"answers":  answers,
	}, &out)
	if err != nil {
		return "", err
	}
	return out.Explanation, nil
}

// Speak synthesizes speech for a question prompt and returns a media URL or
// data URI.
func (c *AssistClient) Speak(ctx context.Context, text string) (string, error) {
	if c.speechURL == "" {
		return "", fmt.Errorf("speech service not configured")
	}
	var out struct {
		Media string `json:"media"`
	}
	if err := c.post(ctx, c.speechURL, map[string]any{"text": text}, &out); err != nil {
		return "", err
	}
	return out.Media, nil
}

func (c *AssistClient) post(ctx context.Context, url string, payload, out any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encode request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("assist service status %d: %s", resp.StatusCode, snippet)
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
