// Package quizgen talks to the external question-generation service and
// caches its output. The generator is a black box that may fail; everything
// here normalizes its failures into domain.ErrGeneration.
package quizgen

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"cryptoquest-engine/internal/domain"
)

// Provider fetches a question set for a tier.
type Provider interface {
	Generate(ctx context.Context, tier domain.Tier, count int) ([]domain.Question, error)
}

// HTTPProvider calls the generation service over HTTP.
type HTTPProvider struct {
	url    string
	apiKey string
	http   *http.Client
}

func NewHTTPProvider(url, apiKey string) *HTTPProvider {
	return &HTTPProvider{
		url:    url,
		apiKey: apiKey,
		// Generation can be slow; the timeout is a transport backstop, not a UX budget.
		http: &http.Client{Timeout: 120 * time.Second},
	}
}

// NewHTTPProviderWithClient is test-only.
func NewHTTPProviderWithClient(url string, hc *http.Client) *HTTPProvider {
	return &HTTPProvider{url: url, http: hc}
}

type generateRequest struct {
	DifficultyLevel   string `json:"difficultyLevel"`
	Topic             string `json:"topic"`
	NumberOfQuestions int    `json:"numberOfQuestions"`
}

// Generate requests count questions for the tier. An empty or structurally
// invalid response is a generation failure; a shorter-than-requested but
// otherwise valid set is returned as-is and scored against its actual length.
func (p *HTTPProvider) Generate(ctx context.Context, tier domain.Tier, count int) ([]domain.Question, error) {
	body, err := json.Marshal(generateRequest{
		DifficultyLevel:   tier.Name,
		Topic:             tier.Topic,
		NumberOfQuestions: count,
	})
	if err != nil {
		return nil, fmt.Errorf("encode generation request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build generation request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if p.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+p.apiKey)
	}

	resp, err := p.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrGeneration, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("%w: generator status %d: %s", domain.ErrGeneration, resp.StatusCode, snippet)
	}

	var questions []domain.Question
	if err := json.NewDecoder(resp.Body).Decode(&questions); err != nil {
		return nil, fmt.Errorf("%w: malformed generator output: %v", domain.ErrGeneration, err)
	}

	usable := questions[:0]
	for _, q := range questions {
		if q.Valid() {
			usable = append(usable, q)
		}
	}
	if len(usable) == 0 {
		return nil, fmt.Errorf("%w: generator returned no usable questions", domain.ErrGeneration)
	}
	return usable, nil
}

// Static serves a fixed question set per tier, for tests and demos.
type Static struct {
	sets map[string][]domain.Question
}

func NewStatic(sets map[string][]domain.Question) *Static {
	return &Static{sets: sets}
}

func (s *Static) Generate(_ context.Context, tier domain.Tier, count int) ([]domain.Question, error) {
	set, ok := s.sets[tier.Name]
	if !ok || len(set) == 0 {
		return nil, domain.ErrGeneration
	}
	if count > 0 && count < len(set) {
		set = set[:count]
	}
	out := make([]domain.Question, len(set))
	copy(out, set)
	return out, nil
}
