package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/aimee/backend/internal/models"
)

// HTTPInterpreter talks to an Ollama-compatible /api/generate endpoint: a
// small model classifies, a larger one narrates.
type HTTPInterpreter struct {
	BaseURL     string
	IntentModel string
	MainModel   string
	Client      *http.Client
	Logger      zerolog.Logger

	cache *responseCache
}

func NewHTTPInterpreter(baseURL, intentModel, mainModel string, logger zerolog.Logger) *HTTPInterpreter {
	return &HTTPInterpreter{
		BaseURL:     strings.TrimRight(baseURL, "/"),
		IntentModel: intentModel,
		MainModel:   mainModel,
		Client:      &http.Client{Timeout: 60 * time.Second},
		Logger:      logger,
		cache:       newResponseCache(60 * time.Second),
	}
}

type generateOptions struct {
	Temperature float64 `json:"temperature"`
	NumPredict  int     `json:"num_predict"`
	TopK        int     `json:"top_k"`
	TopP        float64 `json:"top_p"`
}

type generateRequest struct {
	Model   string          `json:"model"`
	Prompt  string          `json:"prompt"`
	Stream  bool            `json:"stream"`
	Options generateOptions `json:"options"`
}

type generateResponse struct {
	Response string `json:"response"`
}

var (
	intentOptions  = generateOptions{Temperature: 0.1, NumPredict: 512, TopK: 10, TopP: 0.9}
	narrateOptions = generateOptions{Temperature: 0.3, NumPredict: 512, TopK: 20, TopP: 0.8}
)

// Analyze never leaves the caller without an Analysis: on failure it returns
// the default general inquiry together with the error.
func (h *HTTPInterpreter) Analyze(ctx context.Context, text string) (models.Analysis, error) {
	raw, err := h.generate(ctx, h.IntentModel, buildAnalyzePrompt(text), intentOptions)
	if err != nil {
		return models.DefaultAnalysis(), err
	}
	var a models.Analysis
	if err := json.Unmarshal([]byte(stripFences(raw)), &a); err != nil {
		h.Logger.Warn().Str("raw", raw).Msg("intent response is not valid json")
		return models.DefaultAnalysis(), fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}
	a = applyOverrides(text, a)
	h.Logger.Debug().Str("intent", string(a.Kind())).Str("urgency", a.Urgency).Msg("intent analysed")
	return a, nil
}

func (h *HTTPInterpreter) Narrate(ctx context.Context, in NarrationInput) (string, error) {
	prompt := buildNarratePrompt(in)
	if h.cache != nil {
		if v, ok := h.cache.get(prompt); ok {
			return v, nil
		}
	}
	out, err := h.generate(ctx, h.MainModel, prompt, narrateOptions)
	if err != nil {
		return "", err
	}
	out = strings.TrimSpace(out)
	if out == "" {
		return "", fmt.Errorf("%w: empty narration", ErrMalformedResponse)
	}
	if h.cache != nil {
		h.cache.set(prompt, out)
	}
	return out, nil
}

func (h *HTTPInterpreter) generate(ctx context.Context, model, prompt string, opts generateOptions) (string, error) {
	if h.BaseURL == "" {
		return "", fmt.Errorf("%w: interpreter base url is not set", ErrUpstreamUnavailable)
	}
	client := h.Client
	if client == nil {
		client = &http.Client{Timeout: 60 * time.Second}
	}

	b, _ := json.Marshal(generateRequest{Model: model, Prompt: prompt, Stream: false, Options: opts})
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, h.BaseURL+"/api/generate", bytes.NewReader(b))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := client.Do(req)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return "", fmt.Errorf("%w: interpreter request timed out", ErrUpstreamUnavailable)
		}
		return "", fmt.Errorf("%w: %v", ErrUpstreamUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusTooManyRequests {
		var retry time.Duration
		if s := resp.Header.Get("Retry-After"); s != "" {
			if d, err := time.ParseDuration(s + "s"); err == nil {
				retry = d
			}
		}
		return "", fmt.Errorf("%w: %w", ErrUpstreamUnavailable, RateLimitError{RetryAfter: retry})
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", fmt.Errorf("%w: interpreter http error: %s", ErrUpstreamUnavailable, resp.Status)
	}

	var r generateResponse
	if err := json.NewDecoder(resp.Body).Decode(&r); err != nil {
		return "", fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}
	return r.Response, nil
}
