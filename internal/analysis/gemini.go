package analysis

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

var (
	ErrUpstream      = errors.New("llm upstream error")
	ErrEmptyResponse = errors.New("llm returned no content")
	ErrInvalidJSON   = errors.New("llm returned invalid JSON")
)

// Analyzer produces a JSON analysis for a request.
type Analyzer interface {
	Analyze(ctx context.Context, req Request) (json.RawMessage, error)
}

type GeminiConfig struct {
	APIKey  string
	Model   string
	BaseURL string
	Timeout time.Duration
}

// GeminiClient calls the Gemini generateContent endpoint.
type GeminiClient struct {
	cfg    GeminiConfig
	http   *http.Client
	logger zerolog.Logger
}

func NewGeminiClient(cfg GeminiConfig, logger zerolog.Logger) *GeminiClient {
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	return &GeminiClient{
		cfg:    cfg,
		http:   &http.Client{Timeout: cfg.Timeout},
		logger: logger.With().Str("component", "gemini").Logger(),
	}
}

type geminiPart struct {
	Text string `json:"text"`
}

type geminiContent struct {
	Role  string       `json:"role,omitempty"`
	Parts []geminiPart `json:"parts"`
}

type geminiRequest struct {
	Contents         []geminiContent `json:"contents"`
	GenerationConfig struct {
		Temperature      float64 `json:"temperature"`
		ResponseMimeType string  `json:"responseMimeType"`
	} `json:"generationConfig"`
}

type geminiResponse struct {
	Candidates []struct {
		Content      geminiContent `json:"content"`
		FinishReason string        `json:"finishReason"`
	} `json:"candidates"`
	Error *struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
		Status  string `json:"status"`
	} `json:"error"`
}

func (g *GeminiClient) Analyze(ctx context.Context, req Request) (json.RawMessage, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	body := geminiRequest{
		Contents: []geminiContent{{Role: "user", Parts: []geminiPart{{Text: BuildPrompt(req)}}}},
	}
	body.GenerationConfig.Temperature = 0.2
	body.GenerationConfig.ResponseMimeType = "application/json"

	payload, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("encode gemini request: %w", err)
	}

	url := fmt.Sprintf("%s/v1beta/models/%s:generateContent", g.cfg.BaseURL, g.cfg.Model)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("build gemini request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("x-goog-api-key", g.cfg.APIKey)

	start := time.Now()
	resp, err := g.http.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrUpstream, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return nil, fmt.Errorf("%w: read body: %w", ErrUpstream, err)
	}

	var parsed geminiResponse
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return nil, fmt.Errorf("%w: decode response (status %d): %w", ErrUpstream, resp.StatusCode, err)
	}
	if resp.StatusCode != http.StatusOK || parsed.Error != nil {
		msg := http.StatusText(resp.StatusCode)
		if parsed.Error != nil {
			msg = parsed.Error.Message
		}
		return nil, fmt.Errorf("%w: status %d: %s", ErrUpstream, resp.StatusCode, msg)
	}

	g.logger.Debug().
		Str("model", g.cfg.Model).
		Dur("latency", time.Since(start)).
		Int("candidates", len(parsed.Candidates)).
		Msg("gemini response")

	var text strings.Builder
	if len(parsed.Candidates) > 0 {
		for _, p := range parsed.Candidates[0].Content.Parts {
			text.WriteString(p.Text)
		}
	}
	if strings.TrimSpace(text.String()) == "" {
		return nil, ErrEmptyResponse
	}
	return ExtractJSON(text.String())
}

// ExtractJSON pulls the JSON object out of a model reply, tolerating markdown
// code fences and surrounding prose.
func ExtractJSON(text string) (json.RawMessage, error) {
	s := strings.TrimSpace(text)
	if strings.HasPrefix(s, "```") {
		s = strings.TrimPrefix(s, "```")
		s = strings.TrimPrefix(s, "json")
		s = strings.TrimSuffix(strings.TrimSpace(s), "```")
		s = strings.TrimSpace(s)
	}
	if !json.Valid([]byte(s)) {
		start, end := strings.Index(s, "{"), strings.LastIndex(s, "}")
		if start < 0 || end <= start {
			return nil, ErrInvalidJSON
		}
		s = s[start : end+1]
	}

	var obj map[string]json.RawMessage
	if err := json.Unmarshal([]byte(s), &obj); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidJSON, err)
	}
	return json.RawMessage(s), nil
}
