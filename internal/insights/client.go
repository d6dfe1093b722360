package insights

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"shoppersense/internal/models"
)

const (
	ProviderGemini = "gemini"
	ProviderOpenAI = "openai"
)

var defaultEndpoints = map[string]string{
	ProviderGemini: "https://generativelanguage.googleapis.com/v1beta/models",
	ProviderOpenAI: "https://api.openai.com/v1",
}

type ClientConfig struct {
	Provider string
	Model    string
	APIKey   string
	Endpoint string
}

// LLMClient is a Generator backed by a hosted text-generation API. Timeouts
// come from the caller's context, so the http.Client carries none.
type LLMClient struct {
	cfg    ClientConfig
	http   *http.Client
	logger *slog.Logger
}

func NewLLMClient(cfg ClientConfig, httpClient *http.Client, logger *slog.Logger) (*LLMClient, error) {
	if _, ok := defaultEndpoints[cfg.Provider]; !ok {
		return nil, fmt.Errorf("unsupported insights provider %q", cfg.Provider)
	}
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("insights provider %s requires an api key", cfg.Provider)
	}
	if cfg.Endpoint == "" {
		cfg.Endpoint = defaultEndpoints[cfg.Provider]
	}
	cfg.Endpoint = strings.TrimSuffix(cfg.Endpoint, "/")
	if cfg.Model == "" {
		cfg.Model = "gemini-2.5-flash-lite"
		if cfg.Provider == ProviderOpenAI {
			cfg.Model = "gpt-4o-mini"
		}
	}
	if httpClient == nil {
		httpClient = &http.Client{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &LLMClient{cfg: cfg, http: httpClient, logger: logger}, nil
}

func (c *LLMClient) Generate(ctx context.Context, summary Summary) ([]models.Insight, error) {
	prompt := BuildPrompt(summary)

	var (
		text string
		err  error
	)
	switch c.cfg.Provider {
	case ProviderOpenAI:
		text, err = c.callOpenAI(ctx, prompt)
	default:
		text, err = c.callGemini(ctx, prompt)
	}
	if err != nil {
		return nil, fmt.Errorf("%s: %w", c.cfg.Provider, err)
	}

	c.logger.Debug("insight response received", "provider", c.cfg.Provider, "model", c.cfg.Model, "bytes", len(text))
	return ParseInsights(text)
}

type geminiRequest struct {
	Contents []geminiContent `json:"contents"`
}

type geminiContent struct {
	Parts []geminiPart `json:"parts"`
}

type geminiPart struct {
	Text string `json:"text"`
}

type geminiResponse struct {
	Candidates []struct {
		Content geminiContent `json:"content"`
	} `json:"candidates"`
	Error *apiError `json:"error"`
}

type apiError struct {
	Message string `json:"message"`
	Code    any    `json:"code"`
}

func (c *LLMClient) callGemini(ctx context.Context, prompt string) (string, error) {
	endpoint := fmt.Sprintf("%s/%s:generateContent", c.cfg.Endpoint, url.PathEscape(c.cfg.Model))
	headers := map[string]string{"x-goog-api-key": c.cfg.APIKey}

	var resp geminiResponse
	if err := c.post(ctx, endpoint, headers, geminiRequest{
		Contents: []geminiContent{{Parts: []geminiPart{{Text: prompt}}}},
	}, &resp); err != nil {
		return "", err
	}

	if resp.Error != nil {
		return "", fmt.Errorf("api error %v: %s", resp.Error.Code, resp.Error.Message)
	}
	if len(resp.Candidates) == 0 || len(resp.Candidates[0].Content.Parts) == 0 {
		return "", ErrNoInsights
	}
	return resp.Candidates[0].Content.Parts[0].Text, nil
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
	Error *apiError `json:"error"`
}

func (c *LLMClient) callOpenAI(ctx context.Context, prompt string) (string, error) {
	headers := map[string]string{"Authorization": "Bearer " + c.cfg.APIKey}

	var resp chatResponse
	if err := c.post(ctx, c.cfg.Endpoint+"/chat/completions", headers, chatRequest{
		Model:       c.cfg.Model,
		Messages:    []chatMessage{{Role: "user", Content: prompt}},
		Temperature: 0.4,
	}, &resp); err != nil {
		return "", err
	}

	if resp.Error != nil {
		return "", fmt.Errorf("api error %v: %s", resp.Error.Code, resp.Error.Message)
	}
	if len(resp.Choices) == 0 {
		return "", ErrNoInsights
	}
	return resp.Choices[0].Message.Content, nil
}

func (c *LLMClient) post(ctx context.Context, endpoint string, headers map[string]string, body, out any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		// Endpoints may carry credentials in the query.
		var urlErr *url.Error
		if errors.As(err, &urlErr) {
			urlErr.URL = redact(urlErr.URL)
		}
		return fmt.Errorf("http request failed: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("api returned %d: %s", resp.StatusCode, truncate(string(data), 200))
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

func redact(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return "<invalid url>"
	}
	u.RawQuery = ""
	u.User = nil
	return u.String()
}
