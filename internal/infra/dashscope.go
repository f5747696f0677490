package infra

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/zacteqye72-art/project-focus-app/internal/domain"
)

const (
	textGenerationPath   = "/api/v1/services/aigc/text-generation/generation"
	visionGenerationPath = "/api/v1/services/aigc/multimodal-generation/generation"
)

const classifyPromptFormat = `You are an expert focus analyst. Judge from the screenshot whether the user is on task for their stated work goal.
Work goal: %q

Respond with ONLY a JSON object, no other text before or after:
{"status": "...", "reason": "..."}

The "status" field must be exactly one of: "focused", "semi_distracted", "distracted".
The "reason" field is a brief explanation under 50 characters.`

// DashScopeConfig configures the DashScope (Qwen) client.
type DashScopeConfig struct {
	APIKey      string
	BaseURL     string
	TextModel   string
	VisionModel string
	Timeout     time.Duration
	MaxRetries  int
}

// DefaultDashScopeConfig returns sensible defaults.
func DefaultDashScopeConfig(apiKey string) DashScopeConfig {
	return DashScopeConfig{
		APIKey:      apiKey,
		BaseURL:     "https://dashscope.aliyuncs.com",
		TextModel:   "qwen-plus",
		VisionModel: "qwen-vl-plus-latest",
		Timeout:     60 * time.Second,
		MaxRetries:  2,
	}
}

// DashScopeClient implements domain.TextGenerator and
// domain.FocusClassifier over the DashScope HTTP API.
type DashScopeClient struct {
	cfg        DashScopeConfig
	httpClient *http.Client
	logger     *zap.Logger
}

// NewDashScopeClient creates a client with the given configuration.
func NewDashScopeClient(cfg DashScopeConfig, logger *zap.Logger) *DashScopeClient {
	defaults := DefaultDashScopeConfig(cfg.APIKey)
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaults.BaseURL
	}
	if cfg.TextModel == "" {
		cfg.TextModel = defaults.TextModel
	}
	if cfg.VisionModel == "" {
		cfg.VisionModel = defaults.VisionModel
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaults.Timeout
	}
	return &DashScopeClient{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: cfg.Timeout},
		logger:     logger,
	}
}

// IsConfigured reports whether an API key is set.
func (c *DashScopeClient) IsConfigured() bool { return c.cfg.APIKey != "" }

type textMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type textRequest struct {
	Model string `json:"model"`
	Input struct {
		Messages []textMessage `json:"messages"`
	} `json:"input"`
	Parameters struct {
		Temperature  float64 `json:"temperature"`
		ResultFormat string  `json:"result_format"`
	} `json:"parameters"`
}

type visionContent struct {
	Text  string `json:"text,omitempty"`
	Image string `json:"image,omitempty"`
}

type visionMessage struct {
	Role    string          `json:"role"`
	Content []visionContent `json:"content"`
}

type visionRequest struct {
	Model string `json:"model"`
	Input struct {
		Messages []visionMessage `json:"messages"`
	} `json:"input"`
	Parameters struct {
		MaxTokens   int     `json:"max_tokens"`
		Temperature float64 `json:"temperature"`
	} `json:"parameters"`
}

type apiResponse struct {
	Output struct {
		Text    string `json:"text"`
		Choices []struct {
			Message struct {
				Content json.RawMessage `json:"content"`
			} `json:"message"`
		} `json:"choices"`
	} `json:"output"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

// GenerateText sends a system/user prompt pair to the text model.
func (c *DashScopeClient) GenerateText(ctx context.Context, system, user string) (string, error) {
	req := textRequest{Model: c.cfg.TextModel}
	req.Input.Messages = []textMessage{
		{Role: "system", Content: system},
		{Role: "user", Content: user},
	}
	req.Parameters.Temperature = 0.3
	req.Parameters.ResultFormat = "message"

	resp, err := c.postWithRetry(ctx, textGenerationPath, req)
	if err != nil {
		return "", err
	}

	content := extractContent(resp)
	if content == "" {
		return "", fmt.Errorf("empty model response")
	}
	return content, nil
}

// ClassifyFocus classifies a screenshot against the work goal using
// the vision model.
func (c *DashScopeClient) ClassifyFocus(ctx context.Context, artifact domain.Artifact, workContext string) (*domain.Classification, error) {
	image, err := os.ReadFile(artifact.Path)
	if err != nil {
		return nil, fmt.Errorf("read screenshot: %w", err)
	}
	encoded := base64.StdEncoding.EncodeToString(image)

	req := visionRequest{Model: c.cfg.VisionModel}
	req.Input.Messages = []visionMessage{{
		Role: "user",
		Content: []visionContent{
			{Text: fmt.Sprintf(classifyPromptFormat, workContext)},
			{Image: "data:image/png;base64," + encoded},
		},
	}}
	req.Parameters.MaxTokens = 80
	req.Parameters.Temperature = 0.0

	resp, err := c.postWithRetry(ctx, visionGenerationPath, req)
	if err != nil {
		return nil, err
	}

	content := extractContent(resp)
	if content == "" {
		return nil, fmt.Errorf("empty model response")
	}
	return ParseClassification(content), nil
}

// postWithRetry posts JSON with bounded retries and exponential
// backoff between attempts.
func (c *DashScopeClient) postWithRetry(ctx context.Context, path string, payload any) (*apiResponse, error) {
	if !c.IsConfigured() {
		return nil, fmt.Errorf("dashscope api key not configured")
	}

	var lastErr error
	for attempt := 0; attempt <= c.cfg.MaxRetries; attempt++ {
		if attempt > 0 {
			backoff := time.Duration(1<<uint(attempt-1)) * time.Second
			c.logger.Warn("dashscope request failed, retrying",
				zap.Int("attempt", attempt),
				zap.Duration("backoff", backoff),
				zap.Error(lastErr))
			select {
			case <-time.After(backoff):
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		}

		resp, err := c.post(ctx, path, payload)
		if err == nil {
			return resp, nil
		}
		lastErr = err
		if ctx.Err() != nil {
			return nil, lastErr
		}
	}
	return nil, lastErr
}

func (c *DashScopeClient) post(ctx context.Context, path string, payload any) (*apiResponse, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL+path, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("api error %d: %s", resp.StatusCode, string(respBody))
	}

	var apiResp apiResponse
	if err := json.Unmarshal(respBody, &apiResp); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	if apiResp.Code != "" {
		return nil, fmt.Errorf("api error %s: %s", apiResp.Code, apiResp.Message)
	}
	return &apiResp, nil
}

// extractContent pulls the model text from either response shape:
// output.text, a string choice content, or a vision content array.
func extractContent(resp *apiResponse) string {
	if resp.Output.Text != "" {
		return strings.TrimSpace(resp.Output.Text)
	}
	if len(resp.Output.Choices) == 0 {
		return ""
	}
	raw := resp.Output.Choices[0].Message.Content

	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return strings.TrimSpace(s)
	}
	var parts []struct {
		Text string `json:"text"`
	}
	if err := json.Unmarshal(raw, &parts); err == nil && len(parts) > 0 {
		return strings.TrimSpace(parts[0].Text)
	}
	return ""
}

// ParseClassification turns a raw model reply into a classification.
// Handles fenced JSON and falls back to label scanning; anything
// unrecognized becomes an unclear verdict.
func ParseClassification(raw string) *domain.Classification {
	clean := stripCodeFence(strings.TrimSpace(raw))

	var parsed struct {
		Status string `json:"status"`
		Reason string `json:"reason"`
	}
	if err := json.Unmarshal([]byte(clean), &parsed); err == nil {
		if label, ok := labelFromStatus(parsed.Status); ok {
			return &domain.Classification{Label: label, Reason: strings.TrimSpace(parsed.Reason)}
		}
	}

	lower := strings.ToLower(clean)
	switch {
	case strings.Contains(lower, "semi_distracted") || strings.Contains(lower, "semi-distracted"):
		return &domain.Classification{Label: domain.LabelSemiDistracted, Reason: "no structured verdict"}
	case strings.Contains(lower, "distracted"):
		return &domain.Classification{Label: domain.LabelDistracted, Reason: "no structured verdict"}
	case strings.Contains(lower, "focused"):
		return &domain.Classification{Label: domain.LabelFocused, Reason: "no structured verdict"}
	}
	return &domain.Classification{Label: domain.LabelUnclear, Reason: "unparseable model response"}
}

func labelFromStatus(status string) (domain.FocusLabel, bool) {
	switch strings.TrimSpace(strings.ToLower(status)) {
	case "focused":
		return domain.LabelFocused, true
	case "semi_distracted", "semi-distracted":
		return domain.LabelSemiDistracted, true
	case "distracted":
		return domain.LabelDistracted, true
	}
	return domain.LabelUnclear, false
}

func stripCodeFence(s string) string {
	if strings.HasPrefix(s, "```json") {
		s = strings.TrimSpace(strings.TrimPrefix(s, "```json"))
	} else if strings.HasPrefix(s, "```") {
		s = strings.TrimSpace(strings.TrimPrefix(s, "```"))
	}
	s = strings.TrimSuffix(s, "```")
	return strings.TrimSpace(s)
}

var (
	_ domain.TextGenerator   = (*DashScopeClient)(nil)
	_ domain.FocusClassifier = (*DashScopeClient)(nil)
)
