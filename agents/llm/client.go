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

	"go.uber.org/zap"

	"github.com/veritas-ai/veritas/agents"
	"github.com/veritas-ai/veritas/types"
)

// Config configures the chat-completions backed agent client.
type Config struct {
	// Base URL of the OpenAI-compatible endpoint
	BaseURL string `yaml:"base_url" env:"BASE_URL"`
	// API key sent as a Bearer token
	APIKey string `yaml:"api_key" env:"API_KEY"`
	// Model name
	Model string `yaml:"model" env:"MODEL"`
	// Sampling temperature
	Temperature float32 `yaml:"temperature" env:"TEMPERATURE"`
	// Max completion tokens per call
	MaxTokens int `yaml:"max_tokens" env:"MAX_TOKENS"`
	// HTTP client timeout; per-call deadlines come from the caller's context
	Timeout time.Duration `yaml:"timeout" env:"TIMEOUT"`
}

// DefaultConfig returns sensible defaults for the agent client.
func DefaultConfig() Config {
	return Config{
		BaseURL:     "https://api.openai.com",
		Model:       "gpt-4o-mini",
		Temperature: 0.2,
		MaxTokens:   1024,
		Timeout:     60 * time.Second,
	}
}

// Client implements agents.Client against an OpenAI-compatible
// chat-completions API. Structured capabilities (verify) instruct the
// model to answer with a JSON object and parse it strictly.
type Client struct {
	cfg    Config
	client *http.Client
	logger *zap.Logger
}

// NewClient creates an agent client.
func NewClient(cfg Config, logger *zap.Logger) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultConfig().BaseURL
	}
	if cfg.Model == "" {
		cfg.Model = DefaultConfig().Model
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = DefaultConfig().Timeout
	}
	if cfg.MaxTokens == 0 {
		cfg.MaxTokens = DefaultConfig().MaxTokens
	}
	return &Client{
		cfg:    cfg,
		client: &http.Client{Timeout: cfg.Timeout},
		logger: logger.With(zap.String("component", "agent_client")),
	}
}

var _ agents.Client = (*Client)(nil)

// chat wire types (OpenAI-compatible)

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float32       `json:"temperature,omitempty"`
	MaxTokens   int           `json:"max_tokens,omitempty"`
}

type chatChoice struct {
	Message      chatMessage `json:"message"`
	FinishReason string      `json:"finish_reason,omitempty"`
}

type chatResponse struct {
	ID      string       `json:"id"`
	Choices []chatChoice `json:"choices"`
	Error   *struct {
		Message string `json:"message"`
		Type    string `json:"type"`
	} `json:"error,omitempty"`
}

// Generate produces a sourced answer for the query given the retrieved context.
func (c *Client) Generate(ctx context.Context, in agents.GenerateInput) (*agents.Generated, error) {
	system := "You are a domain research assistant. Answer the question using only the provided context. Cite which context passages support each claim. If the context is insufficient, say so."
	user := fmt.Sprintf("Context:\n%s\n\nQuestion: %s", in.Context, in.Query)

	text, err := c.complete(ctx, "generate", system, user)
	if err != nil {
		return nil, err
	}
	return &agents.Generated{
		Text:     text,
		Metadata: map[string]string{"model": c.cfg.Model},
	}, nil
}

// verifyPayload is the JSON object the verifier is instructed to return.
type verifyPayload struct {
	Vote           string   `json:"vote"`
	Confidence     float64  `json:"confidence"`
	Issues         []string `json:"issues"`
	SafetyConcerns []string `json:"safety_concerns"`
}

// Verify judges a candidate response and returns a structured verdict.
func (c *Client) Verify(ctx context.Context, in agents.VerifyInput) (*agents.Verified, error) {
	system := `You are a strict verifier of research answers. Check the response against the context for factual support, completeness, and safety. Reply with a single JSON object: {"vote":"approve"|"reject","confidence":0.0-1.0,"issues":[...],"safety_concerns":[...]}.`
	user := fmt.Sprintf("Context:\n%s\n\nQuestion: %s\n\nResponse:\n%s", in.Context, in.Query, in.Response)

	text, err := c.complete(ctx, "verify", system, user)
	if err != nil {
		return nil, err
	}

	var payload verifyPayload
	if err := json.Unmarshal([]byte(extractJSONObject(text)), &payload); err != nil {
		return nil, types.NewError(types.ErrAgentFailure, "verifier returned unparseable verdict").
			WithStage("verify").WithCause(err)
	}

	vote := agents.VoteReject
	if strings.EqualFold(payload.Vote, string(agents.VoteApprove)) {
		vote = agents.VoteApprove
	}
	if payload.Confidence < 0 {
		payload.Confidence = 0
	}
	if payload.Confidence > 1 {
		payload.Confidence = 1
	}
	return &agents.Verified{
		Vote:           vote,
		Confidence:     payload.Confidence,
		Issues:         payload.Issues,
		SafetyConcerns: payload.SafetyConcerns,
	}, nil
}

// reformPayload is the JSON object the reformer is instructed to return.
type reformPayload struct {
	Text        string   `json:"text"`
	Sources     []string `json:"sources"`
	SafetyNotes string   `json:"safety_notes"`
}

// Reform rewrites a response to address the verifier's findings. A
// model that ignores the JSON instruction and answers in prose still
// yields a usable rewrite with empty sources and safety notes.
func (c *Client) Reform(ctx context.Context, in agents.ReformInput) (*agents.Reformed, error) {
	system := `You revise research answers. Rewrite the response so it fixes every issue raised by the verifier while staying grounded in the context. Keep citations. Reply with a single JSON object: {"text":"...","sources":["..."],"safety_notes":"..."}.`
	user := fmt.Sprintf("Context:\n%s\n\nQuestion: %s\n\nPrevious response:\n%s\n\nVerifier findings:\n%s",
		in.Context, in.Query, in.Response, in.VerifierAnalysis)

	text, err := c.complete(ctx, "reform", system, user)
	if err != nil {
		return nil, err
	}

	var payload reformPayload
	if err := json.Unmarshal([]byte(extractJSONObject(text)), &payload); err != nil || payload.Text == "" {
		return &agents.Reformed{Text: text}, nil
	}
	return &agents.Reformed{
		Text:        payload.Text,
		Sources:     payload.Sources,
		SafetyNotes: payload.SafetyNotes,
	}, nil
}

// Translate renders the final answer in the target language.
func (c *Client) Translate(ctx context.Context, in agents.TranslateInput) (*agents.Translated, error) {
	system := fmt.Sprintf("Translate the text from %s to %s. Preserve technical terminology and citations. Output only the translation.",
		in.SourceLanguage, in.TargetLanguage)

	text, err := c.complete(ctx, "translate", system, in.Text)
	if err != nil {
		return nil, err
	}
	return &agents.Translated{Text: text}, nil
}

// complete issues one chat-completions call and returns the first choice.
func (c *Client) complete(ctx context.Context, capability, system, user string) (string, error) {
	reqBody := chatRequest{
		Model: c.cfg.Model,
		Messages: []chatMessage{
			{Role: "system", Content: system},
			{Role: "user", Content: user},
		},
		Temperature: c.cfg.Temperature,
		MaxTokens:   c.cfg.MaxTokens,
	}

	data, err := json.Marshal(reqBody)
	if err != nil {
		return "", types.NewError(types.ErrAgentFailure, "failed to encode request").
			WithStage(capability).WithCause(err)
	}

	endpoint := strings.TrimRight(c.cfg.BaseURL, "/") + "/v1/chat/completions"
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(data))
	if err != nil {
		return "", types.NewError(types.ErrAgentFailure, "failed to build request").
			WithStage(capability).WithCause(err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if c.cfg.APIKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
	}

	start := time.Now()
	resp, err := c.client.Do(httpReq)
	if err != nil {
		return "", types.NewError(types.ErrAgentFailure, "agent call failed").
			WithStage(capability).WithCause(err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return "", types.NewError(types.ErrAgentFailure, "failed to read response").
			WithStage(capability).WithCause(err)
	}

	if resp.StatusCode != http.StatusOK {
		return "", c.mapHTTPError(capability, resp.StatusCode, body)
	}

	var chat chatResponse
	if err := json.Unmarshal(body, &chat); err != nil {
		return "", types.NewError(types.ErrAgentFailure, "failed to decode response").
			WithStage(capability).WithCause(err)
	}
	if len(chat.Choices) == 0 {
		return "", types.NewError(types.ErrAgentFailure, "agent returned no choices").
			WithStage(capability)
	}

	c.logger.Debug("agent call completed",
		zap.String("capability", capability),
		zap.Duration("latency", time.Since(start)),
	)

	return strings.TrimSpace(chat.Choices[0].Message.Content), nil
}

// mapHTTPError converts an upstream HTTP failure to a structured error.
// Retryable is set for throttling and server-side classes so callers
// that do retry (none of the agent stages do) can tell them apart.
func (c *Client) mapHTTPError(capability string, status int, body []byte) *types.Error {
	msg := fmt.Sprintf("agent upstream returned status %d", status)
	var chat chatResponse
	if err := json.Unmarshal(body, &chat); err == nil && chat.Error != nil {
		msg = chat.Error.Message
	}

	retryable := status == http.StatusTooManyRequests ||
		status == http.StatusRequestTimeout ||
		status >= http.StatusInternalServerError

	return types.NewError(types.ErrAgentFailure, msg).
		WithStage(capability).
		WithHTTPStatus(status).
		WithRetryable(retryable)
}

// extractJSONObject pulls the outermost JSON object out of a model
// reply, tolerating markdown fences and surrounding prose.
func extractJSONObject(text string) string {
	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start < 0 || end <= start {
		return text
	}
	return text[start : end+1]
}
