package oracle

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
	"github.com/openai/openai-go/v3/shared"

	"github.com/jackzampolin/binder/internal/sections"
)

const defaultOpenAIModel = "gpt-4o"

// OpenAIConfig configures the OpenAI-compatible client. BaseURL may point
// at any chat-completions compatible endpoint.
type OpenAIConfig struct {
	APIKey            string
	BaseURL           string
	Model             string
	Timeout           time.Duration
	MaxRetries        int
	RequestsPerMinute int
}

// OpenAIClient classifies pages through a chat-completions API. The SDK
// handles transport-level retries; auth failures map to ErrAuth like every
// other client.
type OpenAIClient struct {
	client  openai.Client
	model   string
	limiter *RateLimiter
	budget  Budget
	log     *slog.Logger
}

// NewOpenAIClient builds the client. Zero config fields fall back to
// defaults.
func NewOpenAIClient(cfg OpenAIConfig) *OpenAIClient {
	if cfg.Model == "" {
		cfg.Model = defaultOpenAIModel
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultHTTPTimeout
	}
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = defaultMaxRetries
	}
	httpClient := &http.Client{Timeout: cfg.Timeout}
	opts := []option.RequestOption{
		option.WithAPIKey(cfg.APIKey),
		option.WithHTTPClient(httpClient),
		option.WithMaxRetries(cfg.MaxRetries),
	}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}
	return &OpenAIClient{
		client:  openai.NewClient(opts...),
		model:   cfg.Model,
		limiter: NewRateLimiter(cfg.RequestsPerMinute),
		log:     slog.With("component", "oracle", "client", "openai"),
	}
}

func (c *OpenAIClient) Name() string    { return "openai" }
func (c *OpenAIClient) Budget() *Budget { return &c.budget }

// ClassifyBatch renders the batch prompt and sends it as a single user
// message.
func (c *OpenAIClient) ClassifyBatch(ctx context.Context, req *BatchRequest) ([]sections.PageLabel, error) {
	prompt, err := ClassifyPrompt(req)
	if err != nil {
		return nil, err
	}
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}
	c.budget.RecordAsk()
	resp, err := c.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model:    shared.ChatModel(c.pick(req.Model)),
		Messages: []openai.ChatCompletionMessageParamUnion{openai.UserMessage(prompt)},
	})
	if err != nil {
		c.budget.RecordFailure()
		return nil, fmt.Errorf("ask %s: %w", req.Batch, c.mapErr(err))
	}
	if len(resp.Choices) == 0 {
		c.budget.RecordFailure()
		return nil, fmt.Errorf("ask %s: empty completion", req.Batch)
	}
	return NormalizeBatch(req.Batch, ParseReply(resp.Choices[0].Message.Content)), nil
}

// ClassifyPage sends the page scan as an image content part.
func (c *OpenAIClient) ClassifyPage(ctx context.Context, req *PageRequest) (sections.PageLabel, error) {
	prompt, err := VisionPrompt(req.Page)
	if err != nil {
		return sections.PageLabel{Page: req.Page}, err
	}
	if err := c.limiter.Wait(ctx); err != nil {
		return sections.PageLabel{Page: req.Page}, err
	}
	c.budget.RecordVision()
	mime := req.MIME
	if mime == "" {
		mime = "image/png"
	}
	dataURL := fmt.Sprintf("data:%s;base64,%s", mime, base64.StdEncoding.EncodeToString(req.Image))
	resp, err := c.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model: shared.ChatModel(c.pick(req.Model)),
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.UserMessage([]openai.ChatCompletionContentPartUnionParam{
				openai.TextContentPart(prompt),
				openai.ImageContentPart(openai.ChatCompletionContentPartImageImageURLParam{URL: dataURL}),
			}),
		},
	})
	if err != nil {
		c.budget.RecordFailure()
		return sections.PageLabel{Page: req.Page}, fmt.Errorf("vision page %d: %w", req.Page+1, c.mapErr(err))
	}
	if len(resp.Choices) == 0 {
		c.budget.RecordFailure()
		return sections.PageLabel{Page: req.Page}, fmt.Errorf("vision page %d: empty completion", req.Page+1)
	}
	label := ParseVisionReply(req.Page, resp.Choices[0].Message.Content)
	label.Source = sections.SourceVision
	return label, nil
}

func (c *OpenAIClient) pick(override string) string {
	if override != "" {
		return override
	}
	return c.model
}

// mapErr folds SDK errors into the shared taxonomy so callers can test
// errors.Is(err, ErrAuth) regardless of client.
func (c *OpenAIClient) mapErr(err error) error {
	var apiErr *openai.Error
	if errors.As(err, &apiErr) {
		if apiErr.StatusCode == http.StatusUnauthorized || apiErr.StatusCode == http.StatusForbidden {
			return fmt.Errorf("status %d: %w", apiErr.StatusCode, ErrAuth)
		}
	}
	return err
}

var _ VisionClient = (*OpenAIClient)(nil)
