package oracle

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/avast/retry-go/v4"

	"github.com/jackzampolin/binder/internal/sections"
)

const (
	defaultHTTPTimeout = 120 * time.Second
	defaultMaxRetries  = 4
	defaultRetryDelay  = time.Second
	maxRetryDelay      = 30 * time.Second
)

// HTTPConfig configures the gateway client.
type HTTPConfig struct {
	BaseURL           string
	APIKey            string
	Model             string
	Timeout           time.Duration
	MaxRetries        int
	RetryDelay        time.Duration
	RequestsPerMinute int
}

func (c HTTPConfig) withDefaults() HTTPConfig {
	c.BaseURL = strings.TrimRight(c.BaseURL, "/")
	if c.Timeout <= 0 {
		c.Timeout = defaultHTTPTimeout
	}
	if c.MaxRetries <= 0 {
		c.MaxRetries = defaultMaxRetries
	}
	if c.RetryDelay <= 0 {
		c.RetryDelay = defaultRetryDelay
	}
	return c
}

// HTTPClient talks to a classification gateway exposing POST /ask for text
// batches and POST /process-pdf for single page images, authenticated with
// a bearer token. Transient failures are retried with exponential backoff
// and jitter; credential rejections abort immediately with ErrAuth.
type HTTPClient struct {
	cfg     HTTPConfig
	client  *http.Client
	limiter *RateLimiter
	budget  Budget
	log     *slog.Logger
}

// NewHTTPClient builds a gateway client. Zero config fields fall back to
// defaults; BaseURL and APIKey are the caller's responsibility.
func NewHTTPClient(cfg HTTPConfig) *HTTPClient {
	cfg = cfg.withDefaults()
	return &HTTPClient{
		cfg:     cfg,
		client:  &http.Client{Timeout: cfg.Timeout},
		limiter: NewRateLimiter(cfg.RequestsPerMinute),
		log:     slog.With("component", "oracle", "client", "http"),
	}
}

func (c *HTTPClient) Name() string    { return "http" }
func (c *HTTPClient) Budget() *Budget { return &c.budget }

type askRequest struct {
	Query string `json:"query"`
	Model string `json:"model,omitempty"`
}

type visionRequest struct {
	PDFPage string `json:"pdfPage"`
	Prompt  string `json:"prompt"`
	Model   string `json:"model,omitempty"`
}

type gatewayResponse struct {
	Result string `json:"result"`
}

// ClassifyBatch renders the batch prompt, posts it to /ask and normalizes
// the reply to the batch's primary pages.
func (c *HTTPClient) ClassifyBatch(ctx context.Context, req *BatchRequest) ([]sections.PageLabel, error) {
	prompt, err := ClassifyPrompt(req)
	if err != nil {
		return nil, err
	}
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}
	c.budget.RecordAsk()
	reply, err := c.post(ctx, "/ask", askRequest{Query: prompt, Model: c.model(req.Model)})
	if err != nil {
		c.budget.RecordFailure()
		return nil, fmt.Errorf("ask %s: %w", req.Batch, err)
	}
	return NormalizeBatch(req.Batch, ParseReply(reply)), nil
}

// ClassifyPage posts one page image to /process-pdf.
func (c *HTTPClient) ClassifyPage(ctx context.Context, req *PageRequest) (sections.PageLabel, error) {
	prompt, err := VisionPrompt(req.Page)
	if err != nil {
		return sections.PageLabel{Page: req.Page}, err
	}
	if err := c.limiter.Wait(ctx); err != nil {
		return sections.PageLabel{Page: req.Page}, err
	}
	c.budget.RecordVision()
	reply, err := c.post(ctx, "/process-pdf", visionRequest{
		PDFPage: base64.StdEncoding.EncodeToString(req.Image),
		Prompt:  prompt,
		Model:   c.model(req.Model),
	})
	if err != nil {
		c.budget.RecordFailure()
		return sections.PageLabel{Page: req.Page}, fmt.Errorf("vision page %d: %w", req.Page+1, err)
	}
	label := ParseVisionReply(req.Page, reply)
	label.Source = sections.SourceVision
	return label, nil
}

func (c *HTTPClient) model(override string) string {
	if override != "" {
		return override
	}
	return c.cfg.Model
}

// post sends one JSON request with retries and returns the reply text.
func (c *HTTPClient) post(ctx context.Context, path string, payload any) (string, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("marshal request: %w", err)
	}

	var result string
	err = retry.Do(
		func() error {
			req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL+path, bytes.NewReader(body))
			if err != nil {
				return retry.Unrecoverable(err)
			}
			req.Header.Set("Content-Type", "application/json")
			req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)

			resp, err := c.client.Do(req)
			if err != nil {
				return fmt.Errorf("request failed: %w", err)
			}
			respBody, err := io.ReadAll(resp.Body)
			resp.Body.Close()
			if err != nil {
				return fmt.Errorf("read response: %w", err)
			}

			switch {
			case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
				return retry.Unrecoverable(fmt.Errorf("status %d: %w", resp.StatusCode, ErrAuth))
			case resp.StatusCode == http.StatusTooManyRequests:
				c.limiter.Backpressure()
				return fmt.Errorf("rate limited (status 429): %s", truncateBody(respBody))
			case shouldRetryStatus(resp.StatusCode):
				return fmt.Errorf("gateway error (status %d): %s", resp.StatusCode, truncateBody(respBody))
			case resp.StatusCode != http.StatusOK:
				return retry.Unrecoverable(fmt.Errorf("gateway error (status %d): %s", resp.StatusCode, truncateBody(respBody)))
			}

			var reply gatewayResponse
			if err := json.Unmarshal(respBody, &reply); err != nil {
				return fmt.Errorf("decode response: %w", err)
			}
			result = reply.Result
			return nil
		},
		retry.Context(ctx),
		retry.Attempts(uint(c.cfg.MaxRetries)),
		retry.Delay(c.cfg.RetryDelay),
		retry.MaxDelay(maxRetryDelay),
		retry.DelayType(retry.CombineDelay(retry.BackOffDelay, retry.RandomDelay)),
		retry.MaxJitter(c.cfg.RetryDelay),
		retry.LastErrorOnly(true),
		retry.OnRetry(func(attempt uint, err error) {
			c.log.Warn("retrying oracle call", "path", path, "attempt", attempt+1, "error", err)
		}),
	)
	return result, err
}

// shouldRetryStatus returns true for status codes worth another attempt:
// payload and format hiccups (413, 422) and server-side errors, including
// the Cloudflare 52x range.
func shouldRetryStatus(statusCode int) bool {
	switch statusCode {
	case http.StatusRequestEntityTooLarge, http.StatusUnprocessableEntity:
		return true
	default:
		return statusCode >= 500
	}
}

func truncateBody(body []byte) string {
	const limit = 200
	s := strings.TrimSpace(string(body))
	if len(s) > limit {
		return s[:limit] + "..."
	}
	return s
}

// ParseVisionReply extracts a label for page from a single-page reply. The
// full triple format is tried first; models that answer with just
// "category, confidence" are accepted too. Anything else yields Unknown.
func ParseVisionReply(page int, text string) sections.PageLabel {
	labels := ParseReply(text)
	if len(labels) == 1 {
		labels[0].Page = page
		return labels[0]
	}
	for _, l := range labels {
		if l.Page == page {
			return l
		}
	}
	for _, line := range strings.Split(text, "\n") {
		fields := strings.Split(strings.TrimSpace(line), ",")
		if len(fields) != 2 {
			continue
		}
		cat := parseCategoryField(fields[0])
		if cat == sections.Unknown {
			continue
		}
		confStr := floatPattern.FindString(fields[1])
		if confStr == "" {
			continue
		}
		conf, err := strconv.ParseFloat(confStr, 64)
		if err != nil {
			continue
		}
		return sections.PageLabel{Page: page, Category: cat, Confidence: min(100, max(0, conf))}
	}
	return sections.PageLabel{Page: page}
}

var _ VisionClient = (*HTTPClient)(nil)
