package genai

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"oracle/internal/domain"
	"oracle/internal/infra"
)

const (
	DefaultBaseURL = "https://generativelanguage.googleapis.com/v1beta"
	DefaultModel   = "gemini-2.5-flash"
)

// Options controls how the Gemini client is configured.
type Options struct {
	BaseURL     string
	Model       string
	Credentials domain.CredentialSource
	HTTPClient  *http.Client
	Limiter     *rate.Limiter
	Logger      *infra.Logger
}

// Caller is the single-call contract shared by *Client and test stubs.
type Caller interface {
	Call(ctx context.Context, req Request) (*Result, error)
}

// Client is the single boundary to Gemini. Each call performs at most one
// round trip; retries and fallbacks belong to callers.
type Client struct {
	baseURL    string
	model      string
	creds      domain.CredentialSource
	httpClient *http.Client
	limiter    *rate.Limiter
	logger     *infra.Logger
}

// NewClient constructs a Gemini client with sane defaults. Callers may provide
// a nil HTTP client; a reusable one with sensible timeouts will be created.
func NewClient(opts Options) (*Client, error) {
	if opts.Credentials == nil {
		return nil, errors.New("genai: credential source is required")
	}
	client := opts.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: 120 * time.Second}
	}

	baseURL := strings.TrimRight(opts.BaseURL, "/")
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}

	model := opts.Model
	if model == "" {
		model = DefaultModel
	}

	return &Client{
		baseURL:    baseURL,
		model:      model,
		creds:      opts.Credentials,
		httpClient: client,
		limiter:    opts.Limiter,
		logger:     infra.LoggerOrDiscard(opts.Logger),
	}, nil
}

// Model returns the default model identifier.
func (c *Client) Model() string {
	return c.model
}

// APIKey returns the credential currently in the store. Missing keys report
// domain.ErrCredentialMissing.
func (c *Client) APIKey(ctx context.Context) (string, error) {
	key, err := c.creds.APIKey(ctx)
	if err != nil {
		return "", fmt.Errorf("genai: read credential: %w", err)
	}
	key = strings.TrimSpace(key)
	if key == "" {
		return "", domain.ErrCredentialMissing
	}
	return key, nil
}

// Call performs exactly one generateContent round trip.
func (c *Client) Call(ctx context.Context, req Request) (*Result, error) {
	model := c.modelFor(req)
	payload, err := encodeRequest(req)
	if err != nil {
		return nil, err
	}

	var response geminiGenerateContentResponse
	path := fmt.Sprintf("/models/%s:generateContent", url.PathEscape(model))
	if err := c.invoke(ctx, http.MethodPost, path, nil, payload, &response); err != nil {
		c.logger.Debug().Err(err).Str("model", model).Msg("genai: generate content failed")
		return nil, err
	}

	return decodeResponse(model, &response), nil
}

func (c *Client) modelFor(req Request) string {
	if m := strings.TrimSpace(req.Model); m != "" {
		return m
	}
	return c.model
}

// prepare resolves the key and waits on the limiter. It never touches the
// network.
func (c *Client) prepare(ctx context.Context) (string, error) {
	key, err := c.APIKey(ctx)
	if err != nil {
		return "", err
	}
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return "", fmt.Errorf("genai: rate limit wait: %w", err)
		}
	}
	return key, nil
}

func (c *Client) newRequest(ctx context.Context, method, path string, query url.Values, payload any) (*http.Request, error) {
	key, err := c.prepare(ctx)
	if err != nil {
		return nil, err
	}

	endpoint := c.baseURL + "/" + strings.TrimLeft(path, "/")
	var body io.Reader
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("marshal request: %w", err)
		}
		body = bytes.NewReader(raw)
	}
	httpReq, err := http.NewRequestWithContext(ctx, method, endpoint, body)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	q := httpReq.URL.Query()
	for k, vs := range query {
		for _, v := range vs {
			q.Add(k, v)
		}
	}
	q.Set("key", key)
	httpReq.URL.RawQuery = q.Encode()
	if payload != nil {
		httpReq.Header.Set("Content-Type", "application/json")
	}
	return httpReq, nil
}

func (c *Client) do(httpReq *http.Request) (*http.Response, error) {
	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		if ctxErr := httpReq.Context().Err(); ctxErr != nil {
			return nil, fmt.Errorf("invoke gemini: %w", ctxErr)
		}
		return nil, fmt.Errorf("invoke gemini: %w: %v", domain.ErrUpstreamUnavailable, err)
	}
	if resp.StatusCode >= http.StatusBadRequest {
		defer resp.Body.Close()
		return nil, decodeAPIError(resp)
	}
	return resp, nil
}

func (c *Client) invoke(ctx context.Context, method, path string, query url.Values, payload any, out any) error {
	httpReq, err := c.newRequest(ctx, method, path, query, payload)
	if err != nil {
		return err
	}
	resp, err := c.do(httpReq)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode gemini response: %w: %v", domain.ErrMalformedResponse, err)
	}
	return nil
}

func decodeAPIError(resp *http.Response) error {
	data, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	var apiErr geminiErrorResponse
	if err := json.Unmarshal(data, &apiErr); err == nil && apiErr.Error.Message != "" {
		return classifyStatus(resp.StatusCode, apiErr.Error.Message)
	}
	return classifyStatus(resp.StatusCode, string(data))
}

func encodeRequest(req Request) (*geminiGenerateContentRequest, error) {
	if len(req.Messages) == 0 {
		return nil, errors.New("genai: request has no messages")
	}
	payload := &geminiGenerateContentRequest{
		Contents: make([]geminiContent, 0, len(req.Messages)),
	}
	for _, m := range req.Messages {
		role := m.Role
		if role == "" {
			role = RoleUser
		}
		content := geminiContent{Role: role, Parts: make([]geminiPart, 0, len(m.Parts))}
		for _, p := range m.Parts {
			content.Parts = append(content.Parts, encodePart(p))
		}
		payload.Contents = append(payload.Contents, content)
	}
	if s := strings.TrimSpace(req.SystemInstruction); s != "" {
		payload.SystemInstruction = &geminiContent{Parts: []geminiPart{{Text: s}}}
	}
	if req.GoogleSearch {
		payload.Tools = []geminiTool{{GoogleSearch: &struct{}{}}}
	}

	cfg := &geminiGenerationConfig{
		ResponseMimeType: req.ResponseMIMEType,
		ResponseSchema:   req.ResponseSchema,
	}
	if len(req.ResponseModalities) > 0 {
		cfg.ResponseModalities = append([]string(nil), req.ResponseModalities...)
	}
	if req.ImageConfig != nil {
		cfg.ImageConfig = &geminiImageConfig{
			AspectRatio: req.ImageConfig.AspectRatio,
			ImageSize:   req.ImageConfig.ImageSize,
		}
	}
	if cfg.ResponseMimeType != "" || len(cfg.ResponseSchema) > 0 || cfg.ResponseModalities != nil || cfg.ImageConfig != nil {
		payload.GenerationConfig = cfg
	}
	return payload, nil
}

func encodePart(p Part) geminiPart {
	if p.InlineData != nil {
		return geminiPart{InlineData: &geminiInlineData{
			MimeType: p.InlineData.MIMEType,
			Data:     base64.StdEncoding.EncodeToString(p.InlineData.Data),
		}}
	}
	return geminiPart{Text: p.Text}
}

func decodeResponse(model string, resp *geminiGenerateContentResponse) *Result {
	result := &Result{Model: model}
	if resp.PromptFeedback != nil && resp.PromptFeedback.BlockReason != "" {
		result.FinishReason = resp.PromptFeedback.BlockReason
	}
	if len(resp.Candidates) == 0 {
		return result
	}
	candidate := resp.Candidates[0]
	if candidate.FinishReason != "" {
		result.FinishReason = candidate.FinishReason
	}

	var text strings.Builder
	for _, part := range candidate.Content.Parts {
		if part.Text != "" {
			text.WriteString(part.Text)
			result.Parts = append(result.Parts, Part{Text: part.Text})
			continue
		}
		if part.InlineData != nil && part.InlineData.Data != "" {
			data, err := base64.StdEncoding.DecodeString(part.InlineData.Data)
			if err != nil {
				continue
			}
			result.Parts = append(result.Parts, Part{InlineData: &InlineData{
				MIMEType: part.InlineData.MimeType,
				Data:     data,
			}})
		}
	}
	result.Text = text.String()
	result.Citations = citations(candidate.GroundingMetadata)
	return result
}

func citations(meta *geminiGroundingMetadata) []domain.Citation {
	if meta == nil {
		return nil
	}
	var out []domain.Citation
	for _, chunk := range meta.GroundingChunks {
		switch {
		case chunk.Web != nil && chunk.Web.URI != "":
			out = append(out, domain.Citation{Title: firstNonEmpty(chunk.Web.Title, "Web Source"), URI: chunk.Web.URI})
		case chunk.Maps != nil && chunk.Maps.URI != "":
			out = append(out, domain.Citation{Title: firstNonEmpty(chunk.Maps.Title, "Google Maps"), URI: chunk.Maps.URI})
		}
	}
	return out
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}

// StaticKey is a CredentialSource that always returns the same key.
type StaticKey string

func (k StaticKey) APIKey(context.Context) (string, error) {
	return string(k), nil
}

var _ Caller = (*Client)(nil)
