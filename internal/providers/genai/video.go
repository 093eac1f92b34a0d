package genai

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"oracle/internal/domain"
)

const DefaultVideoModel = "veo-3.1-fast-generate-preview"

// VideoRequest starts a long-running video generation.
type VideoRequest struct {
	Model       string
	Prompt      string
	AspectRatio string
	Resolution  string
	Image       *InlineData
}

// Operation is an opaque handle to a long-running generation. Name is the
// server-side identifier polled by PollVideo.
type Operation struct {
	Name     string
	Done     bool
	VideoURI string
}

type veoImage struct {
	BytesBase64Encoded string `json:"bytesBase64Encoded"`
	MimeType           string `json:"mimeType"`
}

type veoInstance struct {
	Prompt string    `json:"prompt"`
	Image  *veoImage `json:"image,omitempty"`
}

type veoParameters struct {
	AspectRatio string `json:"aspectRatio,omitempty"`
	Resolution  string `json:"resolution,omitempty"`
	SampleCount int    `json:"sampleCount,omitempty"`
}

type veoPredictRequest struct {
	Instances  []veoInstance `json:"instances"`
	Parameters veoParameters `json:"parameters"`
}

type veoOperation struct {
	Name     string `json:"name"`
	Done     bool   `json:"done"`
	Response *struct {
		GenerateVideoResponse struct {
			GeneratedSamples []struct {
				Video struct {
					URI string `json:"uri"`
				} `json:"video"`
			} `json:"generatedSamples"`
		} `json:"generateVideoResponse"`
	} `json:"response,omitempty"`
	Error *struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

// SubmitVideo starts a video generation and returns its operation handle.
func (c *Client) SubmitVideo(ctx context.Context, req VideoRequest) (*Operation, error) {
	model := strings.TrimSpace(req.Model)
	if model == "" {
		model = DefaultVideoModel
	}
	instance := veoInstance{Prompt: req.Prompt}
	if req.Image != nil && len(req.Image.Data) > 0 {
		instance.Image = &veoImage{
			BytesBase64Encoded: base64.StdEncoding.EncodeToString(req.Image.Data),
			MimeType:           firstNonEmpty(req.Image.MIMEType, "image/png"),
		}
	}
	payload := veoPredictRequest{
		Instances: []veoInstance{instance},
		Parameters: veoParameters{
			AspectRatio: req.AspectRatio,
			Resolution:  firstNonEmpty(req.Resolution, "720p"),
			SampleCount: 1,
		},
	}

	var op veoOperation
	path := fmt.Sprintf("/models/%s:predictLongRunning", url.PathEscape(model))
	if err := c.invoke(ctx, http.MethodPost, path, nil, payload, &op); err != nil {
		return nil, err
	}
	if op.Name == "" {
		return nil, fmt.Errorf("submit video: %w: operation has no name", domain.ErrMalformedResponse)
	}
	c.logger.Debug().Str("model", model).Str("operation", op.Name).Msg("genai: video submitted")
	return toOperation(&op)
}

// PollVideo fetches the current state of a video operation.
func (c *Client) PollVideo(ctx context.Context, op *Operation) (*Operation, error) {
	if op == nil || op.Name == "" {
		return nil, errors.New("genai: poll requires an operation name")
	}
	var latest veoOperation
	if err := c.invoke(ctx, http.MethodGet, op.Name, nil, nil, &latest); err != nil {
		return nil, err
	}
	if latest.Name == "" {
		latest.Name = op.Name
	}
	return toOperation(&latest)
}

func toOperation(op *veoOperation) (*Operation, error) {
	if op.Error != nil && (op.Error.Code != 0 || op.Error.Message != "") {
		return nil, classifyStatus(op.Error.Code, op.Error.Message)
	}
	out := &Operation{Name: op.Name, Done: op.Done}
	if op.Response != nil {
		for _, s := range op.Response.GenerateVideoResponse.GeneratedSamples {
			if s.Video.URI != "" {
				out.VideoURI = s.Video.URI
				break
			}
		}
	}
	return out, nil
}

// WithKey appends key=<credential> to a download URI, preserving any
// existing query parameters.
func WithKey(uri, key string) (string, error) {
	u, err := url.Parse(uri)
	if err != nil {
		return "", fmt.Errorf("parse video uri: %w", err)
	}
	q := u.Query()
	q.Set("key", key)
	u.RawQuery = q.Encode()
	return u.String(), nil
}
