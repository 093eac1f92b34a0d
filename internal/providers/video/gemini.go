// Package video drives long-running Veo generations to completion.
package video

import (
	"context"
	"errors"
	"fmt"
	"time"

	"oracle/internal/domain"
	"oracle/internal/providers/genai"
)

// ErrNoOutput means the operation finished without a video reference.
var ErrNoOutput = errors.New("video: operation completed without output")

// Client is the part of the Gemini client video generation needs.
type Client interface {
	SubmitVideo(ctx context.Context, req genai.VideoRequest) (*genai.Operation, error)
	PollVideo(ctx context.Context, op *genai.Operation) (*genai.Operation, error)
	APIKey(ctx context.Context) (string, error)
}

// Asset is a finished video reachable at URL.
type Asset struct {
	URL       string
	MIME      string
	Operation string
}

// Hooks observe the generation. Submitted runs once after the provider
// accepts the job, Polled after every status check including the last.
type Hooks struct {
	Submitted func(op *genai.Operation)
	Polled    func(op *genai.Operation)
}

type Options struct {
	Client       Client
	PollInterval time.Duration
	// PollTimeout bounds the whole poll loop; zero polls forever.
	PollTimeout time.Duration
}

type GeminiGenerator struct {
	client   Client
	interval time.Duration
	timeout  time.Duration
	after    func(time.Duration) <-chan time.Time
}

func NewGeminiGenerator(opts Options) *GeminiGenerator {
	interval := opts.PollInterval
	if interval <= 0 {
		interval = 10 * time.Second
	}
	return &GeminiGenerator{
		client:   opts.Client,
		interval: interval,
		timeout:  opts.PollTimeout,
		after:    time.After,
	}
}

// Generate submits req, polls until the operation is done and returns the
// output URL with the caller's credential appended.
func (g *GeminiGenerator) Generate(ctx context.Context, req genai.VideoRequest, hooks Hooks) (*Asset, error) {
	op, err := g.client.SubmitVideo(ctx, req)
	if err != nil {
		return nil, err
	}
	if hooks.Submitted != nil {
		hooks.Submitted(op)
	}

	var deadline <-chan time.Time
	if g.timeout > 0 {
		deadline = g.after(g.timeout)
	}
	for !op.Done {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-deadline:
			return nil, fmt.Errorf("video: operation %s still running after %s: %w", op.Name, g.timeout, domain.ErrTimeout)
		case <-g.after(g.interval):
		}
		next, err := g.client.PollVideo(ctx, op)
		if err != nil {
			return nil, err
		}
		op = next
		if hooks.Polled != nil {
			hooks.Polled(op)
		}
	}

	if op.VideoURI == "" {
		return nil, fmt.Errorf("%w (%s)", ErrNoOutput, op.Name)
	}
	key, err := g.client.APIKey(ctx)
	if err != nil {
		return nil, err
	}
	url, err := genai.WithKey(op.VideoURI, key)
	if err != nil {
		return nil, err
	}
	return &Asset{URL: url, MIME: "video/mp4", Operation: op.Name}, nil
}
