package media

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"oracle/internal/apistatus"
	"oracle/internal/domain"
	"oracle/internal/infra"
	"oracle/internal/providers/genai"
	"oracle/internal/providers/image"
	"oracle/internal/providers/video"
)

// Progress checkpoints per job type.
const (
	progressVideoQueued     = 5
	progressVideoSubmitted  = 15
	progressVideoPollStep   = 10
	progressVideoPollCap    = 90
	progressImageProcessing = 10
	progressEditProcessing  = 20
	progressAnalyzeStarted  = 25
)

var ErrInvalidRequest = errors.New("media: invalid request")

// VideoGenerator runs a video generation to completion.
type VideoGenerator interface {
	Generate(ctx context.Context, req genai.VideoRequest, hooks video.Hooks) (*video.Asset, error)
}

// Analyzer describes media bytes.
type Analyzer interface {
	AnalyzeMedia(ctx context.Context, data []byte, mimeType, instruction string) (*domain.MediaAnalysis, error)
}

// AssetWriter persists decoded image bytes and returns their public URL.
type AssetWriter interface {
	Save(ctx context.Context, prefix, mimeType string, data []byte) (key string, url string, err error)
}

type Options struct {
	Store      *Store
	Images     image.Generator
	Videos     VideoGenerator
	Analyzer   Analyzer
	Files      AssetWriter
	Recorder   domain.JobRecorder
	Monitor    *apistatus.Monitor
	VideoModel string
	// JobTimeout bounds image, edit and analysis jobs. Video jobs are bounded
	// by the generator's poll timeout.
	JobTimeout time.Duration
	Logger     *infra.Logger
}

// Manager starts jobs in the background and returns their ids immediately.
// Each job's failure is terminal for that job only; nothing is retried.
type Manager struct {
	store      *Store
	images     image.Generator
	videos     VideoGenerator
	analyzer   Analyzer
	files      AssetWriter
	recorder   domain.JobRecorder
	monitor    *apistatus.Monitor
	videoModel string
	jobTimeout time.Duration
	logger     *infra.Logger

	ctx    context.Context
	cancel context.CancelFunc
	// mu orders wg.Add in launch against Close; closed is set under it.
	mu     sync.Mutex
	closed bool
	wg     sync.WaitGroup
}

func NewManager(opts Options) *Manager {
	store := opts.Store
	if store == nil {
		store = NewStore()
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Manager{
		store:      store,
		images:     opts.Images,
		videos:     opts.Videos,
		analyzer:   opts.Analyzer,
		files:      opts.Files,
		recorder:   opts.Recorder,
		monitor:    opts.Monitor,
		videoModel: opts.VideoModel,
		jobTimeout: opts.JobTimeout,
		logger:     infra.LoggerOrDiscard(opts.Logger),
		ctx:        ctx,
		cancel:     cancel,
	}
}

func (m *Manager) Store() *Store { return m.store }

// Close cancels running jobs and waits for them to record their failure.
func (m *Manager) Close() {
	m.mu.Lock()
	m.closed = true
	m.mu.Unlock()
	m.cancel()
	m.wg.Wait()
}

// Wait blocks until every started job has reached a terminal state.
func (m *Manager) Wait() { m.wg.Wait() }

// Origin links a job to the card that requested it.
type Origin struct {
	CardID    string `json:"originating_card_id,omitempty"`
	StackType string `json:"stack_type,omitempty"`
}

type ImageRequest struct {
	Origin
	Prompt      string `json:"prompt"`
	AspectRatio string `json:"aspect_ratio,omitempty"`
	UsePro      bool   `json:"use_pro,omitempty"`
	Size        string `json:"size,omitempty"`
}

type EditRequest struct {
	Origin
	Prompt string `json:"prompt"`
	Image  []byte `json:"image"`
	MIME   string `json:"mime,omitempty"`
}

type VideoRequest struct {
	Origin
	Prompt      string `json:"prompt"`
	AspectRatio string `json:"aspect_ratio,omitempty"`
	Resolution  string `json:"resolution,omitempty"`
	Image       []byte `json:"image,omitempty"`
	ImageMIME   string `json:"image_mime,omitempty"`
}

type AnalyzeRequest struct {
	Origin
	Prompt string `json:"prompt,omitempty"`
	Data   []byte `json:"data"`
	MIME   string `json:"mime"`
}

func (m *Manager) GenerateImage(req ImageRequest) (string, error) {
	if strings.TrimSpace(req.Prompt) == "" {
		return "", fmt.Errorf("%w: prompt is required", ErrInvalidRequest)
	}
	if m.images == nil {
		return "", fmt.Errorf("%w: image generation", domain.ErrProviderUnconfigured)
	}
	return m.start(domain.JobTypeGenerateImage, req.Prompt, req.Origin, 0, func(ctx context.Context, id string) (domain.JobUpdate, error) {
		if err := m.advance(ctx, id, domain.JobStatusProcessing, progressImageProcessing); err != nil {
			return domain.JobUpdate{}, err
		}
		asset, err := m.images.Generate(ctx, image.GenerateRequest{
			Prompt:      req.Prompt,
			AspectRatio: req.AspectRatio,
			UsePro:      req.UsePro,
			Size:        req.Size,
		})
		if err != nil {
			return domain.JobUpdate{}, err
		}
		return m.imageResult(ctx, id, req.Prompt, asset)
	})
}

func (m *Manager) EditImage(req EditRequest) (string, error) {
	if strings.TrimSpace(req.Prompt) == "" || len(req.Image) == 0 {
		return "", fmt.Errorf("%w: prompt and image are required", ErrInvalidRequest)
	}
	if m.images == nil {
		return "", fmt.Errorf("%w: image editing", domain.ErrProviderUnconfigured)
	}
	return m.start(domain.JobTypeEditImage, req.Prompt, req.Origin, 0, func(ctx context.Context, id string) (domain.JobUpdate, error) {
		if err := m.advance(ctx, id, domain.JobStatusProcessing, progressEditProcessing); err != nil {
			return domain.JobUpdate{}, err
		}
		asset, err := m.images.Edit(ctx, image.EditRequest{
			Prompt: req.Prompt,
			Source: genai.InlineData{MIMEType: req.MIME, Data: req.Image},
		})
		if err != nil {
			return domain.JobUpdate{}, err
		}
		return m.imageResult(ctx, id, req.Prompt, asset)
	})
}

// GenerateVideo submits the job and polls it. Each poll raises progress by
// 10 from the value currently stored, capped at 90.
func (m *Manager) GenerateVideo(req VideoRequest) (string, error) {
	if strings.TrimSpace(req.Prompt) == "" {
		return "", fmt.Errorf("%w: prompt is required", ErrInvalidRequest)
	}
	if m.videos == nil {
		return "", fmt.Errorf("%w: video generation", domain.ErrProviderUnconfigured)
	}
	return m.startUnbounded(domain.JobTypeGenerateVideo, req.Prompt, req.Origin, progressVideoQueued, func(ctx context.Context, id string) (domain.JobUpdate, error) {
		call := genai.VideoRequest{
			Model:       m.videoModel,
			Prompt:      req.Prompt,
			AspectRatio: req.AspectRatio,
			Resolution:  req.Resolution,
		}
		if len(req.Image) > 0 {
			call.Image = &genai.InlineData{MIMEType: req.ImageMIME, Data: req.Image}
		}
		asset, err := m.videos.Generate(ctx, call, video.Hooks{
			Submitted: func(op *genai.Operation) {
				if err := m.advance(ctx, id, domain.JobStatusProcessing, progressVideoSubmitted); err != nil {
					m.logger.Debug().Err(err).Str("job_id", id).Str("operation", op.Name).Msg("media: submit progress dropped")
				}
			},
			Polled: func(op *genai.Operation) {
				current, _ := m.store.Get(id)
				next := min(current.Progress+progressVideoPollStep, progressVideoPollCap)
				if err := m.advance(ctx, id, domain.JobStatusProcessing, next); err != nil {
					m.logger.Debug().Err(err).Str("job_id", id).Str("operation", op.Name).Int("progress", next).Msg("media: poll progress dropped")
				}
			},
		})
		if err != nil {
			return domain.JobUpdate{}, err
		}
		return domain.JobUpdate{Asset: &domain.Asset{
			ID:     uuid.NewString(),
			Kind:   domain.AssetKindVideo,
			URL:    asset.URL,
			MIME:   asset.MIME,
			Prompt: req.Prompt,
		}}, nil
	})
}

func (m *Manager) AnalyzeMedia(req AnalyzeRequest) (string, error) {
	if len(req.Data) == 0 || strings.TrimSpace(req.MIME) == "" {
		return "", fmt.Errorf("%w: media data and mime type are required", ErrInvalidRequest)
	}
	if m.analyzer == nil {
		return "", fmt.Errorf("%w: media analysis", domain.ErrProviderUnconfigured)
	}
	return m.start(domain.JobTypeAnalyzeMedia, req.Prompt, req.Origin, 0, func(ctx context.Context, id string) (domain.JobUpdate, error) {
		if err := m.advance(ctx, id, domain.JobStatusProcessing, progressAnalyzeStarted); err != nil {
			return domain.JobUpdate{}, err
		}
		analysis, err := m.analyzer.AnalyzeMedia(ctx, req.Data, req.MIME, req.Prompt)
		if err != nil {
			return domain.JobUpdate{}, err
		}
		return domain.JobUpdate{Analysis: analysis}, nil
	})
}

type jobFunc func(ctx context.Context, id string) (domain.JobUpdate, error)

func (m *Manager) start(jobType domain.JobType, prompt string, origin Origin, progress int, run jobFunc) (string, error) {
	return m.launch(jobType, prompt, origin, progress, m.jobTimeout, run)
}

func (m *Manager) startUnbounded(jobType domain.JobType, prompt string, origin Origin, progress int, run jobFunc) (string, error) {
	return m.launch(jobType, prompt, origin, progress, 0, run)
}

func (m *Manager) launch(jobType domain.JobType, prompt string, origin Origin, progress int, timeout time.Duration, run jobFunc) (string, error) {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return "", fmt.Errorf("media: manager closed: %w", domain.ErrClosed)
	}
	m.wg.Add(1)
	m.mu.Unlock()

	id := uuid.NewString()
	job, err := m.store.Create(domain.MediaJob{
		ID:                id,
		Type:              jobType,
		Status:            domain.JobStatusQueued,
		Progress:          progress,
		Prompt:            prompt,
		OriginatingCardID: origin.CardID,
		StackType:         origin.StackType,
	})
	if err != nil {
		m.wg.Done()
		return "", err
	}
	m.record(m.ctx, job)
	log := m.logger.With().Str("job_id", id).Str("job_type", string(jobType)).Logger()
	log.Info().Msg("media: job queued")

	go func() {
		defer m.wg.Done()
		ctx := m.ctx
		if timeout > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, timeout)
			defer cancel()
		}
		result, err := run(ctx, id)
		if err != nil {
			m.fail(id, jobType, err)
			return
		}
		result.ID = id
		result.Status = domain.JobStatusCompleted
		result.Progress = 100
		if _, err := m.apply(m.ctx, result); err != nil {
			log.Error().Err(err).Msg("media: failed to complete job")
			return
		}
		log.Info().Msg("media: job completed")
	}()
	return id, nil
}

func (m *Manager) advance(ctx context.Context, id string, status domain.JobStatus, progress int) error {
	_, err := m.apply(ctx, domain.JobUpdate{ID: id, Status: status, Progress: progress})
	return err
}

func (m *Manager) apply(ctx context.Context, u domain.JobUpdate) (domain.MediaJob, error) {
	job, err := m.store.Merge(u)
	if err != nil {
		return job, err
	}
	m.record(ctx, job)
	return job, nil
}

func (m *Manager) fail(id string, jobType domain.JobType, err error) {
	if errors.Is(err, context.DeadlineExceeded) {
		err = fmt.Errorf("%w: %v", domain.ErrTimeout, err)
	}
	kind := domain.Classify(err)
	message := domain.UserMessage(err)
	if kind == domain.KindGeneric {
		message = err.Error()
	}
	m.monitor.Report("media."+string(jobType), err)
	if _, mergeErr := m.apply(context.WithoutCancel(m.ctx), domain.JobUpdate{
		ID:        id,
		Status:    domain.JobStatusFailed,
		Error:     message,
		ErrorKind: kind,
	}); mergeErr != nil {
		m.logger.Error().Err(mergeErr).Str("job_id", id).Msg("media: failed to record job failure")
	}
	m.logger.Warn().Err(err).Str("job_id", id).Str("job_type", string(jobType)).Str("error_kind", string(kind)).Msg("media: job failed")
}

// record persists a snapshot when a recorder is configured. History is best
// effort and never fails the job.
func (m *Manager) record(ctx context.Context, job domain.MediaJob) {
	if m.recorder == nil {
		return
	}
	if err := m.recorder.Record(context.WithoutCancel(ctx), job); err != nil {
		m.logger.Warn().Err(err).Str("job_id", job.ID).Msg("media: record job snapshot failed")
	}
}

func (m *Manager) imageResult(ctx context.Context, id, prompt string, asset *image.Asset) (domain.JobUpdate, error) {
	out := &domain.Asset{
		ID:     uuid.NewString(),
		Kind:   domain.AssetKindImage,
		MIME:   asset.MIME,
		Bytes:  int64(len(asset.Data)),
		Prompt: prompt,
	}
	if m.files != nil {
		key, url, err := m.files.Save(ctx, "images", asset.MIME, asset.Data)
		if err != nil {
			return domain.JobUpdate{}, fmt.Errorf("store image for job %s: %w", id, err)
		}
		out.StorageKey = key
		out.URL = url
	} else {
		out.URL = "data:" + asset.MIME + ";base64," + base64.StdEncoding.EncodeToString(asset.Data)
	}
	return domain.JobUpdate{Asset: out}, nil
}
