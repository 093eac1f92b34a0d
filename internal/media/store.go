// Package media runs image, video and analysis jobs and keeps their state.
package media

import (
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"oracle/internal/domain"
)

// ErrDuplicateJob rejects a Create for an id that already exists.
var ErrDuplicateJob = errors.New("media: job already exists")

const defaultSubscriberBuffer = 64

func statusRank(s domain.JobStatus) int {
	switch s {
	case domain.JobStatusQueued:
		return 1
	case domain.JobStatusProcessing:
		return 2
	case domain.JobStatusCompleted, domain.JobStatusFailed:
		return 3
	default:
		return 0
	}
}

// Store is the flat job map. Updates merge into the stored record by id;
// identity never changes, progress never decreases and terminal jobs are
// frozen. Jobs are never removed.
type Store struct {
	mu      sync.RWMutex
	jobs    map[string]*domain.MediaJob
	subs    map[int]chan domain.MediaJob
	nextSub int
	now     func() time.Time
}

func NewStore() *Store {
	return &Store{
		jobs: make(map[string]*domain.MediaJob),
		subs: make(map[int]chan domain.MediaJob),
		now:  time.Now,
	}
}

// Create inserts a new job in the queued state.
func (s *Store) Create(job domain.MediaJob) (domain.MediaJob, error) {
	if job.ID == "" {
		return domain.MediaJob{}, errors.New("media: job id is required")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.jobs[job.ID]; exists {
		return domain.MediaJob{}, fmt.Errorf("%w: %s", ErrDuplicateJob, job.ID)
	}
	now := s.now().UTC()
	if job.Status == "" {
		job.Status = domain.JobStatusQueued
	}
	job.Progress = clamp(job.Progress)
	job.CreatedAt = now
	job.UpdatedAt = now
	stored := job
	s.jobs[job.ID] = &stored
	s.publishLocked(stored)
	return stored, nil
}

// Merge applies u to the job with the same id and returns the new snapshot.
func (s *Store) Merge(u domain.JobUpdate) (domain.MediaJob, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	job, ok := s.jobs[u.ID]
	if !ok {
		return domain.MediaJob{}, fmt.Errorf("media: job %s: %w", u.ID, domain.ErrNotFound)
	}
	if job.Status.Terminal() {
		return *job, fmt.Errorf("media: job %s is %s: %w", u.ID, job.Status, domain.ErrJobFinalized)
	}

	if job.Type == "" {
		job.Type = u.Type
	}
	if statusRank(u.Status) > statusRank(job.Status) {
		job.Status = u.Status
	}
	if p := clamp(u.Progress); p > job.Progress {
		job.Progress = p
	}
	if u.Prompt != "" {
		job.Prompt = u.Prompt
	}
	if u.OriginatingCardID != "" {
		job.OriginatingCardID = u.OriginatingCardID
	}
	if u.StackType != "" {
		job.StackType = u.StackType
	}
	if u.Asset != nil {
		asset := *u.Asset
		job.Asset = &asset
	}
	if u.Analysis != nil {
		analysis := *u.Analysis
		job.Analysis = &analysis
	}
	if u.Error != "" {
		job.Error = u.Error
	}
	if u.ErrorKind != "" {
		job.ErrorKind = u.ErrorKind
	}
	if job.Status.Terminal() {
		job.Progress = 100
	}
	job.UpdatedAt = s.now().UTC()

	snapshot := *job
	s.publishLocked(snapshot)
	return snapshot, nil
}

func (s *Store) Get(id string) (domain.MediaJob, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	job, ok := s.jobs[id]
	if !ok {
		return domain.MediaJob{}, false
	}
	return *job, true
}

// List returns every job, newest first.
func (s *Store) List() []domain.MediaJob {
	s.mu.RLock()
	out := make([]domain.MediaJob, 0, len(s.jobs))
	for _, job := range s.jobs {
		out = append(out, *job)
	}
	s.mu.RUnlock()
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out
}

// Busy returns the queued or processing jobs started from cardID. It is a
// derived view; nothing prevents several active jobs per card.
func (s *Store) Busy(cardID string) []domain.MediaJob {
	if cardID == "" {
		return nil
	}
	var out []domain.MediaJob
	for _, job := range s.List() {
		if job.OriginatingCardID == cardID && job.Status.Active() {
			out = append(out, job)
		}
	}
	return out
}

// Subscribe streams every snapshot in commit order. A subscriber that falls
// more than buffer snapshots behind is dropped and its channel closed; it
// should re-read List. The returned func unsubscribes.
func (s *Store) Subscribe(buffer int) (<-chan domain.MediaJob, func()) {
	if buffer <= 0 {
		buffer = defaultSubscriberBuffer
	}
	ch := make(chan domain.MediaJob, buffer)
	s.mu.Lock()
	id := s.nextSub
	s.nextSub++
	s.subs[id] = ch
	s.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			s.mu.Lock()
			defer s.mu.Unlock()
			if c, ok := s.subs[id]; ok {
				delete(s.subs, id)
				close(c)
			}
		})
	}
}

func (s *Store) publishLocked(job domain.MediaJob) {
	for id, ch := range s.subs {
		select {
		case ch <- job:
		default:
			delete(s.subs, id)
			close(ch)
		}
	}
}

func clamp(p int) int {
	switch {
	case p < 0:
		return 0
	case p > 100:
		return 100
	default:
		return p
	}
}
