package media

import (
	"testing"

	"github.com/stretchr/testify/require"

	"oracle/internal/domain"
)

func newJob(t *testing.T, s *Store, id, card string) domain.MediaJob {
	t.Helper()
	job, err := s.Create(domain.MediaJob{ID: id, Type: domain.JobTypeGenerateImage, Prompt: "p", OriginatingCardID: card})
	require.NoError(t, err)
	return job
}

func TestStoreCreateDefaultsToQueued(t *testing.T) {
	s := NewStore()
	job := newJob(t, s, "a", "")
	require.Equal(t, domain.JobStatusQueued, job.Status)
	require.False(t, job.CreatedAt.IsZero())

	_, err := s.Create(domain.MediaJob{ID: "a"})
	require.ErrorIs(t, err, ErrDuplicateJob)
}

func TestStoreMergeKeepsProgressMonotonic(t *testing.T) {
	s := NewStore()
	newJob(t, s, "a", "")

	job, err := s.Merge(domain.JobUpdate{ID: "a", Status: domain.JobStatusProcessing, Progress: 50})
	require.NoError(t, err)
	require.Equal(t, 50, job.Progress)

	job, err = s.Merge(domain.JobUpdate{ID: "a", Status: domain.JobStatusQueued, Progress: 30})
	require.NoError(t, err)
	require.Equal(t, 50, job.Progress)
	require.Equal(t, domain.JobStatusProcessing, job.Status)

	job, err = s.Merge(domain.JobUpdate{ID: "a", Progress: 250})
	require.NoError(t, err)
	require.Equal(t, 100, job.Progress)
	require.Equal(t, "p", job.Prompt)
	require.Equal(t, domain.JobTypeGenerateImage, job.Type)
}

func TestStoreTerminalJobsAreFrozen(t *testing.T) {
	s := NewStore()
	newJob(t, s, "a", "")

	job, err := s.Merge(domain.JobUpdate{ID: "a", Status: domain.JobStatusFailed, Error: "boom"})
	require.NoError(t, err)
	require.Equal(t, 100, job.Progress)

	_, err = s.Merge(domain.JobUpdate{ID: "a", Status: domain.JobStatusCompleted})
	require.ErrorIs(t, err, domain.ErrJobFinalized)

	got, ok := s.Get("a")
	require.True(t, ok)
	require.Equal(t, domain.JobStatusFailed, got.Status)
	require.Equal(t, "boom", got.Error)
}

func TestStoreMergeUnknownJob(t *testing.T) {
	_, err := NewStore().Merge(domain.JobUpdate{ID: "missing"})
	require.ErrorIs(t, err, domain.ErrNotFound)
}

func TestStoreBusyFiltersActiveJobsForCard(t *testing.T) {
	s := NewStore()
	newJob(t, s, "a", "card-1")
	newJob(t, s, "b", "card-1")
	newJob(t, s, "c", "card-2")
	_, err := s.Merge(domain.JobUpdate{ID: "b", Status: domain.JobStatusCompleted})
	require.NoError(t, err)

	busy := s.Busy("card-1")
	require.Len(t, busy, 1)
	require.Equal(t, "a", busy[0].ID)
	require.Empty(t, s.Busy(""))
	require.Len(t, s.List(), 3)
}

func TestStoreSubscribeDeliversInOrder(t *testing.T) {
	s := NewStore()
	ch, cancel := s.Subscribe(8)
	defer cancel()

	newJob(t, s, "a", "")
	_, _ = s.Merge(domain.JobUpdate{ID: "a", Status: domain.JobStatusProcessing, Progress: 10})
	_, _ = s.Merge(domain.JobUpdate{ID: "a", Status: domain.JobStatusCompleted})

	var statuses []domain.JobStatus
	for i := 0; i < 3; i++ {
		statuses = append(statuses, (<-ch).Status)
	}
	require.Equal(t, []domain.JobStatus{domain.JobStatusQueued, domain.JobStatusProcessing, domain.JobStatusCompleted}, statuses)

	cancel()
	_, open := <-ch
	require.False(t, open)
}

func TestStoreDropsLaggingSubscriber(t *testing.T) {
	s := NewStore()
	ch, cancel := s.Subscribe(1)
	defer cancel()

	newJob(t, s, "a", "")
	newJob(t, s, "b", "")

	<-ch
	_, open := <-ch
	require.False(t, open)
}
