package domain

import "context"

// JobRecorder persists media job snapshots as caller-side history.
type JobRecorder interface {
	Record(ctx context.Context, job MediaJob) error
}

// JobHistory reads persisted media job snapshots.
type JobHistory interface {
	GetByID(ctx context.Context, jobID string) (*MediaJob, error)
	ListRecent(ctx context.Context, limit int) ([]MediaJob, error)
}

// CredentialSource resolves the single user-supplied API credential.
type CredentialSource interface {
	APIKey(ctx context.Context) (string, error)
}
