package repo

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5"

	"oracle/internal/domain"
	"oracle/internal/infra"
	"oracle/internal/sqlinline"
)

// JobRepositoryPG persists media job snapshots as history. It implements
// domain.JobRecorder and domain.JobHistory.
type JobRepositoryPG struct {
	sql infra.SQLExecutor
}

// NewJobRepository creates a new job repository backed by PostgreSQL.
func NewJobRepository(sql infra.SQLExecutor) *JobRepositoryPG {
	return &JobRepositoryPG{sql: sql}
}

// EnsureSchema creates the history table when missing.
func (r *JobRepositoryPG) EnsureSchema(ctx context.Context) error {
	_, err := r.sql.Exec(ctx, sqlinline.QEnsureMediaJobsTable)
	return err
}

// Record upserts the snapshot. Rows already in a terminal state are left as is.
func (r *JobRepositoryPG) Record(ctx context.Context, job domain.MediaJob) error {
	assetJSON, err := nullableJSON(job.Asset)
	if err != nil {
		return fmt.Errorf("encode asset: %w", err)
	}
	analysisJSON, err := nullableJSON(job.Analysis)
	if err != nil {
		return fmt.Errorf("encode analysis: %w", err)
	}
	_, err = r.sql.Exec(ctx, sqlinline.QUpsertMediaJob,
		job.ID,
		string(job.Type),
		string(job.Status),
		job.Progress,
		job.Prompt,
		job.OriginatingCardID,
		job.StackType,
		assetJSON,
		analysisJSON,
		job.Error,
		string(job.ErrorKind),
		job.CreatedAt,
		job.UpdatedAt,
	)
	return err
}

// GetByID fetches a job snapshot by its identifier.
func (r *JobRepositoryPG) GetByID(ctx context.Context, jobID string) (*domain.MediaJob, error) {
	job, err := scanJob(r.sql.QueryRow(ctx, sqlinline.QSelectMediaJob, jobID))
	if err != nil {
		if infra.IsNoRows(err) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	return job, nil
}

// ListRecent returns up to limit snapshots, newest first.
func (r *JobRepositoryPG) ListRecent(ctx context.Context, limit int) ([]domain.MediaJob, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := r.sql.Query(ctx, sqlinline.QListRecentMediaJobs, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var jobs []domain.MediaJob
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, err
		}
		jobs = append(jobs, *job)
	}
	return jobs, rows.Err()
}

func scanJob(row pgx.Row) (*domain.MediaJob, error) {
	var (
		job          domain.MediaJob
		jobType      string
		status       string
		errorKind    string
		assetJSON    []byte
		analysisJSON []byte
	)
	if err := row.Scan(
		&job.ID,
		&jobType,
		&status,
		&job.Progress,
		&job.Prompt,
		&job.OriginatingCardID,
		&job.StackType,
		&assetJSON,
		&analysisJSON,
		&job.Error,
		&errorKind,
		&job.CreatedAt,
		&job.UpdatedAt,
	); err != nil {
		return nil, err
	}
	job.Type = domain.JobType(jobType)
	job.Status = domain.JobStatus(status)
	job.ErrorKind = domain.ErrorKind(errorKind)
	if len(assetJSON) > 0 {
		var asset domain.Asset
		if err := json.Unmarshal(assetJSON, &asset); err != nil {
			return nil, fmt.Errorf("decode asset: %w", err)
		}
		job.Asset = &asset
	}
	if len(analysisJSON) > 0 {
		var analysis domain.MediaAnalysis
		if err := json.Unmarshal(analysisJSON, &analysis); err != nil {
			return nil, fmt.Errorf("decode analysis: %w", err)
		}
		job.Analysis = &analysis
	}
	return &job, nil
}

func nullableJSON(v any) ([]byte, error) {
	switch t := v.(type) {
	case *domain.Asset:
		if t == nil {
			return nil, nil
		}
	case *domain.MediaAnalysis:
		if t == nil {
			return nil, nil
		}
	}
	return json.Marshal(v)
}
