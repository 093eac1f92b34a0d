package repo

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"oracle/internal/domain"
)

type stubExecutor struct {
	execArgs []any
	row      pgx.Row
}

func (s *stubExecutor) Exec(ctx context.Context, query string, args ...any) (pgconn.CommandTag, error) {
	s.execArgs = args
	return pgconn.CommandTag{}, nil
}

func (s *stubExecutor) QueryRow(ctx context.Context, query string, args ...any) pgx.Row {
	return s.row
}

func (s *stubExecutor) Query(ctx context.Context, query string, args ...any) (pgx.Rows, error) {
	return nil, errors.New("not implemented")
}

type valuesRow struct {
	values []any
	err    error
}

func (r valuesRow) Scan(dest ...any) error {
	if r.err != nil {
		return r.err
	}
	if len(dest) != len(r.values) {
		return errors.New("column count mismatch")
	}
	for i, v := range r.values {
		switch d := dest[i].(type) {
		case *string:
			*d = v.(string)
		case *int:
			*d = v.(int)
		case *[]byte:
			if v != nil {
				*d = v.([]byte)
			}
		case *time.Time:
			*d = v.(time.Time)
		default:
			return errors.New("unsupported dest")
		}
	}
	return nil
}

func TestRecordEncodesNilAssetAsNull(t *testing.T) {
	exec := &stubExecutor{}
	repo := NewJobRepository(exec)

	job := domain.MediaJob{ID: "job-1", Type: domain.JobTypeGenerateImage, Status: domain.JobStatusQueued}
	if err := repo.Record(context.Background(), job); err != nil {
		t.Fatalf("Record error: %v", err)
	}
	if len(exec.execArgs) != 13 {
		t.Fatalf("expected 13 args, got %d", len(exec.execArgs))
	}
	if exec.execArgs[7] != nil {
		if b, ok := exec.execArgs[7].([]byte); !ok || b != nil {
			t.Fatalf("expected nil asset json, got %#v", exec.execArgs[7])
		}
	}
}

func TestRecordEncodesAsset(t *testing.T) {
	exec := &stubExecutor{}
	repo := NewJobRepository(exec)

	job := domain.MediaJob{
		ID:     "job-2",
		Status: domain.JobStatusCompleted,
		Asset:  &domain.Asset{Kind: domain.AssetKindVideo, URL: "https://example.com/v.mp4"},
	}
	if err := repo.Record(context.Background(), job); err != nil {
		t.Fatalf("Record error: %v", err)
	}
	raw, ok := exec.execArgs[7].([]byte)
	if !ok {
		t.Fatalf("expected []byte asset json, got %T", exec.execArgs[7])
	}
	var decoded domain.Asset
	if err := json.Unmarshal(raw, &decoded); err != nil {
		t.Fatalf("decode asset json: %v", err)
	}
	if decoded.URL != "https://example.com/v.mp4" {
		t.Fatalf("unexpected asset url %q", decoded.URL)
	}
}

func TestGetByIDNotFound(t *testing.T) {
	repo := NewJobRepository(&stubExecutor{row: valuesRow{err: pgx.ErrNoRows}})
	if _, err := repo.GetByID(context.Background(), "missing"); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestGetByIDDecodesAnalysis(t *testing.T) {
	now := time.Now().UTC()
	analysis := []byte(`{"description":"a shop","insights":["busy"],"tags":["retail"]}`)
	row := valuesRow{values: []any{
		"job-3", "analyze-media", "completed", 100, "describe", "card-1", "visions",
		nil, analysis, "", "", now, now,
	}}
	repo := NewJobRepository(&stubExecutor{row: row})

	job, err := repo.GetByID(context.Background(), "job-3")
	if err != nil {
		t.Fatalf("GetByID error: %v", err)
	}
	if job.Status != domain.JobStatusCompleted || job.Progress != 100 {
		t.Fatalf("unexpected job %+v", job)
	}
	if job.Asset != nil {
		t.Fatalf("expected nil asset")
	}
	if job.Analysis == nil || job.Analysis.Description != "a shop" || len(job.Analysis.Tags) != 1 {
		t.Fatalf("unexpected analysis %+v", job.Analysis)
	}
}
