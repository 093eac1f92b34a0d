package infra

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

type recordingExecutor struct {
	queries []string
}

func (r *recordingExecutor) Exec(ctx context.Context, query string, args ...any) (pgconn.CommandTag, error) {
	r.queries = append(r.queries, query)
	return pgconn.CommandTag{}, nil
}

func (r *recordingExecutor) QueryRow(ctx context.Context, query string, args ...any) pgx.Row {
	r.queries = append(r.queries, query)
	return errorRow{err: pgx.ErrNoRows}
}

func (r *recordingExecutor) Query(ctx context.Context, query string, args ...any) (pgx.Rows, error) {
	r.queries = append(r.queries, query)
	return nil, errors.New("not implemented")
}

func TestSQLRunnerStripsMarker(t *testing.T) {
	exec := &recordingExecutor{}
	runner := NewSQLRunner(exec, nil)

	query := "--sql 89f9e6b0-9e5a-43e8-89c4-035bbb0561df\nselect 1;"
	if _, err := runner.Exec(context.Background(), query); err != nil {
		t.Fatalf("Exec error: %v", err)
	}
	if len(exec.queries) != 1 {
		t.Fatalf("expected one forwarded query, got %d", len(exec.queries))
	}
	if strings.Contains(exec.queries[0], "--sql") {
		t.Fatalf("marker leaked into statement: %q", exec.queries[0])
	}
}

func TestSQLRunnerRejectsUnmarkedQuery(t *testing.T) {
	exec := &recordingExecutor{}
	runner := NewSQLRunner(exec, nil)

	if _, err := runner.Exec(context.Background(), "select 1;"); err == nil {
		t.Fatalf("expected error for missing marker")
	}
	if err := runner.QueryRow(context.Background(), "select 1;").Scan(); err == nil {
		t.Fatalf("expected scan error for missing marker")
	}
	if len(exec.queries) != 0 {
		t.Fatalf("unmarked queries must not reach the database")
	}
}

func TestSQLRunnerPassesNoRowsThrough(t *testing.T) {
	runner := NewSQLRunner(&recordingExecutor{}, nil)
	err := runner.QueryRow(context.Background(), "--sql 89f9e6b0-9e5a-43e8-89c4-035bbb0561df\nselect 1;").Scan()
	if !IsNoRows(err) {
		t.Fatalf("expected no rows, got %v", err)
	}
}
