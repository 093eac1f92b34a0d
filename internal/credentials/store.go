package credentials

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	_ "modernc.org/sqlite"
)

const (
	ProviderGemini = "gemini"
	ProviderOpenAI = "openai"
)

// Store keeps user-supplied provider keys on the local device. Keys are read
// on every call so a replaced key takes effect without a restart.
type Store struct {
	db *sql.DB
}

// Open opens (or creates) the SQLite credential store at path.
func Open(path string) (*Store, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o700); err != nil {
			return nil, fmt.Errorf("create credentials directory: %w", err)
		}
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	db.SetMaxOpenConns(1)
	s := &Store{db: db}
	if err := s.initSchema(); err != nil {
		_ = s.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) initSchema() error {
	const schema = `
CREATE TABLE IF NOT EXISTS integration_tokens (
	provider TEXT PRIMARY KEY,
	token TEXT NOT NULL,
	updated_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
);
`
	if _, err := s.db.Exec(schema); err != nil {
		return fmt.Errorf("apply schema: %w", err)
	}
	return nil
}

// Close releases underlying resources.
func (s *Store) Close() error {
	return s.db.Close()
}

// APIKey returns the Gemini key, or "" when none is connected.
func (s *Store) APIKey(ctx context.Context) (string, error) {
	return s.Token(ctx, ProviderGemini)
}

func (s *Store) Token(ctx context.Context, provider string) (string, error) {
	row := s.db.QueryRowContext(ctx, `SELECT token FROM integration_tokens WHERE provider = ?`, normalizeProvider(provider))
	var token string
	if err := row.Scan(&token); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", nil
		}
		return "", err
	}
	return strings.TrimSpace(token), nil
}

func (s *Store) SetToken(ctx context.Context, provider, token string) error {
	provider = normalizeProvider(provider)
	token = strings.TrimSpace(token)
	if provider == "" {
		return errors.New("provider is required")
	}
	if token == "" {
		return fmt.Errorf("%s api key is required", provider)
	}
	_, err := s.db.ExecContext(ctx, `
INSERT INTO integration_tokens(provider, token, updated_at) VALUES(?, ?, CURRENT_TIMESTAMP)
ON CONFLICT(provider) DO UPDATE SET token = excluded.token, updated_at = CURRENT_TIMESTAMP`, provider, token)
	return err
}

// Delete disconnects the provider key. Deleting a missing key is not an error.
func (s *Store) Delete(ctx context.Context, provider string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM integration_tokens WHERE provider = ?`, normalizeProvider(provider))
	return err
}

func normalizeProvider(p string) string {
	return strings.ToLower(strings.TrimSpace(p))
}

// Mask renders a key for display without revealing it.
func Mask(key string) string {
	key = strings.TrimSpace(key)
	if len(key) <= 8 {
		return strings.Repeat("*", len(key))
	}
	return key[:4] + strings.Repeat("*", len(key)-8) + key[len(key)-4:]
}
