package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	_ "modernc.org/sqlite"
)

const (
	dirName    = ".noteline"
	dbFileName = "noteline.sqlite"
)

// Store is the SQLite-backed repository for subjects, categories and content.
type Store struct {
	Path string

	db    *sql.DB
	log   zerolog.Logger
	retry RetryPolicy
}

// DiscoverDir walks up from start looking for a .noteline directory.
func DiscoverDir(start string) (string, bool) {
	dir := start
	for {
		candidate := filepath.Join(dir, dirName)
		if st, err := os.Stat(candidate); err == nil && st.IsDir() {
			return candidate, true
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return "", false
		}
		dir = parent
	}
}

// DefaultPath returns the database path of the nearest workspace, or one in
// the current directory when none exists yet.
func DefaultPath() (string, error) {
	cwd, err := os.Getwd()
	if err != nil {
		return "", err
	}
	if found, ok := DiscoverDir(cwd); ok {
		return filepath.Join(found, dbFileName), nil
	}
	return filepath.Join(cwd, dirName, dbFileName), nil
}

type Option func(*Store)

func WithLogger(log zerolog.Logger) Option {
	return func(s *Store) { s.log = log.With().Str("component", "store").Logger() }
}

func WithRetry(p RetryPolicy) Option {
	return func(s *Store) { s.retry = p }
}

// Open opens (creating if needed) the database at path and applies the schema.
func Open(ctx context.Context, path string, opts ...Option) (*Store, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, errors.New("database path is empty")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}
	s := &Store{Path: path, log: zerolog.Nop(), retry: DefaultRetryPolicy()}
	for _, o := range opts {
		o(s)
	}

	// modernc.org/sqlite driver name is "sqlite". Pragmas go in the DSN so
	// every pooled connection gets them.
	// WAL enables one writer + many readers; busy_timeout helps avoid "database is locked" flakiness.
	q := url.Values{}
	q.Add("_pragma", "journal_mode(WAL)")
	q.Add("_pragma", "synchronous(NORMAL)")
	q.Add("_pragma", "foreign_keys(1)")
	q.Add("_pragma", "busy_timeout(5000)")
	db, err := sql.Open("sqlite", "file:"+path+"?"+q.Encode())
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)
	if err := migrate(ctx, db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("migrate %s: %w", path, err)
	}
	s.db = db
	return s, nil
}

func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// WorkspaceID is a random id assigned when the database is created.
func (s *Store) WorkspaceID(ctx context.Context) (string, error) {
	return readMeta(ctx, s.db, "workspace_id")
}

func readMeta(ctx context.Context, db *sql.DB, k string) (string, error) {
	var v string
	err := db.QueryRowContext(ctx, `SELECT v FROM state_meta WHERE k = ?`, k).Scan(&v)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	return strings.TrimSpace(v), err
}

func migrate(ctx context.Context, db *sql.DB) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS state_meta (
			k TEXT PRIMARY KEY,
			v TEXT NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS subject (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			name TEXT NOT NULL UNIQUE,
			created_at_unixms INTEGER NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS category (
			category_id INTEGER PRIMARY KEY AUTOINCREMENT,
			subject_id INTEGER NOT NULL REFERENCES subject(id),
			title TEXT NOT NULL,
			level INTEGER NOT NULL,
			parent_category_id INTEGER REFERENCES category(category_id) ON DELETE SET NULL,
			display_order INTEGER NOT NULL,
			is_root INTEGER NOT NULL DEFAULT 0
		);`,
		`CREATE INDEX IF NOT EXISTS idx_category_subject ON category(subject_id, display_order);`,
		`CREATE UNIQUE INDEX IF NOT EXISTS idx_category_root ON category(subject_id) WHERE is_root = 1;`,
		`CREATE TABLE IF NOT EXISTS content (
			text_id INTEGER PRIMARY KEY AUTOINCREMENT,
			subject_id INTEGER NOT NULL REFERENCES subject(id),
			content TEXT NOT NULL,
			content_type TEXT NOT NULL CHECK (content_type IN ('text', 'image')),
			image_url TEXT,
			category_id INTEGER NOT NULL REFERENCES category(category_id),
			display_order INTEGER NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS idx_content_category ON content(category_id);`,
		`CREATE INDEX IF NOT EXISTS idx_content_subject ON content(subject_id, display_order);`,
	}
	for _, st := range stmts {
		if _, err := db.ExecContext(ctx, st); err != nil {
			return err
		}
	}
	_, err := db.ExecContext(ctx, `INSERT OR IGNORE INTO state_meta(k, v) VALUES(?, ?)`, "workspace_id", uuid.NewString())
	return err
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
