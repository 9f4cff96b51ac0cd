package store

import (
	"context"
	"database/sql"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/bmatcuk/doublestar/v4"
	"modernc.org/sqlite" // Pure Go SQLite driver (no CGO)
	sqlite3 "modernc.org/sqlite/lib"

	"github.com/Aman-CERP/morie/internal/errors"
)

const schemaVersion = 1

const commitIDKey = "commit_id"

// Store is the SQLite-backed cache store.
type Store struct {
	mu     sync.RWMutex
	db     *sql.DB
	path   string
	closed bool
}

// validateIntegrity checks an existing database file before it is opened.
// A missing file is valid; it will be created.
// A database another connection is busy with is not corrupt.
func validateIntegrity(path string, busyTimeout time.Duration) error {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil
	}

	q := url.Values{}
	q.Set("mode", "ro")
	q.Add("_pragma", fmt.Sprintf("busy_timeout(%d)", busyTimeout.Milliseconds()))
	db, err := sql.Open("sqlite", path+"?"+q.Encode())
	if err != nil {
		return fmt.Errorf("cannot open for validation: %w", err)
	}
	defer func() { _ = db.Close() }()

	var result string
	if err := db.QueryRow("PRAGMA integrity_check").Scan(&result); err != nil {
		if isBusy(err) {
			return nil
		}
		return fmt.Errorf("integrity check failed: %w", err)
	}
	if result != "ok" {
		return fmt.Errorf("database corrupted: %s", result)
	}
	return nil
}

func isBusy(err error) bool {
	var se *sqlite.Error
	if !stderrors.As(err, &se) {
		return false
	}
	switch se.Code() & 0xff {
	case sqlite3.SQLITE_BUSY, sqlite3.SQLITE_LOCKED:
		return true
	}
	return false
}

// Open opens or creates the cache database at path.
//
// The cache is derived data, so a database that fails its integrity check is
// removed and recreated empty; the next maintenance cycle rebuilds it.
func Open(path string, opts Options) (*Store, error) {
	if opts.BusyTimeout <= 0 {
		opts.BusyTimeout = DefaultOptions().BusyTimeout
	}
	if opts.CacheMB <= 0 {
		opts.CacheMB = DefaultOptions().CacheMB
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, errors.CacheStoreError(fmt.Sprintf("failed to create directory %s", dir), err)
	}

	if validErr := validateIntegrity(path, opts.BusyTimeout); validErr != nil {
		slog.Warn("cache_store_corrupted",
			slog.String("path", path),
			slog.String("error", validErr.Error()))

		if removeErr := os.Remove(path); removeErr != nil && !os.IsNotExist(removeErr) {
			return nil, errors.New(errors.ErrCodeCorruptIndex,
				fmt.Sprintf("cache at %s is corrupted and cannot be removed", path), removeErr).
				WithSuggestion("Delete the cache directory manually and run morie reindex")
		}
		_ = os.Remove(path + "-wal")
		_ = os.Remove(path + "-shm")

		slog.Info("cache_store_cleared",
			slog.String("path", path),
			slog.String("reason", "corruption detected, cache will be rebuilt"))
	}

	// BEGIN IMMEDIATE takes the write lock up front so the commit id read at
	// the start of Update cannot go stale before the transaction commits.
	q := url.Values{}
	q.Set("_txlock", "immediate")
	q.Add("_pragma", fmt.Sprintf("busy_timeout(%d)", opts.BusyTimeout.Milliseconds()))
	q.Add("_pragma", "journal_mode(WAL)")
	q.Add("_pragma", "synchronous(NORMAL)")
	q.Add("_pragma", fmt.Sprintf("cache_size(%d)", -opts.CacheMB*1024))
	dsn := path + "?" + q.Encode()

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, errors.CacheStoreError("failed to open cache database", err).WithDetail("path", path)
	}

	// Single connection: in-process writers queue on the pool, other
	// processes on busy_timeout.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	s := &Store{db: db, path: path}
	if err := s.initSchema(); err != nil {
		_ = db.Close()
		return nil, errors.CacheStoreError("failed to initialize schema", err).WithDetail("path", path)
	}
	return s, nil
}

func (s *Store) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS schema_version (
		version INTEGER PRIMARY KEY
	);

	CREATE TABLE IF NOT EXISTS state (
		key   TEXT PRIMARY KEY,
		value TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS entries (
		path      TEXT PRIMARY KEY,
		size      INTEGER NOT NULL,
		mime_type TEXT NOT NULL,
		metadata  TEXT,
		title     TEXT,
		time      INTEGER NOT NULL,
		tz_offset INTEGER NOT NULL
	);
	`
	if _, err := s.db.Exec(schema); err != nil {
		return err
	}
	_, err := s.db.Exec(`INSERT OR IGNORE INTO schema_version (version) VALUES (?)`, schemaVersion)
	return err
}

// Path returns the database file path.
func (s *Store) Path() string {
	return s.path
}

// Close checkpoints the WAL and closes the database. Close is idempotent.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true
	_, _ = s.db.Exec("PRAGMA wal_checkpoint(TRUNCATE)")
	return s.db.Close()
}

func (s *Store) checkOpen() error {
	if s.closed {
		return errors.CacheStoreError("cache store is closed", nil)
	}
	return nil
}

// Update runs fn inside one exclusive write transaction. If fn returns an
// error, or the commit fails, nothing fn wrote is persisted. The returned
// Writes are only meaningful when err is nil.
func (s *Store) Update(ctx context.Context, fn func(*Tx) error) (Writes, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if err := s.checkOpen(); err != nil {
		return Writes{}, err
	}

	sqlTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return Writes{}, errors.CacheStoreError("failed to begin transaction", err)
	}
	tx := &Tx{ctx: ctx, tx: sqlTx}

	if err := fn(tx); err != nil {
		_ = sqlTx.Rollback()
		return Writes{}, err
	}
	if err := sqlTx.Commit(); err != nil {
		return Writes{}, errors.CacheStoreError("failed to commit transaction", err)
	}
	return tx.writes, nil
}

// CommitID returns the last-indexed commit id. ok is false if the cache has
// never been indexed.
func (s *Store) CommitID(ctx context.Context) (id string, ok bool, err error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if err := s.checkOpen(); err != nil {
		return "", false, err
	}
	return readCommitID(ctx, s.db)
}

// Count returns the number of cached entries.
func (s *Store) Count(ctx context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if err := s.checkOpen(); err != nil {
		return 0, err
	}

	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM entries`).Scan(&n); err != nil {
		return 0, errors.CacheStoreError("failed to count entries", err)
	}
	return n, nil
}

// ValidateFilter reports whether filter is a usable glob pattern.
func ValidateFilter(filter string) error {
	if filter != "" && !doublestar.ValidatePattern(filter) {
		return errors.New(errors.ErrCodeInvalidFilter, fmt.Sprintf("invalid filter pattern %q", filter), nil).
			WithSuggestion("Use glob syntax such as notes/**/*.md")
	}
	return nil
}

// List returns the cached entries whose path matches filter. An empty
// filter matches everything. Order is unspecified.
func (s *Store) List(ctx context.Context, filter string) ([]Entry, error) {
	if err := ValidateFilter(filter); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	if err := s.checkOpen(); err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT path, size, mime_type, metadata, title, time, tz_offset FROM entries`)
	if err != nil {
		return nil, errors.CacheStoreError("failed to query entries", err)
	}
	defer func() { _ = rows.Close() }()

	var entries []Entry
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		if filter != "" {
			// Pattern was validated above, so Match cannot fail.
			if ok, _ := doublestar.Match(filter, e.Path); !ok {
				continue
			}
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.CacheStoreError("failed to read entries", err)
	}
	return entries, nil
}

// Entry returns the cached entry for path. ok is false if there is none.
func (s *Store) Entry(ctx context.Context, path string) (Entry, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if err := s.checkOpen(); err != nil {
		return Entry{}, false, err
	}

	row := s.db.QueryRowContext(ctx,
		`SELECT path, size, mime_type, metadata, title, time, tz_offset FROM entries WHERE path = ?`, path)
	e, err := scanEntry(row)
	if err != nil {
		if stderrors.Is(err, sql.ErrNoRows) {
			return Entry{}, false, nil
		}
		return Entry{}, false, err
	}
	return e, true, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanEntry(row scanner) (Entry, error) {
	var (
		e        Entry
		metadata sql.NullString
		title    sql.NullString
		unix     int64
		offset   int
	)
	if err := row.Scan(&e.Path, &e.Size, &e.MimeType, &metadata, &title, &unix, &offset); err != nil {
		return Entry{}, errors.CacheStoreError("failed to scan entry", err)
	}
	if metadata.Valid {
		e.Metadata = json.RawMessage(metadata.String)
	}
	if title.Valid {
		t := title.String
		e.Title = &t
	}
	e.Time = time.Unix(unix, 0).In(time.FixedZone("", offset))
	return e, nil
}

type queryer interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func readCommitID(ctx context.Context, q queryer) (string, bool, error) {
	var id string
	err := q.QueryRowContext(ctx, `SELECT value FROM state WHERE key = ?`, commitIDKey).Scan(&id)
	if stderrors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, errors.CacheStoreError("failed to read indexed commit", err)
	}
	return id, true, nil
}
