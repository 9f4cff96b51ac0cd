package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/Aman-CERP/morie/internal/errors"
)

// Tx is a write transaction handed to Update's callback. It must not be
// used after the callback returns.
type Tx struct {
	ctx    context.Context
	tx     *sql.Tx
	writes Writes
}

// CommitID returns the last-indexed commit id as seen by this transaction.
func (t *Tx) CommitID() (string, bool, error) {
	return readCommitID(t.ctx, t.tx)
}

// SetCommitID records id as the last-indexed commit.
func (t *Tx) SetCommitID(id string) error {
	_, err := t.tx.ExecContext(t.ctx,
		`INSERT INTO state (key, value) VALUES (?, ?)
		 ON CONFLICT(key) DO UPDATE SET value = excluded.value`,
		commitIDKey, id)
	if err != nil {
		return errors.CacheStoreError("failed to record indexed commit", err).WithDetail("commit", id)
	}
	return nil
}

// ReplaceAll discards every entry and inserts entries in its place.
func (t *Tx) ReplaceAll(entries []Entry) error {
	res, err := t.tx.ExecContext(t.ctx, `DELETE FROM entries`)
	if err != nil {
		return errors.CacheStoreError("failed to clear entries", err)
	}
	if n, err := res.RowsAffected(); err == nil {
		t.writes.Deleted += int(n)
	}

	stmt, err := t.tx.PrepareContext(t.ctx, insertSQL)
	if err != nil {
		return errors.CacheStoreError("failed to prepare insert", err)
	}
	defer func() { _ = stmt.Close() }()

	for _, e := range entries {
		if _, err := stmt.ExecContext(t.ctx, entryArgs(e)...); err != nil {
			return errors.CacheStoreError(fmt.Sprintf("failed to insert %s", e.Path), err).
				WithDetail("path", e.Path)
		}
		t.writes.Upserted++
	}
	return nil
}

// Upsert writes e, overwriting any existing row for e.Path.
func (t *Tx) Upsert(e Entry) error {
	if _, err := t.tx.ExecContext(t.ctx, insertSQL, entryArgs(e)...); err != nil {
		return errors.CacheStoreError(fmt.Sprintf("failed to write %s", e.Path), err).
			WithDetail("path", e.Path)
	}
	t.writes.Upserted++
	return nil
}

// Delete removes the row for path if present.
func (t *Tx) Delete(path string) error {
	res, err := t.tx.ExecContext(t.ctx, `DELETE FROM entries WHERE path = ?`, path)
	if err != nil {
		return errors.CacheStoreError(fmt.Sprintf("failed to delete %s", path), err).
			WithDetail("path", path)
	}
	if n, err := res.RowsAffected(); err == nil {
		t.writes.Deleted += int(n)
	}
	return nil
}

// Writes returns the rows touched so far.
func (t *Tx) Writes() Writes {
	return t.writes
}

const insertSQL = `INSERT INTO entries (path, size, mime_type, metadata, title, time, tz_offset)
	VALUES (?, ?, ?, ?, ?, ?, ?)
	ON CONFLICT(path) DO UPDATE SET
		size = excluded.size,
		mime_type = excluded.mime_type,
		metadata = excluded.metadata,
		title = excluded.title,
		time = excluded.time,
		tz_offset = excluded.tz_offset`

func entryArgs(e Entry) []any {
	var metadata, title sql.NullString
	if e.Metadata != nil {
		metadata = sql.NullString{String: string(e.Metadata), Valid: true}
	}
	if e.Title != nil {
		title = sql.NullString{String: *e.Title, Valid: true}
	}
	_, offset := e.Time.Zone()
	return []any{e.Path, e.Size, e.MimeType, metadata, title, e.Time.Unix(), offset}
}
