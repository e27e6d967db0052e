// Package sqlite stores BOM state and snapshots in a single SQLite file
// using the pure-Go modernc.org/sqlite driver.
//
// Parts and relationships are stored one JSON row each and replaced inside
// one transaction on every save. Snapshots are append-only rows indexed by
// (root, signature) for deduplication.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	stderrors "errors"
	"os"
	"path/filepath"
	"strings"
	"sync"

	_ "modernc.org/sqlite" // pure go sqlite driver

	"github.com/mbuck21/BOM-Manager/pkg/bom"
	"github.com/mbuck21/BOM-Manager/pkg/errors"
	"github.com/mbuck21/BOM-Manager/pkg/storage"
)

const schema = `
CREATE TABLE IF NOT EXISTS parts (
	part_number TEXT PRIMARY KEY,
	payload     BLOB NOT NULL
);
CREATE TABLE IF NOT EXISTS relationships (
	rel_id  TEXT PRIMARY KEY,
	payload BLOB NOT NULL
);
CREATE TABLE IF NOT EXISTS snapshots (
	id         TEXT PRIMARY KEY,
	root       TEXT NOT NULL,
	signature  TEXT NOT NULL,
	created_at INTEGER NOT NULL,
	payload    BLOB NOT NULL
);
CREATE INDEX IF NOT EXISTS snapshots_root_signature ON snapshots(root, signature);
CREATE INDEX IF NOT EXISTS snapshots_created ON snapshots(created_at, id);
`

// DB is an open SQLite database holding both repositories.
type DB struct {
	db    *sql.DB
	path  string
	mu    sync.Mutex
	close sync.Once
}

// Open opens (creating if needed) the database at path and applies the
// schema.
func Open(ctx context.Context, path string) (*DB, error) {
	if path == "" {
		path = "bom.db"
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil && !stderrors.Is(err, os.ErrExist) {
		return nil, errors.Wrap(errors.ErrCodeInternal, err, "create dirs")
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeInternal, err, "open sqlite")
	}
	// One writer at a time; SQLite serializes writes anyway.
	db.SetMaxOpenConns(1)
	if _, err := db.ExecContext(ctx, schema); err != nil {
		db.Close()
		return nil, errors.Wrap(errors.ErrCodeInternal, err, "create schema")
	}
	return &DB{db: db, path: path}, nil
}

// Path returns the database file path.
func (d *DB) Path() string { return d.path }

// Close closes the database. It is safe to call more than once.
func (d *DB) Close() error {
	var err error
	d.close.Do(func() { err = d.db.Close() })
	return err
}

// State returns the state repository view of d.
func (d *DB) State() *StateRepository { return &StateRepository{d} }

// Snapshots returns the snapshot repository view of d.
func (d *DB) Snapshots() *SnapshotRepository { return &SnapshotRepository{d} }

// StateRepository persists parts and relationships.
type StateRepository struct{ *DB }

// Load reads every part and relationship.
func (r *StateRepository) Load(ctx context.Context) (bom.State, error) {
	var s bom.State
	if err := queryJSON(ctx, r.db, `SELECT payload FROM parts ORDER BY part_number`, func(p bom.Part) {
		s.Parts = append(s.Parts, p)
	}); err != nil {
		return bom.State{}, err
	}
	if err := queryJSON(ctx, r.db, `SELECT payload FROM relationships ORDER BY rel_id`, func(rel bom.Relationship) {
		s.Relationships = append(s.Relationships, rel)
	}); err != nil {
		return bom.State{}, err
	}
	return s, nil
}

// Save replaces all rows in one transaction.
func (r *StateRepository) Save(ctx context.Context, s bom.State) (retErr error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return errors.Wrap(errors.ErrCodeInternal, err, "begin")
	}
	defer func() {
		if retErr != nil {
			_ = tx.Rollback()
		}
	}()

	for _, stmt := range []string{`DELETE FROM parts`, `DELETE FROM relationships`} {
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			return errors.Wrap(errors.ErrCodeInternal, err, "clear state")
		}
	}
	for _, p := range s.Parts {
		data, err := json.Marshal(p)
		if err != nil {
			return errors.Wrap(errors.ErrCodeInternal, err, "encode part %s", p.PartNumber)
		}
		if _, err := tx.ExecContext(ctx, `INSERT INTO parts(part_number, payload) VALUES(?, ?)`, p.PartNumber, data); err != nil {
			return errors.Wrap(errors.ErrCodeInternal, err, "insert part %s", p.PartNumber)
		}
	}
	for _, rel := range s.Relationships {
		data, err := json.Marshal(rel)
		if err != nil {
			return errors.Wrap(errors.ErrCodeInternal, err, "encode relationship %s", rel.RelID)
		}
		if _, err := tx.ExecContext(ctx, `INSERT INTO relationships(rel_id, payload) VALUES(?, ?)`, rel.RelID, data); err != nil {
			return errors.Wrap(errors.ErrCodeInternal, err, "insert relationship %s", rel.RelID)
		}
	}
	if err := tx.Commit(); err != nil {
		return errors.Wrap(errors.ErrCodeInternal, err, "commit")
	}
	return nil
}

// SnapshotRepository persists snapshots.
type SnapshotRepository struct{ *DB }

// Save inserts a snapshot row; an existing id is a CONFLICT.
func (r *SnapshotRepository) Save(ctx context.Context, snap *bom.Snapshot) error {
	data, err := json.Marshal(snap)
	if err != nil {
		return errors.Wrap(errors.ErrCodeInternal, err, "encode snapshot %s", snap.ID)
	}
	_, err = r.db.ExecContext(ctx,
		`INSERT INTO snapshots(id, root, signature, created_at, payload) VALUES(?, ?, ?, ?, ?)`,
		snap.ID, snap.RootPartNumber, snap.Signature, snap.CreatedAt.UnixNano(), data)
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint failed") {
			return errors.New(errors.ErrCodeConflict, "Snapshot '%s' already exists", snap.ID)
		}
		return errors.Wrap(errors.ErrCodeInternal, err, "insert snapshot %s", snap.ID)
	}
	return nil
}

// Get loads one snapshot.
func (r *SnapshotRepository) Get(ctx context.Context, id string) (*bom.Snapshot, error) {
	var data []byte
	err := r.db.QueryRowContext(ctx, `SELECT payload FROM snapshots WHERE id = ?`, id).Scan(&data)
	if stderrors.Is(err, sql.ErrNoRows) {
		return nil, errors.New(errors.ErrCodeNotFound, "Snapshot '%s' not found", id)
	}
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeInternal, err, "select snapshot %s", id)
	}
	var s bom.Snapshot
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, errors.Wrap(errors.ErrCodeInvalidFormat, err, "decode snapshot %s", id)
	}
	return &s, nil
}

// List returns snapshots ordered by (created_at, id).
func (r *SnapshotRepository) List(ctx context.Context, root string) ([]*bom.Snapshot, error) {
	var out []*bom.Snapshot
	collect := func(s bom.Snapshot) { out = append(out, &s) }
	var err error
	if root == "" {
		err = queryJSON(ctx, r.db, `SELECT payload FROM snapshots ORDER BY created_at, id`, collect)
	} else {
		err = queryJSON(ctx, r.db, `SELECT payload FROM snapshots WHERE root = ? ORDER BY created_at, id`, collect, root)
	}
	return out, err
}

// FindBySignature returns the oldest snapshot of root with signature.
func (r *SnapshotRepository) FindBySignature(ctx context.Context, root, signature string) (*bom.Snapshot, error) {
	var found *bom.Snapshot
	err := queryJSON(ctx, r.db,
		`SELECT payload FROM snapshots WHERE root = ? AND signature = ? ORDER BY created_at, id LIMIT 1`,
		func(s bom.Snapshot) { found = &s }, root, signature)
	return found, err
}

// queryJSON runs query and decodes the single payload column of each row
// into a T.
func queryJSON[T any](ctx context.Context, db *sql.DB, query string, fn func(T), args ...any) error {
	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return errors.Wrap(errors.ErrCodeInternal, err, "query")
	}
	defer func() { _ = rows.Close() }()
	for rows.Next() {
		var data []byte
		if err := rows.Scan(&data); err != nil {
			return errors.Wrap(errors.ErrCodeInternal, err, "scan")
		}
		var v T
		if err := json.Unmarshal(data, &v); err != nil {
			return errors.Wrap(errors.ErrCodeInvalidFormat, err, "decode row")
		}
		fn(v)
	}
	if err := rows.Err(); err != nil {
		return errors.Wrap(errors.ErrCodeInternal, err, "iterate rows")
	}
	return nil
}

var (
	_ storage.StateRepository    = (*StateRepository)(nil)
	_ storage.SnapshotRepository = (*SnapshotRepository)(nil)
)
