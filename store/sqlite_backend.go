package store

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
)

const snapshotSchema = `CREATE TABLE IF NOT EXISTS user_snapshots (
	id INTEGER PRIMARY KEY CHECK (id = 1),
	document TEXT NOT NULL,
	updated_at DATETIME NOT NULL
)`

// SQLiteBackend keeps the document as a single row so each save is one transaction
type SQLiteBackend struct {
	db *sqlx.DB
}

// NewSQLiteBackend creates the snapshot table if needed
func NewSQLiteBackend(db *sqlx.DB) (*SQLiteBackend, error) {
	if _, err := db.Exec(snapshotSchema); err != nil {
		return nil, fmt.Errorf("create user_snapshots table: %w", err)
	}
	return &SQLiteBackend{db: db}, nil
}

func (b *SQLiteBackend) Load() ([]byte, error) {
	var doc string
	err := b.db.Get(&doc, "SELECT document FROM user_snapshots WHERE id = 1")
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load user snapshot: %w", err)
	}
	return []byte(doc), nil
}

func (b *SQLiteBackend) Save(doc []byte) error {
	tx, err := b.db.Beginx()
	if err != nil {
		return fmt.Errorf("begin snapshot tx: %w", err)
	}

	_, err = tx.Exec(`INSERT INTO user_snapshots (id, document, updated_at) VALUES (1, ?, ?)
		ON CONFLICT(id) DO UPDATE SET document = excluded.document, updated_at = excluded.updated_at`,
		string(doc), time.Now().UTC())
	if err != nil {
		tx.Rollback()
		return fmt.Errorf("save user snapshot: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit user snapshot: %w", err)
	}
	return nil
}
