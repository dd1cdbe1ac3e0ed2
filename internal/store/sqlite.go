package store

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3" // SQLite driver
)

// SQLiteBackend stores each collection's JSON array in a single row, so the
// payload stays identical to the file layout.
type SQLiteBackend struct {
	db *sql.DB
}

func NewSQLiteBackend(dataSourceName string) (*SQLiteBackend, error) {
	db, err := sql.Open("sqlite3", dataSourceName)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// Collection writes are already serialized by the RecordStore.
	db.SetMaxOpenConns(1)
	if err = db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	backend := &SQLiteBackend{db: db}
	if err = backend.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}
	return backend, nil
}

func (b *SQLiteBackend) Close() error {
	return b.db.Close()
}

func (b *SQLiteBackend) initSchema() error {
	schema := `
    CREATE TABLE IF NOT EXISTS collections (
        name TEXT PRIMARY KEY,
        data TEXT NOT NULL,
        updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
    );

    CREATE TABLE IF NOT EXISTS sequences (
        name TEXT PRIMARY KEY,
        value INTEGER NOT NULL
    );
    `
	_, err := b.db.Exec(schema)
	return err
}

func (b *SQLiteBackend) ReadCollection(name string) ([]byte, error) {
	var data string
	err := b.db.QueryRow("SELECT data FROM collections WHERE name = ?", name).Scan(&data)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrCollectionNotFound
		}
		return nil, fmt.Errorf("failed to query collection: %w", err)
	}
	return []byte(data), nil
}

func (b *SQLiteBackend) WriteCollection(name string, data []byte) error {
	_, err := b.db.Exec(`
        INSERT INTO collections (name, data, updated_at) VALUES (?, ?, CURRENT_TIMESTAMP)
        ON CONFLICT(name) DO UPDATE SET data = excluded.data, updated_at = excluded.updated_at`,
		name, string(data))
	if err != nil {
		return fmt.Errorf("failed to upsert collection: %w", err)
	}
	return nil
}

func (b *SQLiteBackend) ReadSequence(name string) (int64, error) {
	var value int64
	err := b.db.QueryRow("SELECT value FROM sequences WHERE name = ?", name).Scan(&value)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, nil
		}
		return 0, fmt.Errorf("failed to query sequence: %w", err)
	}
	return value, nil
}

func (b *SQLiteBackend) WriteSequence(name string, value int64) error {
	_, err := b.db.Exec(`
        INSERT INTO sequences (name, value) VALUES (?, ?)
        ON CONFLICT(name) DO UPDATE SET value = excluded.value`,
		name, value)
	if err != nil {
		return fmt.Errorf("failed to upsert sequence: %w", err)
	}
	return nil
}

// Quarantine renames the collection row to <name>.corrupt-<utc timestamp>.
func (b *SQLiteBackend) Quarantine(name string) (string, error) {
	dest := name + ".corrupt-" + time.Now().UTC().Format("20060102T150405.000000000Z")
	res, err := b.db.Exec("UPDATE collections SET name = ? WHERE name = ?", dest, name)
	if err != nil {
		return "", fmt.Errorf("failed to quarantine collection: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return "", ErrCollectionNotFound
	}
	return dest, nil
}
