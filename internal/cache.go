package internal

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// ErrNotCached is returned when a conversation is not in the history cache
var ErrNotCached = errors.New("conversation not cached")

const historySchema = `
CREATE TABLE IF NOT EXISTS conversations (
	owner      TEXT NOT NULL,
	id         TEXT NOT NULL,
	started_at TEXT,
	payload    TEXT NOT NULL,
	synced_at  INTEGER NOT NULL,
	PRIMARY KEY (owner, id)
)`

// HistoryCache keeps the last fetched chat history per account so that
// history can be browsed without the backend. Only conversations are stored;
// tokens and the active chat id never reach disk.
type HistoryCache struct {
	db   *sql.DB
	path string
}

// CacheEntry is a cached conversation plus the time it was synced
type CacheEntry struct {
	Conversation Conversation
	SyncedAt     time.Time
}

// OpenHistoryCache opens (creating if needed) the cache database in dir
func OpenHistoryCache(dir string) (*HistoryCache, error) {
	if err := os.MkdirAll(dir, 0700); err != nil {
		return nil, &StorageError{Path: dir, Op: "open", Err: err}
	}

	path := filepath.Join(dir, "history.db")
	db, err := OpenDatabase(path, false)
	if err != nil {
		return nil, &StorageError{Path: path, Op: "open", Err: err}
	}

	if _, err := db.Exec(historySchema); err != nil {
		db.Close()
		return nil, &StorageError{Path: path, Op: "open", Err: err}
	}

	return &HistoryCache{db: db, path: path}, nil
}

// OpenHistoryCacheReadOnly opens an existing cache without creating or
// migrating it. Offline browsing uses it so a missing cache is an error.
func OpenHistoryCacheReadOnly(dir string) (*HistoryCache, error) {
	path := filepath.Join(dir, "history.db")
	db, err := OpenDatabase(path, true)
	if err != nil {
		return nil, &StorageError{Path: path, Op: "open", Err: err}
	}
	return &HistoryCache{db: db, path: path}, nil
}

// Path returns the database file path
func (c *HistoryCache) Path() string {
	return c.path
}

// Close closes the underlying database
func (c *HistoryCache) Close() error {
	return c.db.Close()
}

// Replace swaps the cached history of owner for convs in one transaction
func (c *HistoryCache) Replace(owner string, convs []Conversation) error {
	tx, err := c.db.Begin()
	if err != nil {
		return &StorageError{Path: c.path, Op: "write", Err: err}
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.Exec("DELETE FROM conversations WHERE owner = ?", owner); err != nil {
		return &StorageError{Path: c.path, Op: "write", Err: err}
	}

	stmt, err := tx.Prepare("INSERT INTO conversations (owner, id, started_at, payload, synced_at) VALUES (?, ?, ?, ?, ?)")
	if err != nil {
		return &StorageError{Path: c.path, Op: "write", Err: err}
	}
	defer stmt.Close()

	now := time.Now().UnixMilli()
	for _, conv := range convs {
		payload, err := json.Marshal(conv)
		if err != nil {
			return &StorageError{Path: c.path, Op: "write", Err: fmt.Errorf("failed to marshal conversation %s: %w", conv.ID, err)}
		}
		if _, err := stmt.Exec(owner, conv.ID, conv.StartedAt.String(), string(payload), now); err != nil {
			return &StorageError{Path: c.path, Op: "write", Err: err}
		}
	}

	if err := tx.Commit(); err != nil {
		return &StorageError{Path: c.path, Op: "write", Err: err}
	}
	LogDebug("Cached %d conversation(s) for %s", len(convs), owner)
	return nil
}

// List returns the cached conversations of owner, newest first
func (c *HistoryCache) List(owner string) ([]CacheEntry, error) {
	rows, err := c.db.Query("SELECT payload, synced_at FROM conversations WHERE owner = ? ORDER BY started_at DESC", owner)
	if err != nil {
		return nil, &StorageError{Path: c.path, Op: "read", Err: err}
	}
	defer rows.Close()

	var entries []CacheEntry
	for rows.Next() {
		entry, err := scanEntry(rows)
		if err != nil {
			// Skip rows that no longer decode
			LogWarn("Skipping unreadable cache row: %v", err)
			continue
		}
		entries = append(entries, entry)
	}

	if err := rows.Err(); err != nil {
		return nil, &StorageError{Path: c.path, Op: "read", Err: err}
	}
	return entries, nil
}

// Get returns one cached conversation or ErrNotCached
func (c *HistoryCache) Get(owner, id string) (*CacheEntry, error) {
	row := c.db.QueryRow("SELECT payload, synced_at FROM conversations WHERE owner = ? AND id = ?", owner, id)
	entry, err := scanEntry(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotCached
	}
	if err != nil {
		return nil, &StorageError{Path: c.path, Op: "read", Err: err}
	}
	return &entry, nil
}

// Delete removes one conversation from the cache
func (c *HistoryCache) Delete(owner, id string) error {
	if _, err := c.db.Exec("DELETE FROM conversations WHERE owner = ? AND id = ?", owner, id); err != nil {
		return &StorageError{Path: c.path, Op: "write", Err: err}
	}
	return nil
}

// Clear removes everything cached for owner
func (c *HistoryCache) Clear(owner string) error {
	if _, err := c.db.Exec("DELETE FROM conversations WHERE owner = ?", owner); err != nil {
		return &StorageError{Path: c.path, Op: "write", Err: err}
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanEntry(row rowScanner) (CacheEntry, error) {
	var payload string
	var syncedAt int64
	if err := row.Scan(&payload, &syncedAt); err != nil {
		return CacheEntry{}, err
	}

	var conv Conversation
	if err := json.Unmarshal([]byte(payload), &conv); err != nil {
		return CacheEntry{}, fmt.Errorf("failed to parse cached conversation: %w", err)
	}
	return CacheEntry{Conversation: conv, SyncedAt: time.UnixMilli(syncedAt)}, nil
}
