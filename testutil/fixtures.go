package testutil

import (
	"database/sql"
	"os"
	"path/filepath"
	"testing"
	"time"

	_ "modernc.org/sqlite"
)

// HistoryJSON is a GET /auth/history body in the backend's own format:
// naive UTC timestamps and "jarvis" as the assistant role. The last
// conversation has no user message.
const HistoryJSON = `[
  {
    "id": "chat-1",
    "started_at": "2024-05-01T10:00:00.123456",
    "messages": [
      {"role": "user", "text": "what is the weather in Paris", "time": "2024-05-01T10:00:01.000001"},
      {"role": "jarvis", "text": "It is 18 degrees and sunny in Paris.", "time": "2024-05-01T10:00:02.5"}
    ]
  },
  {
    "id": "chat-2",
    "started_at": "2024-05-02T08:30:00",
    "messages": [
      {"role": "user", "text": "tell me a joke", "time": "2024-05-02T08:30:01"},
      {"role": "jarvis", "text": "Why couldn't the bicycle stand up by itself? Because it was two tired!", "time": "2024-05-02T08:30:02"}
    ]
  },
  {
    "id": "chat-3",
    "started_at": "2024-05-03T12:00:00",
    "messages": []
  }
]`

// PNGHeader is enough of a PNG file for upload tests
var PNGHeader = []byte{0x89, 'P', 'N', 'G', '\r', '\n', 0x1a, '\n'}

// CreateCacheFixture creates a history cache database at dbPath holding one
// readable conversation and one row whose payload no longer decodes.
func CreateCacheFixture(t *testing.T, dbPath, owner string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		t.Fatalf("Failed to create fixture directory: %v", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		t.Fatalf("Failed to open database: %v", err)
	}
	defer func() { _ = db.Close() }()

	createTableSQL := `
	CREATE TABLE IF NOT EXISTS conversations (
		owner      TEXT NOT NULL,
		id         TEXT NOT NULL,
		started_at TEXT,
		payload    TEXT NOT NULL,
		synced_at  INTEGER NOT NULL,
		PRIMARY KEY (owner, id)
	)`
	if _, err := db.Exec(createTableSQL); err != nil {
		t.Fatalf("Failed to create table: %v", err)
	}

	now := time.Now().UnixMilli()
	insertSQL := "INSERT INTO conversations (owner, id, started_at, payload, synced_at) VALUES (?, ?, ?, ?, ?)"
	good := `{"id":"cached-1","started_at":"2024-05-01T10:00:00Z","messages":[{"role":"user","text":"hello","time":"2024-05-01T10:00:00Z"}]}`
	if _, err := db.Exec(insertSQL, owner, "cached-1", "2024-05-01T10:00:00Z", good, now); err != nil {
		t.Fatalf("Failed to insert conversation: %v", err)
	}
	if _, err := db.Exec(insertSQL, owner, "broken", "2024-04-01T10:00:00Z", "{not json", now); err != nil {
		t.Fatalf("Failed to insert broken row: %v", err)
	}
}
