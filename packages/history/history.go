// Package history persists executed requests and their responses to a
// local SQLite database. Callers pass requests already resolved with the
// history scope, so secret variables stay as literal <<key>> tokens and
// never reach disk.
package history

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	// SQLite driver
	_ "github.com/mattn/go-sqlite3"

	"github.com/courierhq/courier/packages/collection"
	"github.com/courierhq/courier/packages/engine"
)

type Store struct {
	db *sql.DB
}

// Open creates or opens the history database at the given path.
func Open(path string) (*Store, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("creating history directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("opening history database: %w", err)
	}
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("connecting to history database: %w", err)
	}

	s := &Store{db: db}
	if err := s.initSchema(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS history (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		timestamp DATETIME NOT NULL,
		collection_name TEXT NOT NULL,
		request_id TEXT NOT NULL,
		request_name TEXT,
		method TEXT NOT NULL,
		url TEXT NOT NULL,
		request_headers TEXT NOT NULL,
		request_body TEXT,
		response_status INTEGER NOT NULL,
		response_status_text TEXT NOT NULL,
		duration_ms INTEGER NOT NULL,
		response_size INTEGER,
		error_code TEXT
	);

	CREATE INDEX IF NOT EXISTS idx_history_timestamp ON history(timestamp DESC);
	CREATE INDEX IF NOT EXISTS idx_history_request_id ON history(request_id);
	`

	if _, err := s.db.Exec(schema); err != nil {
		return fmt.Errorf("initializing history schema: %w", err)
	}
	return nil
}

// Entry is one recorded execution.
type Entry struct {
	ID             int64
	Timestamp      time.Time
	CollectionName string
	RequestID      string
	RequestName    string
	Method         string
	URL            string
	Status         int
	StatusText     string
	DurationMs     int64
	Size           int64
	ErrorCode      string
}

// Record stores one execution. req must be the history-resolved request
// (see vars.NewHistoryScope); its URL, headers and body are stored as
// given.
func (s *Store) Record(collectionName string, req *collection.Request, resp *engine.ApiResponse) error {
	headers := make(map[string]string, len(req.Headers))
	for _, h := range req.Headers {
		if h.Enabled {
			headers[h.Key] = h.Value
		}
	}
	headersJSON, err := json.Marshal(headers)
	if err != nil {
		return fmt.Errorf("marshaling request headers: %w", err)
	}

	query := `
		INSERT INTO history (
			timestamp, collection_name, request_id, request_name, method, url,
			request_headers, request_body,
			response_status, response_status_text, duration_ms, response_size, error_code
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err = s.db.Exec(query,
		time.Now().UTC().Format("2006-01-02 15:04:05"),
		collectionName,
		req.ID,
		req.Name,
		req.Method,
		req.URL,
		string(headersJSON),
		req.Body.Raw,
		resp.Status,
		resp.StatusText,
		resp.Time.Milliseconds(),
		resp.Size,
		string(resp.ErrorCode),
	)
	if err != nil {
		return fmt.Errorf("recording history entry: %w", err)
	}
	return nil
}

// Recent returns the newest entries, most recent first.
func (s *Store) Recent(limit int) ([]Entry, error) {
	if limit <= 0 {
		limit = 50
	}

	rows, err := s.db.Query(`
		SELECT id, timestamp, collection_name, request_id, request_name, method, url,
		       response_status, response_status_text, duration_ms, response_size, error_code
		FROM history
		ORDER BY id DESC
		LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("querying history: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var e Entry
		var ts string
		if err := rows.Scan(&e.ID, &ts, &e.CollectionName, &e.RequestID, &e.RequestName,
			&e.Method, &e.URL, &e.Status, &e.StatusText, &e.DurationMs, &e.Size, &e.ErrorCode); err != nil {
			return nil, fmt.Errorf("scanning history row: %w", err)
		}
		if parsed, err := time.Parse("2006-01-02 15:04:05", ts); err == nil {
			e.Timestamp = parsed
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// Close closes the database connection.
func (s *Store) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}
