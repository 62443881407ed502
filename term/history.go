// Copyright © 2025 cmux contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
//
// File: term/history.go
// Summary: SQLite FTS5 index over scrollback lines.
//
// Lines that scroll off a terminal surface are batched into a per-user
// SQLite database with a trigram FTS5 table, so any substring of past
// output can be searched later.

package term

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

// HistoryResult is a single scrollback search match.
type HistoryResult struct {
	Timestamp time.Time
	Content   string
}

const historySchema = `
CREATE TABLE IF NOT EXISTS lines (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    timestamp INTEGER NOT NULL,       -- UnixNano
    content TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_lines_timestamp ON lines(timestamp);

CREATE VIRTUAL TABLE IF NOT EXISTS lines_fts USING fts5(
    content,
    content='lines',
    content_rowid='id',
    tokenize='trigram'
);

CREATE TRIGGER IF NOT EXISTS lines_ai AFTER INSERT ON lines BEGIN
    INSERT INTO lines_fts(rowid, content) VALUES (new.id, new.content);
END;

CREATE TRIGGER IF NOT EXISTS lines_ad AFTER DELETE ON lines BEGIN
    INSERT INTO lines_fts(lines_fts, rowid, content) VALUES ('delete', old.id, old.content);
END;
`

type historyEntry struct {
	timestamp time.Time
	content   string
}

// History indexes scrolled-off lines asynchronously. Append never blocks
// the terminal's read loop; a background goroutine batches inserts.
type History struct {
	db *sql.DB

	entries chan historyEntry
	flushCh chan chan struct{}
	stopCh  chan struct{}
	doneCh  chan struct{}

	batchSize    int
	batchTimeout time.Duration
}

// OpenHistory opens (or creates) the scrollback database at dbPath.
func OpenHistory(dbPath string) (*History, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create history dir: %w", err)
	}

	dsn := dbPath +
		"?_pragma=journal_mode(WAL)" +
		"&_pragma=synchronous(NORMAL)" +
		"&_pragma=temp_store(MEMORY)"

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open history db: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("connect history db: %w", err)
	}
	if _, err := db.Exec(historySchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("create history schema: %w", err)
	}

	h := &History{
		db:           db,
		entries:      make(chan historyEntry, 1000),
		flushCh:      make(chan chan struct{}),
		stopCh:       make(chan struct{}),
		doneCh:       make(chan struct{}),
		batchSize:    100,
		batchTimeout: 5 * time.Second,
	}
	go h.batchWriter()
	return h, nil
}

// Append queues one line for indexing. Empty lines are skipped; when the
// queue is full the line is dropped rather than stalling the PTY reader.
func (h *History) Append(text string) {
	if text == "" {
		return
	}
	select {
	case h.entries <- historyEntry{timestamp: time.Now(), content: text}:
	default:
	}
}

// Search returns up to limit lines containing query, newest first. Queries
// shorter than three characters cannot use the trigram index and match
// nothing.
func (h *History) Search(query string, limit int) ([]HistoryResult, error) {
	if len(query) < 3 {
		return nil, nil
	}
	rows, err := h.db.Query(`
		SELECT l.timestamp, l.content
		FROM lines_fts f
		JOIN lines l ON l.id = f.rowid
		WHERE lines_fts MATCH ?
		ORDER BY l.timestamp DESC
		LIMIT ?`, fts5Quote(query), limit)
	if err != nil {
		return nil, fmt.Errorf("history search: %w", err)
	}
	defer rows.Close()

	var out []HistoryResult
	for rows.Next() {
		var ts int64
		var content string
		if err := rows.Scan(&ts, &content); err != nil {
			return nil, err
		}
		out = append(out, HistoryResult{Timestamp: time.Unix(0, ts), Content: content})
	}
	return out, rows.Err()
}

// Flush blocks until every queued line is committed.
func (h *History) Flush() {
	done := make(chan struct{})
	select {
	case h.flushCh <- done:
		<-done
	case <-h.stopCh:
	}
}

// Close flushes pending lines and closes the database.
func (h *History) Close() error {
	select {
	case <-h.stopCh:
	default:
		close(h.stopCh)
		<-h.doneCh
	}
	return h.db.Close()
}

func (h *History) batchWriter() {
	defer close(h.doneCh)
	timer := time.NewTimer(h.batchTimeout)
	defer timer.Stop()

	var batch []historyEntry
	commit := func() {
		if len(batch) == 0 {
			return
		}
		h.commitBatch(batch)
		batch = batch[:0]
	}

	for {
		select {
		case e := <-h.entries:
			batch = append(batch, e)
			if len(batch) >= h.batchSize {
				commit()
			}
		case <-timer.C:
			commit()
			timer.Reset(h.batchTimeout)
		case done := <-h.flushCh:
			for {
				select {
				case e := <-h.entries:
					batch = append(batch, e)
					continue
				default:
				}
				break
			}
			commit()
			close(done)
		case <-h.stopCh:
			for {
				select {
				case e := <-h.entries:
					batch = append(batch, e)
					continue
				default:
				}
				break
			}
			commit()
			return
		}
	}
}

func (h *History) commitBatch(batch []historyEntry) {
	tx, err := h.db.Begin()
	if err != nil {
		return
	}
	stmt, err := tx.Prepare("INSERT INTO lines(timestamp, content) VALUES (?, ?)")
	if err != nil {
		tx.Rollback()
		return
	}
	for _, e := range batch {
		stmt.Exec(e.timestamp.UnixNano(), e.content)
	}
	stmt.Close()
	tx.Commit()
}

// fts5Quote wraps the query in double quotes so FTS5 treats it as a single
// string instead of query syntax.
func fts5Quote(q string) string {
	quoted := make([]byte, 0, len(q)+2)
	quoted = append(quoted, '"')
	for i := 0; i < len(q); i++ {
		if q[i] == '"' {
			quoted = append(quoted, '"')
		}
		quoted = append(quoted, q[i])
	}
	quoted = append(quoted, '"')
	return string(quoted)
}
