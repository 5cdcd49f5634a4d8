package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// RequestRecord is one logged request.
type RequestRecord struct {
	ID        string        `json:"id"`
	Question  string        `json:"question"`
	Succeeded int           `json:"succeeded"`
	Failed    int           `json:"failed"`
	Elapsed   time.Duration `json:"elapsed"`
	CreatedAt time.Time     `json:"created_at"`
}

// ExecutionRecord is one logged tool execution.
type ExecutionRecord struct {
	RequestID    string        `json:"request_id"`
	InvocationID string        `json:"invocation_id"`
	ToolName     string        `json:"tool_name"`
	Status       string        `json:"status"`
	Attempts     int           `json:"attempts"`
	Duration     time.Duration `json:"duration"`
	ErrorCode    string        `json:"error_code,omitempty"`
	ErrorMessage string        `json:"error_message,omitempty"`
	Seq          int64         `json:"seq"`
}

// CompilationRecord is one logged statement.
type CompilationRecord struct {
	ID         int64     `json:"id"`
	RequestID  string    `json:"request_id,omitempty"`
	Question   string    `json:"question"`
	SQL        string    `json:"sql"`
	Source     string    `json:"source"`
	CacheKey   string    `json:"cache_key"`
	Cached     bool      `json:"cached"`
	Complexity int       `json:"complexity"`
	Warnings   []string  `json:"warnings,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
}

// RejectionRecord is one logged rejection.
type RejectionRecord struct {
	ID        int64     `json:"id"`
	Question  string    `json:"question"`
	Code      string    `json:"code"`
	Reason    string    `json:"reason"`
	Draft     string    `json:"draft,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// Counts are row totals per table.
type Counts struct {
	Requests     int `json:"requests"`
	Executions   int `json:"executions"`
	Failures     int `json:"failed_executions"`
	Compilations int `json:"compilations"`
	CacheHits    int `json:"cache_hits"`
	Rejections   int `json:"rejections"`
}

// sqliteLimit maps a non-positive limit to SQLite's "no limit".
func sqliteLimit(limit int) int {
	if limit <= 0 {
		return -1
	}
	return limit
}

// Requests returns the most recently logged requests first.
func (s *Store) Requests(ctx context.Context, limit int) ([]RequestRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, question, succeeded, failed, elapsed_ms, created_at
		FROM requests
		ORDER BY rowid DESC
		LIMIT ?
	`, sqliteLimit(limit))
	if err != nil {
		return nil, fmt.Errorf("query requests: %w", err)
	}
	defer rows.Close()

	records := []RequestRecord{}
	for rows.Next() {
		rec, err := scanRequest(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate requests: %w", err)
	}
	return records, nil
}

// ReadRequest returns a request and its executions in completion order.
// Returns sql.ErrNoRows if not found.
func (s *Store) ReadRequest(ctx context.Context, id string) (RequestRecord, []ExecutionRecord, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, question, succeeded, failed, elapsed_ms, created_at
		FROM requests
		WHERE id = ?
	`, id)
	req, err := scanRequest(row)
	if err != nil {
		return RequestRecord{}, nil, err
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT request_id, invocation_id, tool_name, status, attempts, duration_ms, error_code, error_message, seq
		FROM tool_executions
		WHERE request_id = ?
		ORDER BY seq ASC, id ASC
	`, id)
	if err != nil {
		return RequestRecord{}, nil, fmt.Errorf("query executions: %w", err)
	}
	defer rows.Close()

	execs := []ExecutionRecord{}
	for rows.Next() {
		var (
			rec        ExecutionRecord
			durationMs int64
		)
		if err := rows.Scan(
			&rec.RequestID,
			&rec.InvocationID,
			&rec.ToolName,
			&rec.Status,
			&rec.Attempts,
			&durationMs,
			&rec.ErrorCode,
			&rec.ErrorMessage,
			&rec.Seq,
		); err != nil {
			return RequestRecord{}, nil, fmt.Errorf("scan execution: %w", err)
		}
		rec.Duration = time.Duration(durationMs) * time.Millisecond
		execs = append(execs, rec)
	}
	if err := rows.Err(); err != nil {
		return RequestRecord{}, nil, fmt.Errorf("iterate executions: %w", err)
	}
	return req, execs, nil
}

// Compilations returns the most recently logged statements first.
func (s *Store) Compilations(ctx context.Context, limit int) ([]CompilationRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, request_id, question, sql_text, source, cache_key, cached, complexity, warnings, created_at
		FROM compilations
		ORDER BY id DESC
		LIMIT ?
	`, sqliteLimit(limit))
	if err != nil {
		return nil, fmt.Errorf("query compilations: %w", err)
	}
	defer rows.Close()

	records := []CompilationRecord{}
	for rows.Next() {
		var (
			rec       CompilationRecord
			cached    int
			warnings  string
			createdAt string
		)
		if err := rows.Scan(
			&rec.ID,
			&rec.RequestID,
			&rec.Question,
			&rec.SQL,
			&rec.Source,
			&rec.CacheKey,
			&cached,
			&rec.Complexity,
			&warnings,
			&createdAt,
		); err != nil {
			return nil, fmt.Errorf("scan compilation: %w", err)
		}
		rec.Cached = cached != 0
		if rec.Warnings, err = unmarshalWarnings(warnings); err != nil {
			return nil, err
		}
		if rec.CreatedAt, err = parseTime(createdAt); err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate compilations: %w", err)
	}
	return records, nil
}

// Rejections returns the most recently logged rejections first.
func (s *Store) Rejections(ctx context.Context, limit int) ([]RejectionRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, question, code, reason, draft, created_at
		FROM rejections
		ORDER BY id DESC
		LIMIT ?
	`, sqliteLimit(limit))
	if err != nil {
		return nil, fmt.Errorf("query rejections: %w", err)
	}
	defer rows.Close()

	records := []RejectionRecord{}
	for rows.Next() {
		var (
			rec       RejectionRecord
			createdAt string
		)
		if err := rows.Scan(&rec.ID, &rec.Question, &rec.Code, &rec.Reason, &rec.Draft, &createdAt); err != nil {
			return nil, fmt.Errorf("scan rejection: %w", err)
		}
		if rec.CreatedAt, err = parseTime(createdAt); err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate rejections: %w", err)
	}
	return records, nil
}

// Counts returns table totals.
func (s *Store) Counts(ctx context.Context) (Counts, error) {
	var c Counts
	err := s.db.QueryRowContext(ctx, `
		SELECT
			(SELECT COUNT(*) FROM requests),
			(SELECT COUNT(*) FROM tool_executions),
			(SELECT COUNT(*) FROM tool_executions WHERE status = 'failed'),
			(SELECT COUNT(*) FROM compilations),
			(SELECT COUNT(*) FROM compilations WHERE cached = 1),
			(SELECT COUNT(*) FROM rejections)
	`).Scan(&c.Requests, &c.Executions, &c.Failures, &c.Compilations, &c.CacheHits, &c.Rejections)
	if err != nil {
		return Counts{}, fmt.Errorf("query counts: %w", err)
	}
	return c, nil
}

// rowScanner is satisfied by *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

// scanRequest passes sql.ErrNoRows through unwrapped.
func scanRequest(row rowScanner) (RequestRecord, error) {
	var (
		rec       RequestRecord
		elapsedMs int64
		createdAt string
	)
	err := row.Scan(&rec.ID, &rec.Question, &rec.Succeeded, &rec.Failed, &elapsedMs, &createdAt)
	if err == sql.ErrNoRows {
		return RequestRecord{}, err
	}
	if err != nil {
		return RequestRecord{}, fmt.Errorf("scan request: %w", err)
	}
	rec.Elapsed = time.Duration(elapsedMs) * time.Millisecond
	if rec.CreatedAt, err = parseTime(createdAt); err != nil {
		return RequestRecord{}, err
	}
	return rec, nil
}
