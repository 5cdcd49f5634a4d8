package store

import (
	"context"
	"fmt"
	"time"

	"github.com/Abuzaid-01/Float-Chat/internal/compiler"
	"github.com/Abuzaid-01/Float-Chat/internal/engine"
)

// RecordRejection inserts a rejected compilation. It implements
// compiler.AuditSink.
func (s *Store) RecordRejection(ctx context.Context, r compiler.Rejection) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO rejections
		(question, code, reason, draft, created_at)
		VALUES (?, ?, ?, ?, ?)
	`,
		r.Question,
		string(r.Code),
		r.Reason,
		r.Draft,
		formatTime(r.At),
	)
	if err != nil {
		return fmt.Errorf("write rejection: %w", err)
	}
	return nil
}

// RecordCompilation inserts a compiled statement. requestID may be empty
// for compilations outside a request, such as the compile command.
func (s *Store) RecordCompilation(ctx context.Context, requestID, question string, q compiler.CompiledQuery, at time.Time) error {
	warnings, err := marshalWarnings(q.Warnings)
	if err != nil {
		return fmt.Errorf("write compilation: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO compilations
		(request_id, question, sql_text, source, cache_key, cached, complexity, warnings, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		requestID,
		question,
		q.SQL,
		string(q.Source),
		q.CacheKey,
		boolInt(q.Cached),
		q.Complexity,
		warnings,
		formatTime(at),
	)
	if err != nil {
		return fmt.Errorf("write compilation: %w", err)
	}
	return nil
}

// RecordExecution inserts a request and every tool execution of its
// report in one transaction. Returns inserted=false when the request was
// already logged; the call is then a no-op.
func (s *Store) RecordExecution(ctx context.Context, report *engine.ExecutionReport, at time.Time) (inserted bool, err error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return false, fmt.Errorf("write execution: begin tx: %w", err)
	}
	defer tx.Rollback() // No-op if committed

	res, err := tx.ExecContext(ctx, `
		INSERT INTO requests
		(id, question, succeeded, failed, elapsed_ms, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO NOTHING
	`,
		report.RequestID,
		report.Question,
		report.Succeeded(),
		report.Failed(),
		report.Elapsed.Milliseconds(),
		formatTime(at),
	)
	if err != nil {
		return false, fmt.Errorf("write execution: insert request: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("write execution: rows affected: %w", err)
	}
	if n == 0 {
		return false, nil
	}

	for _, r := range report.Results {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO tool_executions
			(request_id, invocation_id, tool_name, status, attempts, duration_ms, error_code, error_message, seq)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT(request_id, invocation_id) DO NOTHING
		`,
			report.RequestID,
			r.InvocationID,
			r.ToolName,
			string(r.Status),
			r.Attempts,
			r.Duration.Milliseconds(),
			r.ErrorCode,
			r.ErrorMessage,
			r.Seq,
		)
		if err != nil {
			return false, fmt.Errorf("write execution: insert %s: %w", r.InvocationID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return false, fmt.Errorf("write execution: commit: %w", err)
	}
	return true, nil
}
