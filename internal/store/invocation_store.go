package store

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/nhle/agentmail-skill/internal/model"
)

// timeLayout is fixed-width so stored timestamps sort lexically.
const timeLayout = "2006-01-02T15:04:05.000000000Z"

type invocationRow struct {
	ID         string `db:"id"`
	Tool       string `db:"tool"`
	OK         bool   `db:"ok"`
	Error      string `db:"error"`
	DurationMS int64  `db:"duration_ms"`
	CreatedAt  string `db:"created_at"`
}

func (r invocationRow) toModel() (model.Invocation, error) {
	created, err := time.Parse(timeLayout, r.CreatedAt)
	if err != nil {
		return model.Invocation{}, fmt.Errorf("parsing created_at of %s: %w", r.ID, err)
	}
	return model.Invocation{
		ID:        r.ID,
		Tool:      r.Tool,
		OK:        r.OK,
		Error:     r.Error,
		Duration:  time.Duration(r.DurationMS) * time.Millisecond,
		CreatedAt: created,
	}, nil
}

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

// RecordInvocation appends a tool call to the log.
func (s *SQLiteStore) RecordInvocation(ctx context.Context, inv model.Invocation) error {
	if inv.ID == "" {
		inv.ID = uuid.New().String()
	}
	if inv.CreatedAt.IsZero() {
		inv.CreatedAt = time.Now()
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO invocations (id, tool, ok, error, duration_ms, created_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		inv.ID, inv.Tool, inv.OK, inv.Error,
		inv.Duration.Milliseconds(), formatTime(inv.CreatedAt),
	)
	if err != nil {
		return fmt.Errorf("recording invocation of %s: %w", inv.Tool, err)
	}
	return nil
}

// RecentInvocations returns up to limit records, newest first.
func (s *SQLiteStore) RecentInvocations(ctx context.Context, limit int) ([]model.Invocation, error) {
	if limit <= 0 {
		return []model.Invocation{}, nil
	}

	var rows []invocationRow
	err := s.db.SelectContext(ctx, &rows, `
		SELECT id, tool, ok, error, duration_ms, created_at
		FROM invocations
		ORDER BY created_at DESC, rowid DESC
		LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("querying invocations: %w", err)
	}

	out := make([]model.Invocation, 0, len(rows))
	for _, r := range rows {
		inv, err := r.toModel()
		if err != nil {
			return nil, err
		}
		out = append(out, inv)
	}
	return out, nil
}

// ToolStats returns per-tool call and failure counts.
func (s *SQLiteStore) ToolStats(ctx context.Context) ([]model.ToolStats, error) {
	var rows []struct {
		Tool     string `db:"tool"`
		Calls    int    `db:"calls"`
		Failures int    `db:"failures"`
		LastCall string `db:"last_call"`
	}
	err := s.db.SelectContext(ctx, &rows, `
		SELECT tool,
		       COUNT(*) AS calls,
		       SUM(CASE WHEN ok THEN 0 ELSE 1 END) AS failures,
		       MAX(created_at) AS last_call
		FROM invocations
		GROUP BY tool
		ORDER BY tool`)
	if err != nil {
		return nil, fmt.Errorf("querying tool stats: %w", err)
	}

	out := make([]model.ToolStats, 0, len(rows))
	for _, r := range rows {
		last, err := time.Parse(timeLayout, r.LastCall)
		if err != nil {
			return nil, fmt.Errorf("parsing last call of %s: %w", r.Tool, err)
		}
		out = append(out, model.ToolStats{
			Tool:     r.Tool,
			Calls:    r.Calls,
			Failures: r.Failures,
			LastCall: last,
		})
	}
	return out, nil
}

// PruneInvocations deletes records created before cutoff.
func (s *SQLiteStore) PruneInvocations(ctx context.Context, before time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		"DELETE FROM invocations WHERE created_at < ?", formatTime(before))
	if err != nil {
		return 0, fmt.Errorf("pruning invocations: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("counting pruned invocations: %w", err)
	}
	return n, nil
}
