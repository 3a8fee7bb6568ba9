package store

import (
	"context"
	"time"

	"github.com/nhle/agentmail-skill/internal/model"
)

// Store defines the persistence interface for the tool audit log.
type Store interface {
	// RecordInvocation appends a tool call to the log. A missing ID or
	// CreatedAt is filled in.
	RecordInvocation(ctx context.Context, inv model.Invocation) error

	// RecentInvocations returns up to limit records, newest first.
	RecentInvocations(ctx context.Context, limit int) ([]model.Invocation, error)

	// ToolStats returns per-tool call and failure counts, ordered by tool
	// name.
	ToolStats(ctx context.Context) ([]model.ToolStats, error)

	// PruneInvocations deletes records created before cutoff and returns
	// how many were removed.
	PruneInvocations(ctx context.Context, before time.Time) (int64, error)

	// Close releases the underlying database.
	Close() error
}
