// Package store defines the persistence contracts for positions, trade
// records, and account snapshots, and provides SQLite and Parquet backends.
// The engine treats stores as best-effort: a failed write is logged and the
// in-memory state stays authoritative until the next successful write.
package store

import (
	"context"

	"github.com/tgparkk/autoswingtrade/internal/domain"
)

// PositionStore persists and restores positions across process restarts.
type PositionStore interface {
	// SavePosition inserts or replaces the position for its symbol.
	SavePosition(ctx context.Context, pos *domain.Position) error

	// UpdatePosition persists changes to an existing position.
	UpdatePosition(ctx context.Context, pos *domain.Position) error

	// RemovePosition deletes the position for a symbol.
	RemovePosition(ctx context.Context, symbol string) error

	// LoadActivePositions returns all active positions keyed by symbol,
	// for startup recovery. Reads tolerate columns added after the row was
	// written by substituting zero values.
	LoadActivePositions(ctx context.Context) (map[string]domain.Position, error)
}

// TradeStore appends and queries the immutable trade log.
type TradeStore interface {
	// SaveTradeRecord appends one executed fill. Records are never mutated.
	SaveTradeRecord(ctx context.Context, rec *domain.TradeRecord) error

	// ListTradeRecords returns records for the last `days` days, newest
	// first. An empty symbol matches all instruments.
	ListTradeRecords(ctx context.Context, symbol string, days int) ([]domain.TradeRecord, error)
}

// SnapshotStore persists periodic account snapshots.
type SnapshotStore interface {
	SaveAccountSnapshot(ctx context.Context, snap *domain.AccountSnapshot) error
}
