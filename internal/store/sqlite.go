package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	_ "modernc.org/sqlite" // Pure-Go SQLite driver.

	"github.com/tgparkk/autoswingtrade/internal/domain"
)

// Compile-time interface checks.
var _ PositionStore = (*SQLiteStore)(nil)
var _ TradeStore = (*SQLiteStore)(nil)
var _ SnapshotStore = (*SQLiteStore)(nil)

// SQLiteStore implements PositionStore, TradeStore, and SnapshotStore backed
// by a SQLite database.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens (or creates) a SQLite database at dbPath, creates the
// schema if needed, and returns a ready-to-use SQLiteStore.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, err
	}
	s := &SQLiteStore{db: db}
	if err := s.createTables(); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating tables: %w", err)
	}
	return s, nil
}

// Close closes the underlying database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) createTables() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS positions (
			symbol TEXT PRIMARY KEY,
			name TEXT NOT NULL DEFAULT '',
			qty INTEGER NOT NULL,
			avg_price REAL NOT NULL,
			last_price REAL NOT NULL DEFAULT 0,
			unrealized_pl REAL NOT NULL DEFAULT 0,
			unrealized_pl_pct REAL NOT NULL DEFAULT 0,
			opened_at TEXT NOT NULL,
			last_update TEXT NOT NULL,
			status TEXT NOT NULL DEFAULT 'active',
			stop_loss REAL NOT NULL DEFAULT 0,
			take_profit REAL NOT NULL DEFAULT 0,
			entry_reason TEXT NOT NULL DEFAULT ''
		)`,
		`CREATE TABLE IF NOT EXISTS trade_records (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			timestamp TEXT NOT NULL,
			side TEXT NOT NULL,
			symbol TEXT NOT NULL,
			name TEXT NOT NULL DEFAULT '',
			qty INTEGER NOT NULL,
			price REAL NOT NULL,
			amount REAL NOT NULL,
			reason TEXT NOT NULL DEFAULT '',
			order_id TEXT NOT NULL DEFAULT '',
			realized_pl REAL NOT NULL DEFAULT 0
		)`,
		`CREATE TABLE IF NOT EXISTS account_snapshots (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			timestamp TEXT NOT NULL,
			total_value REAL NOT NULL,
			cash REAL NOT NULL,
			stock_value REAL NOT NULL,
			unrealized_pl REAL NOT NULL,
			position_count INTEGER NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_trade_records_symbol ON trade_records(symbol)`,
		`CREATE INDEX IF NOT EXISTS idx_trade_records_timestamp ON trade_records(timestamp)`,
	}
	for _, stmt := range stmts {
		if _, err := s.db.Exec(stmt); err != nil {
			return err
		}
	}

	// Columns added after the initial schema. Older databases get them on
	// open; rows written before the column existed read back as the default.
	optional := map[string]string{
		"pattern":           "TEXT NOT NULL DEFAULT ''",
		"partial_exit_done": "INTEGER NOT NULL DEFAULT 0",
		"price_stale":       "INTEGER NOT NULL DEFAULT 0",
	}
	return s.ensureColumns("positions", optional)
}

// ensureColumns adds any missing columns to the table so that schema
// evolution never requires a migration step.
func (s *SQLiteStore) ensureColumns(table string, cols map[string]string) error {
	rows, err := s.db.Query(fmt.Sprintf("PRAGMA table_info(%s)", table))
	if err != nil {
		return err
	}
	existing := make(map[string]bool)
	for rows.Next() {
		var cid int
		var name, ctype string
		var notnull, pk int
		var dflt sql.NullString
		if err := rows.Scan(&cid, &name, &ctype, &notnull, &dflt, &pk); err != nil {
			rows.Close()
			return err
		}
		existing[strings.ToLower(name)] = true
	}
	rows.Close()

	for name, def := range cols {
		if existing[name] {
			continue
		}
		if _, err := s.db.Exec(fmt.Sprintf("ALTER TABLE %s ADD COLUMN %s %s", table, name, def)); err != nil {
			return fmt.Errorf("adding column %s.%s: %w", table, name, err)
		}
	}
	return nil
}

// ---------------------------------------------------------------------------
// PositionStore implementation
// ---------------------------------------------------------------------------

// SavePosition inserts or replaces the position row for its symbol.
func (s *SQLiteStore) SavePosition(ctx context.Context, pos *domain.Position) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO positions (
			symbol, name, qty, avg_price, last_price, unrealized_pl,
			unrealized_pl_pct, opened_at, last_update, status, stop_loss,
			take_profit, entry_reason, pattern, partial_exit_done, price_stale
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(symbol) DO UPDATE SET
			name = excluded.name,
			qty = excluded.qty,
			avg_price = excluded.avg_price,
			last_price = excluded.last_price,
			unrealized_pl = excluded.unrealized_pl,
			unrealized_pl_pct = excluded.unrealized_pl_pct,
			last_update = excluded.last_update,
			status = excluded.status,
			stop_loss = excluded.stop_loss,
			take_profit = excluded.take_profit,
			entry_reason = excluded.entry_reason,
			pattern = excluded.pattern,
			partial_exit_done = excluded.partial_exit_done,
			price_stale = excluded.price_stale`,
		pos.Symbol, pos.Name, pos.Qty, pos.AvgPrice, pos.LastPrice,
		pos.UnrealizedPL, pos.UnrealizedPLPct,
		pos.OpenedAt.Format(time.RFC3339), pos.LastUpdate.Format(time.RFC3339),
		string(pos.Status), pos.StopLoss, pos.TakeProfit, pos.EntryReason,
		pos.Pattern, boolInt(pos.PartialExitDone), boolInt(pos.PriceStale))
	if err != nil {
		return fmt.Errorf("saving position %s: %w", pos.Symbol, err)
	}
	return nil
}

// UpdatePosition persists changes to an existing position row.
func (s *SQLiteStore) UpdatePosition(ctx context.Context, pos *domain.Position) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE positions SET
			qty = ?, avg_price = ?, last_price = ?, unrealized_pl = ?,
			unrealized_pl_pct = ?, last_update = ?, status = ?, stop_loss = ?,
			take_profit = ?, partial_exit_done = ?, price_stale = ?
		WHERE symbol = ?`,
		pos.Qty, pos.AvgPrice, pos.LastPrice, pos.UnrealizedPL,
		pos.UnrealizedPLPct, pos.LastUpdate.Format(time.RFC3339),
		string(pos.Status), pos.StopLoss, pos.TakeProfit,
		boolInt(pos.PartialExitDone), boolInt(pos.PriceStale), pos.Symbol)
	if err != nil {
		return fmt.Errorf("updating position %s: %w", pos.Symbol, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		// Row missing (e.g. cleared by an operator); fall back to insert.
		return s.SavePosition(ctx, pos)
	}
	return nil
}

// RemovePosition deletes the position row for a symbol.
func (s *SQLiteStore) RemovePosition(ctx context.Context, symbol string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM positions WHERE symbol = ?`, symbol); err != nil {
		return fmt.Errorf("removing position %s: %w", symbol, err)
	}
	return nil
}

// LoadActivePositions returns all still-held positions keyed by symbol.
// Every row with quantity is a live holding whatever its status label, so
// only closed rows are skipped; a row from a database written by an older
// build must not vanish from recovery over its label.
func (s *SQLiteStore) LoadActivePositions(ctx context.Context) (map[string]domain.Position, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT symbol, name, qty, avg_price, last_price, unrealized_pl,
		       unrealized_pl_pct, opened_at, last_update, status, stop_loss,
		       take_profit, entry_reason, pattern, partial_exit_done, price_stale
		FROM positions
		WHERE status != 'closed' AND qty > 0
		ORDER BY opened_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("loading active positions: %w", err)
	}
	defer rows.Close()

	positions := make(map[string]domain.Position)
	for rows.Next() {
		var p domain.Position
		var openedAt, lastUpdate, status string
		var partialDone, priceStale int
		if err := rows.Scan(
			&p.Symbol, &p.Name, &p.Qty, &p.AvgPrice, &p.LastPrice,
			&p.UnrealizedPL, &p.UnrealizedPLPct, &openedAt, &lastUpdate,
			&status, &p.StopLoss, &p.TakeProfit, &p.EntryReason, &p.Pattern,
			&partialDone, &priceStale,
		); err != nil {
			return nil, fmt.Errorf("scanning position row: %w", err)
		}
		p.OpenedAt, _ = time.Parse(time.RFC3339, openedAt)
		p.LastUpdate, _ = time.Parse(time.RFC3339, lastUpdate)
		p.Status = domain.PositionStatus(status)
		p.PartialExitDone = partialDone != 0
		p.PriceStale = priceStale != 0
		positions[p.Symbol] = p
	}
	return positions, rows.Err()
}

// ---------------------------------------------------------------------------
// TradeStore implementation
// ---------------------------------------------------------------------------

// SaveTradeRecord appends one trade record.
func (s *SQLiteStore) SaveTradeRecord(ctx context.Context, rec *domain.TradeRecord) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO trade_records (
			timestamp, side, symbol, name, qty, price, amount, reason,
			order_id, realized_pl
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.Timestamp.Format(time.RFC3339), string(rec.Side), rec.Symbol,
		rec.Name, rec.Qty, rec.Price, rec.Amount, rec.Reason, rec.OrderID,
		rec.RealizedPL)
	if err != nil {
		return fmt.Errorf("saving trade record for %s: %w", rec.Symbol, err)
	}
	return nil
}

// ListTradeRecords returns records for the last `days` days, newest first.
func (s *SQLiteStore) ListTradeRecords(ctx context.Context, symbol string, days int) ([]domain.TradeRecord, error) {
	since := time.Now().AddDate(0, 0, -days).Format(time.RFC3339)

	query := `
		SELECT timestamp, side, symbol, name, qty, price, amount, reason,
		       order_id, realized_pl
		FROM trade_records
		WHERE timestamp >= ?`
	args := []any{since}
	if symbol != "" {
		query += ` AND symbol = ?`
		args = append(args, symbol)
	}
	query += ` ORDER BY timestamp DESC`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("listing trade records: %w", err)
	}
	defer rows.Close()

	var records []domain.TradeRecord
	for rows.Next() {
		var r domain.TradeRecord
		var ts, side string
		if err := rows.Scan(&ts, &side, &r.Symbol, &r.Name, &r.Qty, &r.Price,
			&r.Amount, &r.Reason, &r.OrderID, &r.RealizedPL); err != nil {
			return nil, fmt.Errorf("scanning trade record: %w", err)
		}
		r.Timestamp, _ = time.Parse(time.RFC3339, ts)
		r.Side = domain.Side(side)
		records = append(records, r)
	}
	return records, rows.Err()
}

// ---------------------------------------------------------------------------
// SnapshotStore implementation
// ---------------------------------------------------------------------------

// SaveAccountSnapshot appends one account snapshot.
func (s *SQLiteStore) SaveAccountSnapshot(ctx context.Context, snap *domain.AccountSnapshot) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO account_snapshots (
			timestamp, total_value, cash, stock_value, unrealized_pl, position_count
		) VALUES (?, ?, ?, ?, ?, ?)`,
		snap.Timestamp.Format(time.RFC3339), snap.TotalValue, snap.Cash,
		snap.StockValue, snap.UnrealizedPL, snap.PositionCount)
	if err != nil {
		return fmt.Errorf("saving account snapshot: %w", err)
	}
	return nil
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
