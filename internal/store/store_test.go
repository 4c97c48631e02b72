package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/tgparkk/autoswingtrade/internal/domain"
)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	s, err := NewSQLiteStore(filepath.Join(t.TempDir(), "trading.db"))
	if err != nil {
		t.Fatalf("NewSQLiteStore: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestSQLitePositionRoundTrip(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	pos := &domain.Position{
		Symbol:      "005930",
		Name:        "Samsung Electronics",
		Qty:         10,
		AvgPrice:    70000,
		LastPrice:   71000,
		OpenedAt:    time.Date(2026, 8, 25, 9, 30, 0, 0, time.UTC),
		LastUpdate:  time.Date(2026, 8, 25, 10, 0, 0, 0, time.UTC),
		Status:      domain.PositionStatusActive,
		StopLoss:    69000,
		TakeProfit:  73000,
		EntryReason: "bullish engulfing",
		Pattern:     "engulfing",
	}
	pos.RecomputePL()

	if err := s.SavePosition(ctx, pos); err != nil {
		t.Fatalf("SavePosition: %v", err)
	}

	loaded, err := s.LoadActivePositions(ctx)
	if err != nil {
		t.Fatalf("LoadActivePositions: %v", err)
	}
	got, ok := loaded["005930"]
	if !ok {
		t.Fatal("saved position not returned by LoadActivePositions")
	}
	if got.Qty != 10 || got.AvgPrice != 70000 {
		t.Errorf("qty/avg = %d/%v, want 10/70000", got.Qty, got.AvgPrice)
	}
	if got.StopLoss != 69000 || got.TakeProfit != 73000 {
		t.Errorf("stop/take = %v/%v, want 69000/73000", got.StopLoss, got.TakeProfit)
	}
	if got.EntryReason != "bullish engulfing" || got.Pattern != "engulfing" {
		t.Errorf("strategy metadata not preserved: %+v", got)
	}
	if !got.OpenedAt.Equal(pos.OpenedAt) {
		t.Errorf("OpenedAt = %v, want %v", got.OpenedAt, pos.OpenedAt)
	}
}

func TestSQLiteSaveIsUpsert(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	pos := &domain.Position{
		Symbol: "AAA", Qty: 10, AvgPrice: 100,
		OpenedAt: time.Now(), LastUpdate: time.Now(),
		Status: domain.PositionStatusActive,
	}
	if err := s.SavePosition(ctx, pos); err != nil {
		t.Fatalf("SavePosition: %v", err)
	}

	pos.Qty = 20
	pos.AvgPrice = 110
	if err := s.SavePosition(ctx, pos); err != nil {
		t.Fatalf("second SavePosition: %v", err)
	}

	loaded, _ := s.LoadActivePositions(ctx)
	if len(loaded) != 1 {
		t.Fatalf("got %d positions, want 1 (upsert)", len(loaded))
	}
	if got := loaded["AAA"]; got.Qty != 20 || got.AvgPrice != 110 {
		t.Errorf("after upsert qty/avg = %d/%v, want 20/110", got.Qty, got.AvgPrice)
	}
}

func TestSQLiteUpdateMissingRowFallsBackToInsert(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	pos := &domain.Position{
		Symbol: "BBB", Qty: 5, AvgPrice: 50,
		OpenedAt: time.Now(), LastUpdate: time.Now(),
		Status: domain.PositionStatusActive,
	}
	if err := s.UpdatePosition(ctx, pos); err != nil {
		t.Fatalf("UpdatePosition on missing row: %v", err)
	}

	loaded, _ := s.LoadActivePositions(ctx)
	if _, ok := loaded["BBB"]; !ok {
		t.Error("UpdatePosition should insert when the row is missing")
	}
}

func TestSQLiteRemovePosition(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	pos := &domain.Position{
		Symbol: "CCC", Qty: 5, AvgPrice: 50,
		OpenedAt: time.Now(), LastUpdate: time.Now(),
		Status: domain.PositionStatusActive,
	}
	s.SavePosition(ctx, pos)
	if err := s.RemovePosition(ctx, "CCC"); err != nil {
		t.Fatalf("RemovePosition: %v", err)
	}

	loaded, _ := s.LoadActivePositions(ctx)
	if len(loaded) != 0 {
		t.Errorf("positions after remove = %+v, want none", loaded)
	}
}

func TestSQLiteClosedPositionsExcluded(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	s.SavePosition(ctx, &domain.Position{
		Symbol: "DDD", Qty: 0, AvgPrice: 50,
		OpenedAt: time.Now(), LastUpdate: time.Now(),
		Status: domain.PositionStatusClosed,
	})

	loaded, _ := s.LoadActivePositions(ctx)
	if len(loaded) != 0 {
		t.Errorf("closed position returned by LoadActivePositions: %+v", loaded)
	}
}

func TestSQLiteLoadKeepsPartiallySoldRows(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	// A database written by an older build may label a partially sold
	// holding "partial". It still carries quantity and strategy metadata,
	// so recovery must load it.
	s.SavePosition(ctx, &domain.Position{
		Symbol: "EEE", Qty: 15, AvgPrice: 100, StopLoss: 950,
		OpenedAt: time.Now(), LastUpdate: time.Now(),
		Status: domain.PositionStatus("partial"),
	})

	loaded, err := s.LoadActivePositions(ctx)
	if err != nil {
		t.Fatalf("LoadActivePositions: %v", err)
	}
	got, ok := loaded["EEE"]
	if !ok {
		t.Fatal("still-held position missing from recovery load")
	}
	if got.Qty != 15 || got.StopLoss != 950 {
		t.Errorf("qty/stop = %d/%v, want 15/950", got.Qty, got.StopLoss)
	}
}

func TestSQLiteTradeRecords(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	recs := []domain.TradeRecord{
		{Timestamp: time.Now().Add(-time.Hour), Side: domain.SideBuy, Symbol: "AAA", Qty: 10, Price: 100, Amount: 1000, OrderID: "o1"},
		{Timestamp: time.Now(), Side: domain.SideSell, Symbol: "AAA", Qty: 5, Price: 110, Amount: 550, OrderID: "o2", RealizedPL: 50},
		{Timestamp: time.Now(), Side: domain.SideBuy, Symbol: "BBB", Qty: 3, Price: 200, Amount: 600, OrderID: "o3"},
	}
	for i := range recs {
		if err := s.SaveTradeRecord(ctx, &recs[i]); err != nil {
			t.Fatalf("SaveTradeRecord: %v", err)
		}
	}

	all, err := s.ListTradeRecords(ctx, "", 7)
	if err != nil {
		t.Fatalf("ListTradeRecords: %v", err)
	}
	if len(all) != 3 {
		t.Fatalf("got %d records, want 3", len(all))
	}

	aaa, _ := s.ListTradeRecords(ctx, "AAA", 7)
	if len(aaa) != 2 {
		t.Fatalf("got %d AAA records, want 2", len(aaa))
	}
	// Newest first.
	if aaa[0].Side != domain.SideSell || aaa[0].RealizedPL != 50 {
		t.Errorf("first AAA record = %+v, want the sell", aaa[0])
	}
}

func TestSQLiteAccountSnapshot(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	err := s.SaveAccountSnapshot(ctx, &domain.AccountSnapshot{
		Timestamp:     time.Now(),
		TotalValue:    1_000_000,
		Cash:          400_000,
		StockValue:    600_000,
		PositionCount: 3,
	})
	if err != nil {
		t.Fatalf("SaveAccountSnapshot: %v", err)
	}
}

func TestParquetArchiveRoundTrip(t *testing.T) {
	a := NewParquetArchive(t.TempDir())

	day := time.Date(2026, 8, 25, 10, 30, 0, 0, time.UTC)
	records := []domain.TradeRecord{
		{Timestamp: day, Side: domain.SideBuy, Symbol: "AAA", Qty: 10, Price: 100, Amount: 1000, OrderID: "o1"},
		{Timestamp: day.Add(time.Hour), Side: domain.SideSell, Symbol: "AAA", Qty: 10, Price: 105, Amount: 1050, OrderID: "o2", RealizedPL: 50},
	}
	if err := a.ArchiveFills(records); err != nil {
		t.Fatalf("ArchiveFills: %v", err)
	}

	got, err := a.ReadFills("2026-08-25")
	if err != nil {
		t.Fatalf("ReadFills: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("got %d records, want 2", len(got))
	}
	if got[0].OrderID != "o1" || got[1].RealizedPL != 50 {
		t.Errorf("archived records out of order or lossy: %+v", got)
	}

	// Re-archiving the same records is idempotent.
	if err := a.ArchiveFills(records); err != nil {
		t.Fatalf("second ArchiveFills: %v", err)
	}
	got, _ = a.ReadFills("2026-08-25")
	if len(got) != 2 {
		t.Errorf("after re-archive got %d records, want 2 (dedup)", len(got))
	}
}

func TestParquetArchiveMissingDay(t *testing.T) {
	a := NewParquetArchive(t.TempDir())
	got, err := a.ReadFills("2000-01-01")
	if err != nil {
		t.Fatalf("ReadFills on missing day: %v", err)
	}
	if got != nil {
		t.Errorf("ReadFills on missing day = %+v, want nil", got)
	}
}
