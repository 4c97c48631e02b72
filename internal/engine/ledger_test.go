package engine

import (
	"errors"
	"io"
	"log/slog"
	"math"
	"testing"
	"time"

	"github.com/tgparkk/autoswingtrade/internal/domain"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func almostEqual(a, b float64) bool { return math.Abs(a-b) < 1e-9 }

func TestLedgerBuyAveragesCost(t *testing.T) {
	l := NewLedger(testLogger())
	l.SetAccount(1_000_000, 1_000_000)

	pos, _, closed, err := l.ApplyFill(domain.SideBuy, "005930", 10, 100, FillMeta{Name: "Samsung"})
	if err != nil || closed {
		t.Fatalf("first buy: err=%v closed=%v", err, closed)
	}
	if pos.Qty != 10 || !almostEqual(pos.AvgPrice, 100) {
		t.Fatalf("after first buy: qty=%d avg=%v", pos.Qty, pos.AvgPrice)
	}

	pos, _, _, err = l.ApplyFill(domain.SideBuy, "005930", 10, 120, FillMeta{})
	if err != nil {
		t.Fatal(err)
	}
	if pos.Qty != 20 || !almostEqual(pos.AvgPrice, 110) {
		t.Errorf("after second buy: qty=%d avg=%v, want 20@110", pos.Qty, pos.AvgPrice)
	}
	if got := l.Cash(); !almostEqual(got, 1_000_000-10*100-10*120) {
		t.Errorf("cash = %v", got)
	}
}

func TestLedgerSellRealizesAndCloses(t *testing.T) {
	l := NewLedger(testLogger())
	l.SetAccount(10_000, 10_000)
	if _, _, _, err := l.ApplyFill(domain.SideBuy, "A", 20, 110, FillMeta{}); err != nil {
		t.Fatal(err)
	}

	pos, realized, closed, err := l.ApplyFill(domain.SideSell, "A", 5, 130, FillMeta{})
	if err != nil {
		t.Fatal(err)
	}
	if closed {
		t.Fatal("partial sell must not close the position")
	}
	if !almostEqual(realized, (130-110)*5) {
		t.Errorf("realized = %v, want 100", realized)
	}
	// Average cost is unchanged by a sell.
	if pos.Qty != 15 || !almostEqual(pos.AvgPrice, 110) {
		t.Errorf("after sell: qty=%d avg=%v", pos.Qty, pos.AvgPrice)
	}
	// The position stays active after a partial sell; restart recovery
	// loads it like any other holding.
	if pos.Status != domain.PositionStatusActive {
		t.Errorf("status = %s, want active", pos.Status)
	}

	_, realized, closed, err = l.ApplyFill(domain.SideSell, "A", 15, 90, FillMeta{})
	if err != nil {
		t.Fatal(err)
	}
	if !closed {
		t.Error("selling the full remainder must close the position")
	}
	if !almostEqual(realized, (90-110)*15) {
		t.Errorf("realized = %v, want -300", realized)
	}
	if l.Has("A") {
		t.Error("closed position should be removed from the ledger")
	}
}

func TestLedgerOversell(t *testing.T) {
	l := NewLedger(testLogger())
	if _, _, _, err := l.ApplyFill(domain.SideBuy, "A", 5, 100, FillMeta{}); err != nil {
		t.Fatal(err)
	}

	_, _, _, err := l.ApplyFill(domain.SideSell, "A", 6, 100, FillMeta{})
	if !errors.Is(err, ErrOversell) {
		t.Fatalf("got %v, want ErrOversell", err)
	}
	// State untouched on rejection.
	if pos, _ := l.Get("A"); pos.Qty != 5 {
		t.Errorf("qty after rejected sell = %d, want 5", pos.Qty)
	}

	_, _, _, err = l.ApplyFill(domain.SideSell, "B", 1, 100, FillMeta{})
	if !errors.Is(err, ErrOversell) {
		t.Fatalf("sell with no position: got %v, want ErrOversell", err)
	}
}

func TestLedgerUpdatePrice(t *testing.T) {
	l := NewLedger(testLogger())
	if _, _, _, err := l.ApplyFill(domain.SideBuy, "A", 10, 100, FillMeta{}); err != nil {
		t.Fatal(err)
	}

	pos, ok := l.UpdatePrice("A", 105, false)
	if !ok {
		t.Fatal("position should exist")
	}
	if !almostEqual(pos.UnrealizedPL, 50) || !almostEqual(pos.UnrealizedPLPct, 5) {
		t.Errorf("pl=%v pct=%v, want 50/5", pos.UnrealizedPL, pos.UnrealizedPLPct)
	}
	if pos.PriceStale {
		t.Error("fresh quote should clear the stale flag")
	}

	pos, _ = l.UpdatePrice("A", pos.LastPrice, true)
	if !pos.PriceStale {
		t.Error("failed refresh must mark the price stale")
	}
	if !almostEqual(pos.LastPrice, 105) {
		t.Errorf("stale update must keep the old price, got %v", pos.LastPrice)
	}

	if _, ok := l.UpdatePrice("missing", 100, false); ok {
		t.Error("unknown symbol should report not found")
	}
}

func TestLedgerRestoreMergesBrokerAndStore(t *testing.T) {
	l := NewLedger(testLogger())
	opened := time.Date(2026, 8, 20, 9, 30, 0, 0, time.UTC)

	holdings := []domain.Holding{
		{Symbol: "A", Name: "Alpha", Qty: 12, AvgPrice: 100, LastPrice: 104},
		{Symbol: "B", Name: "Beta", Qty: 3, AvgPrice: 50, LastPrice: 55},
	}
	stored := map[string]domain.Position{
		// Stale quantity: broker says 12, store says 10. Broker wins.
		"A": {Symbol: "A", Qty: 10, AvgPrice: 99, StopLoss: 95, TakeProfit: 115,
			EntryReason: "breakout", Pattern: "cup-handle", OpenedAt: opened, PartialExitDone: true},
		// Store-only: resolved at the broker while down, kept with quote refresh.
		"C": {Symbol: "C", Qty: 7, AvgPrice: 200, LastPrice: 190, OpenedAt: opened},
	}

	l.Restore(holdings, stored, func(symbol string) (float64, error) {
		if symbol == "C" {
			return 210, nil
		}
		return 0, errors.New("no quote")
	})

	a, ok := l.Get("A")
	if !ok {
		t.Fatal("A missing after restore")
	}
	if a.Qty != 12 || !almostEqual(a.AvgPrice, 100) {
		t.Errorf("broker must win qty/price: got %d@%v", a.Qty, a.AvgPrice)
	}
	if a.StopLoss != 95 || a.TakeProfit != 115 || a.EntryReason != "breakout" ||
		a.Pattern != "cup-handle" || !a.PartialExitDone {
		t.Errorf("store metadata lost: %+v", a)
	}
	if !a.OpenedAt.Equal(opened) {
		t.Errorf("stored open time lost: %v", a.OpenedAt)
	}

	b, ok := l.Get("B")
	if !ok {
		t.Fatal("broker-only holding B missing")
	}
	if b.StopLoss != 0 {
		t.Errorf("B has no stored metadata, got stop %v", b.StopLoss)
	}

	c, ok := l.Get("C")
	if !ok {
		t.Fatal("store-only position C missing")
	}
	if !almostEqual(c.LastPrice, 210) || c.PriceStale {
		t.Errorf("C quote refresh: price=%v stale=%v", c.LastPrice, c.PriceStale)
	}
}

func TestLedgerRestoreStoreOnlyQuoteFailure(t *testing.T) {
	l := NewLedger(testLogger())
	stored := map[string]domain.Position{
		"C": {Symbol: "C", Qty: 7, AvgPrice: 200, LastPrice: 190},
	}
	l.Restore(nil, stored, func(string) (float64, error) {
		return 0, errors.New("quote service down")
	})

	c, ok := l.Get("C")
	if !ok {
		t.Fatal("C missing")
	}
	if !c.PriceStale {
		t.Error("failed quote must flag the restored price stale")
	}
	if !almostEqual(c.LastPrice, 190) {
		t.Errorf("stale restore must keep the stored price, got %v", c.LastPrice)
	}
}

func TestLedgerReadsReturnCopies(t *testing.T) {
	l := NewLedger(testLogger())
	if _, _, _, err := l.ApplyFill(domain.SideBuy, "A", 10, 100, FillMeta{}); err != nil {
		t.Fatal(err)
	}

	pos, _ := l.Get("A")
	pos.Qty = 999

	again, _ := l.Get("A")
	if again.Qty != 10 {
		t.Error("mutating a returned copy must not affect the ledger")
	}
}
