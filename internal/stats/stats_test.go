package stats

import (
	"math"
	"testing"

	"github.com/tgparkk/autoswingtrade/internal/domain"
)

func almostEqual(a, b float64) bool { return math.Abs(a-b) < 1e-9 }

func TestComputeEmpty(t *testing.T) {
	s := Compute(nil)
	if s.TotalTrades != 0 || s.WinRate != 0 || s.ProfitFactor != 0 {
		t.Errorf("empty summary not zero: %+v", s)
	}
	if len(s.BySymbol) != 0 {
		t.Errorf("empty summary has symbols: %+v", s.BySymbol)
	}
}

func TestComputeSummary(t *testing.T) {
	records := []domain.TradeRecord{
		{Side: domain.SideBuy, Symbol: "A", Name: "Alpha", Qty: 10, Price: 100, Amount: 1000},
		{Side: domain.SideSell, Symbol: "A", Name: "Alpha", Qty: 10, Price: 120, Amount: 1200, RealizedPL: 200},
		{Side: domain.SideBuy, Symbol: "B", Qty: 5, Price: 200, Amount: 1000},
		{Side: domain.SideSell, Symbol: "B", Qty: 5, Price: 180, Amount: 900, RealizedPL: -100},
		{Side: domain.SideBuy, Symbol: "C", Qty: 2, Price: 50, Amount: 100},
		{Side: domain.SideSell, Symbol: "C", Qty: 2, Price: 50, Amount: 100, RealizedPL: 0},
	}

	s := Compute(records)

	if s.TotalTrades != 6 || s.Buys != 3 || s.Sells != 3 {
		t.Errorf("counts: %+v", s)
	}
	if !almostEqual(s.RealizedPL, 100) {
		t.Errorf("realized = %v, want 100", s.RealizedPL)
	}
	if s.Wins != 1 || s.Losses != 1 {
		t.Errorf("wins=%d losses=%d, want 1/1 (break-even excluded)", s.Wins, s.Losses)
	}
	if !almostEqual(s.WinRate, 0.5) {
		t.Errorf("win rate = %v, want 0.5", s.WinRate)
	}
	if !almostEqual(s.ProfitFactor, 2) {
		t.Errorf("profit factor = %v, want 2", s.ProfitFactor)
	}
	if !almostEqual(s.AvgWin, 200) || !almostEqual(s.AvgLoss, -100) {
		t.Errorf("avg win/loss = %v/%v", s.AvgWin, s.AvgLoss)
	}
}

func TestComputePerSymbolSortedByRealized(t *testing.T) {
	records := []domain.TradeRecord{
		{Side: domain.SideSell, Symbol: "LOSS", Qty: 1, Amount: 100, RealizedPL: -50},
		{Side: domain.SideSell, Symbol: "WIN", Qty: 1, Amount: 100, RealizedPL: 80},
		{Side: domain.SideSell, Symbol: "FLAT", Qty: 1, Amount: 100, RealizedPL: 0},
	}

	s := Compute(records)
	if len(s.BySymbol) != 3 {
		t.Fatalf("symbols = %d", len(s.BySymbol))
	}
	order := []string{"WIN", "FLAT", "LOSS"}
	for i, want := range order {
		if s.BySymbol[i].Symbol != want {
			t.Errorf("position %d = %s, want %s", i, s.BySymbol[i].Symbol, want)
		}
	}
}

func TestComputeNoLosses(t *testing.T) {
	records := []domain.TradeRecord{
		{Side: domain.SideSell, Symbol: "A", Qty: 1, Amount: 100, RealizedPL: 30},
		{Side: domain.SideSell, Symbol: "A", Qty: 1, Amount: 100, RealizedPL: 70},
	}
	s := Compute(records)
	if !almostEqual(s.WinRate, 1) {
		t.Errorf("win rate = %v, want 1", s.WinRate)
	}
	if !almostEqual(s.ProfitFactor, 100) {
		t.Errorf("profit factor = %v", s.ProfitFactor)
	}
}
