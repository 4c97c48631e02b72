package engine

import (
	"errors"
	"testing"
	"time"

	"github.com/tgparkk/autoswingtrade/internal/config"
	"github.com/tgparkk/autoswingtrade/internal/domain"
)

func testTradingConfig() config.TradingConfig {
	return config.TradingConfig{
		MaxPositionCount: 3,
		MaxPositionRatio: 0.2,
		MinPositionRatio: 0.05,
		StopLossRatio:    -0.01,
		TakeProfitRatio:  0.03,
		MaxHoldingDays:   5,
		PartialExitDays:  3,
		PartialExitRatio: 0.5,
	}
}

func wantReject(t *testing.T, err error, reason domain.RejectionReason) {
	t.Helper()
	var rej *RejectionError
	if !errors.As(err, &rej) {
		t.Fatalf("got %v, want RejectionError", err)
	}
	if rej.Reason != reason {
		t.Fatalf("rejection reason = %s, want %s", rej.Reason, reason)
	}
}

func TestValidateBuy(t *testing.T) {
	rm := NewRiskManager(testTradingConfig())
	intent := domain.TradeIntent{Symbol: "005930", Side: domain.SideBuy, Qty: 100, Price: 1000}

	t.Run("accepted within limits", func(t *testing.T) {
		qty, err := rm.ValidateBuy(intent, 0, false, 1_000_000, 1_000_000)
		if err != nil {
			t.Fatal(err)
		}
		// 1M * 0.2 / 1000 = 200 by ratio, 1000 by cash; requested 100 stands.
		if qty != 100 {
			t.Errorf("qty = %d, want 100", qty)
		}
	})

	t.Run("clamped by position ratio", func(t *testing.T) {
		qty, err := rm.ValidateBuy(domain.TradeIntent{Symbol: "A", Side: domain.SideBuy, Qty: 500, Price: 1000},
			0, false, 1_000_000, 1_000_000)
		if err != nil {
			t.Fatal(err)
		}
		if qty != 200 {
			t.Errorf("qty = %d, want 200 (ratio clamp)", qty)
		}
	})

	t.Run("clamped by cash", func(t *testing.T) {
		qty, err := rm.ValidateBuy(domain.TradeIntent{Symbol: "A", Side: domain.SideBuy, Qty: 500, Price: 1000},
			0, false, 150_500, 1_000_000)
		if err != nil {
			t.Fatal(err)
		}
		if qty != 150 {
			t.Errorf("qty = %d, want 150 (cash clamp)", qty)
		}
	})

	t.Run("zero quantity", func(t *testing.T) {
		_, err := rm.ValidateBuy(domain.TradeIntent{Symbol: "A", Side: domain.SideBuy, Qty: 0, Price: 1000},
			0, false, 1_000_000, 1_000_000)
		wantReject(t, err, domain.RejectZeroQuantity)
	})

	t.Run("duplicate holding", func(t *testing.T) {
		_, err := rm.ValidateBuy(intent, 1, true, 1_000_000, 1_000_000)
		wantReject(t, err, domain.RejectDuplicateHolding)
	})

	t.Run("position limit", func(t *testing.T) {
		_, err := rm.ValidateBuy(intent, 3, false, 1_000_000, 1_000_000)
		wantReject(t, err, domain.RejectPositionLimit)
	})

	t.Run("below minimum investment", func(t *testing.T) {
		_, err := rm.ValidateBuy(intent, 0, false, 40_000, 1_000_000)
		wantReject(t, err, domain.RejectInsufficientFunds)
	})
}

func TestValidateSell(t *testing.T) {
	rm := NewRiskManager(testTradingConfig())
	intent := domain.TradeIntent{Symbol: "005930", Side: domain.SideSell, Qty: 10, Price: 1000}

	t.Run("accepted", func(t *testing.T) {
		qty, err := rm.ValidateSell(intent, 10, 0)
		if err != nil || qty != 10 {
			t.Fatalf("qty=%d err=%v", qty, err)
		}
	})

	t.Run("clamped to available", func(t *testing.T) {
		qty, err := rm.ValidateSell(intent, 8, 0)
		if err != nil || qty != 8 {
			t.Fatalf("qty=%d err=%v, want 8", qty, err)
		}
	})

	t.Run("reserved shares excluded", func(t *testing.T) {
		qty, err := rm.ValidateSell(intent, 10, 7)
		if err != nil || qty != 3 {
			t.Fatalf("qty=%d err=%v, want 3", qty, err)
		}
	})

	t.Run("fully reserved", func(t *testing.T) {
		_, err := rm.ValidateSell(intent, 10, 10)
		wantReject(t, err, domain.RejectNothingToSell)
	})

	t.Run("no position", func(t *testing.T) {
		_, err := rm.ValidateSell(intent, 0, 0)
		wantReject(t, err, domain.RejectNothingToSell)
	})
}

func TestCheckExits(t *testing.T) {
	rm := NewRiskManager(testTradingConfig())
	now := time.Date(2026, 8, 28, 10, 0, 0, 0, time.UTC)

	pos := func(mutate func(*domain.Position)) domain.Position {
		p := domain.Position{
			Symbol:    "A",
			Qty:       10,
			AvgPrice:  100,
			LastPrice: 100,
			OpenedAt:  now.Add(-24 * time.Hour),
			Status:    domain.PositionStatusActive,
		}
		mutate(&p)
		p.RecomputePL()
		return p
	}

	tests := []struct {
		name       string
		p          domain.Position
		wantReason string
		wantQty    int64
	}{
		{
			name:       "explicit stop loss price",
			p:          pos(func(p *domain.Position) { p.StopLoss = 98; p.LastPrice = 97 }),
			wantReason: "stop loss",
			wantQty:    10,
		},
		{
			name:       "ratio stop loss",
			p:          pos(func(p *domain.Position) { p.LastPrice = 98 }),
			wantReason: "stop loss",
			wantQty:    10,
		},
		{
			name:       "explicit take profit price",
			p:          pos(func(p *domain.Position) { p.TakeProfit = 102; p.LastPrice = 102.5 }),
			wantReason: "take profit",
			wantQty:    10,
		},
		{
			name:       "ratio take profit",
			p:          pos(func(p *domain.Position) { p.LastPrice = 104 }),
			wantReason: "take profit",
			wantQty:    10,
		},
		{
			name:       "max holding period",
			p:          pos(func(p *domain.Position) { p.OpenedAt = now.Add(-6 * 24 * time.Hour) }),
			wantReason: "max holding period",
			wantQty:    10,
		},
		{
			name:       "partial exit after holding window",
			p:          pos(func(p *domain.Position) { p.OpenedAt = now.Add(-3 * 24 * time.Hour) }),
			wantReason: "partial exit",
			wantQty:    5,
		},
		{
			name: "partial exit only once",
			p: pos(func(p *domain.Position) {
				p.OpenedAt = now.Add(-3 * 24 * time.Hour)
				p.PartialExitDone = true
			}),
		},
		{
			name: "healthy position untouched",
			p:    pos(func(p *domain.Position) { p.LastPrice = 101 }),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			intents := rm.CheckExits([]domain.Position{tt.p}, now)
			if tt.wantReason == "" {
				if len(intents) != 0 {
					t.Fatalf("expected no exit, got %+v", intents)
				}
				return
			}
			if len(intents) != 1 {
				t.Fatalf("expected 1 exit intent, got %d", len(intents))
			}
			got := intents[0]
			if got.Reason != tt.wantReason || got.Qty != tt.wantQty || got.Side != domain.SideSell {
				t.Errorf("got %+v, want reason=%q qty=%d", got, tt.wantReason, tt.wantQty)
			}
		})
	}
}

func TestCheckExitsSkipsStaleZeroPrice(t *testing.T) {
	rm := NewRiskManager(testTradingConfig())
	p := domain.Position{Symbol: "A", Qty: 10, AvgPrice: 100, LastPrice: 0}
	if intents := rm.CheckExits([]domain.Position{p}, time.Now()); len(intents) != 0 {
		t.Errorf("zero-price position must not trigger exits, got %+v", intents)
	}
}
