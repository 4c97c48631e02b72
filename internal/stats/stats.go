// Package stats aggregates the trade log into performance statistics for
// the status API and daily summaries.
package stats

import (
	"sort"

	"github.com/tgparkk/autoswingtrade/internal/domain"
)

// SymbolStats holds aggregated results for a single instrument. Win/loss
// counts and realized P&L come from sell records only; buys contribute to
// volume and turnover.
type SymbolStats struct {
	Symbol     string  `json:"symbol"`
	Name       string  `json:"name,omitempty"`
	Trades     int     `json:"trades"`
	BuyQty     int64   `json:"buy_qty"`
	SellQty    int64   `json:"sell_qty"`
	BuyAmount  float64 `json:"buy_amount"`
	SellAmount float64 `json:"sell_amount"`
	RealizedPL float64 `json:"realized_pl"`
	Wins       int     `json:"wins"`
	Losses     int     `json:"losses"`
}

// Summary is the portfolio-level aggregation over a period.
type Summary struct {
	TotalTrades  int     `json:"total_trades"`
	Buys         int     `json:"buys"`
	Sells        int     `json:"sells"`
	BuyAmount    float64 `json:"buy_amount"`
	SellAmount   float64 `json:"sell_amount"`
	RealizedPL   float64 `json:"realized_pl"`
	Wins         int     `json:"wins"`
	Losses       int     `json:"losses"`
	WinRate      float64 `json:"win_rate"`      // wins / (wins + losses), 0..1
	ProfitFactor float64 `json:"profit_factor"` // gross profit / gross loss
	AvgWin       float64 `json:"avg_win"`
	AvgLoss      float64 `json:"avg_loss"` // negative

	BySymbol []SymbolStats `json:"by_symbol"`
}

// Compute aggregates trade records into a Summary. A sell record counts as
// a win when its realized P&L is positive and a loss when negative;
// break-even sells count as neither.
func Compute(records []domain.TradeRecord) Summary {
	var s Summary
	var grossProfit, grossLoss float64

	perSymbol := make(map[string]*SymbolStats)
	for i := range records {
		r := &records[i]
		s.TotalTrades++

		sym, ok := perSymbol[r.Symbol]
		if !ok {
			sym = &SymbolStats{Symbol: r.Symbol, Name: r.Name}
			perSymbol[r.Symbol] = sym
		}
		sym.Trades++
		if sym.Name == "" {
			sym.Name = r.Name
		}

		if r.Side == domain.SideBuy {
			s.Buys++
			s.BuyAmount += r.Amount
			sym.BuyQty += r.Qty
			sym.BuyAmount += r.Amount
			continue
		}

		s.Sells++
		s.SellAmount += r.Amount
		s.RealizedPL += r.RealizedPL
		sym.SellQty += r.Qty
		sym.SellAmount += r.Amount
		sym.RealizedPL += r.RealizedPL

		switch {
		case r.RealizedPL > 0:
			s.Wins++
			sym.Wins++
			grossProfit += r.RealizedPL
		case r.RealizedPL < 0:
			s.Losses++
			sym.Losses++
			grossLoss += -r.RealizedPL
		}
	}

	if n := s.Wins + s.Losses; n > 0 {
		s.WinRate = float64(s.Wins) / float64(n)
	}
	if grossLoss > 0 {
		s.ProfitFactor = grossProfit / grossLoss
	} else if grossProfit > 0 {
		s.ProfitFactor = grossProfit // no losses; report gross profit
	}
	if s.Wins > 0 {
		s.AvgWin = grossProfit / float64(s.Wins)
	}
	if s.Losses > 0 {
		s.AvgLoss = -grossLoss / float64(s.Losses)
	}

	s.BySymbol = make([]SymbolStats, 0, len(perSymbol))
	for _, sym := range perSymbol {
		s.BySymbol = append(s.BySymbol, *sym)
	}
	sort.Slice(s.BySymbol, func(i, j int) bool {
		if s.BySymbol[i].RealizedPL != s.BySymbol[j].RealizedPL {
			return s.BySymbol[i].RealizedPL > s.BySymbol[j].RealizedPL
		}
		return s.BySymbol[i].Symbol < s.BySymbol[j].Symbol
	})
	return s
}
