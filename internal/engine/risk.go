package engine

import (
	"fmt"
	"math"
	"time"

	"github.com/tgparkk/autoswingtrade/internal/config"
	"github.com/tgparkk/autoswingtrade/internal/domain"
)

// RejectionError is a pre-trade validation failure. It is never retried and
// is reported to the caller synchronously.
type RejectionError struct {
	Reason  domain.RejectionReason
	Message string
}

func (e *RejectionError) Error() string {
	return fmt.Sprintf("%s: %s", e.Reason, e.Message)
}

func reject(reason domain.RejectionReason, format string, args ...any) *RejectionError {
	return &RejectionError{Reason: reason, Message: fmt.Sprintf(format, args...)}
}

// RiskManager enforces pre-trade validation rules and position-exit
// conditions from the trading configuration.
type RiskManager struct {
	cfg config.TradingConfig
}

// NewRiskManager creates a RiskManager with the given trading parameters.
func NewRiskManager(cfg config.TradingConfig) *RiskManager {
	return &RiskManager{cfg: cfg}
}

// ValidateBuy checks a buy intent against the account and ledger state and
// returns the quantity to submit, clamped by available cash and the
// per-position portfolio ratio.
func (rm *RiskManager) ValidateBuy(intent domain.TradeIntent, positionCount int, alreadyHeld bool, cash, totalValue float64) (int64, error) {
	if intent.Qty <= 0 || intent.Price <= 0 {
		return 0, reject(domain.RejectZeroQuantity, "qty %d at price %v", intent.Qty, intent.Price)
	}
	if alreadyHeld {
		return 0, reject(domain.RejectDuplicateHolding, "already holding %s", intent.Symbol)
	}
	if positionCount >= rm.cfg.MaxPositionCount {
		return 0, reject(domain.RejectPositionLimit, "%d/%d positions held", positionCount, rm.cfg.MaxPositionCount)
	}
	minInvestment := totalValue * rm.cfg.MinPositionRatio
	if cash < minInvestment {
		return 0, reject(domain.RejectInsufficientFunds, "cash %.0f below minimum investment %.0f", cash, minInvestment)
	}

	maxByCash := int64(cash / intent.Price)
	maxByRatio := int64(totalValue * rm.cfg.MaxPositionRatio / intent.Price)
	qty := intent.Qty
	if maxByCash < qty {
		qty = maxByCash
	}
	if maxByRatio < qty {
		qty = maxByRatio
	}
	if qty <= 0 {
		return 0, reject(domain.RejectInsufficientFunds, "no affordable quantity at price %v", intent.Price)
	}
	return qty, nil
}

// ValidateSell checks a sell intent against the held quantity, net of
// shares already reserved by other pending sell orders, and returns the
// quantity to submit.
func (rm *RiskManager) ValidateSell(intent domain.TradeIntent, heldQty, reservedQty int64) (int64, error) {
	if intent.Qty <= 0 {
		return 0, reject(domain.RejectZeroQuantity, "qty %d", intent.Qty)
	}
	if heldQty <= 0 {
		return 0, reject(domain.RejectNothingToSell, "no position in %s", intent.Symbol)
	}
	available := heldQty - reservedQty
	if available <= 0 {
		return 0, reject(domain.RejectNothingToSell,
			"%d held but %d reserved by pending sells", heldQty, reservedQty)
	}
	qty := intent.Qty
	if available < qty {
		qty = available
	}
	return qty, nil
}

// CheckExits scans positions for exit conditions and returns sell intents.
// Per position the first matching rule wins: explicit stop-loss price,
// ratio stop-loss, explicit take-profit price, ratio take-profit, maximum
// holding period, then the one-time partial exit.
func (rm *RiskManager) CheckExits(positions []domain.Position, now time.Time) []domain.TradeIntent {
	var intents []domain.TradeIntent
	for _, p := range positions {
		if p.Qty <= 0 || p.LastPrice <= 0 {
			continue
		}

		fullExit := func(reason string) domain.TradeIntent {
			return domain.TradeIntent{
				Symbol: p.Symbol,
				Name:   p.Name,
				Side:   domain.SideSell,
				Qty:    p.Qty,
				Price:  p.LastPrice,
				Reason: reason,
			}
		}

		switch {
		case p.StopLoss > 0 && p.LastPrice <= p.StopLoss:
			intents = append(intents, fullExit("stop loss"))
		case p.UnrealizedPLPct <= rm.cfg.StopLossRatio*100:
			intents = append(intents, fullExit("stop loss"))
		case p.TakeProfit > 0 && p.LastPrice >= p.TakeProfit:
			intents = append(intents, fullExit("take profit"))
		case p.UnrealizedPLPct >= rm.cfg.TakeProfitRatio*100:
			intents = append(intents, fullExit("take profit"))
		case heldDays(p.OpenedAt, now) >= rm.cfg.MaxHoldingDays:
			intents = append(intents, fullExit("max holding period"))
		case !p.PartialExitDone && heldDays(p.OpenedAt, now) >= rm.cfg.PartialExitDays:
			qty := int64(math.Ceil(float64(p.Qty) * rm.cfg.PartialExitRatio))
			if qty > 0 && qty < p.Qty {
				intents = append(intents, domain.TradeIntent{
					Symbol: p.Symbol,
					Name:   p.Name,
					Side:   domain.SideSell,
					Qty:    qty,
					Price:  p.LastPrice,
					Reason: "partial exit",
				})
			}
		}
	}
	return intents
}

func heldDays(openedAt, now time.Time) int {
	if openedAt.IsZero() {
		return 0
	}
	return int(now.Sub(openedAt).Hours() / 24)
}
