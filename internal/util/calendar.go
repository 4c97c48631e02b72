package util

import (
	"fmt"
	"time"
)

// TradingCalendar provides market-hours awareness for a single market
// session: a fixed open/close clock time in the market's timezone, closed on
// weekends. Exchange holidays are not modelled; orders resting over a
// holiday simply expire at the next session open plus their timeout.
type TradingCalendar struct {
	loc       *time.Location
	openHour  int
	openMin   int
	closeHour int
	closeMin  int
}

// NewTradingCalendar creates a TradingCalendar for the given timezone name
// and session times in "HH:MM" form.
func NewTradingCalendar(tz, open, close string) (*TradingCalendar, error) {
	loc, err := time.LoadLocation(tz)
	if err != nil {
		return nil, fmt.Errorf("loading timezone %q: %w", tz, err)
	}
	oh, om, err := parseClock(open)
	if err != nil {
		return nil, fmt.Errorf("parsing open time: %w", err)
	}
	ch, cm, err := parseClock(close)
	if err != nil {
		return nil, fmt.Errorf("parsing close time: %w", err)
	}
	return &TradingCalendar{
		loc:       loc,
		openHour:  oh,
		openMin:   om,
		closeHour: ch,
		closeMin:  cm,
	}, nil
}

func parseClock(s string) (hour, min int, err error) {
	t, err := time.Parse("15:04", s)
	if err != nil {
		return 0, 0, err
	}
	return t.Hour(), t.Minute(), nil
}

// SessionOpen returns the session open instant on t's trading day.
func (tc *TradingCalendar) SessionOpen(t time.Time) time.Time {
	lt := t.In(tc.loc)
	return time.Date(lt.Year(), lt.Month(), lt.Day(), tc.openHour, tc.openMin, 0, 0, tc.loc)
}

// SessionClose returns the session close instant on t's trading day.
func (tc *TradingCalendar) SessionClose(t time.Time) time.Time {
	lt := t.In(tc.loc)
	return time.Date(lt.Year(), lt.Month(), lt.Day(), tc.closeHour, tc.closeMin, 0, 0, tc.loc)
}

// IsMarketOpen returns whether the market is open at time t.
func (tc *TradingCalendar) IsMarketOpen(t time.Time) bool {
	lt := t.In(tc.loc)
	if lt.Weekday() == time.Saturday || lt.Weekday() == time.Sunday {
		return false
	}
	return !lt.Before(tc.SessionOpen(t)) && !lt.After(tc.SessionClose(t))
}

// NextOpen returns the next session open at or after t.
func (tc *TradingCalendar) NextOpen(t time.Time) time.Time {
	lt := t.In(tc.loc)
	open := tc.SessionOpen(lt)
	if lt.Before(open) && isWeekday(lt) {
		return open
	}
	next := lt.AddDate(0, 0, 1)
	for !isWeekday(next) {
		next = next.AddDate(0, 0, 1)
	}
	return tc.SessionOpen(next)
}

// ExpiryReference returns the clock anchor for order expiry. An order
// submitted during a session starts its clock at submission; one submitted
// outside a session (pre-open, after close, weekend) starts it at the next
// session open, so it cannot expire while the market is closed.
func (tc *TradingCalendar) ExpiryReference(submittedAt time.Time) time.Time {
	if tc.IsMarketOpen(submittedAt) {
		return submittedAt
	}
	return tc.NextOpen(submittedAt)
}

func isWeekday(t time.Time) bool {
	return t.Weekday() != time.Saturday && t.Weekday() != time.Sunday
}
