// Package marketclock classifies wall-clock time into US equity
// trading-session states.
package marketclock

import (
	"time"
)

// SessionStatus is a trading-session classification.
type SessionStatus string

const (
	StatusOpen       SessionStatus = "open"
	StatusClosed     SessionStatus = "closed"
	StatusPreMarket  SessionStatus = "pre-market"
	StatusAfterHours SessionStatus = "after-hours"
)

// SessionState describes the market session at a given instant. NextOpen and
// NextClose are normalized to UTC.
type SessionState struct {
	IsOpen    bool          `json:"is_open"`
	Status    SessionStatus `json:"status"`
	NextOpen  *time.Time    `json:"next_open,omitempty"`
	NextClose *time.Time    `json:"next_close,omitempty"`
}

// US equity session boundaries, minutes after midnight exchange-local time.
const (
	preMarketStart = 4 * 60            // 04:00
	marketOpen     = 9*60 + 30         // 09:30
	marketClose    = 16 * 60           // 16:00
	afterHoursEnd  = 20 * 60           // 20:00
)

// Service evaluates session state against the exchange timezone.
type Service struct {
	loc *time.Location
}

// NewService creates a market clock for the US equities session.
func NewService() *Service {
	loc, err := time.LoadLocation("America/New_York")
	if err != nil {
		// No tzdata available; EST without DST is the closest approximation.
		loc = time.FixedZone("EST", -5*3600)
	}
	return &Service{loc: loc}
}

// Status classifies the given instant. Pure function of its input.
func (s *Service) Status(now time.Time) SessionState {
	local := now.In(s.loc)
	weekday := local.Weekday()

	if weekday == time.Saturday || weekday == time.Sunday {
		next := s.sessionOpen(nextWeekday(local, time.Monday))
		return SessionState{Status: StatusClosed, NextOpen: utcPtr(next)}
	}

	minutes := local.Hour()*60 + local.Minute()

	switch {
	case minutes >= marketOpen && minutes < marketClose:
		next := s.sessionClose(local)
		return SessionState{IsOpen: true, Status: StatusOpen, NextClose: utcPtr(next)}

	case minutes >= preMarketStart && minutes < marketOpen:
		next := s.sessionOpen(local)
		return SessionState{Status: StatusPreMarket, NextOpen: utcPtr(next)}

	case minutes >= marketClose && minutes < afterHoursEnd && weekday != time.Friday:
		// Post-close extended session; the next regular session is tomorrow.
		next := s.sessionOpen(local.AddDate(0, 0, 1))
		return SessionState{Status: StatusAfterHours, NextOpen: utcPtr(next)}

	case minutes < preMarketStart:
		// Overnight before the pre-market window; today's session still ahead.
		next := s.sessionOpen(local)
		return SessionState{Status: StatusClosed, NextOpen: utcPtr(next)}

	default:
		// Evening past the extended session, or any time after Friday's
		// close: the trading week has ended until the next trading day.
		next := s.sessionOpen(s.nextTradingDay(local))
		return SessionState{Status: StatusClosed, NextOpen: utcPtr(next)}
	}
}

// sessionOpen returns 09:30 exchange-local on the given day.
func (s *Service) sessionOpen(d time.Time) time.Time {
	return time.Date(d.Year(), d.Month(), d.Day(), 9, 30, 0, 0, s.loc)
}

// sessionClose returns 16:00 exchange-local on the given day.
func (s *Service) sessionClose(d time.Time) time.Time {
	return time.Date(d.Year(), d.Month(), d.Day(), 16, 0, 0, 0, s.loc)
}

// nextTradingDay returns the next weekday strictly after d.
func (s *Service) nextTradingDay(d time.Time) time.Time {
	next := d.AddDate(0, 0, 1)
	for next.Weekday() == time.Saturday || next.Weekday() == time.Sunday {
		next = next.AddDate(0, 0, 1)
	}
	return next
}

// nextWeekday returns the next occurrence of the given weekday strictly
// after d when d already falls on it.
func nextWeekday(d time.Time, target time.Weekday) time.Time {
	days := (int(target) - int(d.Weekday()) + 7) % 7
	if days == 0 {
		days = 7
	}
	return d.AddDate(0, 0, days)
}

func utcPtr(t time.Time) *time.Time {
	u := t.UTC()
	return &u
}
