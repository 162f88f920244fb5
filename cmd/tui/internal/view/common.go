package view

import (
	"sync"

	"github.com/MrJamesThe3rd/salesledger/internal/session"
)

// Ledger guards the session shared by every screen. Commands run on their own
// goroutines, so all session access goes through Do.
type Ledger struct {
	mu sync.Mutex
	s  *session.Session
}

func NewLedger(s *session.Session) *Ledger {
	return &Ledger{s: s}
}

func (l *Ledger) Do(fn func(s *session.Session) error) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	return fn(l.s)
}

// Status is a one-line description of the session for the menu header.
func (l *Ledger) Status() string {
	var out string

	_ = l.Do(func(s *session.Session) error {
		acc, ok := s.User()
		if !ok {
			out = "not logged in"
			return nil
		}

		sum := s.Summary()
		out = acc.Username + " @ " + s.Owner().String() + " | " +
			FormatCount(sum.Records, "sale") + " | sales " + FormatMoney(sum.TotalSales) +
			" | profit " + FormatMoney(sum.Profit)

		if s.Dirty() {
			out += " | UNSAVED"
		}

		return nil
	})

	return out
}
