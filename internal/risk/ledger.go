// Package risk holds the account ledger and the pre-trade risk gate.
//
// The ledger owns all account and statistics mutation: balance pushes from
// the venue, simulated settlements, and the streak/P&L bookkeeping. The
// gate validates a prospective stake against the active account and the
// configured limits, failing closed.
package risk

import (
	"log"
	"sync"

	"derivbot/internal/model"
)

// Ledger tracks the demo and real accounts. Exactly one is active at a
// time; switching the active account resets its statistics.
type Ledger struct {
	mu       sync.RWMutex
	accounts map[model.AccountKind]*model.Account
	active   model.AccountKind
	stats    model.Stats
}

// NewLedger creates a ledger with zeroed demo and real accounts, demo
// active.
func NewLedger() *Ledger {
	return &Ledger{
		accounts: map[model.AccountKind]*model.Account{
			model.AccountDemo: {Kind: model.AccountDemo, Currency: "USD"},
			model.AccountReal: {Kind: model.AccountReal, Currency: "USD"},
		},
		active: model.AccountDemo,
	}
}

// SetActive switches the active account. Statistics reset on a switch;
// setting the already-active kind is a no-op.
func (l *Ledger) SetActive(kind model.AccountKind) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if kind == l.active {
		return
	}
	if _, ok := l.accounts[kind]; !ok {
		log.Printf("[ledger] unknown account kind %q, keeping %q", kind, l.active)
		return
	}
	l.active = kind
	l.stats = model.Stats{}
	log.Printf("[ledger] switched to %s account", kind)
}

// Active returns a snapshot of the active account.
func (l *Ledger) Active() model.Account {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return *l.accounts[l.active]
}

// ActiveKind returns the active account kind.
func (l *Ledger) ActiveKind() model.AccountKind {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.active
}

// Stats returns a snapshot of the active account's statistics.
func (l *Ledger) Stats() model.Stats {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.stats
}

// ApplyBalance records a confirmed balance push from the venue. The
// account_type field decides which account it lands on.
func (l *Ledger) ApplyBalance(kind model.AccountKind, loginID string, balance float64, currency string) model.Account {
	l.mu.Lock()
	defer l.mu.Unlock()

	acct, ok := l.accounts[kind]
	if !ok {
		log.Printf("[ledger] balance push for unknown account kind %q dropped", kind)
		return model.Account{}
	}
	acct.LoginID = loginID
	acct.Balance = balance
	if currency != "" {
		acct.Currency = currency
	}
	return *acct
}

// Settle applies a settled trade to the active account and statistics.
// Profit is signed. Streak semantics: a win after a losing streak
// restarts at +1 (never just increments the negative value); a loss
// after a winning streak restarts at -1.
func (l *Ledger) Settle(profit float64, win bool) (model.Account, model.Stats) {
	l.mu.Lock()
	defer l.mu.Unlock()

	acct := l.accounts[l.active]
	acct.Balance += profit
	acct.TotalPL += profit

	l.stats.TotalTrades++
	l.stats.TotalProfit += profit
	if win {
		l.stats.WinningTrades++
		if l.stats.Streak < 0 {
			l.stats.Streak = 1
		} else {
			l.stats.Streak++
		}
	} else {
		l.stats.LosingTrades++
		if l.stats.Streak > 0 {
			l.stats.Streak = -1
		} else {
			l.stats.Streak--
		}
	}

	return *acct, l.stats
}

// ResetStats zeroes the active account's statistics and cumulative P/L.
func (l *Ledger) ResetStats() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.stats = model.Stats{}
	l.accounts[l.active].TotalPL = 0
}
