package model

// AccountKind distinguishes the two Deriv account types.
type AccountKind string

const (
	AccountDemo AccountKind = "demo"
	AccountReal AccountKind = "real"
)

// Account mirrors one Deriv account. Balance and TotalPL are in the
// account currency. Exactly one account is active at a time; the ledger
// owns all mutation.
type Account struct {
	Kind     AccountKind `json:"kind"`
	LoginID  string      `json:"loginid,omitempty"`
	Balance  float64     `json:"balance"`
	Currency string      `json:"currency"`
	TotalPL  float64     `json:"total_pl"` // cumulative signed P/L since last reset
}

// Stats tracks per-account trade statistics. Streak is signed: positive
// counts consecutive wins, negative consecutive losses. A win after a
// losing streak restarts it at +1, a loss after a winning streak at -1.
type Stats struct {
	TotalTrades   int     `json:"total_trades"`
	WinningTrades int     `json:"winning_trades"`
	LosingTrades  int     `json:"losing_trades"`
	TotalProfit   float64 `json:"total_profit"`
	Streak        int     `json:"streak"`
}

// WinRate returns the winning percentage, 0 when no trades yet.
func (s Stats) WinRate() float64 {
	if s.TotalTrades == 0 {
		return 0
	}
	return float64(s.WinningTrades) / float64(s.TotalTrades) * 100
}
