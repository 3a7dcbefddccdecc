package risk

import "sync"

// Settings are the configurable risk thresholds. All three are fractions.
type Settings struct {
	RiskPerTrade        float64 `json:"risk_per_trade"`       // max stake as fraction of balance
	MaxDailyLoss        float64 `json:"max_daily_loss"`       // P/L swing cap as fraction of balance
	ConfidenceThreshold float64 `json:"confidence_threshold"` // minimum combined confidence, 0..1
}

// DefaultSettings returns conservative defaults matching the UI defaults.
func DefaultSettings() Settings {
	return Settings{
		RiskPerTrade:        0.02,
		MaxDailyLoss:        0.1,
		ConfidenceThreshold: 0.8,
	}
}

// Gate validates prospective trades against the ledger and the limits.
// Every check fails closed: any violated limit blocks the trade.
type Gate struct {
	mu       sync.RWMutex
	settings Settings
	ledger   *Ledger
	running  func() bool
}

// NewGate creates a gate over the given ledger. running reports whether
// the bot is accepting trades; a nil func means always running.
func NewGate(settings Settings, ledger *Ledger, running func() bool) *Gate {
	return &Gate{settings: settings, ledger: ledger, running: running}
}

// UpdateSettings replaces the risk thresholds at runtime.
func (g *Gate) UpdateSettings(s Settings) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.settings = s
}

// Settings returns the current thresholds.
func (g *Gate) Settings() Settings {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.settings
}

// CanTrade reports whether a trade with the given stake is allowed.
// Returns false with a reason when any check fails.
func (g *Gate) CanTrade(stake float64) (bool, string) {
	g.mu.RLock()
	s := g.settings
	g.mu.RUnlock()

	if g.running != nil && !g.running() {
		return false, "bot is not running"
	}
	if stake <= 0 {
		return false, "stake must be positive"
	}

	acct := g.ledger.Active()
	if stake > acct.Balance {
		return false, "insufficient balance"
	}
	if stake > acct.Balance*s.RiskPerTrade {
		return false, "stake exceeds risk per trade limit"
	}

	dailyLossLimit := acct.Balance * s.MaxDailyLoss
	pl := acct.TotalPL
	if pl < 0 {
		pl = -pl
	}
	if pl > dailyLossLimit {
		return false, "daily loss limit reached"
	}

	return true, ""
}

// MeetsConfidence reports whether a combined confidence (0..100) clears
// the configured threshold.
func (g *Gate) MeetsConfidence(confidence float64) bool {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return confidence >= g.settings.ConfidenceThreshold*100
}
