package model

import "time"

// Outcome is the settled result of a trade.
type Outcome string

const (
	OutcomeWin  Outcome = "win"
	OutcomeLoss Outcome = "loss"
)

// TradeRecord is one settled trade in the journal. Records are immutable
// once created; the in-memory journal view keeps only the most recent 50.
type TradeRecord struct {
	Seq       int64       `json:"seq"`
	Type      string      `json:"type"` // contract type, e.g. "DIGITEVEN", "CALL/PUT"
	Signal    Signal      `json:"signal"`
	Stake     float64     `json:"stake"`
	Outcome   Outcome     `json:"outcome"`
	Profit    float64     `json:"profit"` // signed
	Timestamp time.Time   `json:"timestamp"`
	Account   AccountKind `json:"account"`
}
