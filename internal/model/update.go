package model

import (
	"encoding/json"
	"time"
)

// UpdateKind discriminates updates emitted to the UI boundary.
type UpdateKind string

const (
	UpdatePrediction UpdateKind = "prediction"
	UpdateDigits     UpdateKind = "digits"
	UpdateAccount    UpdateKind = "account"
	UpdateTrade      UpdateKind = "trade"
	UpdateActivity   UpdateKind = "activity"
	UpdateStatus     UpdateKind = "status"
)

// Severity classifies activity-log events, mirroring the UI log levels.
type Severity string

const (
	SevInfo    Severity = "info"
	SevSuccess Severity = "success"
	SevWarning Severity = "warning"
	SevError   Severity = "error"
)

// Activity is one structured log event for the UI activity feed
// (connect, disconnect, reconnect attempt, trade result, risk rejection).
type Activity struct {
	Time     time.Time `json:"time"`
	Severity Severity  `json:"severity"`
	Message  string    `json:"message"`
}

// DigitsSnapshot is the rendering payload for the digit display: the short
// cursor window plus percentage stats over the long window.
type DigitsSnapshot struct {
	Last     int         `json:"last"`
	Window   []int       `json:"window"`   // most-recent-first, cap 10
	Percents [10]float64 `json:"percents"` // share of each digit over the long window
}

// Update is the single envelope type fanned out to UI consumers (gateway,
// Redis publisher). Exactly one payload field is set per kind.
type Update struct {
	Kind       UpdateKind      `json:"kind"`
	Prediction *Prediction     `json:"prediction,omitempty"`
	Digits     *DigitsSnapshot `json:"digits,omitempty"`
	Account    *Account        `json:"account,omitempty"`
	Stats      *Stats          `json:"stats,omitempty"`
	Trade      *TradeRecord    `json:"trade,omitempty"`
	Activity   *Activity       `json:"activity,omitempty"`
	Status     string          `json:"status,omitempty"` // running | stopped | connected | ...
}

// JSON returns the JSON-encoded update (errors ignored on the hot path).
func (u Update) JSON() []byte {
	b, _ := json.Marshal(u)
	return b
}
