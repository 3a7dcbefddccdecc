package model

import "strings"

// Tick represents a single price update from the Deriv WebSocket stream.
// Quote is kept as the venue's decimal string so the trailing digit is
// exactly what the venue printed (float formatting would drop "1.2340"
// to "1.234" and change the digit).
type Tick struct {
	Symbol string `json:"symbol"`
	Quote  string `json:"quote"`
	Epoch  int64  `json:"epoch"` // venue timestamp, unix seconds
}

// LastDigit returns the final decimal digit of the quote, or -1 when the
// quote does not end in a digit.
func (t Tick) LastDigit() int {
	return LastDigit(t.Quote)
}

// LastDigit extracts the trailing decimal digit of a quote string.
// Returns -1 for an empty or malformed quote.
func LastDigit(quote string) int {
	quote = strings.TrimSpace(quote)
	if quote == "" {
		return -1
	}
	c := quote[len(quote)-1]
	if c < '0' || c > '9' {
		return -1
	}
	return int(c - '0')
}
