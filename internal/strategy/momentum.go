package strategy

import "derivbot/internal/digits"

// Momentum compares the mean of the most recent 5 digits against the mean
// of the preceding 5 and maps the difference into [0.5, 1]: a base of 0.5
// plus the normalized shift, clamped at 1. With fewer than 10 digits the
// available halves are used; an empty history scores the base 0.5.
func Momentum(h *digits.History) float64 {
	window := h.Recent(10)
	if len(window) == 0 {
		return 0.5
	}

	split := 5
	if split > len(window) {
		split = len(window)
	}
	recentAvg := mean(window[:split])
	olderAvg := recentAvg
	if len(window) > split {
		olderAvg = mean(window[split:])
	}

	delta := recentAvg - olderAvg
	if delta < 0 {
		delta = -delta
	}
	m := delta/9 + 0.5
	if m > 1 {
		m = 1
	}
	return m
}

func mean(digits []int) float64 {
	if len(digits) == 0 {
		return 0
	}
	sum := 0
	for _, d := range digits {
		sum += d
	}
	return float64(sum) / float64(len(digits))
}
