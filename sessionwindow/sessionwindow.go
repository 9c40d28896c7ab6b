// Package sessionwindow implements the session-window gate (spec §4.4,
// component C4): a per event-type, wall-clock UTC, time-of-day admission
// gate.
package sessionwindow

import "time"

// HourRange is a half-open wall-clock UTC hour range [Start, End). Hours run
// 0-23; End may be 24 to mean "through end of day". A range that crosses
// midnight (e.g. 22:00-02:00) must be represented by the caller as two
// segments: {22, 24} and {0, 2} (spec §4.4).
type HourRange struct {
	Start int
	End   int
}

// contains reports whether hour h (0-23) falls within r.
func (r HourRange) contains(h int) bool {
	return h >= r.Start && h < r.End
}

// Admit reports whether t falls within any of ranges. An empty ranges slice
// means no gating: every t is admitted (spec §4.4: "If empty, no gating").
func Admit(t time.Time, ranges []HourRange) bool {
	if len(ranges) == 0 {
		return true
	}
	h := t.UTC().Hour()
	for _, r := range ranges {
		if r.contains(h) {
			return true
		}
	}
	return false
}
