package stats

// This file contains helpers around the per-day breakdown. It complements stats.go.

// ResetDaily clears the per-day breakdown, keeping the totals.
func ResetDaily() {
	statsMu.Lock()
	defer statsMu.Unlock()
	for k := range daily {
		delete(daily, k)
	}
}

// Reset clears everything. Intended for tests.
func Reset() {
	statsMu.Lock()
	defer statsMu.Unlock()
	for k := range totals {
		delete(totals, k)
	}
	for k := range daily {
		delete(daily, k)
	}
}

// Days lists the dates (YYYY-MM-DD, UTC) that have counters.
func Days() []string {
	statsMu.Lock()
	defer statsMu.Unlock()
	out := make([]string, 0, len(daily))
	for k := range daily {
		out = append(out, k)
	}
	return out
}
