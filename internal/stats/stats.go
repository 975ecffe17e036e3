package stats

import (
	"sync"
	"time"
)

// Counter names one engine event worth counting.
type Counter string

const (
	Sessions         Counter = "sessions"
	Submissions      Counter = "submissions"
	Applied          Counter = "applied"
	StaleDropped     Counter = "stale_dropped"
	Failures         Counter = "failures"
	Redraws          Counter = "redraws"
	OverlayChanges   Counter = "overlay_changes"
	HistoryPublishes Counter = "history_publishes"
	SnapshotRestores Counter = "snapshot_restores"
	Reloads          Counter = "reloads"
)

// Process-wide totals plus per-day (UTC) breakdown, in memory only.
var (
	statsMu sync.Mutex
	totals  = make(map[Counter]int64)
	daily   = make(map[string]map[Counter]int64)
	now     = time.Now
)

// Inc adds one to c.
func Inc(c Counter) { Add(c, 1) }

// Add adds n to c for the current UTC day.
func Add(c Counter, n int64) {
	dateKey := now().UTC().Format("2006-01-02")
	statsMu.Lock()
	defer statsMu.Unlock()
	totals[c] += n
	day := daily[dateKey]
	if day == nil {
		day = make(map[Counter]int64)
		daily[dateKey] = day
	}
	day[c] += n
}

// Get returns the running total of c.
func Get(c Counter) int64 {
	statsMu.Lock()
	defer statsMu.Unlock()
	return totals[c]
}

// Snapshot is a copy of the counters for reporting.
type Snapshot struct {
	Totals map[Counter]int64 `json:"totals"`
	Today  map[Counter]int64 `json:"today"`
}

// Take copies the totals and today's counters.
func Take() Snapshot {
	dateKey := now().UTC().Format("2006-01-02")
	statsMu.Lock()
	defer statsMu.Unlock()
	s := Snapshot{Totals: make(map[Counter]int64, len(totals)), Today: map[Counter]int64{}}
	for k, v := range totals {
		s.Totals[k] = v
	}
	for k, v := range daily[dateKey] {
		s.Today[k] = v
	}
	return s
}
