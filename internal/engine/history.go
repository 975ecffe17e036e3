package engine

import (
	"fmt"
	"net/url"
	"strings"

	lru "github.com/hashicorp/golang-lru/v2"
)

// ParamStyle is how the form state is written into the query string.
type ParamStyle string

const (
	ParamQuery ParamStyle = "q"   // ?q=<escaped state>
	ParamRaw   ParamStyle = "raw" // ?<state>
)

// HistoryMode decides what back/forward navigation does.
type HistoryMode string

const (
	ModeReload   HistoryMode = "reload"
	ModeSnapshot HistoryMode = "snapshot"
)

// NoAutoSubmitParam suppresses the automatic request on page load.
const NoAutoSubmitParam = "nas"

// StateURL is the relative URL that carries formState.
func StateURL(style ParamStyle, formState string) string {
	if style == ParamRaw {
		return "?" + formState
	}
	return "?" + url.Values{"q": {formState}}.Encode()
}

// StateFromQuery extracts the form state from a raw query string (without the leading '?').
func StateFromQuery(style ParamStyle, rawQuery string) string {
	rawQuery = strings.TrimPrefix(rawQuery, "?")
	if style == ParamRaw {
		return rawQuery
	}
	v, err := url.ParseQuery(rawQuery)
	if err != nil {
		return ""
	}
	return v.Get("q")
}

// ShouldAutoSubmit reports whether a page loaded with rawQuery submits on its own.
func ShouldAutoSubmit(rawQuery string) bool {
	rawQuery = strings.TrimPrefix(rawQuery, "?")
	if rawQuery == "" {
		return false
	}
	v, err := url.ParseQuery(rawQuery)
	if err != nil {
		return true
	}
	return !v.Has(NoAutoSubmitParam)
}

// History keeps the page URL in step with the last successful submission.
type History struct {
	style     ParamStyle
	mode      HistoryMode
	snapshots *lru.Cache[string, Snapshot] // nil in reload mode
}

// NewHistory builds a synchronizer. capacity bounds the snapshot cache.
func NewHistory(style ParamStyle, mode HistoryMode, capacity int) (*History, error) {
	switch style {
	case "":
		style = ParamQuery
	case ParamQuery, ParamRaw:
	default:
		return nil, fmt.Errorf("unknown param style %q", style)
	}
	h := &History{style: style, mode: mode}
	switch mode {
	case ModeReload, "":
		h.mode = ModeReload
	case ModeSnapshot:
		if capacity <= 0 {
			capacity = 32
		}
		cache, err := lru.New[string, Snapshot](capacity)
		if err != nil {
			return nil, fmt.Errorf("snapshot cache: %w", err)
		}
		h.snapshots = cache
	default:
		return nil, fmt.Errorf("unknown history mode %q", mode)
	}
	return h, nil
}

func (h *History) Style() ParamStyle { return h.style }
func (h *History) Mode() HistoryMode { return h.mode }

// Publish returns the URL to push for formState. Nothing is pushed for an empty state.
func (h *History) Publish(formState string) (string, bool) {
	if formState == "" {
		return "", false
	}
	return StateURL(h.style, formState), true
}

// Remember stores a snapshot for later back/forward restores. No-op in reload mode.
func (h *History) Remember(snap Snapshot) {
	if h.snapshots == nil || snap.FormState == "" {
		return
	}
	h.snapshots.Add(snap.FormState, snap)
}

// PopState resolves a back/forward navigation to rawURL. ok is false when the page must
// reload.
func (h *History) PopState(rawURL string) (snap Snapshot, ok bool) {
	if h.snapshots == nil {
		return Snapshot{}, false
	}
	u, err := url.Parse(rawURL)
	if err != nil {
		return Snapshot{}, false
	}
	state := StateFromQuery(h.style, u.RawQuery)
	if state == "" {
		return Snapshot{}, false
	}
	return h.snapshots.Get(state)
}
