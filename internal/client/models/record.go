package models

import "strings"

// SyncStatus describes where a day's record stands relative to the remote
// store.
type SyncStatus string

const (
	SyncIdle    SyncStatus = "idle"
	SyncLoading SyncStatus = "loading"
	SyncSynced  SyncStatus = "synced"
	SyncSaving  SyncStatus = "saving"
	SyncOffline SyncStatus = "offline"
	SyncError   SyncStatus = "error"
)

// AIStatus describes the state of the feedback pipeline for a day.
type AIStatus string

const (
	AIIdle    AIStatus = "idle"
	AILoading AIStatus = "loading"
	AIDelayed AIStatus = "delayed"
	AIReady   AIStatus = "ready"
	AIError   AIStatus = "error"
	AIFlagged AIStatus = "flagged"
)

// FeedbackParts are the three structured fields of a generated feedback.
type FeedbackParts struct {
	Reflection string `json:"reflection"`
	MicroStep  string `json:"micro_step"`
	Question   string `json:"question"`
}

// EntryRecord is the client-side wrapper around an Entry. The entry store
// owns exactly one record per calendar date, keyed by ISO date string.
type EntryRecord struct {
	Entry      *Entry         `json:"entry"`
	SyncStatus SyncStatus     `json:"status"`
	SyncError  string         `json:"error,omitempty"`
	AIStatus   AIStatus       `json:"ai_status,omitempty"`
	AIError    string         `json:"ai_error,omitempty"`
	AIFlagged  bool           `json:"ai_flagged,omitempty"`
	AIParts    *FeedbackParts `json:"ai_parts,omitempty"`
}

// Normalize fills the derived AI fields of a record loaded from the cache.
// A record persisted by an older client may lack them: AIStatus defaults to
// ready when feedback text is present (idle otherwise), and AIFlagged is
// recomputed from the flagged-iff-fallback invariant.
func (r *EntryRecord) Normalize() {
	if r.AIStatus != "" {
		return
	}
	if r.Entry.HasFeedback() {
		r.AIStatus = AIReady
	} else {
		r.AIStatus = AIIdle
	}
	r.AIFlagged = r.Entry.Feedback() == SelfHarmFallback
}

// DaySummary is the lightweight calendar indicator for one date.
type DaySummary struct {
	HasShort bool `json:"hasShort"`
	HasLong  bool `json:"hasLong"`
}

// MonthSummary maps ISO dates of one month to their indicators. Summaries are
// derived, cached and never the source of truth.
type MonthSummary map[string]DaySummary

// DeriveDaySummary computes the calendar indicator from a full entry. The
// second return value is false when there is no entry to summarize.
func DeriveDaySummary(e *Entry) (DaySummary, bool) {
	if e == nil {
		return DaySummary{}, false
	}
	s := DaySummary{HasShort: strings.TrimSpace(e.OneLiner) != ""}
	if e.LongText != nil && strings.TrimSpace(*e.LongText) != "" {
		s.HasLong = true
	}
	return s, true
}
