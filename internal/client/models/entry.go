// Package models defines the diary data model shared by the cache, the entry
// store, the remote client and the AI feedback pipeline.
package models

// SelfHarmFallback is the fixed supportive message stored instead of generated
// feedback when the moderation check flags self-harm risk. A record is
// considered flagged exactly when its feedback equals this text.
const SelfHarmFallback = "I’m really sorry that things feel heavy right now. If you’re in immediate danger, please contact local emergency services. You can call or text 988 in the US/Canada, or find worldwide helplines at https://www.opencounseling.com/suicide-hotlines."

// OneLinerLimit is the maximum length of the daily one-liner, in grapheme
// clusters.
const OneLinerLimit = 220

// Entry is one day's journaling record. JSON tags match the remote store's
// column names. ID is assigned by the remote store on the first successful
// write; an optimistic local draft has no ID yet and is keyed by EntryDate.
// UpdatedAt/CreatedAt are server-assigned concurrency tokens carried as
// opaque strings and never parsed.
type Entry struct {
	ID                    string  `json:"id,omitempty"`
	EntryDate             string  `json:"entry_date"`
	OneLiner              string  `json:"one_liner"`
	LongText              *string `json:"long_text"`
	AIFeedback            *string `json:"ai_feedback"`
	AIFeedbackGeneratedAt *string `json:"ai_feedback_generated_at"`
	UpdatedAt             string  `json:"updated_at,omitempty"`
	CreatedAt             string  `json:"created_at,omitempty"`
}

// Feedback returns the stored AI feedback text, or "" when none exists.
func (e *Entry) Feedback() string {
	if e == nil || e.AIFeedback == nil {
		return ""
	}
	return *e.AIFeedback
}

// HasFeedback reports whether non-empty AI feedback is stored on the entry.
func (e *Entry) HasFeedback() bool {
	return e.Feedback() != ""
}

// Profile is the user-scoped settings row kept alongside entries in the
// remote store.
type Profile struct {
	ID          string `json:"id,omitempty"`
	DisplayName string `json:"display_name"`
	Email       string `json:"email,omitempty"`
	CreatedAt   string `json:"created_at,omitempty"`
}
