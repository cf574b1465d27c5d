package models

// OperationKind names a queued remote mutation.
type OperationKind string

const (
	OpUpsertOneLiner OperationKind = "upsertOneLiner"
	OpSaveLongText   OperationKind = "saveLongText"
)

// OperationPayload carries the mutation arguments. RequestFeedback is only
// meaningful for upsertOneLiner operations.
type OperationPayload struct {
	Text            string `json:"text"`
	RequestFeedback bool   `json:"request_feedback,omitempty"`
}

// QueuedOperation is a mutation intended for the remote store that has not
// been confirmed yet. IDs are random and unique; the queue holds at most one
// operation per ID. Operations are deliberately not coalesced by (date, kind):
// rapid repeated edits to the same day stay queued as separate operations so
// they replay in their original order.
type QueuedOperation struct {
	ID      string           `json:"id"`
	ISODate string           `json:"iso_date"`
	Kind    OperationKind    `json:"kind"`
	Payload OperationPayload `json:"payload"`
}
