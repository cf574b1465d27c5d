// Package remote speaks to the remote persistence and auth backend. The
// backend is a row-based store with two user-scoped tables, entries and
// profiles, fronted by a PostgREST-style HTTP API.
package remote

import (
	"context"

	"github.com/onelinediary/client/internal/client/models"
)

// Store is the remote persistence collaborator used by the entry store and
// the feedback pipeline. Implementations must return (nil, nil) from GetByDate
// when no row exists for the date; every other miss is an error.
type Store interface {
	// GetByDate returns the caller's entry for one calendar date, or nil.
	GetByDate(ctx context.Context, isoDate string) (*models.Entry, error)

	// GetByID returns an entry by its server-assigned id.
	GetByID(ctx context.Context, id string) (*models.Entry, error)

	// ListRange returns date/long-text pairs for a closed date range, used to
	// derive month summaries without loading full entries.
	ListRange(ctx context.Context, fromDate, toDate string) ([]models.Entry, error)

	// History returns up to limit one-liners strictly before beforeDate,
	// most recent first.
	History(ctx context.Context, beforeDate string, limit int) ([]models.Entry, error)

	// UpsertOneLiner inserts or updates the row for (user, entry_date) and
	// returns the confirmed server row.
	UpsertOneLiner(ctx context.Context, isoDate, text string) (*models.Entry, error)

	// UpdateLongText replaces the long text of an existing row and returns
	// the confirmed server row. Updating a nonexistent row is an error.
	UpdateLongText(ctx context.Context, isoDate, text string) (*models.Entry, error)

	// SetFeedback conditionally stores generated feedback: the write applies
	// only if the row's updated_at still equals lastUpdatedAt. It returns
	// false with a nil error when the row moved on and the write was skipped.
	SetFeedback(ctx context.Context, id, lastUpdatedAt, feedback, generatedAt string) (bool, error)

	// GetProfile returns the caller's profile row.
	GetProfile(ctx context.Context) (*models.Profile, error)

	// DeleteByID removes an entry row. Only used by account-level cleanup.
	DeleteByID(ctx context.Context, id string) error

	// Ping probes backend reachability.
	Ping(ctx context.Context) error
}
