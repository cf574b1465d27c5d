package store

import (
	"context"
	"errors"

	"github.com/onelinediary/client/internal/client/models"
	"github.com/onelinediary/client/internal/common"
	"github.com/onelinediary/client/internal/datex"
	"github.com/onelinediary/client/internal/textx"
)

// EnsureEntry makes sure a record for the date exists and is as fresh as the
// remote store allows. Offline, or on a fetch failure, the locally known
// entry is kept rather than discarded.
func (s *Store) EnsureEntry(ctx context.Context, isoDate string) {
	s.mu.Lock()
	current, exists := s.entries[isoDate]
	// In-flight saves and offline drafts with queued mutations must not be
	// clobbered by a refetch; everything else is fair to refresh.
	if exists {
		switch current.SyncStatus {
		case models.SyncLoading, models.SyncSaving, models.SyncOffline:
			s.mu.Unlock()
			return
		}
	}
	rec := models.EntryRecord{
		Entry:      current.Entry,
		SyncStatus: models.SyncLoading,
		AIStatus:   current.AIStatus,
		AIFlagged:  current.AIFlagged,
		AIParts:    current.AIParts,
	}
	rec.Normalize()
	s.entries[isoDate] = rec
	online := s.online
	s.mu.Unlock()

	if !online {
		s.mu.Lock()
		rec := s.entries[isoDate]
		if rec.Entry != nil {
			rec.SyncStatus = models.SyncOffline
		} else {
			rec.SyncStatus = models.SyncIdle
		}
		s.entries[isoDate] = rec
		s.persistLocked(ctx)
		s.mu.Unlock()
		return
	}

	entry, err := s.remote.GetByDate(ctx, isoDate)

	s.mu.Lock()
	defer s.mu.Unlock()
	rec = s.entries[isoDate]
	switch {
	case err != nil:
		// Keep whatever we know locally; a fetch failure must not erase a
		// cached entry.
		if errors.Is(err, common.ErrUnavailable) {
			rec.SyncStatus = models.SyncOffline
		} else {
			rec.SyncStatus = models.SyncError
			rec.SyncError = err.Error()
		}
	case entry == nil:
		rec.SyncStatus = models.SyncIdle
		rec.SyncError = ""
	default:
		rec = models.EntryRecord{Entry: entry, SyncStatus: models.SyncSynced}
		rec.Normalize()
		s.updateDaySummaryLocked(isoDate, entry)
	}
	s.entries[isoDate] = rec
	s.persistLocked(ctx)
}

// EnsureMonthSummary derives the indicator map for a month from the remote
// store, once. Already-derived months and offline periods are left alone; a
// fetch failure is logged and retried on the next call.
func (s *Store) EnsureMonthSummary(ctx context.Context, year, month int) {
	key := datex.FormatMonthKey(year, month)
	s.mu.Lock()
	_, have := s.summaries[key]
	online := s.online
	s.mu.Unlock()
	if have || !online {
		return
	}

	from, to := datex.MonthRange(year, month)
	rows, err := s.remote.ListRange(ctx, from, to)
	if err != nil {
		s.log.Warn(ctx, "month summary fetch failed", "month", key, "error", err)
		return
	}

	summary := models.MonthSummary{}
	for i := range rows {
		if rows[i].EntryDate == "" {
			continue
		}
		day, _ := models.DeriveDaySummary(&rows[i])
		day.HasShort = true
		summary[rows[i].EntryDate] = day
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.summaries[key] = summary
	s.persistLocked(ctx)
}

// UpsertOneLiner saves the day's short text: optimistic local write first,
// then the remote write, falling back to the queue when offline or when the
// remote store fails. Never returns an error; failures are absorbed into the
// record's sync status. Text longer than the one-liner cap is truncated at a
// grapheme boundary.
func (s *Store) UpsertOneLiner(ctx context.Context, isoDate, text string, requestFeedback bool) {
	text = truncateOneLiner(text)

	s.mu.Lock()
	current := s.entries[isoDate]
	entry := &models.Entry{
		EntryDate: isoDate,
		OneLiner:  text,
	}
	if current.Entry != nil {
		entry.ID = current.Entry.ID
		entry.LongText = current.Entry.LongText
		entry.AIFeedback = current.Entry.AIFeedback
		entry.AIFeedbackGeneratedAt = current.Entry.AIFeedbackGeneratedAt
		entry.UpdatedAt = current.Entry.UpdatedAt
		entry.CreatedAt = current.Entry.CreatedAt
	}
	rec := models.EntryRecord{
		Entry:      entry,
		SyncStatus: models.SyncSaving,
		AIStatus:   current.AIStatus,
		AIParts:    current.AIParts,
	}
	if !s.online {
		rec.SyncStatus = models.SyncOffline
	}
	if requestFeedback {
		rec.AIStatus = models.AILoading
		rec.AIParts = nil
	} else if rec.AIStatus == "" {
		rec.AIStatus = models.AIIdle
	}
	s.entries[isoDate] = rec
	s.updateDaySummaryLocked(isoDate, entry)
	s.persistLocked(ctx)

	op := models.QueuedOperation{
		ID:      s.newID(),
		ISODate: isoDate,
		Kind:    models.OpUpsertOneLiner,
		Payload: models.OperationPayload{Text: text, RequestFeedback: requestFeedback},
	}

	if !s.online {
		s.enqueueLocked(op)
		s.persistLocked(ctx)
		s.mu.Unlock()
		return
	}
	s.mu.Unlock()

	confirmed, err := s.remote.UpsertOneLiner(ctx, isoDate, text)
	if err != nil {
		s.log.Warn(ctx, "one-liner save failed, queueing", "date", isoDate, "error", err)
		s.mu.Lock()
		s.enqueueLocked(op)
		rec := s.entries[isoDate]
		rec.SyncStatus = models.SyncOffline
		rec.SyncError = err.Error()
		s.entries[isoDate] = rec
		s.persistLocked(ctx)
		s.mu.Unlock()
		// queue changed while online: try the queued path right away, the
		// backoff timer takes over from there
		s.FlushQueue(ctx)
		return
	}

	s.mu.Lock()
	s.applyConfirmedUpsertLocked(ctx, isoDate, confirmed, requestFeedback)
	s.persistLocked(ctx)
	s.mu.Unlock()
}

// SaveLongText saves the day's long note with the same optimistic shape as
// UpsertOneLiner, without feedback triggering. A date the store has never
// seen is a no-op: long text cannot be attached to a nonexistent entry.
func (s *Store) SaveLongText(ctx context.Context, isoDate, text string) {
	s.mu.Lock()
	current, exists := s.entries[isoDate]
	if !exists {
		s.mu.Unlock()
		return
	}

	entry := &models.Entry{EntryDate: isoDate}
	if current.Entry != nil {
		copied := *current.Entry
		entry = &copied
	}
	entry.LongText = &text

	rec := current
	rec.Entry = entry
	rec.SyncStatus = models.SyncSaving
	if !s.online {
		rec.SyncStatus = models.SyncOffline
	}
	rec.SyncError = ""
	s.entries[isoDate] = rec
	s.updateDaySummaryLocked(isoDate, entry)
	s.persistLocked(ctx)

	op := models.QueuedOperation{
		ID:      s.newID(),
		ISODate: isoDate,
		Kind:    models.OpSaveLongText,
		Payload: models.OperationPayload{Text: text},
	}

	if !s.online {
		s.enqueueLocked(op)
		s.persistLocked(ctx)
		s.mu.Unlock()
		return
	}
	s.mu.Unlock()

	confirmed, err := s.remote.UpdateLongText(ctx, isoDate, text)
	if err != nil {
		s.log.Warn(ctx, "long text save failed, queueing", "date", isoDate, "error", err)
		s.mu.Lock()
		s.enqueueLocked(op)
		rec := s.entries[isoDate]
		rec.SyncStatus = models.SyncOffline
		rec.SyncError = err.Error()
		s.entries[isoDate] = rec
		s.persistLocked(ctx)
		s.mu.Unlock()
		s.FlushQueue(ctx)
		return
	}

	s.mu.Lock()
	s.applyConfirmedLongTextLocked(isoDate, confirmed)
	s.persistLocked(ctx)
	s.mu.Unlock()
}

// Profile fetches the caller's profile row from the remote store.
func (s *Store) Profile(ctx context.Context) (*models.Profile, error) {
	return s.remote.GetProfile(ctx)
}

// StatusMessage renders the user-facing sync status line for a date, or ""
// when there is nothing to say.
func (s *Store) StatusMessage(isoDate string) string {
	s.mu.Lock()
	rec, ok := s.entries[isoDate]
	s.mu.Unlock()
	if !ok {
		return ""
	}
	switch rec.SyncStatus {
	case models.SyncSaving:
		return "Syncing…"
	case models.SyncOffline:
		return "Saved offline — will sync later."
	case models.SyncSynced:
		if rec.AIFlagged {
			return "Support resources shared"
		}
		return "Saved"
	case models.SyncError:
		if rec.SyncError != "" {
			return rec.SyncError
		}
		return "Error"
	default:
		return ""
	}
}

// applyConfirmedUpsertLocked replaces the optimistic draft with the server
// row and kicks off the feedback pipeline when requested.
func (s *Store) applyConfirmedUpsertLocked(ctx context.Context, isoDate string, confirmed *models.Entry, requestFeedback bool) {
	current := s.entries[isoDate]
	entry := confirmed
	if entry == nil {
		entry = current.Entry
	}

	rec := models.EntryRecord{
		Entry:      entry,
		SyncStatus: models.SyncSynced,
	}
	switch {
	case entry.HasFeedback():
		rec.AIStatus = models.AIReady
		rec.AIParts = current.AIParts
	case requestFeedback:
		rec.AIStatus = models.AILoading
	default:
		rec.AIStatus = current.AIStatus
		if rec.AIStatus == "" {
			rec.AIStatus = models.AIIdle
		}
		rec.AIParts = current.AIParts
	}
	rec.AIFlagged = entry.Feedback() == models.SelfHarmFallback
	s.entries[isoDate] = rec
	s.updateDaySummaryLocked(isoDate, entry)

	if requestFeedback && entry != nil {
		s.startFeedbackLocked(ctx, isoDate, entry.ID)
	}
}

// applyConfirmedLongTextLocked replaces the optimistic draft with the server
// row, leaving the AI fields as they were.
func (s *Store) applyConfirmedLongTextLocked(isoDate string, confirmed *models.Entry) {
	current := s.entries[isoDate]
	entry := confirmed
	if entry == nil {
		entry = current.Entry
	}

	rec := models.EntryRecord{
		Entry:      entry,
		SyncStatus: models.SyncSynced,
		AIStatus:   current.AIStatus,
		AIError:    current.AIError,
		AIFlagged:  current.AIFlagged,
		AIParts:    current.AIParts,
	}
	if rec.AIStatus == "" {
		rec.Normalize()
	}
	s.entries[isoDate] = rec
	s.updateDaySummaryLocked(isoDate, entry)
}

func truncateOneLiner(text string) string {
	if textx.CountGraphemes(text) <= models.OneLinerLimit {
		return text
	}
	return textx.TruncateGraphemes(text, models.OneLinerLimit)
}
