package store

import (
	"context"
	"time"

	"github.com/onelinediary/client/internal/client/ai"
	"github.com/onelinediary/client/internal/client/models"
)

// RefreshFeedback manually re-triggers the feedback pipeline for a date. The
// record must exist and its entry must have been confirmed by the remote
// store (have an id); anything else is a no-op.
func (s *Store) RefreshFeedback(ctx context.Context, isoDate string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.entries[isoDate]
	if !ok || rec.Entry == nil {
		return
	}
	s.startFeedbackLocked(ctx, isoDate, rec.Entry.ID)
	s.persistLocked(ctx)
}

// startFeedbackLocked begins an asynchronous feedback request for a
// confirmed entry. Every invocation gets a fresh token; a result arriving
// with a stale token is discarded, which is how a superseded request is
// "cancelled" without aborting its network call.
func (s *Store) startFeedbackLocked(ctx context.Context, isoDate, entryID string) {
	if entryID == "" || s.feedback == nil || s.closed {
		return
	}

	token := s.newID()
	s.feedbackTokens[isoDate] = token

	if rec, ok := s.entries[isoDate]; ok {
		rec.AIStatus = models.AILoading
		rec.AIError = ""
		rec.AIFlagged = false
		s.entries[isoDate] = rec
	}
	s.scheduleDelayLocked(isoDate)

	go func() {
		fb, err := s.feedback.RequestFeedback(ctx, entryID)
		s.finishFeedback(ctx, isoDate, token, fb, err)
	}()
}

// finishFeedback applies a completed feedback request, unless a newer
// request owns the date's token by now.
func (s *Store) finishFeedback(ctx context.Context, isoDate, token string, fb *ai.Feedback, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.feedbackTokens[isoDate] != token {
		return
	}
	s.clearDelayLocked(isoDate)

	rec, ok := s.entries[isoDate]
	if !ok {
		return
	}

	switch {
	case err != nil:
		rec.AIStatus = models.AIError
		rec.AIError = "We could not load feedback right now."
		s.log.Warn(ctx, "feedback request failed", "date", isoDate, "error", err)

	case fb == nil:
		// Superseded on the server side: a newer write already reflects the
		// current intent, so the state simply settles.
		if rec.Entry.HasFeedback() {
			rec.AIStatus = models.AIReady
		} else {
			rec.AIStatus = models.AIIdle
		}
		rec.AIError = ""

	default:
		if rec.Entry != nil {
			entry := *rec.Entry
			feedback := fb.Text
			entry.AIFeedback = &feedback
			generatedAt := fb.GeneratedAt
			if generatedAt == "" {
				generatedAt = s.now().UTC().Format(time.RFC3339)
			}
			entry.AIFeedbackGeneratedAt = &generatedAt
			rec.Entry = &entry
		}
		if fb.Flagged {
			rec.AIStatus = models.AIFlagged
			rec.AIParts = nil
		} else {
			rec.AIStatus = models.AIReady
			if fb.Parts != nil {
				rec.AIParts = fb.Parts
			}
		}
		rec.AIError = ""
		rec.AIFlagged = fb.Flagged
	}

	s.entries[isoDate] = rec
	s.persistLocked(ctx)
}

// scheduleDelayLocked arms the timer that surfaces a still-loading feedback
// request as delayed. Any previous timer for the date is replaced.
func (s *Store) scheduleDelayLocked(isoDate string) {
	s.clearDelayLocked(isoDate)
	if s.closed {
		return
	}
	s.delayTimers[isoDate] = time.AfterFunc(s.delayAfter, func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		delete(s.delayTimers, isoDate)
		rec, ok := s.entries[isoDate]
		if !ok || rec.AIStatus != models.AILoading {
			return
		}
		rec.AIStatus = models.AIDelayed
		s.entries[isoDate] = rec
		s.persistLocked(context.Background())
	})
}

func (s *Store) clearDelayLocked(isoDate string) {
	if t, ok := s.delayTimers[isoDate]; ok {
		t.Stop()
		delete(s.delayTimers, isoDate)
	}
}
