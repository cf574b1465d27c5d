package store

import (
	"context"
	"fmt"
	"time"

	"github.com/onelinediary/client/internal/client/models"
)

// FlushQueue replays queued operations against the remote store in insertion
// order, stopping at the first failure. Safe to call at any time: a pending
// backoff timer is cancelled and the pass proceeds immediately, an empty
// queue resets the retry counter, and a pass that ends with a remainder
// schedules the next attempt with exponential backoff.
func (s *Store) FlushQueue(ctx context.Context) {
	s.mu.Lock()
	if s.retryTimer != nil {
		s.retryTimer.Stop()
		s.retryTimer = nil
	}
	if len(s.queue) == 0 {
		s.retryAttempts = 0
		s.mu.Unlock()
		return
	}
	if s.flushing {
		s.mu.Unlock()
		return
	}
	s.flushing = true
	ops := make([]models.QueuedOperation, len(s.queue))
	copy(ops, s.queue)
	s.mu.Unlock()

	applied := make([]string, 0, len(ops))
	for _, op := range ops {
		if err := s.replay(ctx, op); err != nil {
			s.log.Warn(ctx, "queue replay stopped", "kind", op.Kind, "date", op.ISODate, "error", err)
			break
		}
		applied = append(applied, op.ID)
	}

	s.mu.Lock()
	s.removeQueuedLocked(applied)
	s.flushing = false
	remaining := len(s.queue)
	if remaining == 0 {
		s.retryAttempts = 0
		s.persistLocked(ctx)
		s.mu.Unlock()
		return
	}

	s.retryAttempts++
	delay := retryDelay(s.retryAttempts)
	if !s.closed {
		s.retryTimer = time.AfterFunc(delay, func() {
			s.mu.Lock()
			s.retryTimer = nil
			s.mu.Unlock()
			s.FlushQueue(context.Background())
		})
	}
	s.persistLocked(ctx)
	s.mu.Unlock()
	s.log.Info(ctx, "queue flush incomplete", "remaining", remaining, "retry_in", delay)
}

// retryDelay computes the backoff for the n-th consecutive incomplete pass:
// min(30s, 1s * 2^min(n, 5)).
func retryDelay(attempts int) time.Duration {
	shift := attempts
	if shift > maxRetryShift {
		shift = maxRetryShift
	}
	delay := baseRetryDelay * (1 << shift)
	if delay > maxRetryDelay {
		delay = maxRetryDelay
	}
	return delay
}

// replay applies one queued operation to the remote store and, on success,
// folds the confirmed row back into the in-memory state.
func (s *Store) replay(ctx context.Context, op models.QueuedOperation) error {
	switch op.Kind {
	case models.OpUpsertOneLiner:
		confirmed, err := s.remote.UpsertOneLiner(ctx, op.ISODate, op.Payload.Text)
		if err != nil {
			return err
		}
		s.mu.Lock()
		s.applyConfirmedUpsertLocked(ctx, op.ISODate, confirmed, op.Payload.RequestFeedback)
		s.mu.Unlock()
		return nil

	case models.OpSaveLongText:
		confirmed, err := s.remote.UpdateLongText(ctx, op.ISODate, op.Payload.Text)
		if err != nil {
			return err
		}
		s.mu.Lock()
		s.applyConfirmedLongTextLocked(op.ISODate, confirmed)
		s.mu.Unlock()
		return nil

	default:
		return fmt.Errorf("unknown queued operation kind %q", op.Kind)
	}
}

// removeQueuedLocked drops the given operation ids from the queue, keeping
// the order of everything else, including operations enqueued mid-flush.
func (s *Store) removeQueuedLocked(ids []string) {
	if len(ids) == 0 {
		return
	}
	drop := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		drop[id] = struct{}{}
	}
	next := s.queue[:0]
	for _, op := range s.queue {
		if _, ok := drop[op.ID]; !ok {
			next = append(next, op)
		}
	}
	s.queue = next
}
