// Package store implements the entry store: the orchestrator that owns the
// in-memory diary state, hydrates it from the durable cache, applies
// optimistic mutations, replays the pending queue against the remote store,
// and drives the AI feedback pipeline.
//
// All state (entries, summaries, queue) is owned exclusively by the Store and
// guarded by one mutex. Network calls run outside the lock; results are
// re-applied under it.
package store

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/onelinediary/client/internal/client/ai"
	"github.com/onelinediary/client/internal/client/cache"
	"github.com/onelinediary/client/internal/client/models"
	"github.com/onelinediary/client/internal/client/remote"
	"github.com/onelinediary/client/internal/datex"
	"github.com/onelinediary/client/internal/logging"
)

const (
	// feedbackDelayAfter is how long a pending feedback request may stay in
	// the loading state before it is surfaced as delayed.
	feedbackDelayAfter = 3 * time.Second

	baseRetryDelay = time.Second
	maxRetryDelay  = 30 * time.Second
	maxRetryShift  = 5
)

// FeedbackRequester generates and stores feedback for a confirmed entry.
// A (nil, nil) result means the entry moved on and the result was discarded.
type FeedbackRequester interface {
	RequestFeedback(ctx context.Context, entryID string) (*ai.Feedback, error)
}

// Store is the diary orchestrator. Construct with New, hydrate once, then
// call mutation methods from any goroutine.
type Store struct {
	remote   remote.Store
	cache    *cache.Cache
	feedback FeedbackRequester
	log      logging.Logger

	mu        sync.Mutex
	entries   map[string]models.EntryRecord
	summaries map[string]models.MonthSummary
	queue     []models.QueuedOperation
	hydrated  bool
	online    bool
	flushing  bool
	closed    bool

	feedbackTokens map[string]string
	delayTimers    map[string]*time.Timer
	retryTimer     *time.Timer
	retryAttempts  int

	// seams for tests
	now        func() time.Time
	newID      func() string
	delayAfter time.Duration
}

// New builds a store around its collaborators. feedback may be nil, in which
// case feedback requests are silently skipped. The store starts online;
// SetOnline and StartOnlineWatcher adjust that.
func New(rs remote.Store, c *cache.Cache, feedback FeedbackRequester, log logging.Logger) *Store {
	if log == nil {
		log = logging.NewNopLogger()
	}
	return &Store{
		remote:         rs,
		cache:          c,
		feedback:       feedback,
		log:            log,
		entries:        make(map[string]models.EntryRecord),
		summaries:      make(map[string]models.MonthSummary),
		feedbackTokens: make(map[string]string),
		delayTimers:    make(map[string]*time.Timer),
		online:         true,
		now:            time.Now,
		newID:          uuid.NewString,
		delayAfter:     feedbackDelayAfter,
	}
}

// Hydrate loads the three cached collections and merges them under any state
// that accumulated before hydration finished: in-memory records win for keys
// present in both, keys present only in storage are adopted. Until Hydrate
// runs, state changes are not persisted, so a partial early state can never
// clobber the cached one. Safe to call once.
func (s *Store) Hydrate(ctx context.Context) {
	var (
		storedEntries   map[string]models.EntryRecord
		storedSummaries map[string]models.MonthSummary
		storedQueue     []models.QueuedOperation
		wg              sync.WaitGroup
	)
	wg.Add(3)
	go func() {
		defer wg.Done()
		s.cache.Load(ctx, cache.KeyEntries, &storedEntries)
	}()
	go func() {
		defer wg.Done()
		s.cache.Load(ctx, cache.KeySummaries, &storedSummaries)
	}()
	go func() {
		defer wg.Done()
		s.cache.Load(ctx, cache.KeyQueue, &storedQueue)
	}()
	wg.Wait()

	s.mu.Lock()
	for iso, rec := range storedEntries {
		rec.Normalize()
		if _, exists := s.entries[iso]; !exists {
			s.entries[iso] = rec
		}
	}
	for month, stored := range storedSummaries {
		current, exists := s.summaries[month]
		if !exists {
			s.summaries[month] = stored
			continue
		}
		for iso, day := range stored {
			if _, ok := current[iso]; !ok {
				current[iso] = day
			}
		}
	}
	seen := make(map[string]struct{}, len(s.queue))
	for _, op := range s.queue {
		seen[op.ID] = struct{}{}
	}
	for _, op := range storedQueue {
		if _, ok := seen[op.ID]; !ok {
			s.queue = append(s.queue, op)
		}
	}
	s.hydrated = true
	pending := len(s.queue)
	online := s.online
	s.persistLocked(ctx)
	s.mu.Unlock()

	if online && pending > 0 {
		s.FlushQueue(ctx)
	}
}

// Online reports the current connectivity assumption.
func (s *Store) Online() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.online
}

// SetOnline records a connectivity change. An offline-to-online transition
// triggers a queue flush.
func (s *Store) SetOnline(ctx context.Context, online bool) {
	s.mu.Lock()
	was := s.online
	s.online = online
	s.mu.Unlock()
	if online && !was {
		s.log.Info(ctx, "back online, flushing queue")
		s.FlushQueue(ctx)
	}
}

// StartOnlineWatcher pings the remote store on every tick and flips the
// online state accordingly. Blocks until ctx is done; run it in a goroutine.
func (s *Store) StartOnlineWatcher(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			err := s.remote.Ping(ctx)
			s.SetOnline(ctx, err == nil)
		case <-ctx.Done():
			return
		}
	}
}

// Record returns the record for a date. The second value is false when the
// store has never seen the date.
func (s *Store) Record(isoDate string) (models.EntryRecord, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.entries[isoDate]
	return rec, ok
}

// MonthSummary returns the cached indicator map for a month, or false when
// it has not been derived yet.
func (s *Store) MonthSummary(year, month int) (models.MonthSummary, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.summaries[datex.FormatMonthKey(year, month)]
	return m, ok
}

// Pending returns the number of queued operations.
func (s *Store) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.queue)
}

// Close stops every outstanding timer. Pending queue contents stay in the
// cache for the next run.
func (s *Store) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	if s.retryTimer != nil {
		s.retryTimer.Stop()
		s.retryTimer = nil
	}
	for iso, t := range s.delayTimers {
		t.Stop()
		delete(s.delayTimers, iso)
	}
}

// persistLocked writes the three collections to the durable cache in one
// transaction. Suppressed until hydration has merged the cached state in.
func (s *Store) persistLocked(ctx context.Context) {
	if !s.hydrated || s.closed {
		return
	}
	s.cache.SaveAll(ctx, map[string]any{
		cache.KeyEntries:   s.entries,
		cache.KeySummaries: s.summaries,
		cache.KeyQueue:     s.queue,
	})
}

// updateDaySummaryLocked re-derives the calendar indicator for the entry's
// date, keeping summaries in step with every entry mutation.
func (s *Store) updateDaySummaryLocked(isoDate string, entry *models.Entry) {
	day, ok := models.DeriveDaySummary(entry)
	if !ok {
		return
	}
	month := datex.MonthKey(isoDate)
	if s.summaries[month] == nil {
		s.summaries[month] = models.MonthSummary{}
	}
	s.summaries[month][isoDate] = day
}

// enqueueLocked appends op, dropping any prior operation with the same id.
// Operations for the same date are deliberately not coalesced so replay keeps
// their original order.
func (s *Store) enqueueLocked(op models.QueuedOperation) {
	next := make([]models.QueuedOperation, 0, len(s.queue)+1)
	for _, q := range s.queue {
		if q.ID != op.ID {
			next = append(next, q)
		}
	}
	s.queue = append(next, op)
}
