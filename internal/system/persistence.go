package system

import (
	"context"
	"time"

	"go.uber.org/zap"

	coresys "github.com/arstage/arstage/internal/core/system"
	"github.com/arstage/arstage/internal/metrics"
	"github.com/arstage/arstage/internal/milestone"
	"github.com/arstage/arstage/internal/persist"
)

// JournalWriter stores a batch of journal entries atomically.
type JournalWriter interface {
	WriteEntries(ctx context.Context, entries []persist.JournalEntry) error
}

// PersistenceSystem buffers every dispatched milestone notification and
// writes the buffer to the journal every interval ticks. Phase 5 (Persist).
// While the journal is failing the buffer holds at most maxBuffered entries;
// the oldest are dropped first.
type PersistenceSystem struct {
	journal     JournalWriter
	metrics     *metrics.Metrics
	log         *zap.Logger
	buf         []persist.JournalEntry
	tickCount   int
	interval    int // flush every N ticks
	maxBuffered int
	dropping    bool
	timeout     time.Duration
}

func NewPersistenceSystem(journal JournalWriter, m *metrics.Metrics, log *zap.Logger, intervalTicks, maxBuffered int) *PersistenceSystem {
	if intervalTicks <= 0 {
		intervalTicks = 1
	}
	if maxBuffered <= 0 {
		maxBuffered = 1
	}
	return &PersistenceSystem{
		journal:     journal,
		metrics:     m,
		log:         log,
		interval:    intervalTicks,
		maxBuffered: maxBuffered,
		timeout:     5 * time.Second,
	}
}

func (s *PersistenceSystem) Phase() coresys.Phase { return coresys.PhasePersist }

// Record buffers n. Installed as a bus tap so delivery misses are journaled
// too.
func (s *PersistenceSystem) Record(n milestone.Notification) {
	if len(s.buf) >= s.maxBuffered {
		drop := len(s.buf) - s.maxBuffered + 1
		s.buf = append(s.buf[:0], s.buf[drop:]...)
		s.metrics.JournalDropped.Add(float64(drop))
		if !s.dropping {
			s.dropping = true
			s.log.Warn("journal buffer full, dropping oldest entries", zap.Int("max_buffered", s.maxBuffered))
		}
	}
	s.buf = append(s.buf, persist.JournalEntry{
		Session:   n.Session,
		Tick:      n.Tick,
		Kind:      n.Trigger.Kind.String(),
		Trigger:   n.Trigger.String(),
		Action:    n.Action,
		Source:    n.Source,
		Delivered: n.Delivered,
	})
}

// Buffered returns the number of entries waiting for the next flush.
func (s *PersistenceSystem) Buffered() int { return len(s.buf) }

func (s *PersistenceSystem) Update(_ *coresys.Tick) {
	s.tickCount++
	if s.tickCount < s.interval {
		return
	}
	s.tickCount = 0
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()
	if err := s.Flush(ctx); err != nil {
		s.log.Error("journal flush failed", zap.Int("entries", len(s.buf)), zap.Error(err))
	}
}

// Flush writes the buffer now. On failure the entries stay buffered and are
// retried on the next flush. Called on shutdown after the session ends.
func (s *PersistenceSystem) Flush(ctx context.Context) error {
	if len(s.buf) == 0 {
		return nil
	}
	if err := s.journal.WriteEntries(ctx, s.buf); err != nil {
		return err
	}
	s.log.Debug("journal flushed", zap.Int("entries", len(s.buf)))
	s.buf = nil
	s.dropping = false
	return nil
}
