package learning

import (
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/khanglvm/pattern-hub-mcp/internal/storage"
)

const (
	// eventQueueSize is the buffer size for the event queue.
	// If full, events are dropped (non-blocking).
	eventQueueSize = 1000

	// batchFlushSize is the number of events that triggers an immediate flush.
	batchFlushSize = 10

	// flushInterval is how often pending events are flushed.
	flushInterval = 50 * time.Millisecond
)

// Tracker records session events in the background with non-blocking writes.
type Tracker struct {
	journal    storage.Journal
	logger     *zap.Logger
	eventQueue chan Event
	syncChan   chan chan struct{}
	stopChan   chan struct{}
	stopOnce   sync.Once
	wg         sync.WaitGroup
	enabled    bool
	mu         sync.RWMutex
}

// NewTracker initializes the journal and starts background processing.
func NewTracker(j storage.Journal, logger *zap.Logger) *Tracker {
	if logger == nil {
		logger = zap.NewNop()
	}
	t := &Tracker{
		journal:    j,
		logger:     logger,
		eventQueue: make(chan Event, eventQueueSize),
		syncChan:   make(chan chan struct{}),
		stopChan:   make(chan struct{}),
		enabled:    j != nil,
	}

	if j != nil {
		if err := j.Init(); err != nil {
			logger.Warn("session journal initialization failed", zap.Error(err))
			t.enabled = false
		}
	}

	t.wg.Add(1)
	go t.processEvents()

	return t
}

// Track queues an event (non-blocking). If the queue is full the event is
// dropped.
func (t *Tracker) Track(event Event) {
	if !t.IsEnabled() {
		return
	}

	select {
	case t.eventQueue <- event:
	default:
		t.logger.Warn("session event queue full, dropping event", zap.String("kind", event.Kind()))
	}
}

// Sync blocks until every event queued before the call has been written.
func (t *Tracker) Sync() {
	done := make(chan struct{})
	select {
	case t.syncChan <- done:
		<-done
	case <-t.stopChan:
	}
}

// Summary flushes pending events and returns the journal summary.
func (t *Tracker) Summary() (storage.Summary, error) {
	if t.journal == nil {
		return storage.Summary{CallsByTool: map[string]int{}}, nil
	}
	t.Sync()
	return t.journal.Summary()
}

// Stop gracefully shuts down the tracker, flushing remaining events.
func (t *Tracker) Stop() {
	t.stopOnce.Do(func() {
		close(t.stopChan)
		t.wg.Wait()
	})
}

// Disable disables tracking (events are ignored).
func (t *Tracker) Disable() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.enabled = false
}

// Enable enables tracking.
func (t *Tracker) Enable() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.enabled = t.journal != nil
}

// IsEnabled returns whether tracking is enabled.
func (t *Tracker) IsEnabled() bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.enabled
}

// processEvents runs in the background, batching and flushing events.
func (t *Tracker) processEvents() {
	defer t.wg.Done()

	ticker := time.NewTicker(flushInterval)
	defer ticker.Stop()

	batch := make([]Event, 0, batchFlushSize)
	flush := func() {
		t.flush(batch)
		batch = make([]Event, 0, batchFlushSize)
	}
	drain := func() {
		for {
			select {
			case event := <-t.eventQueue:
				batch = append(batch, event)
			default:
				return
			}
		}
	}

	for {
		select {
		case event := <-t.eventQueue:
			batch = append(batch, event)
			if len(batch) >= batchFlushSize {
				flush()
			}

		case <-ticker.C:
			if len(batch) > 0 {
				flush()
			}

		case done := <-t.syncChan:
			drain()
			flush()
			close(done)

		case <-t.stopChan:
			drain()
			flush()
			return
		}
	}
}

// flush writes a batch of events to the journal.
func (t *Tracker) flush(events []Event) {
	for _, event := range events {
		if err := event.Record(t.journal); err != nil {
			t.logger.Warn("failed to record session event", zap.String("kind", event.Kind()), zap.Error(err))
		}
	}
}

// GetEventQueueSize returns the current number of events in the queue.
func (t *Tracker) GetEventQueueSize() int {
	return len(t.eventQueue)
}
