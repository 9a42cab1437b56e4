package project

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/atelierhq/easelflow/pkg/flow"
	"github.com/atelierhq/easelflow/pkg/flow/observability"
)

// DefaultDebounce is the write-coalescing window: rapid edit bursts
// collapse into one write that fires this long after the last change.
const DefaultDebounce = 120 * time.Millisecond

// SyncState is the sync loop's position in its state machine.
//
// Transitions: idle -> writing -> idle and idle -> hydrating -> idle.
// There is no path between writing and hydrating; a hydration requested
// while a write is in flight is refused with ErrBusy rather than
// interleaved.
type SyncState string

const (
	SyncIdle      SyncState = "idle"
	SyncHydrating SyncState = "hydrating"
	SyncWriting   SyncState = "writing"
)

// Sync keeps a live graph store written through to a project store. It
// watches the store's change feed and coalesces bursts into debounced
// snapshot writes.
//
// The in-memory store is always authoritative. A failed write is
// logged, leaves the last-applied marker untouched, and retries on the
// next cycle; it never rolls the graph back.
//
// Writes are suppressed in three cases: transient changes (run-state
// churn), changes echoing back from the Sync's own hydration, and
// snapshots value-identical to what was last written or hydrated.
type Sync struct {
	graph     *flow.Store
	backend   Store
	projectID string

	debounce time.Duration
	logger   *slog.Logger
	metrics  observability.Recorder

	mu          sync.Mutex
	name        string
	state       SyncState
	timer       *time.Timer
	lastApplied []byte
	dragging    bool
	pending     bool
	cancelWatch func()
	started     bool
	closed      bool
	ctx         context.Context
}

// SyncOption configures a Sync.
type SyncOption func(*Sync)

// WithDebounce sets the write-coalescing window.
func WithDebounce(d time.Duration) SyncOption {
	return func(s *Sync) {
		if d > 0 {
			s.debounce = d
		}
	}
}

// WithLogger sets the sync loop's structured logger.
func WithLogger(logger *slog.Logger) SyncOption {
	return func(s *Sync) {
		s.logger = logger
	}
}

// WithMetrics sets the metrics recorder for snapshot writes.
func WithMetrics(r observability.Recorder) SyncOption {
	return func(s *Sync) {
		if r != nil {
			s.metrics = r
		}
	}
}

// NewSync wires a graph store to a backend for one project. Call Start
// to begin watching; nothing persists before that.
func NewSync(graph *flow.Store, backend Store, projectID, name string, opts ...SyncOption) *Sync {
	s := &Sync{
		graph:     graph,
		backend:   backend,
		projectID: projectID,
		name:      name,
		debounce:  DefaultDebounce,
		metrics:   observability.NoopRecorder{},
		state:     SyncIdle,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Start subscribes to the graph's change feed. The context is retained
// for background writes scheduled by the debounce timer.
func (s *Sync) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrStoreClosed
	}
	if s.started {
		return nil
	}
	s.ctx = ctx
	s.cancelWatch = s.graph.Watch(s.onChange)
	s.started = true
	return nil
}

// State returns the sync loop's current state-machine position.
func (s *Sync) State() SyncState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Name returns the project's display name as the sync will persist it.
func (s *Sync) Name() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.name
}

// SetName renames the project and schedules a write, subject to the
// same suppression rules as graph changes.
func (s *Sync) SetName(name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed || name == s.name {
		return
	}
	s.name = name
	if !s.started || s.state == SyncHydrating {
		return
	}
	if s.dragging {
		s.pending = true
		return
	}
	s.scheduleLocked()
}

// onChange is the store watch handler.
func (s *Sync) onChange(c flow.Change) {
	if c.Transient {
		// Run-state churn never alters the persisted value.
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	if s.state == SyncHydrating {
		// Our own import echoing back.
		return
	}
	if s.dragging {
		s.pending = true
		return
	}
	s.scheduleLocked()
}

// scheduleLocked arms the debounce timer, resetting rather than
// stacking: every change restarts the window, so a burst produces one
// write after the burst ends.
func (s *Sync) scheduleLocked() {
	if s.timer != nil {
		s.timer.Stop()
	}
	s.timer = time.AfterFunc(s.debounce, s.flushTimer)
}

// flushTimer runs when the debounce window elapses.
func (s *Sync) flushTimer() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	if s.dragging {
		s.pending = true
		s.mu.Unlock()
		return
	}
	if s.state != SyncIdle {
		// A write or hydration is in flight; try again next window.
		s.scheduleLocked()
		s.mu.Unlock()
		return
	}
	s.state = SyncWriting
	ctx := s.ctx
	s.mu.Unlock()

	_ = s.write(ctx)
}

// write persists the current snapshot. The caller must have moved the
// state machine to writing; write returns it to idle.
func (s *Sync) write(ctx context.Context) error {
	doc := New(s.projectID, s.Name(), s.graph.Export())
	canon, err := doc.canonical()
	if err != nil {
		s.mu.Lock()
		s.state = SyncIdle
		s.mu.Unlock()
		observability.LogSnapshotError(s.logger, s.projectID, err)
		return err
	}

	s.mu.Lock()
	if bytes.Equal(canon, s.lastApplied) {
		// Value-identical to the last written or hydrated snapshot:
		// suppress the redundant write.
		s.state = SyncIdle
		s.mu.Unlock()
		return nil
	}
	s.mu.Unlock()

	elapsed := observability.TimedOperation()
	saveErr := s.backend.Save(ctx, doc)
	ms := elapsed()

	s.mu.Lock()
	s.state = SyncIdle
	if saveErr != nil {
		// Memory stays authoritative and lastApplied is untouched, so
		// the next cycle retries this same value.
		s.scheduleLocked()
		s.mu.Unlock()
		observability.LogSnapshotError(s.logger, s.projectID, saveErr)
		return saveErr
	}
	s.lastApplied = canon
	s.mu.Unlock()

	s.metrics.RecordSnapshotWrite(ctx, len(canon), time.Duration(ms)*time.Millisecond)
	observability.LogSnapshotWrite(s.logger, s.projectID, len(canon), ms)
	return nil
}

// Flush forces a synchronous write of any unsaved state. It waits out
// an in-flight background write, returns ErrBusy during hydration, and
// is a cheap no-op when the store already holds the current value.
func (s *Sync) Flush(ctx context.Context) error {
	for {
		s.mu.Lock()
		if s.closed {
			s.mu.Unlock()
			return ErrStoreClosed
		}
		switch s.state {
		case SyncHydrating:
			s.mu.Unlock()
			return fmt.Errorf("flush %s: %w", s.projectID, ErrBusy)
		case SyncWriting:
			s.mu.Unlock()
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(5 * time.Millisecond):
			}
			continue
		}
		if s.timer != nil {
			s.timer.Stop()
			s.timer = nil
		}
		s.pending = false
		s.state = SyncWriting
		s.mu.Unlock()
		return s.write(ctx)
	}
}

// Hydrate replaces the graph with the backend's stored document. The
// import's own change events are suppressed, and the loaded value
// becomes the new suppression baseline, so hydration never triggers an
// echo write of what was just read.
func (s *Sync) Hydrate(ctx context.Context) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrStoreClosed
	}
	if s.state != SyncIdle {
		s.mu.Unlock()
		return fmt.Errorf("hydrate %s: %w", s.projectID, ErrBusy)
	}
	s.state = SyncHydrating
	if s.timer != nil {
		// Pre-hydration unsaved changes are obsolete: the incoming
		// document replaces the graph wholesale.
		s.timer.Stop()
		s.timer = nil
	}
	s.pending = false
	s.mu.Unlock()

	doc, err := s.backend.Load(ctx, s.projectID)
	if err != nil {
		s.mu.Lock()
		s.state = SyncIdle
		s.mu.Unlock()
		return err
	}
	if err := s.graph.Import(doc.Graph); err != nil {
		s.mu.Lock()
		s.state = SyncIdle
		s.mu.Unlock()
		return err
	}

	// Canonicalize what actually landed: import may have filtered
	// invalid edges or assigned ids, and the suppression compare must
	// match future exports byte for byte.
	applied := New(s.projectID, doc.Name, s.graph.Export())
	canon, cerr := applied.canonical()

	s.mu.Lock()
	s.name = doc.Name
	if cerr == nil {
		s.lastApplied = canon
	}
	s.state = SyncIdle
	s.mu.Unlock()

	observability.LogHydration(s.logger, s.projectID, len(doc.Graph.Nodes), len(doc.Graph.Edges))
	return nil
}

// BeginDrag suppresses writes while the user drags nodes around the
// canvas. Position churn marks the sync dirty without arming the timer.
func (s *Sync) BeginDrag() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.dragging = true
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
		s.pending = true
	}
}

// EndDrag lifts the drag suppression and, if anything changed, starts
// one debounce window for the accumulated churn.
func (s *Sync) EndDrag() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.dragging = false
	if s.pending && !s.closed && s.started {
		s.pending = false
		s.scheduleLocked()
	}
}

// Abandon cancels the watch and shuts the sync down without a final
// write. Used when the project itself is being deleted and a flush
// would only resurrect the row.
func (s *Sync) Abandon() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	cancel := s.cancelWatch
	s.cancelWatch = nil
	s.closed = true
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
	s.pending = false
	s.mu.Unlock()
	if cancel != nil {
		cancel()
	}
}

// Stop cancels the watch, flushes unsaved state, and shuts the sync
// down. The backend store itself is not closed.
func (s *Sync) Stop(ctx context.Context) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	cancel := s.cancelWatch
	s.cancelWatch = nil
	s.mu.Unlock()
	if cancel != nil {
		cancel()
	}

	err := s.Flush(ctx)

	s.mu.Lock()
	s.closed = true
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
	s.mu.Unlock()
	return err
}
