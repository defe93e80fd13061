// ABOUTME: Manager owns background generations keyed by project: one transport per project at a time.
// ABOUTME: Runs fold decoded events into State and notify per-project and global listeners.
package bgmanager

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"slices"
	"sort"
	"sync"
	"time"

	"github.com/2389-research/sitegen/genevent"
	"github.com/2389-research/sitegen/pipeline"
	"github.com/2389-research/sitegen/stream"
)

var (
	// ErrCancelled is returned by Run.Wait after Cancel.
	ErrCancelled = errors.New("generation cancelled")
	// ErrStreamTruncated is recorded when the stream ends before a terminal event.
	ErrStreamTruncated = errors.New("stream ended before a terminal event")
)

// Transport opens the event stream for one generation.
type Transport interface {
	Open(ctx context.Context, projectID string, cfg pipeline.Config) (io.ReadCloser, error)
}

// Listener receives state notifications. Notified states carry no Events.
type Listener func(State)

// Observer receives every decoded event of the run it was passed to.
type Observer func(genevent.Event)

// Manager tracks background generations. The zero value is not usable; use New.
type Manager struct {
	transport Transport
	now       func() time.Time
	logHigh   int
	logKeep   int

	mu      sync.Mutex
	runs    map[string]*Run
	subs    map[string]map[int]*subscriber
	global  map[int]*subscriber
	nextSub int
	seq     uint64
}

// Option configures a Manager.
type Option func(*Manager)

// WithLogLimits sets the event log high-water mark and keep size.
func WithLogLimits(highWater, keep int) Option {
	return func(m *Manager) { m.logHigh, m.logKeep = highWater, keep }
}

// WithClock replaces time.Now for timestamps.
func WithClock(now func() time.Time) Option {
	return func(m *Manager) { m.now = now }
}

// New creates a Manager that opens streams through t.
func New(t Transport, opts ...Option) *Manager {
	m := &Manager{
		transport: t,
		now:       time.Now,
		logHigh:   DefaultLogHighWater,
		logKeep:   DefaultLogKeep,
		runs:      make(map[string]*Run),
		subs:      make(map[string]map[int]*subscriber),
		global:    make(map[int]*subscriber),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Run is one background generation. Its fields are guarded by the
// Manager's mutex. seq orders the run's state changes for delivery.
type Run struct {
	m         *Manager
	state     State
	seq       uint64
	log       *EventLog
	cancel    context.CancelFunc
	cancelled bool
	done      chan struct{}
	err       error
}

// Start begins a generation for projectID unless one is already generating,
// in which case the existing run is returned with started=false. The run is
// detached from ctx's cancellation; use Cancel to stop it.
func (m *Manager) Start(ctx context.Context, projectID string, cfg pipeline.Config, observer Observer) (run *Run, started bool) {
	for {
		m.mu.Lock()
		if r, ok := m.runs[projectID]; ok {
			if r.state.Status == StatusGenerating {
				m.mu.Unlock()
				return r, false
			}
			if r.cancelled && !r.finished() {
				// Let the aborted transport close before opening another.
				m.mu.Unlock()
				<-r.done
				continue
			}
		}

		runCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
		r := &Run{
			m: m,
			state: State{
				ProjectID: projectID,
				Status:    StatusGenerating,
				StartedAt: m.now(),
			},
			log:    NewEventLog(m.logHigh, m.logKeep),
			cancel: cancel,
			done:   make(chan struct{}),
		}
		m.runs[projectID] = r
		seq := m.bump(r)
		snap := r.snapshot(false)
		m.mu.Unlock()

		log.Printf("component=bgmanager action=start project=%s", projectID)
		m.notify(seq, snap)
		go m.consume(runCtx, r, projectID, cfg, observer)
		return r, true
	}
}

func (m *Manager) consume(ctx context.Context, r *Run, projectID string, cfg pipeline.Config, observer Observer) {
	defer close(r.done)
	defer r.cancel()

	body, err := m.transport.Open(ctx, projectID, cfg)
	if err != nil {
		m.interrupt(r, fmt.Errorf("open stream: %w", err))
		return
	}
	defer body.Close()

	rd := stream.NewReader(body)
	for {
		e, err := rd.Next()
		if errors.Is(err, io.EOF) {
			m.interrupt(r, ErrStreamTruncated)
			return
		}
		if err != nil {
			m.interrupt(r, fmt.Errorf("read stream: %w", err))
			return
		}

		seq, snap, terminal, ok := m.apply(r, e)
		if !ok {
			return
		}
		if observer != nil {
			safeCall(projectID, "observer", func() { observer(e) })
		}
		m.notify(seq, snap)
		if terminal {
			log.Printf("component=bgmanager action=finished project=%s status=%s events=%d dropped_frames=%d",
				snap.ProjectID, snap.Status, snap.EventCount, rd.Dropped())
			return
		}
	}
}

// apply folds e into r. ok is false once the run is no longer generating.
func (m *Manager) apply(r *Run, e genevent.Event) (seq uint64, snap State, terminal, ok bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if r.state.Status != StatusGenerating {
		return 0, State{}, false, false
	}
	r.log.Append(e)
	r.state = Reduce(r.state, e)
	if r.state.Status.Terminal() {
		at := m.now()
		r.state.CompletedAt = &at
		terminal = true
	}
	return m.bump(r), r.snapshot(false), terminal, true
}

// interrupt ends a run that lost its transport. A cancelled run has
// already been reset and is left alone.
func (m *Manager) interrupt(r *Run, err error) {
	m.mu.Lock()
	if r.cancelled || r.state.Status != StatusGenerating {
		m.mu.Unlock()
		return
	}
	at := m.now()
	r.state.Status = StatusFailed
	r.state.Error = err.Error()
	r.state.Interrupted = true
	r.state.CompletedAt = &at
	r.err = err
	seq := m.bump(r)
	snap := r.snapshot(false)
	m.mu.Unlock()

	log.Printf("component=bgmanager action=interrupted project=%s err=%v", snap.ProjectID, err)
	m.notify(seq, snap)
}

// Cancel aborts a generating run and resets its state to idle. It reports
// whether a run was cancelled.
func (m *Manager) Cancel(projectID string) bool {
	m.mu.Lock()
	r, ok := m.runs[projectID]
	if !ok || r.state.Status != StatusGenerating {
		m.mu.Unlock()
		return false
	}
	r.cancelled = true
	r.err = ErrCancelled
	r.state.Status = StatusIdle
	r.state.Error = ""
	r.state.CurrentComponent = ""
	r.state.CompletedAt = nil
	seq := m.bump(r)
	snap := r.snapshot(false)
	r.cancel()
	m.mu.Unlock()

	log.Printf("component=bgmanager action=cancel project=%s", projectID)
	m.notify(seq, snap)
	return true
}

// State returns the project's current state including its event log.
func (m *Manager) State(projectID string) (State, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.runs[projectID]
	if !ok {
		return State{}, false
	}
	return r.snapshot(true), true
}

// Clear forgets a project's state unless it is still generating.
func (m *Manager) Clear(projectID string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.runs[projectID]
	if !ok || r.state.Status == StatusGenerating {
		return false
	}
	delete(m.runs, projectID)
	return true
}

// Active returns the IDs of generating projects, sorted.
func (m *Manager) Active() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	var ids []string
	for id, r := range m.runs {
		if r.state.Status == StatusGenerating {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	return ids
}

// Subscribe registers l for projectID. If the project has a state, l is
// called with it before Subscribe returns. The returned func unsubscribes.
func (m *Manager) Subscribe(projectID string, l Listener) func() {
	sub := newSubscriber(l)
	m.mu.Lock()
	id := m.nextSub
	m.nextSub++
	if m.subs[projectID] == nil {
		m.subs[projectID] = make(map[int]*subscriber)
	}
	m.subs[projectID][id] = sub
	var (
		snap State
		seq  uint64
	)
	r, has := m.runs[projectID]
	if has {
		// Claim the queue before any notify can see sub.
		snap, seq = r.snapshot(false), r.seq
		sub.last[projectID] = seq
		sub.busy = true
	}
	m.mu.Unlock()

	if has {
		sub.drain(snap)
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			m.mu.Lock()
			defer m.mu.Unlock()
			delete(m.subs[projectID], id)
			if len(m.subs[projectID]) == 0 {
				delete(m.subs, projectID)
			}
		})
	}
}

// SubscribeGlobal registers l for every project's notifications.
func (m *Manager) SubscribeGlobal(l Listener) func() {
	m.mu.Lock()
	id := m.nextSub
	m.nextSub++
	m.global[id] = newSubscriber(l)
	m.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			m.mu.Lock()
			defer m.mu.Unlock()
			delete(m.global, id)
		})
	}
}

// bump stamps a new state change on r. Callers hold the Manager's mutex.
func (m *Manager) bump(r *Run) uint64 {
	m.seq++
	r.seq = m.seq
	return r.seq
}

// notify delivers snap, stamped seq, to the project's listeners and the
// global listeners. A listener never sees a state older than one it was
// already given.
func (m *Manager) notify(seq uint64, snap State) {
	m.mu.Lock()
	subs := make([]*subscriber, 0, len(m.subs[snap.ProjectID])+len(m.global))
	for _, id := range sortedKeys(m.subs[snap.ProjectID]) {
		subs = append(subs, m.subs[snap.ProjectID][id])
	}
	for _, id := range sortedKeys(m.global) {
		subs = append(subs, m.global[id])
	}
	m.mu.Unlock()

	for _, sub := range subs {
		sub.post(seq, snap)
	}
}

// subscriber queues states for one listener. Whichever goroutine finds it
// idle drains the queue; others enqueue and return, so a listener that
// blocks never stalls Cancel or a concurrent run.
type subscriber struct {
	fn Listener

	mu    sync.Mutex
	last  map[string]uint64
	queue []State
	busy  bool
}

func newSubscriber(fn Listener) *subscriber {
	return &subscriber{fn: fn, last: make(map[string]uint64)}
}

// post queues snap unless a newer state for the same project was already
// queued, then drains the queue if no other goroutine is doing so.
func (s *subscriber) post(seq uint64, snap State) {
	s.mu.Lock()
	if seq <= s.last[snap.ProjectID] {
		s.mu.Unlock()
		return
	}
	s.last[snap.ProjectID] = seq
	if s.busy {
		s.queue = append(s.queue, snap)
		s.mu.Unlock()
		return
	}
	s.busy = true
	s.mu.Unlock()
	s.drain(snap)
}

// drain delivers first and then everything queued meanwhile. The caller
// must have set busy.
func (s *subscriber) drain(first State) {
	next := first
	for {
		safeCall(next.ProjectID, "listener", func() { s.fn(next) })
		s.mu.Lock()
		if len(s.queue) == 0 {
			s.busy = false
			s.mu.Unlock()
			return
		}
		next = s.queue[0]
		s.queue = s.queue[1:]
		s.mu.Unlock()
	}
}

func sortedKeys[V any](ls map[int]V) []int {
	keys := make([]int, 0, len(ls))
	for id := range ls {
		keys = append(keys, id)
	}
	sort.Ints(keys)
	return keys
}

func safeCall(projectID, kind string, fn func()) {
	defer func() {
		if rec := recover(); rec != nil {
			log.Printf("component=bgmanager action=%s_panic project=%s panic=%v", kind, projectID, rec)
		}
	}()
	fn()
}

// snapshot copies the state. Callers hold the Manager's mutex.
func (r *Run) snapshot(withEvents bool) State {
	s := r.state
	s.Files = slices.Clone(s.Files)
	if withEvents {
		s.Events = r.log.Events()
	}
	return s
}

func (r *Run) finished() bool {
	select {
	case <-r.done:
		return true
	default:
		return false
	}
}

// State returns the run's current state including its event log.
func (r *Run) State() State {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	return r.snapshot(true)
}

// Done is closed when the run's transport has been released.
func (r *Run) Done() <-chan struct{} { return r.done }

// Wait blocks until the run ends and returns its final state. A pipeline
// failure is reported in the state, not as an error; the error is set only
// when the transport failed or the run was cancelled.
func (r *Run) Wait(ctx context.Context) (State, error) {
	select {
	case <-r.done:
	case <-ctx.Done():
		return r.State(), ctx.Err()
	}
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	return r.snapshot(true), r.err
}
