// Package debounce implements the search-as-you-type session controller.
// Keystrokes restart a quiet-period timer; when it fires the latest query is
// dispatched under a new generation number, and a response is surfaced only
// if its generation is still current. Typing again or clearing the session
// makes every in-flight generation stale; superseded requests are allowed to
// finish but their results are discarded.
package debounce

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/Adithya-Monish-Kumar-K/content-search/internal/searcher/query"
	"github.com/Adithya-Monish-Kumar-K/content-search/internal/searcher/result"
	"github.com/Adithya-Monish-Kumar-K/content-search/pkg/metrics"
)

// DefaultDelay is the quiet period before a query is dispatched.
const DefaultDelay = 300 * time.Millisecond

// State is the controller's phase.
type State int

const (
	StateIdle State = iota
	StateDebouncing
	StateDispatched
	StateResolved
	StateCancelled
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateDebouncing:
		return "debouncing"
	case StateDispatched:
		return "dispatched"
	case StateResolved:
		return "resolved"
	case StateCancelled:
		return "cancelled"
	default:
		return "unknown"
	}
}

func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// Searcher resolves a query. It must not fail; *router.Router satisfies it.
type Searcher interface {
	Search(ctx context.Context, q query.Query) []result.Result
}

// Stopper cancels a scheduled call; *time.Timer satisfies it.
type Stopper interface {
	Stop() bool
}

// Scheduler arranges for f to run once after d.
type Scheduler func(d time.Duration, f func()) Stopper

// TimerScheduler schedules with time.AfterFunc.
func TimerScheduler(d time.Duration, f func()) Stopper {
	return time.AfterFunc(d, f)
}

// Snapshot is the visible state of a session.
type Snapshot struct {
	State      State           `json:"state"`
	Query      query.Query     `json:"query"`
	Generation uint64          `json:"generation"`
	Loading    bool            `json:"loading"`
	Results    []result.Result `json:"results"`
}

// Config configures a Controller.
type Config struct {
	Delay    time.Duration
	Schedule Scheduler
	// OnChange receives state transitions in generation order. Calls are
	// serialized and a snapshot whose generation was superseded before it
	// could be delivered is dropped. OnChange must not call back into the
	// Controller.
	OnChange func(Snapshot)
	Metrics  *metrics.Metrics
}

// Controller is one input session. It is safe for concurrent use.
type Controller struct {
	searcher Searcher
	delay    time.Duration
	schedule Scheduler
	onChange func(Snapshot)
	metrics  *metrics.Metrics
	logger   *slog.Logger

	ctx    context.Context
	cancel context.CancelFunc

	// emitMu serializes OnChange calls; it is always taken before mu.
	emitMu sync.Mutex

	mu         sync.Mutex
	state      State
	pending    query.Query
	timer      Stopper
	timerSeq   uint64
	generation uint64
	visible    Snapshot
	closed     bool
}

// New creates a Controller. Dispatched searches run under ctx, which Close
// cancels.
func New(ctx context.Context, searcher Searcher, cfg Config) *Controller {
	if cfg.Delay <= 0 {
		cfg.Delay = DefaultDelay
	}
	if cfg.Schedule == nil {
		cfg.Schedule = TimerScheduler
	}
	if cfg.OnChange == nil {
		cfg.OnChange = func(Snapshot) {}
	}
	ctx, cancel := context.WithCancel(ctx)
	return &Controller{
		searcher: searcher,
		delay:    cfg.Delay,
		schedule: cfg.Schedule,
		onChange: cfg.OnChange,
		metrics:  cfg.Metrics,
		logger:   slog.Default().With("component", "debounce"),
		ctx:      ctx,
		cancel:   cancel,
	}
}

// Input records a keystroke. It restarts the quiet period and makes any
// in-flight generation stale.
func (c *Controller) Input(q query.Query) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.stopTimerLocked()
	c.generation++
	c.pending = q
	c.state = StateDebouncing
	c.timerSeq++
	seq := c.timerSeq
	c.timer = c.schedule(c.delay, func() { c.fire(seq) })
	snap := c.snapshotLocked()
	c.mu.Unlock()

	c.deliver(snap)
}

// Clear cancels the session: the pending timer is dropped, in-flight
// generations become stale and visible results are cleared.
func (c *Controller) Clear() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.stopTimerLocked()
	c.generation++
	c.pending = query.Query{}
	c.visible = Snapshot{}
	c.state = StateCancelled
	cancelled := c.snapshotLocked()
	c.state = StateIdle
	idle := c.snapshotLocked()
	c.mu.Unlock()

	c.deliver(cancelled, idle)
}

// Close stops the session and cancels any in-flight search.
func (c *Controller) Close() {
	c.mu.Lock()
	c.stopTimerLocked()
	c.closed = true
	c.generation++
	c.mu.Unlock()
	c.cancel()
}

// Snapshot returns the current state.
func (c *Controller) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.snapshotLocked()
}

// fire dispatches the pending query if timer seq is still the latest one.
func (c *Controller) fire(seq uint64) {
	c.mu.Lock()
	if c.closed || seq != c.timerSeq || c.state != StateDebouncing {
		c.mu.Unlock()
		return
	}
	c.timer = nil
	c.generation++
	gen := c.generation
	q := c.pending
	c.state = StateDispatched
	snap := c.snapshotLocked()
	c.mu.Unlock()

	c.metrics.Debounce(false)
	c.deliver(snap)

	go func() {
		rs := c.searcher.Search(c.ctx, q)
		c.resolve(gen, q, rs)
	}()
}

func (c *Controller) resolve(gen uint64, q query.Query, rs []result.Result) {
	c.mu.Lock()
	if gen != c.generation || c.closed {
		c.mu.Unlock()
		c.discard(gen, q)
		return
	}
	c.state = StateResolved
	c.visible = Snapshot{Query: q, Generation: gen, Results: rs}
	snap := c.snapshotLocked()
	c.mu.Unlock()

	if !c.deliver(snap) {
		c.discard(gen, q)
	}
}

func (c *Controller) discard(gen uint64, q query.Query) {
	c.metrics.Debounce(true)
	c.logger.Debug("discarding stale response", "generation", gen, "term", q.Term)
}

// deliver hands snaps to OnChange while their generation is still current.
// A keystroke that lands between taking a snapshot and delivering it bumps
// the generation, so the older snapshot is dropped instead of overwriting
// the newer one. It reports whether every snapshot was delivered.
func (c *Controller) deliver(snaps ...Snapshot) bool {
	c.emitMu.Lock()
	defer c.emitMu.Unlock()
	for _, snap := range snaps {
		c.mu.Lock()
		current := !c.closed && snap.Generation == c.generation
		c.mu.Unlock()
		if !current {
			return false
		}
		c.onChange(snap)
	}
	return true
}

func (c *Controller) stopTimerLocked() {
	if c.timer != nil {
		c.timer.Stop()
		c.timer = nil
	}
}

func (c *Controller) snapshotLocked() Snapshot {
	snap := Snapshot{
		State:      c.state,
		Query:      c.pending,
		Generation: c.generation,
		Loading:    c.state == StateDebouncing || c.state == StateDispatched,
		Results:    c.visible.Results,
	}
	if c.state == StateResolved {
		snap.Query = c.visible.Query
	}
	return snap
}
