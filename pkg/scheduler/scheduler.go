// Package scheduler decides when the analysis pipeline re-runs. It is the
// only component aware of time and change: the store notifies it of topology
// mutations, selection changes arrive through SetSelected, and bursts of
// either coalesce into a single recompute against the latest snapshot.
package scheduler

import (
	"context"
	"sync"
	"time"

	"github.com/meshlens/mesh-analyzer/pkg/analysis"
	"github.com/meshlens/mesh-analyzer/pkg/logging"
	"github.com/meshlens/mesh-analyzer/pkg/store"
)

const (
	// DefaultQuietPeriod is how long input must settle before a recompute
	DefaultQuietPeriod = 250 * time.Millisecond
	// DefaultMaxWait caps how long a sustained burst can defer a recompute
	DefaultMaxWait = 2 * time.Second
)

// Scheduler owns the debounced recompute loop and the current view model
type Scheduler struct {
	store       *store.Store
	opts        analysis.Options
	quietPeriod time.Duration
	maxWait     time.Duration

	mu           sync.Mutex
	selected     string
	lastVersion  uint64
	lastSelected string
	hasRun       bool
	vm           *analysis.ViewModel
	onRecompute  func(*analysis.ViewModel)

	kick chan struct{}
}

// New creates a scheduler over the given store. quietPeriod and maxWait
// control debouncing; non-positive values use the defaults.
func New(st *store.Store, opts analysis.Options, quietPeriod, maxWait time.Duration) *Scheduler {
	if quietPeriod <= 0 {
		quietPeriod = DefaultQuietPeriod
	}
	if maxWait <= 0 {
		maxWait = DefaultMaxWait
	}
	return &Scheduler{
		store:       st,
		opts:        opts,
		quietPeriod: quietPeriod,
		maxWait:     maxWait,
		kick:        make(chan struct{}, 1),
	}
}

// OnRecompute registers a callback invoked with every freshly built view
// model. Must be called before Start.
func (s *Scheduler) OnRecompute(fn func(*analysis.ViewModel)) {
	s.onRecompute = fn
}

// SetSelected changes the selected service; an empty ID clears the selection.
// A changed selection schedules a recompute just like a topology change.
func (s *Scheduler) SetSelected(id string) {
	s.mu.Lock()
	changed := s.selected != id
	s.selected = id
	s.mu.Unlock()
	if changed {
		s.notify()
	}
}

// Selected returns the currently selected service ID, or empty
func (s *Scheduler) Selected() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.selected
}

// ViewModel returns the most recently computed view model, or nil before the
// first run completes
func (s *Scheduler) ViewModel() *analysis.ViewModel {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.vm
}

// Start runs an immediate recompute and then the debounced loop until the
// context is cancelled
func (s *Scheduler) Start(ctx context.Context) {
	s.recompute()
	go s.run(ctx)
}

func (s *Scheduler) notify() {
	select {
	case s.kick <- struct{}{}:
	default:
	}
}

// run debounces change ticks: each tick restarts the quiet-period timer, the
// max-wait timer guarantees a sustained burst still recomputes, and firing
// either one flushes a single recompute for everything accumulated.
func (s *Scheduler) run(ctx context.Context) {
	var quietTimer, maxWaitTimer *time.Timer
	dirty := false

	timerC := func(t *time.Timer) <-chan time.Time {
		if t == nil {
			return nil
		}
		return t.C
	}
	stop := func(t *time.Timer) {
		if t != nil {
			t.Stop()
		}
	}

	flush := func() {
		if !dirty {
			return
		}
		dirty = false
		stop(quietTimer)
		stop(maxWaitTimer)
		quietTimer, maxWaitTimer = nil, nil
		s.recompute()
	}

	mark := func() {
		dirty = true
		if quietTimer == nil {
			quietTimer = time.NewTimer(s.quietPeriod)
		} else {
			stop(quietTimer)
			quietTimer.Reset(s.quietPeriod)
		}
		if maxWaitTimer == nil {
			maxWaitTimer = time.NewTimer(s.maxWait)
		}
	}

	for {
		select {
		case <-ctx.Done():
			flush()
			return
		case <-s.store.Changes():
			mark()
		case <-s.kick:
			mark()
		case <-timerC(quietTimer):
			quietTimer = nil
			flush()
		case <-timerC(maxWaitTimer):
			maxWaitTimer = nil
			flush()
		}
	}
}

// recompute runs the pipeline if the snapshot version or selection moved
// since the last run. The snapshot reference is captured once; updates
// arriving mid-run land in the next recompute.
func (s *Scheduler) recompute() {
	snap := s.store.Current()

	s.mu.Lock()
	selected := s.selected
	if s.hasRun && snap.Version() == s.lastVersion && selected == s.lastSelected {
		s.mu.Unlock()
		return
	}
	s.mu.Unlock()

	start := time.Now()
	vm := analysis.Run(snap, selected, s.opts)

	s.mu.Lock()
	s.vm = vm
	s.lastVersion = snap.Version()
	s.lastSelected = selected
	s.hasRun = true
	fn := s.onRecompute
	s.mu.Unlock()

	logging.Debug("recompute complete",
		"version", snap.Version(),
		"services", snap.NumServices(),
		"connections", snap.NumConnections(),
		"spofs", len(vm.SPOFs),
		"durationMs", time.Since(start).Milliseconds(),
	)

	if fn != nil {
		fn(vm)
	}
}
