// Package sched implements a single-threaded cooperative scheduler.
//
// A fixed set of components registers with the scheduler. Each component may be
// woken by readiness of an I/O source (a signal channel), by a per-component
// timeout, or by an explicit wake request issued from inside another component's
// callback. Exactly one component callback runs at a time; suspension happens
// only inside the scheduler's own wait phase.
package sched

import (
	"context"
	"errors"
	"fmt"
	"log"
	"reflect"
	"time"
)

// Reason describes what triggered a component activation.
type Reason int

const (
	ReasonNone Reason = iota
	ReasonManual
	ReasonTimeout
	ReasonData
)

func (r Reason) String() string {
	switch r {
	case ReasonManual:
		return "manual"
	case ReasonTimeout:
		return "timeout"
	case ReasonData:
		return "data"
	default:
		return "none"
	}
}

// Activatable is the contract between the scheduler and its components.
type Activatable interface {
	// Readiness returns the signal channel driving data activations, or nil
	// if the component is not I/O driven. The channel must be stable for the
	// component's lifetime.
	Readiness() <-chan struct{}

	// Timeout returns the remaining time before the component wants a timeout
	// activation. It is re-evaluated every scheduler cycle. ok=false means the
	// component has no timeout.
	Timeout() (d time.Duration, ok bool)

	// Activate runs the component callback. Returning false requests a global
	// scheduler shutdown.
	Activate(reason Reason) bool
}

// DefaultActivationCeiling bounds how many times a single component may be
// activated within one scheduler cycle before the run is aborted.
const DefaultActivationCeiling = 16

// ErrReactivationLoop reports a component that perpetually re-requests its own
// activation. This is a programming error, not a runtime condition: Run aborts.
var ErrReactivationLoop = errors.New("component reactivation loop detected")

type entry struct {
	component   Activatable
	name        string
	pending     Reason
	activations int
}

// Token lets a component request a manual re-activation of the associated
// component. Wake must only be called from inside an activation callback; the
// single-threaded execution model is the synchronization.
type Token struct {
	e *entry
}

// Wake marks the component pending with a manual reason, unless an activation
// is already pending for it this cycle.
func (t *Token) Wake() {
	if t.e.pending == ReasonNone {
		t.e.pending = ReasonManual
	}
}

// Scheduler multiplexes a fixed set of Activatables.
type Scheduler struct {
	entries []*entry
	ceiling int
	logger  *log.Logger
}

func New(logger *log.Logger) *Scheduler {
	return &Scheduler{ceiling: DefaultActivationCeiling, logger: logger}
}

// SetActivationCeiling overrides the per-cycle reactivation ceiling. Values are
// clamped to [10, 100].
func (s *Scheduler) SetActivationCeiling(n int) {
	if n < 10 {
		n = 10
	}
	if n > 100 {
		n = 100
	}
	s.ceiling = n
}

// Register adds a component. Pending components are serviced in registration
// order, which keeps drain selection deterministic.
func (s *Scheduler) Register(name string, a Activatable) *Token {
	e := &entry{component: a, name: name}
	s.entries = append(s.entries, e)
	return &Token{e: e}
}

// Run drives registered components until a callback returns false or ctx is
// cancelled (both clean shutdowns, returning nil), or until the reactivation
// ceiling is exceeded (returns ErrReactivationLoop).
func (s *Scheduler) Run(ctx context.Context) error {
	for {
		for _, e := range s.entries {
			e.activations = 0
		}

		// Drain: service every pending component before blocking again, so a
		// burst of manual wakes is fully absorbed.
		for {
			e := s.nextPending()
			if e == nil {
				break
			}
			reason := e.pending
			e.pending = ReasonNone
			e.activations++
			if e.activations > s.ceiling {
				return fmt.Errorf("%w: %q activated %d times in one cycle", ErrReactivationLoop, e.name, e.activations)
			}
			if !e.component.Activate(reason) {
				s.logger.Printf("scheduler: component %q requested shutdown", e.name)
				return nil
			}
		}

		if stop := s.wait(ctx); stop {
			return nil
		}
	}
}

func (s *Scheduler) nextPending() *entry {
	for _, e := range s.entries {
		if e.pending != ReasonNone {
			return e
		}
	}
	return nil
}

// wait blocks on readiness across all registered channels, bounded by the
// minimum component timeout. Returns true if ctx was cancelled.
func (s *Scheduler) wait(ctx context.Context) bool {
	var (
		minTimeout time.Duration
		tied       []*entry
		hasTimeout bool
	)
	for _, e := range s.entries {
		d, ok := e.component.Timeout()
		if !ok {
			continue
		}
		if d < 0 {
			d = 0
		}
		switch {
		case !hasTimeout || d < minTimeout:
			hasTimeout = true
			minTimeout = d
			tied = append(tied[:0], e)
		case d == minTimeout:
			tied = append(tied, e)
		}
	}

	cases := []reflect.SelectCase{{
		Dir:  reflect.SelectRecv,
		Chan: reflect.ValueOf(ctx.Done()),
	}}
	timerIndex := -1
	if hasTimeout {
		timer := time.NewTimer(minTimeout)
		defer timer.Stop()
		timerIndex = len(cases)
		cases = append(cases, reflect.SelectCase{
			Dir:  reflect.SelectRecv,
			Chan: reflect.ValueOf(timer.C),
		})
	}
	var ready []*entry
	for _, e := range s.entries {
		ch := e.component.Readiness()
		if ch == nil {
			continue
		}
		ready = append(ready, e)
		cases = append(cases, reflect.SelectCase{
			Dir:  reflect.SelectRecv,
			Chan: reflect.ValueOf(ch),
		})
	}

	chosen, _, _ := reflect.Select(cases)
	switch {
	case chosen == 0:
		return true
	case chosen == timerIndex:
		// All components tied at the minimum timeout fire together.
		for _, e := range tied {
			if e.pending == ReasonNone {
				e.pending = ReasonTimeout
			}
		}
	default:
		first := 1
		if hasTimeout {
			first = 2
		}
		ready[chosen-first].pending = ReasonData
	}

	// Sweep the remaining channels without blocking so that simultaneously
	// ready components are all marked before the next drain.
	for _, e := range ready {
		if e.pending != ReasonNone {
			continue
		}
		select {
		case <-e.component.Readiness():
			e.pending = ReasonData
		default:
		}
	}
	return false
}
