package track

import (
	"log"
	"time"

	"timespent/internal/sched"
)

// Aggregator is the persistence port the tracker flushes time slices into.
type Aggregator interface {
	AddSlice(category string, from, to time.Time)
	Save() error
}

// FocusJournal records raw focus-change events. Optional.
type FocusJournal interface {
	RecordFocus(ts time.Time, category string, w WindowInfo) error
}

// Tracker is the time-slice accounting state machine. It is a scheduler
// component: window snapshots arrive through Observe (called synchronously
// from the window source's activation) and are applied during the tracker's
// own activation, so every mutation happens on the scheduler thread.
//
// The tracker is either idle or tracking exactly one category since some
// instant. A category change flushes the previous slice into the aggregator
// exactly once. Switching to an uncategorized window ends the slice without
// starting a new one: idle time is not recorded.
type Tracker struct {
	*sched.IntervalTimer

	classifier *Classifier
	agg        Aggregator
	journal    FocusJournal
	logger     *log.Logger
	token      *sched.Token
	now        func() time.Time

	pending    *WindowInfo
	saveWanted bool

	tracking bool
	current  string
	since    time.Time
}

// NewTracker creates a tracker that persists the aggregate every
// saveInterval.
func NewTracker(classifier *Classifier, agg Aggregator, saveInterval time.Duration, logger *log.Logger) *Tracker {
	return newTrackerAt(classifier, agg, saveInterval, logger, time.Now)
}

func newTrackerAt(classifier *Classifier, agg Aggregator, saveInterval time.Duration, logger *log.Logger, now func() time.Time) *Tracker {
	return &Tracker{
		IntervalTimer: sched.NewIntervalTimerAt(saveInterval, now),
		classifier:    classifier,
		agg:           agg,
		logger:        logger,
		now:           now,
	}
}

// SetJournal attaches an optional focus-event journal.
func (t *Tracker) SetJournal(j FocusJournal) {
	t.journal = j
}

// Bind attaches the scheduler token used for manual re-activation.
func (t *Tracker) Bind(token *sched.Token) {
	t.token = token
}

func (t *Tracker) Readiness() <-chan struct{} {
	return nil
}

// Observe is the classification callback registered with the window source.
// It records the snapshot and wakes the tracker so the state machine runs in
// the tracker's own activation within the same drain pass.
func (t *Tracker) Observe(w WindowInfo) {
	t.pending = &w
	if t.token != nil {
		t.token.Wake()
	}
}

// RequestSave asks for a persist on the tracker's next activation. Safe to
// call from another component's callback.
func (t *Tracker) RequestSave() {
	t.saveWanted = true
	if t.token != nil {
		t.token.Wake()
	}
}

func (t *Tracker) Activate(reason sched.Reason) bool {
	t.Rearm()
	if t.pending != nil {
		w := *t.pending
		t.pending = nil
		t.apply(w)
	}
	if reason == sched.ReasonTimeout || t.saveWanted {
		t.saveWanted = false
		// The open slice stays open; its seconds reach the store at the next
		// category change or at shutdown.
		t.persist()
	}
	return true
}

// Current reports the tracking state for status queries.
func (t *Tracker) Current() (category string, tracking bool, since time.Time) {
	return t.current, t.tracking, t.since
}

// Shutdown flushes the open slice and persists the aggregate. This is the
// only path that saves the final partial slice; call it once the scheduler
// has stopped.
func (t *Tracker) Shutdown() {
	if t.pending != nil {
		w := *t.pending
		t.pending = nil
		t.apply(w)
	}
	if t.tracking {
		t.agg.AddSlice(t.current, t.since, t.now())
		t.tracking = false
		t.current = ""
	}
	t.persist()
}

func (t *Tracker) apply(w WindowInfo) {
	category, ok := t.classifier.Classify(w)
	now := t.now()

	if t.journal != nil {
		if err := t.journal.RecordFocus(now, category, w); err != nil {
			t.logger.Printf("Warning: journal write failed: %v", err)
		}
	}

	if ok == t.tracking && (!ok || category == t.current) {
		return
	}

	if t.tracking {
		t.agg.AddSlice(t.current, t.since, now)
	}
	if ok {
		t.tracking = true
		t.current = category
		t.since = now
		t.logger.Printf("Category changed to %q (%s)", category, w)
	} else {
		t.tracking = false
		t.current = ""
		t.logger.Printf("No category matches %s, idle", w)
	}
}

func (t *Tracker) persist() {
	if err := t.agg.Save(); err != nil {
		t.logger.Printf("ERROR: failed to persist aggregate: %v", err)
	}
}
