package track

import (
	"context"
	"io"
	"log"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"timespent/internal/sched"
)

type flushedSlice struct {
	category string
	from, to time.Time
}

type fakeAggregator struct {
	slices []flushedSlice
	saves  int
}

func (a *fakeAggregator) AddSlice(category string, from, to time.Time) {
	a.slices = append(a.slices, flushedSlice{category: category, from: from, to: to})
}

func (a *fakeAggregator) Save() error {
	a.saves++
	return nil
}

type fakeClock struct {
	t time.Time
}

func (c *fakeClock) Now() time.Time {
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.t = c.t.Add(d)
}

func newTestTracker(t *testing.T, specs ...RuleSpec) (*Tracker, *fakeAggregator, *fakeClock) {
	t.Helper()
	clock := &fakeClock{t: time.Date(2026, 8, 29, 10, 0, 0, 0, time.Local)}
	agg := &fakeAggregator{}
	tracker := newTrackerAt(mustCompile(t, specs...), agg, 5*time.Second, log.New(io.Discard, "", 0), clock.Now)
	return tracker, agg, clock
}

func observe(tracker *Tracker, w WindowInfo) {
	tracker.Observe(w)
	tracker.Activate(sched.ReasonManual)
}

func TestSliceFlushedOnCategoryChange(t *testing.T) {
	tracker, agg, clock := newTestTracker(t, RuleSpec{Category: "focus-work", ClassEquals: "editor"})
	start := clock.Now()

	observe(tracker, WindowInfo{Class: StringOf("editor")})
	clock.Advance(3 * time.Second)
	observe(tracker, WindowInfo{Class: StringOf("terminal")})

	require.Len(t, agg.slices, 1)
	assert.Equal(t, flushedSlice{category: "focus-work", from: start, to: start.Add(3 * time.Second)}, agg.slices[0])

	// Idle time is not recorded: shutdown after an uncategorized stretch adds
	// no further slice.
	clock.Advance(2 * time.Second)
	tracker.Shutdown()
	assert.Len(t, agg.slices, 1)
	assert.GreaterOrEqual(t, agg.saves, 1)
}

func TestRepeatedCategoryDoesNotFlush(t *testing.T) {
	tracker, agg, clock := newTestTracker(t, RuleSpec{Category: "work", ClassEquals: "editor"})

	observe(tracker, WindowInfo{Class: StringOf("editor"), Title: StringOf("a.go")})
	clock.Advance(10 * time.Second)
	observe(tracker, WindowInfo{Class: StringOf("editor"), Title: StringOf("b.go")})

	assert.Empty(t, agg.slices, "same category must not end the slice")

	category, tracking, since := tracker.Current()
	assert.True(t, tracking)
	assert.Equal(t, "work", category)
	assert.Equal(t, clock.Now().Add(-10*time.Second), since)
}

func TestUncategorizedToUncategorizedIsNoop(t *testing.T) {
	tracker, agg, clock := newTestTracker(t, RuleSpec{Category: "work", ClassEquals: "editor"})

	observe(tracker, WindowInfo{Class: StringOf("terminal")})
	clock.Advance(time.Second)
	observe(tracker, WindowInfo{Class: StringOf("mpv")})

	assert.Empty(t, agg.slices)
	_, tracking, _ := tracker.Current()
	assert.False(t, tracking)
}

func TestFlushedDurationsMatchWallClock(t *testing.T) {
	tracker, agg, clock := newTestTracker(t,
		RuleSpec{Category: "a", ClassEquals: "editor"},
		RuleSpec{Category: "b", ClassEquals: "firefox"},
	)

	observe(tracker, WindowInfo{Class: StringOf("editor")}) // t=0
	clock.Advance(10 * time.Second)
	observe(tracker, WindowInfo{Class: StringOf("firefox")}) // t=10
	clock.Advance(15 * time.Second)
	observe(tracker, WindowInfo{Class: StringOf("editor")}) // t=25
	clock.Advance(15 * time.Second)
	observe(tracker, WindowInfo{Class: StringOf("unknown")}) // t=40, idle
	clock.Advance(10 * time.Second)
	observe(tracker, WindowInfo{Class: StringOf("editor")}) // t=50
	clock.Advance(10 * time.Second)
	tracker.Shutdown() // t=60

	var totalA, totalB time.Duration
	for _, s := range agg.slices {
		switch s.category {
		case "a":
			totalA += s.to.Sub(s.from)
		case "b":
			totalB += s.to.Sub(s.from)
		}
	}
	assert.Equal(t, 35*time.Second, totalA)
	assert.Equal(t, 15*time.Second, totalB)
}

func TestPeriodicSaveKeepsSliceOpen(t *testing.T) {
	tracker, agg, clock := newTestTracker(t, RuleSpec{Category: "work", ClassEquals: "editor"})
	start := clock.Now()

	observe(tracker, WindowInfo{Class: StringOf("editor")})
	clock.Advance(60 * time.Second)
	tracker.Activate(sched.ReasonTimeout)

	assert.Equal(t, 1, agg.saves)
	assert.Empty(t, agg.slices, "the in-progress slice must survive a periodic save")

	clock.Advance(10 * time.Second)
	observe(tracker, WindowInfo{Class: StringOf("terminal")})
	require.Len(t, agg.slices, 1)
	assert.Equal(t, 70*time.Second, agg.slices[0].to.Sub(agg.slices[0].from))
	assert.Equal(t, start, agg.slices[0].from)
}

func TestRequestSavePersistsOnNextActivation(t *testing.T) {
	tracker, agg, _ := newTestTracker(t, RuleSpec{Category: "work", ClassEquals: "editor"})

	tracker.RequestSave()
	tracker.Activate(sched.ReasonManual)
	assert.Equal(t, 1, agg.saves)

	tracker.Activate(sched.ReasonManual)
	assert.Equal(t, 1, agg.saves, "save request must be one-shot")
}

func TestShutdownFlushesFinalPartialSlice(t *testing.T) {
	tracker, agg, clock := newTestTracker(t, RuleSpec{Category: "work", ClassEquals: "editor"})
	start := clock.Now()

	observe(tracker, WindowInfo{Class: StringOf("editor")})
	clock.Advance(42 * time.Second)
	tracker.Shutdown()

	require.Len(t, agg.slices, 1)
	assert.Equal(t, flushedSlice{category: "work", from: start, to: start.Add(42 * time.Second)}, agg.slices[0])
	assert.Equal(t, 1, agg.saves)

	_, tracking, _ := tracker.Current()
	assert.False(t, tracking)
}

// stopWhen lets a scheduler-driven test terminate once a condition holds
// after the wrapped tracker has run.
type stopWhen struct {
	*Tracker
	done func() bool
}

func (s stopWhen) Activate(reason sched.Reason) bool {
	s.Tracker.Activate(reason)
	return !s.done()
}

type callbackSource struct {
	ready chan struct{}
	fire  func()
}

func (s *callbackSource) Readiness() <-chan struct{}        { return s.ready }
func (s *callbackSource) Timeout() (time.Duration, bool)    { return 0, false }
func (s *callbackSource) Activate(reason sched.Reason) bool { s.fire(); return true }

func TestObserveRunsTrackerInSameDrainPass(t *testing.T) {
	tracker, agg, clock := newTestTracker(t, RuleSpec{Category: "work", ClassEquals: "editor"})

	s := sched.New(log.New(io.Discard, "", 0))
	source := &callbackSource{ready: make(chan struct{}, 1)}
	s.Register("windows", source)
	token := s.Register("tracker", stopWhen{tracker, func() bool { return len(agg.slices) == 1 }})
	tracker.Bind(token)

	calls := 0
	source.fire = func() {
		calls++
		if calls == 1 {
			tracker.Observe(WindowInfo{Class: StringOf("editor")})
		} else {
			clock.Advance(7 * time.Second)
			tracker.Observe(WindowInfo{Class: StringOf("terminal")})
		}
		source.ready <- struct{}{}
	}

	source.ready <- struct{}{}
	err := s.Run(context.Background())
	require.NoError(t, err)

	require.Len(t, agg.slices, 1)
	assert.Equal(t, 7*time.Second, agg.slices[0].to.Sub(agg.slices[0].from))
}
