// Package xwindow watches the X11 active window and reports focus changes.
package xwindow

import (
	"fmt"
	"log"
	"time"

	"github.com/BurntSushi/xgb/xproto"
	"github.com/BurntSushi/xgbutil"
	"github.com/BurntSushi/xgbutil/ewmh"
	"github.com/BurntSushi/xgbutil/icccm"
	"github.com/BurntSushi/xgbutil/xprop"

	"timespent/internal/sched"
	"timespent/internal/track"
)

// Source is the scheduler component driven by X server readiness. A bridge
// goroutine turns relevant X events into signals on the readiness channel;
// every piece of mutable state is touched only from Activate, which runs on
// the scheduler thread.
type Source struct {
	X          *xgbutil.XUtil
	root       xproto.Window
	activeAtom xproto.Atom

	ready    chan struct{}
	callback func(track.WindowInfo)
	logger   *log.Logger

	last   track.WindowInfo
	primed bool
}

func New(logger *log.Logger) (*Source, error) {
	X, err := xgbutil.NewConn()
	if err != nil {
		return nil, fmt.Errorf("failed to connect to X server: %w", err)
	}

	// _NET_ACTIVE_WINDOW needs an EWMH-capable window manager; warn early if
	// the WM looks uncooperative.
	if _, err := ewmh.CurrentDesktopGet(X); err != nil {
		logger.Printf("Warning: EWMH potentially not supported by window manager: %v", err)
	}

	activeAtom, err := xprop.Atm(X, "_NET_ACTIVE_WINDOW")
	if err != nil {
		X.Conn().Close()
		return nil, fmt.Errorf("failed to intern _NET_ACTIVE_WINDOW: %w", err)
	}

	root := X.RootWin()
	err = xproto.ChangeWindowAttributesChecked(X.Conn(), root,
		xproto.CwEventMask, []uint32{xproto.EventMaskPropertyChange}).Check()
	if err != nil {
		X.Conn().Close()
		return nil, fmt.Errorf("failed to subscribe to root property changes: %w", err)
	}

	s := &Source{
		X:          X,
		root:       root,
		activeAtom: activeAtom,
		ready:      make(chan struct{}, 1),
		logger:     logger,
	}
	go s.readEvents()
	return s, nil
}

// OnFocusChange registers the callback invoked once per focus change, from
// inside this component's activation.
func (s *Source) OnFocusChange(fn func(track.WindowInfo)) {
	s.callback = fn
}

func (s *Source) Readiness() <-chan struct{} {
	return s.ready
}

func (s *Source) Timeout() (time.Duration, bool) {
	return 0, false
}

// Activate re-queries the active window and fires the callback if its
// identity changed since the last look.
func (s *Source) Activate(reason sched.Reason) bool {
	info := s.queryActiveWindow()
	if s.primed && info == s.last {
		return true
	}
	s.last = info
	s.primed = true
	s.logger.Printf("Focus changed: %s", info)
	if s.callback != nil {
		s.callback(info)
	}
	return true
}

// Prime establishes the initial focus baseline and fires the callback once,
// before the scheduler starts.
func (s *Source) Prime() {
	s.Activate(sched.ReasonManual)
}

func (s *Source) Close() {
	s.X.Conn().Close()
}

// readEvents drains the X connection and raises the readiness signal when the
// active window property changed. It exits when the connection closes.
func (s *Source) readEvents() {
	for {
		ev, xerr := s.X.Conn().WaitForEvent()
		if ev == nil && xerr == nil {
			return
		}
		if xerr != nil {
			s.logger.Printf("Warning: X event error: %v", xerr)
			continue
		}
		pn, ok := ev.(xproto.PropertyNotifyEvent)
		if !ok {
			continue
		}
		if pn.Window == s.root && pn.Atom == s.activeAtom && pn.State == xproto.PropertyNewValue {
			select {
			case s.ready <- struct{}{}:
			default:
			}
		}
	}
}

// queryActiveWindow resolves the focused window's title and class. Any
// failure yields an absent field rather than an error: an unresolvable window
// is simply uncategorized.
func (s *Source) queryActiveWindow() track.WindowInfo {
	active, err := ewmh.ActiveWindowGet(s.X)
	if err != nil || active == 0 {
		return track.WindowInfo{Title: track.NoString(), Class: track.NoString()}
	}

	title := track.NoString()
	if name, err := ewmh.WmNameGet(s.X, active); err == nil && name != "" {
		title = track.StringOf(name)
	} else if name, err := icccm.WmNameGet(s.X, active); err == nil && name != "" {
		title = track.StringOf(name)
	}

	class := track.NoString()
	if hints, err := icccm.WmClassGet(s.X, active); err == nil && hints != nil {
		class = track.StringOf(hints.Class)
	}

	return track.WindowInfo{Title: title, Class: class}
}
