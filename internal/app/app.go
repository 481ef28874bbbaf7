// Package app wires the scheduler components together and owns the daemon
// lifecycle: store load, unix-socket command endpoint, signal-driven
// shutdown with a final flush.
package app

import (
	"context"
	"fmt"
	"log"
	"net"
	"os"
	"sync"
	"time"

	"timespent/internal/config"
	"timespent/internal/journal"
	"timespent/internal/sched"
	"timespent/internal/store"
	"timespent/internal/track"
	"timespent/internal/xwindow"
)

type App struct {
	cfg    *config.Config
	logger *log.Logger

	store     *store.FileStore
	journal   *journal.Journal
	tracker   *track.Tracker
	source    *xwindow.Source
	scheduler *sched.Scheduler
	commands  *commandEndpoint

	listener  *net.UnixListener
	startedAt time.Time
	wg        sync.WaitGroup
}

func New(cfg *config.Config, logger *log.Logger) (*App, error) {
	rules, err := track.CompileRules(cfg.Rules)
	if err != nil {
		return nil, fmt.Errorf("invalid rules: %w", err)
	}

	a := &App{cfg: cfg, logger: logger}
	a.store = store.NewFileStore(cfg.StorePath, logger)
	a.tracker = track.NewTracker(track.NewClassifier(rules...), a.store, cfg.SaveInterval(), logger)

	if cfg.JournalPath != "" {
		j, err := journal.Open(context.Background(), cfg.JournalPath, logger)
		if err != nil {
			return nil, fmt.Errorf("failed to open journal: %w", err)
		}
		a.journal = j
		a.tracker.SetJournal(journalRecorder{j: j})
	}

	src, err := xwindow.New(logger)
	if err != nil {
		logger.Printf("Warning: failed to initialize X11 window source: %v. Focus tracking disabled.", err)
		src = nil
	}
	a.source = src

	a.commands = newCommandEndpoint(a)
	return a, nil
}

// Run blocks until a termination signal cancels ctx, a shutdown command
// arrives, or the scheduler aborts on a logic fault.
func (a *App) Run(ctx context.Context) error {
	defer a.cleanup()

	a.startedAt = time.Now()
	a.logger.Println("Starting timespent daemon...")

	if err := a.store.Load(); err != nil {
		return fmt.Errorf("failed to load store: %w", err)
	}

	if err := a.setupSocket(); err != nil {
		return fmt.Errorf("failed to set up socket: %w", err)
	}

	a.scheduler = sched.New(a.logger)
	if a.source != nil {
		a.source.OnFocusChange(a.tracker.Observe)
		a.scheduler.Register("windows", a.source)
	} else {
		a.logger.Println("X11 focus monitoring: DISABLED")
	}
	trackerToken := a.scheduler.Register("tracker", a.tracker)
	a.tracker.Bind(trackerToken)
	a.scheduler.Register("commands", a.commands)

	// Establish the initial category before the loop starts, so the first
	// slice begins at daemon start rather than at the first focus change.
	if a.source != nil {
		a.source.Prime()
	}

	a.wg.Add(1)
	go a.listenForCommands()

	a.recordLifecycle(journal.KindStart)
	a.logger.Printf("timespent daemon running. Commands via %s", a.cfg.SocketPath)

	err := a.scheduler.Run(ctx)

	a.logger.Println("Scheduler stopped, flushing final slice...")
	a.tracker.Shutdown()
	a.recordLifecycle(journal.KindStop)
	return err
}

func (a *App) recordLifecycle(kind journal.Kind) {
	if a.journal == nil {
		return
	}
	recCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if _, err := a.journal.Record(recCtx, journal.Entry{Timestamp: time.Now(), Kind: kind}); err != nil {
		a.logger.Printf("Warning: failed to record %s: %v", kind, err)
	}
}

// setupSocket checks for a stale socket file and creates the listener.
func (a *App) setupSocket() error {
	socketPath := a.cfg.SocketPath
	if _, err := os.Stat(socketPath); err == nil {
		conn, err := net.DialTimeout("unix", socketPath, time.Second)
		if err == nil {
			conn.Close()
			return fmt.Errorf("socket %s already active, another instance might be running", socketPath)
		}
		a.logger.Printf("Stale socket file found at %s, removing.", socketPath)
		if err := os.Remove(socketPath); err != nil {
			return fmt.Errorf("failed to remove stale socket file %s: %w", socketPath, err)
		}
	} else if !os.IsNotExist(err) {
		return fmt.Errorf("error checking socket file %s: %w", socketPath, err)
	}

	addr, err := net.ResolveUnixAddr("unix", socketPath)
	if err != nil {
		return fmt.Errorf("failed to resolve unix addr %s: %w", socketPath, err)
	}
	listener, err := net.ListenUnix("unix", addr)
	if err != nil {
		return fmt.Errorf("failed to listen on socket %s: %w", socketPath, err)
	}
	a.listener = listener
	a.logger.Printf("Listening for commands on %s", socketPath)
	return nil
}

func (a *App) cleanup() {
	a.logger.Println("Running cleanup...")

	if a.listener != nil {
		if err := a.listener.Close(); err != nil {
			a.logger.Printf("Error closing socket listener: %v", err)
		}
	}

	waitChan := make(chan struct{})
	go func() {
		a.wg.Wait()
		close(waitChan)
	}()
	select {
	case <-waitChan:
	case <-time.After(5 * time.Second):
		a.logger.Println("Warning: timeout waiting for connection handlers to stop.")
	}

	if a.journal != nil {
		if err := a.journal.Close(); err != nil {
			a.logger.Printf("Error closing journal: %v", err)
		}
	}
	if a.source != nil {
		a.source.Close()
	}

	if _, err := os.Stat(a.cfg.SocketPath); err == nil {
		if err := os.Remove(a.cfg.SocketPath); err != nil {
			a.logger.Printf("Warning: failed to remove socket file %s: %v", a.cfg.SocketPath, err)
		}
	}
	a.logger.Println("Cleanup finished.")
}

// journalRecorder adapts the journal to the tracker's port.
type journalRecorder struct {
	j *journal.Journal
}

func (r journalRecorder) RecordFocus(ts time.Time, category string, w track.WindowInfo) error {
	title, _ := w.Title.Get()
	class, _ := w.Class.Get()
	recCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	_, err := r.j.Record(recCtx, journal.Entry{
		Timestamp: ts,
		Kind:      journal.KindFocus,
		Category:  category,
		Title:     title,
		Class:     class,
	})
	return err
}
