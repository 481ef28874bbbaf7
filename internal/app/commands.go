package app

import (
	"encoding/json"
	"fmt"
	"io"
	"net"
	"time"

	"timespent/internal/ipc"
	"timespent/internal/sched"
)

type request struct {
	cmd  ipc.Command
	resp chan ipc.Response
}

// commandEndpoint bridges socket connections into the scheduler. Connection
// goroutines submit requests through a buffered channel and the endpoint
// handles them from its own activation, so command handlers may touch tracker
// and store state freely.
type commandEndpoint struct {
	app      *App
	requests chan request
	ready    chan struct{}
}

func newCommandEndpoint(a *App) *commandEndpoint {
	return &commandEndpoint{
		app:      a,
		requests: make(chan request, 16),
		ready:    make(chan struct{}, 1),
	}
}

func (c *commandEndpoint) Readiness() <-chan struct{} {
	return c.ready
}

func (c *commandEndpoint) Timeout() (time.Duration, bool) {
	return 0, false
}

func (c *commandEndpoint) Activate(reason sched.Reason) bool {
	keepRunning := true
	for {
		select {
		case req := <-c.requests:
			resp, keep := c.handle(req.cmd)
			req.resp <- resp
			if !keep {
				keepRunning = false
			}
		default:
			return keepRunning
		}
	}
}

func (c *commandEndpoint) handle(cmd ipc.Command) (ipc.Response, bool) {
	a := c.app
	switch cmd.Name {
	case ipc.CmdPing:
		return ipc.Response{Success: true, Message: "pong"}, true

	case ipc.CmdStatus:
		category, tracking, since := a.tracker.Current()
		status := ipc.StatusData{
			Category:   category,
			Tracking:   tracking,
			UptimeSecs: int64(time.Since(a.startedAt).Seconds()),
			Buckets:    a.store.Aggregate().Len(),
			StorePath:  a.store.Path(),
		}
		if tracking {
			status.SinceUnix = since.Unix()
		}
		return ipc.Response{Success: true, Data: status}, true

	case ipc.CmdSave:
		// Wakes the tracker manually; the persist happens on its next
		// activation in this same drain pass.
		a.tracker.RequestSave()
		return ipc.Response{Success: true, Message: "save scheduled"}, true

	case ipc.CmdShutdown:
		return ipc.Response{Success: true, Message: "shutting down"}, false

	default:
		return ipc.Response{Success: false, Message: fmt.Sprintf("Unknown command: %s", cmd.Name)}, true
	}
}

// submit hands a command to the scheduler thread and waits for the reply.
// Called from connection handler goroutines.
func (c *commandEndpoint) submit(cmd ipc.Command) ipc.Response {
	req := request{cmd: cmd, resp: make(chan ipc.Response, 1)}
	select {
	case c.requests <- req:
	case <-time.After(2 * time.Second):
		return ipc.Response{Success: false, Message: "daemon busy"}
	}
	select {
	case c.ready <- struct{}{}:
	default:
	}
	select {
	case resp := <-req.resp:
		return resp
	case <-time.After(5 * time.Second):
		return ipc.Response{Success: false, Message: "timeout waiting for daemon"}
	}
}

// listenForCommands accepts connections until the listener closes.
func (a *App) listenForCommands() {
	defer a.wg.Done()

	for {
		conn, err := a.listener.AcceptUnix()
		if err != nil {
			if ne, ok := err.(net.Error); ok && ne.Timeout() {
				time.Sleep(100 * time.Millisecond)
				continue
			}
			// Listener closed during shutdown.
			return
		}
		a.wg.Add(1)
		go a.handleConnection(conn)
	}
}

func (a *App) handleConnection(conn *net.UnixConn) {
	defer conn.Close()
	defer a.wg.Done()

	conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	decoder := json.NewDecoder(conn)
	encoder := json.NewEncoder(conn)

	var cmd ipc.Command
	if err := decoder.Decode(&cmd); err != nil {
		if err != io.EOF {
			a.logger.Printf("Failed to decode command: %v", err)
		}
		_ = encoder.Encode(ipc.Response{Success: false, Message: "failed to decode command"})
		return
	}

	conn.SetReadDeadline(time.Time{})
	conn.SetWriteDeadline(time.Now().Add(5 * time.Second))

	a.logger.Printf("Received command: %s", cmd.Name)
	if err := encoder.Encode(a.commands.submit(cmd)); err != nil {
		a.logger.Printf("Failed to send response: %v", err)
	}
}
