// Package ipc defines the JSON command protocol spoken over the daemon's unix
// socket.
package ipc

const DefaultSocketPath = "/tmp/timespent.sock"

// Command is a request sent over the socket.
type Command struct {
	Name string `json:"name"`
}

// Response is the daemon's reply.
type Response struct {
	Success bool        `json:"success"`
	Message string      `json:"message,omitempty"`
	Data    interface{} `json:"data,omitempty"`
}

const (
	CmdPing     = "ping"
	CmdStatus   = "status"
	CmdSave     = "save"     // persist the aggregate now
	CmdShutdown = "shutdown" // flush and exit
)

// StatusData is the payload of a successful status response.
type StatusData struct {
	Category   string `json:"category"`
	Tracking   bool   `json:"tracking"`
	SinceUnix  int64  `json:"since_unix,omitempty"`
	UptimeSecs int64  `json:"uptime_secs"`
	Buckets    int    `json:"buckets"`
	StorePath  string `json:"store_path"`
}
