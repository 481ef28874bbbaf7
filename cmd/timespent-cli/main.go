package main

import (
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"timespent/internal/ipc"
	"timespent/internal/store"
)

var socketPath string

var rootCmd = &cobra.Command{
	Use:   "timespent-cli",
	Short: "CLI tool to interact with the timespent daemon",
	Long:  `A command-line interface to query and control the running timespent daemon via its unix socket, and to inspect the on-disk time store.`,
}

func sendCommand(cmd ipc.Command) ipc.Response {
	conn, err := net.DialTimeout("unix", socketPath, 2*time.Second)
	if err != nil {
		log.Fatalf("Error connecting to daemon socket (%s): %v\nIs the timespent daemon running?", socketPath, err)
	}
	defer conn.Close()

	conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
	conn.SetReadDeadline(time.Now().Add(5 * time.Second))

	if err := json.NewEncoder(conn).Encode(cmd); err != nil {
		log.Fatalf("Error sending command: %v", err)
	}
	var resp ipc.Response
	if err := json.NewDecoder(conn).Decode(&resp); err != nil {
		log.Fatalf("Error receiving response: %v", err)
	}
	if !resp.Success {
		fmt.Fprintf(os.Stderr, "Error: %s\n", resp.Message)
		os.Exit(1)
	}
	return resp
}

var pingCmd = &cobra.Command{
	Use:   "ping",
	Short: "Check if the timespent daemon is running",
	Run: func(cmd *cobra.Command, args []string) {
		resp := sendCommand(ipc.Command{Name: ipc.CmdPing})
		fmt.Println(resp.Message)
	},
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the daemon's current tracking state",
	Run: func(cmd *cobra.Command, args []string) {
		resp := sendCommand(ipc.Command{Name: ipc.CmdStatus})

		// Data arrives as a generic JSON object; re-decode it.
		raw, err := json.Marshal(resp.Data)
		if err != nil {
			log.Fatalf("Error decoding status: %v", err)
		}
		var status ipc.StatusData
		if err := json.Unmarshal(raw, &status); err != nil {
			log.Fatalf("Error decoding status: %v", err)
		}

		if status.Tracking {
			since := time.Unix(status.SinceUnix, 0)
			fmt.Printf("Tracking %q since %s (%s)\n",
				status.Category, since.Format("15:04:05"), formatDuration(time.Since(since)))
		} else {
			fmt.Println("Idle (no category matches the focused window)")
		}
		fmt.Printf("Uptime: %s\n", formatDuration(time.Duration(status.UptimeSecs)*time.Second))
		fmt.Printf("Store:  %s (%d buckets)\n", status.StorePath, status.Buckets)
	},
}

var saveCmd = &cobra.Command{
	Use:   "save",
	Short: "Ask the daemon to persist the aggregate store now",
	Run: func(cmd *cobra.Command, args []string) {
		resp := sendCommand(ipc.Command{Name: ipc.CmdSave})
		fmt.Println(resp.Message)
	},
}

var shutdownCmd = &cobra.Command{
	Use:   "shutdown",
	Short: "Ask the daemon to flush and exit",
	Run: func(cmd *cobra.Command, args []string) {
		resp := sendCommand(ipc.Command{Name: ipc.CmdShutdown})
		fmt.Println(resp.Message)
	},
}

var (
	statsStorePath string
	statsByHour    bool

	headerStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("12"))
	categoryStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
	dimStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
)

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Summarize time spent per category from the store file",
	Run: func(cmd *cobra.Command, args []string) {
		fs := store.NewFileStore(statsStorePath, log.New(io.Discard, "", 0))
		if err := fs.Load(); err != nil {
			log.Fatalf("Error reading store %s: %v", statsStorePath, err)
		}
		agg := fs.Aggregate()
		if agg.Len() == 0 {
			fmt.Printf("No recorded time in %s\n", statsStorePath)
			return
		}

		if statsByHour {
			printHourly(agg)
			return
		}
		printTotals(agg)
	},
}

func printTotals(agg *store.Aggregate) {
	totals := agg.CategoryTotals()
	categories := make([]string, 0, len(totals))
	for category := range totals {
		categories = append(categories, category)
	}
	sort.Slice(categories, func(i, j int) bool {
		return totals[categories[i]] > totals[categories[j]]
	})

	var grand time.Duration
	for _, d := range totals {
		grand += d
	}

	fmt.Println(headerStyle.Render(fmt.Sprintf("%-20s %10s %8s", "CATEGORY", "TIME", "SHARE")))
	for _, category := range categories {
		d := totals[category]
		share := float64(d) / float64(grand) * 100
		fmt.Printf("%s %10s %7.1f%%\n",
			categoryStyle.Render(fmt.Sprintf("%-20s", category)),
			formatDuration(d), share)
	}
	fmt.Println(dimStyle.Render(fmt.Sprintf("%-20s %10s", "total", formatDuration(grand))))
}

func printHourly(agg *store.Aggregate) {
	fmt.Println(headerStyle.Render(fmt.Sprintf("%-12s %4s  %s", "DAY", "HOUR", "CATEGORIES")))
	for _, bt := range agg.Buckets() {
		categories := make([]string, 0, len(bt.Seconds))
		for category := range bt.Seconds {
			categories = append(categories, category)
		}
		sort.Strings(categories)

		parts := make([]string, 0, len(categories))
		for _, category := range categories {
			d := time.Duration(bt.Seconds[category]) * time.Second
			parts = append(parts, fmt.Sprintf("%s=%s", categoryStyle.Render(category), formatDuration(d)))
		}
		fmt.Printf("%-12s %02d:00  %s\n", bt.Bucket.Day, bt.Bucket.Hour, strings.Join(parts, "  "))
	}
}

func formatDuration(d time.Duration) string {
	d = d.Round(time.Second)
	h := d / time.Hour
	d -= h * time.Hour
	m := d / time.Minute
	d -= m * time.Minute
	s := d / time.Second
	if h > 0 {
		return fmt.Sprintf("%d:%02d:%02d", h, m, s)
	}
	return fmt.Sprintf("%02d:%02d", m, s)
}

func main() {
	rootCmd.PersistentFlags().StringVar(&socketPath, "socket", ipc.DefaultSocketPath, "Daemon socket path")
	statsCmd.Flags().StringVar(&statsStorePath, "store", "timespent-store.db", "Store file to read")
	statsCmd.Flags().BoolVar(&statsByHour, "by-hour", false, "List every (day, hour) bucket")

	rootCmd.AddCommand(pingCmd, statusCmd, saveCmd, shutdownCmd, statsCmd)
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
