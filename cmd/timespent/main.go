package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	daemon "github.com/sevlyar/go-daemon"

	"timespent/internal/app"
	"timespent/internal/config"
	"timespent/internal/sched"
)

var (
	configPath = flag.String("c", "", "Path to configuration file (defaults to ./config.yaml, ~/.config/timespent/config.yaml, /etc/timespent/config.yaml)")
	logPath    = flag.String("log", "", "Path to log file (optional, defaults to stderr)")
	daemonize  = flag.Bool("d", false, "Detach and run in the background")
	pidPath    = flag.String("pid", "/tmp/timespent.pid", "PID file path when running with -d")
)

// setupLogging configures the log output destination.
func setupLogging(logFilePath string) (*os.File, error) {
	log.SetFlags(log.LstdFlags | log.Lmicroseconds)
	if logFilePath == "" {
		log.SetOutput(os.Stderr)
		return nil, nil
	}

	dir := filepath.Dir(logFilePath)
	if err := os.MkdirAll(dir, 0750); err != nil {
		return nil, fmt.Errorf("failed to create log directory %s: %w", dir, err)
	}
	file, err := os.OpenFile(logFilePath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return nil, fmt.Errorf("failed to open log file %s: %w", logFilePath, err)
	}
	log.SetOutput(file)
	log.Printf("Logging to file: %s", logFilePath)
	return file, nil
}

func main() {
	flag.Parse()

	if *daemonize {
		dctx := &daemon.Context{
			PidFileName: *pidPath,
			PidFilePerm: 0644,
			LogFileName: *logPath,
			Umask:       027,
		}
		child, err := dctx.Reborn()
		if err != nil {
			log.Fatalf("FATAL: Unable to daemonize: %v", err)
		}
		if child != nil {
			// Parent: the detached child carries on.
			return
		}
		defer dctx.Release()
	}

	logFile, logErr := setupLogging(*logPath)
	if logErr != nil {
		fmt.Fprintf(os.Stderr, "Error setting up file logging: %v. Logging to stderr instead.\n", logErr)
		log.SetOutput(os.Stderr)
	}
	if logFile != nil {
		defer logFile.Close()
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("FATAL: Failed to load configuration: %v", err)
	}

	application, err := app.New(cfg, log.Default())
	if err != nil {
		log.Fatalf("FATAL: Failed to create application: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := application.Run(ctx); err != nil {
		if errors.Is(err, sched.ErrReactivationLoop) {
			log.Fatalf("FATAL: Scheduler logic fault: %v", err)
		}
		log.Fatalf("FATAL: Application exited with error: %v", err)
	}
	log.Println("timespent finished successfully.")
}
