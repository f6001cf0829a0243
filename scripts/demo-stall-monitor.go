//go:build ignore
// +build ignore

// Demo script to show the stall monitor in action
// Run with: go run scripts/demo-stall-monitor.go
package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/harrison/maestro/internal/monitor"
)

type stdoutLogger struct{}

func (stdoutLogger) LogDebug(message string) { fmt.Println("  [debug]", message) }
func (stdoutLogger) LogWarn(message string)  { fmt.Println("  [warn] ", message) }

func main() {
	fmt.Println(strings.Repeat("=", 60))
	fmt.Println("Stall Monitor Demo")
	fmt.Println(strings.Repeat("=", 60))
	fmt.Println()

	workDir, err := os.MkdirTemp("", "maestro-demo-")
	if err != nil {
		fmt.Fprintf(os.Stderr, "create work dir: %v\n", err)
		os.Exit(1)
	}
	defer os.RemoveAll(workDir)

	cfg := monitor.Config{
		WorkDir:           workDir,
		PollInterval:      100 * time.Millisecond,
		StallTimeout:      1 * time.Second,
		HeartbeatInterval: 500 * time.Millisecond,
		Logger:            stdoutLogger{},
	}
	mon := monitor.New(cfg)

	fmt.Println("Configuration:")
	fmt.Printf("  Work dir:       %s\n", workDir)
	fmt.Printf("  Poll interval:  %s\n", cfg.PollInterval)
	fmt.Printf("  Stall timeout:  %s\n", cfg.StallTimeout)
	fmt.Println()

	// Demo 1: an invocation that keeps touching files is left alone.
	fmt.Println(strings.Repeat("-", 60))
	fmt.Println("Demo 1: Active invocation")
	fmt.Println(strings.Repeat("-", 60))

	outcome, err := mon.Supervise(context.Background(), func(ctx context.Context) error {
		for i := 0; i < 5; i++ {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(400 * time.Millisecond):
			}
			path := filepath.Join(workDir, fmt.Sprintf("file-%d.txt", i))
			if err := os.WriteFile(path, []byte("progress"), 0644); err != nil {
				return err
			}
			fmt.Printf("  agent wrote %s\n", filepath.Base(path))
		}
		return nil
	})
	fmt.Printf("Outcome: %s (err: %v)\n\n", outcome, err)

	// Demo 2: an invocation that goes quiet is killed at the timeout.
	fmt.Println(strings.Repeat("-", 60))
	fmt.Println("Demo 2: Stalled invocation")
	fmt.Println(strings.Repeat("-", 60))

	start := time.Now()
	outcome, err = mon.Supervise(context.Background(), func(ctx context.Context) error {
		fmt.Println("  agent doing nothing...")
		<-ctx.Done()
		return ctx.Err()
	})
	fmt.Printf("Outcome after %s: %s (err: %v)\n\n", time.Since(start).Round(100*time.Millisecond), outcome, err)

	fmt.Println(strings.Repeat("=", 60))
	fmt.Println("Demo complete")
	fmt.Println(strings.Repeat("=", 60))
}
