// Command test-status is a manual test for status notifications.
// It connects to the nearest printer and reports its status every few
// seconds. Open the cover or pull the paper to see the flags change.
// Press Ctrl+C to exit.
//
// Usage:
//
//	go run ./cmd/test-status [--interval 2s]
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/chaz8081/catprint/internal/ble"
	"github.com/chaz8081/catprint/internal/client"
	"github.com/chaz8081/catprint/internal/printer"
)

func main() {
	interval := flag.Duration("interval", 2*time.Second, "status poll interval")
	flag.Parse()

	c := client.New(ble.NewTinyGoAdapter(), client.DefaultOptions())
	c.StateChange.On(func(st printer.PrinterState) {
		fmt.Printf(">>> %s\n", st)
	})
	c.Disconnected.On(func(struct{}) {
		fmt.Println("<<< disconnected")
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	fmt.Printf("Scanning for %s printers...\n", ble.DefaultNamePrefix)
	if err := c.Connect(ctx); err != nil {
		fmt.Printf("Error: %v\n", err)
		return
	}
	fmt.Printf("Connected to %s. Press Ctrl+C to exit.\n", c.State().Device.Name)

	ticker := time.NewTicker(*interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			fmt.Println("\nShutting down...")
			_ = c.Disconnect()
			return
		case <-ticker.C:
			if _, err := c.GetStatus(ctx); err != nil {
				fmt.Printf("Error: %v\n", err)
			}
		}
	}
}
