// Command test-pattern is a manual test for the print pipeline.
// It prints a horizontal gray ramp under one dither method so the methods
// can be compared on paper.
//
// Usage:
//
//	go run ./cmd/test-pattern [--dither steinberg] [--rows 120]
package main

import (
	"context"
	"flag"
	"fmt"

	"github.com/chaz8081/catprint/internal/ble"
	"github.com/chaz8081/catprint/internal/client"
	"github.com/chaz8081/catprint/internal/imaging"
	"github.com/chaz8081/catprint/internal/job"
)

func main() {
	dither := flag.String("dither", "steinberg", "dither method: threshold, steinberg, bayer, atkinson, pattern, stucki, burkes")
	rows := flag.Int("rows", 120, "ramp height in rows")
	flag.Parse()

	method, err := imaging.ParseDitherMethod(*dither)
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		return
	}

	// White on the left, black on the right.
	w, h := imaging.PrintWidth, *rows
	pix := make([]byte, w*h*4)
	for y := range h {
		for x := range w {
			v := byte(255 - x*255/(w-1))
			i := (y*w + x) * 4
			pix[i], pix[i+1], pix[i+2], pix[i+3] = v, v, v, 255
		}
	}

	fmt.Printf("Scanning for %s printers...\n", ble.DefaultNamePrefix)
	c := client.New(ble.NewTinyGoAdapter(), client.DefaultOptions())
	ctx := context.Background()
	if err := c.Connect(ctx); err != nil {
		fmt.Printf("Error: %v\n", err)
		return
	}
	defer c.Disconnect()
	fmt.Printf("Connected to %s\n", c.State().Device.Name)

	opts := job.DefaultOptions()
	opts.Dither = method
	fmt.Printf("Printing %d-row ramp with %q...\n", h, method)
	if err := c.Print(ctx, pix, w, h, opts); err != nil {
		fmt.Printf("Error: %v\n", err)
		return
	}

	fmt.Println("\nDone!")
}
