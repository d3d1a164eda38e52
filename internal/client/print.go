package client

import (
	"context"
	"fmt"
	"image"
	"log/slog"

	"github.com/chaz8081/catprint/internal/imaging"
	"github.com/chaz8081/catprint/internal/job"
	"github.com/chaz8081/catprint/internal/printer"
)

// Print renders a w×h RGBA buffer and prints it. The call blocks until the
// printer reports completion and cannot be aborted once data is being
// sent; ctx only bounds the waits between steps. Failures are returned and
// also reported on the Error event. Whatever the outcome, the status is
// fetched again before Print returns while the printer stays connected.
func (c *Client) Print(ctx context.Context, pix []byte, w, h int, opts job.Options) error {
	c.mu.Lock()
	switch c.phase {
	case PhaseConnected:
	case PhasePrinting:
		c.mu.Unlock()
		return c.fail(fmt.Errorf("%w: print already in progress", printer.ErrBusy))
	default:
		c.mu.Unlock()
		return c.fail(printer.ErrNotConnected)
	}
	if opts.Dither == "" {
		opts.Dither = c.opts.DitherMethod
	}
	if opts.Intensity == 0 {
		opts.Intensity = c.opts.Intensity
	}
	ctrl := c.ctrl
	c.phase = PhasePrinting
	c.mu.Unlock()

	defer c.finishPrint(ctx, ctrl)

	j, err := job.Assemble(pix, w, h, opts)
	if err != nil {
		return c.fail(err)
	}

	slog.Info("[CLIENT] printing", "lines", j.Lines, "bytes", len(j.Buffer), "dither", opts.Dither, "intensity", j.Intensity)
	if err := ctrl.Print(ctx, j.Buffer, j.Lines, j.Intensity); err != nil {
		slog.Error("[CLIENT] print failed", "error", err)
		return c.fail(err)
	}
	return nil
}

// finishPrint leaves PhasePrinting and, if the link survived, refreshes
// the printer status so StateChange reflects the device after success and
// failure alike. The refresh is best effort.
func (c *Client) finishPrint(ctx context.Context, ctrl *printer.Controller) {
	c.mu.Lock()
	still := c.phase == PhasePrinting
	if still {
		c.phase = PhaseConnected
	}
	c.mu.Unlock()
	if !still || ctx.Err() != nil {
		return
	}

	if _, err := ctrl.RequestStatus(ctx); err != nil {
		slog.Warn("[CLIENT] status refresh after print failed", "error", err)
		c.Error.Emit(err)
	}
}

// PrintImage prints img. Images wider than the print head are cropped; use
// imaging.FitWidth first to scale them instead.
func (c *Client) PrintImage(ctx context.Context, img image.Image, opts job.Options) error {
	pix, w, h := imaging.RGBA(img)
	return c.Print(ctx, pix, w, h, opts)
}

// GetStatus asks the printer for a fresh status. It returns nil when no
// printer is connected and the last known status while a print is running.
func (c *Client) GetStatus(ctx context.Context) (*printer.PrinterState, error) {
	c.mu.Lock()
	phase, ctrl, tracker := c.phase, c.ctrl, c.tracker
	c.mu.Unlock()

	switch phase {
	case PhaseConnected:
	case PhasePrinting:
		return tracker.State(), nil
	default:
		return nil, nil
	}

	if _, err := ctrl.RequestStatus(ctx); err != nil {
		return nil, c.fail(err)
	}
	return tracker.State(), nil
}
