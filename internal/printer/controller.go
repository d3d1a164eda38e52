package printer

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/chaz8081/catprint/internal/ble/protocol"
)

// Protocol timing. These are device requirements, not tuning knobs: the
// printer drops data if chunks arrive faster than ChunkDelay.
const (
	SettleDelay     = 50 * time.Millisecond
	ChunkDelay      = 15 * time.Millisecond
	StatusTimeout   = 5 * time.Second
	AckTimeout      = 5 * time.Second
	CompleteTimeout = 20 * time.Second
)

// DefaultIntensity is the print head energy used when none is configured.
const DefaultIntensity byte = 0x5D

// Print modes for PrintRequest.
const (
	ModeMonochrome byte = 0x00
)

const printRequestMarker = 0x30

// Writer is a characteristic the controller can write frames to.
type Writer interface {
	Write(data []byte) error
}

// Controller sequences the printer's primitive operations. Each exported
// method holds the controller lock for its whole request/response
// exchange, so at most one command is outstanding at a time.
type Controller struct {
	control Writer
	data    Writer
	tracker *Tracker

	mu sync.Mutex
}

// NewController binds a controller to the control and data channels. The
// tracker must be fed from the notify channel.
func NewController(control, data Writer, tracker *Tracker) *Controller {
	return &Controller{
		control: control,
		data:    data,
		tracker: tracker,
	}
}

// Tracker returns the tracker the controller waits on.
func (c *Controller) Tracker() *Tracker {
	return c.tracker
}

// SetIntensity sets the print head energy. The command has no reply; the
// device only needs time to apply it.
func (c *Controller) SetIntensity(ctx context.Context, value byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.setIntensity(ctx, value)
}

// RequestStatus asks for a status report and returns its raw payload. The
// tracker decodes the same payload into its stored state.
func (c *Controller) RequestStatus(ctx context.Context) ([]byte, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.requestStatus(ctx)
}

// PrintRequest announces a job of lines rows. The printer must acknowledge
// with a zero status byte.
func (c *Controller) PrintRequest(ctx context.Context, lines int, mode byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.printRequest(ctx, lines, mode)
}

// FlushData signals the end of image data.
func (c *Controller) FlushData(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.flushData(ctx)
}

// SendDataChunks writes buf to the data channel in chunkSize slices with
// ChunkDelay between writes. chunkSize <= 0 selects one printed row.
func (c *Controller) SendDataChunks(ctx context.Context, buf []byte, chunkSize int) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.sendDataChunks(ctx, buf, chunkSize)
}

// WaitForPrintComplete clears the completion flag and waits for the
// printer to report the job finished. timeout <= 0 selects CompleteTimeout.
func (c *Controller) WaitForPrintComplete(ctx context.Context, timeout time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if timeout <= 0 {
		timeout = CompleteTimeout
	}
	c.tracker.ClearComplete()
	return c.tracker.awaitComplete(ctx, timeout)
}

// Print runs the full job sequence: intensity, status precheck, print
// request, data, flush, completion. A status showing a fault fails the job
// with a *FaultError before any data is sent.
func (c *Controller) Print(ctx context.Context, buf []byte, lines int, intensity byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	start := time.Now()
	if err := c.setIntensity(ctx, intensity); err != nil {
		return err
	}

	payload, err := c.requestStatus(ctx)
	if err != nil {
		return err
	}
	if st, ok := DecodeStatus(payload); ok {
		if st.HasFault() {
			return &FaultError{State: st}
		}
		if st.Printing {
			return fmt.Errorf("%w: printer reports a job in progress", ErrBusy)
		}
	}

	if err := c.printRequest(ctx, lines, ModeMonochrome); err != nil {
		return err
	}

	// Armed before the flush: the completion notification may arrive
	// while the flush settle delay is still running.
	c.tracker.ClearComplete()

	if err := c.sendDataChunks(ctx, buf, protocol.DataChunkSize); err != nil {
		return err
	}
	if err := c.flushData(ctx); err != nil {
		return err
	}
	if err := c.tracker.awaitComplete(ctx, CompleteTimeout); err != nil {
		return err
	}

	slog.Info("[PRINTER] print complete", "lines", lines, "bytes", len(buf), "elapsed", time.Since(start).Round(time.Millisecond))
	return nil
}

func (c *Controller) writeCommand(cmd protocol.Command, payload []byte) error {
	frame, err := protocol.BuildCommand(cmd, payload)
	if err != nil {
		return err
	}
	if err := c.control.Write(frame); err != nil {
		return fmt.Errorf("printer: write %v: %w", cmd, err)
	}
	return nil
}

func (c *Controller) setIntensity(ctx context.Context, value byte) error {
	if err := c.writeCommand(protocol.CmdSetIntensity, []byte{value}); err != nil {
		return err
	}
	return sleepCtx(ctx, SettleDelay)
}

func (c *Controller) requestStatus(ctx context.Context) ([]byte, error) {
	w := c.tracker.Expect(protocol.CmdGetStatus)
	if err := c.writeCommand(protocol.CmdGetStatus, []byte{0x00}); err != nil {
		w.Cancel()
		return nil, err
	}
	return w.Wait(ctx, StatusTimeout)
}

func (c *Controller) printRequest(ctx context.Context, lines int, mode byte) error {
	if lines < 0 || lines > 0xFFFF {
		return fmt.Errorf("printer: line count %d out of range", lines)
	}
	payload := []byte{byte(lines), byte(lines >> 8), printRequestMarker, mode}

	w := c.tracker.Expect(protocol.CmdPrintRequest)
	if err := c.writeCommand(protocol.CmdPrintRequest, payload); err != nil {
		w.Cancel()
		return err
	}
	ack, err := w.Wait(ctx, AckTimeout)
	if err != nil {
		return err
	}
	if len(ack) == 0 {
		return fmt.Errorf("%w: empty acknowledgement", ErrPrintRejected)
	}
	if ack[0] != 0 {
		return fmt.Errorf("%w: status 0x%02X", ErrPrintRejected, ack[0])
	}
	return nil
}

func (c *Controller) flushData(ctx context.Context) error {
	if err := c.writeCommand(protocol.CmdFlushData, []byte{0x00}); err != nil {
		return err
	}
	return sleepCtx(ctx, SettleDelay)
}

func (c *Controller) sendDataChunks(ctx context.Context, buf []byte, chunkSize int) error {
	chunks := protocol.ChunkBytes(buf, chunkSize)
	for i, chunk := range chunks {
		if err := c.data.Write(chunk); err != nil {
			return fmt.Errorf("printer: write chunk %d/%d: %w", i+1, len(chunks), err)
		}
		if i < len(chunks)-1 {
			if err := sleepCtx(ctx, ChunkDelay); err != nil {
				return err
			}
		}
	}
	slog.Debug("[PRINTER] data sent", "bytes", len(buf), "chunks", len(chunks))
	return nil
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
