package client

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/chaz8081/catprint/internal/ble"
	"github.com/chaz8081/catprint/internal/printer"
)

// Connect scans for a printer, connects to it and fetches its status once.
// A failed status fetch is reported on the Error event but leaves the
// client connected.
func (c *Client) Connect(ctx context.Context) error {
	c.mu.Lock()
	switch c.phase {
	case PhaseConnected, PhasePrinting:
		c.mu.Unlock()
		return nil
	case PhaseConnecting:
		c.mu.Unlock()
		return fmt.Errorf("%w: connect already in progress", printer.ErrBusy)
	}
	c.phase = PhaseConnecting
	gen := c.gen
	req := ble.RequestOptions{
		NamePrefix: c.opts.NamePrefix,
		Timeout:    c.opts.ScanTimeout,
		Choose:     c.opts.Choose,
	}
	c.mu.Unlock()

	if err := c.adapter.Enable(); err != nil {
		return c.connectFailed(gen, fmt.Errorf("%w: %w", printer.ErrTransportUnavailable, err))
	}

	dev, err := ble.RequestDevice(ctx, c.adapter, req)
	if err != nil {
		return c.connectFailed(gen, fmt.Errorf("%w: %w", printer.ErrDeviceRequestFailed, err))
	}

	if err := c.attach(ctx, dev, gen); err != nil {
		return c.connectFailed(gen, err)
	}
	return nil
}

// connectFailed resets the client unless the attempt was already
// superseded by Disconnect or a newer attempt.
func (c *Client) connectFailed(gen uint64, err error) error {
	c.mu.Lock()
	if c.gen == gen {
		c.resetLocked()
	}
	c.mu.Unlock()
	slog.Warn("[CLIENT] connect failed", "error", err)
	return c.fail(err)
}

// attach connects to dev and brings the client to PhaseConnected. It fails
// with ErrConnectAborted, releasing the new link, when the attempt started
// under gen has been superseded. The caller resets the phase on other errors.
func (c *Client) attach(ctx context.Context, dev ble.Device, gen uint64) error {
	if !c.current(gen) {
		return printer.ErrConnectAborted
	}
	conn, err := c.adapter.Connect(ctx, dev.ID)
	if err != nil {
		return fmt.Errorf("%w: %w", printer.ErrConnectFailed, err)
	}

	link, err := ble.OpenLink(conn)
	if err != nil {
		_ = conn.Disconnect()
		return fmt.Errorf("%w: %w", printer.ErrConnectFailed, err)
	}

	tracker := printer.NewTracker()
	tracker.OnStateChange(c.StateChange.Emit)
	if err := link.Notify.Subscribe(tracker.HandleFrame); err != nil {
		_ = conn.Disconnect()
		return fmt.Errorf("%w: subscribe notifications: %w", printer.ErrConnectFailed, err)
	}
	ctrl := printer.NewController(link.Control, link.Data, tracker)

	c.mu.Lock()
	if c.gen != gen || c.phase != PhaseConnecting {
		c.mu.Unlock()
		_ = link.Close()
		tracker.Close()
		slog.Info("[CLIENT] connect aborted", "id", dev.ID)
		return printer.ErrConnectAborted
	}
	c.phase = PhaseConnected
	c.device = dev
	c.lastDevice = dev
	c.link = link
	c.ctrl = ctrl
	c.tracker = tracker
	c.mu.Unlock()
	conn.OnDisconnect(func() { c.handleDrop(link) })

	slog.Info("[CLIENT] connected", "name", dev.Name, "id", dev.ID)
	c.Connected.Emit(dev)

	if _, err := ctrl.RequestStatus(ctx); err != nil {
		slog.Warn("[CLIENT] initial status fetch failed", "error", err)
		c.Error.Emit(err)
	}
	return nil
}

// handleDrop runs when the link goes away without Disconnect being called.
func (c *Client) handleDrop(link *ble.Link) {
	c.mu.Lock()
	if c.link != link {
		c.mu.Unlock()
		return
	}
	tracker := c.tracker
	dev := c.device
	c.resetLocked()
	c.mu.Unlock()

	tracker.Close()
	slog.Warn("[CLIENT] printer disconnected", "id", dev.ID)
	c.Disconnected.Emit(struct{}{})

	if c.opts.AutoReconnect {
		go c.Reconnect(context.Background(), dev.ID)
	}
}

// Disconnect unsubscribes, releases the connection and resets the client.
// A connect or reconnect still in progress is aborted. Cleanup is best
// effort: the client ends up disconnected even when a step fails, and the
// first failure is returned.
func (c *Client) Disconnect() error {
	c.mu.Lock()
	link := c.link
	tracker := c.tracker
	c.resetLocked()
	c.mu.Unlock()

	if link == nil {
		return nil
	}

	err := link.Close()
	if err != nil {
		slog.Warn("[CLIENT] disconnect cleanup failed", "error", err)
	}
	tracker.Close()

	slog.Info("[CLIENT] disconnected")
	c.Disconnected.Emit(struct{}{})
	return err
}

// Reconnect connects to a known printer without scanning. An empty id
// selects the last connected printer. Attempts are retried with
// exponential backoff; failures are logged and reported as false.
func (c *Client) Reconnect(ctx context.Context, id string) bool {
	c.mu.Lock()
	switch c.phase {
	case PhaseConnected, PhasePrinting:
		c.mu.Unlock()
		return true
	case PhaseConnecting:
		c.mu.Unlock()
		return false
	}
	dev := c.lastDevice
	if id != "" && id != dev.ID {
		dev = ble.Device{ID: id}
	}
	if dev.ID == "" {
		c.mu.Unlock()
		slog.Warn("[CLIENT] reconnect: no known printer")
		return false
	}
	c.phase = PhaseConnecting
	gen := c.gen
	attempts := c.opts.ReconnectAttempts
	base, maxDelay := c.opts.ReconnectBase, c.opts.ReconnectMax
	c.mu.Unlock()

	if err := c.adapter.Enable(); err != nil {
		slog.Warn("[CLIENT] reconnect: adapter unavailable", "error", err)
		c.abortReconnect(gen)
		return false
	}

	for attempt := 0; attempt < attempts; attempt++ {
		// On the first attempt, try immediately; subsequent attempts use backoff.
		if attempt > 0 {
			delay := backoffDelay(attempt-1, base, maxDelay)
			slog.Info("[CLIENT] reconnect backoff", "attempt", attempt+1, "delay", delay)
			if err := sleepCtx(ctx, delay); err != nil {
				break
			}
		}

		if err := c.attach(ctx, dev, gen); err != nil {
			if errors.Is(err, printer.ErrConnectAborted) {
				slog.Info("[CLIENT] reconnect aborted", "id", dev.ID)
				return false
			}
			slog.Warn("[CLIENT] reconnect failed", "error", err, "attempt", attempt+1)
			continue
		}
		slog.Info("[CLIENT] reconnected", "id", dev.ID)
		return true
	}

	c.abortReconnect(gen)
	return false
}

func (c *Client) abortReconnect(gen uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.gen == gen && c.phase == PhaseConnecting {
		c.resetLocked()
	}
}

// backoffDelay returns the reconnection delay for attempt n: base doubled
// n times, capped at max.
func backoffDelay(attempt int, base, max time.Duration) time.Duration {
	if attempt >= 30 {
		return max
	}
	delay := base << uint(attempt)
	if delay > max || delay <= 0 {
		return max
	}
	return delay
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
