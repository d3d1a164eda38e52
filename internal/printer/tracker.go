package printer

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/chaz8081/catprint/internal/ble/protocol"
)

// Tracker decodes inbound notifications and hands each reply to the
// caller waiting for it.
//
// Replies carry no request nonce, so waiters are keyed by command id alone
// and at most one waiter per id may be outstanding. Registering a second
// waiter for an id replaces the first, which then fails with
// ErrWaiterReplaced. Callers must therefore serialize request/response
// pairs per command id; Controller does this for its own primitives.
type Tracker struct {
	mu       sync.Mutex
	waiters  map[protocol.Command]*Waiter
	state    *PrinterState
	complete bool
	doneCh   chan struct{} // closed when complete becomes true
	closed   chan struct{} // closed by Close
	onState  func(PrinterState)
}

// NewTracker creates an empty tracker.
func NewTracker() *Tracker {
	return &Tracker{
		waiters: make(map[protocol.Command]*Waiter),
		doneCh:  make(chan struct{}),
		closed:  make(chan struct{}),
	}
}

type reply struct {
	payload []byte
	err     error
}

// Waiter is a single-use handle for one expected reply.
type Waiter struct {
	t   *Tracker
	cmd protocol.Command
	ch  chan reply // buffered, receives exactly one value
}

// OnStateChange registers fn to be called whenever a status reply is
// decoded. fn runs on the notification goroutine after any waiter for the
// reply has been released, so it must not block for long.
func (t *Tracker) OnStateChange(fn func(PrinterState)) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.onState = fn
}

// State returns the last decoded printer state, or nil if none has arrived.
func (t *Tracker) State() *PrinterState {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.state == nil {
		return nil
	}
	st := *t.state
	return &st
}

// Pending reports whether a waiter is registered for cmd.
func (t *Tracker) Pending(cmd protocol.Command) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	_, ok := t.waiters[cmd]
	return ok
}

// HandleFrame parses a raw notify-characteristic value and processes it.
// Frames without the protocol header are logged and dropped.
func (t *Tracker) HandleFrame(data []byte) {
	n, ok := protocol.ParseNotification(data)
	if !ok {
		slog.Debug("[PRINTER] dropping malformed notification", "data", fmt.Sprintf("% x", data))
		return
	}
	t.ProcessNotification(n.Command, n.Payload)
}

// ProcessNotification applies one decoded notification. It never blocks.
func (t *Tracker) ProcessNotification(cmd protocol.Command, payload []byte) {
	var (
		changed *PrinterState
		notify  func(PrinterState)
	)

	t.mu.Lock()
	switch cmd {
	case protocol.CmdPrintComplete:
		if !t.complete {
			t.complete = true
			close(t.doneCh)
		}
	case protocol.CmdGetStatus:
		if st, ok := DecodeStatus(payload); ok {
			t.state = &st
			changed = &st
			notify = t.onState
		} else {
			slog.Debug("[PRINTER] ignoring short status payload", "len", len(payload))
		}
	}
	w := t.waiters[cmd]
	delete(t.waiters, cmd)
	t.mu.Unlock()

	if w != nil {
		w.resolve(reply{payload: payload})
	}
	if changed != nil && notify != nil {
		notify(*changed)
	}
}

// Expect registers a waiter for the next cmd notification. Register before
// writing the command so a fast reply cannot be missed.
func (t *Tracker) Expect(cmd protocol.Command) *Waiter {
	w := &Waiter{t: t, cmd: cmd, ch: make(chan reply, 1)}

	t.mu.Lock()
	select {
	case <-t.closed:
		t.mu.Unlock()
		w.resolve(reply{err: ErrNotConnected})
		return w
	default:
	}
	prev := t.waiters[cmd]
	t.waiters[cmd] = w
	t.mu.Unlock()

	if prev != nil {
		slog.Warn("[PRINTER] replacing outstanding waiter", "command", cmd)
		prev.resolve(reply{err: ErrWaiterReplaced})
	}
	return w
}

// WaitForNotification registers a waiter for cmd and blocks until the
// reply arrives or timeout elapses.
func (t *Tracker) WaitForNotification(ctx context.Context, cmd protocol.Command, timeout time.Duration) ([]byte, error) {
	return t.Expect(cmd).Wait(ctx, timeout)
}

func (w *Waiter) resolve(r reply) {
	select {
	case w.ch <- r:
	default:
	}
}

// Wait blocks until the reply arrives, timeout elapses or ctx is done. The
// waiter is deregistered on every path.
func (w *Waiter) Wait(ctx context.Context, timeout time.Duration) ([]byte, error) {
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case r := <-w.ch:
		return r.payload, r.err
	case <-timer.C:
		w.Cancel()
		return nil, fmt.Errorf("%w: %v after %v", ErrCommandTimeout, w.cmd, timeout)
	case <-ctx.Done():
		w.Cancel()
		return nil, fmt.Errorf("printer: waiting for %v: %w", w.cmd, ctx.Err())
	}
}

// Cancel deregisters the waiter if it is still the current one for its id.
func (w *Waiter) Cancel() {
	w.t.mu.Lock()
	defer w.t.mu.Unlock()
	if w.t.waiters[w.cmd] == w {
		delete(w.t.waiters, w.cmd)
	}
}

// ClearComplete resets the print-complete flag.
func (t *Tracker) ClearComplete() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.complete {
		t.complete = false
		t.doneCh = make(chan struct{})
	}
}

// Complete reports whether the print-complete flag is set.
func (t *Tracker) Complete() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.complete
}

// awaitComplete waits for the completion flag without clearing it first.
func (t *Tracker) awaitComplete(ctx context.Context, timeout time.Duration) error {
	t.mu.Lock()
	if t.complete {
		t.mu.Unlock()
		return nil
	}
	done := t.doneCh
	t.mu.Unlock()

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case <-done:
		return nil
	case <-t.closed:
		return fmt.Errorf("printer: waiting for completion: %w", ErrNotConnected)
	case <-timer.C:
		return fmt.Errorf("%w: no completion after %v", ErrPrintTimeout, timeout)
	case <-ctx.Done():
		return fmt.Errorf("printer: waiting for completion: %w", ctx.Err())
	}
}

// Close detaches the tracker from its link: outstanding and future waits,
// including completion waits, fail with ErrNotConnected and the stored
// state is forgotten. Calling Close more than once is harmless.
func (t *Tracker) Close() {
	t.mu.Lock()
	waiters := t.waiters
	t.waiters = make(map[protocol.Command]*Waiter)
	t.state = nil
	select {
	case <-t.closed:
	default:
		close(t.closed)
	}
	t.mu.Unlock()

	for _, w := range waiters {
		w.resolve(reply{err: ErrNotConnected})
	}
}
