// Package client is the host-facing driver for an MXW01-class printer. It
// owns the connection lifecycle and turns images into print jobs.
package client

import (
	"fmt"
	"sync"
	"time"

	"github.com/chaz8081/catprint/internal/ble"
	"github.com/chaz8081/catprint/internal/event"
	"github.com/chaz8081/catprint/internal/imaging"
	"github.com/chaz8081/catprint/internal/printer"
)

// Options configures the client behavior.
type Options struct {
	NamePrefix  string         // only printers whose name starts with this are offered
	ScanTimeout time.Duration  // how long Connect scans for printers
	Choose      ble.ChooseFunc // picks among scanned printers; nil selects the strongest signal

	DitherMethod imaging.DitherMethod // used when a print does not name one
	Intensity    byte                 // used when a print does not set one

	ReconnectAttempts int           // tries per Reconnect call
	ReconnectBase     time.Duration // first backoff delay, doubled each retry
	ReconnectMax      time.Duration // backoff cap
	AutoReconnect     bool          // reconnect in the background after an unexpected drop
}

// DefaultOptions returns sensible defaults.
func DefaultOptions() Options {
	return Options{
		NamePrefix:        ble.DefaultNamePrefix,
		ScanTimeout:       10 * time.Second,
		DitherMethod:      imaging.DitherSteinberg,
		Intensity:         printer.DefaultIntensity,
		ReconnectAttempts: 5,
		ReconnectBase:     time.Second,
		ReconnectMax:      30 * time.Second,
	}
}

// Phase is the client's position in the connection lifecycle.
type Phase int

const (
	PhaseDisconnected Phase = iota
	PhaseConnecting
	PhaseConnected
	PhasePrinting
)

func (p Phase) String() string {
	switch p {
	case PhaseDisconnected:
		return "disconnected"
	case PhaseConnecting:
		return "connecting"
	case PhaseConnected:
		return "connected"
	case PhasePrinting:
		return "printing"
	default:
		return fmt.Sprintf("Phase(%d)", int(p))
	}
}

// ClientState is a snapshot of the client.
type ClientState struct {
	Connected bool
	Printing  bool
	Device    ble.Device             // zero when disconnected
	Printer   *printer.PrinterState // last decoded status, nil if none
}

// Client drives one printer. Events are delivered synchronously on the
// goroutine that produced them; handlers must not call back into the
// client's blocking methods.
type Client struct {
	adapter ble.Adapter
	opts    Options

	Connected     event.Emitter[ble.Device]
	Disconnected  event.Emitter[struct{}]
	StateChange   event.Emitter[printer.PrinterState]
	PrintProgress event.Emitter[float64] // reserved; the print sequence does not report progress
	Error         event.Emitter[error]

	mu         sync.Mutex
	phase      Phase
	gen        uint64 // bumped on every reset; an attempt started under an older gen is stale
	device     ble.Device
	lastDevice ble.Device
	link       *ble.Link
	ctrl       *printer.Controller
	tracker    *printer.Tracker
}

// New creates a client that reaches printers through adapter. Zero option
// fields fall back to DefaultOptions.
func New(adapter ble.Adapter, opts Options) *Client {
	def := DefaultOptions()
	if opts.ScanTimeout <= 0 {
		opts.ScanTimeout = def.ScanTimeout
	}
	if opts.DitherMethod == "" {
		opts.DitherMethod = def.DitherMethod
	}
	if opts.Intensity == 0 {
		opts.Intensity = def.Intensity
	}
	if opts.ReconnectAttempts <= 0 {
		opts.ReconnectAttempts = def.ReconnectAttempts
	}
	if opts.ReconnectBase <= 0 {
		opts.ReconnectBase = def.ReconnectBase
	}
	if opts.ReconnectMax <= 0 {
		opts.ReconnectMax = def.ReconnectMax
	}
	return &Client{
		adapter: adapter,
		opts:    opts,
	}
}

// Phase returns the current lifecycle phase.
func (c *Client) Phase() Phase {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.phase
}

// State returns a snapshot of the client state.
func (c *Client) State() ClientState {
	c.mu.Lock()
	defer c.mu.Unlock()
	st := ClientState{
		Connected: c.phase == PhaseConnected || c.phase == PhasePrinting,
		Printing:  c.phase == PhasePrinting,
		Device:    c.device,
	}
	if c.tracker != nil {
		st.Printer = c.tracker.State()
	}
	return st
}

// SetDitherMethod changes the dither method used by prints that do not
// name one.
func (c *Client) SetDitherMethod(m imaging.DitherMethod) error {
	if _, err := imaging.ParseDitherMethod(string(m)); err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.opts.DitherMethod = m
	return nil
}

// SetPrintIntensity changes the print head energy used by prints that do
// not set one. Zero is rejected: a print's zero Intensity means "use the
// client default", so it cannot be a default itself.
func (c *Client) SetPrintIntensity(v byte) error {
	if v == 0 {
		return fmt.Errorf("client: print intensity must be between 1 and 255, got %d", v)
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.opts.Intensity = v
	return nil
}

// fail reports err on the Error event and returns it.
func (c *Client) fail(err error) error {
	c.Error.Emit(err)
	return err
}

// resetLocked returns the client to its initial disconnected state (caller
// must hold mu) and invalidates any connect attempt in flight. lastDevice
// is kept for Reconnect.
func (c *Client) resetLocked() {
	c.gen++
	c.phase = PhaseDisconnected
	c.device = ble.Device{}
	c.link = nil
	c.ctrl = nil
	c.tracker = nil
}

// current reports whether the connect attempt started under gen is still
// the one the client is waiting for.
func (c *Client) current(gen uint64) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.gen == gen && c.phase == PhaseConnecting
}
