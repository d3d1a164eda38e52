package bletest

import (
	"sync"
	"time"

	"github.com/chaz8081/catprint/internal/ble/protocol"
)

// FakePrinter answers command frames written to a Connection's control
// characteristic with notification frames on its notify characteristic.
// Replies are delivered from their own goroutine after ReplyDelay, the
// way a real device answers asynchronously.
type FakePrinter struct {
	mu       sync.Mutex
	conn     *Connection
	received []protocol.Command

	// Status is the GetStatus reply payload.
	Status []byte
	// AckCode is the first byte of the PrintRequest reply.
	AckCode byte
	// ReplyDelay delays every reply.
	ReplyDelay time.Duration
	// CompleteDelay is the time between FlushData and PrintComplete.
	CompleteDelay time.Duration
	// IgnoreStatus suppresses GetStatus replies.
	IgnoreStatus bool
	// IgnorePrintRequest suppresses PrintRequest replies.
	IgnorePrintRequest bool
	// NeverComplete suppresses the PrintComplete notification.
	NeverComplete bool
}

// StatusPayload builds a status reply with the given flag byte, battery
// level and temperature.
func StatusPayload(flags byte, battery, temperature byte) []byte {
	p := make([]byte, 12)
	p[3] = battery
	p[4] = temperature
	p[6] = flags
	return p
}

// NewFakePrinter attaches a healthy printer to conn.
func NewFakePrinter(conn *Connection) *FakePrinter {
	p := &FakePrinter{
		conn:          conn,
		Status:        StatusPayload(0, 80, 30),
		ReplyDelay:    2 * time.Millisecond,
		CompleteDelay: 20 * time.Millisecond,
	}
	conn.Control.OnWrite(p.handle)
	return p
}

// Received returns the command ids written so far, in order.
func (p *FakePrinter) Received() []protocol.Command {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]protocol.Command, len(p.received))
	copy(out, p.received)
	return out
}

// Update changes the printer's behaviour under its lock.
func (p *FakePrinter) Update(fn func(p *FakePrinter)) {
	p.mu.Lock()
	defer p.mu.Unlock()
	fn(p)
}

// Notify sends a notification frame from the printer immediately.
func (p *FakePrinter) Notify(cmd protocol.Command, payload []byte) {
	frame, err := protocol.BuildCommand(cmd, payload)
	if err != nil {
		panic(err)
	}
	p.conn.Notify.SimulateNotification(frame)
}

func (p *FakePrinter) handle(frame []byte) {
	n, ok := protocol.ParseNotification(frame)
	if !ok {
		return
	}

	p.mu.Lock()
	p.received = append(p.received, n.Command)
	status := append([]byte(nil), p.Status...)
	ack := p.AckCode
	delay := p.ReplyDelay
	completeDelay := p.CompleteDelay
	ignoreStatus := p.IgnoreStatus
	ignorePrint := p.IgnorePrintRequest
	neverComplete := p.NeverComplete
	p.mu.Unlock()

	switch n.Command {
	case protocol.CmdGetStatus:
		if !ignoreStatus {
			p.reply(delay, protocol.CmdGetStatus, status)
		}
	case protocol.CmdPrintRequest:
		if !ignorePrint {
			p.reply(delay, protocol.CmdPrintRequest, []byte{ack})
		}
	case protocol.CmdFlushData:
		if !neverComplete {
			p.reply(completeDelay, protocol.CmdPrintComplete, []byte{0x00})
		}
	}
}

func (p *FakePrinter) reply(delay time.Duration, cmd protocol.Command, payload []byte) {
	go func() {
		time.Sleep(delay)
		p.Notify(cmd, payload)
	}()
}
