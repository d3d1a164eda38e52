package client

import (
	"context"
	"errors"
	"image"
	"image/color"
	"testing"
	"time"

	"github.com/chaz8081/catprint/internal/ble/bletest"
	"github.com/chaz8081/catprint/internal/ble/protocol"
	"github.com/chaz8081/catprint/internal/imaging"
	"github.com/chaz8081/catprint/internal/job"
	"github.com/chaz8081/catprint/internal/printer"
)

func blackRGBA(w, h int) []byte {
	pix := make([]byte, w*h*4)
	for i := 3; i < len(pix); i += 4 {
		pix[i] = 255
	}
	return pix
}

func dataBytes(conn *bletest.Connection) int {
	n := 0
	for _, w := range conn.Data.Writes() {
		n += len(w.Data)
	}
	return n
}

func controlFrames(t *testing.T, conn *bletest.Connection) []protocol.Notification {
	t.Helper()
	var out []protocol.Notification
	for _, w := range conn.Control.Writes() {
		n, ok := protocol.ParseNotification(w.Data)
		if !ok {
			t.Fatalf("control write % x is not a frame", w.Data)
		}
		out = append(out, n)
	}
	return out
}

func TestPrintTwiceLeavesNoWaiters(t *testing.T) {
	r := newRig(t, testOptions())
	r.mustConnect(t)
	ctx := context.Background()

	for i := range 2 {
		c := r.client
		c.mu.Lock()
		tracker := c.tracker
		c.mu.Unlock()
		for _, cmd := range []protocol.Command{protocol.CmdGetStatus, protocol.CmdPrintRequest} {
			if tracker.Pending(cmd) {
				t.Fatalf("print %d: waiter for %v still registered", i+1, cmd)
			}
		}

		if err := c.Print(ctx, blackRGBA(imaging.PrintWidth, 10), imaging.PrintWidth, 10, job.DefaultOptions()); err != nil {
			t.Fatalf("print %d: Print() error = %v", i+1, err)
		}
		if c.Phase() != PhaseConnected {
			t.Fatalf("print %d: Phase() = %v, want connected", i+1, c.Phase())
		}
	}

	conn := r.adapter.LatestConnection()
	if got := dataBytes(conn); got != 2*imaging.MinBufferSize {
		t.Errorf("data bytes = %d, want %d", got, 2*imaging.MinBufferSize)
	}
	if errs := r.errors(); len(errs) != 0 {
		t.Errorf("unexpected error events: %v", errs)
	}

	// connect status, then per print: intensity, status, request, flush, status.
	want := []protocol.Command{
		protocol.CmdGetStatus,
		protocol.CmdSetIntensity, protocol.CmdGetStatus, protocol.CmdPrintRequest, protocol.CmdFlushData, protocol.CmdGetStatus,
		protocol.CmdSetIntensity, protocol.CmdGetStatus, protocol.CmdPrintRequest, protocol.CmdFlushData, protocol.CmdGetStatus,
	}
	got := r.printer().Received()
	if len(got) != len(want) {
		t.Fatalf("commands = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("commands = %v, want %v", got, want)
		}
	}
}

func TestPrintRequestCarriesLineCount(t *testing.T) {
	r := newRig(t, testOptions())
	r.mustConnect(t)

	if err := r.client.Print(context.Background(), blackRGBA(100, 7), 100, 7, job.DefaultOptions()); err != nil {
		t.Fatalf("Print() error = %v", err)
	}
	for _, f := range controlFrames(t, r.adapter.LatestConnection()) {
		if f.Command != protocol.CmdPrintRequest {
			continue
		}
		want := []byte{7, 0, 0x30, printer.ModeMonochrome}
		if string(f.Payload) != string(want) {
			t.Errorf("print request payload = % x, want % x", f.Payload, want)
		}
		return
	}
	t.Error("no print request was sent")
}

func TestPrintUsesClientDefaults(t *testing.T) {
	r := newRig(t, testOptions())
	r.mustConnect(t)
	if err := r.client.SetPrintIntensity(0x30); err != nil {
		t.Fatalf("SetPrintIntensity() error = %v", err)
	}

	if err := r.client.Print(context.Background(), blackRGBA(8, 8), 8, 8, job.DefaultOptions()); err != nil {
		t.Fatalf("Print() error = %v", err)
	}
	opts := job.DefaultOptions()
	opts.Intensity = 0x70
	if err := r.client.Print(context.Background(), blackRGBA(8, 8), 8, 8, opts); err != nil {
		t.Fatalf("Print() error = %v", err)
	}

	var intensities []byte
	for _, f := range controlFrames(t, r.adapter.LatestConnection()) {
		if f.Command == protocol.CmdSetIntensity {
			intensities = append(intensities, f.Payload[0])
		}
	}
	if len(intensities) != 2 || intensities[0] != 0x30 || intensities[1] != 0x70 {
		t.Errorf("intensities = % x, want 30 70", intensities)
	}
}

func TestPrintNotConnected(t *testing.T) {
	r := newRig(t, testOptions())
	err := r.client.Print(context.Background(), blackRGBA(8, 8), 8, 8, job.DefaultOptions())
	if !errors.Is(err, printer.ErrNotConnected) {
		t.Fatalf("Print() error = %v, want ErrNotConnected", err)
	}
	if errs := r.errors(); len(errs) != 1 {
		t.Errorf("error events = %v, want one", errs)
	}
}

func TestPrintBusy(t *testing.T) {
	r := newRig(t, testOptions())
	r.mustConnect(t)
	r.printer().Update(func(p *bletest.FakePrinter) { p.CompleteDelay = 200 * time.Millisecond })

	done := make(chan error, 1)
	go func() {
		done <- r.client.Print(context.Background(), blackRGBA(8, 8), 8, 8, job.DefaultOptions())
	}()
	waitFor(t, "printing phase", func() bool { return r.client.Phase() == PhasePrinting })

	err := r.client.Print(context.Background(), blackRGBA(8, 8), 8, 8, job.DefaultOptions())
	if !errors.Is(err, printer.ErrBusy) {
		t.Errorf("second Print() error = %v, want ErrBusy", err)
	}

	// While printing, GetStatus answers from the last known state without
	// touching the control channel.
	before := len(r.printer().Received())
	st, err := r.client.GetStatus(context.Background())
	if err != nil || st == nil {
		t.Errorf("GetStatus() while printing = %v, %v", st, err)
	}
	if after := len(r.printer().Received()); after != before {
		t.Errorf("GetStatus() while printing sent %d commands", after-before)
	}
	if !r.client.State().Printing {
		t.Error("State().Printing should be true during a print")
	}

	if err := <-done; err != nil {
		t.Fatalf("first Print() error = %v", err)
	}
	if r.client.State().Printing {
		t.Error("State().Printing should be cleared after the print")
	}
}

func TestPrintFaultFailsFast(t *testing.T) {
	r := newRig(t, testOptions())
	r.mustConnect(t)
	r.printer().Update(func(p *bletest.FakePrinter) {
		p.Status = bletest.StatusPayload(0x04, 60, 25)
	})

	err := r.client.Print(context.Background(), blackRGBA(8, 8), 8, 8, job.DefaultOptions())
	var fe *printer.FaultError
	if !errors.As(err, &fe) || !fe.State.OutOfPaper {
		t.Fatalf("Print() error = %v, want out-of-paper FaultError", err)
	}
	if r.client.Phase() != PhaseConnected {
		t.Errorf("Phase() = %v, want connected", r.client.Phase())
	}
	if n := len(r.adapter.LatestConnection().Data.Writes()); n != 0 {
		t.Errorf("%d data chunks sent to a faulted printer", n)
	}
	waitFor(t, "fault state event", func() bool {
		states := r.stateEvents()
		return len(states) > 0 && states[len(states)-1].OutOfPaper
	})
	if errs := r.errors(); len(errs) != 1 || errs[0] != err {
		t.Errorf("error events = %v, want [%v]", errs, err)
	}
}

func TestPrintRejected(t *testing.T) {
	r := newRig(t, testOptions())
	r.mustConnect(t)
	r.printer().Update(func(p *bletest.FakePrinter) { p.AckCode = 0x01 })

	err := r.client.Print(context.Background(), blackRGBA(8, 8), 8, 8, job.DefaultOptions())
	if !errors.Is(err, printer.ErrPrintRejected) {
		t.Fatalf("Print() error = %v, want ErrPrintRejected", err)
	}
	if r.client.Phase() != PhaseConnected {
		t.Errorf("Phase() = %v, want connected", r.client.Phase())
	}
	got := r.printer().Received()
	if n := len(got); n < 2 || got[n-1] != protocol.CmdGetStatus || got[n-2] != protocol.CmdPrintRequest {
		t.Errorf("commands = %v, want a status refresh after the rejected request", got)
	}
}

func TestPrintTimeoutRefreshesStatus(t *testing.T) {
	if testing.Short() {
		t.Skip("waits for the completion timeout")
	}
	r := newRig(t, testOptions())
	r.mustConnect(t)
	r.printer().Update(func(p *bletest.FakePrinter) { p.NeverComplete = true })
	states := len(r.stateEvents())

	err := r.client.Print(context.Background(), blackRGBA(8, 8), 8, 8, job.DefaultOptions())
	if !errors.Is(err, printer.ErrPrintTimeout) {
		t.Fatalf("Print() error = %v, want ErrPrintTimeout", err)
	}
	if r.client.State().Printing {
		t.Error("State().Printing should be cleared after a timeout")
	}
	got := r.printer().Received()
	if got[len(got)-1] != protocol.CmdGetStatus {
		t.Errorf("last command = %v, want a status refresh", got[len(got)-1])
	}
	// precheck and refresh each decode a status
	waitFor(t, "refreshed state event", func() bool { return len(r.stateEvents()) >= states+2 })
}

func TestPrintBadImage(t *testing.T) {
	r := newRig(t, testOptions())
	r.mustConnect(t)

	if err := r.client.Print(context.Background(), make([]byte, 3), 8, 8, job.DefaultOptions()); err == nil {
		t.Fatal("Print() should reject a short pixel buffer")
	}
	if r.client.Phase() != PhaseConnected {
		t.Errorf("Phase() = %v, want connected", r.client.Phase())
	}
}

func TestDropDuringPrint(t *testing.T) {
	r := newRig(t, testOptions())
	r.mustConnect(t)
	r.printer().Update(func(p *bletest.FakePrinter) { p.NeverComplete = true })

	done := make(chan error, 1)
	go func() {
		done <- r.client.Print(context.Background(), blackRGBA(8, 8), 8, 8, job.DefaultOptions())
	}()
	waitFor(t, "flush", func() bool {
		for _, cmd := range r.printer().Received() {
			if cmd == protocol.CmdFlushData {
				return true
			}
		}
		return false
	})

	r.adapter.LatestConnection().SimulateDisconnect()

	select {
	case err := <-done:
		if !errors.Is(err, printer.ErrNotConnected) {
			t.Errorf("Print() error = %v, want ErrNotConnected", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Print() did not return after the link dropped")
	}
	if r.client.Phase() != PhaseDisconnected {
		t.Errorf("Phase() = %v, want disconnected", r.client.Phase())
	}
}

func TestPrintImage(t *testing.T) {
	r := newRig(t, testOptions())
	r.mustConnect(t)

	img := image.NewNRGBA(image.Rect(0, 0, imaging.PrintWidth, 10))
	for y := range 10 {
		for x := range imaging.PrintWidth {
			img.SetNRGBA(x, y, color.NRGBA{A: 255})
		}
	}
	if err := r.client.PrintImage(context.Background(), img, job.DefaultOptions()); err != nil {
		t.Fatalf("PrintImage() error = %v", err)
	}

	var sent []byte
	for _, w := range r.adapter.LatestConnection().Data.Writes() {
		sent = append(sent, w.Data...)
	}
	if len(sent) != imaging.MinBufferSize {
		t.Fatalf("sent %d bytes, want %d", len(sent), imaging.MinBufferSize)
	}
	for i, b := range sent[:480] {
		if b != 0xFF {
			t.Fatalf("byte %d = %#x, want 0xff", i, b)
		}
	}
}
