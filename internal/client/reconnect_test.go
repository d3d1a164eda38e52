package client

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestReconnectBackoff(t *testing.T) {
	delays := []time.Duration{
		1 * time.Second,
		2 * time.Second,
		4 * time.Second,
		8 * time.Second,
		16 * time.Second,
		30 * time.Second, // capped
		30 * time.Second, // still capped
	}

	for i, want := range delays {
		got := backoffDelay(i, time.Second, 30*time.Second)
		if got != want {
			t.Errorf("backoffDelay(%d) = %v, want %v", i, got, want)
		}
	}
	if got := backoffDelay(100, time.Second, 30*time.Second); got != 30*time.Second {
		t.Errorf("backoffDelay(100) = %v, want cap", got)
	}
}

func TestReconnectLastDevice(t *testing.T) {
	r := newRig(t, testOptions())
	r.mustConnect(t)
	if err := r.client.Disconnect(); err != nil {
		t.Fatal(err)
	}

	if !r.client.Reconnect(context.Background(), "") {
		t.Fatal("Reconnect() = false, want true")
	}
	if r.client.Phase() != PhaseConnected {
		t.Errorf("Phase() = %v, want connected", r.client.Phase())
	}
	if got := r.client.State().Device; got != testDevice {
		t.Errorf("reconnected to %v, want %v", got, testDevice)
	}
	if n := len(r.connectedEvents()); n != 2 {
		t.Errorf("connected events = %d, want 2", n)
	}

	// Already connected.
	if !r.client.Reconnect(context.Background(), "") {
		t.Error("Reconnect() while connected = false, want true")
	}
	if n := r.adapter.Connects(); n != 2 {
		t.Errorf("Connects() = %d, want 2", n)
	}
}

func TestReconnectByID(t *testing.T) {
	r := newRig(t, testOptions())
	if !r.client.Reconnect(context.Background(), "12:34:56:78:9A:BC") {
		t.Fatal("Reconnect() = false, want true")
	}
	if got := r.client.State().Device.ID; got != "12:34:56:78:9A:BC" {
		t.Errorf("device id = %q", got)
	}
}

func TestReconnectUnknownDevice(t *testing.T) {
	r := newRig(t, testOptions())
	if r.client.Reconnect(context.Background(), "") {
		t.Error("Reconnect() with no known printer = true, want false")
	}
	if r.adapter.Connects() != 0 {
		t.Error("Reconnect() should not connect without a device id")
	}
}

func TestReconnectGivesUp(t *testing.T) {
	r := newRig(t, testOptions())
	r.mustConnect(t)
	_ = r.client.Disconnect()
	r.adapter.SetConnectErr(errors.New("out of range"))

	if r.client.Reconnect(context.Background(), "") {
		t.Fatal("Reconnect() = true, want false")
	}
	if r.client.Phase() != PhaseDisconnected {
		t.Errorf("Phase() = %v, want disconnected", r.client.Phase())
	}
	if errs := r.errors(); len(errs) != 0 {
		t.Errorf("Reconnect() failures should be swallowed, got %v", errs)
	}
}

func TestReconnectRetriesUntilReachable(t *testing.T) {
	opts := testOptions()
	opts.ReconnectAttempts = 5
	opts.ReconnectBase = 20 * time.Millisecond
	opts.ReconnectMax = 40 * time.Millisecond
	r := newRig(t, opts)
	r.mustConnect(t)
	_ = r.client.Disconnect()

	r.adapter.SetConnectErr(errors.New("out of range"))
	go func() {
		time.Sleep(10 * time.Millisecond)
		r.adapter.SetConnectErr(nil)
	}()

	if !r.client.Reconnect(context.Background(), "") {
		t.Fatal("Reconnect() = false, want true once the printer is reachable")
	}
}

func TestReconnectCancelled(t *testing.T) {
	opts := testOptions()
	opts.ReconnectBase = time.Second
	r := newRig(t, opts)
	r.mustConnect(t)
	_ = r.client.Disconnect()
	r.adapter.SetConnectErr(errors.New("out of range"))

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	start := time.Now()
	if r.client.Reconnect(ctx, "") {
		t.Fatal("Reconnect() = true, want false")
	}
	if time.Since(start) > 500*time.Millisecond {
		t.Error("Reconnect() ignored context cancellation during backoff")
	}
	if r.client.Phase() != PhaseDisconnected {
		t.Errorf("Phase() = %v, want disconnected", r.client.Phase())
	}
}

func TestAutoReconnectAfterDrop(t *testing.T) {
	opts := testOptions()
	opts.AutoReconnect = true
	r := newRig(t, opts)
	r.mustConnect(t)

	r.adapter.LatestConnection().SimulateDisconnect()

	waitFor(t, "reconnect", func() bool {
		return r.adapter.Connects() == 2 && r.client.Phase() == PhaseConnected
	})
	if n := r.disconnectedEvents(); n != 1 {
		t.Errorf("disconnected events = %d, want 1", n)
	}
	if ups := r.connectedEvents(); len(ups) != 2 || ups[1] != testDevice {
		t.Errorf("connected events = %v", ups)
	}
}

func TestExplicitDisconnectDoesNotAutoReconnect(t *testing.T) {
	opts := testOptions()
	opts.AutoReconnect = true
	r := newRig(t, opts)
	r.mustConnect(t)
	conn := r.adapter.LatestConnection()

	_ = r.client.Disconnect()
	// Some stacks report our own disconnect through the same callback.
	conn.SimulateDisconnect()

	time.Sleep(20 * time.Millisecond)
	if r.adapter.Connects() != 1 || r.client.Phase() != PhaseDisconnected {
		t.Errorf("client reconnected after an explicit disconnect")
	}
}

func TestDisconnectStopsAutoReconnect(t *testing.T) {
	opts := testOptions()
	opts.AutoReconnect = true
	opts.ReconnectBase = 50 * time.Millisecond
	opts.ReconnectMax = 50 * time.Millisecond
	r := newRig(t, opts)
	r.mustConnect(t)

	r.adapter.SetConnectErr(errors.New("out of range"))
	r.adapter.LatestConnection().SimulateDisconnect()
	waitFor(t, "background reconnect", func() bool { return r.client.Phase() == PhaseConnecting })

	if err := r.client.Disconnect(); err != nil {
		t.Fatalf("Disconnect() error = %v", err)
	}
	r.adapter.SetConnectErr(nil)

	time.Sleep(150 * time.Millisecond)
	if got := r.client.Phase(); got != PhaseDisconnected {
		t.Errorf("Phase() = %v after an explicit Disconnect, want disconnected", got)
	}
	if n := r.adapter.Connects(); n != 1 {
		t.Errorf("connects = %d, want 1", n)
	}
}

func TestDisconnectAbortsReconnect(t *testing.T) {
	opts := testOptions()
	opts.ReconnectBase = 50 * time.Millisecond
	opts.ReconnectMax = 50 * time.Millisecond
	r := newRig(t, opts)
	r.mustConnect(t)
	_ = r.client.Disconnect()

	r.adapter.SetConnectErr(errors.New("out of range"))
	done := make(chan bool, 1)
	go func() { done <- r.client.Reconnect(context.Background(), "") }()
	waitFor(t, "reconnect", func() bool { return r.client.Phase() == PhaseConnecting })

	_ = r.client.Disconnect()
	r.adapter.SetConnectErr(nil)

	select {
	case ok := <-done:
		if ok {
			t.Error("Reconnect() = true after Disconnect")
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Reconnect() did not return")
	}
	if got := r.client.Phase(); got != PhaseDisconnected {
		t.Errorf("Phase() = %v, want disconnected", got)
	}
	if n := r.adapter.Connects(); n != 1 {
		t.Errorf("connects = %d, want 1", n)
	}
}
