// Package bletest provides a simulated BLE transport for tests: an
// in-memory adapter, connection and characteristics, plus FakePrinter,
// which answers command frames the way an MXW01 does.
package bletest

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/chaz8081/catprint/internal/ble"
)

// Write is one recorded characteristic write.
type Write struct {
	Data []byte
	At   time.Time
}

// Characteristic records writes and allows subscribing.
type Characteristic struct {
	mu       sync.Mutex
	writes   []Write
	callback func([]byte)
	onWrite  func([]byte)

	WriteErr       error
	UnsubscribeErr error
}

func (c *Characteristic) Write(data []byte) error {
	c.mu.Lock()
	if c.WriteErr != nil {
		err := c.WriteErr
		c.mu.Unlock()
		return err
	}
	cp := make([]byte, len(data))
	copy(cp, data)
	c.writes = append(c.writes, Write{Data: cp, At: time.Now()})
	hook := c.onWrite
	c.mu.Unlock()
	if hook != nil {
		hook(cp)
	}
	return nil
}

func (c *Characteristic) Subscribe(cb func([]byte)) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.callback = cb
	return nil
}

func (c *Characteristic) Unsubscribe() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.callback = nil
	return c.UnsubscribeErr
}

// OnWrite installs a hook called after every successful write.
func (c *Characteristic) OnWrite(hook func([]byte)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onWrite = hook
}

// Subscribed reports whether a notification callback is registered.
func (c *Characteristic) Subscribed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.callback != nil
}

// Writes returns a copy of the recorded writes.
func (c *Characteristic) Writes() []Write {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]Write, len(c.writes))
	copy(out, c.writes)
	return out
}

// SimulateNotification sends a notification to the subscriber.
func (c *Characteristic) SimulateNotification(data []byte) {
	c.mu.Lock()
	cb := c.callback
	c.mu.Unlock()
	if cb != nil {
		cb(data)
	}
}

// Connection simulates a BLE connection with the three printer characteristics.
type Connection struct {
	mu           sync.Mutex
	Control      *Characteristic
	Data         *Characteristic
	Notify       *Characteristic
	disconnectCb func()
	disconnected bool

	DisconnectErr error
}

// NewConnection returns a connection with fresh characteristics.
func NewConnection() *Connection {
	return &Connection{
		Control: &Characteristic{},
		Data:    &Characteristic{},
		Notify:  &Characteristic{},
	}
}

func (c *Connection) DiscoverCharacteristic(serviceUUID, charUUID string) (ble.Characteristic, error) {
	if serviceUUID != ble.ServiceUUID {
		return nil, fmt.Errorf("mock: unknown service UUID %q", serviceUUID)
	}
	switch charUUID {
	case ble.ControlCharUUID:
		return c.Control, nil
	case ble.DataCharUUID:
		return c.Data, nil
	case ble.NotifyCharUUID:
		return c.Notify, nil
	default:
		return nil, fmt.Errorf("mock: unknown characteristic UUID %q", charUUID)
	}
}

func (c *Connection) Disconnect() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.disconnected = true
	return c.DisconnectErr
}

// Disconnected reports whether Disconnect was called.
func (c *Connection) Disconnected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.disconnected
}

func (c *Connection) OnDisconnect(cb func()) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.disconnectCb = cb
}

// SimulateDisconnect triggers the disconnect callback.
func (c *Connection) SimulateDisconnect() {
	c.mu.Lock()
	cb := c.disconnectCb
	c.disconnected = true
	c.mu.Unlock()
	if cb != nil {
		cb()
	}
}

// ErrUnavailable is returned by Enable when the adapter is marked unavailable.
var ErrUnavailable = errors.New("mock: bluetooth unavailable")

// Adapter simulates the BLE adapter.
type Adapter struct {
	mu         sync.Mutex
	devices    []Device
	connection *Connection // most recent connection for test assertions
	connects   int

	// Unavailable makes Enable fail.
	Unavailable bool
	// ConnectErr makes Connect fail.
	ConnectErr error
	// OnConnect, if set, is called with every new connection before it is returned.
	OnConnect func(*Connection)
}

// Device is an alias kept so tests can build device lists without importing ble.
type Device = ble.Device

// NewAdapter creates an adapter that reports devices when scanned.
func NewAdapter(devices []Device) *Adapter {
	return &Adapter{devices: devices}
}

func (a *Adapter) Enable() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.Unavailable {
		return ErrUnavailable
	}
	return nil
}

func (a *Adapter) Scan(_ context.Context, _ string) ([]Device, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.devices, nil
}

func (a *Adapter) Connect(_ context.Context, id string) (ble.Connection, error) {
	a.mu.Lock()
	if a.ConnectErr != nil {
		err := a.ConnectErr
		a.mu.Unlock()
		return nil, fmt.Errorf("mock: connect to %s: %w", id, err)
	}
	conn := NewConnection()
	a.connection = conn
	a.connects++
	hook := a.OnConnect
	a.mu.Unlock()
	if hook != nil {
		hook(conn)
	}
	return conn, nil
}

// SetConnectErr changes the Connect failure under the adapter lock.
func (a *Adapter) SetConnectErr(err error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.ConnectErr = err
}

// LatestConnection returns the most recently created connection (thread-safe).
func (a *Adapter) LatestConnection() *Connection {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.connection
}

// Connects returns how many connections were established.
func (a *Adapter) Connects() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.connects
}

var (
	_ ble.Adapter        = (*Adapter)(nil)
	_ ble.Connection     = (*Connection)(nil)
	_ ble.Characteristic = (*Characteristic)(nil)
)
