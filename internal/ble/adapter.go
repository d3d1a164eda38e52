// Package ble provides the Bluetooth Low Energy transport used to reach
// MXW01-class thermal printers. The printer driver only ever talks to the
// interfaces in this file, so the platform stack can be swapped for a
// simulated one in tests.
package ble

import "context"

// MXW01 GATT UUIDs
const (
	ServiceUUID     = "0000ae30-0000-1000-8000-00805f9b34fb"
	ControlCharUUID = "0000ae01-0000-1000-8000-00805f9b34fb"
	NotifyCharUUID  = "0000ae02-0000-1000-8000-00805f9b34fb"
	DataCharUUID    = "0000ae03-0000-1000-8000-00805f9b34fb"
)

// DefaultNamePrefix is the advertised local name of the printers this
// driver targets.
const DefaultNamePrefix = "MXW01"

// Characteristic represents a BLE GATT characteristic.
type Characteristic interface {
	// Write sends data to the characteristic without waiting for a response.
	Write(data []byte) error
	// Subscribe registers a callback for notifications on this characteristic.
	Subscribe(callback func(data []byte)) error
	// Unsubscribe stops notification delivery.
	Unsubscribe() error
}

// Device represents a discovered BLE peripheral. ID is the platform
// address: a MAC on Linux and Windows, a CoreBluetooth UUID on macOS.
type Device struct {
	ID   string
	Name string
	RSSI int
}

// Connection represents an active BLE connection to a peripheral.
type Connection interface {
	// DiscoverCharacteristic finds a characteristic by UUID within a service.
	DiscoverCharacteristic(serviceUUID, charUUID string) (Characteristic, error)
	// Disconnect terminates the connection.
	Disconnect() error
	// OnDisconnect registers a callback invoked when the connection drops.
	OnDisconnect(callback func())
}

// Adapter abstracts the BLE hardware adapter for testing.
type Adapter interface {
	// Enable powers on the BLE adapter. An error means no usable BLE
	// capability is present.
	Enable() error
	// Scan discovers BLE peripherals advertising the given service UUID.
	// Returns discovered devices until ctx is cancelled or timeout.
	Scan(ctx context.Context, serviceUUID string) ([]Device, error)
	// Connect establishes a connection to the device with the given id.
	Connect(ctx context.Context, id string) (Connection, error)
}
