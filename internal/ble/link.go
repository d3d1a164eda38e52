package ble

import "fmt"

// Link holds the three printer characteristics of one connection.
type Link struct {
	Conn    Connection
	Control Characteristic
	Data    Characteristic
	Notify  Characteristic
}

// OpenLink discovers the control, data and notify characteristics on conn.
// The connection is left open on error; the caller owns it.
func OpenLink(conn Connection) (*Link, error) {
	control, err := conn.DiscoverCharacteristic(ServiceUUID, ControlCharUUID)
	if err != nil {
		return nil, fmt.Errorf("ble: discover control characteristic: %w", err)
	}
	data, err := conn.DiscoverCharacteristic(ServiceUUID, DataCharUUID)
	if err != nil {
		return nil, fmt.Errorf("ble: discover data characteristic: %w", err)
	}
	notify, err := conn.DiscoverCharacteristic(ServiceUUID, NotifyCharUUID)
	if err != nil {
		return nil, fmt.Errorf("ble: discover notify characteristic: %w", err)
	}
	return &Link{
		Conn:    conn,
		Control: control,
		Data:    data,
		Notify:  notify,
	}, nil
}

// Close unsubscribes from notifications and disconnects. Both steps are
// attempted; the first error is returned.
func (l *Link) Close() error {
	uerr := l.Notify.Unsubscribe()
	derr := l.Conn.Disconnect()
	if uerr != nil {
		return fmt.Errorf("ble: unsubscribe: %w", uerr)
	}
	if derr != nil {
		return fmt.Errorf("ble: disconnect: %w", derr)
	}
	return nil
}
