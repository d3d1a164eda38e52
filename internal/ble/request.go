package ble

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
)

// ErrNoDevice is returned by RequestDevice when no matching printer answered the scan.
var ErrNoDevice = errors.New("ble: no matching device found")

// ChooseFunc picks one device from a scan result. It stands in for a
// user-facing chooser and may return an error to abort the request.
type ChooseFunc func(devices []Device) (Device, error)

// RequestOptions configures RequestDevice.
type RequestOptions struct {
	NamePrefix string        // only devices whose name starts with this are offered
	Timeout    time.Duration // scan duration
	Choose     ChooseFunc    // nil selects the strongest signal
}

// DefaultRequestOptions returns sensible defaults for production use.
func DefaultRequestOptions() RequestOptions {
	return RequestOptions{
		NamePrefix: DefaultNamePrefix,
		Timeout:    10 * time.Second,
	}
}

// ScanForDevices scans for devices advertising the printer service.
func ScanForDevices(ctx context.Context, adapter Adapter, timeout time.Duration) ([]Device, error) {
	if err := adapter.Enable(); err != nil {
		return nil, fmt.Errorf("ble: enable adapter: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	devices, err := adapter.Scan(ctx, ServiceUUID)
	if err != nil {
		return nil, fmt.Errorf("ble: scan: %w", err)
	}
	return devices, nil
}

// RequestDevice scans for printers and returns the one picked by
// opts.Choose. Devices not matching opts.NamePrefix are filtered out
// before the chooser sees them.
func RequestDevice(ctx context.Context, adapter Adapter, opts RequestOptions) (Device, error) {
	if opts.Timeout <= 0 {
		opts.Timeout = 10 * time.Second
	}

	devices, err := ScanForDevices(ctx, adapter, opts.Timeout)
	if err != nil {
		return Device{}, err
	}

	var candidates []Device
	for _, d := range devices {
		if opts.NamePrefix == "" || strings.HasPrefix(d.Name, opts.NamePrefix) {
			candidates = append(candidates, d)
		}
	}
	if len(candidates) == 0 {
		return Device{}, ErrNoDevice
	}

	choose := opts.Choose
	if choose == nil {
		choose = Strongest
	}
	return choose(candidates)
}

// Strongest returns the device with the highest RSSI.
func Strongest(devices []Device) (Device, error) {
	if len(devices) == 0 {
		return Device{}, ErrNoDevice
	}
	best := devices[0]
	for _, d := range devices[1:] {
		if d.RSSI > best.RSSI {
			best = d
		}
	}
	return best, nil
}
