package printer

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrTransportUnavailable means the host has no usable BLE capability.
	ErrTransportUnavailable = errors.New("printer: bluetooth transport unavailable")
	// ErrDeviceRequestFailed means no printer was selected.
	ErrDeviceRequestFailed = errors.New("printer: device request failed")
	// ErrConnectFailed means the link to a selected printer could not be set up.
	ErrConnectFailed = errors.New("printer: connect failed")
	// ErrConnectAborted means Disconnect was called while a connect or
	// reconnect was still in progress.
	ErrConnectAborted = errors.New("printer: connect aborted")
	// ErrNotConnected is returned by operations that need a live link.
	ErrNotConnected = errors.New("printer: not connected")
	// ErrBusy is returned when a print is already in flight.
	ErrBusy = errors.New("printer: busy")
	// ErrCommandTimeout means a command's reply did not arrive in time.
	ErrCommandTimeout = errors.New("printer: command timed out")
	// ErrWaiterReplaced is returned to a waiter displaced by a newer
	// request for the same command id.
	ErrWaiterReplaced = errors.New("printer: waiter replaced by a newer request")
	// ErrPrintRejected means the printer refused the print request.
	ErrPrintRejected = errors.New("printer: print request rejected")
	// ErrDeviceFault means the status flags report a condition that
	// prevents printing.
	ErrDeviceFault = errors.New("printer: device fault")
	// ErrPrintTimeout means the completion notification never arrived.
	ErrPrintTimeout = errors.New("printer: print timed out")
)

// FaultError carries the state that caused a print precheck to fail.
type FaultError struct {
	State PrinterState
}

func (e *FaultError) Error() string {
	return fmt.Sprintf("%v: %s", ErrDeviceFault, strings.Join(e.State.Faults(), ", "))
}

func (e *FaultError) Unwrap() error {
	return ErrDeviceFault
}
