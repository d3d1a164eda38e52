// Package printer drives an MXW01-class printer over the frames defined in
// package protocol: it decodes device status, correlates each command with
// its asynchronous reply and sequences a print job.
package printer

import (
	"fmt"
	"strings"
)

// Status flag bits, found in byte 6 of a GetStatus reply.
const (
	flagPrinting   = 0x01
	flagPaperJam   = 0x02
	flagOutOfPaper = 0x04
	flagCoverOpen  = 0x08
	flagBatteryLow = 0x10
	flagOverheat   = 0x20
)

const (
	statusMinLen         = 7
	statusFlagsOffset    = 6
	statusBatteryOffset  = 3
	statusTemperatureOff = 4
)

// PrinterState is the decoded health of the printer.
type PrinterState struct {
	Printing   bool
	PaperJam   bool
	OutOfPaper bool
	CoverOpen  bool
	BatteryLow bool
	Overheat   bool

	Battery     int // percent, as reported
	Temperature int // degrees Celsius, as reported
}

// DecodeStatus decodes a GetStatus reply payload. It reports false when
// the payload is too short to carry the flag byte.
func DecodeStatus(payload []byte) (PrinterState, bool) {
	if len(payload) < statusMinLen {
		return PrinterState{}, false
	}
	flags := payload[statusFlagsOffset]
	return PrinterState{
		Printing:    flags&flagPrinting != 0,
		PaperJam:    flags&flagPaperJam != 0,
		OutOfPaper:  flags&flagOutOfPaper != 0,
		CoverOpen:   flags&flagCoverOpen != 0,
		BatteryLow:  flags&flagBatteryLow != 0,
		Overheat:    flags&flagOverheat != 0,
		Battery:     int(payload[statusBatteryOffset]),
		Temperature: int(payload[statusTemperatureOff]),
	}, true
}

// Faults lists the active fault conditions by name.
func (s PrinterState) Faults() []string {
	var f []string
	if s.PaperJam {
		f = append(f, "paper jam")
	}
	if s.OutOfPaper {
		f = append(f, "out of paper")
	}
	if s.CoverOpen {
		f = append(f, "cover open")
	}
	if s.BatteryLow {
		f = append(f, "battery low")
	}
	if s.Overheat {
		f = append(f, "overheat")
	}
	return f
}

// HasFault reports whether any condition that blocks printing is set.
func (s PrinterState) HasFault() bool {
	return len(s.Faults()) > 0
}

func (s PrinterState) String() string {
	var b strings.Builder
	switch {
	case s.HasFault():
		b.WriteString(strings.Join(s.Faults(), ", "))
	case s.Printing:
		b.WriteString("printing")
	default:
		b.WriteString("ready")
	}
	fmt.Fprintf(&b, " (battery %d%%, %d°C)", s.Battery, s.Temperature)
	return b.String()
}
