// Package report renders detected signals as the fixed-width karr.txt table.
package report

import (
	"bytes"
	"fmt"
	"io"

	"github.com/banshee-data/mstid/internal/music"
)

const (
	headerFormat = "%-5s%10s%10s%10s%10s%10s%10s%10s%10s%10s%10s\n"
	rowFormat    = "%-5d%10.3f%10.3f%10.3f%10.0f%10.0f%10.3f%10.0f%10.0f%10.3f%10.0f\n"
)

var (
	columnNames = []any{"Number", "Kx", "Ky", "|K|", "lambda", "Azm", "f", "T", "v", "Value", "Area"}
	columnUnits = []any{"", "[1/km]", "[1/km]", "[1/km]", "[km]", "[deg]", "[mHz]", "[min]", "[m/s]", "", "[px]"}
)

// WriteSignals writes the table for sigs to w. Rows follow the signals'
// Order field and are numbered from zero in output order. sigs is not
// modified.
func WriteSignals(w io.Writer, sigs []music.SignalDescriptor) error {
	ordered := append([]music.SignalDescriptor(nil), sigs...)
	music.SortByOrder(ordered)

	if _, err := fmt.Fprintf(w, headerFormat, columnNames...); err != nil {
		return err
	}
	if _, err := fmt.Fprintf(w, headerFormat, columnUnits...); err != nil {
		return err
	}
	for serialNr, s := range ordered {
		_, err := fmt.Fprintf(w, rowFormat,
			serialNr,
			s.Kx, s.Ky, s.K,
			s.Lambda, s.Azm,
			s.Freq*1000, // mHz
			s.Period/60, // min
			s.Vel, s.Max, s.Area,
		)
		if err != nil {
			return err
		}
	}
	return nil
}

// FormatSignals returns the table as bytes.
func FormatSignals(sigs []music.SignalDescriptor) []byte {
	var buf bytes.Buffer
	_ = WriteSignals(&buf, sigs)
	return buf.Bytes()
}
