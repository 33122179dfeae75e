// Package csvlog persists decoded samples as CSV, one row per sample.
package csvlog

import (
	"encoding/csv"
	"io"
	"strconv"

	"github.com/pmd-tools/pmdlog-go/pmd"
)

// Writer streams samples as CSV rows. The column set is fixed at
// construction from the channel mask so every row lines up with the header.
type Writer struct {
	cw       *csv.Writer
	channels []pmd.Channel
}

// New wraps w for the given channel selection.
func New(w io.Writer, mask pmd.ChannelMask) *Writer {
	return &Writer{
		cw:       csv.NewWriter(w),
		channels: mask.Channels(),
	}
}

// WriteHeader writes the column header: host time, device time, then one
// column per enabled channel in wire order.
func (w *Writer) WriteHeader() error {
	rec := make([]string, 0, 2+len(w.channels))
	rec = append(rec, "host_time", "device_time")
	for _, c := range w.channels {
		rec = append(rec, c.String())
	}
	return w.cw.Write(rec)
}

// Write appends one sample row.
func (w *Writer) Write(s pmd.Sample) error {
	rec := make([]string, 0, 2+len(w.channels))
	rec = append(rec,
		strconv.FormatFloat(s.HostTime, 'f', 9, 64),
		strconv.FormatFloat(s.DeviceTime, 'f', 9, 64),
	)
	for _, c := range w.channels {
		rec = append(rec, strconv.FormatFloat(s.Values[c], 'f', 6, 64))
	}
	return w.cw.Write(rec)
}

// Flush forces buffered rows out and reports any write error.
func (w *Writer) Flush() error {
	w.cw.Flush()
	return w.cw.Error()
}
