package csvlog

import (
	"bytes"
	"strings"
	"testing"

	"github.com/pmd-tools/pmdlog-go/pmd"
)

func TestWriterHeaderAndRows(t *testing.T) {
	var buf bytes.Buffer
	mask := pmd.ChannelMask(0x03)
	w := New(&buf, mask)
	if err := w.WriteHeader(); err != nil {
		t.Fatalf("WriteHeader() error: %v", err)
	}
	s := pmd.Sample{
		HostTime:   1000.5,
		DeviceTime: 1.0,
		Values: map[pmd.Channel]float64{
			pmd.PCIE1Voltage: 12.125,
			pmd.PCIE1Current: 2.5,
		},
	}
	if err := w.Write(s); err != nil {
		t.Fatalf("Write() error: %v", err)
	}
	if err := w.Flush(); err != nil {
		t.Fatalf("Flush() error: %v", err)
	}

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 2 {
		t.Fatalf("got %d lines, want 2", len(lines))
	}
	if lines[0] != "host_time,device_time,PCIE1_V,PCIE1_I" {
		t.Errorf("header = %q", lines[0])
	}
	fields := strings.Split(lines[1], ",")
	if len(fields) != 4 {
		t.Fatalf("row has %d fields, want 4", len(fields))
	}
	if fields[2] != "12.125000" || fields[3] != "2.500000" {
		t.Errorf("row values = %v", fields[2:])
	}
}

func TestWriterColumnOrderFollowsWireOrder(t *testing.T) {
	var buf bytes.Buffer
	w := New(&buf, pmd.MaskAll)
	if err := w.WriteHeader(); err != nil {
		t.Fatal(err)
	}
	if err := w.Flush(); err != nil {
		t.Fatal(err)
	}
	want := "host_time,device_time,PCIE1_V,PCIE1_I,PCIE2_V,PCIE2_I,EPS1_V,EPS1_I,EPS2_V,EPS2_I"
	if got := strings.TrimSpace(buf.String()); got != want {
		t.Errorf("header = %q, want %q", got, want)
	}
}
