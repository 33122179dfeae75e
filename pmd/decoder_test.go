package pmd

import (
	"encoding/binary"
	"math"
	"testing"
)

// encodeFrame builds one synthetic wire frame that decodes to the given
// calibrated codes: the raw word is chosen so that after sign extension and
// offset addition the decoder recovers codes[c] exactly.
func encodeFrame(mode TimestampMode, ticks uint32, mask ChannelMask, codes [NumChannels]int, cal CalibrationData) []byte {
	frame := make([]byte, 0, mode.Bytes()+2*mask.Count())
	switch mode {
	case TimestampShort:
		frame = binary.LittleEndian.AppendUint16(frame, uint16(ticks))
	case TimestampFull:
		frame = binary.LittleEndian.AppendUint32(frame, ticks)
	}
	for c := Channel(0); int(c) < NumChannels; c++ {
		if !mask.Has(c) {
			continue
		}
		code := codes[c] - int(cal.Offset(c))
		raw := uint16(code&0x0FFF) << 4
		frame = binary.LittleEndian.AppendUint16(frame, raw)
	}
	return frame
}

func TestFrameLen(t *testing.T) {
	tests := []struct {
		mask ChannelMask
		mode TimestampMode
		want int
	}{
		{0x03, TimestampShort, 6},
		{MaskAll, TimestampFull, 20},
		{MaskAll, TimestampNone, 16},
		{0x01, TimestampNone, 2},
		{0x55, TimestampFull, 12},
	}
	for _, tt := range tests {
		d := NewDecoder(tt.mask, tt.mode, CalibrationData{})
		if got := d.FrameLen(); got != tt.want {
			t.Errorf("FrameLen(mask=%#02x, mode=%v) = %d, want %d", tt.mask, tt.mode, got, tt.want)
		}
	}
}

func TestIngestDecodesFrame(t *testing.T) {
	cal := CalibrationData{3, -5, 0, 1, -1, 2, -2, 4}
	codes := [NumChannels]int{100, -50, 2047, -2048, 0, 1, -1, 500}
	frame := encodeFrame(TimestampFull, 3_000_000, MaskAll, codes, cal)

	d := NewDecoder(MaskAll, TimestampFull, cal)
	samples := d.Ingest(frame)
	if len(samples) != 1 {
		t.Fatalf("got %d samples, want 1", len(samples))
	}
	s := samples[0]
	if math.Abs(s.DeviceTime-1.0) > 1e-12 {
		t.Errorf("DeviceTime = %v, want 1.0", s.DeviceTime)
	}
	if s.HostTime <= 0 {
		t.Errorf("HostTime = %v, want > 0", s.HostTime)
	}
	for c := Channel(0); int(c) < NumChannels; c++ {
		scale := VoltsPerLSB
		if c.Quantity() == Current {
			scale = AmpsPerLSB
		}
		want := float64(codes[c]) * scale
		if got := s.Values[c]; math.Abs(got-want) > 1e-6 {
			t.Errorf("%s = %v, want %v", c, got, want)
		}
	}
}

// The decoded sample sequence must not depend on how the byte stream is
// split across Ingest calls.
func TestIngestChunkBoundaryIndependence(t *testing.T) {
	cal := CalibrationData{1, 2, 3, 4, 5, 6, 7, 8}
	var stream []byte
	const n = 5
	for i := 0; i < n; i++ {
		codes := [NumChannels]int{i, -i, 10 * i, -10 * i, i + 1, i - 1, 2 * i, -2 * i}
		stream = append(stream, encodeFrame(TimestampShort, uint32(1000*i), 0x0F, codes, cal)...)
	}

	whole := NewDecoder(0x0F, TimestampShort, cal)
	all := whole.Ingest(stream)

	bytewise := NewDecoder(0x0F, TimestampShort, cal)
	var split []Sample
	for _, b := range stream {
		split = append(split, bytewise.Ingest([]byte{b})...)
	}

	if len(all) != n || len(split) != n {
		t.Fatalf("got %d and %d samples, want %d", len(all), len(split), n)
	}
	for i := range all {
		if all[i].DeviceTime != split[i].DeviceTime {
			t.Errorf("sample %d: DeviceTime %v vs %v", i, all[i].DeviceTime, split[i].DeviceTime)
		}
		for c, v := range all[i].Values {
			if split[i].Values[c] != v {
				t.Errorf("sample %d %s: %v vs %v", i, c, split[i].Values[c], v)
			}
		}
	}
}

// A partial frame followed by the remaining bytes yields exactly one
// sample, never zero or two.
func TestIngestPartialFrame(t *testing.T) {
	cal := CalibrationData{}
	codes := [NumChannels]int{7, 8, 9, 10, 0, 0, 0, 0}
	frame := encodeFrame(TimestampShort, 42, 0x0F, codes, cal)

	d := NewDecoder(0x0F, TimestampShort, cal)
	if got := d.Ingest(frame[:3]); len(got) != 0 {
		t.Fatalf("partial ingest produced %d samples, want 0", len(got))
	}
	if d.Buffered() != 3 {
		t.Errorf("Buffered() = %d, want 3", d.Buffered())
	}
	got := d.Ingest(frame[3:])
	if len(got) != 1 {
		t.Fatalf("completing ingest produced %d samples, want 1", len(got))
	}
	if d.Buffered() != 0 {
		t.Errorf("Buffered() = %d, want 0", d.Buffered())
	}
}

func TestIngestEmptyIsNoop(t *testing.T) {
	d := NewDecoder(MaskAll, TimestampFull, CalibrationData{})
	if got := d.Ingest(nil); got != nil {
		t.Errorf("Ingest(nil) = %v, want nil", got)
	}
	if got := d.Ingest([]byte{}); got != nil {
		t.Errorf("Ingest(empty) = %v, want nil", got)
	}
}

func TestIngestSkipsDisabledChannels(t *testing.T) {
	cal := CalibrationData{}
	// only PCIE1_V, PCIE2_I, EPS2_V enabled
	mask := ChannelMask(1<<uint(PCIE1Voltage) | 1<<uint(PCIE2Current) | 1<<uint(EPS2Voltage))
	codes := [NumChannels]int{11, 0, 0, 22, 0, 0, 33, 0}
	frame := encodeFrame(TimestampNone, 0, mask, codes, cal)
	if len(frame) != 6 {
		t.Fatalf("frame length = %d, want 6", len(frame))
	}

	d := NewDecoder(mask, TimestampNone, cal)
	samples := d.Ingest(frame)
	if len(samples) != 1 {
		t.Fatalf("got %d samples, want 1", len(samples))
	}
	s := samples[0]
	if len(s.Values) != 3 {
		t.Errorf("got %d values, want 3", len(s.Values))
	}
	if math.Abs(s.Values[PCIE1Voltage]-11*VoltsPerLSB) > 1e-9 {
		t.Errorf("PCIE1_V = %v", s.Values[PCIE1Voltage])
	}
	if math.Abs(s.Values[PCIE2Current]-22*AmpsPerLSB) > 1e-9 {
		t.Errorf("PCIE2_I = %v", s.Values[PCIE2Current])
	}
	if math.Abs(s.Values[EPS2Voltage]-33*VoltsPerLSB) > 1e-9 {
		t.Errorf("EPS2_V = %v", s.Values[EPS2Voltage])
	}
	if _, ok := s.Values[EPS1Current]; ok {
		t.Error("disabled channel present in sample")
	}
	if s.DeviceTime != 0 {
		t.Errorf("DeviceTime = %v, want 0 with timestamps disabled", s.DeviceTime)
	}
}

func TestDecoderReset(t *testing.T) {
	d := NewDecoder(MaskAll, TimestampFull, CalibrationData{})
	d.Ingest(make([]byte, 7))
	if d.Buffered() != 7 {
		t.Fatalf("Buffered() = %d, want 7", d.Buffered())
	}
	d.Reset()
	if d.Buffered() != 0 {
		t.Errorf("Buffered() after Reset = %d, want 0", d.Buffered())
	}
}

func TestRailPower(t *testing.T) {
	s := Sample{Values: map[Channel]float64{
		PCIE1Voltage: 12.0, PCIE1Current: 2.0,
		PCIE2Voltage: 12.0, PCIE2Current: 0.5,
		EPS1Voltage: 8.0, EPS1Current: 1.0,
		EPS2Voltage: 8.0, EPS2Current: 0.25,
	}}
	if got := Rails[0].Power(s); math.Abs(got-24.0) > 1e-9 {
		t.Errorf("PCIE1 power = %v, want 24", got)
	}
	want := 24.0 + 6.0 + 8.0 + 2.0
	if got := TotalPower(s); math.Abs(got-want) > 1e-9 {
		t.Errorf("TotalPower = %v, want %v", got, want)
	}
}
