package pmd

import (
	"math"
	"testing"
)

func TestSignExtend12(t *testing.T) {
	tests := []struct {
		code uint16
		want int
	}{
		{0x000, 0},
		{0x001, 1},
		{0x7FF, 2047},
		{0x800, -2048},
		{0xFFF, -1},
		{0x801, -2047},
	}
	for _, tt := range tests {
		if got := SignExtend12(tt.code); got != tt.want {
			t.Errorf("SignExtend12(0x%03X) = %d, want %d", tt.code, got, tt.want)
		}
	}
}

func TestConvertScales(t *testing.T) {
	// code 100 sits in the upper 12 bits of the raw word
	raw := uint16(100 << 4)
	if got := Convert(raw, 0, Voltage); math.Abs(got-100*VoltsPerLSB) > 1e-9 {
		t.Errorf("Convert(%#04x, 0, Voltage) = %v, want %v", raw, got, 100*VoltsPerLSB)
	}
	if got := Convert(raw, 0, Current); math.Abs(got-100*AmpsPerLSB) > 1e-9 {
		t.Errorf("Convert(%#04x, 0, Current) = %v, want %v", raw, got, 100*AmpsPerLSB)
	}
}

// Convert must be linear in the sign-extended code plus offset, for the full
// offset range.
func TestConvertLinearity(t *testing.T) {
	words := []uint16{0x0000, 0x0010, 0x7FF0, 0x8000, 0xFFF0, 0x1234, 0xABCD}
	offsets := []int8{-128, -1, 0, 1, 127}
	for _, w := range words {
		for _, o := range offsets {
			want := float64(SignExtend12(w>>4)+int(o)) * VoltsPerLSB
			if got := Convert(w, o, Voltage); math.Abs(got-want) > 1e-9 {
				t.Errorf("Convert(%#04x, %d, Voltage) = %v, want %v", w, o, got, want)
			}
		}
	}
}

func TestConvertDeterministic(t *testing.T) {
	for w := 0; w <= 0xFFFF; w += 0x101 {
		a := Convert(uint16(w), -37, Current)
		b := Convert(uint16(w), -37, Current)
		if a != b {
			t.Fatalf("Convert not deterministic at %#04x: %v vs %v", w, a, b)
		}
	}
}

func TestQuantityByChannelParity(t *testing.T) {
	for c := Channel(0); int(c) < NumChannels; c++ {
		want := Voltage
		if c%2 == 1 {
			want = Current
		}
		if got := c.Quantity(); got != want {
			t.Errorf("%s.Quantity() = %v, want %v", c, got, want)
		}
	}
}
