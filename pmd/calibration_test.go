package pmd

import (
	"encoding/binary"
	"errors"
	"testing"
)

// makeConfigRaw builds an on-wire config structure with the given offset and
// gain arrays. The remaining settings get fixed marker values so decode
// tests can verify field positions.
func makeConfigRaw(extended bool, offsets, gains [NumChannels]int8) []byte {
	n := configLenLegacy
	version := byte(4)
	if extended {
		n = configLenV5
		version = 6
	}
	raw := make([]byte, n)
	raw[0] = version
	binary.LittleEndian.PutUint16(raw[2:4], 0xBEEF)
	for i, o := range offsets {
		raw[4+i] = byte(o)
	}
	raw[12] = 1                                  // OledDisable
	binary.LittleEndian.PutUint16(raw[14:16], 7) // TimeoutCount
	raw[22] = 9                                  // Averaging
	if extended {
		for i, g := range gains {
			raw[23+i] = byte(g)
		}
	}
	return raw
}

func TestConfigLayoutByFirmware(t *testing.T) {
	tests := []struct {
		firmware byte
		wantLen  int
		wantErr  bool
	}{
		{0, 26, false},
		{4, 26, false},
		{5, 34, false},
		{6, 34, false},
		{maxKnownFirmware, 34, false},
		{maxKnownFirmware + 1, 0, true},
		{99, 0, true},
	}
	for _, tt := range tests {
		n, err := ConfigLen(DeviceID{Firmware: tt.firmware})
		if tt.wantErr {
			if !errors.Is(err, ErrUnsupportedFirmware) {
				t.Errorf("ConfigLen(firmware=%d) error = %v, want ErrUnsupportedFirmware", tt.firmware, err)
			}
			continue
		}
		if err != nil || n != tt.wantLen {
			t.Errorf("ConfigLen(firmware=%d) = %d, %v; want %d", tt.firmware, n, err, tt.wantLen)
		}
	}
}

func TestLoadCalibration(t *testing.T) {
	offsets := [NumChannels]int8{1, -2, 3, -4, 5, -6, 7, -8}
	var gains [NumChannels]int8

	tests := []struct {
		name     string
		firmware byte
		extended bool
	}{
		{"legacy layout", 4, false},
		{"extended layout", 6, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			raw := makeConfigRaw(tt.extended, offsets, gains)
			cal, err := LoadCalibration(DeviceID{Firmware: tt.firmware}, raw)
			if err != nil {
				t.Fatalf("LoadCalibration() error: %v", err)
			}
			if [NumChannels]int8(cal) != offsets {
				t.Errorf("calibration = %v, want %v", cal, offsets)
			}
			for c := Channel(0); int(c) < NumChannels; c++ {
				if cal.Offset(c) != offsets[c] {
					t.Errorf("Offset(%s) = %d, want %d", c, cal.Offset(c), offsets[c])
				}
			}
		})
	}
}

func TestLoadCalibrationUnsupportedFirmware(t *testing.T) {
	raw := makeConfigRaw(true, [NumChannels]int8{}, [NumChannels]int8{})
	if _, err := LoadCalibration(DeviceID{Firmware: 99}, raw); !errors.Is(err, ErrUnsupportedFirmware) {
		t.Errorf("LoadCalibration(firmware=99) = %v, want ErrUnsupportedFirmware", err)
	}
}

func TestLoadCalibrationWrongLength(t *testing.T) {
	raw := makeConfigRaw(false, [NumChannels]int8{}, [NumChannels]int8{})
	// firmware 6 expects the 34-byte extended layout
	if _, err := LoadCalibration(DeviceID{Firmware: 6}, raw); !errors.Is(err, ErrMalformedResponse) {
		t.Errorf("LoadCalibration(short raw) = %v, want ErrMalformedResponse", err)
	}
}
