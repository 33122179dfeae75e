package pmd

import (
	"fmt"
	"math/bits"
	"strings"
)

// Channel is one measured quantity at a fixed position in transmission
// order. The wire order of transmitted values always follows this index
// order, skipping disabled channels; it is never reordered.
type Channel int

const (
	PCIE1Voltage Channel = iota
	PCIE1Current
	PCIE2Voltage
	PCIE2Current
	EPS1Voltage
	EPS1Current
	EPS2Voltage
	EPS2Current
)

var channelNames = [NumChannels]string{
	"PCIE1_V", "PCIE1_I", "PCIE2_V", "PCIE2_I",
	"EPS1_V", "EPS1_I", "EPS2_V", "EPS2_I",
}

func (c Channel) String() string {
	if c < 0 || int(c) >= NumChannels {
		return fmt.Sprintf("Channel(%d)", int(c))
	}
	return channelNames[c]
}

// Quantity returns the physical kind measured on the channel: even indexes
// carry voltages, odd indexes carry currents.
func (c Channel) Quantity() Quantity {
	if c&1 != 0 {
		return Current
	}
	return Voltage
}

// ChannelByName resolves a channel from its name, case-insensitively.
func ChannelByName(name string) (Channel, bool) {
	for i, n := range channelNames {
		if strings.EqualFold(n, name) {
			return Channel(i), true
		}
	}
	return 0, false
}

// ChannelMask is an 8-bit channel set; bit i enables channel i.
type ChannelMask byte

const (
	MaskNone ChannelMask = 0x00
	MaskAll  ChannelMask = 0xFF
)

// Has reports whether the channel is enabled in the mask.
func (m ChannelMask) Has(c Channel) bool {
	return m&(1<<uint(c)) != 0
}

// Count returns the number of enabled channels.
func (m ChannelMask) Count() int {
	return bits.OnesCount8(uint8(m))
}

// Channels returns the enabled channels in wire order.
func (m ChannelMask) Channels() []Channel {
	out := make([]Channel, 0, m.Count())
	for c := Channel(0); int(c) < NumChannels; c++ {
		if m.Has(c) {
			out = append(out, c)
		}
	}
	return out
}

// TimestampMode selects how many leading bytes of each frame carry the
// device-side clock value.
type TimestampMode int

const (
	TimestampNone  TimestampMode = iota // no timestamp
	TimestampShort                      // 2 bytes
	TimestampFull                       // 4 bytes
)

// Bytes returns the on-wire width of the timestamp field.
func (t TimestampMode) Bytes() int {
	switch t {
	case TimestampShort:
		return 2
	case TimestampFull:
		return 4
	default:
		return 0
	}
}

// Wire returns the byte written to the device for this mode. The device
// encodes the mode as the field width itself.
func (t TimestampMode) Wire() byte {
	return byte(t.Bytes())
}

func (t TimestampMode) String() string {
	switch t {
	case TimestampShort:
		return "short"
	case TimestampFull:
		return "full"
	default:
		return "none"
	}
}

// TimestampModeFromWire maps a device-side mode byte back to a mode. Only
// 0, 2 and 4 are defined; anything else is a protocol mismatch.
func TimestampModeFromWire(b byte) (TimestampMode, error) {
	switch b {
	case 0:
		return TimestampNone, nil
	case 2:
		return TimestampShort, nil
	case 4:
		return TimestampFull, nil
	default:
		return 0, fmt.Errorf("%w: timestamp mode byte 0x%02X", ErrProtocolMismatch, b)
	}
}

// ParseTimestampMode parses a configuration string ("none", "short",
// "full") into a mode.
func ParseTimestampMode(s string) (TimestampMode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "none":
		return TimestampNone, nil
	case "short":
		return TimestampShort, nil
	case "full":
		return TimestampFull, nil
	default:
		return 0, fmt.Errorf("unknown timestamp mode %q", s)
	}
}
