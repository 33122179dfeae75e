// Package pmd implements the ElmorLabs PMD-USB serial protocol: the
// command/response catalog and its fixed binary structures, the
// handshake/calibration state machine, and the streaming decoder that turns
// the continuous telemetry byte stream into calibrated samples.
//
// The wire format has no delimiters and no checksums. Every exchange is a
// single-byte opcode followed by a response of known length, and the
// continuous stream is a sequence of fixed-length frames whose size is
// determined by the channel mask and timestamp mode written to the device.
package pmd

import (
	"bytes"
	"encoding/binary"
	"fmt"
)

// Command is a single-byte request opcode.
type Command byte

const (
	CmdWelcome       Command = 0x00
	CmdReadID        Command = 0x01
	CmdReadSensors   Command = 0x02
	CmdReadValues    Command = 0x03
	CmdReadConfig    Command = 0x04
	CmdReadADCBuffer Command = 0x06
	CmdWriteContTx   Command = 0x07
	CmdWriteUART     Command = 0x08

	// Maintenance opcodes. Present on the device but not used by the
	// session flow.
	CmdResetDevice     Command = 0xF0
	CmdEnterBootloader Command = 0xF1
	CmdNop             Command = 0xFF
)

// greetingText is the identity string the device answers to CmdWelcome.
const greetingText = "ElmorLabs PMD-USB"

// WelcomeLen is the on-wire greeting length: 17 characters plus a NUL.
const WelcomeLen = len(greetingText) + 1

// Fixed structure sizes on the wire.
const (
	DeviceIDLen    = 3
	SensorBlockLen = SensorCount * sensorReadingLen
	ValuesLen      = 2 * NumChannels

	configLenLegacy = 26
	configLenV5     = 34

	SensorCount      = 4
	SensorNameLen    = 6
	sensorReadingLen = SensorNameLen + 6

	// NumChannels is the number of ADC channels (4 rails x voltage+current).
	NumChannels = 8
)

// Greeting returns the expected welcome response.
func Greeting() []byte {
	g := make([]byte, WelcomeLen)
	copy(g, greetingText)
	return g
}

// CheckGreeting verifies a welcome response against the fixed greeting.
func CheckGreeting(buf []byte) error {
	if len(buf) != WelcomeLen {
		return fmt.Errorf("%w: welcome response %d bytes, want %d", ErrMalformedResponse, len(buf), WelcomeLen)
	}
	if !bytes.Equal(buf, Greeting()) {
		return fmt.Errorf("%w: greeting %q", ErrProtocolMismatch, buf)
	}
	return nil
}

// ResponseLen reports the fixed response length for c. It returns -1 for
// commands whose response length depends on session state (CmdReadConfig
// varies by firmware, CmdReadADCBuffer is device-defined) and for write
// commands, which have no response.
func (c Command) ResponseLen() int {
	switch c {
	case CmdWelcome:
		return WelcomeLen
	case CmdReadID:
		return DeviceIDLen
	case CmdReadSensors:
		return SensorBlockLen
	case CmdReadValues:
		return ValuesLen
	default:
		return -1
	}
}

// DeviceID identifies the device, read once per session via CmdReadID. The
// firmware version selects which config structure layout the device speaks.
type DeviceID struct {
	Vendor   byte
	Product  byte
	Firmware byte
}

func (id DeviceID) String() string {
	return fmt.Sprintf("vendor=%d product=%d firmware=%d", id.Vendor, id.Product, id.Firmware)
}

// DecodeDeviceID decodes a CmdReadID response of exactly DeviceIDLen bytes.
func DecodeDeviceID(buf []byte) (DeviceID, error) {
	if len(buf) != DeviceIDLen {
		return DeviceID{}, fmt.Errorf("%w: device id %d bytes, want %d", ErrMalformedResponse, len(buf), DeviceIDLen)
	}
	return DeviceID{Vendor: buf[0], Product: buf[1], Firmware: buf[2]}, nil
}

// Config is the device configuration structure. Firmware < 5 transmits the
// legacy 26-byte layout; firmware >= 5 transmits the extended 34-byte layout
// that adds AdcGainOffset. Only AdcOffset is consumed by the decoder; the
// remaining fields are device settings carried for completeness.
//
// Field offsets follow the device's 2-byte-packed layout: Version at 0, CRC
// at 2, AdcOffset at 4, then the OLED/timeout settings, with AdcGainOffset
// inserted before the reserved tail in the extended layout.
type Config struct {
	Version          byte
	CRC              uint16
	AdcOffset        [NumChannels]int8
	OledDisable      byte
	TimeoutCount     uint16
	TimeoutAction    byte
	OledSpeed        byte
	RestartAdcFlag   byte
	CalFlag          byte
	UpdateConfigFlag byte
	OledRotation     byte
	Averaging        byte

	// AdcGainOffset is only present in the extended layout.
	AdcGainOffset [NumChannels]int8
	Extended      bool
}

// DecodeConfig decodes a CmdReadConfig response. The extended flag selects
// the layout and therefore the exact length the buffer must have.
func DecodeConfig(buf []byte, extended bool) (Config, error) {
	want := configLenLegacy
	if extended {
		want = configLenV5
	}
	if len(buf) != want {
		return Config{}, fmt.Errorf("%w: config %d bytes, want %d", ErrMalformedResponse, len(buf), want)
	}
	c := Config{
		Version:          buf[0],
		CRC:              binary.LittleEndian.Uint16(buf[2:4]),
		OledDisable:      buf[12],
		TimeoutCount:     binary.LittleEndian.Uint16(buf[14:16]),
		TimeoutAction:    buf[16],
		OledSpeed:        buf[17],
		RestartAdcFlag:   buf[18],
		CalFlag:          buf[19],
		UpdateConfigFlag: buf[20],
		OledRotation:     buf[21],
		Averaging:        buf[22],
		Extended:         extended,
	}
	for i := 0; i < NumChannels; i++ {
		c.AdcOffset[i] = int8(buf[4+i])
	}
	if extended {
		for i := 0; i < NumChannels; i++ {
			c.AdcGainOffset[i] = int8(buf[23+i])
		}
	}
	return c, nil
}

// SensorReading is one entry of the sensor-name block: a short ASCII name
// and the device's own averaged voltage/current/power words.
type SensorReading struct {
	Name    string
	Voltage uint16
	Current uint16
	Power   uint16
}

// SensorBlock is the CmdReadSensors response: one reading per rail.
type SensorBlock [SensorCount]SensorReading

// DecodeSensorBlock decodes a CmdReadSensors response of exactly
// SensorBlockLen bytes.
func DecodeSensorBlock(buf []byte) (SensorBlock, error) {
	var blk SensorBlock
	if len(buf) != SensorBlockLen {
		return blk, fmt.Errorf("%w: sensor block %d bytes, want %d", ErrMalformedResponse, len(buf), SensorBlockLen)
	}
	for i := 0; i < SensorCount; i++ {
		rec := buf[i*sensorReadingLen : (i+1)*sensorReadingLen]
		name := rec[:SensorNameLen]
		if j := bytes.IndexByte(name, 0); j >= 0 {
			name = name[:j]
		}
		blk[i] = SensorReading{
			Name:    string(name),
			Voltage: binary.LittleEndian.Uint16(rec[6:8]),
			Current: binary.LittleEndian.Uint16(rec[8:10]),
			Power:   binary.LittleEndian.Uint16(rec[10:12]),
		}
	}
	return blk, nil
}

// EncodeContTx builds the complete continuous-TX config request: the opcode
// followed by {enable, timestamp mode, channel mask}.
func EncodeContTx(enable bool, mode TimestampMode, mask ChannelMask) []byte {
	en := byte(0)
	if enable {
		en = 1
	}
	return []byte{byte(CmdWriteContTx), en, mode.Wire(), byte(mask)}
}

// UART config field values fixed by the protocol: no parity, 8 data bits,
// 1 stop bit.
const (
	uartParityNone = 2
	uartDataWidth8 = 0
	uartStopBits1  = 0
)

// EncodeUARTConfig builds the complete UART config request: the opcode
// followed by four little-endian 32-bit fields {baud, parity, data width,
// stop bits}.
func EncodeUARTConfig(baud int) []byte {
	req := make([]byte, 1, 17)
	req[0] = byte(CmdWriteUART)
	for _, v := range [4]uint32{uint32(baud), uartParityNone, uartDataWidth8, uartStopBits1} {
		req = binary.LittleEndian.AppendUint32(req, v)
	}
	return req
}
