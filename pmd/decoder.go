package pmd

import (
	"encoding/binary"
	"time"
)

// DeviceClockHz is the device-side timestamp reference: a 3 MHz counter.
const DeviceClockHz = 3_000_000

// Sample is one decoded telemetry frame. DeviceTime is the device counter
// converted to seconds (0 when timestamps are disabled); HostTime is the
// host clock at decode time, i.e. the observation instant, not a wire
// field. Values maps each enabled channel to its physical reading.
type Sample struct {
	DeviceTime float64
	HostTime   float64
	Values     map[Channel]float64
}

// Decoder extracts complete frames from an unbounded byte stream and emits
// decoded samples. The channel mask and timestamp mode are fixed for the
// decoder's lifetime and must match what was written to the device; a
// mismatch is undetectable here and simply produces garbage values.
//
// The stream has no delimiters and no checksums, so the decoder never
// resynchronizes: a lost or duplicated byte misaligns every subsequent
// frame until the stream is restarted.
type Decoder struct {
	mask ChannelMask
	mode TimestampMode
	cal  CalibrationData
	buf  []byte
}

// NewDecoder returns a decoder for the given stream configuration.
func NewDecoder(mask ChannelMask, mode TimestampMode, cal CalibrationData) *Decoder {
	return &Decoder{mask: mask, mode: mode, cal: cal}
}

// FrameLen returns the fixed frame length for the decoder's configuration:
// the timestamp width plus two bytes per enabled channel.
func (d *Decoder) FrameLen() int {
	return d.mode.Bytes() + 2*d.mask.Count()
}

// Buffered returns the number of bytes of the next, still incomplete frame
// currently held back.
func (d *Decoder) Buffered() int {
	return len(d.buf)
}

// Reset discards any partially accumulated frame data.
func (d *Decoder) Reset() {
	d.buf = d.buf[:0]
}

// Ingest appends p to the accumulation buffer and decodes every complete
// frame, oldest first. Leftover bytes smaller than one frame are carried to
// the next call; no byte is dropped or consumed twice. A zero-length p is a
// no-op. The result is independent of how the stream is split into calls.
func (d *Decoder) Ingest(p []byte) []Sample {
	d.buf = append(d.buf, p...)
	frameLen := d.FrameLen()
	if frameLen == 0 {
		d.buf = d.buf[:0]
		return nil
	}
	var samples []Sample
	for len(d.buf) >= frameLen {
		samples = append(samples, d.decodeFrame(d.buf[:frameLen]))
		d.buf = d.buf[frameLen:]
	}
	// Re-home the leftover so the backing array does not grow without bound.
	if len(samples) > 0 {
		d.buf = append([]byte(nil), d.buf...)
	}
	return samples
}

func (d *Decoder) decodeFrame(frame []byte) Sample {
	s := Sample{
		HostTime: float64(time.Now().UnixNano()) / 1e9,
		Values:   make(map[Channel]float64, d.mask.Count()),
	}

	tsBytes := d.mode.Bytes()
	var ticks uint32
	switch d.mode {
	case TimestampShort:
		ticks = uint32(binary.LittleEndian.Uint16(frame[:2]))
	case TimestampFull:
		ticks = binary.LittleEndian.Uint32(frame[:4])
	}
	s.DeviceTime = float64(ticks) / DeviceClockHz

	pos := tsBytes
	for c := Channel(0); int(c) < NumChannels; c++ {
		if !d.mask.Has(c) {
			continue
		}
		raw := binary.LittleEndian.Uint16(frame[pos : pos+2])
		s.Values[c] = Convert(raw, d.cal.Offset(c), c.Quantity())
		pos += 2
	}
	return s
}
