package pmd

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/op/go-logging"
)

var log = logging.MustGetLogger("pmd")

// Transport is the byte-oriented serial link the session drives. It is
// owned by the caller; the session never closes it.
type Transport interface {
	Write(p []byte) (int, error)

	// Read blocks up to the transport's per-call timeout and may return
	// (0, nil) when no data arrived. Repeated empty reads are not an
	// error, only an absence of new data.
	Read(p []byte) (int, error)

	// Drain discards any buffered input bytes.
	Drain() error

	// SetBaud reconfigures the host side of the link speed.
	SetBaud(baud int) error
}

// SupportedBauds lists the link speeds the device firmware accepts, highest
// first: a higher speed reduces the fixed per-chunk latency and is always
// preferable when reliable, so probing starts at the top.
var SupportedBauds = []int{2000000, 1500000, 921600, 460800, 230400, 115200}

// DefaultBaud is the device's power-on link speed.
const DefaultBaud = 115200

// State is the session controller's handshake state.
type State int

const (
	StateInit State = iota
	StatePrimed
	StateIdentified
	StateBaudSelected
	StateCalibrated
	StateStreaming
	StateFailed
)

var stateNames = [...]string{
	"init", "primed", "identified", "baud-selected",
	"calibrated", "streaming", "failed",
}

func (s State) String() string {
	if s < 0 || int(s) >= len(stateNames) {
		return fmt.Sprintf("State(%d)", int(s))
	}
	return stateNames[s]
}

// Options tunes the handshake. Zero values select the defaults.
type Options struct {
	// Bauds are the candidate link speeds to probe. Defaults to
	// SupportedBauds.
	Bauds []int

	// SettleDelay is how long the device is given to act on a written
	// config before the input buffer is drained. Defaults to 300ms.
	SettleDelay time.Duration

	// ReadBudget bounds how long one fixed-size exchange may wait for its
	// full response. Defaults to 1s.
	ReadBudget time.Duration
}

// Session drives one device over one transport: it brings the link to a
// known speed, verifies the device identity, loads calibration, and runs
// the continuous stream. Operations are driven by one goroutine at a time,
// but State and Baud may be read concurrently, e.g. by a status endpoint
// polling while the ingest loop runs. Identity and Calibration are written
// only during the handshake and are read-only afterwards.
type Session struct {
	tr  Transport
	opt Options

	mu    sync.Mutex
	state State
	baud  int

	id  DeviceID
	cal CalibrationData
}

// NewSession wraps a transport. The session starts in StateInit; call
// Handshake before Stream.
func NewSession(tr Transport, opt Options) *Session {
	if len(opt.Bauds) == 0 {
		opt.Bauds = SupportedBauds
	}
	// Probe order is always highest to lowest, whatever order the caller
	// listed the candidates in.
	bauds := append([]int(nil), opt.Bauds...)
	sort.Sort(sort.Reverse(sort.IntSlice(bauds)))
	opt.Bauds = bauds
	if opt.SettleDelay == 0 {
		opt.SettleDelay = 300 * time.Millisecond
	}
	if opt.ReadBudget == 0 {
		opt.ReadBudget = time.Second
	}
	return &Session{tr: tr, opt: opt, state: StateInit}
}

func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

func (s *Session) Identity() DeviceID           { return s.id }
func (s *Session) Calibration() CalibrationData { return s.cal }

// Baud returns the session's fixed operating speed, 0 before the handshake
// selected one.
func (s *Session) Baud() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.baud
}

func (s *Session) setState(st State) {
	s.mu.Lock()
	s.state = st
	s.mu.Unlock()
}

func (s *Session) setBaud(baud int) {
	s.mu.Lock()
	s.baud = baud
	s.mu.Unlock()
}

// Handshake brings the session from StateInit to StateCalibrated: stop any
// running stream, find a link speed the device answers at, read identity
// and calibration. On error the session is terminally failed; it never
// streams with unknown calibration.
func (s *Session) Handshake() error {
	if err := s.identify(); err != nil {
		s.setState(StateFailed)
		return err
	}
	if err := s.calibrate(); err != nil {
		s.setState(StateFailed)
		return err
	}
	return nil
}

// prime stops a possibly running continuous stream, waits for the device to
// settle and discards whatever it was still sending.
func (s *Session) prime() error {
	if _, err := s.tr.Write(EncodeContTx(false, TimestampNone, MaskNone)); err != nil {
		return fmt.Errorf("stop stream: %w", err)
	}
	time.Sleep(s.opt.SettleDelay)
	if err := s.tr.Drain(); err != nil {
		return fmt.Errorf("drain: %w", err)
	}
	s.setState(StatePrimed)
	return nil
}

// identify probes the candidate speeds until the device answers the welcome
// query with the exact greeting. The speed that succeeds becomes the
// session's operating speed; there is no renegotiation afterwards.
func (s *Session) identify() error {
	for _, baud := range s.opt.Bauds {
		if err := s.tr.SetBaud(baud); err != nil {
			return fmt.Errorf("set baud %d: %w", baud, err)
		}
		if err := s.prime(); err != nil {
			return err
		}
		resp, err := s.exchange(CmdWelcome, WelcomeLen)
		if err == nil {
			err = CheckGreeting(resp)
		}
		if err != nil {
			log.Infof("no device response at %d baud: %v", baud, err)
			continue
		}
		s.setState(StateIdentified)
		s.setBaud(baud)
		s.setState(StateBaudSelected)
		log.Noticef("device identified at %d baud", baud)
		return nil
	}
	return fmt.Errorf("%w: no candidate baud rate yielded a valid greeting", ErrProtocolMismatch)
}

// calibrate reads the device identity, then the firmware-dependent config
// structure, and extracts the calibration offsets.
func (s *Session) calibrate() error {
	resp, err := s.exchange(CmdReadID, DeviceIDLen)
	if err != nil {
		return err
	}
	id, err := DecodeDeviceID(resp)
	if err != nil {
		return err
	}
	s.id = id

	n, err := ConfigLen(id)
	if err != nil {
		return err
	}
	raw, err := s.exchange(CmdReadConfig, n)
	if err != nil {
		return err
	}
	cal, err := LoadCalibration(id, raw)
	if err != nil {
		return err
	}
	s.cal = cal
	s.setState(StateCalibrated)
	log.Noticef("calibration loaded (%s): %v", id, cal)
	return nil
}

// Stream enables continuous transmission with the given channel mask and
// timestamp mode and decodes frames until ctx is cancelled, forwarding each
// sample to sink. On cancellation it stops the device stream and returns
// nil, discarding any partially accumulated frame. A transport failure is
// terminal.
func (s *Session) Stream(ctx context.Context, mask ChannelMask, mode TimestampMode, sink func(Sample)) error {
	if st := s.State(); st != StateCalibrated {
		return fmt.Errorf("stream: session is %s, want %s", st, StateCalibrated)
	}
	if mask == MaskNone {
		return fmt.Errorf("stream: empty channel mask")
	}
	if err := s.tr.Drain(); err != nil {
		s.setState(StateFailed)
		return fmt.Errorf("drain: %w", err)
	}
	if _, err := s.tr.Write(EncodeContTx(true, mode, mask)); err != nil {
		s.setState(StateFailed)
		return fmt.Errorf("start stream: %w", err)
	}
	s.setState(StateStreaming)
	dec := NewDecoder(mask, mode, s.cal)
	log.Noticef("streaming %d channels, %s timestamps, frame length %d", mask.Count(), mode, dec.FrameLen())

	buf := make([]byte, 4096)
	for {
		select {
		case <-ctx.Done():
			err := s.Stop()
			s.setState(StateCalibrated)
			return err
		default:
		}
		n, err := s.tr.Read(buf)
		if err != nil {
			s.setState(StateFailed)
			return fmt.Errorf("transport read: %w", err)
		}
		for _, smp := range dec.Ingest(buf[:n]) {
			sink(smp)
		}
	}
}

// Stop disables continuous transmission and drains leftover bytes. Safe to
// call whether or not a stream is running.
func (s *Session) Stop() error {
	if _, err := s.tr.Write(EncodeContTx(false, TimestampNone, MaskNone)); err != nil {
		return fmt.Errorf("stop stream: %w", err)
	}
	time.Sleep(s.opt.SettleDelay)
	return s.tr.Drain()
}

// ReadSensors performs a one-shot read of the device's own averaged
// readings and rail names.
func (s *Session) ReadSensors() (SensorBlock, error) {
	resp, err := s.exchange(CmdReadSensors, SensorBlockLen)
	if err != nil {
		return SensorBlock{}, err
	}
	return DecodeSensorBlock(resp)
}

// ReadValues performs a one-shot CmdReadValues exchange. The device answers
// with all 8 channels and no timestamp regardless of any streaming config.
func (s *Session) ReadValues() (Sample, error) {
	if st := s.State(); st != StateCalibrated {
		return Sample{}, fmt.Errorf("read values: session is %s, want %s", st, StateCalibrated)
	}
	resp, err := s.exchange(CmdReadValues, ValuesLen)
	if err != nil {
		return Sample{}, err
	}
	dec := NewDecoder(MaskAll, TimestampNone, s.cal)
	samples := dec.Ingest(resp)
	return samples[0], nil
}

// SetUARTBaud writes a new UART configuration to the device and moves the
// host side of the link to the same rate.
func (s *Session) SetUARTBaud(baud int) error {
	if _, err := s.tr.Write(EncodeUARTConfig(baud)); err != nil {
		return fmt.Errorf("write uart config: %w", err)
	}
	time.Sleep(s.opt.SettleDelay)
	if err := s.tr.SetBaud(baud); err != nil {
		return fmt.Errorf("set baud %d: %w", baud, err)
	}
	if err := s.tr.Drain(); err != nil {
		return fmt.Errorf("drain: %w", err)
	}
	s.setBaud(baud)
	log.Noticef("link moved to %d baud", baud)
	return nil
}

// BumpBaudRate moves the link to the fastest supported speed. Useful before
// streaming with all channels enabled, where the default speed cannot keep
// up with the frame rate.
func (s *Session) BumpBaudRate() error {
	max := 0
	for _, b := range SupportedBauds {
		if b > max {
			max = b
		}
	}
	if s.Baud() == max {
		return nil
	}
	return s.SetUARTBaud(max)
}

// RestoreBaudRate returns the device to its power-on link speed so the next
// program to open it finds it in the default state.
func (s *Session) RestoreBaudRate() error {
	if s.Baud() == DefaultBaud {
		return nil
	}
	return s.SetUARTBaud(DefaultBaud)
}

// exchange writes a single-opcode request and reads a fixed-size response.
func (s *Session) exchange(cmd Command, want int) ([]byte, error) {
	if _, err := s.tr.Write([]byte{byte(cmd)}); err != nil {
		return nil, fmt.Errorf("write command 0x%02X: %w", byte(cmd), err)
	}
	return s.readExactly(want)
}

// readExactly accumulates exactly want bytes within the read budget. A
// short result is a malformed response, never a silent partial read.
func (s *Session) readExactly(want int) ([]byte, error) {
	buf := make([]byte, want)
	got := 0
	deadline := time.Now().Add(s.opt.ReadBudget)
	for got < want {
		n, err := s.tr.Read(buf[got:])
		got += n
		if err != nil {
			return nil, fmt.Errorf("transport read: %w", err)
		}
		if n == 0 && time.Now().After(deadline) {
			return nil, fmt.Errorf("%w: got %d of %d bytes", ErrMalformedResponse, got, want)
		}
	}
	return buf, nil
}
