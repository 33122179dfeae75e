package server

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/pmd-tools/pmdlog-go/internal/stats"
	"github.com/pmd-tools/pmdlog-go/pmd"
	"github.com/pmd-tools/pmdlog-go/serialport"
)

// broadcastInterval paces live ticks to the WebSocket clients. Full-rate
// samples arrive far faster than a browser can usefully render.
const broadcastInterval = 100 * time.Millisecond

// DeviceSession owns the single device the monitor talks to: the serial
// port, the protocol session on top of it, and the running stream if any.
// All API handlers funnel through it under one mutex.
type DeviceSession struct {
	mu sync.Mutex

	id      string
	port    *serialport.Port
	session *pmd.Session

	streaming bool
	opCancel  context.CancelFunc
	streamWG  sync.WaitGroup

	window  *stats.Window
	samples atomic.Uint64

	lastMu sync.Mutex
	last   pmd.Sample
}

// NewDeviceSession returns a disconnected session.
func NewDeviceSession() *DeviceSession {
	return &DeviceSession{window: stats.NewWindow()}
}

// Connect opens the port (auto-detecting when name is empty), performs the
// handshake and reports the device identity.
func (d *DeviceSession) Connect(name string, bauds []int) (ConnectResponse, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.session != nil {
		return ConnectResponse{}, fmt.Errorf("already connected on %s", d.port.Name())
	}
	if name == "" {
		found, err := serialport.Detect("", bauds)
		if err != nil {
			return ConnectResponse{}, err
		}
		name = found
	}
	port, err := serialport.Open(name, pmd.DefaultBaud)
	if err != nil {
		return ConnectResponse{}, err
	}
	session := pmd.NewSession(port, pmd.Options{Bauds: bauds})
	if err := session.Handshake(); err != nil {
		_ = port.Close()
		return ConnectResponse{}, err
	}

	d.id = uuid.NewString()
	d.port = port
	d.session = session
	d.window.Reset()
	d.samples.Store(0)

	id := session.Identity()
	cal := session.Calibration()
	log.Noticef("connected %s on %s at %d baud", id, name, session.Baud())
	return ConnectResponse{
		SessionID:   d.id,
		Port:        name,
		Baud:        session.Baud(),
		Vendor:      id.Vendor,
		Product:     id.Product,
		Firmware:    id.Firmware,
		Calibration: [8]int8(cal),
	}, nil
}

// Disconnect stops any running stream, restores the device's power-on baud
// rate and closes the port.
func (d *DeviceSession) Disconnect() error {
	d.stopStream()

	d.mu.Lock()
	defer d.mu.Unlock()
	if d.session == nil {
		return fmt.Errorf("not connected")
	}
	if err := d.session.RestoreBaudRate(); err != nil {
		log.Warningf("restore baud rate: %v", err)
	}
	err := d.port.Close()
	d.id = ""
	d.port = nil
	d.session = nil
	return err
}

// Start enables the continuous stream with the given selection and runs the
// ingest loop in the background, broadcasting live ticks over hub.
func (d *DeviceSession) Start(mask pmd.ChannelMask, mode pmd.TimestampMode, fastLink bool, hub *WSHub) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.session == nil {
		return fmt.Errorf("not connected")
	}
	if d.streaming {
		return fmt.Errorf("stream already running")
	}
	if fastLink {
		if err := d.session.BumpBaudRate(); err != nil {
			return fmt.Errorf("bump baud rate: %w", err)
		}
	}

	ctx, cancel := context.WithCancel(context.Background())
	d.opCancel = cancel
	d.streaming = true
	d.window.Reset()
	d.samples.Store(0)

	session := d.session
	d.streamWG.Add(1)
	go func() {
		defer d.streamWG.Done()
		defer func() {
			d.mu.Lock()
			d.streaming = false
			d.opCancel = nil
			d.mu.Unlock()
		}()

		ticker := time.NewTicker(broadcastInterval)
		defer ticker.Stop()

		err := session.Stream(ctx, mask, mode, func(s pmd.Sample) {
			d.window.Add(s)
			d.samples.Add(1)
			d.lastMu.Lock()
			d.last = s
			d.lastMu.Unlock()
			select {
			case <-ticker.C:
				d.broadcastTick(hub)
			default:
			}
		})
		if err != nil {
			log.Errorf("stream ended: %v", err)
			hub.Broadcast(WSMessage{Type: "stream_error", Data: APIError{Error: err.Error()}})
			return
		}
		hub.Broadcast(WSMessage{Type: "stream_stopped"})
	}()
	return nil
}

// Stop cancels a running stream and waits for the ingest loop to exit.
func (d *DeviceSession) Stop() error {
	d.mu.Lock()
	if !d.streaming {
		d.mu.Unlock()
		return fmt.Errorf("no stream running")
	}
	d.mu.Unlock()
	d.stopStream()
	return nil
}

func (d *DeviceSession) stopStream() {
	d.mu.Lock()
	cancel := d.opCancel
	d.mu.Unlock()
	if cancel != nil {
		cancel()
	}
	d.streamWG.Wait()
}

// Status snapshots the session for /api/status.
func (d *DeviceSession) Status() StatusResponse {
	d.mu.Lock()
	defer d.mu.Unlock()
	resp := StatusResponse{Samples: d.samples.Load()}
	if d.session == nil {
		return resp
	}
	resp.Connected = true
	resp.Streaming = d.streaming
	resp.SessionID = d.id
	resp.Port = d.port.Name()
	resp.Baud = d.session.Baud()
	resp.State = d.session.State().String()
	return resp
}

// broadcastTick pushes the latest sample plus window statistics to every
// connected WebSocket client.
func (d *DeviceSession) broadcastTick(hub *WSHub) {
	if hub.Len() == 0 {
		return
	}
	d.lastMu.Lock()
	last := d.last
	d.lastMu.Unlock()

	tick := liveTick{
		DeviceTime: last.DeviceTime,
		HostTime:   last.HostTime,
		Values:     make(map[string]float64, len(last.Values)),
		Stats:      make(map[string]liveStat),
		Power:      toLiveStat(d.window.Power()),
		Samples:    d.samples.Load(),
	}
	for c, v := range last.Values {
		tick.Values[c.String()] = v
	}
	for c, st := range d.window.Snapshot() {
		tick.Stats[c.String()] = toLiveStat(st)
	}
	hub.Broadcast(WSMessage{Type: "tick", Data: tick})
}

func toLiveStat(st stats.ChannelStat) liveStat {
	return liveStat{N: st.N, Min: st.Min, Max: st.Max, Mean: st.Mean, Std: st.Std}
}
