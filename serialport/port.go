// Package serialport provides the physical serial transport for the PMD
// protocol, plus port enumeration and device auto-detection helpers.
package serialport

import (
	"fmt"
	"io"
	"time"

	goserial "github.com/tarm/serial"
)

// readTimeout is the per-call blocking read timeout. The session treats an
// empty read as an absence of data, not an error, so this only bounds how
// long one Read call may sit on the wire.
const readTimeout = 100 * time.Millisecond

// Port is a serial connection implementing pmd.Transport. Baud changes
// reopen the underlying port, since the OS-level handle is configured at
// open time.
type Port struct {
	name string
	baud int
	sp   *goserial.Port
}

// Open opens the named port at the given speed, 8N1.
func Open(name string, baud int) (*Port, error) {
	p := &Port{name: name}
	if err := p.SetBaud(baud); err != nil {
		return nil, err
	}
	return p, nil
}

// Name returns the port's device name.
func (p *Port) Name() string { return p.name }

// Baud returns the current host-side link speed.
func (p *Port) Baud() int { return p.baud }

func (p *Port) Write(b []byte) (int, error) {
	return p.sp.Write(b)
}

// Read reads whatever is available within the read timeout. A timeout with
// no data is reported as (0, nil).
func (p *Port) Read(b []byte) (int, error) {
	n, err := p.sp.Read(b)
	if err == io.EOF {
		// tarm reports a timed-out read as EOF on some platforms.
		return n, nil
	}
	return n, err
}

// Drain discards input until the device goes quiet for one read timeout.
func (p *Port) Drain() error {
	tmp := make([]byte, 256)
	for {
		n, err := p.Read(tmp)
		if err != nil {
			return err
		}
		if n == 0 {
			return nil
		}
	}
}

// SetBaud moves the host side of the link to a new speed, reopening the
// port. The first call performs the initial open.
func (p *Port) SetBaud(baud int) error {
	if p.sp != nil {
		if p.baud == baud {
			return nil
		}
		if err := p.sp.Close(); err != nil {
			return fmt.Errorf("close %s: %w", p.name, err)
		}
		p.sp = nil
	}
	cfg := &goserial.Config{
		Name:        p.name,
		Baud:        baud,
		Parity:      goserial.ParityNone,
		Size:        8,
		StopBits:    goserial.Stop1,
		ReadTimeout: readTimeout,
	}
	sp, err := goserial.OpenPort(cfg)
	if err != nil {
		return fmt.Errorf("open %s at %d baud: %w", p.name, baud, err)
	}
	p.sp = sp
	p.baud = baud
	return nil
}

// Close closes the port.
func (p *Port) Close() error {
	if p.sp == nil {
		return nil
	}
	err := p.sp.Close()
	p.sp = nil
	return err
}
