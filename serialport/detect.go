package serialport

import (
	"fmt"
	"runtime"
	"time"

	"github.com/op/go-logging"

	"github.com/pmd-tools/pmdlog-go/pmd"
)

var log = logging.MustGetLogger("serialport")

// probeOptions keeps per-port probing quick: a shortened settle delay and a
// tight read budget are enough for a device that is actually there.
func probeOptions(bauds []int) pmd.Options {
	return pmd.Options{
		Bauds:       bauds,
		SettleDelay: 150 * time.Millisecond,
		ReadBudget:  500 * time.Millisecond,
	}
}

// TestPort reports whether a PMD answers the welcome probe on the named
// port at any of the candidate speeds.
func TestPort(name string, bauds []int) bool {
	p, err := Open(name, pmd.DefaultBaud)
	if err != nil {
		return false
	}
	defer func() { _ = p.Close() }()

	s := pmd.NewSession(p, probeOptions(bauds))
	if err := s.Handshake(); err != nil {
		log.Debugf("probe %s: %v", name, err)
		return false
	}
	return true
}

// Detect finds a port with a responding PMD. It probes the preferred port
// first (if non-empty), then every enumerated port, and on Windows falls
// back to a COM1..COM64 scan when enumeration yields nothing.
func Detect(preferred string, bauds []int) (string, error) {
	if preferred != "" {
		log.Infof("probing configured port %s", preferred)
		if TestPort(preferred, bauds) {
			return preferred, nil
		}
	}

	if ports := ListPorts(); len(ports) > 0 {
		log.Infof("enumerated %d ports: %v", len(ports), ports)
		for _, name := range ports {
			if name == preferred {
				continue
			}
			log.Infof("probing %s", name)
			if TestPort(name, bauds) {
				return name, nil
			}
		}
		return "", fmt.Errorf("no enumerated port answered the welcome probe")
	}

	if runtime.GOOS == "windows" {
		log.Info("no ports enumerated; scanning COM1..COM64")
		for i := 1; i <= 64; i++ {
			name := fmt.Sprintf("COM%d", i)
			if TestPort(name, bauds) {
				return name, nil
			}
		}
	}
	return "", fmt.Errorf("no serial port with a responding device found")
}
