package serialport

import (
	"os"
	"path/filepath"
	"runtime"
	"sort"

	"go.bug.st/serial/enumerator"
)

// devicePatterns are the per-OS glob fallbacks used when the enumerator
// comes back empty. The PMD shows up as a USB CDC device, so the USB-serial
// namespaces are enough.
var devicePatterns = map[string][]string{
	"linux":  {"/dev/ttyUSB*", "/dev/ttyACM*"},
	"darwin": {"/dev/cu.*", "/dev/tty.*"},
}

// ListPorts returns the candidate serial ports for the welcome probe,
// sorted and de-duplicated. An empty result on Windows is expected when
// enumeration fails; Detect then falls back to scanning COM numbers.
func ListPorts() []string {
	seen := map[string]struct{}{}

	if ports, err := enumerator.GetDetailedPortsList(); err == nil {
		for _, p := range ports {
			if p != nil && p.Name != "" {
				seen[p.Name] = struct{}{}
			}
		}
	}
	if len(seen) == 0 {
		for _, pat := range devicePatterns[runtime.GOOS] {
			matches, _ := filepath.Glob(pat)
			for _, m := range matches {
				// The glob can race against device unplug.
				if _, err := os.Stat(m); err == nil {
					seen[m] = struct{}{}
				}
			}
		}
	}

	out := make([]string, 0, len(seen))
	for name := range seen {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}
