// Command pmdlog streams power samples from an ElmorLabs PMD-USB to CSV.
//
// It auto-detects the serial port when none is given, performs the
// handshake (baud probe, identity, calibration), then streams the selected
// channels until interrupted, writing one CSV row per sample and a periodic
// statistics readout to stderr.
//
// Interactive keys while streaming: q/ESC quit, s toggles the readout,
// r resets the statistics window.
package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"strings"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/op/go-logging"

	"github.com/pmd-tools/pmdlog-go/internal/config"
	"github.com/pmd-tools/pmdlog-go/internal/csvlog"
	"github.com/pmd-tools/pmdlog-go/internal/stats"
	"github.com/pmd-tools/pmdlog-go/pmd"
	"github.com/pmd-tools/pmdlog-go/serialport"
)

var log = logging.MustGetLogger("pmdlog")

// statsInterval paces the stderr readout while streaming.
const statsInterval = 2 * time.Second

func main() {
	var (
		cfgPath    = flag.String("config", "", "path to YAML config file")
		portName   = flag.String("port", "", "serial port (empty = auto-detect)")
		outPath    = flag.String("out", "", "CSV output file (empty = stdout)")
		channels   = flag.String("channels", "", "comma-separated channel names (empty = all)")
		timestamps = flag.String("timestamps", "", "timestamp mode: none, short, full")
		fast       = flag.Bool("fast", false, "move the link to the fastest supported baud rate before streaming")
		verbose    = flag.Bool("v", false, "verbose logging")
		quiet      = flag.Bool("q", false, "errors only")
	)
	flag.Parse()
	setupLogging(*verbose, *quiet)

	cfg, err := loadConfig(*cfgPath)
	if err != nil {
		log.Fatalf("%v", err)
	}
	// Flags win over the config file.
	if *portName != "" {
		cfg.Serial.Port = *portName
	}
	if *outPath != "" {
		cfg.CSV.Path = *outPath
	}
	if *channels != "" {
		cfg.Stream.Channels = splitList(*channels)
	}
	if *timestamps != "" {
		cfg.Stream.Timestamps = *timestamps
	}
	if *fast {
		cfg.Serial.FastLink = true
	}

	mask, err := cfg.Mask()
	if err != nil {
		log.Fatalf("%v", err)
	}
	mode, err := cfg.TimestampMode()
	if err != nil {
		log.Fatalf("%v", err)
	}

	if err := run(cfg, mask, mode); err != nil {
		log.Fatalf("%v", err)
	}
}

func run(cfg *config.Config, mask pmd.ChannelMask, mode pmd.TimestampMode) error {
	name := cfg.Serial.Port
	if name == "" {
		found, err := serialport.Detect("", cfg.Serial.Bauds)
		if err != nil {
			return err
		}
		name = found
	}
	log.Noticef("using port %s", name)

	port, err := serialport.Open(name, pmd.DefaultBaud)
	if err != nil {
		return err
	}
	defer func() { _ = port.Close() }()

	session := pmd.NewSession(port, pmd.Options{Bauds: cfg.Serial.Bauds})
	if err := session.Handshake(); err != nil {
		return err
	}
	log.Noticef("device %s, calibration %v", session.Identity(), session.Calibration())

	if cfg.Serial.FastLink {
		if err := session.BumpBaudRate(); err != nil {
			return err
		}
		// Leave the device at its power-on speed for the next program.
		defer func() {
			if err := session.RestoreBaudRate(); err != nil {
				log.Warningf("restore baud rate: %v", err)
			}
		}()
	}

	out := os.Stdout
	if cfg.CSV.Path != "" {
		f, err := os.Create(cfg.CSV.Path)
		if err != nil {
			return err
		}
		defer func() { _ = f.Close() }()
		out = f
	}
	writer := csvlog.New(out, mask)
	if err := writer.WriteHeader(); err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sig
		log.Notice("interrupted, stopping")
		cancel()
	}()

	window := stats.NewWindow()
	var showStats atomic.Bool
	showStats.Store(true)

	keys := startKeyEvents()
	go func() {
		for k := range keys {
			switch k {
			case 'q', 'Q', 27:
				cancel()
				return
			case 's', 'S':
				showStats.Store(!showStats.Load())
			case 'r', 'R':
				window.Reset()
				log.Notice("statistics window reset")
			}
		}
	}()

	go func() {
		ticker := time.NewTicker(statsInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if showStats.Load() {
					printReadout(window)
				}
			}
		}
	}()

	var count uint64
	err = session.Stream(ctx, mask, mode, func(s pmd.Sample) {
		if err := writer.Write(s); err != nil {
			log.Errorf("csv write: %v", err)
			cancel()
			return
		}
		window.Add(s)
		count++
	})
	if ferr := writer.Flush(); ferr != nil && err == nil {
		err = ferr
	}
	log.Noticef("logged %d samples", count)
	printReadout(window)
	return err
}

// printReadout logs the per-channel window statistics plus total power.
func printReadout(w *stats.Window) {
	if w.Count() == 0 {
		return
	}
	snap := w.Snapshot()
	for c := pmd.Channel(0); int(c) < pmd.NumChannels; c++ {
		st, ok := snap[c]
		if !ok {
			continue
		}
		log.Infof("%-7s min=%8.4f max=%8.4f mean=%8.4f std=%7.4f",
			c, st.Min, st.Max, st.Mean, st.Std)
	}
	p := w.Power()
	log.Noticef("power: mean=%.3f W min=%.3f max=%.3f over %d samples",
		p.Mean, p.Min, p.Max, w.Count())
}

func loadConfig(path string) (*config.Config, error) {
	if path == "" {
		return config.Defaults(), nil
	}
	return config.Load(path)
}

func splitList(s string) []string {
	parts := strings.Split(s, ",")
	out := parts[:0]
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func setupLogging(verbose, quiet bool) {
	backend := logging.NewLogBackend(os.Stderr, "", 0)
	format := logging.MustStringFormatter(
		`%{color}%{time:15:04:05.000} %{level:.4s}%{color:reset} %{message}`,
	)
	leveled := logging.AddModuleLevel(logging.NewBackendFormatter(backend, format))
	switch {
	case quiet:
		leveled.SetLevel(logging.ERROR, "")
	case verbose:
		leveled.SetLevel(logging.DEBUG, "")
	default:
		leveled.SetLevel(logging.INFO, "")
	}
	logging.SetBackend(leveled)
}
