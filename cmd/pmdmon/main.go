// Command pmdmon runs the browser monitor: a local web UI over the PMD
// JSON API plus a WebSocket stream of live power readings.
//
// Flags:
//
//	-addr: TCP address to listen on (default 127.0.0.1:8090)
//	-web:  path to web root containing index.html
//	-open: open the UI URL in your default browser at startup
//
// Env:
//
//	PMDMON_NO_OPEN=1 disables browser auto-open even when -open is set.
package main

import (
	"flag"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/exec"
	"os/signal"
	"path/filepath"
	"runtime"
	"strings"
	"syscall"

	"github.com/op/go-logging"

	"github.com/pmd-tools/pmdlog-go/internal/server"
)

var log = logging.MustGetLogger("pmdmon")

func main() {
	var (
		addr = flag.String("addr", "127.0.0.1:8090", "http listen address")
		web  = flag.String("web", "./web", "path to web root (index.html)")
		open = flag.Bool("open", false, "open the web UI in your default browser on startup")
	)
	flag.Parse()
	setupLogging()

	webDir, err := filepath.Abs(*web)
	if err != nil {
		log.Fatalf("resolve web directory: %v", err)
	}
	if st, err := os.Stat(webDir); err != nil || !st.IsDir() {
		log.Fatalf("web directory does not exist: %s", webDir)
	}

	s := server.New(webDir)

	// Bind early so a port conflict fails before anything else happens.
	ln, err := net.Listen("tcp", *addr)
	if err != nil {
		log.Fatalf("listen on %s: %v", *addr, err)
	}

	uiURL := makeUIURL(*addr)
	log.Noticef("serving on http://%s", *addr)
	log.Noticef("UI: %s", uiURL)

	if *open && os.Getenv("PMDMON_NO_OPEN") == "" {
		if err := openBrowser(uiURL); err != nil {
			log.Warningf("open browser: %v", err)
		}
	}

	// On interrupt, stop any running stream and put the device back at its
	// power-on baud rate before exiting.
	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sig
		log.Notice("shutting down")
		s.Shutdown()
		_ = ln.Close()
	}()

	if err := http.Serve(ln, s.Handler()); err != nil {
		log.Infof("server stopped: %v", err)
	}
}

func setupLogging() {
	backend := logging.NewLogBackend(os.Stderr, "", 0)
	format := logging.MustStringFormatter(
		`%{color}%{time:15:04:05.000} %{module} %{level:.4s}%{color:reset} %{message}`,
	)
	logging.SetBackend(logging.NewBackendFormatter(backend, format))
}

// makeUIURL turns a listen address into a browser-friendly URL. Wildcard
// bind addresses are replaced with 127.0.0.1 since a browser cannot
// navigate to 0.0.0.0.
func makeUIURL(addr string) string {
	host, port, err := net.SplitHostPort(addr)
	if err != nil {
		return fmt.Sprintf("http://%s/", strings.TrimSpace(addr))
	}
	if host == "" || host == "0.0.0.0" || host == "::" || host == "[::]" {
		host = "127.0.0.1"
	}
	return fmt.Sprintf("http://%s:%s/", host, port)
}

// openBrowser opens url in the OS default browser without blocking startup.
func openBrowser(url string) error {
	switch runtime.GOOS {
	case "windows":
		return exec.Command("cmd", "/c", "start", "", url).Start()
	case "darwin":
		return exec.Command("open", url).Start()
	default:
		return exec.Command("xdg-open", url).Start()
	}
}
