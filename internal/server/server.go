// Package server implements the browser monitor: a JSON API over the
// device session plus a WebSocket feed of live readings.
package server

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/op/go-logging"

	"github.com/pmd-tools/pmdlog-go/pmd"
	"github.com/pmd-tools/pmdlog-go/serialport"
)

var log = logging.MustGetLogger("server")

// Server ties the HTTP surface to the single device session.
type Server struct {
	device    *DeviceSession
	wsLive    *WSHub
	staticDir string
}

// New constructs a server that serves the UI from staticDir.
func New(staticDir string) *Server {
	return &Server{
		device:    NewDeviceSession(),
		wsLive:    NewWSHub(),
		staticDir: staticDir,
	}
}

// Handler builds the route table.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/health", s.handleHealth)
	mux.HandleFunc("/api/ports", s.handlePorts)
	mux.HandleFunc("/api/connect", s.handleConnect)
	mux.HandleFunc("/api/disconnect", s.handleDisconnect)
	mux.HandleFunc("/api/start", s.handleStart)
	mux.HandleFunc("/api/stop", s.handleStop)
	mux.HandleFunc("/api/status", s.handleStatus)
	mux.HandleFunc("/ws/live", s.handleWSLive)
	mux.Handle("/", http.FileServer(http.Dir(s.staticDir)))
	return mux
}

// ListenAndServe runs the HTTP server on addr until it fails.
func (s *Server) ListenAndServe(addr string) error {
	log.Noticef("monitor listening on http://%s", addr)
	return http.ListenAndServe(addr, s.Handler())
}

// Shutdown stops any stream and releases the device.
func (s *Server) Shutdown() {
	if s.device.Status().Connected {
		if err := s.device.Disconnect(); err != nil {
			log.Warningf("disconnect on shutdown: %v", err)
		}
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, HealthResponse{OK: true, Timestamp: time.Now()})
}

func (s *Server) handlePorts(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, PortsResponse{Ports: serialport.ListPorts()})
}

func (s *Server) handleConnect(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, fmt.Errorf("POST required"))
		return
	}
	var req ConnectRequest
	if err := readJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	resp, err := s.device.Connect(req.Port, req.Bauds)
	if err != nil {
		writeError(w, http.StatusBadGateway, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleDisconnect(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, fmt.Errorf("POST required"))
		return
	}
	if err := s.device.Disconnect(); err != nil {
		writeError(w, http.StatusConflict, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
}

func (s *Server) handleStart(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, fmt.Errorf("POST required"))
		return
	}
	var req StartRequest
	if err := readJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	mask := pmd.MaskAll
	if len(req.Channels) > 0 {
		mask = pmd.MaskNone
		for _, name := range req.Channels {
			ch, ok := pmd.ChannelByName(name)
			if !ok {
				writeError(w, http.StatusBadRequest, fmt.Errorf("unknown channel %q", name))
				return
			}
			mask |= 1 << uint(ch)
		}
	}
	mode := pmd.TimestampFull
	if req.Timestamps != "" {
		var err error
		mode, err = pmd.ParseTimestampMode(req.Timestamps)
		if err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
	}

	if err := s.device.Start(mask, mode, req.FastLink, s.wsLive); err != nil {
		writeError(w, http.StatusConflict, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
}

func (s *Server) handleStop(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, fmt.Errorf("POST required"))
		return
	}
	if err := s.device.Stop(); err != nil {
		writeError(w, http.StatusConflict, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.device.Status())
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Warningf("encode response: %v", err)
	}
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, APIError{Error: err.Error()})
}

func readJSON(r *http.Request, v interface{}) error {
	defer func() { _ = r.Body.Close() }()
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("decode request body: %w", err)
	}
	return nil
}
