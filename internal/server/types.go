package server

import "time"

// APIError is the error envelope returned by JSON endpoints.
type APIError struct {
	Error string `json:"error"`
}

// HealthResponse is returned by /api/health.
type HealthResponse struct {
	OK        bool      `json:"ok"`
	Timestamp time.Time `json:"timestamp"`
}

// PortsResponse lists the serial ports the host can see.
type PortsResponse struct {
	Ports []string `json:"ports"`
}

// ConnectRequest selects the port to connect to. An empty port means
// auto-detect; empty bauds means probe all supported speeds.
type ConnectRequest struct {
	Port  string `json:"port,omitempty"`
	Bauds []int  `json:"bauds,omitempty"`
}

// ConnectResponse describes the device after a successful handshake.
type ConnectResponse struct {
	SessionID   string  `json:"sessionId"`
	Port        string  `json:"port"`
	Baud        int     `json:"baud"`
	Vendor      byte    `json:"vendor"`
	Product     byte    `json:"product"`
	Firmware    byte    `json:"firmware"`
	Calibration [8]int8 `json:"calibration"`
}

// StartRequest configures the continuous stream. Empty channels means all
// eight; timestamps defaults to "full".
type StartRequest struct {
	Channels   []string `json:"channels,omitempty"`
	Timestamps string   `json:"timestamps,omitempty"`
	FastLink   bool     `json:"fastLink,omitempty"`
}

// StatusResponse reports the session and stream state.
type StatusResponse struct {
	Connected bool   `json:"connected"`
	Streaming bool   `json:"streaming"`
	SessionID string `json:"sessionId,omitempty"`
	Port      string `json:"port,omitempty"`
	Baud      int    `json:"baud,omitempty"`
	State     string `json:"state,omitempty"`
	Samples   uint64 `json:"samples"`
}

// liveStat is one channel's summary inside a live tick message.
type liveStat struct {
	N    int     `json:"n"`
	Min  float64 `json:"min"`
	Max  float64 `json:"max"`
	Mean float64 `json:"mean"`
	Std  float64 `json:"std"`
}

// liveTick is the periodic payload broadcast on /ws/live.
type liveTick struct {
	DeviceTime float64             `json:"deviceTime"`
	HostTime   float64             `json:"hostTime"`
	Values     map[string]float64  `json:"values"`
	Stats      map[string]liveStat `json:"stats"`
	Power      liveStat            `json:"power"`
	Samples    uint64              `json:"samples"`
}
