package pmd

import "errors"

// Sentinel errors returned by the protocol layer. Callers match these with
// errors.Is; the wrapped message carries the exchange-specific detail.
var (
	// ErrMalformedResponse means a fixed-size exchange returned the wrong
	// number of bytes. The exchange is unusable; nothing was consumed from
	// a partial read.
	ErrMalformedResponse = errors.New("pmd: malformed response")

	// ErrProtocolMismatch means the device answered, but not the way a
	// PMD-USB answers (wrong greeting, or an unknown timestamp-mode byte).
	// Recoverable while probing link speeds, fatal once past the handshake.
	ErrProtocolMismatch = errors.New("pmd: protocol mismatch")

	// ErrUnsupportedFirmware means the reported firmware version cannot be
	// mapped to a known config structure layout. No stream is started.
	ErrUnsupportedFirmware = errors.New("pmd: unsupported firmware")
)
