// Package scpi serves the readings of the V543 with a small SCPI like text protocol.
//
// A command is a single line. It is trimmed and lower-cased and compared
// verbatim with the command table of the protocol revision; the response is
// always a single newline terminated line. Unknown commands are answered with
// "error\n", there is no other error reporting on the wire.
package scpi

import (
	"errors"
	"fmt"
	"strings"

	"v543/pkg/v543"
)

// Revision selects the wire contract of the gateway.
type Revision string

const (
	// Legacy is the oldest firmware: :meter:* commands, one command per connection
	// and :debug:exit to stop the gateway.
	Legacy Revision = "legacy"
	// LXI is the newest firmware: SCPI aliases, persistent sessions.
	LXI Revision = "lxi"
)

// Terminator ends every response.
const Terminator = "\n"

// Error responses.
const (
	ErrorResponse     = "error" + Terminator
	WrongModeResponse = "error: wrong mode" + Terminator
	NoErrorResponse   = `0,"No error"` + Terminator
)

var (
	// ErrUnknownRevision is returned by ParseRevision for unknown names.
	ErrUnknownRevision = errors.New("unknown protocol revision")
	// ErrExitRequested is returned by Server.Serve after a client requested the exit.
	ErrExitRequested = errors.New("exit requested by client")
	// ErrServerClosed is returned by Server.Serve after a call to Close.
	ErrServerClosed = errors.New("scpi: server closed")
)

// ParseRevision converts a configured revision name.
func ParseRevision(s string) (Revision, error) {
	switch r := Revision(strings.ToLower(strings.TrimSpace(s))); r {
	case Legacy, LXI:
		return r, nil
	case "":
		return LXI, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownRevision, s)
	}
}

// OneShot reports whether the revision closes the connection after one command.
func (r Revision) OneShot() bool {
	return r == Legacy
}

// Identity is the answer of *idn?.
type Identity struct {
	Vendor   string `yaml:"vendor" toml:"vendor"`
	Model    string `yaml:"model" toml:"model"`
	Serial   string `yaml:"serial" toml:"serial"`
	Firmware string `yaml:"firmware" toml:"firmware"`
}

// DefaultIdentity is the identity of the instrument at hand.
var DefaultIdentity = Identity{
	Vendor:   "Meratronik",
	Model:    "V543",
	Serial:   "01473",
	Firmware: "666-tasza-2018",
}

// Response is the answer to one command line.
type Response struct {
	Text string
	// Exit requests the session host to stop serving.
	Exit bool
}

// Reader provides the current reading of the instrument.
type Reader interface {
	Reading() v543.Reading
}

// Handler answers a command line.
type Handler interface {
	Handle(line string) Response
}

// HandlerFunc adapts a function to the Handler interface.
type HandlerFunc func(line string) Response

// Handle calls f(line).
func (f HandlerFunc) Handle(line string) Response {
	return f(line)
}
