package scpi

import (
	"strings"
	"sync/atomic"

	"v543/pkg/lamp"
)

// Interpreter answers command lines from the current reading of the meter.
type Interpreter struct {
	meter    Reader
	revision Revision
	identity Identity
	lamp     *lamp.Lamp
	commands []Command

	handled uint64
	unknown uint64
}

// Option configures an Interpreter.
type Option func(*Interpreter)

// WithRevision selects the command table, default is LXI.
func WithRevision(rev Revision) Option {
	return func(i *Interpreter) { i.revision = rev }
}

// WithIdentity sets the answer of *idn?.
func WithIdentity(id Identity) Option {
	return func(i *Interpreter) { i.identity = id }
}

// WithLamp sets the lamp toggled on every command.
func WithLamp(l *lamp.Lamp) Option {
	return func(i *Interpreter) { i.lamp = l }
}

// New initials a new interpreter reading from meter.
func New(meter Reader, opts ...Option) *Interpreter {
	i := &Interpreter{
		meter:    meter,
		revision: LXI,
		identity: DefaultIdentity,
	}
	for _, opt := range opts {
		opt(i)
	}
	i.commands = commands(i.revision, i.identity)
	return i
}

// Normalize trims the surrounding white space and lower-cases a command line.
func Normalize(line string) string {
	return strings.ToLower(strings.TrimSpace(line))
}

// Handle answers one command line. It never fails, errors are answered in text.
func (i *Interpreter) Handle(line string) Response {
	defer i.lamp.Toggle()
	atomic.AddUint64(&i.handled, 1)

	cmd := Normalize(line)
	for _, c := range i.commands {
		if c.Pattern == cmd {
			return Response{Text: c.Handler(i.meter.Reading()), Exit: c.Exit}
		}
	}

	atomic.AddUint64(&i.unknown, 1)
	return Response{Text: ErrorResponse}
}

// Revision returns the revision of the command table.
func (i *Interpreter) Revision() Revision {
	return i.revision
}

// Commands returns the patterns of the command table in match order.
func (i *Interpreter) Commands() []string {
	p := make([]string, len(i.commands))
	for n, c := range i.commands {
		p[n] = c.Pattern
	}
	return p
}

// Handled returns the number of handled command lines.
func (i *Interpreter) Handled() uint64 {
	return atomic.LoadUint64(&i.handled)
}

// Unknown returns the number of command lines answered with "error".
func (i *Interpreter) Unknown() uint64 {
	return atomic.LoadUint64(&i.unknown)
}
