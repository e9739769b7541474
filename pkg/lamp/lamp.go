// Package lamp drives a status indicator lamp.
package lamp

import (
	"sync"

	"github.com/womat/debug"
	"v543/pkg/raspberry"
)

// Lamp toggles an output line on every call of Toggle.
// The lamp is a pure visual heartbeat, the level is not used for any logic.
type Lamp struct {
	name string
	out  raspberry.Output

	mu    sync.Mutex
	level int
}

// New initials a new lamp on the output line, a nil output gives a lamp without line.
func New(name string, out raspberry.Output) *Lamp {
	return &Lamp{name: name, out: out}
}

// Toggle drives the current level and inverts it for the next call.
// Toggle on a nil lamp is a no-op.
func (l *Lamp) Toggle() {
	if l == nil {
		return
	}

	l.mu.Lock()
	v := l.level
	l.level ^= 1
	l.mu.Unlock()

	if l.out == nil {
		return
	}
	if err := l.out.SetValue(v); err != nil {
		debug.ErrorLog.Printf("could not toggle lamp %s: %v", l.name, err)
	}
}

// Level returns the level driven by the next Toggle.
func (l *Lamp) Level() int {
	if l == nil {
		return 0
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	return l.level
}

// Name returns the name of the lamp.
func (l *Lamp) Name() string {
	if l == nil {
		return ""
	}
	return l.name
}
