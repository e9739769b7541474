package scpi

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/womat/debug"
)

// DefaultMaxLine is the longest accepted command line without terminator.
const DefaultMaxLine = 63

// acceptRetry is the pause after a failed accept.
var acceptRetry = 100 * time.Millisecond

// truncated marks the text of an over-long line, no command ends with it.
const truncated = "..."

var errLineTooLong = errors.New("command line too long")

// Server hosts the sessions of the gateway. Only one session is served at a time.
type Server struct {
	handler     Handler
	listener    net.Listener
	oneShot     bool
	maxLine     int
	readTimeout time.Duration

	mu     sync.Mutex
	conn   net.Conn
	closed bool

	// turn is held by the running session or by Do, commands are never handled in parallel.
	turn chan struct{}

	sessions uint64
	commands uint64
}

// ServerOption configures a Server.
type ServerOption func(*Server)

// WithOneShot closes the connection after the first command.
func WithOneShot(oneShot bool) ServerOption {
	return func(s *Server) { s.oneShot = oneShot }
}

// WithMaxLine sets the longest accepted command line.
func WithMaxLine(n int) ServerOption {
	return func(s *Server) {
		if n > 0 {
			s.maxLine = n
		}
	}
}

// WithReadTimeout ends a session idle for d, zero waits forever.
func WithReadTimeout(d time.Duration) ServerOption {
	return func(s *Server) { s.readTimeout = d }
}

// NewServer listens on the tcp address addr, e.g. 0.0.0.0:5555.
func NewServer(addr string, h Handler, opts ...ServerOption) (*Server, error) {
	l, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("could not listen on %s: %w", addr, err)
	}

	s := &Server{handler: h, listener: l, maxLine: DefaultMaxLine, turn: make(chan struct{}, 1)}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Addr returns the listening address.
func (s *Server) Addr() net.Addr {
	return s.listener.Addr()
}

// Sessions returns the number of served sessions.
func (s *Server) Sessions() uint64 {
	return atomic.LoadUint64(&s.sessions)
}

// Commands returns the number of answered command lines.
func (s *Server) Commands() uint64 {
	return atomic.LoadUint64(&s.commands)
}

// Close stops the server, Serve returns ErrServerClosed.
func (s *Server) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true
	if s.conn != nil {
		_ = s.conn.Close()
	}
	return s.listener.Close()
}

func (s *Server) isClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

// Serve accepts connections and serves them one after the other.
// Serve returns nil if ctx is done, ErrServerClosed after Close and
// ErrExitRequested if a client requested the exit.
// Transport errors only end the affected session.
func (s *Server) Serve(ctx context.Context) error {
	done := make(chan struct{})
	defer close(done)

	go func() {
		select {
		case <-ctx.Done():
			_ = s.Close()
		case <-done:
		}
	}()

	debug.InfoLog.Printf("SCPI server listening on %v", s.Addr())
	for n := 0; ; n++ {
		debug.TraceLog.Printf("waiting for connection [%04d]", n)

		conn, err := s.listener.Accept()
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			if s.isClosed() || errors.Is(err, net.ErrClosed) {
				return ErrServerClosed
			}
			debug.ErrorLog.Printf("could not accept connection: %v", err)
			select {
			case <-ctx.Done():
				return nil
			case <-time.After(acceptRetry):
			}
			continue
		}

		if s.serveConn(conn) {
			debug.InfoLog.Print("exit requested, SCPI server stopped")
			_ = s.Close()
			return ErrExitRequested
		}
	}
}

// serveConn runs one session and reports whether the client requested the exit.
func (s *Server) serveConn(conn net.Conn) (exit bool) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		_ = conn.Close()
		return false
	}
	s.conn = conn
	s.mu.Unlock()

	s.turn <- struct{}{}
	defer func() { <-s.turn }()

	id := uuid.New()
	atomic.AddUint64(&s.sessions, 1)
	debug.InfoLog.Printf("begin session %v, host %v", id, conn.RemoteAddr())

	defer func() {
		s.mu.Lock()
		s.conn = nil
		s.mu.Unlock()

		_ = conn.Close()
		debug.InfoLog.Printf("end session %v", id)
	}()

	lr := newLineReader(conn, s.maxLine)
	for {
		if s.readTimeout > 0 {
			_ = conn.SetReadDeadline(time.Now().Add(s.readTimeout))
		}

		line, err := lr.ReadLine()
		long := errors.Is(err, errLineTooLong)
		switch {
		case long:
			debug.DebugLog.Printf("session %v: %v", id, err)
			line += truncated
		case err == io.EOF && line == "":
			return false
		case err != nil && err != io.EOF:
			if s.isClosed() {
				return false
			}
			debug.ErrorLog.Printf("session %v: could not read command: %v", id, err)
			return false
		}

		if !long && !s.oneShot && strings.TrimSpace(line) == "" {
			return false
		}

		resp := s.handle(line)
		if !s.write(id, conn, resp.Text) {
			return false
		}
		if resp.Exit {
			return true
		}
		if s.oneShot || err == io.EOF {
			return false
		}
	}
}

func (s *Server) handle(line string) Response {
	resp := s.handler.Handle(line)
	atomic.AddUint64(&s.commands, 1)
	debug.DebugLog.Printf("SCPI [%s]->[%s]", strings.TrimSpace(line), strings.TrimSpace(resp.Text))
	return resp
}

// Do answers a command line outside of a session, e.g. for the web server.
// It waits until no session is served and returns ctx.Err() if ctx is done before.
// Do doesn't act on an exit request, the caller decides.
func (s *Server) Do(ctx context.Context, line string) (Response, error) {
	select {
	case s.turn <- struct{}{}:
	case <-ctx.Done():
		return Response{}, ctx.Err()
	}
	defer func() { <-s.turn }()

	return s.handle(line), nil
}

func (s *Server) write(id uuid.UUID, conn net.Conn, text string) bool {
	if _, err := io.WriteString(conn, text); err != nil {
		debug.ErrorLog.Printf("session %v: could not send response: %v", id, err)
		return false
	}
	return true
}

// lineReader reads newline terminated lines of bounded length.
type lineReader struct {
	r   *bufio.Reader
	max int
}

func newLineReader(r io.Reader, max int) *lineReader {
	return &lineReader{r: bufio.NewReader(r), max: max}
}

// ReadLine returns the next line without terminator.
// A line longer than max is consumed up to its terminator, its first max bytes
// are returned with errLineTooLong.
// At the end of the input the pending text is returned together with io.EOF.
func (lr *lineReader) ReadLine() (string, error) {
	var b strings.Builder
	long := false

	for {
		c, err := lr.r.ReadByte()
		if err != nil {
			if long {
				return b.String(), errLineTooLong
			}
			return b.String(), err
		}
		if c == '\n' {
			break
		}
		if b.Len() >= lr.max {
			long = true
			continue
		}
		_ = b.WriteByte(c)
	}

	if long {
		return b.String(), errLineTooLong
	}
	return b.String(), nil
}
