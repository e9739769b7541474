package scpi

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"net"
	"strings"
	"time"
)

// Client sends commands to a gateway over a persistent session.
type Client struct {
	conn    net.Conn
	r       *bufio.Reader
	timeout time.Duration
}

// Dial connects to the gateway at addr.
func Dial(ctx context.Context, addr string) (*Client, error) {
	var d net.Dialer
	conn, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("could not connect to %s: %w", addr, err)
	}
	return &Client{conn: conn, r: bufio.NewReader(conn)}, nil
}

// SetTimeout limits the duration of each query, zero waits forever.
func (c *Client) SetTimeout(d time.Duration) {
	c.timeout = d
}

// Query sends one command and returns the response without terminator.
func (c *Client) Query(cmd string) (string, error) {
	if c.timeout > 0 {
		_ = c.conn.SetDeadline(time.Now().Add(c.timeout))
	}

	if _, err := io.WriteString(c.conn, strings.TrimRight(cmd, "\r\n")+Terminator); err != nil {
		return "", fmt.Errorf("could not send %q: %w", cmd, err)
	}

	resp, err := c.r.ReadString('\n')
	if err != nil && !(err == io.EOF && resp != "") {
		return "", fmt.Errorf("could not receive response to %q: %w", cmd, err)
	}
	return strings.TrimRight(resp, "\r\n"), nil
}

// Close ends the session with an empty line and closes the connection.
func (c *Client) Close() error {
	_, _ = io.WriteString(c.conn, Terminator)
	return c.conn.Close()
}

// Query opens a connection, sends one command and returns its response.
// It works with both revisions.
func Query(ctx context.Context, addr, cmd string) (string, error) {
	c, err := Dial(ctx, addr)
	if err != nil {
		return "", err
	}
	defer c.conn.Close()

	if deadline, ok := ctx.Deadline(); ok {
		_ = c.conn.SetDeadline(deadline)
	}
	return c.Query(cmd)
}
