// SPDX-License-Identifier: MPL-2.0

package bridge

import (
	"context"
	"fmt"
	"net"
	"strings"
	"time"
	"unicode/utf8"
)

const defaultDialTimeout = 500 * time.Millisecond

// Client talks to a Daemon.
type Client struct {
	path    string
	timeout time.Duration
}

// NewClient returns a client for the socket at path.
func NewClient(path string) *Client {
	return &Client{path: path, timeout: defaultDialTimeout}
}

// SocketPath returns the host socket path.
func (c *Client) SocketPath() string {
	return c.path
}

// HelperPath returns the helper script next to the socket.
func (c *Client) HelperPath() string {
	return HelperPathFor(c.path)
}

// Reachable reports whether a daemon accepts connections on the socket.
func (c *Client) Reachable(ctx context.Context) bool {
	conn, err := c.dial(ctx)
	if err != nil {
		return false
	}
	_ = conn.Close()
	return true
}

// WaitReachable polls until the daemon answers or ctx is done.
func (c *Client) WaitReachable(ctx context.Context, interval time.Duration) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		if c.Reachable(ctx) {
			return nil
		}
		select {
		case <-ctx.Done():
			return fmt.Errorf("bridge daemon on %s did not come up: %w", c.path, ctx.Err())
		case <-ticker.C:
		}
	}
}

// Send delivers a single URL. The daemon does not reply.
func (c *Client) Send(ctx context.Context, url string) error {
	if url == "" || strings.ContainsAny(url, "\r\n") || !utf8.ValidString(url) {
		return fmt.Errorf("%w: %q", ErrInvalidURL, url)
	}
	conn, err := c.dial(ctx)
	if err != nil {
		return fmt.Errorf("failed to connect to %s: %w", c.path, err)
	}
	defer func() { _ = conn.Close() }() // fire-and-forget

	if deadline, ok := ctx.Deadline(); ok {
		_ = conn.SetWriteDeadline(deadline)
	}
	if _, err := conn.Write([]byte(url + "\n")); err != nil {
		return fmt.Errorf("failed to send url: %w", err)
	}
	return nil
}

func (c *Client) dial(ctx context.Context) (net.Conn, error) {
	d := net.Dialer{Timeout: c.timeout}
	return d.DialContext(ctx, "unix", c.path)
}
