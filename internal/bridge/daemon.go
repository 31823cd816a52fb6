// SPDX-License-Identifier: MPL-2.0

package bridge

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"net"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"syscall"
	"time"
	"unicode/utf8"

	"github.com/charmbracelet/log"

	"github.com/devcon/devcon/internal/core/serverbase"
)

const (
	// SocketMode is applied to the socket after bind.
	SocketMode fs.FileMode = 0o660

	defaultReadTimeout = 5 * time.Second
	maxURLBytes        = 64 << 10
	acceptBackoff      = 50 * time.Millisecond
)

type (
	// Daemon serves the bridge socket. A Daemon is single-use: after Stop
	// or a failed Start, create a new one.
	Daemon struct {
		*serverbase.Base

		path        string
		opener      Opener
		logger      *log.Logger
		readTimeout time.Duration
		detached    bool

		mu       sync.Mutex
		listener net.Listener
	}

	// DaemonOption configures a Daemon.
	DaemonOption func(*Daemon)

	// Status describes a daemon. A running daemon writes it next to its
	// socket so other devcon processes can report it.
	Status struct {
		SocketPath string      `yaml:"socket"`
		Listening  bool        `yaml:"listening"`
		Detached   bool        `yaml:"detached"`
		Mode       fs.FileMode `yaml:"mode"`
		PID        int         `yaml:"pid"`
	}
)

// WithDetached records that the daemon runs in a process started by Detach.
func WithDetached(detached bool) DaemonOption {
	return func(d *Daemon) {
		d.detached = detached
	}
}

// WithOpener replaces SystemOpener.
func WithOpener(o Opener) DaemonOption {
	return func(d *Daemon) {
		d.opener = o
	}
}

// WithLogger sets the daemon logger.
func WithLogger(l *log.Logger) DaemonOption {
	return func(d *Daemon) {
		d.logger = l
	}
}

// WithReadTimeout bounds how long a connection may take to send its URL.
func WithReadTimeout(timeout time.Duration) DaemonOption {
	return func(d *Daemon) {
		d.readTimeout = timeout
	}
}

// NewDaemon returns a daemon for the socket at path. Call Start or Run.
func NewDaemon(path string, opts ...DaemonOption) *Daemon {
	d := &Daemon{
		Base:        serverbase.NewBase(),
		path:        path,
		opener:      SystemOpener,
		readTimeout: defaultReadTimeout,
		logger:      log.NewWithOptions(os.Stderr, log.Options{Prefix: "bridge"}),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Path returns the socket path.
func (d *Daemon) Path() string {
	return d.path
}

// Status returns a snapshot of the daemon.
func (d *Daemon) Status() Status {
	return Status{
		SocketPath: d.path,
		Listening:  d.IsRunning(),
		Detached:   d.detached,
		Mode:       SocketMode,
		PID:        os.Getpid(),
	}
}

// Start binds the socket, writes the helper script next to it and starts
// accepting connections. It returns once the daemon is running.
func (d *Daemon) Start(ctx context.Context) error {
	if err := d.Begin(ctx); err != nil {
		return err
	}

	ln, err := d.bind(ctx)
	if err != nil {
		d.Fail(err)
		return err
	}
	d.mu.Lock()
	d.listener = ln
	d.mu.Unlock()

	if err := WriteHelper(HelperPathFor(d.path)); err != nil {
		d.logger.Warn("containers will not get the browser helper", "error", err)
	}

	d.Go(func(ctx context.Context) {
		d.acceptLoop(ctx, ln)
	})
	d.MarkRunning()
	if err := writeStatus(d.path, d.Status()); err != nil {
		d.logger.Warn("failed to record bridge status", "error", err)
	}
	d.logger.Info("browser bridge listening", "socket", d.path, "detached", d.detached)
	return nil
}

// Run starts the daemon and serves until ctx is done or a fatal error is
// reported, then stops it.
func (d *Daemon) Run(ctx context.Context) error {
	if err := d.Start(ctx); err != nil {
		return err
	}
	select {
	case <-ctx.Done():
	case err, ok := <-d.Err():
		if ok && err != nil {
			_ = d.Stop()
			return err
		}
	}
	return d.Stop()
}

// Stop closes the listener, waits for in-flight connections and removes the
// socket file. Calling Stop more than once is safe.
func (d *Daemon) Stop() error {
	if !d.BeginStop() {
		d.Wait()
		return nil
	}

	d.mu.Lock()
	ln := d.listener
	d.mu.Unlock()

	var closeErr error
	if ln != nil {
		if err := ln.Close(); err != nil && !errors.Is(err, net.ErrClosed) {
			closeErr = fmt.Errorf("failed to close listener: %w", err)
		}
	}
	d.Wait()

	for _, p := range []string{d.path, StatusPathFor(d.path)} {
		if err := os.Remove(p); err != nil && !errors.Is(err, fs.ErrNotExist) {
			d.logger.Warn("failed to remove bridge file", "path", p, "error", err)
		}
	}
	d.MarkStopped()
	d.logger.Info("browser bridge stopped")
	return closeErr
}

// bind validates the socket directory, clears a stale socket and listens.
func (d *Daemon) bind(ctx context.Context) (net.Listener, error) {
	dir := filepath.Dir(d.path)
	info, err := os.Stat(dir)
	switch {
	case err != nil:
		return nil, &SocketPathUnavailableError{Path: d.path, Err: err}
	case !info.IsDir():
		return nil, &SocketPathUnavailableError{Path: d.path, Err: fmt.Errorf("%s is not a directory", dir)}
	}
	if err := checkWritable(dir); err != nil {
		return nil, &SocketPathUnavailableError{Path: d.path, Err: err}
	}

	if fi, err := os.Lstat(d.path); err == nil {
		if fi.Mode()&fs.ModeSocket == 0 {
			return nil, &SocketPathUnavailableError{Path: d.path, Err: errors.New("a non-socket file exists at this path")}
		}
		if NewClient(d.path).Reachable(ctx) {
			return nil, &AddressInUseError{Path: d.path}
		}
		d.logger.Debug("removing stale socket", "path", d.path)
		if err := os.Remove(d.path); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, &SocketPathUnavailableError{Path: d.path, Err: err}
		}
	}

	var lc net.ListenConfig
	ln, err := lc.Listen(ctx, "unix", d.path)
	if err != nil {
		if errors.Is(err, syscall.EADDRINUSE) {
			return nil, &AddressInUseError{Path: d.path}
		}
		return nil, &SocketPathUnavailableError{Path: d.path, Err: err}
	}
	if err := os.Chmod(d.path, SocketMode); err != nil {
		_ = ln.Close()
		return nil, &SocketPathUnavailableError{Path: d.path, Err: err}
	}
	return ln, nil
}

func (d *Daemon) acceptLoop(ctx context.Context, ln net.Listener) {
	for {
		conn, err := ln.Accept()
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, net.ErrClosed) {
				return
			}
			d.logger.Warn("accept failed", "error", err)
			select {
			case <-ctx.Done():
				return
			case <-time.After(acceptBackoff):
			}
			continue
		}
		d.Go(func(ctx context.Context) {
			d.handle(ctx, conn)
		})
	}
}

// handle reads one URL and passes it to the opener. Connections that close
// without sending anything are liveness checks.
func (d *Daemon) handle(ctx context.Context, conn net.Conn) {
	defer func() { _ = conn.Close() }()

	if d.readTimeout > 0 {
		_ = conn.SetReadDeadline(time.Now().Add(d.readTimeout))
	}
	url, err := readURL(conn)
	if err != nil {
		d.logger.Warn("dropping request", "error", err)
		return
	}
	if url == "" {
		return
	}

	d.logger.Info("opening url", "url", url)
	if err := d.opener(ctx, url); err != nil {
		d.logger.Error("failed to open url", "url", url, "error", err)
	}
}

// readURL reads a single line, strips the line terminator and checks UTF-8.
// The limit leaves room for a CRLF terminator after a maximal URL.
func readURL(r io.Reader) (string, error) {
	br := bufio.NewReader(io.LimitReader(r, maxURLBytes+2))
	line, err := br.ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return "", fmt.Errorf("failed to read request: %w", err)
	}
	line = strings.TrimSuffix(strings.TrimSuffix(line, "\n"), "\r")
	if len(line) > maxURLBytes {
		return "", fmt.Errorf("%w: longer than %d bytes", ErrInvalidURL, maxURLBytes)
	}
	if !utf8.ValidString(line) {
		return "", fmt.Errorf("%w: not valid UTF-8", ErrInvalidURL)
	}
	return line, nil
}
