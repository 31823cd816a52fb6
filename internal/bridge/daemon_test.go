// SPDX-License-Identifier: MPL-2.0

//go:build !windows

package bridge

import (
	"context"
	"errors"
	"io"
	"io/fs"
	"net"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/charmbracelet/log"

	"github.com/devcon/devcon/internal/testutil"
)

// socketDir returns a short directory; t.TempDir paths can exceed the unix
// socket path limit.
func socketDir(t *testing.T) string {
	t.Helper()
	dir, err := os.MkdirTemp("", "dcb")
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = os.RemoveAll(dir) })
	return dir
}

func startDaemon(t *testing.T, path string) (*Daemon, <-chan string) {
	t.Helper()
	urls := make(chan string, 8)
	d := NewDaemon(path,
		WithLogger(log.New(io.Discard)),
		WithReadTimeout(200*time.Millisecond),
		WithOpener(func(_ context.Context, url string) error {
			urls <- url
			return nil
		}),
	)
	if err := d.Start(context.Background()); err != nil {
		t.Fatalf("Start() error: %v", err)
	}
	t.Cleanup(func() { testutil.MustStop(t, d) })
	return d, urls
}

func expectURL(t *testing.T, urls <-chan string, want string) {
	t.Helper()
	select {
	case got := <-urls:
		if got != want {
			t.Errorf("opened %q, want %q", got, want)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("timed out waiting for %q", want)
	}
}

func TestDaemon_ForwardsURLs(t *testing.T) {
	t.Parallel()

	path := filepath.Join(socketDir(t), SocketName)
	_, urls := startDaemon(t, path)
	c := NewClient(path)

	ctx := context.Background()
	if err := c.Send(ctx, "https://example.com/a?b=c"); err != nil {
		t.Fatalf("Send() error: %v", err)
	}
	expectURL(t, urls, "https://example.com/a?b=c")

	if err := c.Send(ctx, "https://example.com/second"); err != nil {
		t.Fatalf("second Send() error: %v", err)
	}
	expectURL(t, urls, "https://example.com/second")
}

func TestDaemon_StalledClientDoesNotBlock(t *testing.T) {
	t.Parallel()

	path := filepath.Join(socketDir(t), SocketName)
	_, urls := startDaemon(t, path)

	stalled, err := net.Dial("unix", path)
	if err != nil {
		t.Fatal(err)
	}
	defer testutil.MustClose(t, stalled)
	if _, err := stalled.Write([]byte("https://half")); err != nil {
		t.Fatal(err)
	}

	if err := NewClient(path).Send(context.Background(), "https://example.com"); err != nil {
		t.Fatalf("Send() error: %v", err)
	}
	expectURL(t, urls, "https://example.com")
}

func TestDaemon_SocketModeAndHelper(t *testing.T) {
	t.Parallel()

	dir := socketDir(t)
	path := filepath.Join(dir, SocketName)
	d, _ := startDaemon(t, path)

	info, err := os.Stat(path)
	if err != nil {
		t.Fatal(err)
	}
	if info.Mode()&fs.ModeSocket == 0 || info.Mode().Perm() != SocketMode {
		t.Errorf("socket mode = %v", info.Mode())
	}

	helper, err := os.Stat(filepath.Join(dir, HelperName))
	if err != nil {
		t.Fatalf("helper not written: %v", err)
	}
	if helper.Mode().Perm() != 0o755 {
		t.Errorf("helper mode = %v, want 0755", helper.Mode().Perm())
	}

	if err := d.Stop(); err != nil {
		t.Fatalf("Stop() error: %v", err)
	}
	if err := d.Stop(); err != nil {
		t.Fatalf("second Stop() error: %v", err)
	}
	if _, err := os.Lstat(path); !errors.Is(err, fs.ErrNotExist) {
		t.Errorf("socket still present after Stop: %v", err)
	}
}

func TestDaemon_Status(t *testing.T) {
	t.Parallel()

	path := filepath.Join(socketDir(t), SocketName)
	d := NewDaemon(path, WithLogger(log.New(io.Discard)), WithDetached(true))
	if d.Status().Listening {
		t.Error("Listening before Start")
	}
	if err := d.Start(context.Background()); err != nil {
		t.Fatalf("Start() error: %v", err)
	}

	st, err := ReadStatus(path)
	if err != nil {
		t.Fatalf("ReadStatus() error: %v", err)
	}
	want := Status{SocketPath: path, Listening: true, Detached: true, Mode: SocketMode, PID: os.Getpid()}
	if *st != want {
		t.Errorf("ReadStatus() = %+v, want %+v", *st, want)
	}

	if err := d.Stop(); err != nil {
		t.Fatalf("Stop() error: %v", err)
	}
	if d.Status().Listening {
		t.Error("Listening after Stop")
	}
	if _, err := ReadStatus(path); !errors.Is(err, fs.ErrNotExist) {
		t.Errorf("status file still present after Stop: %v", err)
	}
}

func TestDaemon_AddressInUse(t *testing.T) {
	t.Parallel()

	path := filepath.Join(socketDir(t), SocketName)
	_, urls := startDaemon(t, path)

	second := NewDaemon(path, WithLogger(log.New(io.Discard)))
	err := second.Start(context.Background())
	var inUse *AddressInUseError
	if !errors.As(err, &inUse) || inUse.Path != path {
		t.Fatalf("expected AddressInUseError, got %v", err)
	}
	if !errors.Is(err, ErrBridge) {
		t.Error("AddressInUseError should wrap ErrBridge")
	}
	_ = second.Stop()

	if err := NewClient(path).Send(context.Background(), "https://still-alive"); err != nil {
		t.Fatalf("first daemon unreachable: %v", err)
	}
	expectURL(t, urls, "https://still-alive")
}

func TestDaemon_RemovesStaleSocket(t *testing.T) {
	t.Parallel()

	path := filepath.Join(socketDir(t), SocketName)
	ln, err := net.Listen("unix", path)
	if err != nil {
		t.Fatal(err)
	}
	ln.(*net.UnixListener).SetUnlinkOnClose(false)
	_ = ln.Close()
	if _, err := os.Lstat(path); err != nil {
		t.Fatalf("stale socket not left behind: %v", err)
	}

	_, urls := startDaemon(t, path)
	if err := NewClient(path).Send(context.Background(), "https://rebound"); err != nil {
		t.Fatal(err)
	}
	expectURL(t, urls, "https://rebound")
}

func TestDaemon_SocketPathUnavailable(t *testing.T) {
	t.Parallel()

	dir := socketDir(t)
	regular := filepath.Join(dir, "file.sock")
	if err := os.WriteFile(regular, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}

	for name, path := range map[string]string{
		"missing parent": filepath.Join(dir, "nope", SocketName),
		"regular file":   regular,
	} {
		d := NewDaemon(path, WithLogger(log.New(io.Discard)))
		err := d.Start(context.Background())
		var unavailable *SocketPathUnavailableError
		if !errors.As(err, &unavailable) {
			t.Errorf("%s: expected SocketPathUnavailableError, got %v", name, err)
		}
		if d.State().String() != "failed" {
			t.Errorf("%s: state = %s", name, d.State())
		}
	}
	if data, err := os.ReadFile(regular); err != nil || string(data) != "x" {
		t.Error("a regular file at the socket path must be left alone")
	}
}

func TestDaemon_RunStopsOnCancel(t *testing.T) {
	t.Parallel()

	path := filepath.Join(socketDir(t), SocketName)
	d := NewDaemon(path, WithLogger(log.New(io.Discard)))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- d.Run(ctx) }()

	waitCtx, waitCancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer waitCancel()
	if err := NewClient(path).WaitReachable(waitCtx, 10*time.Millisecond); err != nil {
		t.Fatal(err)
	}
	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Run() error: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Run() did not return after cancel")
	}
	if NewClient(path).Reachable(context.Background()) {
		t.Error("socket still reachable after Run returned")
	}
}

func TestReadURL(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		in      string
		want    string
		wantErr bool
	}{
		{"newline terminated", "https://a.test/x\n", "https://a.test/x", false},
		{"crlf", "https://a.test\r\n", "https://a.test", false},
		{"no newline", "https://a.test", "https://a.test", false},
		{"only first line", "https://one\nhttps://two\n", "https://one", false},
		{"empty line", "", "", false},
		{"not a url is still forwarded", "file:///tmp/x y\n", "file:///tmp/x y", false},
		{"invalid utf8", "https://\xff\n", "", true},
		{"longest url", strings.Repeat("a", maxURLBytes) + "\n", strings.Repeat("a", maxURLBytes), false},
		{"longest url crlf", strings.Repeat("a", maxURLBytes) + "\r\n", strings.Repeat("a", maxURLBytes), false},
		{"too long", strings.Repeat("a", maxURLBytes+1), "", true},
		{"too long with newline", strings.Repeat("a", maxURLBytes+1) + "\n", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got, err := readURL(strings.NewReader(tt.in))
			if (err != nil) != tt.wantErr {
				t.Fatalf("readURL() error = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.wantErr && !errors.Is(err, ErrInvalidURL) {
				t.Errorf("error %v should wrap ErrInvalidURL", err)
			}
			if got != tt.want {
				t.Errorf("readURL() = %q, want %q", got, tt.want)
			}
		})
	}
}
