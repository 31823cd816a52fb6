// SPDX-License-Identifier: MPL-2.0

package container

import (
	"bytes"
	"context"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/testcontainers/testcontainers-go"

	"github.com/devcon/devcon/internal/testutil"
)

// checkTestcontainersAvailable safely checks if testcontainers can be used.
// Returns true if containers are available, false otherwise.
func checkTestcontainersAvailable() (available bool) {
	defer func() {
		if r := recover(); r != nil {
			available = false
		}
	}()

	provider, err := testcontainers.ProviderDocker.GetProvider()
	if err != nil {
		return false
	}
	defer provider.Close()
	return true
}

// TestDockerBackend_Integration drives a real docker daemon through the
// Up/Exec/Stop cycle. Requires docker.
func TestDockerBackend_Integration(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	engine := NewDockerBackend()
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Minute)
	defer cancel()

	if !engine.Available(ctx) {
		t.Skip("skipping container integration tests: docker not available")
	}
	if !checkTestcontainersAvailable() {
		t.Skip("skipping container integration tests: testcontainers provider not available")
	}

	sem := testutil.ContainerSemaphore()
	sem <- struct{}{}
	defer func() { <-sem }()

	project := "it-" + uuid.New().String()[:8]
	opts := UpOptions{
		Project: project,
		Image:   "alpine:latest",
		Env:     map[string]string{"DEVCON": "true"},
	}

	first, err := engine.Up(ctx, opts)
	if err != nil {
		t.Fatalf("Up() error: %v", err)
	}
	t.Cleanup(func() {
		_ = engine.Stop(context.Background(), first.Handle, StopOptions{Remove: true})
	})
	if !first.Created {
		t.Error("first Up() should create the container")
	}

	second, err := engine.Up(ctx, opts)
	if err != nil {
		t.Fatalf("second Up() error: %v", err)
	}
	if second.Created || second.Handle != first.Handle {
		t.Errorf("second Up() = %+v, want reuse of %s", second, first.Handle)
	}

	var stdout bytes.Buffer
	err = engine.Exec(ctx, first.Handle, []string{"sh", "-c", "echo $DEVCON"}, ExecOptions{Stdout: &stdout})
	if err != nil {
		t.Fatalf("Exec() error: %v", err)
	}
	if got := strings.TrimSpace(stdout.String()); got != "true" {
		t.Errorf("Exec() output = %q, want %q", got, "true")
	}

	err = engine.Exec(ctx, first.Handle, []string{"sh", "-c", "exit 5"}, ExecOptions{})
	if rerr, ok := err.(*RuntimeError); !ok || rerr.ExitCode != 5 {
		t.Errorf("Exec() exit 5 = %v, want RuntimeError with code 5", err)
	}

	if err := engine.Stop(ctx, first.Handle, StopOptions{}); err != nil {
		t.Fatalf("Stop() error: %v", err)
	}
	if err := engine.Stop(ctx, first.Handle, StopOptions{}); err != nil {
		t.Errorf("second Stop() should be a no-op, got %v", err)
	}
}
