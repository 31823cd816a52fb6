// SPDX-License-Identifier: MPL-2.0

package session

import (
	"crypto/sha256"
	"encoding/hex"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/devcon/devcon/internal/container"
	"github.com/devcon/devcon/internal/feature"
)

// Session is one open/shell/stop invocation against a project's container.
// The orchestrator is its only writer; the exported fields are filled in as
// the session advances and are safe to read once the call that returned the
// session has finished.
type Session struct {
	ID          uuid.UUID
	ProjectPath string
	// ProjectID is the value of the devcon.project container label.
	ProjectID string
	// Backend is chosen once during Building and never changes.
	Backend container.BackendType
	Handle  container.Handle
	Image   container.ImageTag
	// Mounts is the mount set requested for the container.
	Mounts []container.Mount
	// Bridged is true when the browser bridge socket and helper are mounted
	// in the container.
	Bridged bool
	// Ports are the ports the container publishes on the host loopback.
	Ports     []container.PortForward
	StartedAt time.Time

	mu        sync.Mutex
	stage     Stage
	hookIndex int
	history   []Stage
	err       error

	// backend and effective are kept for follow-up calls on a Ready session.
	backend   container.Backend
	effective *feature.EffectiveConfig
	created   bool
	started   bool
	// execMu serializes exec calls against the container.
	execMu sync.Mutex
}

func newSession(projectPath string, now time.Time) *Session {
	return &Session{
		ID:          uuid.New(),
		ProjectPath: projectPath,
		ProjectID:   ProjectID(projectPath),
		StartedAt:   now,
		stage:       StageRequested,
		history:     []Stage{StageRequested},
	}
}

// ProjectID derives the container label value for a project path.
func ProjectID(projectPath string) string {
	sum := sha256.Sum256([]byte(projectPath))
	return hex.EncodeToString(sum[:])[:16]
}

// Stage returns the current stage.
func (s *Session) Stage() Stage {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stage
}

// HookIndex returns the number of hook commands started so far.
func (s *Session) HookIndex() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.hookIndex
}

// History returns every stage the session has been in, in order.
func (s *Session) History() []Stage {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.history)
}

// Err returns the failure reason once the session is Failed.
func (s *Session) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

// Created reports whether this session created the container.
func (s *Session) Created() bool { return s.created }

// Effective returns the configuration the container was built from.
func (s *Session) Effective() *feature.EffectiveConfig { return s.effective }

// transition moves the session to next if the stage graph allows it.
func (s *Session) transition(next Stage) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.stage.CanTransition(next) {
		return &InvalidTransitionError{From: s.stage, To: next}
	}
	s.stage = next
	s.history = append(s.history, next)
	return nil
}

// nextHook records that another hook command is starting.
func (s *Session) nextHook() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.hookIndex++
	return s.hookIndex
}

// fail moves the session to Failed and returns err. A session that is
// already terminal keeps its stage.
func (s *Session) fail(err error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.stage.IsTerminal() {
		s.stage = StageFailed
		s.history = append(s.history, StageFailed)
		s.err = err
	}
	return err
}
