// SPDX-License-Identifier: MPL-2.0

package devcontainer

import (
	"encoding/json"
	"errors"
	"fmt"
	"maps"
	"slices"
	"strings"

	"mvdan.cc/sh/v3/syntax"
)

const (
	// OnCreate runs once, right after the container is created.
	OnCreate HookStage = "onCreateCommand"
	// UpdateContent runs after onCreate when workspace content is available.
	UpdateContent HookStage = "updateContentCommand"
	// PostCreate runs after the container is fully set up.
	PostCreate HookStage = "postCreateCommand"
	// PostStart runs every time the container is started.
	PostStart HookStage = "postStartCommand"
	// PostAttach runs every time a user attaches to the container.
	PostAttach HookStage = "postAttachCommand"
)

// ErrInvalidLifecycleCommand is the sentinel wrapped by InvalidLifecycleCommandError.
var ErrInvalidLifecycleCommand = errors.New("invalid lifecycle command")

type (
	// HookStage names a lifecycle hook by its devcontainer.json key.
	HookStage string

	// LifecycleCommand is a hook value in any of the three devcontainer.json
	// forms. A string runs through /bin/sh, an array runs as argv without a
	// shell, and an object holds named commands of either form.
	LifecycleCommand struct {
		Shell string
		Args  []string
		Named map[string]LifecycleCommand
	}

	// InvalidLifecycleCommandError is returned when a hook cannot be decoded
	// or a shell-form command does not parse.
	InvalidLifecycleCommandError struct {
		Name   string
		Reason string
	}
)

// FreshContainerStages are the stages run for a new container, in order.
var FreshContainerStages = []HookStage{OnCreate, UpdateContent, PostCreate, PostStart}

// AllStages lists every hook stage devcon runs.
var AllStages = []HookStage{OnCreate, UpdateContent, PostCreate, PostStart, PostAttach}

// Error implements the error interface.
func (e *InvalidLifecycleCommandError) Error() string {
	if e.Name == "" {
		return "invalid lifecycle command: " + e.Reason
	}
	return fmt.Sprintf("invalid lifecycle command %q: %s", e.Name, e.Reason)
}

// Unwrap returns ErrInvalidLifecycleCommand for errors.Is() compatibility.
func (e *InvalidLifecycleCommandError) Unwrap() error { return ErrInvalidLifecycleCommand }

// String returns the devcontainer.json key of the stage.
func (s HookStage) String() string { return string(s) }

// Marker returns the name of the file that records a completed stage.
func (s HookStage) Marker() string {
	return strings.TrimSuffix(string(s), "Command")
}

// RunsOncePerContainer reports whether the stage is guarded by a marker for
// the container's lifetime. postStart runs once per start; postAttach on
// every attach.
func (s HookStage) RunsOncePerContainer() bool {
	switch s {
	case OnCreate, UpdateContent, PostCreate:
		return true
	default:
		return false
	}
}

// IsZero reports whether no command is configured.
func (c LifecycleCommand) IsZero() bool {
	return c.Shell == "" && len(c.Args) == 0 && len(c.Named) == 0
}

// Commands returns the argv lists to run, in order. Named commands run one
// after another sorted by name.
func (c LifecycleCommand) Commands() [][]string {
	switch {
	case c.Shell != "":
		return [][]string{{"/bin/sh", "-c", c.Shell}}
	case len(c.Args) > 0:
		return [][]string{slices.Clone(c.Args)}
	}
	var out [][]string
	for _, name := range slices.Sorted(maps.Keys(c.Named)) {
		out = append(out, c.Named[name].Commands()...)
	}
	return out
}

// String renders the command for logs, quoting argv elements as a shell would.
func (c LifecycleCommand) String() string {
	cmds := c.Commands()
	parts := make([]string, 0, len(cmds))
	for _, argv := range cmds {
		if len(argv) == 3 && argv[0] == "/bin/sh" && argv[1] == "-c" {
			parts = append(parts, argv[2])
			continue
		}
		parts = append(parts, QuoteArgs(argv))
	}
	return strings.Join(parts, "; ")
}

// Validate checks that every shell-form command parses as POSIX shell.
func (c LifecycleCommand) Validate() error {
	return c.validate("")
}

func (c LifecycleCommand) validate(name string) error {
	if c.Shell != "" {
		parser := syntax.NewParser(syntax.Variant(syntax.LangBash))
		if _, err := parser.Parse(strings.NewReader(c.Shell), name); err != nil {
			return &InvalidLifecycleCommandError{Name: name, Reason: err.Error()}
		}
	}
	for _, n := range slices.Sorted(maps.Keys(c.Named)) {
		if err := c.Named[n].validate(n); err != nil {
			return err
		}
	}
	return nil
}

// UnmarshalJSON accepts a string, an array of strings, or an object whose
// values are strings or arrays.
func (c *LifecycleCommand) UnmarshalJSON(data []byte) error {
	return c.decode(data, true)
}

func (c *LifecycleCommand) decode(data []byte, allowObject bool) error {
	*c = LifecycleCommand{}
	trimmed := strings.TrimSpace(string(data))
	switch {
	case trimmed == "null":
		return nil
	case strings.HasPrefix(trimmed, `"`):
		return json.Unmarshal(data, &c.Shell)
	case strings.HasPrefix(trimmed, "["):
		if err := json.Unmarshal(data, &c.Args); err != nil {
			return &InvalidLifecycleCommandError{Reason: "array elements must be strings"}
		}
		return nil
	case strings.HasPrefix(trimmed, "{") && allowObject:
		var raw map[string]json.RawMessage
		if err := json.Unmarshal(data, &raw); err != nil {
			return err
		}
		c.Named = make(map[string]LifecycleCommand, len(raw))
		for name, v := range raw {
			var sub LifecycleCommand
			if err := sub.decode(v, false); err != nil {
				return &InvalidLifecycleCommandError{Name: name, Reason: "must be a string or an array of strings"}
			}
			c.Named[name] = sub
		}
		return nil
	default:
		return &InvalidLifecycleCommandError{Reason: "must be a string, an array or an object"}
	}
}

// QuoteArgs joins argv into a single shell-safe command line.
func QuoteArgs(argv []string) string {
	quoted := make([]string, 0, len(argv))
	for _, a := range argv {
		q, err := syntax.Quote(a, syntax.LangBash)
		if err != nil {
			// Only strings with NUL bytes cannot be quoted; fall back to %q.
			q = fmt.Sprintf("%q", a)
		}
		quoted = append(quoted, q)
	}
	return strings.Join(quoted, " ")
}
