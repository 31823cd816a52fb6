// SPDX-License-Identifier: MPL-2.0

package container

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/docker/docker/api/types/mount"
)

// ErrInvalidMount is the sentinel error wrapped by InvalidMountError.
var ErrInvalidMount = errors.New("invalid mount")

type (
	// Mount is a single filesystem mount applied when a container is created.
	// Type follows the docker mount model (bind, volume, tmpfs).
	Mount struct {
		Type     mount.Type `json:"type"`
		Source   string     `json:"source,omitempty"`
		Target   string     `json:"target"`
		ReadOnly bool       `json:"readonly,omitempty"`
	}

	// InvalidMountError is returned when a mount specification cannot be used.
	InvalidMountError struct {
		Value  string
		Reason string
	}
)

// Error implements the error interface.
func (e *InvalidMountError) Error() string {
	return fmt.Sprintf("invalid mount %q: %s", e.Value, e.Reason)
}

// Unwrap returns ErrInvalidMount for errors.Is() compatibility.
func (e *InvalidMountError) Unwrap() error { return ErrInvalidMount }

// BindMount returns a bind mount of a host path.
func BindMount(source, target string, readOnly bool) Mount {
	return Mount{Type: mount.TypeBind, Source: source, Target: target, ReadOnly: readOnly}
}

// Validate checks that the mount can be passed to a runtime.
func (m Mount) Validate() error {
	switch m.Type {
	case mount.TypeBind, mount.TypeVolume:
		if strings.TrimSpace(m.Source) == "" {
			return &InvalidMountError{Value: m.String(), Reason: "source is required"}
		}
	case mount.TypeTmpfs:
	default:
		return &InvalidMountError{Value: m.String(), Reason: fmt.Sprintf("unsupported type %q (valid: bind, volume, tmpfs)", m.Type)}
	}
	if strings.TrimSpace(m.Target) == "" {
		return &InvalidMountError{Value: m.String(), Reason: "target is required"}
	}
	return nil
}

// String returns the mount in docker `--mount` syntax.
func (m Mount) String() string {
	parts := []string{"type=" + string(m.Type)}
	if m.Source != "" {
		parts = append(parts, "source="+m.Source)
	}
	parts = append(parts, "target="+m.Target)
	if m.ReadOnly {
		parts = append(parts, "readonly")
	}
	return strings.Join(parts, ",")
}

// VolumeString returns the mount in `source:target[:ro]` form, for runtimes
// that only accept -v.
func (m Mount) VolumeString() string {
	s := m.Source + ":" + m.Target
	if m.ReadOnly {
		s += ":ro"
	}
	return s
}

// ParseMount parses either the `--mount` syntax
// ("type=bind,source=/a,target=/b,readonly") or the short volume syntax
// ("/a:/b[:ro]"). Short specs whose source is not an absolute path are named volumes.
func ParseMount(spec string) (Mount, error) {
	spec = strings.TrimSpace(spec)
	if spec == "" {
		return Mount{}, &InvalidMountError{Value: spec, Reason: "empty specification"}
	}

	var m Mount
	if strings.Contains(spec, "=") {
		m = Mount{Type: mount.TypeBind}
		for field := range strings.SplitSeq(spec, ",") {
			key, value, _ := strings.Cut(strings.TrimSpace(field), "=")
			switch strings.ToLower(key) {
			case "type":
				m.Type = mount.Type(value)
			case "source", "src":
				m.Source = value
			case "target", "dst", "destination":
				m.Target = value
			case "readonly", "ro":
				m.ReadOnly = value == "" || value == "true" || value == "1"
			case "consistency", "bind-propagation":
				// Accepted for compatibility; runtimes apply their defaults.
			default:
				return Mount{}, &InvalidMountError{Value: spec, Reason: fmt.Sprintf("unknown field %q", key)}
			}
		}
	} else {
		parts := strings.Split(spec, ":")
		if len(parts) < 2 || len(parts) > 3 {
			return Mount{}, &InvalidMountError{Value: spec, Reason: "expected source:target[:ro]"}
		}
		m = Mount{Type: mount.TypeBind, Source: parts[0], Target: parts[1]}
		if !strings.HasPrefix(m.Source, "/") && !strings.HasPrefix(m.Source, ".") {
			m.Type = mount.TypeVolume
		}
		if len(parts) == 3 {
			if parts[2] != "ro" && parts[2] != "rw" {
				return Mount{}, &InvalidMountError{Value: spec, Reason: fmt.Sprintf("unknown option %q", parts[2])}
			}
			m.ReadOnly = parts[2] == "ro"
		}
	}

	if err := m.Validate(); err != nil {
		return Mount{}, err
	}
	return m, nil
}

// UnmarshalJSON accepts both the string and the object form used by
// devcontainer.json and devcontainer-feature.json.
func (m *Mount) UnmarshalJSON(data []byte) error {
	var spec string
	if err := json.Unmarshal(data, &spec); err == nil {
		parsed, err := ParseMount(spec)
		if err != nil {
			return err
		}
		*m = parsed
		return nil
	}

	var obj struct {
		Type     string `json:"type"`
		Source   string `json:"source"`
		Target   string `json:"target"`
		ReadOnly bool   `json:"readonly"`
	}
	if err := json.Unmarshal(data, &obj); err != nil {
		return &InvalidMountError{Value: string(data), Reason: "expected a string or an object"}
	}
	parsed := Mount{Type: mount.Type(obj.Type), Source: obj.Source, Target: obj.Target, ReadOnly: obj.ReadOnly}
	if parsed.Type == "" {
		parsed.Type = mount.TypeBind
	}
	if err := parsed.Validate(); err != nil {
		return err
	}
	*m = parsed
	return nil
}

// MergeMounts appends extra to base, replacing any earlier mount that targets
// the same container path. Order of first appearance is kept.
func MergeMounts(base []Mount, extra ...Mount) []Mount {
	out := make([]Mount, 0, len(base)+len(extra))
	index := make(map[string]int, len(base)+len(extra))
	for _, m := range append(append([]Mount(nil), base...), extra...) {
		if i, ok := index[m.Target]; ok {
			out[i] = m
			continue
		}
		index[m.Target] = len(out)
		out = append(out, m)
	}
	return out
}
