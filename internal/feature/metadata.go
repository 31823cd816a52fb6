// SPDX-License-Identifier: MPL-2.0

package feature

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"sort"
	"strings"
	"sync"

	"github.com/tidwall/gjson"
	"mvdan.cc/sh/v3/syntax"

	"github.com/devcon/devcon/internal/container"
	"github.com/devcon/devcon/internal/devcontainer"
	"github.com/devcon/devcon/pkg/cueutil"
)

const (
	// MetadataFile is the feature manifest inside every feature directory.
	MetadataFile = "devcontainer-feature.json"
	// InstallScript is the entry point run while building the image.
	InstallScript = "install.sh"
	// EnvFileName is the option file sourced by InstallScript.
	EnvFileName = "devcontainer-features.env"
)

//go:embed devcontainer-feature.schema.json
var featureSchema []byte

var (
	metadataSchemaOnce sync.Once
	metadataSchema     *devcontainer.Validator
	metadataSchemaErr  error
)

type (
	// Metadata is the parsed devcontainer-feature.json of one feature.
	Metadata struct {
		ID            string                `json:"id"`
		Version       string                `json:"version"`
		Name          string                `json:"name"`
		Description   string                `json:"description"`
		Options       map[string]OptionSpec `json:"options"`
		InstallsAfter []ID                  `json:"installsAfter"`
		ContainerEnv  map[string]string     `json:"containerEnv"`
		Mounts        []container.Mount     `json:"mounts"`

		// DependsOn keeps the manifest's declaration order.
		DependsOn []Dependency `json:"-"`
		// Hooks are lifecycle commands the feature contributes.
		Hooks map[devcontainer.HookStage]devcontainer.LifecycleCommand `json:"-"`
		// Dir is the directory the feature was read from.
		Dir string `json:"-"`
	}

	// OptionSpec describes one user-configurable option.
	OptionSpec struct {
		Type        string   `json:"type"`
		Default     any      `json:"default"`
		Description string   `json:"description"`
		Enum        []string `json:"enum"`
		Proposals   []string `json:"proposals"`
	}

	// Dependency is one dependsOn entry with the options requested for it.
	Dependency struct {
		ID      ID
		Options map[string]any
	}

	// MetadataError is returned when a feature manifest is missing or invalid.
	MetadataError struct {
		ID  ID
		Err error
	}
)

// Error implements the error interface.
func (e *MetadataError) Error() string {
	return fmt.Sprintf("feature %s: %v", e.ID, e.Err)
}

// Unwrap exposes ErrFeature and the cause.
func (e *MetadataError) Unwrap() []error { return []error{ErrFeature, e.Err} }

// ReadMetadata loads devcontainer-feature.json from dir.
func ReadMetadata(id ID, dir string) (*Metadata, error) {
	data, err := os.ReadFile(filepath.Join(dir, MetadataFile))
	if err != nil {
		return nil, &MetadataError{ID: id, Err: err}
	}
	m, err := ParseMetadata(data, filepath.Join(dir, MetadataFile))
	if err != nil {
		return nil, &MetadataError{ID: id, Err: err}
	}
	m.Dir = dir
	return m, nil
}

// ParseMetadata decodes and validates a devcontainer-feature.json document.
func ParseMetadata(data []byte, path string) (*Metadata, error) {
	canonical, err := cueutil.NormalizeJSON(data, cueutil.WithFilename(filepath.Base(path)))
	if err != nil {
		return nil, err
	}
	var doc any
	if err := json.Unmarshal(canonical, &doc); err != nil {
		return nil, err
	}
	validator, err := metadataValidator()
	if err != nil {
		return nil, err
	}
	if err := validator.Validate(doc, path); err != nil {
		return nil, err
	}

	var m Metadata
	if err := json.Unmarshal(canonical, &m); err != nil {
		return nil, err
	}
	if m.Hooks, err = devcontainer.DecodeHooks(canonical); err != nil {
		return nil, err
	}
	gjson.GetBytes(canonical, "dependsOn").ForEach(func(key, value gjson.Result) bool {
		dep := Dependency{ID: ID(key.String()), Options: map[string]any{}}
		if opts, ok := value.Value().(map[string]any); ok {
			dep.Options = opts
		}
		m.DependsOn = append(m.DependsOn, dep)
		return true
	})
	return &m, nil
}

// DependencyIDs returns the dependsOn IDs in declaration order.
func (m *Metadata) DependencyIDs() []ID {
	out := make([]ID, 0, len(m.DependsOn))
	for _, d := range m.DependsOn {
		out = append(out, d.ID)
	}
	return out
}

// ApplyMetadata copies the manifest's ordering claims into spec. A dependsOn
// list declared by the user is kept as is; installsAfter hints are unioned.
func ApplyMetadata(spec FeatureSpec, m *Metadata) FeatureSpec {
	out := spec.Clone()
	if m == nil {
		return out
	}
	if len(out.DependsOn) == 0 {
		out.DependsOn = m.DependencyIDs()
	}
	for _, after := range m.InstallsAfter {
		if !slices.Contains(out.InstallsAfter, after) {
			out.InstallsAfter = append(out.InstallsAfter, after)
		}
	}
	return out
}

// ResolvedOptions returns every declared option with user values applied
// over the defaults. Options the user set that the manifest does not declare
// are passed through.
func (m *Metadata) ResolvedOptions(user map[string]any) map[string]any {
	out := make(map[string]any, len(m.Options)+len(user))
	for name, opt := range m.Options {
		if opt.Default != nil {
			out[name] = opt.Default
		}
	}
	for name, v := range user {
		out[name] = v
	}
	return out
}

// EnvFile renders the devcontainer-features.env content for the given user
// options: one NAME=value line per option, sorted by name.
func (m *Metadata) EnvFile(user map[string]any) (string, error) {
	opts := m.ResolvedOptions(user)
	names := make([]string, 0, len(opts))
	for name := range opts {
		names = append(names, name)
	}
	sort.Strings(names)

	var b strings.Builder
	for _, name := range names {
		quoted, err := syntax.Quote(optionString(opts[name]), syntax.LangPOSIX)
		if err != nil {
			return "", fmt.Errorf("option %s: %w", name, err)
		}
		fmt.Fprintf(&b, "%s=%s\n", OptionEnvName(name), quoted)
	}
	return b.String(), nil
}

// OptionEnvName converts an option name to its environment variable:
// uppercased, with every character outside [A-Z0-9_] replaced by '_'.
func OptionEnvName(name string) string {
	upper := strings.ToUpper(name)
	b := []byte(upper)
	for i, c := range b {
		if (c < 'A' || c > 'Z') && (c < '0' || c > '9') && c != '_' {
			b[i] = '_'
		}
	}
	if len(b) > 0 && b[0] >= '0' && b[0] <= '9' {
		return "_" + string(b)
	}
	return string(b)
}

func optionString(v any) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return val
	case bool:
		if val {
			return "true"
		}
		return "false"
	default:
		return fmt.Sprint(val)
	}
}

func metadataValidator() (*devcontainer.Validator, error) {
	metadataSchemaOnce.Do(func() {
		metadataSchema, metadataSchemaErr = devcontainer.NewValidator("devcontainer-feature.schema.json", featureSchema)
	})
	return metadataSchema, metadataSchemaErr
}
