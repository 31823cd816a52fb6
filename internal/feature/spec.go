// SPDX-License-Identifier: MPL-2.0

package feature

import (
	"errors"
	"fmt"
	"maps"
	"path/filepath"
	"strings"

	"github.com/distribution/reference"
)

const (
	// SourceStored marks features from the user's devcon configuration.
	SourceStored Source = "stored"
	// SourceProject marks features declared in the project's devcontainer.json.
	SourceProject Source = "project"
	// SourceDependency marks features pulled in by another feature's dependsOn.
	SourceDependency Source = "dependency"
)

var (
	// ErrFeature is the sentinel every feature resolution error wraps.
	ErrFeature = errors.New("feature resolution failed")

	// ErrInvalidFeatureID is returned for identifiers that are neither a
	// local path nor an OCI reference.
	ErrInvalidFeatureID = errors.New("invalid feature id")
)

type (
	// ID identifies a feature: an OCI reference such as
	// "ghcr.io/devcontainers/features/node:1" or a path starting with "./".
	// IDs are compared as exact strings.
	ID string

	// Source records where a FeatureSpec was declared.
	Source string

	// FeatureSpec is one declared feature before or after resolution.
	FeatureSpec struct {
		ID            ID
		Options       map[string]any
		DependsOn     []ID
		InstallsAfter []ID
		Source        Source
	}

	// InvalidFeatureIDError is returned when an ID cannot be parsed.
	InvalidFeatureIDError struct {
		Value  ID
		Reason string
	}
)

// Error implements the error interface.
func (e *InvalidFeatureIDError) Error() string {
	return fmt.Sprintf("invalid feature id %q: %s", e.Value, e.Reason)
}

// Unwrap exposes both sentinels.
func (e *InvalidFeatureIDError) Unwrap() []error { return []error{ErrInvalidFeatureID, ErrFeature} }

// String returns the identifier text.
func (id ID) String() string { return string(id) }

// IsLocal reports whether the feature lives in the project tree.
func (id ID) IsLocal() bool {
	s := string(id)
	return strings.HasPrefix(s, "./") || strings.HasPrefix(s, "../") || filepath.IsAbs(s)
}

// Validate checks that the ID is a local path or a parseable OCI reference.
func (id ID) Validate() error {
	if strings.TrimSpace(string(id)) == "" {
		return &InvalidFeatureIDError{Value: id, Reason: "empty"}
	}
	if id.IsLocal() {
		return nil
	}
	if _, err := reference.ParseNormalizedNamed(string(id)); err != nil {
		return &InvalidFeatureIDError{Value: id, Reason: err.Error()}
	}
	return nil
}

// ShortName returns the last path element without tag or digest, used for
// directory names in the build context.
func (id ID) ShortName() string {
	s := strings.TrimRight(string(id), "/")
	if at := strings.IndexByte(s, '@'); at >= 0 {
		s = s[:at]
	}
	s = s[strings.LastIndexByte(s, '/')+1:]
	if colon := strings.IndexByte(s, ':'); colon >= 0 {
		s = s[:colon]
	}
	if s == "" || s == "." || s == ".." {
		return "feature"
	}
	return s
}

// Clone returns a deep copy of the option map and slices.
func (s FeatureSpec) Clone() FeatureSpec {
	out := s
	out.Options = maps.Clone(s.Options)
	out.DependsOn = append([]ID(nil), s.DependsOn...)
	out.InstallsAfter = append([]ID(nil), s.InstallsAfter...)
	return out
}

// IDs converts strings to feature IDs.
func IDs(values ...string) []ID {
	out := make([]ID, 0, len(values))
	for _, v := range values {
		out = append(out, ID(v))
	}
	return out
}
