// SPDX-License-Identifier: MPL-2.0

package devcontainer

import (
	"bytes"
	_ "embed"
	"errors"
	"fmt"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

//go:embed devcontainer.schema.json
var devcontainerSchema []byte

var (
	configSchemaOnce sync.Once
	configSchema     *Validator
	configSchemaErr  error
)

// Validator checks decoded JSON documents against a compiled JSON schema.
type Validator struct {
	schema *jsonschema.Schema
}

// NewValidator compiles a JSON schema held in memory. name only identifies
// the schema in error messages.
func NewValidator(name string, schemaJSON []byte) (*Validator, error) {
	url := "mem://" + name
	c := jsonschema.NewCompiler()
	if err := c.AddResource(url, bytes.NewReader(schemaJSON)); err != nil {
		return nil, fmt.Errorf("internal error: loading schema %s: %w", name, err)
	}
	s, err := c.Compile(url)
	if err != nil {
		return nil, fmt.Errorf("internal error: compiling schema %s: %w", name, err)
	}
	return &Validator{schema: s}, nil
}

// Validate checks doc, which must come from json.Unmarshal into an any. The
// first leaf violation is reported as a *ParseError for filename.
func (v *Validator) Validate(doc any, filename string) error {
	err := v.schema.Validate(doc)
	if err == nil {
		return nil
	}
	var verr *jsonschema.ValidationError
	if !errors.As(err, &verr) {
		return &ParseError{Path: filename, Err: err}
	}
	leaf := verr
	for len(leaf.Causes) > 0 {
		leaf = leaf.Causes[0]
	}
	location := leaf.InstanceLocation
	if location == "" {
		location = "/"
	}
	return &ParseError{Path: filename, Err: fmt.Errorf("%s: %s", location, leaf.Message)}
}

func devcontainerValidator() (*Validator, error) {
	configSchemaOnce.Do(func() {
		configSchema, configSchemaErr = NewValidator("devcontainer.schema.json", devcontainerSchema)
	})
	return configSchema, configSchemaErr
}
