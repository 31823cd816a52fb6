// SPDX-License-Identifier: MPL-2.0

package cueutil

import (
	"fmt"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
)

// ParseResult contains the result of a successful CUE parse operation.
type ParseResult[T any] struct {
	// Value is the decoded Go struct.
	Value *T

	// Unified is the unified CUE value, kept for callers that need to walk
	// fields in declaration order.
	Unified cue.Value
}

// ParseAndDecode compiles the embedded schema, unifies the user data with
// the definition at schemaPath, validates the result and decodes it into T.
// Errors carry the file name and the CUE path of the offending field.
func ParseAndDecode[T any](schema, data []byte, schemaPath string, opts ...Option) (*ParseResult[T], error) {
	options := applyOptions(opts)
	filename := options.displayName()

	if err := CheckFileSize(data, options.maxFileSize, filename); err != nil {
		return nil, err
	}

	ctx := cuecontext.New()

	schemaValue := ctx.CompileBytes(schema)
	if schemaValue.Err() != nil {
		return nil, fmt.Errorf("internal error: failed to compile schema: %w", schemaValue.Err())
	}

	userValue := ctx.CompileBytes(data, cue.Filename(filename))
	if userValue.Err() != nil {
		return nil, FormatError(userValue.Err(), filename)
	}

	schemaRoot := schemaValue.LookupPath(cue.ParsePath(schemaPath))
	if schemaRoot.Err() != nil {
		return nil, fmt.Errorf("internal error: schema definition %s not found: %w", schemaPath, schemaRoot.Err())
	}

	unified := schemaRoot.Unify(userValue)
	if err := unified.Validate(cue.Concrete(options.concrete)); err != nil {
		return nil, FormatError(err, filename)
	}

	var result T
	if err := unified.Decode(&result); err != nil {
		return nil, FormatError(err, filename)
	}

	return &ParseResult[T]{
		Value:   &result,
		Unified: unified,
	}, nil
}

// NormalizeJSON compiles a JSON document with the CUE compiler and returns
// canonical JSON. JSON is a subset of CUE, so this is how devcontainer.json
// files with `//` comments and trailing commas are accepted. Object key order
// is preserved.
func NormalizeJSON(data []byte, opts ...Option) ([]byte, error) {
	options := applyOptions(opts)
	filename := options.displayName()

	if err := CheckFileSize(data, options.maxFileSize, filename); err != nil {
		return nil, err
	}

	value := cuecontext.New().CompileBytes(stripBlockComments(data), cue.Filename(filename))
	if value.Err() != nil {
		return nil, FormatError(value.Err(), filename)
	}
	if err := value.Validate(cue.Concrete(true)); err != nil {
		return nil, FormatError(err, filename)
	}

	out, err := value.MarshalJSON()
	if err != nil {
		return nil, FormatError(err, filename)
	}
	return out, nil
}

// stripBlockComments blanks out /* */ comments outside string literals.
// CUE only understands line comments. Newlines inside a comment are kept so
// error positions still point at the right line.
func stripBlockComments(data []byte) []byte {
	out := make([]byte, 0, len(data))
	inString, inComment := false, false
	for i := 0; i < len(data); i++ {
		c := data[i]
		switch {
		case inComment:
			if c == '*' && i+1 < len(data) && data[i+1] == '/' {
				inComment = false
				out = append(out, ' ', ' ')
				i++
				continue
			}
			if c == '\n' {
				out = append(out, c)
			} else {
				out = append(out, ' ')
			}
		case inString:
			out = append(out, c)
			if c == '\\' && i+1 < len(data) {
				out = append(out, data[i+1])
				i++
			} else if c == '"' {
				inString = false
			}
		case c == '"':
			inString = true
			out = append(out, c)
		case c == '/' && i+1 < len(data) && data[i+1] == '*':
			inComment = true
			out = append(out, ' ', ' ')
			i++
		default:
			out = append(out, c)
		}
	}
	return out
}
