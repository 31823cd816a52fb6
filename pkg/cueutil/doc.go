// SPDX-License-Identifier: MPL-2.0

// Package cueutil holds the CUE helpers shared by the config layer and the
// devcontainer.json loader.
//
// ParseAndDecode runs the schema flow used for devcon's own config file:
//
//	//go:embed config_schema.cue
//	var schemaBytes []byte
//
//	result, err := cueutil.ParseAndDecode[Config](
//	    schemaBytes,
//	    userFileBytes,
//	    "#Config",
//	    cueutil.WithFilename("config.cue"),
//	)
//
// NormalizeJSON turns commented JSON into canonical JSON without a schema.
package cueutil
