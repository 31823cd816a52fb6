// SPDX-License-Identifier: MPL-2.0

// Package config loads and saves the devcon user configuration.
//
// The file is CUE (config.cue in the devcon config directory) validated
// against the embedded config_schema.cue and merged into Viper, so DEVCON_*
// environment variables override file values. Save writes the file back in
// the same format.
//
// Recently opened projects are state rather than configuration and live in
// recent.yaml next to the config file.
package config
