// SPDX-License-Identifier: MPL-2.0

package config

// configDirOverride replaces the platform lookup in ConfigDir when set.
var configDirOverride string

// SetConfigDirOverride points ConfigDir at dir and returns a func that
// restores the previous value. os.UserHomeDir does not honor HOME on every
// platform, so tests use this to keep the config file and the recent
// projects list out of the real home directory.
func SetConfigDirOverride(dir string) (restore func()) {
	prev := configDirOverride
	configDirOverride = dir
	return func() { configDirOverride = prev }
}
