// SPDX-License-Identifier: MPL-2.0

package bridge

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// StatusPathFor returns where the daemon serving socketPath records its Status.
func StatusPathFor(socketPath string) string {
	return socketPath + ".status"
}

// ReadStatus loads the Status recorded by the daemon serving socketPath.
// The file outlives a daemon that was killed without a chance to clean up,
// so callers should confirm liveness with Client.Reachable.
func ReadStatus(socketPath string) (*Status, error) {
	data, err := os.ReadFile(StatusPathFor(socketPath))
	if err != nil {
		return nil, err
	}
	var st Status
	if err := yaml.Unmarshal(data, &st); err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", StatusPathFor(socketPath), err)
	}
	return &st, nil
}

func writeStatus(socketPath string, st Status) error {
	data, err := yaml.Marshal(st)
	if err != nil {
		return err
	}
	path := StatusPathFor(socketPath)
	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+"-*")
	if err != nil {
		return err
	}
	defer func() { _ = os.Remove(tmp.Name()) }() // no-op after a successful rename

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), path)
}
