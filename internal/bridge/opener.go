// SPDX-License-Identifier: MPL-2.0

package bridge

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"runtime"
	"slices"
	"strings"

	"github.com/devcon/devcon/pkg/platform"
)

// Opener hands a URL to something that can display it.
type Opener func(ctx context.Context, url string) error

// SystemOpener opens url with the host's default handler.
func SystemOpener(ctx context.Context, url string) error {
	name, args := openCommand(runtime.GOOS, platform.DetectSandbox(), url)
	cmd := exec.CommandContext(ctx, name, args...)
	var out bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = &out
	if err := cmd.Run(); err != nil {
		if msg := strings.TrimSpace(out.String()); msg != "" {
			return fmt.Errorf("%s: %w: %s", name, err, msg)
		}
		return fmt.Errorf("%s: %w", name, err)
	}
	return nil
}

// openCommand returns the host program that opens url, routed out of the
// sandbox when devcon itself is sandboxed.
func openCommand(goos string, sandbox platform.SandboxType, url string) (string, []string) {
	name, args := platform.OpenerCommand(goos)
	return platform.HostCommand(sandbox, name, append(slices.Clone(args), url))
}
