// SPDX-License-Identifier: MPL-2.0

package platform

// OS name constants for runtime.GOOS comparisons.
const (
	Windows = "windows"
	Darwin  = "darwin"
	Linux   = "linux"
)

// OpenerCommand returns the host program (and leading arguments) that hands a
// URL to the desktop's default browser on the given GOOS. The URL is appended
// as the final argument by the caller.
func OpenerCommand(goos string) (name string, args []string) {
	switch goos {
	case Darwin:
		return "open", nil
	case Windows:
		return "rundll32", []string{"url.dll,FileProtocolHandler"}
	default:
		return "xdg-open", nil
	}
}

// SupportsAppleContainer reports whether the Apple `container` runtime can
// exist on the given GOOS.
func SupportsAppleContainer(goos string) bool {
	return goos == Darwin
}
