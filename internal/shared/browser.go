package shared

import (
	"fmt"
	"os/exec"
	"runtime"
)

// goos is swappable in tests.
var goos = func() string { return runtime.GOOS }

// OpenBrowser launches the system browser at url. The auth flow uses it to
// hand the user off to the authorization page; callers treat failure as
// non-fatal and print the URL for a manual visit instead.
func OpenBrowser(url string) error {
	var name string
	var args []string

	switch rt := goos(); rt {
	case "darwin":
		name = "open"
	case "linux":
		name = "xdg-open"
	case "windows":
		name, args = "cmd", []string{"/c", "start"}
	default:
		return fmt.Errorf("unsupported platform: %s", rt)
	}

	if err := exec.Command(name, append(args, url)...).Start(); err != nil {
		return fmt.Errorf("failed to open browser: %w", err)
	}
	return nil
}
