package shared

import (
	"fmt"
	"os/exec"
	"runtime"
)

var getRuntime = func() string { return runtime.GOOS }

// browserCommands maps GOOS to the command that opens a URL with the default handler.
var browserCommands = map[string][]string{
	"darwin":  {"open"},
	"linux":   {"xdg-open"},
	"freebsd": {"xdg-open"},
	"windows": {"rundll32", "url.dll,FileProtocolHandler"},
}

// OpenBrowser opens url in the default system browser without waiting for it to exit.
func OpenBrowser(url string) error {
	rt := getRuntime()
	argv, ok := browserCommands[rt]
	if !ok {
		return fmt.Errorf("%w: cannot open a browser on %s", ErrNotImplemented, rt)
	}

	cmd := exec.Command(argv[0], append(argv[1:], url)...)
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("failed to open browser: %w", err)
	}
	go cmd.Wait()
	return nil
}
