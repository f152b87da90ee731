// Command overseerd is the supervisor daemon binary. It takes no
// subcommands of its own — overseerd always runs as the daemon;
// everything else (start/stop/status/logs) is a client talking to it
// over the RPC socket.
package main

import (
	"fmt"
	"os"

	"github.com/loykin/overseerd/internal/daemon"
)

const appName = "overseerd"

func main() {
	opts := daemon.Options{AppName: appName}
	for _, arg := range os.Args[1:] {
		switch arg {
		case "--http":
			opts.EnableHTTP = true
		case "--foreground", "-f":
			// already runs in the foreground; accepted for compatibility
			// with callers that spawn it detached and pass this flag either way.
		}
	}

	if err := daemon.Run(opts); err != nil {
		fmt.Fprintln(os.Stderr, "overseerd:", err)
		os.Exit(1)
	}
}
