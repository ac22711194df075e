// Command radosclient is a scriptable CLI over the RADOS client core:
// pool management and single-object put/get/rm/stat/ls, driven
// entirely through pkg/monclient and pkg/objclient.
package main

import (
	"fmt"
	"os"

	"github.com/marmos91/radosclient/cmd/radosclient/commands"
)

// Build-time variables injected via ldflags.
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	commands.Version = version
	commands.Commit = commit
	commands.Date = date

	if err := commands.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
