// Command bolsync-admin runs one-off maintenance tasks against the sync
// database: migrations, manual sync runs, export sweeps and tenant listings.
package main

import (
	"os"
)

func main() {
	if err := Execute(); err != nil {
		os.Exit(1) //nolint:forbidigo // CLI entrypoint should exit with non-zero status on failure.
	}
}
