// Command dexkeep tracks collectible ownership and syncs it with a remote store.
package main

import (
	"os"

	"github.com/jmgilman/dexkeep/internal/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
