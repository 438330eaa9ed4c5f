// Command graphctl inspects and runs saved node graph documents without the
// editor service.
package main

import (
	"os"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
