// Command fileledger records file digests on a proof-of-work hash chain and
// verifies files against them.
package main

import (
	"fmt"
	"os"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "[❌] %v\n", err)
		os.Exit(1)
	}
}
