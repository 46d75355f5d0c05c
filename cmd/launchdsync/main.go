// Command launchdsync keeps the service manager's job table in sync with
// the agent suite's on-disk launchd job descriptors.
package main

import (
	"fmt"
	"os"
)

const version = "0.0.1"

func main() {
	if err := rootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "%s\n", err.Error())
		os.Exit(1)
	}
}
