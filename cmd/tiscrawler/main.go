// Command tiscrawler crawls the TIS catalog, classifies and validates the
// artifacts it finds, and emits per-component JSON payloads.
package main

import (
	"fmt"
	"os"

	"github.com/tisops/tis-crawler/cmd/tiscrawler/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "tiscrawler: %v\n", err)
		os.Exit(1)
	}
}
