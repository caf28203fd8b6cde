// Command askql answers natural-language questions about a database.
package main

import (
	"os"

	"github.com/leapstack-labs/askql/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
