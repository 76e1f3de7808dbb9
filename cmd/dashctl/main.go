// Package main provides dashctl, a command-line client for the dashboard.
// Commands run against the API when a token is configured and against the
// local guest database when guest mode is enabled.
package main

import (
	"fmt"
	"os"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
