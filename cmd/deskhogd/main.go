package main

import (
	"errors"
	"fmt"
	"os"
)

// version is stamped at build time with -ldflags "-X main.version=...".
var version = "v0.0.0-dev"

func main() {
	if err := newRootCmd().Execute(); err != nil {
		if errors.Is(err, errRestart) {
			os.Exit(exitRestart)
		}
		fmt.Fprintln(os.Stderr, "deskhogd:", err)
		os.Exit(1)
	}
}
