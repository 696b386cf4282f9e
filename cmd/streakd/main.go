// Package main is the single-binary entrypoint for streakd.
package main

import "github.com/pulsefit/streakd/internal/cli"

// version is set at build time via -ldflags.
var version = "dev"

func main() {
	cli.Execute(version)
}
