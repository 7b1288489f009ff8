// Package main is the stressberry entrypoint.
package main

import "codeberg.org/mutker/stressberry/internal/cli"

// version is set at build time via -ldflags.
var version = "dev"

func main() {
	cli.Execute(version)
}
