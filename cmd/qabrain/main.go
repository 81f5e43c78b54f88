// Package main is the entry point for the qabrain CLI.
package main

import (
	"os"

	"github.com/vijayarun00100/Autonomous-QA-Agent/cmd/qabrain/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
