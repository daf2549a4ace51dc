// Package main provides the tagmirror binary entry point.
// Tagmirror replicates tag-management entities between workspaces.
package main

import (
	"fmt"
	"os"
	"runtime"

	"github.com/c360studio/tagmirror/commands"
)

const Version = "0.1.0"

func main() {
	defer func() {
		if r := recover(); r != nil {
			buf := make([]byte, 4096)
			n := runtime.Stack(buf, false)
			_, _ = fmt.Fprintf(os.Stderr, "PANIC: %v\nStack trace:\n%s\n", r, string(buf[:n]))
			os.Exit(2)
		}
	}()

	if err := commands.NewRootCommand(Version).Execute(); err != nil {
		os.Exit(1)
	}
}
