// The main package for the mindstream executable.
package main

import (
	"github.com/mindstream/mindstream/cmd"
)

// main is the entry point of the application.
// It defers all execution to the Cobra CLI library.
func main() {
	cmd.Execute()
}
