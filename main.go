// The main package for the sitecrawler executable.
package main

import (
	"github.com/libsearch/sitecrawler/cmd"
)

// main defers all execution to the Cobra CLI library.
func main() {
	cmd.Execute()
}
