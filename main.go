// The main package for the audiovault executable.
package main

import (
	"audiovault/cmd"
)

func main() {
	cmd.Execute()
}
