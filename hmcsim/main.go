// Command hmcsim runs Hybrid Memory Cube simulations.
package main

import (
	"github.com/tebeka/atexit"

	"github.com/sarchlab/hmcsim/hmcsim/cmd"
)

func main() {
	cmd.Execute()
	atexit.Exit(0)
}
