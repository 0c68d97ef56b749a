// Command maestro-orchestra runs Maestro flows through the Orchestra engine.
package main

import "github.com/devicelab-dev/maestro-orchestra/pkg/cli"

func main() {
	cli.Execute()
}
