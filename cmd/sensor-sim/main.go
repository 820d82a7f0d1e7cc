// Command sensor-sim submits simulated bin fill readings to the gateway.
package main

import (
	"fmt"
	"os"

	"github.com/okian/klynaa/internal/sensorsim"
)

func main() {
	if err := sensorsim.NewCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "sensor-sim:", err)
		os.Exit(1)
	}
}
