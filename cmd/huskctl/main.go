// Command huskctl demonstrates the husk kernel end to end against the
// goroutine-based goport reference Port, with no target hardware required.
package main

import (
	"fmt"
	"os"

	"go.uber.org/zap"

	"github.com/spf13/cobra"
)

func main() {
	log, err := zap.NewDevelopment()
	if err != nil {
		fmt.Fprintln(os.Stderr, "huskctl: build logger:", err)
		os.Exit(1)
	}
	defer log.Sync()

	root := &cobra.Command{
		Use:   "huskctl",
		Short: "Run husk kernel demo scenarios against the goport reference port",
	}
	root.AddCommand(newPeriodicCmd(log))
	root.AddCommand(newInheritCmd(log))

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}
