// Command expensebook is the terminal client of the expense tracker.
package main

import (
	"fmt"
	"os"

	"expensebook/internal/cli"
	"expensebook/internal/core"
)

func main() {
	cli.LoadEnvFile()

	a := &app{}
	defer a.close()

	if err := newRootCmd(a).Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %s\n", core.UserMessage(err))
		a.close()
		os.Exit(1)
	}
}
