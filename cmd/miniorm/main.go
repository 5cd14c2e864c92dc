// Command miniorm manages the sample company database through the ORM.
package main

import (
	"os"

	"miniorm/internal/config"
)

func main() {
	if err := run(os.Args[1:], os.Stdout, os.Stderr, config.DefaultEnvFiles); err != nil {
		os.Exit(1)
	}
}
