package main

import (
	"os"

	"github.com/omcteam/teambridge/internal/cliutil"
)

func main() {
	if err := cliutil.Execute(); err != nil {
		os.Exit(1)
	}
}
