package cliutil

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/omcteam/teambridge/internal/config"
)

func init() {
	rootCmd.AddCommand(validateCmd)
}

var validateCmd = &cobra.Command{
	Use:   "validate <config-file>",
	Short: "Dry-run the worker config loader against a BridgeConfig JSON file",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if _, errs := config.Load(args[0]); len(errs) > 0 {
			for _, e := range errs {
				fmt.Fprintf(os.Stderr, "Error: %s\n", e)
			}
			return fmt.Errorf("%d validation error(s)", len(errs))
		}
		fmt.Println("Configuration is valid.")
		return nil
	},
}
