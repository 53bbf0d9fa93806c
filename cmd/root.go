package cmd

import (
	"github.com/chimera-eth/chimera/logging"
	"github.com/spf13/cobra"
)

// cmdLogger is the logger used by CLI commands.
var cmdLogger = logging.GlobalLogger.NewSubLogger("module", "cmd")

var rootCmd = &cobra.Command{
	Use:   "chimera",
	Short: "A modular smart account simulation and verification harness",
	Long:  "chimera simulates ERC-6900 modular smart accounts and verifies scenarios against them",
}

func Execute() error {
	return rootCmd.Execute()
}
