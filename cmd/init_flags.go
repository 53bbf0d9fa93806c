package cmd

import (
	"github.com/chimera-eth/chimera/scenario"
	"github.com/spf13/cobra"
)

// addInitFlags adds the various flags for the init command
func addInitFlags() error {
	// Output path for configuration
	initCmd.Flags().String("out", "", "output path for the new project configuration file")

	// Scenario patterns
	initCmd.Flags().StringSlice("scenarios", []string{}, "glob pattern(s) of scenario files the project runs")

	return nil
}

// updateProjectConfigWithInitFlags will update the given projectConfig with any CLI arguments that were provided to the init command
func updateProjectConfigWithInitFlags(cmd *cobra.Command, projectConfig *scenario.ProjectConfig) error {
	var err error

	// Update scenario patterns if necessary
	if cmd.Flags().Changed("scenarios") {
		projectConfig.Scenarios, err = cmd.Flags().GetStringSlice("scenarios")
		if err != nil {
			return err
		}
	}

	return nil
}
