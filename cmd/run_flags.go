package cmd

import (
	"fmt"

	"github.com/chimera-eth/chimera/scenario"
	"github.com/spf13/cobra"
)

// addRunFlags adds the various flags for the run command
func addRunFlags() error {
	// Get the default project config and throw an error if we cant
	defaultConfig, err := scenario.GetDefaultProjectConfig()
	if err != nil {
		return err
	}

	// Prevent alphabetical sorting of usage message
	runCmd.Flags().SortFlags = false

	// Config file
	runCmd.Flags().String("config", "", "path to config file")

	// Scenario patterns
	runCmd.Flags().StringSlice("scenarios", []string{},
		fmt.Sprintf("glob pattern(s) of scenario files to run (unless a config file is provided, default is %v)", defaultConfig.Scenarios))

	// Journal path
	runCmd.Flags().String("journal", "",
		fmt.Sprintf("file path of the run journal database (unless a config file is provided, default is %q)", defaultConfig.Journal.Path))

	// Journal disablement
	runCmd.Flags().Bool("no-journal", false, "disable journaling of runs")

	return nil
}

// updateProjectConfigWithRunFlags will update the given projectConfig with any CLI arguments that were provided to the run command
func updateProjectConfigWithRunFlags(cmd *cobra.Command, projectConfig *scenario.ProjectConfig) error {
	var err error

	// Update scenario patterns
	if cmd.Flags().Changed("scenarios") {
		projectConfig.Scenarios, err = cmd.Flags().GetStringSlice("scenarios")
		if err != nil {
			return err
		}
	}

	// Update journal path
	if cmd.Flags().Changed("journal") {
		projectConfig.Journal.Path, err = cmd.Flags().GetString("journal")
		if err != nil {
			return err
		}
		projectConfig.Journal.Enabled = true
	}

	// Update journal disablement
	if cmd.Flags().Changed("no-journal") {
		noJournal, err := cmd.Flags().GetBool("no-journal")
		if err != nil {
			return err
		}
		projectConfig.Journal.Enabled = !noJournal
	}

	return nil
}
