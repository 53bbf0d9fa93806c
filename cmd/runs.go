package cmd

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/chimera-eth/chimera/logging/colors"
	"github.com/chimera-eth/chimera/scenario"
	"github.com/google/uuid"
	"github.com/spf13/cobra"
)

// runsCmd represents the command provider for inspecting journaled runs
var runsCmd = &cobra.Command{
	Use:           "runs",
	Short:         "Lists the journaled scenario runs",
	Long:          `Lists the scenario runs recorded in the project's journal database, or one run's record stream`,
	Args:          cobra.NoArgs,
	RunE:          cmdRunRuns,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	runsCmd.Flags().String("config", "", "path to config file")
	runsCmd.Flags().String("records", "", "run id whose journaled records should be printed instead of the run listing")
	rootCmd.AddCommand(runsCmd)
}

// cmdRunRuns executes the runs CLI command, printing one line per journaled run.
func cmdRunRuns(cmd *cobra.Command, args []string) error {
	// Resolve the config path the same way the run command does.
	configFlagUsed := cmd.Flags().Changed("config")
	configPath, err := cmd.Flags().GetString("config")
	if err != nil {
		cmdLogger.Error("Failed to run the runs command", err)
		return err
	}
	if !configFlagUsed {
		workingDirectory, err := os.Getwd()
		if err != nil {
			cmdLogger.Error("Failed to run the runs command", err)
			return err
		}
		configPath = filepath.Join(workingDirectory, DefaultProjectConfigFilename)
	}

	// Read the config if it exists, otherwise fall back to defaults.
	projectConfig, err := scenario.ReadProjectConfigFromFile(configPath)
	if err != nil {
		if configFlagUsed {
			cmdLogger.Error("Failed to run the runs command", err)
			return err
		}
		projectConfig, err = scenario.GetDefaultProjectConfig()
		if err != nil {
			cmdLogger.Error("Failed to run the runs command", err)
			return err
		}
	}

	// Open the journal and list its runs.
	journal, err := scenario.OpenJournal(projectConfig.Journal.Path)
	if err != nil {
		cmdLogger.Error("Failed to open the journal database", err)
		return err
	}
	defer journal.Close()

	// If --records was used, print that run's record stream instead of the run listing.
	if cmd.Flags().Changed("records") {
		runIDString, flagErr := cmd.Flags().GetString("records")
		if flagErr != nil {
			cmdLogger.Error("Failed to run the runs command", flagErr)
			return flagErr
		}
		return printRunRecords(journal, runIDString)
	}

	summaries, err := journal.Runs()
	if err != nil {
		cmdLogger.Error("Failed to list the journaled runs", err)
		return err
	}
	if len(summaries) == 0 {
		cmdLogger.Info("The journal contains no runs")
		return nil
	}

	for _, summary := range summaries {
		startTime := time.Unix(summary.StartTime, 0).Format(time.RFC3339)
		cmdLogger.Info(colors.Bold, summary.RunID.String(), colors.Reset, " ", summary.Scenario, " ",
			summary.Status, fmt.Sprintf(" (%d passed, %d failed) ", summary.Passed, summary.Failed), startTime)
	}
	return nil
}

// printRunRecords prints one journaled run's header and its full record stream, one line per record.
func printRunRecords(journal *scenario.Journal, runIDString string) error {
	runID, err := uuid.Parse(runIDString)
	if err != nil {
		cmdLogger.Error("Failed to parse the provided run id", err)
		return err
	}

	summary, err := journal.Run(runID)
	if err != nil {
		cmdLogger.Error("Failed to fetch the journaled run", err)
		return err
	}
	records, err := journal.Records(runID)
	if err != nil {
		cmdLogger.Error("Failed to fetch the run's journaled records", err)
		return err
	}

	cmdLogger.Info(colors.Bold, summary.RunID.String(), colors.Reset, " ", summary.Scenario, " ", summary.Status,
		fmt.Sprintf(" (%d record(s))", len(records)))
	for _, record := range records {
		recordTime := time.Unix(record.Time, 0).Format(time.RFC3339)
		cmdLogger.Info(recordTime, " ", colors.Bold, record.Kind, colors.Reset, " ", string(record.Payload))
	}
	return nil
}
