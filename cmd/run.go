package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"sort"

	"github.com/chimera-eth/chimera/cmd/exitcodes"
	"github.com/chimera-eth/chimera/logging"
	"github.com/chimera-eth/chimera/logging/colors"
	"github.com/chimera-eth/chimera/scenario"
	"github.com/chimera-eth/chimera/utils"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

// runCmd represents the command provider for scenario runs
var runCmd = &cobra.Command{
	Use:               "run",
	Short:             "Runs the project's scenarios",
	Long:              `Runs the project's scenarios against fresh simulated accounts`,
	Args:              cmdValidateRunArgs,
	ValidArgsFunction: cmdValidRunArgs,
	RunE:              cmdRunRun,
	SilenceUsage:      true,
	SilenceErrors:     true,
}

func init() {
	// Add all the flags allowed for the run command
	err := addRunFlags()
	if err != nil {
		cmdLogger.Panic("Failed to initialize the run command", err)
	}

	// Add the run command and its associated flags to the root command
	rootCmd.AddCommand(runCmd)
}

// cmdValidRunArgs will return which flags and sub-commands are valid for dynamic completion for the run command
func cmdValidRunArgs(cmd *cobra.Command, args []string, toComplete string) ([]string, cobra.ShellCompDirective) {
	// Gather a list of flags that are available to be used in the current command but have not been used yet
	var unusedFlags []string

	// Examine all the flags, and add any flags that have not been set in the current command line
	// to a list of unused flags
	cmd.Flags().VisitAll(func(flag *pflag.Flag) {
		if !flag.Changed {
			// When adding a flag to a command, include the "--" prefix to indicate that it is a flag
			// and not a positional argument. Additionally, when the user presses the TAB key twice after typing
			// a flag name, the "--" prefix will appear again, indicating that more flags are available and that
			// none of the arguments are positional.
			unusedFlags = append(unusedFlags, "--"+flag.Name)
		}
	})
	// Provide a list of flags that can be used in the current command (but have not been used yet)
	// for autocompletion suggestions
	return unusedFlags, cobra.ShellCompDirectiveNoFileComp
}

// cmdValidateRunArgs makes sure that there are no positional arguments provided to the run command
func cmdValidateRunArgs(cmd *cobra.Command, args []string) error {
	// Make sure we have no positional args
	if err := cobra.NoArgs(cmd, args); err != nil {
		err = fmt.Errorf("run does not accept any positional arguments, only flags and their associated values")
		cmdLogger.Error("Failed to validate args to the run command", err)
		return err
	}
	return nil
}

// cmdRunRun executes the CLI run command and navigates through the following possibilities:
// #1: We will search for either a custom config file (via --config) or the default (chimera.json).
// If we find it, read it. If we can't read it, throw an error.
// #2: If a custom file was provided (--config was used), and we can't find the file, throw an error.
// #3: If chimera.json can't be found, use the default project configuration.
func cmdRunRun(cmd *cobra.Command, args []string) error {
	var projectConfig *scenario.ProjectConfig

	// Check to see if --config flag was used and store the value of --config flag
	configFlagUsed := cmd.Flags().Changed("config")
	configPath, err := cmd.Flags().GetString("config")
	if err != nil {
		cmdLogger.Error("Failed to run the run command", err)
		return err
	}

	// If --config was not used, look for `chimera.json` in the current work directory
	if !configFlagUsed {
		workingDirectory, err := os.Getwd()
		if err != nil {
			cmdLogger.Error("Failed to run the run command", err)
			return err
		}
		configPath = filepath.Join(workingDirectory, DefaultProjectConfigFilename)
	}

	// Check to see if the file exists at configPath
	_, existenceError := os.Stat(configPath)

	// Possibility #1: File was found
	if existenceError == nil {
		// Try to read the configuration file and throw an error if something goes wrong
		cmdLogger.Info("Reading the configuration file at: ", colors.Bold, configPath, colors.Reset)
		projectConfig, err = scenario.ReadProjectConfigFromFile(configPath)
		if err != nil {
			cmdLogger.Error("Failed to run the run command", err)
			return err
		}
	}

	// Possibility #2: If the --config flag was used, and we couldn't find the file, we'll throw an error
	if configFlagUsed && existenceError != nil {
		cmdLogger.Error("Failed to run the run command", existenceError)
		return existenceError
	}

	// Possibility #3: --config flag was not used and chimera.json was not found, so use the default project config
	if !configFlagUsed && existenceError != nil {
		cmdLogger.Warn(fmt.Sprintf("Unable to find the config file at %v, will use the default project configuration instead", configPath))

		projectConfig, err = scenario.GetDefaultProjectConfig()
		if err != nil {
			cmdLogger.Error("Failed to run the run command", err)
			return err
		}
	}

	// Update the project configuration given whatever flags were set using the CLI
	err = updateProjectConfigWithRunFlags(cmd, projectConfig)
	if err != nil {
		cmdLogger.Error("Failed to run the run command", err)
		return err
	}

	// Validate the resulting configuration
	err = projectConfig.Validate()
	if err != nil {
		cmdLogger.Error("Failed to run the run command", err)
		return err
	}

	// Change our working directory to the parent directory of the project configuration file
	// This is important as scenario and journal paths may be relative to wherever the configuration is
	// supplied from.
	err = os.Chdir(filepath.Dir(configPath))
	if err != nil {
		cmdLogger.Error("Failed to run the run command", err)
		return err
	}

	// Set up our logging per the project configuration.
	logging.GlobalLogger = logging.NewLogger(projectConfig.Logging.Level, true)
	if projectConfig.Logging.LogDirectory != "" {
		logFile, fileErr := utils.CreateFile(projectConfig.Logging.LogDirectory, "chimera.log")
		if fileErr != nil {
			cmdLogger.Error("Failed to run the run command", fileErr)
			return fileErr
		}
		defer logFile.Close()
		logging.GlobalLogger.AddWriter(logFile, logging.STRUCTURED)
	}
	runLogger := logging.GlobalLogger.NewSubLogger("module", "cmd")

	// Resolve the scenario file paths from the configured glob patterns.
	scenarioPaths, err := resolveScenarioPaths(projectConfig.Scenarios)
	if err != nil {
		runLogger.Error("Failed to resolve the project's scenario patterns", err)
		return exitcodes.NewErrorWithExitCode(err, exitcodes.ExitCodeHandledError)
	}
	if len(scenarioPaths) == 0 {
		err = fmt.Errorf("no scenario files matched the configured patterns %v", projectConfig.Scenarios)
		runLogger.Error("Failed to run the run command", err)
		return exitcodes.NewErrorWithExitCode(err, exitcodes.ExitCodeHandledError)
	}

	// Open the journal, if enabled.
	var journal *scenario.Journal
	if projectConfig.Journal.Enabled {
		journal, err = scenario.OpenJournal(projectConfig.Journal.Path)
		if err != nil {
			runLogger.Error("Failed to open the journal database", err)
			return exitcodes.NewErrorWithExitCode(err, exitcodes.ExitCodeHandledError)
		}
		defer journal.Close()

		// If the user interrupts the run (Ctrl+C), close the journal so completed records are flushed
		// to disk before the process exits.
		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
		defer stop()
		journal.CloseOnCancel(ctx)
	}

	// Run every scenario and tally the outcomes.
	runner := scenario.NewRunner(journal)
	failedScenarios := 0
	for _, scenarioPath := range scenarioPaths {
		s, loadErr := scenario.LoadFromFile(scenarioPath)
		if loadErr != nil {
			runLogger.Error("Failed to load the scenario at ", scenarioPath, loadErr)
			return exitcodes.NewErrorWithExitCode(loadErr, exitcodes.ExitCodeRunnerError)
		}

		report, runErr := runner.Run(s)
		if runErr != nil {
			runLogger.Error("Failed to run the scenario '", s.Name, "'", runErr)
			return exitcodes.NewErrorWithExitCode(runErr, exitcodes.ExitCodeRunnerError)
		}
		if report.Status != scenario.RunStatePassed {
			failedScenarios++
		}
	}

	// If any scenario failed, we'll want to return a special exit code
	if failedScenarios > 0 {
		return exitcodes.NewErrorWithExitCode(fmt.Errorf("%d of %d scenario(s) failed", failedScenarios, len(scenarioPaths)), exitcodes.ExitCodeScenarioFailed)
	}

	runLogger.Info("All ", len(scenarioPaths), " scenario(s) passed")
	return nil
}

// resolveScenarioPaths expands the configured glob patterns into a sorted, de-duplicated list of scenario
// file paths.
func resolveScenarioPaths(patterns []string) ([]string, error) {
	seen := make(map[string]struct{})
	var paths []string
	for _, pattern := range patterns {
		matches, err := filepath.Glob(pattern)
		if err != nil {
			return nil, err
		}
		for _, match := range matches {
			if _, duplicate := seen[match]; duplicate {
				continue
			}
			seen[match] = struct{}{}
			paths = append(paths, match)
		}
	}
	sort.Strings(paths)
	return paths, nil
}
