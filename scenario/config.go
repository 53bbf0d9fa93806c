package scenario

import (
	"encoding/json"
	"os"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"
)

// ProjectConfig describes the configuration of a chimera project: which scenario files to run and how runs
// are journaled and logged.
type ProjectConfig struct {
	// Scenarios describes the glob patterns of scenario files the project runs.
	Scenarios []string `json:"scenarios"`

	// Journal describes the configuration of the run journal.
	Journal JournalConfig `json:"journal"`

	// Logging describes the configuration of the project's logging.
	Logging LoggingConfig `json:"logging"`
}

// JournalConfig describes the configuration of the persistent run journal.
type JournalConfig struct {
	// Enabled determines whether runs are recorded to the journal database.
	Enabled bool `json:"enabled"`

	// Path describes the file path of the journal database.
	Path string `json:"path"`
}

// LoggingConfig describes the configuration of the project's logging.
type LoggingConfig struct {
	// Level describes whether logs of certain severity levels (eg info, warning, etc.) will be emitted or
	// discarded. Increasing level values represent more severe logs.
	Level zerolog.Level `json:"level"`

	// LogDirectory describes what directory log files should be outputted in, if any. An empty string
	// disables file logging.
	LogDirectory string `json:"logDirectory"`
}

// ReadProjectConfigFromFile reads a JSON-serialized ProjectConfig from a provided file path.
// Returns the ProjectConfig if it succeeds, or an error if one occurs.
func ReadProjectConfigFromFile(path string) (*ProjectConfig, error) {
	// Read our project configuration file data
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.WithStack(err)
	}

	// Parse the project configuration, overlaid onto the defaults so omitted fields keep sensible values.
	projectConfig, err := GetDefaultProjectConfig()
	if err != nil {
		return nil, err
	}
	if err = json.Unmarshal(b, projectConfig); err != nil {
		return nil, errors.WithStack(err)
	}
	return projectConfig, nil
}

// WriteToFile writes the ProjectConfig to a provided file path in a JSON-serialized format.
// Returns an error if one occurs.
func (p *ProjectConfig) WriteToFile(path string) error {
	// Serialize the configuration
	b, err := json.MarshalIndent(p, "", "\t")
	if err != nil {
		return errors.WithStack(err)
	}

	// Save it to the provided output path and return the result
	err = os.WriteFile(path, b, 0644)
	if err != nil {
		return errors.WithStack(err)
	}
	return nil
}

// Validate validates that the ProjectConfig meets certain requirements.
// Returns an error if one occurs.
func (p *ProjectConfig) Validate() error {
	if len(p.Scenarios) == 0 {
		return errors.Errorf("project configuration must specify at least one scenario pattern")
	}
	if p.Journal.Enabled && p.Journal.Path == "" {
		return errors.Errorf("project configuration enables the journal but specifies no journal path")
	}
	if p.Logging.Level < zerolog.TraceLevel || p.Logging.Level > zerolog.Disabled {
		return errors.Errorf("project configuration specifies an invalid log level")
	}
	return nil
}
