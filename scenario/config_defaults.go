package scenario

import (
	"github.com/rs/zerolog"
)

// GetDefaultProjectConfig obtains a default configuration for a project.
// Returns the ProjectConfig if it succeeds, or an error if one occurs.
func GetDefaultProjectConfig() (*ProjectConfig, error) {
	// Create a project configuration
	projectConfig := &ProjectConfig{
		Scenarios: []string{"scenarios/*.json"},
		Journal: JournalConfig{
			Enabled: true,
			Path:    "chimera.journal",
		},
		Logging: LoggingConfig{
			Level:        zerolog.InfoLevel,
			LogDirectory: "",
		},
	}

	// Return the project configuration
	return projectConfig, nil
}
