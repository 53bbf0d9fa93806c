package exitcodes

const (
	// ================================
	// Platform-universal exit codes
	// ================================

	// ExitCodeSuccess indicates no errors or failures had occurred.
	ExitCodeSuccess = 0

	// ExitCodeGeneralError indicates some type of general error occurred.
	ExitCodeGeneralError = 1

	// ================================
	// Application-specific exit codes
	// ================================
	// Note: Despite not being standardized, exit codes 2-5 are often used for common use cases, so we avoid them.

	// ExitCodeRunnerError indicates that there was an error during the execution of a scenario run. Note that an
	// error with error code ExitCodeGeneralError and ExitCodeRunnerError are mutually exclusive errors
	ExitCodeRunnerError = 6

	// ExitCodeScenarioFailed indicates a scenario's step expectation had failed.
	ExitCodeScenarioFailed = 7

	// ExitCodeHandledError indicates an error occurred which was already reported to the user, so the
	// top-level error handler should not print it again.
	ExitCodeHandledError = 8
)
