package logging

import (
	"bytes"
	"os"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
)

// TestAddAndRemoveWriter will test the Logger.AddWriter and Logger.RemoveWriter functions to ensure that they
// work as expected.
func TestAddAndRemoveWriter(t *testing.T) {
	// Create a base logger with no writers
	logger := NewLogger(zerolog.InfoLevel, false)

	// Add two writers, one structured and one unstructured
	logger.AddWriter(os.Stderr, STRUCTURED)
	var buf bytes.Buffer
	logger.AddWriter(&buf, UNSTRUCTURED)
	assert.Equal(t, 2, len(logger.writers))

	// Adding a duplicate writer should be a no-op
	logger.AddWriter(os.Stderr, STRUCTURED)
	assert.Equal(t, 2, len(logger.writers))

	// Remove a writer and ensure the list shrinks
	logger.RemoveWriter(os.Stderr)
	assert.Equal(t, 1, len(logger.writers))
}

// TestSubLoggerContext ensures that a sub-logger writes its key-value context into log output so logs are
// attributable to the package that wrote them.
func TestSubLoggerContext(t *testing.T) {
	// Create a logger writing structured output into a buffer
	var buf bytes.Buffer
	logger := NewLogger(zerolog.InfoLevel, false, &buf)
	subLogger := logger.NewSubLogger("module", "account")

	// Log a message and ensure the context key appears in the structured output
	subLogger.Info("hello")
	assert.True(t, strings.Contains(buf.String(), `"module":"account"`))
	assert.True(t, strings.Contains(buf.String(), "hello"))
}

// TestSetLevel ensures that lowering the log level suppresses output below it.
func TestSetLevel(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(zerolog.InfoLevel, false, &buf)

	// Debug output should be suppressed at info level
	logger.Debug("quiet")
	assert.Equal(t, "", buf.String())

	// After lowering the level, debug output should appear
	logger.SetLevel(zerolog.DebugLevel)
	logger.Debug("loud")
	assert.True(t, strings.Contains(buf.String(), "loud"))
}
