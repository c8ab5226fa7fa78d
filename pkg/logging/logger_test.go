package logging_test

import (
	"bytes"
	"testing"

	"github.com/charmbracelet/log"
	"github.com/stretchr/testify/assert"

	"github.com/peerlink/peerlink/pkg/logging"
)

func TestNewTestLogger(t *testing.T) {
	testLogger := logging.NewTestLogger()
	assert.NotNil(t, testLogger)
	assert.NotNil(t, testLogger.Logger)
	assert.NotNil(t, testLogger.Buffer)
	assert.Equal(t, "", testLogger.GetOutput())

	testLogger.Debug("debug message", "key", "value")
	output := testLogger.GetOutput()
	assert.Contains(t, output, "debug message")
	assert.Contains(t, output, "key=value")
}

func TestGetOutputWithoutBuffer(t *testing.T) {
	l := &logging.Logger{Logger: log.New(&bytes.Buffer{})}
	assert.Equal(t, "", l.GetOutput())
}

func TestWithKeepsBuffer(t *testing.T) {
	testLogger := logging.NewTestLogger()
	child := testLogger.With("code", 4242)

	child.Info("file stored")
	assert.Contains(t, testLogger.GetOutput(), "code=4242")
	assert.Contains(t, testLogger.GetOutput(), "file stored")
}

func TestNewLevels(t *testing.T) {
	buf := &bytes.Buffer{}
	info := logging.New(buf, false)
	info.Debug("hidden")
	info.Info("shown")
	assert.NotContains(t, buf.String(), "hidden")
	assert.Contains(t, buf.String(), "shown")

	buf.Reset()
	debug := logging.New(buf, true)
	debug.Debug("now visible")
	assert.Contains(t, buf.String(), "now visible")
	assert.Contains(t, buf.String(), "peerlink")
}

func TestPackageLevelHelpers(t *testing.T) {
	previous := logging.GetLogger()
	t.Cleanup(func() { logging.SetLogger(previous) })

	testLogger := logging.NewTestLogger()
	logging.SetLogger(testLogger)

	logging.Debug("debug message")
	logging.Info("info message")
	logging.Warn("warn message")
	logging.Error("error message", "error", "boom")

	output := testLogger.GetOutput()
	for _, want := range []string{"debug message", "info message", "warn message", "error message", "error=boom"} {
		assert.Contains(t, output, want)
	}
	assert.Same(t, testLogger, logging.GetLogger())
}
