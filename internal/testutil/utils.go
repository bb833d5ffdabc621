package testutil

import (
	"log"
	"os"
	"testing"
)

// TestLogger returns a logger tagged for test output.
func TestLogger(t *testing.T) *log.Logger {
	logger := log.New(os.Stdout, "[supportchat] ", log.LstdFlags)
	t.Cleanup(func() {
		logger.SetOutput(os.Stderr)
	})
	return logger
}
