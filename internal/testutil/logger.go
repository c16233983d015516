package testutil

import (
	"bytes"
	"log/slog"

	"github.com/seiji-watch/diet-tracker/internal/log"
)

// CaptureLogger returns a logger writing to the returned buffer, for tests
// that assert on log output.
func CaptureLogger() (log.Logger, *bytes.Buffer) {
	var buf bytes.Buffer
	return log.NewWithWriter(&buf, log.Config{Level: slog.LevelDebug}), &buf
}
