package logging

import (
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// New - Build a named console logger. DEBUG env var bumps the level, same
// toggle the rest of the project uses.
func New(name string) zerolog.Logger {
	level := zerolog.InfoLevel
	if debugEnabled() {
		level = zerolog.DebugLevel
	}

	writer := zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339}
	return zerolog.New(writer).Level(level).With().Timestamp().Str("component", name).Logger()
}

func debugEnabled() bool {
	switch strings.ToLower(os.Getenv("DEBUG")) {
	case "true", "1", "t", "yes", "on":
		return true
	}
	return false
}
