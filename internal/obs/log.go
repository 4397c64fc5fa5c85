package obs

import (
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

var (
	loggerMu sync.Mutex
	logger   zerolog.Logger
	loggerOK bool
)

// InitLogger configures the shared zerolog logger. Level is parsed leniently;
// an unknown value falls back to info.
func InitLogger(level string, out io.Writer) {
	if out == nil {
		out = os.Stdout
	}
	lvl, err := zerolog.ParseLevel(strings.ToLower(strings.TrimSpace(level)))
	if err != nil || lvl == zerolog.NoLevel {
		lvl = zerolog.InfoLevel
	}
	zerolog.TimeFieldFormat = time.RFC3339Nano

	loggerMu.Lock()
	defer loggerMu.Unlock()
	logger = zerolog.New(out).Level(lvl).With().Timestamp().Logger()
	loggerOK = true
}

// Logger returns the shared structured logger used across the service.
func Logger() zerolog.Logger {
	loggerMu.Lock()
	defer loggerMu.Unlock()
	if !loggerOK {
		logger = zerolog.New(os.Stdout).Level(zerolog.InfoLevel).With().Timestamp().Logger()
		loggerOK = true
	}
	return logger
}
