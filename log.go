package ov5640

import (
	"io"
	"os"
	"strings"

	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
)

// NewLogger returns a logfmt logger writing to w, filtered to lvl (DEBUG,
// INFO, WARNING or ERROR). An empty lvl reads LOG_LEVEL from the
// environment; anything unrecognised means INFO.
func NewLogger(w io.Writer, lvl string) log.Logger {
	if lvl == "" {
		lvl = os.Getenv("LOG_LEVEL")
	}
	logger := log.NewLogfmtLogger(log.NewSyncWriter(w))
	logger = log.With(logger, "ts", log.DefaultTimestampUTC, "caller", log.DefaultCaller)
	return level.NewFilter(logger, levelOption(lvl))
}

func levelOption(lvl string) level.Option {
	switch strings.ToUpper(lvl) {
	case "DEBUG":
		return level.AllowDebug()
	case "WARNING", "WARN":
		return level.AllowWarn()
	case "ERROR":
		return level.AllowError()
	default:
		return level.AllowInfo()
	}
}
