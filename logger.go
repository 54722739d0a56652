package nemochat

import (
	"os"

	"github.com/charmbracelet/log"
)

// DefaultLogger is used by components constructed without an explicit logger.
// It writes warnings and above to stderr.
var DefaultLogger = log.NewWithOptions(os.Stderr, log.Options{
	Prefix: "nemochat",
	Level:  log.WarnLevel,
})

func loggerOrDefault(l *log.Logger) *log.Logger {
	if l == nil {
		return DefaultLogger
	}
	return l
}
