// Package logging configures the process-wide logrus logger.
package logging

import (
	"io"
	"os"
	"strings"
	"sync"

	"github.com/sirupsen/logrus"
)

// Setup sets the level and formatter of the standard logrus logger. Log
// output goes to stderr so command output on stdout stays clean.
func Setup(level, format string) error {
	return setup(logrus.StandardLogger(), os.Stderr, level, format)
}

func setup(l *logrus.Logger, out io.Writer, level, format string) error {
	lvl, err := logrus.ParseLevel(level)
	if err != nil {
		return err
	}
	l.SetLevel(lvl)
	l.SetOutput(out)

	switch strings.ToLower(format) {
	case "json":
		l.SetFormatter(&logrus.JSONFormatter{})
	default:
		l.SetFormatter(&logrus.TextFormatter{
			FullTimestamp:   true,
			TimestampFormat: "15:04:05",
		})
	}
	return nil
}

// For returns an entry tagged with the component name.
func For(component string) *logrus.Entry {
	return logrus.WithField("component", component)
}

// FrontendHook is a logrus hook that tags every entry with the front end
// (cli, tui, gui) that produced it.
type FrontendHook struct {
	Frontend string
}

func (h *FrontendHook) Levels() []logrus.Level {
	return logrus.AllLevels
}

func (h *FrontendHook) Fire(entry *logrus.Entry) error {
	if h.Frontend != "" {
		entry.Data["frontend"] = h.Frontend
	}
	return nil
}

// ToFile sends log output to path, appending. The returned func restores
// stderr and closes the file.
func ToFile(path string) (func(), error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, err
	}
	logrus.SetOutput(f)
	return func() {
		logrus.SetOutput(os.Stderr)
		_ = f.Close()
	}, nil
}

var (
	frontendMu   sync.Mutex
	frontendHook *FrontendHook
)

// SetFrontend tags all further entries of the standard logger with the
// front end name. Later calls replace the name.
func SetFrontend(name string) {
	frontendMu.Lock()
	defer frontendMu.Unlock()
	if frontendHook == nil {
		frontendHook = &FrontendHook{}
		logrus.AddHook(frontendHook)
	}
	frontendHook.Frontend = name
}
