package log

import (
	"errors"
	"fmt"

	"github.com/sirupsen/logrus"
)

// Level is a log severity as written in configuration ("debug", "info", ...).
type Level string

const (
	TraceLevel Level = "trace"
	DebugLevel Level = "debug"
	InfoLevel  Level = "info"
	WarnLevel  Level = "warn"
	ErrorLevel Level = "error"
	FatalLevel Level = "fatal"
)

var (
	errEmptyLogPath  = errors.New("log: file appender enabled without a path")
	errUnknownFormat = errors.New("log: format must be text or json")
)

func (l Level) parse() (logrus.Level, error) {
	if l == "" {
		return logrus.InfoLevel, nil
	}
	lv, err := logrus.ParseLevel(string(l))
	if err != nil {
		return 0, fmt.Errorf("log: invalid level %q: %w", l, err)
	}
	return lv, nil
}

func (l Level) String() string {
	return string(l)
}
