package log

import (
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
)

// LogEvent collects fields for one entry. A nil *LogEvent is a disabled event:
// every method is a no-op, so call chains need no level checks.
type LogEvent struct {
	logger *GameLogger
	level  logrus.Level
	fields logrus.Fields
}

func newEvent(logger *GameLogger) *LogEvent {
	return &LogEvent{
		logger: logger,
		fields: make(logrus.Fields, 8),
	}
}

// Reset clears the event for reuse from the pool.
func (e *LogEvent) Reset() {
	for k := range e.fields {
		delete(e.fields, k)
	}
}

func (e *LogEvent) Str(key, val string) *LogEvent {
	if e == nil {
		return e
	}
	e.fields[key] = val
	return e
}

func (e *LogEvent) Int(key string, val int) *LogEvent {
	if e == nil {
		return e
	}
	e.fields[key] = val
	return e
}

func (e *LogEvent) Int64(key string, val int64) *LogEvent {
	if e == nil {
		return e
	}
	e.fields[key] = val
	return e
}

func (e *LogEvent) Uint64(key string, val uint64) *LogEvent {
	if e == nil {
		return e
	}
	e.fields[key] = val
	return e
}

func (e *LogEvent) Bool(key string, val bool) *LogEvent {
	if e == nil {
		return e
	}
	e.fields[key] = val
	return e
}

func (e *LogEvent) Dur(key string, val time.Duration) *LogEvent {
	if e == nil {
		return e
	}
	e.fields[key] = val.String()
	return e
}

// Hex adds val as a "0x"-prefixed upper-case hex string.
func (e *LogEvent) Hex(key string, val []byte) *LogEvent {
	if e == nil {
		return e
	}
	e.fields[key] = fmt.Sprintf("0x%X", val)
	return e
}

// Stringer adds val.String(); nil is recorded as "<nil>".
func (e *LogEvent) Stringer(key string, val fmt.Stringer) *LogEvent {
	if e == nil {
		return e
	}
	if val == nil {
		e.fields[key] = "<nil>"
		return e
	}
	e.fields[key] = val.String()
	return e
}

func (e *LogEvent) Any(key string, val any) *LogEvent {
	if e == nil {
		return e
	}
	e.fields[key] = val
	return e
}

// Err adds err under logrus' error key. A nil err is ignored.
func (e *LogEvent) Err(err error) *LogEvent {
	if e == nil || err == nil {
		return e
	}
	e.fields[logrus.ErrorKey] = err
	return e
}

// Msg writes the entry and releases the event. The event must not be used afterwards.
func (e *LogEvent) Msg(msg string) {
	if e == nil {
		return
	}
	e.logger.OnEventEnd(e, msg)
}

func (e *LogEvent) Msgf(format string, v ...any) {
	if e == nil {
		return
	}
	e.logger.OnEventEnd(e, fmt.Sprintf(format, v...))
}
