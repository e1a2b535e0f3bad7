package log

import (
	"io"
	"path/filepath"
	"runtime"
	"strconv"
	"sync"
	"sync/atomic"

	"github.com/sirupsen/logrus"

	"github.com/lcx/oldentide-client/config"
)

// GameLogger is the chained-event logger used across the client. Fields are
// collected on a pooled LogEvent and handed to a logrus backend, which formats
// the entry and writes it to every appender.
//
//	logger := NewLogger(&LogCfg{LogLevel: InfoLevel, ConsoleAppender: true})
//	logger.Info().Str("server", addr).Int("port", port).Msg("transport opened")
type GameLogger struct {
	mu                sync.RWMutex
	backend           *logrus.Logger
	appenders         []LogAppender
	minLevel          atomic.Uint32
	enabledCallerInfo atomic.Bool
	eventPool         *sync.Pool
	currentConfig     *LogCfg
}

// NewLogger builds a logger from cfg; nil selects the defaults (info, console).
// An invalid level falls back to info and a file appender that cannot be opened
// is skipped, so logger construction never fails.
func NewLogger(cfg *LogCfg) *GameLogger {
	if cfg == nil {
		cfg = getDefaultCfg()
	}

	logger := &GameLogger{
		backend: logrus.New(),
	}
	logger.eventPool = &sync.Pool{
		New: func() any {
			return newEvent(logger)
		},
	}

	// the backend must not filter; GameLogger owns the level check
	logger.backend.SetLevel(logrus.TraceLevel)
	logger.applyConfig(cfg)

	if cfg.FileAppender {
		if fa, err := NewFileAppender(cfg.LogPath); err == nil {
			logger.AddAppender(fa)
		} else {
			if !cfg.ConsoleAppender {
				logger.AddAppender(NewConsoleAppender())
			}
			logger.Warn().Err(err).Msg("file appender disabled")
		}
	}
	if cfg.ConsoleAppender {
		logger.AddAppender(NewConsoleAppender())
	}
	logger.syncOutput()

	return logger
}

// NewLoggerWithConfigManager builds a logger and subscribes it to reloads of
// the "logger" section.
func NewLoggerWithConfigManager(cfg *LogCfg, configManager config.ConfigManager) *GameLogger {
	logger := NewLogger(cfg)
	if configManager != nil {
		configManager.AddChangeListener(logger)
	}
	return logger
}

func (x *GameLogger) applyConfig(cfg *LogCfg) {
	lv, err := cfg.LogLevel.parse()
	if err != nil {
		lv = logrus.InfoLevel
	}
	x.minLevel.Store(uint32(lv))
	x.enabledCallerInfo.Store(cfg.EnabledCallerInfo)

	if cfg.Format == "json" {
		x.backend.SetFormatter(&logrus.JSONFormatter{})
	} else {
		x.backend.SetFormatter(&logrus.TextFormatter{
			FullTimestamp: true,
		})
	}

	x.mu.Lock()
	x.currentConfig = cfg
	x.mu.Unlock()
}

// OnConfigChanged implements config.ConfigChangeListener. Level, format and
// caller info follow the new section; appenders are kept and refreshed.
func (x *GameLogger) OnConfigChanged(configName string, newConfig, oldConfig config.Config) error {
	if configName != "logger" {
		return nil
	}
	newLogCfg, ok := newConfig.(*LogCfg)
	if !ok {
		return nil
	}

	x.applyConfig(newLogCfg)
	x.Refresh()
	x.Info().Str("level", newLogCfg.LogLevel.String()).Msg("logger configuration reloaded")
	return nil
}

// GetCurrentConfig returns the section the logger was last configured from.
func (x *GameLogger) GetCurrentConfig() *LogCfg {
	x.mu.RLock()
	defer x.mu.RUnlock()
	return x.currentConfig
}

// SetLevel changes the minimum level at runtime.
func (x *GameLogger) SetLevel(level Level) error {
	lv, err := level.parse()
	if err != nil {
		return err
	}
	x.minLevel.Store(uint32(lv))
	return nil
}

func (x *GameLogger) checkLevel(level logrus.Level) bool {
	// logrus levels grow more verbose as the value increases
	return level <= logrus.Level(x.minLevel.Load())
}

// AddAppender adds an output destination.
func (x *GameLogger) AddAppender(appender LogAppender) {
	x.mu.Lock()
	x.appenders = append(x.appenders, appender)
	x.mu.Unlock()
	x.syncOutput()
}

// SetAppenders replaces every output destination. Replaced appenders are closed.
func (x *GameLogger) SetAppenders(appenders ...LogAppender) {
	x.mu.Lock()
	old := x.appenders
	x.appenders = appenders
	x.mu.Unlock()
	x.syncOutput()

	for _, a := range old {
		_ = a.Close()
	}
}

// GetAppender returns the registered appenders.
func (x *GameLogger) GetAppender() []LogAppender {
	x.mu.RLock()
	defer x.mu.RUnlock()
	return append([]LogAppender(nil), x.appenders...)
}

func (x *GameLogger) syncOutput() {
	x.mu.RLock()
	defer x.mu.RUnlock()

	switch len(x.appenders) {
	case 0:
		x.backend.SetOutput(io.Discard)
	case 1:
		x.backend.SetOutput(x.appenders[0])
	default:
		writers := make([]io.Writer, len(x.appenders))
		for i, a := range x.appenders {
			writers[i] = a
		}
		x.backend.SetOutput(io.MultiWriter(writers...))
	}
}

// Refresh asks every appender to reopen its resources.
func (x *GameLogger) Refresh() {
	for _, appender := range x.GetAppender() {
		appender.Refresh()
	}
}

// Close closes every appender.
func (x *GameLogger) Close() error {
	var firstErr error
	for _, appender := range x.GetAppender() {
		if err := appender.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// OnEventEnd writes e through the backend and returns it to the pool.
func (x *GameLogger) OnEventEnd(e *LogEvent, msg string) {
	if x.enabledCallerInfo.Load() {
		// 0 OnEventEnd, 1 Msg/Msgf, 2 caller
		if _, file, line, ok := runtime.Caller(2); ok {
			e.fields["caller"] = filepath.Base(filepath.Dir(file)) + "/" + filepath.Base(file) + ":" + strconv.Itoa(line)
		}
	}

	entry := x.backend.WithFields(e.fields)
	level := e.level
	entry.Log(level, msg)

	e.Reset()
	x.eventPool.Put(e)

	if level == logrus.FatalLevel {
		x.backend.Exit(1)
	}
}

func (x *GameLogger) log(level logrus.Level) *LogEvent {
	if !x.checkLevel(level) {
		return nil
	}
	e := x.eventPool.Get().(*LogEvent)
	e.level = level
	return e
}

func (x *GameLogger) Trace() *LogEvent { return x.log(logrus.TraceLevel) }

func (x *GameLogger) Debug() *LogEvent { return x.log(logrus.DebugLevel) }

func (x *GameLogger) Info() *LogEvent { return x.log(logrus.InfoLevel) }

func (x *GameLogger) Warn() *LogEvent { return x.log(logrus.WarnLevel) }

func (x *GameLogger) Error() *LogEvent { return x.log(logrus.ErrorLevel) }

// Fatal logs and then terminates the process with exit code 1.
func (x *GameLogger) Fatal() *LogEvent { return x.log(logrus.FatalLevel) }
