package log

import (
	"sync/atomic"

	"github.com/lcx/oldentide-client/config"
)

// Logger is the surface shared by GameLogger and the package-level functions.
type Logger interface {
	Trace() *LogEvent
	Debug() *LogEvent
	Info() *LogEvent
	Warn() *LogEvent
	Error() *LogEvent
	Fatal() *LogEvent
	GetAppender() []LogAppender
	AddAppender(appender LogAppender)
	OnEventEnd(e *LogEvent, msg string)
}

var _ Logger = (*GameLogger)(nil)

var _defaultLogger atomic.Pointer[GameLogger]

func init() {
	_defaultLogger.Store(NewLogger(nil))
}

// Default returns the logger behind the package-level functions.
func Default() *GameLogger {
	return _defaultLogger.Load()
}

// AddAppender adds an appender to the default logger.
func AddAppender(appender LogAppender) {
	Default().AddAppender(appender)
}

// Refresh refreshes every appender of the default logger.
func Refresh() {
	Default().Refresh()
}

// SetDefaultLogger replaces the logger behind the package-level functions.
func SetDefaultLogger(logger *GameLogger) {
	if logger == nil {
		return
	}
	_defaultLogger.Store(logger)
}

// InitializeWithConfigManager loads the "logger" section from configManager,
// installs the result as the default logger and subscribes it to reloads.
func InitializeWithConfigManager(configManager config.ConfigManager) error {
	if configManager == nil {
		return nil
	}

	logCfg := &LogCfg{}
	if err := configManager.LoadConfig(logCfg.GetName(), logCfg); err != nil {
		return err
	}

	SetDefaultLogger(NewLoggerWithConfigManager(logCfg, configManager))
	return nil
}

// Initialize is InitializeWithConfigManager on the process-wide ConfigManager.
func Initialize() error {
	return InitializeWithConfigManager(config.GetInstance())
}

func Trace() *LogEvent { return Default().Trace() }

func Debug() *LogEvent { return Default().Debug() }

func Info() *LogEvent { return Default().Info() }

func Warn() *LogEvent { return Default().Warn() }

func Error() *LogEvent { return Default().Error() }

func Fatal() *LogEvent { return Default().Fatal() }
