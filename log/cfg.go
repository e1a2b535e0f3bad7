package log

// LogCfg is the logger section (logger.yaml).
type LogCfg struct {
	// LogPath is the file written by the file appender.
	LogPath string `mapstructure:"path"`

	// LogLevel is the minimum level emitted. Hot-reloadable.
	LogLevel Level `mapstructure:"level"`

	// Format selects the entry layout: "text" or "json".
	Format string `mapstructure:"format"`

	FileAppender    bool `mapstructure:"fileAppender"`
	ConsoleAppender bool `mapstructure:"consoleAppender"`

	EnabledCallerInfo bool `mapstructure:"enabledCallerInfo"`
}

// GetName implements config.Config.
func (cfg *LogCfg) GetName() string {
	return "logger"
}

// Validate implements config.Config.
func (cfg *LogCfg) Validate() error {
	if _, err := cfg.LogLevel.parse(); err != nil {
		return err
	}
	if cfg.FileAppender && cfg.LogPath == "" {
		return errEmptyLogPath
	}
	switch cfg.Format {
	case "", "text", "json":
	default:
		return errUnknownFormat
	}
	return nil
}

var _defaultCfg = &LogCfg{
	LogPath:         "./oldentide-client.log",
	LogLevel:        InfoLevel,
	Format:          "text",
	FileAppender:    false,
	ConsoleAppender: true,
}

func getDefaultCfg() *LogCfg {
	return _defaultCfg
}
