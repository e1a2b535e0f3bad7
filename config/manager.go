package config

import (
	"errors"
	"fmt"
	"path/filepath"
	"reflect"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/sirupsen/logrus"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

var (
	// ErrConfigNotFound is returned by GetConfig for a section that was never loaded.
	ErrConfigNotFound = errors.New("config not found")
	// ErrConfigFileNotFound is returned by LoadConfig when no file exists for the section.
	ErrConfigFileNotFound = errors.New("config file not found")
)

// reloadDelay coalesces the burst of events a single editor save produces.
const reloadDelay = 100 * time.Millisecond

// ConfigManager interface for configuration management
type ConfigManager interface {
	LoadConfig(configName string, config Config) error
	GetConfig(configName string) (Config, error)
	RegisterValidator(configName string, validator ValidatorFunc)
	BindFlag(configName, key string, flag *pflag.Flag)
	SetBasePath(path string)
	SetEnvironment(env string)
	AddChangeListener(listener ConfigChangeListener)
	RemoveChangeListener(listener ConfigChangeListener)
	NotifyConfigChanged(configName string, newConfig, oldConfig Config)
	Close() error
}

// ValidatorFunc configuration validation function
type ValidatorFunc func(Config) error

// configManager implementation of ConfigManager interface
type configManager struct {
	mu         sync.RWMutex
	configs    map[string]Config
	watchers   map[string]*fsnotify.Watcher
	validators map[string]ValidatorFunc
	flags      map[string]map[string]*pflag.Flag
	listeners  []ConfigChangeListener
	basePath   string
	env        string
}

// NewConfigManager creates a new configuration manager
func NewConfigManager() ConfigManager {
	return &configManager{
		configs:    make(map[string]Config),
		watchers:   make(map[string]*fsnotify.Watcher),
		validators: make(map[string]ValidatorFunc),
		flags:      make(map[string]map[string]*pflag.Flag),
		basePath:   "./configs",
		env:        "development",
	}
}

func (cm *configManager) newViper(configName string) *viper.Viper {
	v := viper.New()

	v.SetConfigName(configName)
	v.SetConfigType("yaml")
	v.AddConfigPath(cm.basePath)
	v.AddConfigPath(filepath.Join(cm.basePath, cm.env))

	// CLIENT_SERVERHOST overrides serverHost in client.yaml
	v.AutomaticEnv()
	v.SetEnvPrefix(strings.ToUpper(configName))
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	for key, flag := range cm.flags[configName] {
		_ = v.BindPFlag(key, flag)
	}
	return v
}

// LoadConfig reads <basePath>/<configName>.yaml (or the environment subdirectory)
// into config, validates it and starts watching the file for changes.
func (cm *configManager) LoadConfig(configName string, config Config) error {
	cm.mu.Lock()
	defer cm.mu.Unlock()

	v := cm.newViper(configName)
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) {
			return fmt.Errorf("%w: %s.yaml in %s", ErrConfigFileNotFound, configName, cm.basePath)
		}
		return fmt.Errorf("read config failed: %w", err)
	}

	if err := v.Unmarshal(config); err != nil {
		return fmt.Errorf("unmarshal config failed: %w", err)
	}

	if err := cm.validate(configName, config); err != nil {
		return fmt.Errorf("validate config failed: %w", err)
	}

	cm.configs[configName] = config

	if _, watching := cm.watchers[configName]; watching {
		return nil
	}
	if err := cm.watchConfigFile(configName, v); err != nil {
		return fmt.Errorf("watch config file failed: %w", err)
	}

	return nil
}

// validate runs the section's own Validate and then the registered validator.
// Callers hold cm.mu.
func (cm *configManager) validate(configName string, config Config) error {
	if err := config.Validate(); err != nil {
		return err
	}
	if validator, exists := cm.validators[configName]; exists {
		return validator(config)
	}
	return nil
}

// GetConfig returns the last successfully loaded value of a section.
func (cm *configManager) GetConfig(configName string) (Config, error) {
	cm.mu.RLock()
	defer cm.mu.RUnlock()

	config, exists := cm.configs[configName]
	if !exists {
		return nil, fmt.Errorf("%w: %s", ErrConfigNotFound, configName)
	}

	return config, nil
}

// RegisterValidator registers configuration validator
func (cm *configManager) RegisterValidator(configName string, validator ValidatorFunc) {
	cm.mu.Lock()
	defer cm.mu.Unlock()
	cm.validators[configName] = validator
}

// BindFlag makes a command-line flag the source of key in configName. A flag
// set on the command line wins over the file and the environment, on load and
// on every reload, and is seen by validation. Bind before LoadConfig.
func (cm *configManager) BindFlag(configName, key string, flag *pflag.Flag) {
	if flag == nil {
		return
	}
	cm.mu.Lock()
	defer cm.mu.Unlock()
	if cm.flags[configName] == nil {
		cm.flags[configName] = make(map[string]*pflag.Flag)
	}
	cm.flags[configName][key] = flag
}

// SetBasePath sets base path for configuration files
func (cm *configManager) SetBasePath(path string) {
	cm.mu.Lock()
	defer cm.mu.Unlock()
	cm.basePath = path
}

// SetEnvironment sets environment for configuration
func (cm *configManager) SetEnvironment(env string) {
	cm.mu.Lock()
	defer cm.mu.Unlock()
	cm.env = env
}

// AddChangeListener registers a listener for all future reloads.
func (cm *configManager) AddChangeListener(listener ConfigChangeListener) {
	if listener == nil {
		return
	}
	cm.mu.Lock()
	defer cm.mu.Unlock()
	cm.listeners = append(cm.listeners, listener)
}

// RemoveChangeListener unregisters a listener previously added.
func (cm *configManager) RemoveChangeListener(listener ConfigChangeListener) {
	cm.mu.Lock()
	defer cm.mu.Unlock()
	for i, l := range cm.listeners {
		if l == listener {
			cm.listeners = append(cm.listeners[:i], cm.listeners[i+1:]...)
			return
		}
	}
}

// NotifyConfigChanged delivers a change to every listener. A failing listener is
// logged and does not stop delivery to the others.
func (cm *configManager) NotifyConfigChanged(configName string, newConfig, oldConfig Config) {
	cm.mu.RLock()
	listeners := make([]ConfigChangeListener, len(cm.listeners))
	copy(listeners, cm.listeners)
	cm.mu.RUnlock()

	for _, l := range listeners {
		if err := l.OnConfigChanged(configName, newConfig, oldConfig); err != nil {
			logrus.WithError(err).WithField("config", configName).Warn("config change listener failed")
		}
	}
}

// watchConfigFile reloads configName whenever its file is written or replaced.
// The directory is watched, so editors that save by renaming are seen too.
// Callers hold cm.mu.
func (cm *configManager) watchConfigFile(configName string, v *viper.Viper) error {
	used := v.ConfigFileUsed()
	if used == "" {
		return nil
	}
	configFile := filepath.Clean(used)

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	if err := watcher.Add(filepath.Dir(configFile)); err != nil {
		_ = watcher.Close()
		return err
	}
	cm.watchers[configName] = watcher

	go func() {
		var pending *time.Timer
		defer func() {
			if pending != nil {
				pending.Stop()
			}
		}()

		for {
			select {
			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				if filepath.Clean(event.Name) != configFile {
					continue
				}
				if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
					continue
				}
				if pending == nil {
					pending = time.AfterFunc(reloadDelay, func() { cm.reloadConfig(configName) })
				} else {
					pending.Reset(reloadDelay)
				}
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				logrus.WithError(err).WithField("config", configName).Warn("config watcher error")
			}
		}
	}()

	return nil
}

// reloadConfig reloads configuration when file changes. A file that fails to
// parse or validate leaves the previous value in place.
func (cm *configManager) reloadConfig(configName string) {
	cm.mu.Lock()

	oldConfig, exists := cm.configs[configName]
	if !exists {
		cm.mu.Unlock()
		return
	}

	// preserve the concrete type of the section
	newConfig := reflect.New(reflect.TypeOf(oldConfig).Elem()).Interface().(Config)

	v := cm.newViper(configName)
	entry := logrus.WithField("config", configName)

	if err := v.ReadInConfig(); err != nil {
		cm.mu.Unlock()
		entry.WithError(err).Warn("reload: read failed, keeping previous config")
		return
	}

	if err := v.Unmarshal(newConfig); err != nil {
		cm.mu.Unlock()
		entry.WithError(err).Warn("reload: unmarshal failed, keeping previous config")
		return
	}

	if err := cm.validate(configName, newConfig); err != nil {
		cm.mu.Unlock()
		entry.WithError(err).Warn("reload: validation failed, keeping previous config")
		return
	}

	cm.configs[configName] = newConfig
	cm.mu.Unlock()

	cm.NotifyConfigChanged(configName, newConfig, oldConfig)
}

// Close closes the configuration manager
func (cm *configManager) Close() error {
	cm.mu.Lock()
	defer cm.mu.Unlock()

	var errs []error
	for name, watcher := range cm.watchers {
		if err := watcher.Close(); err != nil {
			errs = append(errs, err)
		}
		delete(cm.watchers, name)
	}

	return errors.Join(errs...)
}
