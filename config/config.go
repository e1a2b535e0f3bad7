// Package config loads named YAML configuration sections and keeps them current
// while the process runs.
package config

// Config interface defines the basic configuration contract
type Config interface {
	GetName() string
	Validate() error
}

// ConfigChangeListener is notified after a watched configuration file has been
// reloaded and validated. Listeners receive every reload and filter on configName.
type ConfigChangeListener interface {
	OnConfigChanged(configName string, newConfig, oldConfig Config) error
}
