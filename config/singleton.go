package config

import "sync"

var (
	_instance     ConfigManager
	_instanceOnce sync.Once
	_instanceMu   sync.Mutex
)

// GetInstance returns the process-wide ConfigManager, creating it on first use.
func GetInstance() ConfigManager {
	_instanceMu.Lock()
	defer _instanceMu.Unlock()

	_instanceOnce.Do(func() {
		if _instance == nil {
			_instance = NewConfigManager()
		}
	})
	return _instance
}

// SetInstanceForTesting replaces the process-wide ConfigManager.
func SetInstanceForTesting(cm ConfigManager) {
	_instanceMu.Lock()
	defer _instanceMu.Unlock()

	_instance = cm
	_instanceOnce = sync.Once{}
}

// ResetInstance drops the process-wide ConfigManager so the next GetInstance
// builds a fresh one.
func ResetInstance() {
	_instanceMu.Lock()
	defer _instanceMu.Unlock()

	if _instance != nil {
		_ = _instance.Close()
	}
	_instance = nil
	_instanceOnce = sync.Once{}
}
