package config

import (
	"fmt"
	"sync"
)

var (
	mu       sync.RWMutex
	instance *Config
)

func setInstance(cfg *Config) {
	mu.Lock()
	defer mu.Unlock()
	instance = cfg
}

// Get returns the process-wide config loaded by Load.
func Get() (*Config, error) {
	mu.RLock()
	defer mu.RUnlock()
	if instance == nil {
		return nil, fmt.Errorf("config is not loaded")
	}
	return instance, nil
}
