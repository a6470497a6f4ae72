package app

import (
	"errors"
	"time"
)

// Config holds all the necessary configuration for an App instance to run.
type Config struct {
	ProjectPath string

	LogFormat       string
	LogLevel        string
	HealthcheckPort int
	WorkerCount     int

	// Watch keeps the app running and rebuilds fragments as files change.
	Watch         bool
	WatchDebounce time.Duration

	// Backend is an optional command template run on every generated unit.
	Backend string
}

func NewConfig(cfg Config) (*Config, error) {
	if cfg.ProjectPath == "" {
		return nil, errors.New("ProjectPath is a required configuration field and cannot be empty")
	}
	if cfg.WorkerCount <= 0 {
		return nil, errors.New("WorkerCount must be positive")
	}

	return &cfg, nil
}
