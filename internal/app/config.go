package app

import (
	"errors"
	"time"
)

// Config holds all the necessary configuration for an App instance to run.
type Config struct {
	ProjectPath string // hcl project file
	CatalogPath string // optional directory of extra kind manifests

	Compiler   string
	CFlags     []string
	OutputPath string
	Build      bool
	Run        bool
	Timeout    time.Duration

	LogFormat string
	LogLevel  string
}

func NewConfig(cfg Config) (*Config, error) {
	if cfg.ProjectPath == "" {
		return nil, errors.New("ProjectPath is a required configuration field and cannot be empty")
	}
	if cfg.Run && !cfg.Build {
		return nil, errors.New("Run requires Build")
	}

	return &cfg, nil
}
