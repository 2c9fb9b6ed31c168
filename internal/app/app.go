package app

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/vk/araknidgo/internal/catalog"
	"github.com/vk/araknidgo/internal/ctxlog"
)

// App encapsulates the application's dependencies, configuration, and lifecycle.
type App struct {
	outW   io.Writer
	errW   io.Writer
	inR    io.Reader
	logger *slog.Logger
	config *Config
	cat    *catalog.Catalog
}

// NewApp is the constructor for the main application. It returns a fully
// initialized App instance, including its own isolated logger and catalog.
func NewApp(outW, errW io.Writer, inR io.Reader, appConfig *Config) (*App, error) {
	logger := newLogger(appConfig.LogLevel, appConfig.LogFormat, errW)
	ctx := ctxlog.WithLogger(context.Background(), logger)
	logger.Debug("Logger configured successfully.")

	var extraDirs []string
	if appConfig.CatalogPath != "" {
		extraDirs = append(extraDirs, appConfig.CatalogPath)
	}
	cat, err := catalog.Load(ctx, extraDirs...)
	if err != nil {
		return nil, fmt.Errorf("failed to load block catalog: %w", err)
	}
	logger.Debug("Block catalog loaded.", "kinds", cat.Len())

	return &App{
		outW:   outW,
		errW:   errW,
		inR:    inR,
		logger: logger,
		config: appConfig,
		cat:    cat,
	}, nil
}

// Catalog returns the application's catalog. This is primarily for testing.
func (a *App) Catalog() *catalog.Catalog {
	return a.cat
}
