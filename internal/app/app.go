package app

import (
	"fmt"
	"os"
	"path/filepath"

	"faceann/internal/config"
	"faceann/internal/logger"
	"faceann/internal/repository"
	"faceann/internal/repository/sqlite"
)

// App holds what every command shares: the configuration, the logger and
// the optional conversion catalog.
type App struct {
	config *config.Config
	logger *logger.Logger
	db     *sqlite.DB
	repo   *sqlite.AnnotationRepository
}

// New opens the catalog when cfg.CatalogDB is set.
func New(cfg *config.Config) (*App, error) {
	a := &App{
		config: cfg,
		logger: logger.NewLogger(cfg),
	}

	if cfg.CatalogDB != "" {
		if err := os.MkdirAll(filepath.Dir(cfg.CatalogDB), 0755); err != nil {
			return nil, fmt.Errorf("failed to create catalog directory: %w", err)
		}
		db, err := sqlite.New(cfg.CatalogDB)
		if err != nil {
			return nil, fmt.Errorf("failed to open catalog: %w", err)
		}
		a.db = db
		a.repo = sqlite.NewAnnotationRepository(db)
		a.logger.Info("Catalog: %s", cfg.CatalogDB)
	}
	return a, nil
}

func (a *App) Config() *config.Config { return a.config }

func (a *App) Logger() *logger.Logger { return a.logger }

// Catalog returns the annotation repository, or nil when the catalog is
// disabled.
func (a *App) Catalog() repository.AnnotationRepository {
	if a.repo == nil {
		return nil
	}
	return a.repo
}

func (a *App) Close() error {
	if a.db == nil {
		return nil
	}
	return a.db.Close()
}
