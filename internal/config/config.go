package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type Config struct {
	ImageDirectory   string `yaml:"image_dir"`
	MetadataFile     string `yaml:"metadata_file"`
	MetadataVariable string `yaml:"metadata_var"` // Top-level struct in the MAT-file ("wiki" or "imdb")
	DatasetArchive   string `yaml:"dataset_archive"`
	ArchiveSubfolder string `yaml:"archive_subfolder"`
	JSONDirectory    string `yaml:"json_dir"`
	VOCDirectory     string `yaml:"voc_dir"`        // Empty = <parent>/VOC_<image dir>/single
	JSONDialect      string `yaml:"json_dialect"`   // strict | legacy
	BoxConvention    string `yaml:"box_convention"` // corners | center
	CatalogDB        string `yaml:"catalog_db"`     // Empty disables the catalog
	ImageExtension   string `yaml:"image_ext"`
	ViewerAddr       string `yaml:"viewer_addr"` // Empty = native window
	ViewerPollMS     int    `yaml:"viewer_poll_ms"`
	ViewerMaxSide    int    `yaml:"viewer_max_side"`
	LogDirectory     string `yaml:"log_dir"` // Empty = stdout/stderr only
}

func defaults() *Config {
	return &Config{
		ImageDirectory:   filepath.Join("datasets", "IMDB-WIKI"),
		MetadataFile:     filepath.Join("datasets", "IMDB-WIKI", "wiki_crop", "wiki.mat"),
		MetadataVariable: "wiki",
		DatasetArchive:   "wiki_crop.tar",
		ArchiveSubfolder: "wiki_crop",
		JSONDirectory:    filepath.Join("datasets", "JSON_IMDB-WIKI"),
		JSONDialect:      "strict",
		BoxConvention:    "corners",
		ImageExtension:   ".jpg",
		ViewerPollMS:     100,
		ViewerMaxSide:    1280,
		LogDirectory:     filepath.Join(".", "logs"),
	}
}

// Load builds the configuration: defaults, then the YAML file named by
// CONFIG_FILE, then the environment (a .env file in the working directory is
// loaded first without overriding variables already set).
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}

	cfg := defaults()
	if path := os.Getenv("CONFIG_FILE"); path != "" {
		var err error
		if cfg, err = LoadFile(path); err != nil {
			return nil, err
		}
	}

	cfg.ImageDirectory = getEnv("IMAGE_DIR", cfg.ImageDirectory)
	cfg.MetadataFile = getEnv("METADATA_FILE", cfg.MetadataFile)
	cfg.MetadataVariable = getEnv("METADATA_VAR", cfg.MetadataVariable)
	cfg.DatasetArchive = getEnv("DATASET_ARCHIVE", cfg.DatasetArchive)
	cfg.ArchiveSubfolder = getEnv("ARCHIVE_SUBFOLDER", cfg.ArchiveSubfolder)
	cfg.JSONDirectory = getEnv("JSON_DIR", cfg.JSONDirectory)
	cfg.VOCDirectory = getEnv("VOC_DIR", cfg.VOCDirectory)
	cfg.JSONDialect = getEnv("JSON_DIALECT", cfg.JSONDialect)
	cfg.BoxConvention = getEnv("BOX_CONVENTION", cfg.BoxConvention)
	cfg.CatalogDB = getEnv("CATALOG_DB", cfg.CatalogDB)
	cfg.ImageExtension = getEnv("IMAGE_EXT", cfg.ImageExtension)
	cfg.ViewerAddr = getEnv("VIEWER_ADDR", cfg.ViewerAddr)
	cfg.ViewerPollMS = getEnvAsInt("VIEWER_POLL_MS", cfg.ViewerPollMS)
	cfg.ViewerMaxSide = getEnvAsInt("VIEWER_MAX_SIDE", cfg.ViewerMaxSide)
	cfg.LogDirectory = getEnvOrEmpty("LOG_DIR", cfg.LogDirectory)

	return cfg, nil
}

// LoadFile reads a YAML configuration on top of the defaults.
// Keys missing from the file keep their default values.
func LoadFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := defaults()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	return cfg, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvOrEmpty lets an explicitly empty variable clear the value.
func getEnvOrEmpty(key, defaultValue string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}
