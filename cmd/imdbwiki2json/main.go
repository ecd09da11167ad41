package main

import (
	"flag"
	"fmt"
	"log"
	"os"

	"faceann/internal/app"
	"faceann/internal/config"
	"faceann/internal/convert"
	"faceann/internal/dataset"
	"faceann/internal/imdbwiki"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	extract := flag.Bool("extract", false, "Extract the dataset archive and flatten its sub-folders first")
	flag.StringVar(&cfg.DatasetArchive, "archive", cfg.DatasetArchive, "Dataset tar archive")
	flag.StringVar(&cfg.ArchiveSubfolder, "subfolder", cfg.ArchiveSubfolder, "Images and annotations sub-folder inside the archive")
	flag.StringVar(&cfg.ImageDirectory, "images", cfg.ImageDirectory, "Directory of images")
	flag.StringVar(&cfg.MetadataFile, "metadata", cfg.MetadataFile, "MAT-file with the dataset metadata")
	flag.StringVar(&cfg.MetadataVariable, "db", cfg.MetadataVariable, "Metadata variable (wiki or imdb)")
	flag.StringVar(&cfg.JSONDirectory, "json", cfg.JSONDirectory, "Output directory for JSON annotations")
	flag.StringVar(&cfg.JSONDialect, "dialect", cfg.JSONDialect, "JSON dialect: strict or legacy")
	flag.Parse()

	a, err := app.New(cfg)
	if err != nil {
		log.Fatalf("Failed to start: %v", err)
	}

	err = run(a, *extract)
	a.Close()
	if err != nil {
		a.Logger().Error("%v", err)
		os.Exit(1)
	}
}

func run(a *app.App, extract bool) error {
	cfg, logger := a.Config(), a.Logger()

	if extract {
		n, err := dataset.ExtractTar(cfg.DatasetArchive, cfg.ImageDirectory)
		if err != nil {
			return err
		}
		logger.Info("Extracted %d files from %s", n, cfg.DatasetArchive)

		moved, err := dataset.Flatten(cfg.ImageDirectory, cfg.ArchiveSubfolder)
		if err != nil {
			return err
		}
		logger.Info("Moved %d images into %s", moved, cfg.ImageDirectory)
	}

	table, err := imdbwiki.LoadTable(cfg.MetadataFile, cfg.MetadataVariable)
	if err != nil {
		return err
	}
	logger.Info("Loaded %d records from %s", table.Len(), cfg.MetadataFile)

	conv, err := convert.New(cfg, logger, a.Catalog())
	if err != nil {
		return err
	}
	report, err := conv.IMDBWikiToJSON(table, cfg.ImageDirectory, cfg.JSONDirectory)
	if err != nil {
		return err
	}

	fmt.Printf("✅ %d JSON annotations written to %s\n", report.Written, cfg.JSONDirectory)
	if report.Skipped > 0 {
		fmt.Printf("⚠️  Skipped %d records (image not found)\n", report.Skipped)
	}
	if report.Failed > 0 {
		fmt.Printf("❌ %d malformed records\n", report.Failed)
	}
	return nil
}
