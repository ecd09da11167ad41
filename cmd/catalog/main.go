package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sort"

	"faceann/internal/app"
	"faceann/internal/config"
	"faceann/internal/convert"
	"faceann/internal/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	annDir := flag.String("annotations", cfg.JSONDirectory, "Annotation directory to index (JSON_<name> for JSON, otherwise VOC)")
	flag.StringVar(&cfg.ImageDirectory, "images", cfg.ImageDirectory, "Directory of images, for sizes missing from the annotations")
	flag.StringVar(&cfg.CatalogDB, "db", cfg.CatalogDB, "Catalog database path")
	reset := flag.Bool("reset", false, "Delete every catalog entry before indexing")
	statsOnly := flag.Bool("stats", false, "Only print catalog statistics")
	cleanLogs := flag.Bool("clean-logs", false, "Truncate the log files in LOG_DIRECTORY before indexing")
	flag.Parse()

	if cfg.CatalogDB == "" {
		cfg.CatalogDB = filepath.Join("data", "catalog.db")
	}

	a, err := app.New(cfg)
	if err != nil {
		log.Fatalf("Failed to open catalog: %v", err)
	}
	defer a.Close()
	repo := a.Catalog()

	if *cleanLogs {
		for _, name := range logger.Files {
			if err := a.Logger().CleanLogs(name); err != nil {
				log.Fatalf("Failed to clean logs: %v", err)
			}
		}
	}

	if *reset {
		if err := repo.DeleteAll(); err != nil {
			log.Fatalf("Failed to reset catalog: %v", err)
		}
		fmt.Println("🗑️  Catalog cleared")
	}

	if !*statsOnly {
		fmt.Printf("Indexing %s into %s\n", *annDir, cfg.CatalogDB)
		conv, err := convert.New(cfg, a.Logger(), repo)
		if err != nil {
			log.Fatalf("Invalid configuration: %v", err)
		}
		report, err := conv.Index(*annDir, cfg.ImageDirectory)
		if err != nil {
			a.Logger().Error("Failed to index %s: %v", *annDir, err)
			a.Close()
			os.Exit(1)
		}
		fmt.Printf("✅ Indexed %d annotations\n", report.Written)
		if report.Failed > 0 {
			fmt.Printf("⚠️  Skipped %d files (malformed)\n", report.Failed)
		}
	}

	stats, err := repo.GetStats()
	if err != nil {
		log.Fatalf("Failed to read statistics: %v", err)
	}
	fmt.Printf("\n📊 Catalog Statistics:\n")
	fmt.Printf("   Total annotations: %d\n", stats.Annotations)
	fmt.Printf("   Total objects: %d\n", stats.Objects)
	printCounts("Per format", stats.PerFormat, "annotations")
	printCounts("Per class", stats.ClassCounts, "objects")
	printCounts("Gender", stats.GenderCounts, "objects")
}

func printCounts(title string, counts map[string]int, unit string) {
	if len(counts) == 0 {
		return
	}
	keys := make([]string, 0, len(counts))
	for k := range counts {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	fmt.Printf("   %s:\n", title)
	for _, k := range keys {
		fmt.Printf("      - %s: %d %s\n", k, counts[k], unit)
	}
}
