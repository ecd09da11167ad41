package main

import (
	"flag"
	"fmt"
	"log"
	"os"

	"faceann/internal/app"
	"faceann/internal/config"
	"faceann/internal/convert"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	flag.StringVar(&cfg.JSONDirectory, "json", cfg.JSONDirectory, "Directory of JSON annotations")
	flag.StringVar(&cfg.ImageDirectory, "images", cfg.ImageDirectory, "Directory of images")
	flag.StringVar(&cfg.VOCDirectory, "voc", cfg.VOCDirectory, "Output directory (default <parent>/VOC_<images>/single)")
	flag.StringVar(&cfg.ImageExtension, "ext", cfg.ImageExtension, "Image file extension")
	flag.Parse()

	if cfg.VOCDirectory == "" {
		cfg.VOCDirectory = convert.DefaultVOCDir(cfg.ImageDirectory)
	}

	a, err := app.New(cfg)
	if err != nil {
		log.Fatalf("Failed to start: %v", err)
	}

	err = run(a)
	a.Close()
	if err != nil {
		a.Logger().Error("%v", err)
		os.Exit(1)
	}
}

func run(a *app.App) error {
	cfg := a.Config()

	conv, err := convert.New(cfg, a.Logger(), a.Catalog())
	if err != nil {
		return err
	}
	report, err := conv.JSONToVOC(cfg.JSONDirectory, cfg.ImageDirectory, cfg.VOCDirectory)
	if err != nil {
		return err
	}

	fmt.Printf("✅ %d VOC annotations written to %s\n", report.Written, cfg.VOCDirectory)
	if report.Skipped > 0 {
		fmt.Printf("⚠️  Skipped %d annotations (image not found)\n", report.Skipped)
	}
	if report.Failed > 0 {
		fmt.Printf("❌ %d malformed annotations\n", report.Failed)
	}
	return nil
}
