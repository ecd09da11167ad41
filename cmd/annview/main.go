package main

import (
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"

	"faceann/internal/app"
	"faceann/internal/config"
	"faceann/internal/viewer"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	imageDir := flag.String("images", cfg.ImageDirectory, "Directory of images")
	annDir := flag.String("annotations", cfg.JSONDirectory, "Directory with annotations (JSON_<name> for JSON, otherwise VOC)")
	indexArg := flag.String("index", "0", "Image index in the sorted listing, or all (-1) to show every image")
	flag.StringVar(&cfg.ViewerAddr, "serve", cfg.ViewerAddr, "Serve the viewer on this address instead of opening a window (e.g. :8090)")
	flag.IntVar(&cfg.ViewerMaxSide, "max-side", cfg.ViewerMaxSide, "Scale larger images down to this many pixels (0 keeps the size)")
	flag.Parse()

	index, err := viewer.ParseIndex(*indexArg)
	if err != nil {
		log.Fatalf("%v", err)
	}

	// The viewer only reads, so it never writes to the catalog.
	cfg.CatalogDB = ""
	a, err := app.New(cfg)
	if err != nil {
		log.Fatalf("Failed to start: %v", err)
	}
	defer a.Close()
	logger := a.Logger()

	var display viewer.Display
	if cfg.ViewerAddr != "" {
		web, err := viewer.NewWebDisplay(cfg.ViewerAddr, cfg.ViewerPollMS, logger)
		if err != nil {
			log.Fatalf("Failed to start viewer server: %v", err)
		}
		display = web

		sig := make(chan os.Signal, 1)
		signal.Notify(sig, os.Interrupt, syscall.SIGTERM)
		go func() {
			<-sig
			web.Close()
		}()
	} else {
		display = viewer.NewWindowDisplay("Image", cfg.ViewerPollMS)
	}

	v, err := viewer.New(cfg, logger, display, *imageDir, *annDir)
	if err != nil {
		display.Close()
		log.Fatalf("Invalid configuration: %v", err)
	}

	err = v.ShowIndex(index)
	display.Close()
	if err != nil {
		logger.Error("%v", err)
		a.Close()
		os.Exit(1)
	}
}
