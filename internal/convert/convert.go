// Package convert runs the batch conversions: IMDB-WIKI metadata to JSON
// annotations, and JSON annotations to PASCAL VOC XML.
//
// Both walk their input once, write one output file per image and never stop
// on a single bad record: images missing on disk are skipped, malformed
// records are counted as failures, and only errors that affect the whole run
// (unreadable input directory, output directory not creatable) are returned.
package convert

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"faceann/internal/annotation"
	"faceann/internal/codec/jsonann"
	"faceann/internal/codec/voc"
	"faceann/internal/config"
	"faceann/internal/imageio"
	"faceann/internal/imdbwiki"
	"faceann/internal/logger"
	"faceann/internal/repository"
	"faceann/internal/storage"
)

// Catalog format names.
const (
	FormatJSON = "json"
	FormatVOC  = "voc"
)

// Report counts the outcome of one batch run.
type Report struct {
	Written  int
	Skipped  int
	Failed   int
	Failures []error
}

func (r *Report) String() string {
	return fmt.Sprintf("%d written, %d skipped, %d failed", r.Written, r.Skipped, r.Failed)
}

func (r *Report) fail(err error) {
	r.Failed++
	r.Failures = append(r.Failures, err)
}

// Converter holds what every batch run shares.
type Converter struct {
	logger   *logger.Logger
	repo     repository.AnnotationRepository
	jsonOpts jsonann.Options
	imageExt string
}

// New builds a Converter from the configuration. repo may be nil.
func New(cfg *config.Config, logger *logger.Logger, repo repository.AnnotationRepository) (*Converter, error) {
	dialect, err := jsonann.ParseDialect(cfg.JSONDialect)
	if err != nil {
		return nil, err
	}
	conv, err := annotation.ParseConvention(cfg.BoxConvention)
	if err != nil {
		return nil, err
	}
	ext := cfg.ImageExtension
	if ext == "" {
		ext = ".jpg"
	}
	return &Converter{
		logger:   logger,
		repo:     repo,
		jsonOpts: jsonann.Options{Dialect: dialect, Convention: conv},
		imageExt: ext,
	}, nil
}

// IMDBWikiToJSON writes one JSON file per metadata row whose image exists in
// imageDir. An empty imageDir disables the existence check.
func (c *Converter) IMDBWikiToJSON(table *imdbwiki.Table, imageDir, jsonDir string) (*Report, error) {
	store := storage.NewAnnotationStore(jsonDir, FormatJSON, c.logger, c.repo)
	if err := store.Prepare(); err != nil {
		return nil, err
	}

	report := &Report{}
	anns, errs := table.Annotations()
	for _, err := range errs {
		c.logger.Error("Skipping malformed record: %v", err)
		report.fail(err)
	}

	for _, ann := range anns {
		width, height := 0, 0
		if imageDir != "" {
			imagePath := filepath.Join(imageDir, ann.Filename)
			if !imageio.Exists(imagePath) {
				c.logger.Warning("Image %s not found, skipping", imagePath)
				report.Skipped++
				continue
			}
			if c.repo != nil {
				if w, h, err := imageio.Size(imagePath); err == nil {
					width, height = w, h
				}
			}
		}

		data, err := jsonann.Marshal(ann, c.jsonOpts)
		if err != nil {
			c.logger.Error("Failed to encode %s: %v", ann.Filename, err)
			report.fail(err)
			continue
		}
		if _, err := store.Save(imageio.WithExt(ann.Filename, jsonann.Ext), data, ann, width, height); err != nil {
			c.logger.Error("Failed to save %s: %v", ann.Filename, err)
			report.fail(err)
			continue
		}
		report.Written++
	}

	c.logger.Info("IMDB-WIKI to JSON: %s", report)
	return report, nil
}

// JSONToVOC converts every JSON annotation in jsonDir whose image
// (<imageDir>/<base name><image ext>) exists. Width and height come from
// the image header.
func (c *Converter) JSONToVOC(jsonDir, imageDir, vocDir string) (*Report, error) {
	entries, err := os.ReadDir(jsonDir)
	if err != nil {
		return nil, fmt.Errorf("failed to read JSON directory: %w", err)
	}
	names := make([]string, 0, len(entries))
	for _, entry := range entries {
		if entry.Type().IsRegular() && filepath.Ext(entry.Name()) == jsonann.Ext {
			names = append(names, entry.Name())
		}
	}
	sort.Strings(names)

	store := storage.NewAnnotationStore(vocDir, FormatVOC, c.logger, c.repo)
	if err := store.Prepare(); err != nil {
		return nil, err
	}

	report := &Report{}
	for _, name := range names {
		imagePath := filepath.Join(imageDir, imageio.WithExt(name, c.imageExt))
		if !imageio.Exists(imagePath) {
			c.logger.Warning("Image %s not found, skipping %s", imagePath, name)
			report.Skipped++
			continue
		}

		width, height, err := imageio.Size(imagePath)
		if err != nil {
			c.logger.Error("Skipping %s: %v", name, err)
			report.fail(err)
			continue
		}

		ann, err := jsonann.ReadFile(filepath.Join(jsonDir, name), c.jsonOpts)
		if err != nil {
			c.logger.Error("Skipping malformed annotation: %v", err)
			report.fail(err)
			continue
		}
		if ann.Filename == "" {
			ann.Filename = filepath.Base(imagePath)
		}

		data, err := voc.Marshal(ann, voc.ImageInfo{Path: imagePath, Width: width, Height: height})
		if err != nil {
			c.logger.Error("Failed to encode %s: %v", name, err)
			report.fail(err)
			continue
		}
		if _, err := store.Save(imageio.WithExt(name, voc.Ext), data, ann, width, height); err != nil {
			c.logger.Error("Failed to save %s: %v", name, err)
			report.fail(err)
			continue
		}
		report.Written++
	}

	c.logger.Info("JSON to VOC: %s", report)
	return report, nil
}

// DetectFormat picks FormatJSON for directories named JSON_<dataset> and
// FormatVOC otherwise.
func DetectFormat(annDir string) string {
	if strings.HasPrefix(filepath.Base(filepath.Clean(annDir)), "JSON_") {
		return FormatJSON
	}
	return FormatVOC
}

// Index records every annotation file of annDir in the catalog without
// rewriting it. The format comes from the directory name. Image sizes are
// read from the VOC <size> element, or from imageDir when it is set.
func (c *Converter) Index(annDir, imageDir string) (*Report, error) {
	if c.repo == nil {
		return nil, errors.New("catalog is disabled")
	}

	format := DetectFormat(annDir)
	ext := voc.Ext
	if format == FormatJSON {
		ext = jsonann.Ext
	}
	entries, err := os.ReadDir(annDir)
	if err != nil {
		return nil, fmt.Errorf("failed to read annotation directory: %w", err)
	}

	store := storage.NewAnnotationStore(annDir, format, c.logger, c.repo)
	report := &Report{}
	for _, entry := range entries {
		if !entry.Type().IsRegular() || filepath.Ext(entry.Name()) != ext {
			continue
		}
		path := filepath.Join(annDir, entry.Name())

		var ann *annotation.Annotation
		width, height := 0, 0
		if format == FormatJSON {
			ann, err = jsonann.ReadFile(path, c.jsonOpts)
		} else {
			var info voc.ImageInfo
			ann, info, err = voc.ReadFile(path)
			width, height = info.Width, info.Height
		}
		if err != nil {
			c.logger.Error("Skipping malformed annotation: %v", err)
			report.fail(err)
			continue
		}

		imageName := imageio.WithExt(entry.Name(), c.imageExt)
		if ann.Filename == "" {
			ann.Filename = imageName
		}
		if width == 0 && imageDir != "" {
			if w, h, err := imageio.Size(filepath.Join(imageDir, imageName)); err == nil {
				width, height = w, h
			}
		}

		if err := store.Index(path, ann, width, height); err != nil {
			c.logger.Error("%v", err)
			report.fail(err)
			continue
		}
		report.Written++
	}

	c.logger.Info("Indexed %s (%s): %s", annDir, format, report)
	return report, nil
}

// DefaultVOCDir is <parent of imageDir>/VOC_<imageDir name>/single.
func DefaultVOCDir(imageDir string) string {
	clean := filepath.Clean(imageDir)
	return filepath.Join(filepath.Dir(clean), "VOC_"+filepath.Base(clean), "single")
}
