package storage

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"faceann/internal/annotation"
	"faceann/internal/logger"
	"faceann/internal/model"
	"faceann/internal/repository"
)

// AnnotationStore writes annotation files into one directory and records
// every written file in the catalog when a repository is configured.
type AnnotationStore struct {
	dir    string
	format string
	logger *logger.Logger
	repo   repository.AnnotationRepository
}

// NewAnnotationStore creates a store for one output directory. format names
// the catalog format ("json", "voc"); repo may be nil.
func NewAnnotationStore(dir, format string, logger *logger.Logger, repo repository.AnnotationRepository) *AnnotationStore {
	return &AnnotationStore{
		dir:    dir,
		format: format,
		logger: logger,
		repo:   repo,
	}
}

// Dir is the output directory.
func (s *AnnotationStore) Dir() string { return s.dir }

// Prepare creates the output directory.
func (s *AnnotationStore) Prepare() error {
	if err := os.MkdirAll(s.dir, 0755); err != nil {
		return fmt.Errorf("failed to create directory %s: %w", s.dir, err)
	}
	return nil
}

// Save writes data as name inside the store directory and records ann.
// A catalog failure is logged; the file stays written.
func (s *AnnotationStore) Save(name string, data []byte, ann *annotation.Annotation, width, height int) (string, error) {
	fullpath := filepath.Join(s.dir, name)
	if err := WriteFile(fullpath, data); err != nil {
		return "", err
	}

	if s.repo != nil {
		rec := model.NewAnnotationRecord(ann, s.format, fullpath, width, height)
		if _, err := s.repo.Record(rec); err != nil {
			s.logger.Error("Error saving annotation %s to catalog: %v", name, err)
		}
	}
	return fullpath, nil
}

// Index records an annotation file that is already on disk.
func (s *AnnotationStore) Index(path string, ann *annotation.Annotation, width, height int) error {
	if s.repo == nil {
		return errors.New("catalog is disabled")
	}
	if _, err := s.repo.Record(model.NewAnnotationRecord(ann, s.format, path, width, height)); err != nil {
		return fmt.Errorf("failed to record %s: %w", path, err)
	}
	return nil
}

// WriteFile replaces path with data in a single rename, so readers never
// see a partially written file.
func WriteFile(path string, data []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".*")
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", path, err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	if err := tmp.Chmod(0644); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return nil
}
