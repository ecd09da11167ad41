package repository

import (
	"faceann/internal/model"
)

// AnnotationRepository defines the catalog of written annotation files.
type AnnotationRepository interface {
	// Create operations
	Record(rec *model.AnnotationRecord) (int64, error)

	// Read operations
	GetByFilename(filename, format string) (*model.AnnotationRecord, error)
	Count(format string) (int, error)
	ClassCounts() (map[string]int, error)
	GenderCounts() (map[string]int, error)
	GetStats() (*model.CatalogStats, error)

	// Delete operations
	DeleteAll() error
}
