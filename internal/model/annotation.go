package model

import (
	"time"

	"faceann/internal/annotation"
)

// AnnotationRecord is one written annotation file.
type AnnotationRecord struct {
	ID        int64          `json:"id"`
	Filename  string         `json:"filename"`
	Format    string         `json:"format"`
	Path      string         `json:"path"`
	Width     int            `json:"width"`
	Height    int            `json:"height"`
	CreatedAt time.Time      `json:"created_at"`
	Objects   []ObjectRecord `json:"objects"`
}

// ObjectRecord is one object of an annotation. Gender and Age are nil when
// unknown; HasDemographics tells unknown apart from absent.
type ObjectRecord struct {
	ID              int64    `json:"id"`
	AnnotationID    int64    `json:"annotation_id"`
	ClassName       string   `json:"class_name"`
	Xmin            int      `json:"xmin"`
	Ymin            int      `json:"ymin"`
	Xmax            int      `json:"xmax"`
	Ymax            int      `json:"ymax"`
	HasDemographics bool     `json:"has_demographics"`
	Gender          *float64 `json:"gender"`
	Age             *int     `json:"age"`
}

// CatalogStats summarises the catalog.
type CatalogStats struct {
	Annotations  int            `json:"annotations"`
	Objects      int            `json:"objects"`
	PerFormat    map[string]int `json:"per_format"`
	ClassCounts  map[string]int `json:"class_counts"`
	GenderCounts map[string]int `json:"gender_counts"`
}

// NewAnnotationRecord flattens an annotation for storage. Boxes are stored
// as corners.
func NewAnnotationRecord(a *annotation.Annotation, format, path string, width, height int) *AnnotationRecord {
	rec := &AnnotationRecord{
		Filename: a.Filename,
		Format:   format,
		Path:     path,
		Width:    width,
		Height:   height,
	}
	for _, obj := range a.Objects {
		c := obj.Box.ToCorners().Values()
		or := ObjectRecord{
			ClassName: obj.ClassName,
			Xmin:      c[0],
			Ymin:      c[1],
			Xmax:      c[2],
			Ymax:      c[3],
		}
		if d := obj.Demographics; d != nil {
			or.HasDemographics = true
			if v, ok := d.Gender.Value(); ok {
				or.Gender = &v
			}
			if v, ok := d.Age.Value(); ok {
				or.Age = &v
			}
		}
		rec.Objects = append(rec.Objects, or)
	}
	return rec
}
