package sqlite

import (
	"database/sql"
	"fmt"

	"faceann/internal/annotation"
	"faceann/internal/model"
)

// AnnotationRepository implements repository.AnnotationRepository for SQLite.
type AnnotationRepository struct {
	db *DB
}

// NewAnnotationRepository creates a new SQLite annotation repository.
func NewAnnotationRepository(db *DB) *AnnotationRepository {
	return &AnnotationRepository{db: db}
}

// Record stores an annotation and its objects, replacing any earlier record
// with the same filename and format.
func (r *AnnotationRepository) Record(rec *model.AnnotationRecord) (int64, error) {
	r.db.Lock()
	defer r.db.Unlock()

	tx, err := r.db.Conn().Begin()
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`
		DELETE FROM objects WHERE annotation_id IN
			(SELECT id FROM annotations WHERE filename = ? AND format = ?)
	`, rec.Filename, rec.Format); err != nil {
		return 0, fmt.Errorf("failed to delete old objects: %w", err)
	}
	if _, err := tx.Exec(`DELETE FROM annotations WHERE filename = ? AND format = ?`, rec.Filename, rec.Format); err != nil {
		return 0, fmt.Errorf("failed to delete old annotation: %w", err)
	}

	result, err := tx.Exec(`
		INSERT INTO annotations (filename, format, path, width, height)
		VALUES (?, ?, ?, ?, ?)
	`, rec.Filename, rec.Format, rec.Path, rec.Width, rec.Height)
	if err != nil {
		return 0, fmt.Errorf("failed to insert annotation: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("failed to get annotation id: %w", err)
	}

	stmt, err := tx.Prepare(`
		INSERT INTO objects (annotation_id, class_name, xmin, ymin, xmax, ymax, has_demographics, gender, age)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return 0, fmt.Errorf("failed to prepare statement: %w", err)
	}
	defer stmt.Close()

	for _, obj := range rec.Objects {
		if _, err := stmt.Exec(id, obj.ClassName, obj.Xmin, obj.Ymin, obj.Xmax, obj.Ymax,
			obj.HasDemographics, obj.Gender, obj.Age); err != nil {
			return 0, fmt.Errorf("failed to insert object: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit annotation: %w", err)
	}
	rec.ID = id
	return id, nil
}

// GetByFilename retrieves an annotation with its objects. It returns nil
// when nothing was recorded for filename and format.
func (r *AnnotationRepository) GetByFilename(filename, format string) (*model.AnnotationRecord, error) {
	r.db.RLock()
	defer r.db.RUnlock()

	var rec model.AnnotationRecord
	err := r.db.Conn().QueryRow(`
		SELECT id, filename, format, path, width, height, created_at
		FROM annotations WHERE filename = ? AND format = ?
	`, filename, format).Scan(&rec.ID, &rec.Filename, &rec.Format, &rec.Path, &rec.Width, &rec.Height, &rec.CreatedAt)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get annotation: %w", err)
	}

	rows, err := r.db.Conn().Query(`
		SELECT id, annotation_id, class_name, xmin, ymin, xmax, ymax, has_demographics, gender, age
		FROM objects WHERE annotation_id = ? ORDER BY id
	`, rec.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to query objects: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			obj    model.ObjectRecord
			gender sql.NullFloat64
			age    sql.NullInt64
		)
		if err := rows.Scan(&obj.ID, &obj.AnnotationID, &obj.ClassName, &obj.Xmin, &obj.Ymin, &obj.Xmax, &obj.Ymax,
			&obj.HasDemographics, &gender, &age); err != nil {
			return nil, fmt.Errorf("failed to scan object: %w", err)
		}
		if gender.Valid {
			obj.Gender = &gender.Float64
		}
		if age.Valid {
			v := int(age.Int64)
			obj.Age = &v
		}
		rec.Objects = append(rec.Objects, obj)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read objects: %w", err)
	}

	return &rec, nil
}

// Count returns the number of recorded annotations; an empty format counts all.
func (r *AnnotationRepository) Count(format string) (int, error) {
	r.db.RLock()
	defer r.db.RUnlock()
	return r.count(format)
}

func (r *AnnotationRepository) count(format string) (int, error) {
	query := `SELECT COUNT(*) FROM annotations`
	args := []interface{}{}
	if format != "" {
		query += " WHERE format = ?"
		args = append(args, format)
	}

	var count int
	if err := r.db.Conn().QueryRow(query, args...).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count annotations: %w", err)
	}
	return count, nil
}

// ClassCounts returns the number of objects per class name.
func (r *AnnotationRepository) ClassCounts() (map[string]int, error) {
	r.db.RLock()
	defer r.db.RUnlock()
	return r.groupCounts(`SELECT class_name, COUNT(*) FROM objects GROUP BY class_name`)
}

// GenderCounts returns the number of objects per rendered gender label
// ("M", "F", "NAN"); objects without demographics count under "-".
func (r *AnnotationRepository) GenderCounts() (map[string]int, error) {
	r.db.RLock()
	defer r.db.RUnlock()
	return r.genderCounts()
}

func (r *AnnotationRepository) genderCounts() (map[string]int, error) {
	return r.groupCounts(fmt.Sprintf(`
		SELECT CASE
			WHEN has_demographics = 0 THEN '-'
			WHEN gender IS NULL THEN 'NAN'
			WHEN gender > %v THEN 'M'
			ELSE 'F'
		END AS label, COUNT(*)
		FROM objects GROUP BY label
	`, annotation.GenderThreshold))
}

func (r *AnnotationRepository) groupCounts(query string) (map[string]int, error) {
	rows, err := r.db.Conn().Query(query)
	if err != nil {
		return nil, fmt.Errorf("failed to query counts: %w", err)
	}
	defer rows.Close()

	counts := make(map[string]int)
	for rows.Next() {
		var key string
		var count int
		if err := rows.Scan(&key, &count); err != nil {
			return nil, fmt.Errorf("failed to scan count: %w", err)
		}
		counts[key] = count
	}
	return counts, rows.Err()
}

// GetStats returns totals, per-format, per-class and gender counts.
func (r *AnnotationRepository) GetStats() (*model.CatalogStats, error) {
	r.db.RLock()
	defer r.db.RUnlock()

	stats := &model.CatalogStats{}
	var err error

	if stats.Annotations, err = r.count(""); err != nil {
		return nil, err
	}
	if err := r.db.Conn().QueryRow(`SELECT COUNT(*) FROM objects`).Scan(&stats.Objects); err != nil {
		return nil, fmt.Errorf("failed to count objects: %w", err)
	}
	if stats.PerFormat, err = r.groupCounts(`SELECT format, COUNT(*) FROM annotations GROUP BY format`); err != nil {
		return nil, err
	}
	if stats.ClassCounts, err = r.groupCounts(`SELECT class_name, COUNT(*) FROM objects GROUP BY class_name`); err != nil {
		return nil, err
	}
	if stats.GenderCounts, err = r.genderCounts(); err != nil {
		return nil, err
	}
	return stats, nil
}

// DeleteAll removes all annotations and their objects.
func (r *AnnotationRepository) DeleteAll() error {
	r.db.Lock()
	defer r.db.Unlock()

	if _, err := r.db.Conn().Exec(`DELETE FROM objects`); err != nil {
		return fmt.Errorf("failed to delete objects: %w", err)
	}

	if _, err := r.db.Conn().Exec(`DELETE FROM annotations`); err != nil {
		return fmt.Errorf("failed to delete annotations: %w", err)
	}

	return nil
}
