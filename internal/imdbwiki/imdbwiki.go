// Package imdbwiki adapts the IMDB-WIKI metadata table (wiki.mat / imdb.mat)
// into annotations: one face per image, with gender and an age derived from
// the date of birth and the year the photo was taken.
package imdbwiki

import (
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"faceann/internal/annotation"
	"faceann/internal/matfile"
)

// RecordError reports a row that could not be turned into an annotation.
type RecordError struct {
	Row  int
	Path string
	Err  error
}

func (e *RecordError) Error() string {
	return fmt.Sprintf("record %d (%s): %v", e.Row, e.Path, e.Err)
}

func (e *RecordError) Unwrap() error { return e.Err }

// ErrMalformedPath is returned for a full_path without a "/" separator.
var ErrMalformedPath = errors.New("full_path has no sub-folder separator")

// Record is one row of the metadata table.
type Record struct {
	Row             int
	FullPath        string
	DOB             float64 // MATLAB serial date number
	Gender          float64 // 1 male, 0 female, NaN unknown
	Name            string
	FaceLocation    []float64
	PhotoTaken      int
	FaceScore       float64
	SecondFaceScore float64
}

// Table holds the parallel columns of the metadata struct.
type Table struct {
	fullPath        []string
	dob             []float64
	gender          []float64
	name            []string
	faceLocation    []*matfile.Array
	photoTaken      []float64
	faceScore       []float64
	secondFaceScore []float64
}

// LoadTable reads variable (usually "wiki" or "imdb") from a MAT-file.
func LoadTable(path, variable string) (*Table, error) {
	f, err := matfile.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open metadata: %w", err)
	}
	arr, err := f.Variable(variable)
	if err != nil {
		return nil, fmt.Errorf("metadata %s: %w", path, err)
	}
	return TableFromArray(arr)
}

// TableFromArray reads the columns of a 1x1 metadata struct.
// full_path, dob, gender, face_location and photo_taken are required;
// the other columns are filled with blanks/NaN when absent.
func TableFromArray(arr *matfile.Array) (*Table, error) {
	t := &Table{}
	var err error

	if t.fullPath, err = stringColumn(arr, "full_path", true); err != nil {
		return nil, err
	}
	if t.dob, err = numberColumn(arr, "dob", true); err != nil {
		return nil, err
	}
	if t.gender, err = numberColumn(arr, "gender", true); err != nil {
		return nil, err
	}
	if t.photoTaken, err = numberColumn(arr, "photo_taken", true); err != nil {
		return nil, err
	}
	if t.name, err = stringColumn(arr, "name", false); err != nil {
		return nil, err
	}
	if t.faceScore, err = numberColumn(arr, "face_score", false); err != nil {
		return nil, err
	}
	if t.secondFaceScore, err = numberColumn(arr, "second_face_score", false); err != nil {
		return nil, err
	}

	locs, err := arr.Field("face_location")
	if err != nil {
		return nil, fmt.Errorf("metadata column: %w", err)
	}
	if t.faceLocation, err = locs.Cells(); err != nil {
		return nil, fmt.Errorf("metadata column face_location: %w", err)
	}

	n := len(t.dob)
	lengths := map[string]int{
		"full_path":     len(t.fullPath),
		"gender":        len(t.gender),
		"photo_taken":   len(t.photoTaken),
		"face_location": len(t.faceLocation),
	}
	for col, l := range lengths {
		if l != n {
			return nil, fmt.Errorf("metadata column %s has %d rows, dob has %d", col, l, n)
		}
	}
	return t, nil
}

func stringColumn(arr *matfile.Array, field string, required bool) ([]string, error) {
	col, err := arr.Field(field)
	if err != nil {
		if required {
			return nil, fmt.Errorf("metadata column: %w", err)
		}
		return nil, nil
	}
	cells, err := col.Cells()
	if err != nil {
		return nil, fmt.Errorf("metadata column %s: %w", field, err)
	}
	out := make([]string, len(cells))
	for i, c := range cells {
		out[i] = c.String()
	}
	return out, nil
}

func numberColumn(arr *matfile.Array, field string, required bool) ([]float64, error) {
	col, err := arr.Field(field)
	if err != nil {
		if required {
			return nil, fmt.Errorf("metadata column: %w", err)
		}
		return nil, nil
	}
	vals, err := col.Float64s()
	if err != nil {
		return nil, fmt.Errorf("metadata column %s: %w", field, err)
	}
	return vals, nil
}

// Len is the number of rows.
func (t *Table) Len() int { return len(t.dob) }

// Record returns row i.
func (t *Table) Record(i int) (Record, error) {
	if i < 0 || i >= t.Len() {
		return Record{}, fmt.Errorf("row %d out of range [0,%d)", i, t.Len())
	}

	loc, err := t.faceLocation[i].RowMajor()
	if err != nil {
		return Record{}, &RecordError{Row: i, Path: t.fullPath[i], Err: fmt.Errorf("face_location: %w", err)}
	}

	rec := Record{
		Row:             i,
		FullPath:        t.fullPath[i],
		DOB:             t.dob[i],
		Gender:          t.gender[i],
		FaceLocation:    loc,
		PhotoTaken:      int(t.photoTaken[i]),
		FaceScore:       math.NaN(),
		SecondFaceScore: math.NaN(),
	}
	if i < len(t.name) {
		rec.Name = t.name[i]
	}
	if i < len(t.faceScore) {
		rec.FaceScore = t.faceScore[i]
	}
	if i < len(t.secondFaceScore) {
		rec.SecondFaceScore = t.secondFaceScore[i]
	}
	return rec, nil
}

// Annotation converts the record into a single-face annotation.
func (r Record) Annotation() (*annotation.Annotation, error) {
	fail := func(err error) (*annotation.Annotation, error) {
		return nil, &RecordError{Row: r.Row, Path: r.FullPath, Err: err}
	}

	filename, err := FilenameFromPath(r.FullPath)
	if err != nil {
		return fail(err)
	}
	if math.IsNaN(r.DOB) || math.IsInf(r.DOB, 0) {
		return fail(fmt.Errorf("dob is %v", r.DOB))
	}
	if len(r.FaceLocation) != 4 {
		return fail(fmt.Errorf("face_location has %d values, expected 4", len(r.FaceLocation)))
	}

	coords := make([]int, 4)
	for i, v := range r.FaceLocation {
		coords[i] = int(v)
	}
	box, err := annotation.FromValues(annotation.ConventionCorners, coords)
	if err != nil {
		return fail(err)
	}

	demo, err := annotation.NewDemographics(
		annotation.GenderFromFloat(r.Gender),
		annotation.KnownAge(CalcAge(r.PhotoTaken, r.DOB)),
	)
	if err != nil {
		return fail(err)
	}
	obj, err := annotation.NewObject(annotation.FaceClass, box, demo)
	if err != nil {
		return fail(err)
	}
	return annotation.New(filename, obj)
}

// Annotations converts every row. Rows that fail are returned as
// *RecordError values and do not stop the conversion.
func (t *Table) Annotations() ([]*annotation.Annotation, []error) {
	var (
		anns []*annotation.Annotation
		errs []error
	)
	for i := 0; i < t.Len(); i++ {
		rec, err := t.Record(i)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		ann, err := rec.Annotation()
		if err != nil {
			errs = append(errs, err)
			continue
		}
		anns = append(anns, ann)
	}
	return anns, errs
}

// matlabEpochOffset converts a MATLAB serial date number (days since year 0)
// to a proleptic Gregorian ordinal (0001-01-01 is day 1).
const matlabEpochOffset = 366

// OrdinalToDate returns the date of a proleptic Gregorian ordinal where
// 0001-01-01 is day 1. Ordinals below 1 are clamped to day 1.
func OrdinalToDate(ordinal int) time.Time {
	if ordinal < 1 {
		ordinal = 1
	}
	return time.Date(1, time.January, 1, 0, 0, 0, 0, time.UTC).AddDate(0, 0, ordinal-1)
}

// CalcAge is the age at the time the photo was taken, assuming it was taken
// in the middle of the year.
func CalcAge(taken int, dob float64) int {
	birth := OrdinalToDate(int(dob) - matlabEpochOffset)
	age := taken - birth.Year()
	if birth.Month() >= time.July {
		age--
	}
	return age
}

// FilenameFromPath drops the numbered sub-folder: "17/1000_x.jpg" -> "1000_x.jpg".
func FilenameFromPath(fullPath string) (string, error) {
	parts := strings.Split(fullPath, "/")
	if len(parts) < 2 || parts[1] == "" {
		return "", fmt.Errorf("%w: %q", ErrMalformedPath, fullPath)
	}
	return parts[1], nil
}
