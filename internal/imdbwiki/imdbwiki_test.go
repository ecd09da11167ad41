package imdbwiki

import (
	"bytes"
	"errors"
	"math"
	"os"
	"path/filepath"
	"testing"
	"time"

	"faceann/internal/matfile"
	"faceann/internal/matfile/matfiletest"
)

// Serial date numbers (MATLAB datenum) for the dates in the comments.
const (
	dob19800315 = 723255
	dob19800902 = 723426
	dob19800630 = 723362
	dob19800701 = 723363
)

func TestCalcAge(t *testing.T) {
	tests := []struct {
		name  string
		taken int
		dob   float64
		want  int
	}{
		{"born in March", 2000, dob19800315, 20},
		{"born in September", 2000, dob19800902, 19},
		{"born end of June", 2000, dob19800630, 20},
		{"born first of July", 2000, dob19800701, 19},
		{"fractional dob", 2000, dob19800315 + 0.75, 20},
		{"clamped to day one", 10, 5, 9},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := CalcAge(tt.taken, tt.dob); got != tt.want {
				t.Errorf("CalcAge(%d, %v) = %d, expected %d", tt.taken, tt.dob, got, tt.want)
			}
		})
	}
}

func TestOrdinalToDate(t *testing.T) {
	tests := []struct {
		ordinal int
		want    time.Time
	}{
		{1, time.Date(1, 1, 1, 0, 0, 0, 0, time.UTC)},
		{-40, time.Date(1, 1, 1, 0, 0, 0, 0, time.UTC)},
		{dob19800315 - 366, time.Date(1980, 3, 15, 0, 0, 0, 0, time.UTC)},
	}
	for _, tt := range tests {
		if got := OrdinalToDate(tt.ordinal); !got.Equal(tt.want) {
			t.Errorf("OrdinalToDate(%d) = %v, expected %v", tt.ordinal, got, tt.want)
		}
	}
}

func TestFilenameFromPath(t *testing.T) {
	got, err := FilenameFromPath("17/10000217_1981-05-05_2009.jpg")
	if err != nil || got != "10000217_1981-05-05_2009.jpg" {
		t.Errorf("FilenameFromPath() = %q, %v", got, err)
	}

	for _, bad := range []string{"10000217_1981-05-05_2009.jpg", "17/", ""} {
		if _, err := FilenameFromPath(bad); !errors.Is(err, ErrMalformedPath) {
			t.Errorf("FilenameFromPath(%q) error = %v, expected ErrMalformedPath", bad, err)
		}
	}
}

func wikiStruct() *matfiletest.Matrix {
	return matfiletest.Struct(
		[]string{"dob", "photo_taken", "full_path", "gender", "name", "face_location", "face_score", "second_face_score"},
		matfiletest.Doubles(dob19800315, dob19800902, dob19800315),
		matfiletest.Doubles(2000, 2000, 2000),
		matfiletest.CellRow(
			matfiletest.Char("17/a.jpg"),
			matfiletest.Char("48/b.jpg"),
			matfiletest.Char("no-folder.jpg"),
		),
		matfiletest.Doubles(1, math.NaN(), 0),
		matfiletest.CellRow(matfiletest.Char("Ann"), matfiletest.Char("Bob"), matfiletest.Char("Cy")),
		matfiletest.CellRow(
			matfiletest.Doubles(111.29, 111.29, 252.67, 252.67),
			matfiletest.Doubles(10, 20, 110, 220),
			matfiletest.Doubles(1, 1, 2, 2),
		),
		matfiletest.Doubles(4.3, 2.6, math.Inf(-1)),
		matfiletest.Doubles(math.NaN(), 1.9, math.NaN()),
	)
}

func loadFixture(t *testing.T, m *matfiletest.Matrix) *Table {
	t.Helper()
	var buf bytes.Buffer
	if err := matfiletest.Write(&buf, matfiletest.Options{Compress: true}, matfiletest.Var{Name: "wiki", Value: m}); err != nil {
		t.Fatalf("Failed to write fixture: %v", err)
	}
	path := filepath.Join(t.TempDir(), "wiki.mat")
	if err := os.WriteFile(path, buf.Bytes(), 0644); err != nil {
		t.Fatalf("Failed to save fixture: %v", err)
	}

	table, err := LoadTable(path, "wiki")
	if err != nil {
		t.Fatalf("LoadTable failed: %v", err)
	}
	return table
}

func TestTable_Record(t *testing.T) {
	table := loadFixture(t, wikiStruct())
	if table.Len() != 3 {
		t.Fatalf("Expected 3 rows, got %d", table.Len())
	}

	rec, err := table.Record(1)
	if err != nil {
		t.Fatalf("Record failed: %v", err)
	}
	if rec.Name != "Bob" || rec.FullPath != "48/b.jpg" || rec.PhotoTaken != 2000 {
		t.Errorf("Unexpected record %+v", rec)
	}
	if !math.IsNaN(rec.Gender) {
		t.Errorf("Expected NaN gender, got %v", rec.Gender)
	}
	if rec.FaceScore != 2.6 || rec.SecondFaceScore != 1.9 {
		t.Errorf("Unexpected scores %v/%v", rec.FaceScore, rec.SecondFaceScore)
	}

	if _, err := table.Record(3); err == nil {
		t.Error("Expected error for row out of range")
	}
}

func TestTable_Annotations(t *testing.T) {
	table := loadFixture(t, wikiStruct())

	anns, errs := table.Annotations()
	if len(anns) != 2 {
		t.Fatalf("Expected 2 annotations, got %d", len(anns))
	}
	if len(errs) != 1 {
		t.Fatalf("Expected 1 record error, got %v", errs)
	}

	var recErr *RecordError
	if !errors.As(errs[0], &recErr) || recErr.Row != 2 || recErr.Path != "no-folder.jpg" {
		t.Errorf("Unexpected record error %v", errs[0])
	}
	if !errors.Is(errs[0], ErrMalformedPath) {
		t.Errorf("Expected ErrMalformedPath, got %v", errs[0])
	}

	first := anns[0]
	if first.Filename != "a.jpg" || len(first.Objects) != 1 {
		t.Fatalf("Unexpected first annotation %+v", first)
	}
	obj := first.Objects[0]
	if obj.ClassName != "face" {
		t.Errorf("Expected class face, got %q", obj.ClassName)
	}
	if got, want := obj.Box.Values(), [4]int{111, 111, 252, 252}; got != want {
		t.Errorf("Box = %v, expected %v", got, want)
	}
	if obj.Demographics == nil || obj.Demographics.Gender.Label() != "M" {
		t.Errorf("Expected male demographics, got %+v", obj.Demographics)
	}
	if age, ok := obj.Demographics.Age.Value(); !ok || age != 20 {
		t.Errorf("Expected age 20, got %d (%v)", age, ok)
	}

	second := anns[1].Objects[0]
	if second.Demographics.Gender.Known() {
		t.Error("NaN gender should be unknown")
	}
	if age, _ := second.Demographics.Age.Value(); age != 19 {
		t.Errorf("Expected age 19, got %d", age)
	}
}

func TestTableFromArray_MissingColumn(t *testing.T) {
	m := matfiletest.Struct(
		[]string{"dob", "gender"},
		matfiletest.Doubles(dob19800315),
		matfiletest.Doubles(1),
	)
	var buf bytes.Buffer
	if err := matfiletest.Write(&buf, matfiletest.Options{}, matfiletest.Var{Name: "wiki", Value: m}); err != nil {
		t.Fatalf("Failed to write fixture: %v", err)
	}
	f, err := matfile.Decode(&buf)
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	arr, _ := f.Variable("wiki")
	if _, err := TableFromArray(arr); err == nil {
		t.Error("Expected error for missing full_path column")
	}
}

func TestLoadTable_MissingVariable(t *testing.T) {
	var buf bytes.Buffer
	if err := matfiletest.Write(&buf, matfiletest.Options{}, matfiletest.Var{Name: "imdb", Value: wikiStruct()}); err != nil {
		t.Fatalf("Failed to write fixture: %v", err)
	}
	path := filepath.Join(t.TempDir(), "imdb.mat")
	if err := os.WriteFile(path, buf.Bytes(), 0644); err != nil {
		t.Fatalf("Failed to save fixture: %v", err)
	}
	if _, err := LoadTable(path, "wiki"); err == nil {
		t.Error("Expected error for missing variable")
	}
}
