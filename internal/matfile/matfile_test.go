package matfile_test

import (
	"bytes"
	"errors"
	"math"
	"os"
	"path/filepath"
	"testing"

	"faceann/internal/matfile"
	"faceann/internal/matfile/matfiletest"
)

func sampleVars() []matfiletest.Var {
	wiki := matfiletest.Struct(
		[]string{"full_path", "dob", "gender", "face_location"},
		matfiletest.CellRow(matfiletest.Char("17/a.jpg"), matfiletest.Char("48/b.jpg")),
		matfiletest.Doubles(723671, 703186),
		matfiletest.Doubles(1, math.NaN()),
		matfiletest.CellRow(
			matfiletest.Doubles(1, 2, 3, 4),
			matfiletest.DoubleMatrix(2, 2, 5, 7, 6, 8),
		),
	)
	return []matfiletest.Var{{Name: "wiki", Value: wiki}, {Name: "note", Value: matfiletest.Char("ü ok")}}
}

func encode(t *testing.T, opts matfiletest.Options) []byte {
	t.Helper()
	var buf bytes.Buffer
	if err := matfiletest.Write(&buf, opts, sampleVars()...); err != nil {
		t.Fatalf("Failed to write fixture: %v", err)
	}
	return buf.Bytes()
}

func TestDecode_Layouts(t *testing.T) {
	tests := []struct {
		name string
		opts matfiletest.Options
	}{
		{"little endian", matfiletest.Options{}},
		{"big endian", matfiletest.Options{BigEndian: true}},
		{"compressed", matfiletest.Options{Compress: true}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f, err := matfile.Decode(bytes.NewReader(encode(t, tt.opts)))
			if err != nil {
				t.Fatalf("Decode failed: %v", err)
			}
			if len(f.Variables) != 2 {
				t.Fatalf("Expected 2 variables, got %d", len(f.Variables))
			}

			wiki, err := f.Variable("wiki")
			if err != nil {
				t.Fatalf("Variable failed: %v", err)
			}
			if wiki.Class != matfile.ClassStruct || wiki.Len() != 1 {
				t.Fatalf("Unexpected wiki array: class=%v len=%d", wiki.Class, wiki.Len())
			}

			paths, err := wiki.Field("full_path")
			if err != nil {
				t.Fatalf("Field failed: %v", err)
			}
			cells, err := paths.Cells()
			if err != nil {
				t.Fatalf("Cells failed: %v", err)
			}
			if len(cells) != 2 || cells[0].String() != "17/a.jpg" || cells[1].String() != "48/b.jpg" {
				t.Errorf("Unexpected paths: %v", cells)
			}

			gender, _ := wiki.Field("gender")
			g, err := gender.Float64s()
			if err != nil {
				t.Fatalf("Float64s failed: %v", err)
			}
			if g[0] != 1 || !math.IsNaN(g[1]) {
				t.Errorf("Unexpected gender values %v", g)
			}

			locs, _ := wiki.Field("face_location")
			locCells, _ := locs.Cells()
			square, err := locCells[1].RowMajor()
			if err != nil {
				t.Fatalf("RowMajor failed: %v", err)
			}
			if want := []float64{5, 6, 7, 8}; !equal(square, want) {
				t.Errorf("RowMajor() = %v, expected %v", square, want)
			}

			note, _ := f.Variable("note")
			if note.String() != "ü ok" {
				t.Errorf("Expected unicode text to survive, got %q", note.String())
			}
		})
	}
}

func TestDecode_NotMAT(t *testing.T) {
	if _, err := matfile.Decode(bytes.NewReader([]byte("short"))); !errors.Is(err, matfile.ErrNotMAT) {
		t.Errorf("Expected ErrNotMAT for short input, got %v", err)
	}

	junk := make([]byte, 128)
	copy(junk[126:], "XX")
	if _, err := matfile.Decode(bytes.NewReader(junk)); !errors.Is(err, matfile.ErrNotMAT) {
		t.Errorf("Expected ErrNotMAT for bad endian marker, got %v", err)
	}

	hdf := make([]byte, 128)
	copy(hdf, "MATLAB 7.3 MAT-file")
	copy(hdf[126:], "IM")
	if _, err := matfile.Decode(bytes.NewReader(hdf)); !errors.Is(err, matfile.ErrUnsupported) {
		t.Errorf("Expected ErrUnsupported for v7.3 header, got %v", err)
	}
}

func TestDecode_Corrupt(t *testing.T) {
	write := func(t *testing.T, v *matfiletest.Matrix) []byte {
		t.Helper()
		var buf bytes.Buffer
		if err := matfiletest.Write(&buf, matfiletest.Options{}, matfiletest.Var{Name: "wiki", Value: v}); err != nil {
			t.Fatalf("Failed to write fixture: %v", err)
		}
		return buf.Bytes()
	}

	full := encode(t, matfiletest.Options{})
	hugeElement := append([]byte(nil), full[:128]...)
	hugeElement = append(hugeElement, 14, 0, 0, 0, 0xf0, 0xff, 0xff, 0xff, 1, 2, 3, 4)

	tests := []struct {
		name string
		data []byte
	}{
		{"negative cell dims", write(t, matfiletest.WithDims(matfiletest.CellRow(matfiletest.Doubles(1)), -1, 1))},
		{"cell count beyond data", write(t, matfiletest.WithDims(matfiletest.CellRow(matfiletest.Doubles(1)), 1, 1<<30))},
		{"struct count beyond data", write(t, matfiletest.WithDims(matfiletest.Struct([]string{"a"}, matfiletest.Doubles(1)), 1000, 1000))},
		{"overflowing dims", write(t, matfiletest.WithDims(matfiletest.CellRow(), 1<<20, 1<<20, 1<<20))},
		{"truncated file", full[:len(full)-20]},
		{"element size beyond file", hugeElement},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := matfile.Decode(bytes.NewReader(tt.data))
			if !errors.Is(err, matfile.ErrNotMAT) {
				t.Errorf("Expected ErrNotMAT, got %v", err)
			}
		})
	}
}

func TestArray_Errors(t *testing.T) {
	f, err := matfile.Decode(bytes.NewReader(encode(t, matfiletest.Options{})))
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	wiki, _ := f.Variable("wiki")

	if _, err := wiki.Float64s(); err == nil {
		t.Error("Expected error reading struct as numbers")
	}
	if _, err := wiki.Field("missing"); err == nil {
		t.Error("Expected error for missing field")
	}
	if _, err := wiki.FieldAt(3, "dob"); err == nil {
		t.Error("Expected error for out of range element")
	}
	if _, err := f.Variable("imdb"); err == nil {
		t.Error("Expected error for missing variable")
	}
}

func TestOpen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "wiki.mat")
	if err := os.WriteFile(path, encode(t, matfiletest.Options{Compress: true}), 0o644); err != nil {
		t.Fatalf("Failed to write file: %v", err)
	}
	f, err := matfile.Open(path)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	if _, err := f.Variable("wiki"); err != nil {
		t.Errorf("Variable failed: %v", err)
	}

	if _, err := matfile.Open(filepath.Join(t.TempDir(), "none.mat")); err == nil {
		t.Error("Expected error for missing file")
	}
}

func equal(a, b []float64) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
