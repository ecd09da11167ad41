package viewer

import (
	"bytes"
	"errors"
	"image"
	"image/jpeg"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"faceann/internal/codec/jsonann"
	"faceann/internal/config"
	"faceann/internal/logger"

	"gocv.io/x/gocv"
)

type recordingDisplay struct {
	titles []string
	sizes  []image.Point
	quitAt int
}

func (d *recordingDisplay) Show(title string, img gocv.Mat, index, total int) error {
	d.titles = append(d.titles, title)
	d.sizes = append(d.sizes, image.Pt(img.Cols(), img.Rows()))
	if d.quitAt > 0 && len(d.titles) == d.quitAt {
		return ErrQuit
	}
	return nil
}

func (d *recordingDisplay) Close() error { return nil }

func writeJPEG(t *testing.T, path string, w, h int) {
	t.Helper()
	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("Failed to create %s: %v", path, err)
	}
	defer f.Close()
	if err := jpeg.Encode(f, image.NewRGBA(image.Rect(0, 0, w, h)), nil); err != nil {
		t.Fatalf("Failed to encode %s: %v", path, err)
	}
}

// fixture lays out images a, b and c; c has no annotation.
func fixture(t *testing.T) (imageDir, annDir string) {
	t.Helper()
	root := t.TempDir()
	imageDir = filepath.Join(root, "IMDB-WIKI")
	annDir = filepath.Join(root, "JSON_IMDB-WIKI")
	os.MkdirAll(imageDir, 0755)
	os.MkdirAll(annDir, 0755)

	for _, name := range []string{"a", "b", "c"} {
		writeJPEG(t, filepath.Join(imageDir, name+".jpg"), 200, 100)
	}
	os.WriteFile(filepath.Join(annDir, "a.json"),
		[]byte(`{'filename': 'a.jpg', 'objects': [{'class_name': 'face', 'bounding_box': [10, 20, 60, 80], 'gender': nan, 'age': 30}]}`), 0644)
	os.WriteFile(filepath.Join(annDir, "b.json"),
		[]byte(`{"filename": "b.jpg", "objects": [{"class_name": "face", "bounding_box": [1, 2, 3, 4]}]}`), 0644)
	return imageDir, annDir
}

func newViewer(t *testing.T, display Display, imageDir, annDir string, maxSide int) (*Viewer, *bytes.Buffer) {
	t.Helper()
	var logs bytes.Buffer
	cfg := &config.Config{JSONDialect: "strict", BoxConvention: "corners", ImageExtension: ".jpg", ViewerMaxSide: maxSide}
	v, err := New(cfg, logger.NewWriterLogger(&logs), display, imageDir, annDir)
	if err != nil {
		t.Fatalf("Failed to create viewer: %v", err)
	}
	return v, &logs
}

func TestDetectFormat(t *testing.T) {
	tests := []struct {
		dir  string
		want Format
	}{
		{"datasets/JSON_IMDB-WIKI/", FormatJSON},
		{"JSON_INRIA", FormatJSON},
		{"datasets/VOC_IMDB-WIKI/single", FormatVOC},
		{"datasets/annotations", FormatVOC},
		{"datasets/json_lower", FormatVOC},
	}
	for _, tt := range tests {
		if got := DetectFormat(tt.dir); got != tt.want {
			t.Errorf("DetectFormat(%q) = %s, expected %s", tt.dir, got, tt.want)
		}
	}
	if FormatJSON.Ext() != ".json" || FormatVOC.Ext() != ".xml" {
		t.Error("Unexpected format extensions")
	}
}

func TestParseIndex(t *testing.T) {
	tests := []struct {
		input   string
		want    int
		wantErr bool
	}{
		{"0", 0, false},
		{"12", 12, false},
		{"all", All, false},
		{"ALL", All, false},
		{"-1", All, false},
		{"-2", 0, true},
		{"five", 0, true},
		{"", 0, true},
	}
	for _, tt := range tests {
		got, err := ParseIndex(tt.input)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParseIndex(%q) error = %v, wantErr %v", tt.input, err, tt.wantErr)
			continue
		}
		if err != nil && !errors.Is(err, ErrBadIndex) {
			t.Errorf("ParseIndex(%q) error = %v, expected ErrBadIndex", tt.input, err)
		}
		if got != tt.want {
			t.Errorf("ParseIndex(%q) = %d, expected %d", tt.input, got, tt.want)
		}
	}
}

func TestLoadAnnotation(t *testing.T) {
	_, annDir := fixture(t)
	ann, err := LoadAnnotation(filepath.Join(annDir, "a.json"), FormatJSON, jsonann.Options{})
	if err != nil {
		t.Fatalf("LoadAnnotation failed: %v", err)
	}
	if len(ann.Objects) != 1 || ann.Objects[0].Demographics.Gender.Known() {
		t.Errorf("Unexpected annotation %+v", ann)
	}

	if _, err := LoadAnnotation(filepath.Join(annDir, "a.json"), FormatVOC, jsonann.Options{}); err == nil {
		t.Error("Expected error reading JSON as VOC")
	}
}

func TestShowIndex(t *testing.T) {
	imageDir, annDir := fixture(t)
	display := &recordingDisplay{}
	v, _ := newViewer(t, display, imageDir, annDir, 0)

	if err := v.ShowIndex(1); err != nil {
		t.Fatalf("ShowIndex failed: %v", err)
	}
	if len(display.titles) != 1 || display.titles[0] != "b.jpg" {
		t.Errorf("Expected b.jpg shown, got %v", display.titles)
	}
	if display.sizes[0] != image.Pt(200, 100) {
		t.Errorf("Unexpected size %v", display.sizes[0])
	}

	if err := v.ShowIndex(2); !errors.Is(err, ErrNoAnnotation) {
		t.Errorf("Expected ErrNoAnnotation for c.jpg, got %v", err)
	}
	if err := v.ShowIndex(3); !errors.Is(err, ErrNoImage) {
		t.Errorf("Expected ErrNoImage for index out of range, got %v", err)
	}
	if err := v.ShowIndex(-5); !errors.Is(err, ErrBadIndex) {
		t.Errorf("Expected ErrBadIndex, got %v", err)
	}
	if err := v.Show(filepath.Join(imageDir, "missing.jpg")); !errors.Is(err, ErrNoImage) {
		t.Errorf("Expected ErrNoImage, got %v", err)
	}
}

func TestShowAll(t *testing.T) {
	imageDir, annDir := fixture(t)
	display := &recordingDisplay{}
	v, logs := newViewer(t, display, imageDir, annDir, 100)

	if err := v.ShowIndex(All); err != nil {
		t.Fatalf("ShowAll failed: %v", err)
	}
	if strings.Join(display.titles, ",") != "a.jpg,b.jpg" {
		t.Errorf("Expected a.jpg and b.jpg shown, got %v", display.titles)
	}
	if display.sizes[0] != image.Pt(100, 50) {
		t.Errorf("Expected image scaled to 100x50, got %v", display.sizes[0])
	}
	if !strings.Contains(logs.String(), "c.json") {
		t.Errorf("Expected warning for missing annotation, got:\n%s", logs.String())
	}
}

func TestShowAll_Quit(t *testing.T) {
	imageDir, annDir := fixture(t)
	display := &recordingDisplay{quitAt: 1}
	v, _ := newViewer(t, display, imageDir, annDir, 0)

	if err := v.ShowAll(); err != nil {
		t.Fatalf("ShowAll failed: %v", err)
	}
	if len(display.titles) != 1 {
		t.Errorf("Expected to stop after first image, got %v", display.titles)
	}
}

func TestShowAll_EmptyDirectory(t *testing.T) {
	v, _ := newViewer(t, &recordingDisplay{}, t.TempDir(), "JSON_x", 0)
	if err := v.ShowAll(); !errors.Is(err, ErrNoImage) {
		t.Errorf("Expected ErrNoImage, got %v", err)
	}
}

func TestWebKey(t *testing.T) {
	for _, key := range []string{"q", "Q", "Escape"} {
		if !errors.Is(webKey(key), ErrQuit) {
			t.Errorf("Expected %q to quit", key)
		}
	}
	for _, key := range []string{" ", "ArrowRight", "n"} {
		if webKey(key) != nil {
			t.Errorf("Expected %q to advance", key)
		}
	}
}
