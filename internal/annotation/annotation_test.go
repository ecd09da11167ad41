package annotation

import (
	"errors"
	"image"
	"math"
	"testing"
)

func TestCorners_Validate(t *testing.T) {
	tests := []struct {
		name    string
		box     BoundingBox
		wantErr bool
	}{
		{"regular", Corners(10, 20, 110, 220), false},
		{"degenerate point", Corners(5, 5, 5, 5), false},
		{"x swapped", Corners(110, 20, 10, 220), true},
		{"y swapped", Corners(10, 220, 110, 20), true},
		{"center ok", CenterSize(50, 50, 10, 20), false},
		{"center negative size", CenterSize(50, 50, -1, 20), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.box.Validate()
			if (err != nil) != tt.wantErr {
				t.Fatalf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil && !errors.Is(err, ErrInvalidBox) {
				t.Errorf("Expected ErrInvalidBox, got %v", err)
			}
		})
	}
}

func TestBoundingBox_ConventionsAreTagged(t *testing.T) {
	center := CenterSize(60, 120, 100, 200)
	if center.Convention() != ConventionCenterSize {
		t.Fatalf("Expected center convention, got %v", center.Convention())
	}

	corners := center.ToCorners()
	if corners.Convention() != ConventionCorners {
		t.Fatalf("Expected corners convention after conversion, got %v", corners.Convention())
	}
	if got, want := corners.Values(), [4]int{10, 20, 110, 220}; got != want {
		t.Errorf("ToCorners() = %v, expected %v", got, want)
	}
	if got, want := corners.In(ConventionCenterSize), [4]int{60, 120, 100, 200}; got != want {
		t.Errorf("In(center) = %v, expected %v", got, want)
	}
	if got, want := center.Rect(), image.Rect(10, 20, 110, 220); got != want {
		t.Errorf("Rect() = %v, expected %v", got, want)
	}
}

func TestBoundingBox_OddSizeRoundTrip(t *testing.T) {
	tests := []BoundingBox{
		Corners(10, 20, 111, 221),
		Corners(0, 0, 1, 1),
		Corners(5, 5, 5, 8),
	}
	for _, box := range tests {
		center := box.In(ConventionCenterSize)
		back := CenterSize(center[0], center[1], center[2], center[3]).ToCorners()
		if back.Values() != box.Values() {
			t.Errorf("%v -> %v -> %v, expected the corners back", box, center, back)
		}
	}

	if got, want := CenterSize(60, 120, 101, 201).ToCorners().Values(), [4]int{10, 20, 111, 221}; got != want {
		t.Errorf("ToCorners() = %v, expected %v", got, want)
	}
}

func TestFromValues(t *testing.T) {
	box, err := FromValues(ConventionCorners, []int{1, 2, 3, 4})
	if err != nil {
		t.Fatalf("FromValues failed: %v", err)
	}
	if box.Values() != [4]int{1, 2, 3, 4} {
		t.Errorf("Unexpected values %v", box.Values())
	}

	if _, err := FromValues(ConventionCorners, []int{1, 2, 3}); !errors.Is(err, ErrInvalidBox) {
		t.Errorf("Expected ErrInvalidBox for 3 values, got %v", err)
	}
}

func TestParseConvention(t *testing.T) {
	tests := []struct {
		input   string
		want    Convention
		wantErr bool
	}{
		{"", ConventionCorners, false},
		{"corners", ConventionCorners, false},
		{"Center", ConventionCenterSize, false},
		{"diagonal", ConventionCorners, true},
	}

	for _, tt := range tests {
		got, err := ParseConvention(tt.input)
		if (err != nil) != tt.wantErr || got != tt.want {
			t.Errorf("ParseConvention(%q) = %v, %v; expected %v, err=%v", tt.input, got, err, tt.want, tt.wantErr)
		}
	}
}

func TestGender_Label(t *testing.T) {
	tests := []struct {
		gender Gender
		want   string
	}{
		{KnownGender(1), "M"},
		{KnownGender(0.51), "M"},
		{KnownGender(0.5), "F"},
		{KnownGender(0), "F"},
		{GenderFromFloat(math.NaN()), "NAN"},
		{UnknownGender, "NAN"},
	}

	for _, tt := range tests {
		if got := tt.gender.Label(); got != tt.want {
			t.Errorf("Label() for %+v = %q, expected %q", tt.gender, got, tt.want)
		}
	}
}

func TestGender_Float(t *testing.T) {
	if !math.IsNaN(UnknownGender.Float()) {
		t.Error("Unknown gender should be NaN")
	}
	if KnownGender(0.25).Float() != 0.25 {
		t.Error("Known gender should keep its value")
	}
}

func TestAgeFromFloat(t *testing.T) {
	if v, ok := AgeFromFloat(30.9).Value(); !ok || v != 30 {
		t.Errorf("AgeFromFloat(30.9) = %d,%v; expected 30,true", v, ok)
	}
	if AgeFromFloat(math.NaN()).Known() {
		t.Error("NaN age should be unknown")
	}
	if AgeFromFloat(math.Inf(-1)).Known() {
		t.Error("-Inf age should be unknown")
	}
}

func TestNewDemographics(t *testing.T) {
	if _, err := NewDemographics(KnownGender(1.5), KnownAge(20)); !errors.Is(err, ErrDemographics) {
		t.Errorf("Expected ErrDemographics, got %v", err)
	}
	d, err := NewDemographics(UnknownGender, KnownAge(20))
	if err != nil {
		t.Fatalf("NewDemographics failed: %v", err)
	}
	if d.Gender.Known() || !d.Age.Known() {
		t.Errorf("Unexpected demographics %+v", d)
	}
}

func TestNew(t *testing.T) {
	obj, err := NewObject(FaceClass, Corners(1, 2, 3, 4), nil)
	if err != nil {
		t.Fatalf("NewObject failed: %v", err)
	}

	ann, err := New("a.jpg", obj)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	if ann.HasDemographics() {
		t.Error("Annotation without demographics reports HasDemographics")
	}

	if _, err := New("empty.jpg"); err == nil {
		t.Error("Expected error for annotation without objects")
	}
	if _, err := NewObject("", Corners(1, 2, 3, 4), nil); err == nil {
		t.Error("Expected error for empty class name")
	}
	if _, err := NewObject(FaceClass, Corners(3, 2, 1, 4), nil); !errors.Is(err, ErrInvalidBox) {
		t.Errorf("Expected ErrInvalidBox, got %v", err)
	}
}

func TestBaseName(t *testing.T) {
	tests := map[string]string{
		"datasets/IMDB-WIKI/10049200_1891-09-16_1958.jpg": "10049200_1891-09-16_1958",
		"a.b.json": "a.b",
		"plain":    "plain",
	}
	for input, want := range tests {
		if got := BaseName(input); got != want {
			t.Errorf("BaseName(%q) = %q, expected %q", input, got, want)
		}
	}
}
