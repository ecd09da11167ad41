package annotation

import (
	"errors"
	"fmt"
	"image"
	"strings"
)

// ErrInvalidBox is returned when a bounding box violates xmin <= xmax, ymin <= ymax.
var ErrInvalidBox = errors.New("invalid bounding box")

// Convention tells how the four integers of a BoundingBox are to be read.
type Convention int

const (
	// ConventionCorners is [xmin, ymin, xmax, ymax].
	ConventionCorners Convention = iota
	// ConventionCenterSize is [cx, cy, w, h].
	ConventionCenterSize
)

func (c Convention) String() string {
	switch c {
	case ConventionCorners:
		return "corners"
	case ConventionCenterSize:
		return "center"
	}
	return fmt.Sprintf("convention(%d)", int(c))
}

// ParseConvention maps "corners" / "center" to a Convention.
func ParseConvention(s string) (Convention, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "corners", "corner":
		return ConventionCorners, nil
	case "center", "centre", "center_size":
		return ConventionCenterSize, nil
	}
	return ConventionCorners, fmt.Errorf("unknown box convention %q", s)
}

// BoundingBox is four integers tagged with the convention they were written in.
// The zero value is the empty corners box.
type BoundingBox struct {
	conv Convention
	v    [4]int
}

// Corners builds a corner-based box.
func Corners(xmin, ymin, xmax, ymax int) BoundingBox {
	return BoundingBox{conv: ConventionCorners, v: [4]int{xmin, ymin, xmax, ymax}}
}

// CenterSize builds a center+size box.
func CenterSize(cx, cy, w, h int) BoundingBox {
	return BoundingBox{conv: ConventionCenterSize, v: [4]int{cx, cy, w, h}}
}

// FromValues builds a box from a 4-element slice read in the given convention.
func FromValues(conv Convention, vals []int) (BoundingBox, error) {
	if len(vals) != 4 {
		return BoundingBox{}, fmt.Errorf("%w: want 4 values, got %d", ErrInvalidBox, len(vals))
	}
	b := BoundingBox{conv: conv}
	copy(b.v[:], vals)
	return b, b.Validate()
}

func (b BoundingBox) Convention() Convention { return b.conv }

// Values returns the raw integers in the box's own convention.
func (b BoundingBox) Values() [4]int { return b.v }

// In returns the values expressed in conv.
func (b BoundingBox) In(conv Convention) [4]int {
	if conv == b.conv {
		return b.v
	}
	if conv == ConventionCorners {
		return b.ToCorners().v
	}
	c := b.ToCorners().v
	w, h := c[2]-c[0], c[3]-c[1]
	return [4]int{c[0] + w/2, c[1] + h/2, w, h}
}

// ToCorners converts the box to the corner convention. The size is kept
// exact, so In(ConventionCenterSize) round-trips odd widths and heights.
func (b BoundingBox) ToCorners() BoundingBox {
	if b.conv == ConventionCorners {
		return b
	}
	cx, cy, w, h := b.v[0], b.v[1], b.v[2], b.v[3]
	xmin, ymin := cx-w/2, cy-h/2
	return Corners(xmin, ymin, xmin+w, ymin+h)
}

// Rect returns the box as an image.Rectangle (Min = top-left, Max = bottom-right).
func (b BoundingBox) Rect() image.Rectangle {
	c := b.ToCorners().v
	return image.Rectangle{Min: image.Pt(c[0], c[1]), Max: image.Pt(c[2], c[3])}
}

// Validate checks the corner ordering (or non-negative size for center boxes).
func (b BoundingBox) Validate() error {
	switch b.conv {
	case ConventionCorners:
		if b.v[0] > b.v[2] || b.v[1] > b.v[3] {
			return fmt.Errorf("%w: %v", ErrInvalidBox, b.v)
		}
	case ConventionCenterSize:
		if b.v[2] < 0 || b.v[3] < 0 {
			return fmt.Errorf("%w: negative size %v", ErrInvalidBox, b.v)
		}
	default:
		return fmt.Errorf("%w: %v", ErrInvalidBox, b.conv)
	}
	return nil
}

func (b BoundingBox) String() string {
	return fmt.Sprintf("%s%v", b.conv, b.v)
}
