// Package overlay computes what the viewer draws over an image: one
// rectangle per object and the gender/age labels above its top-left corner.
// It holds no drawing code, so a Frame can be rendered by any backend.
package overlay

import (
	"image"
	"image/color"
	"strconv"

	"faceann/internal/annotation"
)

// Label offsets from the box's top-left corner.
const (
	AgeOffsetX   = 20
	LabelOffsetY = 5
)

// FontScale is the Hershey font scale used for every label.
const FontScale = 0.5

// UnknownLabel is shown for a gender or age that is not known.
const UnknownLabel = "NAN"

var (
	BoxColor  = color.RGBA{R: 0, G: 255, B: 0, A: 0}
	TextColor = color.RGBA{R: 0, G: 100, B: 0, A: 0}
)

// Text is one label anchored at its baseline origin.
type Text struct {
	Value  string
	Origin image.Point
}

// Box is one rectangle with its labels.
type Box struct {
	Rect   image.Rectangle
	Labels []Text
}

// Frame is everything drawn over one image.
type Frame struct {
	Boxes         []Box
	Thickness     int
	TextThickness int
	BoxColor      color.RGBA
	TextColor     color.RGBA
	FontScale     float64
}

// Thickness is the rectangle line width for a width x height image.
func Thickness(width, height int) int {
	return atLeastOne((width + height) / 300)
}

// TextThickness is the label stroke width for a width x height image.
func TextThickness(width, height int) int {
	return atLeastOne((width + height) / 600)
}

func atLeastOne(v int) int {
	if v < 1 {
		return 1
	}
	return v
}

// Layout places every object of a on a width x height image. Boxes are
// drawn as corners whatever convention they were stored in. Objects without
// demographics get a rectangle only.
func Layout(a *annotation.Annotation, width, height int) Frame {
	frame := Frame{
		Thickness:     Thickness(width, height),
		TextThickness: TextThickness(width, height),
		BoxColor:      BoxColor,
		TextColor:     TextColor,
		FontScale:     FontScale,
	}
	if a == nil {
		return frame
	}

	tt := frame.TextThickness
	for _, obj := range a.Objects {
		rect := obj.Box.Rect()
		box := Box{Rect: rect}
		if obj.Demographics != nil {
			y := rect.Min.Y - LabelOffsetY - tt
			box.Labels = []Text{
				{Value: obj.Demographics.Gender.Label(), Origin: image.Pt(rect.Min.X-tt, y)},
				{Value: AgeLabel(obj.Demographics.Age), Origin: image.Pt(rect.Min.X+AgeOffsetX-tt, y)},
			}
		}
		frame.Boxes = append(frame.Boxes, box)
	}
	return frame
}

// AgeLabel is the age in whole years or "NAN".
func AgeLabel(a annotation.Age) string {
	v, ok := a.Value()
	if !ok {
		return UnknownLabel
	}
	return strconv.Itoa(v)
}

// Scale returns the size that fits width x height within maxSide on its
// longer side, keeping the aspect ratio. Images already small enough, and a
// maxSide <= 0, are returned unchanged.
func Scale(width, height, maxSide int) (int, int) {
	longest := width
	if height > longest {
		longest = height
	}
	if maxSide <= 0 || longest <= maxSide {
		return width, height
	}
	w := width * maxSide / longest
	h := height * maxSide / longest
	return atLeastOne(w), atLeastOne(h)
}
