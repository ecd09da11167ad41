// Package annotation is the in-memory model shared by every reader and writer:
// one Annotation per image holding its detected objects.
package annotation

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
)

// FaceClass is the class name emitted by the face dataset adapters.
const FaceClass = "face"

// ErrEmpty is returned for an annotation without objects.
var ErrEmpty = errors.New("annotation has no objects")

// Object is a single detected object.
// Demographics is nil when the source carries no gender/age.
type Object struct {
	ClassName    string
	Box          BoundingBox
	Demographics *Demographics
}

// NewObject validates the box and class name.
func NewObject(class string, box BoundingBox, demo *Demographics) (Object, error) {
	if class == "" {
		return Object{}, errors.New("object has no class name")
	}
	if err := box.Validate(); err != nil {
		return Object{}, err
	}
	return Object{ClassName: class, Box: box, Demographics: demo}, nil
}

// Annotation is one image's objects.
type Annotation struct {
	Filename string
	Objects  []Object
}

// New builds an annotation and validates every object.
func New(filename string, objects ...Object) (*Annotation, error) {
	a := &Annotation{Filename: filename, Objects: objects}
	if err := a.Validate(); err != nil {
		return nil, err
	}
	return a, nil
}

// Validate checks that the annotation is non-empty and every box is well formed.
func (a *Annotation) Validate() error {
	if len(a.Objects) == 0 {
		return fmt.Errorf("%w: %q", ErrEmpty, a.Filename)
	}
	for i, obj := range a.Objects {
		if err := obj.Box.Validate(); err != nil {
			return fmt.Errorf("annotation %q object %d: %w", a.Filename, i, err)
		}
	}
	return nil
}

// HasDemographics reports whether any object carries gender/age.
func (a *Annotation) HasDemographics() bool {
	for _, obj := range a.Objects {
		if obj.Demographics != nil {
			return true
		}
	}
	return false
}

// BaseName strips directory and extension: "a/b/c.jpg" -> "c".
func BaseName(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}
