// Package voc reads and writes PASCAL VOC annotation XML extended with the
// per-object <gender> and <age> elements of the face datasets.
package voc

import (
	"bytes"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"golang.org/x/net/html/charset"

	"faceann/internal/annotation"
	"faceann/internal/storage"
)

// Ext is the file extension of VOC annotations.
const Ext = ".xml"

// Fixed values written for fields the annotation model does not carry.
const (
	imageDepth  = 3
	defaultPose = "Unspecified"
	noneText    = "None"
)

var (
	// ErrNoBndBox is returned for an <object> without <bndbox>.
	ErrNoBndBox = errors.New("object has no bndbox")
	// ErrMalformedObject is returned for unparsable object fields.
	ErrMalformedObject = errors.New("malformed object")
	// ErrMalformedSize is returned for an unparsable <size> element.
	ErrMalformedSize = errors.New("malformed size")
)

// DecodeError names the file a decode failure came from.
type DecodeError struct {
	File string
	Err  error
}

func (e *DecodeError) Error() string {
	if e.File == "" {
		return fmt.Sprintf("voc annotation: %v", e.Err)
	}
	return fmt.Sprintf("voc annotation %s: %v", e.File, e.Err)
}

func (e *DecodeError) Unwrap() error { return e.Err }

// ImageInfo describes the annotated image.
type ImageInfo struct {
	Path   string // <folder>/<filename>
	Width  int
	Height int
	Depth  int
}

type xmlAnnotation struct {
	XMLName  xml.Name    `xml:"annotation"`
	Filename string      `xml:"filename"`
	Folder   string      `xml:"folder"`
	Objects  []xmlObject `xml:"object"`
	Size     *xmlSize    `xml:"size"`
}

type xmlObject struct {
	Name      string  `xml:"name"`
	Gender    *string `xml:"gender"`
	Age       *string `xml:"age"`
	BndBox    *xmlBox `xml:"bndbox"`
	Difficult int     `xml:"difficult"`
	Occluded  int     `xml:"occluded"`
	Pose      string  `xml:"pose"`
	Truncated int     `xml:"truncated"`
}

type xmlBox struct {
	Xmin string `xml:"xmin"`
	Ymin string `xml:"ymin"`
	Xmax string `xml:"xmax"`
	Ymax string `xml:"ymax"`
}

// xmlSize is text so that "480.0" decodes like "480".
type xmlSize struct {
	Depth  string `xml:"depth"`
	Height string `xml:"height"`
	Width  string `xml:"width"`
}

// Marshal encodes a as VOC XML. Boxes are always written as corners.
// info.Path defaults to a.Filename.
func Marshal(a *annotation.Annotation, info ImageInfo) ([]byte, error) {
	path := info.Path
	if path == "" {
		path = a.Filename
	}
	depth := info.Depth
	if depth == 0 {
		depth = imageDepth
	}

	doc := xmlAnnotation{
		Filename: filepath.Base(path),
		Folder:   filepath.ToSlash(filepath.Dir(path)),
		Size: &xmlSize{
			Depth:  strconv.Itoa(depth),
			Height: strconv.Itoa(info.Height),
			Width:  strconv.Itoa(info.Width),
		},
	}
	if doc.Folder == "." {
		doc.Folder = ""
	}

	for _, obj := range a.Objects {
		c := obj.Box.ToCorners().Values()
		xo := xmlObject{
			Name: obj.ClassName,
			BndBox: &xmlBox{
				Xmin: strconv.Itoa(c[0]),
				Ymin: strconv.Itoa(c[1]),
				Xmax: strconv.Itoa(c[2]),
				Ymax: strconv.Itoa(c[3]),
			},
			Pose:      defaultPose,
			Truncated: 1,
		}
		if d := obj.Demographics; d != nil {
			gender, age := noneText, noneText
			if v, ok := d.Gender.Value(); ok {
				gender = formatGender(v)
			}
			if v, ok := d.Age.Value(); ok {
				age = strconv.Itoa(v)
			}
			xo.Gender, xo.Age = &gender, &age
		}
		doc.Objects = append(doc.Objects, xo)
	}

	out, err := xml.MarshalIndent(doc, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to encode %s: %w", a.Filename, err)
	}
	return append(out, '\n'), nil
}

// formatGender writes a confidence the way Python prints floats ("1.0").
func formatGender(v float64) string {
	s := strconv.FormatFloat(v, 'f', -1, 64)
	if !strings.Contains(s, ".") {
		s += ".0"
	}
	return s
}

// Encode writes a to w.
func Encode(w io.Writer, a *annotation.Annotation, info ImageInfo) error {
	data, err := Marshal(a, info)
	if err != nil {
		return err
	}
	_, err = w.Write(data)
	return err
}

// Decode reads a VOC document. Non-UTF-8 documents are converted using
// the encoding named in their XML declaration.
func Decode(r io.Reader) (*annotation.Annotation, ImageInfo, error) {
	dec := xml.NewDecoder(r)
	dec.CharsetReader = charset.NewReaderLabel

	var doc xmlAnnotation
	if err := dec.Decode(&doc); err != nil {
		return nil, ImageInfo{}, &DecodeError{Err: err}
	}

	info := ImageInfo{Path: doc.Filename}
	if doc.Folder != "" {
		info.Path = doc.Folder + "/" + doc.Filename
	}
	if doc.Size != nil {
		dims := []*int{&info.Width, &info.Height, &info.Depth}
		for i, s := range []string{doc.Size.Width, doc.Size.Height, doc.Size.Depth} {
			v, err := parseDimension(s)
			if err != nil {
				return nil, ImageInfo{}, &DecodeError{Err: fmt.Errorf("%w: size: %v", ErrMalformedSize, err)}
			}
			*dims[i] = v
		}
	}

	ann := &annotation.Annotation{Filename: doc.Filename}
	for i, xo := range doc.Objects {
		obj, err := decodeObject(xo)
		if err != nil {
			return nil, ImageInfo{}, &DecodeError{Err: fmt.Errorf("object %d: %w", i, err)}
		}
		ann.Objects = append(ann.Objects, obj)
	}
	if err := ann.Validate(); err != nil {
		return nil, ImageInfo{}, &DecodeError{Err: err}
	}
	return ann, info, nil
}

// Unmarshal decodes a VOC document held in memory.
func Unmarshal(data []byte) (*annotation.Annotation, ImageInfo, error) {
	return Decode(bytes.NewReader(data))
}

func decodeObject(xo xmlObject) (annotation.Object, error) {
	if xo.BndBox == nil {
		return annotation.Object{}, ErrNoBndBox
	}

	coords := make([]int, 4)
	for i, s := range []string{xo.BndBox.Xmin, xo.BndBox.Ymin, xo.BndBox.Xmax, xo.BndBox.Ymax} {
		v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
		if err != nil {
			return annotation.Object{}, fmt.Errorf("%w: bndbox: %v", ErrMalformedObject, err)
		}
		coords[i] = int(v)
	}
	box, err := annotation.FromValues(annotation.ConventionCorners, coords)
	if err != nil {
		return annotation.Object{}, err
	}

	var demo *annotation.Demographics
	switch {
	case xo.Gender != nil && xo.Age != nil:
		g, err := parseNullable(*xo.Gender)
		if err != nil {
			return annotation.Object{}, fmt.Errorf("%w: gender: %v", ErrMalformedObject, err)
		}
		a, err := parseNullable(*xo.Age)
		if err != nil {
			return annotation.Object{}, fmt.Errorf("%w: age: %v", ErrMalformedObject, err)
		}
		if demo, err = annotation.NewDemographics(annotation.GenderFromFloat(g), annotation.AgeFromFloat(a)); err != nil {
			return annotation.Object{}, err
		}
	case xo.Gender != nil:
		return annotation.Object{}, fmt.Errorf("%w: gender without age", ErrMalformedObject)
	case xo.Age != nil:
		return annotation.Object{}, fmt.Errorf("%w: age without gender", ErrMalformedObject)
	}

	return annotation.NewObject(strings.TrimSpace(xo.Name), box, demo)
}

// parseDimension reads a size element, truncating "480.0" to 480. Empty
// text is 0.
func parseDimension(s string) (int, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, err
	}
	if v < 0 || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, fmt.Errorf("invalid dimension %q", s)
	}
	return int(v), nil
}

// parseNullable maps "None", "nan" and empty text to NaN.
func parseNullable(s string) (float64, error) {
	s = strings.TrimSpace(s)
	switch strings.ToLower(s) {
	case "", "none", "nan", "null":
		return math.NaN(), nil
	}
	return strconv.ParseFloat(s, 64)
}

// ReadFile decodes the VOC file at path.
func ReadFile(path string) (*annotation.Annotation, ImageInfo, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, ImageInfo{}, err
	}
	defer f.Close()

	ann, info, err := Decode(f)
	if err != nil {
		var de *DecodeError
		if errors.As(err, &de) {
			de.File = path
		}
		return nil, ImageInfo{}, err
	}
	return ann, info, nil
}

// WriteFile encodes a to path, replacing any existing file in one rename.
func WriteFile(path string, a *annotation.Annotation, info ImageInfo) error {
	data, err := Marshal(a, info)
	if err != nil {
		return err
	}

	return storage.WriteFile(path, data)
}
