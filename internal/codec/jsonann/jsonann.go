// Package jsonann reads and writes the per-image JSON annotation files:
//
//	{"filename": "a.jpg", "objects": [{"class_name": "face",
//	  "bounding_box": [xmin, ymin, xmax, ymax], "gender": 1.0, "age": 30}]}
//
// Files written by older Python tooling are dict reprs rather than
// JSON (single quotes, bare nan). Decoding runs Normalize first and then a
// strict parse, so both forms are accepted. Unknown gender or age is written
// as null (strict) or nan (legacy).
package jsonann

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"strconv"
	"strings"

	"faceann/internal/annotation"
	"faceann/internal/storage"
)

// Ext is the file extension of JSON annotations.
const Ext = ".json"

// Dialect selects the encoder output form.
type Dialect int

const (
	// DialectStrict is standard JSON with null for unknown values.
	DialectStrict Dialect = iota
	// DialectLegacy is the Python dict repr older producers wrote.
	DialectLegacy
)

func (d Dialect) String() string {
	if d == DialectLegacy {
		return "legacy"
	}
	return "strict"
}

// ParseDialect maps "strict" / "legacy" to a Dialect.
func ParseDialect(s string) (Dialect, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "strict", "json":
		return DialectStrict, nil
	case "legacy", "python":
		return DialectLegacy, nil
	}
	return DialectStrict, fmt.Errorf("unknown JSON dialect %q", s)
}

// Options controls both directions. The zero value is strict JSON with
// corner boxes.
type Options struct {
	Dialect    Dialect
	Convention annotation.Convention
}

// DecodeError names the file a decode failure came from.
type DecodeError struct {
	File string
	Err  error
}

func (e *DecodeError) Error() string {
	if e.File == "" {
		return fmt.Sprintf("json annotation: %v", e.Err)
	}
	return fmt.Sprintf("json annotation %s: %v", e.File, e.Err)
}

func (e *DecodeError) Unwrap() error { return e.Err }

var (
	// ErrNoObjects is returned when a record has no "objects" key.
	ErrNoObjects = errors.New(`missing "objects" key`)
	// ErrMalformedObject is returned for an object missing a required field.
	ErrMalformedObject = errors.New("malformed object")
)

type fileAnnotation struct {
	Filename string       `json:"filename,omitempty"`
	Objects  []fileObject `json:"objects"`
}

type fileObject struct {
	ClassName   string          `json:"class_name"`
	BoundingBox [4]int          `json:"bounding_box"`
	Gender      json.RawMessage `json:"gender,omitempty"`
	Age         json.RawMessage `json:"age,omitempty"`
}

var jsonNull = json.RawMessage("null")

// Marshal encodes a in the given options.
func Marshal(a *annotation.Annotation, opts Options) ([]byte, error) {
	if opts.Dialect == DialectLegacy {
		return marshalLegacy(a, opts), nil
	}

	out := fileAnnotation{Filename: a.Filename, Objects: make([]fileObject, 0, len(a.Objects))}
	for _, obj := range a.Objects {
		fo := fileObject{ClassName: obj.ClassName, BoundingBox: obj.Box.In(opts.Convention)}
		if d := obj.Demographics; d != nil {
			fo.Gender, fo.Age = jsonNull, jsonNull
			if v, ok := d.Gender.Value(); ok {
				fo.Gender = json.RawMessage(strconv.FormatFloat(v, 'f', -1, 64))
			}
			if v, ok := d.Age.Value(); ok {
				fo.Age = json.RawMessage(strconv.Itoa(v))
			}
		}
		out.Objects = append(out.Objects, fo)
	}
	return json.Marshal(out)
}

// Encode writes a to w.
func Encode(w io.Writer, a *annotation.Annotation, opts Options) error {
	data, err := Marshal(a, opts)
	if err != nil {
		return err
	}
	_, err = w.Write(data)
	return err
}

// marshalLegacy renders the Python str(dict) form.
func marshalLegacy(a *annotation.Annotation, opts Options) []byte {
	var b bytes.Buffer
	b.WriteString("{'filename': ")
	b.WriteString(pyString(a.Filename))
	b.WriteString(", 'objects': [")
	for i, obj := range a.Objects {
		if i > 0 {
			b.WriteString(", ")
		}
		v := obj.Box.In(opts.Convention)
		fmt.Fprintf(&b, "{'class_name': %s, 'bounding_box': [%d, %d, %d, %d]",
			pyString(obj.ClassName), v[0], v[1], v[2], v[3])
		if d := obj.Demographics; d != nil {
			b.WriteString(", 'gender': ")
			b.WriteString(pyFloat(d.Gender.Float()))
			b.WriteString(", 'age': ")
			if age, ok := d.Age.Value(); ok {
				b.WriteString(strconv.Itoa(age))
			} else {
				b.WriteString("nan")
			}
		}
		b.WriteString("}")
	}
	b.WriteString("]}")
	return b.Bytes()
}

func pyFloat(v float64) string {
	if math.IsNaN(v) {
		return "nan"
	}
	s := strconv.FormatFloat(v, 'f', -1, 64)
	if !strings.ContainsAny(s, ".e") {
		s += ".0"
	}
	return s
}

func pyString(s string) string {
	if strings.Contains(s, "'") && !strings.Contains(s, `"`) {
		return `"` + strings.ReplaceAll(s, `\`, `\\`) + `"`
	}
	s = strings.ReplaceAll(s, `\`, `\\`)
	return "'" + strings.ReplaceAll(s, "'", `\'`) + "'"
}

// Unmarshal decodes one annotation file. A file may hold several records
// (one per line); their objects are concatenated.
func Unmarshal(data []byte, opts Options) (*annotation.Annotation, error) {
	dec := json.NewDecoder(bytes.NewReader(Normalize(data)))

	ann := &annotation.Annotation{}
	records := 0
	for {
		var rec map[string]json.RawMessage
		err := dec.Decode(&rec)
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, &DecodeError{Err: err}
		}
		records++

		if err := decodeRecord(ann, rec, opts); err != nil {
			return nil, &DecodeError{Err: err}
		}
	}
	if records == 0 {
		return nil, &DecodeError{Err: errors.New("empty file")}
	}
	if err := ann.Validate(); err != nil {
		return nil, &DecodeError{Err: err}
	}
	return ann, nil
}

// Decode reads one annotation file from r.
func Decode(r io.Reader, opts Options) (*annotation.Annotation, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	return Unmarshal(data, opts)
}

func decodeRecord(ann *annotation.Annotation, rec map[string]json.RawMessage, opts Options) error {
	if raw, ok := rec["filename"]; ok && ann.Filename == "" {
		if err := json.Unmarshal(raw, &ann.Filename); err != nil {
			return fmt.Errorf("filename: %w", err)
		}
	}

	raw, ok := rec["objects"]
	if !ok {
		return ErrNoObjects
	}
	var objects []map[string]json.RawMessage
	if err := json.Unmarshal(raw, &objects); err != nil {
		return fmt.Errorf("objects: %w", err)
	}

	for _, fields := range objects {
		obj, err := decodeObject(fields, opts)
		if err != nil {
			return fmt.Errorf("object %d: %w", len(ann.Objects), err)
		}
		ann.Objects = append(ann.Objects, obj)
	}
	return nil
}

func decodeObject(fields map[string]json.RawMessage, opts Options) (annotation.Object, error) {
	var class string
	if err := unmarshalField(fields, "class_name", &class); err != nil {
		return annotation.Object{}, err
	}

	var coords []float64
	if err := unmarshalField(fields, "bounding_box", &coords); err != nil {
		return annotation.Object{}, err
	}
	vals := make([]int, len(coords))
	for i, c := range coords {
		vals[i] = int(c)
	}
	box, err := annotation.FromValues(opts.Convention, vals)
	if err != nil {
		return annotation.Object{}, err
	}

	rawGender, hasGender := fields["gender"]
	rawAge, hasAge := fields["age"]
	var demo *annotation.Demographics
	switch {
	case hasGender && hasAge:
		g, err := nullableFloat(rawGender)
		if err != nil {
			return annotation.Object{}, fmt.Errorf("%w: gender: %v", ErrMalformedObject, err)
		}
		a, err := nullableFloat(rawAge)
		if err != nil {
			return annotation.Object{}, fmt.Errorf("%w: age: %v", ErrMalformedObject, err)
		}
		if demo, err = annotation.NewDemographics(annotation.GenderFromFloat(g), annotation.AgeFromFloat(a)); err != nil {
			return annotation.Object{}, err
		}
	case hasGender:
		return annotation.Object{}, fmt.Errorf("%w: gender without age", ErrMalformedObject)
	case hasAge:
		return annotation.Object{}, fmt.Errorf("%w: age without gender", ErrMalformedObject)
	}

	return annotation.NewObject(class, box, demo)
}

func unmarshalField(fields map[string]json.RawMessage, key string, dst interface{}) error {
	raw, ok := fields[key]
	if !ok {
		return fmt.Errorf("%w: missing %q", ErrMalformedObject, key)
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		return fmt.Errorf("%w: %s: %v", ErrMalformedObject, key, err)
	}
	return nil
}

// nullableFloat reads a number, or NaN for null and the "None"/"nan" strings
// some producers emit.
func nullableFloat(raw json.RawMessage) (float64, error) {
	var v interface{}
	if err := json.Unmarshal(raw, &v); err != nil {
		return 0, err
	}
	switch t := v.(type) {
	case nil:
		return math.NaN(), nil
	case float64:
		return t, nil
	case string:
		switch strings.ToLower(t) {
		case "none", "nan", "":
			return math.NaN(), nil
		}
		return strconv.ParseFloat(t, 64)
	}
	return 0, fmt.Errorf("unexpected value %s", raw)
}

// ReadFile decodes the annotation at path. Filename stays empty when no
// record names the image; callers that know the image fill it in.
func ReadFile(path string, opts Options) (*annotation.Annotation, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	ann, err := Unmarshal(data, opts)
	if err != nil {
		var de *DecodeError
		if errors.As(err, &de) {
			de.File = path
			return nil, de
		}
		return nil, &DecodeError{File: path, Err: err}
	}
	return ann, nil
}

// WriteFile encodes a to path, replacing any existing file in one rename.
func WriteFile(path string, a *annotation.Annotation, opts Options) error {
	data, err := Marshal(a, opts)
	if err != nil {
		return err
	}
	return storage.WriteFile(path, data)
}
