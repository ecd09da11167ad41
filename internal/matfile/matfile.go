// Package matfile reads MATLAB Level 5 MAT-files (the format written by
// MATLAB's save with -v6 or -v7, and by scipy.io.savemat).
//
// Numeric, char, cell and struct arrays are decoded; compressed (miCOMPRESSED)
// variables are inflated transparently. Sparse arrays are recognised but carry
// no data. Version 7.3 files are HDF5 containers and are rejected.
package matfile

import (
	"errors"
	"fmt"
	"os"
	"strings"
)

var (
	// ErrNotMAT is returned when the 128-byte header is missing or malformed.
	ErrNotMAT = errors.New("not a level 5 MAT-file")
	// ErrUnsupported is returned for MAT-file features outside the Level 5 subset.
	ErrUnsupported = errors.New("unsupported MAT-file content")
)

// Class is the MATLAB array class stored in the array flags.
type Class uint8

const (
	ClassCell   Class = 1
	ClassStruct Class = 2
	ClassObject Class = 3
	ClassChar   Class = 4
	ClassSparse Class = 5
	ClassDouble Class = 6
	ClassSingle Class = 7
	ClassInt8   Class = 8
	ClassUint8  Class = 9
	ClassInt16  Class = 10
	ClassUint16 Class = 11
	ClassInt32  Class = 12
	ClassUint32 Class = 13
	ClassInt64  Class = 14
	ClassUint64 Class = 15
)

func (c Class) numeric() bool {
	return c >= ClassDouble && c <= ClassUint64
}

func (c Class) String() string {
	names := map[Class]string{
		ClassCell: "cell", ClassStruct: "struct", ClassObject: "object",
		ClassChar: "char", ClassSparse: "sparse", ClassDouble: "double",
		ClassSingle: "single", ClassInt8: "int8", ClassUint8: "uint8",
		ClassInt16: "int16", ClassUint16: "uint16", ClassInt32: "int32",
		ClassUint32: "uint32", ClassInt64: "int64", ClassUint64: "uint64",
	}
	if name, ok := names[c]; ok {
		return name
	}
	return fmt.Sprintf("class(%d)", uint8(c))
}

// File is a decoded MAT-file.
type File struct {
	Header    string
	Variables []*Array
}

// Open reads and decodes the MAT-file at path.
func Open(path string) (*File, error) {
	fh, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer fh.Close()

	f, err := Decode(fh)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return f, nil
}

// Variable returns the top-level variable with the given name.
func (f *File) Variable(name string) (*Array, error) {
	for _, v := range f.Variables {
		if v.Name == name {
			return v, nil
		}
	}
	return nil, fmt.Errorf("variable %q not found", name)
}

// Array is one MATLAB array. Which accessor is valid depends on Class.
type Array struct {
	Name    string
	Class   Class
	Dims    []int
	Logical bool
	Complex bool

	real       []float64
	chars      []rune
	cells      []*Array
	fieldNames []string
	structs    [][]*Array // [element][field]
}

// Len is the number of elements (product of dims).
func (a *Array) Len() int {
	if len(a.Dims) == 0 {
		return 0
	}
	n := 1
	for _, d := range a.Dims {
		n *= d
	}
	return n
}

// Float64s returns numeric data in MATLAB's column-major order.
func (a *Array) Float64s() ([]float64, error) {
	if !a.Class.numeric() {
		return nil, fmt.Errorf("%q is %s, not numeric", a.Name, a.Class)
	}
	return a.real, nil
}

// RowMajor returns numeric data of a 2-D array row by row.
func (a *Array) RowMajor() ([]float64, error) {
	vals, err := a.Float64s()
	if err != nil {
		return nil, err
	}
	if len(a.Dims) != 2 || a.Dims[0] <= 1 {
		return vals, nil
	}
	rows, cols := a.Dims[0], a.Dims[1]
	out := make([]float64, 0, len(vals))
	for r := 0; r < rows; r++ {
		for c := 0; c < cols; c++ {
			out = append(out, vals[c*rows+r])
		}
	}
	return out, nil
}

// String returns a char array's text. Multi-row char arrays are joined with
// newlines, each row right-trimmed of padding blanks.
func (a *Array) String() string {
	if a.Class != ClassChar {
		return ""
	}
	if len(a.Dims) != 2 || a.Dims[0] <= 1 {
		return string(a.chars)
	}
	rows, cols := a.Dims[0], a.Dims[1]
	lines := make([]string, rows)
	for r := 0; r < rows; r++ {
		line := make([]rune, 0, cols)
		for c := 0; c < cols; c++ {
			line = append(line, a.chars[c*rows+r])
		}
		lines[r] = strings.TrimRight(string(line), " ")
	}
	return strings.Join(lines, "\n")
}

// Cells returns the elements of a cell array in column-major order.
func (a *Array) Cells() ([]*Array, error) {
	if a.Class != ClassCell {
		return nil, fmt.Errorf("%q is %s, not cell", a.Name, a.Class)
	}
	return a.cells, nil
}

// FieldNames lists a struct array's fields.
func (a *Array) FieldNames() []string { return a.fieldNames }

// Field returns a field of the first struct element.
func (a *Array) Field(name string) (*Array, error) {
	return a.FieldAt(0, name)
}

// FieldAt returns a field of the i-th struct element.
func (a *Array) FieldAt(i int, name string) (*Array, error) {
	if a.Class != ClassStruct && a.Class != ClassObject {
		return nil, fmt.Errorf("%q is %s, not struct", a.Name, a.Class)
	}
	if i < 0 || i >= len(a.structs) {
		return nil, fmt.Errorf("struct %q has no element %d", a.Name, i)
	}
	for j, fn := range a.fieldNames {
		if fn == name {
			return a.structs[i][j], nil
		}
	}
	return nil, fmt.Errorf("struct %q has no field %q", a.Name, name)
}
