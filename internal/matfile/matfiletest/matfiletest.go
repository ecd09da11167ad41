// Package matfiletest writes small Level 5 MAT-files for tests.
package matfiletest

import (
	"bytes"
	"compress/zlib"
	"encoding/binary"
	"io"
	"math"
	"unicode/utf16"
)

const (
	miINT8       = 1
	miUINT16     = 4
	miINT32      = 5
	miUINT32     = 6
	miDOUBLE     = 9
	miMATRIX     = 14
	miCOMPRESSED = 15

	classCell   = 1
	classStruct = 2
	classChar   = 4
	classDouble = 6

	fieldNameLen = 32
)

// Matrix is an array to be written.
type Matrix struct {
	class  uint32
	dims   []int
	values []float64
	text   string
	cells  []*Matrix
	fields []string
	elems  [][]*Matrix
}

// Doubles is a 1xN double row vector.
func Doubles(vals ...float64) *Matrix {
	return &Matrix{class: classDouble, dims: []int{1, len(vals)}, values: vals}
}

// DoubleMatrix is a rows x cols double array given in column-major order.
func DoubleMatrix(rows, cols int, colMajor ...float64) *Matrix {
	return &Matrix{class: classDouble, dims: []int{rows, cols}, values: colMajor}
}

// Empty is a 0x0 double, the value scipy writes for [].
func Empty() *Matrix {
	return &Matrix{class: classDouble, dims: []int{0, 0}}
}

// Char is a 1xN char row.
func Char(s string) *Matrix {
	return &Matrix{class: classChar, dims: []int{1, len(utf16.Encode([]rune(s)))}, text: s}
}

// CellRow is a 1xN cell array.
func CellRow(elems ...*Matrix) *Matrix {
	return &Matrix{class: classCell, dims: []int{1, len(elems)}, cells: elems}
}

// Struct is a 1x1 struct with the given fields, in order.
func Struct(fields []string, values ...*Matrix) *Matrix {
	return &Matrix{class: classStruct, dims: []int{1, 1}, fields: fields, elems: [][]*Matrix{values}}
}

// WithDims overrides the dimensions written for m, for corrupt fixtures.
func WithDims(m *Matrix, dims ...int) *Matrix {
	m.dims = dims
	return m
}

// Var names a top-level variable.
type Var struct {
	Name  string
	Value *Matrix
}

// Options controls the file layout.
type Options struct {
	Compress  bool
	BigEndian bool
}

// Write emits a MAT-file holding vars.
func Write(w io.Writer, opts Options, vars ...Var) error {
	e := &encoder{order: binary.LittleEndian}
	endian := "IM"
	if opts.BigEndian {
		e.order = binary.BigEndian
		endian = "MI"
	}

	hdr := make([]byte, 128)
	copy(hdr, bytes.Repeat([]byte(" "), 116))
	copy(hdr, "MATLAB 5.0 MAT-file, written by matfiletest")
	e.order.PutUint16(hdr[124:], 0x0100)
	copy(hdr[126:], endian)
	if _, err := w.Write(hdr); err != nil {
		return err
	}

	for _, v := range vars {
		var elem bytes.Buffer
		e.element(&elem, miMATRIX, e.matrix(v.Name, v.Value))
		if !opts.Compress {
			if _, err := w.Write(elem.Bytes()); err != nil {
				return err
			}
			continue
		}

		var z bytes.Buffer
		zw := zlib.NewWriter(&z)
		if _, err := zw.Write(elem.Bytes()); err != nil {
			return err
		}
		if err := zw.Close(); err != nil {
			return err
		}
		var tag [8]byte
		e.order.PutUint32(tag[:4], miCOMPRESSED)
		e.order.PutUint32(tag[4:], uint32(z.Len()))
		if _, err := w.Write(tag[:]); err != nil {
			return err
		}
		if _, err := w.Write(z.Bytes()); err != nil {
			return err
		}
	}
	return nil
}

type encoder struct {
	order binary.ByteOrder
}

func (e *encoder) element(buf *bytes.Buffer, typ uint32, data []byte) {
	var word [4]byte
	if len(data) > 0 && len(data) <= 4 && typ != miMATRIX {
		e.order.PutUint32(word[:], typ|uint32(len(data))<<16)
		buf.Write(word[:])
		buf.Write(data)
		buf.Write(make([]byte, 4-len(data)))
		return
	}
	e.order.PutUint32(word[:], typ)
	buf.Write(word[:])
	e.order.PutUint32(word[:], uint32(len(data)))
	buf.Write(word[:])
	buf.Write(data)
	if pad := (8 - len(data)%8) % 8; pad > 0 {
		buf.Write(make([]byte, pad))
	}
}

func (e *encoder) matrix(name string, m *Matrix) []byte {
	var buf bytes.Buffer

	flags := make([]byte, 8)
	e.order.PutUint32(flags, m.class)
	e.element(&buf, miUINT32, flags)

	dims := make([]byte, 4*len(m.dims))
	for i, d := range m.dims {
		e.order.PutUint32(dims[4*i:], uint32(d))
	}
	e.element(&buf, miINT32, dims)
	e.element(&buf, miINT8, []byte(name))

	switch m.class {
	case classDouble:
		data := make([]byte, 8*len(m.values))
		for i, v := range m.values {
			e.order.PutUint64(data[8*i:], math.Float64bits(v))
		}
		e.element(&buf, miDOUBLE, data)
	case classChar:
		units := utf16.Encode([]rune(m.text))
		data := make([]byte, 2*len(units))
		for i, u := range units {
			e.order.PutUint16(data[2*i:], u)
		}
		e.element(&buf, miUINT16, data)
	case classCell:
		for _, c := range m.cells {
			e.element(&buf, miMATRIX, e.matrix("", c))
		}
	case classStruct:
		l := make([]byte, 4)
		e.order.PutUint32(l, fieldNameLen)
		e.element(&buf, miINT32, l)
		names := make([]byte, fieldNameLen*len(m.fields))
		for i, f := range m.fields {
			copy(names[i*fieldNameLen:(i+1)*fieldNameLen-1], f)
		}
		e.element(&buf, miINT8, names)
		for _, elem := range m.elems {
			for _, v := range elem {
				e.element(&buf, miMATRIX, e.matrix("", v))
			}
		}
	}
	return buf.Bytes()
}
