package matfile

import (
	"bufio"
	"bytes"
	"compress/zlib"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"
	"strings"
	"unicode/utf16"
)

const headerLen = 128

// Data element types.
const (
	miINT8       uint32 = 1
	miUINT8      uint32 = 2
	miINT16      uint32 = 3
	miUINT16     uint32 = 4
	miINT32      uint32 = 5
	miUINT32     uint32 = 6
	miSINGLE     uint32 = 7
	miDOUBLE     uint32 = 9
	miINT64      uint32 = 12
	miUINT64     uint32 = 13
	miMATRIX     uint32 = 14
	miCOMPRESSED uint32 = 15
	miUTF8       uint32 = 16
	miUTF16      uint32 = 17
	miUTF32      uint32 = 18
)

const (
	flagComplex = 0x08
	flagLogical = 0x02
)

type decoder struct {
	order binary.ByteOrder
}

// Decode reads a MAT-file from r.
func Decode(r io.Reader) (*File, error) {
	br := bufio.NewReader(r)

	hdr := make([]byte, headerLen)
	if _, err := io.ReadFull(br, hdr); err != nil {
		return nil, fmt.Errorf("%w: short header: %v", ErrNotMAT, err)
	}
	text := strings.TrimRight(string(hdr[:116]), " \x00")
	if strings.HasPrefix(text, "MATLAB 7.3") {
		return nil, fmt.Errorf("%w: version 7.3 (HDF5) files", ErrUnsupported)
	}

	d := &decoder{}
	switch string(hdr[126:128]) {
	case "IM":
		d.order = binary.LittleEndian
	case "MI":
		d.order = binary.BigEndian
	default:
		return nil, fmt.Errorf("%w: bad endian indicator %q", ErrNotMAT, hdr[126:128])
	}
	if v := d.order.Uint16(hdr[124:126]); v != 0x0100 {
		return nil, fmt.Errorf("%w: version 0x%04x", ErrNotMAT, v)
	}

	f := &File{Header: text}
	if err := d.readVariables(br, f); err != nil {
		return nil, err
	}
	return f, nil
}

func (d *decoder) readVariables(r io.Reader, f *File) error {
	for {
		typ, data, err := d.readElement(r)
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return err
		}

		switch typ {
		case miMATRIX:
			arr, err := d.parseMatrix(data)
			if err != nil {
				return err
			}
			f.Variables = append(f.Variables, arr)
		case miCOMPRESSED:
			zr, err := zlib.NewReader(bytes.NewReader(data))
			if err != nil {
				return fmt.Errorf("inflate variable: %w", err)
			}
			inflated, err := io.ReadAll(zr)
			zr.Close()
			if err != nil {
				return fmt.Errorf("inflate variable: %w", err)
			}
			if err := d.readVariables(bytes.NewReader(inflated), f); err != nil {
				return err
			}
		default:
			// Top-level elements other than arrays carry nothing we expose.
		}
	}
}

// readElement reads one tagged data element, consuming its padding.
// io.EOF is returned only when r is exhausted before a tag starts.
func (d *decoder) readElement(r io.Reader) (uint32, []byte, error) {
	var tag [8]byte
	if _, err := io.ReadFull(r, tag[:4]); err != nil {
		if err == io.EOF {
			return 0, nil, io.EOF
		}
		return 0, nil, fmt.Errorf("%w: read tag: %v", ErrNotMAT, err)
	}

	first := d.order.Uint32(tag[:4])
	if small := first >> 16; small != 0 {
		// Small data element format: type and size share the first word.
		if _, err := io.ReadFull(r, tag[4:]); err != nil {
			return 0, nil, fmt.Errorf("%w: read small element: %v", ErrNotMAT, err)
		}
		if small > 4 {
			return 0, nil, fmt.Errorf("%w: small element size %d exceeds 4 bytes", ErrNotMAT, small)
		}
		return first & 0xffff, append([]byte(nil), tag[4:4+small]...), nil
	}

	if _, err := io.ReadFull(r, tag[4:]); err != nil {
		return 0, nil, fmt.Errorf("%w: read tag size: %v", ErrNotMAT, err)
	}
	typ := first
	size := d.order.Uint32(tag[4:])

	data, err := readBody(r, size)
	if err != nil {
		return 0, nil, err
	}

	if typ != miCOMPRESSED {
		if pad := (8 - size%8) % 8; pad > 0 {
			if _, err := io.CopyN(io.Discard, r, int64(pad)); err != nil && !errors.Is(err, io.EOF) {
				return 0, nil, fmt.Errorf("skip padding: %w", err)
			}
		}
	}
	return typ, data, nil
}

// readBody reads an element body of size bytes. Inside a parent element the
// size is checked against the bytes left; on the file stream the body is read
// incrementally so a corrupt size cannot force a large allocation.
func readBody(r io.Reader, size uint32) ([]byte, error) {
	if br, ok := r.(*bytes.Reader); ok {
		if int64(size) > int64(br.Len()) {
			return nil, fmt.Errorf("%w: element of %d bytes overruns its parent (%d left)", ErrNotMAT, size, br.Len())
		}
		data := make([]byte, size)
		if _, err := io.ReadFull(br, data); err != nil {
			return nil, fmt.Errorf("%w: read element: %v", ErrNotMAT, err)
		}
		return data, nil
	}

	data, err := io.ReadAll(io.LimitReader(r, int64(size)))
	if err != nil {
		return nil, fmt.Errorf("read element of %d bytes: %w", size, err)
	}
	if uint32(len(data)) != size {
		return nil, fmt.Errorf("%w: element of %d bytes truncated at %d", ErrNotMAT, size, len(data))
	}
	return data, nil
}

func (d *decoder) parseMatrix(data []byte) (*Array, error) {
	arr := &Array{}
	if len(data) == 0 {
		// Empty cell elements are written as zero-length matrices.
		arr.Class = ClassDouble
		arr.Dims = []int{0, 0}
		return arr, nil
	}
	r := bytes.NewReader(data)

	typ, flags, err := d.readElement(r)
	if err != nil {
		return nil, fmt.Errorf("array flags: %w", err)
	}
	if typ != miUINT32 || len(flags) < 8 {
		return nil, fmt.Errorf("array flags: unexpected element type %d", typ)
	}
	word := d.order.Uint32(flags[:4])
	arr.Class = Class(word & 0xff)
	bits := (word >> 8) & 0xff
	arr.Complex = bits&flagComplex != 0
	arr.Logical = bits&flagLogical != 0

	typ, dims, err := d.readElement(r)
	if err != nil {
		return nil, fmt.Errorf("dimensions: %w", err)
	}
	dimVals, err := d.numbers(typ, dims)
	if err != nil {
		return nil, fmt.Errorf("dimensions: %w", err)
	}
	total := 1
	for _, v := range dimVals {
		if v < 0 || v > math.MaxInt32 || v != math.Trunc(v) {
			return nil, fmt.Errorf("%w: dimension %v", ErrNotMAT, v)
		}
		if v > 0 && total > math.MaxInt32/int(v) {
			return nil, fmt.Errorf("%w: dimensions %v overflow", ErrNotMAT, dimVals)
		}
		total *= int(v)
		arr.Dims = append(arr.Dims, int(v))
	}

	_, name, err := d.readElement(r)
	if err != nil {
		return nil, fmt.Errorf("array name: %w", err)
	}
	arr.Name = string(name)

	switch {
	case arr.Class == ClassCell:
		err = d.parseCell(r, arr)
	case arr.Class == ClassStruct:
		err = d.parseStruct(r, arr)
	case arr.Class == ClassObject:
		if _, _, err = d.readElement(r); err == nil {
			err = d.parseStruct(r, arr)
		}
	case arr.Class == ClassChar:
		err = d.parseChar(r, arr)
	case arr.Class == ClassSparse:
		// Row/column indices and values are not exposed.
	case arr.Class.numeric():
		err = d.parseNumeric(r, arr)
	default:
		err = fmt.Errorf("%w: array class %d", ErrUnsupported, arr.Class)
	}
	if err != nil {
		return nil, fmt.Errorf("array %q: %w", arr.Name, err)
	}
	return arr, nil
}

// elementTagLen is the smallest encoding of a nested matrix.
const elementTagLen = 8

func (d *decoder) parseCell(r *bytes.Reader, arr *Array) error {
	n := arr.Len()
	if n > r.Len()/elementTagLen {
		return fmt.Errorf("%w: %d cells in %d bytes", ErrNotMAT, n, r.Len())
	}
	arr.cells = make([]*Array, 0, n)
	for i := 0; i < n; i++ {
		typ, data, err := d.readElement(r)
		if err != nil {
			return fmt.Errorf("cell %d: %w", i, err)
		}
		if typ != miMATRIX {
			return fmt.Errorf("cell %d: element type %d is not a matrix", i, typ)
		}
		cell, err := d.parseMatrix(data)
		if err != nil {
			return fmt.Errorf("cell %d: %w", i, err)
		}
		arr.cells = append(arr.cells, cell)
	}
	return nil
}

func (d *decoder) parseStruct(r *bytes.Reader, arr *Array) error {
	typ, data, err := d.readElement(r)
	if err != nil {
		return fmt.Errorf("field name length: %w", err)
	}
	lens, err := d.numbers(typ, data)
	if err != nil || len(lens) != 1 || lens[0] <= 0 {
		return fmt.Errorf("field name length: bad element")
	}
	nameLen := int(lens[0])

	_, names, err := d.readElement(r)
	if err != nil {
		return fmt.Errorf("field names: %w", err)
	}
	for i := 0; i+nameLen <= len(names); i += nameLen {
		raw := names[i : i+nameLen]
		if j := bytes.IndexByte(raw, 0); j >= 0 {
			raw = raw[:j]
		}
		arr.fieldNames = append(arr.fieldNames, string(raw))
	}

	n := arr.Len()
	if len(arr.fieldNames) == 0 {
		return nil
	}
	if n > r.Len()/(elementTagLen*len(arr.fieldNames)) {
		return fmt.Errorf("%w: %d struct elements of %d fields in %d bytes", ErrNotMAT, n, len(arr.fieldNames), r.Len())
	}
	arr.structs = make([][]*Array, n)
	for i := 0; i < n; i++ {
		arr.structs[i] = make([]*Array, len(arr.fieldNames))
		for j, fn := range arr.fieldNames {
			typ, data, err := d.readElement(r)
			if err != nil {
				return fmt.Errorf("field %q[%d]: %w", fn, i, err)
			}
			if typ != miMATRIX {
				return fmt.Errorf("field %q[%d]: element type %d is not a matrix", fn, i, typ)
			}
			val, err := d.parseMatrix(data)
			if err != nil {
				return fmt.Errorf("field %q[%d]: %w", fn, i, err)
			}
			val.Name = fn
			arr.structs[i][j] = val
		}
	}
	return nil
}

func (d *decoder) parseChar(r io.Reader, arr *Array) error {
	typ, data, err := d.readElement(r)
	if err == io.EOF {
		return nil
	}
	if err != nil {
		return err
	}

	switch typ {
	case miUTF8:
		arr.chars = []rune(string(data))
	case miUINT16, miUTF16:
		units := make([]uint16, len(data)/2)
		for i := range units {
			units[i] = d.order.Uint16(data[2*i:])
		}
		arr.chars = utf16.Decode(units)
	case miINT8, miUINT8:
		arr.chars = make([]rune, len(data))
		for i, b := range data {
			arr.chars[i] = rune(b)
		}
	case miUTF32, miUINT32, miINT32:
		arr.chars = make([]rune, len(data)/4)
		for i := range arr.chars {
			arr.chars[i] = rune(d.order.Uint32(data[4*i:]))
		}
	default:
		return fmt.Errorf("char data in element type %d", typ)
	}
	return nil
}

func (d *decoder) parseNumeric(r io.Reader, arr *Array) error {
	typ, data, err := d.readElement(r)
	if err == io.EOF {
		return nil
	}
	if err != nil {
		return err
	}
	arr.real, err = d.numbers(typ, data)
	if err != nil {
		return err
	}
	if arr.Complex {
		// The imaginary part follows; it is read to validate the stream and dropped.
		if _, _, err := d.readElement(r); err != nil && err != io.EOF {
			return fmt.Errorf("imaginary part: %w", err)
		}
	}
	return nil
}

// numbers widens any numeric element type to float64.
// MATLAB stores double-class data in the smallest type that holds it exactly.
func (d *decoder) numbers(typ uint32, data []byte) ([]float64, error) {
	var size int
	switch typ {
	case miINT8, miUINT8:
		size = 1
	case miINT16, miUINT16:
		size = 2
	case miINT32, miUINT32, miSINGLE:
		size = 4
	case miDOUBLE, miINT64, miUINT64:
		size = 8
	default:
		return nil, fmt.Errorf("element type %d is not numeric", typ)
	}
	if len(data)%size != 0 {
		return nil, fmt.Errorf("element of %d bytes is not a multiple of %d", len(data), size)
	}

	out := make([]float64, len(data)/size)
	for i := range out {
		b := data[i*size:]
		switch typ {
		case miINT8:
			out[i] = float64(int8(b[0]))
		case miUINT8:
			out[i] = float64(b[0])
		case miINT16:
			out[i] = float64(int16(d.order.Uint16(b)))
		case miUINT16:
			out[i] = float64(d.order.Uint16(b))
		case miINT32:
			out[i] = float64(int32(d.order.Uint32(b)))
		case miUINT32:
			out[i] = float64(d.order.Uint32(b))
		case miSINGLE:
			out[i] = float64(math.Float32frombits(d.order.Uint32(b)))
		case miDOUBLE:
			out[i] = math.Float64frombits(d.order.Uint64(b))
		case miINT64:
			out[i] = float64(int64(d.order.Uint64(b)))
		case miUINT64:
			out[i] = float64(d.order.Uint64(b))
		}
	}
	return out, nil
}
