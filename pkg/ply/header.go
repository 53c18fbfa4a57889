// Package ply imports binary little-endian PLY point clouds, such as those
// written by Gaussian splat training pipelines, into splat buffers.
package ply

import (
	"bufio"
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	gomath "math"
	"strconv"
	"strings"
)

// MaxHeaderSize bounds the header scan.
const MaxHeaderSize = 64 << 10

// Header errors.
var (
	ErrMissingMagic        = errors.New("ply: missing magic")
	ErrUnsupportedFormat   = errors.New("ply: unsupported format")
	ErrHeaderTooLarge      = errors.New("ply: header exceeds size limit")
	ErrMissingEndHeader    = errors.New("ply: missing end_header")
	ErrInvalidHeader       = errors.New("ply: invalid header")
	ErrNoVertexElement     = errors.New("ply: no vertex element")
	ErrListProperty        = errors.New("ply: list properties are not supported")
	ErrUnknownPropertyType = errors.New("ply: unknown property type")
)

// PropertyType is a scalar PLY property type.
type PropertyType int

const (
	Int8 PropertyType = iota
	Uint8
	Int16
	Uint16
	Int32
	Uint32
	Float32
	Float64
)

var propertyTypeNames = map[string]PropertyType{
	"char": Int8, "int8": Int8,
	"uchar": Uint8, "uint8": Uint8,
	"short": Int16, "int16": Int16,
	"ushort": Uint16, "uint16": Uint16,
	"int": Int32, "int32": Int32,
	"uint": Uint32, "uint32": Uint32,
	"float": Float32, "float32": Float32,
	"double": Float64, "float64": Float64,
}

// Size returns the encoded width in bytes.
func (t PropertyType) Size() int {
	switch t {
	case Int8, Uint8:
		return 1
	case Int16, Uint16:
		return 2
	case Int32, Uint32, Float32:
		return 4
	default:
		return 8
	}
}

// Property is one scalar column of the vertex element.
type Property struct {
	Name   string
	Type   PropertyType
	Offset int // byte offset within a row
}

// value decodes the property from a row.
func (p Property) value(row []byte) float64 {
	b := row[p.Offset:]
	le := binary.LittleEndian
	switch p.Type {
	case Int8:
		return float64(int8(b[0]))
	case Uint8:
		return float64(b[0])
	case Int16:
		return float64(int16(le.Uint16(b)))
	case Uint16:
		return float64(le.Uint16(b))
	case Int32:
		return float64(int32(le.Uint32(b)))
	case Uint32:
		return float64(le.Uint32(b))
	case Float32:
		return float64(gomath.Float32frombits(le.Uint32(b)))
	default:
		return gomath.Float64frombits(le.Uint64(b))
	}
}

// Header describes the vertex element of a PLY file.
type Header struct {
	VertexCount int
	Properties  []Property
	RowSize     int
	// DataOffset is the byte offset of the first vertex row.
	DataOffset int
}

// Property returns the named vertex property.
func (h *Header) Property(name string) (Property, bool) {
	for _, p := range h.Properties {
		if p.Name == name {
			return p, true
		}
	}
	return Property{}, false
}

type element struct {
	name    string
	count   int
	rowSize int
	hasList bool
}

// ParseHeader decodes the header at the start of data.
func ParseHeader(data []byte) (*Header, error) {
	if !bytes.HasPrefix(data, []byte("ply")) {
		return nil, ErrMissingMagic
	}

	limit := min(len(data), MaxHeaderSize)
	end := bytes.Index(data[:limit], []byte("end_header"))
	if end < 0 {
		if len(data) > MaxHeaderSize {
			return nil, fmt.Errorf("%w: no end_header in first %d bytes", ErrHeaderTooLarge, MaxHeaderSize)
		}
		return nil, ErrMissingEndHeader
	}
	bodyOffset := end + len("end_header")
	switch {
	case bytes.HasPrefix(data[bodyOffset:], []byte("\r\n")):
		bodyOffset += 2
	case bytes.HasPrefix(data[bodyOffset:], []byte("\n")):
		bodyOffset++
	}

	var (
		elements []element
		vertex   = -1
		format   string
		h        = &Header{}
	)
	sc := bufio.NewScanner(bytes.NewReader(data[:end]))
	sc.Buffer(make([]byte, 0, 4096), MaxHeaderSize)
	line := 0
	for sc.Scan() {
		line++
		fields := strings.Fields(sc.Text())
		if len(fields) == 0 {
			continue
		}
		switch fields[0] {
		case "ply", "comment", "obj_info":
		case "format":
			if len(fields) < 3 {
				return nil, fmt.Errorf("%w: line %d: malformed format", ErrInvalidHeader, line)
			}
			format = fields[1]
			if format != "binary_little_endian" {
				return nil, fmt.Errorf("%w: %s", ErrUnsupportedFormat, format)
			}
		case "element":
			if len(fields) != 3 {
				return nil, fmt.Errorf("%w: line %d: malformed element", ErrInvalidHeader, line)
			}
			n, err := strconv.Atoi(fields[2])
			if err != nil || n < 0 {
				return nil, fmt.Errorf("%w: line %d: element count %q", ErrInvalidHeader, line, fields[2])
			}
			elements = append(elements, element{name: fields[1], count: n})
			if fields[1] == "vertex" && vertex < 0 {
				vertex = len(elements) - 1
				h.VertexCount = n
			}
		case "property":
			if len(elements) == 0 {
				return nil, fmt.Errorf("%w: line %d: property outside element", ErrInvalidHeader, line)
			}
			el := &elements[len(elements)-1]
			if len(fields) >= 2 && fields[1] == "list" {
				if len(elements)-1 == vertex {
					return nil, fmt.Errorf("%w: vertex property %q", ErrListProperty, fields[len(fields)-1])
				}
				el.hasList = true
				continue
			}
			if len(fields) != 3 {
				return nil, fmt.Errorf("%w: line %d: malformed property", ErrInvalidHeader, line)
			}
			typ, ok := propertyTypeNames[fields[1]]
			if !ok {
				return nil, fmt.Errorf("%w: %q", ErrUnknownPropertyType, fields[1])
			}
			if len(elements)-1 == vertex {
				h.Properties = append(h.Properties, Property{Name: fields[2], Type: typ, Offset: el.rowSize})
			}
			el.rowSize += typ.Size()
		default:
			return nil, fmt.Errorf("%w: line %d: unknown keyword %q", ErrInvalidHeader, line, fields[0])
		}
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidHeader, err)
	}
	if format == "" {
		return nil, fmt.Errorf("%w: missing format line", ErrInvalidHeader)
	}
	if vertex < 0 {
		return nil, ErrNoVertexElement
	}

	// Elements stored before the vertex element must have a fixed row size
	// for the vertex rows to be located.
	h.DataOffset = bodyOffset
	for _, el := range elements[:vertex] {
		if el.hasList {
			return nil, fmt.Errorf("%w: element %q precedes vertex data", ErrListProperty, el.name)
		}
		if el.rowSize > 0 && el.count > (len(data)-h.DataOffset)/el.rowSize {
			return nil, fmt.Errorf("%w: element %q: %d rows of %d bytes exceed the %d bytes left",
				ErrTruncatedData, el.name, el.count, el.rowSize, len(data)-h.DataOffset)
		}
		h.DataOffset += el.count * el.rowSize
	}
	h.RowSize = elements[vertex].rowSize
	return h, nil
}
