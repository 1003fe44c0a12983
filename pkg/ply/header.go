// Package ply reads and writes the merged head mesh container: a PLY file
// whose vertices carry an 8-bit tissue tag next to their position.
package ply

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"
)

// Format is the storage mode declared in the header
type Format int

const (
	// BinaryLittleEndian stores records as packed little-endian values
	BinaryLittleEndian Format = iota

	// ASCII stores one whitespace separated record per line
	ASCII
)

// String returns the header spelling of the format
func (f Format) String() string {
	switch f {
	case BinaryLittleEndian:
		return "binary_little_endian"
	case ASCII:
		return "ascii"
	default:
		return fmt.Sprintf("Format(%d)", int(f))
	}
}

const (
	magicLine   = "ply"
	headerEnd   = "end_header"
	elemVertex  = "vertex"
	elemFace    = "face"
	maxHeader   = 1 << 20
	maxPrealloc = 1 << 20
)

// scalarKind is one of the PLY scalar property types
type scalarKind int

const (
	kindInt8 scalarKind = iota
	kindUint8
	kindInt16
	kindUint16
	kindInt32
	kindUint32
	kindFloat32
	kindFloat64
)

var scalarKinds = map[string]scalarKind{
	"char": kindInt8, "int8": kindInt8,
	"uchar": kindUint8, "uint8": kindUint8,
	"short": kindInt16, "int16": kindInt16,
	"ushort": kindUint16, "uint16": kindUint16,
	"int": kindInt32, "int32": kindInt32,
	"uint": kindUint32, "uint32": kindUint32,
	"float": kindFloat32, "float32": kindFloat32,
	"double": kindFloat64, "float64": kindFloat64,
}

func (k scalarKind) size() int {
	switch k {
	case kindInt8, kindUint8:
		return 1
	case kindInt16, kindUint16:
		return 2
	case kindInt32, kindUint32, kindFloat32:
		return 4
	default:
		return 8
	}
}

func (k scalarKind) integer() bool {
	return k != kindFloat32 && k != kindFloat64
}

type property struct {
	name string
	kind scalarKind
}

// header is the parsed textual preamble of a container
type header struct {
	format      Format
	vertexCount int
	faceCount   int

	// elements lists "vertex" and "face" in declaration order
	elements []string

	vertexProps  []property
	vertexStride int
	x, y, z      int
	tissue       int

	faceCountKind scalarKind
	faceIndexKind scalarKind
}

// isTissueProperty reports whether a vertex property name is the tissue tag
func isTissueProperty(name string) bool {
	return name == "tissue_id" || name == "tissueId"
}

// readHeader consumes the header up to and including the end_header line.
// With requireTissue unset a header without the tissue tag is accepted.
func readHeader(r *bufio.Reader, requireTissue bool) (*header, error) {
	h := &header{x: -1, y: -1, z: -1, tissue: -1, faceCount: -1, vertexCount: -1}
	var (
		current    string
		formatSeen bool
		faceList   bool
		read       int
	)

	for lineNo := 1; ; lineNo++ {
		raw, err := r.ReadString('\n')
		read += len(raw)
		if err != nil && (err != io.EOF || raw == "") {
			if err == io.EOF {
				return nil, formatErr(lineNo, "missing "+headerEnd, io.ErrUnexpectedEOF)
			}
			return nil, formatErr(lineNo, "reading header", err)
		}
		if read > maxHeader {
			return nil, formatErr(lineNo, "header too large, missing "+headerEnd, nil)
		}
		line := strings.TrimRight(raw, "\r\n")
		fields := strings.Fields(line)

		if lineNo == 1 {
			if line != magicLine {
				return nil, formatErr(lineNo, "missing ply magic line", nil)
			}
			continue
		}
		if len(fields) == 0 {
			if err == io.EOF {
				return nil, formatErr(lineNo, "missing "+headerEnd, io.ErrUnexpectedEOF)
			}
			continue
		}

		switch fields[0] {
		case headerEnd:
			if err := h.validate(formatSeen, faceList, requireTissue); err != nil {
				return nil, formatErr(lineNo, err.Error(), nil)
			}
			return h, nil

		case "comment", "obj_info":

		case "format":
			if len(fields) < 2 {
				return nil, formatErr(lineNo, "malformed format line", nil)
			}
			switch fields[1] {
			case "binary_little_endian":
				h.format = BinaryLittleEndian
			case "ascii":
				h.format = ASCII
			default:
				return nil, formatErr(lineNo, "unsupported format "+fields[1], nil)
			}
			formatSeen = true

		case "element":
			if len(fields) != 3 {
				return nil, formatErr(lineNo, "malformed element line", nil)
			}
			n, convErr := strconv.Atoi(fields[2])
			if convErr != nil || n < 0 {
				return nil, formatErr(lineNo, fmt.Sprintf("invalid %s count %q", fields[1], fields[2]), convErr)
			}
			switch fields[1] {
			case elemVertex:
				h.vertexCount = n
			case elemFace:
				h.faceCount = n
			default:
				return nil, formatErr(lineNo, "unsupported element "+fields[1], nil)
			}
			current = fields[1]
			h.elements = append(h.elements, current)

		case "property":
			if err := h.addProperty(current, fields, &faceList); err != nil {
				return nil, formatErr(lineNo, err.Error(), nil)
			}

		default:
			return nil, formatErr(lineNo, "unexpected header keyword "+fields[0], nil)
		}

		if err == io.EOF {
			return nil, formatErr(lineNo, "missing "+headerEnd, io.ErrUnexpectedEOF)
		}
	}
}

func (h *header) addProperty(element string, fields []string, faceList *bool) error {
	switch element {
	case elemVertex:
		if len(fields) != 3 {
			return fmt.Errorf("malformed vertex property line")
		}
		kind, ok := scalarKinds[fields[1]]
		if !ok {
			return fmt.Errorf("unknown property type %s", fields[1])
		}
		idx := len(h.vertexProps)
		switch name := fields[2]; {
		case name == "x":
			h.x = idx
		case name == "y":
			h.y = idx
		case name == "z":
			h.z = idx
		case isTissueProperty(name):
			if kind != kindUint8 {
				return fmt.Errorf("property %s must be uchar, got %s", name, fields[1])
			}
			h.tissue = idx
		}
		h.vertexProps = append(h.vertexProps, property{name: fields[2], kind: kind})
		h.vertexStride += kind.size()

	case elemFace:
		if len(fields) != 5 || fields[1] != "list" {
			return fmt.Errorf("face element must declare a single list property")
		}
		if *faceList {
			return fmt.Errorf("face element declares more than one property")
		}
		countKind, ok1 := scalarKinds[fields[2]]
		indexKind, ok2 := scalarKinds[fields[3]]
		if !ok1 || !ok2 || !countKind.integer() || !indexKind.integer() {
			return fmt.Errorf("face list types must be integers, got %s %s", fields[2], fields[3])
		}
		h.faceCountKind = countKind
		h.faceIndexKind = indexKind
		*faceList = true

	default:
		return fmt.Errorf("property declared outside of an element")
	}
	return nil
}

func (h *header) validate(formatSeen, faceList, requireTissue bool) error {
	switch {
	case !formatSeen:
		return fmt.Errorf("missing format line")
	case h.vertexCount < 0:
		return fmt.Errorf("missing vertex element")
	case h.faceCount < 0:
		return fmt.Errorf("missing face element")
	case h.x < 0 || h.y < 0 || h.z < 0:
		return fmt.Errorf("vertex element lacks x, y or z")
	case h.tissue < 0 && requireTissue:
		return fmt.Errorf("vertex element lacks the tissue_id property")
	case !faceList:
		return fmt.Errorf("face element lacks a vertex index list")
	}
	return nil
}
