package ply

import (
	"bufio"
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"strconv"
	"strings"

	"tissuemap/internal/models"
)

// Decode parses a merged mesh container. Vertex and face counts must match
// the records present in the body. Face indices are not bounds checked here;
// decomposition rejects out-of-range references.
func Decode(r io.Reader) (*models.Mesh, error) {
	return decode(r, true)
}

// DecodeGeometry parses a container that may lack the tissue tag, such as a
// mesh written by a simplifier. Untagged vertices get tissue id 0.
func DecodeGeometry(r io.Reader) (*models.Mesh, error) {
	return decode(r, false)
}

func decode(r io.Reader, requireTissue bool) (*models.Mesh, error) {
	br := bufio.NewReaderSize(r, 1<<16)

	h, err := readHeader(br, requireTissue)
	if err != nil {
		return nil, err
	}

	m := &models.Mesh{
		Vertices: make([]models.Vertex, 0, min(h.vertexCount, maxPrealloc)),
		Faces:    make([]models.Face, 0, min(h.faceCount, maxPrealloc)),
	}

	var body bodyReader
	if h.format == BinaryLittleEndian {
		body = &binaryBody{r: br, h: h}
	} else {
		body = &textBody{r: br, h: h}
	}

	for _, elem := range h.elements {
		switch elem {
		case elemVertex:
			for i := 0; i < h.vertexCount; i++ {
				v, err := body.vertex()
				if err != nil {
					return nil, bodyErr(fmt.Sprintf("vertex %d", i), err)
				}
				m.Vertices = append(m.Vertices, v)
			}
		case elemFace:
			for i := 0; i < h.faceCount; i++ {
				f, err := body.face()
				if err != nil {
					return nil, bodyErr(fmt.Sprintf("face %d", i), err)
				}
				m.Faces = append(m.Faces, f)
			}
		}
	}

	if err := body.end(); err != nil {
		return nil, err
	}
	return m, nil
}

// DecodeBytes parses a container held in memory
func DecodeBytes(data []byte) (*models.Mesh, error) {
	return Decode(bytes.NewReader(data))
}

// ReadFile decodes the container stored at path
func ReadFile(path string) (*models.Mesh, error) {
	return readFile(path, Decode)
}

// ReadGeometryFile decodes the container at path with DecodeGeometry
func ReadGeometryFile(path string) (*models.Mesh, error) {
	return readFile(path, DecodeGeometry)
}

func readFile(path string, dec func(io.Reader) (*models.Mesh, error)) (*models.Mesh, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open mesh container: %w", err)
	}
	defer file.Close()

	return dec(file)
}

const trailingData = "trailing data after declared records"

func bodyErr(where string, err error) error {
	var fe *FormatError
	if errors.As(err, &fe) {
		fe.Reason = where + ": " + fe.Reason
		return fe
	}
	if err == io.EOF {
		err = io.ErrUnexpectedEOF
	}
	return formatErr(0, where+": truncated body", err)
}

type bodyReader interface {
	vertex() (models.Vertex, error)
	face() (models.Face, error)

	// end fails unless the body is exhausted
	end() error
}

// binaryBody reads packed little-endian records
type binaryBody struct {
	r   *bufio.Reader
	h   *header
	buf [64]byte
	rec []byte
}

func (b *binaryBody) vertex() (models.Vertex, error) {
	if cap(b.rec) < b.h.vertexStride {
		b.rec = make([]byte, b.h.vertexStride)
	}
	rec := b.rec[:b.h.vertexStride]
	if _, err := io.ReadFull(b.r, rec); err != nil {
		return models.Vertex{}, err
	}

	var v models.Vertex
	off := 0
	for i, p := range b.h.vertexProps {
		field := rec[off : off+p.kind.size()]
		off += p.kind.size()
		switch i {
		case b.h.x:
			v.X = float32(decodeScalar(field, p.kind))
		case b.h.y:
			v.Y = float32(decodeScalar(field, p.kind))
		case b.h.z:
			v.Z = float32(decodeScalar(field, p.kind))
		case b.h.tissue:
			v.TissueID = field[0]
		}
	}
	return v, nil
}

func (b *binaryBody) end() error {
	_, err := b.r.Peek(1)
	switch err {
	case io.EOF:
		return nil
	case nil:
		return formatErr(0, trailingData, nil)
	default:
		return formatErr(0, "reading body", err)
	}
}

func (b *binaryBody) face() (models.Face, error) {
	cs := b.h.faceCountKind.size()
	if _, err := io.ReadFull(b.r, b.buf[:cs]); err != nil {
		return models.Face{}, err
	}
	n := decodeScalar(b.buf[:cs], b.h.faceCountKind)
	if n != 3 {
		return models.Face{}, formatErr(0, fmt.Sprintf("face has %v vertices, only triangles are supported", n), nil)
	}

	is := b.h.faceIndexKind.size()
	if _, err := io.ReadFull(b.r, b.buf[:3*is]); err != nil {
		return models.Face{}, err
	}
	var f models.Face
	for k := 0; k < 3; k++ {
		idx, err := toIndex(decodeScalar(b.buf[k*is:(k+1)*is], b.h.faceIndexKind))
		if err != nil {
			return models.Face{}, err
		}
		f[k] = idx
	}
	return f, nil
}

// decodeScalar converts one little-endian field to float64, which holds
// every PLY scalar type used for coordinates and indices exactly
func decodeScalar(b []byte, kind scalarKind) float64 {
	switch kind {
	case kindInt8:
		return float64(int8(b[0]))
	case kindUint8:
		return float64(b[0])
	case kindInt16:
		return float64(int16(binary.LittleEndian.Uint16(b)))
	case kindUint16:
		return float64(binary.LittleEndian.Uint16(b))
	case kindInt32:
		return float64(int32(binary.LittleEndian.Uint32(b)))
	case kindUint32:
		return float64(binary.LittleEndian.Uint32(b))
	case kindFloat32:
		return float64(math.Float32frombits(binary.LittleEndian.Uint32(b)))
	default:
		return math.Float64frombits(binary.LittleEndian.Uint64(b))
	}
}

func toIndex(v float64) (int32, error) {
	if v < math.MinInt32 || v > math.MaxInt32 {
		return 0, formatErr(0, fmt.Sprintf("vertex index %v does not fit in int32", v), nil)
	}
	return int32(v), nil
}

// textBody reads one whitespace separated record per line
type textBody struct {
	r *bufio.Reader
	h *header
}

func (t *textBody) fields() ([]string, error) {
	for {
		line, err := t.r.ReadString('\n')
		if f := strings.Fields(line); len(f) > 0 {
			return f, nil
		}
		if err != nil {
			return nil, err
		}
	}
}

func (t *textBody) vertex() (models.Vertex, error) {
	f, err := t.fields()
	if err != nil {
		return models.Vertex{}, err
	}
	if len(f) < len(t.h.vertexProps) {
		return models.Vertex{}, formatErr(0, fmt.Sprintf("expected %d values, got %d", len(t.h.vertexProps), len(f)), nil)
	}

	var v models.Vertex
	coords := [3]*float32{&v.X, &v.Y, &v.Z}
	for axis, idx := range [3]int{t.h.x, t.h.y, t.h.z} {
		c, err := strconv.ParseFloat(f[idx], 32)
		if err != nil {
			return models.Vertex{}, formatErr(0, "invalid coordinate "+strconv.Quote(f[idx]), err)
		}
		*coords[axis] = float32(c)
	}
	if t.h.tissue < 0 {
		return v, nil
	}
	tid, err := strconv.ParseUint(f[t.h.tissue], 10, 8)
	if err != nil {
		return models.Vertex{}, formatErr(0, "invalid tissue id "+strconv.Quote(f[t.h.tissue]), err)
	}
	v.TissueID = uint8(tid)
	return v, nil
}

func (t *textBody) end() error {
	for {
		line, err := t.r.ReadString('\n')
		if strings.TrimSpace(line) != "" {
			return formatErr(0, trailingData, nil)
		}
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return formatErr(0, "reading body", err)
		}
	}
}

func (t *textBody) face() (models.Face, error) {
	f, err := t.fields()
	if err != nil {
		return models.Face{}, err
	}
	n, err := strconv.Atoi(f[0])
	if err != nil {
		return models.Face{}, formatErr(0, "invalid face vertex count "+strconv.Quote(f[0]), err)
	}
	if n != 3 {
		return models.Face{}, formatErr(0, fmt.Sprintf("face has %d vertices, only triangles are supported", n), nil)
	}
	if len(f) < 4 {
		return models.Face{}, formatErr(0, fmt.Sprintf("expected 3 indices, got %d", len(f)-1), nil)
	}

	var face models.Face
	for k := 0; k < 3; k++ {
		idx, err := strconv.ParseInt(f[k+1], 10, 32)
		if err != nil {
			return models.Face{}, formatErr(0, "invalid vertex index "+strconv.Quote(f[k+1]), err)
		}
		face[k] = int32(idx)
	}
	return face, nil
}
