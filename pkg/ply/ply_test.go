package ply

import (
	"bytes"
	"encoding/binary"
	"errors"
	"io"
	"math"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tissuemap/internal/models"
)

const triangleHeader = "ply\n" +
	"format binary_little_endian 1.0\n" +
	"comment test container\n" +
	"element vertex 3\n" +
	"property float x\n" +
	"property float y\n" +
	"property float z\n" +
	"property uchar tissue_id\n" +
	"element face 1\n" +
	"property list uchar int vertex_indices\n" +
	"end_header\n"

// buildBinary writes vertex and face records by hand so the decoder is
// checked against the byte layout rather than against Encode
func buildBinary(header string, verts []models.Vertex, faces [][]int32) []byte {
	var buf bytes.Buffer
	buf.WriteString(header)
	for _, v := range verts {
		binary.Write(&buf, binary.LittleEndian, v.X)
		binary.Write(&buf, binary.LittleEndian, v.Y)
		binary.Write(&buf, binary.LittleEndian, v.Z)
		buf.WriteByte(v.TissueID)
	}
	for _, f := range faces {
		buf.WriteByte(byte(len(f)))
		for _, idx := range f {
			binary.Write(&buf, binary.LittleEndian, idx)
		}
	}
	return buf.Bytes()
}

func sampleMesh() *models.Mesh {
	return &models.Mesh{
		Vertices: []models.Vertex{
			{X: 0, Y: 0, Z: 0, TissueID: 1},
			{X: 1.5, Y: 0, Z: 0, TissueID: 1},
			{X: 0, Y: -2.25, Z: 0, TissueID: 1},
			{X: 0.1, Y: 0.2, Z: 0.3, TissueID: 7},
			{X: 1e-7, Y: math.MaxFloat32, Z: -42, TissueID: 7},
			{X: 9, Y: 9, Z: 9, TissueID: 255},
		},
		Faces: []models.Face{{0, 1, 2}, {3, 4, 5}, {2, 1, 0}},
	}
}

func TestDecodeSingleTriangle(t *testing.T) {
	verts := []models.Vertex{
		{X: 0, Y: 0, Z: 0, TissueID: 5},
		{X: 1, Y: 0, Z: 0, TissueID: 5},
		{X: 0, Y: 1, Z: 0, TissueID: 5},
	}
	data := buildBinary(triangleHeader, verts, [][]int32{{0, 1, 2}})

	m, err := DecodeBytes(data)
	require.NoError(t, err)

	assert.Equal(t, verts, m.Vertices)
	require.Len(t, m.Faces, 1)
	assert.Equal(t, models.Face{0, 1, 2}, m.Faces[0])
}

func TestRoundTrip(t *testing.T) {
	for _, format := range []Format{BinaryLittleEndian, ASCII} {
		t.Run(format.String(), func(t *testing.T) {
			in := sampleMesh()

			var buf bytes.Buffer
			require.NoError(t, Encode(&buf, in, format))

			out, err := Decode(&buf)
			require.NoError(t, err)
			assert.Equal(t, in.Vertices, out.Vertices)
			assert.Equal(t, in.Faces, out.Faces)
		})
	}
}

func TestEncodeHeaderLayout(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Encode(&buf, sampleMesh(), BinaryLittleEndian))

	data := buf.Bytes()
	end := bytes.Index(data, []byte("end_header\n"))
	require.True(t, end > 0)
	header := string(data[:end])

	assert.True(t, strings.HasPrefix(header, "ply\nformat binary_little_endian 1.0\n"))
	assert.Contains(t, header, "element vertex 6\n")
	assert.Contains(t, header, "property uchar tissue_id\n")
	assert.Contains(t, header, "element face 3\n")
	assert.Contains(t, header, "property list uchar int vertex_indices\n")

	// 13 bytes per vertex, 13 bytes per triangle
	body := len(data) - end - len("end_header\n")
	assert.Equal(t, 6*13+3*13, body)
}

func TestDecodeRejectsNonTriangles(t *testing.T) {
	verts := []models.Vertex{{TissueID: 1}, {TissueID: 1}, {TissueID: 1}}
	header := strings.Replace(triangleHeader, "element face 1", "element face 2", 1)
	data := buildBinary(header, verts, [][]int32{{0, 1, 2}, {0, 1, 2, 0}})

	m, err := DecodeBytes(data)
	assert.Nil(t, m)

	var fe *FormatError
	require.True(t, errors.As(err, &fe), "expected FormatError, got %v", err)
	assert.Contains(t, fe.Reason, "face 1")
	assert.Contains(t, fe.Reason, "triangles")
}

func TestDecodeRejectsNonTrianglesText(t *testing.T) {
	data := "ply\nformat ascii 1.0\nelement vertex 4\nproperty float x\nproperty float y\n" +
		"property float z\nproperty uchar tissue_id\nelement face 1\n" +
		"property list uchar int vertex_indices\nend_header\n" +
		"0 0 0 1\n1 0 0 1\n1 1 0 1\n0 1 0 1\n4 0 1 2 3\n"

	_, err := DecodeBytes([]byte(data))
	var fe *FormatError
	assert.True(t, errors.As(err, &fe))
}

func TestDecodeHeaderErrors(t *testing.T) {
	tests := []struct {
		name   string
		header string
		reason string
	}{
		{
			name:   "missing terminator",
			header: strings.TrimSuffix(triangleHeader, "end_header\n"),
			reason: "end_header",
		},
		{
			name:   "unparseable vertex count",
			header: strings.Replace(triangleHeader, "element vertex 3", "element vertex three", 1),
			reason: "vertex count",
		},
		{
			name:   "negative face count",
			header: strings.Replace(triangleHeader, "element face 1", "element face -1", 1),
			reason: "face count",
		},
		{
			name:   "missing tissue property",
			header: strings.Replace(triangleHeader, "property uchar tissue_id\n", "", 1),
			reason: "tissue_id",
		},
		{
			name:   "tissue property too wide",
			header: strings.Replace(triangleHeader, "property uchar tissue_id", "property int tissue_id", 1),
			reason: "must be uchar",
		},
		{
			name:   "missing magic",
			header: strings.TrimPrefix(triangleHeader, "ply\n"),
			reason: "magic",
		},
		{
			name:   "big endian",
			header: strings.Replace(triangleHeader, "binary_little_endian", "binary_big_endian", 1),
			reason: "unsupported format",
		},
		{
			name:   "missing face element",
			header: strings.Replace(triangleHeader, "element face 1\nproperty list uchar int vertex_indices\n", "", 1),
			reason: "face element",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := DecodeBytes([]byte(tt.header))
			var fe *FormatError
			require.True(t, errors.As(err, &fe), "expected FormatError, got %v", err)
			assert.Contains(t, fe.Error(), tt.reason)
		})
	}
}

func TestDecodeTruncatedBody(t *testing.T) {
	verts := []models.Vertex{{TissueID: 2}, {TissueID: 2}, {TissueID: 2}}
	data := buildBinary(triangleHeader, verts, [][]int32{{0, 1, 2}})

	_, err := DecodeBytes(data[:len(data)-5])

	var fe *FormatError
	require.True(t, errors.As(err, &fe))
	assert.Equal(t, 0, fe.Line)
	assert.True(t, errors.Is(err, io.ErrUnexpectedEOF))
}

func TestDecodeTrailingData(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Encode(&buf, sampleMesh(), BinaryLittleEndian))
	// one face record more than the header declares
	buf.WriteByte(3)
	binary.Write(&buf, binary.LittleEndian, [3]int32{0, 1, 2})

	m, err := DecodeBytes(buf.Bytes())
	assert.Nil(t, m)
	var fe *FormatError
	require.True(t, errors.As(err, &fe), "expected FormatError, got %v", err)
	assert.Contains(t, fe.Reason, "trailing data")

	buf.Reset()
	require.NoError(t, Encode(&buf, sampleMesh(), ASCII))
	text := buf.String()

	_, err = DecodeBytes([]byte(text + "\n  \n"))
	assert.NoError(t, err, "blank lines after the last record are allowed")

	_, err = DecodeBytes([]byte(text + "3 0 1 2\n"))
	require.True(t, errors.As(err, &fe), "expected FormatError, got %v", err)
	assert.Contains(t, fe.Reason, "trailing data")
}

func TestDecodeGeometry(t *testing.T) {
	untagged := "ply\nformat ascii 1.0\nelement vertex 3\nproperty float x\nproperty float y\n" +
		"property float z\nelement face 1\nproperty list uchar int vertex_indices\nend_header\n" +
		"0 0 0\n1 0 0\n0 1 0\n3 0 1 2\n"

	_, err := DecodeBytes([]byte(untagged))
	var fe *FormatError
	require.True(t, errors.As(err, &fe))
	assert.Contains(t, fe.Reason, "tissue_id")

	m, err := DecodeGeometry(strings.NewReader(untagged))
	require.NoError(t, err)
	assert.Equal(t, []models.Vertex{{}, {X: 1}, {Y: 1}}, m.Vertices)
	assert.Equal(t, []models.Face{{0, 1, 2}}, m.Faces)

	// binary, and a tagged container still keeps its tags
	header := strings.Replace(triangleHeader, "property uchar tissue_id\n", "", 1)
	var buf bytes.Buffer
	buf.WriteString(header)
	binary.Write(&buf, binary.LittleEndian, [9]float32{0, 0, 0, 2, 0, 0, 0, 2, 0})
	buf.WriteByte(3)
	binary.Write(&buf, binary.LittleEndian, [3]int32{0, 1, 2})

	m, err = DecodeGeometry(&buf)
	require.NoError(t, err)
	assert.Equal(t, models.Vertex{X: 2}, m.Vertices[1])

	m, err = DecodeGeometry(bytes.NewReader(buildBinary(triangleHeader,
		[]models.Vertex{{TissueID: 4}, {TissueID: 4}, {TissueID: 4}}, [][]int32{{0, 1, 2}})))
	require.NoError(t, err)
	assert.Equal(t, uint8(4), m.Vertices[0].TissueID)
}

func TestReadGeometryFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "simplified.ply")
	require.NoError(t, WriteFile(path, sampleMesh(), ASCII))

	m, err := ReadGeometryFile(path)
	require.NoError(t, err)
	assert.Len(t, m.Vertices, 6)

	_, err = ReadGeometryFile(filepath.Join(t.TempDir(), "missing.ply"))
	assert.Error(t, err)
}

func TestDecodeAlternateLayout(t *testing.T) {
	// camelCase tag spelling, an extra normal per vertex and a uint index list
	header := "ply\n" +
		"format binary_little_endian 1.0\n" +
		"obj_info generated\n" +
		"element vertex 3\n" +
		"property float x\n" +
		"property float y\n" +
		"property float z\n" +
		"property float nx\n" +
		"property uchar tissueId\n" +
		"element face 1\n" +
		"property list uchar uint vertex_index\n" +
		"end_header\n"

	var buf bytes.Buffer
	buf.WriteString(header)
	for i := 0; i < 3; i++ {
		binary.Write(&buf, binary.LittleEndian, [4]float32{float32(i), 2, 3, 0.5})
		buf.WriteByte(9)
	}
	buf.WriteByte(3)
	binary.Write(&buf, binary.LittleEndian, [3]uint32{2, 1, 0})

	m, err := DecodeBytes(buf.Bytes())
	require.NoError(t, err)
	require.Len(t, m.Vertices, 3)
	assert.Equal(t, models.Vertex{X: 2, Y: 2, Z: 3, TissueID: 9}, m.Vertices[2])
	assert.Equal(t, models.Face{2, 1, 0}, m.Faces[0])
}

func TestDecodeDoesNotCheckIndexBounds(t *testing.T) {
	verts := []models.Vertex{{TissueID: 1}, {TissueID: 1}, {TissueID: 1}}
	data := buildBinary(triangleHeader, verts, [][]int32{{0, 1, 99}})

	m, err := DecodeBytes(data)
	require.NoError(t, err)
	assert.Equal(t, int32(99), m.Faces[0][2])
}

func TestWriteAndReadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "head.ply")

	in := sampleMesh()
	require.NoError(t, WriteFile(path, in, BinaryLittleEndian))

	out, err := ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, in.Vertices, out.Vertices)

	_, err = ReadFile(filepath.Join(t.TempDir(), "missing.ply"))
	assert.Error(t, err)
}

func TestFloatBitsPreserved(t *testing.T) {
	in := &models.Mesh{Vertices: []models.Vertex{{X: math.Float32frombits(1), Y: -0.0, Z: math.MaxFloat32}}}

	for _, format := range []Format{BinaryLittleEndian, ASCII} {
		var buf bytes.Buffer
		require.NoError(t, Encode(&buf, in, format))
		out, err := Decode(&buf)
		require.NoError(t, err)
		assert.Equal(t, math.Float32bits(in.Vertices[0].X), math.Float32bits(out.Vertices[0].X))
		assert.Equal(t, in.Vertices[0].Z, out.Vertices[0].Z)
	}
}

// BenchmarkDecode measures binary decoding of a mesh with 100k faces
func BenchmarkDecode(b *testing.B) {
	m := &models.Mesh{}
	for i := 0; i < 100000; i++ {
		m.Vertices = append(m.Vertices, models.Vertex{X: float32(i), Y: 1, Z: 2, TissueID: uint8(i % 100)})
	}
	for i := 0; i+2 < len(m.Vertices); i++ {
		m.Faces = append(m.Faces, models.Face{int32(i), int32(i + 1), int32(i + 2)})
	}

	var buf bytes.Buffer
	if err := Encode(&buf, m, BinaryLittleEndian); err != nil {
		b.Fatal(err)
	}
	data := buf.Bytes()

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := DecodeBytes(data); err != nil {
			b.Fatal(err)
		}
	}
}
