package ply

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"strconv"

	"tissuemap/internal/models"
)

// Comment is written into the header of every encoded container
const Comment = "merged human head model with tissue IDs"

// Encode writes m as a container in the requested format. The header
// layout matches the one produced by the mesh merging tools, so the output
// reads back bit-exact through Decode.
func Encode(w io.Writer, m *models.Mesh, format Format) error {
	bw := bufio.NewWriter(w)

	if _, err := io.WriteString(bw, headerText(m, format)); err != nil {
		return fmt.Errorf("failed to write header: %w", err)
	}

	var err error
	switch format {
	case BinaryLittleEndian:
		err = encodeBinary(bw, m)
	case ASCII:
		err = encodeText(bw, m)
	default:
		return fmt.Errorf("unsupported format %v", format)
	}
	if err != nil {
		return err
	}

	return bw.Flush()
}

func headerText(m *models.Mesh, format Format) string {
	return "ply\n" +
		"format " + format.String() + " 1.0\n" +
		"comment " + Comment + "\n" +
		"element vertex " + strconv.Itoa(len(m.Vertices)) + "\n" +
		"property float x\n" +
		"property float y\n" +
		"property float z\n" +
		"property uchar tissue_id\n" +
		"element face " + strconv.Itoa(len(m.Faces)) + "\n" +
		"property list uchar int vertex_indices\n" +
		headerEnd + "\n"
}

func encodeBinary(w io.Writer, m *models.Mesh) error {
	var rec [13]byte
	for i, v := range m.Vertices {
		binary.LittleEndian.PutUint32(rec[0:4], math.Float32bits(v.X))
		binary.LittleEndian.PutUint32(rec[4:8], math.Float32bits(v.Y))
		binary.LittleEndian.PutUint32(rec[8:12], math.Float32bits(v.Z))
		rec[12] = v.TissueID
		if _, err := w.Write(rec[:]); err != nil {
			return fmt.Errorf("failed to write vertex %d: %w", i, err)
		}
	}

	rec[0] = 3
	for i, f := range m.Faces {
		binary.LittleEndian.PutUint32(rec[1:5], uint32(f[0]))
		binary.LittleEndian.PutUint32(rec[5:9], uint32(f[1]))
		binary.LittleEndian.PutUint32(rec[9:13], uint32(f[2]))
		if _, err := w.Write(rec[:]); err != nil {
			return fmt.Errorf("failed to write face %d: %w", i, err)
		}
	}
	return nil
}

func encodeText(w io.Writer, m *models.Mesh) error {
	for i, v := range m.Vertices {
		if _, err := fmt.Fprintf(w, "%s %s %s %d\n",
			strconv.FormatFloat(float64(v.X), 'g', -1, 32),
			strconv.FormatFloat(float64(v.Y), 'g', -1, 32),
			strconv.FormatFloat(float64(v.Z), 'g', -1, 32),
			v.TissueID); err != nil {
			return fmt.Errorf("failed to write vertex %d: %w", i, err)
		}
	}
	for i, f := range m.Faces {
		if _, err := fmt.Fprintf(w, "3 %d %d %d\n", f[0], f[1], f[2]); err != nil {
			return fmt.Errorf("failed to write face %d: %w", i, err)
		}
	}
	return nil
}

// WriteFile encodes m to path, creating parent directories as needed
func WriteFile(path string, m *models.Mesh, format Format) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("error creating output directory: %w", err)
	}

	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create mesh container: %w", err)
	}

	if err := Encode(file, m, format); err != nil {
		file.Close()
		return err
	}
	return file.Close()
}
