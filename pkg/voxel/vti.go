package voxel

import (
	"bytes"
	"encoding/base64"
	"encoding/binary"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// ScalarsName is the name of the label array written by WriteVTI
const ScalarsName = "tissue"

// ErrUnsupported is returned for valid VTK files this reader does not handle,
// such as non-zlib compressors or big-endian data
var ErrUnsupported = errors.New("unsupported VTI layout")

type vtkFile struct {
	XMLName    xml.Name  `xml:"VTKFile"`
	Type       string    `xml:"type,attr"`
	Version    string    `xml:"version,attr"`
	ByteOrder  string    `xml:"byte_order,attr"`
	HeaderType string    `xml:"header_type,attr,omitempty"`
	Compressor string    `xml:"compressor,attr,omitempty"`
	Image      imageData `xml:"ImageData"`
}

type imageData struct {
	WholeExtent string `xml:"WholeExtent,attr"`
	Origin      string `xml:"Origin,attr"`
	Spacing     string `xml:"Spacing,attr"`
	Piece       piece  `xml:"Piece"`
}

type piece struct {
	Extent    string    `xml:"Extent,attr"`
	PointData pointData `xml:"PointData"`
}

type pointData struct {
	Scalars string      `xml:"Scalars,attr,omitempty"`
	Arrays  []dataArray `xml:"DataArray"`
}

type dataArray struct {
	Type   string `xml:"type,attr"`
	Name   string `xml:"Name,attr"`
	Format string `xml:"format,attr"`
	Offset string `xml:"offset,attr,omitempty"`
	Data   string `xml:",chardata"`
}

func parseFloats(s string, n int, field string) ([]float64, error) {
	parts := strings.Fields(s)
	if len(parts) != n {
		return nil, fmt.Errorf("%s: expected %d values, got %q", field, n, s)
	}
	out := make([]float64, n)
	for i, p := range parts {
		f, err := strconv.ParseFloat(p, 64)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", field, err)
		}
		out[i] = f
	}
	return out, nil
}

func formatFloats(xs []float64) string {
	parts := make([]string, len(xs))
	for i, x := range xs {
		parts[i] = strconv.FormatFloat(x, 'g', -1, 64)
	}
	return strings.Join(parts, " ")
}

// extentDims turns "x0 x1 y0 y1 z0 z1" into voxel counts
func extentDims(extent string) ([3]int, error) {
	var dims [3]int
	vals, err := parseFloats(extent, 6, "extent")
	if err != nil {
		return dims, err
	}
	for i := range dims {
		dims[i] = int(vals[2*i+1]-vals[2*i]) + 1
		if dims[i] <= 0 {
			return dims, fmt.Errorf("extent: empty axis %d in %q", i, extent)
		}
	}
	return dims, nil
}

// ReadVTI decodes a label volume from VTK XML ImageData with a single UInt8
// point array. The array may be inline (ascii or base64) or appended (raw or
// base64), optionally zlib compressed as vtkXMLImageDataWriter writes it.
func ReadVTI(r io.Reader) (*Volume, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("error reading VTI: %w", err)
	}
	doc, app, err := splitAppended(data)
	if err != nil {
		return nil, err
	}

	var f vtkFile
	if err := xml.Unmarshal(doc, &f); err != nil {
		return nil, fmt.Errorf("error parsing VTI: %w", err)
	}
	if f.Type != "ImageData" {
		return nil, fmt.Errorf("VTI type %q is not ImageData", f.Type)
	}
	if f.ByteOrder != "" && f.ByteOrder != "LittleEndian" {
		return nil, fmt.Errorf("%w: byte order %s", ErrUnsupported, f.ByteOrder)
	}
	enc, err := newArrayEncoding(f.HeaderType, f.Compressor)
	if err != nil {
		return nil, err
	}

	extent := f.Image.Piece.Extent
	if extent == "" {
		extent = f.Image.WholeExtent
	}
	dims, err := extentDims(extent)
	if err != nil {
		return nil, err
	}

	vol := &Volume{Dims: dims, Spacing: [3]float64{1, 1, 1}}
	if f.Image.Spacing != "" {
		s, err := parseFloats(f.Image.Spacing, 3, "spacing")
		if err != nil {
			return nil, err
		}
		copy(vol.Spacing[:], s)
	}
	if f.Image.Origin != "" {
		o, err := parseFloats(f.Image.Origin, 3, "origin")
		if err != nil {
			return nil, err
		}
		copy(vol.Origin[:], o)
	}

	arr, err := pickArray(f.Image.Piece.PointData)
	if err != nil {
		return nil, err
	}
	if arr.Type != "UInt8" {
		return nil, fmt.Errorf("%w: array type %s, want UInt8", ErrUnsupported, arr.Type)
	}

	switch arr.Format {
	case "binary":
		vol.Labels, err = enc.decodeBase64(arr.Data, vol.Len())
	case "ascii":
		vol.Labels, err = decodeASCII(arr.Data, vol.Len())
	case "appended":
		vol.Labels, err = app.array(enc, arr.Offset, vol.Len())
	default:
		err = fmt.Errorf("%w: data format %q", ErrUnsupported, arr.Format)
	}
	if err != nil {
		return nil, err
	}
	return vol, nil
}

func pickArray(pd pointData) (dataArray, error) {
	if len(pd.Arrays) == 0 {
		return dataArray{}, errors.New("VTI has no point data array")
	}
	for _, a := range pd.Arrays {
		if pd.Scalars != "" && a.Name == pd.Scalars {
			return a, nil
		}
	}
	return pd.Arrays[0], nil
}

func decodeASCII(data string, n int) ([]uint8, error) {
	fields := strings.Fields(data)
	if len(fields) != n {
		return nil, fmt.Errorf("VTI array has %d values, extent needs %d", len(fields), n)
	}
	out := make([]uint8, n)
	for i, s := range fields {
		v, err := strconv.ParseUint(s, 10, 8)
		if err != nil {
			return nil, fmt.Errorf("VTI value %d: %w", i, err)
		}
		out[i] = uint8(v)
	}
	return out, nil
}

// WriteVTI encodes the volume as ImageData with one base64 binary UInt8
// array prefixed by its UInt64 byte count
func WriteVTI(w io.Writer, v *Volume) error {
	if err := v.Validate(); err != nil {
		return err
	}

	buf := make([]byte, 8+len(v.Labels))
	binary.LittleEndian.PutUint64(buf, uint64(len(v.Labels)))
	copy(buf[8:], v.Labels)

	extent := fmt.Sprintf("0 %d 0 %d 0 %d", v.Dims[0]-1, v.Dims[1]-1, v.Dims[2]-1)
	f := vtkFile{
		Type:       "ImageData",
		Version:    "1.0",
		ByteOrder:  "LittleEndian",
		HeaderType: "UInt64",
		Image: imageData{
			WholeExtent: extent,
			Origin:      formatFloats(v.Origin[:]),
			Spacing:     formatFloats(v.Spacing[:]),
			Piece: piece{
				Extent: extent,
				PointData: pointData{
					Scalars: ScalarsName,
					Arrays: []dataArray{{
						Type:   "UInt8",
						Name:   ScalarsName,
						Format: "binary",
						Data:   base64.StdEncoding.EncodeToString(buf),
					}},
				},
			},
		},
	}

	var out bytes.Buffer
	out.WriteString(xml.Header)
	enc := xml.NewEncoder(&out)
	enc.Indent("", "  ")
	if err := enc.Encode(f); err != nil {
		return fmt.Errorf("error encoding VTI: %w", err)
	}
	out.WriteByte('\n')
	_, err := w.Write(out.Bytes())
	return err
}

// ReadVTIFile reads a label volume from disk
func ReadVTIFile(path string) (*Volume, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("error opening volume: %w", err)
	}
	defer f.Close()
	return ReadVTI(f)
}

// WriteVTIFile writes a label volume to disk, creating parent directories
func WriteVTIFile(path string, v *Volume) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("error creating output directory: %w", err)
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("error creating volume file: %w", err)
	}
	if err := WriteVTI(f, v); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
