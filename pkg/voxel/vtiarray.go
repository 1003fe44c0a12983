package voxel

import (
	"bytes"
	"compress/zlib"
	"encoding/base64"
	"encoding/binary"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
)

const zlibCompressor = "vtkZLibDataCompressor"

var errTruncated = errors.New("VTI array truncated")

// arrayEncoding is the binary framing shared by every array of a file: the
// width of the size words and whether data is split into zlib blocks.
//
// Uncompressed arrays are [size][data]. Compressed arrays are
// [nblocks][blockSize][lastBlockSize][compressedSize...][zlib blocks], where
// a lastBlockSize of 0 means the last block is full.
type arrayEncoding struct {
	headerSize int
	compressed bool
}

func newArrayEncoding(headerType, compressor string) (arrayEncoding, error) {
	var e arrayEncoding
	switch headerType {
	case "UInt64":
		e.headerSize = 8
	case "", "UInt32":
		e.headerSize = 4
	default:
		return e, fmt.Errorf("%w: header type %s", ErrUnsupported, headerType)
	}
	switch compressor {
	case "":
	case zlibCompressor:
		e.compressed = true
	default:
		return e, fmt.Errorf("%w: compressor %s", ErrUnsupported, compressor)
	}
	return e, nil
}

func (e arrayEncoding) word(b []byte) uint64 {
	if e.headerSize == 8 {
		return binary.LittleEndian.Uint64(b)
	}
	return uint64(binary.LittleEndian.Uint32(b))
}

// decodeRaw reads one array of n bytes from unencoded data. Bytes after the
// array are ignored, since appended arrays are packed back to back.
func (e arrayEncoding) decodeRaw(raw []byte, n int) ([]uint8, error) {
	hs := e.headerSize
	if len(raw) < hs {
		return nil, errors.New("VTI array shorter than its size header")
	}

	if !e.compressed {
		size := e.word(raw)
		if size != uint64(n) {
			return nil, fmt.Errorf("VTI array declares %d bytes, extent needs %d", size, n)
		}
		raw = raw[hs:]
		if len(raw) < n {
			return nil, fmt.Errorf("%w: %d of %d bytes", errTruncated, len(raw), n)
		}
		return raw[:n:n], nil
	}

	if len(raw) < 3*hs {
		return nil, errors.New("VTI array shorter than its block header")
	}
	nblocks := e.word(raw)
	blockSize := e.word(raw[hs:])
	lastSize := e.word(raw[2*hs:])
	if nblocks > uint64(len(raw)/hs) {
		return nil, fmt.Errorf("%w: block table of %d entries", errTruncated, nblocks)
	}
	if lastSize == 0 {
		lastSize = blockSize
	}
	var total uint64
	if nblocks > 0 {
		total = blockSize*(nblocks-1) + lastSize
	}
	if total != uint64(n) {
		return nil, fmt.Errorf("VTI array declares %d bytes, extent needs %d", total, n)
	}

	off := (3 + int(nblocks)) * hs
	if off > len(raw) {
		return nil, fmt.Errorf("%w: block table of %d entries", errTruncated, nblocks)
	}
	out := make([]uint8, 0, n)
	for i := 0; i < int(nblocks); i++ {
		csize := e.word(raw[(3+i)*hs:])
		if csize > uint64(len(raw)-off) {
			return nil, fmt.Errorf("%w: block %d", errTruncated, i)
		}
		want := blockSize
		if i == int(nblocks)-1 {
			want = lastSize
		}
		block, err := inflate(raw[off:off+int(csize)], want)
		if err != nil {
			return nil, fmt.Errorf("VTI block %d: %w", i, err)
		}
		out = append(out, block...)
		off += int(csize)
	}
	return out, nil
}

// decodeBase64 reads one array of n bytes from base64 text. The block header
// of a compressed array is encoded separately from its blocks.
func (e arrayEncoding) decodeBase64(text string, n int) ([]uint8, error) {
	text = strings.Join(strings.Fields(text), "")
	hs := e.headerSize

	head, err := base64Prefix(text, hs)
	if err != nil {
		return nil, err
	}

	if !e.compressed {
		if size := e.word(head); size != uint64(n) {
			return nil, fmt.Errorf("VTI array declares %d bytes, extent needs %d", size, n)
		}
		raw, err := base64Prefix(text, hs+n)
		if err != nil {
			return nil, err
		}
		return e.decodeRaw(raw, n)
	}

	nblocks := e.word(head)
	if nblocks > uint64(len(text)) {
		return nil, fmt.Errorf("%w: block table of %d entries", errTruncated, nblocks)
	}
	headerLen := (3 + int(nblocks)) * hs
	header, err := base64Prefix(text, headerLen)
	if err != nil {
		return nil, err
	}
	rest := text[base64.StdEncoding.EncodedLen(headerLen):]

	var total int
	for i := 0; i < int(nblocks); i++ {
		csize := e.word(header[(3+i)*hs:])
		if csize > uint64(len(rest)) {
			return nil, fmt.Errorf("%w: block %d", errTruncated, i)
		}
		total += int(csize)
	}
	blocks, err := base64Prefix(rest, total)
	if err != nil {
		return nil, err
	}
	return e.decodeRaw(append(header, blocks...), n)
}

// base64Prefix decodes the padded base64 group holding the first n bytes
func base64Prefix(text string, n int) ([]byte, error) {
	l := base64.StdEncoding.EncodedLen(n)
	if len(text) < l {
		return nil, fmt.Errorf("%w: %d of %d encoded bytes", errTruncated, len(text), l)
	}
	raw, err := base64.StdEncoding.DecodeString(text[:l])
	if err != nil {
		return nil, fmt.Errorf("error decoding VTI array: %w", err)
	}
	if len(raw) < n {
		return nil, fmt.Errorf("%w: %d of %d bytes", errTruncated, len(raw), n)
	}
	return raw[:n], nil
}

func inflate(block []byte, want uint64) ([]byte, error) {
	zr, err := zlib.NewReader(bytes.NewReader(block))
	if err != nil {
		return nil, fmt.Errorf("creating zlib reader: %w", err)
	}
	defer zr.Close()

	out, err := io.ReadAll(io.LimitReader(zr, int64(want)+1))
	if err != nil {
		return nil, fmt.Errorf("decompressing zlib data: %w", err)
	}
	if uint64(len(out)) != want {
		return nil, fmt.Errorf("block inflates to %d bytes, header says %d", len(out), want)
	}
	return out, nil
}

// appendedData is the payload following the "_" marker of <AppendedData>
type appendedData struct {
	encoding string
	payload  []byte
}

// splitAppended cuts the appended section off a document so the remainder
// parses as XML. Raw appended data is not valid character data.
func splitAppended(data []byte) ([]byte, *appendedData, error) {
	i := bytes.Index(data, []byte("<AppendedData"))
	if i < 0 {
		return data, nil, nil
	}
	gt := bytes.IndexByte(data[i:], '>')
	if gt < 0 {
		return nil, nil, errors.New("VTI: unterminated AppendedData tag")
	}
	tag := data[i : i+gt+1]

	var attrs struct {
		Encoding string `xml:"encoding,attr"`
	}
	elem := append(bytes.Clone(tag), "</AppendedData>"...)
	if bytes.HasSuffix(tag, []byte("/>")) {
		elem = tag
	}
	if err := xml.Unmarshal(elem, &attrs); err != nil {
		return nil, nil, fmt.Errorf("error parsing AppendedData: %w", err)
	}

	rest := data[i+gt+1:]
	us := bytes.IndexByte(rest, '_')
	if us < 0 || len(bytes.TrimSpace(rest[:us])) != 0 {
		return nil, nil, errors.New("VTI: AppendedData lacks the _ marker")
	}
	app := &appendedData{encoding: attrs.Encoding, payload: rest[us+1:]}

	switch attrs.Encoding {
	case "raw":
	case "base64":
		if end := bytes.Index(app.payload, []byte("</AppendedData>")); end >= 0 {
			app.payload = app.payload[:end]
		}
		app.payload = bytes.TrimSpace(app.payload)
	default:
		return nil, nil, fmt.Errorf("%w: appended encoding %q", ErrUnsupported, attrs.Encoding)
	}

	doc := append(bytes.Clone(data[:i]), "</VTKFile>"...)
	return doc, app, nil
}

// array decodes the array starting at offset within the appended payload
func (a *appendedData) array(e arrayEncoding, offset string, n int) ([]uint8, error) {
	if a == nil {
		return nil, errors.New("VTI array is appended but the file has no AppendedData")
	}
	off, err := strconv.Atoi(strings.TrimSpace(offset))
	if err != nil || off < 0 || off > len(a.payload) {
		return nil, fmt.Errorf("VTI: invalid appended offset %q", offset)
	}
	if a.encoding == "raw" {
		return e.decodeRaw(a.payload[off:], n)
	}
	return e.decodeBase64(string(a.payload[off:]), n)
}
