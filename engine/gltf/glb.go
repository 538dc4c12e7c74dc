package gltf

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
)

var (
	// ErrUnsupportedContainer is returned when binary data does not start with the GLB magic.
	ErrUnsupportedContainer = errors.New("gltf: unsupported binary container")

	// ErrLegacyVersion is returned for GLB containers older than version 2.
	ErrLegacyVersion = errors.New("gltf: legacy binary file detected, version must be 2 or later")

	// ErrMissingJSONChunk is returned when a GLB container has no JSON chunk.
	ErrMissingJSONChunk = errors.New("gltf: binary container has no JSON chunk")
)

// --- GLB Binary Format ---

// GLBHeader is the header of a GLB file (12 bytes).
// Reference: https://registry.khronos.org/glTF/specs/2.0/glTF-2.0.html#glb-file-format-specification
type GLBHeader struct {
	Magic   uint32 // Must be 0x46546C67 ("glTF" in ASCII)
	Version uint32 // Must be 2
	Length  uint32 // Total file length
}

// glbChunkHeader is the header of a GLB chunk (8 bytes).
type glbChunkHeader struct {
	ChunkLength uint32
	ChunkType   uint32 // 0x4E4F534A for JSON, 0x004E4942 for BIN
}

// GLB magic number and chunk type constants
const (
	GLBMagic     = 0x46546C67 // "glTF" in little-endian ASCII
	GLBVersion   = 2
	GLBChunkJSON = 0x4E4F534A // "JSON" in little-endian ASCII
	GLBChunkBIN  = 0x004E4942 // "BIN\0" in little-endian ASCII

	glbHeaderLength      = 12
	glbChunkHeaderLength = 8
)

// BinaryContainer is a parsed GLB file.
type BinaryContainer struct {
	// Header is the decoded file header.
	Header GLBHeader

	// Content is the JSON chunk text.
	Content string

	// Body is the BIN chunk, a view into the input data. Nil when the file has no BIN chunk.
	Body []byte
}

// IsBinaryContainer reports whether data starts with the GLB magic "glTF".
func IsBinaryContainer(data []byte) bool {
	return len(data) >= 4 && binary.LittleEndian.Uint32(data[:4]) == GLBMagic
}

// ParseBinaryContainer parses a GLB file. Chunks of unknown type are skipped.
//
// Parameters:
//   - data: the complete file contents
//
// Returns:
//   - *BinaryContainer: the header, JSON text and optional BIN chunk
//   - error: ErrUnsupportedContainer, ErrLegacyVersion, ErrMissingJSONChunk, or a truncation error
func ParseBinaryContainer(data []byte) (*BinaryContainer, error) {
	if len(data) < glbHeaderLength {
		return nil, fmt.Errorf("%w: file too small", ErrUnsupportedContainer)
	}

	r := bytes.NewReader(data)

	var header GLBHeader
	if err := binary.Read(r, binary.LittleEndian, &header); err != nil {
		return nil, fmt.Errorf("failed to read GLB header: %w", err)
	}
	if header.Magic != GLBMagic {
		return nil, ErrUnsupportedContainer
	}
	if header.Version < GLBVersion {
		return nil, ErrLegacyVersion
	}

	container := &BinaryContainer{Header: header}
	end := len(data)
	if int(header.Length) >= glbHeaderLength && int(header.Length) < end {
		end = int(header.Length)
	}

	hasJSON := false
	offset := glbHeaderLength
	for offset < end {
		var chunk glbChunkHeader
		if err := binary.Read(r, binary.LittleEndian, &chunk); err != nil {
			if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
				break
			}
			return nil, fmt.Errorf("failed to read chunk header: %w", err)
		}
		offset += glbChunkHeaderLength

		length := int(chunk.ChunkLength)
		if length < 0 || offset+length > end {
			return nil, fmt.Errorf("failed to read chunk data: chunk of %d bytes at offset %d exceeds file length %d", length, offset, end)
		}
		payload := data[offset : offset+length : offset+length]

		switch chunk.ChunkType {
		case GLBChunkJSON:
			container.Content = string(payload)
			hasJSON = true
		case GLBChunkBIN:
			container.Body = payload
		}

		offset += length
		if _, err := r.Seek(int64(offset), io.SeekStart); err != nil {
			return nil, fmt.Errorf("failed to skip chunk: %w", err)
		}
	}

	if !hasJSON {
		return nil, ErrMissingJSONChunk
	}
	return container, nil
}

// EncodeBinaryContainer writes a GLB file. The JSON chunk is padded with spaces and the BIN chunk
// with zeros to a 4-byte boundary. The BIN chunk is omitted when bin is empty.
//
// Parameters:
//   - jsonContent: the glTF JSON text
//   - bin: the buffer 0 payload, may be nil
//
// Returns:
//   - []byte: the encoded file
func EncodeBinaryContainer(jsonContent []byte, bin []byte) []byte {
	jsonChunk := padTo4(jsonContent, ' ')
	total := glbHeaderLength + glbChunkHeaderLength + len(jsonChunk)

	var binChunk []byte
	if len(bin) > 0 {
		binChunk = padTo4(bin, 0)
		total += glbChunkHeaderLength + len(binChunk)
	}

	var buf bytes.Buffer
	buf.Grow(total)
	// writes to a bytes.Buffer cannot fail
	_ = binary.Write(&buf, binary.LittleEndian, GLBHeader{Magic: GLBMagic, Version: GLBVersion, Length: uint32(total)})
	_ = binary.Write(&buf, binary.LittleEndian, glbChunkHeader{ChunkLength: uint32(len(jsonChunk)), ChunkType: GLBChunkJSON})
	buf.Write(jsonChunk)
	if binChunk != nil {
		_ = binary.Write(&buf, binary.LittleEndian, glbChunkHeader{ChunkLength: uint32(len(binChunk)), ChunkType: GLBChunkBIN})
		buf.Write(binChunk)
	}
	return buf.Bytes()
}

func padTo4(data []byte, pad byte) []byte {
	n := (4 - len(data)%4) % 4
	if n == 0 {
		return data
	}
	out := make([]byte, len(data), len(data)+n)
	copy(out, data)
	for i := 0; i < n; i++ {
		out = append(out, pad)
	}
	return out
}
