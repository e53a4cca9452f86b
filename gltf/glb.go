// Copyright 2022 Gustavo C. Viegas. All rights reserved.

package gltf

import (
	"bytes"
	"encoding/binary"
	"io"
)

// GLB header.
type glbHeader [3]uint32

// Indices in glbHeader.
const (
	headerMagic   = 0
	headerVersion = 1
	headerLength  = 2
)

// GLB chunk.
type glbChunk [2]uint32

// Indices in glbChunk.
const (
	chunkLength = 0
	chunkType   = 1
	// Then payload.
)

const (
	// glbHeader[headerMagic].
	magic = 0x46546c67

	// glbChunk[chunkType].
	typeJSON = 0x4e4f534a
	typeBIN  = 0x004e4942

	headerSize = 12
	chunkSize  = 8
)

// IsGLB returns whether r refers to a binary glTF (version 2).
// It assumes that r was positioned accordingly.
func IsGLB(r io.Reader) bool {
	var h glbHeader
	err := binary.Read(r, binary.LittleEndian, h[:])
	switch {
	case err != nil, h[headerMagic] != magic, h[headerVersion] != 2:
		return false
	default:
		return true
	}
}

// SeekJSON seeks into r until it finds the beginning
// of the JSON string.
// If successful, it returns the length of the chunk.
// r must refer to an unread GLB blob.
func SeekJSON(r io.Reader) (n int, err error) {
	if !IsGLB(r) {
		err = newErr("not a GLB blob")
		return
	}
	var c glbChunk
	err = binary.Read(r, binary.LittleEndian, c[:])
	switch {
	case err != nil:
	case c[chunkLength] == 0 || c[chunkType] != typeJSON:
		err = newErr("invalid GLB chunk")
	default:
		n = int(c[chunkLength])
	}
	return
}

// ReadGLB reads a GLB blob from r.
// It returns the decoded JSON chunk and the payload of
// the BIN chunk, if any. Chunks of unknown type are
// skipped.
func ReadGLB(r io.Reader) (*GLTF, []byte, error) {
	var h glbHeader
	if err := binary.Read(r, binary.LittleEndian, h[:]); err != nil {
		return nil, nil, newErr("short GLB header")
	}
	if h[headerMagic] != magic || h[headerVersion] != 2 {
		return nil, nil, newErr("not a GLB blob")
	}
	left := int64(h[headerLength]) - headerSize
	var gltf *GLTF
	var bin []byte
	for left >= chunkSize {
		var c glbChunk
		if err := binary.Read(r, binary.LittleEndian, c[:]); err != nil {
			return nil, nil, newErr("short GLB chunk")
		}
		n := int64(c[chunkLength])
		left -= chunkSize + n
		if left < 0 {
			return nil, nil, newErr("GLB chunk exceeds blob length")
		}
		var buf bytes.Buffer
		if _, err := io.CopyN(&buf, r, n); err != nil {
			return nil, nil, newErr("short GLB chunk data")
		}
		data := buf.Bytes()
		switch c[chunkType] {
		case typeJSON:
			if gltf != nil {
				return nil, nil, newErr("duplicate GLB JSON chunk")
			}
			var err error
			if gltf, err = Decode(bytes.NewReader(data)); err != nil {
				return nil, nil, err
			}
		case typeBIN:
			if gltf == nil {
				return nil, nil, newErr("GLB BIN chunk precedes JSON chunk")
			}
			if bin == nil {
				bin = data
			}
		}
	}
	if gltf == nil {
		return nil, nil, newErr("missing GLB JSON chunk")
	}
	return gltf, bin, nil
}

// WriteGLB writes gltf and bin into w as a GLB blob.
// bin may be empty, in which case no BIN chunk is written.
func WriteGLB(w io.Writer, gltf *GLTF, bin []byte) error {
	var js bytes.Buffer
	if err := Encode(&js, gltf); err != nil {
		return err
	}
	for js.Len()%4 != 0 {
		js.WriteByte(' ')
	}
	binLen := (len(bin) + 3) &^ 3
	n := headerSize + chunkSize + js.Len()
	if len(bin) > 0 {
		n += chunkSize + binLen
	}
	var buf bytes.Buffer
	buf.Grow(n)
	binary.Write(&buf, binary.LittleEndian, glbHeader{magic, 2, uint32(n)})
	binary.Write(&buf, binary.LittleEndian, glbChunk{uint32(js.Len()), typeJSON})
	buf.Write(js.Bytes())
	if len(bin) > 0 {
		binary.Write(&buf, binary.LittleEndian, glbChunk{uint32(binLen), typeBIN})
		buf.Write(bin)
		buf.Write(make([]byte, binLen-len(bin)))
	}
	_, err := w.Write(buf.Bytes())
	return err
}

// Parse decodes either a GLB blob or a JSON glTF from b.
// For GLB, the BIN chunk payload is also returned.
func Parse(b []byte) (*GLTF, []byte, error) {
	if IsGLB(bytes.NewReader(b)) {
		if len(b) < headerSize || int64(binary.LittleEndian.Uint32(b[8:])) > int64(len(b)) {
			return nil, nil, newErr("GLB length exceeds data")
		}
		return ReadGLB(bytes.NewReader(b))
	}
	gltf, err := Decode(bytes.NewReader(b))
	return gltf, nil, err
}
