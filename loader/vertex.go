// Copyright 2024 Gustavo C. Viegas. All rights reserved.

package loader

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"math"

	"github.com/gviegas/stage/driver"
	"github.com/gviegas/stage/engine"
	"github.com/gviegas/stage/gltf"
)

// semantic describes how a glTF attribute is stored.
type semantic struct {
	sem   engine.Semantic
	comps int
}

var semantics = map[string]semantic{
	"POSITION":   {engine.Position, 3},
	"NORMAL":     {engine.Normal, 3},
	"TANGENT":    {engine.Tangent, 4},
	"TEXCOORD_0": {engine.TexCoord0, 2},
	"TEXCOORD_1": {engine.TexCoord1, 2},
	"COLOR_0":    {engine.Color0, 4},
	"JOINTS_0":   {engine.Joints0, 4},
	"WEIGHTS_0":  {engine.Weights0, 4},
}

// vertexData is the vertex data of a primitive, before
// it is stored in a geometry.
type vertexData struct {
	count   int
	mask    engine.Semantic
	attrs   [engine.MaxSemantic][]float32
	indices []uint32
	indexed bool
	err     error
}

// set sets the data of semantic s.
// data has comps components per element; it is adjusted
// to s.comps components, with missing ones set to 0,
// except the fourth, which is set to 1.
func (vd *vertexData) set(s semantic, data []float32, comps, count int) {
	if vd.err != nil {
		return
	}
	if vd.mask != 0 && count != vd.count {
		vd.err = newErr("attribute counts differ")
		return
	}
	if len(data) < comps*count {
		vd.err = newErr("short attribute data for " + s.sem.String())
		return
	}
	vd.count = count
	vd.mask |= s.sem
	if comps == s.comps {
		vd.attrs[s.sem.I()] = data[:comps*count]
		return
	}
	out := make([]float32, s.comps*count)
	for i := 0; i < count; i++ {
		for j := 0; j < s.comps; j++ {
			switch {
			case j < comps:
				out[i*s.comps+j] = data[i*comps+j]
			case j == 3:
				out[i*s.comps+j] = 1
			}
		}
	}
	vd.attrs[s.sem.I()] = out
}

// geometryData creates the engine.GeometryData of vd.
func (vd *vertexData) geometryData(mode int64) (*engine.GeometryData, error) {
	if vd.err != nil {
		return nil, vd.err
	}
	if vd.mask&engine.Position == 0 {
		return nil, newErr("primitive has no POSITION attribute")
	}
	gd := &engine.GeometryData{VertexCount: vd.count}
	switch mode {
	case gltf.POINTS:
		gd.Topology = driver.TPoint
	case gltf.LINES:
		gd.Topology = driver.TLine
	case gltf.LINE_LOOP:
		gd.Topology = driver.TLnStrip
		vd.closeLoop()
	case gltf.LINE_STRIP:
		gd.Topology = driver.TLnStrip
	case gltf.TRIANGLES:
		gd.Topology = driver.TTriangle
	case gltf.TRIANGLE_STRIP:
		gd.Topology = driver.TTriStrip
	case gltf.TRIANGLE_FAN:
		gd.Topology = driver.TTriFan
	default:
		return nil, newErr("invalid primitive mode")
	}
	for i, data := range vd.attrs {
		s := engine.Semantic(1 << i)
		if vd.mask&s == 0 {
			continue
		}
		var (
			b  []byte
			vf driver.VertexFmt
		)
		if s == engine.Joints0 {
			b, vf = packUint16(data), driver.UInt16x4
		} else {
			b, vf = packFloat32(data), floatFmt(len(data)/vd.count)
		}
		gd.SemanticMask |= s
		gd.Semantics[i] = engine.SemanticData{Format: vf, Src: len(gd.Srcs)}
		gd.Srcs = append(gd.Srcs, bytes.NewReader(b))
	}
	if vd.indexed {
		var b []byte
		gd.IndexCount = len(vd.indices)
		gd.Index.Format = driver.Index16
		for _, x := range vd.indices {
			if int(x) >= vd.count {
				return nil, newErr("index out of range")
			}
			if x > math.MaxUint16 {
				gd.Index.Format = driver.Index32
			}
		}
		if gd.Index.Format == driver.Index16 {
			b = make([]byte, 2*len(vd.indices))
			for i, x := range vd.indices {
				binary.LittleEndian.PutUint16(b[i*2:], uint16(x))
			}
		} else {
			b = make([]byte, 4*len(vd.indices))
			for i, x := range vd.indices {
				binary.LittleEndian.PutUint32(b[i*4:], x)
			}
		}
		gd.Index.Src = len(gd.Srcs)
		gd.Srcs = append(gd.Srcs, bytes.NewReader(b))
	}
	return gd, nil
}

// closeLoop turns a line loop into a line strip.
func (vd *vertexData) closeLoop() {
	if !vd.indexed {
		vd.indices = make([]uint32, vd.count)
		for i := range vd.indices {
			vd.indices[i] = uint32(i)
		}
		vd.indexed = true
	}
	if len(vd.indices) > 0 {
		vd.indices = append(vd.indices, vd.indices[0])
	}
}

func floatFmt(comps int) driver.VertexFmt {
	switch comps {
	case 1:
		return driver.Float32
	case 2:
		return driver.Float32x2
	case 3:
		return driver.Float32x3
	}
	return driver.Float32x4
}

func packFloat32(v []float32) []byte {
	b := make([]byte, 4*len(v))
	for i, x := range v {
		binary.LittleEndian.PutUint32(b[i*4:], math.Float32bits(x))
	}
	return b
}

func packUint16(v []float32) []byte {
	b := make([]byte, 2*len(v))
	for i, x := range v {
		binary.LittleEndian.PutUint16(b[i*2:], uint16(max(0, min(math.MaxUint16, x))))
	}
	return b
}

// accessor returns the elements of the accessor at index
// idx, tightly packed. Sparse substitution is applied.
func (b *builder) accessor(idx int64) ([]byte, error) {
	a := &b.f.Accessors[idx]
	esz := int64(a.ElementSize())
	if esz == 0 || a.Count < 0 || a.Count > gltf.MaxAccessorSize/esz {
		return nil, newErr(fmt.Sprintf("accessor %d exceeds %d bytes", idx, gltf.MaxAccessorSize))
	}
	out := make([]byte, a.Count*esz)
	if a.BufferView != nil {
		view := b.view(*a.BufferView)
		stride := esz
		if s := b.f.BufferViews[*a.BufferView].ByteStride; s != 0 {
			stride = s
		}
		for i := int64(0); i < a.Count; i++ {
			off := a.ByteOffset + i*stride
			copy(out[i*esz:(i+1)*esz], view[off:off+esz])
		}
	}
	if s := a.Sparse; s != nil {
		isz := int64(gltf.ComponentSize(s.Indices.ComponentType))
		ind := b.view(s.Indices.BufferView)
		val := b.view(s.Values.BufferView)
		if s.Indices.ByteOffset+s.Count*isz > int64(len(ind)) || s.Values.ByteOffset+s.Count*esz > int64(len(val)) {
			return nil, newErr("sparse accessor out of bounds")
		}
		r := bytes.NewReader(ind[s.Indices.ByteOffset:])
		for i := int64(0); i < s.Count; i++ {
			j, err := readUint(r, s.Indices.ComponentType)
			if err != nil {
				return nil, err
			}
			if int64(j) >= a.Count {
				return nil, newErr("sparse index out of range")
			}
			off := s.Values.ByteOffset + i*esz
			copy(out[int64(j)*esz:], val[off:off+esz])
		}
	}
	return out, nil
}

// view returns the contents of the buffer view at index
// idx.
func (b *builder) view(idx int64) []byte {
	v := &b.f.BufferViews[idx]
	return b.res.buffers[v.Buffer][v.ByteOffset : v.ByteOffset+v.ByteLength]
}

func readUint(r io.Reader, componentType int64) (uint32, error) {
	switch componentType {
	case gltf.UNSIGNED_BYTE:
		var x uint8
		err := binary.Read(r, binary.LittleEndian, &x)
		return uint32(x), err
	case gltf.UNSIGNED_SHORT:
		var x uint16
		err := binary.Read(r, binary.LittleEndian, &x)
		return uint32(x), err
	default:
		var x uint32
		err := binary.Read(r, binary.LittleEndian, &x)
		return x, err
	}
}

// toFloats converts accessor data to float32.
// Normalized integers are mapped to [0, 1] or [-1, 1].
func toFloats(data []byte, a *gltf.Accessor) []float32 {
	out := make([]float32, int(a.Count)*gltf.ComponentCount(a.Type))
	le := binary.LittleEndian
	for i := range out {
		var x float32
		switch a.ComponentType {
		case gltf.FLOAT:
			x = math.Float32frombits(le.Uint32(data[i*4:]))
		case gltf.UNSIGNED_INT:
			x = float32(le.Uint32(data[i*4:]))
		case gltf.UNSIGNED_BYTE:
			x = float32(data[i])
			if a.Normalized {
				x /= math.MaxUint8
			}
		case gltf.BYTE:
			x = float32(int8(data[i]))
			if a.Normalized {
				x = max(x/math.MaxInt8, -1)
			}
		case gltf.UNSIGNED_SHORT:
			x = float32(le.Uint16(data[i*2:]))
			if a.Normalized {
				x /= math.MaxUint16
			}
		case gltf.SHORT:
			x = float32(int16(le.Uint16(data[i*2:])))
			if a.Normalized {
				x = max(x/math.MaxInt16, -1)
			}
		}
		out[i] = x
	}
	return out
}

// toUints converts index accessor data to uint32.
func toUints(data []byte, a *gltf.Accessor) []uint32 {
	out := make([]uint32, a.Count)
	r := bytes.NewReader(data)
	for i := range out {
		out[i], _ = readUint(r, a.ComponentType)
	}
	return out
}
