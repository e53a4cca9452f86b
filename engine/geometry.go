// Copyright 2023 Gustavo C. Viegas. All rights reserved.

package engine

import (
	"encoding/binary"
	"errors"
	"io"
	"math"

	"gonum.org/v1/gonum/spatial/r3"

	"github.com/gviegas/stage/driver"
	"github.com/gviegas/stage/internal/ctxt"
)

const geomPrefix = "geometry: "

func newGeomErr(reason string) error { return errors.New(geomPrefix + reason) }

// Semantic specifies the intended use of a geometry's attribute.
type Semantic int

// Semantics.
const (
	Position Semantic = 1 << iota
	Normal
	Tangent
	TexCoord0
	TexCoord1
	Color0
	Joints0
	Weights0

	MaxSemantic int = iota
)

// I computes log₂(s).
// This value can be used to index into GeometryData.Semantics.
func (s Semantic) I() (i int) {
	for s > 1 {
		s >>= 1
		i++
	}
	return
}

// String implements fmt.Stringer.
func (s Semantic) String() string {
	switch s {
	case Position:
		return "Position"
	case Normal:
		return "Normal"
	case Tangent:
		return "Tangent"
	case TexCoord0:
		return "TexCoord0"
	case TexCoord1:
		return "TexCoord1"
	case Color0:
		return "Color0"
	case Joints0:
		return "Joints0"
	case Weights0:
		return "Weights0"
	default:
		return "!engine.Semantic"
	}
}

// SemanticData describes how to fetch semantic data
// from GeometryData.Srcs.
// Data must be tightly packed.
type SemanticData struct {
	Format driver.VertexFmt
	Offset int64
	Src    int
}

// IndexData describes how to fetch index data from
// GeometryData.Srcs.
type IndexData struct {
	Format driver.IndexFmt
	Offset int64
	Src    int
}

// GeometryData describes the data layout of a geometry
// and provides the data sources to read from.
type GeometryData struct {
	Topology    driver.Topology
	VertexCount int
	IndexCount  int
	// SemanticMask indicates which semantics
	// this geometry provides in the Semantics
	// array. Unused semantics need not be set.
	// Position is mandatory.
	SemanticMask Semantic
	Semantics    [MaxSemantic]SemanticData
	// Index describes the index buffer's data.
	// It is ignored if IndexCount is less than
	// or equal to zero.
	Index IndexData
	Srcs  []io.ReadSeeker
}

// Geometry is a set of vertex attributes, and optionally
// indices, stored in GPU buffers.
type Geometry struct {
	topology driver.Topology
	count    int
	vertCnt  int
	indexed  bool
	mask     Semantic
	vertex   [MaxSemantic]struct {
		format driver.VertexFmt
		buf    driver.Buffer
	}
	index struct {
		format driver.IndexFmt
		buf    driver.Buffer
	}
	bounds r3.Box
	freed  bool
}

// NewGeometry creates a new geometry.
func NewGeometry(data *GeometryData) (g *Geometry, err error) {
	if err = validateGeometryData(data); err != nil {
		return
	}
	g = &Geometry{
		topology: data.Topology,
		vertCnt:  data.VertexCount,
		mask:     data.SemanticMask,
	}
	defer func() {
		if err != nil {
			g.release()
			g = nil
		}
	}()
	for i := range data.Semantics {
		if data.SemanticMask&Semantic(1<<i) == 0 {
			continue
		}
		sd := &data.Semantics[i]
		n := data.VertexCount * sd.Format.Size()
		g.vertex[i].format = sd.Format
		if g.vertex[i].buf, err = store(data.Srcs[sd.Src], sd.Offset, n, driver.UVertexData); err != nil {
			return
		}
	}
	if data.IndexCount > 0 {
		g.count = data.IndexCount
		g.indexed = true
		g.index.format = data.Index.Format
		n := data.IndexCount * int(data.Index.Format)
		if g.index.buf, err = store(data.Srcs[data.Index.Src], data.Index.Offset, n, driver.UIndexData); err != nil {
			return
		}
	} else {
		g.count = data.VertexCount
	}
	g.bounds = computeBounds(g.vertex[Position.I()].buf.Bytes(), data.VertexCount)
	live.geometry.Add(1)
	return
}

// store reads byteLen bytes from src, starting at off,
// into a new GPU buffer.
func store(src io.ReadSeeker, off int64, byteLen int, usg driver.Usage) (driver.Buffer, error) {
	if _, err := src.Seek(off, io.SeekStart); err != nil {
		return nil, err
	}
	buf, err := ctxt.GPU().NewBuffer(int64(byteLen), true, usg)
	if err != nil {
		return nil, err
	}
	if _, err := io.ReadFull(src, buf.Bytes()[:byteLen]); err != nil {
		buf.Destroy()
		return nil, err
	}
	return buf, nil
}

// computeBounds computes the axis-aligned bounding box of
// packed driver.Float32x3 positions.
func computeBounds(pos []byte, cnt int) (box r3.Box) {
	if len(pos) < cnt*12 || cnt == 0 {
		return
	}
	f := func(i int) float64 {
		return float64(math.Float32frombits(binary.LittleEndian.Uint32(pos[i*4:])))
	}
	box.Min = r3.Vec{X: f(0), Y: f(1), Z: f(2)}
	box.Max = box.Min
	for i := 1; i < cnt; i++ {
		v := r3.Vec{X: f(i * 3), Y: f(i*3 + 1), Z: f(i*3 + 2)}
		box.Min = r3.Vec{X: min(box.Min.X, v.X), Y: min(box.Min.Y, v.Y), Z: min(box.Min.Z, v.Z)}
		box.Max = r3.Vec{X: max(box.Max.X, v.X), Y: max(box.Max.Y, v.Y), Z: max(box.Max.Z, v.Z)}
	}
	return
}

// validateGeometryData checks whether data is valid.
func validateGeometryData(data *GeometryData) error {
	switch {
	case data == nil:
		return newGeomErr("nil data")
	case data.VertexCount < 1:
		return newGeomErr("invalid vertex count")
	case data.SemanticMask&Position == 0:
		return newGeomErr("missing Position semantic")
	case data.Semantics[Position.I()].Format != driver.Float32x3:
		return newGeomErr("Position format must be driver.Float32x3")
	case data.Topology < driver.TPoint || data.Topology > driver.TTriFan:
		return newGeomErr("undefined driver.Topology constant")
	}
	for i := range data.Semantics {
		if data.SemanticMask&Semantic(1<<i) == 0 {
			continue
		}
		sd := &data.Semantics[i]
		if sd.Format.Size() == 0 {
			return newGeomErr("undefined driver.VertexFmt constant for " + Semantic(1<<i).String())
		}
		if sd.Src < 0 || sd.Src >= len(data.Srcs) || sd.Offset < 0 {
			return newGeomErr("invalid source for " + Semantic(1<<i).String())
		}
	}
	if data.IndexCount > 0 {
		switch data.Index.Format {
		case driver.Index16, driver.Index32:
		default:
			return newGeomErr("undefined driver.IndexFmt constant")
		}
		if data.Index.Src < 0 || data.Index.Src >= len(data.Srcs) || data.Index.Offset < 0 {
			return newGeomErr("invalid index source")
		}
	}
	return nil
}

// Topology returns the primitive topology of g.
func (g *Geometry) Topology() driver.Topology { return g.topology }

// Count returns the number of elements to draw: the index
// count for indexed geometry, the vertex count otherwise.
func (g *Geometry) Count() int { return g.count }

// VertexCount returns the number of vertices in g.
func (g *Geometry) VertexCount() int { return g.vertCnt }

// Indexed returns whether g has an index buffer.
func (g *Geometry) Indexed() bool { return g.indexed }

// Semantics returns the mask of semantics that g provides.
func (g *Geometry) Semantics() Semantic { return g.mask }

// Format returns the vertex format of semantic s.
func (g *Geometry) Format(s Semantic) (driver.VertexFmt, bool) {
	if g.mask&s == 0 {
		return 0, false
	}
	return g.vertex[s.I()].format, true
}

// Bounds returns the axis-aligned bounding box of g's
// positions, in local space.
func (g *Geometry) Bounds() r3.Box { return g.bounds }

// Free releases g's GPU buffers.
// Calling Free more than once has no effect.
func (g *Geometry) Free() {
	if g == nil || g.freed {
		return
	}
	g.release()
	g.freed = true
	live.geometry.Add(-1)
}

// Freed returns whether g.Free was called.
func (g *Geometry) Freed() bool { return g != nil && g.freed }

func (g *Geometry) release() {
	for i := range g.vertex {
		if b := g.vertex[i].buf; b != nil {
			b.Destroy()
			g.vertex[i].buf = nil
		}
	}
	if b := g.index.buf; b != nil {
		b.Destroy()
		g.index.buf = nil
	}
}
