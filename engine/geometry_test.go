// Copyright 2023 Gustavo C. Viegas. All rights reserved.

package engine

import (
	"bytes"
	"encoding/binary"
	"io"
	"math"
	"strings"
	"testing"

	"gonum.org/v1/gonum/spatial/r3"

	"github.com/gviegas/stage/driver"
)

func f32Bytes(v ...float32) []byte {
	b := make([]byte, 4*len(v))
	for i, x := range v {
		binary.LittleEndian.PutUint32(b[i*4:], math.Float32bits(x))
	}
	return b
}

func triangleData() *GeometryData {
	pos := f32Bytes(
		-1, 0, 0,
		1, 0, 0,
		0, 2, -3,
	)
	idx := []byte{0, 0, 1, 0, 2, 0}
	data := &GeometryData{
		Topology:     driver.TTriangle,
		VertexCount:  3,
		IndexCount:   3,
		SemanticMask: Position,
		Index:        IndexData{Format: driver.Index16, Src: 1},
		Srcs:         []io.ReadSeeker{bytes.NewReader(pos), bytes.NewReader(idx)},
	}
	data.Semantics[Position.I()] = SemanticData{Format: driver.Float32x3}
	return data
}

func TestSemantic(t *testing.T) {
	semantics := map[Semantic]int{
		Position:  0,
		Normal:    1,
		Tangent:   2,
		TexCoord0: 3,
		TexCoord1: 4,
		Color0:    5,
		Joints0:   6,
		Weights0:  7,
	}
	if x := len(semantics); x != MaxSemantic {
		t.Fatalf("MaxSemantic:\nhave %d\nwant %d", MaxSemantic, x)
	}
	for k, v := range semantics {
		if i := k.I(); i != v {
			t.Fatalf("Semantic.I: %s\nhave: %d\nwant %d", k, i, v)
		}
	}
}

func TestNewGeometry(t *testing.T) {
	before := Stats().Geometries
	g, err := NewGeometry(triangleData())
	if err != nil {
		t.Fatalf("NewGeometry failed:\n%#v", err)
	}
	if x := g.Count(); x != 3 {
		t.Fatalf("Geometry.Count:\nhave %d\nwant 3", x)
	}
	if !g.Indexed() {
		t.Fatal("Geometry.Indexed:\nhave false\nwant true")
	}
	if f, ok := g.Format(Position); !ok || f != driver.Float32x3 {
		t.Fatalf("Geometry.Format:\nhave %v, %t\nwant %v, true", f, ok, driver.Float32x3)
	}
	if _, ok := g.Format(Normal); ok {
		t.Fatal("Geometry.Format: unexpected Normal semantic")
	}
	want := r3.Box{Min: r3.Vec{X: -1, Y: 0, Z: -3}, Max: r3.Vec{X: 1, Y: 2, Z: 0}}
	if x := g.Bounds(); x != want {
		t.Fatalf("Geometry.Bounds:\nhave %v\nwant %v", x, want)
	}
	if x := Stats().Geometries; x != before+1 {
		t.Fatalf("Stats().Geometries:\nhave %d\nwant %d", x, before+1)
	}
	g.Free()
	if !g.Freed() {
		t.Fatal("Geometry.Freed:\nhave false\nwant true")
	}
	// Must be a no-op.
	g.Free()
	if x := Stats().Geometries; x != before {
		t.Fatalf("Stats().Geometries:\nhave %d\nwant %d", x, before)
	}
}

func TestNewGeometryErr(t *testing.T) {
	noPos := triangleData()
	noPos.SemanticMask = Normal
	badFmt := triangleData()
	badFmt.Semantics[Position.I()].Format = driver.Float32x2
	badSrc := triangleData()
	badSrc.Semantics[Position.I()].Src = 5
	badIdx := triangleData()
	badIdx.Index.Format = 3
	short := triangleData()
	short.VertexCount = 30

	for _, x := range [...]struct {
		data   *GeometryData
		reason string
	}{
		{nil, "nil data"},
		{noPos, "missing Position"},
		{badFmt, "Position format"},
		{badSrc, "invalid source"},
		{badIdx, "IndexFmt"},
	} {
		_, err := NewGeometry(x.data)
		if err == nil || !strings.Contains(err.Error(), x.reason) {
			t.Fatalf("NewGeometry:\nhave %v\nwant error containing %q", err, x.reason)
		}
	}
	before := Stats().Geometries
	if _, err := NewGeometry(short); err == nil {
		t.Fatal("NewGeometry: expected error for short source")
	}
	if x := Stats().Geometries; x != before {
		t.Fatalf("Stats().Geometries:\nhave %d\nwant %d", x, before)
	}
}

func TestFreeNil(t *testing.T) {
	var (
		g *Geometry
		x *Texture
		m *Material
	)
	g.Free()
	x.Free()
	m.Free()
	if g.Freed() || x.Freed() || m.Freed() {
		t.Fatal("Freed: nil resource\nhave true\nwant false")
	}
}
