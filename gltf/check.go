// Copyright 2023 Gustavo C. Viegas. All rights reserved.

package gltf

import (
	"errors"
)

func newErr(reason string) error {
	return errors.New("gltf: " + reason)
}

// valid reports whether idx is a valid index into a
// slice of length n.
func valid(idx int64, n int) bool { return idx >= 0 && idx < int64(n) }

// MaxAccessorSize is the maximum byte size of the
// elements of a single accessor, tightly packed.
const MaxAccessorSize = 1 << 30

// Check checks that f is valid glTF.
// It checks object references and the values that
// loading depends on. It does not check accessor bounds
// against buffer data, since buffers are not resolved yet.
func (f *GLTF) Check() error {
	if v := f.Asset.Version; v == "" || v[0] != '2' {
		return newErr("unsupported GLTF.Asset.Version: " + v)
	}
	for _, x := range f.ExtensionsRequired {
		if !Supported(x) {
			return newErr("required extension not supported: " + x)
		}
	}
	if s := f.Scene; s != nil && !valid(*s, len(f.Scenes)) {
		return newErr("invalid GLTF.Scene index")
	}
	for i := range f.Scenes {
		for _, n := range f.Scenes[i].Nodes {
			if !valid(n, len(f.Nodes)) {
				return newErr("invalid Scene.Nodes index")
			}
		}
	}
	for i := range f.Nodes {
		if err := f.Nodes[i].Check(f); err != nil {
			return err
		}
	}
	for i := range f.Meshes {
		if err := f.Meshes[i].Check(f); err != nil {
			return err
		}
	}
	for _, v := range f.BufferViews {
		if !valid(v.Buffer, len(f.Buffers)) {
			return newErr("invalid BufferView.Buffer index")
		}
		if v.ByteOffset < 0 || v.ByteLength < 1 || v.ByteLength > f.Buffers[v.Buffer].ByteLength-v.ByteOffset {
			return newErr("BufferView range out of bounds")
		}
		if v.ByteStride != 0 && (v.ByteStride < 4 || v.ByteStride > 252 || v.ByteStride%4 != 0) {
			return newErr("invalid BufferView.ByteStride value")
		}
	}
	for i := range f.Accessors {
		if err := f.Accessors[i].Check(f); err != nil {
			return err
		}
	}
	for _, t := range f.Textures {
		if s := t.Sampler; s != nil && !valid(*s, len(f.Samplers)) {
			return newErr("invalid Texture.Sampler index")
		}
		src, ok, err := t.ImageSource()
		if err != nil {
			return err
		}
		if ok && !valid(src, len(f.Images)) {
			return newErr("invalid Texture.Source index")
		}
	}
	for _, img := range f.Images {
		switch {
		case img.BufferView != nil:
			if !valid(*img.BufferView, len(f.BufferViews)) {
				return newErr("invalid Image.BufferView index")
			}
			if img.MimeType == "" {
				return newErr("Image.MimeType required for Image.BufferView")
			}
		case img.URI == "":
			return newErr("Image has neither URI nor BufferView")
		}
	}
	for i := range f.Materials {
		if err := f.Materials[i].Check(f); err != nil {
			return err
		}
	}
	return nil
}

// Check checks that n is valid glTF.nodes' element.
func (n *Node) Check(gltf *GLTF) error {
	for _, c := range n.Children {
		if !valid(c, len(gltf.Nodes)) {
			return newErr("invalid Node.Children index")
		}
	}
	if m := n.Mesh; m != nil && !valid(*m, len(gltf.Meshes)) {
		return newErr("invalid Node.Mesh index")
	}
	if n.Matrix != nil && (n.Translation != nil || n.Rotation != nil || n.Scale != nil) {
		return newErr("Node.Matrix and TRS are mutually exclusive")
	}
	if l, ok, err := n.Light(); err != nil {
		return err
	} else if ok {
		lights, err := gltf.Lights()
		if err != nil {
			return err
		}
		if !valid(l, len(lights)) {
			return newErr("invalid KHR_lights_punctual light index")
		}
	}
	return nil
}

// Check checks that m is valid glTF.meshes' element.
func (m *Mesh) Check(gltf *GLTF) error {
	if len(m.Primitives) == 0 {
		return newErr("Mesh has no primitives")
	}
	for i := range m.Primitives {
		p := &m.Primitives[i]
		d, err := p.Draco()
		if err != nil {
			return err
		}
		if d == nil && len(p.Attributes) == 0 {
			return newErr("Primitive has no attributes")
		}
		for _, a := range p.Attributes {
			if !valid(a, len(gltf.Accessors)) {
				return newErr("invalid Primitive.Attributes index")
			}
		}
		if x := p.Indices; x != nil && !valid(*x, len(gltf.Accessors)) {
			return newErr("invalid Primitive.Indices index")
		}
		if x := p.Material; x != nil && !valid(*x, len(gltf.Materials)) {
			return newErr("invalid Primitive.Material index")
		}
		if x := p.Mode; x != nil && (*x < POINTS || *x > TRIANGLE_FAN) {
			return newErr("invalid Primitive.Mode value")
		}
		if d != nil && !valid(d.BufferView, len(gltf.BufferViews)) {
			return newErr("invalid KHR_draco_mesh_compression.BufferView index")
		}
	}
	return nil
}

// Check checks that a is valid glTF.accessors' element.
func (a *Accessor) Check(gltf *GLTF) error {
	if a.BufferView != nil {
		if !valid(*a.BufferView, len(gltf.BufferViews)) {
			return newErr("invalid Accessor.BufferView index")
		}
	}
	if a.ByteOffset < 0 {
		return newErr("invalid Accessor.ByteOffset value")
	}
	if ComponentSize(a.ComponentType) == 0 {
		return newErr("invalid Accessor.ComponentType value")
	}
	if a.Count < 1 {
		return newErr("invalid Accessor.Count value")
	}
	if ComponentCount(a.Type) == 0 {
		return newErr("invalid Accessor.Type value")
	}
	esz := int64(a.ElementSize())
	if a.Count > MaxAccessorSize/esz {
		return newErr("Accessor.Count exceeds MaxAccessorSize")
	}
	if a.BufferView != nil {
		v := gltf.BufferViews[*a.BufferView]
		stride := esz
		if v.ByteStride != 0 {
			stride = v.ByteStride
		}
		if a.ByteOffset > v.ByteLength || stride*(a.Count-1)+esz > v.ByteLength-a.ByteOffset {
			return newErr("Accessor range out of BufferView bounds")
		}
	}

	if s := a.Sparse; s != nil {
		if s.Count < 1 || s.Count > a.Count {
			return newErr("invalid Accessor.Sparse.Count value")
		}

		if !valid(s.Indices.BufferView, len(gltf.BufferViews)) {
			return newErr("invalid Accessor.Sparse.Indices.BufferView index")
		}
		if o := s.Indices.ByteOffset; o < 0 || o > gltf.BufferViews[s.Indices.BufferView].ByteLength {
			return newErr("invalid Accessor.Sparse.Indices.ByteOffset value")
		}
		switch s.Indices.ComponentType {
		case UNSIGNED_BYTE, UNSIGNED_SHORT, UNSIGNED_INT:
		default:
			return newErr("invalid Accessor.Sparse.Indices.ComponentType value")
		}

		if !valid(s.Values.BufferView, len(gltf.BufferViews)) {
			return newErr("invalid Accessor.Sparse.Values.BufferView index")
		}
		if o := s.Values.ByteOffset; o < 0 || o > gltf.BufferViews[s.Values.BufferView].ByteLength {
			return newErr("invalid Accessor.Sparse.Values.ByteOffset value")
		}
	}
	return nil
}

// Check checks that m is valid glTF.materials' element.
func (m *Material) Check(gltf *GLTF) error {
	tex := func(idx int64) error {
		if !valid(idx, len(gltf.Textures)) {
			return newErr("invalid material texture index")
		}
		return nil
	}
	if p := m.PBRMetallicRoughness; p != nil {
		if t := p.BaseColorTexture; t != nil {
			if err := tex(t.Index); err != nil {
				return err
			}
		}
		if t := p.MetallicRoughnessTexture; t != nil {
			if err := tex(t.Index); err != nil {
				return err
			}
		}
	}
	if t := m.NormalTexture; t != nil {
		if err := tex(t.Index); err != nil {
			return err
		}
	}
	if t := m.OcclusionTexture; t != nil {
		if err := tex(t.Index); err != nil {
			return err
		}
	}
	if t := m.EmissiveTexture; t != nil {
		if err := tex(t.Index); err != nil {
			return err
		}
	}
	switch m.AlphaMode {
	case "", OPAQUE, MASK, BLEND:
	default:
		return newErr("invalid Material.AlphaMode value")
	}
	return nil
}
