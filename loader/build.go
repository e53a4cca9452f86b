// Copyright 2024 Gustavo C. Viegas. All rights reserved.

package loader

import (
	"context"
	"errors"
	"fmt"
	"math"

	"github.com/go-gl/mathgl/mgl32"

	"github.com/gviegas/stage/draco"
	"github.com/gviegas/stage/driver"
	"github.com/gviegas/stage/engine"
	"github.com/gviegas/stage/gltf"
	"github.com/gviegas/stage/node"
)

// builder creates the scene graph and engine resources
// of an asset. It records every resource created, so
// they can be freed if building fails.
type builder struct {
	ctx  context.Context
	f    *gltf.GLTF
	res  *resources
	dec  *draco.Decoder
	seen []bool

	textures  map[texKey]*engine.Texture
	materials map[int64]*engine.Material
	dflMat    *engine.Material
	lights    []gltf.Light

	geoms []*engine.Geometry
	mats  []*engine.Material
	texs  []*engine.Texture
}

type texKey struct {
	idx  int64
	srgb bool
}

func newBuilder(ctx context.Context, f *gltf.GLTF, res *resources, dec *draco.Decoder) *builder {
	return &builder{
		ctx:       ctx,
		f:         f,
		res:       res,
		dec:       dec,
		seen:      make([]bool, len(f.Nodes)),
		textures:  make(map[texKey]*engine.Texture),
		materials: make(map[int64]*engine.Material),
	}
}

// free frees every resource created by b.
func (b *builder) free() {
	for _, g := range b.geoms {
		g.Free()
	}
	for _, m := range b.mats {
		m.Free()
	}
	for _, t := range b.texs {
		t.Free()
	}
	b.geoms, b.mats, b.texs = nil, nil, nil
}

// scene builds the default scene.
// It returns nil if the asset has no scene.
func (b *builder) scene() (*node.Node, error) {
	var idx int64
	switch {
	case b.f.Scene != nil:
		idx = *b.f.Scene
	case len(b.f.Scenes) > 0:
	default:
		return nil, nil
	}
	var err error
	if b.lights, err = b.f.Lights(); err != nil {
		return nil, err
	}
	s := &b.f.Scenes[idx]
	name := s.Name
	if name == "" {
		name = "Scene"
	}
	root := node.New(name)
	root.Extras = extras(s.Extras)
	for _, i := range s.Nodes {
		n, err := b.node(i)
		if err != nil {
			return nil, err
		}
		root.Insert(n)
	}
	return root, nil
}

// node builds the node at index idx and its descendants.
func (b *builder) node(idx int64) (*node.Node, error) {
	if err := b.ctx.Err(); err != nil {
		return nil, err
	}
	if b.seen[idx] {
		return nil, newErr(fmt.Sprintf("node %d has more than one parent", idx))
	}
	b.seen[idx] = true
	gn := &b.f.Nodes[idx]
	n := node.New(gn.Name)
	if m := gn.Matrix; m != nil {
		n.SetMatrix(mgl32.Mat4(*m))
	} else {
		if t := gn.Translation; t != nil {
			n.Translation = mgl32.Vec3(*t)
		}
		if r := gn.Rotation; r != nil {
			n.Rotation = mgl32.Quat{W: r[3], V: mgl32.Vec3{r[0], r[1], r[2]}}
		}
		if s := gn.Scale; s != nil {
			n.Scale = mgl32.Vec3(*s)
		}
	}
	if gn.Mesh != nil {
		if err := b.mesh(n, *gn.Mesh); err != nil {
			return nil, fmt.Errorf("loader: mesh %d: %w", *gn.Mesh, err)
		}
	}
	if l, ok, err := gn.Light(); err != nil {
		return nil, err
	} else if ok {
		n.Light = light(&b.lights[l])
	}
	// Node extras take precedence over mesh extras.
	for k, v := range extras(gn.Extras) {
		if n.Extras == nil {
			n.Extras = make(map[string]any)
		}
		n.Extras[k] = v
	}
	for _, c := range gn.Children {
		cn, err := b.node(c)
		if err != nil {
			return nil, err
		}
		n.Insert(cn)
	}
	return n, nil
}

// mesh sets n up as the mesh at index idx.
// A mesh with several primitives becomes a group with
// one child node per primitive.
func (b *builder) mesh(n *node.Node, idx int64) error {
	m := &b.f.Meshes[idx]
	n.Extras = extras(m.Extras)
	if n.Name == "" {
		n.Name = m.Name
	}
	if len(m.Primitives) == 1 {
		return b.primitive(n, &m.Primitives[0])
	}
	for i := range m.Primitives {
		c := node.New(fmt.Sprintf("%s_%d", n.Name, i))
		if err := b.primitive(c, &m.Primitives[i]); err != nil {
			return err
		}
		n.Insert(c)
	}
	return nil
}

func (b *builder) primitive(n *node.Node, p *gltf.Primitive) error {
	g, err := b.geometry(p)
	if err != nil {
		return err
	}
	mat, err := b.material(p.Material)
	if err != nil {
		return err
	}
	n.Geometry = g
	n.Materials = []*engine.Material{mat}
	return nil
}

// geometry creates the geometry of p, decoding Draco
// data if needed.
func (b *builder) geometry(p *gltf.Primitive) (*engine.Geometry, error) {
	d, err := p.Draco()
	if err != nil {
		return nil, err
	}
	if d != nil {
		fallback := len(p.Attributes) > 0
		for _, a := range p.Attributes {
			if b.f.Accessors[a].BufferView == nil {
				fallback = false
				break
			}
		}
		if b.dec != nil {
			v := &b.f.BufferViews[d.BufferView]
			data := b.res.buffers[v.Buffer][v.ByteOffset : v.ByteOffset+v.ByteLength]
			m, err := b.dec.Decode(b.ctx, data, d.Attributes)
			if err == nil {
				return b.dracoGeometry(p, m)
			}
			if !errors.Is(err, draco.ErrNoDecoder) || !fallback {
				return nil, err
			}
			logger.Printf("[!] %v, using uncompressed fallback", err)
		} else if !fallback {
			return nil, fmt.Errorf("loader: primitive is Draco-compressed: %w", draco.ErrNoDecoder)
		}
	}

	var vd vertexData
	for name, a := range p.Attributes {
		sem, ok := semantics[name]
		if !ok {
			continue
		}
		acc := &b.f.Accessors[a]
		data, err := b.accessor(a)
		if err != nil {
			return nil, err
		}
		vd.set(sem, toFloats(data, acc), gltf.ComponentCount(acc.Type), int(acc.Count))
	}
	if p.Indices != nil {
		acc := &b.f.Accessors[*p.Indices]
		switch {
		case acc.Type != gltf.SCALAR:
			return nil, newErr("index accessor must be SCALAR")
		case acc.ComponentType != gltf.UNSIGNED_BYTE && acc.ComponentType != gltf.UNSIGNED_SHORT && acc.ComponentType != gltf.UNSIGNED_INT:
			return nil, newErr("index accessor must be unsigned")
		}
		data, err := b.accessor(*p.Indices)
		if err != nil {
			return nil, err
		}
		vd.indices = toUints(data, acc)
		vd.indexed = true
	}
	return b.newGeometry(p, &vd)
}

func (b *builder) dracoGeometry(p *gltf.Primitive, m *draco.Mesh) (*engine.Geometry, error) {
	var vd vertexData
	for name, a := range m.Attributes {
		if sem, ok := semantics[name]; ok {
			vd.set(sem, a.Data, a.Components, m.VertexCount)
		}
	}
	if m.Indices != nil {
		vd.indices = m.Indices
		vd.indexed = true
	}
	return b.newGeometry(p, &vd)
}

func (b *builder) newGeometry(p *gltf.Primitive, vd *vertexData) (*engine.Geometry, error) {
	mode := int64(gltf.TRIANGLES)
	if p.Mode != nil {
		mode = *p.Mode
	}
	gd, err := vd.geometryData(mode)
	if err != nil {
		return nil, err
	}
	g, err := engine.NewGeometry(gd)
	if err != nil {
		return nil, err
	}
	b.geoms = append(b.geoms, g)
	return g, nil
}

// material returns the material at index idx, creating
// it on first use. A nil idx refers to the default
// material.
func (b *builder) material(idx *int64) (*engine.Material, error) {
	if idx == nil {
		if b.dflMat == nil {
			m, err := engine.NewPBR(&engine.PBR{
				Name:       "default",
				BaseColor:  engine.BaseColor{Factor: [4]float32{1, 1, 1, 1}},
				MetalRough: engine.MetalRough{Metalness: 1, Roughness: 1},
			})
			if err != nil {
				return nil, err
			}
			b.mats = append(b.mats, m)
			b.dflMat = m
		}
		return b.dflMat, nil
	}
	if m, ok := b.materials[*idx]; ok {
		return m, nil
	}
	gm := &b.f.Materials[*idx]
	var (
		m   *engine.Material
		err error
	)
	if gm.Unlit() {
		m, err = b.unlit(gm)
	} else {
		m, err = b.pbr(gm)
	}
	if err != nil {
		return nil, fmt.Errorf("loader: material %d: %w", *idx, err)
	}
	b.mats = append(b.mats, m)
	b.materials[*idx] = m
	return m, nil
}

func (b *builder) pbr(gm *gltf.Material) (*engine.Material, error) {
	prop := engine.PBR{
		Name:        gm.Name,
		BaseColor:   engine.BaseColor{Factor: [4]float32{1, 1, 1, 1}},
		MetalRough:  engine.MetalRough{Metalness: 1, Roughness: 1},
		Normal:      engine.NormalMap{Scale: 1},
		Occlusion:   engine.OcclusionMap{Strength: 1},
		DoubleSided: gm.DoubleSided,
	}
	var err error
	if pm := gm.PBRMetallicRoughness; pm != nil {
		if f := pm.BaseColorFactor; f != nil {
			prop.BaseColor.Factor = *f
		}
		if prop.BaseColor.Texture, err = b.textureInfo(pm.BaseColorTexture, true); err != nil {
			return nil, err
		}
		if f := pm.MetallicFactor; f != nil {
			prop.MetalRough.Metalness = clamp01(*f)
		}
		if f := pm.RoughnessFactor; f != nil {
			prop.MetalRough.Roughness = clamp01(*f)
		}
		if prop.MetalRough.Texture, err = b.textureInfo(pm.MetallicRoughnessTexture, false); err != nil {
			return nil, err
		}
	}
	if t := gm.NormalTexture; t != nil {
		if prop.Normal.Texture, err = b.texture(t.Index, false); err != nil {
			return nil, err
		}
		if t.Scale != nil {
			prop.Normal.Scale = *t.Scale
		}
	}
	if t := gm.OcclusionTexture; t != nil {
		if prop.Occlusion.Texture, err = b.texture(t.Index, false); err != nil {
			return nil, err
		}
		if t.Strength != nil {
			prop.Occlusion.Strength = clamp01(*t.Strength)
		}
	}
	if prop.Emissive.Texture, err = b.textureInfo(gm.EmissiveTexture, true); err != nil {
		return nil, err
	}
	if f := gm.EmissiveFactor; f != nil {
		s, err := gm.EmissiveStrength()
		if err != nil {
			return nil, err
		}
		prop.Emissive.Factor = [3]float32{f[0] * s, f[1] * s, f[2] * s}
	}
	prop.AlphaMode, prop.AlphaCutoff = alpha(gm)
	return engine.NewPBR(&prop)
}

func (b *builder) unlit(gm *gltf.Material) (*engine.Material, error) {
	prop := engine.Unlit{
		Name:        gm.Name,
		BaseColor:   engine.BaseColor{Factor: [4]float32{1, 1, 1, 1}},
		DoubleSided: gm.DoubleSided,
	}
	if pm := gm.PBRMetallicRoughness; pm != nil {
		if f := pm.BaseColorFactor; f != nil {
			prop.BaseColor.Factor = *f
		}
		var err error
		if prop.BaseColor.Texture, err = b.textureInfo(pm.BaseColorTexture, true); err != nil {
			return nil, err
		}
	}
	prop.AlphaMode, prop.AlphaCutoff = alpha(gm)
	return engine.NewUnlit(&prop)
}

func alpha(gm *gltf.Material) (mode int, cutoff float32) {
	switch gm.AlphaMode {
	case gltf.BLEND:
		return engine.AlphaBlend, 0
	case gltf.MASK:
		cutoff = 0.5
		if gm.AlphaCutoff != nil {
			cutoff = *gm.AlphaCutoff
		}
		return engine.AlphaMask, cutoff
	}
	return engine.AlphaOpaque, 0
}

func clamp01(x float32) float32 { return max(0, min(1, x)) }

func (b *builder) textureInfo(t *gltf.TextureInfo, srgb bool) (*engine.Texture, error) {
	if t == nil {
		return nil, nil
	}
	return b.texture(t.Index, srgb)
}

// texture returns the texture at index idx, creating it
// on first use.
// A texture whose image is unavailable is ignored.
func (b *builder) texture(idx int64, srgb bool) (*engine.Texture, error) {
	key := texKey{idx, srgb}
	if t, ok := b.textures[key]; ok {
		return t, nil
	}
	gt := &b.f.Textures[idx]
	src, ok, err := gt.ImageSource()
	if err != nil {
		return nil, err
	}
	if !ok || b.res.images[src] == nil {
		logger.Printf("[!] texture %d has no image, ignoring", idx)
		b.textures[key] = nil
		return nil, nil
	}
	param := engine.TexParam{SRGB: srgb, Name: gt.Name}
	param.Sampler = sampling(b.f, gt.Sampler)
	t, err := engine.NewTexture(b.res.images[src], &param)
	if err != nil {
		return nil, fmt.Errorf("loader: texture %d: %w", idx, err)
	}
	b.texs = append(b.texs, t)
	b.textures[key] = t
	return t, nil
}

// sampling converts the glTF sampler at index idx.
// A nil idx refers to the default sampler (linear
// filtering, repeat wrapping).
func sampling(f *gltf.GLTF, idx *int64) engine.SplrParam {
	p := engine.SplrParam{
		Min:      driver.FLinear,
		Mag:      driver.FLinear,
		Mipmap:   driver.FLinear,
		MaxAniso: math.MaxInt32,
		MaxLOD:   1000,
	}
	if idx == nil {
		return p
	}
	s := &f.Samplers[*idx]
	if s.MagFilter == gltf.NEAREST {
		p.Mag = driver.FNearest
	}
	switch s.MinFilter {
	case gltf.NEAREST:
		p.Min, p.Mipmap = driver.FNearest, driver.FNoMipmap
	case gltf.FLINEAR:
		p.Min, p.Mipmap = driver.FLinear, driver.FNoMipmap
	case gltf.NEAREST_MIPMAP_NEAREST:
		p.Min, p.Mipmap = driver.FNearest, driver.FNearest
	case gltf.LINEAR_MIPMAP_NEAREST:
		p.Min, p.Mipmap = driver.FLinear, driver.FNearest
	case gltf.NEAREST_MIPMAP_LINEAR:
		p.Min, p.Mipmap = driver.FNearest, driver.FLinear
	}
	p.AddrU = addrMode(s.WrapS)
	p.AddrV = addrMode(s.WrapT)
	p.AddrW = driver.AWrap
	return p
}

func addrMode(wrap int64) driver.AddrMode {
	switch wrap {
	case gltf.CLAMP_TO_EDGE:
		return driver.AClamp
	case gltf.MIRRORED_REPEAT:
		return driver.AMirror
	}
	return driver.AWrap
}

// light converts a KHR_lights_punctual light.
// Lights point down the node's -Z axis.
func light(gl *gltf.Light) *engine.Light {
	var (
		r, g, bl  float32 = 1, 1, 1
		intensity float32 = 1
		dir               = mgl32.Vec3{0, 0, -1}
		l         engine.Light
	)
	if c := gl.Color; c != nil {
		r, g, bl = c[0], c[1], c[2]
	}
	if i := gl.Intensity; i != nil {
		intensity = *i
	}
	switch gl.Type {
	case gltf.LDirectional:
		l = (&engine.DistantLight{Direction: dir, Intensity: intensity, R: r, G: g, B: bl}).Light()
	case gltf.LSpot:
		sl := engine.SpotLight{
			Direction:  dir,
			OuterAngle: math.Pi / 4,
			Range:      gl.Range,
			Intensity:  intensity,
			R:          r,
			G:          g,
			B:          bl,
		}
		if s := gl.Spot; s != nil {
			sl.InnerAngle = s.InnerConeAngle
			if s.OuterConeAngle != nil {
				sl.OuterAngle = *s.OuterConeAngle
			}
		}
		l = sl.Light()
	default:
		l = (&engine.PointLight{Range: gl.Range, Intensity: intensity, R: r, G: g, B: bl}).Light()
	}
	return &l
}
