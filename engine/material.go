// Copyright 2023 Gustavo C. Viegas. All rights reserved.

package engine

import (
	"encoding/binary"
	"errors"
	"math"

	"github.com/gviegas/stage/driver"
	"github.com/gviegas/stage/internal/ctxt"
)

const matPrefix = "material: "

func newMatErr(reason string) error { return errors.New(matPrefix + reason) }

// Slot identifies a texture map of a material.
type Slot int

// Texture slots.
const (
	// Base color (diffuse) map.
	SlotMap Slot = iota
	// Baked lighting map.
	SlotLightMap
	// Height map used for bump mapping.
	SlotBumpMap
	// Tangent-space normal map.
	SlotNormalMap
	// Specular intensity map.
	SlotSpecularMap
	// Environment (reflection) map.
	SlotEnvMap
	// Ambient occlusion map.
	SlotAOMap
	// Emissive map.
	SlotEmissiveMap
	// Metallic-roughness map (B: metalness, G: roughness).
	SlotMetalRoughMap

	MaxSlot int = iota
)

// String implements fmt.Stringer.
func (s Slot) String() string {
	switch s {
	case SlotMap:
		return "map"
	case SlotLightMap:
		return "lightMap"
	case SlotBumpMap:
		return "bumpMap"
	case SlotNormalMap:
		return "normalMap"
	case SlotSpecularMap:
		return "specularMap"
	case SlotEnvMap:
		return "envMap"
	case SlotAOMap:
		return "aoMap"
	case SlotEmissiveMap:
		return "emissiveMap"
	case SlotMetalRoughMap:
		return "metalRoughMap"
	default:
		return "!engine.Slot"
	}
}

// Alpha modes.
const (
	// No transparency.
	// Alpha channel is unconditionally set to 1.0.
	AlphaOpaque = iota
	// Composition with background.
	AlphaBlend
	// Either fully opaque or fully transparent,
	// as determined by a cutoff value.
	AlphaMask
)

// Material defines the material properties to be applied
// to geometry during rendering.
// Textures are referenced, not owned: Material.Free does
// not free them, since they may be shared.
type Material struct {
	name        string
	unlit       bool
	maps        [MaxSlot]*Texture
	factors     factors
	alphaMode   int
	doubleSided bool
	consts      driver.Buffer
	freed       bool
}

// factors is the constant data of a material, as laid
// out in its constant buffer.
type factors struct {
	color       [4]float32
	emissive    [3]float32
	alphaCutoff float32
	metalness   float32
	roughness   float32
	normScale   float32
	occStrength float32
}

// constSize is the byte size of a material's constant
// buffer.
const constSize = 16 * 4

func (f *factors) encode(b []byte) {
	v := [16]float32{
		f.color[0], f.color[1], f.color[2], f.color[3],
		f.emissive[0], f.emissive[1], f.emissive[2], f.alphaCutoff,
		f.metalness, f.roughness, f.normScale, f.occStrength,
	}
	for i, x := range v {
		binary.LittleEndian.PutUint32(b[i*4:], math.Float32bits(x))
	}
}

// BaseColor is the material's base color.
type BaseColor struct {
	Texture *Texture
	Factor  [4]float32
}

// MetalRough is the material's metallic-roughness.
type MetalRough struct {
	Texture   *Texture
	Metalness float32
	Roughness float32
}

// NormalMap is the material's normal map.
type NormalMap struct {
	Texture *Texture
	Scale   float32
}

// OcclusionMap is the material's occlusion map.
type OcclusionMap struct {
	Texture  *Texture
	Strength float32
}

// EmissiveMap is the material's emissive map.
type EmissiveMap struct {
	Texture *Texture
	Factor  [3]float32
}

// PBR defines properties of the default material model.
type PBR struct {
	Name        string
	BaseColor   BaseColor
	MetalRough  MetalRough
	Normal      NormalMap
	Occlusion   OcclusionMap
	Emissive    EmissiveMap
	AlphaMode   int
	AlphaCutoff float32
	DoubleSided bool
}

// Unlit defines properties of the unlit material model.
type Unlit struct {
	Name        string
	BaseColor   BaseColor
	AlphaMode   int
	AlphaCutoff float32
	DoubleSided bool
}

// NewPBR creates a new material using the default model.
func NewPBR(prop *PBR) (*Material, error) {
	if err := prop.validate(); err != nil {
		return nil, err
	}
	m := &Material{
		name:        prop.Name,
		alphaMode:   prop.AlphaMode,
		doubleSided: prop.DoubleSided,
		factors: factors{
			color:       prop.BaseColor.Factor,
			emissive:    prop.Emissive.Factor,
			alphaCutoff: prop.AlphaCutoff,
			metalness:   prop.MetalRough.Metalness,
			roughness:   prop.MetalRough.Roughness,
			normScale:   prop.Normal.Scale,
			occStrength: prop.Occlusion.Strength,
		},
	}
	m.maps[SlotMap] = prop.BaseColor.Texture
	m.maps[SlotMetalRoughMap] = prop.MetalRough.Texture
	m.maps[SlotNormalMap] = prop.Normal.Texture
	m.maps[SlotAOMap] = prop.Occlusion.Texture
	m.maps[SlotEmissiveMap] = prop.Emissive.Texture
	if err := m.init(); err != nil {
		return nil, err
	}
	return m, nil
}

// NewUnlit creates a new material using the unlit model.
func NewUnlit(prop *Unlit) (*Material, error) {
	if err := prop.validate(); err != nil {
		return nil, err
	}
	m := &Material{
		name:        prop.Name,
		unlit:       true,
		alphaMode:   prop.AlphaMode,
		doubleSided: prop.DoubleSided,
		factors: factors{
			color:       prop.BaseColor.Factor,
			alphaCutoff: prop.AlphaCutoff,
		},
	}
	m.maps[SlotMap] = prop.BaseColor.Texture
	if err := m.init(); err != nil {
		return nil, err
	}
	return m, nil
}

// init creates the constant buffer of m.
func (m *Material) init() error {
	buf, err := ctxt.GPU().NewBuffer(constSize, true, driver.UShaderConst)
	if err != nil {
		return err
	}
	m.factors.encode(buf.Bytes())
	m.consts = buf
	live.material.Add(1)
	return nil
}

// Parameter validation for New* functions.

func validateTex(t *Texture) error {
	if t != nil && t.Freed() {
		return newMatErr("texture was freed")
	}
	return nil
}

func validateAlpha(mode int, cutoff float32) error {
	switch mode {
	case AlphaOpaque, AlphaBlend:
	case AlphaMask:
		if cutoff < 0 {
			return newMatErr("invalid alpha cutoff value")
		}
	default:
		return newMatErr("undefined alpha mode constant")
	}
	return nil
}

func (p *PBR) validate() error {
	for _, t := range [...]*Texture{
		p.BaseColor.Texture,
		p.MetalRough.Texture,
		p.Normal.Texture,
		p.Occlusion.Texture,
		p.Emissive.Texture,
	} {
		if err := validateTex(t); err != nil {
			return err
		}
	}
	switch {
	case p.MetalRough.Metalness < 0 || p.MetalRough.Metalness > 1:
		return newMatErr("invalid MetalRough.Metalness value")
	case p.MetalRough.Roughness < 0 || p.MetalRough.Roughness > 1:
		return newMatErr("invalid MetalRough.Roughness value")
	case p.Occlusion.Strength < 0 || p.Occlusion.Strength > 1:
		return newMatErr("invalid Occlusion.Strength value")
	}
	return validateAlpha(p.AlphaMode, p.AlphaCutoff)
}

func (u *Unlit) validate() error {
	if err := validateTex(u.BaseColor.Texture); err != nil {
		return err
	}
	return validateAlpha(u.AlphaMode, u.AlphaCutoff)
}

// Name returns the name given at creation.
func (m *Material) Name() string { return m.name }

// Unlit returns whether m uses the unlit model.
func (m *Material) Unlit() bool { return m.unlit }

// Map returns the texture bound to slot s, if any.
func (m *Material) Map(s Slot) *Texture { return m.maps[s] }

// SetMap binds t to slot s.
// t may be nil to unbind the slot.
func (m *Material) SetMap(s Slot, t *Texture) { m.maps[s] = t }

// Textures returns the textures bound to m, in slot
// order. A texture bound to several slots is listed once.
func (m *Material) Textures() []*Texture {
	var ts []*Texture
	for _, t := range m.maps {
		if t == nil {
			continue
		}
		dup := false
		for _, x := range ts {
			if x == t {
				dup = true
				break
			}
		}
		if !dup {
			ts = append(ts, t)
		}
	}
	return ts
}

// BaseColorFactor returns the base color factor of m.
func (m *Material) BaseColorFactor() [4]float32 { return m.factors.color }

// MetalRough returns the metalness and roughness factors
// of m.
func (m *Material) MetalRough() (metalness, roughness float32) {
	return m.factors.metalness, m.factors.roughness
}

// AlphaMode returns the alpha mode of m.
func (m *Material) AlphaMode() int { return m.alphaMode }

// DoubleSided returns whether m disables back-face culling.
func (m *Material) DoubleSided() bool { return m.doubleSided }

// Free invalidates m and destroys its constant buffer.
// Bound textures are not freed.
// Calling Free more than once has no effect.
func (m *Material) Free() {
	if m == nil || m.freed {
		return
	}
	m.consts.Destroy()
	m.consts = nil
	m.freed = true
	live.material.Add(-1)
}

// Freed returns whether m.Free was called.
func (m *Material) Freed() bool { return m != nil && m.freed }
