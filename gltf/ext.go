// Copyright 2023 Gustavo C. Viegas. All rights reserved.

package gltf

import (
	"encoding/json"
)

// Names of the extensions this package knows about.
const (
	ExtDraco            = "KHR_draco_mesh_compression"
	ExtTextureWebP      = "EXT_texture_webp"
	ExtLightsPunctual   = "KHR_lights_punctual"
	ExtEmissiveStrength = "KHR_materials_emissive_strength"
	ExtUnlit            = "KHR_materials_unlit"
)

// Supported reports whether ext is one of the extensions
// this package knows about.
func Supported(ext string) bool {
	switch ext {
	case ExtDraco, ExtTextureWebP, ExtLightsPunctual, ExtEmissiveStrength, ExtUnlit:
		return true
	}
	return false
}

// Extensions maps extension names to undecoded extension
// objects.
type Extensions map[string]json.RawMessage

// Decode decodes the extension object named name into v.
// It returns false if e has no such extension.
func (e Extensions) Decode(name string, v any) (bool, error) {
	raw, ok := e[name]
	if !ok {
		return false, nil
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return true, newErr("invalid " + name + " extension: " + err.Error())
	}
	return true, nil
}

// Set encodes v as the extension object named name.
// It returns the updated map, which is allocated if e
// is nil.
func (e Extensions) Set(name string, v any) (Extensions, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return e, err
	}
	if e == nil {
		e = make(Extensions)
	}
	e[name] = raw
	return e, nil
}

// primitive.extensions.KHR_draco_mesh_compression.
type Draco struct {
	BufferView int64            `json:"bufferView"`
	Attributes map[string]int64 `json:"attributes"`
}

// Draco returns the KHR_draco_mesh_compression extension
// of p, or nil if p is not compressed.
func (p *Primitive) Draco() (*Draco, error) {
	var d Draco
	if ok, err := p.Extensions.Decode(ExtDraco, &d); !ok || err != nil {
		return nil, err
	}
	return &d, nil
}

// texture.extensions.EXT_texture_webp.
type TextureWebP struct {
	Source int64 `json:"source"`
}

// ImageSource returns the image index that t refers to.
// A WebP source given by EXT_texture_webp takes
// precedence over t.Source. It returns false if t has
// no source at all.
func (t *Texture) ImageSource() (int64, bool, error) {
	var w TextureWebP
	ok, err := t.Extensions.Decode(ExtTextureWebP, &w)
	switch {
	case err != nil:
		return 0, false, err
	case ok:
		return w.Source, true, nil
	case t.Source != nil:
		return *t.Source, true, nil
	}
	return 0, false, nil
}

// glTF.extensions.KHR_lights_punctual.
type KHRLightsPunctual struct {
	Lights     []Light    `json:"lights"`
	Extensions Extensions `json:"extensions,omitempty"`
	Extras     any        `json:"extras,omitempty"`
}

// Lights returns the punctual lights defined by f.
func (f *GLTF) Lights() ([]Light, error) {
	var l KHRLightsPunctual
	if ok, err := f.Extensions.Decode(ExtLightsPunctual, &l); !ok || err != nil {
		return nil, err
	}
	return l.Lights, nil
}

// KHR_lights_punctual.lights' element.
type Light struct {
	Color      *[3]float32 `json:"color,omitempty"`     // Default is [1, 1, 1].
	Intensity  *float32    `json:"intensity,omitempty"` // Default is 1.
	Spot       *Spot       `json:"spot,omitempty"`
	Range      float32     `json:"range,omitempty"` // 0 for infinite range.
	Type       string      `json:"type"`
	Name       string      `json:"name,omitempty"`
	Extensions Extensions  `json:"extensions,omitempty"`
	Extras     any         `json:"extras,omitempty"`
}

// KHR_lights_punctual.light.type values.
const (
	LDirectional = "directional"
	LPoint       = "point"
	LSpot        = "spot"
)

// KHR_lights_punctual.light.spot.
type Spot struct {
	InnerConeAngle float32    `json:"innerConeAngle,omitempty"` // Default is 0.
	OuterConeAngle *float32   `json:"outerConeAngle,omitempty"` // Default is 0.7853981633974483.
	Extensions     Extensions `json:"extensions,omitempty"`
	Extras         any        `json:"extras,omitempty"`
}

// node.extensions.KHR_lights_punctual.
type NodeLight struct {
	Light int64 `json:"light"`
}

// Light returns the index of the punctual light that n
// refers to. It returns false if n has no light.
func (n *Node) Light() (int64, bool, error) {
	var l NodeLight
	ok, err := n.Extensions.Decode(ExtLightsPunctual, &l)
	if !ok || err != nil {
		return 0, false, err
	}
	return l.Light, true, nil
}

// material.extensions.KHR_materials_emissive_strength.
type EmissiveStrength struct {
	EmissiveStrength *float32 `json:"emissiveStrength,omitempty"` // Default is 1.
}

// EmissiveStrength returns the emissive strength of m.
// It is 1 unless m uses KHR_materials_emissive_strength.
func (m *Material) EmissiveStrength() (float32, error) {
	var s EmissiveStrength
	ok, err := m.Extensions.Decode(ExtEmissiveStrength, &s)
	if !ok || err != nil || s.EmissiveStrength == nil {
		return 1, err
	}
	return *s.EmissiveStrength, nil
}

// Unlit returns whether m uses KHR_materials_unlit.
func (m *Material) Unlit() bool {
	_, ok := m.Extensions[ExtUnlit]
	return ok
}
