// Copyright 2023 Gustavo C. Viegas. All rights reserved.

package engine

import (
	"math"

	"github.com/go-gl/mathgl/mgl32"
)

// LightType is the type of a light source.
type LightType int

// Light types.
const (
	AmbientLightType LightType = iota
	DistantLightType
	PointLightType
	SpotLightType
)

// String implements fmt.Stringer.
func (t LightType) String() string {
	switch t {
	case AmbientLightType:
		return "ambient"
	case DistantLightType:
		return "distant"
	case PointLightType:
		return "point"
	case SpotLightType:
		return "spot"
	default:
		return "!engine.LightType"
	}
}

// Light defines a light source.
// Lights are placed in the scene by attaching them to a
// node; the node's world transform provides the light's
// position, and directions are given in node space.
// The zero value for Light is not valid; one must call
// AmbientLight.Light, DistantLight.Light, PointLight.Light
// or SpotLight.Light to create an initialized Light.
type Light struct {
	typ       LightType
	color     mgl32.Vec3
	intensity float32
	direction mgl32.Vec3
	rng       float32
	inner     float32
	outer     float32
	shadow    *Shadow
}

// Shadow describes the shadow map of a light that casts
// shadows.
type Shadow struct {
	// Width and height of the shadow map.
	MapSize [2]int
	// Near and far planes of the shadow camera.
	Near, Far float32
	// Depth bias applied when sampling the map.
	Bias float32
}

// Type returns the type of l.
func (l *Light) Type() LightType { return l.typ }

// SetDirection sets the direction of l.
// It normalizes d.
// Only applies to distant and spot lights.
func (l *Light) SetDirection(d mgl32.Vec3) {
	if d.Len() == 0 {
		d = mgl32.Vec3{0, 0, -1}
	}
	l.direction = d.Normalize()
}

// Direction returns the direction of l.
// Only applies to distant and spot lights.
func (l *Light) Direction() mgl32.Vec3 { return l.direction }

// SetIntensity sets the intensity of l.
func (l *Light) SetIntensity(i float32) { l.intensity = max(0, i) }

// Intensity returns the intensity of l.
func (l *Light) Intensity() float32 { return l.intensity }

// SetRange sets the falloff range of l.
// Only applies to point and spot lights.
func (l *Light) SetRange(r float32) { l.rng = max(0, r) }

// Range returns the falloff range of l.
// Only applies to point and spot lights.
func (l *Light) Range() float32 { return l.rng }

// SetColor sets the RGB color of l.
func (l *Light) SetColor(r, g, b float32) { l.color = mgl32.Vec3{r, g, b} }

// Color returns the RGB color of l.
func (l *Light) Color() (r, g, b float32) { return l.color[0], l.color[1], l.color[2] }

// SetConeAngles sets the inner/outer cone angles of l.
// Cone angles that exceed math.Pi/2, or that are less
// than zero, will be clamped. The inner angle will be
// adjusted such that it is less than the outer angle.
// Only applies to spot lights.
func (l *Light) SetConeAngles(inner, outer float32) {
	i := max(0, min(float64(inner), math.Pi/2-1e-6))
	o := max(i+1e-6, min(float64(outer), math.Pi/2))
	l.inner = float32(i)
	l.outer = float32(o)
}

// ConeAngles returns the inner/outer cone angles of l.
// Only applies to spot lights.
func (l *Light) ConeAngles() (inner, outer float32) { return l.inner, l.outer }

// SetShadow enables shadow casting for l.
// A nil s disables it.
// Ambient lights cannot cast shadows.
func (l *Light) SetShadow(s *Shadow) {
	if s == nil || l.typ == AmbientLightType {
		l.shadow = nil
		return
	}
	x := *s
	x.MapSize[0] = max(1, x.MapSize[0])
	x.MapSize[1] = max(1, x.MapSize[1])
	l.shadow = &x
}

// Shadow returns the shadow settings of l.
// It returns false if l does not cast shadows.
func (l *Light) Shadow() (Shadow, bool) {
	if l.shadow == nil {
		return Shadow{}, false
	}
	return *l.shadow, true
}

// AmbientLight is a light that illuminates all geometry
// equally, from no particular direction.
type AmbientLight struct {
	Intensity float32
	R, G, B   float32
}

// Light creates the light source described by t.
func (t *AmbientLight) Light() (light Light) {
	light.typ = AmbientLightType
	light.SetIntensity(t.Intensity)
	light.SetColor(t.R, t.G, t.B)
	return
}

// DistantLight is a directional light.
// The light is emitted in the given Direction.
// It behaves as if located infinitely far way.
type DistantLight struct {
	Direction mgl32.Vec3
	Intensity float32
	R, G, B   float32
}

// Light creates the light source described by t.
// t.R/G/B must be in the range [0, 1].
func (t *DistantLight) Light() (light Light) {
	light.typ = DistantLightType
	light.SetIntensity(t.Intensity)
	light.SetColor(t.R, t.G, t.B)
	light.SetDirection(t.Direction)
	return
}

// PointLight is an omnidirectional, positional light.
// Range determines the area affected by the light.
type PointLight struct {
	Range     float32
	Intensity float32
	R, G, B   float32
}

// Light creates the light source described by t.
// t.Range may be set to 0 to indicate an infinite range.
func (t *PointLight) Light() (light Light) {
	light.typ = PointLightType
	light.SetIntensity(t.Intensity)
	light.SetRange(t.Range)
	light.SetColor(t.R, t.G, t.B)
	return
}

// SpotLight is a directional, positional light.
// The light is emitted in a cone in the given Direction.
// InnerAngle and OuterAngle (in radians), alongside
// Range, determine the area affected by the light.
type SpotLight struct {
	Direction  mgl32.Vec3
	InnerAngle float32
	OuterAngle float32
	Range      float32
	Intensity  float32
	R, G, B    float32
}

// Light creates the light source described by t.
// The cone angles will be adjusted as per
// Light.SetConeAngles.
func (t *SpotLight) Light() (light Light) {
	light.typ = SpotLightType
	light.SetIntensity(t.Intensity)
	light.SetRange(t.Range)
	light.SetColor(t.R, t.G, t.B)
	light.SetConeAngles(t.InnerAngle, t.OuterAngle)
	light.SetDirection(t.Direction)
	return
}
