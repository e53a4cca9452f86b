// Copyright 2023 Gustavo C. Viegas. All rights reserved.

package engine

import (
	"math"
	"testing"

	"github.com/go-gl/mathgl/mgl32"
)

func TestDistantLight(t *testing.T) {
	l := (&DistantLight{
		Direction: mgl32.Vec3{0, -10, 0},
		Intensity: 0.8,
		R:         1, G: 1, B: 1,
	}).Light()
	if x := l.Type(); x != DistantLightType {
		t.Fatalf("Light.Type:\nhave %v\nwant %v", x, DistantLightType)
	}
	if x := l.Direction(); !x.ApproxEqual(mgl32.Vec3{0, -1, 0}) {
		t.Fatalf("Light.Direction:\nhave %v\nwant [0 -1 0]", x)
	}
	if _, ok := l.Shadow(); ok {
		t.Fatal("Light.Shadow: shadows must be disabled by default")
	}
	l.SetShadow(&Shadow{MapSize: [2]int{2048, 2048}, Near: 0.5, Far: 500})
	s, ok := l.Shadow()
	if !ok || s.MapSize != [2]int{2048, 2048} || s.Near != 0.5 || s.Far != 500 {
		t.Fatalf("Light.Shadow:\nhave %v, %t\nwant {[2048 2048] 0.5 500 0}, true", s, ok)
	}
	l.SetShadow(nil)
	if _, ok := l.Shadow(); ok {
		t.Fatal("Light.SetShadow(nil): shadows must be disabled")
	}
}

func TestAmbientLight(t *testing.T) {
	l := (&AmbientLight{Intensity: -1, R: 0.5, G: 0.5, B: 0.5}).Light()
	if x := l.Intensity(); x != 0 {
		t.Fatalf("Light.Intensity:\nhave %v\nwant 0", x)
	}
	l.SetShadow(&Shadow{})
	if _, ok := l.Shadow(); ok {
		t.Fatal("Light.SetShadow: ambient lights cannot cast shadows")
	}
	if r, g, b := l.Color(); r != 0.5 || g != 0.5 || b != 0.5 {
		t.Fatalf("Light.Color:\nhave %v, %v, %v\nwant 0.5, 0.5, 0.5", r, g, b)
	}
}

func TestSpotLight(t *testing.T) {
	l := (&SpotLight{
		Direction:  mgl32.Vec3{0, 0, -1},
		InnerAngle: math.Pi,
		OuterAngle: -1,
		Range:      10,
		Intensity:  1,
	}).Light()
	inner, outer := l.ConeAngles()
	if !(inner >= 0 && inner < outer && outer <= math.Pi/2) {
		t.Fatalf("Light.ConeAngles: bad clamping\nhave %v, %v", inner, outer)
	}
	if x := l.Range(); x != 10 {
		t.Fatalf("Light.Range:\nhave %v\nwant 10", x)
	}
}
