// Copyright 2022 Gustavo C. Viegas. All rights reserved.

package engine

import (
	"image"
	"image/color"
	"testing"

	"github.com/gviegas/stage/driver"
)

func newTestImage(w, h int) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.NRGBA{uint8(x), uint8(y), 255, 255})
		}
	}
	return img
}

func TestComputeLevels(t *testing.T) {
	for _, x := range [...]struct{ w, h, n int }{
		{1, 1, 1},
		{2, 1, 2},
		{16, 16, 5},
		{1024, 512, 11},
		{300, 7, 9},
	} {
		if n := ComputeLevels(x.w, x.h); n != x.n {
			t.Fatalf("ComputeLevels(%d, %d):\nhave %d\nwant %d", x.w, x.h, n, x.n)
		}
	}
}

func TestNewTexture(t *testing.T) {
	before := Stats().Textures
	tex, err := NewTexture(newTestImage(16, 8), &TexParam{
		SRGB:    true,
		Sampler: SplrParam{Min: driver.FLinear, Mag: driver.FLinear, Mipmap: driver.FLinear, MaxAniso: 64},
		Name:    "checker",
	})
	if err != nil {
		t.Fatalf("NewTexture failed:\n%#v", err)
	}
	if tex.Width() != 16 || tex.Height() != 8 {
		t.Fatalf("Texture.Width/Height:\nhave %d, %d\nwant 16, 8", tex.Width(), tex.Height())
	}
	if x := tex.Levels(); x != 5 {
		t.Fatalf("Texture.Levels:\nhave %d\nwant 5", x)
	}
	if x := tex.PixelFmt(); x != driver.RGBA8sRGB {
		t.Fatalf("Texture.PixelFmt:\nhave %v\nwant %v", x, driver.RGBA8sRGB)
	}
	if x := tex.Name(); x != "checker" {
		t.Fatalf("Texture.Name:\nhave %q\nwant \"checker\"", x)
	}
	if x := Stats().Textures; x != before+1 {
		t.Fatalf("Stats().Textures:\nhave %d\nwant %d", x, before+1)
	}
	tex.Free()
	tex.Free()
	if !tex.Freed() {
		t.Fatal("Texture.Freed:\nhave false\nwant true")
	}
	if x := Stats().Textures; x != before {
		t.Fatalf("Stats().Textures:\nhave %d\nwant %d", x, before)
	}
}

func TestNewTextureNoMipmap(t *testing.T) {
	tex, err := NewTexture(newTestImage(32, 32), &TexParam{
		Sampler: SplrParam{Mipmap: driver.FNoMipmap, MaxAniso: 1},
	})
	if err != nil {
		t.Fatalf("NewTexture failed:\n%#v", err)
	}
	defer tex.Free()
	if x := tex.Levels(); x != 1 {
		t.Fatalf("Texture.Levels:\nhave %d\nwant 1", x)
	}
}

func TestNewTextureErr(t *testing.T) {
	if _, err := NewTexture(nil, &TexParam{}); err == nil {
		t.Fatal("NewTexture: expected error for nil image")
	}
	if _, err := NewTexture(image.NewRGBA(image.Rect(0, 0, 0, 4)), &TexParam{}); err == nil {
		t.Fatal("NewTexture: expected error for empty image")
	}
	conf := CurrentConfig()
	defer Configure(&conf)
	small := conf
	small.MaxTextureSize = 8
	Configure(&small)
	if _, err := NewTexture(newTestImage(16, 16), &TexParam{Sampler: SplrParam{MaxAniso: 1}}); err == nil {
		t.Fatal("NewTexture: expected error for oversized image")
	}
}
