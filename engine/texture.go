// Copyright 2022 Gustavo C. Viegas. All rights reserved.

package engine

import (
	"errors"
	"image"

	"golang.org/x/image/draw"

	"github.com/gviegas/stage/driver"
	"github.com/gviegas/stage/internal/ctxt"
)

const texPrefix = "texture: "

func newTexErr(reason string) error { return errors.New(texPrefix + reason) }

// SplrParam describes the sampling state of a texture.
type SplrParam = driver.Sampling

// TexParam describes parameters of a texture.
type TexParam struct {
	// SRGB indicates that color data is sRGB-encoded.
	// Base color and emissive maps are; data maps
	// (normal, occlusion, metal/roughness) are not.
	SRGB bool
	// Sampler describes how the texture is sampled.
	// MaxAniso is clamped to the engine's Config.
	Sampler SplrParam
	// Name for the texture.
	// It is not used by engine code.
	Name string
}

// Texture is a 2D image stored in GPU memory, along with
// its sampler.
type Texture struct {
	image   driver.Image
	sampler driver.Sampler
	pf      driver.PixelFmt
	width   int
	height  int
	levels  int
	name    string
	freed   bool
}

// ComputeLevels computes the number of levels of a full
// mip chain for an image of the given size.
func ComputeLevels(width, height int) int {
	n := 1
	for s := max(width, height); s > 1; s /= 2 {
		n++
	}
	return n
}

// NewTexture creates a new texture from img.
// img is converted to 8-bit RGBA. If the sampler uses
// mipmapping and Config.Mipmaps is set, lower levels are
// generated by bilinear downscaling.
func NewTexture(img image.Image, param *TexParam) (t *Texture, err error) {
	if img == nil {
		return nil, newTexErr("nil image")
	}
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	conf := CurrentConfig()
	switch {
	case w < 1 || h < 1:
		return nil, newTexErr("empty image")
	case w > conf.MaxTextureSize || h > conf.MaxTextureSize:
		return nil, newTexErr("image exceeds Config.MaxTextureSize")
	}
	levels := 1
	if conf.Mipmaps && param.Sampler.Mipmap != driver.FNoMipmap {
		levels = ComputeLevels(w, h)
	}
	pf := driver.RGBA8un
	if param.SRGB {
		pf = driver.RGBA8sRGB
	}
	gpu := ctxt.GPU()
	t = &Texture{
		pf:     pf,
		width:  w,
		height: h,
		levels: levels,
		name:   param.Name,
	}
	if t.image, err = gpu.NewImage(pf, driver.Dim3D{Width: w, Height: h}, 1, levels, driver.UShaderSample); err != nil {
		return nil, err
	}
	if err = t.upload(img); err != nil {
		t.image.Destroy()
		return nil, err
	}
	splr := param.Sampler
	splr.MaxAniso = max(1, min(splr.MaxAniso, conf.MaxAniso))
	if levels == 1 {
		splr.Mipmap = driver.FNoMipmap
	}
	if t.sampler, err = gpu.NewSampler(&splr); err != nil {
		t.image.Destroy()
		return nil, err
	}
	live.texture.Add(1)
	return t, nil
}

// upload copies img and its downscaled levels into t.image.
func (t *Texture) upload(img image.Image) error {
	level := toRGBA(img)
	for i := 0; i < t.levels; i++ {
		if err := t.image.Upload(0, i, level.Pix); err != nil {
			return err
		}
		if i+1 == t.levels {
			break
		}
		b := level.Bounds()
		next := image.NewRGBA(image.Rect(0, 0, max(1, b.Dx()/2), max(1, b.Dy()/2)))
		draw.BiLinear.Scale(next, next.Bounds(), level, b, draw.Src, nil)
		level = next
	}
	return nil
}

// toRGBA returns img as a tightly packed *image.RGBA.
func toRGBA(img image.Image) *image.RGBA {
	if x, ok := img.(*image.RGBA); ok && x.Rect.Min == (image.Point{}) && len(x.Pix) == x.Rect.Dx()*x.Rect.Dy()*4 {
		return x
	}
	b := img.Bounds()
	dst := image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(dst, dst.Bounds(), img, b.Min, draw.Src)
	return dst
}

// Name returns the name given at creation.
func (t *Texture) Name() string { return t.name }

// PixelFmt returns the texture's driver.PixelFmt.
func (t *Texture) PixelFmt() driver.PixelFmt { return t.pf }

// Width returns the texture's width.
func (t *Texture) Width() int { return t.width }

// Height returns the texture's height.
func (t *Texture) Height() int { return t.height }

// Levels returns the number of mip levels in the texture.
func (t *Texture) Levels() int { return t.levels }

// Free invalidates t and destroys the driver resources.
// Calling Free more than once has no effect.
func (t *Texture) Free() {
	if t == nil || t.freed {
		return
	}
	t.sampler.Destroy()
	t.image.Destroy()
	t.sampler = nil
	t.image = nil
	t.freed = true
	live.texture.Add(-1)
}

// Freed returns whether t.Free was called.
func (t *Texture) Freed() bool { return t != nil && t.freed }
