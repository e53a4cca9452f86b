// Copyright 2024 Gustavo C. Viegas. All rights reserved.

// Package loader loads glTF 2.0 assets into scene graphs.
//
// Assets are read from local files or http(s) URLs, in
// either the JSON or the binary (GLB) container. External
// buffers and images are resolved concurrently. Geometry
// compressed with KHR_draco_mesh_compression is decoded
// by a draco.Decoder.
package loader

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"log"
	"net/http"
	"os"

	_ "golang.org/x/image/webp"
	"golang.org/x/sync/errgroup"

	"github.com/gviegas/stage/draco"
	"github.com/gviegas/stage/gltf"
	"github.com/gviegas/stage/node"
)

func newErr(reason string) error { return errors.New("loader: " + reason) }

var logger = log.New(os.Stderr, "loader: ", log.LstdFlags)

// dflConcurrency is the default number of resources
// resolved concurrently.
const dflConcurrency = 4

// Loader loads glTF assets.
// The zero value is ready for use: it loads uncompressed
// assets only, using http.DefaultClient for remote ones.
type Loader struct {
	// Decoder decodes Draco-compressed primitives.
	// If nil, compressed primitives load from their
	// uncompressed fallback, if any.
	Decoder *draco.Decoder

	// Client fetches remote resources.
	// If nil, http.DefaultClient is used.
	Client *http.Client

	// BaseDir is the directory against which relative
	// local paths are resolved.
	BaseDir string

	// Concurrency limits the number of buffers and images
	// resolved at once. Values less than 1 mean 4.
	Concurrency int
}

// Asset is a loaded glTF asset.
type Asset struct {
	// Scene is the root of the asset's default scene.
	// It is nil if the asset defines no scene.
	Scene *node.Node

	// Extras is the asset's application-specific data.
	Extras map[string]any
}

// Load loads the asset at path.
// onProgress, if not nil, is called as the main file is
// read; panics in it are recovered.
// Resources created before a failure are freed.
func (l *Loader) Load(ctx context.Context, path string, onProgress func(Progress)) (*Asset, error) {
	data, err := l.Fetch(ctx, path, onProgress)
	if err != nil {
		return nil, fmt.Errorf("loader: fetching %s: %w", path, err)
	}
	return l.Parse(ctx, data, path)
}

// Parse loads the asset whose contents are data.
// base is the location of the asset, against which
// relative URIs are resolved.
func (l *Loader) Parse(ctx context.Context, data []byte, base string) (*Asset, error) {
	f, bin, err := gltf.Parse(data)
	if err != nil {
		return nil, err
	}
	if err := f.Check(); err != nil {
		return nil, err
	}
	for _, x := range f.ExtensionsUsed {
		if !gltf.Supported(x) {
			logger.Printf("[!] %s: extension %s not supported, ignoring", base, x)
		}
	}
	res, err := l.resolve(ctx, f, bin, base)
	if err != nil {
		return nil, err
	}
	b := newBuilder(ctx, f, res, l.Decoder)
	scn, err := b.scene()
	if err != nil {
		b.free()
		return nil, err
	}
	return &Asset{Scene: scn, Extras: extras(f.Extras)}, nil
}

// resources are the resolved buffers and images of an
// asset.
type resources struct {
	buffers [][]byte
	images  []image.Image
}

// resolve resolves the buffers and the images referenced
// by textures of f.
func (l *Loader) resolve(ctx context.Context, f *gltf.GLTF, bin []byte, base string) (*resources, error) {
	res := &resources{
		buffers: make([][]byte, len(f.Buffers)),
		images:  make([]image.Image, len(f.Images)),
	}
	lim := l.Concurrency
	if lim < 1 {
		lim = dflConcurrency
	}

	eg, gctx := errgroup.WithContext(ctx)
	eg.SetLimit(lim)
	for i := range f.Buffers {
		eg.Go(func() error {
			b, err := l.buffer(gctx, &f.Buffers[i], i, bin, base)
			if err != nil {
				return fmt.Errorf("loader: buffer %d: %w", i, err)
			}
			res.buffers[i] = b
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return nil, err
	}

	used := make([]bool, len(f.Images))
	for i := range f.Textures {
		if src, ok, _ := f.Textures[i].ImageSource(); ok {
			used[src] = true
		}
	}
	eg, gctx = errgroup.WithContext(ctx)
	eg.SetLimit(lim)
	for i := range f.Images {
		if !used[i] {
			continue
		}
		eg.Go(func() error {
			img, err := l.image(gctx, f, res.buffers, i, base)
			if err != nil {
				return fmt.Errorf("loader: image %d: %w", i, err)
			}
			res.images[i] = img
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return nil, err
	}
	return res, nil
}

func (l *Loader) buffer(ctx context.Context, buf *gltf.Buffer, idx int, bin []byte, base string) (b []byte, err error) {
	switch {
	case buf.URI == "":
		if idx != 0 || bin == nil {
			return nil, newErr("buffer has no URI and no GLB BIN chunk")
		}
		b = bin
	case isDataURI(buf.URI):
		if b, _, err = decodeDataURI(buf.URI); err != nil {
			return nil, err
		}
	default:
		uri, err := resolve(base, buf.URI)
		if err != nil {
			return nil, err
		}
		if b, err = l.Fetch(ctx, uri, nil); err != nil {
			return nil, err
		}
	}
	if int64(len(b)) < buf.ByteLength {
		return nil, newErr("buffer is shorter than its byteLength")
	}
	return b, nil
}

func (l *Loader) image(ctx context.Context, f *gltf.GLTF, buffers [][]byte, idx int, base string) (image.Image, error) {
	var (
		data []byte
		err  error
	)
	img := &f.Images[idx]
	switch {
	case img.BufferView != nil:
		v := &f.BufferViews[*img.BufferView]
		data = buffers[v.Buffer][v.ByteOffset : v.ByteOffset+v.ByteLength]
	case isDataURI(img.URI):
		if data, _, err = decodeDataURI(img.URI); err != nil {
			return nil, err
		}
	default:
		uri, err := resolve(base, img.URI)
		if err != nil {
			return nil, err
		}
		if data, err = l.Fetch(ctx, uri, nil); err != nil {
			return nil, err
		}
	}
	m, _, err := image.Decode(bytes.NewReader(data))
	return m, err
}

// extras returns x as a metadata map.
// Non-object extras are kept under the "extras" key.
func extras(x any) map[string]any {
	switch x := x.(type) {
	case nil:
		return nil
	case map[string]any:
		m := make(map[string]any, len(x))
		for k, v := range x {
			m[k] = v
		}
		return m
	default:
		return map[string]any{"extras": x}
	}
}
