// Copyright 2024 Gustavo C. Viegas. All rights reserved.

// Package soft implements driver interfaces using host
// memory.
// It is meant for headless use (tools, tests and servers)
// where no graphics device is present. Resources are plain
// byte slices; what it provides over them is bookkeeping:
// every live resource holds an ID in an allocation map, so
// leaks and double destruction can be detected.
package soft

import (
	"errors"
	"fmt"
	"log"
	"os"
	"sync"

	"github.com/willf/bitset"

	"github.com/gviegas/stage/driver"
)

const driverName = "soft"

var logger = log.New(os.Stderr, "soft: ", log.LstdFlags)

// Driver implements driver.Driver and driver.GPU.
type Driver struct {
	mu   sync.Mutex
	open bool
	// Allocation map. A set bit identifies a live
	// resource.
	ids bitset.BitSet
	// Bytes currently allocated, per resource kind.
	bufBytes int64
	imgBytes int64
	lim      driver.Limits
}

func init() {
	driver.Register(&Driver{})
}

// Open initializes the driver.
func (d *Driver) Open() (driver.GPU, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if !d.open {
		d.open = true
		d.lim = driver.Limits{
			MaxImage2D: 16384,
			MaxLayers:  2048,
			MaxBuffer:  1 << 31,
			MaxAniso:   16,
		}
	}
	return d, nil
}

// Name returns the driver name.
func (d *Driver) Name() string { return driverName }

// Close deinitializes the driver.
// Resources that are still alive are reported but
// not invalidated.
func (d *Driver) Close() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if !d.open {
		return
	}
	if n := d.ids.Count(); n > 0 {
		logger.Printf("[!] closing with %d live resource(s)", n)
	}
	d.open = false
}

// Driver returns d.
func (d *Driver) Driver() driver.Driver { return d }

// Limits returns the implementation limits.
func (d *Driver) Limits() driver.Limits { return d.lim }

// Live returns the number of resources that were created
// and not yet destroyed.
func (d *Driver) Live() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return int(d.ids.Count())
}

// Usage returns the number of bytes currently held by
// buffers and images.
func (d *Driver) Usage() (buffers, images int64) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.bufBytes, d.imgBytes
}

// alloc reserves the lowest free ID.
// d.mu must be held.
func (d *Driver) alloc() (uint, error) {
	if !d.open {
		return 0, driver.ErrClosed
	}
	var id uint
	for d.ids.Test(id) {
		id++
	}
	d.ids.Set(id)
	return id, nil
}

// free releases id.
// It panics if id is not live, since that means a
// resource was destroyed twice.
func (d *Driver) free(id uint, kind string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if !d.ids.Test(id) {
		panic(fmt.Sprintf("soft: %s %d destroyed twice", kind, id))
	}
	d.ids.Clear(id)
}

// buffer implements driver.Buffer.
type buffer struct {
	d       *Driver
	id      uint
	visible bool
	data    []byte
}

// NewBuffer creates a new buffer.
func (d *Driver) NewBuffer(size int64, visible bool, usg driver.Usage) (driver.Buffer, error) {
	if size <= 0 {
		return nil, errors.New("soft: invalid buffer size")
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if !d.open {
		return nil, driver.ErrClosed
	}
	if size > d.lim.MaxBuffer {
		return nil, driver.ErrNoDeviceMemory
	}
	id, err := d.alloc()
	if err != nil {
		return nil, err
	}
	d.bufBytes += size
	return &buffer{
		d:       d,
		id:      id,
		visible: visible,
		data:    make([]byte, size),
	}, nil
}

// Visible returns whether the buffer is host visible.
func (b *buffer) Visible() bool { return b.visible }

// Bytes returns the buffer's memory if it is host visible.
func (b *buffer) Bytes() []byte {
	if !b.visible {
		return nil
	}
	return b.data
}

// Cap returns the capacity of the buffer.
func (b *buffer) Cap() int64 { return int64(len(b.data)) }

// Destroy destroys the buffer.
func (b *buffer) Destroy() {
	b.d.free(b.id, "buffer")
	b.d.mu.Lock()
	b.d.bufBytes -= int64(len(b.data))
	b.d.mu.Unlock()
	b.data = nil
}

// image implements driver.Image.
type image struct {
	d      *Driver
	id     uint
	pf     driver.PixelFmt
	size   driver.Dim3D
	layers int
	levels [][]byte
}

// NewImage creates a new image.
// Each layer of each level is stored contiguously.
func (d *Driver) NewImage(pf driver.PixelFmt, size driver.Dim3D, layers, levels int, usg driver.Usage) (driver.Image, error) {
	switch {
	case pf.Size() == 0:
		return nil, errors.New("soft: invalid pixel format")
	case size.Width < 1 || size.Height < 1:
		return nil, errors.New("soft: invalid image size")
	case layers < 1 || levels < 1:
		return nil, errors.New("soft: invalid image layers/levels")
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if !d.open {
		return nil, driver.ErrClosed
	}
	if size.Width > d.lim.MaxImage2D || size.Height > d.lim.MaxImage2D || layers > d.lim.MaxLayers {
		return nil, errors.New("soft: image exceeds limits")
	}
	id, err := d.alloc()
	if err != nil {
		return nil, err
	}
	depth := max(1, size.Depth)
	img := &image{d: d, id: id, pf: pf, size: size, layers: layers}
	w, h := size.Width, size.Height
	for i := 0; i < levels; i++ {
		n := w * h * depth * layers * pf.Size()
		img.levels = append(img.levels, make([]byte, n))
		d.imgBytes += int64(n)
		w = max(1, w/2)
		h = max(1, h/2)
	}
	return img, nil
}

// Upload copies data into the given layer/level.
func (m *image) Upload(layer, level int, data []byte) error {
	if level < 0 || level >= len(m.levels) || layer < 0 || layer >= m.layers {
		return errors.New("soft: layer/level out of bounds")
	}
	n := len(m.levels[level]) / m.layers
	if len(data) != n {
		return fmt.Errorf("soft: upload size mismatch (have %d, want %d)", len(data), n)
	}
	copy(m.levels[level][layer*n:], data)
	return nil
}

// Size returns the size of mip level 0.
func (m *image) Size() driver.Dim3D { return m.size }

// Destroy destroys the image.
func (m *image) Destroy() {
	m.d.free(m.id, "image")
	var n int64
	for _, l := range m.levels {
		n += int64(len(l))
	}
	m.d.mu.Lock()
	m.d.imgBytes -= n
	m.d.mu.Unlock()
	m.levels = nil
}

// sampler implements driver.Sampler.
type sampler struct {
	d     *Driver
	id    uint
	param driver.Sampling
}

// NewSampler creates a new sampler.
func (d *Driver) NewSampler(spln *driver.Sampling) (driver.Sampler, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if !d.open {
		return nil, driver.ErrClosed
	}
	if spln.MaxAniso < 1 || spln.MaxAniso > d.lim.MaxAniso {
		return nil, errors.New("soft: invalid sampler anisotropy")
	}
	id, err := d.alloc()
	if err != nil {
		return nil, err
	}
	return &sampler{d: d, id: id, param: *spln}, nil
}

// Destroy destroys the sampler.
func (s *sampler) Destroy() { s.d.free(s.id, "sampler") }
