// Copyright 2024 Gustavo C. Viegas. All rights reserved.

package draco

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

// Decoder decodes compressed primitives using the decoder
// module found at a configured path.
// The codec is instantiated on first use.
// Decoder methods are safe for concurrent use.
type Decoder struct {
	client *http.Client

	mu     sync.Mutex
	path   string
	codec  Codec
	active int
	closed bool
}

// NewDecoder creates a new Decoder.
// client is used to probe and fetch remote decoder modules.
// If it is nil, http.DefaultClient is used.
func NewDecoder(client *http.Client) *Decoder {
	if client == nil {
		client = http.DefaultClient
	}
	return &Decoder{client: client}
}

// IsURL reports whether path refers to a remote location.
func IsURL(path string) bool {
	return strings.HasPrefix(path, "http://") || strings.HasPrefix(path, "https://")
}

// SetDecoderPath sets the location of the decoder module.
// The location is probed before it is set: remote paths
// must answer a HEAD request for ModuleFile successfully
// and local paths must name an existing directory.
// On failure, the current path is left unchanged.
func (d *Decoder) SetDecoderPath(ctx context.Context, path string) error {
	if path == "" {
		return newErr("empty decoder path")
	}
	d.mu.Lock()
	closed := d.closed
	d.mu.Unlock()
	if closed {
		return ErrClosed
	}
	if err := d.probe(ctx, path); err != nil {
		return err
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return ErrClosed
	}
	if d.path != path {
		if d.active > 0 {
			return newErr("decoder path changed while decoding")
		}
		d.closeCodec()
	}
	d.path = path
	return nil
}

// DecoderPath returns the current decoder path.
// It is empty if no path was set.
func (d *Decoder) DecoderPath() string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.path
}

func (d *Decoder) probe(ctx context.Context, path string) error {
	if !IsURL(path) {
		fi, err := os.Stat(path)
		if err != nil {
			return fmt.Errorf("draco: probing %s: %w", path, err)
		}
		if !fi.IsDir() {
			return newErr(path + " is not a directory")
		}
		return nil
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodHead, moduleURL(path), nil)
	if err != nil {
		return fmt.Errorf("draco: probing %s: %w", path, err)
	}
	resp, err := d.client.Do(req)
	if err != nil {
		return fmt.Errorf("draco: probing %s: %w", path, err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("draco: probing %s: %s", path, resp.Status)
	}
	return nil
}

func moduleURL(path string) string {
	if !strings.HasSuffix(path, "/") {
		path += "/"
	}
	return path + ModuleFile
}

// module reads the decoder module from path.
func (d *Decoder) module(ctx context.Context, path string) ([]byte, error) {
	if !IsURL(path) {
		return os.ReadFile(filepath.Join(path, ModuleFile))
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, moduleURL(path), nil)
	if err != nil {
		return nil, err
	}
	resp, err := d.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("draco: fetching %s: %s", req.URL, resp.Status)
	}
	return io.ReadAll(resp.Body)
}

// acquire returns the codec, creating it if needed, and
// marks a decode as active.
func (d *Decoder) acquire(ctx context.Context) (Codec, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	switch {
	case d.closed:
		return nil, ErrClosed
	case d.path == "":
		return nil, ErrNoDecoder
	}
	if d.codec == nil {
		fs := factories()
		if len(fs) == 0 {
			return nil, fmt.Errorf("%w: no codec registered", ErrNoDecoder)
		}
		mod, err := d.module(ctx, d.path)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrNoDecoder, err)
		}
		var errs []error
		for _, f := range fs {
			c, err := f.new(mod)
			if err == nil {
				d.codec = c
				break
			}
			errs = append(errs, fmt.Errorf("codec '%s': %w", f.name, err))
		}
		if d.codec == nil {
			return nil, fmt.Errorf("%w: %w", ErrNoDecoder, errors.Join(errs...))
		}
	}
	d.active++
	return d.codec, nil
}

// release undoes acquire. The codec is closed if d was
// closed while decoding.
func (d *Decoder) release() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.active--
	if d.closed && d.active == 0 {
		d.closeCodec()
	}
}

func (d *Decoder) closeCodec() {
	if d.codec == nil {
		return
	}
	if err := d.codec.Close(); err != nil {
		logger.Printf("[!] closing codec: %v", err)
	}
	d.codec = nil
}

// Decode decodes a compressed primitive.
// attrs maps glTF attribute semantics to the unique IDs
// of the attributes in data.
// It returns ErrNoDecoder if no decoder path was set or
// no codec could be created, and ErrClosed if d was
// closed.
func (d *Decoder) Decode(ctx context.Context, data []byte, attrs map[string]int64) (*Mesh, error) {
	c, err := d.acquire(ctx)
	if err != nil {
		return nil, err
	}
	defer d.release()
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m, err := c.Decode(data, attrs)
	if err != nil {
		return nil, fmt.Errorf("draco: decoding: %w", err)
	}
	if err := m.validate(); err != nil {
		return nil, err
	}
	return m, nil
}

// Close releases the decoder.
// Decodes in progress are allowed to complete; further
// calls to Decode fail with ErrClosed.
// Calling Close more than once has no effect.
func (d *Decoder) Close() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return
	}
	d.closed = true
	if d.active == 0 {
		d.closeCodec()
	}
}
