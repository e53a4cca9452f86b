// Copyright 2024 Gustavo C. Viegas. All rights reserved.

// Package draco configures the decoding of Draco-compressed
// mesh data (KHR_draco_mesh_compression).
//
// The bitstream itself is decoded by a Codec. Codecs are
// registered by name, usually from an init function, and
// are instantiated from the decoder module found at the
// path configured with Decoder.SetDecoderPath.
package draco

import (
	"errors"
	"log"
	"os"
	"slices"
	"sync"
)

// DefaultPaths are the decoder locations tried, in order,
// when loading compressed assets.
var DefaultPaths = []string{
	"https://www.gstatic.com/draco/versioned/decoders/1.5.6/",
	"https://unpkg.com/three@0.160.0/examples/jsm/libs/draco/",
	"/draco/",
}

// ModuleFile is the name of the decoder module, relative
// to the decoder path.
const ModuleFile = "draco_decoder.wasm"

// ErrClosed means that the Decoder was closed.
var ErrClosed = errors.New("draco: decoder is closed")

// ErrNoDecoder means that compressed data could not be
// decoded because no decoder is available.
var ErrNoDecoder = errors.New("draco: no decoder available")

func newErr(reason string) error { return errors.New("draco: " + reason) }

var logger = log.New(os.Stderr, "draco: ", log.LstdFlags)

// Attribute is decoded attribute data.
// Data holds Components values per vertex, converted to
// float32 regardless of the stored type.
type Attribute struct {
	Components int
	Data       []float32
}

// Mesh is a decoded mesh.
type Mesh struct {
	VertexCount int
	// Attributes maps glTF attribute semantics
	// (e.g., "POSITION") to decoded data.
	Attributes map[string]Attribute
	// Indices is nil for point clouds.
	Indices []uint32
}

// validate checks that m is consistent.
func (m *Mesh) validate() error {
	if m == nil || m.VertexCount < 1 {
		return newErr("empty mesh")
	}
	if _, ok := m.Attributes["POSITION"]; !ok {
		return newErr("mesh has no POSITION attribute")
	}
	for k, a := range m.Attributes {
		if a.Components < 1 || a.Components > 4 || len(a.Data) != a.Components*m.VertexCount {
			return newErr("malformed " + k + " attribute")
		}
	}
	for _, i := range m.Indices {
		if int(i) >= m.VertexCount {
			return newErr("index out of range")
		}
	}
	return nil
}

// Codec is the interface that decodes Draco bitstreams.
type Codec interface {
	// Decode decodes data.
	// attrs maps glTF attribute semantics to the unique
	// IDs of the attributes in the bitstream.
	Decode(data []byte, attrs map[string]int64) (*Mesh, error)

	// Close releases the codec.
	Close() error
}

// Factory creates a Codec from the contents of the decoder
// module.
type Factory func(module []byte) (Codec, error)

// Register registers a codec Factory.
// If a codec with the same name has already been
// registered, it will be replaced by f.
func Register(name string, f Factory) {
	mu.Lock()
	defer mu.Unlock()
	if i := slices.IndexFunc(codecs, func(c codec) bool { return c.name == name }); i >= 0 {
		codecs[i].new = f
		logger.Printf("[!] codec '%s' replaced", name)
		return
	}
	codecs = append(codecs, codec{name, f})
}

// Codecs returns the names of the registered codecs.
func Codecs() []string {
	mu.Lock()
	defer mu.Unlock()
	s := make([]string, len(codecs))
	for i := range codecs {
		s[i] = codecs[i].name
	}
	return s
}

type codec struct {
	name string
	new  Factory
}

// Variables used for codec registration.
var (
	mu     sync.Mutex
	codecs []codec
)

// factories returns a copy of the registered factories.
func factories() []codec {
	mu.Lock()
	defer mu.Unlock()
	return slices.Clone(codecs)
}
