// Copyright 2023 Gustavo C. Viegas. All rights reserved.

// Package engine implements the GPU-resident resources that
// scene nodes refer to: geometry, textures, materials and
// light sources.
//
// Resources are created explicitly and must be released
// explicitly, by calling their Free method, when no longer
// needed. Freeing a resource more than once has no effect.
package engine

import (
	"sync"

	"github.com/gviegas/stage/internal/ctxt"
)

const (
	dflMaxTextureSize = 8192
	dflMaxAniso       = 1
)

// Config is used to configure the engine.
type Config struct {
	// The maximum width/height of textures.
	// Larger images are rejected.
	// It is clamped to the driver's limit.
	//
	// Default is 8192.
	MaxTextureSize int

	// The maximum sampler anisotropy.
	// It is clamped to the driver's limit.
	//
	// Default is 1 (no anisotropic filtering).
	MaxAniso int

	// Whether to create complete mip chains for
	// textures whose sampler uses mipmapping.
	//
	// Default is true.
	Mipmaps bool
}

// DefaultConfig returns the default configuration.
func DefaultConfig() Config {
	return Config{
		MaxTextureSize: dflMaxTextureSize,
		MaxAniso:       dflMaxAniso,
		Mipmaps:        true,
	}
}

var (
	cfgMu sync.RWMutex
	cfg   Config
)

// Configure replaces the engine's configuration
// with config.
// Resources created before the call are unaffected.
func Configure(config *Config) {
	c := *config
	lim := ctxt.Limits()
	if c.MaxTextureSize < 1 || c.MaxTextureSize > lim.MaxImage2D {
		c.MaxTextureSize = lim.MaxImage2D
	}
	c.MaxAniso = max(1, min(c.MaxAniso, lim.MaxAniso))
	cfgMu.Lock()
	cfg = c
	cfgMu.Unlock()
}

// CurrentConfig returns the engine's configuration.
func CurrentConfig() Config {
	cfgMu.RLock()
	defer cfgMu.RUnlock()
	return cfg
}

func init() {
	config := DefaultConfig()
	Configure(&config)
}
