// Copyright 2024 Gustavo C. Viegas. All rights reserved.

package scene

import (
	"net/http"
	"time"

	"github.com/go-gl/mathgl/mgl32"

	"github.com/gviegas/stage/draco"
	"github.com/gviegas/stage/engine"
)

// LoadTimeout is the default time limit for loading a
// model.
const LoadTimeout = 30 * time.Second

// Shadow settings of the default key light.
const (
	dflShadowMapSize = 2048
	dflShadowNear    = 0.5
	dflShadowFar     = 500
)

// Config is used to configure a Manager.
type Config struct {
	// LoadTimeout limits the duration of LoadModel.
	// Values less than or equal to zero mean no limit.
	//
	// Default is LoadTimeout.
	LoadTimeout time.Duration

	// DecoderPaths are the Draco decoder locations to
	// try, in order. The first one that can be set is
	// used. If none can, compressed primitives load from
	// their uncompressed fallback, if any.
	//
	// Default is draco.DefaultPaths.
	DecoderPaths []string

	// Client fetches remote models and decoder modules.
	//
	// Default is http.DefaultClient.
	Client *http.Client

	// BaseDir is the directory against which relative
	// local model paths are resolved.
	//
	// Default is "" (the working directory).
	BaseDir string

	// Ambient is the ambient fill light.
	//
	// Default is white, with intensity 0.6.
	Ambient engine.AmbientLight

	// Key is the main, shadow-casting, light.
	// Its Direction is ignored; the light points from
	// KeyPosition towards the origin.
	//
	// Default is white, with intensity 0.8.
	Key         engine.DistantLight
	KeyPosition mgl32.Vec3

	// Shadow describes the shadow map of Key.
	//
	// Default is a 2048x2048 map, with near and far
	// planes at 0.5 and 500.
	Shadow engine.Shadow

	// Fill is the secondary directional light.
	// Its Direction is ignored; the light points from
	// FillPosition towards the origin.
	//
	// Default is white, with intensity 0.3.
	Fill         engine.DistantLight
	FillPosition mgl32.Vec3
}

// DefaultConfig returns the default configuration.
func DefaultConfig() Config {
	return Config{
		LoadTimeout:  LoadTimeout,
		DecoderPaths: append([]string(nil), draco.DefaultPaths...),
		Client:       http.DefaultClient,
		Ambient:      engine.AmbientLight{Intensity: 0.6, R: 1, G: 1, B: 1},
		Key:          engine.DistantLight{Intensity: 0.8, R: 1, G: 1, B: 1},
		KeyPosition:  mgl32.Vec3{5, 10, 7.5},
		Shadow: engine.Shadow{
			MapSize: [2]int{dflShadowMapSize, dflShadowMapSize},
			Near:    dflShadowNear,
			Far:     dflShadowFar,
		},
		Fill:         engine.DistantLight{Intensity: 0.3, R: 1, G: 1, B: 1},
		FillPosition: mgl32.Vec3{-5, 5, -5},
	}
}
