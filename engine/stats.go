// Copyright 2024 Gustavo C. Viegas. All rights reserved.

package engine

import (
	"fmt"
	"sync/atomic"
)

var live struct {
	geometry atomic.Int64
	texture  atomic.Int64
	material atomic.Int64
}

// Stat counts resources that were created and not
// yet freed.
type Stat struct {
	Geometries int
	Textures   int
	Materials  int
}

// Stats returns the number of live resources.
func Stats() Stat {
	return Stat{
		Geometries: int(live.geometry.Load()),
		Textures:   int(live.texture.Load()),
		Materials:  int(live.material.Load()),
	}
}

// String implements fmt.Stringer.
func (s Stat) String() string {
	return fmt.Sprintf("%d geometries, %d textures, %d materials", s.Geometries, s.Textures, s.Materials)
}
