// Copyright 2022 Gustavo C. Viegas. All rights reserved.

// Package scene provides the scene manager: a scene graph
// with a fixed light rig, into which glTF models are loaded,
// added and removed, and whose GPU resources are released
// explicitly.
package scene

import (
	"image/color"

	"github.com/gviegas/stage/node"
)

// Scene defines a scene graph.
// It is the root container of renderable nodes.
type Scene struct {
	root node.Node

	// Background is the color the scene is drawn over.
	// A nil Background is transparent.
	Background color.Color
}

// New creates an initialized scene.
func New() *Scene { return new(Scene).Init() }

// Init initializes a scene.
// The scene is empty and its background is transparent.
func (s *Scene) Init() *Scene {
	s.root = node.Node{}
	s.root.Init("Scene")
	s.Background = nil
	return s
}

// Root returns the root node of s.
// Top-level nodes are its immediate descendants.
func (s *Scene) Root() *node.Node { return &s.root }

// Len returns the number of top-level nodes in s.
func (s *Scene) Len() int { return s.root.Len() }

// Contains returns whether n is a top-level node of s.
func (s *Scene) Contains(n *node.Node) bool {
	return n != nil && n.Parent() == &s.root
}

// Lights returns the nodes of s that are light sources.
func (s *Scene) Lights() []*node.Node {
	var ls []*node.Node
	s.root.ForEach(func(n *node.Node) {
		if n.Light != nil {
			ls = append(ls, n)
		}
	})
	return ls
}

// Meshes returns the nodes of s that have geometry.
func (s *Scene) Meshes() []*node.Node {
	var ms []*node.Node
	s.root.ForEach(func(n *node.Node) {
		if n.IsMesh() {
			ms = append(ms, n)
		}
	})
	return ms
}
