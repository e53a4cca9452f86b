// Copyright 2022 Gustavo C. Viegas. All rights reserved.

// Package node provides the elements of the scene graph.
package node

import (
	"github.com/go-gl/mathgl/mgl32"

	"github.com/gviegas/stage/engine"
)

// Clickable is the Extras key that marks a node as
// eligible for user interaction.
const Clickable = "clickable"

// Node represents a single node in a scene graph.
// Nodes have at most one immediate ancestor and
// an arbitrary number of immediate descendants.
//
// A node that has geometry is a mesh. A mesh may have
// several materials, in which case the geometry is drawn
// once per material. A node with a light is a light
// source. Other nodes only group their descendants.
type Node struct {
	next *Node
	prev *Node
	sub  *Node

	// Name for the node.
	// It is not used by node code.
	Name string

	// Local transform.
	Translation mgl32.Vec3
	Rotation    mgl32.Quat
	Scale       mgl32.Vec3

	Geometry  *engine.Geometry
	Materials []*engine.Material
	Light     *engine.Light

	// Extras holds application-specific metadata.
	// It is not used by node code, except through the
	// Clickable helpers.
	Extras map[string]any
}

// New creates an initialized node.
func New(name string) *Node { return new(Node).Init(name) }

// Init initializes node n.
// It sets the identity transform.
func (n *Node) Init(name string) *Node {
	n.Name = name
	n.Rotation = mgl32.QuatIdent()
	n.Scale = mgl32.Vec3{1, 1, 1}
	return n
}

// Insert inserts node sub as immediate descendant
// of node n.
// sub is appended after n's last descendant.
// sub must be either a descendant of n or part of
// an unrelated graph - it must not be an ancestor
// of node n.
func (n *Node) Insert(sub *Node) {
	sub.Remove()
	if n.sub == nil {
		n.sub = sub
		sub.prev = n
		return
	}
	last := n.sub
	for last.next != nil {
		last = last.next
	}
	last.next = sub
	sub.prev = last
}

// Remove removes node n from its immediate ancestor.
func (n *Node) Remove() {
	// Note that Node.prev is only nil when the node
	// has no ancestors, since the prev field of the
	// first immediate descendant is set to refer to
	// its immediate ancestor.
	if n.prev != nil {
		if n.prev.sub == n {
			n.prev.sub = n.next
		} else {
			n.prev.next = n.next
		}
		if n.next != nil {
			n.next.prev = n.prev
		}
		n.prev = nil
		n.next = nil
	}
}

// Parent returns the immediate ancestor of n, or nil
// if n has none.
func (n *Node) Parent() *Node {
	cur := n
	for p := n.prev; p != nil; cur, p = p, p.prev {
		if p.sub == cur {
			return p
		}
	}
	return nil
}

// First returns the first immediate descendant of n.
func (n *Node) First() *Node { return n.sub }

// Next returns the next sibling of n.
func (n *Node) Next() *Node { return n.next }

// Children returns the immediate descendants of n.
// The returned slice is a copy; the nodes are not.
func (n *Node) Children() []*Node {
	var s []*Node
	for c := n.sub; c != nil; c = c.next {
		s = append(s, c)
	}
	return s
}

// Len returns the number of immediate descendants of n.
func (n *Node) Len() (i int) {
	for c := n.sub; c != nil; c = c.next {
		i++
	}
	return
}

// ForEach calls f for each descendant of node n.
// Ancestors are processed first.
// The scene graph must not be changed until this
// method returns.
func (n *Node) ForEach(f func(*Node)) {
	if n.sub == nil {
		return
	}
	que := []*Node{n.sub}
	for len(que) > 0 {
		for nd := que[0]; nd != nil; nd = nd.next {
			f(nd)
			if sub := nd.sub; sub != nil {
				que = append(que, sub)
			}
		}
		que = que[1:]
	}
}

// Until calls f for each descendant of node n.
// Ancestors are processed first. If f returns false,
// Until returns immediately.
// The scene graph must not be changed until this
// method returns.
func (n *Node) Until(f func(*Node) bool) {
	if n.sub == nil {
		return
	}
	que := []*Node{n.sub}
	for len(que) > 0 {
		for nd := que[0]; nd != nil; nd = nd.next {
			if !f(nd) {
				return
			}
			if sub := nd.sub; sub != nil {
				que = append(que, sub)
			}
		}
		que = que[1:]
	}
}

// Walk calls f for n and each of its descendants, depth
// first. f is called for a node before its descendants.
// The scene graph must not be changed until this
// method returns.
func (n *Node) Walk(f func(*Node)) {
	f(n)
	for c := n.sub; c != nil; c = c.next {
		c.Walk(f)
	}
}

// Local returns the local transform of n.
func (n *Node) Local() mgl32.Mat4 {
	t := mgl32.Translate3D(n.Translation[0], n.Translation[1], n.Translation[2])
	r := n.Rotation.Normalize().Mat4()
	s := mgl32.Scale3D(n.Scale[0], n.Scale[1], n.Scale[2])
	return t.Mul4(r).Mul4(s)
}

// World returns the world transform of n, that is, the
// product of the local transforms from the root of n's
// graph down to n.
func (n *Node) World() mgl32.Mat4 {
	m := n.Local()
	for p := n.Parent(); p != nil; p = p.Parent() {
		m = p.Local().Mul4(m)
	}
	return m
}

// SetMatrix sets n's local transform from m.
// m must be decomposable into translation, rotation and
// scale (no shear).
func (n *Node) SetMatrix(m mgl32.Mat4) {
	n.Translation = m.Col(3).Vec3()
	sx := m.Col(0).Vec3().Len()
	sy := m.Col(1).Vec3().Len()
	sz := m.Col(2).Vec3().Len()
	if m.Det() < 0 {
		sx = -sx
	}
	n.Scale = mgl32.Vec3{sx, sy, sz}
	var r mgl32.Mat3
	if sx != 0 && sy != 0 && sz != 0 {
		r.SetCol(0, m.Col(0).Vec3().Mul(1/sx))
		r.SetCol(1, m.Col(1).Vec3().Mul(1/sy))
		r.SetCol(2, m.Col(2).Vec3().Mul(1/sz))
		n.Rotation = mgl32.Mat4ToQuat(r.Mat4())
	} else {
		n.Rotation = mgl32.QuatIdent()
	}
}

// IsMesh returns whether n has geometry.
func (n *Node) IsMesh() bool { return n.Geometry != nil }

// SetClickable sets the Clickable metadata of n.
func (n *Node) SetClickable(v bool) {
	if n.Extras == nil {
		n.Extras = make(map[string]any)
	}
	n.Extras[Clickable] = v
}

// HasClickable returns whether n carries Clickable
// metadata, regardless of its value.
func (n *Node) HasClickable() bool {
	_, ok := n.Extras[Clickable]
	return ok
}

// IsClickable returns whether n is marked as eligible for
// user interaction. Non-boolean values count as false.
func (n *Node) IsClickable() bool {
	v, _ := n.Extras[Clickable].(bool)
	return v
}
