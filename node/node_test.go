// Copyright 2022 Gustavo C. Viegas. All rights reserved.

package node

import (
	"fmt"
	"math"
	"strings"
	"testing"

	"github.com/go-gl/mathgl/mgl32"
)

// fmt.Stringer for testing only.
// n.Name must have been set in order to produce
// meaningful output.
func (n *Node) String() string {
	const s = `
(%5s) <-> (%5s) <-> (%5s)
               |
               v
            (%5s)
`
	nd := [4]*Node{n.prev, n, n.next, n.sub}
	nm := [4]string{}
	for i := range nd {
		if nd[i] != nil {
			nm[i] = nd[i].Name
		} else {
			nm[i] = "<nil>"
		}
	}
	return fmt.Sprintf(s, nm[0], nm[1], nm[2], nm[3])
}

// names returns the names of n's descendants, in
// ForEach order.
func (n *Node) names() string {
	var s []string
	n.ForEach(func(n *Node) { s = append(s, n.Name) })
	return strings.Join(s, " ")
}

// tree creates the following graph:
//
//	root
//	├── a
//	│   ├── c
//	│   └── d
//	└── b
//	    └── e
func tree() (root, a, b, c, d, e *Node) {
	root, a, b, c, d, e = New("root"), New("a"), New("b"), New("c"), New("d"), New("e")
	root.Insert(a)
	root.Insert(b)
	a.Insert(c)
	a.Insert(d)
	b.Insert(e)
	return
}

func TestInsert(t *testing.T) {
	root, a, b, c, d, e := tree()
	if x := root.names(); x != "a b c d e" {
		t.Fatalf("Node.ForEach:\nhave %q\nwant \"a b c d e\"", x)
	}
	if x := root.Len(); x != 2 {
		t.Fatalf("Node.Len:\nhave %d\nwant 2\n%v", x, root)
	}
	if a.next != b || b.prev != a || a.prev != root {
		t.Fatalf("Node.Insert: bad links\n%v%v", a, b)
	}
	// Moving d under e detaches it from a.
	e.Insert(d)
	if x := a.Len(); x != 1 {
		t.Fatalf("Node.Len:\nhave %d\nwant 1\n%v", x, a)
	}
	if d.Parent() != e || c.Parent() != a {
		t.Fatal("Node.Parent: unexpected ancestor after Insert")
	}
}

func TestRemove(t *testing.T) {
	root, a, b, c, d, _ := tree()
	c.Remove()
	if c.prev != nil || c.next != nil {
		t.Fatalf("Node.Remove: links not cleared\n%v", c)
	}
	if a.sub != d || d.prev != a {
		t.Fatalf("Node.Remove: a.sub\nhave %p\nwant %p\n%v", a.sub, d, a)
	}
	b.Remove()
	if x := root.names(); x != "a d" {
		t.Fatalf("Node.ForEach:\nhave %q\nwant \"a d\"", x)
	}
	// Removing a detached node is a no-op.
	b.Remove()
	if b.Parent() != nil {
		t.Fatal("Node.Parent: removed node must have no ancestor")
	}
}

func TestParent(t *testing.T) {
	root, a, b, c, d, e := tree()
	for _, x := range [...]struct{ n, p *Node }{
		{root, nil},
		{a, root},
		{b, root},
		{c, a},
		{d, a},
		{e, b},
	} {
		if p := x.n.Parent(); p != x.p {
			t.Fatalf("Node.Parent(%s):\nhave %p\nwant %p", x.n.Name, p, x.p)
		}
	}
}

func TestUntil(t *testing.T) {
	root, _, _, _, _, _ := tree()
	var s []string
	root.Until(func(n *Node) bool {
		s = append(s, n.Name)
		return n.Name != "c"
	})
	if x := strings.Join(s, " "); x != "a b c" {
		t.Fatalf("Node.Until:\nhave %q\nwant \"a b c\"", x)
	}
}

func TestWalk(t *testing.T) {
	root, _, _, _, _, _ := tree()
	var s []string
	root.Walk(func(n *Node) { s = append(s, n.Name) })
	if x := strings.Join(s, " "); x != "root a c d b e" {
		t.Fatalf("Node.Walk:\nhave %q\nwant \"root a c d b e\"", x)
	}
	if x := root.Children(); len(x) != 2 || x[0].Name != "a" || x[1].Name != "b" {
		t.Fatalf("Node.Children:\nhave %v", x)
	}
}

func TestWorld(t *testing.T) {
	root, a, _, c, _, _ := tree()
	root.Translation = mgl32.Vec3{1, 0, 0}
	a.Scale = mgl32.Vec3{2, 2, 2}
	c.Translation = mgl32.Vec3{0, 1, 0}
	p := c.World().Mul4x1(mgl32.Vec4{0, 0, 0, 1})
	if want := (mgl32.Vec4{1, 2, 0, 1}); !near(p[:], want[:]) {
		t.Fatalf("Node.World:\nhave %v\nwant %v", p, want)
	}
}

// near compares a and b elementwise with an absolute
// tolerance.
func near(a, b []float32) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if math.Abs(float64(a[i]-b[i])) > 1e-4 {
			return false
		}
	}
	return true
}

func TestSetMatrix(t *testing.T) {
	n := New("n")
	q := mgl32.QuatRotate(mgl32.DegToRad(90), mgl32.Vec3{0, 1, 0})
	m := mgl32.Translate3D(1, 2, 3).Mul4(q.Mat4()).Mul4(mgl32.Scale3D(2, 3, 4))
	n.SetMatrix(m)
	if want := (mgl32.Vec3{1, 2, 3}); !near(n.Translation[:], want[:]) {
		t.Fatalf("Node.SetMatrix: Translation\nhave %v\nwant [1 2 3]", n.Translation)
	}
	if want := (mgl32.Vec3{2, 3, 4}); !near(n.Scale[:], want[:]) {
		t.Fatalf("Node.SetMatrix: Scale\nhave %v\nwant [2 3 4]", n.Scale)
	}
	if l := n.Local(); !near(l[:], m[:]) {
		t.Fatalf("Node.SetMatrix: Local\nhave %v\nwant %v", n.Local(), m)
	}
}

func TestClickable(t *testing.T) {
	n := New("n")
	if n.HasClickable() || n.IsClickable() {
		t.Fatal("Node.HasClickable: new node must not carry metadata")
	}
	n.SetClickable(false)
	if !n.HasClickable() || n.IsClickable() {
		t.Fatal("Node.SetClickable(false): metadata must be set to false")
	}
	n.Extras[Clickable] = "yes"
	if n.IsClickable() {
		t.Fatal("Node.IsClickable: non-boolean value must count as false")
	}
	n.SetClickable(true)
	if !n.IsClickable() {
		t.Fatal("Node.SetClickable(true): metadata must be set to true")
	}
}
