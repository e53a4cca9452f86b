// Copyright 2024 Gustavo C. Viegas. All rights reserved.

package scene

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"sync"
	"time"

	"github.com/looplab/fsm"

	"github.com/gviegas/stage/draco"
	"github.com/gviegas/stage/engine"
	"github.com/gviegas/stage/loader"
	"github.com/gviegas/stage/node"
)

// ErrTimeout means that a model did not load within the
// configured time limit.
var ErrTimeout = errors.New("scene: load timed out")

// ErrNoScene means that a loaded asset has no scene graph.
var ErrNoScene = errors.New("scene: asset has no scene")

// ErrDisposed means that the Manager was disposed.
var ErrDisposed = errors.New("scene: manager is disposed")

// ErrNotInitialized means that Manager.Initialize was not
// called.
var ErrNotInitialized = errors.New("scene: manager is not initialized")

var logger = log.New(os.Stderr, "scene: ", log.LstdFlags)

// Manager states.
const (
	StateCreated  = "created"
	StateReady    = "ready"
	StateLoading  = "loading"
	StateDisposed = "disposed"
)

// Manager events.
const (
	evInit    = "init"
	evLoad    = "load"
	evSettle  = "settle"
	evDispose = "dispose"
)

// Manager manages a scene and the models loaded into it.
//
// Scene graph operations (Initialize, AddObject,
// RemoveObject, Clear and Dispose) are not safe for
// concurrent use. LoadModel does not change the scene
// and can be called concurrently.
type Manager struct {
	conf  Config
	scene *Scene

	mu       sync.Mutex
	state    *fsm.FSM
	inflight int

	// Tracks loads abandoned on timeout.
	late sync.WaitGroup
}

// NewManager creates a new Manager.
// If conf is nil, DefaultConfig is used.
func NewManager(conf *Config) *Manager {
	m := new(Manager)
	if conf == nil {
		m.conf = DefaultConfig()
	} else {
		m.conf = *conf
	}
	m.state = fsm.NewFSM(
		StateCreated,
		fsm.Events{
			{Name: evInit, Src: []string{StateCreated}, Dst: StateReady},
			{Name: evLoad, Src: []string{StateReady}, Dst: StateLoading},
			{Name: evSettle, Src: []string{StateLoading}, Dst: StateReady},
			{Name: evDispose, Src: []string{StateCreated, StateReady, StateLoading}, Dst: StateDisposed},
		},
		fsm.Callbacks{
			"enter_" + StateDisposed: func(_ context.Context, e *fsm.Event) {
				logger.Printf("manager disposed (was %s)", e.Src)
			},
		},
	)
	return m
}

// State returns the current state of m.
func (m *Manager) State() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state.Current()
}

// Scene returns the scene of m.
// It returns nil before Initialize and after Dispose.
func (m *Manager) Scene() *Scene { return m.scene }

// Config returns the configuration of m.
func (m *Manager) Config() Config { return m.conf }

// Stats returns the number of live GPU resources.
func (m *Manager) Stats() engine.Stat { return engine.Stats() }

// Initialize creates the scene: empty, with a transparent
// background and the light rig described by m's Config.
func (m *Manager) Initialize() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	switch {
	case m.state.Is(StateDisposed):
		return ErrDisposed
	case !m.state.Can(evInit):
		return errors.New("scene: manager already initialized")
	}
	s := New()
	for _, l := range m.rig() {
		s.root.Insert(l)
	}
	if err := m.state.Event(context.Background(), evInit); err != nil {
		return fmt.Errorf("scene: %w", err)
	}
	m.scene = s
	return nil
}

// rig creates the light nodes.
func (m *Manager) rig() []*node.Node {
	c := &m.conf

	amb := node.New("AmbientLight")
	al := c.Ambient.Light()
	amb.Light = &al

	key := node.New("KeyLight")
	key.Translation = c.KeyPosition
	kd := c.Key
	kd.Direction = c.KeyPosition.Mul(-1)
	kl := kd.Light()
	kl.SetShadow(&c.Shadow)
	key.Light = &kl

	fill := node.New("FillLight")
	fill.Translation = c.FillPosition
	fd := c.Fill
	fd.Direction = c.FillPosition.Mul(-1)
	fl := fd.Light()
	fill.Light = &fl

	return []*node.Node{amb, key, fill}
}

// begin registers a load in flight.
func (m *Manager) begin() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	switch m.state.Current() {
	case StateDisposed:
		return ErrDisposed
	case StateCreated:
		return ErrNotInitialized
	}
	if m.inflight == 0 {
		if err := m.state.Event(context.Background(), evLoad); err != nil {
			return fmt.Errorf("scene: %w", err)
		}
	}
	m.inflight++
	return nil
}

// end undoes begin.
func (m *Manager) end() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.inflight--
	if m.inflight == 0 && m.state.Is(StateLoading) {
		if err := m.state.Event(context.Background(), evSettle); err != nil {
			logger.Printf("[!] %v", err)
		}
	}
}

// decoder configures dec with the first decoder path
// that can be set.
func (m *Manager) decoder(ctx context.Context, dec *draco.Decoder) {
	for _, p := range m.conf.DecoderPaths {
		err := dec.SetDecoderPath(ctx, p)
		if err == nil {
			return
		}
		logger.Printf("[!] decoder path %s: %v", p, err)
		if ctx.Err() != nil {
			return
		}
	}
	logger.Print("[!] no decoder available, compressed geometry requires fallback data")
}

type result struct {
	asset *loader.Asset
	err   error
}

// LoadModel loads the glTF model at path.
// path is either an http(s) URL or a local file path.
// onProgress, if not nil, is called as the model is
// read; panics in it are recovered and logged.
//
// If loading takes longer than Config.LoadTimeout, the
// load is abandoned and LoadModel fails with ErrTimeout.
// It also fails with ErrNoScene if the asset has no
// scene. On success, the root node of the asset's scene
// is returned; it is not added to the scene.
func (m *Manager) LoadModel(ctx context.Context, path string, onProgress func(loader.Progress)) (*node.Node, error) {
	if err := m.begin(); err != nil {
		return nil, err
	}
	defer m.end()

	dec := draco.NewDecoder(m.conf.Client)
	defer dec.Close()
	lctx, cancel := context.WithCancel(ctx)
	defer cancel()
	ld := loader.Loader{
		Decoder: dec,
		Client:  m.conf.Client,
		BaseDir: m.conf.BaseDir,
	}

	done := make(chan result, 1)
	go func() {
		defer func() {
			if x := recover(); x != nil {
				done <- result{err: fmt.Errorf("loader panic: %v", x)}
			}
		}()
		m.decoder(lctx, dec)
		a, err := ld.Load(lctx, path, onProgress)
		done <- result{a, err}
	}()

	var timeout <-chan time.Time
	if m.conf.LoadTimeout > 0 {
		timer := time.NewTimer(m.conf.LoadTimeout)
		defer timer.Stop()
		timeout = timer.C
	}

	var err error
	select {
	case r := <-done:
		switch {
		case r.err != nil:
			err = r.err
		case r.asset.Scene == nil:
			err = ErrNoScene
		case m.State() == StateDisposed:
			disposeTree(r.asset.Scene)
			err = ErrDisposed
		default:
			return r.asset.Scene, nil
		}
	case <-timeout:
		err = fmt.Errorf("%w after %v", ErrTimeout, m.conf.LoadTimeout)
		m.abandon(cancel, done)
	case <-ctx.Done():
		err = ctx.Err()
		m.abandon(cancel, done)
	}
	logger.Printf("[!] loading %s: %v", path, err)
	return nil, fmt.Errorf("scene: loading %s: %w", path, err)
}

// abandon cancels a load and frees whatever it produces.
// Once m is disposed, it waits for the load to finish.
func (m *Manager) abandon(cancel context.CancelFunc, done <-chan result) {
	cancel()
	discard := func() {
		if r := <-done; r.err == nil && r.asset.Scene != nil {
			logger.Print("[!] discarding model loaded after timeout")
			disposeTree(r.asset.Scene)
		}
	}
	m.mu.Lock()
	if m.state.Is(StateDisposed) {
		m.mu.Unlock()
		discard()
		return
	}
	m.late.Add(1)
	m.mu.Unlock()
	go func() {
		defer m.late.Done()
		discard()
	}()
}

// TraverseModel marks n and its descendants as eligible
// for user interaction, by setting node.Clickable
// metadata on nodes that do not have it yet.
// Existing values are preserved. A nil n is ignored.
func (m *Manager) TraverseModel(n *node.Node) {
	if n == nil {
		return
	}
	n.Walk(func(n *node.Node) {
		if !n.HasClickable() {
			n.SetClickable(true)
		}
	})
}

// DisposeObject frees the GPU resources of n and its
// descendants: geometry, materials and every texture
// bound to the materials. Node metadata is preserved and
// the nodes are not removed from the scene.
// A nil n is ignored.
func (m *Manager) DisposeObject(n *node.Node) {
	if n == nil {
		return
	}
	disposeTree(n)
}

func disposeTree(n *node.Node) {
	n.Walk(func(n *node.Node) {
		n.Geometry.Free()
		for _, mat := range n.Materials {
			if mat == nil {
				continue
			}
			for s := range engine.MaxSlot {
				mat.Map(engine.Slot(s)).Free()
			}
			mat.Free()
		}
	})
}

// AddObject marks n as per TraverseModel and adds it to
// the scene as a top-level node.
func (m *Manager) AddObject(n *node.Node) error {
	if err := m.usable(); err != nil {
		return err
	}
	if n == nil {
		return nil
	}
	m.TraverseModel(n)
	m.scene.root.Insert(n)
	return nil
}

// RemoveObject removes n from the scene.
// Its resources are not freed. It has no effect if n is
// not a top-level node of the scene.
func (m *Manager) RemoveObject(n *node.Node) {
	if m.usable() != nil || !m.scene.Contains(n) {
		return
	}
	n.Remove()
}

// Clear removes every top-level node from the scene,
// including the light rig.
// Resources are not freed.
func (m *Manager) Clear() {
	if m.usable() != nil {
		return
	}
	for n := m.scene.root.First(); n != nil; n = m.scene.root.First() {
		n.Remove()
	}
}

// usable checks that m has a scene.
func (m *Manager) usable() error {
	switch m.State() {
	case StateDisposed:
		return ErrDisposed
	case StateCreated:
		return ErrNotInitialized
	}
	return nil
}

// Dispose clears the scene and drops it.
// Models abandoned by LoadModel are freed before Dispose
// returns. m cannot be used afterwards.
// Calling Dispose more than once has no effect.
func (m *Manager) Dispose() {
	m.Clear()
	m.mu.Lock()
	if m.state.Can(evDispose) {
		if err := m.state.Event(context.Background(), evDispose); err != nil {
			logger.Printf("[!] %v", err)
		}
	}
	m.scene = nil
	m.mu.Unlock()
	m.late.Wait()
}
