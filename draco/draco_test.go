// Copyright 2024 Gustavo C. Viegas. All rights reserved.

package draco

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"slices"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// jsonCodec decodes meshes encoded as JSON.
type jsonCodec struct{ closed *atomic.Int32 }

func (c jsonCodec) Decode(data []byte, attrs map[string]int64) (*Mesh, error) {
	var m Mesh
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, err
	}
	for k := range m.Attributes {
		if _, ok := attrs[k]; !ok {
			delete(m.Attributes, k)
		}
	}
	return &m, nil
}

func (c jsonCodec) Close() error {
	c.closed.Add(1)
	return nil
}

const testModule = "test-module"

// registerJSON registers jsonCodec for the duration of
// the test. It returns a counter of closed codecs.
func registerJSON(t *testing.T) *atomic.Int32 {
	var closed atomic.Int32
	Register("json", func(module []byte) (Codec, error) {
		if string(module) != testModule {
			return nil, errors.New("bad module")
		}
		return jsonCodec{&closed}, nil
	})
	t.Cleanup(func() {
		mu.Lock()
		defer mu.Unlock()
		codecs = slices.DeleteFunc(codecs, func(c codec) bool { return c.name == "json" })
	})
	return &closed
}

// moduleServer serves ModuleFile.
func moduleServer(t *testing.T) *httptest.Server {
	s := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/draco/"+ModuleFile {
			http.NotFound(w, r)
			return
		}
		w.Write([]byte(testModule))
	}))
	t.Cleanup(s.Close)
	return s
}

func triangle(t *testing.T) []byte {
	b, err := json.Marshal(Mesh{
		VertexCount: 3,
		Attributes: map[string]Attribute{
			"POSITION": {3, []float32{0, 0, 0, 1, 0, 0, 0, 1, 0}},
			"NORMAL":   {3, []float32{0, 0, 1, 0, 0, 1, 0, 0, 1}},
		},
		Indices: []uint32{0, 1, 2},
	})
	require.NoError(t, err)
	return b
}

func TestDefaultPaths(t *testing.T) {
	require.Len(t, DefaultPaths, 3)
	assert.Equal(t, "https://www.gstatic.com/draco/versioned/decoders/1.5.6/", DefaultPaths[0])
	assert.Equal(t, "https://unpkg.com/three@0.160.0/examples/jsm/libs/draco/", DefaultPaths[1])
	assert.Equal(t, "/draco/", DefaultPaths[2])
}

func TestSetDecoderPath(t *testing.T) {
	srv := moduleServer(t)
	ctx := context.Background()
	d := NewDecoder(srv.Client())
	defer d.Close()

	assert.Error(t, d.SetDecoderPath(ctx, ""))
	assert.Error(t, d.SetDecoderPath(ctx, srv.URL+"/missing/"))
	assert.Error(t, d.SetDecoderPath(ctx, filepath.Join(t.TempDir(), "nope")))
	assert.Empty(t, d.DecoderPath(), "failed probes must not set the path")

	require.NoError(t, d.SetDecoderPath(ctx, srv.URL+"/draco/"))
	assert.Equal(t, srv.URL+"/draco/", d.DecoderPath())

	// Trailing slash is optional for remote paths.
	require.NoError(t, d.SetDecoderPath(ctx, srv.URL+"/draco"))

	dir := t.TempDir()
	require.NoError(t, d.SetDecoderPath(ctx, dir))
	assert.Equal(t, dir, d.DecoderPath())

	file := filepath.Join(dir, ModuleFile)
	require.NoError(t, os.WriteFile(file, []byte(testModule), 0o644))
	assert.Error(t, d.SetDecoderPath(ctx, file), "a file is not a decoder directory")
}

func TestDecode(t *testing.T) {
	closed := registerJSON(t)
	srv := moduleServer(t)
	ctx := context.Background()
	d := NewDecoder(srv.Client())

	_, err := d.Decode(ctx, triangle(t), map[string]int64{"POSITION": 0})
	assert.ErrorIs(t, err, ErrNoDecoder, "no path set")

	require.NoError(t, d.SetDecoderPath(ctx, srv.URL+"/draco/"))
	m, err := d.Decode(ctx, triangle(t), map[string]int64{"POSITION": 0})
	require.NoError(t, err)
	assert.Equal(t, 3, m.VertexCount)
	assert.Equal(t, []uint32{0, 1, 2}, m.Indices)
	assert.Contains(t, m.Attributes, "POSITION")
	assert.NotContains(t, m.Attributes, "NORMAL")

	_, err = d.Decode(ctx, []byte(`{"VertexCount":3}`), nil)
	assert.Error(t, err, "mesh without POSITION")
	_, err = d.Decode(ctx, []byte(`garbage`), nil)
	assert.Error(t, err)

	d.Close()
	d.Close()
	assert.Equal(t, int32(1), closed.Load(), "codec must be closed exactly once")
	_, err = d.Decode(ctx, triangle(t), map[string]int64{"POSITION": 0})
	assert.ErrorIs(t, err, ErrClosed)
	assert.ErrorIs(t, d.SetDecoderPath(ctx, srv.URL+"/draco/"), ErrClosed)
}

func TestDecodeLocal(t *testing.T) {
	registerJSON(t)
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, ModuleFile), []byte(testModule), 0o644))
	d := NewDecoder(nil)
	defer d.Close()
	require.NoError(t, d.SetDecoderPath(context.Background(), dir))
	_, err := d.Decode(context.Background(), triangle(t), map[string]int64{"POSITION": 0})
	assert.NoError(t, err)
}

func TestNoCodec(t *testing.T) {
	mu.Lock()
	saved := codecs
	codecs = nil
	mu.Unlock()
	t.Cleanup(func() {
		mu.Lock()
		codecs = saved
		mu.Unlock()
	})
	d := NewDecoder(nil)
	defer d.Close()
	require.NoError(t, d.SetDecoderPath(context.Background(), t.TempDir()))
	_, err := d.Decode(context.Background(), triangle(t), nil)
	assert.ErrorIs(t, err, ErrNoDecoder)
}

func TestBadModule(t *testing.T) {
	registerJSON(t)
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, ModuleFile), []byte("other"), 0o644))
	d := NewDecoder(nil)
	defer d.Close()
	require.NoError(t, d.SetDecoderPath(context.Background(), dir))
	_, err := d.Decode(context.Background(), triangle(t), nil)
	assert.ErrorIs(t, err, ErrNoDecoder)
	assert.Contains(t, Codecs(), "json")
}
