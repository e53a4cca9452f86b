// Copyright 2024 Gustavo C. Viegas. All rights reserved.

package loader

import (
	"bytes"
	"context"
	"encoding/base64"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/gviegas/stage/draco"
)

// Progress describes the progress of a fetch.
type Progress struct {
	// Bytes read so far.
	Loaded int64
	// Total number of bytes, if known.
	Total int64
	// Whether Total is known.
	LengthComputable bool
}

// report calls f with p.
// Panics in f are recovered and logged.
func report(f func(Progress), p Progress) {
	if f == nil {
		return
	}
	defer func() {
		if x := recover(); x != nil {
			logger.Printf("[!] progress callback panicked: %v", x)
		}
	}()
	f(p)
}

// progressReader reports every read to f.
type progressReader struct {
	ctx context.Context
	r   io.Reader
	p   Progress
	f   func(Progress)
}

func (r *progressReader) Read(b []byte) (int, error) {
	if err := r.ctx.Err(); err != nil {
		return 0, err
	}
	n, err := r.r.Read(b)
	if n > 0 {
		r.p.Loaded += int64(n)
		report(r.f, r.p)
	}
	return n, err
}

// Fetch reads the contents of path.
// path is either an http(s) URL or a local file path;
// relative local paths are resolved against l.BaseDir.
// onProgress, if not nil, is called after every chunk
// read.
func (l *Loader) Fetch(ctx context.Context, path string, onProgress func(Progress)) ([]byte, error) {
	var (
		rd    io.Reader
		total int64 = -1
	)
	if draco.IsURL(path) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, path, nil)
		if err != nil {
			return nil, err
		}
		resp, err := l.client().Do(req)
		if err != nil {
			return nil, err
		}
		defer resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			return nil, fmt.Errorf("loader: fetching %s: %s", path, resp.Status)
		}
		rd = resp.Body
		total = resp.ContentLength
	} else {
		if !filepath.IsAbs(path) && l.BaseDir != "" {
			path = filepath.Join(l.BaseDir, path)
		}
		f, err := os.Open(path)
		if err != nil {
			return nil, err
		}
		defer f.Close()
		if fi, err := f.Stat(); err == nil {
			total = fi.Size()
		}
		rd = f
	}
	pr := &progressReader{ctx: ctx, r: rd, f: onProgress}
	if total >= 0 {
		pr.p.Total = total
		pr.p.LengthComputable = true
	}
	var buf bytes.Buffer
	if total > 0 {
		buf.Grow(int(total))
	}
	if _, err := buf.ReadFrom(pr); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (l *Loader) client() *http.Client {
	if l.Client == nil {
		return http.DefaultClient
	}
	return l.Client
}

// resolve resolves uri against the location of the asset
// at base.
func resolve(base, uri string) (string, error) {
	if draco.IsURL(uri) {
		return uri, nil
	}
	if draco.IsURL(base) {
		b, err := url.Parse(base)
		if err != nil {
			return "", err
		}
		u, err := url.Parse(uri)
		if err != nil {
			return "", err
		}
		return b.ResolveReference(u).String(), nil
	}
	p, err := url.PathUnescape(uri)
	if err != nil {
		return "", err
	}
	if filepath.IsAbs(p) {
		return p, nil
	}
	return filepath.Join(filepath.Dir(base), filepath.FromSlash(p)), nil
}

// isDataURI reports whether uri is a data URI.
func isDataURI(uri string) bool { return strings.HasPrefix(uri, "data:") }

// decodeDataURI decodes the payload of a data URI.
// It also returns the media type.
func decodeDataURI(uri string) ([]byte, string, error) {
	meta, data, ok := strings.Cut(strings.TrimPrefix(uri, "data:"), ",")
	if !ok {
		return nil, "", newErr("malformed data URI")
	}
	typ, isBase64 := strings.CutSuffix(meta, ";base64")
	if isBase64 {
		b, err := base64.StdEncoding.DecodeString(data)
		if err != nil {
			return nil, "", newErr("malformed base64 data URI: " + err.Error())
		}
		return b, typ, nil
	}
	s, err := url.PathUnescape(data)
	if err != nil {
		return nil, "", newErr("malformed data URI: " + err.Error())
	}
	return []byte(s), typ, nil
}
