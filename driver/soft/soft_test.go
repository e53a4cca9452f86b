// Copyright 2024 Gustavo C. Viegas. All rights reserved.

package soft

import (
	"errors"
	"testing"

	"github.com/gviegas/stage/driver"
)

func newDriver(t *testing.T) *Driver {
	d := &Driver{}
	if _, err := d.Open(); err != nil {
		t.Fatalf("Driver.Open failed:\n%#v", err)
	}
	return d
}

func TestRegister(t *testing.T) {
	drv, ok := driver.Lookup(driverName)
	if !ok {
		t.Fatal("driver.Lookup:\nhave false\nwant true")
	}
	if drv.Name() != driverName {
		t.Fatalf("Driver.Name:\nhave %q\nwant %q", drv.Name(), driverName)
	}
}

func TestBuffer(t *testing.T) {
	d := newDriver(t)
	buf, err := d.NewBuffer(512, true, driver.UVertexData)
	if err != nil {
		t.Fatalf("Driver.NewBuffer failed:\n%#v", err)
	}
	if x := buf.Cap(); x != 512 {
		t.Fatalf("Buffer.Cap:\nhave %d\nwant 512", x)
	}
	if x := len(buf.Bytes()); x != 512 {
		t.Fatalf("len(Buffer.Bytes):\nhave %d\nwant 512", x)
	}
	hidden, err := d.NewBuffer(64, false, driver.UIndexData)
	if err != nil {
		t.Fatalf("Driver.NewBuffer failed:\n%#v", err)
	}
	if hidden.Bytes() != nil {
		t.Fatal("Buffer.Bytes: non-visible buffer should return nil")
	}
	if x := d.Live(); x != 2 {
		t.Fatalf("Driver.Live:\nhave %d\nwant 2", x)
	}
	if b, _ := d.Usage(); b != 576 {
		t.Fatalf("Driver.Usage:\nhave %d\nwant 576", b)
	}
	buf.Destroy()
	hidden.Destroy()
	if x := d.Live(); x != 0 {
		t.Fatalf("Driver.Live:\nhave %d\nwant 0", x)
	}
	if b, _ := d.Usage(); b != 0 {
		t.Fatalf("Driver.Usage:\nhave %d\nwant 0", b)
	}
	if _, err := d.NewBuffer(0, true, driver.UGeneric); err == nil {
		t.Fatal("Driver.NewBuffer: expected error for zero size")
	}
}

func TestIDReuse(t *testing.T) {
	d := newDriver(t)
	a, _ := d.NewBuffer(16, true, driver.UGeneric)
	b, _ := d.NewBuffer(16, true, driver.UGeneric)
	a.Destroy()
	c, _ := d.NewBuffer(16, true, driver.UGeneric)
	if x, y := c.(*buffer).id, uint(0); x != y {
		t.Fatalf("buffer.id:\nhave %d\nwant %d", x, y)
	}
	b.Destroy()
	c.Destroy()
}

func TestDestroyTwice(t *testing.T) {
	d := newDriver(t)
	splr, err := d.NewSampler(&driver.Sampling{MaxAniso: 1})
	if err != nil {
		t.Fatalf("Driver.NewSampler failed:\n%#v", err)
	}
	splr.Destroy()
	defer func() {
		if recover() == nil {
			t.Fatal("Sampler.Destroy: expected panic on second call")
		}
	}()
	splr.Destroy()
}

func TestImage(t *testing.T) {
	d := newDriver(t)
	img, err := d.NewImage(driver.RGBA8un, driver.Dim3D{Width: 4, Height: 4}, 1, 3, driver.UShaderSample)
	if err != nil {
		t.Fatalf("Driver.NewImage failed:\n%#v", err)
	}
	if _, x := d.Usage(); x != 4*4*4+2*2*4+1*1*4 {
		t.Fatalf("Driver.Usage:\nhave %d\nwant %d", x, 4*4*4+2*2*4+1*1*4)
	}
	if err := img.Upload(0, 0, make([]byte, 64)); err != nil {
		t.Fatalf("Image.Upload failed:\n%#v", err)
	}
	if err := img.Upload(0, 1, make([]byte, 64)); err == nil {
		t.Fatal("Image.Upload: expected size mismatch error")
	}
	if err := img.Upload(1, 0, make([]byte, 64)); err == nil {
		t.Fatal("Image.Upload: expected out of bounds error")
	}
	img.Destroy()
	if _, x := d.Usage(); x != 0 {
		t.Fatalf("Driver.Usage:\nhave %d\nwant 0", x)
	}
}

func TestClose(t *testing.T) {
	d := newDriver(t)
	d.Close()
	if _, err := d.NewBuffer(16, true, driver.UGeneric); !errors.Is(err, driver.ErrClosed) {
		t.Fatalf("Driver.NewBuffer:\nhave %#v\nwant driver.ErrClosed", err)
	}
	if _, err := d.Open(); err != nil {
		t.Fatalf("Driver.Open failed:\n%#v", err)
	}
	buf, err := d.NewBuffer(16, true, driver.UGeneric)
	if err != nil {
		t.Fatalf("Driver.NewBuffer failed:\n%#v", err)
	}
	buf.Destroy()
}
