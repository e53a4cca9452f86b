// Copyright 2024 Gustavo C. Viegas. All rights reserved.

package driver_test

import (
	"testing"

	"github.com/gviegas/stage/driver"
	_ "github.com/gviegas/stage/driver/soft"
)

func TestDrivers(t *testing.T) {
	drivers := driver.Drivers()
	if len(drivers) == 0 {
		t.Fatal("driver.Drivers: no driver registered")
	}
	for i := range drivers {
		name := drivers[i].Name()
		for j := range i {
			if name == drivers[j].Name() {
				t.Error("driver.Drivers: Driver.Name is not unique")
			}
		}
	}
}

func TestLookup(t *testing.T) {
	if _, ok := driver.Lookup("SOFT"); !ok {
		t.Error("driver.Lookup: lookup should be case insensitive")
	}
	if _, ok := driver.Lookup(""); !ok {
		t.Error("driver.Lookup: empty name should match any driver")
	}
	if _, ok := driver.Lookup("no such driver"); ok {
		t.Error("driver.Lookup: unexpected match")
	}
}

func TestVertexFmtSize(t *testing.T) {
	for _, x := range [...]struct {
		f    driver.VertexFmt
		size int
	}{
		{driver.Int8, 1},
		{driver.UInt8x4, 4},
		{driver.Int16x3, 6},
		{driver.UInt16x2, 4},
		{driver.UInt32, 4},
		{driver.Float32x3, 12},
		{driver.Float32x4, 16},
		{driver.VertexFmt(-1), 0},
	} {
		if n := x.f.Size(); n != x.size {
			t.Errorf("VertexFmt(%d).Size:\nhave %d\nwant %d", x.f, n, x.size)
		}
	}
}
