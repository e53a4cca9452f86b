// Copyright 2023 Gustavo C. Viegas. All rights reserved.

// Package ctxt provides the GPU driver used in the engine.
package ctxt

import (
	"errors"
	"log"
	"os"

	"github.com/gviegas/stage/driver"
	_ "github.com/gviegas/stage/driver/soft"
)

// EnvDriver names the environment variable consulted
// when selecting a driver.
const EnvDriver = "STAGE_DRIVER"

var (
	drv    driver.Driver
	gpu    driver.GPU
	limits driver.Limits
)

var errNoDriver = errors.New("ctxt: driver not found")

// loadDriver attempts to load any driver whose name
// contains the name string. It is case insensitive.
// If name is the empty string, then all registered
// drivers are considered.
// It replaces the drv and gpu vars on success.
func loadDriver(name string) error {
	if name == "" {
		err := errNoDriver
		for _, d := range driver.Drivers() {
			if err = open(d); err == nil {
				return nil
			}
		}
		return err
	}
	d, ok := driver.Lookup(name)
	if !ok {
		return errNoDriver
	}
	return open(d)
}

func open(d driver.Driver) error {
	u, err := d.Open()
	if err != nil {
		return err
	}
	drv = d
	gpu = u
	limits = gpu.Limits()
	return nil
}

func init() {
	name := os.Getenv(EnvDriver)
	if err := loadDriver(name); err != nil {
		if name == "" {
			panic(err)
		}
		log.Printf("[!] driver '%s' unavailable (%v), trying all drivers", name, err)
		if err = loadDriver(""); err != nil {
			panic(err)
		}
	}
}

// Driver returns the driver.Driver.
func Driver() driver.Driver { return drv }

// GPU returns the driver.GPU.
func GPU() driver.GPU { return gpu }

// Limits returns GPU().Limits().
// This value is retrieved only once. It must not be
// changed by the caller.
func Limits() *driver.Limits { return &limits }
