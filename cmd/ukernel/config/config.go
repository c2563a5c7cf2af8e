// Copyright 2026 The gVisor Authors.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package config holds the boot configuration of the ukernel binary.
//
// Values come from three places, applied in order: flag defaults, an
// optional TOML file named by --config, and flags set explicitly on the
// command line.
package config

import (
	"fmt"
	"reflect"
	"sort"
	"strings"
	"time"

	"gvisor.dev/ukernel/pkg/abi/layout"
	"gvisor.dev/ukernel/pkg/kernel"
	"gvisor.dev/ukernel/pkg/log"
)

// Config holds the configuration of one boot.
//
// Every field with a flag tag is registered by RegisterFlags. The toml tag
// names the key in the configuration file.
type Config struct {
	// ConfigFile is the TOML file overlaid on the flag defaults.
	ConfigFile string `flag:"config" toml:"-"`

	// Harts is the number of hardware threads.
	Harts int `flag:"harts" toml:"harts"`

	// Layout selects the memory layout preset.
	Layout string `flag:"layout" toml:"layout"`

	// BufferLimit bounds shared buffer memory in bytes. Zero means no limit.
	BufferLimit int64 `flag:"buffer-limit" toml:"buffer_limit"`

	// ConnectTimeout bounds how long a client waits for a service.
	ConnectTimeout time.Duration `flag:"connect-timeout" toml:"connect_timeout"`

	// Debug enables debug logging.
	Debug bool `flag:"debug" toml:"debug"`

	// LogFormat is "text" or "json".
	LogFormat string `flag:"log-format" toml:"log_format"`

	// LogFile is where logs are written. Empty means stderr.
	LogFile string `flag:"log" toml:"log"`

	// Manifest is the device manifest served by the device manager. Empty
	// means no devices.
	Manifest string `flag:"manifest" toml:"manifest"`

	// FSRoot is the host directory served by the filesystem service.
	FSRoot string `flag:"fs-root" toml:"fs_root"`

	// Metrics is where kernel metrics are written when the kernel stops.
	// "-" means stdout and empty disables the export.
	Metrics string `flag:"metrics" toml:"metrics"`
}

func (c *Config) validate() error {
	if c.Harts < 1 {
		return fmt.Errorf("harts must be at least 1, got %d", c.Harts)
	}
	if c.BufferLimit < 0 {
		return fmt.Errorf("buffer-limit must not be negative, got %d", c.BufferLimit)
	}
	if c.ConnectTimeout <= 0 {
		return fmt.Errorf("connect-timeout must be positive, got %v", c.ConnectTimeout)
	}
	switch c.LogFormat {
	case "text", "json":
	default:
		return fmt.Errorf("invalid log format %q, must be 'text' or 'json'", c.LogFormat)
	}
	if _, err := layout.ByName(c.Layout); err != nil {
		return err
	}
	return nil
}

// KernelOptions returns the kernel options described by c.
func (c *Config) KernelOptions() (kernel.Options, error) {
	l, err := layout.ByName(c.Layout)
	if err != nil {
		return kernel.Options{}, err
	}
	return kernel.Options{
		Harts:          c.Harts,
		Layout:         l,
		BufferLimit:    c.BufferLimit,
		ConnectTimeout: c.ConnectTimeout,
	}, nil
}

// Log writes every setting to the debug log.
func (c *Config) Log() {
	obj := reflect.ValueOf(c).Elem()
	st := obj.Type()
	var lines []string
	for i := 0; i < st.NumField(); i++ {
		name, ok := st.Field(i).Tag.Lookup("flag")
		if !ok {
			continue
		}
		lines = append(lines, fmt.Sprintf("%s=%s", name, getVal(obj.Field(i))))
	}
	sort.Strings(lines)
	log.Infof("Configuration:")
	for _, l := range lines {
		log.Infof("\t\t%s", l)
	}
}

// String returns the configuration as command line flags.
func (c *Config) String() string {
	return strings.Join(c.ToFlags(), " ")
}
