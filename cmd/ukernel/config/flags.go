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

package config

import (
	"flag"
	"fmt"
	"reflect"
	"strconv"
	"time"

	"github.com/BurntSushi/toml"
)

// RegisterFlags registers flags used to populate Config.
func RegisterFlags(flagSet *flag.FlagSet) {
	flagSet.String("config", "", "TOML file with boot settings. Flags set on the command line take precedence.")

	// Kernel.
	flagSet.Int("harts", 1, "number of hardware threads.")
	flagSet.String("layout", "sv39", "memory layout preset: sv39 or sv48.")
	flagSet.Int64("buffer-limit", 0, "maximum bytes of shared buffer memory, 0 for no limit.")
	flagSet.Duration("connect-timeout", 5*time.Second, "how long clients wait for a service to register.")

	// Logging.
	flagSet.Bool("debug", false, "enable debug logging.")
	flagSet.String("log-format", "text", "log format: text (default) or json.")
	flagSet.String("log", "", "file path where logs are written, default is stderr.")

	// Services.
	flagSet.String("manifest", "", "YAML device manifest served by the device manager.")
	flagSet.String("fs-root", ".", "host directory served by the filesystem service.")
	flagSet.String("metrics", "", "file where metrics are written when the kernel stops, '-' for stdout.")
}

// NewFromFlags creates a new Config with values coming from command line
// flags and, if --config is set, the configuration file.
func NewFromFlags(flagSet *flag.FlagSet) (*Config, error) {
	conf := &Config{}
	if err := conf.setFlags(flagSet, flagSet.VisitAll); err != nil {
		return nil, err
	}
	if conf.ConfigFile != "" {
		if err := conf.overlay(conf.ConfigFile); err != nil {
			return nil, err
		}
		// Explicit flags win over the file.
		if err := conf.setFlags(flagSet, flagSet.Visit); err != nil {
			return nil, err
		}
	}
	if err := conf.validate(); err != nil {
		return nil, err
	}
	return conf, nil
}

// setFlags copies the flags walked by visit into their tagged fields.
func (c *Config) setFlags(flagSet *flag.FlagSet, visit func(func(*flag.Flag))) error {
	fields := fieldsByFlag(c)
	var err error
	visit(func(fl *flag.Flag) {
		field, ok := fields[fl.Name]
		if !ok || err != nil {
			return
		}
		g, ok := fl.Value.(flag.Getter)
		if !ok {
			err = fmt.Errorf("flag %q has no getter", fl.Name)
			return
		}
		field.Set(reflect.ValueOf(g.Get()))
	})
	if err != nil {
		return err
	}
	for name := range fields {
		if flagSet.Lookup(name) == nil {
			panic(fmt.Sprintf("Flag %q not found", name))
		}
	}
	return nil
}

// overlay decodes the TOML file at path into c. Unknown keys are errors.
func (c *Config) overlay(path string) error {
	md, err := toml.DecodeFile(path, c)
	if err != nil {
		return fmt.Errorf("reading config file: %w", err)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		return fmt.Errorf("config file %s: unknown keys %v", path, undecoded)
	}
	return nil
}

// fieldsByFlag maps flag names to the fields of c they populate.
func fieldsByFlag(c *Config) map[string]reflect.Value {
	obj := reflect.ValueOf(c).Elem()
	st := obj.Type()
	fields := make(map[string]reflect.Value)
	for i := 0; i < st.NumField(); i++ {
		if name, ok := st.Field(i).Tag.Lookup("flag"); ok {
			fields[name] = obj.Field(i)
		}
	}
	return fields
}

// ToFlags returns a slice of flags that correspond to the given Config.
func (c *Config) ToFlags() []string {
	obj := reflect.ValueOf(c).Elem()
	st := obj.Type()
	var rv []string
	for i := 0; i < st.NumField(); i++ {
		name, ok := st.Field(i).Tag.Lookup("flag")
		if !ok || name == "config" {
			continue
		}
		rv = append(rv, fmt.Sprintf("--%s=%s", name, getVal(obj.Field(i))))
	}
	return rv
}

func getVal(field reflect.Value) string {
	if str, ok := field.Addr().Interface().(fmt.Stringer); ok {
		return str.String()
	}
	switch field.Kind() {
	case reflect.Bool:
		return strconv.FormatBool(field.Bool())
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return strconv.FormatInt(field.Int(), 10)
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		return strconv.FormatUint(field.Uint(), 10)
	case reflect.String:
		return field.String()
	default:
		panic("unknown type " + field.Kind().String())
	}
}
