package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// ComponentSpec names a pluggable executor or job store and the
// options it's constructed with (spec.md §9 Design Notes: "executors"
// and "jobstores" are a dict of alias -> {class, opts}, mirrored here
// as alias -> ComponentSpec since Go has no dynamic class lookup by
// string; cmd/main.go's wiring switch is the equivalent of the source
// ecosystem's entry-point loader).
type ComponentSpec struct {
	Class string         `yaml:"class"`
	Opts  map[string]any `yaml:"opts"`
}

// Structured is the declarative, YAML-file counterpart to Config's
// flat env vars: it lets an embedder register more than one executor
// or job store alias without adding new environment variables per
// alias.
type Structured struct {
	Executors map[string]ComponentSpec `yaml:"executors"`
	Jobstores map[string]ComponentSpec `yaml:"jobstores"`
	Timezone  string                   `yaml:"timezone"`
}

// LoadStructured reads and parses a YAML file at path. A missing file
// is not an error: it returns an empty Structured so callers can fall
// back entirely to the flat env config.
func LoadStructured(path string) (*Structured, error) {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return &Structured{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("config: reading %s: %w", path, err)
	}

	var s Structured
	if err := yaml.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("config: parsing %s: %w", path, err)
	}
	return &s, nil
}

// OptDuration reads a duration-valued opt, parsing strings with
// time.ParseDuration and accepting plain numbers as seconds.
func (c ComponentSpec) OptDuration(key string, defaultValue time.Duration) time.Duration {
	v, ok := c.Opts[key]
	if !ok {
		return defaultValue
	}
	switch t := v.(type) {
	case string:
		if d, err := time.ParseDuration(t); err == nil {
			return d
		}
	case int:
		return time.Duration(t) * time.Second
	case float64:
		return time.Duration(t * float64(time.Second))
	}
	return defaultValue
}

// OptString reads a string-valued opt.
func (c ComponentSpec) OptString(key, defaultValue string) string {
	if v, ok := c.Opts[key]; ok {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return defaultValue
}

// OptInt reads an int-valued opt.
func (c ComponentSpec) OptInt(key string, defaultValue int) int {
	if v, ok := c.Opts[key]; ok {
		switch t := v.(type) {
		case int:
			return t
		case float64:
			return int(t)
		}
	}
	return defaultValue
}
