// Package config resolves named settings for the statserve daemon and its
// tools. A setting is looked up through layered sources: explicit in-process
// override, then environment variable, then the nested default tree, then the
// caller-supplied default. Lookups never fail; a missing key yields the
// supplied default.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// EnvPrefix is prepended to canonicalized keys when probing the environment,
// so "network.port" also answers to STATSERVE_NETWORK_PORT.
const EnvPrefix = "STATSERVE_"

// Resolver resolves dotted-path configuration keys with type coercion driven
// by the caller's default value. The override layer is process-wide
// configuration set once at startup; Resolver performs no caching beyond the
// trees it holds, and values are never mutated after resolution.
type Resolver struct {
	overrides map[string]any
	tree      map[string]any
}

// New creates a Resolver seeded with the default configuration tree. A .env
// file in the working directory is loaded into the process environment when
// present; its absence is not an error.
func New() *Resolver {
	_ = godotenv.Load()
	return &Resolver{
		overrides: make(map[string]any),
		tree:      defaultTree(),
	}
}

func defaultTree() map[string]any {
	return map[string]any{
		"name":             "statserve",
		"version":          "1.0.0",
		"description":      "Statistics and market data tool server",
		"protocol_version": "2024-11-05",
		"network": map[string]any{
			"host": "0.0.0.0",
			"port": 8081,
		},
		"logging": map[string]any{
			"level": "INFO",
		},
		"debug": map[string]any{
			"enabled": false,
		},
		"market": map[string]any{
			"base_url":         "",
			"api_key":          "",
			"cache_ttl":        300,
			"refresh_schedule": "",
		},
		"storage": map[string]any{
			"sqlite_path": "",
		},
	}
}

// LoadFile merges a YAML configuration file beneath the environment layer:
// file values shadow the built-in defaults but lose to environment variables
// and overrides.
func (r *Resolver) LoadFile(path string) error {
	clean := strings.TrimSpace(path)
	if clean == "" {
		return nil
	}
	// #nosec G304 -- path comes from an explicit flag or config discovery.
	data, err := os.ReadFile(clean)
	if err != nil {
		return fmt.Errorf("reading config %q: %w", clean, err)
	}
	var loaded map[string]any
	if err := yaml.Unmarshal(data, &loaded); err != nil {
		return fmt.Errorf("parsing config %q: %w", clean, err)
	}
	mergeTree(r.tree, loaded)
	return nil
}

func mergeTree(dst, src map[string]any) {
	for key, value := range src {
		if srcMap, ok := value.(map[string]any); ok {
			if dstMap, ok := dst[key].(map[string]any); ok {
				mergeTree(dstMap, srcMap)
				continue
			}
		}
		dst[key] = value
	}
}

// SetOverride pins a key to an explicit value, shadowing every other source.
// Overrides are process-wide configuration set once at startup, not mutated
// per request.
func (r *Resolver) SetOverride(key string, value any) {
	r.overrides[key] = value
}

// Get resolves a dotted-path key. Resolution order: override, environment
// variable (the key verbatim, then its STATSERVE_ canonical form), the
// configuration tree, then def. A missing path returns def, never an error.
func (r *Resolver) Get(key string, def any) any {
	if v, ok := r.overrides[key]; ok {
		return v
	}
	if raw, ok := lookupEnv(key); ok {
		return coerce(raw, def)
	}
	if v, ok := walkTree(r.tree, key); ok {
		return coerceValue(v, def)
	}
	return def
}

// GetEnv reads a named environment variable directly, with the same
// default-driven coercion as Get. Absence of the variable returns def.
func (r *Resolver) GetEnv(key string, def any) any {
	raw, ok := os.LookupEnv(key)
	if !ok || raw == "" {
		return def
	}
	return coerce(raw, def)
}

// GetString is a convenience accessor for string-typed settings.
func (r *Resolver) GetString(key, def string) string {
	v, _ := r.Get(key, def).(string)
	if v == "" {
		return def
	}
	return v
}

// GetInt is a convenience accessor for integer-typed settings.
func (r *Resolver) GetInt(key string, def int) int {
	if v, ok := r.Get(key, def).(int); ok {
		return v
	}
	return def
}

// GetBool is a convenience accessor for boolean-typed settings.
func (r *Resolver) GetBool(key string, def bool) bool {
	if v, ok := r.Get(key, def).(bool); ok {
		return v
	}
	return def
}

func lookupEnv(key string) (string, bool) {
	if raw, ok := os.LookupEnv(key); ok && raw != "" {
		return raw, true
	}
	canonical := EnvPrefix + strings.ToUpper(strings.ReplaceAll(key, ".", "_"))
	if raw, ok := os.LookupEnv(canonical); ok && raw != "" {
		return raw, true
	}
	return "", false
}

func walkTree(tree map[string]any, key string) (any, bool) {
	current := any(tree)
	for _, segment := range strings.Split(key, ".") {
		node, ok := current.(map[string]any)
		if !ok {
			return nil, false
		}
		current, ok = node[segment]
		if !ok {
			return nil, false
		}
	}
	return current, true
}

// coerce parses a raw string into the type of def. Parse failures fall back
// to def rather than faulting the caller.
func coerce(raw string, def any) any {
	switch def.(type) {
	case bool:
		switch strings.ToLower(strings.TrimSpace(raw)) {
		case "true", "1", "yes":
			return true
		default:
			return false
		}
	case int:
		if n, err := strconv.Atoi(strings.TrimSpace(raw)); err == nil {
			return n
		}
		return def
	case int64:
		if n, err := strconv.ParseInt(strings.TrimSpace(raw), 10, 64); err == nil {
			return n
		}
		return def
	case float64:
		if f, err := strconv.ParseFloat(strings.TrimSpace(raw), 64); err == nil {
			return f
		}
		return def
	default:
		return raw
	}
}

// coerceValue aligns a tree value with the default's type where the YAML or
// default tree stored a compatible representation.
func coerceValue(v, def any) any {
	switch def.(type) {
	case int:
		switch n := v.(type) {
		case int:
			return n
		case int64:
			return int(n)
		case float64:
			return int(n)
		case string:
			return coerce(n, def)
		}
	case bool:
		switch b := v.(type) {
		case bool:
			return b
		case string:
			return coerce(b, def)
		}
	case float64:
		switch f := v.(type) {
		case float64:
			return f
		case int:
			return float64(f)
		case string:
			return coerce(f, def)
		}
	case string:
		if s, ok := v.(string); ok {
			return s
		}
		return fmt.Sprint(v)
	}
	return v
}

// Tree returns a deep copy of the resolved configuration tree. Mutating the
// copy has no effect on the resolver.
func (r *Resolver) Tree() map[string]any {
	return copyTree(r.tree)
}

func copyTree(src map[string]any) map[string]any {
	out := make(map[string]any, len(src))
	for key, value := range src {
		if nested, ok := value.(map[string]any); ok {
			out[key] = copyTree(nested)
			continue
		}
		out[key] = value
	}
	return out
}
