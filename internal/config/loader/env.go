package loader

import (
	"encoding/json"
	"os"
	"strconv"
	"strings"
)

// DefaultEnvPrefix is the prefix of the environment variables read by
// NewEnvLoader.
const DefaultEnvPrefix = "PLUGCORE_"

// EnvLoader loads configuration from prefixed environment variables.
//
// PLUGCORE_LUA_CALL_STACK_SIZE sets lua.call_stack_size: the first word
// after the prefix is the section and the rest, lowercased, is the key.
// Explicit mappings override that rule.
type EnvLoader struct {
	prefix  string
	mapping map[string]string // env var -> config path
	kinds   map[string]kind   // config path -> how its value is parsed
}

type kind int

const (
	kindAuto kind = iota
	kindString
	kindList
)

// NewEnvLoader creates an environment loader. The prefix includes the
// trailing underscore.
func NewEnvLoader(prefix string) *EnvLoader {
	return &EnvLoader{
		prefix:  prefix,
		mapping: make(map[string]string),
		kinds:   make(map[string]kind),
	}
}

// AddMapping maps an environment variable to a config path.
func (l *EnvLoader) AddMapping(envVar, configPath string) *EnvLoader {
	l.mapping[envVar] = configPath
	return l
}

// AddString marks a config path whose value is always kept as a string.
func (l *EnvLoader) AddString(configPath string) *EnvLoader {
	l.kinds[configPath] = kindString
	return l
}

// AddList marks a config path as a list. Its variable holds either a JSON
// array or comma-separated values.
func (l *EnvLoader) AddList(configPath string) *EnvLoader {
	l.kinds[configPath] = kindList
	return l
}

// Load reads the environment. Empty values are kept, not treated as unset.
func (l *EnvLoader) Load() (map[string]any, error) {
	config := make(map[string]any)

	for _, env := range os.Environ() {
		name, value, ok := strings.Cut(env, "=")
		if !ok || !strings.HasPrefix(name, l.prefix) {
			continue
		}

		path, mapped := l.mapping[name]
		if !mapped {
			path = l.envToPath(name)
		}
		if path == "" {
			continue
		}
		setByPath(config, path, l.value(path, value))
	}

	return config, nil
}

// envToPath converts PLUGCORE_PLUGINS_PATHS to plugins.paths.
func (l *EnvLoader) envToPath(env string) string {
	name := strings.ToLower(strings.TrimPrefix(env, l.prefix))
	section, key, ok := strings.Cut(name, "_")
	if !ok {
		return section
	}
	return section + "." + key
}

func (l *EnvLoader) value(path, s string) any {
	switch l.kinds[path] {
	case kindString:
		return s
	case kindAuto:
		return ParseValue(s)
	}

	if strings.HasPrefix(strings.TrimSpace(s), "[") {
		var list []any
		if err := json.Unmarshal([]byte(s), &list); err == nil {
			return list
		}
	}

	list := []any{}
	for _, item := range strings.Split(s, ",") {
		if item = strings.TrimSpace(item); item != "" {
			list = append(list, item)
		}
	}
	return list
}

// ParseValue converts an environment string to an int64, float64, bool,
// JSON array or object, falling back to the string itself.
func ParseValue(s string) any {
	if s == "" {
		return s
	}

	if i, err := strconv.ParseInt(s, 10, 64); err == nil {
		return i
	}
	if strings.Contains(s, ".") {
		if f, err := strconv.ParseFloat(s, 64); err == nil {
			return f
		}
	}

	switch strings.ToLower(s) {
	case "true", "yes", "on":
		return true
	case "false", "no", "off":
		return false
	}

	if strings.HasPrefix(s, "[") || strings.HasPrefix(s, "{") {
		var v any
		if err := json.Unmarshal([]byte(s), &v); err == nil {
			return v
		}
	}

	return s
}

// setByPath sets a value in a nested map using a dot-separated path.
func setByPath(data map[string]any, path string, value any) {
	parts := strings.Split(path, ".")
	current := data

	for _, part := range parts[:len(parts)-1] {
		next, ok := current[part].(map[string]any)
		if !ok {
			next = make(map[string]any)
			current[part] = next
		}
		current = next
	}

	current[parts[len(parts)-1]] = value
}
