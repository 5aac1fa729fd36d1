// config_loader.go: multi-format configuration file loading
//
// Copyright (c) 2025 AGILira - A. Giordano
// Series: an AGILira library
// SPDX-License-Identifier: MPL-2.0

package termite

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/agilira/argus"
	"gopkg.in/ini.v1"
	"gopkg.in/yaml.v3"
)

// platformSection is the section holding platform keys in sectioned formats.
const platformSection = "platform"

// keyAliases maps alternative key spellings to their canonical form.
var keyAliases = map[string]string{
	"plugins_dir":        "plugin_locations",
	"plugins_directory":  "plugin_locations",
	"restricted_modules": "restricted_capabilities",
	"loglevel":           "log_level",
	"logformat":          "log_format",
}

// LoadConfigFromFile loads the configuration file at path.
//
// The format follows the file extension:
//   - INI (.ini, .cfg, .conf): keys of the [platform] section
//   - YAML (.yaml, .yml): parsed with gopkg.in/yaml.v3
//   - JSON, TOML and the other formats argus detects: parsed by argus
//
// Environment overrides are applied, the result is validated and defaults
// fill in whatever the file leaves out.
//
// Example usage:
//
//	cfg, err := termite.LoadConfigFromFile("conf/platform.ini")
//	if err != nil {
//	    log.Fatalf("Failed to load config: %v", err)
//	}
func LoadConfigFromFile(path string) (Config, error) {
	var cfg Config

	cleanPath := filepath.Clean(path)
	data, err := os.ReadFile(cleanPath) // #nosec G304 -- operator supplied configuration path
	if err != nil {
		return cfg, NewConfigNotFoundError(cleanPath, err)
	}

	values, err := parseConfigData(cleanPath, data)
	if err != nil {
		return cfg, NewConfigParseError(cleanPath, err)
	}

	cfg, err = bindConfig(values)
	if err != nil {
		return cfg, err
	}

	cfg.ApplyEnvironment()
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	cfg.ApplyDefaults()
	return cfg, nil
}

// parseConfigData decodes data into a generic map according to the format
// of path.
func parseConfigData(path string, data []byte) (map[string]interface{}, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".ini", ".cfg", ".conf":
		return parseINIConfig(data)
	}

	switch format := argus.DetectFormat(path); format {
	case argus.FormatYAML:
		values := make(map[string]interface{})
		if err := yaml.Unmarshal(data, &values); err != nil {
			return nil, fmt.Errorf("failed to parse YAML config: %w", err)
		}
		return values, nil
	default:
		return argus.ParseConfig(data, format)
	}
}

// parseINIConfig returns the keys of the default section at the top level
// and every named section as a nested map.
func parseINIConfig(data []byte) (map[string]interface{}, error) {
	file, err := ini.Load(data)
	if err != nil {
		return nil, err
	}

	values := make(map[string]interface{})
	for _, section := range file.Sections() {
		target := values
		if section.Name() != ini.DefaultSection {
			nested := make(map[string]interface{})
			values[strings.ToLower(section.Name())] = nested
			target = nested
		}
		for _, key := range section.Keys() {
			target[key.Name()] = key.String()
		}
	}
	return values, nil
}

// bindConfig maps parsed values onto Config. Keys of the platform section
// take precedence over top-level keys.
func bindConfig(values map[string]interface{}) (Config, error) {
	var cfg Config

	flat := make(map[string]interface{}, len(values))
	for key, value := range values {
		flat[canonicalKey(key)] = value
	}
	if section, ok := flat[platformSection].(map[string]interface{}); ok {
		for key, value := range section {
			flat[canonicalKey(key)] = value
		}
	}

	var err error
	for key, value := range flat {
		switch key {
		case "plugin_locations":
			cfg.PluginLocations, err = toStringList(value)
		case "restricted_capabilities":
			cfg.RestrictedCapabilities, err = toStringList(value)
		case "manifest_file":
			cfg.ManifestFile = toString(value)
		case "comment_marker":
			cfg.CommentMarker = toString(value)
		case "discovery_depth":
			cfg.DiscoveryDepth, err = toInt(value)
		case "log_level":
			cfg.LogLevel = toString(value)
		case "log_format":
			cfg.LogFormat = toString(value)
		case "watch":
			cfg.Watch, err = toBool(value)
		case "watch_interval":
			cfg.WatchInterval, err = toDuration(value)
		}
		if err != nil {
			return cfg, NewConfigValidationError("invalid value for " + key + ": " + err.Error())
		}
	}
	return cfg, nil
}

func canonicalKey(key string) string {
	key = strings.ReplaceAll(strings.ToLower(strings.TrimSpace(key)), "-", "_")
	if alias, ok := keyAliases[key]; ok {
		return alias
	}
	return key
}

func toString(value interface{}) string {
	if s, ok := value.(string); ok {
		return strings.TrimSpace(s)
	}
	return fmt.Sprint(value)
}

func toStringList(value interface{}) ([]string, error) {
	switch v := value.(type) {
	case string:
		return splitList(v), nil
	case []string:
		return splitList(strings.Join(v, ",")), nil
	case []interface{}:
		items := make([]string, 0, len(v))
		for _, item := range v {
			if s := toString(item); s != "" {
				items = append(items, s)
			}
		}
		return items, nil
	default:
		return nil, fmt.Errorf("expected a list, got %T", value)
	}
}

func toInt(value interface{}) (int, error) {
	switch v := value.(type) {
	case int:
		return v, nil
	case int64:
		return int(v), nil
	case float64:
		return int(v), nil
	case string:
		return strconv.Atoi(strings.TrimSpace(v))
	default:
		return 0, fmt.Errorf("expected a number, got %T", value)
	}
}

func toBool(value interface{}) (bool, error) {
	switch v := value.(type) {
	case bool:
		return v, nil
	case string:
		return strconv.ParseBool(strings.TrimSpace(v))
	default:
		return false, fmt.Errorf("expected a boolean, got %T", value)
	}
}

// toDuration accepts Go duration strings or a number of seconds.
func toDuration(value interface{}) (time.Duration, error) {
	switch v := value.(type) {
	case string:
		v = strings.TrimSpace(v)
		if seconds, err := strconv.ParseFloat(v, 64); err == nil {
			return time.Duration(seconds * float64(time.Second)), nil
		}
		return time.ParseDuration(v)
	case int:
		return time.Duration(v) * time.Second, nil
	case int64:
		return time.Duration(v) * time.Second, nil
	case float64:
		return time.Duration(v * float64(time.Second)), nil
	default:
		return 0, fmt.Errorf("expected a duration, got %T", value)
	}
}
