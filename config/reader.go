package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/go-viper/mapstructure/v2"
	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

// Read loads a JSON or YAML config file over Default and validates it.
func Read(path string) (*Config, error) {
	//nolint:gosec
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "reading config %q", path)
	}
	var attrs map[string]interface{}
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".json":
		if err := json.Unmarshal(raw, &attrs); err != nil {
			return nil, errors.Wrapf(err, "parsing config %q", path)
		}
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(raw, &attrs); err != nil {
			return nil, errors.Wrapf(err, "parsing config %q", path)
		}
	default:
		return nil, errors.Errorf("config %q has unsupported extension %q", path, ext)
	}

	cfg, err := FromMap(attrs)
	if err != nil {
		return nil, errors.Wrapf(err, "decoding config %q", path)
	}
	if err := cfg.Validate(filepath.Base(path)); err != nil {
		return nil, err
	}
	return cfg, nil
}

// FromMap decodes attrs over Default. Durations may be given as strings such
// as "5ms" and unknown keys are rejected.
func FromMap(attrs map[string]interface{}) (*Config, error) {
	cfg := Default()
	var md mapstructure.Metadata
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		TagName:          "json",
		Result:           cfg,
		Metadata:         &md,
		WeaklyTypedInput: true,
		ZeroFields:       true,
		DecodeHook:       mapstructure.StringToTimeDurationHookFunc(),
	})
	if err != nil {
		return nil, err
	}
	if err := decoder.Decode(attrs); err != nil {
		return nil, err
	}
	if len(md.Unused) > 0 {
		sort.Strings(md.Unused)
		return nil, errors.Errorf("unknown config keys: %s", strings.Join(md.Unused, ", "))
	}
	return cfg, nil
}
