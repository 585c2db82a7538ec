package config

import (
	"bytes"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"time"

	"github.com/mitchellh/mapstructure"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/ajitpratap0/nebula-restclient/pkg/errors"
)

// EnvPrefix prefixes environment overrides, e.g. RESTCLIENT_PERFORMANCE_WORKERS
const EnvPrefix = "RESTCLIENT"

// NewViper returns a viper instance holding the defaults and bound to the
// environment. Callers may bind flags to it before calling LoadWith.
func NewViper() (*viper.Viper, error) {
	v := viper.New()
	v.SetConfigType("yaml")
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	defaults, err := yaml.Marshal(Default())
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeInternal, "failed to render defaults")
	}
	if err := v.ReadConfig(bytes.NewReader(defaults)); err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeInternal, "failed to load defaults")
	}
	return v, nil
}

// Load reads, merges over the defaults and validates a configuration file
func Load(path string) (*Config, error) {
	v, err := NewViper()
	if err != nil {
		return nil, err
	}
	return LoadWith(v, path)
}

// LoadWith merges the file at path into v, then decodes and validates.
// ${VAR} and ${VAR:-default} references in the file are substituted first.
func LoadWith(v *viper.Viper, path string) (*Config, error) {
	data, err := os.ReadFile(path) //nolint:gosec // path comes from the operator
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeFile, "failed to read config file").WithDetail("path", path)
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		v.SetConfigType("json")
	default:
		v.SetConfigType("yaml")
	}
	if err := v.MergeConfig(strings.NewReader(substituteEnvVars(string(data)))); err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeConfig, "failed to parse config file").WithDetail("path", path)
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg, viper.DecodeHook(mapstructure.ComposeDecodeHookFunc(
		timeToStringHook,
		mapstructure.StringToTimeDurationHookFunc(),
		mapstructure.StringToSliceHookFunc(","),
	))); err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeConfig, "failed to decode config")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Save writes a configuration as YAML
func Save(path string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return errors.Wrap(err, errors.ErrorTypeInternal, "failed to marshal YAML")
	}
	if err := os.WriteFile(path, data, 0o644); err != nil { //nolint:gosec
		return errors.Wrap(err, errors.ErrorTypeFile, "failed to write config file").WithDetail("path", path)
	}
	return nil
}

// timeToStringHook keeps unquoted YAML dates usable as window bounds
func timeToStringHook(_ reflect.Type, to reflect.Type, data interface{}) (interface{}, error) {
	if to.Kind() != reflect.String {
		return data, nil
	}
	if t, ok := data.(time.Time); ok {
		return t.Format(time.RFC3339Nano), nil
	}
	return data, nil
}

// substituteEnvVars replaces ${NAME} with the environment value of NAME and
// ${NAME:-fallback} with fallback when NAME is unset or empty
func substituteEnvVars(content string) string {
	var b strings.Builder
	for {
		start := strings.Index(content, "${")
		if start == -1 {
			break
		}
		end := strings.Index(content[start:], "}")
		if end == -1 {
			break
		}
		end += start

		name, fallback, hasFallback := strings.Cut(content[start+2:end], ":-")
		value := os.Getenv(name)
		if value == "" && hasFallback {
			value = fallback
		}
		b.WriteString(content[:start])
		b.WriteString(value)
		content = content[end+1:]
	}
	b.WriteString(content)
	return b.String()
}
