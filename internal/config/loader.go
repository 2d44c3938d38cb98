package config

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"

	"github.com/go-viper/mapstructure/v2"
	"github.com/joho/godotenv"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// Environment variable names understood by Load.
const (
	EnvPrefix     = "DRTUNE_"
	EnvConfigFile = "DRTUNE_CONFIG"
	EnvEnvFile    = "DRTUNE_ENV_FILE"

	// Variables read by the platform's own client tooling.
	EnvPlatformEndpoint = "DATAROBOT_ENDPOINT"
	EnvPlatformToken    = "DATAROBOT_API_TOKEN"

	defaultEnvFile = ".env"
	nestedEnvSep   = "__"
)

type loadOptions struct {
	file    string
	envFile string
}

// LoadOption customizes Load.
type LoadOption func(*loadOptions)

// WithFile loads a YAML file, taking precedence over DRTUNE_CONFIG.
func WithFile(path string) LoadOption {
	return func(o *loadOptions) {
		if path != "" {
			o.file = path
		}
	}
}

// WithEnvFile loads a dotenv file into the process environment before the
// environment is read. An explicit file must exist.
func WithEnvFile(path string) LoadOption {
	return func(o *loadOptions) {
		if path != "" {
			o.envFile = path
		}
	}
}

// Load builds a Config by layering defaults, optional files, and env vars.
// Order of precedence (low -> high):
//  1. defaults (New(ctx))
//  2. dotenv file (./.env, DRTUNE_ENV_FILE or WithEnvFile); never overrides
//     variables already set in the environment
//  3. YAML file if DRTUNE_CONFIG or WithFile is set
//  4. env (prefix DRTUNE_, "__" separates nested sections)
//  5. DATAROBOT_ENDPOINT / DATAROBOT_API_TOKEN for values still unset
func Load(ctx context.Context, opts ...LoadOption) (*Config, error) {
	o := loadOptions{
		file:    os.Getenv(EnvConfigFile),
		envFile: os.Getenv(EnvEnvFile),
	}
	for _, opt := range opts {
		opt(&o)
	}

	if err := LoadEnvFile(ctx, o.envFile); err != nil {
		return nil, err
	}
	// The dotenv file may have named the YAML file.
	if o.file == "" {
		o.file = os.Getenv(EnvConfigFile)
	}

	base := New(ctx)
	k := koanf.New(".")

	if o.file != "" {
		if err := k.Load(file.Provider(o.file), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("%w: %s: %w", ErrLoadConfig, o.file, err)
		}
	}

	// DRTUNE_LOG_LEVEL -> log_level, DRTUNE_TIMESERIES__TARGET -> timeseries.target
	envProvider := env.Provider(EnvPrefix, ".", envKey)
	if err := k.Load(envProvider, nil); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrLoadConfig, err)
	}

	cfg := *base
	if err := k.UnmarshalWithConf("", &cfg, unmarshalConf(&cfg)); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrLoadConfig, err)
	}

	if !k.Exists("endpoint") {
		if v := os.Getenv(EnvPlatformEndpoint); v != "" {
			cfg.Endpoint = v
		}
	}
	if cfg.APIToken == "" {
		cfg.APIToken = os.Getenv(EnvPlatformToken)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// unmarshalConf decodes durations from strings and splits comma separated
// env values into lists.
func unmarshalConf(out *Config) koanf.UnmarshalConf {
	return koanf.UnmarshalConf{
		Tag: "koanf",
		DecoderConfig: &mapstructure.DecoderConfig{
			DecodeHook: mapstructure.ComposeDecodeHookFunc(
				mapstructure.StringToTimeDurationHookFunc(),
				mapstructure.StringToSliceHookFunc(","),
			),
			TagName:          "koanf",
			WeaklyTypedInput: true,
			Result:           out,
		},
	}
}

// envKey maps an environment variable name to a koanf key. Variables that
// configure the loader itself are skipped.
func envKey(s string) string {
	if s == EnvConfigFile || s == EnvEnvFile {
		return ""
	}
	s = strings.ToLower(strings.TrimPrefix(s, EnvPrefix))
	return strings.ReplaceAll(s, nestedEnvSep, ".")
}

// LoadEnvFile loads a dotenv file into the process environment. An empty
// path falls back to ./.env, which may be absent.
func LoadEnvFile(_ context.Context, path string) error {
	explicit := path != ""
	if !explicit {
		path = defaultEnvFile
	}
	if err := godotenv.Load(path); err != nil {
		if !explicit && errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("%w: env file %s: %w", ErrLoadConfig, path, err)
	}
	return nil
}
