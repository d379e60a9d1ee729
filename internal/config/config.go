// Package config loads settings for the command-line tools from defaults,
// an optional YAML file and AFFY_* environment variables, in that order of
// precedence (later wins).
package config

import (
	"errors"
	"fmt"
	"os"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v2"
)

// EnvPrefix prefixes every environment variable.
const EnvPrefix = "AFFY"

// Config is the complete tool configuration.
type Config struct {
	Layout  LayoutConfig  `yaml:"layout"`
	Samples SampleConfig  `yaml:"samples"`
	Polish  PolishConfig  `yaml:"polish"`
	Output  OutputConfig  `yaml:"output"`
	Logging LoggingConfig `yaml:"logging"`
	Metrics MetricsConfig `yaml:"metrics"`
}

// LayoutConfig controls CDF decoding. An unknown Selection is not a
// validation error; the layout decoder falls back to pm and warns.
type LayoutConfig struct {
	Selection  string `yaml:"selection" split_words:"true"`
	LineEnding int    `yaml:"line_ending" split_words:"true" validate:"min=0,max=2"`
}

// SampleConfig controls CEL decoding.
type SampleConfig struct {
	Masked        bool          `yaml:"masked" split_words:"true"`
	Outliers      bool          `yaml:"outliers" split_words:"true"`
	Decompressor  string        `yaml:"decompressor" split_words:"true" validate:"oneof=external inprocess"`
	GunzipCommand string        `yaml:"gunzip_command" split_words:"true" validate:"required"`
	Workers       int           `yaml:"workers" split_words:"true" validate:"min=1,max=256"`
	Timeout       time.Duration `yaml:"timeout" split_words:"true" validate:"gt=0"`
}

// PolishConfig controls summarization. MaxIter must be a positive bound.
type PolishConfig struct {
	Enabled bool    `yaml:"enabled" split_words:"true"`
	Eps     float64 `yaml:"eps" split_words:"true" validate:"gt=0"`
	MaxIter int     `yaml:"max_iter" split_words:"true" validate:"min=1"`
	Log2    bool    `yaml:"log2" split_words:"true"`
}

// OutputConfig controls the expression table.
type OutputConfig struct {
	Format string `yaml:"format" split_words:"true" validate:"oneof=tsv xlsx"`
	Path   string `yaml:"path" split_words:"true"`
	Sheet  string `yaml:"sheet" split_words:"true" validate:"required,max=31"`
}

// LoggingConfig controls the structured logger.
type LoggingConfig struct {
	Level  string `yaml:"level" split_words:"true" validate:"oneof=debug info warn error"`
	Format string `yaml:"format" split_words:"true" validate:"oneof=json text"`
}

// MetricsConfig controls the Prometheus textfile written after a run.
type MetricsConfig struct {
	TextFile string `yaml:"textfile" split_words:"true"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Layout: LayoutConfig{Selection: "pm"},
		Samples: SampleConfig{
			Decompressor:  "external",
			GunzipCommand: "gunzip",
			Workers:       4,
			Timeout:       10 * time.Minute,
		},
		Polish: PolishConfig{Enabled: true, Eps: 0.01, MaxIter: 10, Log2: true},
		Output: OutputConfig{Format: "tsv", Sheet: "expression"},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
	}
}

// Load builds the configuration. An empty path skips the file. The result
// is not validated, so callers can apply their own overrides first and then
// call Validate.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		if err := loadFile(path, cfg); err != nil {
			return nil, fmt.Errorf("loading config file: %w", err)
		}
	}
	if err := envconfig.Process(EnvPrefix, cfg); err != nil {
		return nil, fmt.Errorf("loading config from env: %w", err)
	}
	return cfg, nil
}

// loadFile overlays the YAML file at path onto cfg.
func loadFile(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	return yaml.UnmarshalStrict(data, cfg)
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	// Report YAML names in errors.
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("yaml"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// Validate checks every field constraint.
func (c *Config) Validate() error {
	err := validate.Struct(c)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return fmt.Errorf("config validation failed: %w", err)
	}
	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		msgs = append(msgs, fmt.Sprintf("%s: failed %q (%s=%v)", fe.Namespace(), fe.Tag(), fe.Param(), fe.Value()))
	}
	return fmt.Errorf("config validation failed: %s", strings.Join(msgs, "; "))
}
