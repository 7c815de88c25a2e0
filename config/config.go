/*
Copyright © 2026 Benny Powers <web@bennypowers.com>

This program is free software: you can redistribute it and/or modify
it under the terms of the GNU General Public License as published by
the Free Software Foundation, either version 3 of the License, or
(at your option) any later version.

This program is distributed in the hope that it will be useful,
but WITHOUT ANY WARRANTY; without even the implied warranty of
MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
GNU General Public License for more details.

You should have received a copy of the GNU General Public License
along with this program. If not, see <http://www.gnu.org/licenses/>.
*/

// Package config loads build options from fascio.config.{yaml,json,toml},
// FASCIO_* environment variables, a .env file and command-line flags.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"bennypowers.dev/fascio/chunk"
	"bennypowers.dev/fascio/graph"
	"bennypowers.dev/fascio/packagejson"
)

// Options is the user-facing build configuration.
type Options struct {
	// Root is the project directory. Relative inputs, patterns and ids are
	// interpreted against it.
	Root string `mapstructure:"root"`
	// Input lists entry files, glob patterns and HTML pages.
	Input    []string `mapstructure:"input"`
	External []string `mapstructure:"external"`

	Treeshake               Treeshake          `mapstructure:"treeshake"`
	ManualChunks            []ManualChunk      `mapstructure:"manualChunks"`
	SyntheticNamedExports   []SyntheticExports `mapstructure:"syntheticNamedExports"`
	PreserveEntrySignatures string             `mapstructure:"preserveEntrySignatures"`
	Output                  Output             `mapstructure:"output"`

	Conditions         []string `mapstructure:"conditions"`
	Remote             bool     `mapstructure:"remote"`
	MaxParallelFileOps int      `mapstructure:"maxParallelFileOps"`
}

type Treeshake struct {
	Enabled bool `mapstructure:"enabled"`
	// ModuleSideEffects is true, false, "no-treeshake", or a list of globs
	// naming the modules that have side effects.
	ModuleSideEffects        any      `mapstructure:"moduleSideEffects"`
	PropertyReadSideEffects  bool     `mapstructure:"propertyReadSideEffects"`
	TryCatchDeoptimization   bool     `mapstructure:"tryCatchDeoptimization"`
	UnknownGlobalSideEffects bool     `mapstructure:"unknownGlobalSideEffects"`
	Annotations              bool     `mapstructure:"annotations"`
	ManualPureFunctions      []string `mapstructure:"manualPureFunctions"`
}

// ManualChunk places the modules matching Include, and their static
// dependencies, into the chunk Name.
type ManualChunk struct {
	Name    string   `mapstructure:"name"`
	Include []string `mapstructure:"include"`
}

// SyntheticExports makes the modules matching Include answer missing named
// imports from the properties of Export. Export defaults to "default".
type SyntheticExports struct {
	Include []string `mapstructure:"include"`
	Export  string   `mapstructure:"export"`
}

type Output struct {
	Format                string `mapstructure:"format"`
	Exports               string `mapstructure:"exports"`
	MinifyInternalExports bool   `mapstructure:"minifyInternalExports"`
}

// SideEffectsPolicy is the decoded treeshake.moduleSideEffects value.
type SideEffectsPolicy struct {
	Mode     graph.SideEffects
	Patterns []string
}

// ConfigName is the base name of the config file looked up in the root.
const ConfigName = "fascio.config"

// EnvPrefix prefixes environment overrides, as in FASCIO_OUTPUT_FORMAT.
const EnvPrefix = "FASCIO"

// SetDefaults registers every option with its default so environment
// overrides apply to keys missing from the config file.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("root", "")
	v.SetDefault("input", []string{})
	v.SetDefault("external", []string{})
	v.SetDefault("treeshake.enabled", true)
	v.SetDefault("treeshake.moduleSideEffects", true)
	v.SetDefault("treeshake.propertyReadSideEffects", true)
	v.SetDefault("treeshake.tryCatchDeoptimization", true)
	v.SetDefault("treeshake.unknownGlobalSideEffects", true)
	v.SetDefault("treeshake.annotations", true)
	v.SetDefault("treeshake.manualPureFunctions", []string{})
	v.SetDefault("preserveEntrySignatures", "exports-only")
	v.SetDefault("output.format", "es")
	v.SetDefault("output.exports", "auto")
	v.SetDefault("output.minifyInternalExports", false)
	v.SetDefault("conditions", packagejson.DefaultConditions)
	v.SetDefault("remote", false)
	v.SetDefault("maxParallelFileOps", 20)
}

// Load reads the configuration for the project in root. configFile
// overrides the lookup of fascio.config.* in root; a missing default file
// is not an error.
func Load(v *viper.Viper, root, configFile string) (*Options, error) {
	if err := LoadEnv(root); err != nil {
		return nil, err
	}
	SetDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configFile != "" {
		v.SetConfigFile(configFile)
	} else {
		v.SetConfigName(ConfigName)
		v.AddConfigPath(root)
	}
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if configFile != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("reading config: %w", err)
		}
	}

	var opts Options
	if err := v.Unmarshal(&opts); err != nil {
		return nil, fmt.Errorf("decoding config: %w", err)
	}
	if opts.Root == "" {
		opts.Root = root
	} else if !filepath.IsAbs(opts.Root) {
		opts.Root = filepath.Join(root, opts.Root)
	}
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	return &opts, nil
}

// LoadEnv loads root/.env into the process environment without overriding
// variables that are already set.
func LoadEnv(root string) error {
	name := filepath.Join(root, ".env")
	if _, err := os.Stat(name); errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err := godotenv.Load(name); err != nil {
		return fmt.Errorf("loading %s: %w", name, err)
	}
	return nil
}

// Validate checks every enumerated option. Problems are reported together.
func (o *Options) Validate() error {
	var errs []error
	if _, err := graph.ParsePreserveSignature(o.PreserveEntrySignatures); err != nil {
		errs = append(errs, err)
	}
	if _, err := chunk.ParseFormat(o.Output.Format); err != nil {
		errs = append(errs, err)
	}
	if _, err := chunk.ParseExportMode(o.Output.Exports); err != nil {
		errs = append(errs, err)
	}
	if _, err := o.Treeshake.SideEffectsPolicy(); err != nil {
		errs = append(errs, err)
	}
	for i, mc := range o.ManualChunks {
		if mc.Name == "" {
			errs = append(errs, fmt.Errorf("manualChunks[%d]: name is required", i))
		}
		if len(mc.Include) == 0 {
			errs = append(errs, fmt.Errorf("manualChunks[%d]: include is empty", i))
		}
	}
	if o.MaxParallelFileOps < 0 {
		errs = append(errs, fmt.Errorf("maxParallelFileOps must not be negative, got %d", o.MaxParallelFileOps))
	}
	return errors.Join(errs...)
}

// SideEffectsPolicy decodes ModuleSideEffects.
func (t Treeshake) SideEffectsPolicy() (SideEffectsPolicy, error) {
	switch v := t.ModuleSideEffects.(type) {
	case nil:
		return SideEffectsPolicy{Mode: graph.SideEffectsTrue}, nil
	case bool:
		if v {
			return SideEffectsPolicy{Mode: graph.SideEffectsTrue}, nil
		}
		return SideEffectsPolicy{Mode: graph.SideEffectsFalse}, nil
	case string:
		switch strings.TrimSpace(v) {
		case "true":
			return SideEffectsPolicy{Mode: graph.SideEffectsTrue}, nil
		case "false":
			return SideEffectsPolicy{Mode: graph.SideEffectsFalse}, nil
		case "no-treeshake":
			return SideEffectsPolicy{Mode: graph.SideEffectsNoTreeshake}, nil
		}
		return SideEffectsPolicy{Mode: graph.SideEffectsFalse, Patterns: strings.Split(v, ",")}, nil
	case []string:
		return SideEffectsPolicy{Mode: graph.SideEffectsFalse, Patterns: v}, nil
	case []any:
		patterns := make([]string, 0, len(v))
		for _, item := range v {
			s, ok := item.(string)
			if !ok {
				return SideEffectsPolicy{}, fmt.Errorf("treeshake.moduleSideEffects: pattern %v is not a string", item)
			}
			patterns = append(patterns, s)
		}
		return SideEffectsPolicy{Mode: graph.SideEffectsFalse, Patterns: patterns}, nil
	}
	return SideEffectsPolicy{}, fmt.Errorf("treeshake.moduleSideEffects: unsupported value %v", t.ModuleSideEffects)
}
