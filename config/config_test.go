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
package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bennypowers.dev/fascio/graph"
)

func writeFile(t *testing.T, dir, name, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644))
}

func TestLoadDefaults(t *testing.T) {
	dir := t.TempDir()
	opts, err := Load(viper.New(), dir, "")
	require.NoError(t, err)
	assert.Equal(t, dir, opts.Root)
	assert.True(t, opts.Treeshake.Enabled)
	assert.True(t, opts.Treeshake.Annotations)
	assert.Equal(t, "es", opts.Output.Format)
	assert.Equal(t, "auto", opts.Output.Exports)
	assert.Equal(t, "exports-only", opts.PreserveEntrySignatures)
	assert.Equal(t, []string{"import", "module", "browser", "default"}, opts.Conditions)
	assert.Equal(t, 20, opts.MaxParallelFileOps)

	policy, err := opts.Treeshake.SideEffectsPolicy()
	require.NoError(t, err)
	assert.Equal(t, graph.SideEffectsTrue, policy.Mode)
}

func TestLoadConfigFile(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "fascio.config.yaml", `
input:
  - src/main.js
  - src/pages/*.js
external:
  - lit
  - "@lit/*"
treeshake:
  moduleSideEffects:
    - "src/polyfills/**"
  manualPureFunctions:
    - styled.div
manualChunks:
  - name: Vendor
    include:
      - "node_modules/**"
syntheticNamedExports:
  - include: ["src/legacy/*.js"]
    export: __moduleExports
preserveEntrySignatures: strict
output:
  format: cjs
  exports: named
  minifyInternalExports: true
`)
	opts, err := Load(viper.New(), dir, "")
	require.NoError(t, err)
	assert.Equal(t, []string{"src/main.js", "src/pages/*.js"}, opts.Input)
	assert.Equal(t, []string{"lit", "@lit/*"}, opts.External)
	assert.Equal(t, []string{"styled.div"}, opts.Treeshake.ManualPureFunctions)
	require.Len(t, opts.ManualChunks, 1)
	assert.Equal(t, ManualChunk{Name: "Vendor", Include: []string{"node_modules/**"}}, opts.ManualChunks[0])
	require.Len(t, opts.SyntheticNamedExports, 1)
	assert.Equal(t, "__moduleExports", opts.SyntheticNamedExports[0].Export)
	assert.Equal(t, "strict", opts.PreserveEntrySignatures)
	assert.Equal(t, Output{Format: "cjs", Exports: "named", MinifyInternalExports: true}, opts.Output)

	policy, err := opts.Treeshake.SideEffectsPolicy()
	require.NoError(t, err)
	assert.Equal(t, SideEffectsPolicy{Mode: graph.SideEffectsFalse, Patterns: []string{"src/polyfills/**"}}, policy)
}

func TestLoadExplicitConfigFile(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "custom.json", `{"input": ["a.js"], "remote": true}`)
	opts, err := Load(viper.New(), dir, filepath.Join(dir, "custom.json"))
	require.NoError(t, err)
	assert.Equal(t, []string{"a.js"}, opts.Input)
	assert.True(t, opts.Remote)

	_, err = Load(viper.New(), dir, filepath.Join(dir, "missing.json"))
	assert.Error(t, err)
}

func TestLoadEnvironmentOverrides(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "fascio.config.yaml", "output:\n  format: es\n")
	t.Setenv("FASCIO_OUTPUT_FORMAT", "iife")
	t.Setenv("FASCIO_TREESHAKE_MODULESIDEEFFECTS", "no-treeshake")
	opts, err := Load(viper.New(), dir, "")
	require.NoError(t, err)
	assert.Equal(t, "iife", opts.Output.Format)
	policy, err := opts.Treeshake.SideEffectsPolicy()
	require.NoError(t, err)
	assert.Equal(t, graph.SideEffectsNoTreeshake, policy.Mode)
}

func TestLoadDotEnv(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, ".env", "FASCIO_MAXPARALLELFILEOPS=4\n")
	t.Cleanup(func() { _ = os.Unsetenv("FASCIO_MAXPARALLELFILEOPS") })
	opts, err := Load(viper.New(), dir, "")
	require.NoError(t, err)
	assert.Equal(t, 4, opts.MaxParallelFileOps)
}

func TestLoadRelativeRoot(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "fascio.config.json", `{"root": "web"}`)
	opts, err := Load(viper.New(), dir, "")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "web"), opts.Root)
}

func TestValidate(t *testing.T) {
	valid := func() Options {
		return Options{PreserveEntrySignatures: "strict", Output: Output{Format: "es", Exports: "auto"}, Treeshake: Treeshake{ModuleSideEffects: true}}
	}
	tests := []struct {
		name   string
		modify func(*Options)
		errMsg string
	}{
		{name: "valid", modify: func(*Options) {}},
		{name: "format", modify: func(o *Options) { o.Output.Format = "webpack" }, errMsg: "webpack"},
		{name: "exports", modify: func(o *Options) { o.Output.Exports = "everything" }, errMsg: "everything"},
		{name: "preserve", modify: func(o *Options) { o.PreserveEntrySignatures = "loose" }, errMsg: "loose"},
		{name: "side effects", modify: func(o *Options) { o.Treeshake.ModuleSideEffects = 3 }, errMsg: "moduleSideEffects"},
		{name: "manual chunk name", modify: func(o *Options) { o.ManualChunks = []ManualChunk{{Include: []string{"x"}}} }, errMsg: "name is required"},
		{name: "parallelism", modify: func(o *Options) { o.MaxParallelFileOps = -1 }, errMsg: "maxParallelFileOps"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			opts := valid()
			tt.modify(&opts)
			err := opts.Validate()
			if tt.errMsg == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.errMsg)
		})
	}
}

func TestSideEffectsPolicyForms(t *testing.T) {
	tests := []struct {
		value any
		want  SideEffectsPolicy
	}{
		{value: false, want: SideEffectsPolicy{Mode: graph.SideEffectsFalse}},
		{value: "true", want: SideEffectsPolicy{Mode: graph.SideEffectsTrue}},
		{value: "a/**,b.js", want: SideEffectsPolicy{Mode: graph.SideEffectsFalse, Patterns: []string{"a/**", "b.js"}}},
		{value: []string{"x.js"}, want: SideEffectsPolicy{Mode: graph.SideEffectsFalse, Patterns: []string{"x.js"}}},
	}
	for _, tt := range tests {
		got, err := Treeshake{ModuleSideEffects: tt.value}.SideEffectsPolicy()
		require.NoError(t, err)
		assert.Equal(t, tt.want, got)
	}
}
