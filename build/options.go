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
package build

import (
	"path"
	"strings"

	"github.com/bmatcuk/doublestar/v4"

	"bennypowers.dev/fascio/chunk"
	"bennypowers.dev/fascio/config"
	"bennypowers.dev/fascio/graph"
	"bennypowers.dev/fascio/logger"
)

// patterns matches module ids against doublestar globs. Absolute ids are
// also tried relative to the project root, so "src/**" matches
// "/project/src/a.js".
type patterns struct {
	root  string
	globs []string
}

func newPatterns(root string, globs []string) patterns {
	return patterns{root: root, globs: globs}
}

func (p patterns) match(id string) bool {
	rel, inRoot := strings.CutPrefix(id, strings.TrimSuffix(p.root, "/")+"/")
	for _, g := range p.globs {
		if g == id {
			return true
		}
		if ok, _ := doublestar.Match(g, id); ok {
			return true
		}
		if inRoot {
			if ok, _ := doublestar.Match(strings.TrimPrefix(g, "./"), rel); ok {
				return true
			}
		}
	}
	return false
}

type syntheticRule struct {
	include patterns
	export  string
}

// graphOptions translates the configuration for graph.Build.
func graphOptions(opts *config.Options, log logger.Log) (graph.Options, error) {
	preserve, err := graph.ParsePreserveSignature(opts.PreserveEntrySignatures)
	if err != nil {
		return graph.Options{}, err
	}
	policy, err := opts.Treeshake.SideEffectsPolicy()
	if err != nil {
		return graph.Options{}, err
	}
	g := graph.DefaultOptions()
	g.Log = log
	g.Treeshake = opts.Treeshake.Enabled
	g.PropertyReadSideEffects = opts.Treeshake.PropertyReadSideEffects
	g.TryCatchDeoptimization = opts.Treeshake.TryCatchDeoptimization
	g.UnknownGlobalSideEffects = opts.Treeshake.UnknownGlobalSideEffects
	g.Annotations = opts.Treeshake.Annotations
	g.ManualPureFunctions = opts.Treeshake.ManualPureFunctions
	g.PreserveEntrySignatures = preserve
	if opts.MaxParallelFileOps > 0 {
		g.MaxParallelFileOps = opts.MaxParallelFileOps
	}
	g.ModuleSideEffects = sideEffectsFunc(opts.Root, policy)

	var synthetic []syntheticRule
	for _, s := range opts.SyntheticNamedExports {
		export := s.Export
		if export == "" {
			export = "default"
		}
		synthetic = append(synthetic, syntheticRule{newPatterns(opts.Root, s.Include), export})
	}
	if len(synthetic) > 0 {
		g.SyntheticNamedExports = func(id string) string {
			for _, s := range synthetic {
				if s.include.match(id) {
					return s.export
				}
			}
			return ""
		}
	}
	return g, nil
}

// sideEffectsFunc applies treeshake.moduleSideEffects to modules whose
// package did not decide. With patterns, only matching modules have side
// effects. External modules follow the same rules.
func sideEffectsFunc(root string, policy config.SideEffectsPolicy) func(id string, external bool) graph.SideEffects {
	if len(policy.Patterns) == 0 {
		mode := policy.Mode
		return func(string, bool) graph.SideEffects { return mode }
	}
	match := newPatterns(root, policy.Patterns)
	return func(id string, _ bool) graph.SideEffects {
		if match.match(id) {
			return graph.SideEffectsTrue
		}
		return graph.SideEffectsFalse
	}
}

// chunkOptions translates the configuration for chunk.Generate.
func chunkOptions(opts *config.Options, log logger.Log) (chunk.Options, error) {
	format, err := chunk.ParseFormat(opts.Output.Format)
	if err != nil {
		return chunk.Options{}, err
	}
	exports, err := chunk.ParseExportMode(opts.Output.Exports)
	if err != nil {
		return chunk.Options{}, err
	}
	c := chunk.Options{
		Format:                format,
		Exports:               exports,
		MinifyInternalExports: opts.Output.MinifyInternalExports,
		Log:                   log,
	}
	if len(opts.ManualChunks) > 0 {
		manual := make([]patterns, len(opts.ManualChunks))
		for i, mc := range opts.ManualChunks {
			manual[i] = newPatterns(opts.Root, mc.Include)
		}
		c.ManualChunks = func(id string) string {
			for i, m := range manual {
				if m.match(id) {
					return opts.ManualChunks[i].Name
				}
			}
			return ""
		}
	}
	return c, nil
}

// entryName derives a chunk name for an input from its file name.
func entryName(id string) string {
	base := path.Base(id)
	if i := strings.IndexByte(base, '.'); i > 0 {
		base = base[:i]
	}
	return base
}
