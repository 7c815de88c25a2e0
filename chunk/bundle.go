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
package chunk

import (
	"cmp"
	"fmt"
	"slices"
	"strconv"
	"strings"

	"bennypowers.dev/fascio/graph"
	"bennypowers.dev/fascio/logger"
)

// Bundle is the set of chunks generated from one graph.
type Bundle struct {
	graph *graph.Graph
	opts  Options

	chunks              []*Chunk
	chunkByModule       map[*graph.Module]*Chunk
	facadeChunkByModule map[*graph.Module]*Chunk
}

// Chunks returns the chunks in output order.
func (b *Bundle) Chunks() []*Chunk { return b.chunks }

// ChunkFor returns the chunk holding the code of m.
func (b *Bundle) ChunkFor(m *graph.Module) (*Chunk, bool) {
	c, ok := b.chunkByModule[m]
	return c, ok
}

// FacadeFor returns the chunk that exposes the signature of m, which is
// either the chunk holding m or a facade.
func (b *Bundle) FacadeFor(m *graph.Module) (*Chunk, bool) {
	c, ok := b.facadeChunkByModule[m]
	return c, ok
}

// Generate partitions the included modules of g into chunks, links their
// imports and exports, and creates facades for entries whose signature
// must be preserved.
func Generate(g *graph.Graph, opts Options) (*Bundle, error) {
	if opts.Log.AddMsg == nil {
		opts.Log = g.Log()
	}
	if opts.Format == "" {
		opts.Format = FormatES
	}
	if opts.Exports == "" {
		opts.Exports = ExportsAuto
	}
	b := &Bundle{
		graph:               g,
		opts:                opts,
		chunkByModule:       map[*graph.Module]*Chunk{},
		facadeChunkByModule: map[*graph.Module]*Chunk{},
	}

	var manual []manualEntry
	if opts.ManualChunks != nil {
		for _, m := range g.Modules() {
			if alias := opts.ManualChunks(m.ModuleID()); alias != "" {
				manual = append(manual, manualEntry{module: m, alias: alias})
			}
		}
	}

	var chunks []*Chunk
	for _, def := range assignChunks(g.EntryModules(), manual) {
		slices.SortFunc(def.modules, func(a, b *graph.Module) int {
			return cmp.Compare(a.ExecutionIndex(), b.ExecutionIndex())
		})
		c := newChunk(b, def.modules, def.alias)
		if c.isEmpty && c.alias == "" && len(c.entryModules) == 0 && len(c.dynamicEntryModules) == 0 {
			continue
		}
		chunks = append(chunks, c)
		for _, m := range def.modules {
			b.chunkByModule[m] = c
		}
	}
	for _, c := range chunks {
		c.link()
	}
	var facades []*Chunk
	for _, c := range chunks {
		facades = append(facades, c.generateFacades()...)
	}
	for _, c := range chunks {
		c.linkDynamicImports()
	}
	b.chunks = append(chunks, facades...)
	slices.SortStableFunc(b.chunks, func(x, y *Chunk) int {
		return cmp.Compare(x.executionIndex(), y.executionIndex())
	})

	b.assignFileNames()
	for _, c := range b.chunks {
		c.generateExports()
	}
	for _, c := range b.chunks {
		if err := c.computeExportMode(); err != nil {
			return nil, err
		}
		c.deconflict()
		if c.isEmpty && len(c.exportsByName) == 0 && c.dependencies.len() == 0 {
			opts.Log.AddMsg(logger.Msg{
				Kind: logger.Warning,
				Code: logger.EmptyBundle,
				Text: fmt.Sprintf("Generated an empty chunk: %q", c.name),
			})
		}
	}
	return b, nil
}

// executionIndex orders chunks: a chunk runs when its first module does, a
// facade when the module it stands for does.
func (c *Chunk) executionIndex() int {
	if len(c.modules) > 0 {
		return c.modules[0].ExecutionIndex()
	}
	return c.facadeModule.ExecutionIndex()
}

// assignFileNames gives every chunk a name and a file name that is unique
// regardless of case.
func (b *Bundle) assignFileNames() {
	taken := map[string]bool{}
	for _, c := range b.chunks {
		if c.name == "" {
			c.name = c.fallbackName()
		}
		c.fileName = makeUnique(sanitizeFileName(c.name)+".js", taken)
		taken[strings.ToLower(c.fileName)] = true
	}
}

func makeUnique(name string, taken map[string]bool) string {
	if !taken[strings.ToLower(name)] {
		return name
	}
	ext := ""
	if i := strings.LastIndexByte(name, '.'); i > 0 {
		name, ext = name[:i], name[i:]
	}
	for i := 2; ; i++ {
		candidate := name + strconv.Itoa(i) + ext
		if !taken[strings.ToLower(candidate)] {
			return candidate
		}
	}
}

// sanitizeFileName replaces characters that are not safe in file names.
func sanitizeFileName(name string) string {
	return strings.Map(func(r rune) rune {
		switch r {
		case '\x00', '?', '*', ':', '<', '>', '|', '"':
			return '_'
		}
		return r
	}, name)
}

// generateExports names the exports of the chunk. A facade module keeps its
// own export names; everything else another chunk needs gets a name
// derived from its variable.
func (c *Chunk) generateExports() {
	remaining := slices.Clone(c.exports.items)
	if c.facadeModule != nil && (c.facadeModule.PreserveSignature() != graph.PreserveFalse || c.strictFacade) {
		names := c.facadeModule.GetExportNamesByVariable()
		for _, v := range names.Variables {
			exportNames := slices.Clone(names.Names(v))
			c.exportNamesByVariable[v] = exportNames
			for _, name := range exportNames {
				c.exportsByName[name] = v
			}
			remaining = slices.DeleteFunc(remaining, func(r graph.Variable) bool { return r == v })
		}
	}
	if c.bundle.opts.MinifyInternalExports {
		assignExportsToMangledNames(remaining, c.exportsByName, c.exportNamesByVariable)
	} else {
		assignExportsToNames(remaining, c.exportsByName, c.exportNamesByVariable)
	}
}

func assignExportsToNames(exports []graph.Variable, byName map[string]graph.Variable, byVariable map[graph.Variable][]string) {
	for _, v := range exports {
		base := baseName(v)
		name := base
		for i := 1; byName[name] != nil; i++ {
			name = base + "$" + strconv.Itoa(i)
		}
		byName[name] = v
		byVariable[v] = []string{name}
	}
}

// assignExportsToMangledNames uses the first letter of each variable name,
// falling back to short generated names on collision.
func assignExportsToMangledNames(exports []graph.Variable, byName map[string]graph.Variable, byVariable map[graph.Variable][]string) {
	index := 0
	for _, v := range exports {
		name := baseName(v)[:1]
		if byName[name] != nil || reservedNames[name] {
			for {
				index++
				name = toBase64(index)
				if name[0] == '1' {
					index += 9 * pow64(len(name)-1)
					name = toBase64(index)
				}
				if !reservedNames[name] && byName[name] == nil {
					break
				}
			}
		}
		byName[name] = v
		byVariable[v] = []string{name}
	}
}

func pow64(n int) int {
	out := 1
	for range n {
		out *= 64
	}
	return out
}

// computeExportMode resolves the export mode of an entry chunk against the
// requested output.exports value.
func (c *Chunk) computeExportMode() error {
	if !c.IsEntry() {
		c.exportMode = ExportsNamed
		return nil
	}
	keys := c.ExportNames()
	id := c.facadeModule.ModuleID()
	mode := c.bundle.opts.Exports
	switch mode {
	case ExportsDefault:
		if len(keys) != 1 || keys[0] != "default" {
			return incompatibleExportOption(mode, keys, id)
		}
	case ExportsNone:
		if len(keys) > 0 {
			return incompatibleExportOption(mode, keys, id)
		}
	case ExportsAuto:
		switch {
		case len(keys) == 0:
			mode = ExportsNone
		case len(keys) == 1 && keys[0] == "default":
			mode = ExportsDefault
		default:
			f := c.bundle.opts.Format
			if f != FormatES && f != FormatSystem && slices.Contains(keys, "default") {
				c.bundle.opts.Log.AddMsg(logger.Msg{
					Kind: logger.Warning,
					Code: logger.MixedExports,
					ID:   id,
					Text: fmt.Sprintf("Entry module %q is using named and default exports together. Consumers of your bundle will have to use `%s[\"default\"]` to access the default export, which may not be what you want. Use `output.exports: \"named\"` to disable this warning.", id, c.name),
				})
			}
			mode = ExportsNamed
		}
	}
	c.exportMode = mode
	return nil
}

func incompatibleExportOption(mode ExportMode, keys []string, id string) error {
	return logger.NewError(logger.InvalidExportOption, id,
		"%q was specified for \"output.exports\", but entry module %q has the following exports: %s",
		string(mode), id, strings.Join(keys, ", "))
}
