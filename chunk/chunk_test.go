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
	"context"
	"errors"
	"io/fs"
	"path"
	"slices"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bennypowers.dev/fascio/graph"
	"bennypowers.dev/fascio/logger"
)

type memHost struct {
	files     map[string]string
	externals []string
}

func (h *memHost) Resolve(_ context.Context, specifier, importer string) (*graph.ResolvedID, error) {
	if slices.Contains(h.externals, specifier) {
		return &graph.ResolvedID{ID: specifier, External: true}, nil
	}
	id := path.Join("/", specifier)
	if importer != "" && strings.HasPrefix(specifier, ".") {
		id = path.Join(path.Dir(importer), specifier)
	}
	if _, ok := h.files[id]; !ok {
		return nil, nil
	}
	return &graph.ResolvedID{ID: id}, nil
}

func (h *memHost) Load(_ context.Context, id string) ([]byte, error) {
	src, ok := h.files[id]
	if !ok {
		return nil, fs.ErrNotExist
	}
	return []byte(src), nil
}

func buildGraph(t *testing.T, h *memHost, entries ...graph.Entry) *graph.Graph {
	t.Helper()
	opts := graph.DefaultOptions()
	opts.Resolver = h
	opts.Loader = h
	g, err := graph.Build(context.Background(), entries, opts)
	require.NoError(t, err)
	return g
}

func entries(specifiers ...string) []graph.Entry {
	out := make([]graph.Entry, len(specifiers))
	for i, s := range specifiers {
		out[i] = graph.Entry{Specifier: s}
	}
	return out
}

func generate(t *testing.T, files map[string]string, opts Options, specifiers ...string) (*Bundle, *graph.Graph) {
	t.Helper()
	g := buildGraph(t, &memHost{files: files}, entries(specifiers...)...)
	b, err := Generate(g, opts)
	require.NoError(t, err)
	return b, g
}

func fileNames(b *Bundle) []string {
	var out []string
	for _, c := range b.Chunks() {
		out = append(out, c.FileName())
	}
	return out
}

func chunkNamed(t *testing.T, m *Manifest, fileName string) ChunkManifest {
	t.Helper()
	for _, c := range m.Chunks {
		if c.FileName == fileName {
			return c
		}
	}
	require.Failf(t, "missing chunk", "no chunk %s", fileName)
	return ChunkManifest{}
}

func exportNames(c ChunkManifest) []string {
	var out []string
	for _, e := range c.Exports {
		out = append(out, e.Exported)
	}
	return out
}

func TestSingleEntrySingleChunk(t *testing.T) {
	b, _ := generate(t, map[string]string{
		"/main.js": `import { used } from './lib.js'; console.log(used);`,
		"/lib.js":  "export const used = 1;\nexport function unused() {}\n",
	}, Options{}, "main.js")
	require.Len(t, b.Chunks(), 1)
	c := b.Chunks()[0]
	assert.Equal(t, "main.js", c.FileName())
	assert.True(t, c.IsEntry())
	assert.Equal(t, []string{"/lib.js", "/main.js"}, chunkModuleIDs(c))
	assert.Empty(t, c.Imports())
	assert.Equal(t, ExportsNone, c.ExportMode())
}

func chunkModuleIDs(c *Chunk) []string {
	var out []string
	for _, m := range c.Modules() {
		out = append(out, m.ModuleID())
	}
	return out
}

func TestSharedModuleGetsOwnChunk(t *testing.T) {
	b, _ := generate(t, map[string]string{
		"/a.js":      `import { shared } from './shared.js'; console.log('a', shared);`,
		"/b.js":      `import { shared } from './shared.js'; console.log('b', shared);`,
		"/shared.js": `export const shared = 'shared';`,
	}, Options{}, "a.js", "b.js")
	assert.Equal(t, []string{"shared.js", "a.js", "b.js"}, fileNames(b))

	m := b.Manifest()
	shared := chunkNamed(t, m, "shared.js")
	assert.False(t, shared.IsEntry)
	assert.Equal(t, []string{"shared"}, exportNames(shared))
	for _, name := range []string{"a.js", "b.js"} {
		c := chunkNamed(t, m, name)
		require.Len(t, c.Imports, 1)
		assert.Equal(t, "shared.js", c.Imports[0].From)
		assert.Equal(t, []Binding{{Imported: "shared", Local: "shared"}}, c.Imports[0].Bindings)
	}
}

func TestPartitionBySignature(t *testing.T) {
	b, g := generate(t, map[string]string{
		"/a.js":   `import { x } from './x.js'; import { y } from './y.js'; console.log(x, y);`,
		"/b.js":   `import { x } from './x.js'; import { z } from './z.js'; console.log(x, z);`,
		"/x.js":   `import { w } from './w.js'; export const x = w;`,
		"/w.js":   `export const w = 1;`,
		"/y.js":   `export const y = 2;`,
		"/z.js":   `export const z = 3;`,
	}, Options{}, "a.js", "b.js")
	same := func(p, q string) bool {
		pm, _ := g.Module(p)
		qm, _ := g.Module(q)
		pc, _ := b.ChunkFor(pm)
		qc, _ := b.ChunkFor(qm)
		return pc == qc
	}
	assert.True(t, same("/x.js", "/w.js"), "both reached by a and b")
	assert.True(t, same("/a.js", "/y.js"), "both reached by a only")
	assert.True(t, same("/b.js", "/z.js"), "both reached by b only")
	assert.False(t, same("/a.js", "/x.js"))
	assert.False(t, same("/a.js", "/b.js"))
	assert.Len(t, b.Chunks(), 3)
}

func TestDynamicImportGetsOwnChunk(t *testing.T) {
	b, g := generate(t, map[string]string{
		"/main.js": `import('./lazy.js').then(ns => console.log(ns.value));`,
		"/lazy.js": "export const value = 1;\nexport const other = 2;\n",
	}, Options{}, "main.js")
	require.Len(t, b.Chunks(), 2)

	lazy, _ := g.Module("/lazy.js")
	c, ok := b.ChunkFor(lazy)
	require.True(t, ok)
	assert.True(t, c.IsDynamicEntry())
	assert.Equal(t, lazy, c.FacadeModule())
	assert.Equal(t, []string{"other", "value"}, c.ExportNames())

	main := chunkNamed(t, b.Manifest(), "main.js")
	assert.Equal(t, []string{"lazy.js"}, main.DynamicImports)
}

func TestDynamicImportOfStaticDependencyStaysInline(t *testing.T) {
	b, _ := generate(t, map[string]string{
		"/main.js": `import { value } from './lib.js'; console.log(value); import('./lib.js').then(console.log);`,
		"/lib.js":  `export const value = 1;`,
	}, Options{}, "main.js")
	require.Len(t, b.Chunks(), 1)
	assert.Empty(t, b.Manifest().Chunks[0].DynamicImports)
}

func TestEntryImportingAnotherEntryNeedsNoFacade(t *testing.T) {
	b, _ := generate(t, map[string]string{
		"/a.js": `import { v } from './b.js'; console.log(v);`,
		"/b.js": "export const v = 1;\nexport const w = 2;\n",
	}, Options{}, "a.js", "b.js")
	require.Len(t, b.Chunks(), 2)
	for _, c := range b.Chunks() {
		assert.False(t, c.IsFacade())
	}
	bc := chunkNamed(t, b.Manifest(), "b.js")
	assert.Equal(t, []string{"v", "w"}, exportNames(bc))
}

func TestCyclicEntriesGetFacades(t *testing.T) {
	b, g := generate(t, map[string]string{
		"/a.js": "import { B } from './b.js';\nexport const A = 'a' + B;\n",
		"/b.js": "import { A } from './a.js';\nexport const B = 'b';\nexport function getA() { return A; }\n",
	}, Options{}, "a.js", "b.js")

	var facades []*Chunk
	for _, c := range b.Chunks() {
		if c.IsFacade() {
			facades = append(facades, c)
		}
	}
	require.Len(t, facades, 2)

	for _, id := range []string{"/a.js", "/b.js"} {
		m, _ := g.Module(id)
		facade, ok := b.FacadeFor(m)
		require.True(t, ok)
		assert.True(t, facade.IsFacade())
		var want []string
		for _, v := range m.GetExportNamesByVariable().Variables {
			want = append(want, m.GetExportNamesByVariable().Names(v)...)
		}
		slices.Sort(want)
		assert.Equal(t, want, facade.ExportNames(), "facade of %s must expose exactly its exports", id)
		for _, e := range facade.manifest().Exports {
			assert.NotEmpty(t, e.From, "facade exports are forwarded")
		}
	}
}

func TestSameModuleUnderTwoNamesGetsFacade(t *testing.T) {
	g := buildGraph(t, &memHost{files: map[string]string{
		"/main.js": `export const x = 1;`,
	}}, graph.Entry{Name: "first", Specifier: "main.js"}, graph.Entry{Name: "second", Specifier: "main.js"})
	b, err := Generate(g, Options{})
	require.NoError(t, err)
	assert.Equal(t, []string{"first.js", "second.js"}, fileNames(b))
	second := chunkNamed(t, b.Manifest(), "second.js")
	assert.True(t, second.IsFacade)
	require.Len(t, second.Exports, 1)
	assert.Equal(t, ExportManifest{Exported: "x", Local: "x", From: "first.js"}, second.Exports[0])
}

func TestManualChunks(t *testing.T) {
	b, _ := generate(t, map[string]string{
		"/main.js": `import { lib } from './lib.js'; console.log(lib);`,
		"/lib.js":  `import { dep } from './dep.js'; export const lib = dep + 1;`,
		"/dep.js":  `export const dep = 1;`,
	}, Options{ManualChunks: func(id string) string {
		if id == "/lib.js" {
			return "vendor"
		}
		return ""
	}}, "main.js")
	assert.Equal(t, []string{"vendor.js", "main.js"}, fileNames(b))
	vendor := b.Chunks()[0]
	assert.Equal(t, "vendor", vendor.Alias())
	assert.Equal(t, []string{"/dep.js", "/lib.js"}, chunkModuleIDs(vendor), "static dependencies join the manual chunk")
}

func TestExportModes(t *testing.T) {
	tests := []struct {
		name   string
		source string
		opts   Options
		want   ExportMode
		warn   logger.Code
	}{
		{name: "none", source: `console.log(1);`, want: ExportsNone},
		{name: "default", source: `export default 42;`, want: ExportsDefault},
		{name: "named", source: `export const a = 1;`, want: ExportsNamed},
		{name: "mixed es", source: "export const a = 1;\nexport default 2;\n", want: ExportsNamed},
		{name: "mixed cjs", source: "export const a = 1;\nexport default 2;\n", opts: Options{Format: FormatCJS}, want: ExportsNamed, warn: logger.MixedExports},
		{name: "forced named", source: `export default 42;`, opts: Options{Exports: ExportsNamed}, want: ExportsNamed},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g := buildGraph(t, &memHost{files: map[string]string{"/main.js": tt.source}}, entries("main.js")...)
			b, err := Generate(g, tt.opts)
			require.NoError(t, err)
			require.Len(t, b.Chunks(), 1)
			assert.Equal(t, tt.want, b.Chunks()[0].ExportMode())
			if tt.warn != "" {
				assert.True(t, logger.HasCode(g.Log().Done(), tt.warn))
			}
		})
	}
}

func TestIncompatibleExportOption(t *testing.T) {
	g := buildGraph(t, &memHost{files: map[string]string{"/main.js": `export const a = 1;`}}, entries("main.js")...)
	_, err := Generate(g, Options{Exports: ExportsDefault})
	var be *logger.BuildError
	require.True(t, errors.As(err, &be))
	assert.Equal(t, logger.InvalidExportOption, be.Code)
	assert.Contains(t, be.Text, "a")
}

func TestMinifyInternalExports(t *testing.T) {
	b, _ := generate(t, map[string]string{
		"/a.js":      `import { alpha, apple } from './shared.js'; console.log(alpha, apple);`,
		"/b.js":      `import { alpha, apple } from './shared.js'; console.log(apple, alpha);`,
		"/shared.js": "export const alpha = 1;\nexport const apple = 2;\n",
	}, Options{MinifyInternalExports: true}, "a.js", "b.js")
	shared := chunkNamed(t, b.Manifest(), "shared.js")
	assert.Equal(t, []string{"a", "b"}, exportNames(shared))
}

func TestEmptyChunkWarns(t *testing.T) {
	g := buildGraph(t, &memHost{files: map[string]string{"/main.js": `const unused = 1;`}}, entries("main.js")...)
	_, err := Generate(g, Options{})
	require.NoError(t, err)
	assert.True(t, logger.HasCode(g.Log().Done(), logger.EmptyBundle))
}

func TestDeconflictImportedNames(t *testing.T) {
	b, _ := generate(t, map[string]string{
		"/a.js":      "import { value } from './shared.js';\nconst local = (value) => value;\nconsole.log(local(value));\n",
		"/b.js":      `import { value } from './shared.js'; console.log(value);`,
		"/shared.js": `export const value = 1;`,
	}, Options{}, "a.js", "b.js")
	a := chunkNamed(t, b.Manifest(), "a.js")
	require.Len(t, a.Imports, 1)
	assert.Equal(t, "value", a.Imports[0].Bindings[0].Local)
}

func TestExternalImports(t *testing.T) {
	g := buildGraph(t, &memHost{
		files:     map[string]string{"/main.js": `import { render } from 'lit'; render();`},
		externals: []string{"lit"},
	}, entries("main.js")...)
	b, err := Generate(g, Options{})
	require.NoError(t, err)
	c := chunkNamed(t, b.Manifest(), "main.js")
	require.Len(t, c.Imports, 1)
	assert.Equal(t, ImportManifest{From: "lit", External: true, Bindings: []Binding{{Imported: "render", Local: "render"}}}, c.Imports[0])
}

func TestManifestFormat(t *testing.T) {
	b, _ := generate(t, map[string]string{
		"/a.js":      `import { shared } from './shared.js'; console.log(shared);`,
		"/b.js":      `import { shared } from './shared.js'; console.log(shared);`,
		"/shared.js": `export const shared = 1;`,
	}, Options{}, "a.js", "b.js")
	text, err := b.Manifest().Format("text")
	require.NoError(t, err)
	assert.Contains(t, text, "a.js (entry)")
	assert.Contains(t, text, `import  { shared } from "shared.js"`)
	assert.Contains(t, text, "export  { shared }")

	js, err := b.Manifest().Format("json")
	require.NoError(t, err)
	assert.Contains(t, js, `"fileName": "shared.js"`)
}

func TestToBase64(t *testing.T) {
	assert.Equal(t, "0", toBase64(0))
	assert.Equal(t, "a", toBase64(10))
	assert.Equal(t, "$", toBase64(63))
	assert.Equal(t, "10", toBase64(64))
}

func TestBitSet(t *testing.T) {
	a := newBitSet(10)
	b := newBitSet(10)
	a.setBit(9)
	assert.True(t, a.hasBit(9))
	assert.False(t, a.hasBit(1))
	assert.False(t, a.equals(b))
	b.setBit(9)
	assert.True(t, a.equals(b))
	assert.Equal(t, a.String(), b.String())
}

func TestParseOptions(t *testing.T) {
	f, err := ParseFormat("esm")
	require.NoError(t, err)
	assert.Equal(t, FormatES, f)
	_, err = ParseFormat("nope")
	assert.Error(t, err)

	m, err := ParseExportMode("")
	require.NoError(t, err)
	assert.Equal(t, ExportsAuto, m)
	_, err = ParseExportMode("all")
	assert.Error(t, err)
}
