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
package graph

import (
	"context"
	"errors"
	"io/fs"
	"math/rand/v2"
	"path"
	"slices"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bennypowers.dev/fascio/logger"
)

// memHost serves modules from a map keyed by absolute id. Specifiers
// listed in externals resolve as external.
type memHost struct {
	files     map[string]string
	externals []string
}

func (h *memHost) Resolve(_ context.Context, specifier, importer string) (*ResolvedID, error) {
	if slices.Contains(h.externals, specifier) {
		return &ResolvedID{ID: specifier, External: true}, nil
	}
	var id string
	switch {
	case importer == "":
		id = path.Join("/", specifier)
	case strings.HasPrefix(specifier, "/"):
		id = path.Clean(specifier)
	case strings.HasPrefix(specifier, "."):
		id = path.Join(path.Dir(importer), specifier)
	default:
		return nil, nil
	}
	if _, ok := h.files[id]; !ok {
		return nil, nil
	}
	return &ResolvedID{ID: id}, nil
}

func (h *memHost) Load(_ context.Context, id string) ([]byte, error) {
	src, ok := h.files[id]
	if !ok {
		return nil, fs.ErrNotExist
	}
	return []byte(src), nil
}

func testOptions(h *memHost) Options {
	opts := DefaultOptions()
	opts.Resolver = h
	opts.Loader = h
	return opts
}

func buildWith(t *testing.T, opts Options, entries ...string) (*Graph, []logger.Msg) {
	t.Helper()
	es := make([]Entry, len(entries))
	for i, e := range entries {
		es[i] = Entry{Specifier: e}
	}
	g, err := Build(context.Background(), es, opts)
	require.NoError(t, err)
	return g, opts.Log.Done()
}

func build(t *testing.T, files map[string]string, entries ...string) (*Graph, []logger.Msg) {
	t.Helper()
	return buildWith(t, testOptions(&memHost{files: files}), entries...)
}

// included returns the surviving source of a module.
func included(t *testing.T, g *Graph, id string) string {
	t.Helper()
	m, ok := g.Module(id)
	require.True(t, ok, "module %s not in graph", id)
	return strings.Join(m.RenderStatements(), "\n")
}

func ids(modules []*Module) []string {
	out := make([]string, len(modules))
	for i, m := range modules {
		out[i] = m.ModuleID()
	}
	return out
}

func TestBuildRequiresResolverAndLoader(t *testing.T) {
	_, err := Build(context.Background(), []Entry{{Specifier: "main.js"}}, DefaultOptions())
	require.Error(t, err)
}

func TestExecutionOrder(t *testing.T) {
	g, msgs := build(t, map[string]string{
		"/main.js": `import './a.js'; import './b.js'; console.log('main');`,
		"/a.js":    `import './c.js'; console.log('a');`,
		"/b.js":    `console.log('b');`,
		"/c.js":    `console.log('c');`,
	}, "main.js")
	assert.Empty(t, logger.Warnings(msgs))
	assert.Equal(t, []string{"/c.js", "/a.js", "/b.js", "/main.js"}, ids(g.Modules()))
	for i, m := range g.Modules() {
		assert.Equal(t, i, m.ExecutionIndex())
		assert.True(t, m.IsExecuted())
	}
	require.Len(t, g.EntryModules(), 1)
	assert.True(t, g.EntryModules()[0].IsEntry())
}

func TestImportersAreSorted(t *testing.T) {
	g, _ := build(t, map[string]string{
		"/main.js":   `import './z.js'; import './y.js';`,
		"/z.js":      `import './shared.js';`,
		"/y.js":      `import './shared.js';`,
		"/shared.js": `console.log(1);`,
	}, "main.js")
	shared, ok := g.Module("/shared.js")
	require.True(t, ok)
	assert.Equal(t, []string{"/y.js", "/z.js"}, shared.Importers())
}

func TestCircularDependency(t *testing.T) {
	g, msgs := build(t, map[string]string{
		"/main.js": `import { a } from './a.js'; console.log(a);`,
		"/a.js":    `import { b } from './b.js'; export const a = 'a' + b;`,
		"/b.js":    `import { a } from './a.js'; export const b = 'b'; export function getA() { return a; }`,
	}, "main.js")
	assert.Equal(t, []string{"/b.js", "/a.js", "/main.js"}, ids(g.Modules()))
	require.Len(t, g.Cycles(), 1)
	assert.Equal(t, []string{"/a.js", "/b.js", "/a.js"}, g.Cycles()[0])

	var found bool
	for _, msg := range msgs {
		if msg.Code == logger.CircularDependency {
			found = true
			assert.Equal(t, "Circular dependency: /a.js -> /b.js -> /a.js", msg.Text)
		}
	}
	assert.True(t, found, "expected a circular dependency warning")
	assert.NotContains(t, included(t, g, "/b.js"), "getA")
}

func TestUnusedExportsAreDropped(t *testing.T) {
	g, _ := build(t, map[string]string{
		"/main.js": `import { used } from './lib.js'; console.log(used());`,
		"/lib.js":  "export function used() { return 1; }\nexport function unused() { return 2; }\n",
	}, "main.js")
	lib := included(t, g, "/lib.js")
	assert.Contains(t, lib, "function used")
	assert.NotContains(t, lib, "function unused")
}

func TestEntryExportsArePreserved(t *testing.T) {
	g, _ := build(t, map[string]string{
		"/main.js": "export const a = 1;\nconst b = 2;\n",
	}, "main.js")
	main := included(t, g, "/main.js")
	assert.Contains(t, main, "a = 1")
	assert.NotContains(t, main, "b = 2")
}

func TestPreserveSignatureFalseDropsEntryExports(t *testing.T) {
	opts := testOptions(&memHost{files: map[string]string{
		"/main.js": "export const a = 1;\nconsole.log('kept');\n",
	}})
	opts.PreserveEntrySignatures = PreserveFalse
	g, _ := buildWith(t, opts, "main.js")
	main := included(t, g, "/main.js")
	assert.Contains(t, main, "console.log")
	assert.NotContains(t, main, "a = 1")
}

func TestSideEffectFreeModuleIsDropped(t *testing.T) {
	g, _ := build(t, map[string]string{
		"/main.js":   `import './pure.js'; import './impure.js';`,
		"/pure.js":   `const x = 1;`,
		"/impure.js": `console.log('side effect');`,
	}, "main.js")
	pure, _ := g.Module("/pure.js")
	impure, _ := g.Module("/impure.js")
	assert.False(t, pure.IsIncluded())
	assert.True(t, impure.IsIncluded())
	assert.Contains(t, included(t, g, "/impure.js"), "console.log")
}

func TestModuleSideEffectsFalse(t *testing.T) {
	opts := testOptions(&memHost{files: map[string]string{
		"/main.js": `import { x } from './lib.js'; console.log('main');`,
		"/lib.js":  `console.log('lib'); export const x = 1;`,
	}})
	opts.ModuleSideEffects = func(id string, external bool) SideEffects {
		if id == "/lib.js" {
			return SideEffectsFalse
		}
		return SideEffectsUnset
	}
	g, _ := buildWith(t, opts, "main.js")
	lib, _ := g.Module("/lib.js")
	assert.False(t, lib.IsExecuted())
	assert.False(t, lib.IsIncluded())
	main, _ := g.Module("/main.js")
	assert.Empty(t, main.DependenciesToBeIncluded())
}

func TestModuleSideEffectsFalseStillIncludesUsedBindings(t *testing.T) {
	opts := testOptions(&memHost{files: map[string]string{
		"/main.js": `import { x } from './lib.js'; console.log(x);`,
		"/lib.js":  "console.log('lib');\nexport const x = 1;\n",
	}})
	opts.ModuleSideEffects = func(string, bool) SideEffects { return SideEffectsFalse }
	g, _ := buildWith(t, opts, "main.js")
	lib, _ := g.Module("/lib.js")
	assert.True(t, lib.IsExecuted(), "a used binding pulls the module in")
	body := included(t, g, "/lib.js")
	assert.Contains(t, body, "x = 1")
	assert.Contains(t, body, "console.log('lib')")
}

func TestTreeshakeDisabled(t *testing.T) {
	opts := testOptions(&memHost{files: map[string]string{
		"/main.js": `import './pure.js'; const unused = 1;`,
		"/pure.js": `function f() {}`,
	}})
	opts.Treeshake = false
	g, _ := buildWith(t, opts, "main.js")
	assert.Contains(t, included(t, g, "/main.js"), "unused = 1")
	assert.Contains(t, included(t, g, "/pure.js"), "function f")
}

func TestPureAnnotation(t *testing.T) {
	g, _ := build(t, map[string]string{
		"/main.js": "function make() { console.log('made'); }\n/*#__PURE__*/ make();\nconst v = /*#__PURE__*/ make();\nmake();\n",
	}, "main.js")
	main := included(t, g, "/main.js")
	assert.Contains(t, main, "function make")
	assert.NotContains(t, main, "v =")
	assert.Equal(t, 1, strings.Count(main, "make();"), "only the unannotated call survives")
}

func TestManualPureFunctions(t *testing.T) {
	opts := testOptions(&memHost{
		files:     map[string]string{"/main.js": "import styled from 'styled';\nconst Button = styled.div('color: red');\nstyled.span('x');\n"},
		externals: []string{"styled"},
	})
	opts.ManualPureFunctions = []string{"styled"}
	g, _ := buildWith(t, opts, "main.js")
	main, _ := g.Module("/main.js")
	assert.False(t, main.IsIncluded())
}

func TestKnownBranchIsDropped(t *testing.T) {
	g, _ := build(t, map[string]string{
		"/main.js": "const DEBUG = false;\nif (DEBUG) { console.log('debug'); }\nconsole.log('always');\n",
	}, "main.js")
	main := included(t, g, "/main.js")
	assert.NotContains(t, main, "debug")
	assert.Contains(t, main, "always")
}

func TestMutationDeoptimizesBranch(t *testing.T) {
	g, _ := build(t, map[string]string{
		"/main.js":  "import { flags } from './flags.js';\nimport './set.js';\nif (flags.debug) { console.log('debug'); }\n",
		"/flags.js": "export const flags = { debug: false };\n",
		"/set.js":   "import { flags } from './flags.js';\nflags.debug = true;\n",
	}, "main.js")
	assert.Contains(t, included(t, g, "/main.js"), "console.log('debug')")
	assert.Contains(t, included(t, g, "/set.js"), "flags.debug = true")
}

func TestDynamicImport(t *testing.T) {
	g, _ := build(t, map[string]string{
		"/main.js": `import('./lazy.js').then(m => console.log(m));`,
		"/lazy.js": "export const a = 1;\nexport const b = 2;\n",
	}, "main.js")
	assert.Equal(t, []string{"/main.js", "/lazy.js"}, ids(g.Modules()))

	main, _ := g.Module("/main.js")
	require.Len(t, main.DynamicImports(), 1)
	assert.Equal(t, "/lazy.js", main.DynamicImports()[0].Resolution.ModuleID())

	lazy, _ := g.Module("/lazy.js")
	assert.Equal(t, []string{"/main.js"}, lazy.DynamicImporters())
	assert.Equal(t, []*Module{main}, lazy.IncludedDynamicImporters())
	body := included(t, g, "/lazy.js")
	assert.Contains(t, body, "a = 1")
	assert.Contains(t, body, "b = 2")
}

func TestMissingExportWarns(t *testing.T) {
	_, msgs := build(t, map[string]string{
		"/main.js": `import { nope } from './lib.js'; console.log(nope);`,
		"/lib.js":  `export const yes = 1;`,
	}, "main.js")
	assert.True(t, logger.HasCode(msgs, logger.MissingExport))
}

func TestUnresolvedRelativeImportFails(t *testing.T) {
	opts := testOptions(&memHost{files: map[string]string{
		"/main.js": `import './missing.js';`,
	}})
	_, err := Build(context.Background(), []Entry{{Specifier: "main.js"}}, opts)
	require.Error(t, err)
	var be *logger.BuildError
	require.True(t, errors.As(err, &be))
	assert.Equal(t, logger.UnresolvedImport, be.Code)
	assert.Equal(t, "./missing.js", be.Specifier)
}

func TestUnresolvedBareImportBecomesExternal(t *testing.T) {
	g, msgs := build(t, map[string]string{
		"/main.js": `import { x } from 'somewhere'; console.log(x);`,
	}, "main.js")
	assert.True(t, logger.HasCode(msgs, logger.UnresolvedImport))
	require.Len(t, g.ExternalModules(), 1)
	assert.Equal(t, "somewhere", g.ExternalModules()[0].ModuleID())
	assert.True(t, g.ExternalModules()[0].IsUsed())
}

func TestUnresolvedEntryFails(t *testing.T) {
	opts := testOptions(&memHost{files: map[string]string{}})
	_, err := Build(context.Background(), []Entry{{Specifier: "nope.js"}}, opts)
	var be *logger.BuildError
	require.True(t, errors.As(err, &be))
	assert.Equal(t, logger.UnresolvedEntry, be.Code)
}

func TestLoadErrorIsWrapped(t *testing.T) {
	h := &memHost{files: map[string]string{"/main.js": `import './gone.js';`, "/gone.js": ""}}
	opts := testOptions(h)
	opts.Loader = failingLoader{memHost: h, id: "/gone.js"}
	_, err := Build(context.Background(), []Entry{{Specifier: "main.js"}}, opts)
	var be *logger.BuildError
	require.True(t, errors.As(err, &be))
	assert.Equal(t, logger.LoadError, be.Code)
	assert.ErrorIs(t, err, fs.ErrPermission)
}

type failingLoader struct {
	*memHost
	id string
}

func (l failingLoader) Load(ctx context.Context, id string) ([]byte, error) {
	if id == l.id {
		return nil, fs.ErrPermission
	}
	return l.memHost.Load(ctx, id)
}

func TestIllegalReassignmentOfImport(t *testing.T) {
	opts := testOptions(&memHost{files: map[string]string{
		"/main.js": `import { x } from './lib.js'; x = 2;`,
		"/lib.js":  `export let x = 1;`,
	}})
	_, err := Build(context.Background(), []Entry{{Specifier: "main.js"}}, opts)
	var be *logger.BuildError
	require.True(t, errors.As(err, &be))
	assert.Equal(t, logger.IllegalReassignment, be.Code)
}

func TestUnusedExternalImportWarns(t *testing.T) {
	_, msgs := buildWith(t, testOptions(&memHost{
		files:     map[string]string{"/main.js": `import { unused } from 'ext'; console.log(1);`},
		externals: []string{"ext"},
	}), "main.js")
	assert.True(t, logger.HasCode(msgs, logger.UnusedExternalImport))
}

func TestExternalExecutionIndex(t *testing.T) {
	g, _ := buildWith(t, testOptions(&memHost{
		files:     map[string]string{"/main.js": `import 'ext'; import './a.js';`, "/a.js": `console.log(1);`},
		externals: []string{"ext"},
	}), "main.js")
	require.Len(t, g.ExternalModules(), 1)
	a, _ := g.Module("/a.js")
	main, _ := g.Module("/main.js")
	assert.Equal(t, 0, g.ExternalModules()[0].ExecutionIndex())
	assert.Equal(t, 1, a.ExecutionIndex())
	assert.Equal(t, 2, main.ExecutionIndex())
	assert.Equal(t, []string{"/a.js", "/main.js"}, ids(g.Modules()))
}

func TestMultipleEntriesShareModules(t *testing.T) {
	g, _ := build(t, map[string]string{
		"/a.js":      `import { s } from './shared.js'; console.log(s);`,
		"/b.js":      `import { s } from './shared.js'; console.log(s);`,
		"/shared.js": `export const s = 1;`,
	}, "a.js", "b.js")
	assert.Equal(t, []string{"/a.js", "/b.js"}, ids(g.EntryModules()))
	assert.Equal(t, []string{"/shared.js", "/a.js", "/b.js"}, ids(g.Modules()))
}

func TestNamespaceMemberAccess(t *testing.T) {
	g, _ := build(t, map[string]string{
		"/main.js": `import * as lib from './lib.js'; console.log(lib.a);`,
		"/lib.js":  "export const a = 1;\nexport const b = 2;\n",
	}, "main.js")
	lib := included(t, g, "/lib.js")
	assert.Contains(t, lib, "a = 1")
	assert.NotContains(t, lib, "b = 2")
}

func TestReexportChain(t *testing.T) {
	g, _ := build(t, map[string]string{
		"/main.js":  `import { a } from './index.js'; console.log(a);`,
		"/index.js": `export * from './a.js'; export { b } from './b.js';`,
		"/a.js":     `export const a = 1;`,
		"/b.js":     `export const b = 2;`,
	}, "main.js")
	assert.Contains(t, included(t, g, "/a.js"), "a = 1")
	b, _ := g.Module("/b.js")
	assert.False(t, b.IsIncluded())
}

func TestNamespaceReexport(t *testing.T) {
	g, msgs := build(t, map[string]string{
		"/main.js": `import { all } from './re.js'; console.log(all.x);`,
		"/re.js":   `export * as all from './all.js';`,
		"/all.js":  "export const x = 1;\nexport const y = 2;\n",
	}, "main.js")
	assert.False(t, logger.HasCode(msgs, logger.MissingExport))
	all := included(t, g, "/all.js")
	assert.Contains(t, all, "x = 1")
	assert.NotContains(t, all, "y = 2")
}

func TestKnownBranchCollapsesToLiveCode(t *testing.T) {
	g, _ := build(t, map[string]string{
		"/main.js": "const flag = true;\nif (flag) console.log('yes'); else console.log('no');\nconsole.log('after');\n",
	}, "main.js")
	main := included(t, g, "/main.js")
	assert.Contains(t, main, "console.log('yes');")
	assert.Contains(t, main, "console.log('after');")
	assert.NotContains(t, main, "else")
	assert.NotContains(t, main, "'no'")
	assert.NotContains(t, main, "if (")
}

func TestKnownConditionalCollapsesToLiveArm(t *testing.T) {
	g, _ := build(t, map[string]string{
		"/main.js": "const DEV = false;\nconst value = DEV ? heavy() : 1;\nfunction heavy() { return 2; }\nconsole.log(value);\n",
	}, "main.js")
	main := included(t, g, "/main.js")
	assert.Contains(t, main, "const value = 1;")
	assert.NotContains(t, main, "heavy")
	assert.NotContains(t, main, "?")
}

func TestUnknownBranchDropsEffectFreeElse(t *testing.T) {
	g, _ := build(t, map[string]string{
		"/main.js": "if (Math.random() > 0.5) console.log('a'); else 1;\n",
	}, "main.js")
	main := included(t, g, "/main.js")
	assert.Contains(t, main, "if (Math.random() > 0.5) console.log('a');")
	assert.NotContains(t, main, "else")
}

func TestUnusedDeclaratorsAreDropped(t *testing.T) {
	g, _ := build(t, map[string]string{
		"/main.js": "const a = 1, b = 2;\nconst ignored = console.log('init');\nconsole.log(a);\n",
	}, "main.js")
	main := included(t, g, "/main.js")
	assert.Contains(t, main, "const a = 1;")
	assert.Contains(t, main, "console.log('init');")
	assert.NotContains(t, main, "b = 2")
	assert.NotContains(t, main, "ignored")
}

func TestRedeclarationKeepsBranch(t *testing.T) {
	g, _ := build(t, map[string]string{
		"/main.js": "var y = 1;\nvar y = 0;\nif (y) console.log('kept');\n",
	}, "main.js")
	assert.Contains(t, included(t, g, "/main.js"), "console.log('kept')")
}

func TestMutualRecursionTerminates(t *testing.T) {
	g, _ := build(t, map[string]string{
		"/main.js": "function a() { return b(); }\nfunction b() { return a(); }\nif (a()) console.log('kept');\n",
	}, "main.js")
	main := included(t, g, "/main.js")
	assert.Contains(t, main, "function a")
	assert.Contains(t, main, "function b")
	assert.Contains(t, main, "console.log('kept')")
}

func TestConditionalReassignmentKeepsBranch(t *testing.T) {
	g, _ := build(t, map[string]string{
		"/main.js": "let x = false;\nif (Math.random() > 0.5) x = true;\nif (x) console.log('kept');\n",
	}, "main.js")
	main := included(t, g, "/main.js")
	assert.Contains(t, main, "x = true")
	assert.Contains(t, main, "console.log('kept')")
}

// slowLoader delays every load by a random amount so modules finish
// loading in a different order on every build.
type slowLoader struct{ *memHost }

func (l slowLoader) Load(ctx context.Context, id string) ([]byte, error) {
	time.Sleep(time.Duration(rand.IntN(2000)) * time.Microsecond)
	return l.memHost.Load(ctx, id)
}

func TestExecutionOrderIgnoresLoadTiming(t *testing.T) {
	files := map[string]string{
		"/main.js": "import './a.js';\nimport './b.js';\nimport './c.js';\n",
		"/a.js":    "import './d.js';\nconsole.log('a');\n",
		"/b.js":    "import './d.js';\nimport './e.js';\nconsole.log('b');\n",
		"/c.js":    "import './e.js';\nconsole.log('c');\n",
		"/d.js":    "console.log('d');\n",
		"/e.js":    "console.log('e');\n",
	}
	indexes := func() map[string]int {
		h := &memHost{files: files}
		opts := testOptions(h)
		opts.Loader = slowLoader{h}
		g, _ := buildWith(t, opts, "main.js")
		out := map[string]int{}
		for _, m := range g.Modules() {
			out[m.ModuleID()] = m.ExecutionIndex()
		}
		return out
	}
	want := indexes()
	assert.Equal(t, map[string]int{
		"/d.js": 0, "/a.js": 1, "/e.js": 2, "/b.js": 3, "/c.js": 4, "/main.js": 5,
	}, want)
	for range 10 {
		assert.Equal(t, want, indexes())
	}
}
