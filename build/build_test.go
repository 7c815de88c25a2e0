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
	"bytes"
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bennypowers.dev/fascio/chunk"
	"bennypowers.dev/fascio/config"
	"bennypowers.dev/fascio/internal/mapfs"
	"bennypowers.dev/fascio/logger"
	"bennypowers.dev/fascio/testutil"
)

func options(input ...string) *config.Options {
	return &config.Options{
		Root:  "/proj",
		Input: input,
		Treeshake: config.Treeshake{
			Enabled:                  true,
			ModuleSideEffects:        true,
			PropertyReadSideEffects:  true,
			TryCatchDeoptimization:   true,
			UnknownGlobalSideEffects: true,
			Annotations:              true,
		},
		PreserveEntrySignatures: "exports-only",
		Output:                  config.Output{Format: "es", Exports: "auto"},
	}
}

func run(t *testing.T, files map[string]string, opts *config.Options) *Result {
	t.Helper()
	res, err := Build(context.Background(), opts, Host{FS: mapfs.FromMap(files)})
	require.NoError(t, err)
	return res
}

func fileNames(m *chunk.Manifest) []string {
	var out []string
	for _, c := range m.Chunks {
		out = append(out, c.FileName)
	}
	return out
}

func findChunk(t *testing.T, m *chunk.Manifest, name string) chunk.ChunkManifest {
	t.Helper()
	for _, c := range m.Chunks {
		if c.FileName == name {
			return c
		}
	}
	t.Fatalf("no chunk %s in %v", name, fileNames(m))
	return chunk.ChunkManifest{}
}

func preview(t *testing.T, res *Result) string {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, res.Preview(&buf))
	return buf.String()
}

func TestBuildSingleEntry(t *testing.T) {
	res := run(t, map[string]string{
		"/proj/src/main.js": "import { greet } from './greet';\ngreet('world');\n",
		"/proj/src/greet.js": "export function greet(name) { console.log('hello ' + name); }\nexport function unused() { console.log('unused'); }\n",
	}, options("src/main.js"))

	m := res.Manifest()
	require.Len(t, m.Chunks, 1)
	assert.Equal(t, "main.js", m.Chunks[0].FileName)
	assert.Equal(t, []string{"/proj/src/greet.js", "/proj/src/main.js"}, m.Chunks[0].Modules)

	code := preview(t, res)
	assert.Contains(t, code, "export function greet(name)")
	assert.Contains(t, code, "greet('world');")
	assert.NotContains(t, code, "unused")
}

func TestPreviewCollapsesKnownBranches(t *testing.T) {
	res := run(t, map[string]string{
		"/proj/src/main.js": "const flag = true;\n" +
			"if (flag) console.log('yes'); else console.log('no');\n" +
			"const DEV = false;\n" +
			"const value = DEV ? heavy() : 1, spare = 2;\n" +
			"function heavy() { return 2; }\n" +
			"console.log('after', value);\n",
	}, options("src/main.js"))

	code := preview(t, res)
	assert.Contains(t, code, "console.log('yes');")
	assert.Contains(t, code, "const value = 1;")
	assert.Contains(t, code, "console.log('after', value);")
	for _, dead := range []string{"else", "'no'", "if (", "heavy", "?", "spare"} {
		assert.NotContains(t, code, dead)
	}
}

func TestBuildGlobInputsShareChunk(t *testing.T) {
	res := run(t, map[string]string{
		"/proj/src/pages/home.js":  "import { layout } from '../layout.js';\nlayout('home');\n",
		"/proj/src/pages/about.js": "import { layout } from '../layout.js';\nlayout('about');\n",
		"/proj/src/layout.js":      "export const layout = (page) => document.title = page;\n",
	}, options("./src/pages/*.js"))

	m := res.Manifest()
	assert.Equal(t, []string{"layout.js", "about.js", "home.js"}, fileNames(m))
	home := findChunk(t, m, "home.js")
	require.Len(t, home.Imports, 1)
	assert.Equal(t, "layout.js", home.Imports[0].From)
}

func TestBuildManifestGolden(t *testing.T) {
	opts := options("src/cart.js", "src/checkout.js")
	opts.Root = "/shop"
	res, err := Build(context.Background(), opts, Host{FS: testutil.NewFixtureFS(t, "build/shop", "/shop")})
	require.NoError(t, err)

	text, err := res.Manifest().Format("text")
	require.NoError(t, err)
	testutil.Golden(t, "build/shop.manifest.txt", []byte(text))
	assert.NotContains(t, preview(t, res), "Number(text.slice(1))")
}

func TestBuildHTMLInput(t *testing.T) {
	res := run(t, map[string]string{
		"/proj/index.html": `<html><head>
<script type="module" src="./src/app.js"></script>
</head><body>
<script type="module">import { app } from './src/app.js'; app.start();</script>
</body></html>`,
		"/proj/src/app.js": "export const app = { start() { console.log('start'); } };\n",
	}, options("index.html"))

	m := res.Manifest()
	assert.ElementsMatch(t, []string{"app.js", "index-inline-1.js"}, fileNames(m))
	inline := findChunk(t, m, "index-inline-1.js")
	assert.True(t, inline.IsEntry)
	require.Len(t, inline.Imports, 1)
	assert.Equal(t, "app.js", inline.Imports[0].From)
}

func TestBuildExternal(t *testing.T) {
	opts := options("src/main.js")
	opts.External = []string{"lit", "@lit/*"}
	res := run(t, map[string]string{
		"/proj/src/main.js": "import { html } from 'lit';\nimport { property } from '@lit/reactive-element';\nconsole.log(html, property);\n",
	}, opts)

	main := findChunk(t, res.Manifest(), "main.js")
	require.Len(t, main.Imports, 2)
	assert.Equal(t, chunk.ImportManifest{From: "lit", External: true, Bindings: []chunk.Binding{{Imported: "html", Local: "html"}}}, main.Imports[0])
	assert.Equal(t, "@lit/reactive-element", main.Imports[1].From)
	assert.Len(t, res.Graph.ExternalModules(), 2)
}

func TestBuildPackageSideEffects(t *testing.T) {
	res := run(t, map[string]string{
		"/proj/src/main.js":                       "import 'pure-lib';\nimport 'effectful-lib';\nconsole.log('main');\n",
		"/proj/node_modules/pure-lib/package.json": `{"name": "pure-lib", "sideEffects": false}`,
		"/proj/node_modules/pure-lib/index.js":     "console.log('pure-lib loaded');\n",
		"/proj/node_modules/effectful-lib/package.json": `{"name": "effectful-lib"}`,
		"/proj/node_modules/effectful-lib/index.js":     "console.log('effectful-lib loaded');\n",
	}, options("src/main.js"))

	code := preview(t, res)
	assert.NotContains(t, code, "pure-lib loaded")
	assert.Contains(t, code, "effectful-lib loaded")
}

func TestBuildModuleSideEffectsPatterns(t *testing.T) {
	opts := options("src/main.js")
	opts.Treeshake.ModuleSideEffects = []any{"src/polyfills/**"}
	res := run(t, map[string]string{
		"/proj/src/main.js":           "import './polyfills/array.js';\nimport './analytics.js';\nconsole.log('main');\n",
		"/proj/src/polyfills/array.js": "Array.prototype.last = function () { return this[this.length - 1]; };\n",
		"/proj/src/analytics.js":       "console.log('track');\n",
	}, opts)

	code := preview(t, res)
	assert.Contains(t, code, "Array.prototype.last")
	assert.NotContains(t, code, "track")
}

func TestBuildManualChunks(t *testing.T) {
	opts := options("src/main.js")
	opts.ManualChunks = []config.ManualChunk{{Name: "vendor", Include: []string{"node_modules/**"}}}
	res := run(t, map[string]string{
		"/proj/src/main.js":                  "import { v } from 'dep';\nconsole.log(v);\n",
		"/proj/node_modules/dep/package.json": `{"name": "dep", "module": "dep.js"}`,
		"/proj/node_modules/dep/dep.js":       "export const v = 42;\n",
	}, opts)

	m := res.Manifest()
	assert.Equal(t, []string{"vendor.js", "main.js"}, fileNames(m))
	assert.Equal(t, []string{"/proj/node_modules/dep/dep.js"}, findChunk(t, m, "vendor.js").Modules)
}

func TestBuildSyntheticNamedExports(t *testing.T) {
	opts := options("src/main.js")
	opts.SyntheticNamedExports = []config.SyntheticExports{{Include: []string{"src/legacy.js"}}}
	res := run(t, map[string]string{
		"/proj/src/main.js":   "import { helper } from './legacy.js';\nconsole.log(helper);\n",
		"/proj/src/legacy.js": "export default { helper: 1 };\n",
	}, opts)
	assert.False(t, logger.HasCode(res.Messages, logger.MissingExport))
}

type fakeFetcher map[string]string

func (f fakeFetcher) Fetch(_ context.Context, url string) ([]byte, error) {
	src, ok := f[url]
	if !ok {
		return nil, errors.New("not found")
	}
	return []byte(src), nil
}

func TestBuildRemoteModules(t *testing.T) {
	opts := options("src/main.js")
	opts.Remote = true
	fs := mapfs.FromMap(map[string]string{
		"/proj/src/main.js": "import { x } from 'https://cdn.test/lib/x.js';\nconsole.log(x);\n",
	})
	res, err := Build(context.Background(), opts, Host{FS: fs, Fetcher: fakeFetcher{
		"https://cdn.test/lib/x.js": "export { y as x } from './y.js';\n",
		"https://cdn.test/lib/y.js": "export const y = 'remote';\n",
	}})
	require.NoError(t, err)
	main := findChunk(t, res.Manifest(), "main.js")
	assert.Contains(t, main.Modules, "https://cdn.test/lib/y.js")
	assert.Contains(t, preview(t, res), "export const y = 'remote';")
}

func TestBuildErrors(t *testing.T) {
	t.Run("no input", func(t *testing.T) {
		_, err := Build(context.Background(), options(), Host{FS: mapfs.New()})
		assert.ErrorIs(t, err, ErrNoInput)
	})
	t.Run("pattern matches nothing", func(t *testing.T) {
		_, err := Build(context.Background(), options("src/*.ts"), Host{FS: mapfs.FromMap(map[string]string{"/proj/src/a.js": ""})})
		assert.ErrorContains(t, err, "matched no files")
	})
	t.Run("unresolved import", func(t *testing.T) {
		_, err := Build(context.Background(), options("src/main.js"), Host{FS: mapfs.FromMap(map[string]string{
			"/proj/src/main.js": "import './missing.js';\n",
		})})
		var be *logger.BuildError
		require.True(t, errors.As(err, &be), "got %v", err)
		assert.Equal(t, logger.UnresolvedImport, be.Code)
	})
	t.Run("invalid options", func(t *testing.T) {
		opts := options("src/main.js")
		opts.Output.Format = "nope"
		_, err := Build(context.Background(), opts, Host{FS: mapfs.New()})
		assert.ErrorContains(t, err, "nope")
	})
}

func TestPatterns(t *testing.T) {
	p := newPatterns("/proj", []string{"lit", "@lit/*", "src/**/*.css", "/abs/x.js"})
	assert.True(t, p.match("lit"))
	assert.True(t, p.match("@lit/reactive-element"))
	assert.True(t, p.match("/proj/src/theme/a.css"))
	assert.True(t, p.match("/abs/x.js"))
	assert.False(t, p.match("lit-html"))
	assert.False(t, p.match("/other/src/a.css"))
}
