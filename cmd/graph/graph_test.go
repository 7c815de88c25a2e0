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
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bennypowers.dev/fascio/build"
	"bennypowers.dev/fascio/config"
	"bennypowers.dev/fascio/internal/mapfs"
)

func TestReport(t *testing.T) {
	fsys := mapfs.FromMap(map[string]string{
		"/p/main.js": "import { a } from './a.js';\nconsole.log(a);\nimport('./lazy.js');\n",
		"/p/a.js":    "import { b } from './b.js';\nexport const a = () => b;\n",
		"/p/b.js":    "import { a } from './a.js';\nexport const b = 1;\nexport const useA = () => a;\n",
		"/p/lazy.js": "import 'polyfill';\nexport default 1;\n",
	})
	opts := &config.Options{
		Root:                    "/p",
		Input:                   []string{"main.js"},
		External:                []string{"polyfill"},
		Treeshake:               config.Treeshake{Enabled: true, ModuleSideEffects: true},
		PreserveEntrySignatures: "exports-only",
		Output:                  config.Output{Format: "es", Exports: "auto"},
	}
	res, err := build.Build(context.Background(), opts, build.Host{FS: fsys})
	require.NoError(t, err)

	r := NewReport(res.Graph)
	var ids []string
	for _, m := range r.Modules {
		ids = append(ids, m.ID)
	}
	assert.Equal(t, []string{"/p/b.js", "/p/a.js", "/p/main.js", "/p/lazy.js"}, ids)
	assert.True(t, r.Modules[2].Entry)
	assert.Equal(t, []string{"/p/a.js"}, r.Modules[2].Imports)
	assert.Equal(t, []string{"/p/lazy.js"}, r.Modules[2].DynamicImports)
	assert.Equal(t, []string{"polyfill"}, r.Externals)
	assert.Equal(t, [][]string{{"/p/a.js", "/p/b.js", "/p/a.js"}}, r.Cycles)

	text := r.String()
	assert.Contains(t, text, "  2 /p/main.js (entry)\n")
	assert.Contains(t, text, "      dynamic /p/lazy.js\n")
	assert.Contains(t, text, "circular\n      /p/a.js -> /p/b.js -> /p/a.js\n")
}
