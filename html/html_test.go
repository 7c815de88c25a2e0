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
package html

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestModuleScripts(t *testing.T) {
	page := []byte(`<!doctype html>
<html>
<head>
  <script src="./legacy.js"></script>
  <script type="module" src="./src/main.js"></script>
  <script type="importmap">{"imports": {}}</script>
  <script type="MODULE" src="https://cdn.example.com/widget.js"></script>
</head>
<body>
  <script type="module">
    import { start } from './src/app.js';
    start();
  </script>
  <script type="module">   </script>
  <script type="module" src="/src/other.js"></script>
</body>
</html>`)
	scripts, err := ModuleScripts(page)
	require.NoError(t, err)
	require.Len(t, scripts, 3)

	assert.Equal(t, "./src/main.js", scripts[0].Src)
	assert.False(t, scripts[0].Inline())

	assert.True(t, scripts[1].Inline())
	assert.Contains(t, scripts[1].Content, "import { start } from './src/app.js';")
	assert.Equal(t, 1, scripts[1].Index)

	assert.Equal(t, "/src/other.js", scripts[2].Src)
	assert.Equal(t, 2, scripts[2].Index)
}

func TestModuleScriptsNone(t *testing.T) {
	scripts, err := ModuleScripts([]byte(`<p>no scripts</p>`))
	require.NoError(t, err)
	assert.Empty(t, scripts)
}
