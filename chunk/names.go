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

import "bennypowers.dev/fascio/graph"

// reservedNames may not be used as bindings or short export names.
var reservedNames = map[string]bool{
	"await": true, "break": true, "case": true, "catch": true, "class": true,
	"const": true, "continue": true, "debugger": true, "default": true,
	"delete": true, "do": true, "else": true, "enum": true, "eval": true,
	"export": true, "extends": true, "false": true, "finally": true,
	"for": true, "function": true, "if": true, "implements": true,
	"import": true, "in": true, "instanceof": true, "interface": true,
	"let": true, "NaN": true, "new": true, "null": true, "package": true,
	"private": true, "protected": true, "public": true, "return": true,
	"static": true, "super": true, "switch": true, "this": true,
	"throw": true, "true": true, "try": true, "typeof": true,
	"undefined": true, "var": true, "void": true, "while": true,
	"with": true, "yield": true,
}

const base64Chars = "0123456789abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ_$"

func toBase64(value int) string {
	var out []byte
	for {
		out = append([]byte{base64Chars[value%64]}, out...)
		value /= 64
		if value == 0 {
			return string(out)
		}
	}
}

// baseName is the name a variable is rendered under before deconflicting.
func baseName(v graph.Variable) string {
	if ed, ok := v.(*graph.ExportDefaultVariable); ok {
		if name := ed.AssignedName(); name != "" {
			return name
		}
		if owner, ok := ed.Owner().(*graph.Module); ok {
			return owner.Name()
		}
	}
	return v.Name()
}

func safeName(name string, used map[string]bool) string {
	candidate := name
	for i := 1; used[candidate] || reservedNames[candidate]; i++ {
		candidate = name + "$" + toBase64(i)
	}
	used[candidate] = true
	return candidate
}

// deconflict assigns render names to the imports of the chunk and to the
// included top-level variables of its modules, avoiding the globals its
// code reads.
func (c *Chunk) deconflict() {
	used := map[string]bool{}
	for _, m := range c.modules {
		for _, name := range m.AccessedGlobals() {
			used[name] = true
		}
	}
	for _, v := range c.imports.items {
		c.importNames[v] = safeName(baseName(v), used)
	}
	for _, m := range c.modules {
		for _, v := range m.Scope().Variables() {
			if !v.IsIncluded() {
				continue
			}
			if ed, ok := v.(*graph.ExportDefaultVariable); ok && ed.OriginalVariable() != graph.Variable(ed) {
				continue
			}
			v.SetRenderName(safeName(baseName(v), used))
		}
		if ns := m.Namespace(); ns.IsIncluded() {
			ns.SetRenderName(safeName(baseName(ns), used))
		}
	}
}

// localName is the name the chunk's code uses for v.
func (c *Chunk) localName(v graph.Variable) string {
	if name, ok := c.importNames[v]; ok {
		return name
	}
	return v.RenderName()
}

// exportName is the first name the chunk exports v under.
func (c *Chunk) exportName(v graph.Variable) (string, bool) {
	names := c.exportNamesByVariable[v]
	if len(names) == 0 {
		return "", false
	}
	return names[0], true
}
