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

// Package packagejson reads the package.json fields that decide how a
// package is resolved and whether its modules have side effects.
package packagejson

import (
	"encoding/json"
	"errors"
	"fmt"
	"path"
	"strings"

	"github.com/bmatcuk/doublestar/v4"

	"bennypowers.dev/fascio/fs"
)

// ErrNotExported is returned when the exports or imports map does not
// expose a subpath.
var ErrNotExported = errors.New("not exported by package.json")

// DefaultConditions is the condition priority used for ES module bundling.
var DefaultConditions = []string{"import", "module", "browser", "default"}

// PackageJSON holds the fields relevant to bundling.
type PackageJSON struct {
	Name    string `json:"name"`
	Version string `json:"version"`
	Type    string `json:"type,omitempty"`
	Main    string `json:"main,omitempty"`
	Module  string `json:"module,omitempty"`
	Exports any    `json:"exports,omitempty"`
	Imports any    `json:"imports,omitempty"`

	RawSideEffects json.RawMessage `json:"sideEffects,omitempty"`
	RawWorkspaces  json.RawMessage `json:"workspaces,omitempty"`

	sideEffects sideEffectsField
}

// sideEffectsField is the decoded "sideEffects" value: absent, a boolean,
// or a list of glob patterns.
type sideEffectsField struct {
	set      bool
	value    bool
	patterns []string
}

func Parse(data []byte) (*PackageJSON, error) {
	var pkg PackageJSON
	if err := json.Unmarshal(data, &pkg); err != nil {
		return nil, err
	}
	if len(pkg.RawSideEffects) > 0 {
		var b bool
		var list []string
		switch {
		case json.Unmarshal(pkg.RawSideEffects, &b) == nil:
			pkg.sideEffects = sideEffectsField{set: true, value: b}
		case json.Unmarshal(pkg.RawSideEffects, &list) == nil:
			pkg.sideEffects = sideEffectsField{set: true, patterns: list}
		default:
			return nil, fmt.Errorf("invalid sideEffects field: %s", pkg.RawSideEffects)
		}
	}
	return &pkg, nil
}

func ParseFile(fsys fs.FileSystem, name string) (*PackageJSON, error) {
	data, err := fsys.ReadFile(name)
	if err != nil {
		return nil, err
	}
	pkg, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("parsing %s: %w", name, err)
	}
	return pkg, nil
}

// WorkspacePatterns returns the workspace globs, accepting both the array
// form and the yarn object form {"packages": [...]}.
func (pkg *PackageJSON) WorkspacePatterns() []string {
	if len(pkg.RawWorkspaces) == 0 {
		return nil
	}
	var patterns []string
	if err := json.Unmarshal(pkg.RawWorkspaces, &patterns); err == nil {
		return patterns
	}
	var obj struct {
		Packages []string `json:"packages"`
	}
	if err := json.Unmarshal(pkg.RawWorkspaces, &obj); err == nil {
		return obj.Packages
	}
	return nil
}

// HasSideEffects reports the package's verdict for the file at rel, a path
// relative to the package directory. ok is false when the package does not
// declare sideEffects. A pattern without a slash matches the file name at
// any depth.
func (pkg *PackageJSON) HasSideEffects(rel string) (sideEffects bool, ok bool) {
	field := pkg.sideEffects
	if !field.set {
		return false, false
	}
	if field.patterns == nil {
		return field.value, true
	}
	rel = strings.TrimPrefix(path.Clean("/"+rel), "/")
	for _, pattern := range field.patterns {
		pattern = strings.TrimPrefix(pattern, "./")
		if !strings.Contains(pattern, "/") {
			pattern = "**/" + pattern
		}
		if matched, _ := doublestar.Match(pattern, rel); matched {
			return true, true
		}
	}
	return false, true
}

// EntryPoint returns the file the package root resolves to when there is
// no exports map: module, then main, then index.js.
func (pkg *PackageJSON) EntryPoint() string {
	switch {
	case pkg.Module != "":
		return trimDotSlash(pkg.Module)
	case pkg.Main != "":
		return trimDotSlash(pkg.Main)
	}
	return "index.js"
}

// HasExports reports whether the exports field restricts the package.
func (pkg *PackageJSON) HasExports() bool {
	return pkg.Exports != nil
}

// ResolveExport maps a subpath ("." or "./x") through the exports field.
// Nil conditions mean DefaultConditions.
func (pkg *PackageJSON) ResolveExport(subpath string, conditions []string) (string, error) {
	switch exports := pkg.Exports.(type) {
	case nil:
		if subpath == "." {
			return pkg.EntryPoint(), nil
		}
		return "", ErrNotExported
	case string, []any:
		if subpath != "." {
			return "", ErrNotExported
		}
		return resolveTarget(exports, "", conditions)
	case map[string]any:
		if !hasSubpathKeys(exports) {
			if subpath != "." {
				return "", ErrNotExported
			}
			return resolveTarget(exports, "", conditions)
		}
		return resolveMap(exports, subpath, conditions)
	}
	return "", ErrNotExported
}

// ResolveImport maps a "#name" specifier through the imports field.
func (pkg *PackageJSON) ResolveImport(specifier string, conditions []string) (string, error) {
	imports, ok := pkg.Imports.(map[string]any)
	if !ok {
		return "", ErrNotExported
	}
	return resolveMap(imports, specifier, conditions)
}

func hasSubpathKeys(m map[string]any) bool {
	for key := range m {
		if strings.HasPrefix(key, ".") {
			return true
		}
	}
	return false
}

// resolveMap looks key up directly, then through the most specific
// single-star pattern.
func resolveMap(m map[string]any, key string, conditions []string) (string, error) {
	if target, ok := m[key]; ok && !strings.Contains(key, "*") {
		return resolveTarget(target, "", conditions)
	}
	best, bestMatch := "", ""
	for pattern := range m {
		prefix, suffix, ok := strings.Cut(pattern, "*")
		if !ok || !strings.HasPrefix(key, prefix) || !strings.HasSuffix(key, suffix) || len(key) < len(prefix)+len(suffix) {
			continue
		}
		if best == "" || patternKeyCompare(pattern, best) < 0 {
			best = pattern
			bestMatch = key[len(prefix) : len(key)-len(suffix)]
		}
	}
	if best == "" {
		return "", ErrNotExported
	}
	return resolveTarget(m[best], bestMatch, conditions)
}

// patternKeyCompare orders patterns by specificity, longest prefix first.
func patternKeyCompare(a, b string) int {
	ai, bi := strings.Index(a, "*"), strings.Index(b, "*")
	if ai != bi {
		return bi - ai
	}
	return len(b) - len(a)
}

// resolveTarget walks a target value: a string, a condition map or a
// fallback array. A JSON null excludes the subpath.
func resolveTarget(target any, match string, conditions []string) (string, error) {
	if conditions == nil {
		conditions = DefaultConditions
	}
	switch t := target.(type) {
	case string:
		return trimDotSlash(strings.ReplaceAll(t, "*", match)), nil
	case map[string]any:
		for _, cond := range conditions {
			if value, ok := t[cond]; ok {
				if resolved, err := resolveTarget(value, match, conditions); err == nil {
					return resolved, nil
				}
			}
		}
	case []any:
		for _, item := range t {
			if resolved, err := resolveTarget(item, match, conditions); err == nil {
				return resolved, nil
			}
		}
	}
	return "", ErrNotExported
}

func trimDotSlash(p string) string {
	return strings.TrimPrefix(p, "./")
}
