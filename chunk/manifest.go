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
	"encoding/json"
	"fmt"
	"strings"

	"bennypowers.dev/fascio/graph"
)

// Manifest describes every chunk of a bundle in output order. It is all an
// output format template needs to emit import and export statements.
type Manifest struct {
	Chunks []ChunkManifest `json:"chunks"`
}

// ChunkManifest describes one chunk.
type ChunkManifest struct {
	Name           string           `json:"name"`
	FileName       string           `json:"fileName"`
	IsEntry        bool             `json:"isEntry"`
	IsDynamicEntry bool             `json:"isDynamicEntry"`
	IsFacade       bool             `json:"isFacade"`
	FacadeModuleID string           `json:"facadeModuleId,omitempty"`
	ExportMode     ExportMode       `json:"exportMode"`
	Modules        []string         `json:"modules"`
	Imports        []ImportManifest `json:"imports,omitempty"`
	Exports        []ExportManifest `json:"exports,omitempty"`
	DynamicImports []string         `json:"dynamicImports,omitempty"`
}

// ImportManifest lists the bindings a chunk takes from one dependency. A
// dependency without bindings is imported for its side effects.
type ImportManifest struct {
	From     string    `json:"from"`
	External bool      `json:"external,omitempty"`
	Bindings []Binding `json:"bindings,omitempty"`
}

// Binding is one imported name and the local name it is bound to. Imported
// is "*" for a namespace import.
type Binding struct {
	Imported string `json:"imported"`
	Local    string `json:"local"`
}

// ExportManifest is one export of a chunk. From is set when the export is
// forwarded from another chunk or an external.
type ExportManifest struct {
	Exported string `json:"exported"`
	Local    string `json:"local"`
	From     string `json:"from,omitempty"`
}

// Manifest builds the manifest of the bundle.
func (b *Bundle) Manifest() *Manifest {
	out := &Manifest{Chunks: make([]ChunkManifest, 0, len(b.chunks))}
	for _, c := range b.chunks {
		out.Chunks = append(out.Chunks, c.manifest())
	}
	return out
}

func (c *Chunk) manifest() ChunkManifest {
	cm := ChunkManifest{
		Name:           c.name,
		FileName:       c.fileName,
		IsEntry:        c.IsEntry(),
		IsDynamicEntry: c.IsDynamicEntry(),
		IsFacade:       c.IsFacade(),
		ExportMode:     c.exportMode,
		Modules:        make([]string, 0, len(c.modules)),
	}
	if c.facadeModule != nil {
		cm.FacadeModuleID = c.facadeModule.ModuleID()
	}
	for _, m := range c.modules {
		cm.Modules = append(cm.Modules, m.ModuleID())
	}
	cm.Imports = c.importManifest()
	cm.Exports = c.exportManifest()
	for _, d := range c.dynamicDependencies.items {
		cm.DynamicImports = append(cm.DynamicImports, d.ID())
	}
	return cm
}

// source returns the dependency that provides v to this chunk and the
// name it is exported under there.
func (c *Chunk) source(v graph.Variable) (Dependency, string, bool) {
	switch owner := v.Owner().(type) {
	case *graph.ExternalModule:
		name := "*"
		if ext, ok := v.(*graph.ExternalVariable); ok && !ext.IsNamespace() {
			name = ext.ImportedName()
		}
		return Dependency{External: owner}, name, true
	case *graph.Module:
		target := c.chunkOf(owner)
		if target == nil || target == c {
			return Dependency{}, "", false
		}
		name, ok := target.exportName(v)
		return Dependency{Chunk: target}, name, ok
	}
	return Dependency{}, "", false
}

func (c *Chunk) importManifest() []ImportManifest {
	order := newOrderedSet(c.dependencies.items...)
	bindings := map[Dependency][]Binding{}
	for _, v := range c.imports.items {
		dep, imported, ok := c.source(v)
		if !ok {
			continue
		}
		order.add(dep)
		bindings[dep] = append(bindings[dep], Binding{Imported: imported, Local: c.localName(v)})
	}
	var out []ImportManifest
	for _, dep := range order.items {
		out = append(out, ImportManifest{From: dep.ID(), External: dep.External != nil, Bindings: bindings[dep]})
	}
	return out
}

func (c *Chunk) exportManifest() []ExportManifest {
	var out []ExportManifest
	for _, name := range c.ExportNames() {
		v := c.exportsByName[name]
		if owner, ok := v.Owner().(*graph.Module); ok && c.chunkOf(owner) == c {
			out = append(out, ExportManifest{Exported: name, Local: v.RenderName()})
			continue
		}
		if local, ok := c.importNames[v]; ok {
			out = append(out, ExportManifest{Exported: name, Local: local})
			continue
		}
		dep, imported, ok := c.source(v)
		if !ok {
			continue
		}
		out = append(out, ExportManifest{Exported: name, Local: imported, From: dep.ID()})
	}
	return out
}

// ToJSON renders the manifest as indented JSON.
func (m *Manifest) ToJSON() (string, error) {
	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// Format renders the manifest as "json" or as a human-readable listing.
func (m *Manifest) Format(format string) (string, error) {
	if format == "json" {
		return m.ToJSON()
	}
	var sb strings.Builder
	for i, c := range m.Chunks {
		if i > 0 {
			sb.WriteByte('\n')
		}
		var tags []string
		if c.IsEntry {
			tags = append(tags, "entry")
		}
		if c.IsDynamicEntry {
			tags = append(tags, "dynamic")
		}
		if c.IsFacade {
			tags = append(tags, "facade")
		}
		fmt.Fprintf(&sb, "%s", c.FileName)
		if len(tags) > 0 {
			fmt.Fprintf(&sb, " (%s)", strings.Join(tags, ", "))
		}
		sb.WriteByte('\n')
		for _, id := range c.Modules {
			fmt.Fprintf(&sb, "  module  %s\n", id)
		}
		for _, imp := range c.Imports {
			if len(imp.Bindings) == 0 {
				fmt.Fprintf(&sb, "  import  %q\n", imp.From)
				continue
			}
			parts := make([]string, len(imp.Bindings))
			for j, b := range imp.Bindings {
				parts[j] = bindingString(b.Imported, b.Local)
			}
			fmt.Fprintf(&sb, "  import  { %s } from %q\n", strings.Join(parts, ", "), imp.From)
		}
		for _, exp := range c.Exports {
			if exp.From != "" {
				fmt.Fprintf(&sb, "  export  { %s } from %q\n", bindingString(exp.Local, exp.Exported), exp.From)
				continue
			}
			fmt.Fprintf(&sb, "  export  { %s }\n", bindingString(exp.Local, exp.Exported))
		}
		for _, id := range c.DynamicImports {
			fmt.Fprintf(&sb, "  import() %q\n", id)
		}
	}
	return sb.String(), nil
}

func bindingString(from, to string) string {
	if from == to {
		return from
	}
	return from + " as " + to
}
