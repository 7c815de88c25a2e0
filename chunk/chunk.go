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
// Package chunk partitions an analyzed module graph into output chunks and
// works out what each chunk imports and exports.
package chunk

import (
	"path"
	"slices"
	"strings"

	"bennypowers.dev/fascio/graph"
)

// Dependency is a chunk or an external module that another chunk loads.
// Exactly one field is set.
type Dependency struct {
	Chunk    *Chunk
	External *graph.ExternalModule
}

// ID returns the file name of a chunk dependency or the id of an external.
func (d Dependency) ID() string {
	if d.Chunk != nil {
		return d.Chunk.fileName
	}
	return d.External.ModuleID()
}

// Chunk is one output file: an ordered group of modules, or a facade that
// only re-exports another chunk.
type Chunk struct {
	bundle  *Bundle
	modules []*graph.Module
	alias   string

	name        string
	fileName    string
	dynamicName string

	entryModules        []*graph.Module
	dynamicEntryModules []*graph.Module
	facadeModule        *graph.Module
	strictFacade        bool
	isEmpty             bool

	dependencies        *orderedSet[Dependency]
	dynamicDependencies *orderedSet[Dependency]
	imports             *orderedSet[graph.Variable]
	exports             *orderedSet[graph.Variable]

	includedNamespaces        map[*graph.Module]bool
	includedReexportsByModule map[*graph.Module][]graph.Variable
	reexportModules           []*graph.Module

	exportsByName         map[string]graph.Variable
	exportNamesByVariable map[graph.Variable][]string
	exportMode            ExportMode
	importNames           map[graph.Variable]string
}

func newChunk(b *Bundle, modules []*graph.Module, alias string) *Chunk {
	c := &Chunk{
		bundle:                    b,
		modules:                   modules,
		alias:                     alias,
		isEmpty:                   true,
		dependencies:              newOrderedSet[Dependency](),
		dynamicDependencies:       newOrderedSet[Dependency](),
		imports:                   newOrderedSet[graph.Variable](),
		exports:                   newOrderedSet[graph.Variable](),
		includedNamespaces:        map[*graph.Module]bool{},
		includedReexportsByModule: map[*graph.Module][]graph.Variable{},
		exportsByName:             map[string]graph.Variable{},
		exportNamesByVariable:     map[graph.Variable][]string{},
		exportMode:                ExportsNamed,
		importNames:               map[graph.Variable]string{},
	}
	inChunk := map[*graph.Module]bool{}
	for _, m := range modules {
		inChunk[m] = true
	}
	for _, m := range modules {
		if c.isEmpty && m.IsIncluded() {
			c.isEmpty = false
		}
		if m.IsEntry() {
			c.entryModules = append(c.entryModules, m)
		}
		for _, importer := range m.IncludedDynamicImporters() {
			if inChunk[importer] || slices.Contains(c.dynamicEntryModules, m) {
				continue
			}
			c.dynamicEntryModules = append(c.dynamicEntryModules, m)
			if m.HasSyntheticNamedExports() {
				c.includedNamespaces[m] = true
				c.exports.add(m.Namespace())
			}
		}
	}
	return c
}

// Modules returns the modules of the chunk in execution order.
func (c *Chunk) Modules() []*graph.Module { return c.modules }

// Name is the chunk name before uniquing.
func (c *Chunk) Name() string { return c.name }

// FileName is the unique output file name.
func (c *Chunk) FileName() string { return c.fileName }

// Alias is the manual chunk alias, if any.
func (c *Chunk) Alias() string { return c.alias }

// FacadeModule is the module whose signature the chunk reproduces.
func (c *Chunk) FacadeModule() *graph.Module { return c.facadeModule }

// IsFacade reports whether the chunk has no modules of its own and only
// re-exports another chunk.
func (c *Chunk) IsFacade() bool { return len(c.modules) == 0 }

// IsEntry reports whether the chunk stands for a user-declared entry.
func (c *Chunk) IsEntry() bool { return c.facadeModule != nil && c.facadeModule.IsEntry() }

// IsDynamicEntry reports whether the chunk is loaded by import().
func (c *Chunk) IsDynamicEntry() bool { return len(c.dynamicEntryModules) > 0 }

// IsEmpty reports whether no module of the chunk kept any code.
func (c *Chunk) IsEmpty() bool { return c.isEmpty }

// ExportMode is the export shape of an entry chunk.
func (c *Chunk) ExportMode() ExportMode { return c.exportMode }

// Dependencies returns the chunks and externals the chunk imports
// statically, in load order.
func (c *Chunk) Dependencies() []Dependency { return c.dependencies.items }

// DynamicDependencies returns the chunks and externals the chunk loads with
// import().
func (c *Chunk) DynamicDependencies() []Dependency { return c.dynamicDependencies.items }

// ExportNames returns the sorted export names of the chunk.
func (c *Chunk) ExportNames() []string {
	names := make([]string, 0, len(c.exportsByName))
	for name := range c.exportsByName {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// VariableForExport returns the variable exported under name.
func (c *Chunk) VariableForExport(name string) (graph.Variable, bool) {
	v, ok := c.exportsByName[name]
	return v, ok
}

// Imports returns the variables the chunk imports from other chunks and
// externals.
func (c *Chunk) Imports() []graph.Variable { return c.imports.items }

func (c *Chunk) chunkOf(m *graph.Module) *Chunk {
	return c.bundle.chunkByModule[m]
}

func (c *Chunk) dependencyFor(dep graph.ModuleLike) (Dependency, bool) {
	switch d := dep.(type) {
	case *graph.ExternalModule:
		return Dependency{External: d}, true
	case *graph.Module:
		if target := c.chunkOf(d); target != nil {
			return Dependency{Chunk: target}, true
		}
	}
	return Dependency{}, false
}

// link computes the static and dynamic dependencies of the chunk and the
// variables crossing its boundary.
func (c *Chunk) link() {
	c.addStaticDependencies()
	for _, m := range c.modules {
		c.setUpImportsAndExportsForModule(m)
	}
}

// linkDynamicImports records the chunks loaded by included import()
// expressions. A module with a facade is loaded through the facade. It runs
// once facades exist.
func (c *Chunk) linkDynamicImports() {
	for _, m := range c.modules {
		for _, d := range m.DynamicImports() {
			if d.Resolution == nil || !d.Node.IsIncluded() {
				continue
			}
			switch target := d.Resolution.(type) {
			case *graph.ExternalModule:
				c.dynamicDependencies.add(Dependency{External: target})
			case *graph.Module:
				if c.chunkOf(target) == c {
					continue
				}
				if facade := c.bundle.facadeChunkByModule[target]; facade != nil {
					c.dynamicDependencies.add(Dependency{Chunk: facade})
				} else if own := c.chunkOf(target); own != nil {
					c.dynamicDependencies.add(Dependency{Chunk: own})
				}
			}
		}
	}
}

// addStaticDependencies collects the dependencies of the chunk so that the
// dependencies of later modules are loaded after those of earlier ones.
func (c *Chunk) addStaticDependencies() {
	var blocks [][]Dependency
	handled := map[*graph.Module]bool{}
	var walk func(m *graph.Module, block *[]Dependency)
	walk = func(m *graph.Module, block *[]Dependency) {
		for _, dep := range m.DependenciesToBeIncluded() {
			d, ok := c.dependencyFor(dep)
			if !ok {
				continue
			}
			if d.Chunk != c {
				*block = append(*block, d)
				continue
			}
			target := dep.(*graph.Module)
			if !handled[target] {
				handled[target] = true
				walk(target, block)
			}
		}
	}
	for i := len(c.modules) - 1; i >= 0; i-- {
		m := c.modules[i]
		if handled[m] {
			continue
		}
		var block []Dependency
		walk(m, &block)
		blocks = append([][]Dependency{block}, blocks...)
	}
	for _, block := range blocks {
		for _, d := range block {
			c.dependencies.add(d)
		}
	}
}

// importTarget follows aliases to the variable that is actually declared.
func importTarget(v graph.Variable) graph.Variable {
	switch t := v.(type) {
	case *graph.ExportDefaultVariable:
		return t.OriginalVariable()
	case *graph.SyntheticNamedExportVariable:
		return t.BaseVariable()
	}
	return v
}

func (c *Chunk) setUpImportsAndExportsForModule(m *graph.Module) {
	imports := slices.Clone(m.IncludedImports())
	if c.includedNamespaces[m] {
		members := m.Namespace().MemberVariables()
		names := make([]string, 0, len(members))
		for name := range members {
			names = append(names, name)
		}
		slices.Sort(names)
		for _, name := range names {
			if v := members[name]; v.IsIncluded() && !slices.Contains(imports, v) {
				imports = append(imports, v)
			}
		}
	}
	for _, v := range imports {
		v = importTarget(v)
		switch owner := v.Owner().(type) {
		case *graph.ExternalModule:
			c.imports.add(v)
		case *graph.Module:
			if target := c.chunkOf(owner); target != nil && target != c {
				c.imports.add(v)
				target.exports.add(v)
			}
		}
	}

	if c.includedNamespaces[m] ||
		(m.IsEntry() && m.PreserveSignature() != graph.PreserveFalse) ||
		slices.ContainsFunc(m.IncludedDynamicImporters(), func(importer *graph.Module) bool { return c.chunkOf(importer) != c }) {
		c.ensureReexportsAreAvailable(m)
	}
	for _, d := range m.DynamicImports() {
		target, ok := d.Resolution.(*graph.Module)
		if ok && d.Node.IsIncluded() && c.chunkOf(target) == c && !c.includedNamespaces[target] {
			c.includedNamespaces[target] = true
			c.ensureReexportsAreAvailable(target)
		}
	}
}

// ensureReexportsAreAvailable makes the chunks declaring the exports of m
// export them, so this chunk can re-export them under m's names.
func (c *Chunk) ensureReexportsAreAvailable(m *graph.Module) {
	var reexports []graph.Variable
	for _, exported := range m.GetExportNamesByVariable().Variables {
		synthetic, isSynthetic := exported.(*graph.SyntheticNamedExportVariable)
		imported := exported
		if isSynthetic {
			imported = synthetic.BaseVariable()
		}
		owner, ok := imported.Owner().(*graph.Module)
		if !ok {
			continue
		}
		if target := c.chunkOf(owner); target != nil && target != c {
			target.exports.add(imported)
			reexports = append(reexports, imported)
			if isSynthetic {
				c.imports.add(imported)
			}
		}
	}
	if len(reexports) > 0 {
		if _, ok := c.includedReexportsByModule[m]; !ok {
			c.reexportModules = append(c.reexportModules, m)
		}
		c.includedReexportsByModule[m] = reexports
	}
}

// facadeName is a name a facade must be emitted under. Empty means the
// name derived from the module.
type facadeName struct {
	name string
}

// generateFacades picks the module the chunk stands for and creates facade
// chunks for entries whose signature the chunk cannot reproduce.
func (c *Chunk) generateFacades() []*Chunk {
	var facades []*Chunk
	exposed := newOrderedSet[graph.Variable]()
	for _, m := range c.dynamicEntryModules {
		exposed.add(m.Namespace())
	}
	for _, m := range c.entryModules {
		if m.PreserveSignature() == graph.PreserveFalse {
			continue
		}
		for _, v := range m.GetExportNamesByVariable().Variables {
			if owner, ok := v.Owner().(*graph.Module); ok && c.chunkOf(owner) == c {
				exposed.add(v)
			}
		}
	}

	for _, m := range c.entryModules {
		var required []facadeName
		for _, name := range m.EntryNames() {
			if !slices.Contains(required, facadeName{name}) {
				required = append(required, facadeName{name})
			}
		}
		if len(required) == 0 {
			required = append(required, facadeName{})
		}
		if c.facadeModule == nil {
			needsStrict := m.PreserveSignature() == graph.PreserveStrict ||
				(m.PreserveSignature() == graph.PreserveExportsOnly && m.GetExportNamesByVariable().Len() > 0)
			if !needsStrict || c.canModuleBeFacade(m, exposed) {
				c.facadeModule = m
				c.bundle.facadeChunkByModule[m] = c
				if m.PreserveSignature() != graph.PreserveFalse {
					c.strictFacade = needsStrict
				}
				c.assignFacadeName(required[0], m)
				required = required[1:]
			}
		}
		for _, name := range required {
			facades = append(facades, c.bundle.generateFacade(m, name))
		}
	}

	for _, m := range c.dynamicEntryModules {
		if m.HasSyntheticNamedExports() {
			continue
		}
		switch {
		case c.facadeModule == nil && c.canModuleBeFacade(m, exposed):
			c.facadeModule = m
			c.bundle.facadeChunkByModule[m] = c
			c.strictFacade = true
			c.dynamicName = aliasName(m.ModuleID())
		case c.facadeModule == m && !c.strictFacade && c.canModuleBeFacade(m, exposed):
			c.strictFacade = true
		default:
			if facade := c.bundle.facadeChunkByModule[m]; facade == nil || !facade.strictFacade {
				c.includedNamespaces[m] = true
				c.exports.add(m.Namespace())
			}
		}
	}
	c.addNecessaryImportsForFacades()
	return facades
}

// canModuleBeFacade reports whether m's export signature covers everything
// the chunk must expose.
func (c *Chunk) canModuleBeFacade(m *graph.Module, exposed *orderedSet[graph.Variable]) bool {
	names := m.GetExportNamesByVariable()
	for _, v := range c.exports.items {
		if !names.Has(v) {
			return false
		}
	}
	for _, v := range exposed.items {
		if v.Owner() == graph.ModuleLike(m) || names.Has(v) {
			continue
		}
		if s, ok := v.(*graph.SyntheticNamedExportVariable); ok && names.Has(s.BaseVariable()) {
			continue
		}
		return false
	}
	return true
}

func (c *Chunk) addNecessaryImportsForFacades() {
	for _, m := range c.reexportModules {
		if c.includedNamespaces[m] {
			for _, v := range c.includedReexportsByModule[m] {
				c.imports.add(v)
			}
		}
	}
}

func (c *Chunk) assignFacadeName(f facadeName, m *graph.Module) {
	if f.name != "" {
		c.name = f.name
		return
	}
	c.name = chunkNameFromModule(m)
}

// generateFacade creates a chunk with no modules that re-exports the
// signature of m from the chunk holding its code.
func (b *Bundle) generateFacade(m *graph.Module, name facadeName) *Chunk {
	c := newChunk(b, nil, "")
	c.assignFacadeName(name, m)
	if _, ok := b.facadeChunkByModule[m]; !ok {
		b.facadeChunkByModule[m] = c
	}
	for _, dep := range m.DependenciesToBeIncluded() {
		if d, ok := c.dependencyFor(dep); ok {
			c.dependencies.add(d)
		}
	}
	own := Dependency{Chunk: b.chunkByModule[m]}
	if own.Chunk != nil && !c.dependencies.has(own) && m.SideEffects() != graph.SideEffectsFalse && m.HasEffects() {
		c.dependencies.add(own)
	}
	c.ensureReexportsAreAvailable(m)
	c.facadeModule = m
	c.strictFacade = true
	return c
}

// fallbackName names a chunk that no entry or alias named.
func (c *Chunk) fallbackName() string {
	switch {
	case c.alias != "":
		return c.alias
	case c.dynamicName != "":
		return c.dynamicName
	case len(c.modules) > 0:
		return aliasName(c.modules[len(c.modules)-1].ModuleID())
	}
	return "chunk"
}

func chunkNameFromModule(m *graph.Module) string {
	if names := m.EntryNames(); len(names) > 0 {
		return names[0]
	}
	return aliasName(m.ModuleID())
}

// aliasName is the base name of an id without its extension.
func aliasName(id string) string {
	base := path.Base(id)
	if ext := path.Ext(base); ext != "" {
		base = strings.TrimSuffix(base, ext)
	}
	return base
}
