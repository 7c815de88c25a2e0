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
	"fmt"
	"path"
	"slices"
	"strings"
	"unicode"

	"bennypowers.dev/fascio/ast"
	"bennypowers.dev/fascio/logger"
	"bennypowers.dev/fascio/pathtrack"
)

// ModuleLike is implemented by internal and external modules.
type ModuleLike interface {
	ModuleID() string
	ExecutionIndex() int
	IsExternal() bool
}

type importDescription struct {
	module ModuleLike
	source string
	// name is the imported name, "*" for namespace imports.
	name  string
	start uint32
}

type exportDescription struct {
	localName string
	shim      bool
}

type reexportDescription struct {
	module    ModuleLike
	source    string
	localName string
	start     uint32
}

// DynamicImport is an import() expression of a module.
type DynamicImport struct {
	Node *ast.EImportCall
	// Specifier is empty when the argument is not a string literal.
	Specifier  string
	Resolution ModuleLike
}

// Module is a resolved internal module and everything the analysis knows
// about it.
type Module struct {
	graph *Graph
	id    string
	name  string

	Source []byte
	AST    *ast.Program

	isEntry           bool
	entryNames        []string
	preserveSignature PreserveSignature
	sideEffects       SideEffects
	execIndex         int
	isExecuted        bool

	scope  *Scope
	scopes map[ast.Node]*Scope

	sources          []string
	resolvedIDs      map[string]*ResolvedID
	dependencies     []ModuleLike
	dynamicImports   []*DynamicImport
	importers        []string
	dynamicImporters []string

	importDescriptions   map[string]*importDescription
	exports              map[string]*exportDescription
	exportNames          []string
	reexportDescriptions map[string]*reexportDescription
	reexportNames        []string
	exportAllSources     []string
	exportAllModules     []ModuleLike

	namespace        *NamespaceVariable
	defaultExport    *ExportDefaultVariable
	syntheticExport  string
	syntheticExports map[string]*SyntheticNamedExportVariable
	exportShim       *ExportShimVariable

	refs      map[*ast.EIdentifier]Variable
	thisRefs  map[*ast.EThis]Variable
	nsMembers map[*ast.EMember]Variable
	parents   map[ast.Node]ast.Node
	returns   map[*ast.Function][]*ast.SReturn

	includedImports          []Variable
	includedImportSet        map[Variable]bool
	includedDynamicImporters []*Module
	sideEffectDeps           map[Variable][]*Module
	deoptimized              map[ast.Node]bool
	objects                  map[ast.Node]*objectState
	branches                 map[ast.Node]*branchCache

	allExportNames        []string
	transitiveReexports   []string
	namespaceReexports    map[string]namespaceReexport
	exportNamesByVariable *ExportNames
	relevantDependencies  []ModuleLike
}

type namespaceReexport struct {
	variable         Variable
	indirectExternal bool
}

func newModule(g *Graph, id string, sideEffects SideEffects) *Module {
	m := &Module{
		graph:                g,
		id:                   id,
		name:                 legalName(id),
		sideEffects:          sideEffects,
		execIndex:            -1,
		scopes:               map[ast.Node]*Scope{},
		resolvedIDs:          map[string]*ResolvedID{},
		importDescriptions:   map[string]*importDescription{},
		exports:              map[string]*exportDescription{},
		reexportDescriptions: map[string]*reexportDescription{},
		syntheticExports:     map[string]*SyntheticNamedExportVariable{},
		refs:                 map[*ast.EIdentifier]Variable{},
		thisRefs:             map[*ast.EThis]Variable{},
		nsMembers:            map[*ast.EMember]Variable{},
		parents:              map[ast.Node]ast.Node{},
		returns:              map[*ast.Function][]*ast.SReturn{},
		includedImportSet:    map[Variable]bool{},
		sideEffectDeps:       map[Variable][]*Module{},
		deoptimized:          map[ast.Node]bool{},
		objects:              map[ast.Node]*objectState{},
		branches:             map[ast.Node]*branchCache{},
		namespaceReexports:   map[string]namespaceReexport{},
	}
	m.scope = newScope(ScopeModule, nil, m)
	m.namespace = newNamespaceVariable(m)
	m.exportShim = &ExportShimVariable{variableBase: variableBase{name: "_missingExportShim"}, module: m}
	if g.opts.SyntheticNamedExports != nil {
		m.syntheticExport = g.opts.SyntheticNamedExports(id)
	}
	return m
}

func (m *Module) ModuleID() string      { return m.id }
func (m *Module) ExecutionIndex() int   { return m.execIndex }
func (m *Module) IsExternal() bool      { return false }
func (m *Module) IsEntry() bool         { return m.isEntry }
func (m *Module) IsExecuted() bool      { return m.isExecuted }
func (m *Module) SideEffects() SideEffects { return m.sideEffects }

// EntryNames returns the names the module was declared under as an entry.
func (m *Module) EntryNames() []string { return m.entryNames }

// PreserveSignature is the signature policy of an entry module.
func (m *Module) PreserveSignature() PreserveSignature { return m.preserveSignature }

// Name is an identifier-safe name derived from the module id.
func (m *Module) Name() string { return m.name }

// Scope returns the module's top-level scope.
func (m *Module) Scope() *Scope { return m.scope }

// Namespace returns the variable standing for the module namespace object.
func (m *Module) Namespace() *NamespaceVariable { return m.namespace }

// Dependencies returns the static dependencies in import order.
func (m *Module) Dependencies() []ModuleLike { return m.dependencies }

// DynamicImports returns the import() expressions of the module.
func (m *Module) DynamicImports() []*DynamicImport { return m.dynamicImports }

// Importers returns the ids of modules that statically import this one.
func (m *Module) Importers() []string { return m.importers }

// DynamicImporters returns the ids of modules that import() this one.
func (m *Module) DynamicImporters() []string { return m.dynamicImporters }

// IncludedImports returns the variables from other modules this module's
// included code references.
func (m *Module) IncludedImports() []Variable { return m.includedImports }

// IncludedDynamicImporters returns the modules whose included code
// dynamically imports this one.
func (m *Module) IncludedDynamicImporters() []*Module { return m.includedDynamicImporters }

// NamespaceMember returns the variable a statically resolved namespace
// member expression such as ns.x refers to.
func (m *Module) NamespaceMember(e *ast.EMember) (Variable, bool) {
	v, ok := m.nsMembers[e]
	return v, ok
}

// Reference returns the variable an identifier node resolved to.
func (m *Module) Reference(id *ast.EIdentifier) (Variable, bool) {
	v, ok := m.refs[id]
	return v, ok
}

// HasSyntheticNamedExports reports whether missing named exports of the
// module resolve to properties of one of its exports.
func (m *Module) HasSyntheticNamedExports() bool { return m.syntheticExport != "" }

// AccessedGlobals returns the sorted names of undeclared globals that the
// module's included code reads.
func (m *Module) AccessedGlobals() []string {
	var names []string
	for id, v := range m.refs {
		if _, ok := v.(*GlobalVariable); ok && id.IsIncluded() && !slices.Contains(names, id.Name) {
			names = append(names, id.Name)
		}
	}
	slices.Sort(names)
	return names
}

// IsIncluded reports whether any part of the module survived tree-shaking.
func (m *Module) IsIncluded() bool {
	return (m.AST != nil && m.AST.IsIncluded()) || m.namespace.included || m.exportShim.included
}

// HasEffects reports whether executing the module's included code has an
// observable effect.
func (m *Module) HasEffects() bool {
	if m.sideEffects == SideEffectsNoTreeshake {
		return true
	}
	if m.AST == nil || !m.AST.IsIncluded() {
		return false
	}
	ctx := newEffectsContext()
	for _, s := range m.AST.Body {
		if m.hasEffects(s, ctx) {
			return true
		}
	}
	return false
}

func (m *Module) hasModuleSideEffects() bool {
	return m.sideEffects != SideEffectsFalse
}

func (m *Module) warn(code logger.Code, start uint32, format string, args ...any) {
	msg := logger.Msg{Kind: logger.Warning, Code: code, ID: m.id, Text: fmt.Sprintf(format, args...)}
	if m.Source != nil {
		msg.Location = logger.LocationAt(m.id, m.Source, start)
	}
	m.graph.opts.Log.AddMsg(msg)
}

func (m *Module) fail(code logger.Code, start uint32, format string, args ...any) {
	err := logger.NewError(code, m.id, format, args...)
	if m.Source != nil {
		err = err.WithLocation(logger.LocationAt(m.id, m.Source, start))
	}
	m.graph.fatal(err)
}

// setSource records the parsed tree and collects the module's import and
// export tables and declarations. It runs on a loader goroutine and only
// touches the module itself.
func (m *Module) setSource(source []byte, program *ast.Program) {
	m.Source = source
	m.AST = program
	addSource := func(s string) {
		if _, ok := m.resolvedIDs[s]; !ok {
			m.resolvedIDs[s] = nil
			m.sources = append(m.sources, s)
		}
	}
	addExport := func(name, local string, start uint32) {
		if _, dup := m.exports[name]; dup {
			m.fail(logger.DuplicateExport, start, "Duplicate export %q", name)
			return
		}
		if _, dup := m.reexportDescriptions[name]; dup {
			m.fail(logger.DuplicateExport, start, "Duplicate export %q", name)
			return
		}
		m.exports[name] = &exportDescription{localName: local}
		m.exportNames = append(m.exportNames, name)
	}
	addReexport := func(name, source, local string, start uint32) {
		if _, dup := m.exports[name]; dup {
			m.fail(logger.DuplicateExport, start, "Duplicate export %q", name)
			return
		}
		if _, dup := m.reexportDescriptions[name]; dup {
			m.fail(logger.DuplicateExport, start, "Duplicate export %q", name)
			return
		}
		m.reexportDescriptions[name] = &reexportDescription{source: source, localName: local, start: start}
		m.reexportNames = append(m.reexportNames, name)
	}

	for _, s := range program.Body {
		switch s := s.(type) {
		case *ast.SImport:
			if s.TypeOnly {
				continue
			}
			addSource(s.Source)
			if s.Default != nil {
				m.importDescriptions[s.Default.Name] = &importDescription{source: s.Source, name: "default", start: s.Start}
			}
			if s.Namespace != nil {
				m.importDescriptions[s.Namespace.Name] = &importDescription{source: s.Source, name: "*", start: s.Start}
			}
			for _, spec := range s.Named {
				m.importDescriptions[spec.Local.Name] = &importDescription{source: s.Source, name: spec.Imported, start: s.Start}
			}
		case *ast.SExportAll:
			addSource(s.Source)
			if s.Alias != "" {
				addReexport(s.Alias, s.Source, "*", s.Start)
			} else {
				m.exportAllSources = append(m.exportAllSources, s.Source)
			}
		case *ast.SExportNamed:
			if s.TypeOnly {
				continue
			}
			if s.HasSource {
				addSource(s.Source)
				for _, spec := range s.Specifiers {
					addReexport(spec.Exported, s.Source, spec.Local, s.Start)
				}
				continue
			}
			if s.Decl != nil {
				for _, id := range declaredNames(s.Decl) {
					addExport(id.Name, id.Name, s.Start)
				}
				continue
			}
			for _, spec := range s.Specifiers {
				addExport(spec.Exported, spec.Local, s.Start)
			}
		case *ast.SExportDefault:
			addExport("default", "default", s.Start)
		}
	}
	ast.Visit(program, func(n ast.Node) bool {
		if call, ok := n.(*ast.EImportCall); ok {
			m.dynamicImports = append(m.dynamicImports, &DynamicImport{Node: call, Specifier: call.SourceText})
		}
		return true
	})
	m.declare()
}

// declaredNames returns the top-level names a declaration statement binds.
func declaredNames(s ast.Stmt) []*ast.EIdentifier {
	switch s := s.(type) {
	case *ast.SVar:
		var out []*ast.EIdentifier
		for _, d := range s.Decls {
			out = append(out, ast.BindingIdentifiers(d.Binding)...)
		}
		return out
	case *ast.SFunction:
		if s.Fn.Name != nil {
			return []*ast.EIdentifier{s.Fn.Name}
		}
	case *ast.SClass:
		if s.Class.Name != nil {
			return []*ast.EIdentifier{s.Class.Name}
		}
	case *ast.SUnknown:
		return s.Declares
	}
	return nil
}

// linkImports attaches the resolved modules to the import and export
// tables. It runs once loading has finished.
func (m *Module) linkImports() {
	resolve := func(source string) ModuleLike {
		return m.graph.moduleForResolved(m.resolvedIDs[source])
	}
	for _, d := range m.importDescriptions {
		d.module = resolve(d.source)
	}
	for _, d := range m.reexportDescriptions {
		d.module = resolve(d.source)
	}
	for _, source := range m.exportAllSources {
		if target := resolve(source); target != nil && !slices.Contains(m.exportAllModules, target) {
			m.exportAllModules = append(m.exportAllModules, target)
		}
	}
	for _, d := range m.importDescriptions {
		if ext, ok := d.module.(*ExternalModule); ok {
			ext.addImporter(d.name, m.id)
		}
	}
}

// exportLookup carries the state of one export resolution.
type exportLookup struct {
	importer          *Module
	isExportAllSearch bool
	searched          map[*Module]map[string]bool
}

func (l exportLookup) copySearched() map[*Module]map[string]bool {
	out := make(map[*Module]map[string]bool, len(l.searched))
	for m, names := range l.searched {
		inner := make(map[string]bool, len(names))
		for n := range names {
			inner[n] = true
		}
		out[m] = inner
	}
	return out
}

// GetVariableForExportName returns the variable a module exports under
// name, following re-exports. It returns nil when nothing is exported under
// that name.
func (m *Module) GetVariableForExportName(name string) Variable {
	v, _ := m.variableForExportName(name, exportLookup{})
	return v
}

func (m *Module) variableForExportName(name string, lookup exportLookup) (Variable, bool) {
	if strings.HasPrefix(name, "*") {
		if name == "*" {
			return m.namespace, false
		}
		if ext := m.graph.externalModule(name[1:]); ext != nil {
			return ext.variableFor("*"), false
		}
		return nil, false
	}

	if r, ok := m.reexportDescriptions[name]; ok {
		if r.module == nil {
			return nil, false
		}
		v, indirect := variableForExportNameRecursive(r.module, r.localName, lookup.importer, false, lookup.searched)
		if v == nil {
			v = m.missingExport(r.module, r.localName, r.start)
		}
		if lookup.importer != nil && v != nil {
			lookup.importer.addSideEffectDependency(v, m)
		}
		return v, indirect
	}

	if e, ok := m.exports[name]; ok {
		if e.shim {
			return m.exportShim, false
		}
		v := m.traceVariable(e.localName, lookup)
		if lookup.importer != nil && v != nil {
			lookup.importer.addSideEffectDependency(v, m)
		}
		return v, false
	}

	if name != "default" {
		found, ok := m.namespaceReexports[name]
		if !ok {
			v, indirect := m.variableFromNamespaceReexports(name, lookup)
			found = namespaceReexport{v, indirect}
			m.namespaceReexports[name] = found
		}
		if found.variable != nil {
			return found.variable, found.indirectExternal
		}
	}

	if m.syntheticExport != "" {
		if v, ok := m.syntheticExports[name]; ok {
			return v, false
		}
		if base := m.syntheticNamespace(); base != nil {
			v := &SyntheticNamedExportVariable{variableBase: variableBase{name: name}, module: m, namespace: base}
			m.syntheticExports[name] = v
			return v, false
		}
	}
	return nil, false
}

func (m *Module) syntheticNamespace() Variable {
	if m.syntheticExport == "default" {
		if m.defaultExport != nil {
			return m.defaultExport
		}
	}
	if e, ok := m.exports[m.syntheticExport]; ok {
		return m.traceVariable(e.localName, exportLookup{})
	}
	if r, ok := m.reexportDescriptions[m.syntheticExport]; ok && r.module != nil {
		v, _ := variableForExportNameRecursive(r.module, r.localName, nil, false, nil)
		return v
	}
	return nil
}

func (m *Module) variableFromNamespaceReexports(name string, lookup exportLookup) (Variable, bool) {
	var synthetic Variable
	var internal []Variable
	var internalModules []string
	var external []Variable
	for _, target := range m.exportAllModules {
		if tm, ok := target.(*Module); ok && tm.syntheticExport == name {
			continue
		}
		v, indirect := variableForExportNameRecursive(target, name, lookup.importer, true, lookup.copySearched())
		if v == nil {
			continue
		}
		switch {
		case target.IsExternal() || indirect:
			if !slices.Contains(external, v) {
				external = append(external, v)
			}
		default:
			if _, ok := v.(*SyntheticNamedExportVariable); ok {
				if synthetic == nil {
					synthetic = v
				}
				continue
			}
			if !slices.Contains(internal, v) {
				internal = append(internal, v)
				internalModules = append(internalModules, target.ModuleID())
			}
		}
	}
	if len(internal) > 0 {
		if len(internal) == 1 {
			return internal[0], false
		}
		m.warn(logger.NamespaceConflict, 0, "Conflicting namespaces: %q re-exports %q from one of the modules %s (will be ignored)",
			m.id, name, strings.Join(internalModules, ", "))
		return nil, false
	}
	if len(external) > 0 {
		return external[0], true
	}
	return synthetic, false
}

func variableForExportNameRecursive(target ModuleLike, name string, importer *Module, isExportAllSearch bool, searched map[*Module]map[string]bool) (Variable, bool) {
	switch t := target.(type) {
	case *Module:
		if searched == nil {
			searched = map[*Module]map[string]bool{}
		}
		names := searched[t]
		if names == nil {
			names = map[string]bool{}
			searched[t] = names
		}
		if names[name] {
			if !isExportAllSearch {
				t.fail(logger.CircularReexport, 0, "%q cannot be exported from %q as it is a reexport that references itself", name, t.id)
			}
			return nil, false
		}
		names[name] = true
		return t.variableForExportName(name, exportLookup{importer: importer, isExportAllSearch: isExportAllSearch, searched: searched})
	case *ExternalModule:
		return t.variableFor(name), false
	}
	return nil, false
}

// traceVariable resolves a name used at the top level of the module: a
// local declaration, or an import followed to its exporter.
func (m *Module) traceVariable(name string, lookup exportLookup) Variable {
	if v, ok := m.scope.variables[name]; ok {
		return v
	}
	d, ok := m.importDescriptions[name]
	if !ok || d.module == nil {
		return nil
	}
	if d.name == "*" {
		switch t := d.module.(type) {
		case *Module:
			return t.namespace
		case *ExternalModule:
			return t.variableFor("*")
		}
	}
	importer := lookup.importer
	if importer == nil {
		importer = m
	}
	v, _ := variableForExportNameRecursive(d.module, d.name, importer, lookup.isExportAllSearch, lookup.searched)
	if v == nil {
		return m.missingExport(d.module, d.name, d.start)
	}
	return v
}

// missingExport warns about a name the exporter does not provide and binds
// it to the exporter's undefined shim.
func (m *Module) missingExport(exporter ModuleLike, name string, start uint32) Variable {
	target, ok := exporter.(*Module)
	if !ok {
		return nil
	}
	m.warn(logger.MissingExport, start, "%q is not exported by %q, imported by %q", name, target.id, m.id)
	if _, exists := target.exports[name]; !exists {
		target.exports[name] = &exportDescription{localName: name, shim: true}
		target.exportNames = append(target.exportNames, name)
	}
	return target.exportShim
}

func (m *Module) addSideEffectDependency(v Variable, via *Module) {
	if via == m || slices.Contains(m.sideEffectDeps[v], via) {
		return
	}
	m.sideEffectDeps[v] = append(m.sideEffectDeps[v], via)
}

// Exports returns the names the module declares locally, in declaration
// order.
func (m *Module) Exports() []string {
	return m.exportNames
}

// Reexports returns the names the module re-exports, including names
// reached through export * chains. Externals reached through export * are
// listed as "*" followed by their id.
func (m *Module) Reexports() []string {
	if m.transitiveReexports != nil {
		return m.transitiveReexports
	}
	m.transitiveReexports = []string{}
	seen := map[string]bool{}
	var out []string
	add := func(name string) {
		if !seen[name] {
			seen[name] = true
			out = append(out, name)
		}
	}
	for _, name := range m.reexportNames {
		add(name)
	}
	for _, target := range m.exportAllModules {
		switch t := target.(type) {
		case *ExternalModule:
			add("*" + t.id)
		case *Module:
			for _, name := range append(slices.Clone(t.Reexports()), t.Exports()...) {
				if name != "default" {
					add(name)
				}
			}
		}
	}
	m.transitiveReexports = out
	return out
}

// AllExportNames returns every name an importer can request from the
// module.
func (m *Module) AllExportNames() []string {
	if m.allExportNames != nil {
		return m.allExportNames
	}
	m.allExportNames = []string{}
	seen := map[string]bool{}
	var out []string
	add := func(name string) {
		if !seen[name] && name != m.syntheticExport {
			seen[name] = true
			out = append(out, name)
		}
	}
	for _, name := range m.exportNames {
		add(name)
	}
	for _, name := range m.reexportNames {
		add(name)
	}
	for _, target := range m.exportAllModules {
		switch t := target.(type) {
		case *ExternalModule:
			add("*" + t.id)
		case *Module:
			for _, name := range t.AllExportNames() {
				if name != "default" {
					add(name)
				}
			}
		}
	}
	m.allExportNames = out
	return out
}

// memberNames are the names exposed on the namespace object.
func (m *Module) memberNames() []string {
	var out []string
	for _, name := range append(slices.Clone(m.Exports()), m.Reexports()...) {
		if !strings.HasPrefix(name, "*") && name != m.syntheticExport && !slices.Contains(out, name) {
			out = append(out, name)
		}
	}
	return out
}

// ExportNames maps the variables a module exposes to their export names,
// in first-export order.
type ExportNames struct {
	Variables []Variable
	names     map[Variable][]string
}

// Names returns the export names of v.
func (e *ExportNames) Names(v Variable) []string {
	return e.names[v]
}

// Has reports whether v is exported.
func (e *ExportNames) Has(v Variable) bool {
	_, ok := e.names[v]
	return ok
}

// Len returns the number of exported variables.
func (e *ExportNames) Len() int {
	return len(e.Variables)
}

// GetExportNamesByVariable groups the included exports of the module by the
// variable that backs them. Default exports are traced to their original
// binding.
func (m *Module) GetExportNamesByVariable() *ExportNames {
	if m.exportNamesByVariable != nil {
		return m.exportNamesByVariable
	}
	out := &ExportNames{names: map[Variable][]string{}}
	for _, name := range m.AllExportNames() {
		v := m.GetVariableForExportName(name)
		if ed, ok := v.(*ExportDefaultVariable); ok {
			v = ed.OriginalVariable()
		}
		if v == nil {
			continue
		}
		if _, external := v.(*ExternalVariable); !external && !v.IsIncluded() {
			continue
		}
		if _, ok := out.names[v]; !ok {
			out.Variables = append(out.Variables, v)
		}
		out.names[v] = append(out.names[v], name)
	}
	m.exportNamesByVariable = out
	return out
}

// IncludeAllExports includes every export of the module. Namespace members
// of a synthetic namespace export are only included on request.
func (m *Module) IncludeAllExports(includeNamespaceMembers bool) {
	if !m.isExecuted {
		m.graph.markModuleAndImpureDependenciesAsExecuted(m)
		m.graph.needsTreeshakingPass = true
	}
	for _, name := range m.Exports() {
		if !includeNamespaceMembers && name == m.syntheticExport {
			continue
		}
		v := m.GetVariableForExportName(name)
		if v == nil {
			continue
		}
		v.DeoptimizePath(pathtrack.UnknownPath)
		if !v.IsIncluded() {
			m.includeVariable(v)
		}
	}
	for _, name := range m.Reexports() {
		v := m.GetVariableForExportName(name)
		if v == nil {
			continue
		}
		v.DeoptimizePath(pathtrack.UnknownPath)
		if !v.IsIncluded() {
			m.includeVariable(v)
		}
		if ext, ok := v.(*ExternalVariable); ok {
			ext.module.reexported = true
		}
	}
}

// includeVariable includes v and executes the modules needed to
// initialize it.
func (m *Module) includeVariable(v Variable) {
	if v.IsIncluded() {
		return
	}
	v.include()
	m.graph.needsTreeshakingPass = true
	owner, ok := v.Owner().(*Module)
	if !ok {
		return
	}
	if !owner.isExecuted {
		m.graph.markModuleAndImpureDependenciesAsExecuted(owner)
	}
	if owner != m {
		for _, via := range m.sideEffectDeps[v] {
			if !via.isExecuted && via.hasModuleSideEffects() {
				m.graph.markModuleAndImpureDependenciesAsExecuted(via)
			}
		}
	}
}

// includeVariableInModule includes v and records it as an import when it
// is owned by another module.
func (m *Module) includeVariableInModule(v Variable) {
	m.includeVariable(v)
	if owner := v.Owner(); owner != nil && owner != ModuleLike(m) && !m.includedImportSet[v] {
		m.includedImportSet[v] = true
		m.includedImports = append(m.includedImports, v)
	}
}

// includeDeclaration includes a declaration site and flags its ancestors so
// the next pass descends into them.
func (m *Module) includeDeclaration(decl ast.Node) {
	decl.SetIncluded()
	for n := m.parents[decl]; n != nil; n = m.parents[n] {
		if n.IsIncluded() {
			break
		}
		n.SetIncluded()
	}
	m.graph.needsTreeshakingPass = true
}

func (m *Module) includeDynamicImport(d *DynamicImport) {
	target, ok := d.Resolution.(*Module)
	if !ok {
		return
	}
	if !slices.Contains(target.includedDynamicImporters, m) {
		target.includedDynamicImporters = append(target.includedDynamicImporters, m)
	}
	target.IncludeAllExports(true)
}

// DependenciesToBeIncluded returns the dependencies that must be loaded
// before this module in the output: the owners of used imports plus
// dependencies that still have effects.
func (m *Module) DependenciesToBeIncluded() []ModuleLike {
	if m.relevantDependencies != nil {
		return m.relevantDependencies
	}
	var relevant []ModuleLike
	var necessary []ModuleLike
	var alwaysChecked []ModuleLike
	addTo := func(list *[]ModuleLike, dep ModuleLike) {
		if dep != nil && dep != ModuleLike(m) && !slices.Contains(*list, dep) {
			*list = append(*list, dep)
		}
	}

	variables := slices.Clone(m.includedImports)
	if m.isEntry || len(m.includedDynamicImporters) > 0 || m.namespace.included {
		for _, name := range append(slices.Clone(m.Reexports()), m.Exports()...) {
			if v := m.GetVariableForExportName(name); v != nil && v.IsIncluded() && !slices.Contains(variables, v) {
				variables = append(variables, v)
			}
		}
	}
	for _, v := range variables {
		for _, via := range m.sideEffectDeps[v] {
			addTo(&alwaysChecked, via)
		}
		switch t := v.(type) {
		case *SyntheticNamedExportVariable:
			v = t.BaseVariable()
		case *ExportDefaultVariable:
			v = t.OriginalVariable()
		}
		addTo(&necessary, v.Owner())
	}

	if !m.graph.opts.Treeshake || m.sideEffects == SideEffectsNoTreeshake {
		for _, dep := range m.dependencies {
			addTo(&relevant, dep)
		}
	} else {
		handled := map[ModuleLike]bool{}
		var walk func([]ModuleLike)
		walk = func(deps []ModuleLike) {
			for _, dep := range deps {
				if handled[dep] {
					continue
				}
				handled[dep] = true
				if slices.Contains(necessary, dep) {
					addTo(&relevant, dep)
					continue
				}
				var sideEffects bool
				switch d := dep.(type) {
				case *ExternalModule:
					sideEffects = d.sideEffects != SideEffectsFalse
				case *Module:
					sideEffects = d.hasModuleSideEffects()
				}
				if !sideEffects && !slices.Contains(alwaysChecked, dep) {
					continue
				}
				if d, ok := dep.(*Module); !ok || d.HasEffects() {
					addTo(&relevant, dep)
					continue
				}
				walk(dep.(*Module).dependencies)
			}
		}
		walk(m.dependencies)
		walk(alwaysChecked)
	}
	for _, dep := range necessary {
		addTo(&relevant, dep)
	}
	if relevant == nil {
		relevant = []ModuleLike{}
	}
	m.relevantDependencies = relevant
	return relevant
}

// legalName derives an identifier from a module id.
func legalName(id string) string {
	base := path.Base(id)
	if i := strings.IndexByte(base, '.'); i > 0 {
		base = base[:i]
	}
	var sb strings.Builder
	for i, r := range base {
		switch {
		case r == '_' || r == '$' || unicode.IsLetter(r):
			sb.WriteRune(r)
		case unicode.IsDigit(r):
			if i == 0 {
				sb.WriteByte('_')
			}
			sb.WriteRune(r)
		default:
			sb.WriteByte('_')
		}
	}
	if sb.Len() == 0 {
		return "module"
	}
	return sb.String()
}
