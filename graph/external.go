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
	"slices"
	"strings"

	"bennypowers.dev/fascio/logger"
	"bennypowers.dev/fascio/pathtrack"
)

// ExternalModule is an import target left to the runtime. Nothing is known
// about its bindings.
type ExternalModule struct {
	graph       *Graph
	id          string
	name        string
	execIndex   int
	sideEffects SideEffects

	declarations map[string]*ExternalVariable
	names        []string
	importersOf  map[string][]string

	importers        []string
	dynamicImporters []string

	used       bool
	reexported bool
}

func newExternalModule(g *Graph, id string, sideEffects SideEffects) *ExternalModule {
	return &ExternalModule{
		graph:        g,
		id:           id,
		name:         legalName(id),
		execIndex:    -1,
		sideEffects:  sideEffects,
		declarations: map[string]*ExternalVariable{},
		importersOf:  map[string][]string{},
	}
}

func (e *ExternalModule) ModuleID() string    { return e.id }
func (e *ExternalModule) ExecutionIndex() int { return e.execIndex }
func (e *ExternalModule) IsExternal() bool    { return true }

// Name is an identifier-safe name derived from the id.
func (e *ExternalModule) Name() string { return e.name }

// Importers returns the ids of modules that statically import this one.
func (e *ExternalModule) Importers() []string { return e.importers }

// DynamicImporters returns the ids of modules that import() this one.
func (e *ExternalModule) DynamicImporters() []string { return e.dynamicImporters }

// IsUsed reports whether any binding of the module was included.
func (e *ExternalModule) IsUsed() bool { return e.used }

// IsReexported reports whether an included export * or namespace exposes
// the module.
func (e *ExternalModule) IsReexported() bool { return e.reexported }

// HasSideEffects reports whether importing the module must be kept even
// when none of its bindings are used.
func (e *ExternalModule) HasSideEffects() bool { return e.sideEffects != SideEffectsFalse }

// variableFor returns the binding imported under name, creating it on
// first use. "*" is the namespace.
func (e *ExternalModule) variableFor(name string) *ExternalVariable {
	if v, ok := e.declarations[name]; ok {
		return v
	}
	v := &ExternalVariable{variableBase: variableBase{name: name}, module: e, isNamespace: name == "*"}
	if name == "*" || name == "default" {
		v.name = e.name
	}
	v.imported = name
	e.declarations[name] = v
	e.names = append(e.names, name)
	return v
}

func (e *ExternalModule) addImporter(name, importer string) {
	if !slices.Contains(e.importersOf[name], importer) {
		e.importersOf[name] = append(e.importersOf[name], importer)
	}
}

func (e *ExternalModule) warnUnusedImports() {
	if e.reexported {
		return
	}
	var unused []string
	var importers []string
	for _, name := range e.names {
		if name == "*" {
			continue
		}
		v := e.declarations[name]
		if v.included || v.referenced {
			continue
		}
		unused = append(unused, name)
		for _, importer := range e.importersOf[name] {
			if !slices.Contains(importers, importer) {
				importers = append(importers, importer)
			}
		}
	}
	if len(unused) == 0 {
		return
	}
	slices.Sort(importers)
	e.graph.opts.Log.AddMsg(logger.Msg{
		Kind: logger.Warning,
		Code: logger.UnusedExternalImport,
		ID:   e.id,
		Text: quoteList(unused) + " imported from external module " + `"` + e.id + `"` + " but never used in " + quoteList(importers) + ".",
	})
}

func quoteList(items []string) string {
	quoted := make([]string, len(items))
	for i, item := range items {
		quoted[i] = `"` + item + `"`
	}
	if len(quoted) <= 1 {
		return strings.Join(quoted, "")
	}
	return strings.Join(quoted[:len(quoted)-1], ", ") + " and " + quoted[len(quoted)-1]
}

// ExternalVariable is a binding imported from an external module.
type ExternalVariable struct {
	variableBase
	module      *ExternalModule
	imported    string
	isNamespace bool
	referenced  bool
}

func (v *ExternalVariable) Owner() ModuleLike { return v.module }

// Module returns the external module providing the binding.
func (v *ExternalVariable) Module() *ExternalModule { return v.module }

// ImportedName is the name requested from the external module, "*" for the
// namespace.
func (v *ExternalVariable) ImportedName() string { return v.imported }

// IsNamespace reports whether the variable is the module namespace.
func (v *ExternalVariable) IsNamespace() bool { return v.isNamespace }

func (v *ExternalVariable) include() {
	v.included = true
	v.module.used = true
}

func (v *ExternalVariable) DeoptimizePath(pathtrack.ObjectPath) {}

func (v *ExternalVariable) LiteralValueAtPath(pathtrack.ObjectPath, *pathtrack.PathTracker, Deoptimizable) LiteralValue {
	return Unknown
}

func (v *ExternalVariable) ReturnExpressionAtPath(pathtrack.ObjectPath, *pathtrack.PathTracker, Deoptimizable) Entity {
	return UnknownEntity
}

func (v *ExternalVariable) HasEffectsOnInteraction(path pathtrack.ObjectPath, in *Interaction, _ *EffectsContext) bool {
	depth := 0
	if v.isNamespace {
		depth = 1
	}
	return in.Kind != Accessed || len(path) > depth
}
