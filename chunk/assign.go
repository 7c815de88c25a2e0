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
	"bennypowers.dev/fascio/graph"
)

// definition is a group of modules that become one chunk. Alias is set for
// manual chunks.
type definition struct {
	alias   string
	modules []*graph.Module
}

type moduleSets map[*graph.Module]*orderedSet[*graph.Module]

func (s moduleSets) get(m *graph.Module) *orderedSet[*graph.Module] {
	set, ok := s[m]
	if !ok {
		set = newOrderedSet[*graph.Module]()
		s[m] = set
	}
	return set
}

// assignChunks partitions the modules reachable from the entries. Manual
// chunks claim their modules and static dependencies first. Every other
// module is grouped with the modules reached by exactly the same entries,
// where a dynamic entry does not claim modules already loaded by every
// entry that can import it.
func assignChunks(entries []*graph.Module, manualAliasByEntry []manualEntry) []definition {
	var defs []definition
	inManual := map[*graph.Module]bool{}
	for _, e := range manualAliasByEntry {
		inManual[e.module] = true
	}
	var aliases []string
	byAlias := map[string][]*graph.Module{}
	for _, e := range manualAliasByEntry {
		if _, ok := byAlias[e.alias]; !ok {
			aliases = append(aliases, e.alias)
		}
		byAlias[e.alias] = addStaticDependenciesToManualChunk(e.module, byAlias[e.alias], inManual)
	}
	for _, alias := range aliases {
		defs = append(defs, definition{alias: alias, modules: byAlias[alias]})
	}

	dependentEntries, dynamicEntries := analyzeModuleGraph(entries)
	dynamicallyDependent := dynamicDependentEntries(dependentEntries, dynamicEntries)
	static := newOrderedSet(entries...)

	// containedOrDynamicallyDependent reports whether every entry in
	// entryPoints already loads the module, directly or through a dynamic
	// import chain that starts in containedIn.
	containedOrDynamicallyDependent := func(entryPoints, containedIn *orderedSet[*graph.Module]) bool {
		check := newOrderedSet(entryPoints.items...)
		for i := 0; i < len(check.items); i++ {
			entry := check.items[i]
			if containedIn.has(entry) {
				continue
			}
			if static.has(entry) {
				return false
			}
			if dependents, ok := dynamicallyDependent[entry]; ok {
				for _, dependent := range dependents.items {
					check.add(dependent)
				}
			}
		}
		return true
	}

	assigned := moduleSets{}
	var assignedOrder []*graph.Module
	assign := func(entry *graph.Module, dynamicDependents *orderedSet[*graph.Module]) {
		toHandle := newOrderedSet(entry)
		for i := 0; i < len(toHandle.items); i++ {
			m := toHandle.items[i]
			if _, ok := assigned[m]; !ok {
				assignedOrder = append(assignedOrder, m)
			}
			set := assigned.get(m)
			if dynamicDependents != nil && containedOrDynamicallyDependent(dynamicDependents, dependentEntries.get(m)) {
				continue
			}
			set.add(entry)
			for _, dep := range m.DependenciesToBeIncluded() {
				if d, ok := dep.(*graph.Module); ok && !inManual[d] {
					toHandle.add(d)
				}
			}
		}
	}
	for _, entry := range entries {
		if !inManual[entry] {
			assign(entry, nil)
		}
	}
	for _, entry := range dynamicEntries.items {
		if !inManual[entry] {
			assign(entry, dynamicallyDependent[entry])
		}
	}

	all := append(append([]*graph.Module{}, entries...), dynamicEntries.items...)
	return append(defs, createChunks(all, assigned, assignedOrder)...)
}

type manualEntry struct {
	module *graph.Module
	alias  string
}

func addStaticDependenciesToManualChunk(entry *graph.Module, modules []*graph.Module, inManual map[*graph.Module]bool) []*graph.Module {
	toHandle := newOrderedSet(entry)
	for i := 0; i < len(toHandle.items); i++ {
		m := toHandle.items[i]
		inManual[m] = true
		modules = append(modules, m)
		for _, dep := range m.Dependencies() {
			if d, ok := dep.(*graph.Module); ok && !inManual[d] {
				toHandle.add(d)
			}
		}
	}
	return modules
}

// analyzeModuleGraph computes, for every module reachable through included
// dependencies, the entries that reach it. Modules imported dynamically by
// included code become entries of their own.
func analyzeModuleGraph(entries []*graph.Module) (moduleSets, *orderedSet[*graph.Module]) {
	dependentEntries := moduleSets{}
	dynamicEntries := newOrderedSet[*graph.Module]()
	toHandle := newOrderedSet(entries...)
	for i := 0; i < len(toHandle.items); i++ {
		current := toHandle.items[i]
		modules := newOrderedSet(current)
		for j := 0; j < len(modules.items); j++ {
			m := modules.items[j]
			dependentEntries.get(m).add(current)
			for _, dep := range m.DependenciesToBeIncluded() {
				if d, ok := dep.(*graph.Module); ok {
					modules.add(d)
				}
			}
			for _, d := range m.DynamicImports() {
				if target, ok := d.Resolution.(*graph.Module); ok && len(target.IncludedDynamicImporters()) > 0 {
					dynamicEntries.add(target)
					toHandle.add(target)
				}
			}
		}
	}
	return dependentEntries, dynamicEntries
}

// dynamicDependentEntries maps each dynamic entry to the entries that
// reach any of its included importers.
func dynamicDependentEntries(dependentEntries moduleSets, dynamicEntries *orderedSet[*graph.Module]) moduleSets {
	out := moduleSets{}
	for _, entry := range dynamicEntries.items {
		set := out.get(entry)
		for _, importer := range entry.IncludedDynamicImporters() {
			if importerEntries, ok := dependentEntries[importer]; ok {
				for _, e := range importerEntries.items {
					set.add(e)
				}
			}
		}
	}
	return out
}

// createChunks groups modules by their entry signature.
func createChunks(all []*graph.Module, assigned moduleSets, order []*graph.Module) []definition {
	var defs []definition
	bySignature := map[string]int{}
	for _, m := range order {
		entries := assigned[m]
		if entries.len() == 0 {
			continue
		}
		signature := newBitSet(len(all))
		for i, entry := range all {
			if entries.has(entry) {
				signature.setBit(i)
			}
		}
		key := signature.String()
		if i, ok := bySignature[key]; ok {
			defs[i].modules = append(defs[i].modules, m)
			continue
		}
		bySignature[key] = len(defs)
		defs = append(defs, definition{modules: []*graph.Module{m}})
	}
	return defs
}
