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
)

// analyseModuleExecution assigns execution indices by a depth-first,
// post-order walk from the entries, then from dynamically imported
// modules in discovery order. Dependencies run before their importers;
// back edges of the walk are reported as cycles.
func (g *Graph) analyseModuleExecution() {
	next := 0
	analysed := map[ModuleLike]bool{}
	parents := map[ModuleLike]*Module{}
	var dynamic []*Module

	var analyse func(ModuleLike)
	analyse = func(ml ModuleLike) {
		if m, ok := ml.(*Module); ok {
			for _, dep := range m.dependencies {
				if _, seen := parents[dep]; seen {
					if !analysed[dep] {
						g.cycles = append(g.cycles, cyclePath(dep, m, parents))
					}
					continue
				}
				parents[dep] = m
				analyse(dep)
			}
			for _, d := range m.dynamicImports {
				if target, ok := d.Resolution.(*Module); ok && !slices.Contains(dynamic, target) {
					dynamic = append(dynamic, target)
				}
			}
			g.modules = append(g.modules, m)
		}
		switch t := ml.(type) {
		case *Module:
			t.execIndex = next
		case *ExternalModule:
			t.execIndex = next
		}
		next++
		analysed[ml] = true
	}

	for _, m := range g.entryModules {
		if _, seen := parents[m]; !seen {
			parents[m] = nil
			analyse(m)
		}
	}
	// analyse may append to dynamic while it is walked.
	for i := 0; i < len(dynamic); i++ {
		if _, seen := parents[dynamic[i]]; !seen {
			parents[dynamic[i]] = nil
			analyse(dynamic[i])
		}
	}

	g.externals = make([]*ExternalModule, 0, len(g.externalsByID))
	for _, ext := range g.externalsByID {
		g.externals = append(g.externals, ext)
	}
	slices.SortFunc(g.externals, func(a, b *ExternalModule) int {
		// Externals only reached through import() have no index; they go last.
		switch {
		case a.execIndex < 0 && b.execIndex >= 0:
			return 1
		case b.execIndex < 0 && a.execIndex >= 0:
			return -1
		case a.execIndex != b.execIndex:
			return a.execIndex - b.execIndex
		}
		return strings.Compare(a.id, b.id)
	})

	for _, cycle := range g.cycles {
		g.opts.Log.AddMsg(logger.Msg{
			Kind:  logger.Warning,
			Code:  logger.CircularDependency,
			ID:    cycle[0],
			Cycle: cycle,
			Text:  "Circular dependency: " + strings.Join(cycle, " -> "),
		})
	}
}

// cyclePath reconstructs the cycle closed by the edge from parent to dep,
// as ids starting and ending with dep.
func cyclePath(dep ModuleLike, parent *Module, parents map[ModuleLike]*Module) []string {
	path := []string{dep.ModuleID()}
	for next := parent; next != nil && ModuleLike(next) != dep; next = parents[next] {
		path = append(path, next.id)
	}
	path = append(path, path[0])
	slices.Reverse(path)
	return path
}

// markModuleAndImpureDependenciesAsExecuted marks base as executed, along
// with every internal dependency that runs with it because it has side
// effects.
func (g *Graph) markModuleAndImpureDependenciesAsExecuted(base *Module) {
	base.isExecuted = true
	queue := []*Module{base}
	for i := 0; i < len(queue); i++ {
		for _, dep := range queue[i].dependencies {
			m, ok := dep.(*Module)
			if !ok || m.isExecuted || !m.hasModuleSideEffects() {
				continue
			}
			m.isExecuted = true
			queue = append(queue, m)
		}
	}
}
