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
// Package graph loads the module graph of a build, links imports to
// exports, orders modules for execution and decides which statements
// survive tree-shaking.
package graph

import (
	"context"
	"errors"
	"maps"
	"slices"
	"sync"

	"bennypowers.dev/fascio/logger"
	"bennypowers.dev/fascio/pathtrack"
)

// Graph is the analyzed module graph of one build. It is built once by
// Build and read-only afterwards.
type Graph struct {
	opts Options
	pure *pureFunctions

	mu            sync.Mutex
	modulesByID   map[string]*Module
	externalsByID map[string]*ExternalModule
	err           error

	entryModules []*Module
	modules      []*Module
	externals    []*ExternalModule
	globals      map[string]*GlobalVariable
	cycles       [][]string

	needsTreeshakingPass bool
	deoptTracker         *pathtrack.PathTracker
}

func newGraph(opts Options) *Graph {
	return &Graph{
		opts:          opts,
		pure:          newPureFunctions(opts.ManualPureFunctions),
		modulesByID:   map[string]*Module{},
		externalsByID: map[string]*ExternalModule{},
		globals:       map[string]*GlobalVariable{},
		deoptTracker:  pathtrack.NewPathTracker(),
	}
}

// Build loads every module reachable from the entries, links and orders
// them, and runs tree-shaking to a fixed point.
func Build(ctx context.Context, entries []Entry, opts Options) (*Graph, error) {
	if opts.Resolver == nil || opts.Loader == nil {
		return nil, errors.New("graph: a resolver and a loader are required")
	}
	if len(entries) == 0 {
		return nil, errors.New("graph: at least one entry is required")
	}
	if opts.Log.AddMsg == nil {
		opts.Log = logger.NewDeferLog()
	}
	g := newGraph(opts)
	if err := g.load(ctx, entries); err != nil {
		return nil, err
	}
	for _, id := range slices.Sorted(maps.Keys(g.modulesByID)) {
		g.modulesByID[id].linkImports()
	}
	g.analyseModuleExecution()
	for _, m := range g.modules {
		m.bindReferences()
	}
	if err := g.fatalError(); err != nil {
		return nil, err
	}
	g.includeStatements()
	if err := g.fatalError(); err != nil {
		return nil, err
	}
	return g, nil
}

// Options returns the options the graph was built with.
func (g *Graph) Options() Options { return g.opts }

// Log returns the diagnostics sink of the build.
func (g *Graph) Log() logger.Log { return g.opts.Log }

// Modules returns the internal modules in execution order.
func (g *Graph) Modules() []*Module { return g.modules }

// EntryModules returns the entry modules in declaration order.
func (g *Graph) EntryModules() []*Module { return g.entryModules }

// ExternalModules returns the external modules in execution order.
func (g *Graph) ExternalModules() []*ExternalModule { return g.externals }

// Cycles returns the circular import paths found while ordering modules.
// Each path starts and ends with the same id.
func (g *Graph) Cycles() [][]string { return g.cycles }

// Module returns the internal module with the given id.
func (g *Graph) Module(id string) (*Module, bool) {
	m, ok := g.modulesByID[id]
	return m, ok
}

// fatal records the first fatal error. Later errors are dropped since the
// build aborts anyway.
func (g *Graph) fatal(err error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.err == nil {
		g.err = err
	}
}

func (g *Graph) fatalError() error {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.err
}

// globalVariable returns the shared variable for a name no module declares.
// Binding runs on a single goroutine, so no locking is needed.
func (g *Graph) globalVariable(name string) *GlobalVariable {
	v, ok := g.globals[name]
	if !ok {
		v = &GlobalVariable{variableBase: variableBase{name: name}, graph: g}
		g.globals[name] = v
	}
	return v
}

func (g *Graph) externalModule(id string) *ExternalModule {
	return g.externalsByID[id]
}

// moduleForResolved maps a resolution to the module record created for it.
func (g *Graph) moduleForResolved(r *ResolvedID) ModuleLike {
	if r == nil {
		return nil
	}
	if r.External {
		if ext, ok := g.externalsByID[r.ID]; ok {
			return ext
		}
		return nil
	}
	if m, ok := g.modulesByID[r.ID]; ok {
		return m
	}
	return nil
}

// includeStatements runs inclusion passes over the executed modules until
// no pass includes anything new. Entry exports join after the first pass
// so that their inclusion can build on what the code already needs.
func (g *Graph) includeStatements() {
	for _, m := range g.entryModules {
		g.markModuleAndImpureDependenciesAsExecuted(m)
	}
	if g.opts.Treeshake {
		for pass := 1; ; pass++ {
			g.needsTreeshakingPass = false
			for _, m := range g.modules {
				if !m.isExecuted {
					continue
				}
				if m.sideEffects == SideEffectsNoTreeshake {
					m.includeAllInBundle()
				} else {
					m.include()
				}
			}
			if pass == 1 {
				for _, m := range g.entryModules {
					if m.preserveSignature != PreserveFalse {
						m.IncludeAllExports(false)
						g.needsTreeshakingPass = true
					}
				}
			}
			if !g.needsTreeshakingPass {
				break
			}
		}
	} else {
		for _, m := range g.modules {
			m.includeAllInBundle()
		}
	}
	for _, ext := range g.externals {
		ext.warnUnusedImports()
	}
}
