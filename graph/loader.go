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
	"context"
	"fmt"
	"path"
	"slices"
	"strings"

	"golang.org/x/sync/errgroup"

	"bennypowers.dev/fascio/logger"
	"bennypowers.dev/fascio/parse"
)

// loader fetches modules concurrently. Every module is fetched at most
// once; its dependencies are scheduled on the same group as soon as its
// imports are resolved.
type loader struct {
	g     *Graph
	group *errgroup.Group
	ctx   context.Context
	sem   chan struct{}
}

// load resolves the entries and everything reachable from them. After it
// returns, modulesByID and externalsByID are complete and every module's
// importer lists are sorted.
func (g *Graph) load(ctx context.Context, entries []Entry) error {
	group, gctx := errgroup.WithContext(ctx)
	limit := g.opts.MaxParallelFileOps
	if limit <= 0 {
		limit = 20
	}
	l := &loader{g: g, group: group, ctx: gctx, sem: make(chan struct{}, limit)}

	resolved := make([]*Module, len(entries))
	for i, entry := range entries {
		group.Go(func() error {
			m, err := l.fetchEntry(entry)
			if err != nil {
				return err
			}
			resolved[i] = m
			return nil
		})
	}
	if err := group.Wait(); err != nil {
		return err
	}
	if err := g.fatalError(); err != nil {
		return err
	}

	for _, m := range g.modulesByID {
		slices.Sort(m.importers)
		slices.Sort(m.dynamicImporters)
	}
	for _, ext := range g.externalsByID {
		slices.Sort(ext.importers)
		slices.Sort(ext.dynamicImporters)
	}
	for i, m := range resolved {
		if !m.isEntry {
			m.isEntry = true
			m.preserveSignature = g.opts.PreserveEntrySignatures
			g.entryModules = append(g.entryModules, m)
		}
		name := entries[i].Name
		if name != "" && !slices.Contains(m.entryNames, name) {
			m.entryNames = append(m.entryNames, name)
		}
	}
	return nil
}

func (l *loader) fetchEntry(entry Entry) (*Module, error) {
	r, err := l.g.opts.Resolver.Resolve(l.ctx, entry.Specifier, "")
	if err != nil {
		return nil, logger.NewError(logger.UnresolvedEntry, "", "Could not resolve entry module %q", entry.Specifier).
			WithSpecifier(entry.Specifier).WithCause(err)
	}
	if r == nil || r.External {
		return nil, logger.NewError(logger.UnresolvedEntry, "", "Could not resolve entry module %q", entry.Specifier).
			WithSpecifier(entry.Specifier)
	}
	return l.fetchModule(r.ID, l.sideEffectsOf(r)), nil
}

// fetchModule returns the module for id, scheduling its load the first
// time the id is seen.
func (l *loader) fetchModule(id string, sideEffects SideEffects) *Module {
	g := l.g
	g.mu.Lock()
	if m, ok := g.modulesByID[id]; ok {
		g.mu.Unlock()
		return m
	}
	m := newModule(g, id, sideEffects)
	g.modulesByID[id] = m
	g.mu.Unlock()

	l.group.Go(func() error {
		return l.loadModule(m)
	})
	return m
}

func (l *loader) loadModule(m *Module) error {
	if err := l.ctx.Err(); err != nil {
		return err
	}
	source, err := l.read(m.id)
	if err != nil {
		return logger.NewError(logger.LoadError, m.id, "Could not load %q: %v", m.id, err).WithCause(err)
	}
	program, err := parse.Parse(m.id, source)
	if err != nil {
		return err
	}
	m.setSource(source, program)

	for _, source := range m.sources {
		r, err := l.resolveImport(source, m)
		if err != nil {
			return err
		}
		m.resolvedIDs[source] = r
	}
	for _, d := range m.dynamicImports {
		if d.Specifier == "" {
			continue
		}
		if _, ok := m.resolvedIDs[d.Specifier]; ok {
			continue
		}
		r, err := l.resolveImport(d.Specifier, m)
		if err != nil {
			return err
		}
		m.resolvedIDs[d.Specifier] = r
	}

	for _, source := range m.sources {
		dep := l.fetchDependency(m.resolvedIDs[source], m.id, false)
		if !slices.Contains(m.dependencies, dep) {
			m.dependencies = append(m.dependencies, dep)
		}
	}
	for _, d := range m.dynamicImports {
		if d.Specifier == "" {
			continue
		}
		d.Resolution = l.fetchDependency(m.resolvedIDs[d.Specifier], m.id, true)
	}
	return nil
}

// read loads source text, holding a slot of the file operation budget.
func (l *loader) read(id string) ([]byte, error) {
	select {
	case l.sem <- struct{}{}:
	case <-l.ctx.Done():
		return nil, l.ctx.Err()
	}
	defer func() { <-l.sem }()
	return l.g.opts.Loader.Load(l.ctx, id)
}

func (l *loader) fetchDependency(r *ResolvedID, importer string, dynamic bool) ModuleLike {
	g := l.g
	if r.External {
		g.mu.Lock()
		defer g.mu.Unlock()
		ext, ok := g.externalsByID[r.ID]
		if !ok {
			ext = newExternalModule(g, r.ID, l.sideEffectsOf(r))
			g.externalsByID[r.ID] = ext
		}
		if dynamic {
			ext.dynamicImporters = appendUnique(ext.dynamicImporters, importer)
		} else {
			ext.importers = appendUnique(ext.importers, importer)
		}
		return ext
	}
	m := l.fetchModule(r.ID, l.sideEffectsOf(r))
	g.mu.Lock()
	defer g.mu.Unlock()
	if dynamic {
		m.dynamicImporters = appendUnique(m.dynamicImporters, importer)
	} else {
		m.importers = appendUnique(m.importers, importer)
	}
	return m
}

// resolveImport asks the resolver for a specifier. Relative and absolute
// specifiers that do not resolve are fatal; bare ones are treated as
// external with a warning.
func (l *loader) resolveImport(specifier string, importer *Module) (*ResolvedID, error) {
	r, err := l.g.opts.Resolver.Resolve(l.ctx, specifier, importer.id)
	if err != nil {
		return nil, logger.NewError(logger.UnresolvedImport, importer.id,
			"Could not resolve %q from %q: %v", specifier, importer.id, err).
			WithSpecifier(specifier).WithCause(err)
	}
	if r != nil {
		return r, nil
	}
	if isRelative(specifier) {
		return nil, logger.NewError(logger.UnresolvedImport, importer.id,
			"Could not resolve %q from %q", specifier, importer.id).WithSpecifier(specifier)
	}
	l.g.opts.Log.AddMsg(logger.Msg{
		Kind:      logger.Warning,
		Code:      logger.UnresolvedImport,
		ID:        importer.id,
		Specifier: specifier,
		Text:      fmt.Sprintf("%q is imported by %q, but could not be resolved; treating it as an external dependency", specifier, importer.id),
	})
	return &ResolvedID{ID: specifier, External: true}, nil
}

func (l *loader) sideEffectsOf(r *ResolvedID) SideEffects {
	if r.SideEffects != SideEffectsUnset {
		return r.SideEffects
	}
	if l.g.opts.ModuleSideEffects != nil {
		if s := l.g.opts.ModuleSideEffects(r.ID, r.External); s != SideEffectsUnset {
			return s
		}
	}
	return SideEffectsTrue
}

func isRelative(specifier string) bool {
	return path.IsAbs(specifier) || strings.HasPrefix(specifier, "./") || strings.HasPrefix(specifier, "../") ||
		specifier == "." || specifier == ".."
}

func appendUnique(list []string, s string) []string {
	if slices.Contains(list, s) {
		return list
	}
	return append(list, s)
}
