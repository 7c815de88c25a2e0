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

// Package build runs a whole bundle: it expands the configured inputs,
// resolves and loads modules, tree-shakes the graph and assigns chunks.
package build

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"path"
	"strings"

	"github.com/bmatcuk/doublestar/v4"

	"bennypowers.dev/fascio/chunk"
	"bennypowers.dev/fascio/config"
	"bennypowers.dev/fascio/fs"
	"bennypowers.dev/fascio/graph"
	"bennypowers.dev/fascio/html"
	"bennypowers.dev/fascio/logger"
	"bennypowers.dev/fascio/remote"
	"bennypowers.dev/fascio/resolve"
)

// ErrNoInput is returned when the configuration names no entry.
var ErrNoInput = errors.New("no input: pass entry files or set input in fascio.config")

// Result is a finished build.
type Result struct {
	Graph    *graph.Graph
	Bundle   *chunk.Bundle
	Messages []logger.Msg
}

// Host supplies the collaborators of a build. Zero fields get defaults.
type Host struct {
	FS fs.FileSystem
	// Fetcher loads http(s) modules when remote loading is enabled.
	Fetcher remote.Fetcher
	Log     logger.Log
	Logger  *slog.Logger
}

// Build bundles the inputs of opts.
func Build(ctx context.Context, opts *config.Options, host Host) (*Result, error) {
	if host.FS == nil {
		host.FS = fs.NewOSFileSystem()
	}
	if host.Logger == nil {
		host.Logger = slog.New(slog.DiscardHandler)
	}
	if host.Log.AddMsg == nil {
		host.Log = logger.NewStreamLog(host.Logger)
	}
	if err := opts.Validate(); err != nil {
		return nil, err
	}

	inputs, err := collectInputs(host.FS, opts.Root, opts.Input)
	if err != nil {
		return nil, err
	}
	if len(inputs.entries) == 0 {
		return nil, ErrNoInput
	}
	host.Logger.Debug("collected entries", "count", len(inputs.entries), "virtual", len(inputs.virtual))

	external := newPatterns(opts.Root, opts.External)
	resolver, err := resolve.New(host.FS, resolve.Options{
		Root:       opts.Root,
		Conditions: opts.Conditions,
		External:   external.match,
		Remote:     opts.Remote,
	})
	if err != nil {
		return nil, err
	}
	fetcher := host.Fetcher
	if fetcher == nil && opts.Remote {
		if fetcher, err = remote.NewCachingFetcher(remote.NewHTTPFetcher(), 0); err != nil {
			return nil, err
		}
	}
	h := &moduleHost{fs: host.FS, resolver: resolver, virtual: inputs.virtual, fetcher: fetcher, logger: host.Logger}

	gopts, err := graphOptions(opts, host.Log)
	if err != nil {
		return nil, err
	}
	gopts.Resolver = h
	gopts.Loader = h
	g, err := graph.Build(ctx, inputs.entries, gopts)
	if err != nil {
		return nil, fmt.Errorf("building module graph: %w", err)
	}
	host.Logger.Debug("module graph ready", "modules", len(g.Modules()), "externals", len(g.ExternalModules()))

	copts, err := chunkOptions(opts, host.Log)
	if err != nil {
		return nil, err
	}
	b, err := chunk.Generate(g, copts)
	if err != nil {
		return nil, fmt.Errorf("generating chunks: %w", err)
	}
	return &Result{Graph: g, Bundle: b, Messages: host.Log.Done()}, nil
}

// Manifest describes the chunks of the result.
func (r *Result) Manifest() *chunk.Manifest {
	return r.Bundle.Manifest()
}

// Warnings returns the non-fatal messages of the build.
func (r *Result) Warnings() []logger.Msg {
	return logger.Warnings(r.Messages)
}

// Preview writes the code each chunk keeps, module by module. Excluded
// statements and statically dead branches are cut from the original
// sources.
func (r *Result) Preview(w io.Writer) error {
	for _, c := range r.Bundle.Chunks() {
		if c.IsFacade() {
			continue
		}
		if _, err := fmt.Fprintf(w, "// %s\n", c.FileName()); err != nil {
			return err
		}
		for _, m := range c.Modules() {
			stmts := m.RenderStatements()
			if len(stmts) == 0 {
				continue
			}
			if _, err := fmt.Fprintf(w, "// module %s\n", m.ModuleID()); err != nil {
				return err
			}
			for _, code := range stmts {
				if _, err := fmt.Fprintln(w, code); err != nil {
					return err
				}
			}
		}
	}
	return nil
}

type inputs struct {
	entries []graph.Entry
	// virtual holds the sources of inline HTML module scripts by id.
	virtual map[string][]byte
}

// collectInputs expands globs and HTML pages into entries. Plain inputs
// are resolved relative to root, like "./input".
func collectInputs(fsys fs.FileSystem, root string, input []string) (*inputs, error) {
	in := &inputs{virtual: map[string][]byte{}}
	seen := map[string]bool{}
	add := func(e graph.Entry) {
		key := e.Name + "\x00" + e.Specifier
		if !seen[key] {
			seen[key] = true
			in.entries = append(in.entries, e)
		}
	}
	for _, item := range input {
		var files []string
		switch {
		case resolve.IsURL(item):
			add(graph.Entry{Specifier: item})
			continue
		case strings.ContainsAny(item, "*?[{"):
			if !doublestar.ValidatePattern(item) {
				return nil, fmt.Errorf("invalid input pattern %q", item)
			}
			matches, err := fs.Glob(fsys, root, strings.TrimPrefix(item, "./"))
			if err != nil {
				return nil, fmt.Errorf("expanding input %q: %w", item, err)
			}
			if len(matches) == 0 {
				return nil, fmt.Errorf("input pattern %q matched no files", item)
			}
			files = matches
		default:
			file := item
			if !path.IsAbs(file) {
				file = path.Join(root, file)
			}
			files = []string{file}
		}
		for _, file := range files {
			if path.Ext(file) != ".html" {
				add(graph.Entry{Specifier: file})
				continue
			}
			if err := in.addPage(fsys, root, file, add); err != nil {
				return nil, err
			}
		}
	}
	return in, nil
}

// addPage turns the module scripts of an HTML page into entries. Inline
// scripts become virtual modules named after the page.
func (in *inputs) addPage(fsys fs.FileSystem, root, page string, add func(graph.Entry)) error {
	src, err := fsys.ReadFile(page)
	if err != nil {
		return fmt.Errorf("reading %s: %w", page, err)
	}
	scripts, err := html.ModuleScripts(src)
	if err != nil {
		return fmt.Errorf("parsing %s: %w", page, err)
	}
	for _, s := range scripts {
		if !s.Inline() {
			specifier := s.Src
			if strings.HasPrefix(specifier, "/") {
				specifier = path.Join(root, specifier)
			} else {
				specifier = path.Join(path.Dir(page), specifier)
			}
			add(graph.Entry{Specifier: specifier})
			continue
		}
		id := fmt.Sprintf("%s?inline-module=%d", page, s.Index)
		in.virtual[id] = []byte(s.Content)
		add(graph.Entry{Name: fmt.Sprintf("%s-inline-%d", entryName(page), s.Index), Specifier: id})
	}
	return nil
}

// moduleHost serves virtual modules before delegating to the resolver,
// the fetcher and the filesystem.
type moduleHost struct {
	fs       fs.FileSystem
	resolver *resolve.Resolver
	virtual  map[string][]byte
	fetcher  remote.Fetcher
	logger   *slog.Logger
}

func (h *moduleHost) Resolve(ctx context.Context, specifier, importer string) (*graph.ResolvedID, error) {
	if _, ok := h.virtual[specifier]; ok {
		return &graph.ResolvedID{ID: specifier}, nil
	}
	return h.resolver.Resolve(ctx, specifier, importer)
}

func (h *moduleHost) Load(ctx context.Context, id string) ([]byte, error) {
	if src, ok := h.virtual[id]; ok {
		return src, nil
	}
	if resolve.IsURL(id) {
		if h.fetcher == nil {
			return nil, fmt.Errorf("remote loading is disabled for %s", id)
		}
		h.logger.Debug("fetching module", "url", id)
		return h.fetcher.Fetch(ctx, id)
	}
	h.logger.Debug("loading module", "id", id)
	return h.fs.ReadFile(id)
}
