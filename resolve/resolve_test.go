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
package resolve_test

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"bennypowers.dev/fascio/graph"
	"bennypowers.dev/fascio/internal/mapfs"
	"bennypowers.dev/fascio/packagejson"
	"bennypowers.dev/fascio/resolve"
)

func project() *mapfs.MapFileSystem {
	return mapfs.FromMap(map[string]string{
		"/app/package.json":   `{"name": "app", "imports": {"#utils": "./src/utils/index.js", "#lit": "lit"}}`,
		"/app/src/main.js":    `import './util';`,
		"/app/src/util.js":    ``,
		"/app/src/typed.ts":   ``,
		"/app/src/widgets/index.tsx": ``,
		"/app/src/utils/index.js":    ``,
		"/app/src/lib/package.json":  `{"main": "./entry.js"}`,
		"/app/src/lib/entry.js":      ``,

		"/app/node_modules/lit/package.json": `{"name": "lit", "exports": {".": "./index.js", "./decorators.js": "./decorators.js"}, "sideEffects": false}`,
		"/app/node_modules/lit/index.js":      ``,
		"/app/node_modules/lit/decorators.js": ``,
		"/app/node_modules/@scope/pkg/package.json": `{"name": "@scope/pkg", "module": "esm/index.js", "sideEffects": ["./esm/register.js"]}`,
		"/app/node_modules/@scope/pkg/esm/index.js":    ``,
		"/app/node_modules/@scope/pkg/esm/register.js": ``,
		"/app/node_modules/@scope/pkg/esm/other.js":    ``,
		"/app/node_modules/nopkg/index.js":             ``,
	})
}

func newResolver(t *testing.T, fsys *mapfs.MapFileSystem, opts resolve.Options) *resolve.Resolver {
	t.Helper()
	if opts.Root == "" {
		opts.Root = "/app"
	}
	r, err := resolve.New(fsys, opts)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return r
}

func TestResolve(t *testing.T) {
	r := newResolver(t, project(), resolve.Options{})
	tests := []struct {
		name        string
		specifier   string
		importer    string
		want        string
		sideEffects graph.SideEffects
	}{
		{name: "entry relative to root", specifier: "./src/main.js", want: "/app/src/main.js"},
		{name: "extension probing", specifier: "./util", importer: "/app/src/main.js", want: "/app/src/util.js"},
		{name: "js import of ts source", specifier: "./typed.js", importer: "/app/src/main.js", want: "/app/src/typed.ts"},
		{name: "directory index", specifier: "./widgets", importer: "/app/src/main.js", want: "/app/src/widgets/index.tsx"},
		{name: "directory package.json main", specifier: "./lib", importer: "/app/src/main.js", want: "/app/src/lib/entry.js"},
		{name: "absolute path", specifier: "/app/src/util.js", importer: "/app/src/main.js", want: "/app/src/util.js"},
		{name: "web root absolute path", specifier: "/src/util.js", importer: "/app/src/main.js", want: "/app/src/util.js"},
		{name: "bare package", specifier: "lit", importer: "/app/src/main.js", want: "/app/node_modules/lit/index.js", sideEffects: graph.SideEffectsFalse},
		{name: "package subpath", specifier: "lit/decorators.js", importer: "/app/src/main.js", want: "/app/node_modules/lit/decorators.js", sideEffects: graph.SideEffectsFalse},
		{name: "scoped package module field", specifier: "@scope/pkg", importer: "/app/src/main.js", want: "/app/node_modules/@scope/pkg/esm/index.js", sideEffects: graph.SideEffectsFalse},
		{name: "scoped package side effect file", specifier: "@scope/pkg/esm/register.js", importer: "/app/src/main.js", want: "/app/node_modules/@scope/pkg/esm/register.js", sideEffects: graph.SideEffectsTrue},
		{name: "package without package.json", specifier: "nopkg", importer: "/app/src/main.js", want: "/app/node_modules/nopkg/index.js"},
		{name: "subpath import", specifier: "#utils", importer: "/app/src/main.js", want: "/app/src/utils/index.js"},
		{name: "subpath import to package", specifier: "#lit", importer: "/app/src/main.js", want: "/app/node_modules/lit/index.js", sideEffects: graph.SideEffectsFalse},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := r.Resolve(context.Background(), tt.specifier, tt.importer)
			if err != nil {
				t.Fatalf("Resolve: %v", err)
			}
			if got == nil {
				t.Fatalf("Resolve(%q) returned nil", tt.specifier)
			}
			if got.ID != tt.want || got.External {
				t.Errorf("Resolve(%q) = %+v, want %s", tt.specifier, got, tt.want)
			}
			if got.SideEffects != tt.sideEffects {
				t.Errorf("SideEffects = %v, want %v", got.SideEffects, tt.sideEffects)
			}
		})
	}
}

func TestResolveUnresolved(t *testing.T) {
	r := newResolver(t, project(), resolve.Options{})
	for _, specifier := range []string{"./missing.js", "unknown-package", "/nowhere.js"} {
		got, err := r.Resolve(context.Background(), specifier, "/app/src/main.js")
		if err != nil || got != nil {
			t.Errorf("Resolve(%q) = %+v, %v; want nil, nil", specifier, got, err)
		}
	}
}

func TestResolveNotExported(t *testing.T) {
	r := newResolver(t, project(), resolve.Options{})
	_, err := r.Resolve(context.Background(), "lit/internal.js", "/app/src/main.js")
	if !errors.Is(err, packagejson.ErrNotExported) {
		t.Fatalf("expected ErrNotExported, got %v", err)
	}
}

func TestResolveExternal(t *testing.T) {
	r := newResolver(t, project(), resolve.Options{
		External: func(id string) bool {
			return id == "lit" || strings.Contains(id, "/@scope/")
		},
	})
	got, err := r.Resolve(context.Background(), "lit", "/app/src/main.js")
	if err != nil || got == nil || !got.External || got.ID != "lit" {
		t.Fatalf("specifier match: got %+v, %v", got, err)
	}
	got, err = r.Resolve(context.Background(), "@scope/pkg", "/app/src/main.js")
	if err != nil || got == nil || !got.External || got.ID != "/app/node_modules/@scope/pkg/esm/index.js" {
		t.Fatalf("resolved id match: got %+v, %v", got, err)
	}
}

func TestResolveURLs(t *testing.T) {
	fsys := project()
	local := newResolver(t, fsys, resolve.Options{})
	got, err := local.Resolve(context.Background(), "https://esm.sh/lit", "/app/src/main.js")
	if err != nil || got == nil || !got.External {
		t.Fatalf("URLs are external without Remote: %+v, %v", got, err)
	}

	remote := newResolver(t, fsys, resolve.Options{Remote: true})
	got, err = remote.Resolve(context.Background(), "https://esm.sh/lit@3/index.js", "/app/src/main.js")
	if err != nil || got == nil || got.External || got.ID != "https://esm.sh/lit@3/index.js" {
		t.Fatalf("remote URL: %+v, %v", got, err)
	}
	got, err = remote.Resolve(context.Background(), "./decorators.js", "https://esm.sh/lit@3/index.js")
	if err != nil || got == nil || got.ID != "https://esm.sh/lit@3/decorators.js" {
		t.Fatalf("relative to URL: %+v, %v", got, err)
	}
	got, err = remote.Resolve(context.Background(), "/v135/lit.js", "https://esm.sh/lit@3/index.js")
	if err != nil || got == nil || got.ID != "https://esm.sh/v135/lit.js" {
		t.Fatalf("absolute on URL host: %+v, %v", got, err)
	}
}

func TestResolveWorkspacePackages(t *testing.T) {
	fsys := mapfs.FromMap(map[string]string{
		"/repo/package.json":                 `{"name": "repo", "workspaces": ["packages/*"]}`,
		"/repo/packages/core/package.json":   `{"name": "@repo/core", "exports": "./src/index.js"}`,
		"/repo/packages/core/src/index.js":   ``,
		"/repo/packages/app/package.json":    `{"name": "@repo/app"}`,
		"/repo/packages/app/main.js":         `import '@repo/core';`,
		"/repo/packages/nameless/index.js":   ``,
	})
	packages, err := resolve.DiscoverWorkspacePackages(fsys, "/repo")
	if err != nil {
		t.Fatal(err)
	}
	if len(packages) != 2 || packages[0].Name != "@repo/app" || packages[1].Name != "@repo/core" {
		t.Fatalf("unexpected packages %+v", packages)
	}

	r := newResolver(t, fsys, resolve.Options{Root: "/repo"})
	got, err := r.Resolve(context.Background(), "@repo/core", "/repo/packages/app/main.js")
	if err != nil || got == nil || got.ID != "/repo/packages/core/src/index.js" {
		t.Fatalf("got %+v, %v", got, err)
	}
}

func TestResolveIsCachedAndConcurrent(t *testing.T) {
	r := newResolver(t, project(), resolve.Options{CacheSize: 8})
	var wg sync.WaitGroup
	for range 32 {
		wg.Go(func() {
			got, err := r.Resolve(context.Background(), "lit", "/app/src/main.js")
			if err != nil || got == nil || got.ID != "/app/node_modules/lit/index.js" {
				t.Errorf("got %+v, %v", got, err)
				return
			}
			got.ID = "mutated"
		})
	}
	wg.Wait()
	got, _ := r.Resolve(context.Background(), "lit", "/app/src/other.js")
	if got.ID != "/app/node_modules/lit/index.js" {
		t.Errorf("cached result was shared with a caller: %s", got.ID)
	}
}

func TestResolveHonorsContext(t *testing.T) {
	r := newResolver(t, project(), resolve.Options{})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := r.Resolve(ctx, "lit", ""); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

func TestFindRoot(t *testing.T) {
	tests := []struct {
		name  string
		files map[string]string
		start string
		want  string
	}{
		{
			name:  "node_modules",
			files: map[string]string{"/root/node_modules/x/index.js": "", "/root/packages/a/index.js": ""},
			start: "/root/packages/a",
			want:  "/root",
		},
		{
			name:  "workspaces",
			files: map[string]string{"/root/package.json": `{"workspaces": ["packages/*"]}`, "/root/packages/a/index.js": ""},
			start: "/root/packages/a",
			want:  "/root",
		},
		{
			name:  "git",
			files: map[string]string{"/root/.git/HEAD": "", "/root/packages/a/index.js": ""},
			start: "/root/packages/a",
			want:  "/root",
		},
		{
			name:  "closest wins",
			files: map[string]string{"/root/node_modules/x/index.js": "", "/root/packages/a/node_modules/y/index.js": ""},
			start: "/root/packages/a",
			want:  "/root/packages/a",
		},
		{
			name:  "nothing found",
			files: map[string]string{"/root/packages/a/index.js": ""},
			start: "/root/packages/a",
			want:  "/root/packages/a",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := resolve.FindRoot(mapfs.FromMap(tt.files), tt.start); got != tt.want {
				t.Errorf("FindRoot = %s, want %s", got, tt.want)
			}
		})
	}
}
