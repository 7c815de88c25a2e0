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

// Package resolve is the default module resolver: relative and absolute
// paths with extension probing, bare specifiers through node_modules and
// package.json exports, "#" subpath imports, workspace packages, and
// http(s) URLs.
package resolve

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"path"
	"strings"

	lru "github.com/hashicorp/golang-lru/v2"

	"bennypowers.dev/fascio/fs"
	"bennypowers.dev/fascio/graph"
	"bennypowers.dev/fascio/packagejson"
)

// DefaultExtensions are probed, in order, for specifiers without one.
var DefaultExtensions = []string{".js", ".mjs", ".ts", ".tsx", ".jsx", ".mts"}

// Options configures a Resolver.
type Options struct {
	// Root is the directory entries are resolved against and the web root
	// for absolute specifiers that do not exist on disk.
	Root       string
	Extensions []string
	// Conditions is the package.json export condition priority.
	Conditions []string
	// External reports ids that must stay outside the bundle. It is asked
	// about the raw specifier and again about the resolved id.
	External func(id string) bool
	// Remote loads http(s) ids instead of treating them as external.
	Remote bool
	// CacheSize bounds the resolution cache. Zero means 4096.
	CacheSize int
}

// Resolver implements graph.Resolver on a FileSystem. It is safe for
// concurrent use.
type Resolver struct {
	fs         fs.FileSystem
	opts       Options
	packages   *packagejson.Cache
	cache      *lru.Cache[cacheKey, *graph.ResolvedID]
	workspaces map[string]string
}

// cacheKey is the importer directory and specifier, which together decide
// the resolution.
type cacheKey struct {
	dir       string
	specifier string
}

func New(fsys fs.FileSystem, opts Options) (*Resolver, error) {
	if opts.Root == "" {
		return nil, errors.New("resolve: Root is required")
	}
	if opts.Extensions == nil {
		opts.Extensions = DefaultExtensions
	}
	size := opts.CacheSize
	if size <= 0 {
		size = 4096
	}
	cache, err := lru.New[cacheKey, *graph.ResolvedID](size)
	if err != nil {
		return nil, err
	}
	r := &Resolver{
		fs:         fsys,
		opts:       opts,
		packages:   packagejson.NewCache(),
		cache:      cache,
		workspaces: map[string]string{},
	}
	packages, err := DiscoverWorkspacePackages(fsys, opts.Root)
	if err != nil && !errors.Is(err, errNoPackageJSON) {
		return nil, err
	}
	for _, p := range packages {
		r.workspaces[p.Name] = p.Path
	}
	return r, nil
}

// Resolve implements graph.Resolver. Unresolvable specifiers return nil
// without an error; a package that exists but does not export the subpath
// is an error.
func (r *Resolver) Resolve(ctx context.Context, specifier, importer string) (*graph.ResolvedID, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if r.isExternal(specifier) {
		return &graph.ResolvedID{ID: specifier, External: true}, nil
	}
	dir := r.opts.Root
	if isURL(importer) {
		dir = importer
	} else if importer != "" {
		dir = path.Dir(importer)
	}
	key := cacheKey{dir: dir, specifier: specifier}
	if cached, ok := r.cache.Get(key); ok {
		return clone(cached), nil
	}
	resolved, err := r.resolve(specifier, dir)
	if err != nil {
		return nil, err
	}
	r.cache.Add(key, resolved)
	return clone(resolved), nil
}

func clone(id *graph.ResolvedID) *graph.ResolvedID {
	if id == nil {
		return nil
	}
	c := *id
	return &c
}

func (r *Resolver) resolve(specifier, dir string) (*graph.ResolvedID, error) {
	switch {
	case isURL(specifier):
		return r.remote(specifier), nil
	case isURL(dir) && (isRelative(specifier) || strings.HasPrefix(specifier, "/")):
		base, err := url.Parse(dir)
		if err != nil {
			return nil, err
		}
		ref, err := url.Parse(specifier)
		if err != nil {
			return nil, err
		}
		return r.remote(base.ResolveReference(ref).String()), nil
	}

	var file string
	var err error
	switch {
	case isRelative(specifier):
		file = r.resolveFile(path.Join(dir, specifier))
	case strings.HasPrefix(specifier, "/"):
		if file = r.resolveFile(specifier); file == "" {
			file = r.resolveFile(path.Join(r.opts.Root, specifier))
		}
	case strings.HasPrefix(specifier, "#"):
		file, err = r.resolveSubpathImport(specifier, dir)
	default:
		file, err = r.resolveBare(specifier, dir)
	}
	if err != nil || file == "" {
		return nil, err
	}
	if r.isExternal(file) {
		return &graph.ResolvedID{ID: file, External: true}, nil
	}
	return &graph.ResolvedID{ID: file, SideEffects: r.sideEffects(file)}, nil
}

func (r *Resolver) remote(u string) *graph.ResolvedID {
	if !r.opts.Remote || r.isExternal(u) {
		return &graph.ResolvedID{ID: u, External: true}
	}
	return &graph.ResolvedID{ID: u}
}

func (r *Resolver) isExternal(id string) bool {
	return r.opts.External != nil && r.opts.External(id)
}

// resolveFile probes p as a file, with each extension, as a directory with
// a package.json, and as a directory index. A ".js" import may name a
// TypeScript source.
func (r *Resolver) resolveFile(p string) string {
	if fs.IsFile(r.fs, p) {
		return p
	}
	for _, ext := range r.opts.Extensions {
		if fs.IsFile(r.fs, p+ext) {
			return p + ext
		}
	}
	if base, ok := strings.CutSuffix(p, ".js"); ok {
		for _, ext := range []string{".ts", ".tsx"} {
			if fs.IsFile(r.fs, base+ext) {
				return base + ext
			}
		}
	}
	if !fs.IsDir(r.fs, p) {
		return ""
	}
	if pkg, err := r.packages.Read(r.fs, path.Join(p, "package.json")); err == nil {
		if file := r.resolveFile(path.Join(p, pkg.EntryPoint())); file != "" {
			return file
		}
	}
	for _, ext := range r.opts.Extensions {
		if index := path.Join(p, "index"+ext); fs.IsFile(r.fs, index) {
			return index
		}
	}
	return ""
}

// resolveBare finds the package in a workspace or the nearest
// node_modules and maps the subpath through its package.json.
func (r *Resolver) resolveBare(specifier, dir string) (string, error) {
	name, subpath := splitPackageSpecifier(specifier)
	if name == "" {
		return "", nil
	}
	if pkgDir, ok := r.workspaces[name]; ok {
		return r.resolvePackage(pkgDir, subpath)
	}
	for current := dir; ; current = path.Dir(current) {
		if pkgDir := path.Join(current, "node_modules", name); fs.IsDir(r.fs, pkgDir) {
			return r.resolvePackage(pkgDir, subpath)
		}
		if current == "/" || current == "." {
			return "", nil
		}
	}
}

func (r *Resolver) resolvePackage(pkgDir, subpath string) (string, error) {
	pkg, err := r.packages.Read(r.fs, path.Join(pkgDir, "package.json"))
	if err != nil {
		return r.resolveFile(path.Join(pkgDir, subpath)), nil
	}
	if !pkg.HasExports() {
		if subpath == "" {
			return r.resolveFile(path.Join(pkgDir, pkg.EntryPoint())), nil
		}
		return r.resolveFile(path.Join(pkgDir, subpath)), nil
	}
	key := "."
	if subpath != "" {
		key = "./" + subpath
	}
	target, err := pkg.ResolveExport(key, r.opts.Conditions)
	if err != nil {
		return "", fmt.Errorf("%w: %q in %s", err, key, pkgDir)
	}
	return r.resolveFile(path.Join(pkgDir, target)), nil
}

// resolveSubpathImport maps "#name" through the imports field of the
// package containing dir. A target that is not a file in the package is
// taken as a bare specifier.
func (r *Resolver) resolveSubpathImport(specifier, dir string) (string, error) {
	pkgDir, pkg := r.nearestPackage(dir)
	if pkg == nil {
		return "", nil
	}
	target, err := pkg.ResolveImport(specifier, r.opts.Conditions)
	if err != nil {
		return "", fmt.Errorf("%w: %q in %s", err, specifier, pkgDir)
	}
	if file := r.resolveFile(path.Join(pkgDir, target)); file != "" {
		return file, nil
	}
	return r.resolveBare(target, pkgDir)
}

// nearestPackage returns the closest package.json at or above dir.
func (r *Resolver) nearestPackage(dir string) (string, *packagejson.PackageJSON) {
	for current := dir; ; current = path.Dir(current) {
		if pkg, err := r.packages.Read(r.fs, path.Join(current, "package.json")); err == nil {
			return current, pkg
		}
		if current == "/" || current == "." {
			return "", nil
		}
	}
}

// sideEffects applies the sideEffects field of the package owning file.
func (r *Resolver) sideEffects(file string) graph.SideEffects {
	pkgDir, pkg := r.nearestPackage(path.Dir(file))
	if pkg == nil {
		return graph.SideEffectsUnset
	}
	rel := strings.TrimPrefix(strings.TrimPrefix(file, pkgDir), "/")
	has, ok := pkg.HasSideEffects(rel)
	switch {
	case !ok:
		return graph.SideEffectsUnset
	case has:
		return graph.SideEffectsTrue
	}
	return graph.SideEffectsFalse
}

// splitPackageSpecifier splits "pkg/sub" and "@scope/pkg/sub" into the
// package name and the subpath.
func splitPackageSpecifier(specifier string) (name, subpath string) {
	parts := strings.SplitN(specifier, "/", 3)
	if strings.HasPrefix(specifier, "@") {
		if len(parts) < 2 {
			return "", ""
		}
		name = parts[0] + "/" + parts[1]
		if len(parts) == 3 {
			subpath = parts[2]
		}
		return name, subpath
	}
	name, subpath, _ = strings.Cut(specifier, "/")
	return name, subpath
}

func isRelative(specifier string) bool {
	return specifier == "." || specifier == ".." || strings.HasPrefix(specifier, "./") || strings.HasPrefix(specifier, "../")
}

func isURL(s string) bool {
	return strings.HasPrefix(s, "http://") || strings.HasPrefix(s, "https://")
}

// IsURL reports whether id is loaded over http(s).
func IsURL(id string) bool { return isURL(id) }
