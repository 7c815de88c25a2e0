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
package resolve

import (
	"errors"
	"fmt"
	"io/fs"
	"path"
	"strings"

	fascifs "bennypowers.dev/fascio/fs"
	"bennypowers.dev/fascio/packagejson"
)

var errNoPackageJSON = errors.New("no package.json")

// WorkspacePackage is a package of a monorepo, resolvable by name without
// going through node_modules.
type WorkspacePackage struct {
	Name string
	Path string
}

// DiscoverWorkspacePackages expands the workspaces globs of the
// package.json in rootDir. Directories without a named package.json are
// skipped.
func DiscoverWorkspacePackages(fsys fascifs.FileSystem, rootDir string) ([]WorkspacePackage, error) {
	rootPkg, err := packagejson.ParseFile(fsys, path.Join(rootDir, "package.json"))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, errNoPackageJSON
	}
	if err != nil {
		return nil, err
	}
	var packages []WorkspacePackage
	seen := map[string]bool{}
	for _, pattern := range rootPkg.WorkspacePatterns() {
		pattern = strings.TrimSuffix(strings.TrimPrefix(pattern, "./"), "/")
		dirs, err := fascifs.GlobDirs(fsys, rootDir, pattern)
		if err != nil {
			return nil, fmt.Errorf("expanding workspace pattern %q: %w", pattern, err)
		}
		for _, dir := range dirs {
			pkg, err := packagejson.ParseFile(fsys, path.Join(dir, "package.json"))
			if err != nil || pkg.Name == "" || seen[pkg.Name] {
				continue
			}
			seen[pkg.Name] = true
			packages = append(packages, WorkspacePackage{Name: pkg.Name, Path: dir})
		}
	}
	return packages, nil
}

// FindRoot walks up from start to the first directory holding
// node_modules, a package.json with workspaces, or .git. It returns start
// when none is found.
func FindRoot(fsys fascifs.FileSystem, start string) string {
	for dir := start; ; dir = path.Dir(dir) {
		if fascifs.IsDir(fsys, path.Join(dir, "node_modules")) {
			return dir
		}
		if pkg, err := packagejson.ParseFile(fsys, path.Join(dir, "package.json")); err == nil && len(pkg.WorkspacePatterns()) > 0 {
			return dir
		}
		if fascifs.IsDir(fsys, path.Join(dir, ".git")) {
			return dir
		}
		if parent := path.Dir(dir); parent == dir {
			return start
		}
	}
}
