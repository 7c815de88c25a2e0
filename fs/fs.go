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

// Package fs is the filesystem seam between fascio and the host. Resolution,
// loading and output all go through FileSystem so tests can run against an
// in-memory tree.
package fs

import (
	"io/fs"
	"os"
	"path"
	"slices"

	"github.com/bmatcuk/doublestar/v4"
)

// FileSystem is the subset of os used by the bundler.
type FileSystem interface {
	ReadFile(name string) ([]byte, error)
	WriteFile(name string, data []byte, perm fs.FileMode) error
	MkdirAll(path string, perm fs.FileMode) error
	ReadDir(name string) ([]fs.DirEntry, error)
	Stat(name string) (fs.FileInfo, error)
	Exists(path string) bool

	// Open makes a FileSystem usable as an fs.FS.
	Open(name string) (fs.File, error)
}

// OSFileSystem implements FileSystem on the host filesystem.
type OSFileSystem struct{}

func NewOSFileSystem() *OSFileSystem {
	return &OSFileSystem{}
}

func (OSFileSystem) ReadFile(name string) ([]byte, error) { return os.ReadFile(name) }

func (OSFileSystem) WriteFile(name string, data []byte, perm fs.FileMode) error {
	return os.WriteFile(name, data, perm)
}

func (OSFileSystem) MkdirAll(path string, perm fs.FileMode) error { return os.MkdirAll(path, perm) }

func (OSFileSystem) ReadDir(name string) ([]fs.DirEntry, error) { return os.ReadDir(name) }

func (OSFileSystem) Stat(name string) (fs.FileInfo, error) { return os.Stat(name) }

func (OSFileSystem) Exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

func (OSFileSystem) Open(name string) (fs.File, error) { return os.Open(name) }

// IsFile reports whether name exists and is a regular file.
func IsFile(fsys FileSystem, name string) bool {
	info, err := fsys.Stat(name)
	return err == nil && !info.IsDir()
}

// IsDir reports whether name exists and is a directory.
func IsDir(fsys FileSystem, name string) bool {
	info, err := fsys.Stat(name)
	return err == nil && info.IsDir()
}

// Glob expands a doublestar pattern relative to root and returns the
// matching files as sorted absolute slash paths.
func Glob(fsys FileSystem, root, pattern string) ([]string, error) {
	return glob(fsys, root, pattern, doublestar.WithFilesOnly())
}

// GlobDirs is Glob for directories.
func GlobDirs(fsys FileSystem, root, pattern string) ([]string, error) {
	matches, err := glob(fsys, root, pattern)
	if err != nil {
		return nil, err
	}
	return slices.DeleteFunc(matches, func(m string) bool { return !IsDir(fsys, m) }), nil
}

func glob(fsys FileSystem, root, pattern string, opts ...doublestar.GlobOption) ([]string, error) {
	matches, err := doublestar.Glob(rooted{fsys, root}, pattern, opts...)
	if err != nil {
		return nil, err
	}
	out := make([]string, len(matches))
	for i, m := range matches {
		out[i] = path.Join(root, m)
	}
	slices.Sort(out)
	return out, nil
}

// rooted presents the subtree at root as an fs.FS.
type rooted struct {
	fsys FileSystem
	root string
}

func (r rooted) Open(name string) (fs.File, error) {
	if !fs.ValidPath(name) {
		return nil, &fs.PathError{Op: "open", Path: name, Err: fs.ErrInvalid}
	}
	return r.fsys.Open(path.Join(r.root, name))
}
