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

// Package mapfs is an in-memory fs.FileSystem for tests.
package mapfs

import (
	"errors"
	"io/fs"
	"path"
	"slices"
	"strings"
	"sync"
	"testing/fstest"
	"time"
)

// MapFileSystem stores files in an fstest.MapFS keyed by unrooted slash
// paths. Directories exist implicitly through the files below them.
type MapFileSystem struct {
	mu      sync.RWMutex
	files   fstest.MapFS
	modTime time.Time
}

func New() *MapFileSystem {
	return &MapFileSystem{
		files:   fstest.MapFS{},
		modTime: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
	}
}

// FromMap builds a filesystem from absolute path to content.
func FromMap(files map[string]string) *MapFileSystem {
	mfs := New()
	for name, content := range files {
		mfs.AddFile(name, content, 0o644)
	}
	return mfs
}

func (mfs *MapFileSystem) AddFile(name string, content string, mode fs.FileMode) {
	mfs.mu.Lock()
	defer mfs.mu.Unlock()
	mfs.files[clean(name)] = &fstest.MapFile{Data: []byte(content), Mode: mode, ModTime: mfs.modTime}
}

func (mfs *MapFileSystem) ReadFile(name string) ([]byte, error) {
	mfs.mu.RLock()
	defer mfs.mu.RUnlock()
	return fs.ReadFile(mfs.files, clean(name))
}

func (mfs *MapFileSystem) WriteFile(name string, data []byte, perm fs.FileMode) error {
	mfs.mu.Lock()
	defer mfs.mu.Unlock()
	name = clean(name)
	if f, ok := mfs.files[path.Dir(name)]; ok && !f.Mode.IsDir() {
		return &fs.PathError{Op: "write", Path: name, Err: errors.New("parent is not a directory")}
	}
	mfs.files[name] = &fstest.MapFile{Data: slices.Clone(data), Mode: perm, ModTime: mfs.modTime}
	return nil
}

func (mfs *MapFileSystem) MkdirAll(name string, perm fs.FileMode) error {
	mfs.mu.Lock()
	defer mfs.mu.Unlock()
	name = clean(name)
	if f, ok := mfs.files[name]; ok && !f.Mode.IsDir() {
		return &fs.PathError{Op: "mkdir", Path: name, Err: errors.New("not a directory")}
	}
	mfs.files[name] = &fstest.MapFile{Mode: fs.ModeDir | perm.Perm(), ModTime: mfs.modTime}
	return nil
}

func (mfs *MapFileSystem) ReadDir(name string) ([]fs.DirEntry, error) {
	mfs.mu.RLock()
	defer mfs.mu.RUnlock()
	return fs.ReadDir(mfs.files, clean(name))
}

func (mfs *MapFileSystem) Stat(name string) (fs.FileInfo, error) {
	mfs.mu.RLock()
	defer mfs.mu.RUnlock()
	return fs.Stat(mfs.files, clean(name))
}

func (mfs *MapFileSystem) Exists(name string) bool {
	_, err := mfs.Stat(name)
	return err == nil
}

func (mfs *MapFileSystem) Open(name string) (fs.File, error) {
	mfs.mu.RLock()
	defer mfs.mu.RUnlock()
	return mfs.files.Open(clean(name))
}

// clean maps an absolute or relative slash path onto a MapFS key.
func clean(p string) string {
	p = strings.TrimPrefix(path.Clean("/"+p), "/")
	if p == "" {
		return "."
	}
	return p
}
