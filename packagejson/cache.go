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
package packagejson

import (
	"sync"

	"bennypowers.dev/fascio/fs"
)

// Cache memoizes parsed package.json files by path. Lookups for the same
// path made while a load is in flight wait for that load instead of
// reading the file again.
type Cache struct {
	entries sync.Map // path -> *cacheEntry
}

type cacheEntry struct {
	once sync.Once
	pkg  *PackageJSON
	err  error
}

func NewCache() *Cache {
	return &Cache{}
}

// GetOrLoad returns the cached result for name, running load at most once.
// Errors are cached too, so a missing file is only probed once.
func (c *Cache) GetOrLoad(name string, load func() (*PackageJSON, error)) (*PackageJSON, error) {
	actual, _ := c.entries.LoadOrStore(name, &cacheEntry{})
	entry := actual.(*cacheEntry)
	entry.once.Do(func() {
		entry.pkg, entry.err = load()
	})
	return entry.pkg, entry.err
}

// Read parses name through the cache.
func (c *Cache) Read(fsys fs.FileSystem, name string) (*PackageJSON, error) {
	return c.GetOrLoad(name, func() (*PackageJSON, error) {
		return ParseFile(fsys, name)
	})
}
