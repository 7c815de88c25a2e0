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

// Package testutil loads fixture trees and golden files from testdata/.
package testutil

import (
	"flag"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"testing"

	"bennypowers.dev/fascio/internal/mapfs"
)

var updateGolden = flag.Bool("update", false, "update golden files with actual output")

// testdataPath finds rel under the nearest testdata directory. Tests run
// with the package directory as working directory, so the repository
// testdata may be one or two levels up.
func testdataPath(rel string) (string, bool) {
	for _, dir := range []string{"testdata", "../testdata", "../../testdata"} {
		p := filepath.Join(filepath.FromSlash(dir), filepath.FromSlash(rel))
		if _, err := os.Stat(p); err == nil {
			return p, true
		}
	}
	return "", false
}

// NewFixtureFS copies the fixture directory into an in-memory filesystem
// mounted at root.
func NewFixtureFS(t *testing.T, fixtureDir string, root string) *mapfs.MapFileSystem {
	t.Helper()
	dir, ok := testdataPath(fixtureDir)
	if !ok {
		t.Fatalf("fixture %s not found", fixtureDir)
	}
	mfs := mapfs.New()
	err := filepath.WalkDir(dir, func(p string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return err
		}
		content, err := os.ReadFile(p)
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(dir, p)
		if err != nil {
			return err
		}
		mfs.AddFile(path.Join(root, filepath.ToSlash(rel)), string(content), 0o644)
		return nil
	})
	if err != nil {
		t.Fatalf("loading fixture %s: %v", fixtureDir, err)
	}
	return mfs
}

// LoadFixtureFile reads one file below testdata/.
func LoadFixtureFile(t *testing.T, rel string) []byte {
	t.Helper()
	p, ok := testdataPath(rel)
	if !ok {
		t.Fatalf("fixture %s not found", rel)
	}
	content, err := os.ReadFile(p)
	if err != nil {
		t.Fatalf("reading fixture %s: %v", rel, err)
	}
	return content
}

// Golden compares actual with the golden file at rel, rewriting the file
// instead when the test binary runs with -update.
func Golden(t *testing.T, rel string, actual []byte) {
	t.Helper()
	if *updateGolden {
		target, ok := testdataPath(rel)
		if !ok {
			target = filepath.Join("testdata", filepath.FromSlash(rel))
		}
		if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
			t.Fatalf("creating golden directory: %v", err)
		}
		if err := os.WriteFile(target, actual, 0o644); err != nil {
			t.Fatalf("writing golden file %s: %v", rel, err)
		}
		t.Logf("updated golden file %s", target)
		return
	}
	expected := LoadFixtureFile(t, rel)
	if string(expected) != string(actual) {
		t.Errorf("output differs from %s\n--- want\n%s\n--- got\n%s", rel, expected, actual)
	}
}
