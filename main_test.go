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
package main

import (
	"bytes"
	"encoding/json"
	"os"
	"os/exec"
	"path/filepath"
	"slices"
	"strings"
	"testing"
)

func TestMain(m *testing.M) {
	// Build the binary before running tests
	wd := mustGetwd()
	cmd := exec.Command("go", "build", "-o", "fascio_test", ".")
	cmd.Dir = wd
	if out, err := cmd.CombinedOutput(); err != nil {
		panic("failed to build test binary: " + err.Error() + "\n" + string(out))
	}
	code := m.Run()
	_ = os.Remove(filepath.Join(wd, "fascio_test"))
	os.Exit(code)
}

func mustGetwd() string {
	wd, err := os.Getwd()
	if err != nil {
		panic(err)
	}
	return wd
}

func runCLI(t *testing.T, args ...string) (stdout, stderr string, exitCode int) {
	t.Helper()
	binary := filepath.Join(mustGetwd(), "fascio_test")
	cmd := exec.Command(binary, args...)

	var stdoutBuf, stderrBuf bytes.Buffer
	cmd.Stdout = &stdoutBuf
	cmd.Stderr = &stderrBuf

	err := cmd.Run()
	stdout = stdoutBuf.String()
	stderr = stderrBuf.String()

	if err != nil {
		if exitErr, ok := err.(*exec.ExitError); ok {
			exitCode = exitErr.ExitCode()
		} else {
			t.Fatalf("Failed to run CLI: %v", err)
		}
	}

	return stdout, stderr, exitCode
}

type manifest struct {
	Chunks []struct {
		FileName       string   `json:"fileName"`
		IsEntry        bool     `json:"isEntry"`
		IsDynamicEntry bool     `json:"isDynamicEntry"`
		Modules        []string `json:"modules"`
	} `json:"chunks"`
}

func parseManifest(t *testing.T, data string) manifest {
	t.Helper()
	var m manifest
	if err := json.Unmarshal([]byte(data), &m); err != nil {
		t.Fatalf("Failed to parse JSON output: %v\nstdout: %s", err, data)
	}
	return m
}

func TestBundleFromConfig(t *testing.T) {
	fixtureDir := filepath.Join("testdata", "cli", "app")

	stdout, stderr, code := runCLI(t, "bundle", "--root", fixtureDir)
	if code != 0 {
		t.Fatalf("Expected exit code 0, got %d\nstderr: %s", code, stderr)
	}

	for _, want := range []string{
		"main.js (entry)\n",
		"lazy.js (dynamic)\n",
		`import  { html } from "lit"`,
		"export  { load }",
		`import() "lazy.js"`,
	} {
		if !strings.Contains(stdout, want) {
			t.Errorf("Expected output to contain %q, got:\n%s", want, stdout)
		}
	}
}

func TestBundleJSONFormat(t *testing.T) {
	fixtureDir := filepath.Join("testdata", "cli", "pages")

	stdout, stderr, code := runCLI(t, "bundle", "src/home.js", "src/about.js", "--root", fixtureDir, "--format", "json")
	if code != 0 {
		t.Fatalf("Expected exit code 0, got %d\nstderr: %s", code, stderr)
	}

	m := parseManifest(t, stdout)
	var names []string
	for _, c := range m.Chunks {
		names = append(names, c.FileName)
	}
	if want := []string{"shared.js", "home.js", "about.js"}; !slices.Equal(names, want) {
		t.Errorf("Expected chunks %v, got %v", want, names)
	}
	if m.Chunks[0].IsEntry {
		t.Error("Expected the shared chunk not to be an entry")
	}
}

func TestBundleEmitCode(t *testing.T) {
	fixtureDir := filepath.Join("testdata", "cli", "app")

	stdout, stderr, code := runCLI(t, "bundle", "--root", fixtureDir, "--emit-code")
	if code != 0 {
		t.Fatalf("Expected exit code 0, got %d\nstderr: %s", code, stderr)
	}
	if !strings.Contains(stdout, "document.body.append(template);") {
		t.Errorf("Expected used code in preview, got:\n%s", stdout)
	}
	if strings.Contains(stdout, "dropped by tree-shaking") {
		t.Errorf("Expected unused function to be removed, got:\n%s", stdout)
	}
}

func TestBundleOutputFile(t *testing.T) {
	fixtureDir := filepath.Join("testdata", "cli", "app")
	tmpFile := filepath.Join(t.TempDir(), "manifest.json")

	stdout, stderr, code := runCLI(t, "bundle", "--root", fixtureDir, "--format", "json", "--output", tmpFile)
	if code != 0 {
		t.Fatalf("Expected exit code 0, got %d\nstderr: %s", code, stderr)
	}
	if stdout != "" {
		t.Errorf("Expected no stdout when writing to file, got: %s", stdout)
	}

	content, err := os.ReadFile(tmpFile)
	if err != nil {
		t.Fatalf("Failed to read output file: %v", err)
	}
	m := parseManifest(t, string(content))
	if len(m.Chunks) != 2 {
		t.Errorf("Expected 2 chunks, got %d", len(m.Chunks))
	}
}

func TestBundleInvalidOutputFormat(t *testing.T) {
	fixtureDir := filepath.Join("testdata", "cli", "app")

	_, stderr, code := runCLI(t, "bundle", "--root", fixtureDir, "--output-format", "es2020")
	if code == 0 {
		t.Fatal("Expected non-zero exit code for invalid output format")
	}
	if !strings.Contains(stderr, "es2020") {
		t.Errorf("Expected error to name the invalid format, got: %s", stderr)
	}
}

func TestBundleMissingEntry(t *testing.T) {
	fixtureDir := filepath.Join("testdata", "cli", "app")

	_, stderr, code := runCLI(t, "bundle", "src/nope.js", "--root", fixtureDir)
	if code == 0 {
		t.Fatal("Expected non-zero exit code for a missing entry")
	}
	if !strings.Contains(stderr, "nope.js") {
		t.Errorf("Expected error to name the entry, got: %s", stderr)
	}
}

func TestGraphCycle(t *testing.T) {
	fixtureDir := filepath.Join("testdata", "cli", "cycle")

	stdout, stderr, code := runCLI(t, "graph", "main.js", "--root", fixtureDir)
	if code != 0 {
		t.Fatalf("Expected exit code 0, got %d\nstderr: %s", code, stderr)
	}
	if !strings.Contains(stdout, "circular\n") {
		t.Errorf("Expected a cycle listing, got:\n%s", stdout)
	}
	if !strings.Contains(stderr, "code=CIRCULAR_DEPENDENCY") {
		t.Errorf("Expected a circular dependency warning on stderr, got: %s", stderr)
	}

	// b.js runs first: it is the deepest module of the cycle.
	lines := strings.Split(stdout, "\n")
	if !strings.HasSuffix(lines[0], "b.js") {
		t.Errorf("Expected b.js to execute first, got %q", lines[0])
	}
}

func TestGraphJSONFormat(t *testing.T) {
	fixtureDir := filepath.Join("testdata", "cli", "cycle")

	stdout, stderr, code := runCLI(t, "graph", "main.js", "--root", fixtureDir, "--format", "json", "--log-level", "error")
	if code != 0 {
		t.Fatalf("Expected exit code 0, got %d\nstderr: %s", code, stderr)
	}
	if stderr != "" {
		t.Errorf("Expected warnings to be hidden at error level, got: %s", stderr)
	}

	var report struct {
		Modules []struct {
			ID    string `json:"id"`
			Entry bool   `json:"entry"`
		} `json:"modules"`
		Cycles [][]string `json:"cycles"`
	}
	if err := json.Unmarshal([]byte(stdout), &report); err != nil {
		t.Fatalf("Failed to parse JSON output: %v\nstdout: %s", err, stdout)
	}
	if len(report.Modules) != 3 {
		t.Fatalf("Expected 3 modules, got %d", len(report.Modules))
	}
	if !report.Modules[2].Entry {
		t.Error("Expected main.js to be the last module and an entry")
	}
	if len(report.Cycles) != 1 || len(report.Cycles[0]) != 3 {
		t.Errorf("Expected one cycle of two modules, got %v", report.Cycles)
	}
}

func TestVersion(t *testing.T) {
	stdout, stderr, code := runCLI(t, "version")
	if code != 0 {
		t.Fatalf("Expected exit code 0, got %d\nstderr: %s", code, stderr)
	}
	if !strings.HasPrefix(stdout, "fascio ") {
		t.Errorf("Expected version output to start with 'fascio ', got: %s", stdout)
	}

	stdout, _, code = runCLI(t, "version", "--format", "json")
	if code != 0 {
		t.Fatalf("Expected exit code 0, got %d", code)
	}
	var info map[string]any
	if err := json.Unmarshal([]byte(stdout), &info); err != nil {
		t.Fatalf("Failed to parse JSON output: %v", err)
	}
	if info["version"] == nil {
		t.Error("Expected version field")
	}
}
