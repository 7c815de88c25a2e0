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
package version

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/spf13/cobra"

	"bennypowers.dev/fascio/internal/version"
)

func TestWrite(t *testing.T) {
	info := version.Info{Version: "v1.0.0", GitCommit: "abc1234", BuildTime: "2026-01-02", GoVersion: "go1.25.5"}

	var buf bytes.Buffer
	if err := write(&buf, info, "text", false); err != nil {
		t.Fatal(err)
	}
	if buf.String() != "fascio v1.0.0\n" {
		t.Errorf("got %q", buf.String())
	}

	buf.Reset()
	if err := write(&buf, info, "text", true); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(buf.String(), "commit: abc1234") || !strings.Contains(buf.String(), "go:     go1.25.5") {
		t.Errorf("verbose output missing details: %q", buf.String())
	}

	buf.Reset()
	if err := write(&buf, info, "json", false); err != nil {
		t.Fatal(err)
	}
	var decoded version.Info
	if err := json.Unmarshal(buf.Bytes(), &decoded); err != nil {
		t.Fatal(err)
	}
	if decoded != info {
		t.Errorf("got %+v, want %+v", decoded, info)
	}

	if err := write(&buf, info, "yaml", false); err == nil {
		t.Error("expected an error for an unknown format")
	}
}

func TestRunReportsFlagErrors(t *testing.T) {
	cmd := &cobra.Command{Use: "version"}
	err := run(cmd, nil)
	if err == nil || !strings.Contains(err.Error(), "error reading verbose flag") {
		t.Fatalf("got %v, want a verbose flag error", err)
	}

	cmd.Flags().Bool("verbose", false, "")
	err = run(cmd, nil)
	if err == nil || !strings.Contains(err.Error(), "error reading format flag") {
		t.Fatalf("got %v, want a format flag error", err)
	}
}

func TestRunWritesVersion(t *testing.T) {
	cmd := &cobra.Command{Use: "version"}
	cmd.Flags().Bool("verbose", false, "")
	cmd.Flags().String("format", "text", "")
	var buf bytes.Buffer
	cmd.SetOut(&buf)
	if err := run(cmd, nil); err != nil {
		t.Fatal(err)
	}
	if !strings.HasPrefix(buf.String(), "fascio ") {
		t.Errorf("got %q", buf.String())
	}
}
