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
package output

import (
	"bytes"
	"testing"

	"github.com/spf13/viper"

	"bennypowers.dev/fascio/internal/mapfs"
)

func TestWriteStdout(t *testing.T) {
	viper.Reset()
	var buf bytes.Buffer
	if err := Write(mapfs.New(), &buf, "main.js"); err != nil {
		t.Fatal(err)
	}
	if got := buf.String(); got != "main.js\n" {
		t.Errorf("got %q", got)
	}
}

func TestWriteFile(t *testing.T) {
	viper.Reset()
	t.Cleanup(viper.Reset)
	viper.Set("outFile", "/out/manifest.json")
	fsys := mapfs.New()
	var buf bytes.Buffer
	if err := Write(fsys, &buf, "{}\n"); err != nil {
		t.Fatal(err)
	}
	if buf.Len() != 0 {
		t.Errorf("expected nothing on stdout, got %q", buf.String())
	}
	data, err := fsys.ReadFile("/out/manifest.json")
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != "{}\n" {
		t.Errorf("got %q", data)
	}
}
