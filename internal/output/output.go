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
// Package output provides shared output utilities for fascio CLI commands.
package output

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/viper"

	"bennypowers.dev/fascio/fs"
)

// Write prints text to w, or writes it to the file named by the --output
// flag when one is set.
func Write(fsys fs.FileSystem, w io.Writer, text string) error {
	if !strings.HasSuffix(text, "\n") {
		text += "\n"
	}
	if outputPath := viper.GetString("outFile"); outputPath != "" {
		return fsys.WriteFile(outputPath, []byte(text), 0644)
	}
	_, err := fmt.Fprint(w, text)
	return err
}
