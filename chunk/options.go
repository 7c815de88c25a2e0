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
package chunk

import (
	"fmt"
	"slices"
	"strings"

	"bennypowers.dev/fascio/logger"
)

// Format is the module format chunks are rendered in. It only affects which
// export shapes are warned about.
type Format string

const (
	FormatES     Format = "es"
	FormatCJS    Format = "cjs"
	FormatAMD    Format = "amd"
	FormatIIFE   Format = "iife"
	FormatUMD    Format = "umd"
	FormatSystem Format = "system"
)

var formatAliases = map[string]Format{
	"esm":      FormatES,
	"module":   FormatES,
	"commonjs": FormatCJS,
	"systemjs": FormatSystem,
}

// ParseFormat accepts the format names and their common aliases.
func ParseFormat(s string) (Format, error) {
	if s == "" {
		return FormatES, nil
	}
	f := Format(strings.ToLower(s))
	if alias, ok := formatAliases[string(f)]; ok {
		return alias, nil
	}
	if slices.Contains([]Format{FormatES, FormatCJS, FormatAMD, FormatIIFE, FormatUMD, FormatSystem}, f) {
		return f, nil
	}
	return "", fmt.Errorf("invalid output format %q", s)
}

// ExportMode is how an entry chunk exposes its exports.
type ExportMode string

const (
	ExportsAuto    ExportMode = "auto"
	ExportsDefault ExportMode = "default"
	ExportsNamed   ExportMode = "named"
	ExportsNone    ExportMode = "none"
)

// ParseExportMode parses the output.exports option.
func ParseExportMode(s string) (ExportMode, error) {
	switch m := ExportMode(s); m {
	case "":
		return ExportsAuto, nil
	case ExportsAuto, ExportsDefault, ExportsNamed, ExportsNone:
		return m, nil
	}
	return "", fmt.Errorf("invalid output.exports value %q", s)
}

// Options configures chunk generation.
type Options struct {
	// ManualChunks returns the chunk alias for a module id, or "" to leave
	// the module to automatic assignment.
	ManualChunks          func(id string) string
	Format                Format
	Exports               ExportMode
	MinifyInternalExports bool
	// Log receives warnings. Zero means the graph's log.
	Log logger.Log
}
