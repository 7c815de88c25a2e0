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
// Package bundle provides the bundle command for fascio.
package bundle

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"bennypowers.dev/fascio/build"
	"bennypowers.dev/fascio/fs"
	"bennypowers.dev/fascio/internal/cliconfig"
	"bennypowers.dev/fascio/internal/output"
)

// Cmd is the bundle cobra command that tree-shakes the entries and prints
// the resulting chunks.
var Cmd = &cobra.Command{
	Use:   "bundle [entry...]",
	Short: "Tree-shake entries and assign modules to chunks",
	Long: `Bundle loads the module graph of the entries, removes unused code and
partitions the remaining modules into chunks.

Entries are files, glob patterns or HTML pages relative to --root. Without
arguments the input list of fascio.config is used.`,
	Example: `  # Bundle one entry and print the chunk manifest
  fascio bundle src/index.js

  # Every page, with shared code split out
  fascio bundle 'src/pages/*.js' --format json

  # Preview the code each chunk keeps
  fascio bundle src/index.js --emit-code

  # CommonJS output with named exports
  fascio bundle src/index.js --output-format cjs --exports named`,
	PreRunE: bindFlags,
	RunE:    run,
}

func init() {
	Cmd.Flags().StringP("format", "f", "text", "Manifest format (text, json)")
	Cmd.Flags().Bool("emit-code", false, "Print the statements kept in each chunk after the manifest")
	Cmd.Flags().String("output-format", "es", "Target module format (es, cjs, amd, iife, umd, system)")
	Cmd.Flags().String("exports", "auto", "Export mode of entry chunks (auto, default, named, none)")
	Cmd.Flags().Bool("minify-internal-exports", false, "Use short names for exports between chunks")
	Cmd.Flags().String("preserve-entry-signatures", "exports-only", "Entry signature policy (strict, allow-extension, exports-only, false)")
	Cmd.Flags().Bool("treeshake", true, "Remove unused code")
}

// bindFlags binds the build flags when the command runs, so commands
// sharing keys do not overwrite each other's bindings.
func bindFlags(cmd *cobra.Command, args []string) error {
	flags := cmd.Flags()
	return errors.Join(
		viper.BindPFlag("output.format", flags.Lookup("output-format")),
		viper.BindPFlag("output.exports", flags.Lookup("exports")),
		viper.BindPFlag("output.minifyInternalExports", flags.Lookup("minify-internal-exports")),
		viper.BindPFlag("preserveEntrySignatures", flags.Lookup("preserve-entry-signatures")),
		viper.BindPFlag("treeshake.enabled", flags.Lookup("treeshake")),
	)
}

func run(cmd *cobra.Command, args []string) error {
	format, err := cmd.Flags().GetString("format")
	if err != nil {
		return fmt.Errorf("error reading format flag: %w", err)
	}
	if format != "text" && format != "json" {
		return fmt.Errorf("invalid format %q: must be 'text' or 'json'", format)
	}
	emitCode, err := cmd.Flags().GetBool("emit-code")
	if err != nil {
		return fmt.Errorf("error reading emit-code flag: %w", err)
	}
	if emitCode && format == "json" {
		return errors.New("--emit-code cannot be combined with --format json")
	}

	opts, err := cliconfig.Options(args)
	if err != nil {
		return err
	}
	logger, err := cliconfig.Logger(cmd.ErrOrStderr())
	if err != nil {
		return err
	}
	osfs := fs.NewOSFileSystem()
	res, err := build.Build(cmd.Context(), opts, build.Host{FS: osfs, Logger: logger})
	if err != nil {
		return err
	}

	manifest, err := res.Manifest().Format(format)
	if err != nil {
		return err
	}
	if !emitCode {
		return output.Write(osfs, cmd.OutOrStdout(), manifest)
	}
	var sb strings.Builder
	sb.WriteString(strings.TrimRight(manifest, "\n"))
	sb.WriteString("\n\n")
	if err := res.Preview(&sb); err != nil {
		return err
	}
	return output.Write(osfs, cmd.OutOrStdout(), sb.String())
}
