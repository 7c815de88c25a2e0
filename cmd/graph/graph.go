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
// Package graph provides the graph command for fascio.
package graph

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"bennypowers.dev/fascio/build"
	"bennypowers.dev/fascio/fs"
	modgraph "bennypowers.dev/fascio/graph"
	"bennypowers.dev/fascio/internal/cliconfig"
	"bennypowers.dev/fascio/internal/output"
)

// Cmd is the graph cobra command that prints the module graph in
// execution order.
var Cmd = &cobra.Command{
	Use:   "graph [entry...]",
	Short: "Print the module graph in execution order",
	Long: `Graph loads the module graph of the entries and prints every module in
the order it executes, with its static and dynamic imports. Circular
dependencies are listed after the modules.`,
	Example: `  fascio graph src/index.js
  fascio graph --format json`,
	RunE: run,
}

func init() {
	Cmd.Flags().StringP("format", "f", "text", "Output format (text, json)")
}

// Report is the JSON form of the graph.
type Report struct {
	Modules   []ModuleReport `json:"modules"`
	Externals []string       `json:"externals,omitempty"`
	Cycles    [][]string     `json:"cycles,omitempty"`
}

// ModuleReport describes one module.
type ModuleReport struct {
	ID             string   `json:"id"`
	ExecutionIndex int      `json:"executionIndex"`
	Entry          bool     `json:"entry,omitempty"`
	Included       bool     `json:"included"`
	Imports        []string `json:"imports,omitempty"`
	DynamicImports []string `json:"dynamicImports,omitempty"`
}

func run(cmd *cobra.Command, args []string) error {
	format, err := cmd.Flags().GetString("format")
	if err != nil {
		return fmt.Errorf("error reading format flag: %w", err)
	}
	if format != "text" && format != "json" {
		return fmt.Errorf("invalid format %q: must be 'text' or 'json'", format)
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

	report := NewReport(res.Graph)
	if format == "json" {
		data, err := json.MarshalIndent(report, "", "  ")
		if err != nil {
			return fmt.Errorf("error marshaling graph: %w", err)
		}
		return output.Write(osfs, cmd.OutOrStdout(), string(data))
	}
	return output.Write(osfs, cmd.OutOrStdout(), report.String())
}

// NewReport summarizes g.
func NewReport(g *modgraph.Graph) *Report {
	r := &Report{Modules: []ModuleReport{}, Cycles: g.Cycles()}
	for _, m := range g.Modules() {
		mr := ModuleReport{
			ID:             m.ModuleID(),
			ExecutionIndex: m.ExecutionIndex(),
			Entry:          m.IsEntry(),
			Included:       m.IsIncluded(),
		}
		for _, dep := range m.Dependencies() {
			mr.Imports = append(mr.Imports, dep.ModuleID())
		}
		for _, d := range m.DynamicImports() {
			switch {
			case d.Resolution != nil:
				mr.DynamicImports = append(mr.DynamicImports, d.Resolution.ModuleID())
			case d.Specifier != "":
				mr.DynamicImports = append(mr.DynamicImports, d.Specifier)
			}
		}
		r.Modules = append(r.Modules, mr)
	}
	for _, e := range g.ExternalModules() {
		r.Externals = append(r.Externals, e.ModuleID())
	}
	return r
}

func (r *Report) String() string {
	var sb strings.Builder
	for _, m := range r.Modules {
		fmt.Fprintf(&sb, "%3d %s", m.ExecutionIndex, m.ID)
		var tags []string
		if m.Entry {
			tags = append(tags, "entry")
		}
		if !m.Included {
			tags = append(tags, "excluded")
		}
		if len(tags) > 0 {
			fmt.Fprintf(&sb, " (%s)", strings.Join(tags, ", "))
		}
		sb.WriteByte('\n')
		for _, id := range m.Imports {
			fmt.Fprintf(&sb, "      import  %s\n", id)
		}
		for _, id := range m.DynamicImports {
			fmt.Fprintf(&sb, "      dynamic %s\n", id)
		}
	}
	if len(r.Externals) > 0 {
		sb.WriteString("\nexternal\n")
		for _, id := range r.Externals {
			fmt.Fprintf(&sb, "      %s\n", id)
		}
	}
	if len(r.Cycles) > 0 {
		sb.WriteString("\ncircular\n")
		for _, c := range r.Cycles {
			fmt.Fprintf(&sb, "      %s\n", strings.Join(c, " -> "))
		}
	}
	return sb.String()
}
