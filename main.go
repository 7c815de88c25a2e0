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
// Command fascio tree-shakes ES module graphs and splits them into chunks.
package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime/pprof"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"bennypowers.dev/fascio/cmd/bundle"
	"bennypowers.dev/fascio/cmd/graph"
	"bennypowers.dev/fascio/cmd/version"
	"bennypowers.dev/fascio/config"
)

var cpuprofile string

var rootCmd = &cobra.Command{
	Use:   "fascio",
	Short: "Tree-shake ES module graphs and split them into chunks",
	Long: `fascio loads an ES module graph, orders it for execution, removes the code
nothing uses and partitions the rest into chunks.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		root, err := filepath.Abs(viper.GetString("dir"))
		if err != nil {
			return fmt.Errorf("invalid root directory: %w", err)
		}
		if err := config.LoadEnv(root); err != nil {
			return err
		}
		return profile.start(cpuprofile)
	},
	PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
		return profile.stop()
	},
}

// profile is the CPU profile of the running command, if any.
var profile cpuProfile

type cpuProfile struct {
	file *os.File
}

func (p *cpuProfile) start(name string) error {
	if name == "" {
		return nil
	}
	f, err := os.Create(name)
	if err != nil {
		return fmt.Errorf("could not create CPU profile: %w", err)
	}
	if err := pprof.StartCPUProfile(f); err != nil {
		return errors.Join(fmt.Errorf("could not start CPU profile: %w", err), f.Close())
	}
	p.file = f
	return nil
}

func (p *cpuProfile) stop() error {
	if p.file == nil {
		return nil
	}
	pprof.StopCPUProfile()
	f := p.file
	p.file = nil
	if err := f.Close(); err != nil {
		return fmt.Errorf("closing CPU profile: %w", err)
	}
	return nil
}

func init() {
	flags := rootCmd.PersistentFlags()
	flags.StringP("root", "r", ".", "Project directory")
	flags.StringP("output", "o", "", "Output file (default: stdout)")
	flags.StringP("config", "c", "", "Config file (default: <root>/fascio.config.{yaml,json,toml})")
	flags.String("log-level", "warn", "Diagnostics level on stderr (debug, info, warn, error)")
	flags.StringSlice("external", nil, "Module ids or glob patterns to leave external (can be repeated)")
	flags.StringSlice("conditions", nil, "Export condition priority (e.g., production,browser,import,default)")
	flags.Bool("remote", false, "Load http(s) imports instead of leaving them external")
	flags.StringVar(&cpuprofile, "cpuprofile", "", "Write CPU profile to file")

	_ = viper.BindPFlag("dir", flags.Lookup("root"))
	_ = viper.BindPFlag("outFile", flags.Lookup("output"))
	_ = viper.BindPFlag("config", flags.Lookup("config"))
	_ = viper.BindPFlag("logLevel", flags.Lookup("log-level"))
	_ = viper.BindPFlag("external", flags.Lookup("external"))
	_ = viper.BindPFlag("conditions", flags.Lookup("conditions"))
	_ = viper.BindPFlag("remote", flags.Lookup("remote"))
	_ = viper.BindEnv("logLevel", config.EnvPrefix+"_LOG_LEVEL")

	rootCmd.AddCommand(bundle.Cmd)
	rootCmd.AddCommand(graph.Cmd)
	rootCmd.AddCommand(version.Cmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
