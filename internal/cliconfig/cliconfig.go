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
// Package cliconfig turns the flags shared by fascio commands into build
// options and a logger.
package cliconfig

import (
	"fmt"
	"io"
	"log/slog"
	"path/filepath"

	"github.com/spf13/viper"

	"bennypowers.dev/fascio/config"
)

// Options loads the configuration of the project named by --root. Entries
// given as arguments replace the configured input.
func Options(args []string) (*config.Options, error) {
	root, err := filepath.Abs(viper.GetString("dir"))
	if err != nil {
		return nil, fmt.Errorf("invalid root directory: %w", err)
	}
	opts, err := config.Load(viper.GetViper(), root, viper.GetString("config"))
	if err != nil {
		return nil, err
	}
	if len(args) > 0 {
		opts.Input = args
	}
	return opts, nil
}

// Logger returns a text logger on w at the --log-level.
func Logger(w io.Writer) (*slog.Logger, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(viper.GetString("logLevel"))); err != nil {
		return nil, fmt.Errorf("invalid log level %q: %w", viper.GetString("logLevel"), err)
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level})), nil
}
