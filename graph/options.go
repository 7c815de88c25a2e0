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
package graph

import (
	"context"
	"fmt"

	"bennypowers.dev/fascio/logger"
)

// SideEffects is the side-effect policy of a module.
type SideEffects uint8

const (
	// SideEffectsUnset defers to the build-wide policy.
	SideEffectsUnset SideEffects = iota
	SideEffectsTrue
	SideEffectsFalse
	// SideEffectsNoTreeshake keeps every statement of the module.
	SideEffectsNoTreeshake
)

func (s SideEffects) String() string {
	switch s {
	case SideEffectsTrue:
		return "true"
	case SideEffectsFalse:
		return "false"
	case SideEffectsNoTreeshake:
		return "no-treeshake"
	default:
		return "unset"
	}
}

// PreserveSignature controls how closely an entry chunk must reproduce the
// export signature of its entry module.
type PreserveSignature uint8

const (
	PreserveStrict PreserveSignature = iota
	PreserveAllowExtension
	PreserveExportsOnly
	PreserveFalse
)

// ParsePreserveSignature parses the option spelling used in configuration.
func ParsePreserveSignature(s string) (PreserveSignature, error) {
	switch s {
	case "", "strict":
		return PreserveStrict, nil
	case "allow-extension":
		return PreserveAllowExtension, nil
	case "exports-only":
		return PreserveExportsOnly, nil
	case "false":
		return PreserveFalse, nil
	}
	return PreserveStrict, fmt.Errorf("invalid preserveEntrySignatures value %q", s)
}

func (p PreserveSignature) String() string {
	switch p {
	case PreserveAllowExtension:
		return "allow-extension"
	case PreserveExportsOnly:
		return "exports-only"
	case PreserveFalse:
		return "false"
	default:
		return "strict"
	}
}

// ResolvedID is the answer of a Resolver.
type ResolvedID struct {
	ID          string
	External    bool
	SideEffects SideEffects
}

// Resolver maps an import specifier to a module id. A nil result with a nil
// error means the specifier could not be resolved.
type Resolver interface {
	Resolve(ctx context.Context, specifier, importer string) (*ResolvedID, error)
}

// SourceLoader loads the source text of a resolved module id.
type SourceLoader interface {
	Load(ctx context.Context, id string) ([]byte, error)
}

// Entry is a user-declared entry point.
type Entry struct {
	Name      string
	Specifier string
}

// Options configures graph construction and tree-shaking.
type Options struct {
	Resolver Resolver
	Loader   SourceLoader
	Log      logger.Log

	// Treeshake disables dead-code elimination when false.
	Treeshake bool
	// ModuleSideEffects returns the policy for a module the resolver left
	// unset. Nil means every module has side effects.
	ModuleSideEffects        func(id string, external bool) SideEffects
	PropertyReadSideEffects  bool
	TryCatchDeoptimization   bool
	UnknownGlobalSideEffects bool
	// Annotations honors /*#__PURE__*/ comments.
	Annotations bool
	// ManualPureFunctions lists dotted names whose calls are free of side
	// effects, such as "styled.div".
	ManualPureFunctions []string
	// SyntheticNamedExports returns the export whose properties stand in for
	// missing named exports of a module, or "".
	SyntheticNamedExports   func(id string) string
	PreserveEntrySignatures PreserveSignature
	// MaxParallelFileOps bounds concurrent loads. Zero means 20.
	MaxParallelFileOps int
}

// DefaultOptions returns the conservative defaults.
func DefaultOptions() Options {
	return Options{
		Log:                      logger.NewDeferLog(),
		Treeshake:                true,
		PropertyReadSideEffects:  true,
		TryCatchDeoptimization:   true,
		UnknownGlobalSideEffects: true,
		Annotations:              true,
		PreserveEntrySignatures:  PreserveExportsOnly,
		MaxParallelFileOps:       20,
	}
}
