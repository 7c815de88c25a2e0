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
	"bennypowers.dev/fascio/ast"
	"bennypowers.dev/fascio/pathtrack"
)

// InteractionKind is the way a value is used at a path.
type InteractionKind uint8

const (
	Accessed InteractionKind = iota
	Assigned
	Called
)

// Interaction describes a use of a value at some path.
type Interaction struct {
	Kind InteractionKind
	// New is set for constructor calls.
	New bool
	// This is the receiver of a method call.
	This Entity
	// Args are the call arguments.
	Args []Entity
	// Site is the call node. It discriminates call tracking so two call
	// sites of the same function are analyzed separately.
	Site ast.Node
}

var (
	accessInteraction = &Interaction{Kind: Accessed}
	assignInteraction = &Interaction{Kind: Assigned}
	callInteraction   = &Interaction{Kind: Called}
)

// Deoptimizable is anything that caches a conclusion drawn from another
// entity and must drop it when that entity changes.
type Deoptimizable interface {
	DeoptimizeCache()
}

// Entity is the capability set the analysis queries on variables and
// expressions alike.
type Entity interface {
	// DeoptimizePath records that the value at path may change in ways the
	// analysis cannot follow. An empty path means the binding itself.
	DeoptimizePath(path pathtrack.ObjectPath)
	// LiteralValueAtPath returns the known value at path. The origin is
	// notified through DeoptimizeCache if the answer becomes stale.
	LiteralValueAtPath(path pathtrack.ObjectPath, tracker *pathtrack.PathTracker, origin Deoptimizable) LiteralValue
	// ReturnExpressionAtPath returns what calling the value at path yields.
	ReturnExpressionAtPath(path pathtrack.ObjectPath, tracker *pathtrack.PathTracker, origin Deoptimizable) Entity
	// HasEffectsOnInteraction reports whether using the value at path in
	// the given way can have an observable effect.
	HasEffectsOnInteraction(path pathtrack.ObjectPath, in *Interaction, ctx *EffectsContext) bool
}

type ignoreFlags struct {
	breaks      bool
	continues   bool
	labels      map[string]bool
	returnYield bool
	this        bool
}

// EffectsContext carries the recursion trackers and control-flow state of
// one effect query.
type EffectsContext struct {
	accessed     *pathtrack.PathTracker
	assigned     *pathtrack.PathTracker
	called       *pathtrack.DiscriminatedPathTracker
	instantiated *pathtrack.DiscriminatedPathTracker

	brokenFlow     bool
	hasBreak       bool
	hasContinue    bool
	ignore         ignoreFlags
	includedLabels map[string]bool
	replacedThis   map[Variable]Entity
}

func newEffectsContext() *EffectsContext {
	return &EffectsContext{
		accessed:       pathtrack.NewPathTracker(),
		assigned:       pathtrack.NewPathTracker(),
		called:         pathtrack.NewDiscriminatedPathTracker(),
		instantiated:   pathtrack.NewDiscriminatedPathTracker(),
		ignore:         ignoreFlags{labels: map[string]bool{}},
		includedLabels: map[string]bool{},
		replacedThis:   map[Variable]Entity{},
	}
}

// InclusionContext carries control-flow state while including a tree.
type InclusionContext struct {
	brokenFlow     bool
	hasBreak       bool
	hasContinue    bool
	includedLabels map[string]bool
}

func newInclusionContext() *InclusionContext {
	return &InclusionContext{includedLabels: map[string]bool{}}
}

// unknownEntity is a value nothing is known about.
type unknownEntity struct{}

// UnknownEntity is the conservative answer to every query.
var UnknownEntity Entity = unknownEntity{}

func (unknownEntity) DeoptimizePath(pathtrack.ObjectPath) {}

func (unknownEntity) LiteralValueAtPath(pathtrack.ObjectPath, *pathtrack.PathTracker, Deoptimizable) LiteralValue {
	return Unknown
}

func (unknownEntity) ReturnExpressionAtPath(pathtrack.ObjectPath, *pathtrack.PathTracker, Deoptimizable) Entity {
	return UnknownEntity
}

func (unknownEntity) HasEffectsOnInteraction(pathtrack.ObjectPath, *Interaction, *EffectsContext) bool {
	return true
}

// valueEntity is a primitive with a known value.
type valueEntity struct {
	value LiteralValue
}

var undefinedEntity Entity = valueEntity{Undefined}

func (valueEntity) DeoptimizePath(pathtrack.ObjectPath) {}

func (v valueEntity) LiteralValueAtPath(path pathtrack.ObjectPath, _ *pathtrack.PathTracker, _ Deoptimizable) LiteralValue {
	if len(path) == 0 {
		return v.value
	}
	if s, ok := v.value.(string); ok && len(path) == 1 && path[0] == "length" {
		return float64(len([]rune(s)))
	}
	return Unknown
}

func (valueEntity) ReturnExpressionAtPath(pathtrack.ObjectPath, *pathtrack.PathTracker, Deoptimizable) Entity {
	return UnknownEntity
}

func (v valueEntity) HasEffectsOnInteraction(path pathtrack.ObjectPath, in *Interaction, _ *EffectsContext) bool {
	if nullish, _ := isNullish(v.value); nullish {
		// Any property use of null or undefined throws.
		return in.Kind != Accessed || len(path) > 0
	}
	switch in.Kind {
	case Accessed:
		return len(path) > 1
	case Called:
		if _, ok := v.value.(string); ok {
			return len(path) != 1 || !pureStringMethods[path[0]]
		}
		return true
	}
	// Assigning to properties of primitives is a no-op in sloppy mode and a
	// TypeError in modules.
	return true
}

var pureStringMethods = map[string]bool{
	"at": true, "charAt": true, "charCodeAt": true, "codePointAt": true, "concat": true,
	"endsWith": true, "includes": true, "indexOf": true, "lastIndexOf": true,
	"localeCompare": true, "normalize": true, "padEnd": true, "padStart": true,
	"repeat": true, "slice": true, "split": true, "startsWith": true, "substr": true,
	"substring": true, "toLocaleLowerCase": true, "toLocaleUpperCase": true,
	"toLowerCase": true, "toString": true, "toUpperCase": true, "trim": true,
	"trimEnd": true, "trimStart": true, "valueOf": true,
}
