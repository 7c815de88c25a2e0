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

// Variable is a binding: a declared name, an import, a global, or one of the
// synthetic bindings the graph creates for namespaces and default exports.
type Variable interface {
	Entity
	Name() string
	// Owner is the module the binding lives in, nil for globals.
	Owner() ModuleLike
	IsIncluded() bool
	IsReassigned() bool
	// RenderName is the deconflicted name assigned by chunk linking.
	RenderName() string
	SetRenderName(name string)
	include()
}

type variableBase struct {
	name       string
	included   bool
	reassigned bool
	renderName string
}

func (v *variableBase) Name() string       { return v.name }
func (v *variableBase) IsIncluded() bool   { return v.included }
func (v *variableBase) IsReassigned() bool { return v.reassigned }

func (v *variableBase) RenderName() string {
	if v.renderName == "" {
		return v.name
	}
	return v.renderName
}

func (v *variableBase) SetRenderName(name string) { v.renderName = name }

// DeclKind is the syntactic form that declared a local variable.
type DeclKind uint8

const (
	DeclVar DeclKind = iota
	DeclLet
	DeclConst
	DeclFunction
	DeclClass
	DeclParameter
	DeclCatch
	DeclOther
)

func declKindOf(k ast.VarKind) DeclKind {
	switch k {
	case ast.VarLet:
		return DeclLet
	case ast.VarConst:
		return DeclConst
	default:
		return DeclVar
	}
}

// LocalVariable is a binding declared in one of the module's scopes.
type LocalVariable struct {
	variableBase
	module       *Module
	Kind         DeclKind
	declarations []ast.Node
	init         Entity

	dependents   []Deoptimizable
	deoptTracker *pathtrack.PathTracker
}

func newLocalVariable(m *Module, name string, decl ast.Node, init Entity, kind DeclKind) *LocalVariable {
	if init == nil {
		init = UnknownEntity
	}
	v := &LocalVariable{
		variableBase: variableBase{name: name},
		module:       m,
		Kind:         kind,
		init:         init,
		deoptTracker: pathtrack.NewPathTracker(),
	}
	if decl != nil {
		v.declarations = append(v.declarations, decl)
	}
	return v
}

func (v *LocalVariable) Owner() ModuleLike {
	return v.module
}

// Module returns the declaring module.
func (v *LocalVariable) Module() *Module {
	return v.module
}

// Declarations returns the declaring identifiers or statements.
func (v *LocalVariable) Declarations() []ast.Node {
	return v.declarations
}

// addDeclaration merges a redeclaration into the variable. The value is no
// longer known afterwards.
func (v *LocalVariable) addDeclaration(decl ast.Node) {
	v.declarations = append(v.declarations, decl)
	v.markReassigned()
}

func (v *LocalVariable) markReassigned() {
	if v.reassigned {
		return
	}
	v.reassigned = true
	dependents := v.dependents
	v.dependents = nil
	for _, d := range dependents {
		d.DeoptimizeCache()
	}
	v.init.DeoptimizePath(pathtrack.UnknownPath)
}

func (v *LocalVariable) DeoptimizePath(path pathtrack.ObjectPath) {
	if v.reassigned || v.deoptTracker.TrackEntityAtPathAndGetIfTracked(path, v) {
		return
	}
	if len(path) == 0 {
		v.markReassigned()
		return
	}
	v.init.DeoptimizePath(path)
}

func (v *LocalVariable) LiteralValueAtPath(path pathtrack.ObjectPath, tracker *pathtrack.PathTracker, origin Deoptimizable) LiteralValue {
	if v.reassigned || len(path) > MaxPathDepth {
		return Unknown
	}
	return pathtrack.WithTrackedEntityAtPath(tracker, path, v, func() LiteralValue {
		if origin != nil {
			v.dependents = append(v.dependents, origin)
		}
		return v.init.LiteralValueAtPath(path, tracker, origin)
	}, Unknown)
}

func (v *LocalVariable) ReturnExpressionAtPath(path pathtrack.ObjectPath, tracker *pathtrack.PathTracker, origin Deoptimizable) Entity {
	if v.reassigned || len(path) > MaxPathDepth {
		return UnknownEntity
	}
	return pathtrack.WithTrackedEntityAtPath(tracker, path, v, func() Entity {
		if origin != nil {
			v.dependents = append(v.dependents, origin)
		}
		return v.init.ReturnExpressionAtPath(path, tracker, origin)
	}, UnknownEntity)
}

func (v *LocalVariable) HasEffectsOnInteraction(path pathtrack.ObjectPath, in *Interaction, ctx *EffectsContext) bool {
	switch in.Kind {
	case Accessed:
		if len(path) == 0 {
			return false
		}
		if v.reassigned {
			return true
		}
		return !ctx.accessed.TrackEntityAtPathAndGetIfTracked(path, v) &&
			v.init.HasEffectsOnInteraction(path, in, ctx)
	case Assigned:
		if v.included {
			return true
		}
		if len(path) == 0 {
			return false
		}
		if v.reassigned {
			return true
		}
		return !ctx.assigned.TrackEntityAtPathAndGetIfTracked(path, v) &&
			v.init.HasEffectsOnInteraction(path, in, ctx)
	default:
		if v.reassigned {
			return true
		}
		tracker := ctx.called
		if in.New {
			tracker = ctx.instantiated
		}
		return !tracker.TrackEntityAtPathAndGetIfTracked(path, in.Site, v) &&
			v.init.HasEffectsOnInteraction(path, in, ctx)
	}
}

func (v *LocalVariable) include() {
	if v.included {
		return
	}
	v.included = true
	for _, decl := range v.declarations {
		v.module.includeDeclaration(decl)
	}
}

// ParameterVariable is a function parameter or catch binding. Its value is
// never known.
type ParameterVariable struct {
	LocalVariable
}

func newParameterVariable(m *Module, id *ast.EIdentifier, kind DeclKind) *ParameterVariable {
	return &ParameterVariable{LocalVariable: *newLocalVariable(m, id.Name, id, UnknownEntity, kind)}
}

// ThisVariable is the receiver of a function or class body.
type ThisVariable struct {
	LocalVariable
}

func newThisVariable(m *Module) *ThisVariable {
	return &ThisVariable{LocalVariable: *newLocalVariable(m, "this", nil, UnknownEntity, DeclOther)}
}

func (v *ThisVariable) HasEffectsOnInteraction(path pathtrack.ObjectPath, in *Interaction, ctx *EffectsContext) bool {
	if replaced, ok := ctx.replacedThis[v]; ok {
		return replaced.HasEffectsOnInteraction(path, in, ctx)
	}
	return UnknownEntity.HasEffectsOnInteraction(path, in, ctx)
}

// ArgumentsVariable is the implicit arguments object of a function.
type ArgumentsVariable struct {
	LocalVariable
}

func newArgumentsVariable(m *Module) *ArgumentsVariable {
	return &ArgumentsVariable{LocalVariable: *newLocalVariable(m, "arguments", nil, UnknownEntity, DeclOther)}
}

func (v *ArgumentsVariable) HasEffectsOnInteraction(path pathtrack.ObjectPath, in *Interaction, _ *EffectsContext) bool {
	return in.Kind != Accessed || len(path) > 1
}

// GlobalVariable is a name no scope declares.
type GlobalVariable struct {
	variableBase
	graph *Graph
}

func (v *GlobalVariable) Owner() ModuleLike                 { return nil }
func (v *GlobalVariable) DeoptimizePath(pathtrack.ObjectPath) {}
func (v *GlobalVariable) include()                          { v.included = true }

func (v *GlobalVariable) LiteralValueAtPath(path pathtrack.ObjectPath, _ *pathtrack.PathTracker, _ Deoptimizable) LiteralValue {
	if len(path) > 0 {
		return Unknown
	}
	if value, ok := globalLiterals[v.name]; ok {
		return value
	}
	return Unknown
}

func (v *GlobalVariable) ReturnExpressionAtPath(pathtrack.ObjectPath, *pathtrack.PathTracker, Deoptimizable) Entity {
	return UnknownEntity
}

func (v *GlobalVariable) HasEffectsOnInteraction(path pathtrack.ObjectPath, in *Interaction, _ *EffectsContext) bool {
	full := append(pathtrack.ObjectPath{v.name}, path...)
	switch in.Kind {
	case Accessed:
		if len(path) == 0 {
			return v.name != "undefined" && !isKnownGlobal(full)
		}
		return !isKnownGlobal(full[:len(full)-1])
	case Assigned:
		return true
	default:
		info, ok := knownGlobal(full)
		if !ok {
			return true
		}
		if in.New {
			return !info.pureConstruct
		}
		return !info.pureCall
	}
}

// NamespaceVariable is the namespace object of a module, as bound by
// import * as ns.
type NamespaceVariable struct {
	variableBase
	module  *Module
	members map[string]Variable
}

func newNamespaceVariable(m *Module) *NamespaceVariable {
	return &NamespaceVariable{variableBase: variableBase{name: m.name}, module: m}
}

func (v *NamespaceVariable) Owner() ModuleLike { return v.module }

// Module returns the module whose namespace this is.
func (v *NamespaceVariable) Module() *Module { return v.module }

// MemberVariables maps every export name of the module to its variable.
func (v *NamespaceVariable) MemberVariables() map[string]Variable {
	if v.members != nil {
		return v.members
	}
	v.members = map[string]Variable{}
	for _, name := range v.module.memberNames() {
		if variable := v.module.GetVariableForExportName(name); variable != nil {
			v.members[name] = variable
		}
	}
	return v.members
}

func (v *NamespaceVariable) include() {
	if v.included {
		return
	}
	v.included = true
	v.module.IncludeAllExports(true)
}

func (v *NamespaceVariable) DeoptimizePath(path pathtrack.ObjectPath) {
	if len(path) > 1 {
		if member := v.MemberVariables()[path[0]]; member != nil {
			member.DeoptimizePath(path[1:])
		}
	}
}

func (v *NamespaceVariable) LiteralValueAtPath(path pathtrack.ObjectPath, tracker *pathtrack.PathTracker, origin Deoptimizable) LiteralValue {
	if len(path) == 0 {
		return UnknownTruthy
	}
	if member := v.MemberVariables()[path[0]]; member != nil {
		return member.LiteralValueAtPath(path[1:], tracker, origin)
	}
	return Unknown
}

func (v *NamespaceVariable) ReturnExpressionAtPath(path pathtrack.ObjectPath, tracker *pathtrack.PathTracker, origin Deoptimizable) Entity {
	if len(path) == 0 {
		return UnknownEntity
	}
	if member := v.MemberVariables()[path[0]]; member != nil {
		return member.ReturnExpressionAtPath(path[1:], tracker, origin)
	}
	return UnknownEntity
}

func (v *NamespaceVariable) HasEffectsOnInteraction(path pathtrack.ObjectPath, in *Interaction, ctx *EffectsContext) bool {
	if len(path) == 0 {
		return in.Kind != Accessed
	}
	if len(path) == 1 && in.Kind != Called {
		return in.Kind == Assigned
	}
	member := v.MemberVariables()[path[0]]
	return member == nil || member.HasEffectsOnInteraction(path[1:], in, ctx)
}

// SyntheticNamedExportVariable stands for a named export a module does not
// declare but provides as a property of its synthetic namespace export.
type SyntheticNamedExportVariable struct {
	variableBase
	module    *Module
	namespace Variable
}

func (v *SyntheticNamedExportVariable) Owner() ModuleLike { return v.module }

// BaseVariable follows default exports and nested synthetic exports to the
// variable that actually holds the namespace object.
func (v *SyntheticNamedExportVariable) BaseVariable() Variable {
	base := v.namespace
	seen := map[Variable]bool{}
	for !seen[base] {
		seen[base] = true
		switch b := base.(type) {
		case *ExportDefaultVariable:
			original := b.OriginalVariable()
			if original == Variable(b) {
				return base
			}
			base = original
		case *SyntheticNamedExportVariable:
			base = b.namespace
		default:
			return base
		}
	}
	return base
}

func (v *SyntheticNamedExportVariable) include() {
	if v.included {
		return
	}
	v.included = true
	v.module.includeVariableInModule(v.namespace)
}

func (v *SyntheticNamedExportVariable) DeoptimizePath(path pathtrack.ObjectPath) {
	v.namespace.DeoptimizePath(append(pathtrack.ObjectPath{v.name}, path...))
}

func (v *SyntheticNamedExportVariable) LiteralValueAtPath(path pathtrack.ObjectPath, tracker *pathtrack.PathTracker, origin Deoptimizable) LiteralValue {
	return v.namespace.LiteralValueAtPath(append(pathtrack.ObjectPath{v.name}, path...), tracker, origin)
}

func (v *SyntheticNamedExportVariable) ReturnExpressionAtPath(path pathtrack.ObjectPath, tracker *pathtrack.PathTracker, origin Deoptimizable) Entity {
	return v.namespace.ReturnExpressionAtPath(append(pathtrack.ObjectPath{v.name}, path...), tracker, origin)
}

func (v *SyntheticNamedExportVariable) HasEffectsOnInteraction(path pathtrack.ObjectPath, in *Interaction, ctx *EffectsContext) bool {
	return v.namespace.HasEffectsOnInteraction(append(pathtrack.ObjectPath{v.name}, path...), in, ctx)
}

// ExportDefaultVariable is the binding created by export default.
type ExportDefaultVariable struct {
	LocalVariable
	originalID *ast.EIdentifier
	hasID      bool
	original   Variable
}

func newExportDefaultVariable(m *Module, stmt *ast.SExportDefault, init Entity) *ExportDefaultVariable {
	v := &ExportDefaultVariable{LocalVariable: *newLocalVariable(m, "default", stmt, init, DeclOther)}
	switch d := stmt.Decl.(type) {
	case *ast.SFunction:
		if d.Fn.Name != nil {
			v.originalID, v.hasID = d.Fn.Name, true
		}
	case *ast.SClass:
		if d.Class.Name != nil {
			v.originalID, v.hasID = d.Class.Name, true
		}
	}
	if id, ok := stmt.Value.(*ast.EIdentifier); ok {
		v.originalID = id
	}
	return v
}

// AssignedName is the local name the default export aliases, if any.
func (v *ExportDefaultVariable) AssignedName() string {
	if v.originalID == nil {
		return ""
	}
	return v.originalID.Name
}

func (v *ExportDefaultVariable) directOriginal() Variable {
	if v.originalID == nil {
		return nil
	}
	variable := v.module.refs[v.originalID]
	if variable == nil {
		variable = v.module.scope.FindVariable(v.originalID.Name)
	}
	if variable == nil {
		return nil
	}
	if v.hasID {
		return variable
	}
	if variable.IsReassigned() {
		return nil
	}
	if _, synthetic := variable.(*SyntheticNamedExportVariable); synthetic {
		return nil
	}
	if _, global := variable.(*GlobalVariable); global {
		return nil
	}
	return variable
}

// OriginalVariable follows export default chains to the variable importers
// can reference directly. It returns the receiver when the default export is
// an anonymous value or the aliased binding may change.
func (v *ExportDefaultVariable) OriginalVariable() Variable {
	if v.original != nil {
		return v.original
	}
	current := v
	checked := map[*ExportDefaultVariable]bool{}
	for {
		checked[current] = true
		next := current.directOriginal()
		if next == nil {
			v.original = current
			break
		}
		if ed, ok := next.(*ExportDefaultVariable); ok && !checked[ed] {
			current = ed
			continue
		}
		v.original = next
		break
	}
	return v.original
}

// ExportShimVariable stands in for a missing export. Its value is undefined.
type ExportShimVariable struct {
	variableBase
	module *Module
}

func (v *ExportShimVariable) Owner() ModuleLike                 { return v.module }
func (v *ExportShimVariable) DeoptimizePath(pathtrack.ObjectPath) {}
func (v *ExportShimVariable) include()                          { v.included = true }

func (v *ExportShimVariable) LiteralValueAtPath(path pathtrack.ObjectPath, _ *pathtrack.PathTracker, _ Deoptimizable) LiteralValue {
	if len(path) == 0 {
		return Undefined
	}
	return Unknown
}

func (v *ExportShimVariable) ReturnExpressionAtPath(pathtrack.ObjectPath, *pathtrack.PathTracker, Deoptimizable) Entity {
	return UnknownEntity
}

func (v *ExportShimVariable) HasEffectsOnInteraction(path pathtrack.ObjectPath, in *Interaction, ctx *EffectsContext) bool {
	return undefinedEntity.HasEffectsOnInteraction(path, in, ctx)
}
