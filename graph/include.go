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
)

// include runs one inclusion pass over the module body. It is repeated
// until no pass includes anything new, so every step must be idempotent.
func (m *Module) include() {
	if m.AST == nil {
		return
	}
	ictx := newInclusionContext()
	if m.includeStatements(m.AST.Body, ictx, false) {
		m.AST.SetIncluded()
	}
}

// includeAllInBundle keeps every statement of the module.
func (m *Module) includeAllInBundle() {
	if m.AST == nil {
		return
	}
	m.includeNode(m.AST, newInclusionContext(), true)
	m.IncludeAllExports(false)
}

func (m *Module) shouldBeIncluded(n ast.Node, ictx *InclusionContext) bool {
	return n.IsIncluded() || (!ictx.brokenFlow && m.hasEffects(n, newEffectsContext()))
}

func (m *Module) includeStatements(body []ast.Stmt, ictx *InclusionContext, recursive bool) bool {
	included := false
	for _, s := range body {
		if recursive || m.shouldBeIncluded(s, ictx) {
			m.includeNode(s, ictx, recursive)
			included = true
		}
	}
	return included
}

// includeNode marks n as part of the output together with whatever it
// needs. Statements below n are only included when they have effects or
// were flagged by a variable declaration; recursive includes everything.
func (m *Module) includeNode(n ast.Node, ictx *InclusionContext, recursive bool) {
	if n == nil {
		return
	}
	m.applyDeoptimizations(n)
	n.SetIncluded()
	switch n := n.(type) {
	case *ast.Program:
		m.includeStatements(n.Body, ictx, recursive)
	case *ast.SBlock:
		m.includeStatements(n.Body, ictx, recursive)
	case *ast.SImport, *ast.SExportAll, *ast.STypeOnly, *ast.SEmpty, *ast.SDebugger:
	case *ast.SExportNamed:
		if n.Decl != nil {
			m.includeNode(n.Decl, ictx, recursive)
		}
	case *ast.SExportDefault:
		if n.Decl != nil {
			m.includeNode(n.Decl, ictx, recursive)
		} else {
			m.includeNode(n.Value, ictx, recursive)
		}
		if recursive && m.defaultExport != nil {
			m.includeVariableInModule(m.defaultExport)
		}
	case *ast.SVar:
		for _, decl := range n.Decls {
			if recursive || decl.IsIncluded() || m.hasEffects(decl, newEffectsContext()) {
				m.includeNode(decl, ictx, recursive)
			}
		}
	case *ast.VarDecl:
		m.includeNode(n.Init, ictx, recursive)
		if recursive || m.bindingNeeded(n.Binding) {
			m.includeNode(n.Binding, ictx, true)
		}
	case *ast.SFunction:
		m.includeNode(n.Fn, ictx, recursive)
	case *ast.SClass:
		m.includeNode(n.Class, ictx, recursive)
	case *ast.Function:
		m.includeFunction(n, ictx, recursive)
	case *ast.Class:
		for _, dec := range n.Decorators {
			m.includeNode(dec, ictx, recursive)
		}
		if n.Name != nil {
			m.includeNode(n.Name, ictx, recursive)
		}
		m.includeNode(n.Extends, ictx, recursive)
		for _, member := range n.Members {
			m.includeNode(member, ictx, recursive)
		}
	case *ast.ClassMember:
		if n.Computed {
			m.includeNode(n.Key, ictx, recursive)
		}
		m.includeNode(n.Value, ictx, recursive)
		if n.Body != nil {
			m.includeFunctionBody(n.Body, ictx, recursive)
		}
	case *ast.SExpr:
		m.includeNode(n.Value, ictx, recursive)
	case *ast.SIf:
		m.includeIf(n, ictx, recursive)
	case *ast.SReturn:
		m.includeNode(n.Value, ictx, recursive)
		ictx.brokenFlow = true
	case *ast.SThrow:
		m.includeNode(n.Value, ictx, recursive)
		ictx.brokenFlow = true
	case *ast.SBreak:
		if n.Label != "" {
			ictx.includedLabels[n.Label] = true
		} else {
			ictx.hasBreak = true
		}
		ictx.brokenFlow = true
	case *ast.SContinue:
		if n.Label != "" {
			ictx.includedLabels[n.Label] = true
		} else {
			ictx.hasContinue = true
		}
		ictx.brokenFlow = true
	case *ast.SLabel:
		brokenFlow, includedLabels := ictx.brokenFlow, ictx.includedLabels
		ictx.includedLabels = map[string]bool{}
		if recursive || m.shouldBeIncluded(n.Body, ictx) {
			m.includeNode(n.Body, ictx, recursive)
		}
		if recursive || ictx.includedLabels[n.Name] {
			delete(ictx.includedLabels, n.Name)
			ictx.brokenFlow = brokenFlow
		}
		for label := range includedLabels {
			ictx.includedLabels[label] = true
		}
	case *ast.SWhile:
		m.includeNode(n.Test, ictx, recursive)
		m.includeLoopBody(n.Body, ictx, recursive)
	case *ast.SDoWhile:
		m.includeLoopBody(n.Body, ictx, recursive)
		m.includeNode(n.Test, ictx, recursive)
	case *ast.SFor:
		m.includeNode(n.Init, ictx, true)
		m.includeNode(n.Test, ictx, recursive)
		m.includeNode(n.Update, ictx, recursive)
		m.includeLoopBody(n.Body, ictx, recursive)
	case *ast.SForIn:
		m.includeNode(n.Left, ictx, true)
		m.includeNode(n.Right, ictx, recursive)
		m.includeLoopBody(n.Body, ictx, recursive)
	case *ast.STry:
		m.includeTry(n, ictx, recursive)
	case *ast.SSwitch:
		m.includeSwitch(n, ictx, recursive)
	case *ast.SwitchCase:
		m.includeNode(n.Test, ictx, recursive)
		m.includeStatements(n.Body, ictx, recursive)
	case *ast.SUnknown:
		for _, c := range n.Children {
			m.includeNode(c, ictx, true)
		}
	case *ast.EUnknown:
		for _, c := range n.Children {
			m.includeNode(c, ictx, true)
		}

	case *ast.EIdentifier:
		if v := m.refs[n]; v != nil {
			m.includeVariableInModule(v)
		}
	case *ast.EMember:
		if v, ok := m.nsMembers[n]; ok {
			m.includeVariableInModule(v)
			return
		}
		m.includeNode(n.Object, ictx, recursive)
		m.includeNode(n.Index, ictx, recursive)
	case *ast.EImportCall:
		m.includeNode(n.Source, ictx, recursive)
		m.includeNode(n.Options, ictx, recursive)
		for _, d := range m.dynamicImports {
			if d.Node == n {
				m.includeDynamicImport(d)
			}
		}
	case *ast.ELogical:
		used := usedBranch(n.Op, m.testValue(n, n.Left))
		if recursive || used != rightBranch || m.hasEffects(n.Left, newEffectsContext()) {
			m.includeNode(n.Left, ictx, recursive)
		}
		if recursive || used != leftBranch {
			m.includeNode(n.Right, ictx, recursive)
		}
	case *ast.EConditional:
		truthy, known := Truthiness(m.testValue(n, n.Test))
		if recursive || !known {
			m.includeNode(n.Test, ictx, recursive)
			m.includeNode(n.Yes, ictx, recursive)
			m.includeNode(n.No, ictx, recursive)
			return
		}
		if m.hasEffects(n.Test, newEffectsContext()) {
			m.includeNode(n.Test, ictx, false)
		}
		if truthy {
			m.includeNode(n.Yes, ictx, false)
		} else {
			m.includeNode(n.No, ictx, false)
		}
	default:
		for _, c := range ast.Children(n) {
			m.includeNode(c, ictx, recursive)
		}
	}
}

// includeFunction keeps the name and every parameter of an included
// function, and the statements of its body that matter.
func (m *Module) includeFunction(fn *ast.Function, ictx *InclusionContext, recursive bool) {
	if fn.Name != nil {
		m.includeNode(fn.Name, ictx, recursive)
	}
	for _, p := range fn.Params {
		m.includeNode(p, ictx, true)
	}
	if fn.Body != nil {
		m.includeFunctionBody(fn.Body, ictx, recursive)
	}
	if fn.ExprBody != nil {
		m.includeNode(fn.ExprBody, ictx, recursive)
	}
}

func (m *Module) includeFunctionBody(body *ast.SBlock, ictx *InclusionContext, recursive bool) {
	brokenFlow, includedLabels := ictx.brokenFlow, ictx.includedLabels
	ictx.brokenFlow = false
	ictx.includedLabels = map[string]bool{}
	m.includeNode(body, ictx, recursive)
	ictx.brokenFlow, ictx.includedLabels = brokenFlow, includedLabels
}

func (m *Module) includeLoopBody(body ast.Stmt, ictx *InclusionContext, recursive bool) {
	brokenFlow, hasBreak, hasContinue := ictx.brokenFlow, ictx.hasBreak, ictx.hasContinue
	ictx.hasBreak, ictx.hasContinue = false, false
	m.includeNode(body, ictx, recursive)
	ictx.brokenFlow, ictx.hasBreak, ictx.hasContinue = brokenFlow, hasBreak, hasContinue
}

func (m *Module) includeIf(n *ast.SIf, ictx *InclusionContext, recursive bool) {
	if recursive {
		m.includeNode(n.Test, ictx, true)
		m.includeNode(n.Yes, ictx, true)
		m.includeNode(n.No, ictx, true)
		return
	}
	truthy, known := Truthiness(m.testValue(n, n.Test))
	if !known {
		m.includeNode(n.Test, ictx, false)
		brokenFlow := ictx.brokenFlow
		yesBroken := false
		if m.shouldBeIncluded(n.Yes, ictx) {
			m.includeNode(n.Yes, ictx, false)
			yesBroken = ictx.brokenFlow
		}
		ictx.brokenFlow = brokenFlow
		if n.No != nil && m.shouldBeIncluded(n.No, ictx) {
			m.includeNode(n.No, ictx, false)
			ictx.brokenFlow = ictx.brokenFlow && yesBroken
		}
		return
	}
	if n.Test.IsIncluded() || m.hasEffects(n.Test, newEffectsContext()) {
		m.includeNode(n.Test, ictx, false)
	}
	if truthy {
		if m.shouldBeIncluded(n.Yes, ictx) {
			m.includeNode(n.Yes, ictx, false)
		}
	} else if n.No != nil && m.shouldBeIncluded(n.No, ictx) {
		m.includeNode(n.No, ictx, false)
	}
}

func (m *Module) includeTry(n *ast.STry, ictx *InclusionContext, recursive bool) {
	brokenFlow := ictx.brokenFlow
	if n.Block != nil {
		deoptimizeBlock := m.graph.opts.TryCatchDeoptimization && len(n.Block.Body) > 0
		m.includeNode(n.Block, ictx, recursive || deoptimizeBlock)
		ictx.brokenFlow = brokenFlow
	}
	if n.Handler != nil {
		m.includeNode(n.Param, ictx, true)
		n.Handler.SetIncluded()
		m.includeStatements(n.Handler.Body, ictx, recursive)
		ictx.brokenFlow = brokenFlow
	}
	if n.Finalizer != nil {
		m.includeNode(n.Finalizer, ictx, recursive)
	}
}

// includeSwitch walks the cases backwards: once a case is kept, every case
// before it may fall through into it and is kept as well.
func (m *Module) includeSwitch(n *ast.SSwitch, ictx *InclusionContext, recursive bool) {
	m.includeNode(n.Test, ictx, recursive)
	brokenFlow, hasBreak := ictx.brokenFlow, ictx.hasBreak
	ictx.hasBreak = false
	defaultIndex := -1
	for i, c := range n.Cases {
		if c.Test == nil {
			defaultIndex = i
		}
	}
	onlyBroken := true
	caseIncluded := recursive || (defaultIndex >= 0 && defaultIndex < len(n.Cases)-1)
	for i := len(n.Cases) - 1; i >= 0; i-- {
		c := n.Cases[i]
		if c.IsIncluded() {
			caseIncluded = true
		}
		if !caseIncluded {
			ctx := newEffectsContext()
			ctx.ignore.breaks = true
			caseIncluded = m.hasEffects(c, ctx)
		}
		if caseIncluded {
			m.includeNode(c, ictx, recursive)
			onlyBroken = onlyBroken && ictx.brokenFlow && !ictx.hasBreak
			ictx.hasBreak = false
			ictx.brokenFlow = brokenFlow
		} else {
			onlyBroken = brokenFlow
		}
	}
	if caseIncluded && defaultIndex >= 0 {
		ictx.brokenFlow = onlyBroken
	}
	ictx.hasBreak = hasBreak
}

// bindingNeeded reports whether a declarator's binding must be kept: one of
// its variables is used or its defaults run code.
func (m *Module) bindingNeeded(binding ast.Expr) bool {
	for _, id := range ast.BindingIdentifiers(binding) {
		if v := m.refs[id]; v != nil && v.IsIncluded() {
			return true
		}
	}
	return m.patternEffects(binding, newEffectsContext())
}
