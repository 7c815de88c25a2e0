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
	"slices"

	"bennypowers.dev/fascio/ast"
	"bennypowers.dev/fascio/pathtrack"
)

// hasEffects reports whether evaluating n can be observed by anything other
// than the value it produces.
func (m *Module) hasEffects(n ast.Node, ctx *EffectsContext) bool {
	if n == nil {
		return false
	}
	m.applyDeoptimizations(n)
	opts := &m.graph.opts
	switch n := n.(type) {
	case *ast.Program:
		return m.statementsHaveEffects(n.Body, ctx)
	case *ast.SBlock:
		return n != nil && m.statementsHaveEffects(n.Body, ctx)
	case *ast.SImport, *ast.SExportAll, *ast.STypeOnly, *ast.SEmpty, *ast.SFunction:
		return false
	case *ast.SExportNamed:
		return n.Decl != nil && m.hasEffects(n.Decl, ctx)
	case *ast.SExportDefault:
		if n.Decl != nil {
			return m.hasEffects(n.Decl, ctx)
		}
		return m.hasEffects(n.Value, ctx)
	case *ast.SVar:
		for _, decl := range n.Decls {
			if m.hasEffects(decl, ctx) {
				return true
			}
		}
		return false
	case *ast.VarDecl:
		return m.hasEffects(n.Init, ctx) || m.patternEffects(n.Binding, ctx)
	case *ast.SClass:
		return m.classDefinitionEffects(n.Class, ctx)
	case *ast.SExpr:
		return m.hasEffects(n.Value, ctx)
	case *ast.SIf:
		if m.hasEffects(n.Test, ctx) {
			return true
		}
		truthy, known := Truthiness(m.testValue(n, n.Test))
		if known {
			if truthy {
				return m.hasEffects(n.Yes, ctx)
			}
			return n.No != nil && m.hasEffects(n.No, ctx)
		}
		brokenFlow := ctx.brokenFlow
		if m.hasEffects(n.Yes, ctx) {
			return true
		}
		yesBroken := ctx.brokenFlow
		ctx.brokenFlow = brokenFlow
		if n.No == nil {
			return false
		}
		if m.hasEffects(n.No, ctx) {
			return true
		}
		ctx.brokenFlow = ctx.brokenFlow && yesBroken
		return false
	case *ast.SReturn:
		if !ctx.ignore.returnYield || (n.Value != nil && m.hasEffects(n.Value, ctx)) {
			return true
		}
		ctx.brokenFlow = true
		return false
	case *ast.SBreak:
		if n.Label != "" {
			if !ctx.ignore.labels[n.Label] {
				return true
			}
			ctx.includedLabels[n.Label] = true
		} else {
			if !ctx.ignore.breaks {
				return true
			}
			ctx.hasBreak = true
		}
		ctx.brokenFlow = true
		return false
	case *ast.SContinue:
		if n.Label != "" {
			if !ctx.ignore.labels[n.Label] {
				return true
			}
			ctx.includedLabels[n.Label] = true
		} else {
			if !ctx.ignore.continues {
				return true
			}
			ctx.hasContinue = true
		}
		ctx.brokenFlow = true
		return false
	case *ast.SLabel:
		brokenFlow, includedLabels := ctx.brokenFlow, ctx.includedLabels
		ctx.ignore.labels[n.Name] = true
		ctx.includedLabels = map[string]bool{}
		effects := m.hasEffects(n.Body, ctx)
		if !effects {
			delete(ctx.ignore.labels, n.Name)
			if ctx.includedLabels[n.Name] {
				delete(ctx.includedLabels, n.Name)
				ctx.brokenFlow = brokenFlow
			}
		}
		for label := range includedLabels {
			ctx.includedLabels[label] = true
		}
		return effects
	case *ast.SWhile:
		return m.hasEffects(n.Test, ctx) || m.loopBodyEffects(n.Body, ctx)
	case *ast.SDoWhile:
		return m.hasEffects(n.Test, ctx) || m.loopBodyEffects(n.Body, ctx)
	case *ast.SFor:
		return m.hasEffects(n.Init, ctx) || m.hasEffects(n.Test, ctx) ||
			m.hasEffects(n.Update, ctx) || m.loopBodyEffects(n.Body, ctx)
	case *ast.SForIn:
		// Iterating runs the iterator protocol of an arbitrary value.
		if n.Of {
			return true
		}
		if m.hasEffects(n.Right, ctx) {
			return true
		}
		if target, ok := n.Left.(ast.Expr); ok && m.assignmentTargetEffects(target, false, ctx) {
			return true
		}
		return m.loopBodyEffects(n.Body, ctx)
	case *ast.STry:
		if opts.TryCatchDeoptimization {
			if n.Block != nil && len(n.Block.Body) > 0 {
				return true
			}
		} else if n.Block != nil && m.hasEffects(n.Block, ctx) {
			return true
		}
		return n.Finalizer != nil && m.hasEffects(n.Finalizer, ctx)
	case *ast.SSwitch:
		if m.hasEffects(n.Test, ctx) {
			return true
		}
		brokenFlow, hasBreak, breaks := ctx.brokenFlow, ctx.hasBreak, ctx.ignore.breaks
		ctx.ignore.breaks = true
		ctx.hasBreak = false
		onlyBroken, hasDefault := true, false
		for _, c := range n.Cases {
			if c.Test == nil {
				hasDefault = true
			}
			if m.hasEffects(c, ctx) {
				return true
			}
			onlyBroken = onlyBroken && ctx.brokenFlow && !ctx.hasBreak
			ctx.hasBreak = false
			ctx.brokenFlow = brokenFlow
		}
		if hasDefault {
			ctx.brokenFlow = onlyBroken
		}
		ctx.ignore.breaks = breaks
		ctx.hasBreak = hasBreak
		return false
	case *ast.SwitchCase:
		return m.hasEffects(n.Test, ctx) || m.statementsHaveEffects(n.Body, ctx)
	case *ast.SThrow, *ast.SDebugger, *ast.SUnknown, *ast.EUnknown, *ast.EAwait, *ast.EImportCall:
		return true

	case *ast.EIdentifier:
		v, global := m.refs[n].(*GlobalVariable)
		return global && opts.UnknownGlobalSideEffects &&
			v.HasEffectsOnInteraction(pathtrack.EmptyPath, accessInteraction, ctx)
	case *ast.ENumber, *ast.EString, *ast.EBoolean, *ast.ENull, *ast.EUndefined, *ast.EBigInt,
		*ast.ERegExp, *ast.EThis, *ast.ESuper, *ast.EImportMeta, *ast.EFunction, *ast.Function:
		return false
	case *ast.EClass:
		return m.classDefinitionEffects(n.Class, ctx)
	case *ast.Class:
		return m.classDefinitionEffects(n, ctx)
	case *ast.ETemplate:
		for _, e := range n.Exprs {
			if m.hasEffects(e, ctx) {
				return true
			}
		}
		if n.Tag == nil || m.isManualPure(n.Tag) {
			return false
		}
		if m.hasEffects(n.Tag, ctx) {
			return true
		}
		callee, path := m.calleeEntity(n.Tag)
		in := &Interaction{Kind: Called, This: m.receiver(n.Tag), Args: m.argEntities(n.Exprs), Site: n}
		return callee.HasEffectsOnInteraction(path, in, ctx)
	case *ast.EArray:
		for _, item := range n.Items {
			if m.hasEffects(item, ctx) {
				return true
			}
		}
		return false
	case *ast.ESpread:
		return m.spreadEffects(n.Value, ctx)
	case *ast.EObject:
		for _, p := range n.Props {
			if p.Kind == ast.PropSpread {
				if m.spreadEffects(p.Value, ctx) {
					return true
				}
				continue
			}
			if (p.Computed && m.hasEffects(p.Key, ctx)) || m.hasEffects(p.Value, ctx) {
				return true
			}
		}
		return false
	case *ast.ECall:
		return m.callEffects(n.Callee, n.Args, n.Pure, false, n, ctx)
	case *ast.ENew:
		return m.callEffects(n.Callee, n.Args, n.Pure, true, n, ctx)
	case *ast.EMember:
		if _, ok := m.nsMembers[n]; ok {
			return false
		}
		if m.hasEffects(n.Object, ctx) || m.hasEffects(n.Index, ctx) {
			return true
		}
		return opts.PropertyReadSideEffects &&
			m.entity(n.Object).HasEffectsOnInteraction(pathtrack.ObjectPath{memberKey(n)}, accessInteraction, ctx)
	case *ast.EAssign:
		return m.hasEffects(n.Value, ctx) || m.assignmentTargetEffects(n.Target, n.Op != "=", ctx)
	case *ast.EUpdate:
		return m.assignmentTargetEffects(n.Target, true, ctx)
	case *ast.EUnary:
		switch n.Op {
		case "typeof":
			if _, ok := n.Value.(*ast.EIdentifier); ok {
				return false
			}
		case "delete":
			if member, ok := n.Value.(*ast.EMember); ok {
				return m.hasEffects(member.Object, ctx) || m.hasEffects(member.Index, ctx) ||
					m.entity(member).HasEffectsOnInteraction(pathtrack.EmptyPath, assignInteraction, ctx)
			}
		}
		return m.hasEffects(n.Value, ctx)
	case *ast.EBinary:
		if m.hasEffects(n.Left, ctx) || m.hasEffects(n.Right, ctx) {
			return true
		}
		// '' + x as a statement exists to call x's toString.
		if _, statement := m.parents[n].(*ast.SExpr); statement && n.Op == "+" {
			left := m.entity(n.Left).LiteralValueAtPath(pathtrack.EmptyPath, pathtrack.NewPathTracker(), nil)
			return left == LiteralValue("")
		}
		return false
	case *ast.ELogical:
		if m.hasEffects(n.Left, ctx) {
			return true
		}
		if usedBranch(n.Op, m.testValue(n, n.Left)) != leftBranch {
			return m.hasEffects(n.Right, ctx)
		}
		return false
	case *ast.EConditional:
		if m.hasEffects(n.Test, ctx) {
			return true
		}
		truthy, known := Truthiness(m.testValue(n, n.Test))
		switch {
		case !known:
			return m.hasEffects(n.Yes, ctx) || m.hasEffects(n.No, ctx)
		case truthy:
			return m.hasEffects(n.Yes, ctx)
		}
		return m.hasEffects(n.No, ctx)
	case *ast.ESequence:
		for _, e := range n.Exprs {
			if m.hasEffects(e, ctx) {
				return true
			}
		}
		return false
	case *ast.EYield:
		return n.Delegate || !ctx.ignore.returnYield || m.hasEffects(n.Value, ctx)
	case *ast.EObjectPattern, *ast.EArrayPattern, *ast.EAssignPattern, *ast.ERest:
		return m.patternEffects(n.(ast.Expr), ctx)
	}
	return true
}

func (m *Module) statementsHaveEffects(body []ast.Stmt, ctx *EffectsContext) bool {
	for _, s := range body {
		if ctx.brokenFlow {
			break
		}
		if m.hasEffects(s, ctx) {
			return true
		}
	}
	return false
}

// loopBodyEffects checks a loop body, where break and continue only leave
// the loop.
func (m *Module) loopBodyEffects(body ast.Stmt, ctx *EffectsContext) bool {
	brokenFlow, hasBreak, hasContinue := ctx.brokenFlow, ctx.hasBreak, ctx.hasContinue
	breaks, continues := ctx.ignore.breaks, ctx.ignore.continues
	ctx.ignore.breaks, ctx.ignore.continues = true, true
	ctx.hasBreak, ctx.hasContinue = false, false
	if m.hasEffects(body, ctx) {
		return true
	}
	ctx.ignore.breaks, ctx.ignore.continues = breaks, continues
	ctx.brokenFlow, ctx.hasBreak, ctx.hasContinue = brokenFlow, hasBreak, hasContinue
	return false
}

func (m *Module) spreadEffects(value ast.Expr, ctx *EffectsContext) bool {
	return m.hasEffects(value, ctx) || (m.graph.opts.PropertyReadSideEffects &&
		m.entity(value).HasEffectsOnInteraction(pathtrack.UnknownPath, accessInteraction, ctx))
}

// patternEffects covers the parts of a binding pattern that run code:
// computed keys and default values.
func (m *Module) patternEffects(p ast.Expr, ctx *EffectsContext) bool {
	switch p := p.(type) {
	case *ast.EObjectPattern:
		for _, prop := range p.Props {
			if (prop.Computed && m.hasEffects(prop.Key, ctx)) || m.patternEffects(prop.Value, ctx) {
				return true
			}
		}
		return p.Rest != nil && m.patternEffects(p.Rest, ctx)
	case *ast.EArrayPattern:
		for _, item := range p.Items {
			if item != nil && m.patternEffects(item, ctx) {
				return true
			}
		}
	case *ast.EAssignPattern:
		return m.hasEffects(p.Default, ctx) || m.patternEffects(p.Target, ctx)
	case *ast.ERest:
		return m.patternEffects(p.Target, ctx)
	}
	return false
}

// assignmentTargetEffects reports whether writing to target can be
// observed. Compound assignments read the target first.
func (m *Module) assignmentTargetEffects(target ast.Expr, checkAccess bool, ctx *EffectsContext) bool {
	switch t := target.(type) {
	case *ast.EIdentifier:
		v := m.refs[t]
		if v == nil {
			return true
		}
		if checkAccess && v.HasEffectsOnInteraction(pathtrack.EmptyPath, accessInteraction, ctx) {
			return true
		}
		return v.HasEffectsOnInteraction(pathtrack.EmptyPath, assignInteraction, ctx)
	case *ast.EMember:
		if _, ns := m.nsMembers[t]; ns {
			return true
		}
		if m.hasEffects(t.Object, ctx) || m.hasEffects(t.Index, ctx) {
			return true
		}
		object, path := m.entity(t.Object), pathtrack.ObjectPath{memberKey(t)}
		if checkAccess && m.graph.opts.PropertyReadSideEffects &&
			object.HasEffectsOnInteraction(path, accessInteraction, ctx) {
			return true
		}
		return object.HasEffectsOnInteraction(path, &Interaction{Kind: Assigned, Site: t}, ctx)
	case *ast.EObjectPattern:
		for _, prop := range t.Props {
			if (prop.Computed && m.hasEffects(prop.Key, ctx)) || m.assignmentTargetEffects(prop.Value, false, ctx) {
				return true
			}
		}
		return t.Rest != nil && m.assignmentTargetEffects(t.Rest, false, ctx)
	case *ast.EArrayPattern:
		for _, item := range t.Items {
			if item != nil && m.assignmentTargetEffects(item, false, ctx) {
				return true
			}
		}
		return false
	case *ast.EAssignPattern:
		return m.hasEffects(t.Default, ctx) || m.assignmentTargetEffects(t.Target, false, ctx)
	case *ast.ERest:
		return m.assignmentTargetEffects(t.Target, false, ctx)
	}
	return true
}

func (m *Module) callEffects(callee ast.Expr, args []ast.Expr, pure, construct bool, site ast.Node, ctx *EffectsContext) bool {
	for _, arg := range args {
		if m.hasEffects(arg, ctx) {
			return true
		}
	}
	if (pure && m.graph.opts.Annotations) || m.isManualPure(callee) {
		return false
	}
	if m.hasEffects(callee, ctx) {
		return true
	}
	entity, path := m.calleeEntity(callee)
	in := &Interaction{Kind: Called, New: construct, Args: m.argEntities(args), Site: site}
	if !construct {
		in.This = m.receiver(callee)
	}
	return entity.HasEffectsOnInteraction(path, in, ctx)
}

func (m *Module) argEntities(args []ast.Expr) []Entity {
	out := make([]Entity, len(args))
	for i, arg := range args {
		if _, spread := arg.(*ast.ESpread); spread {
			out[i] = UnknownEntity
			continue
		}
		out[i] = m.entity(arg)
	}
	return out
}

// isManualPure matches the dotted name of a callee against the configured
// pure functions. Calls in the chain are looked through, so styled.div
// also covers styled.div()().
func (m *Module) isManualPure(callee ast.Expr) bool {
	var chain []string
	for e := callee; ; {
		switch n := e.(type) {
		case *ast.EIdentifier:
			chain = append(chain, n.Name)
			slices.Reverse(chain)
			return m.graph.pure.matches(chain)
		case *ast.EMember:
			if n.Index != nil {
				return false
			}
			chain = append(chain, n.Name)
			e = n.Object
		case *ast.ECall:
			e = n.Callee
		default:
			return false
		}
	}
}

// classDefinitionEffects checks what defining a class runs: decorators, the
// superclass expression, computed keys and static initializers.
func (m *Module) classDefinitionEffects(c *ast.Class, ctx *EffectsContext) bool {
	if len(c.Decorators) > 0 {
		return true
	}
	if c.Extends != nil && m.hasEffects(c.Extends, ctx) {
		return true
	}
	cs := m.scopes[c]
	previous, replaced := ctx.replacedThis[cs.this]
	ctx.replacedThis[cs.this] = nodeEntity{m, c}
	defer func() {
		if replaced {
			ctx.replacedThis[cs.this] = previous
		} else {
			delete(ctx.replacedThis, cs.this)
		}
	}()
	for _, member := range c.Members {
		if member.Computed && m.hasEffects(member.Key, ctx) {
			return true
		}
		if !member.Static {
			continue
		}
		switch member.Kind {
		case ast.MemberField:
			if member.Value != nil && m.hasEffects(member.Value, ctx) {
				return true
			}
		case ast.MemberStaticBlock:
			if member.Body != nil && m.hasEffects(member.Body, ctx) {
				return true
			}
		}
	}
	return false
}

// applyDeoptimizations records, once per node, the mutations a node can
// perform on the values it touches. It runs the first time a node is
// checked for effects or included.
func (m *Module) applyDeoptimizations(n ast.Node) {
	switch n.(type) {
	case *ast.EAssign, *ast.EUpdate, *ast.ECall, *ast.ENew, *ast.SForIn, *ast.EUnary,
		*ast.ETemplate, *ast.EYield, *ast.EAwait, *ast.SThrow:
	default:
		return
	}
	if m.deoptimized[n] {
		return
	}
	m.deoptimized[n] = true
	switch n := n.(type) {
	case *ast.EAssign:
		m.deoptimizeTarget(n.Target)
		if n.Op == "=" || n.Op == "&&=" || n.Op == "||=" || n.Op == "??=" {
			m.entity(n.Value).DeoptimizePath(pathtrack.UnknownPath)
		}
	case *ast.EUpdate:
		m.deoptimizeTarget(n.Target)
	case *ast.ECall:
		m.deoptimizeArgs(n.Args)
		if member, ok := n.Callee.(*ast.EMember); ok {
			if _, ns := m.nsMembers[member]; !ns {
				key := memberKey(member)
				switch {
				case arrayPureMethods[key] || objectPrototypeMethods[key]:
				case arrayMutators[key]:
					m.entity(member.Object).DeoptimizePath(pathtrack.ObjectPath{unknownValuesKey})
				default:
					m.entity(member.Object).DeoptimizePath(pathtrack.UnknownPath)
				}
			}
		}
	case *ast.ENew:
		m.deoptimizeArgs(n.Args)
	case *ast.SForIn:
		if target, ok := n.Left.(ast.Expr); ok {
			m.deoptimizeTarget(target)
		}
	case *ast.EUnary:
		if member, ok := n.Value.(*ast.EMember); ok && n.Op == "delete" {
			m.entity(member).DeoptimizePath(pathtrack.EmptyPath)
		}
	case *ast.ETemplate:
		if n.Tag != nil {
			m.deoptimizeArgs(n.Exprs)
		}
	case *ast.EYield:
		m.entity(n.Value).DeoptimizePath(pathtrack.UnknownPath)
	case *ast.EAwait:
		m.entity(n.Value).DeoptimizePath(pathtrack.UnknownPath)
	case *ast.SThrow:
		m.entity(n.Value).DeoptimizePath(pathtrack.UnknownPath)
	}
}

func (m *Module) deoptimizeArgs(args []ast.Expr) {
	for _, arg := range args {
		if spread, ok := arg.(*ast.ESpread); ok {
			arg = spread.Value
		}
		m.entity(arg).DeoptimizePath(pathtrack.UnknownPath)
	}
}

// deoptimizeTarget marks every binding or property an assignment target
// writes as changed.
func (m *Module) deoptimizeTarget(target ast.Expr) {
	switch t := target.(type) {
	case *ast.EIdentifier:
		if v := m.refs[t]; v != nil {
			v.DeoptimizePath(pathtrack.EmptyPath)
		}
	case *ast.EMember:
		m.entity(t).DeoptimizePath(pathtrack.EmptyPath)
	case *ast.EObjectPattern:
		for _, prop := range t.Props {
			m.deoptimizeTarget(prop.Value)
		}
		if t.Rest != nil {
			m.deoptimizeTarget(t.Rest)
		}
	case *ast.EArrayPattern:
		for _, item := range t.Items {
			if item != nil {
				m.deoptimizeTarget(item)
			}
		}
	case *ast.EAssignPattern:
		m.deoptimizeTarget(t.Target)
	case *ast.ERest:
		m.deoptimizeTarget(t.Target)
	}
}
