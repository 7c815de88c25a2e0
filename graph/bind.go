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
	"bennypowers.dev/fascio/logger"
)

// bindReferences resolves every identifier of the module to its variable
// and reports illegal reassignments. It runs after all modules are linked,
// in execution order.
func (m *Module) bindReferences() {
	if m.AST == nil {
		return
	}
	b := &binder{m: m}
	for _, s := range m.AST.Body {
		b.visit(s, m.scope)
	}

	names := make([]string, 0, len(m.importDescriptions))
	for name, d := range m.importDescriptions {
		if d.name != "*" {
			names = append(names, name)
		}
	}
	slices.Sort(names)
	for _, name := range names {
		if _, local := m.scope.variables[name]; !local {
			m.traceVariable(name, exportLookup{})
		}
	}
	for _, name := range m.exportNames {
		e := m.exports[name]
		if e.shim || name == "default" {
			continue
		}
		if m.traceVariable(e.localName, exportLookup{}) == nil {
			m.warn(logger.MissingExport, 0, "Exported variable %q is not defined in %q", e.localName, m.id)
		}
	}
}

type binder struct {
	m *Module
}

func (b *binder) visitAll(nodes []ast.Node, s *Scope) {
	for _, n := range nodes {
		b.visit(n, s)
	}
}

func (b *binder) visit(n ast.Node, s *Scope) {
	if n == nil {
		return
	}
	m := b.m

	switch n := n.(type) {
	case *ast.SImport:
		return

	case *ast.EIdentifier:
		b.reference(n, s)
		return

	case *ast.EThis:
		if ts := s.thisScope(); ts != nil {
			m.thisRefs[n] = ts.this
		} else {
			m.warn(logger.ThisIsUndefined, n.Start, "The 'this' keyword is equivalent to 'undefined' at the top level of an ES module, and has been rewritten")
		}
		return

	case *ast.Function:
		fs := m.scopes[n]
		b.visitAll(ast.Children(n), fs)
		return

	case *ast.Class:
		cs := m.scopes[n]
		for _, dec := range n.Decorators {
			b.visit(dec, s)
		}
		if n.Name != nil {
			b.visit(n.Name, cs)
		}
		b.visit(n.Extends, s)
		for _, member := range n.Members {
			b.visit(member, cs)
		}
		return

	case *ast.STry:
		if n.Block != nil {
			b.visit(n.Block, s)
		}
		if n.Handler != nil {
			cs := m.scopes[n.Handler]
			b.visit(n.Param, cs)
			for _, c := range n.Handler.Body {
				b.visit(c, cs)
			}
		}
		if n.Finalizer != nil {
			b.visit(n.Finalizer, s)
		}
		return

	case *ast.SSwitch:
		b.visit(n.Test, s)
		inner := m.scopes[n]
		for _, c := range n.Cases {
			b.visit(c, inner)
		}
		return

	case *ast.EAssign:
		b.visitAll(ast.Children(n), s)
		b.checkReassignment(n.Target, s)
		return

	case *ast.EUpdate:
		b.visitAll(ast.Children(n), s)
		b.checkReassignment(n.Target, s)
		return

	case *ast.SForIn:
		inner := m.scopes[n]
		b.visitAll(ast.Children(n), inner)
		if _, decl := n.Left.(*ast.SVar); !decl {
			if target, ok := n.Left.(ast.Expr); ok {
				b.checkReassignment(target, inner)
			}
		}
		return

	case *ast.EMember:
		b.visitAll(ast.Children(n), s)
		b.resolveNamespaceMember(n)
		return

	case *ast.ECall:
		b.visitAll(ast.Children(n), s)
		if id, ok := n.Callee.(*ast.EIdentifier); ok && id.Name == "eval" {
			if _, global := m.refs[id].(*GlobalVariable); global {
				b.directEval(id, s)
			}
		}
		return
	}

	if inner, ok := m.scopes[n]; ok {
		s = inner
	}
	b.visitAll(ast.Children(n), s)
}

func (b *binder) reference(id *ast.EIdentifier, s *Scope) {
	v := s.FindVariable(id.Name)
	b.m.refs[id] = v
	if ext, ok := v.(*ExternalVariable); ok {
		ext.referenced = true
	}
}

// isImportBinding reports whether name, seen in scope s, refers to an
// import of the module rather than a local declaration.
func (b *binder) isImportBinding(name string, s *Scope) bool {
	for current := s; current != nil; current = current.parent {
		if _, ok := current.variables[name]; ok {
			return false
		}
	}
	_, ok := b.m.importDescriptions[name]
	return ok
}

func (b *binder) checkReassignment(target ast.Expr, s *Scope) {
	m := b.m
	if member, ok := target.(*ast.EMember); ok {
		if obj, ok := member.Object.(*ast.EIdentifier); ok {
			if _, ns := m.refs[obj].(*NamespaceVariable); ns && b.isImportBinding(obj.Name, s) {
				m.fail(logger.IllegalNamespaceReassignment, member.Start,
					"Illegal reassignment of import %q: namespace members are read-only", obj.Name+"."+member.Name)
			}
		}
		return
	}
	for _, id := range ast.BindingIdentifiers(target) {
		if b.isImportBinding(id.Name, s) {
			m.fail(logger.IllegalReassignment, id.Start, "Illegal reassignment of import %q", id.Name)
			continue
		}
		if local := asLocal(m.refs[id]); local != nil && local.Kind == DeclConst {
			m.fail(logger.ConstReassign, id.Start, "Cannot reassign a variable declared with const: %q", id.Name)
		}
	}
}

// resolveNamespaceMember binds ns.x to the variable the namespace exports
// as x, so only that export is needed.
func (b *binder) resolveNamespaceMember(e *ast.EMember) {
	m := b.m
	if e.Index != nil || e.Private || e.Name == "" {
		return
	}
	var object Variable
	switch obj := e.Object.(type) {
	case *ast.EIdentifier:
		object = m.refs[obj]
	case *ast.EMember:
		object = m.nsMembers[obj]
	}
	ns, ok := object.(*NamespaceVariable)
	if !ok {
		return
	}
	if parent, ok := m.parents[e].(*ast.EAssign); ok && parent.Target == ast.Expr(e) {
		return
	}
	if v := ns.module.GetVariableForExportName(e.Name); v != nil {
		m.nsMembers[e] = v
		return
	}
	m.warn(logger.MissingExport, e.Start, "%q is not exported by %q, imported by %q", e.Name, ns.module.id, m.id)
}

// directEval makes every binding visible to the eval call unknown.
func (b *binder) directEval(id *ast.EIdentifier, s *Scope) {
	m := b.m
	m.warn(logger.Eval, id.Start, "Use of eval in %q is strongly discouraged as it poses security risks and may cause issues with minification.", m.id)
	for current := s; current != nil; current = current.parent {
		for _, v := range current.variables {
			if local := asLocal(v); local != nil {
				local.markReassigned()
			}
		}
	}
}
