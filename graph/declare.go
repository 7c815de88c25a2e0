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

import "bennypowers.dev/fascio/ast"

// declare builds the scope tree of the module and declares every binding.
// It also records parent links and the return statements of each function.
// References are resolved later, once all modules are linked.
func (m *Module) declare() {
	d := &declarer{m: m}
	m.parents[m.AST] = nil
	for _, s := range m.AST.Body {
		d.visit(s, m.AST, m.scope)
	}
}

type declarer struct {
	m *Module
}

func (d *declarer) visitAll(nodes []ast.Node, parent ast.Node, s *Scope) {
	for _, n := range nodes {
		d.visit(n, parent, s)
	}
}

func (d *declarer) visit(n ast.Node, parent ast.Node, s *Scope) {
	if n == nil {
		return
	}
	m := d.m
	m.parents[n] = parent

	switch n := n.(type) {
	case *ast.SImport:
		for _, c := range ast.Children(n) {
			m.parents[c] = n
		}
		return

	case *ast.SVar:
		d.declareVar(n, s, false)

	case *ast.SFunction:
		if n.Fn.Name != nil {
			s.addDeclaration(n.Fn.Name, n.Fn.Name, m.entity(n.Fn), DeclFunction)
		}
		d.function(n.Fn, n, s, false)
		return

	case *ast.SClass:
		if n.Class.Name != nil {
			s.addDeclaration(n.Class.Name, n.Class.Name, m.entity(n.Class), DeclClass)
		}
		d.class(n.Class, n, s, false)
		return

	case *ast.SExportDefault:
		var init Entity
		switch decl := n.Decl.(type) {
		case *ast.SFunction:
			init = m.entity(decl.Fn)
		case *ast.SClass:
			init = m.entity(decl.Class)
		default:
			init = m.entity(n.Value)
		}
		v := newExportDefaultVariable(m, n, init)
		m.defaultExport = v
		m.scope.declare("default", v)

	case *ast.SUnknown:
		for _, id := range n.Declares {
			s.addDeclaration(id, id, UnknownEntity, DeclOther)
		}

	case *ast.EFunction:
		d.function(n.Fn, n, s, true)
		return

	case *ast.EClass:
		d.class(n.Class, n, s, true)
		return

	case *ast.SBlock:
		bs := newScope(ScopeBlock, s, m)
		m.scopes[n] = bs
		for _, c := range n.Body {
			d.visit(c, n, bs)
		}
		return

	case *ast.SFor:
		ls := newScope(ScopeBlock, s, m)
		m.scopes[n] = ls
		d.visitAll(ast.Children(n), n, ls)
		return

	case *ast.SForIn:
		ls := newScope(ScopeBlock, s, m)
		m.scopes[n] = ls
		if v, ok := n.Left.(*ast.SVar); ok {
			m.parents[v] = n
			d.declareVar(v, ls, true)
			d.visitAll(ast.Children(v), v, ls)
		} else {
			d.visit(n.Left, n, ls)
		}
		d.visit(n.Right, n, ls)
		d.visit(n.Body, n, ls)
		return

	case *ast.STry:
		if n.Block != nil {
			d.visit(n.Block, n, s)
		}
		if n.Handler != nil {
			cs := newScope(ScopeCatch, s, m)
			m.scopes[n.Handler] = cs
			if n.Param != nil {
				for _, id := range ast.BindingIdentifiers(n.Param) {
					cs.addDeclaration(id, id, UnknownEntity, DeclCatch)
				}
				d.visit(n.Param, n, cs)
			}
			m.parents[n.Handler] = n
			for _, c := range n.Handler.Body {
				d.visit(c, n.Handler, cs)
			}
		}
		if n.Finalizer != nil {
			d.visit(n.Finalizer, n, s)
		}
		return

	case *ast.SSwitch:
		d.visit(n.Test, n, s)
		bs := newScope(ScopeBlock, s, m)
		m.scopes[n] = bs
		for _, c := range n.Cases {
			d.visit(c, n, bs)
		}
		return

	case *ast.SReturn:
		if fs := s.functionScope(); fs != nil {
			m.returns[fs.fn] = append(m.returns[fs.fn], n)
		}
	}

	d.visitAll(ast.Children(n), n, s)
}

// declareVar declares the bindings of a variable statement. Loop heads get
// unknown values since they are assigned on every iteration.
func (d *declarer) declareVar(v *ast.SVar, s *Scope, loopHead bool) {
	kind := declKindOf(v.Kind)
	target := s
	if v.Kind == ast.VarVar {
		target = s.hoistTarget()
	}
	for _, decl := range v.Decls {
		if id, ok := decl.Binding.(*ast.EIdentifier); ok && !loopHead {
			init := undefinedEntity
			if decl.Init != nil {
				init = d.m.entity(decl.Init)
			}
			target.addDeclaration(id, id, init, kind)
			continue
		}
		for _, id := range ast.BindingIdentifiers(decl.Binding) {
			target.addDeclaration(id, id, UnknownEntity, kind)
		}
	}
}

func (d *declarer) function(fn *ast.Function, parent ast.Node, s *Scope, expression bool) {
	m := d.m
	m.parents[fn] = parent
	fs := newScope(ScopeFunction, s, m)
	fs.fn = fn
	m.scopes[fn] = fs
	if !fn.Arrow {
		fs.this = newThisVariable(m)
		fs.arguments = newArgumentsVariable(m)
	}
	if fn.Name != nil {
		m.parents[fn.Name] = fn
		if expression {
			fs.addDeclaration(fn.Name, fn.Name, m.entity(fn), DeclFunction)
		}
	}
	for _, p := range fn.Params {
		for _, id := range ast.BindingIdentifiers(p) {
			fs.addDeclaration(id, id, UnknownEntity, DeclParameter)
		}
		d.visit(p, fn, fs)
	}
	if fn.Body != nil {
		m.parents[fn.Body] = fn
		m.scopes[fn.Body] = fs
		for _, c := range fn.Body.Body {
			d.visit(c, fn.Body, fs)
		}
	}
	d.visit(fn.ExprBody, fn, fs)
}

func (d *declarer) class(c *ast.Class, parent ast.Node, s *Scope, expression bool) {
	m := d.m
	m.parents[c] = parent
	for _, dec := range c.Decorators {
		d.visit(dec, c, s)
	}
	cs := newScope(ScopeClass, s, m)
	cs.this = newThisVariable(m)
	m.scopes[c] = cs
	if c.Name != nil {
		m.parents[c.Name] = c
		if expression {
			cs.addDeclaration(c.Name, c.Name, m.entity(c), DeclClass)
		}
	}
	d.visit(c.Extends, c, s)
	for _, member := range c.Members {
		d.visit(member, c, cs)
	}
}

// functionScope returns the scope of the nearest enclosing function.
func (s *Scope) functionScope() *Scope {
	for current := s; current != nil; current = current.parent {
		if current.Kind == ScopeFunction {
			return current
		}
	}
	return nil
}
