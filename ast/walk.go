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
package ast

// Children returns the direct child nodes of n in source order. Nil
// children are omitted.
func Children(n Node) []Node {
	var out []Node
	add := func(nodes ...Node) {
		for _, c := range nodes {
			if !isNil(c) {
				out = append(out, c)
			}
		}
	}
	addExprs := func(exprs []Expr) {
		for _, e := range exprs {
			if e != nil {
				out = append(out, e)
			}
		}
	}
	addStmts := func(stmts []Stmt) {
		for _, s := range stmts {
			out = append(out, s)
		}
	}

	switch n := n.(type) {
	case *Program:
		addStmts(n.Body)
	case *Function:
		if n.Name != nil {
			add(n.Name)
		}
		addExprs(n.Params)
		if n.Body != nil {
			add(n.Body)
		}
		add(n.ExprBody)
	case *Class:
		addExprs(n.Decorators)
		if n.Name != nil {
			add(n.Name)
		}
		add(n.Extends)
		for _, m := range n.Members {
			add(m)
		}
	case *ClassMember:
		if n.Computed {
			add(n.Key)
		}
		add(n.Value)
		if n.Body != nil {
			add(n.Body)
		}
	case *VarDecl:
		add(n.Binding, n.Init)
	case *Property:
		if n.Computed {
			add(n.Key)
		}
		add(n.Value)
	case *PatternProperty:
		if n.Computed {
			add(n.Key)
		}
		add(n.Value)
	case *SwitchCase:
		add(n.Test)
		addStmts(n.Body)

	case *SImport:
		if n.Default != nil {
			add(n.Default)
		}
		if n.Namespace != nil {
			add(n.Namespace)
		}
		for _, s := range n.Named {
			add(s.Local)
		}
	case *SExportNamed:
		add(n.Decl)
	case *SExportDefault:
		add(n.Decl, n.Value)
	case *SVar:
		for _, d := range n.Decls {
			add(d)
		}
	case *SFunction:
		add(n.Fn)
	case *SClass:
		add(n.Class)
	case *SExpr:
		add(n.Value)
	case *SBlock:
		addStmts(n.Body)
	case *SIf:
		add(n.Test, n.Yes, n.No)
	case *SReturn:
		add(n.Value)
	case *SThrow:
		add(n.Value)
	case *SFor:
		add(n.Init, n.Test, n.Update, n.Body)
	case *SForIn:
		add(n.Left, n.Right, n.Body)
	case *SWhile:
		add(n.Test, n.Body)
	case *SDoWhile:
		add(n.Body, n.Test)
	case *STry:
		if n.Block != nil {
			add(n.Block)
		}
		add(n.Param)
		if n.Handler != nil {
			add(n.Handler)
		}
		if n.Finalizer != nil {
			add(n.Finalizer)
		}
	case *SSwitch:
		add(n.Test)
		for _, c := range n.Cases {
			add(c)
		}
	case *SLabel:
		add(n.Body)
	case *SUnknown:
		add(n.Children...)

	case *ETemplate:
		add(n.Tag)
		addExprs(n.Exprs)
	case *EArray:
		addExprs(n.Items)
	case *ESpread:
		add(n.Value)
	case *EObject:
		for _, p := range n.Props {
			add(p)
		}
	case *EFunction:
		add(n.Fn)
	case *EClass:
		add(n.Class)
	case *ECall:
		add(n.Callee)
		addExprs(n.Args)
	case *ENew:
		add(n.Callee)
		addExprs(n.Args)
	case *EMember:
		add(n.Object, n.Index)
	case *EAssign:
		add(n.Target, n.Value)
	case *EUpdate:
		add(n.Target)
	case *EUnary:
		add(n.Value)
	case *EBinary:
		add(n.Left, n.Right)
	case *ELogical:
		add(n.Left, n.Right)
	case *EConditional:
		add(n.Test, n.Yes, n.No)
	case *ESequence:
		addExprs(n.Exprs)
	case *EAwait:
		add(n.Value)
	case *EYield:
		add(n.Value)
	case *EImportCall:
		add(n.Source, n.Options)
	case *EObjectPattern:
		for _, p := range n.Props {
			add(p)
		}
		add(n.Rest)
	case *EArrayPattern:
		addExprs(n.Items)
	case *EAssignPattern:
		add(n.Target, n.Default)
	case *ERest:
		add(n.Target)
	case *EUnknown:
		add(n.Children...)
	}
	return out
}

// Visit walks the tree rooted at n in depth-first preorder. Returning false
// from fn skips the children of the visited node.
func Visit(n Node, fn func(Node) bool) {
	if isNil(n) || !fn(n) {
		return
	}
	for _, c := range Children(n) {
		Visit(c, fn)
	}
}

// BindingIdentifiers returns the identifiers a binding pattern declares.
func BindingIdentifiers(pattern Expr) []*EIdentifier {
	var out []*EIdentifier
	var walk func(Expr)
	walk = func(e Expr) {
		switch e := e.(type) {
		case *EIdentifier:
			out = append(out, e)
		case *EObjectPattern:
			for _, p := range e.Props {
				walk(p.Value)
			}
			if e.Rest != nil {
				walk(e.Rest)
			}
		case *EArrayPattern:
			for _, item := range e.Items {
				if item != nil {
					walk(item)
				}
			}
		case *EAssignPattern:
			walk(e.Target)
		case *ERest:
			walk(e.Target)
		}
	}
	walk(pattern)
	return out
}

// isNil reports whether n is nil, including typed nil pointers stored in an
// interface.
func isNil(n Node) bool {
	if n == nil {
		return true
	}
	switch v := n.(type) {
	case *SBlock:
		return v == nil
	case *Function:
		return v == nil
	case *Class:
		return v == nil
	case *EIdentifier:
		return v == nil
	}
	return false
}
