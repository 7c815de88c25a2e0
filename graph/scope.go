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

// ScopeKind is the construct that introduced a scope.
type ScopeKind uint8

const (
	ScopeGlobal ScopeKind = iota
	ScopeModule
	ScopeFunction
	ScopeBlock
	ScopeCatch
	ScopeClass
)

// Scope maps the names declared directly in one lexical region to their
// variables. Lookups walk to the parent until the module scope, then fall
// through to the graph-wide global scope.
type Scope struct {
	Kind      ScopeKind
	parent    *Scope
	module    *Module
	variables map[string]Variable
	// names preserves declaration order for deterministic iteration.
	names []string

	// Function and class scopes own a receiver binding.
	this      *ThisVariable
	arguments *ArgumentsVariable
	fn        *ast.Function
}

func newScope(kind ScopeKind, parent *Scope, m *Module) *Scope {
	return &Scope{Kind: kind, parent: parent, module: m, variables: map[string]Variable{}}
}

// Parent returns the enclosing scope, or nil for the module scope.
func (s *Scope) Parent() *Scope {
	return s.parent
}

// Variables returns the variables declared in this scope in declaration
// order.
func (s *Scope) Variables() []Variable {
	out := make([]Variable, 0, len(s.names))
	for _, name := range s.names {
		out = append(out, s.variables[name])
	}
	return out
}

// Lookup returns the variable declared for name directly in this scope.
func (s *Scope) Lookup(name string) (Variable, bool) {
	v, ok := s.variables[name]
	return v, ok
}

// hoistTarget is the scope a var declaration made in s belongs to.
func (s *Scope) hoistTarget() *Scope {
	current := s
	for current.Kind != ScopeFunction && current.Kind != ScopeModule && current.parent != nil {
		current = current.parent
	}
	return current
}

// addDeclaration declares name in s. A second declaration of the same name
// merges into the existing variable, which is then treated as reassigned.
func (s *Scope) addDeclaration(id *ast.EIdentifier, decl ast.Node, init Entity, kind DeclKind) Variable {
	if existing, ok := s.variables[id.Name]; ok {
		if local := asLocal(existing); local != nil {
			local.addDeclaration(decl)
		}
		return existing
	}
	var v Variable
	if kind == DeclParameter || kind == DeclCatch {
		v = newParameterVariable(s.module, id, kind)
	} else {
		v = newLocalVariable(s.module, id.Name, decl, init, kind)
	}
	s.declare(id.Name, v)
	return v
}

func (s *Scope) declare(name string, v Variable) {
	if _, ok := s.variables[name]; !ok {
		s.names = append(s.names, name)
	}
	s.variables[name] = v
}

// FindVariable resolves name from this scope outwards. Module scopes consult
// the module's imports before falling back to a global.
func (s *Scope) FindVariable(name string) Variable {
	for current := s; current != nil; current = current.parent {
		if v, ok := current.variables[name]; ok {
			return v
		}
		if name == "arguments" && current.arguments != nil {
			return current.arguments
		}
		if current.Kind == ScopeModule {
			if v := current.module.traceVariable(name, exportLookup{}); v != nil {
				return v
			}
			return current.module.graph.globalVariable(name)
		}
	}
	return s.module.graph.globalVariable(name)
}

// thisScope returns the nearest scope binding this, skipping arrow
// functions. Nil means module level, where this is undefined.
func (s *Scope) thisScope() *Scope {
	for current := s; current != nil; current = current.parent {
		if current.this != nil {
			return current
		}
	}
	return nil
}

// argumentsVariable returns the arguments object of the nearest non-arrow
// function, or nil.
func (s *Scope) argumentsVariable() *ArgumentsVariable {
	for current := s; current != nil; current = current.parent {
		if current.arguments != nil {
			return current.arguments
		}
	}
	return nil
}

// asLocal returns the LocalVariable embedded in v, if any.
func asLocal(v Variable) *LocalVariable {
	switch v := v.(type) {
	case *LocalVariable:
		return v
	case *ParameterVariable:
		return &v.LocalVariable
	case *ExportDefaultVariable:
		return &v.LocalVariable
	case *ThisVariable:
		return &v.LocalVariable
	case *ArgumentsVariable:
		return &v.LocalVariable
	}
	return nil
}
