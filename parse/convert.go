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
package parse

import (
	"strconv"
	"strings"

	ts "github.com/tree-sitter/go-tree-sitter"

	"bennypowers.dev/fascio/ast"
)

type converter struct {
	src []byte
}

func (c *converter) text(n *ts.Node) string {
	return n.Utf8Text(c.src)
}

func (c *converter) base(n *ts.Node) ast.Base {
	return ast.At(uint32(n.StartByte()), uint32(n.EndByte()))
}

// children returns every child, anonymous tokens included.
func children(n *ts.Node) []*ts.Node {
	count := n.ChildCount()
	out := make([]*ts.Node, 0, count)
	for i := uint(0); i < count; i++ {
		if child := n.Child(i); child != nil {
			out = append(out, child)
		}
	}
	return out
}

// namedChildren returns the named children other than comments.
func namedChildren(n *ts.Node) []*ts.Node {
	count := n.NamedChildCount()
	out := make([]*ts.Node, 0, count)
	for i := uint(0); i < count; i++ {
		child := n.NamedChild(i)
		if child == nil || child.Kind() == "comment" {
			continue
		}
		out = append(out, child)
	}
	return out
}

func firstNamed(n *ts.Node) *ts.Node {
	for _, child := range namedChildren(n) {
		return child
	}
	return nil
}

// hasToken reports whether n has an anonymous child token with the given text.
func hasToken(n *ts.Node, token string) bool {
	for _, child := range children(n) {
		if !child.IsNamed() && child.Kind() == token {
			return true
		}
	}
	return false
}

func sameNode(a, b *ts.Node) bool {
	return a != nil && b != nil && a.Id() == b.Id()
}

func (c *converter) program(root *ts.Node) *ast.Program {
	prog := &ast.Program{Base: c.base(root)}
	for _, child := range namedChildren(root) {
		if child.Kind() == "hash_bang_line" {
			continue
		}
		prog.Body = append(prog.Body, c.stmt(child))
	}
	return prog
}

func (c *converter) block(n *ts.Node) *ast.SBlock {
	if n == nil {
		return nil
	}
	b := &ast.SBlock{Base: c.base(n)}
	for _, child := range namedChildren(n) {
		b.Body = append(b.Body, c.stmt(child))
	}
	return b
}

func (c *converter) stmts(nodes []*ts.Node) []ast.Stmt {
	out := make([]ast.Stmt, 0, len(nodes))
	for _, n := range nodes {
		out = append(out, c.stmt(n))
	}
	return out
}

func (c *converter) stmt(n *ts.Node) ast.Stmt {
	b := c.base(n)
	switch n.Kind() {
	case "import_statement":
		return c.importStmt(n)
	case "export_statement":
		return c.exportStmt(n)
	case "lexical_declaration", "variable_declaration":
		return c.varDecl(n)
	case "function_declaration", "generator_function_declaration":
		return &ast.SFunction{Base: b, Fn: c.function(n)}
	case "class_declaration", "abstract_class_declaration":
		return &ast.SClass{Base: b, Class: c.class(n)}
	case "expression_statement":
		return &ast.SExpr{Base: b, Value: c.expressions(firstNamed(n))}
	case "statement_block":
		return c.block(n)
	case "if_statement":
		s := &ast.SIf{Base: b, Test: c.expr(n.ChildByFieldName("condition"))}
		s.Yes = c.stmt(n.ChildByFieldName("consequence"))
		if alt := n.ChildByFieldName("alternative"); alt != nil {
			if inner := firstNamed(alt); inner != nil {
				s.No = c.stmt(inner)
			}
		}
		return s
	case "return_statement":
		s := &ast.SReturn{Base: b}
		if arg := firstNamed(n); arg != nil {
			s.Value = c.expressions(arg)
		}
		return s
	case "throw_statement":
		return &ast.SThrow{Base: b, Value: c.expressions(firstNamed(n))}
	case "for_statement":
		return c.forStmt(n)
	case "for_in_statement":
		return c.forInStmt(n)
	case "while_statement":
		return &ast.SWhile{
			Base: b,
			Test: c.expr(n.ChildByFieldName("condition")),
			Body: c.stmt(n.ChildByFieldName("body")),
		}
	case "do_statement":
		return &ast.SDoWhile{
			Base: b,
			Body: c.stmt(n.ChildByFieldName("body")),
			Test: c.expr(n.ChildByFieldName("condition")),
		}
	case "try_statement":
		return c.tryStmt(n)
	case "switch_statement":
		return c.switchStmt(n)
	case "labeled_statement":
		return &ast.SLabel{
			Base: b,
			Name: c.text(n.ChildByFieldName("label")),
			Body: c.stmt(n.ChildByFieldName("body")),
		}
	case "break_statement":
		s := &ast.SBreak{Base: b}
		if label := n.ChildByFieldName("label"); label != nil {
			s.Label = c.text(label)
		}
		return s
	case "continue_statement":
		s := &ast.SContinue{Base: b}
		if label := n.ChildByFieldName("label"); label != nil {
			s.Label = c.text(label)
		}
		return s
	case "empty_statement":
		return &ast.SEmpty{Base: b}
	case "debugger_statement":
		return &ast.SDebugger{Base: b}
	case "interface_declaration", "type_alias_declaration", "ambient_declaration",
		"function_signature", "abstract_method_signature":
		return &ast.STypeOnly{Base: b}
	case "enum_declaration", "module", "internal_module":
		// Runtime constructs the analysis does not model. They stay in the
		// bundle whenever they are reached and bind their name.
		s := &ast.SUnknown{Base: b}
		if name := n.ChildByFieldName("name"); name != nil && name.Kind() == "identifier" {
			s.Declares = append(s.Declares, &ast.EIdentifier{Base: c.base(name), Name: c.text(name)})
		}
		for _, child := range namedChildren(n) {
			if child.Kind() == "enum_body" || child.Kind() == "statement_block" {
				s.Children = append(s.Children, c.unknownChildren(child)...)
			}
		}
		return s
	}
	return &ast.SUnknown{Base: b, Children: c.unknownChildren(n)}
}

func (c *converter) importStmt(n *ts.Node) ast.Stmt {
	s := &ast.SImport{Base: c.base(n)}
	if src := n.ChildByFieldName("source"); src != nil {
		s.Source = c.stringValue(src)
	}
	if hasToken(n, "type") || hasToken(n, "typeof") {
		s.TypeOnly = true
	}
	for _, child := range namedChildren(n) {
		switch child.Kind() {
		case "import_clause":
			c.importClause(child, s)
		case "import_require_clause":
			// import x = require('y')
			return &ast.SUnknown{Base: c.base(n), Children: c.unknownChildren(child)}
		}
	}
	return s
}

func (c *converter) importClause(n *ts.Node, s *ast.SImport) {
	for _, child := range namedChildren(n) {
		switch child.Kind() {
		case "identifier":
			s.Default = c.ident(child)
		case "namespace_import":
			if id := firstNamed(child); id != nil {
				s.Namespace = c.ident(id)
			}
		case "named_imports":
			for _, spec := range namedChildren(child) {
				if spec.Kind() != "import_specifier" || hasToken(spec, "type") || hasToken(spec, "typeof") {
					continue
				}
				name := spec.ChildByFieldName("name")
				local := spec.ChildByFieldName("alias")
				if local == nil {
					local = name
				}
				s.Named = append(s.Named, &ast.ImportSpecifier{
					Imported: c.moduleExportName(name),
					Local:    c.ident(local),
				})
			}
		}
	}
}

func (c *converter) moduleExportName(n *ts.Node) string {
	if n.Kind() == "string" {
		return c.stringValue(n)
	}
	return c.text(n)
}

func (c *converter) exportStmt(n *ts.Node) ast.Stmt {
	b := c.base(n)
	src := n.ChildByFieldName("source")
	isDefault := hasToken(n, "default")

	if decl := n.ChildByFieldName("declaration"); decl != nil {
		inner := c.stmt(decl)
		if _, typeOnly := inner.(*ast.STypeOnly); typeOnly {
			return inner
		}
		if isDefault {
			return &ast.SExportDefault{Base: b, Decl: inner}
		}
		return &ast.SExportNamed{Base: b, Decl: inner}
	}
	if value := n.ChildByFieldName("value"); value != nil {
		if !isDefault {
			// export = value
			return &ast.SUnknown{Base: b, Children: []ast.Node{c.expr(value)}}
		}
		return &ast.SExportDefault{Base: b, Value: c.expr(value)}
	}
	if hasToken(n, "type") {
		return &ast.STypeOnly{Base: b}
	}
	// The star of `export * as ns` belongs to the namespace_export child.
	var nsExport *ts.Node
	for _, child := range namedChildren(n) {
		if child.Kind() == "namespace_export" {
			nsExport = child
		}
	}
	if nsExport != nil || hasToken(n, "*") {
		s := &ast.SExportAll{Base: b}
		if src != nil {
			s.Source = c.stringValue(src)
		}
		if nsExport != nil {
			if name := firstNamed(nsExport); name != nil {
				s.Alias = c.moduleExportName(name)
			}
		}
		return s
	}
	s := &ast.SExportNamed{Base: b}
	if src != nil {
		s.Source = c.stringValue(src)
		s.HasSource = true
	}
	for _, child := range namedChildren(n) {
		if child.Kind() != "export_clause" {
			continue
		}
		for _, spec := range namedChildren(child) {
			if spec.Kind() != "export_specifier" || hasToken(spec, "type") {
				continue
			}
			local := c.moduleExportName(spec.ChildByFieldName("name"))
			exported := local
			if alias := spec.ChildByFieldName("alias"); alias != nil {
				exported = c.moduleExportName(alias)
			}
			s.Specifiers = append(s.Specifiers, &ast.ExportSpecifier{Local: local, Exported: exported})
		}
	}
	if len(s.Specifiers) == 0 && !s.HasSource && hasToken(n, "as") {
		// export as namespace Foo
		return &ast.STypeOnly{Base: b}
	}
	return s
}

func (c *converter) varDecl(n *ts.Node) *ast.SVar {
	s := &ast.SVar{Base: c.base(n)}
	switch {
	case hasToken(n, "let"):
		s.Kind = ast.VarLet
	case hasToken(n, "const"):
		s.Kind = ast.VarConst
	default:
		s.Kind = ast.VarVar
	}
	for _, child := range namedChildren(n) {
		if child.Kind() != "variable_declarator" {
			continue
		}
		d := &ast.VarDecl{Base: c.base(child), Binding: c.pattern(child.ChildByFieldName("name"))}
		if value := child.ChildByFieldName("value"); value != nil {
			d.Init = c.expr(value)
		}
		s.Decls = append(s.Decls, d)
	}
	return s
}

func (c *converter) forStmt(n *ts.Node) ast.Stmt {
	s := &ast.SFor{Base: c.base(n), Body: c.stmt(n.ChildByFieldName("body"))}
	if init := n.ChildByFieldName("initializer"); init != nil {
		switch init.Kind() {
		case "lexical_declaration", "variable_declaration":
			s.Init = c.varDecl(init)
		case "expression_statement":
			s.Init = c.expressions(firstNamed(init))
		case "empty_statement", ";":
		default:
			s.Init = c.expressions(init)
		}
	}
	if cond := n.ChildByFieldName("condition"); cond != nil {
		switch cond.Kind() {
		case "expression_statement":
			s.Test = c.expressions(firstNamed(cond))
		case "empty_statement", ";":
		default:
			s.Test = c.expressions(cond)
		}
	}
	if inc := n.ChildByFieldName("increment"); inc != nil {
		s.Update = c.expressions(inc)
	}
	return s
}

func (c *converter) forInStmt(n *ts.Node) ast.Stmt {
	s := &ast.SForIn{
		Base:  c.base(n),
		Right: c.expressions(n.ChildByFieldName("right")),
		Body:  c.stmt(n.ChildByFieldName("body")),
		Await: hasToken(n, "await"),
	}
	if op := n.ChildByFieldName("operator"); op != nil {
		s.Of = c.text(op) == "of"
	} else {
		s.Of = hasToken(n, "of")
	}
	left := n.ChildByFieldName("left")
	if kind := n.ChildByFieldName("kind"); kind != nil {
		decl := &ast.SVar{Base: c.base(left)}
		switch c.text(kind) {
		case "let":
			decl.Kind = ast.VarLet
		case "const":
			decl.Kind = ast.VarConst
		}
		decl.Decls = []*ast.VarDecl{{Base: c.base(left), Binding: c.pattern(left)}}
		s.Left = decl
	} else {
		s.Left = c.pattern(left)
	}
	return s
}

func (c *converter) tryStmt(n *ts.Node) ast.Stmt {
	s := &ast.STry{Base: c.base(n), Block: c.block(n.ChildByFieldName("body"))}
	if handler := n.ChildByFieldName("handler"); handler != nil {
		if param := handler.ChildByFieldName("parameter"); param != nil {
			s.Param = c.pattern(param)
		}
		s.Handler = c.block(handler.ChildByFieldName("body"))
	}
	if fin := n.ChildByFieldName("finalizer"); fin != nil {
		s.Finalizer = c.block(fin.ChildByFieldName("body"))
	}
	return s
}

func (c *converter) switchStmt(n *ts.Node) ast.Stmt {
	s := &ast.SSwitch{Base: c.base(n), Test: c.expr(n.ChildByFieldName("value"))}
	body := n.ChildByFieldName("body")
	if body == nil {
		return s
	}
	for _, clause := range namedChildren(body) {
		sc := &ast.SwitchCase{Base: c.base(clause)}
		value := clause.ChildByFieldName("value")
		if clause.Kind() == "switch_case" && value != nil {
			sc.Test = c.expressions(value)
		}
		for _, child := range namedChildren(clause) {
			if sameNode(child, value) {
				continue
			}
			sc.Body = append(sc.Body, c.stmt(child))
		}
		s.Cases = append(s.Cases, sc)
	}
	return s
}

// function converts any function-like node: declarations, expressions,
// arrows and method definitions.
func (c *converter) function(n *ts.Node) *ast.Function {
	fn := &ast.Function{
		Base:      c.base(n),
		Async:     hasToken(n, "async"),
		Generator: hasToken(n, "*"),
		Arrow:     n.Kind() == "arrow_function",
	}
	if name := n.ChildByFieldName("name"); name != nil && name.Kind() == "identifier" {
		fn.Name = c.ident(name)
	}
	if param := n.ChildByFieldName("parameter"); param != nil {
		fn.Params = []ast.Expr{c.pattern(param)}
	} else if params := n.ChildByFieldName("parameters"); params != nil {
		fn.Params = c.params(params)
	}
	if body := n.ChildByFieldName("body"); body != nil {
		if body.Kind() == "statement_block" {
			fn.Body = c.block(body)
		} else {
			fn.ExprBody = c.expr(body)
		}
	}
	return fn
}

func (c *converter) params(n *ts.Node) []ast.Expr {
	var out []ast.Expr
	for _, p := range namedChildren(n) {
		switch p.Kind() {
		case "required_parameter", "optional_parameter":
			pat := p.ChildByFieldName("pattern")
			if pat == nil || pat.Kind() == "this" {
				continue
			}
			target := c.pattern(pat)
			if value := p.ChildByFieldName("value"); value != nil {
				target = &ast.EAssignPattern{Base: c.base(p), Target: target, Default: c.expr(value)}
			}
			out = append(out, target)
		default:
			out = append(out, c.pattern(p))
		}
	}
	return out
}

func (c *converter) class(n *ts.Node) *ast.Class {
	cls := &ast.Class{Base: c.base(n)}
	if name := n.ChildByFieldName("name"); name != nil {
		cls.Name = &ast.EIdentifier{Base: c.base(name), Name: c.text(name)}
	}
	for _, child := range namedChildren(n) {
		switch child.Kind() {
		case "decorator":
			cls.Decorators = append(cls.Decorators, c.decorator(child))
		case "class_heritage":
			cls.Extends = c.heritage(child)
		}
	}
	body := n.ChildByFieldName("body")
	if body == nil {
		return cls
	}
	for _, m := range namedChildren(body) {
		switch m.Kind() {
		case "method_definition":
			cls.Decorators = append(cls.Decorators, c.memberDecorators(m)...)
			cls.Members = append(cls.Members, c.method(m))
		case "field_definition", "public_field_definition":
			cls.Decorators = append(cls.Decorators, c.memberDecorators(m)...)
			cls.Members = append(cls.Members, c.field(m))
		case "class_static_block":
			cls.Members = append(cls.Members, &ast.ClassMember{
				Base:   c.base(m),
				Kind:   ast.MemberStaticBlock,
				Static: true,
				Body:   c.block(m.ChildByFieldName("body")),
			})
		case "decorator":
			cls.Decorators = append(cls.Decorators, c.decorator(m))
		}
	}
	return cls
}

func (c *converter) heritage(n *ts.Node) ast.Expr {
	for _, child := range namedChildren(n) {
		if child.Kind() == "extends_clause" {
			if value := child.ChildByFieldName("value"); value != nil {
				return c.expr(value)
			}
			if inner := firstNamed(child); inner != nil {
				return c.expr(inner)
			}
			return nil
		}
		if child.Kind() == "implements_clause" {
			continue
		}
		return c.expr(child)
	}
	return nil
}

func (c *converter) decorator(n *ts.Node) ast.Expr {
	if inner := firstNamed(n); inner != nil {
		return c.expr(inner)
	}
	return &ast.EUnknown{Base: c.base(n)}
}

func (c *converter) memberDecorators(n *ts.Node) []ast.Expr {
	var out []ast.Expr
	for _, child := range namedChildren(n) {
		if child.Kind() == "decorator" {
			out = append(out, c.decorator(child))
		}
	}
	return out
}

func (c *converter) setMemberKey(m *ast.ClassMember, key *ts.Node) {
	if key == nil {
		return
	}
	m.Key, m.KeyName, m.Computed = c.propertyKey(key)
}

func (c *converter) method(n *ts.Node) *ast.ClassMember {
	m := &ast.ClassMember{Base: c.base(n), Kind: ast.MemberMethod, Static: hasToken(n, "static")}
	switch {
	case hasToken(n, "get"):
		m.Kind = ast.MemberGetter
	case hasToken(n, "set"):
		m.Kind = ast.MemberSetter
	}
	c.setMemberKey(m, n.ChildByFieldName("name"))
	m.Value = &ast.EFunction{Base: c.base(n), Fn: c.function(n)}
	return m
}

func (c *converter) field(n *ts.Node) *ast.ClassMember {
	m := &ast.ClassMember{Base: c.base(n), Kind: ast.MemberField, Static: hasToken(n, "static")}
	key := n.ChildByFieldName("name")
	if key == nil {
		key = n.ChildByFieldName("property")
	}
	c.setMemberKey(m, key)
	if value := n.ChildByFieldName("value"); value != nil {
		m.Value = c.expr(value)
	}
	return m
}

// propertyKey converts a property name node into either a static key name
// or a computed key expression.
func (c *converter) propertyKey(n *ts.Node) (key ast.Expr, name string, computed bool) {
	switch n.Kind() {
	case "property_identifier", "private_property_identifier", "identifier",
		"shorthand_property_identifier", "shorthand_property_identifier_pattern":
		return nil, c.text(n), false
	case "string":
		return nil, c.stringValue(n), false
	case "number":
		return nil, numberKey(c.text(n)), false
	case "computed_property_name":
		inner := c.expressions(firstNamed(n))
		if s, ok := inner.(*ast.EString); ok {
			return inner, s.Value, false
		}
		return inner, "", true
	}
	return c.expr(n), "", true
}

func numberKey(raw string) string {
	if v, ok := parseNumber(raw); ok {
		return strconv.FormatFloat(v, 'g', -1, 64)
	}
	return raw
}

func (c *converter) ident(n *ts.Node) *ast.EIdentifier {
	return &ast.EIdentifier{Base: c.base(n), Name: c.text(n)}
}

// expressions converts a node that may be a sequence expression.
func (c *converter) expressions(n *ts.Node) ast.Expr {
	if n == nil {
		return &ast.EUndefined{}
	}
	return c.expr(n)
}

func (c *converter) exprList(nodes []*ts.Node) []ast.Expr {
	out := make([]ast.Expr, 0, len(nodes))
	for _, n := range nodes {
		out = append(out, c.expr(n))
	}
	return out
}

func (c *converter) expr(n *ts.Node) ast.Expr {
	if n == nil {
		return &ast.EUndefined{}
	}
	b := c.base(n)
	switch n.Kind() {
	case "identifier", "undefined":
		return &ast.EIdentifier{Base: b, Name: c.text(n)}
	case "this":
		return &ast.EThis{Base: b}
	case "super":
		return &ast.ESuper{Base: b}
	case "true":
		return &ast.EBoolean{Base: b, Value: true}
	case "false":
		return &ast.EBoolean{Base: b}
	case "null":
		return &ast.ENull{Base: b}
	case "number":
		raw := c.text(n)
		if strings.HasSuffix(raw, "n") {
			return &ast.EBigInt{Base: b, Raw: raw}
		}
		v, _ := parseNumber(raw)
		return &ast.ENumber{Base: b, Value: v}
	case "string":
		return &ast.EString{Base: b, Value: c.stringValue(n)}
	case "template_string":
		return c.template(n, nil)
	case "regex":
		return &ast.ERegExp{Base: b, Raw: c.text(n)}
	case "parenthesized_expression":
		return c.expressions(firstNamed(n))
	case "sequence_expression":
		seq := &ast.ESequence{Base: b}
		c.flattenSequence(n, seq)
		return seq
	case "array":
		return &ast.EArray{Base: b, Items: c.elements(n, c.expr)}
	case "object":
		return c.object(n)
	case "spread_element":
		return &ast.ESpread{Base: b, Value: c.expr(firstNamed(n))}
	case "function_expression", "function", "generator_function", "arrow_function":
		return &ast.EFunction{Base: b, Fn: c.function(n)}
	case "class":
		return &ast.EClass{Base: b, Class: c.class(n)}
	case "call_expression":
		return c.call(n)
	case "new_expression":
		e := &ast.ENew{Base: b, Callee: c.expr(n.ChildByFieldName("constructor")), Pure: c.isPure(n)}
		if args := n.ChildByFieldName("arguments"); args != nil {
			e.Args = c.exprList(namedChildren(args))
		}
		return e
	case "member_expression":
		prop := n.ChildByFieldName("property")
		return &ast.EMember{
			Base:     b,
			Object:   c.expr(n.ChildByFieldName("object")),
			Name:     c.text(prop),
			Optional: n.ChildByFieldName("optional_chain") != nil,
			Private:  prop.Kind() == "private_property_identifier",
		}
	case "subscript_expression":
		e := &ast.EMember{
			Base:     b,
			Object:   c.expr(n.ChildByFieldName("object")),
			Optional: n.ChildByFieldName("optional_chain") != nil,
		}
		index := c.expressions(n.ChildByFieldName("index"))
		switch key := index.(type) {
		case *ast.EString:
			e.Name = key.Value
		case *ast.ENumber:
			e.Name = strconv.FormatFloat(key.Value, 'g', -1, 64)
		default:
			e.Index = index
		}
		return e
	case "assignment_expression":
		return &ast.EAssign{
			Base:   b,
			Op:     "=",
			Target: c.pattern(n.ChildByFieldName("left")),
			Value:  c.expr(n.ChildByFieldName("right")),
		}
	case "augmented_assignment_expression":
		return &ast.EAssign{
			Base:   b,
			Op:     c.text(n.ChildByFieldName("operator")),
			Target: c.pattern(n.ChildByFieldName("left")),
			Value:  c.expr(n.ChildByFieldName("right")),
		}
	case "binary_expression":
		op := c.text(n.ChildByFieldName("operator"))
		left, right := n.ChildByFieldName("left"), n.ChildByFieldName("right")
		if left != nil && left.Kind() == "private_property_identifier" {
			// #field in obj
			return &ast.EUnknown{Base: b, Children: []ast.Node{c.expr(right)}}
		}
		switch op {
		case "&&", "||", "??":
			return &ast.ELogical{Base: b, Op: op, Left: c.expr(left), Right: c.expr(right)}
		}
		return &ast.EBinary{Base: b, Op: op, Left: c.expr(left), Right: c.expr(right)}
	case "unary_expression":
		return &ast.EUnary{
			Base:  b,
			Op:    c.text(n.ChildByFieldName("operator")),
			Value: c.expr(n.ChildByFieldName("argument")),
		}
	case "update_expression":
		op := n.ChildByFieldName("operator")
		arg := n.ChildByFieldName("argument")
		return &ast.EUpdate{
			Base:   b,
			Op:     c.text(op),
			Prefix: op.StartByte() < arg.StartByte(),
			Target: c.pattern(arg),
		}
	case "ternary_expression":
		return &ast.EConditional{
			Base: b,
			Test: c.expr(n.ChildByFieldName("condition")),
			Yes:  c.expr(n.ChildByFieldName("consequence")),
			No:   c.expr(n.ChildByFieldName("alternative")),
		}
	case "await_expression":
		return &ast.EAwait{Base: b, Value: c.expr(firstNamed(n))}
	case "yield_expression":
		e := &ast.EYield{Base: b, Delegate: hasToken(n, "*")}
		if arg := firstNamed(n); arg != nil {
			e.Value = c.expr(arg)
		}
		return e
	case "meta_property":
		if strings.HasPrefix(c.text(n), "import") {
			return &ast.EImportMeta{Base: b}
		}
		return &ast.EUnknown{Base: b}
	case "as_expression", "satisfies_expression", "non_null_expression",
		"instantiation_expression":
		return c.expr(firstNamed(n))
	case "type_assertion":
		named := namedChildren(n)
		if len(named) > 0 {
			return c.expr(named[len(named)-1])
		}
	case "object_pattern", "array_pattern", "assignment_pattern", "rest_pattern":
		return c.pattern(n)
	}
	return &ast.EUnknown{Base: b, Children: c.unknownChildren(n)}
}

func (c *converter) flattenSequence(n *ts.Node, seq *ast.ESequence) {
	for _, child := range namedChildren(n) {
		if child.Kind() == "sequence_expression" {
			c.flattenSequence(child, seq)
			continue
		}
		seq.Exprs = append(seq.Exprs, c.expr(child))
	}
}

// elements converts array literal and array pattern items, turning elided
// positions into nil entries.
func (c *converter) elements(n *ts.Node, convert func(*ts.Node) ast.Expr) []ast.Expr {
	var items []ast.Expr
	expectItem := true
	for _, child := range children(n) {
		switch {
		case child.Kind() == "comment":
		case !child.IsNamed() && child.Kind() == ",":
			if expectItem {
				items = append(items, nil)
			}
			expectItem = true
		case child.IsNamed():
			items = append(items, convert(child))
			expectItem = false
		}
	}
	return items
}

func (c *converter) object(n *ts.Node) ast.Expr {
	obj := &ast.EObject{Base: c.base(n)}
	for _, child := range namedChildren(n) {
		b := c.base(child)
		switch child.Kind() {
		case "pair":
			p := &ast.Property{Base: b, Kind: ast.PropInit}
			p.Key, p.KeyName, p.Computed = c.propertyKey(child.ChildByFieldName("key"))
			p.Value = c.expr(child.ChildByFieldName("value"))
			obj.Props = append(obj.Props, p)
		case "shorthand_property_identifier":
			obj.Props = append(obj.Props, &ast.Property{
				Base:    b,
				Kind:    ast.PropShorthand,
				KeyName: c.text(child),
				Value:   &ast.EIdentifier{Base: b, Name: c.text(child)},
			})
		case "method_definition":
			p := &ast.Property{Base: b, Kind: ast.PropMethod}
			switch {
			case hasToken(child, "get"):
				p.Kind = ast.PropGetter
			case hasToken(child, "set"):
				p.Kind = ast.PropSetter
			}
			p.Key, p.KeyName, p.Computed = c.propertyKey(child.ChildByFieldName("name"))
			p.Value = &ast.EFunction{Base: b, Fn: c.function(child)}
			obj.Props = append(obj.Props, p)
		case "spread_element":
			obj.Props = append(obj.Props, &ast.Property{
				Base:  b,
				Kind:  ast.PropSpread,
				Value: c.expr(firstNamed(child)),
			})
		}
	}
	return obj
}

func (c *converter) call(n *ts.Node) ast.Expr {
	b := c.base(n)
	fn := n.ChildByFieldName("function")
	args := n.ChildByFieldName("arguments")
	if fn != nil && fn.Kind() == "import" {
		e := &ast.EImportCall{Base: b}
		var list []*ts.Node
		if args != nil {
			list = namedChildren(args)
		}
		if len(list) > 0 {
			e.Source = c.expr(list[0])
			if s, ok := e.Source.(*ast.EString); ok {
				e.SourceText = s.Value
			}
		}
		if len(list) > 1 {
			e.Options = c.expr(list[1])
		}
		return e
	}
	if args != nil && args.Kind() == "template_string" {
		return c.template(args, c.expr(fn))
	}
	e := &ast.ECall{
		Base:     b,
		Callee:   c.expr(fn),
		Optional: n.ChildByFieldName("optional_chain") != nil,
		Pure:     c.isPure(n),
	}
	if args != nil {
		e.Args = c.exprList(namedChildren(args))
	}
	return e
}

func (c *converter) template(n *ts.Node, tag ast.Expr) ast.Expr {
	t := &ast.ETemplate{Base: c.base(n), Tag: tag}
	var quasi strings.Builder
	for _, child := range namedChildren(n) {
		switch child.Kind() {
		case "string_fragment":
			quasi.WriteString(c.text(child))
		case "escape_sequence":
			quasi.WriteString(unescape(c.text(child)))
		case "template_substitution":
			t.Quasis = append(t.Quasis, quasi.String())
			quasi.Reset()
			t.Exprs = append(t.Exprs, c.expressions(firstNamed(child)))
		}
	}
	t.Quasis = append(t.Quasis, quasi.String())
	return t
}

// isPure reports whether a call or new expression carries a
// /*#__PURE__*/ or /*@__PURE__*/ annotation. The comment may sit in front of
// an enclosing node that starts at the same offset.
func (c *converter) isPure(n *ts.Node) bool {
	for cur, depth := n, 0; cur != nil && depth < 4; depth++ {
		for prev := cur.PrevSibling(); prev != nil && prev.Kind() == "comment"; prev = prev.PrevSibling() {
			if isPureComment(c.text(prev)) {
				return true
			}
		}
		parent := cur.Parent()
		if parent == nil || parent.StartByte() != cur.StartByte() {
			break
		}
		cur = parent
	}
	return false
}

func isPureComment(text string) bool {
	return strings.Contains(text, "#__PURE__") || strings.Contains(text, "@__PURE__")
}

// pattern converts binding and assignment targets.
func (c *converter) pattern(n *ts.Node) ast.Expr {
	if n == nil {
		return &ast.EUnknown{}
	}
	b := c.base(n)
	switch n.Kind() {
	case "identifier", "shorthand_property_identifier_pattern", "undefined":
		return &ast.EIdentifier{Base: b, Name: c.text(n)}
	case "object_pattern":
		obj := &ast.EObjectPattern{Base: b}
		for _, child := range namedChildren(n) {
			cb := c.base(child)
			switch child.Kind() {
			case "pair_pattern":
				p := &ast.PatternProperty{Base: cb, Value: c.pattern(child.ChildByFieldName("value"))}
				p.Key, p.KeyName, p.Computed = c.propertyKey(child.ChildByFieldName("key"))
				obj.Props = append(obj.Props, p)
			case "shorthand_property_identifier_pattern", "shorthand_property_identifier":
				obj.Props = append(obj.Props, &ast.PatternProperty{
					Base:    cb,
					KeyName: c.text(child),
					Value:   &ast.EIdentifier{Base: cb, Name: c.text(child)},
				})
			case "object_assignment_pattern":
				left := child.ChildByFieldName("left")
				p := &ast.PatternProperty{Base: cb, KeyName: c.text(left)}
				p.Value = &ast.EAssignPattern{
					Base:    cb,
					Target:  c.pattern(left),
					Default: c.expr(child.ChildByFieldName("right")),
				}
				obj.Props = append(obj.Props, p)
			case "rest_pattern":
				obj.Rest = c.pattern(firstNamed(child))
			}
		}
		return obj
	case "array_pattern":
		return &ast.EArrayPattern{Base: b, Items: c.elements(n, c.pattern)}
	case "assignment_pattern":
		return &ast.EAssignPattern{
			Base:    b,
			Target:  c.pattern(n.ChildByFieldName("left")),
			Default: c.expr(n.ChildByFieldName("right")),
		}
	case "rest_pattern":
		return &ast.ERest{Base: b, Target: c.pattern(firstNamed(n))}
	case "parenthesized_expression", "non_null_expression", "as_expression", "satisfies_expression":
		return c.pattern(firstNamed(n))
	}
	return c.expr(n)
}

// unknownChildren converts the children of an unmodelled construct so the
// identifiers inside still bind.
func (c *converter) unknownChildren(n *ts.Node) []ast.Node {
	var out []ast.Node
	for _, child := range namedChildren(n) {
		if isTypeNode(child.Kind()) {
			continue
		}
		if isStatementKind(child.Kind()) {
			out = append(out, c.stmt(child))
		} else {
			out = append(out, c.expr(child))
		}
	}
	return out
}

func isTypeNode(kind string) bool {
	switch kind {
	case "type_annotation", "type_arguments", "type_parameters", "type_identifier",
		"predefined_type", "property_identifier", "statement_identifier":
		return true
	}
	return false
}

func isStatementKind(kind string) bool {
	return strings.HasSuffix(kind, "_statement") || strings.HasSuffix(kind, "_declaration") ||
		kind == "statement_block"
}

// stringValue returns the cooked value of a string literal node.
func (c *converter) stringValue(n *ts.Node) string {
	var sb strings.Builder
	parts := namedChildren(n)
	if len(parts) == 0 {
		raw := c.text(n)
		if len(raw) >= 2 {
			return raw[1 : len(raw)-1]
		}
		return ""
	}
	for _, part := range parts {
		switch part.Kind() {
		case "escape_sequence":
			sb.WriteString(unescape(c.text(part)))
		default:
			sb.WriteString(c.text(part))
		}
	}
	return sb.String()
}

// unescape decodes a single escape sequence.
func unescape(seq string) string {
	if len(seq) < 2 || seq[0] != '\\' {
		return seq
	}
	switch seq[1] {
	case '\n', '\r', 0xe2:
		// line continuation
		return ""
	case 'u':
		if strings.HasPrefix(seq, `\u{`) && strings.HasSuffix(seq, "}") {
			if r, err := strconv.ParseUint(seq[3:len(seq)-1], 16, 32); err == nil {
				return string(rune(r))
			}
			return seq
		}
	case '0':
		if len(seq) == 2 {
			return "\x00"
		}
	}
	if value, _, tail, err := strconv.UnquoteChar(seq, '"'); err == nil && tail == "" {
		return string(value)
	}
	return seq[1:]
}

// parseNumber converts a numeric literal, including hex, octal, binary and
// separator forms.
func parseNumber(raw string) (float64, bool) {
	s := strings.ReplaceAll(raw, "_", "")
	if len(s) > 1 && s[0] == '0' {
		switch s[1] {
		case 'x', 'X', 'o', 'O', 'b', 'B':
			if v, err := strconv.ParseUint(s, 0, 64); err == nil {
				return float64(v), true
			}
			return 0, false
		case '.', 'e', 'E':
		default:
			// legacy octal
			if v, err := strconv.ParseUint(s[1:], 8, 64); err == nil {
				return float64(v), true
			}
		}
	}
	v, err := strconv.ParseFloat(s, 64)
	return v, err == nil
}
