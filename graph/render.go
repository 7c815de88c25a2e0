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
	"cmp"
	"slices"
	"strings"

	"bennypowers.dev/fascio/ast"
)

// segment is a piece of rendered output: either a source range copied
// verbatim or text standing in for removed code.
type segment struct {
	rg     ast.Range
	text   string
	source bool
}

// renderer walks an included statement and keeps only the code inclusion
// decided on. Excluded statements vanish, statically decided branches
// collapse to the live one and unused declarators are dropped.
type renderer struct {
	m   *Module
	src []byte
	out []segment
}

func (r *renderer) copy(start, end uint32) {
	if end <= start {
		return
	}
	if n := len(r.out); n > 0 && r.out[n-1].source && r.out[n-1].rg.End == start {
		r.out[n-1].rg.End = end
		return
	}
	r.out = append(r.out, segment{rg: ast.Range{Start: start, End: end}, source: true})
}

func (r *renderer) emit(text string) {
	r.out = append(r.out, segment{text: text})
}

func (r *renderer) String() string {
	var sb strings.Builder
	for _, s := range r.out {
		if s.source {
			sb.Write(r.src[s.rg.Start:s.rg.End])
		} else {
			sb.WriteString(s.text)
		}
	}
	return sb.String()
}

// render writes n. body is set when n is the single statement body of an
// if, loop or label, where removing it entirely would leave a dangling
// header.
func (r *renderer) render(n ast.Node, body bool) {
	if !n.IsIncluded() {
		r.splice(n)
		return
	}
	switch n := n.(type) {
	case *ast.SIf:
		r.renderIf(n, body)
	case *ast.EConditional:
		r.renderConditional(n)
	case *ast.ELogical:
		switch {
		case !n.Right.IsIncluded():
			r.render(n.Left, false)
		case !n.Left.IsIncluded():
			r.render(n.Right, false)
		default:
			r.splice(n)
		}
	case *ast.SVar:
		r.renderVar(n)
	default:
		r.splice(n)
	}
}

// splice copies the source of n, rendering each child in place.
func (r *renderer) splice(n ast.Node) {
	children := ast.Children(n)
	slices.SortStableFunc(children, func(a, b ast.Node) int {
		return cmp.Compare(a.Span().Start, b.Span().Start)
	})
	cursor := n.Span().Start
	for _, c := range children {
		span := c.Span()
		if span.Start < cursor {
			continue
		}
		r.copy(cursor, span.Start)
		r.child(n, c)
		cursor = span.End
	}
	r.copy(cursor, n.Span().End)
}

func (r *renderer) child(parent, c ast.Node) {
	body := isBodyPosition(parent)
	if _, ok := c.(ast.Stmt); ok && !c.IsIncluded() {
		if _, empty := c.(*ast.SEmpty); empty {
			r.copy(c.Span().Start, c.Span().End)
			return
		}
		if body {
			r.emit("{}")
		}
		return
	}
	r.render(c, body)
}

func isBodyPosition(n ast.Node) bool {
	switch n.(type) {
	case *ast.SIf, *ast.SWhile, *ast.SDoWhile, *ast.SFor, *ast.SForIn, *ast.SLabel:
		return true
	}
	return false
}

// liveBranch returns the only included branch. It reports false when both
// or neither are included.
func liveBranch[T ast.Node](yes, no T, hasNo bool) (live T, isYes, ok bool) {
	yesIn := yes.IsIncluded()
	noIn := hasNo && no.IsIncluded()
	switch {
	case yesIn && !noIn:
		return yes, true, true
	case noIn && !yesIn:
		return no, false, true
	}
	return live, false, false
}

// decided reports whether the test of n was statically known to pick the
// given branch.
func (r *renderer) decided(n ast.Node, yes bool) bool {
	c := r.m.branches[n]
	if c == nil || c.state != branchKnown {
		return false
	}
	truthy, known := Truthiness(c.value)
	return known && truthy == yes
}

func (r *renderer) renderIf(n *ast.SIf, body bool) {
	live, isYes, ok := liveBranch(n.Yes, n.No, n.No != nil)
	if !n.Test.IsIncluded() {
		// An excluded test means the branch was decided statically.
		switch {
		case ok:
			r.render(live, body)
		case body:
			r.emit("{}")
		}
		return
	}
	if ok && r.decided(n, isYes) {
		if body {
			r.emit("{ ")
		}
		r.emit("(")
		r.render(n.Test, false)
		r.emit("); ")
		r.render(live, false)
		if body {
			r.emit(" }")
		}
		return
	}
	span := n.Span()
	test := n.Test.Span()
	r.copy(span.Start, test.Start)
	r.render(n.Test, false)
	r.copy(test.End, n.Yes.Span().Start)
	r.child(n, n.Yes)
	end := n.Yes.Span().End
	if n.No != nil {
		if n.No.IsIncluded() {
			r.copy(end, n.No.Span().Start)
			r.render(n.No, true)
		}
		end = n.No.Span().End
	}
	r.copy(end, span.End)
}

func (r *renderer) renderConditional(n *ast.EConditional) {
	live, isYes, ok := liveBranch(n.Yes, n.No, true)
	switch {
	case ok && !n.Test.IsIncluded():
		r.render(live, false)
	case ok && r.decided(n, isYes):
		r.emit("(")
		r.render(n.Test, false)
		r.emit(", ")
		r.render(live, false)
		r.emit(")")
	default:
		r.splice(n)
	}
}

// renderVar drops unused declarators. A declarator whose binding is unused
// but whose initializer has effects becomes an expression statement.
func (r *renderer) renderVar(n *ast.SVar) {
	full := true
	for _, d := range n.Decls {
		if !d.IsIncluded() || !d.Binding.IsIncluded() {
			full = false
			break
		}
	}
	if full || len(n.Decls) == 0 {
		r.splice(n)
		return
	}
	keyword := r.src[n.Span().Start:n.Decls[0].Span().Start]
	var run []*ast.VarDecl
	first := true
	sep := func() {
		if !first {
			r.emit(" ")
		}
		first = false
	}
	flush := func() {
		if len(run) == 0 {
			return
		}
		sep()
		r.emit(string(keyword))
		for i, d := range run {
			if i > 0 {
				r.emit(", ")
			}
			r.render(d, false)
		}
		r.emit(";")
		run = run[:0]
	}
	for _, d := range n.Decls {
		switch {
		case !d.IsIncluded():
		case d.Binding.IsIncluded():
			run = append(run, d)
		case d.Init != nil && d.Init.IsIncluded():
			flush()
			sep()
			r.render(d.Init, false)
			r.emit(";")
		}
	}
	flush()
}

// RenderStatements returns the code each included top-level statement
// keeps, in source order. Imports are left to the chunk renderer.
func (m *Module) RenderStatements() []string {
	var out []string
	for _, r := range m.renderers() {
		if code := strings.TrimSpace(r.String()); code != "" {
			out = append(out, code)
		}
	}
	return out
}

// IncludedRanges returns the source ranges that survive in the rendered
// statements, in source order. Text synthesized while collapsing branches
// is not part of any range.
func (m *Module) IncludedRanges() []ast.Range {
	var out []ast.Range
	for _, r := range m.renderers() {
		for _, s := range r.out {
			if s.source {
				out = append(out, s.rg)
			}
		}
	}
	return out
}

func (m *Module) renderers() []*renderer {
	if m.AST == nil {
		return nil
	}
	var out []*renderer
	for _, s := range m.AST.Body {
		if !s.IsIncluded() {
			continue
		}
		if _, ok := s.(*ast.SImport); ok {
			continue
		}
		r := &renderer{m: m, src: m.Source}
		r.render(s, false)
		out = append(out, r)
	}
	return out
}
