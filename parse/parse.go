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
// Package parse turns JavaScript and TypeScript source into the ast tree
// the analysis runs on. Parsing is done by tree-sitter; the concrete syntax
// tree is then lowered into ast nodes carrying byte ranges into the source.
package parse

import (
	"path"
	"strings"
	"sync"

	ts "github.com/tree-sitter/go-tree-sitter"
	tsTypescript "github.com/tree-sitter/tree-sitter-typescript/bindings/go"

	"bennypowers.dev/fascio/ast"
	"bennypowers.dev/fascio/logger"
)

// Languages holds pre-initialized tree-sitter language grammars.
var languages = struct {
	typescript *ts.Language
	tsx        *ts.Language
}{
	ts.NewLanguage(tsTypescript.LanguageTypescript()),
	ts.NewLanguage(tsTypescript.LanguageTSX()),
}

// Parser pools for reuse.
var (
	tsParserPool = sync.Pool{
		New: func() any {
			parser := ts.NewParser()
			if err := parser.SetLanguage(languages.typescript); err != nil {
				panic("failed to set TypeScript language: " + err.Error())
			}
			return parser
		},
	}

	tsxParserPool = sync.Pool{
		New: func() any {
			parser := ts.NewParser()
			if err := parser.SetLanguage(languages.tsx); err != nil {
				panic("failed to set TSX language: " + err.Error())
			}
			return parser
		},
	}
)

// Dialect selects the grammar used for a module.
type Dialect uint8

const (
	DialectTypeScript Dialect = iota
	DialectTSX
)

// DialectFor picks a grammar from the module id's extension. Plain
// JavaScript parses with the TypeScript grammar, which is a superset apart
// from JSX.
func DialectFor(id string) Dialect {
	switch strings.ToLower(path.Ext(id)) {
	case ".jsx", ".tsx":
		return DialectTSX
	default:
		return DialectTypeScript
	}
}

func getParser(d Dialect) *ts.Parser {
	if d == DialectTSX {
		return tsxParserPool.Get().(*ts.Parser)
	}
	return tsParserPool.Get().(*ts.Parser)
}

func putParser(d Dialect, p *ts.Parser) {
	p.Reset()
	if d == DialectTSX {
		tsxParserPool.Put(p)
		return
	}
	tsParserPool.Put(p)
}

// Parse parses source as the module id. A source with syntax errors yields a
// PARSE_ERROR pointing at the first erroneous node.
func Parse(id string, source []byte) (*ast.Program, error) {
	dialect := DialectFor(id)
	parser := getParser(dialect)
	defer putParser(dialect, parser)

	tree := parser.Parse(source, nil)
	if tree == nil {
		return nil, logger.NewError(logger.ParseError, id, "failed to parse %s", id)
	}
	defer tree.Close()

	root := tree.RootNode()
	if root.HasError() {
		bad := firstError(root)
		err := logger.NewError(logger.ParseError, id, "syntax error in %s", id)
		if bad != nil {
			err = err.WithLocation(logger.LocationAt(id, source, uint32(bad.StartByte())))
		}
		return nil, err
	}

	c := &converter{src: source}
	return c.program(root), nil
}

// firstError returns the leftmost error or missing node below n.
func firstError(n *ts.Node) *ts.Node {
	if n.IsError() || n.IsMissing() {
		return n
	}
	for i := uint(0); i < n.ChildCount(); i++ {
		child := n.Child(i)
		if child == nil || !child.HasError() && !child.IsMissing() {
			continue
		}
		if bad := firstError(child); bad != nil {
			return bad
		}
	}
	return nil
}
