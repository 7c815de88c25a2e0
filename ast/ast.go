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

// Package ast defines the syntax tree the analysis runs on. The node set is
// closed: statements implement Stmt, expressions and binding patterns
// implement Expr, and consumers dispatch with type switches.
package ast

// Range is a half-open span of byte offsets into the module source.
type Range struct {
	Start uint32
	End   uint32
}

// Len returns the number of bytes covered.
func (r Range) Len() uint32 {
	return r.End - r.Start
}

// Node is implemented by every tree node.
type Node interface {
	Span() Range
	IsIncluded() bool
	SetIncluded()
	node()
}

// Stmt is a statement or module declaration.
type Stmt interface {
	Node
	stmt()
}

// Expr is an expression or a binding pattern.
type Expr interface {
	Node
	expr()
}

// Base carries the fields shared by all nodes. The inclusion flag is what
// the renderer consumes once tree-shaking has settled.
type Base struct {
	Range
	included bool
}

// At returns a Base spanning [start, end).
func At(start, end uint32) Base {
	return Base{Range: Range{Start: start, End: end}}
}

func (b *Base) Span() Range      { return b.Range }
func (b *Base) IsIncluded() bool { return b.included }
func (b *Base) SetIncluded()     { b.included = true }
func (*Base) node()              {}

// Program is the root of a module's tree.
type Program struct {
	Base
	Body []Stmt
}

// VarKind distinguishes var, let and const declarations.
type VarKind uint8

const (
	VarVar VarKind = iota
	VarLet
	VarConst
)

func (k VarKind) String() string {
	switch k {
	case VarLet:
		return "let"
	case VarConst:
		return "const"
	default:
		return "var"
	}
}

// Function holds what function declarations, function expressions, arrow
// functions and methods have in common.
type Function struct {
	Base
	Name      *EIdentifier
	Params    []Expr
	Body      *SBlock
	ExprBody  Expr // arrow functions with an expression body
	Arrow     bool
	Async     bool
	Generator bool
}

// MemberKind classifies class members.
type MemberKind uint8

const (
	MemberMethod MemberKind = iota
	MemberGetter
	MemberSetter
	MemberField
	MemberStaticBlock
)

type ClassMember struct {
	Base
	Kind     MemberKind
	Key      Expr
	KeyName  string // set when the key is not computed
	Computed bool
	Static   bool
	Value    Expr // *EFunction for methods, the initializer for fields
	Body     *SBlock
}

type Class struct {
	Base
	Name       *EIdentifier
	Extends    Expr
	Members    []*ClassMember
	Decorators []Expr
}

// ---- statements ----

type ImportSpecifier struct {
	Imported string
	Local    *EIdentifier
}

type SImport struct {
	Base
	Default   *EIdentifier
	Namespace *EIdentifier
	Named     []*ImportSpecifier
	Source    string
	TypeOnly  bool
}

type ExportSpecifier struct {
	Local    string
	Exported string
}

// SExportNamed is "export <decl>", "export { a as b }" or
// "export { a as b } from 'x'".
type SExportNamed struct {
	Base
	Decl       Stmt
	Specifiers []*ExportSpecifier
	Source     string
	HasSource  bool
	TypeOnly   bool
}

// SExportAll is "export * from 'x'" or "export * as ns from 'x'".
type SExportAll struct {
	Base
	Source string
	Alias  string
}

// SExportDefault holds either a declaration (SFunction or SClass, possibly
// anonymous) or an expression.
type SExportDefault struct {
	Base
	Decl  Stmt
	Value Expr
}

type VarDecl struct {
	Base
	Binding Expr
	Init    Expr
}

type SVar struct {
	Base
	Kind  VarKind
	Decls []*VarDecl
}

type SFunction struct {
	Base
	Fn *Function
}

type SClass struct {
	Base
	Class *Class
}

type SExpr struct {
	Base
	Value Expr
}

type SBlock struct {
	Base
	Body []Stmt
}

type SIf struct {
	Base
	Test Expr
	Yes  Stmt
	No   Stmt
}

type SReturn struct {
	Base
	Value Expr
}

type SThrow struct {
	Base
	Value Expr
}

// SFor is a classic three-clause loop. Init is an *SVar or an Expr.
type SFor struct {
	Base
	Init   Node
	Test   Expr
	Update Expr
	Body   Stmt
}

// SForIn covers for-in and for-of. Left is an *SVar or an assignment target.
type SForIn struct {
	Base
	Left  Node
	Right Expr
	Body  Stmt
	Of    bool
	Await bool
}

type SWhile struct {
	Base
	Test Expr
	Body Stmt
}

type SDoWhile struct {
	Base
	Body Stmt
	Test Expr
}

type STry struct {
	Base
	Block     *SBlock
	Param     Expr
	Handler   *SBlock
	Finalizer *SBlock
}

type SwitchCase struct {
	Base
	Test Expr // nil for "default"
	Body []Stmt
}

type SSwitch struct {
	Base
	Test  Expr
	Cases []*SwitchCase
}

type SLabel struct {
	Base
	Name string
	Body Stmt
}

type SBreak struct {
	Base
	Label string
}

type SContinue struct {
	Base
	Label string
}

type SEmpty struct{ Base }

type SDebugger struct{ Base }

// STypeOnly is a declaration that is erased at runtime (interfaces, type
// aliases, ambient declarations).
type STypeOnly struct{ Base }

// SUnknown is a construct the analysis does not model. It is always treated
// as effectful and its children are still bound and included.
type SUnknown struct {
	Base
	Children []Node
	Declares []*EIdentifier
}

// ---- expressions ----

type EIdentifier struct {
	Base
	Name string
}

type ENumber struct {
	Base
	Value float64
}

type EString struct {
	Base
	Value string
}

type EBoolean struct {
	Base
	Value bool
}

type ENull struct{ Base }

type EUndefined struct{ Base }

type EBigInt struct {
	Base
	Raw string
}

type ERegExp struct {
	Base
	Raw string
}

// ETemplate is a template literal. A non-nil Tag makes it a tagged call.
type ETemplate struct {
	Base
	Tag    Expr
	Quasis []string
	Exprs  []Expr
}

type EThis struct{ Base }

type ESuper struct{ Base }

// EArray items may be nil for holes.
type EArray struct {
	Base
	Items []Expr
}

type ESpread struct {
	Base
	Value Expr
}

// PropKind classifies object literal properties.
type PropKind uint8

const (
	PropInit PropKind = iota
	PropShorthand
	PropMethod
	PropGetter
	PropSetter
	PropSpread
)

type Property struct {
	Base
	Kind     PropKind
	Key      Expr
	KeyName  string
	Computed bool
	Value    Expr
}

type EObject struct {
	Base
	Props []*Property
}

type EFunction struct {
	Base
	Fn *Function
}

type EClass struct {
	Base
	Class *Class
}

type ECall struct {
	Base
	Callee   Expr
	Args     []Expr
	Optional bool
	Pure     bool
}

type ENew struct {
	Base
	Callee Expr
	Args   []Expr
	Pure   bool
}

// EMember is "a.b" (Name set) or "a[b]" (Index set).
type EMember struct {
	Base
	Object   Expr
	Name     string
	Index    Expr
	Optional bool
	Private  bool
}

type EAssign struct {
	Base
	Op     string
	Target Expr
	Value  Expr
}

type EUpdate struct {
	Base
	Op     string
	Prefix bool
	Target Expr
}

type EUnary struct {
	Base
	Op    string
	Value Expr
}

type EBinary struct {
	Base
	Op    string
	Left  Expr
	Right Expr
}

type ELogical struct {
	Base
	Op    string
	Left  Expr
	Right Expr
}

type EConditional struct {
	Base
	Test Expr
	Yes  Expr
	No   Expr
}

type ESequence struct {
	Base
	Exprs []Expr
}

type EAwait struct {
	Base
	Value Expr
}

type EYield struct {
	Base
	Value    Expr
	Delegate bool
}

// EImportCall is a dynamic "import(...)". SourceText is set when the
// argument is a string literal.
type EImportCall struct {
	Base
	Source     Expr
	SourceText string
	Options    Expr
}

type EImportMeta struct{ Base }

type PatternProperty struct {
	Base
	Key      Expr
	KeyName  string
	Computed bool
	Value    Expr
}

type EObjectPattern struct {
	Base
	Props []*PatternProperty
	Rest  Expr
}

type EArrayPattern struct {
	Base
	Items []Expr
}

type EAssignPattern struct {
	Base
	Target  Expr
	Default Expr
}

type ERest struct {
	Base
	Target Expr
}

// EUnknown is an expression the analysis does not model.
type EUnknown struct {
	Base
	Children []Node
}

func (*SImport) stmt()        {}
func (*SExportNamed) stmt()   {}
func (*SExportAll) stmt()     {}
func (*SExportDefault) stmt() {}
func (*SVar) stmt()           {}
func (*SFunction) stmt()      {}
func (*SClass) stmt()         {}
func (*SExpr) stmt()          {}
func (*SBlock) stmt()         {}
func (*SIf) stmt()            {}
func (*SReturn) stmt()        {}
func (*SThrow) stmt()         {}
func (*SFor) stmt()           {}
func (*SForIn) stmt()         {}
func (*SWhile) stmt()         {}
func (*SDoWhile) stmt()       {}
func (*STry) stmt()           {}
func (*SSwitch) stmt()        {}
func (*SLabel) stmt()         {}
func (*SBreak) stmt()         {}
func (*SContinue) stmt()      {}
func (*SEmpty) stmt()         {}
func (*SDebugger) stmt()      {}
func (*STypeOnly) stmt()      {}
func (*SUnknown) stmt()       {}

func (*EIdentifier) expr()    {}
func (*ENumber) expr()        {}
func (*EString) expr()        {}
func (*EBoolean) expr()       {}
func (*ENull) expr()          {}
func (*EUndefined) expr()     {}
func (*EBigInt) expr()        {}
func (*ERegExp) expr()        {}
func (*ETemplate) expr()      {}
func (*EThis) expr()          {}
func (*ESuper) expr()         {}
func (*EArray) expr()         {}
func (*ESpread) expr()        {}
func (*EObject) expr()        {}
func (*EFunction) expr()      {}
func (*EClass) expr()         {}
func (*ECall) expr()          {}
func (*ENew) expr()           {}
func (*EMember) expr()        {}
func (*EAssign) expr()        {}
func (*EUpdate) expr()        {}
func (*EUnary) expr()         {}
func (*EBinary) expr()        {}
func (*ELogical) expr()       {}
func (*EConditional) expr()   {}
func (*ESequence) expr()      {}
func (*EAwait) expr()         {}
func (*EYield) expr()         {}
func (*EImportCall) expr()    {}
func (*EImportMeta) expr()    {}
func (*EObjectPattern) expr() {}
func (*EArrayPattern) expr()  {}
func (*EAssignPattern) expr() {}
func (*ERest) expr()          {}
func (*EUnknown) expr()       {}
