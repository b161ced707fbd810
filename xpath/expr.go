package xpath

import (
	"github.com/midbel/xq/xml"
)

// Expr is a node of the expression tree. The set of implementations is
// closed: every node type is declared in this file.
type Expr interface {
	Location() *Location
	setLocation(*Location)
	exprNode()
}

type node struct {
	loc *Location
}

func (n *node) Location() *Location {
	return n.loc
}

func (n *node) setLocation(loc *Location) {
	if n.loc == nil {
		n.loc = loc
	}
}

func (n *node) exprNode() {}

type AtomicKind int8

const (
	TypeString AtomicKind = iota
	TypeInteger
	TypeDecimal
	TypeDouble
)

type Literal struct {
	node
	Kind  AtomicKind
	Value string
}

type ContextItem struct {
	node
}

// Root selects the root of the tree containing the context node.
type Root struct {
	node
}

type VarRef struct {
	node
	Name xml.QName
	// Binding is set for local variables, Global for prolog variables.
	Binding *Binding
	Global  *GlobalVariable
}

type Sequence struct {
	node
	Items []Expr
}

type Binary struct {
	node
	Op    rune
	Left  Expr
	Right Expr
}

type Unary struct {
	node
	Op   rune
	Expr Expr
}

type InstanceOf struct {
	node
	Expr Expr
	Type SequenceType
}

type Treat struct {
	node
	Expr Expr
	Type SequenceType
}

type Cast struct {
	node
	Expr       Expr
	Type       xml.QName
	AllowEmpty bool
}

type Castable struct {
	node
	Expr       Expr
	Type       xml.QName
	AllowEmpty bool
}

type Path struct {
	node
	Left  Expr
	Right Expr
}

type Step struct {
	node
	Axis       string
	Test       NodeTest
	Predicates []Expr
}

type Filter struct {
	node
	Expr       Expr
	Predicates []Expr
}

type SimpleMap struct {
	node
	Left  Expr
	Right Expr
}

type Call struct {
	node
	Name xml.QName
	Args []Expr
	// Func is nil until the call is bound to a builtin or to a declared
	// function.
	Func Function
}

// Placeholder is the '?' argument of a partial function application.
type Placeholder struct {
	node
}

type DynamicCall struct {
	node
	Func Expr
	Args []Expr
}

type FunctionRef struct {
	node
	Name  xml.QName
	Arity int
	Func  Function
}

type InlineFunction struct {
	node
	Annotations []Annotation
	Params      []*Binding
	Return      *SequenceType
	Body        Expr
	Frame       int
}

// Lookup is the '?' operator of maps and arrays. Expr is nil for the unary
// form and Key is nil for the wildcard.
type Lookup struct {
	node
	Expr Expr
	Key  Expr
}

type MapConstructor struct {
	node
	Keys   []Expr
	Values []Expr
}

type ArrayConstructor struct {
	node
	Curly   bool
	Members []Expr
}

type FLWOR struct {
	node
	Clauses []Clause
	Return  Expr
}

type Quantified struct {
	node
	Every     bool
	Bindings  []QuantifiedBinding
	Satisfies Expr
}

type QuantifiedBinding struct {
	Var *Binding
	In  Expr
}

type If struct {
	node
	Cond Expr
	Then Expr
	Else Expr
}

type Switch struct {
	node
	Operand Expr
	Cases   []SwitchCase
	Default Expr
}

type SwitchCase struct {
	Values []Expr
	Return Expr
}

type Typeswitch struct {
	node
	Operand    Expr
	Cases      []TypeCase
	DefaultVar *Binding
	Default    Expr
}

type TypeCase struct {
	Var    *Binding
	Types  []SequenceType
	Return Expr
}

type TryCatch struct {
	node
	Try     Expr
	Catches []CatchClause
}

type CatchClause struct {
	Tests []NameTest
	Vars  []*Binding
	Body  Expr
}

type Validate struct {
	node
	Mode string
	Type xml.QName
	Expr Expr
}

type Pragma struct {
	Name    xml.QName
	Content string
}

type Extension struct {
	node
	Pragmas []Pragma
	Expr    Expr
}

type Ordered struct {
	node
	Ordered bool
	Expr    Expr
}

type NamespaceBinding struct {
	Prefix string
	URI    string
}

type ElementConstructor struct {
	node
	Direct     bool
	Name       xml.QName
	NameExpr   Expr
	Namespaces []NamespaceBinding
	// Attributes only holds *AttributeConstructor.
	Attributes []Expr
	Content    []Expr
}

type AttributeConstructor struct {
	node
	Direct   bool
	Name     xml.QName
	NameExpr Expr
	Value    []Expr
}

type TextConstructor struct {
	node
	Direct  bool
	Content Expr
}

type CommentConstructor struct {
	node
	Direct  bool
	Content Expr
}

type PIConstructor struct {
	node
	Direct     bool
	Target     string
	TargetExpr Expr
	Content    Expr
}

type DocumentConstructor struct {
	node
	Content Expr
}

type NamespaceConstructor struct {
	node
	Prefix     string
	PrefixExpr Expr
	URI        Expr
}

// Clause is one clause of a FLWOR expression.
type Clause interface {
	Location() *Location
	setLocation(*Location)
	clauseNode()
}

type clause struct {
	loc *Location
}

func (c *clause) Location() *Location {
	return c.loc
}

func (c *clause) setLocation(loc *Location) {
	if c.loc == nil {
		c.loc = loc
	}
}

func (c *clause) clauseNode() {}

type ForClause struct {
	clause
	Var        *Binding
	Pos        *Binding
	AllowEmpty bool
	In         Expr
}

type LetClause struct {
	clause
	Var  *Binding
	Expr Expr
}

type WhereClause struct {
	clause
	Cond Expr
}

type OrderByClause struct {
	clause
	Stable bool
	Specs  []OrderSpec
}

type OrderSpec struct {
	Expr       Expr
	Descending bool
	EmptyLeast bool
	Collation  string
}

type GroupByClause struct {
	clause
	Specs []GroupSpec
}

// GroupSpec is a grouping key. Expr is nil when the key refers to a
// variable already in scope.
type GroupSpec struct {
	Var       *Binding
	Expr      Expr
	Collation string
}

type CountClause struct {
	clause
	Var *Binding
}

type Annotation struct {
	Name   xml.QName
	Values []string
}

func isComparison(op rune) bool {
	switch op {
	case opEq, opNe, opLt, opLe, opGt, opGe:
	case opValEq, opValNe, opValLt, opValLe, opValGt, opValGe:
	case opIs, opBefore, opAfter:
	default:
		return false
	}
	return true
}

func isValueComparison(op rune) bool {
	switch op {
	case opValEq, opValNe, opValLt, opValLe, opValGt, opValGe:
		return true
	default:
		return false
	}
}

func isArithmetic(op rune) bool {
	switch op {
	case opAdd, opSub, opMul, opDiv, opIdiv, opMod:
		return true
	default:
		return false
	}
}

func isSetOperator(op rune) bool {
	return op == opUnion || op == opIntersect || op == opExcept
}
