package xpath

import (
	"fmt"
)

type Position struct {
	Line   int
	Column int
}

func (p Position) String() string {
	return fmt.Sprintf("%d:%d", p.Line, p.Column)
}

const (
	kwLet        = "let"
	kwIf         = "if"
	kwElse       = "else"
	kwThen       = "then"
	kwFor        = "for"
	kwIn         = "in"
	kwAt         = "at"
	kwTo         = "to"
	kwUnion      = "union"
	kwIntersect  = "intersect"
	kwExcept     = "except"
	kwReturn     = "return"
	kwSome       = "some"
	kwEvery      = "every"
	kwSatisfies  = "satisfies"
	kwAnd        = "and"
	kwOr         = "or"
	kwDiv        = "div"
	kwIdiv       = "idiv"
	kwMod        = "mod"
	kwAs         = "as"
	kwIs         = "is"
	kwCast       = "cast"
	kwCastable   = "castable"
	kwInstance   = "instance"
	kwTreat      = "treat"
	kwOf         = "of"
	kwMap        = "map"
	kwArray      = "array"
	kwEq         = "eq"
	kwNe         = "ne"
	kwLt         = "lt"
	kwLe         = "le"
	kwGt         = "gt"
	kwGe         = "ge"
	kwWhere      = "where"
	kwOrder      = "order"
	kwStable     = "stable"
	kwBy         = "by"
	kwGroup      = "group"
	kwCount      = "count"
	kwAscending  = "ascending"
	kwDescending = "descending"
	kwEmpty      = "empty"
	kwGreatest   = "greatest"
	kwLeast      = "least"
	kwCollation  = "collation"
	kwAllowing   = "allowing"
	kwSwitch     = "switch"
	kwTypeswitch = "typeswitch"
	kwCase       = "case"
	kwDefault    = "default"
	kwTry        = "try"
	kwCatch      = "catch"
	kwValidate   = "validate"
	kwFunction   = "function"
	kwOrdered    = "ordered"
	kwUnordered  = "unordered"
	kwDocument   = "document"
	kwElement    = "element"
	kwAttribute  = "attribute"
	kwText       = "text"
	kwComment    = "comment"
	kwNamespace  = "namespace"
	kwPI         = "processing-instruction"
	kwDeclare    = "declare"
	kwImport     = "import"
	kwModule     = "module"
	kwSchema     = "schema"
	kwVariable   = "variable"
	kwExternal   = "external"
	kwOption     = "option"
	kwContext    = "context"
	kwItem       = "item"
	kwXQuery     = "xquery"
	kwVersion    = "version"
	kwEncoding   = "encoding"
	kwTumbling   = "tumbling"
	kwSliding    = "sliding"
)

// reserved function names can never be used as the name of a function call.
func isReserved(str string) bool {
	switch str {
	case kwAttribute, kwComment, "document-node", kwElement, "empty-sequence":
	case kwFunction, kwIf, kwItem, "namespace-node", "node", kwPI:
	case "schema-attribute", "schema-element", kwSwitch, kwText, kwTypeswitch:
	case kwMap, kwArray:
	default:
		return false
	}
	return true
}

func isKindTest(str string) bool {
	switch str {
	case "node", kwText, kwComment, kwElement, kwAttribute, "document-node":
	case kwPI, "schema-element", "schema-attribute", "namespace-node":
	default:
		return false
	}
	return true
}

// isCurlyKeyword reports the words that start an expression when directly
// followed by an opening curly bracket.
func isCurlyKeyword(str string) bool {
	switch str {
	case kwOrdered, kwUnordered, kwValidate, kwDocument, kwText, kwComment:
	case kwMap, kwArray, kwTry, kwElement, kwAttribute, kwNamespace, kwPI:
	default:
		return false
	}
	return true
}

func isAxis(str string) bool {
	switch str {
	case "child", "descendant", "attribute", "self", "descendant-or-self":
	case "following-sibling", "following", "namespace":
	case "parent", "ancestor", "preceding-sibling", "preceding", "ancestor-or-self":
	default:
		return false
	}
	return true
}

const (
	EOF rune = -(1 + iota)
	Name
	String
	Integer
	Decimal
	Double
	Invalid
)

const (
	currNode = -(iota + 1000)
	parentNode
	attrNode
	variable
	function
	namedRef
	axis
	kind
	keyword
	pragma
	tagStart
	commentStart
	piStart
	invalidRef
	currLevel
	anyLevel
	begPred
	endPred
	begGrp
	endGrp
	begCurl
	endCurl
	opColon
	opSemi
	annotation
	opAssign
	opArrow
	opBang
	opRange
	opConcat
	opBefore
	opAfter
	opQuestion
	opAdd
	opSub
	opMul
	opDiv
	opIdiv
	opMod
	opValEq
	opValNe
	opValGt
	opValGe
	opValLt
	opValLe
	opEq
	opNe
	opGt
	opGe
	opLt
	opLe
	opUnion
	opExcept
	opIntersect
	opIs
	opAnd
	opOr
	opSeq
	opInstanceOf
	opTreatAs
	opCastAs
	opCastableAs
)

var symbols = map[rune]string{
	currNode:     ".",
	parentNode:   "..",
	attrNode:     "@",
	currLevel:    "/",
	anyLevel:     "//",
	begPred:      "[",
	endPred:      "]",
	begGrp:       "(",
	endGrp:       ")",
	begCurl:      "{",
	endCurl:      "}",
	opColon:      ":",
	opSemi:       ";",
	annotation:   "%",
	opAssign:     ":=",
	opArrow:      "=>",
	opBang:       "!",
	opRange:      "to",
	opConcat:     "||",
	opBefore:     "<<",
	opAfter:      ">>",
	opQuestion:   "?",
	opAdd:        "+",
	opSub:        "-",
	opMul:        "*",
	opDiv:        "div",
	opIdiv:       "idiv",
	opMod:        "mod",
	opValEq:      "eq",
	opValNe:      "ne",
	opValGt:      "gt",
	opValGe:      "ge",
	opValLt:      "lt",
	opValLe:      "le",
	opEq:         "=",
	opNe:         "!=",
	opGt:         ">",
	opGe:         ">=",
	opLt:         "<",
	opLe:         "<=",
	opUnion:      "union",
	opExcept:     "except",
	opIntersect:  "intersect",
	opIs:         "is",
	opAnd:        "and",
	opOr:         "or",
	opSeq:        ",",
	opInstanceOf: "instance of",
	opTreatAs:    "treat as",
	opCastAs:     "cast as",
	opCastableAs: "castable as",
}

type Token struct {
	Literal string
	Type    rune
	Offset  int
	End     int
	Position
}

// Text gives the token the way it is written in a diagnostic.
func (t Token) Text() string {
	switch t.Type {
	case EOF:
		return "end of input"
	case Name, keyword, function, Integer, Decimal, Double:
		return fmt.Sprintf("'%s'", t.Literal)
	case String:
		return fmt.Sprintf("\"%s\"", t.Literal)
	case variable:
		return fmt.Sprintf("'$%s'", t.Literal)
	case axis:
		return fmt.Sprintf("'%s::'", t.Literal)
	case namedRef:
		return fmt.Sprintf("'%s#'", t.Literal)
	case kind:
		return fmt.Sprintf("'%s('", t.Literal)
	case pragma:
		return "pragma"
	case tagStart:
		return "'<'"
	case commentStart:
		return "'<!--'"
	case piStart:
		return "'<?'"
	case Invalid, invalidRef:
		return t.Literal
	default:
		if str, ok := symbols[t.Type]; ok {
			return fmt.Sprintf("'%s'", str)
		}
		return "<unknown>"
	}
}

func (t Token) String() string {
	switch t.Type {
	case EOF:
		return "<eof>"
	case Name:
		return fmt.Sprintf("name(%s)", t.Literal)
	case String:
		return fmt.Sprintf("literal(%s)", t.Literal)
	case Integer, Decimal, Double:
		return fmt.Sprintf("number(%s)", t.Literal)
	case variable:
		return fmt.Sprintf("variable(%s)", t.Literal)
	case function:
		return fmt.Sprintf("function(%s)", t.Literal)
	case namedRef:
		return fmt.Sprintf("named-ref(%s)", t.Literal)
	case axis:
		return fmt.Sprintf("axis(%s)", t.Literal)
	case kind:
		return fmt.Sprintf("kind(%s)", t.Literal)
	case keyword:
		return fmt.Sprintf("keyword(%s)", t.Literal)
	case pragma:
		return fmt.Sprintf("pragma(%s)", t.Literal)
	case tagStart:
		return "<tag>"
	case commentStart:
		return "<comment>"
	case piStart:
		return "<instruction>"
	case Invalid, invalidRef:
		return "<invalid>"
	default:
		if str, ok := symbols[t.Type]; ok {
			return fmt.Sprintf("<%s>", str)
		}
		return "<unknown>"
	}
}
