package xpath

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/midbel/xq/xml"
)

// Debug returns the tree of an expression on a single line.
func Debug(expr Expr) string {
	var str strings.Builder
	debugExpr(&printer{w: &str}, expr)
	return str.String()
}

// DebugTree writes the tree of an expression with one node per line.
func DebugTree(w io.Writer, expr Expr) {
	p := printer{
		w:      w,
		indent: true,
	}
	debugExpr(&p, expr)
	io.WriteString(w, "\n")
}

type printer struct {
	w      io.Writer
	indent bool
	depth  int
}

func (p *printer) word(str string) {
	io.WriteString(p.w, str)
}

func (p *printer) enter(name string) {
	io.WriteString(p.w, name)
	io.WriteString(p.w, "(")
	p.depth++
	p.newline()
}

func (p *printer) leave() {
	p.depth--
	p.newline()
	io.WriteString(p.w, ")")
}

func (p *printer) sep() {
	io.WriteString(p.w, ",")
	if !p.indent {
		io.WriteString(p.w, " ")
	}
	p.newline()
}

func (p *printer) newline() {
	if !p.indent {
		return
	}
	io.WriteString(p.w, "\n")
	io.WriteString(p.w, strings.Repeat("  ", p.depth))
}

func (p *printer) list(name string, all []Expr) {
	p.enter(name)
	for i := range all {
		if i > 0 {
			p.sep()
		}
		debugExpr(p, all[i])
	}
	p.leave()
}

func (p *printer) opt(expr Expr) {
	if expr == nil {
		p.word("empty")
		return
	}
	debugExpr(p, expr)
}

func debugExpr(p *printer, expr Expr) {
	switch v := expr.(type) {
	case *Literal:
		switch v.Kind {
		case TypeString:
			p.word(strconv.Quote(v.Value))
		default:
			p.word(v.Value)
		}
	case *ContextItem:
		p.word("current")
	case *Root:
		p.word("root")
	case *Placeholder:
		p.word("placeholder")
	case *VarRef:
		p.word("$" + v.Name.QualifiedName())
	case *FunctionRef:
		p.word(fmt.Sprintf("ref(%s#%d)", v.Name.QualifiedName(), v.Arity))
	case *Sequence:
		p.list("sequence", v.Items)
	case *Binary:
		p.enter(symbols[v.Op])
		debugExpr(p, v.Left)
		p.sep()
		debugExpr(p, v.Right)
		p.leave()
	case *Unary:
		p.enter("unary" + symbols[v.Op])
		debugExpr(p, v.Expr)
		p.leave()
	case *InstanceOf:
		p.enter("instance-of")
		debugExpr(p, v.Expr)
		p.sep()
		p.word(v.Type.String())
		p.leave()
	case *Treat:
		p.enter("treat")
		debugExpr(p, v.Expr)
		p.sep()
		p.word(v.Type.String())
		p.leave()
	case *Cast:
		p.enter("cast")
		debugExpr(p, v.Expr)
		p.sep()
		p.word(optionalType(v.Type.QualifiedName(), v.AllowEmpty))
		p.leave()
	case *Castable:
		p.enter("castable")
		debugExpr(p, v.Expr)
		p.sep()
		p.word(optionalType(v.Type.QualifiedName(), v.AllowEmpty))
		p.leave()
	case *Path:
		p.enter("path")
		debugExpr(p, v.Left)
		p.sep()
		debugExpr(p, v.Right)
		p.leave()
	case *Step:
		p.enter("step")
		p.word(v.Axis)
		p.sep()
		p.word(v.Test.String())
		for _, e := range v.Predicates {
			p.sep()
			p.enter("predicate")
			debugExpr(p, e)
			p.leave()
		}
		p.leave()
	case *Filter:
		p.enter("filter")
		debugExpr(p, v.Expr)
		for _, e := range v.Predicates {
			p.sep()
			p.enter("predicate")
			debugExpr(p, e)
			p.leave()
		}
		p.leave()
	case *SimpleMap:
		p.enter("map")
		debugExpr(p, v.Left)
		p.sep()
		debugExpr(p, v.Right)
		p.leave()
	case *Call:
		p.list("call:"+v.Name.QualifiedName(), v.Args)
	case *DynamicCall:
		p.enter("dynamic-call")
		debugExpr(p, v.Func)
		for _, a := range v.Args {
			p.sep()
			debugExpr(p, a)
		}
		p.leave()
	case *InlineFunction:
		p.enter("function")
		debugParams(p, v.Params)
		if v.Return != nil {
			p.sep()
			p.word("as " + v.Return.String())
		}
		p.sep()
		debugExpr(p, v.Body)
		p.leave()
	case *Lookup:
		p.enter("lookup")
		p.opt(v.Expr)
		p.sep()
		if v.Key == nil {
			p.word("*")
		} else {
			debugExpr(p, v.Key)
		}
		p.leave()
	case *MapConstructor:
		p.enter("map-constructor")
		for i := range v.Keys {
			if i > 0 {
				p.sep()
			}
			p.enter("entry")
			debugExpr(p, v.Keys[i])
			p.sep()
			debugExpr(p, v.Values[i])
			p.leave()
		}
		p.leave()
	case *ArrayConstructor:
		p.list("array", v.Members)
	case *FLWOR:
		p.enter("flwor")
		for _, c := range v.Clauses {
			debugClause(p, c)
			p.sep()
		}
		p.enter("return")
		debugExpr(p, v.Return)
		p.leave()
		p.leave()
	case *Quantified:
		name := "some"
		if v.Every {
			name = "every"
		}
		p.enter(name)
		for _, b := range v.Bindings {
			p.enter(binding(b.Var))
			debugExpr(p, b.In)
			p.leave()
			p.sep()
		}
		debugExpr(p, v.Satisfies)
		p.leave()
	case *If:
		p.enter("if")
		debugExpr(p, v.Cond)
		p.sep()
		debugExpr(p, v.Then)
		p.sep()
		p.opt(v.Else)
		p.leave()
	case *Switch:
		p.enter("switch")
		debugExpr(p, v.Operand)
		for _, c := range v.Cases {
			p.sep()
			p.enter("case")
			for _, e := range c.Values {
				debugExpr(p, e)
				p.sep()
			}
			debugExpr(p, c.Return)
			p.leave()
		}
		p.sep()
		p.enter("default")
		debugExpr(p, v.Default)
		p.leave()
		p.leave()
	case *Typeswitch:
		p.enter("typeswitch")
		debugExpr(p, v.Operand)
		for _, c := range v.Cases {
			p.sep()
			var types []string
			for _, t := range c.Types {
				types = append(types, t.String())
			}
			p.enter("case")
			if c.Var != nil {
				p.word(binding(c.Var))
				p.sep()
			}
			p.word(strings.Join(types, " | "))
			p.sep()
			debugExpr(p, c.Return)
			p.leave()
		}
		p.sep()
		p.enter("default")
		if v.DefaultVar != nil {
			p.word(binding(v.DefaultVar))
			p.sep()
		}
		debugExpr(p, v.Default)
		p.leave()
		p.leave()
	case *TryCatch:
		p.enter("try")
		debugExpr(p, v.Try)
		for _, c := range v.Catches {
			p.sep()
			var tests []string
			for _, t := range c.Tests {
				tests = append(tests, t.String())
			}
			p.enter("catch")
			p.word(strings.Join(tests, " | "))
			p.sep()
			debugExpr(p, c.Body)
			p.leave()
		}
		p.leave()
	case *Validate:
		p.enter("validate")
		switch {
		case v.Mode != "":
			p.word(v.Mode)
			p.sep()
		case !v.Type.Zero():
			p.word("type " + v.Type.QualifiedName())
			p.sep()
		}
		debugExpr(p, v.Expr)
		p.leave()
	case *Extension:
		p.enter("extension")
		for _, g := range v.Pragmas {
			p.word("pragma " + g.Name.QualifiedName())
			p.sep()
		}
		p.opt(v.Expr)
		p.leave()
	case *Ordered:
		name := "unordered"
		if v.Ordered {
			name = "ordered"
		}
		p.enter(name)
		debugExpr(p, v.Expr)
		p.leave()
	case *ElementConstructor:
		p.enter("element")
		debugName(p, v.Name, v.NameExpr)
		for _, ns := range v.Namespaces {
			p.sep()
			p.word(fmt.Sprintf("xmlns:%s=%q", ns.Prefix, ns.URI))
		}
		for _, a := range v.Attributes {
			p.sep()
			debugExpr(p, a)
		}
		for _, c := range v.Content {
			p.sep()
			debugExpr(p, c)
		}
		p.leave()
	case *AttributeConstructor:
		p.enter("attribute")
		debugName(p, v.Name, v.NameExpr)
		for _, e := range v.Value {
			p.sep()
			debugExpr(p, e)
		}
		p.leave()
	case *TextConstructor:
		p.enter("text")
		p.opt(v.Content)
		p.leave()
	case *CommentConstructor:
		p.enter("comment")
		p.opt(v.Content)
		p.leave()
	case *PIConstructor:
		p.enter("processing-instruction")
		if v.TargetExpr != nil {
			debugExpr(p, v.TargetExpr)
		} else {
			p.word(v.Target)
		}
		p.sep()
		p.opt(v.Content)
		p.leave()
	case *DocumentConstructor:
		p.enter("document")
		debugExpr(p, v.Content)
		p.leave()
	case *NamespaceConstructor:
		p.enter("namespace")
		if v.PrefixExpr != nil {
			debugExpr(p, v.PrefixExpr)
		} else {
			p.word(strconv.Quote(v.Prefix))
		}
		p.sep()
		debugExpr(p, v.URI)
		p.leave()
	default:
		panic(fmt.Sprintf("unexpected expression type %T", expr))
	}
}

func debugClause(p *printer, c Clause) {
	switch c := c.(type) {
	case *ForClause:
		p.enter("for")
		p.word(binding(c.Var))
		if c.Pos != nil {
			p.sep()
			p.word("at " + binding(c.Pos))
		}
		if c.AllowEmpty {
			p.sep()
			p.word("allowing empty")
		}
		p.sep()
		debugExpr(p, c.In)
		p.leave()
	case *LetClause:
		p.enter("let")
		p.word(binding(c.Var))
		p.sep()
		debugExpr(p, c.Expr)
		p.leave()
	case *WhereClause:
		p.enter("where")
		debugExpr(p, c.Cond)
		p.leave()
	case *OrderByClause:
		name := "order-by"
		if c.Stable {
			name = "stable-order-by"
		}
		p.enter(name)
		for i, s := range c.Specs {
			if i > 0 {
				p.sep()
			}
			dir := "ascending"
			if s.Descending {
				dir = "descending"
			}
			p.enter(dir)
			debugExpr(p, s.Expr)
			p.leave()
		}
		p.leave()
	case *GroupByClause:
		p.enter("group-by")
		for i, s := range c.Specs {
			if i > 0 {
				p.sep()
			}
			p.word(binding(s.Var))
			if s.Expr != nil {
				p.word(" := ")
				debugExpr(p, s.Expr)
			}
		}
		p.leave()
	case *CountClause:
		p.enter("count")
		p.word(binding(c.Var))
		p.leave()
	default:
		panic(fmt.Sprintf("unexpected clause type %T", c))
	}
}

func debugParams(p *printer, params []*Binding) {
	var list []string
	for _, b := range params {
		list = append(list, binding(b))
	}
	p.word("[" + strings.Join(list, ", ") + "]")
}

func debugName(p *printer, name xml.QName, expr Expr) {
	if expr != nil {
		debugExpr(p, expr)
		return
	}
	p.word(name.QualifiedName())
}

func binding(b *Binding) string {
	if b == nil {
		return "$?"
	}
	str := "$" + b.Name.QualifiedName()
	if b.Type != nil {
		str += " as " + b.Type.String()
	}
	return str
}

func optionalType(name string, empty bool) string {
	if empty {
		return name + "?"
	}
	return name
}
