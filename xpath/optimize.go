package xpath

import (
	"strconv"

	"github.com/midbel/xq/xml"
)

func (l *linker) optimize() {
	l.cfg.tracer.Enter("optimize")
	defer l.cfg.tracer.Leave("optimize")

	for _, u := range l.units {
		for _, g := range u.Variables {
			g.Init = Optimize(g.Init)
		}
		for _, fn := range u.Functions {
			fn.Body = Optimize(fn.Body)
		}
		if u.Context != nil {
			u.Context.Init = Optimize(u.Context.Init)
		}
		u.Body = Optimize(u.Body)
	}
}

// Optimize folds the constant parts of an expression: arithmetic on
// integer literals, concatenation of string literals, conditionals with a
// literal test and nested sequences.
func Optimize(expr Expr) Expr {
	return transform(expr, func(e Expr) Expr {
		switch e := e.(type) {
		case *Binary:
			return foldBinary(e)
		case *Unary:
			return foldUnary(e)
		case *If:
			return foldIf(e)
		case *Sequence:
			return flattenSequence(e)
		default:
			return e
		}
	})
}

func foldBinary(b *Binary) Expr {
	left, ok1 := b.Left.(*Literal)
	right, ok2 := b.Right.(*Literal)
	if !ok1 || !ok2 {
		return b
	}
	if b.Op == opConcat {
		if left.Kind != TypeString || right.Kind != TypeString {
			return b
		}
		return foldedLiteral(b, TypeString, left.Value+right.Value)
	}
	if !isArithmetic(b.Op) || left.Kind != TypeInteger || right.Kind != TypeInteger {
		return b
	}
	x, err1 := strconv.ParseInt(left.Value, 10, 64)
	y, err2 := strconv.ParseInt(right.Value, 10, 64)
	if err1 != nil || err2 != nil {
		return b
	}
	var res int64
	switch b.Op {
	case opAdd:
		res = x + y
		if (res > x) != (y > 0) {
			return b
		}
	case opSub:
		res = x - y
		if (res < x) != (y > 0) {
			return b
		}
	case opMul:
		if x != 0 && y != 0 {
			res = x * y
			if res/y != x {
				return b
			}
		}
	case opIdiv:
		if y == 0 {
			return b
		}
		res = x / y
	case opMod:
		if y == 0 {
			return b
		}
		res = x % y
	default:
		// div on integers gives a decimal
		return b
	}
	return foldedLiteral(b, TypeInteger, strconv.FormatInt(res, 10))
}

func foldUnary(u *Unary) Expr {
	lit, ok := u.Expr.(*Literal)
	if !ok || lit.Kind != TypeInteger {
		return u
	}
	n, err := strconv.ParseInt(lit.Value, 10, 64)
	if err != nil {
		return u
	}
	if u.Op == opSub {
		n = -n
	}
	return foldedLiteral(u, TypeInteger, strconv.FormatInt(n, 10))
}

func foldedLiteral(from Expr, kind AtomicKind, value string) Expr {
	lit := Literal{
		Kind:  kind,
		Value: value,
	}
	lit.setLocation(from.Location())
	return &lit
}

func foldIf(e *If) Expr {
	cond, ok := constantBoolean(e.Cond)
	if !ok {
		return e
	}
	if cond {
		return e.Then
	}
	return e.Else
}

// constantBoolean gives the effective boolean value of a literal or of a
// call to fn:true or fn:false.
func constantBoolean(expr Expr) (bool, bool) {
	switch e := expr.(type) {
	case *Literal:
		switch e.Kind {
		case TypeString:
			return e.Value != "", true
		default:
			f, err := strconv.ParseFloat(e.Value, 64)
			if err != nil {
				return false, false
			}
			return f != 0, true
		}
	case *Call:
		if _, ok := e.Func.(*Builtin); !ok || len(e.Args) != 0 || e.Name.Uri != xml.NamespaceFN {
			return false, false
		}
		switch e.Name.Name {
		case "true":
			return true, true
		case "false":
			return false, true
		default:
			return false, false
		}
	case *Sequence:
		if len(e.Items) == 0 {
			return false, true
		}
		return false, false
	default:
		return false, false
	}
}

func flattenSequence(seq *Sequence) Expr {
	var (
		list []Expr
		flat bool
	)
	for _, e := range seq.Items {
		if s, ok := e.(*Sequence); ok {
			list = append(list, s.Items...)
			flat = true
			continue
		}
		list = append(list, e)
	}
	if flat {
		seq.Items = list
	}
	if len(seq.Items) == 1 {
		return seq.Items[0]
	}
	return seq
}
