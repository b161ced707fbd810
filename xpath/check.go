package xpath

import (
	"strconv"

	"github.com/midbel/xq/xml"
)

// StaticType infers the type of an expression from what is known at
// compile time. It answers item()* when nothing better can be said.
func StaticType(expr Expr) SequenceType {
	switch e := expr.(type) {
	case *Literal:
		switch e.Kind {
		case TypeInteger:
			return atomicOf("integer", OccursOne)
		case TypeDecimal:
			return atomicOf("decimal", OccursOne)
		case TypeDouble:
			return atomicOf("double", OccursOne)
		default:
			return atomicOf("string", OccursOne)
		}
	case *Sequence:
		if len(e.Items) == 0 {
			return emptySequence
		}
		if len(e.Items) == 1 {
			return StaticType(e.Items[0])
		}
		return anyItems
	case *Binary:
		switch {
		case isComparison(e.Op) || e.Op == opAnd || e.Op == opOr:
			if isValueComparison(e.Op) || e.Op == opIs || e.Op == opBefore || e.Op == opAfter {
				return atomicOf("boolean", OccursOptional)
			}
			return atomicOf("boolean", OccursOne)
		case e.Op == opConcat:
			return atomicOf("string", OccursOne)
		case e.Op == opRange:
			return atomicOf("integer", OccursMany)
		case isSetOperator(e.Op):
			return SequenceType{Item: KindTest{Kind: xml.TypeNode}, Occurrence: OccursMany}
		default:
			return anyItems
		}
	case *InstanceOf, *Castable:
		return atomicOf("boolean", OccursOne)
	case *Treat:
		return e.Type
	case *Cast:
		occ := OccursOne
		if e.AllowEmpty {
			occ = OccursOptional
		}
		return SequenceType{Item: AtomicType{Name: e.Type}, Occurrence: occ}
	case *VarRef:
		switch {
		case e.Binding != nil && e.Binding.Type != nil:
			return *e.Binding.Type
		case e.Global != nil:
			return e.Global.StaticType()
		default:
			return anyItems
		}
	case *Call:
		if e.Func == nil {
			return anyItems
		}
		return e.Func.ReturnType()
	case *InlineFunction, *FunctionRef:
		return SequenceType{Item: FunctionTest{Any: true}, Occurrence: OccursOne}
	case *MapConstructor:
		return SequenceType{Item: MapTest{Any: true}, Occurrence: OccursOne}
	case *ArrayConstructor:
		return SequenceType{Item: ArrayTest{Any: true}, Occurrence: OccursOne}
	case *ElementConstructor:
		return SequenceType{Item: KindTest{Kind: xml.TypeElement}, Occurrence: OccursOne}
	case *AttributeConstructor:
		return SequenceType{Item: KindTest{Kind: xml.TypeAttribute}, Occurrence: OccursOne}
	case *TextConstructor:
		return SequenceType{Item: KindTest{Kind: xml.TypeText}, Occurrence: OccursOptional}
	case *CommentConstructor:
		return SequenceType{Item: KindTest{Kind: xml.TypeComment}, Occurrence: OccursOne}
	case *PIConstructor:
		return SequenceType{Item: KindTest{Kind: xml.TypeInstruction}, Occurrence: OccursOne}
	case *DocumentConstructor:
		return SequenceType{Item: KindTest{Kind: xml.TypeDocument}, Occurrence: OccursOne}
	case *NamespaceConstructor:
		return SequenceType{Item: KindTest{Kind: xml.TypeNamespace}, Occurrence: OccursOne}
	case *Quantified:
		return atomicOf("boolean", OccursOne)
	case *Extension:
		return StaticType(e.Expr)
	case *Ordered:
		return StaticType(e.Expr)
	default:
		return anyItems
	}
}

// Incompatible reports whether a value of type actual can never match
// expected. Unknown types are always compatible.
func Incompatible(actual, expected SequenceType) bool {
	if actual.Occurrence == OccursEmpty {
		return !expected.Occurrence.allowsEmpty()
	}
	if expected.Occurrence == OccursEmpty {
		return actual.Occurrence == OccursOne || actual.Occurrence == OccursOneOrMore
	}
	return incompatibleItem(actual.Item, expected.Item)
}

func incompatibleItem(actual, expected ItemType) bool {
	if actual == nil || expected == nil {
		return false
	}
	if _, ok := expected.(AnyItem); ok {
		return false
	}
	switch a := actual.(type) {
	case AtomicType:
		switch e := expected.(type) {
		case AtomicType:
			return !compatibleAtomic(a.Name, e.Name)
		case KindTest, MapTest, ArrayTest:
			return true
		case FunctionTest:
			return true
		default:
			return false
		}
	case KindTest:
		switch e := expected.(type) {
		case MapTest, ArrayTest, FunctionTest:
			return true
		case KindTest:
			return a.Kind&e.Kind == 0
		default:
			return false
		}
	case MapTest:
		switch expected.(type) {
		case AtomicType, KindTest, ArrayTest:
			return true
		default:
			return false
		}
	case ArrayTest:
		switch expected.(type) {
		case AtomicType, KindTest, MapTest:
			return true
		default:
			return false
		}
	case FunctionTest:
		switch expected.(type) {
		case AtomicType, KindTest:
			return true
		default:
			return false
		}
	default:
		return false
	}
}

// typecheck checks the declarations in dependency order so that the type
// inferred for a variable is known before its uses are checked.
func (l *linker) typecheck(order [][]*decl) {
	l.cfg.tracer.Enter("typecheck")
	defer l.cfg.tracer.Leave("typecheck")

	for _, comp := range order {
		for _, d := range comp {
			if d.variable != nil {
				l.checkVariable(d.variable)
			} else {
				l.checkFunction(d.function)
			}
		}
	}
	for _, u := range l.units {
		if u.Context != nil && u.Context.Init != nil {
			l.checkCalls(u.Context.Init)
			if u.Context.Type != nil {
				l.checkValue(u.Context.Init, *u.Context.Type, "context item")
			}
		}
		if u.Body != nil {
			l.checkCalls(u.Body)
		}
	}
}

func (l *linker) checkVariable(g *GlobalVariable) {
	if g.Init == nil {
		return
	}
	l.checkCalls(g.Init)
	actual := StaticType(g.Init)
	if g.Type == nil {
		g.inferred = &actual
		return
	}
	l.checkValue(g.Init, *g.Type, "variable $"+g.Name.QualifiedName())
}

func (l *linker) checkFunction(fn *FunctionDecl) {
	if fn.Body == nil {
		return
	}
	l.checkCalls(fn.Body)
	if fn.Return != nil {
		l.checkValue(fn.Body, *fn.Return, "function "+fn.Name.QualifiedName())
	}
}

func (l *linker) checkValue(expr Expr, expected SequenceType, what string) {
	actual := StaticType(expr)
	if !Incompatible(actual, expected) {
		return
	}
	err := staticError(CodeTypeMismatch, KindType, expr.Location(), "%s: %s does not match required type %s", what, actual, expected)
	l.cfg.tracer.Error("typecheck", err)
	l.diag.Report(err)
}

// checkCalls compares the arguments of the bound calls with the declared
// types of the parameters.
func (l *linker) checkCalls(expr Expr) {
	Walk(expr, func(e Expr) bool {
		call, ok := e.(*Call)
		if !ok || call.Func == nil {
			return true
		}
		for i, arg := range call.Args {
			if _, ok := arg.(*Placeholder); ok {
				continue
			}
			typ, ok := parameterType(call.Func, i)
			if !ok {
				continue
			}
			l.checkValue(arg, typ, "argument "+strconv.Itoa(i+1)+" of "+call.Name.QualifiedName())
		}
		return true
	})
}

func parameterType(fn Function, i int) (SequenceType, bool) {
	switch fn := fn.(type) {
	case *Builtin:
		if i < len(fn.Params) {
			return fn.Params[i], true
		}
		if fn.Variadic && len(fn.Params) > 0 {
			return fn.Params[len(fn.Params)-1], true
		}
	case *FunctionDecl:
		if i < len(fn.Params) && fn.Params[i].Type != nil {
			return *fn.Params[i].Type, true
		}
	}
	return SequenceType{}, false
}
