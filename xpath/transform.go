package xpath

import (
	"fmt"
	"slices"
)

// children returns the addresses of the sub expressions of expr, so that a
// pass can replace them in place. Nil sub expressions are left out.
func children(expr Expr) []*Expr {
	var list []*Expr
	add := func(ptr *Expr) {
		if *ptr != nil {
			list = append(list, ptr)
		}
	}
	each := func(all []Expr) {
		for i := range all {
			add(&all[i])
		}
	}
	switch e := expr.(type) {
	case *Literal, *ContextItem, *Root, *VarRef, *Placeholder, *FunctionRef:
	case *Sequence:
		each(e.Items)
	case *Binary:
		add(&e.Left)
		add(&e.Right)
	case *Unary:
		add(&e.Expr)
	case *InstanceOf:
		add(&e.Expr)
	case *Treat:
		add(&e.Expr)
	case *Cast:
		add(&e.Expr)
	case *Castable:
		add(&e.Expr)
	case *Path:
		add(&e.Left)
		add(&e.Right)
	case *Step:
		each(e.Predicates)
	case *Filter:
		add(&e.Expr)
		each(e.Predicates)
	case *SimpleMap:
		add(&e.Left)
		add(&e.Right)
	case *Call:
		each(e.Args)
	case *DynamicCall:
		add(&e.Func)
		each(e.Args)
	case *InlineFunction:
		add(&e.Body)
	case *Lookup:
		add(&e.Expr)
		add(&e.Key)
	case *MapConstructor:
		each(e.Keys)
		each(e.Values)
	case *ArrayConstructor:
		each(e.Members)
	case *FLWOR:
		for _, c := range e.Clauses {
			switch c := c.(type) {
			case *ForClause:
				add(&c.In)
			case *LetClause:
				add(&c.Expr)
			case *WhereClause:
				add(&c.Cond)
			case *OrderByClause:
				for i := range c.Specs {
					add(&c.Specs[i].Expr)
				}
			case *GroupByClause:
				for i := range c.Specs {
					add(&c.Specs[i].Expr)
				}
			case *CountClause:
			default:
				panic(fmt.Sprintf("unexpected clause type %T", c))
			}
		}
		add(&e.Return)
	case *Quantified:
		for i := range e.Bindings {
			add(&e.Bindings[i].In)
		}
		add(&e.Satisfies)
	case *If:
		add(&e.Cond)
		add(&e.Then)
		add(&e.Else)
	case *Switch:
		add(&e.Operand)
		for i := range e.Cases {
			each(e.Cases[i].Values)
			add(&e.Cases[i].Return)
		}
		add(&e.Default)
	case *Typeswitch:
		add(&e.Operand)
		for i := range e.Cases {
			add(&e.Cases[i].Return)
		}
		add(&e.Default)
	case *TryCatch:
		add(&e.Try)
		for i := range e.Catches {
			add(&e.Catches[i].Body)
		}
	case *Validate:
		add(&e.Expr)
	case *Extension:
		add(&e.Expr)
	case *Ordered:
		add(&e.Expr)
	case *ElementConstructor:
		add(&e.NameExpr)
		each(e.Attributes)
		each(e.Content)
	case *AttributeConstructor:
		add(&e.NameExpr)
		each(e.Value)
	case *TextConstructor:
		add(&e.Content)
	case *CommentConstructor:
		add(&e.Content)
	case *PIConstructor:
		add(&e.TargetExpr)
		add(&e.Content)
	case *DocumentConstructor:
		add(&e.Content)
	case *NamespaceConstructor:
		add(&e.PrefixExpr)
		add(&e.URI)
	default:
		panic(fmt.Sprintf("unexpected expression type %T", expr))
	}
	return list
}

// Walk visits expr and its sub expressions depth first. The sub expressions
// of a node are skipped when fn returns false.
func Walk(expr Expr, fn func(Expr) bool) {
	if expr == nil || !fn(expr) {
		return
	}
	for _, ptr := range children(expr) {
		Walk(*ptr, fn)
	}
}

// transform rewrites the tree bottom up, replacing every node by the value
// returned by fn.
func transform(expr Expr, fn func(Expr) Expr) Expr {
	if expr == nil {
		return nil
	}
	for _, ptr := range children(expr) {
		*ptr = transform(*ptr, fn)
	}
	return fn(expr)
}

// Clone returns a deep copy of expr. Locations, bindings and bound
// functions are shared with the original.
func Clone(expr Expr) Expr {
	if expr == nil {
		return nil
	}
	dup := copyNode(expr)
	for _, ptr := range children(dup) {
		*ptr = Clone(*ptr)
	}
	return dup
}

func copyNode(expr Expr) Expr {
	switch e := expr.(type) {
	case *Literal:
		x := *e
		return &x
	case *ContextItem:
		x := *e
		return &x
	case *Root:
		x := *e
		return &x
	case *VarRef:
		x := *e
		return &x
	case *Placeholder:
		x := *e
		return &x
	case *FunctionRef:
		x := *e
		return &x
	case *Sequence:
		x := *e
		x.Items = slices.Clone(e.Items)
		return &x
	case *Binary:
		x := *e
		return &x
	case *Unary:
		x := *e
		return &x
	case *InstanceOf:
		x := *e
		return &x
	case *Treat:
		x := *e
		return &x
	case *Cast:
		x := *e
		return &x
	case *Castable:
		x := *e
		return &x
	case *Path:
		x := *e
		return &x
	case *Step:
		x := *e
		x.Predicates = slices.Clone(e.Predicates)
		return &x
	case *Filter:
		x := *e
		x.Predicates = slices.Clone(e.Predicates)
		return &x
	case *SimpleMap:
		x := *e
		return &x
	case *Call:
		x := *e
		x.Args = slices.Clone(e.Args)
		return &x
	case *DynamicCall:
		x := *e
		x.Args = slices.Clone(e.Args)
		return &x
	case *InlineFunction:
		x := *e
		return &x
	case *Lookup:
		x := *e
		return &x
	case *MapConstructor:
		x := *e
		x.Keys = slices.Clone(e.Keys)
		x.Values = slices.Clone(e.Values)
		return &x
	case *ArrayConstructor:
		x := *e
		x.Members = slices.Clone(e.Members)
		return &x
	case *FLWOR:
		x := *e
		x.Clauses = make([]Clause, 0, len(e.Clauses))
		for _, c := range e.Clauses {
			x.Clauses = append(x.Clauses, copyClause(c))
		}
		return &x
	case *Quantified:
		x := *e
		x.Bindings = slices.Clone(e.Bindings)
		return &x
	case *If:
		x := *e
		return &x
	case *Switch:
		x := *e
		x.Cases = slices.Clone(e.Cases)
		for i := range x.Cases {
			x.Cases[i].Values = slices.Clone(x.Cases[i].Values)
		}
		return &x
	case *Typeswitch:
		x := *e
		x.Cases = slices.Clone(e.Cases)
		return &x
	case *TryCatch:
		x := *e
		x.Catches = slices.Clone(e.Catches)
		return &x
	case *Validate:
		x := *e
		return &x
	case *Extension:
		x := *e
		return &x
	case *Ordered:
		x := *e
		return &x
	case *ElementConstructor:
		x := *e
		x.Attributes = slices.Clone(e.Attributes)
		x.Content = slices.Clone(e.Content)
		return &x
	case *AttributeConstructor:
		x := *e
		x.Value = slices.Clone(e.Value)
		return &x
	case *TextConstructor:
		x := *e
		return &x
	case *CommentConstructor:
		x := *e
		return &x
	case *PIConstructor:
		x := *e
		return &x
	case *DocumentConstructor:
		x := *e
		return &x
	case *NamespaceConstructor:
		x := *e
		return &x
	default:
		panic(fmt.Sprintf("unexpected expression type %T", expr))
	}
}

func copyClause(c Clause) Clause {
	switch c := c.(type) {
	case *ForClause:
		x := *c
		return &x
	case *LetClause:
		x := *c
		return &x
	case *WhereClause:
		x := *c
		return &x
	case *OrderByClause:
		x := *c
		x.Specs = slices.Clone(c.Specs)
		return &x
	case *GroupByClause:
		x := *c
		x.Specs = slices.Clone(c.Specs)
		return &x
	case *CountClause:
		x := *c
		return &x
	default:
		panic(fmt.Sprintf("unexpected clause type %T", c))
	}
}
