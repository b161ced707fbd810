package xpath

import (
	"github.com/midbel/xq/xml"
)

type BindingKind int8

const (
	BindVariable BindingKind = iota
	BindPosition
	BindParameter
	BindCount
	BindGroup
	BindCatch
)

func (k BindingKind) String() string {
	switch k {
	case BindVariable:
		return "variable"
	case BindPosition:
		return "position"
	case BindParameter:
		return "parameter"
	case BindCount:
		return "count"
	case BindGroup:
		return "group"
	case BindCatch:
		return "catch"
	default:
		return "unknown"
	}
}

// Binding is a local variable: a range variable of a FLWOR or quantified
// expression, a function parameter or one of the implicit variables of a
// catch clause.
type Binding struct {
	Name     xml.QName
	Type     *SequenceType
	Kind     BindingKind
	Slot     int
	Location *Location
}

func newBinding(name xml.QName, kind BindingKind, loc *Location) *Binding {
	return &Binding{
		Name:     name,
		Kind:     kind,
		Slot:     -1,
		Location: loc,
	}
}

// Bindings is the stack of the local variables in scope while an expression
// is being parsed.
type Bindings struct {
	list []*Binding
}

func NewBindings() *Bindings {
	return &Bindings{}
}

func (b *Bindings) Declare(bind *Binding) {
	b.list = append(b.list, bind)
}

func (b *Bindings) Undeclare() {
	if n := len(b.list); n > 0 {
		b.list[n-1] = nil
		b.list = b.list[:n-1]
	}
}

// Find returns the innermost binding with the given expanded name.
func (b *Bindings) Find(name xml.QName) (*Binding, bool) {
	for i := len(b.list) - 1; i >= 0; i-- {
		if b.list[i].Name.Equal(name) {
			return b.list[i], true
		}
	}
	return nil, false
}

func (b *Bindings) Depth() int {
	return len(b.list)
}

// Scope records the current depth and returns a function that pops every
// binding declared since, whatever the way the caller returns.
func (b *Bindings) Scope() func() {
	depth := len(b.list)
	return func() {
		for len(b.list) > depth {
			b.Undeclare()
		}
	}
}
