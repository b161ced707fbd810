package xpath

import (
	"github.com/midbel/xq/xml"
)

// Unit is one compiled module: the main module or a library module
// loaded through an import.
type Unit struct {
	URI       string
	Namespace string
	Prefix    string
	IsLibrary bool
	Version   string
	Encoding  string

	Static    *StaticContext
	Body      Expr
	Variables []*GlobalVariable
	Functions []*FunctionDecl
	Imports   []*ModuleImport
	Schemas   []*SchemaImport
	Context   *ContextDecl
	// Frame is the number of local slots needed by the body.
	Frame int

	vars     map[string]*GlobalVariable
	funcs    *Library
	deferred []deferred
}

func newUnit(uri string, sc *StaticContext) *Unit {
	return &Unit{
		URI:    uri,
		Static: sc,
		vars:   make(map[string]*GlobalVariable),
		funcs:  NewLibrary(nil),
	}
}

func (u *Unit) declareVariable(g *GlobalVariable) {
	u.vars[g.Name.ExpandedName()] = g
	u.Variables = append(u.Variables, g)
}

func (u *Unit) declareFunction(fn *FunctionDecl) error {
	if err := u.funcs.Define(fn); err != nil {
		return err
	}
	u.Functions = append(u.Functions, fn)
	return nil
}

func (u *Unit) imports(ns string) bool {
	for _, i := range u.Imports {
		if i.Namespace == ns {
			return true
		}
	}
	return false
}

func (u *Unit) deferVariable(ref *VarRef) {
	d := deferred{
		kind: refVariable,
		name: ref.Name,
		site: ref,
		unit: u,
	}
	u.deferred = append(u.deferred, d)
}

func (u *Unit) deferCall(call *Call) {
	d := deferred{
		kind:  refFunction,
		name:  call.Name,
		arity: len(call.Args),
		site:  call,
		unit:  u,
	}
	u.deferred = append(u.deferred, d)
}

func (u *Unit) deferRef(ref *FunctionRef) {
	d := deferred{
		kind:  refFunction,
		name:  ref.Name,
		arity: ref.Arity,
		site:  ref,
		unit:  u,
	}
	u.deferred = append(u.deferred, d)
}

type refKind int8

const (
	refVariable refKind = iota
	refFunction
)

// deferred is a reference that could not be bound when it was parsed
// because its declaration comes later or lives in another unit.
type deferred struct {
	kind  refKind
	name  xml.QName
	arity int
	site  Expr
	unit  *Unit
}

// GlobalVariable is a variable declared in a prolog or by the host. Unit
// is nil for the latter.
type GlobalVariable struct {
	Name     xml.QName
	Type     *SequenceType
	Init     Expr
	External bool
	Private  bool
	Unit     *Unit
	Location *Location
	Slot     int
	Frame    int

	// inferred is the static type of Init once it has been checked.
	inferred *SequenceType
}

func (g *GlobalVariable) StaticType() SequenceType {
	switch {
	case g.Type != nil:
		return *g.Type
	case g.inferred != nil:
		return *g.inferred
	default:
		return anyItems
	}
}

type ModuleImport struct {
	Prefix    string
	Namespace string
	Hints     []string
	Location  *Location
	// Units holds the library modules loaded for the namespace.
	Units []*Unit
}

type SchemaImport struct {
	Prefix    string
	Namespace string
	Hints     []string
	Location  *Location
	// Default is set when the schema namespace becomes the default element
	// namespace.
	Default bool
}

type ContextDecl struct {
	Type     *SequenceType
	Init     Expr
	External bool
	Location *Location
}
