package xpath

import (
	"errors"
	"slices"

	"github.com/midbel/xq/environ"
	"github.com/midbel/xq/xml"
)

var ErrDuplicateFunction = errors.New("function already defined")

// Function is the signature of something a call can be bound to.
type Function interface {
	QName() xml.QName
	// Arity returns the minimum and maximum number of arguments. The maximum
	// is negative for variadic functions.
	Arity() (int, int)
	ReturnType() SequenceType
}

func accepts(fn Function, n int) bool {
	min, max := fn.Arity()
	return n >= min && (max < 0 || n <= max)
}

type Builtin struct {
	Name   xml.QName
	Params []SequenceType
	// Optional is the number of trailing parameters that can be omitted.
	Optional int
	Variadic bool
	Return   SequenceType
}

func (b *Builtin) QName() xml.QName {
	return b.Name
}

func (b *Builtin) Arity() (int, int) {
	max := len(b.Params)
	if b.Variadic {
		max = -1
	}
	return len(b.Params) - b.Optional, max
}

func (b *Builtin) ReturnType() SequenceType {
	return b.Return
}

// FunctionDecl is a function declared in the prolog of a unit.
type FunctionDecl struct {
	Name        xml.QName
	Annotations []Annotation
	Params      []*Binding
	Return      *SequenceType
	Body        Expr
	External    bool
	Private     bool
	Memo        bool
	Unit        *Unit
	Location    *Location
	// Frame is the number of local slots needed by the body.
	Frame int
}

func (f *FunctionDecl) QName() xml.QName {
	return f.Name
}

func (f *FunctionDecl) Arity() (int, int) {
	return len(f.Params), len(f.Params)
}

func (f *FunctionDecl) ReturnType() SequenceType {
	if f.Return == nil {
		return anyItems
	}
	return *f.Return
}

// Library maps expanded function names to the functions defined with that
// name, one per arity. A library only defines functions in its own scope
// and looks up the enclosing one for the others.
type Library struct {
	env    environ.Environ[[]Function]
	parent *Library
}

func NewLibrary(parent *Library) *Library {
	lib := Library{
		parent: parent,
	}
	if parent == nil {
		lib.env = environ.Empty[[]Function]()
	} else {
		lib.env = environ.Enclosed(parent.env)
	}
	return &lib
}

// Define adds a function to the library. It fails if a function with the
// same name accepts one of the arities of the new one.
func (l *Library) Define(fn Function) error {
	key := fn.QName().ExpandedName()
	list, _ := l.local(key)
	min, max := fn.Arity()
	for _, other := range list {
		omin, omax := other.Arity()
		if overlaps(min, max, omin, omax) {
			return ErrDuplicateFunction
		}
	}
	l.env.Define(key, append(list, fn))
	return nil
}

func overlaps(min, max, omin, omax int) bool {
	if max < 0 {
		max = int(^uint(0) >> 1)
	}
	if omax < 0 {
		omax = int(^uint(0) >> 1)
	}
	return min <= omax && omin <= max
}

func (l *Library) local(key string) ([]Function, bool) {
	if !l.env.Defined(key) {
		return nil, false
	}
	list, err := l.env.Resolve(key)
	return list, err == nil
}

// Lookup finds the function with the given name accepting arity arguments.
// Constructor functions of the atomic types are always available.
func (l *Library) Lookup(name xml.QName, arity int) (Function, bool) {
	key := name.ExpandedName()
	if list, ok := l.local(key); ok {
		for _, fn := range list {
			if accepts(fn, arity) {
				return fn, true
			}
		}
	}
	if l.parent != nil {
		return l.parent.Lookup(name, arity)
	}
	if arity == 1 && isAtomicType(name) && !isAbstractType(name) {
		return constructorFunc(name), true
	}
	return nil, false
}

// Arities returns the arities a function with the given name accepts, a
// variadic function being reported by its minimum.
func (l *Library) Arities(name xml.QName) []int {
	var (
		list []int
		key  = name.ExpandedName()
	)
	for lib := l; lib != nil; lib = lib.parent {
		fns, _ := lib.local(key)
		for _, fn := range fns {
			min, max := fn.Arity()
			for i := min; i <= max; i++ {
				list = append(list, i)
			}
			if max < 0 {
				list = append(list, min)
			}
		}
	}
	slices.Sort(list)
	return slices.Compact(list)
}

// Names returns the expanded names of the functions visible from the library.
func (l *Library) Names() []string {
	return l.env.Names()
}

func constructorFunc(name xml.QName) Function {
	fn := Builtin{
		Name:   name,
		Params: []SequenceType{atomicOf("anyAtomicType", OccursOptional)},
		Return: SequenceType{Item: AtomicType{Name: name}, Occurrence: OccursOptional},
	}
	return &fn
}

var (
	anyItem       = SequenceType{Item: AnyItem{}, Occurrence: OccursOne}
	optionalItem  = SequenceType{Item: AnyItem{}, Occurrence: OccursOptional}
	anyNodes      = SequenceType{Item: KindTest{Kind: xml.TypeNode}, Occurrence: OccursMany}
	optionalNode  = SequenceType{Item: KindTest{Kind: xml.TypeNode}, Occurrence: OccursOptional}
	anyMap        = SequenceType{Item: MapTest{Any: true}, Occurrence: OccursOne}
	anyArray      = SequenceType{Item: ArrayTest{Any: true}, Occurrence: OccursOne}
	anyFunction   = SequenceType{Item: FunctionTest{Any: true}, Occurrence: OccursOne}
	anyAtomics    = atomicOf("anyAtomicType", OccursMany)
	optionalAtom  = atomicOf("anyAtomicType", OccursOptional)
	oneString     = atomicOf("string", OccursOne)
	optString     = atomicOf("string", OccursOptional)
	manyStrings   = atomicOf("string", OccursMany)
	oneInteger    = atomicOf("integer", OccursOne)
	optInteger    = atomicOf("integer", OccursOptional)
	oneBoolean    = atomicOf("boolean", OccursOne)
	oneDouble     = atomicOf("double", OccursOne)
	optDouble     = atomicOf("double", OccursOptional)
	optNumeric    = atomicOf("decimal", OccursOptional)
	optQName      = atomicOf("QName", OccursOptional)
	optAnyURI     = atomicOf("anyURI", OccursOptional)
	optDateTime   = atomicOf("dateTime", OccursOptional)
	oneDateTime   = atomicOf("dateTime", OccursOne)
	optDate       = atomicOf("date", OccursOptional)
	optTime       = atomicOf("time", OccursOptional)
	optDuration   = atomicOf("duration", OccursOptional)
	optDayTimeDur = atomicOf("dayTimeDuration", OccursOptional)
)

type signature struct {
	ns       string
	name     string
	params   []SequenceType
	optional int
	variadic bool
	ret      SequenceType
}

func sig(ns, name string, ret SequenceType, params ...SequenceType) signature {
	return signature{
		ns:     ns,
		name:   name,
		params: params,
		ret:    ret,
	}
}

func (s signature) opt(n int) signature {
	s.optional = n
	return s
}

func (s signature) more() signature {
	s.variadic = true
	return s
}

var signatures = []signature{
	sig("fn", "true", oneBoolean),
	sig("fn", "false", oneBoolean),
	sig("fn", "not", oneBoolean, anyItems),
	sig("fn", "boolean", oneBoolean, anyItems),
	sig("fn", "count", oneInteger, anyItems),
	sig("fn", "empty", oneBoolean, anyItems),
	sig("fn", "exists", oneBoolean, anyItems),
	sig("fn", "position", oneInteger),
	sig("fn", "last", oneInteger),
	sig("fn", "data", anyAtomics, anyItems).opt(1),
	sig("fn", "string", oneString, optionalItem).opt(1),
	sig("fn", "name", oneString, optionalNode).opt(1),
	sig("fn", "local-name", oneString, optionalNode).opt(1),
	sig("fn", "namespace-uri", optAnyURI, optionalNode).opt(1),
	sig("fn", "node-name", optQName, optionalNode).opt(1),
	sig("fn", "root", optionalNode, optionalNode).opt(1),
	sig("fn", "base-uri", optAnyURI, optionalNode).opt(1),
	sig("fn", "document-uri", optAnyURI, optionalNode).opt(1),
	sig("fn", "doc", optionalNode, optString),
	sig("fn", "doc-available", oneBoolean, optString),
	sig("fn", "collection", anyItems, optString).opt(1),
	sig("fn", "concat", oneString, optionalAtom, optionalAtom).more(),
	sig("fn", "string-join", oneString, anyAtomics, oneString).opt(1),
	sig("fn", "string-length", oneInteger, optString).opt(1),
	sig("fn", "normalize-space", oneString, optString).opt(1),
	sig("fn", "upper-case", oneString, optString),
	sig("fn", "lower-case", oneString, optString),
	sig("fn", "contains", oneBoolean, optString, optString, oneString).opt(1),
	sig("fn", "starts-with", oneBoolean, optString, optString, oneString).opt(1),
	sig("fn", "ends-with", oneBoolean, optString, optString, oneString).opt(1),
	sig("fn", "substring", oneString, optString, oneDouble, oneDouble).opt(1),
	sig("fn", "substring-before", oneString, optString, optString, oneString).opt(1),
	sig("fn", "substring-after", oneString, optString, optString, oneString).opt(1),
	sig("fn", "translate", oneString, optString, oneString, oneString),
	sig("fn", "replace", oneString, optString, oneString, oneString, oneString).opt(1),
	sig("fn", "matches", oneBoolean, optString, oneString, oneString).opt(1),
	sig("fn", "tokenize", manyStrings, optString, oneString, oneString).opt(2),
	sig("fn", "compare", optInteger, optString, optString, oneString).opt(1),
	sig("fn", "codepoints-to-string", oneString, atomicOf("integer", OccursMany)),
	sig("fn", "string-to-codepoints", atomicOf("integer", OccursMany), optString),
	sig("fn", "sum", optionalAtom, anyAtomics, optionalAtom).opt(1),
	sig("fn", "avg", optionalAtom, anyAtomics),
	sig("fn", "min", optionalAtom, anyAtomics, oneString).opt(1),
	sig("fn", "max", optionalAtom, anyAtomics, oneString).opt(1),
	sig("fn", "abs", optNumeric, optNumeric),
	sig("fn", "ceiling", optNumeric, optNumeric),
	sig("fn", "floor", optNumeric, optNumeric),
	sig("fn", "round", optNumeric, optNumeric, oneInteger).opt(1),
	sig("fn", "number", oneDouble, optionalAtom).opt(1),
	sig("fn", "distinct-values", anyAtomics, anyAtomics, oneString).opt(1),
	sig("fn", "index-of", atomicOf("integer", OccursMany), anyAtomics, atomicOf("anyAtomicType", OccursOne), oneString).opt(1),
	sig("fn", "reverse", anyItems, anyItems),
	sig("fn", "subsequence", anyItems, anyItems, oneDouble, oneDouble).opt(1),
	sig("fn", "insert-before", anyItems, anyItems, oneInteger, anyItems),
	sig("fn", "remove", anyItems, anyItems, oneInteger),
	sig("fn", "head", optionalItem, anyItems),
	sig("fn", "tail", anyItems, anyItems),
	sig("fn", "deep-equal", oneBoolean, anyItems, anyItems, oneString).opt(1),
	sig("fn", "zero-or-one", optionalItem, anyItems),
	sig("fn", "one-or-more", SequenceType{Item: AnyItem{}, Occurrence: OccursOneOrMore}, anyItems),
	sig("fn", "exactly-one", anyItem, anyItems),
	sig("fn", "error", anyItems, optQName, oneString, anyItems).opt(3),
	sig("fn", "trace", anyItems, anyItems, oneString).opt(1),
	sig("fn", "current-dateTime", oneDateTime),
	sig("fn", "current-date", optDate),
	sig("fn", "current-time", optTime),
	sig("fn", "year-from-date", optInteger, optDate),
	sig("fn", "hours-from-duration", optInteger, optDuration),
	sig("fn", "days-from-duration", optInteger, optDayTimeDur),
	sig("fn", "adjust-dateTime-to-timezone", optDateTime, optDateTime, optDayTimeDur).opt(1),
	sig("fn", "format-number", oneString, optNumeric, oneString, optString).opt(1),
	sig("fn", "format-integer", oneString, optInteger, oneString, optString).opt(1),
	sig("fn", "format-dateTime", optString, optDateTime, oneString, optString, optString, optString).opt(3),
	sig("fn", "resolve-uri", optAnyURI, optString, oneString).opt(1),
	sig("fn", "encode-for-uri", oneString, optString),
	sig("fn", "QName", atomicOf("QName", OccursOne), optString, oneString),
	sig("fn", "resolve-QName", optQName, optString, SequenceType{Item: KindTest{Kind: xml.TypeElement}, Occurrence: OccursOne}),
	sig("fn", "in-scope-prefixes", manyStrings, SequenceType{Item: KindTest{Kind: xml.TypeElement}, Occurrence: OccursOne}),
	sig("fn", "id", SequenceType{Item: KindTest{Kind: xml.TypeElement}, Occurrence: OccursMany}, manyStrings, SequenceType{Item: KindTest{Kind: xml.TypeNode}, Occurrence: OccursOne}).opt(1),
	sig("fn", "lang", oneBoolean, optString, SequenceType{Item: KindTest{Kind: xml.TypeNode}, Occurrence: OccursOne}).opt(1),
	sig("fn", "function-lookup", SequenceType{Item: FunctionTest{Any: true}, Occurrence: OccursOptional}, atomicOf("QName", OccursOne), oneInteger),
	sig("fn", "function-arity", oneInteger, anyFunction),
	sig("fn", "for-each", anyItems, anyItems, anyFunction),
	sig("fn", "filter", anyItems, anyItems, anyFunction),
	sig("fn", "fold-left", anyItems, anyItems, anyItems, anyFunction),
	sig("fn", "fold-right", anyItems, anyItems, anyItems, anyFunction),
	sig("fn", "for-each-pair", anyItems, anyItems, anyItems, anyFunction),
	sig("fn", "sort", anyItems, anyItems, optString, anyFunction).opt(2),
	sig("fn", "apply", anyItems, anyFunction, anyArray),
	sig("fn", "serialize", oneString, anyItems, optionalItem).opt(1),
	sig("fn", "parse-xml", SequenceType{Item: KindTest{Kind: xml.TypeDocument}, Occurrence: OccursOptional}, optString),
	sig("fn", "parse-json", optionalItem, optString, anyMap).opt(1),
	sig("fn", "json-doc", optionalItem, optString, anyMap).opt(1),
	sig("fn", "generate-id", oneString, optionalNode).opt(1),
	sig("fn", "path", optString, optionalNode).opt(1),
	sig("fn", "has-children", oneBoolean, optionalNode).opt(1),
	sig("fn", "innermost", anyNodes, anyNodes),
	sig("fn", "outermost", anyNodes, anyNodes),
	sig("fn", "static-base-uri", optAnyURI),
	sig("fn", "default-collation", oneString),
	sig("fn", "environment-variable", optString, oneString),
	sig("math", "pi", oneDouble),
	sig("math", "sqrt", optDouble, optDouble),
	sig("math", "pow", optDouble, optDouble, atomicOf("decimal", OccursOne)),
	sig("math", "exp", optDouble, optDouble),
	sig("math", "log", optDouble, optDouble),
	sig("math", "log10", optDouble, optDouble),
	sig("math", "sin", optDouble, optDouble),
	sig("math", "cos", optDouble, optDouble),
	sig("math", "tan", optDouble, optDouble),
	sig("math", "atan2", oneDouble, oneDouble, oneDouble),
	sig("map", "merge", anyMap, SequenceType{Item: MapTest{Any: true}, Occurrence: OccursMany}, anyMap).opt(1),
	sig("map", "size", oneInteger, anyMap),
	sig("map", "keys", anyAtomics, anyMap),
	sig("map", "contains", oneBoolean, anyMap, atomicOf("anyAtomicType", OccursOne)),
	sig("map", "get", anyItems, anyMap, atomicOf("anyAtomicType", OccursOne)),
	sig("map", "find", anyArray, anyItems, atomicOf("anyAtomicType", OccursOne)),
	sig("map", "put", anyMap, anyMap, atomicOf("anyAtomicType", OccursOne), anyItems),
	sig("map", "entry", anyMap, atomicOf("anyAtomicType", OccursOne), anyItems),
	sig("map", "remove", anyMap, anyMap, anyAtomics),
	sig("map", "for-each", anyItems, anyMap, anyFunction),
	sig("array", "size", oneInteger, anyArray),
	sig("array", "get", anyItems, anyArray, oneInteger),
	sig("array", "put", anyArray, anyArray, oneInteger, anyItems),
	sig("array", "append", anyArray, anyArray, anyItems),
	sig("array", "subarray", anyArray, anyArray, oneInteger, oneInteger).opt(1),
	sig("array", "remove", anyArray, anyArray, atomicOf("integer", OccursMany)),
	sig("array", "insert-before", anyArray, anyArray, oneInteger, anyItems),
	sig("array", "head", anyItems, anyArray),
	sig("array", "tail", anyArray, anyArray),
	sig("array", "reverse", anyArray, anyArray),
	sig("array", "join", anyArray, SequenceType{Item: ArrayTest{Any: true}, Occurrence: OccursMany}),
	sig("array", "flatten", anyItems, anyItems),
	sig("array", "for-each", anyArray, anyArray, anyFunction),
	sig("array", "filter", anyArray, anyArray, anyFunction),
	sig("array", "fold-left", anyItems, anyArray, anyItems, anyFunction),
	sig("array", "sort", anyArray, anyArray, optString, anyFunction).opt(2),
}

var builtins = loadBuiltins()

func loadBuiltins() *Library {
	lib := NewLibrary(nil)
	for _, s := range signatures {
		fn := Builtin{
			Name:     xml.ExpandedName(s.name, s.ns, predeclared[s.ns]),
			Params:   s.params,
			Optional: s.optional,
			Variadic: s.variadic,
			Return:   s.ret,
		}
		if err := lib.Define(&fn); err != nil {
			panic(fn.Name.QualifiedName() + ": " + err.Error())
		}
	}
	return lib
}
