package xpath

import (
	"strconv"
	"strings"

	"github.com/midbel/xq/xml"
)

const (
	powLowest = iota
	powOr
	powAnd
	powCmp
	powConcat
	powRange
	powAdd
	powMul
	powUnion
	powIntersect
	powInstanceOf
	powTreat
	powCastable
	powCast
	powArrow
)

var powers = map[rune]int{
	opOr:         powOr,
	opAnd:        powAnd,
	opEq:         powCmp,
	opNe:         powCmp,
	opLt:         powCmp,
	opLe:         powCmp,
	opGt:         powCmp,
	opGe:         powCmp,
	opValEq:      powCmp,
	opValNe:      powCmp,
	opValLt:      powCmp,
	opValLe:      powCmp,
	opValGt:      powCmp,
	opValGe:      powCmp,
	opIs:         powCmp,
	opBefore:     powCmp,
	opAfter:      powCmp,
	opConcat:     powConcat,
	opRange:      powRange,
	opAdd:        powAdd,
	opSub:        powAdd,
	opMul:        powMul,
	opDiv:        powMul,
	opIdiv:       powMul,
	opMod:        powMul,
	opUnion:      powUnion,
	opIntersect:  powIntersect,
	opExcept:     powIntersect,
	opInstanceOf: powInstanceOf,
	opTreatAs:    powTreat,
	opCastableAs: powCastable,
	opCastAs:     powCast,
	opArrow:      powArrow,
}

// isAssociative reports whether the operator can be chained with another
// operator of the same precedence without parentheses.
func isAssociative(op rune) bool {
	return powers[op] != powCmp && op != opRange
}

type nameKind int8

const (
	nameElement nameKind = iota
	nameAttribute
	nameFunction
	nameVariable
	nameType
	nameOther
)

// Compiler parses one unit. Compilers created for attribute value
// templates share the bindings, the unit and the diagnostics of their
// parent.
type Compiler struct {
	scan *Scanner
	curr Token
	Tracer

	lang     Language
	module   string
	parent   *Location
	bindings *Bindings
	unit     *Unit
	link     *linker
	diag     *Diagnostics

	prefix   map[rune]func(*StaticContext) (Expr, error)
	keywords map[string]func(*StaticContext) (Expr, error)
}

func newCompiler(scan *Scanner, link *linker, unit *Unit) *Compiler {
	cp := Compiler{
		scan:     scan,
		Tracer:   link.cfg.tracer,
		lang:     scan.lang,
		module:   unit.URI,
		bindings: NewBindings(),
		unit:     unit,
		link:     link,
		diag:     link.diag,
	}
	cp.init()
	return &cp
}

func (c *Compiler) init() {
	c.prefix = map[rune]func(*StaticContext) (Expr, error){
		String:       c.compileLiteral,
		Integer:      c.compileNumber,
		Decimal:      c.compileNumber,
		Double:       c.compileNumber,
		variable:     c.compileVariable,
		begGrp:       c.compileParenthesized,
		currNode:     c.compileCurrent,
		function:     c.compileCall,
		namedRef:     c.compileFunctionRef,
		begPred:      c.compileSquareArray,
		opQuestion:   c.compileUnaryLookup,
		annotation:   c.compileInlineFunction,
		tagStart:     c.compileDirectElement,
		commentStart: c.compileDirectComment,
		piStart:      c.compileDirectPI,
	}
	c.keywords = map[string]func(*StaticContext) (Expr, error){
		kwOrdered:   c.compileOrdered,
		kwUnordered: c.compileOrdered,
		kwFunction:  c.compileInlineFunction,
		kwMap:       c.compileMap,
		kwArray:     c.compileCurlyArray,
		kwDocument:  c.compileDocument,
		kwElement:   c.compileComputedElement,
		kwAttribute: c.compileComputedAttribute,
		kwText:      c.compileComputedText,
		kwComment:   c.compileComputedComment,
		kwPI:        c.compileComputedPI,
		kwNamespace: c.compileComputedNamespace,
	}
}

// nested creates the compiler used to parse an expression embedded in the
// source at the given offset.
func (c *Compiler) nested(offset int, parent *Location) *Compiler {
	scan := Scan(c.scan.input, StartAt(offset), ForLanguage(c.lang), WithChecker(c.scan.checker), StartLine(c.scan.base))
	cp := Compiler{
		scan:     scan,
		Tracer:   c.Tracer,
		lang:     c.lang,
		module:   c.module,
		parent:   parent,
		bindings: c.bindings,
		unit:     c.unit,
		link:     c.link,
		diag:     c.diag,
	}
	cp.init()
	return &cp
}

// compileEnclosed parses an expression ending with the given terminator
// and returns the offset of the terminator.
func (c *Compiler) compileEnclosed(sc *StaticContext, terminator rune) (Expr, int, error) {
	c.next()
	if c.is(terminator) {
		return c.mark(&Sequence{}, c.curr.Offset), c.curr.Offset, nil
	}
	expr, err := c.compileExpr(sc)
	if err != nil {
		return nil, 0, err
	}
	if !c.is(terminator) {
		return nil, 0, c.grumble(describe(terminator))
	}
	return expr, c.curr.Offset, nil
}

func describe(kind rune) string {
	if kind == EOF {
		return "end of input"
	}
	if str, ok := symbols[kind]; ok {
		return "'" + str + "'"
	}
	return "<unknown>"
}

func (c *Compiler) compileExpr(sc *StaticContext) (Expr, error) {
	c.Enter("expr")
	defer c.Leave("expr")

	offset := c.curr.Offset
	var list []Expr
	for {
		expr, err := c.compileExprSingle(sc)
		if err != nil {
			return nil, err
		}
		list = append(list, expr)
		if !c.is(opSeq) {
			break
		}
		c.next()
	}
	if len(list) == 1 {
		return list[0], nil
	}
	return c.mark(&Sequence{Items: list}, offset), nil
}

func (c *Compiler) compileExprSingle(sc *StaticContext) (Expr, error) {
	if c.is(keyword) {
		switch c.curr.Literal {
		case kwFor, kwLet:
			return c.compileFLWOR(sc)
		case kwSome, kwEvery:
			return c.compileQuantified(sc)
		case kwIf:
			return c.compileIf(sc)
		case kwSwitch:
			return c.compileSwitch(sc)
		case kwTypeswitch:
			return c.compileTypeswitch(sc)
		case kwTry:
			return c.compileTry(sc)
		}
	}
	left, err := c.compileUnary(sc)
	if err != nil {
		return nil, err
	}
	return c.compileBinary(sc, left, powOr)
}

// compileBinary implements precedence climbing: it keeps absorbing
// operators as long as they bind at least as tightly as min.
func (c *Compiler) compileBinary(sc *StaticContext, left Expr, min int) (Expr, error) {
	for c.power() >= min && c.power() > powLowest {
		var (
			op  = c.curr.Type
			pow = c.power()
			err error
		)
		switch op {
		case opInstanceOf, opTreatAs:
			left, err = c.compileTypeTest(sc, left, op)
		case opCastAs, opCastableAs:
			left, err = c.compileCast(sc, left, op)
		case opArrow:
			left, err = c.compileArrow(sc, left)
		default:
			left, err = c.compileOperator(sc, left, op, pow)
		}
		if err != nil {
			return nil, err
		}
		if pow >= powInstanceOf && pow != powArrow && c.power() >= pow {
			return nil, c.needParentheses()
		}
	}
	return left, nil
}

func (c *Compiler) compileOperator(sc *StaticContext, left Expr, op rune, pow int) (Expr, error) {
	c.Enter("binary")
	defer c.Leave("binary")

	offset := c.curr.Offset
	c.next()
	right, err := c.compileUnary(sc)
	if err != nil {
		return nil, err
	}
	for c.power() > pow {
		right, err = c.compileBinary(sc, right, c.power())
		if err != nil {
			return nil, err
		}
	}
	if c.power() == pow && !isAssociative(c.curr.Type) {
		return nil, c.needParentheses()
	}
	return c.mark(&Binary{Op: op, Left: left, Right: right}, offset), nil
}

func (c *Compiler) needParentheses() error {
	str := symbols[c.curr.Type]
	return c.syntaxError("left operand of '%s' needs parentheses", str)
}

func (c *Compiler) compileTypeTest(sc *StaticContext, left Expr, op rune) (Expr, error) {
	c.Enter("type-test")
	defer c.Leave("type-test")

	offset := c.curr.Offset
	c.next()
	typ, err := c.compileSequenceType(sc)
	if err != nil {
		return nil, err
	}
	if op == opTreatAs {
		return c.mark(&Treat{Expr: left, Type: typ}, offset), nil
	}
	return c.mark(&InstanceOf{Expr: left, Type: typ}, offset), nil
}

func (c *Compiler) compileCast(sc *StaticContext, left Expr, op rune) (Expr, error) {
	c.Enter("cast")
	defer c.Leave("cast")

	offset := c.curr.Offset
	c.next()
	if !c.is(Name) {
		return nil, c.grumble("atomic type name")
	}
	name, err := c.resolveName(sc, c.curr.Literal, nameType)
	if err != nil {
		return nil, err
	}
	if isAbstractType(name) {
		return nil, c.errorf(CodeAbstractCast, KindType, "can not cast to abstract type %s", name)
	}
	if !isAtomicType(name) && !sc.Schemas[name.Uri] {
		return nil, c.errorf(CodeUnknownType, KindType, "unknown atomic type %s", name)
	}
	c.nextOp()
	var empty bool
	if c.is(opQuestion) {
		empty = true
		c.nextOp()
	}
	if op == opCastableAs {
		return c.mark(&Castable{Expr: left, Type: name, AllowEmpty: empty}, offset), nil
	}
	return c.mark(&Cast{Expr: left, Type: name, AllowEmpty: empty}, offset), nil
}

func (c *Compiler) compileArrow(sc *StaticContext, left Expr) (Expr, error) {
	c.Enter("arrow")
	defer c.Leave("arrow")

	offset := c.curr.Offset
	c.next()
	switch c.curr.Type {
	case function:
		call, err := c.parseCall(sc)
		if err != nil {
			return nil, err
		}
		call.Args = append([]Expr{left}, call.Args...)
		return c.bindCall(call), nil
	case variable, begGrp:
		if err := c.requireHigherOrder("dynamic function call"); err != nil {
			return nil, err
		}
		var (
			target Expr
			err    error
		)
		if c.is(variable) {
			target, err = c.compileVariable(sc)
		} else {
			target, err = c.compileParenthesized(sc)
		}
		if err != nil {
			return nil, err
		}
		if !c.is(begGrp) {
			return nil, c.grumble("'('")
		}
		args, err := c.compileArguments(sc)
		if err != nil {
			return nil, err
		}
		args = append([]Expr{left}, args...)
		return c.mark(&DynamicCall{Func: target, Args: args}, offset), nil
	default:
		return nil, c.grumble("function name")
	}
}

func (c *Compiler) compileUnary(sc *StaticContext) (Expr, error) {
	if !c.is(opSub) && !c.is(opAdd) {
		return c.compileValue(sc)
	}
	c.Enter("unary")
	defer c.Leave("unary")

	var (
		offset = c.curr.Offset
		op     = c.curr.Type
	)
	c.next()
	expr, err := c.compileUnary(sc)
	if err != nil {
		return nil, err
	}
	return c.mark(&Unary{Op: op, Expr: expr}, offset), nil
}

func (c *Compiler) compileValue(sc *StaticContext) (Expr, error) {
	switch {
	case c.is(pragma):
		return c.compileExtension(sc)
	case c.is(keyword) && c.curr.Literal == kwValidate:
		return c.compileValidate(sc)
	default:
		return c.compileSimpleMap(sc)
	}
}

func (c *Compiler) compileSimpleMap(sc *StaticContext) (Expr, error) {
	left, err := c.compilePath(sc)
	if err != nil {
		return nil, err
	}
	for c.is(opBang) {
		offset := c.curr.Offset
		c.next()
		right, err := c.compilePath(sc)
		if err != nil {
			return nil, err
		}
		left = c.mark(&SimpleMap{Left: left, Right: right}, offset)
	}
	return left, nil
}

func (c *Compiler) compilePrimary(sc *StaticContext) (Expr, error) {
	if c.is(keyword) {
		fn, ok := c.keywords[c.curr.Literal]
		if !ok {
			return nil, c.grumble("expression")
		}
		return fn(sc)
	}
	fn, ok := c.prefix[c.curr.Type]
	if !ok {
		return nil, c.grumble("expression")
	}
	return fn(sc)
}

func (c *Compiler) compileLiteral(_ *StaticContext) (Expr, error) {
	defer c.nextOp()
	lit := Literal{
		Kind:  TypeString,
		Value: c.curr.Literal,
	}
	return c.mark(&lit, c.curr.Offset), nil
}

func (c *Compiler) compileNumber(_ *StaticContext) (Expr, error) {
	defer c.nextOp()
	lit := Literal{
		Value: c.curr.Literal,
	}
	switch c.curr.Type {
	case Integer:
		lit.Kind = TypeInteger
	case Decimal:
		lit.Kind = TypeDecimal
	default:
		lit.Kind = TypeDouble
	}
	return c.mark(&lit, c.curr.Offset), nil
}

func (c *Compiler) compileCurrent(_ *StaticContext) (Expr, error) {
	defer c.nextOp()
	return c.mark(&ContextItem{}, c.curr.Offset), nil
}

func (c *Compiler) compileParenthesized(sc *StaticContext) (Expr, error) {
	offset := c.curr.Offset
	c.next()
	if c.is(endGrp) {
		c.nextOp()
		return c.mark(&Sequence{}, offset), nil
	}
	expr, err := c.compileExpr(sc)
	if err != nil {
		return nil, err
	}
	if !c.is(endGrp) {
		return nil, c.grumble("')'")
	}
	c.nextOp()
	return expr, nil
}

func (c *Compiler) compileVariable(sc *StaticContext) (Expr, error) {
	offset := c.curr.Offset
	name, err := c.resolveName(sc, c.curr.Literal, nameVariable)
	if err != nil {
		return nil, err
	}
	ref := VarRef{
		Name: name,
	}
	c.mark(&ref, offset)
	if b, ok := c.bindings.Find(name); ok {
		ref.Binding = b
	} else if g, ok := c.link.lookupVariable(name, c.unit); ok {
		ref.Global = g
	} else {
		c.unit.deferVariable(&ref)
	}
	c.nextOp()
	return &ref, nil
}

func (c *Compiler) compileCall(sc *StaticContext) (Expr, error) {
	call, err := c.parseCall(sc)
	if err != nil {
		return nil, err
	}
	return c.bindCall(call), nil
}

func (c *Compiler) parseCall(sc *StaticContext) (*Call, error) {
	c.Enter("call")
	defer c.Leave("call")

	offset := c.curr.Offset
	if isReserved(c.curr.Literal) {
		return nil, c.syntaxError("%s is a reserved function name", c.curr.Literal)
	}
	name, err := c.resolveName(sc, c.curr.Literal, nameFunction)
	if err != nil {
		return nil, err
	}
	c.next()
	if !c.is(begGrp) {
		return nil, c.grumble("'('")
	}
	args, err := c.compileArguments(sc)
	if err != nil {
		return nil, err
	}
	call := Call{
		Name: name,
		Args: args,
	}
	c.mark(&call, offset)
	for _, a := range args {
		if _, ok := a.(*Placeholder); ok {
			if err := c.requireHigherOrder("partial function application"); err != nil {
				return nil, err
			}
			break
		}
	}
	return &call, nil
}

// bindCall binds the call to a known function or defers it until every
// unit has been parsed.
func (c *Compiler) bindCall(call *Call) Expr {
	if fn, ok := c.link.lookupFunction(call.Name, len(call.Args), c.unit); ok {
		call.Func = fn
	} else {
		c.unit.deferCall(call)
	}
	return call
}

func (c *Compiler) compileArguments(sc *StaticContext) ([]Expr, error) {
	c.next()
	var args []Expr
	for !c.is(endGrp) {
		var (
			arg Expr
			err error
		)
		if c.is(opQuestion) && isArgumentEnd(c.scan.PeekChar()) {
			arg = c.mark(&Placeholder{}, c.curr.Offset)
			c.nextOp()
		} else {
			arg, err = c.compileExprSingle(sc)
			if err != nil {
				return nil, err
			}
		}
		args = append(args, arg)
		switch {
		case c.is(opSeq):
			c.next()
			if c.is(endGrp) {
				return nil, c.grumble("argument")
			}
		case c.is(endGrp):
		default:
			return nil, c.grumble("',' or ')'")
		}
	}
	c.nextOp()
	return args, nil
}

func isArgumentEnd(r rune) bool {
	return r == comma || r == rparen
}

func (c *Compiler) compileFunctionRef(sc *StaticContext) (Expr, error) {
	offset := c.curr.Offset
	if err := c.requireHigherOrder("named function reference"); err != nil {
		return nil, err
	}
	name, err := c.resolveName(sc, c.curr.Literal, nameFunction)
	if err != nil {
		return nil, err
	}
	c.next()
	if !c.is(Integer) {
		return nil, c.grumble("arity")
	}
	arity, err := strconv.Atoi(c.curr.Literal)
	if err != nil {
		return nil, c.syntaxError("invalid arity %s", c.curr.Literal)
	}
	ref := FunctionRef{
		Name:  name,
		Arity: arity,
	}
	c.mark(&ref, offset)
	if fn, ok := c.link.lookupFunction(name, arity, c.unit); ok {
		ref.Func = fn
	} else {
		c.unit.deferRef(&ref)
	}
	c.nextOp()
	return &ref, nil
}

func (c *Compiler) compileInlineFunction(sc *StaticContext) (Expr, error) {
	c.Enter("inline-function")
	defer c.Leave("inline-function")

	offset := c.curr.Offset
	if err := c.requireHigherOrder("inline function"); err != nil {
		return nil, err
	}
	var (
		fn  InlineFunction
		err error
	)
	if c.is(annotation) {
		if fn.Annotations, err = c.compileAnnotations(sc); err != nil {
			return nil, err
		}
		if !c.isKeyword(kwFunction) {
			return nil, c.grumble("'function'")
		}
	}
	c.next()
	defer c.bindings.Scope()()
	if fn.Params, err = c.compileParams(sc); err != nil {
		return nil, err
	}
	if c.isKeyword(kwAs) {
		c.next()
		typ, err := c.compileSequenceType(sc)
		if err != nil {
			return nil, err
		}
		fn.Return = &typ
	}
	if !c.is(begCurl) {
		return nil, c.grumble("'{'")
	}
	for _, p := range fn.Params {
		c.bindings.Declare(p)
	}
	if fn.Body, err = c.compileCurlyBody(sc); err != nil {
		return nil, err
	}
	c.nextOp()
	return c.mark(&fn, offset), nil
}

// compileParams parses a parameter list; the current token is the opening
// parenthesis. Parameters are not declared.
func (c *Compiler) compileParams(sc *StaticContext) ([]*Binding, error) {
	if !c.is(begGrp) {
		return nil, c.grumble("'('")
	}
	c.next()
	var list []*Binding
	for !c.is(endGrp) {
		if !c.is(variable) {
			return nil, c.grumble("parameter")
		}
		offset := c.curr.Offset
		name, err := c.resolveName(sc, c.curr.Literal, nameVariable)
		if err != nil {
			return nil, err
		}
		for _, p := range list {
			if p.Name.Equal(name) {
				return nil, c.errorf(CodeDuplicateParam, KindDeclaration, "duplicate parameter $%s", name)
			}
		}
		bind := newBinding(name, BindParameter, c.locate(offset))
		c.nextOp()
		if c.isKeyword(kwAs) {
			c.next()
			typ, err := c.compileSequenceType(sc)
			if err != nil {
				return nil, err
			}
			bind.Type = &typ
		}
		list = append(list, bind)
		switch {
		case c.is(opSeq):
			c.next()
		case c.is(endGrp):
		default:
			return nil, c.grumble("',' or ')'")
		}
	}
	c.nextOp()
	return list, nil
}

// compileCurlyBody parses an enclosed expression that may be empty. The
// current token is the opening curly bracket and the closing one is left
// as the current token.
func (c *Compiler) compileCurlyBody(sc *StaticContext) (Expr, error) {
	offset := c.curr.Offset
	c.next()
	if c.is(endCurl) {
		return c.mark(&Sequence{}, offset), nil
	}
	expr, err := c.compileExpr(sc)
	if err != nil {
		return nil, err
	}
	if !c.is(endCurl) {
		return nil, c.grumble("'}'")
	}
	return expr, nil
}

func (c *Compiler) compileMap(sc *StaticContext) (Expr, error) {
	c.Enter("map")
	defer c.Leave("map")

	offset := c.curr.Offset
	c.next()
	if !c.is(begCurl) {
		return nil, c.grumble("'{'")
	}
	c.next()
	var m MapConstructor
	for !c.is(endCurl) {
		key, err := c.compileExprSingle(sc)
		if err != nil {
			return nil, err
		}
		if !c.is(opColon) {
			return nil, c.grumble("':'")
		}
		c.next()
		val, err := c.compileExprSingle(sc)
		if err != nil {
			return nil, err
		}
		m.Keys = append(m.Keys, key)
		m.Values = append(m.Values, val)
		switch {
		case c.is(opSeq):
			c.next()
		case c.is(endCurl):
		default:
			return nil, c.grumble("',' or '}'")
		}
	}
	c.nextOp()
	return c.mark(&m, offset), nil
}

func (c *Compiler) compileCurlyArray(sc *StaticContext) (Expr, error) {
	offset := c.curr.Offset
	c.next()
	if !c.is(begCurl) {
		return nil, c.grumble("'{'")
	}
	arr := ArrayConstructor{
		Curly: true,
	}
	c.next()
	if !c.is(endCurl) {
		expr, err := c.compileExpr(sc)
		if err != nil {
			return nil, err
		}
		if !c.is(endCurl) {
			return nil, c.grumble("'}'")
		}
		arr.Members = append(arr.Members, expr)
	}
	c.nextOp()
	return c.mark(&arr, offset), nil
}

func (c *Compiler) compileSquareArray(sc *StaticContext) (Expr, error) {
	offset := c.curr.Offset
	c.next()
	var arr ArrayConstructor
	for !c.is(endPred) {
		expr, err := c.compileExprSingle(sc)
		if err != nil {
			return nil, err
		}
		arr.Members = append(arr.Members, expr)
		switch {
		case c.is(opSeq):
			c.next()
		case c.is(endPred):
		default:
			return nil, c.grumble("',' or ']'")
		}
	}
	c.nextOp()
	return c.mark(&arr, offset), nil
}

func (c *Compiler) compileUnaryLookup(sc *StaticContext) (Expr, error) {
	return c.compileLookup(sc, nil)
}

func (c *Compiler) compileLookup(sc *StaticContext, expr Expr) (Expr, error) {
	offset := c.curr.Offset
	c.nextName()
	lookup := Lookup{
		Expr: expr,
	}
	switch c.curr.Type {
	case Name:
		if c.curr.Literal != "*" {
			if !c.scan.checker.IsNCName(c.curr.Literal) {
				return nil, c.grumble("lookup key")
			}
			lookup.Key = c.mark(&Literal{Kind: TypeString, Value: c.curr.Literal}, c.curr.Offset)
		}
	case Integer:
		lookup.Key = c.mark(&Literal{Kind: TypeInteger, Value: c.curr.Literal}, c.curr.Offset)
	case begGrp:
		key, err := c.compileParenthesized(sc)
		if err != nil {
			return nil, err
		}
		lookup.Key = key
		return c.mark(&lookup, offset), nil
	default:
		return nil, c.grumble("lookup key")
	}
	c.nextOp()
	return c.mark(&lookup, offset), nil
}

func (c *Compiler) compileIf(sc *StaticContext) (Expr, error) {
	c.Enter("if")
	defer c.Leave("if")

	offset := c.curr.Offset
	c.next()
	if !c.is(begGrp) {
		return nil, c.grumble("'('")
	}
	var (
		cdt If
		err error
	)
	if cdt.Cond, err = c.compileParenthesized(sc); err != nil {
		return nil, err
	}
	if err := c.expectKeyword(kwThen); err != nil {
		return nil, err
	}
	c.next()
	if cdt.Then, err = c.compileExprSingle(sc); err != nil {
		return nil, err
	}
	if err := c.expectKeyword(kwElse); err != nil {
		return nil, err
	}
	c.next()
	if cdt.Else, err = c.compileExprSingle(sc); err != nil {
		return nil, err
	}
	return c.mark(&cdt, offset), nil
}

func (c *Compiler) compileQuantified(sc *StaticContext) (Expr, error) {
	c.Enter("quantified")
	defer c.Leave("quantified")
	defer c.bindings.Scope()()

	q := Quantified{
		Every: c.curr.Literal == kwEvery,
	}
	offset := c.curr.Offset
	c.next()
	for {
		bind, err := c.compileRangeVariable(sc, BindVariable)
		if err != nil {
			return nil, err
		}
		if err := c.expectKeyword(kwIn); err != nil {
			return nil, err
		}
		c.next()
		in, err := c.compileExprSingle(sc)
		if err != nil {
			return nil, err
		}
		c.bindings.Declare(bind)
		q.Bindings = append(q.Bindings, QuantifiedBinding{Var: bind, In: in})
		if !c.is(opSeq) {
			break
		}
		c.next()
	}
	if err := c.expectKeyword(kwSatisfies); err != nil {
		return nil, err
	}
	c.next()
	test, err := c.compileExprSingle(sc)
	if err != nil {
		return nil, err
	}
	q.Satisfies = test
	return c.mark(&q, offset), nil
}

// compileRangeVariable parses "$name (as type)?" without declaring the
// variable.
func (c *Compiler) compileRangeVariable(sc *StaticContext, kind BindingKind) (*Binding, error) {
	if !c.is(variable) {
		return nil, c.grumble("variable")
	}
	offset := c.curr.Offset
	name, err := c.resolveName(sc, c.curr.Literal, nameVariable)
	if err != nil {
		return nil, err
	}
	bind := newBinding(name, kind, c.locate(offset))
	c.nextOp()
	if c.isKeyword(kwAs) {
		if err := c.requireXQuery("typed range variable"); err != nil {
			return nil, err
		}
		c.next()
		typ, err := c.compileSequenceType(sc)
		if err != nil {
			return nil, err
		}
		bind.Type = &typ
	}
	return bind, nil
}

func (c *Compiler) compileSwitch(sc *StaticContext) (Expr, error) {
	c.Enter("switch")
	defer c.Leave("switch")

	offset := c.curr.Offset
	if err := c.requireXQuery("switch expression"); err != nil {
		return nil, err
	}
	c.next()
	if !c.is(begGrp) {
		return nil, c.grumble("'('")
	}
	var (
		sw  Switch
		err error
	)
	if sw.Operand, err = c.compileParenthesized(sc); err != nil {
		return nil, err
	}
	for c.isKeyword(kwCase) {
		var cs SwitchCase
		for c.isKeyword(kwCase) {
			c.next()
			val, err := c.compileExprSingle(sc)
			if err != nil {
				return nil, err
			}
			cs.Values = append(cs.Values, val)
		}
		if err := c.expectKeyword(kwReturn); err != nil {
			return nil, err
		}
		c.next()
		if cs.Return, err = c.compileExprSingle(sc); err != nil {
			return nil, err
		}
		sw.Cases = append(sw.Cases, cs)
	}
	if len(sw.Cases) == 0 {
		return nil, c.grumble("'case'")
	}
	if err := c.expectKeyword(kwDefault); err != nil {
		return nil, err
	}
	c.nextOp()
	if err := c.expectKeyword(kwReturn); err != nil {
		return nil, err
	}
	c.next()
	if sw.Default, err = c.compileExprSingle(sc); err != nil {
		return nil, err
	}
	return c.mark(&sw, offset), nil
}

func (c *Compiler) compileTypeswitch(sc *StaticContext) (Expr, error) {
	c.Enter("typeswitch")
	defer c.Leave("typeswitch")

	offset := c.curr.Offset
	if err := c.requireXQuery("typeswitch expression"); err != nil {
		return nil, err
	}
	c.next()
	if !c.is(begGrp) {
		return nil, c.grumble("'('")
	}
	var (
		ts  Typeswitch
		err error
	)
	if ts.Operand, err = c.compileParenthesized(sc); err != nil {
		return nil, err
	}
	for c.isKeyword(kwCase) {
		c.next()
		cs, err := c.compileTypeCase(sc)
		if err != nil {
			return nil, err
		}
		ts.Cases = append(ts.Cases, cs)
	}
	if len(ts.Cases) == 0 {
		return nil, c.grumble("'case'")
	}
	if err := c.expectKeyword(kwDefault); err != nil {
		return nil, err
	}
	c.nextOp()
	defer c.bindings.Scope()()
	if c.is(variable) {
		name, err := c.resolveName(sc, c.curr.Literal, nameVariable)
		if err != nil {
			return nil, err
		}
		ts.DefaultVar = newBinding(name, BindVariable, c.locate(c.curr.Offset))
		c.nextOp()
	}
	if err := c.expectKeyword(kwReturn); err != nil {
		return nil, err
	}
	if ts.DefaultVar != nil {
		c.bindings.Declare(ts.DefaultVar)
	}
	c.next()
	if ts.Default, err = c.compileExprSingle(sc); err != nil {
		return nil, err
	}
	return c.mark(&ts, offset), nil
}

func (c *Compiler) compileTypeCase(sc *StaticContext) (TypeCase, error) {
	defer c.bindings.Scope()()

	var cs TypeCase
	if c.is(variable) {
		name, err := c.resolveName(sc, c.curr.Literal, nameVariable)
		if err != nil {
			return cs, err
		}
		cs.Var = newBinding(name, BindVariable, c.locate(c.curr.Offset))
		c.nextOp()
		if err := c.expectKeyword(kwAs); err != nil {
			return cs, err
		}
		c.next()
	}
	for {
		typ, err := c.compileSequenceType(sc)
		if err != nil {
			return cs, err
		}
		cs.Types = append(cs.Types, typ)
		if !c.is(opUnion) {
			break
		}
		c.next()
	}
	if err := c.expectKeyword(kwReturn); err != nil {
		return cs, err
	}
	if cs.Var != nil {
		cs.Var.Type = &cs.Types[0]
		c.bindings.Declare(cs.Var)
	}
	c.next()
	ret, err := c.compileExprSingle(sc)
	if err != nil {
		return cs, err
	}
	cs.Return = ret
	return cs, nil
}

var catchVariables = []string{
	"code",
	"description",
	"value",
	"module",
	"line-number",
	"column-number",
	"additional",
}

func (c *Compiler) compileTry(sc *StaticContext) (Expr, error) {
	c.Enter("try")
	defer c.Leave("try")

	offset := c.curr.Offset
	if err := c.requireXQuery("try/catch expression"); err != nil {
		return nil, err
	}
	c.next()
	if !c.is(begCurl) {
		return nil, c.grumble("'{'")
	}
	var (
		try TryCatch
		err error
	)
	if try.Try, err = c.compileCurlyBody(sc); err != nil {
		return nil, err
	}
	c.nextOp()
	for c.isKeyword(kwCatch) {
		cc, err := c.compileCatch(sc)
		if err != nil {
			return nil, err
		}
		try.Catches = append(try.Catches, cc)
	}
	if len(try.Catches) == 0 {
		return nil, c.grumble("'catch'")
	}
	return c.mark(&try, offset), nil
}

func (c *Compiler) compileCatch(sc *StaticContext) (CatchClause, error) {
	defer c.bindings.Scope()()

	var cc CatchClause
	c.next()
	for {
		if !c.is(Name) {
			return cc, c.grumble("error name test")
		}
		test, err := c.compileNameTest(sc, nameOther)
		if err != nil {
			return cc, err
		}
		cc.Tests = append(cc.Tests, test)
		c.nextOp()
		if !c.is(opUnion) {
			break
		}
		c.next()
	}
	if !c.is(begCurl) {
		return cc, c.grumble("'{'")
	}
	loc := c.locate(c.curr.Offset)
	for _, n := range catchVariables {
		bind := newBinding(xml.ExpandedName(n, "err", xml.NamespaceErr), BindCatch, loc)
		cc.Vars = append(cc.Vars, bind)
		c.bindings.Declare(bind)
	}
	body, err := c.compileCurlyBody(sc)
	if err != nil {
		return cc, err
	}
	cc.Body = body
	c.nextOp()
	return cc, nil
}

func (c *Compiler) compileValidate(sc *StaticContext) (Expr, error) {
	c.Enter("validate")
	defer c.Leave("validate")

	offset := c.curr.Offset
	if err := c.requireXQuery("validate expression"); err != nil {
		return nil, err
	}
	if !sc.Features.Has(FeatureSchemaAware) {
		return nil, c.errorf(CodeValidate, KindFeature, "validate expression requires schema awareness")
	}
	v := Validate{
		Mode: "strict",
	}
	c.nextName()
	if c.is(Name) {
		switch c.curr.Literal {
		case "lax", "strict":
			v.Mode = c.curr.Literal
			c.nextName()
		case "type":
			v.Mode = c.curr.Literal
			c.nextName()
			name, err := c.resolveName(sc, c.curr.Literal, nameType)
			if err != nil {
				return nil, err
			}
			v.Type = name
			c.nextName()
		default:
			return nil, c.grumble("validation mode")
		}
	}
	if !c.is(begCurl) {
		return nil, c.grumble("'{'")
	}
	body, err := c.compileCurlyBody(sc)
	if err != nil {
		return nil, err
	}
	v.Expr = body
	c.nextOp()
	return c.mark(&v, offset), nil
}

func (c *Compiler) compileExtension(sc *StaticContext) (Expr, error) {
	c.Enter("extension")
	defer c.Leave("extension")

	offset := c.curr.Offset
	var ext Extension
	for c.is(pragma) {
		lexical, content := splitPragma(c.curr.Literal)
		name, err := c.resolveName(sc, lexical, nameOther)
		if err != nil {
			return nil, err
		}
		if name.Uri == "" {
			return nil, c.syntaxError("pragma name must be in a namespace")
		}
		ext.Pragmas = append(ext.Pragmas, Pragma{Name: name, Content: content})
		c.next()
	}
	if !c.is(begCurl) {
		return nil, c.grumble("'{'")
	}
	body, err := c.compileCurlyBody(sc)
	if err != nil {
		return nil, err
	}
	ext.Expr = body
	c.nextOp()
	return c.mark(&ext, offset), nil
}

func splitPragma(str string) (string, string) {
	for i, r := range str {
		if isBlank(r) {
			return str[:i], trimBlank(str[i:])
		}
	}
	return str, ""
}

func trimBlank(str string) string {
	for len(str) > 0 && isBlank(rune(str[0])) {
		str = str[1:]
	}
	for len(str) > 0 && isBlank(rune(str[len(str)-1])) {
		str = str[:len(str)-1]
	}
	return str
}

func (c *Compiler) compileOrdered(sc *StaticContext) (Expr, error) {
	offset := c.curr.Offset
	if err := c.requireXQuery(c.curr.Literal + " expression"); err != nil {
		return nil, err
	}
	ord := Ordered{
		Ordered: c.curr.Literal == kwOrdered,
	}
	c.next()
	body, err := c.compileCurlyBody(sc)
	if err != nil {
		return nil, err
	}
	ord.Expr = body
	c.nextOp()
	return c.mark(&ord, offset), nil
}

func (c *Compiler) compileAnnotations(sc *StaticContext) ([]Annotation, error) {
	var list []Annotation
	for c.is(annotation) {
		c.nextName()
		if !c.is(Name) {
			return nil, c.grumble("annotation name")
		}
		name, err := c.resolveName(sc, c.curr.Literal, nameOther)
		if err != nil {
			return nil, err
		}
		if name.Space == "" && name.Uri == "" {
			name.Uri = xml.NamespaceXQuery
		}
		a := Annotation{
			Name: name,
		}
		c.nextOp()
		if c.is(begGrp) {
			c.next()
			for !c.is(endGrp) {
				switch c.curr.Type {
				case String, Integer, Decimal, Double:
					a.Values = append(a.Values, c.curr.Literal)
				default:
					return nil, c.grumble("annotation value")
				}
				c.nextOp()
				if c.is(opSeq) {
					c.next()
				}
			}
			c.nextOp()
		}
		list = append(list, a)
	}
	return list, nil
}

// resolveName expands a lexical QName with the namespaces in scope. The
// namespace of an unprefixed name depends on what the name is used for.
func (c *Compiler) resolveName(sc *StaticContext, lexical string, kind nameKind) (xml.QName, error) {
	qn, err := xml.ParseName(lexical)
	if err != nil {
		return qn, c.syntaxError("invalid name %s", lexical)
	}
	if strings.HasPrefix(lexical, "Q{") {
		return qn, nil
	}
	if qn.Space == "" {
		switch kind {
		case nameElement, nameType:
			qn.Uri = sc.DefaultElementNamespace()
		case nameFunction:
			qn.Uri = sc.DefaultFunctionNS
		default:
		}
		return qn, nil
	}
	uri, ok := sc.ResolvePrefix(qn.Space)
	if !ok {
		return qn, c.errorf(CodeUnboundPrefix, KindBinding, "prefix %s is not bound to a namespace", qn.Space)
	}
	qn.Uri = uri
	return qn, nil
}

func (c *Compiler) requireXQuery(what string) error {
	if c.lang == LangXQuery {
		return nil
	}
	return c.syntaxError("%s is not available in XPath", what)
}

func (c *Compiler) requireHigherOrder(what string) error {
	if c.unit.Static.Features.Has(FeatureHigherOrder) {
		return nil
	}
	return c.errorf(CodeHigherOrder, KindFeature, "%s requires higher-order function support", what)
}

func (c *Compiler) locate(offset int) *Location {
	pos := c.scan.Position(offset)
	return &Location{
		Module: c.module,
		Line:   pos.Line,
		Column: pos.Column,
		Parent: c.parent,
	}
}

func (c *Compiler) mark(expr Expr, offset int) Expr {
	expr.setLocation(c.locate(offset))
	return expr
}

func (c *Compiler) at(expr Expr, loc *Location) Expr {
	expr.setLocation(loc)
	return expr
}

// grumble builds the error for the current token when something else
// was expected. Lexical errors carried by invalid tokens take precedence.
func (c *Compiler) grumble(want string) error {
	loc := c.locate(c.curr.Offset)
	switch c.curr.Type {
	case Invalid:
		return staticError(CodeSyntax, KindLexical, loc, "%s", c.curr.Literal)
	case invalidRef:
		return staticError(CodeCharRef, KindLexical, loc, "%s", c.curr.Literal)
	default:
		return staticError(CodeSyntax, KindSyntax, loc, "expected %s, found %s", want, c.curr.Text())
	}
}

func (c *Compiler) syntaxError(format string, args ...any) error {
	return c.errorf(CodeSyntax, KindSyntax, format, args...)
}

func (c *Compiler) errorf(code string, kind ErrorKind, format string, args ...any) error {
	return staticError(code, kind, c.locate(c.curr.Offset), format, args...)
}

func (c *Compiler) expectKeyword(word string) error {
	if !c.isKeyword(word) {
		return c.grumble("'" + word + "'")
	}
	return nil
}

func (c *Compiler) isKeyword(word string) bool {
	return (c.is(Name) || c.is(keyword)) && c.curr.Literal == word
}

func (c *Compiler) power() int {
	return powers[c.curr.Type]
}

func (c *Compiler) getCurrentLiteral() string {
	return c.curr.Literal
}

func (c *Compiler) is(kind rune) bool {
	return c.curr.Type == kind
}

func (c *Compiler) done() bool {
	return c.is(EOF)
}

func (c *Compiler) next() {
	c.curr = c.scan.Next(LexDefault)
}

func (c *Compiler) nextOp() {
	c.curr = c.scan.Next(LexOperator)
}

func (c *Compiler) nextName() {
	c.curr = c.scan.Next(LexName)
}
