package xpath

import (
	"strings"

	"github.com/midbel/xq/xml"
)

const (
	axisChild            = "child"
	axisDescendantOrSelf = "descendant-or-self"
	axisParent           = "parent"
	axisAttribute        = "attribute"
	axisNamespace        = "namespace"
)

func (c *Compiler) compilePath(sc *StaticContext) (Expr, error) {
	c.Enter("path")
	defer c.Leave("path")

	offset := c.curr.Offset
	switch {
	case c.is(currLevel):
		root := c.mark(&Root{}, offset)
		c.next()
		if !c.startsStep() {
			c.retokenize(LexOperator)
			return root, nil
		}
		return c.compileRelativePath(sc, root)
	case c.is(anyLevel):
		root := c.mark(&Root{}, offset)
		left := c.mark(&Path{Left: root, Right: c.descendantStep(offset)}, offset)
		c.next()
		return c.compileRelativePath(sc, left)
	default:
		return c.compileRelativePath(sc, nil)
	}
}

// startsStep reports whether the current token can start a relative path
// after a leading slash.
func (c *Compiler) startsStep() bool {
	switch c.curr.Type {
	case Name, axis, kind, attrNode, currNode, parentNode, variable, function, namedRef:
	case String, Integer, Decimal, Double, begGrp, tagStart, commentStart, piStart:
	case keyword:
	default:
		return false
	}
	return true
}

// retokenize reads again the current token in another mode.
func (c *Compiler) retokenize(mode LexMode) {
	if c.done() {
		return
	}
	c.scan.Seek(c.curr.Offset)
	c.curr = c.scan.Next(mode)
}

func (c *Compiler) descendantStep(offset int) Expr {
	step := Step{
		Axis: axisDescendantOrSelf,
		Test: KindTest{Kind: xml.TypeNode},
	}
	return c.mark(&step, offset)
}

func (c *Compiler) compileRelativePath(sc *StaticContext, left Expr) (Expr, error) {
	for {
		step, err := c.compileStep(sc)
		if err != nil {
			return nil, err
		}
		if left == nil {
			left = step
		} else {
			left = c.at(&Path{Left: left, Right: step}, left.Location())
		}
		switch {
		case c.is(currLevel):
			c.next()
		case c.is(anyLevel):
			offset := c.curr.Offset
			left = c.mark(&Path{Left: left, Right: c.descendantStep(offset)}, offset)
			c.next()
		default:
			return left, nil
		}
	}
}

func (c *Compiler) compileStep(sc *StaticContext) (Expr, error) {
	offset := c.curr.Offset
	switch c.curr.Type {
	case axis:
		if !isAxis(c.curr.Literal) {
			return nil, c.syntaxError("unknown axis %s", c.curr.Literal)
		}
		name := c.curr.Literal
		c.next()
		return c.compileAxisStep(sc, name, offset)
	case attrNode:
		c.next()
		return c.compileAxisStep(sc, axisAttribute, offset)
	case parentNode:
		step := Step{
			Axis: axisParent,
			Test: KindTest{Kind: xml.TypeNode},
		}
		c.nextOp()
		return c.compilePredicates(sc, c.mark(&step, offset))
	case Name:
		return c.compileAxisStep(sc, axisChild, offset)
	case kind:
		axis := axisChild
		switch c.curr.Literal {
		case kwAttribute, "schema-attribute":
			axis = axisAttribute
		case "namespace-node":
			axis = axisNamespace
		}
		return c.compileAxisStep(sc, axis, offset)
	default:
		return c.compilePostfix(sc)
	}
}

func (c *Compiler) compileAxisStep(sc *StaticContext, axis string, offset int) (Expr, error) {
	c.Enter("step")
	defer c.Leave("step")

	step := Step{
		Axis: axis,
	}
	switch c.curr.Type {
	case kind:
		test, err := c.compileKindTest(sc)
		if err != nil {
			return nil, err
		}
		step.Test = test
	case Name, keyword:
		kind := nameElement
		if axis == axisAttribute || axis == axisNamespace {
			kind = nameAttribute
		}
		test, err := c.compileNameTest(sc, kind)
		if err != nil {
			return nil, err
		}
		step.Test = test
		c.nextOp()
	default:
		return nil, c.grumble("node test")
	}
	return c.compilePredicates(sc, c.mark(&step, offset))
}

// compileNameTest builds a name test from the current token. The token is
// not consumed.
func (c *Compiler) compileNameTest(sc *StaticContext, kind nameKind) (NameTest, error) {
	var (
		test NameTest
		str  = c.curr.Literal
	)
	switch {
	case str == "*":
		test.AnyNamespace = true
		test.AnyLocal = true
	case strings.HasPrefix(str, "*:"):
		test.AnyNamespace = true
		test.Name = xml.LocalName(str[2:])
	case strings.HasSuffix(str, ":*"):
		prefix := strings.TrimSuffix(str, ":*")
		uri, ok := sc.ResolvePrefix(prefix)
		if !ok {
			return test, c.errorf(CodeUnboundPrefix, KindBinding, "prefix %s is not bound to a namespace", prefix)
		}
		test.AnyLocal = true
		test.Name = xml.ExpandedName("", prefix, uri)
	default:
		name, err := c.resolveName(sc, str, kind)
		if err != nil {
			return test, err
		}
		test.Name = name
	}
	return test, nil
}

// compilePostfix parses a primary expression followed by any number of
// predicates, argument lists and lookups.
func (c *Compiler) compilePostfix(sc *StaticContext) (Expr, error) {
	expr, err := c.compilePrimary(sc)
	if err != nil {
		return nil, err
	}
	for {
		switch c.curr.Type {
		case begPred:
			filter, ok := expr.(*Filter)
			if !ok {
				filter = &Filter{
					Expr: expr,
				}
				c.at(filter, expr.Location())
			}
			pred, err := c.compilePredicate(sc)
			if err != nil {
				return nil, err
			}
			filter.Predicates = append(filter.Predicates, pred)
			expr = filter
		case begGrp:
			if err := c.requireHigherOrder("dynamic function call"); err != nil {
				return nil, err
			}
			offset := c.curr.Offset
			args, err := c.compileArguments(sc)
			if err != nil {
				return nil, err
			}
			expr = c.mark(&DynamicCall{Func: expr, Args: args}, offset)
		case opQuestion:
			if expr, err = c.compileLookup(sc, expr); err != nil {
				return nil, err
			}
		default:
			return expr, nil
		}
	}
}

func (c *Compiler) compilePredicates(sc *StaticContext, expr Expr) (Expr, error) {
	step := expr.(*Step)
	for c.is(begPred) {
		pred, err := c.compilePredicate(sc)
		if err != nil {
			return nil, err
		}
		step.Predicates = append(step.Predicates, pred)
	}
	return step, nil
}

func (c *Compiler) compilePredicate(sc *StaticContext) (Expr, error) {
	c.Enter("predicate")
	defer c.Leave("predicate")

	c.next()
	expr, err := c.compileExpr(sc)
	if err != nil {
		return nil, err
	}
	if !c.is(endPred) {
		return nil, c.grumble("']'")
	}
	c.nextOp()
	return expr, nil
}
