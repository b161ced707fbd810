package xpath

import (
	"github.com/midbel/xq/xml"
)

// compileSequenceType parses a sequence type. On return, the current token
// is the first one following the type, read in operator mode.
func (c *Compiler) compileSequenceType(sc *StaticContext) (SequenceType, error) {
	c.Enter("sequence-type")
	defer c.Leave("sequence-type")

	var st SequenceType
	if c.is(function) && c.curr.Literal == "empty-sequence" {
		c.next()
		if !c.is(begGrp) {
			return st, c.grumble("'('")
		}
		c.next()
		if !c.is(endGrp) {
			return st, c.grumble("')'")
		}
		c.nextOp()
		return emptySequence, nil
	}
	item, err := c.compileItemType(sc)
	if err != nil {
		return st, err
	}
	st.Item = item
	switch c.curr.Type {
	case opQuestion:
		st.Occurrence = OccursOptional
		c.nextOp()
	case opMul:
		st.Occurrence = OccursMany
		c.nextOp()
	case opAdd:
		st.Occurrence = OccursOneOrMore
		c.nextOp()
	default:
		st.Occurrence = OccursOne
	}
	return st, nil
}

func (c *Compiler) compileItemType(sc *StaticContext) (ItemType, error) {
	switch {
	case c.is(kind):
		return c.compileKindTest(sc)
	case c.is(function) && c.curr.Literal == kwItem:
		c.next()
		if !c.is(begGrp) {
			return nil, c.grumble("'('")
		}
		c.next()
		if !c.is(endGrp) {
			return nil, c.grumble("')'")
		}
		c.nextOp()
		return AnyItem{}, nil
	case c.is(function) && c.curr.Literal == kwMap:
		return c.compileMapTest(sc)
	case c.is(function) && c.curr.Literal == kwArray:
		return c.compileArrayTest(sc)
	case c.is(annotation) || c.isKeyword(kwFunction):
		return c.compileFunctionTest(sc)
	case c.is(begGrp):
		c.next()
		item, err := c.compileItemType(sc)
		if err != nil {
			return nil, err
		}
		if !c.is(endGrp) {
			return nil, c.grumble("')'")
		}
		c.nextOp()
		return item, nil
	case c.is(Name):
		name, err := c.compileAtomicName(sc)
		if err != nil {
			return nil, err
		}
		c.nextOp()
		return AtomicType{Name: name}, nil
	default:
		return nil, c.grumble("item type")
	}
}

// compileAtomicName resolves the current token as the name of an atomic
// type. Types of an imported schema namespace are accepted as is.
func (c *Compiler) compileAtomicName(sc *StaticContext) (xml.QName, error) {
	name, err := c.resolveName(sc, c.curr.Literal, nameType)
	if err != nil {
		return name, err
	}
	if isAtomicType(name) || sc.Schemas[name.Uri] {
		return name, nil
	}
	return name, c.errorf(CodeUnknownType, KindType, "unknown type %s", name)
}

func (c *Compiler) compileMapTest(sc *StaticContext) (ItemType, error) {
	c.next()
	if !c.is(begGrp) {
		return nil, c.grumble("'('")
	}
	c.next()
	var mt MapTest
	if c.is(Name) && c.curr.Literal == "*" {
		mt.Any = true
		c.nextOp()
	} else {
		if !c.is(Name) {
			return nil, c.grumble("atomic type")
		}
		name, err := c.compileAtomicName(sc)
		if err != nil {
			return nil, err
		}
		mt.Key = AtomicType{Name: name}
		c.nextOp()
		if !c.is(opSeq) {
			return nil, c.grumble("','")
		}
		c.next()
		if mt.Value, err = c.compileSequenceType(sc); err != nil {
			return nil, err
		}
	}
	if !c.is(endGrp) {
		return nil, c.grumble("')'")
	}
	c.nextOp()
	return mt, nil
}

func (c *Compiler) compileArrayTest(sc *StaticContext) (ItemType, error) {
	c.next()
	if !c.is(begGrp) {
		return nil, c.grumble("'('")
	}
	c.next()
	var at ArrayTest
	if c.is(Name) && c.curr.Literal == "*" {
		at.Any = true
		c.nextOp()
	} else {
		member, err := c.compileSequenceType(sc)
		if err != nil {
			return nil, err
		}
		at.Member = member
	}
	if !c.is(endGrp) {
		return nil, c.grumble("')'")
	}
	c.nextOp()
	return at, nil
}

func (c *Compiler) compileFunctionTest(sc *StaticContext) (ItemType, error) {
	var (
		ft  FunctionTest
		err error
	)
	if c.is(annotation) {
		if ft.Annotations, err = c.compileAnnotations(sc); err != nil {
			return nil, err
		}
		if err := c.expectKeyword(kwFunction); err != nil {
			return nil, err
		}
	}
	c.next()
	if !c.is(begGrp) {
		return nil, c.grumble("'('")
	}
	c.next()
	if c.is(Name) && c.curr.Literal == "*" {
		c.nextOp()
		if !c.is(endGrp) {
			return nil, c.grumble("')'")
		}
		c.nextOp()
		ft.Any = true
		return ft, nil
	}
	for !c.is(endGrp) {
		param, err := c.compileSequenceType(sc)
		if err != nil {
			return nil, err
		}
		ft.Params = append(ft.Params, param)
		switch {
		case c.is(opSeq):
			c.next()
		case c.is(endGrp):
		default:
			return nil, c.grumble("',' or ')'")
		}
	}
	c.nextOp()
	if err := c.expectKeyword(kwAs); err != nil {
		return nil, err
	}
	c.next()
	if ft.Return, err = c.compileSequenceType(sc); err != nil {
		return nil, err
	}
	return ft, nil
}

var kindTypes = map[string]xml.NodeType{
	"node":             xml.TypeNode,
	kwText:             xml.TypeText,
	kwComment:          xml.TypeComment,
	kwElement:          xml.TypeElement,
	"schema-element":   xml.TypeElement,
	kwAttribute:        xml.TypeAttribute,
	"schema-attribute": xml.TypeAttribute,
	"document-node":    xml.TypeDocument,
	kwPI:               xml.TypeInstruction,
	"namespace-node":   xml.TypeNamespace,
}

// compileKindTest parses a kind test starting at its name token. The token
// after the closing parenthesis is read in operator mode.
func (c *Compiler) compileKindTest(sc *StaticContext) (KindTest, error) {
	c.Enter("kind-test")
	defer c.Leave("kind-test")

	var (
		word = c.curr.Literal
		kt   = KindTest{
			Kind:   kindTypes[word],
			Schema: word == "schema-element" || word == "schema-attribute",
		}
	)
	c.next()
	if !c.is(begGrp) {
		return kt, c.grumble("'('")
	}
	switch word {
	case kwElement, kwAttribute:
		if err := c.compileNodeName(sc, &kt); err != nil {
			return kt, err
		}
	case "schema-element", "schema-attribute":
		if !sc.Features.Has(FeatureSchemaAware) {
			return kt, c.errorf(CodeUnknownType, KindFeature, "%s test requires schema awareness", word)
		}
		c.nextName()
		if !c.is(Name) {
			return kt, c.grumble("name")
		}
		if err := c.compileNodeName(sc, &kt); err != nil {
			return kt, err
		}
		return kt, nil
	case "document-node":
		c.next()
		if c.is(kind) {
			inner, err := c.compileKindTest(sc)
			if err != nil {
				return kt, err
			}
			if inner.Kind != xml.TypeElement {
				return kt, c.syntaxError("document-node test only accepts an element test")
			}
			kt.Inner = &inner
		}
	case kwPI:
		c.nextName()
		switch c.curr.Type {
		case Name:
			if !sc.Checker.IsNCName(c.curr.Literal) {
				return kt, c.grumble("processing instruction target")
			}
			kt.Target = c.curr.Literal
			c.nextOp()
		case String:
			kt.Target = trimBlank(c.curr.Literal)
			c.nextOp()
		}
	default:
		c.nextOp()
	}
	if !c.is(endGrp) {
		return kt, c.grumble("')'")
	}
	c.nextOp()
	return kt, nil
}

// compileNodeName parses the optional name and type of an element or
// attribute test. For schema tests, the current token is already the name.
func (c *Compiler) compileNodeName(sc *StaticContext, kt *KindTest) error {
	if !kt.Schema {
		c.nextName()
		if c.is(endGrp) {
			return nil
		}
	}
	if !c.is(Name) {
		return c.grumble("name or '*'")
	}
	kind := nameElement
	if kt.Kind == xml.TypeAttribute {
		kind = nameAttribute
	}
	test, err := c.compileNameTest(sc, kind)
	if err != nil {
		return err
	}
	if kt.Schema && (test.AnyLocal || test.AnyNamespace) {
		return c.grumble("name")
	}
	if test.AnyLocal != test.AnyNamespace {
		return c.syntaxError("wildcard %s not allowed in a kind test", test)
	}
	kt.Name = &test
	c.nextOp()
	if kt.Schema {
		if !c.is(endGrp) {
			return c.grumble("')'")
		}
		c.nextOp()
		return nil
	}
	if !c.is(opSeq) {
		return nil
	}
	c.nextName()
	if !c.is(Name) {
		return c.grumble("type name")
	}
	name, err := c.resolveName(sc, c.curr.Literal, nameType)
	if err != nil {
		return err
	}
	kt.TypeName = name
	c.nextOp()
	if c.is(opQuestion) {
		if kt.Kind != xml.TypeElement {
			return c.grumble("')'")
		}
		kt.Nillable = true
		c.nextOp()
	}
	return nil
}
