package xpath

func (c *Compiler) compileFLWOR(sc *StaticContext) (Expr, error) {
	c.Enter("flwor")
	defer c.Leave("flwor")
	defer c.bindings.Scope()()

	var (
		offset = c.curr.Offset
		flwor  FLWOR
	)
	for {
		var (
			list []Clause
			err  error
		)
		switch {
		case c.isKeyword(kwFor):
			list, err = c.compileFor(sc)
		case c.isKeyword(kwLet):
			list, err = c.compileLet(sc)
		case c.isKeyword(kwWhere):
			list, err = c.compileWhere(sc)
		case c.isKeyword(kwOrder) || c.isKeyword(kwStable):
			list, err = c.compileOrderBy(sc)
		case c.isKeyword(kwGroup):
			list, err = c.compileGroupBy(sc)
		case c.isKeyword(kwCount):
			list, err = c.compileCount(sc)
		case c.isKeyword(kwReturn):
			c.next()
			ret, err := c.compileExprSingle(sc)
			if err != nil {
				return nil, err
			}
			flwor.Return = ret
			return c.mark(&flwor, offset), nil
		default:
			return nil, c.grumble("'return'")
		}
		if err != nil {
			return nil, err
		}
		flwor.Clauses = append(flwor.Clauses, list...)
		if c.lang == LangXPath && !c.isKeyword(kwReturn) {
			return nil, c.grumble("'return'")
		}
	}
}

func (c *Compiler) compileFor(sc *StaticContext) ([]Clause, error) {
	c.Enter("for")
	defer c.Leave("for")

	switch word := c.scan.PeekWord(); word {
	case kwTumbling, kwSliding:
		return nil, c.syntaxError("%s window clause is not supported", word)
	}
	var list []Clause
	c.next()
	for {
		offset := c.curr.Offset
		bind, err := c.compileRangeVariable(sc, BindVariable)
		if err != nil {
			return nil, err
		}
		clause := ForClause{
			Var: bind,
		}
		if c.isKeyword(kwAllowing) {
			if err := c.requireXQuery("allowing empty"); err != nil {
				return nil, err
			}
			c.nextName()
			if !c.isKeyword(kwEmpty) {
				return nil, c.grumble("'empty'")
			}
			clause.AllowEmpty = true
			c.nextOp()
		}
		if c.isKeyword(kwAt) {
			if err := c.requireXQuery("positional variable"); err != nil {
				return nil, err
			}
			c.next()
			if !c.is(variable) {
				return nil, c.grumble("variable")
			}
			name, err := c.resolveName(sc, c.curr.Literal, nameVariable)
			if err != nil {
				return nil, err
			}
			if name.Equal(bind.Name) {
				return nil, c.errorf(CodeDuplicatePos, KindDeclaration, "positional variable $%s has the name of its range variable", name)
			}
			clause.Pos = newBinding(name, BindPosition, c.locate(c.curr.Offset))
			c.nextOp()
		}
		if err := c.expectKeyword(kwIn); err != nil {
			return nil, err
		}
		c.next()
		if clause.In, err = c.compileExprSingle(sc); err != nil {
			return nil, err
		}
		c.bindings.Declare(clause.Var)
		if clause.Pos != nil {
			c.bindings.Declare(clause.Pos)
		}
		list = append(list, c.markClause(&clause, offset))
		if !c.is(opSeq) {
			break
		}
		c.next()
	}
	return list, nil
}

func (c *Compiler) compileLet(sc *StaticContext) ([]Clause, error) {
	c.Enter("let")
	defer c.Leave("let")

	var list []Clause
	c.next()
	for {
		offset := c.curr.Offset
		bind, err := c.compileRangeVariable(sc, BindVariable)
		if err != nil {
			return nil, err
		}
		if !c.is(opAssign) {
			return nil, c.grumble("':='")
		}
		c.next()
		clause := LetClause{
			Var: bind,
		}
		if clause.Expr, err = c.compileExprSingle(sc); err != nil {
			return nil, err
		}
		c.bindings.Declare(bind)
		list = append(list, c.markClause(&clause, offset))
		if !c.is(opSeq) {
			break
		}
		c.next()
	}
	return list, nil
}

func (c *Compiler) compileWhere(sc *StaticContext) ([]Clause, error) {
	offset := c.curr.Offset
	if err := c.requireXQuery("where clause"); err != nil {
		return nil, err
	}
	c.next()
	cond, err := c.compileExprSingle(sc)
	if err != nil {
		return nil, err
	}
	clause := WhereClause{
		Cond: cond,
	}
	return []Clause{c.markClause(&clause, offset)}, nil
}

func (c *Compiler) compileOrderBy(sc *StaticContext) ([]Clause, error) {
	c.Enter("order-by")
	defer c.Leave("order-by")

	offset := c.curr.Offset
	if err := c.requireXQuery("order by clause"); err != nil {
		return nil, err
	}
	var clause OrderByClause
	if c.isKeyword(kwStable) {
		clause.Stable = true
		c.nextName()
	}
	if err := c.expectKeyword(kwOrder); err != nil {
		return nil, err
	}
	c.nextName()
	if err := c.expectKeyword(kwBy); err != nil {
		return nil, err
	}
	for {
		c.next()
		spec := OrderSpec{
			EmptyLeast: sc.EmptyLeast,
		}
		expr, err := c.compileExprSingle(sc)
		if err != nil {
			return nil, err
		}
		spec.Expr = expr
		switch {
		case c.isKeyword(kwAscending):
			c.nextOp()
		case c.isKeyword(kwDescending):
			spec.Descending = true
			c.nextOp()
		}
		if c.isKeyword(kwEmpty) {
			c.nextName()
			switch {
			case c.isKeyword(kwGreatest):
				spec.EmptyLeast = false
			case c.isKeyword(kwLeast):
				spec.EmptyLeast = true
			default:
				return nil, c.grumble("'greatest' or 'least'")
			}
			c.nextOp()
		}
		if c.isKeyword(kwCollation) {
			if spec.Collation, err = c.compileClauseCollation(sc); err != nil {
				return nil, err
			}
		}
		clause.Specs = append(clause.Specs, spec)
		if !c.is(opSeq) {
			break
		}
	}
	return []Clause{c.markClause(&clause, offset)}, nil
}

func (c *Compiler) compileGroupBy(sc *StaticContext) ([]Clause, error) {
	c.Enter("group-by")
	defer c.Leave("group-by")

	offset := c.curr.Offset
	if err := c.requireXQuery("group by clause"); err != nil {
		return nil, err
	}
	c.nextName()
	if err := c.expectKeyword(kwBy); err != nil {
		return nil, err
	}
	var (
		clause GroupByClause
		groups []*Binding
	)
	for {
		c.next()
		if !c.is(variable) {
			return nil, c.grumble("variable")
		}
		name, err := c.resolveName(sc, c.curr.Literal, nameVariable)
		if err != nil {
			return nil, err
		}
		spec := GroupSpec{
			Var: newBinding(name, BindGroup, c.locate(c.curr.Offset)),
		}
		c.nextOp()
		if c.isKeyword(kwAs) {
			c.next()
			typ, err := c.compileSequenceType(sc)
			if err != nil {
				return nil, err
			}
			spec.Var.Type = &typ
			if !c.is(opAssign) {
				return nil, c.grumble("':='")
			}
		}
		if c.is(opAssign) {
			c.next()
			if spec.Expr, err = c.compileExprSingle(sc); err != nil {
				return nil, err
			}
		} else if _, ok := c.bindings.Find(name); !ok {
			return nil, c.errorf(CodeGroupVar, KindBinding, "grouping variable $%s is not in scope", name)
		}
		if c.isKeyword(kwCollation) {
			if spec.Collation, err = c.compileClauseCollation(sc); err != nil {
				return nil, err
			}
		}
		clause.Specs = append(clause.Specs, spec)
		groups = append(groups, spec.Var)
		if !c.is(opSeq) {
			break
		}
	}
	for _, g := range groups {
		c.bindings.Declare(g)
	}
	return []Clause{c.markClause(&clause, offset)}, nil
}

func (c *Compiler) compileCount(sc *StaticContext) ([]Clause, error) {
	offset := c.curr.Offset
	if err := c.requireXQuery("count clause"); err != nil {
		return nil, err
	}
	c.next()
	if !c.is(variable) {
		return nil, c.grumble("variable")
	}
	name, err := c.resolveName(sc, c.curr.Literal, nameVariable)
	if err != nil {
		return nil, err
	}
	clause := CountClause{
		Var: newBinding(name, BindCount, c.locate(c.curr.Offset)),
	}
	c.nextOp()
	c.bindings.Declare(clause.Var)
	return []Clause{c.markClause(&clause, offset)}, nil
}

// compileClauseCollation reads the collation of an order or group
// specification. The current token is the collation keyword.
func (c *Compiler) compileClauseCollation(sc *StaticContext) (string, error) {
	c.next()
	if !c.is(String) {
		return "", c.grumble("collation URI")
	}
	uri, err := resolveCollation(c.curr.Literal, sc.BaseURI)
	if err != nil {
		return "", c.errorf(CodeUnknownCollation, KindDeclaration, "%s", err)
	}
	c.nextOp()
	return uri, nil
}

func (c *Compiler) markClause(clause Clause, offset int) Clause {
	clause.setLocation(c.locate(offset))
	return clause
}
