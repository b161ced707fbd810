package xpath

// allocate numbers the global variables of all the units and the local
// variables of every body. Each function, inline function included, has
// its own frame starting at zero.
func (l *linker) allocate() {
	l.cfg.tracer.Enter("allocate")
	defer l.cfg.tracer.Leave("allocate")

	var slot int
	for _, g := range l.hosts {
		g.Slot = slot
		slot++
	}
	for _, u := range l.units {
		for _, g := range u.Variables {
			g.Slot = slot
			slot++
			g.Frame = allocFrame(g.Init, nil)
		}
		for _, fn := range u.Functions {
			fn.Frame = allocFrame(fn.Body, fn.Params)
		}
		u.Frame = allocFrame(u.Body, nil)
		if u.Context != nil {
			u.Frame = max(u.Frame, allocFrame(u.Context.Init, nil))
		}
	}
}

type frame struct {
	size int
}

func (f *frame) assign(b *Binding) {
	if b == nil || b.Slot >= 0 {
		return
	}
	b.Slot = f.size
	f.size++
}

func allocFrame(body Expr, params []*Binding) int {
	var f frame
	for _, p := range params {
		f.assign(p)
	}
	f.walk(body)
	return f.size
}

func (f *frame) walk(body Expr) {
	Walk(body, func(e Expr) bool {
		switch e := e.(type) {
		case *InlineFunction:
			e.Frame = allocFrame(e.Body, e.Params)
			return false
		case *FLWOR:
			for _, c := range e.Clauses {
				f.clause(c)
			}
		case *Quantified:
			for _, b := range e.Bindings {
				f.assign(b.Var)
			}
		case *Typeswitch:
			for _, c := range e.Cases {
				f.assign(c.Var)
			}
			f.assign(e.DefaultVar)
		case *TryCatch:
			for _, c := range e.Catches {
				for _, v := range c.Vars {
					f.assign(v)
				}
			}
		}
		return true
	})
}

func (f *frame) clause(c Clause) {
	switch c := c.(type) {
	case *ForClause:
		f.assign(c.Var)
		f.assign(c.Pos)
	case *LetClause:
		f.assign(c.Var)
	case *GroupByClause:
		for _, s := range c.Specs {
			f.assign(s.Var)
		}
	case *CountClause:
		f.assign(c.Var)
	}
}
