package xpath

import (
	"context"
	"fmt"
)

// Query is the result of a successful compilation. It is not modified
// once returned.
type Query struct {
	Body   Expr
	Main   *Unit
	Units  []*Unit
	Static *StaticContext
}

// Tree returns a copy of the body that the caller is free to rewrite.
func (q *Query) Tree() Expr {
	return Clone(q.Body)
}

// Compile parses an expression in the language of the options, XPath
// unless told otherwise. A prolog is never accepted.
func Compile(src string, opts ...Option) (*Query, error) {
	cfg := configure(opts)
	return compileExpression(src, 0, EOF, cfg)
}

// CompileQuery parses an XQuery main module.
func CompileQuery(src string, opts ...Option) (*Query, error) {
	return CompileQueryContext(context.Background(), src, opts...)
}

// CompileQueryContext is CompileQuery with a context checked between the
// declarations of the prolog and passed to the module resolver.
func CompileQueryContext(ctx context.Context, src string, opts ...Option) (*Query, error) {
	cfg := configure(opts)
	cfg.lang = LangXQuery
	q, err := compileModule(ctx, src, cfg)
	if err != nil {
		return nil, err
	}
	if q.Main.IsLibrary {
		return nil, fmt.Errorf("%s: library module given where a main module is expected", moduleName(q.Main))
	}
	return q, nil
}

// CompileLibrary parses a library module in isolation. Its own imports
// are loaded with the module resolver of the options.
func CompileLibrary(src string, opts ...Option) (*Query, error) {
	cfg := configure(opts)
	cfg.lang = LangXQuery
	q, err := compileModule(context.Background(), src, cfg)
	if err != nil {
		return nil, err
	}
	if !q.Main.IsLibrary {
		return nil, fmt.Errorf("%s: main module given where a library module is expected", moduleName(q.Main))
	}
	return q, nil
}

// CompileEmbedded parses an expression starting at the given offset of a
// host document and ending with the terminator (one of '}', ']', ')' or
// ';'). It returns the offset of the terminator.
func CompileEmbedded(src string, start int, terminator rune, opts ...Option) (*Query, int, error) {
	kind, err := embeddedTerminator(terminator)
	if err != nil {
		return nil, 0, err
	}
	cfg := configure(opts)
	link := newLinker(cfg)
	unit := link.newUnit(cfg.module)
	scan := Scan(src, StartAt(start), StartLine(cfg.baseLine), ForLanguage(cfg.lang), WithChecker(unit.Static.Checker))
	cp := newCompiler(scan, link, unit)

	expr, end, err := cp.compileEnclosed(unit.Static, kind)
	if err != nil {
		link.diag.Report(err)
		return nil, 0, link.diag.Err()
	}
	unit.Body = expr
	q, err := link.finish(unit)
	return q, end, err
}

func embeddedTerminator(r rune) (rune, error) {
	switch r {
	case '}':
		return endCurl, nil
	case ']':
		return endPred, nil
	case ')':
		return endGrp, nil
	case ';':
		return opSemi, nil
	default:
		return 0, fmt.Errorf("%q can not end an embedded expression", r)
	}
}

func configure(opts []Option) *config {
	cfg := defaultConfig()
	for _, o := range opts {
		o(cfg)
	}
	return cfg
}

func compileExpression(src string, start int, terminator rune, cfg *config) (*Query, error) {
	link := newLinker(cfg)
	unit := link.newUnit(cfg.module)
	scan := Scan(src, StartAt(start), StartLine(cfg.baseLine), ForLanguage(cfg.lang), WithChecker(unit.Static.Checker))
	cp := newCompiler(scan, link, unit)

	cp.next()
	if cp.is(terminator) {
		link.diag.Report(cp.grumble("expression"))
		return nil, link.diag.Err()
	}
	expr, err := cp.compileExpr(unit.Static)
	if err == nil && !cp.is(terminator) {
		err = cp.grumble(describe(terminator))
	}
	if err != nil {
		cp.Error("expr", err)
		link.diag.Report(err)
		return nil, link.diag.Err()
	}
	unit.Body = expr
	return link.finish(unit)
}

func compileModule(ctx context.Context, src string, cfg *config) (*Query, error) {
	link := newLinker(cfg)
	unit := link.newUnit(cfg.module)
	if err := link.compileUnit(ctx, unit, src, StartLine(cfg.baseLine)); err != nil {
		return nil, err
	}
	if err := link.diag.Err(); err != nil {
		return nil, err
	}
	return link.finish(unit)
}

// finish declares the variables of the host then links every unit loaded
// while compiling the main one.
func (l *linker) finish(main *Unit) (*Query, error) {
	l.declareHosts(main.Static)
	if err := l.diag.Err(); err != nil {
		return nil, err
	}
	if err := l.Link(); err != nil {
		return nil, err
	}
	q := Query{
		Body:   main.Body,
		Main:   main,
		Units:  l.units,
		Static: main.Static,
	}
	return &q, nil
}

func moduleName(u *Unit) string {
	if u.URI == "" {
		return "query"
	}
	return u.URI
}

// ParseSequenceType parses a sequence type such as "xs:integer+" or
// "element(item)*". Prefixes are resolved with the predeclared namespaces
// and the ones given by WithNamespace.
func ParseSequenceType(str string, opts ...Option) (SequenceType, error) {
	cfg := configure(opts)
	link := newLinker(cfg)
	unit := link.newUnit("")
	scan := Scan(str, ForLanguage(cfg.lang), WithChecker(unit.Static.Checker))
	cp := newCompiler(scan, link, unit)

	cp.next()
	typ, err := cp.compileSequenceType(unit.Static)
	if err == nil && !cp.done() {
		err = cp.grumble("end of input")
	}
	if err != nil {
		link.diag.Report(err)
		return typ, link.diag.Err()
	}
	return typ, nil
}
