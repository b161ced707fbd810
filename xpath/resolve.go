package xpath

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strconv"
	"strings"

	"github.com/midbel/distance"
	"github.com/midbel/xq/xml"
)

var ErrNoResolver = errors.New("no module resolver configured")

// linker owns every unit of one compilation. It loads the imported
// modules, binds the references the compilers could not bind and runs the
// passes that need the whole graph.
type linker struct {
	cfg   *config
	diag  *Diagnostics
	units []*Unit
	byURI map[string]*Unit
	byNS  map[string][]*Unit
	hosts map[string]*GlobalVariable
}

func newLinker(cfg *config) *linker {
	return &linker{
		cfg:   cfg,
		diag:  NewDiagnostics(cfg.handler),
		byURI: make(map[string]*Unit),
		byNS:  make(map[string][]*Unit),
		hosts: make(map[string]*GlobalVariable),
	}
}

// declareHosts registers the external variables given by the host. Their
// names are resolved with the static context of the main unit.
func (l *linker) declareHosts(sc *StaticContext) {
	for _, v := range l.cfg.variables {
		name, err := xml.ParseName(v.name)
		if err != nil {
			l.diag.Report(staticError(CodeSyntax, KindSyntax, nil, "invalid variable name %s", v.name))
			continue
		}
		if name.Space != "" && !strings.HasPrefix(v.name, "Q{") {
			uri, ok := sc.ResolvePrefix(name.Space)
			if !ok {
				l.diag.Report(staticError(CodeUnboundPrefix, KindBinding, nil, "prefix %s is not bound to a namespace", name.Space))
				continue
			}
			name.Uri = uri
		}
		g := GlobalVariable{
			Name:     name,
			Type:     v.typ,
			External: true,
			Slot:     -1,
		}
		l.hosts[name.ExpandedName()] = &g
	}
}

func (l *linker) newUnit(uri string) *Unit {
	u := newUnit(uri, newStaticContext(l.cfg))
	l.units = append(l.units, u)
	if uri != "" {
		l.byURI[uri] = u
	}
	return u
}

// register makes a library unit visible to the units importing its
// namespace. It is called as soon as the module declaration is parsed.
func (l *linker) register(u *Unit) {
	if slices.Contains(l.byNS[u.Namespace], u) {
		return
	}
	l.byNS[u.Namespace] = append(l.byNS[u.Namespace], u)
}

func (l *linker) compileUnit(ctx context.Context, u *Unit, src string, opts ...ScanOption) error {
	options := []ScanOption{
		ForLanguage(u.Static.Language),
		WithChecker(u.Static.Checker),
	}
	scan := Scan(src, append(options, opts...)...)
	cp := newCompiler(scan, l, u)
	err := cp.compileModule(ctx)
	if errors.Is(err, errAbort) {
		return nil
	}
	return err
}

// load compiles the library modules of an import. A module already
// loaded under the same URI is shared, which is what lets modules import
// each other.
func (l *linker) load(ctx context.Context, imp *ModuleImport, from *Unit) error {
	l.cfg.tracer.Enter("load " + imp.Namespace)
	defer l.cfg.tracer.Leave("load " + imp.Namespace)

	if l.cfg.resolver == nil {
		return staticError(CodeModuleNotFound, KindDeclaration, imp.Location, "module %s: %s", imp.Namespace, ErrNoResolver)
	}
	list, err := l.cfg.resolver.Resolve(ctx, imp.Namespace, imp.Hints)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return staticError(CodeModuleNotFound, KindDeclaration, imp.Location, "module %s: %s", imp.Namespace, err)
	}
	if len(list) == 0 {
		return staticError(CodeModuleNotFound, KindDeclaration, imp.Location, "module %s not found", imp.Namespace)
	}
	for _, src := range list {
		u, ok := l.byURI[src.URI]
		if !ok {
			u = l.newUnit(src.URI)
			if err := l.compileUnit(ctx, u, src.Text); err != nil {
				return err
			}
		}
		if !u.IsLibrary || u.Namespace != imp.Namespace {
			return staticError(CodeModuleNotFound, KindDeclaration, imp.Location, "%s is not a library module for namespace %s", src.URI, imp.Namespace)
		}
		if !slices.Contains(imp.Units, u) {
			imp.Units = append(imp.Units, u)
		}
	}
	return nil
}

// visible returns the units whose public declarations can be referenced
// from the given unit: itself, the other units of its namespace and the
// imported ones.
func (l *linker) visible(from *Unit) []*Unit {
	list := []*Unit{from}
	if from.IsLibrary {
		for _, u := range l.byNS[from.Namespace] {
			if u != from {
				list = append(list, u)
			}
		}
	}
	for _, imp := range from.Imports {
		for _, u := range imp.Units {
			if !slices.Contains(list, u) {
				list = append(list, u)
			}
		}
	}
	return list
}

func (l *linker) lookupVariable(name xml.QName, from *Unit) (*GlobalVariable, bool) {
	key := name.ExpandedName()
	for _, u := range l.visible(from) {
		g, ok := u.vars[key]
		if ok && (!g.Private || u == from) {
			return g, true
		}
	}
	g, ok := l.hosts[key]
	return g, ok
}

func (l *linker) lookupFunction(name xml.QName, arity int, from *Unit) (Function, bool) {
	if fn, ok := builtins.Lookup(name, arity); ok {
		return fn, true
	}
	for _, u := range l.visible(from) {
		fn, ok := u.funcs.Lookup(name, arity)
		if !ok {
			continue
		}
		if decl, ok := fn.(*FunctionDecl); ok && decl.Private && u != from {
			continue
		}
		return fn, true
	}
	return nil, false
}

// declaredVariable reports a variable with the same name in the unit or in
// another unit of the same module namespace.
func (l *linker) declaredVariable(name xml.QName, from *Unit) bool {
	key := name.ExpandedName()
	if _, ok := from.vars[key]; ok {
		return true
	}
	if !from.IsLibrary {
		return false
	}
	for _, u := range l.byNS[from.Namespace] {
		if _, ok := u.vars[key]; ok {
			return true
		}
	}
	return false
}

func (l *linker) declaredFunction(fn *FunctionDecl, from *Unit) bool {
	if !from.IsLibrary {
		return false
	}
	min, _ := fn.Arity()
	for _, u := range l.byNS[from.Namespace] {
		if u == from {
			continue
		}
		if _, ok := u.funcs.Lookup(fn.Name, min); ok {
			return true
		}
	}
	return false
}

func (l *linker) arities(name xml.QName, from *Unit) []int {
	list := builtins.Arities(name)
	for _, u := range l.visible(from) {
		list = append(list, u.funcs.Arities(name)...)
	}
	slices.Sort(list)
	return slices.Compact(list)
}

// Link binds the deferred references of every unit then runs the passes
// over the whole graph. Each step only runs when the previous ones did not
// report any error.
func (l *linker) Link() error {
	l.cfg.tracer.Enter("link")
	defer l.cfg.tracer.Leave("link")

	l.bindVariables()
	l.bindFunctions()
	if l.diag.Count() > 0 {
		return l.diag.Err()
	}
	order := l.dependencies()
	l.checkCircularities(order)
	l.checkModuleCycles()
	if l.diag.Count() > 0 {
		return l.diag.Err()
	}
	l.typecheck(order)
	if l.diag.Count() > 0 {
		return l.diag.Err()
	}
	if !l.cfg.keepTree {
		l.optimize()
	}
	l.allocate()
	return nil
}

func (l *linker) bindVariables() {
	for _, u := range l.units {
		for _, d := range u.deferred {
			if d.kind != refVariable {
				continue
			}
			ref := d.site.(*VarRef)
			if g, ok := l.lookupVariable(d.name, d.unit); ok {
				ref.Global = g
				continue
			}
			msg := fmt.Sprintf("variable $%s is not defined", d.name)
			if l.isPrivateVariable(d.name) {
				msg = fmt.Sprintf("variable $%s is private to its module", d.name)
			}
			err := staticError(CodeUndefinedVar, KindBinding, ref.Location(), "%s", msg)
			l.cfg.tracer.Error("bind-variables", err)
			l.diag.Report(err)
		}
	}
}

func (l *linker) isPrivateVariable(name xml.QName) bool {
	for _, u := range l.units {
		if g, ok := u.vars[name.ExpandedName()]; ok && g.Private {
			return true
		}
	}
	return false
}

func (l *linker) bindFunctions() {
	for _, u := range l.units {
		for _, d := range u.deferred {
			if d.kind != refFunction {
				continue
			}
			fn, ok := l.lookupFunction(d.name, d.arity, d.unit)
			if ok {
				switch site := d.site.(type) {
				case *Call:
					site.Func = fn
				case *FunctionRef:
					site.Func = fn
				}
				continue
			}
			err := staticError(CodeUndefinedFunc, KindBinding, d.site.Location(), "%s", l.undefinedFunction(d))
			l.cfg.tracer.Error("bind-functions", err)
			l.diag.Report(err)
		}
	}
}

func (l *linker) undefinedFunction(d deferred) string {
	msg := fmt.Sprintf("function %s#%d is not defined", d.name, d.arity)
	arities := l.arities(d.name, d.unit)
	if len(arities) == 0 {
		if others := l.similarFunctions(d.name, d.unit); len(others) > 0 {
			msg = fmt.Sprintf("%s (did you mean %s?)", msg, strings.Join(others, ", "))
		}
		return msg
	}
	var list []string
	for _, a := range arities {
		list = append(list, strconv.Itoa(a))
	}
	return fmt.Sprintf("%s (defined with %s argument(s))", msg, strings.Join(list, ", "))
}

// similarFunctions returns the local names of the functions of the same
// namespace close to the name of an undefined function.
func (l *linker) similarFunctions(name xml.QName, from *Unit) []string {
	if name.Uri == "" {
		return nil
	}
	var (
		prefix = fmt.Sprintf("Q{%s}", name.Uri)
		names  = builtins.Names()
		locals []string
	)
	for _, u := range l.visible(from) {
		names = append(names, u.funcs.Names()...)
	}
	for _, n := range names {
		local, ok := strings.CutPrefix(n, prefix)
		if ok && local != name.Name {
			locals = append(locals, local)
		}
	}
	slices.Sort(locals)
	return distance.Levenshtein(name.Name, slices.Compact(locals))
}

// decl is a node of the dependency graph between the global variables and
// the declared functions.
type decl struct {
	variable *GlobalVariable
	function *FunctionDecl
	deps     []*decl
	self     bool

	index   int
	low     int
	onStack bool
}

func (d *decl) body() Expr {
	if d.variable != nil {
		return d.variable.Init
	}
	return d.function.Body
}

func (d *decl) location() *Location {
	if d.variable != nil {
		return d.variable.Location
	}
	return d.function.Location
}

// dependencies returns the strongly connected components of the
// dependency graph, each component coming after the ones it depends on.
func (l *linker) dependencies() [][]*decl {
	var (
		nodes []*decl
		vars  = make(map[*GlobalVariable]*decl)
		funcs = make(map[*FunctionDecl]*decl)
	)
	for _, u := range l.units {
		for _, g := range u.Variables {
			d := decl{variable: g, index: -1}
			vars[g] = &d
			nodes = append(nodes, &d)
		}
		for _, fn := range u.Functions {
			d := decl{function: fn, index: -1}
			funcs[fn] = &d
			nodes = append(nodes, &d)
		}
	}
	for _, n := range nodes {
		Walk(n.body(), func(e Expr) bool {
			var dep *decl
			switch e := e.(type) {
			case *VarRef:
				dep = vars[e.Global]
			case *Call:
				if fn, ok := e.Func.(*FunctionDecl); ok {
					dep = funcs[fn]
				}
			case *FunctionRef:
				if fn, ok := e.Func.(*FunctionDecl); ok {
					dep = funcs[fn]
				}
			}
			if dep != nil && !slices.Contains(n.deps, dep) {
				n.deps = append(n.deps, dep)
				n.self = n.self || dep == n
			}
			return true
		})
	}
	return tarjan(nodes)
}

func tarjan(nodes []*decl) [][]*decl {
	var (
		index int
		stack []*decl
		comps [][]*decl
		visit func(*decl)
	)
	visit = func(n *decl) {
		n.index = index
		n.low = index
		index++
		stack = append(stack, n)
		n.onStack = true
		for _, d := range n.deps {
			if d.index < 0 {
				visit(d)
				n.low = min(n.low, d.low)
			} else if d.onStack {
				n.low = min(n.low, d.index)
			}
		}
		if n.low != n.index {
			return
		}
		var comp []*decl
		for {
			top := stack[len(stack)-1]
			stack = stack[:len(stack)-1]
			top.onStack = false
			comp = append(comp, top)
			if top == n {
				break
			}
		}
		comps = append(comps, comp)
	}
	for _, n := range nodes {
		if n.index < 0 {
			visit(n)
		}
	}
	return comps
}

// checkCircularities reports the global variables whose initializer
// depends on the variable itself, directly or through functions.
func (l *linker) checkCircularities(order [][]*decl) {
	for _, comp := range order {
		if len(comp) == 1 && !comp[0].self {
			continue
		}
		for _, d := range comp {
			if d.variable == nil {
				continue
			}
			err := staticError(CodeCircular, KindDeclaration, d.location(), "initializer of variable $%s depends on itself", d.variable.Name)
			l.diag.Report(err)
			break
		}
	}
}

// checkModuleCycles reports the cycles of module imports going through
// more than one namespace.
func (l *linker) checkModuleCycles() {
	graph := make(map[string][]string)
	where := make(map[string]*Location)
	for _, u := range l.units {
		if !u.IsLibrary {
			continue
		}
		for _, imp := range u.Imports {
			if imp.Namespace == u.Namespace || len(imp.Units) == 0 {
				continue
			}
			if !slices.Contains(graph[u.Namespace], imp.Namespace) {
				graph[u.Namespace] = append(graph[u.Namespace], imp.Namespace)
			}
			if _, ok := where[u.Namespace]; !ok {
				where[u.Namespace] = imp.Location
			}
		}
	}
	var (
		state = make(map[string]int)
		path  []string
		visit func(string) bool
	)
	visit = func(ns string) bool {
		state[ns] = 1
		path = append(path, ns)
		for _, next := range graph[ns] {
			switch state[next] {
			case 0:
				if visit(next) {
					return true
				}
			case 1:
				ix := slices.Index(path, next)
				cycle := append(slices.Clone(path[ix:]), next)
				err := staticError(CodeModuleCycle, KindDeclaration, where[next], "module import cycle: %s", strings.Join(cycle, " -> "))
				l.diag.Report(err)
				return true
			}
		}
		path = path[:len(path)-1]
		state[ns] = 2
		return false
	}
	var keys []string
	for ns := range graph {
		keys = append(keys, ns)
	}
	slices.Sort(keys)
	for _, ns := range keys {
		if state[ns] == 0 && visit(ns) {
			return
		}
	}
}
