package xpath

import (
	"context"
	"errors"
	"net/url"
	"slices"
	"strings"

	"github.com/midbel/xq/xml"
)

const (
	setBoundarySpace  = "boundary-space"
	setCollation      = "default collation"
	setBaseURI        = "base-uri"
	setConstruction   = "construction"
	setOrdering       = "ordering"
	setEmptyOrder     = "default order empty"
	setCopyNamespaces = "copy-namespaces"
	setElementNS      = "default element namespace"
	setFunctionNS     = "default function namespace"
)

var setterCodes = map[string]string{
	setBoundarySpace:  CodeBoundarySpace,
	setCollation:      CodeCollation,
	setBaseURI:        CodeBaseURI,
	setConstruction:   CodeConstruction,
	setOrdering:       CodeOrdering,
	setEmptyOrder:     CodeEmptyOrder,
	setCopyNamespaces: CodeCopyNamespaces,
	setElementNS:      CodeDefaultNamespace,
	setFunctionNS:     CodeDefaultNamespace,
}

var reservedNamespaces = []string{
	xml.NamespaceXML,
	xml.NamespaceXS,
	xml.NamespaceXSI,
	xml.NamespaceFN,
	xml.NamespaceMath,
	xml.NamespaceMap,
	xml.NamespaceArray,
}

var supportedVersions = []string{"1.0", "3.0", "3.1"}

// prolog tracks what has already been declared in the prolog of a unit.
type prolog struct {
	setters  map[string]bool
	prefixes map[string]bool
	entered  bool
	memo     bool

	collation   string
	collationAt *Location
	context     bool
}

func newProlog() *prolog {
	return &prolog{
		setters:  make(map[string]bool),
		prefixes: make(map[string]bool),
	}
}

// compileModule parses a main or a library module: the version and module
// declarations, the prolog and the query body.
func (c *Compiler) compileModule(ctx context.Context) error {
	c.Enter("module")
	defer c.Leave("module")

	var (
		sc = c.unit.Static
		p  = newProlog()
	)
	c.next()
	if c.isKeyword(kwXQuery) {
		switch c.scan.PeekWord() {
		case kwVersion, kwEncoding:
			if err := c.declaration(c.compileVersion); err != nil {
				return err
			}
		}
	}
	if c.isKeyword(kwModule) && c.scan.PeekWord() == kwNamespace {
		err := c.declaration(func() error {
			return c.compileModuleDecl(sc, p)
		})
		if err != nil {
			return err
		}
	}
	for c.atProlog() {
		if err := ctx.Err(); err != nil {
			return err
		}
		err := c.declaration(func() error {
			return c.compilePrologItem(ctx, sc, p)
		})
		if err != nil {
			return err
		}
	}
	if err := c.enterDeclarations(ctx, sc, p); err != nil {
		return err
	}
	return c.compileQueryBody(sc)
}

// declaration runs the parser of one prolog entry and checks its ending
// semicolon. On error, the error is recorded and the parser moves past
// the semicolon ending the entry.
func (c *Compiler) declaration(parse func() error) error {
	start := c.curr.Offset
	err := parse()
	if err == nil {
		if c.is(opSemi) {
			c.next()
			return nil
		}
		err = c.grumble("';'")
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	c.Error("prolog", err)
	c.diag.Report(err)
	return c.resync(start)
}

// resync rescans the failed declaration from its first token and skips up
// to and including the semicolon at curly depth 0. Direct constructors are
// skipped character by character.
func (c *Compiler) resync(start int) error {
	c.scan.Seek(start)
	c.next()
	var depth int
	for {
		operand := endsOperand(c.curr)
		switch {
		case c.done():
			return errAbort
		case c.is(opSemi) && depth == 0:
			c.next()
			return nil
		case c.is(begCurl):
			depth++
		case c.is(endCurl) && depth > 0:
			depth--
		case c.is(tagStart) || c.is(commentStart) || c.is(piStart):
			c.skipMarkup()
			operand = true
		default:
		}
		if operand {
			c.nextOp()
		} else {
			c.next()
		}
	}
}

func (c *Compiler) skipMarkup() {
	switch {
	case c.is(commentStart):
		c.skipUntil("-->")
	case c.is(piStart):
		c.skipUntil("?>")
	default:
		c.skipElement()
	}
}

// skipElement expects the scanner right after the opening '<'. Attribute
// values are skipped as a whole so their content never changes the depth.
func (c *Compiler) skipElement() {
	inTag := true
	for depth := 1; depth > 0; {
		switch {
		case inTag && (c.peekRaw() == quote || c.peekRaw() == apos):
			delim := c.scan.NextChar()
			for {
				r := c.scan.NextChar()
				if r == eof {
					return
				}
				if r == delim {
					break
				}
			}
		case inTag && c.scan.HasPrefix("/>"):
			depth--
			inTag = false
			c.scan.Skip(2)
		case inTag && c.scan.HasPrefix(">"):
			inTag = false
			c.scan.Skip(1)
		case inTag:
			if c.scan.NextChar() == eof {
				return
			}
		case c.scan.HasPrefix("<!--"):
			c.skipUntil("-->")
		case c.scan.HasPrefix("<![CDATA["):
			c.skipUntil("]]>")
		case c.scan.HasPrefix("<?"):
			c.skipUntil("?>")
		case c.scan.HasPrefix("</"):
			depth--
			c.skipUntil(">")
		case c.scan.HasPrefix("<"):
			c.scan.Skip(1)
			if c.scan.checker.IsNameStartChar(c.peekRaw()) {
				depth++
				inTag = true
			}
		default:
			if c.scan.NextChar() == eof {
				return
			}
		}
	}
}

func (c *Compiler) skipUntil(str string) {
	for !c.scan.HasPrefix(str) {
		if c.scan.NextChar() == eof {
			return
		}
	}
	c.scan.Skip(len(str))
}

func (c *Compiler) atProlog() bool {
	switch {
	case c.isKeyword(kwDeclare):
		if c.scan.PeekChar() == percent {
			return true
		}
		switch c.scan.PeekWord() {
		case setBoundarySpace, kwDefault, setBaseURI, setConstruction, setOrdering:
		case setCopyNamespaces, "decimal-format", kwNamespace:
		case kwVariable, kwFunction, kwOption, kwContext:
		default:
			return false
		}
		return true
	case c.isKeyword(kwImport):
		word := c.scan.PeekWord()
		return word == kwModule || word == kwSchema
	default:
		return false
	}
}

func (c *Compiler) compileVersion() error {
	c.nextName()
	if c.isKeyword(kwVersion) {
		c.next()
		if !c.is(String) {
			return c.grumble("version")
		}
		if !slices.Contains(supportedVersions, c.curr.Literal) {
			return c.errorf(CodeVersion, KindDeclaration, "version %s is not supported", c.curr.Literal)
		}
		c.unit.Version = c.curr.Literal
		c.nextName()
	}
	if c.isKeyword(kwEncoding) {
		c.next()
		if !c.is(String) {
			return c.grumble("encoding")
		}
		if !isEncodingName(c.curr.Literal) {
			return c.errorf(CodeEncoding, KindDeclaration, "invalid encoding name %q", c.curr.Literal)
		}
		c.unit.Encoding = c.curr.Literal
		c.nextOp()
	}
	return nil
}

func isEncodingName(str string) bool {
	for i, r := range str {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z':
		case i > 0 && (isDigit(r) || r == dot || r == underscore || r == dash):
		default:
			return false
		}
	}
	return str != ""
}

func (c *Compiler) compileModuleDecl(sc *StaticContext, p *prolog) error {
	c.nextName()
	prefix, uri, err := c.compileNamespaceBinding(sc)
	if err != nil {
		return err
	}
	if uri == "" {
		return c.errorf(CodeEmptyNamespace, KindDeclaration, "module namespace can not be empty")
	}
	if isReservedBinding(prefix, uri) {
		return c.errorf(CodeXMLPrefix, KindDeclaration, "module can not be bound to %s", prefix)
	}
	sc.DeclareNamespace(prefix, uri)
	p.prefixes[prefix] = true

	c.unit.IsLibrary = true
	c.unit.Prefix = prefix
	c.unit.Namespace = uri
	c.link.register(c.unit)
	c.nextOp()
	return nil
}

// compileNamespaceBinding reads "prefix = literal". The current token is
// the namespace keyword.
func (c *Compiler) compileNamespaceBinding(sc *StaticContext) (string, string, error) {
	c.nextName()
	if !c.is(Name) || !sc.Checker.IsNCName(c.curr.Literal) {
		return "", "", c.grumble("prefix")
	}
	prefix := c.curr.Literal
	c.next()
	if !c.is(opEq) {
		return "", "", c.grumble("'='")
	}
	c.next()
	if !c.is(String) {
		return "", "", c.grumble("namespace URI")
	}
	return prefix, strings.TrimSpace(c.curr.Literal), nil
}

func isReservedBinding(prefix, uri string) bool {
	return prefix == "xml" || prefix == "xmlns" || uri == xml.NamespaceXML || uri == xml.NamespaceXMLNS
}

func (c *Compiler) compilePrologItem(ctx context.Context, sc *StaticContext, p *prolog) error {
	if c.isKeyword(kwImport) {
		if p.entered {
			return c.syntaxError("import must appear earlier in the prolog")
		}
		c.nextName()
		if c.isKeyword(kwSchema) {
			return c.compileSchemaImport(sc, p)
		}
		return c.compileModuleImport(sc, p)
	}
	var (
		offset = c.curr.Offset
		annots []Annotation
		err    error
	)
	c.nextName()
	if c.is(annotation) {
		if annots, err = c.compileAnnotations(sc); err != nil {
			return err
		}
		if !c.isKeyword(kwVariable) && !c.isKeyword(kwFunction) {
			return c.grumble("'variable' or 'function'")
		}
	}
	switch word := c.curr.Literal; word {
	case kwVariable, kwFunction, kwOption, kwContext:
		if err := c.enterDeclarations(ctx, sc, p); err != nil {
			return err
		}
		switch word {
		case kwVariable:
			return c.compileVariableDecl(sc, annots, offset)
		case kwFunction:
			return c.compileFunctionDecl(sc, p, annots, offset)
		case kwOption:
			return c.compileOptionDecl(sc, p)
		default:
			return c.compileContextDecl(sc, p, offset)
		}
	}
	if p.entered {
		return c.syntaxError("declare %s must appear earlier in the prolog", c.curr.Literal)
	}
	switch c.curr.Literal {
	case setBoundarySpace:
		return c.compileSetter(p, setBoundarySpace, func(value string) {
			sc.PreserveBoundarySpace = value == "preserve"
		}, "preserve", "strip")
	case setConstruction:
		return c.compileSetter(p, setConstruction, func(value string) {
			sc.PreserveConstruction = value == "preserve"
		}, "preserve", "strip")
	case setOrdering:
		return c.compileSetter(p, setOrdering, func(value string) {
			sc.Ordered = value == kwOrdered
		}, kwOrdered, kwUnordered)
	case setCopyNamespaces:
		return c.compileCopyNamespaces(sc, p)
	case setBaseURI:
		return c.compileBaseURI(sc, p)
	case kwNamespace:
		return c.compileNamespaceDecl(sc, p)
	case "decimal-format":
		return c.compileDecimalFormat(sc, false)
	case kwDefault:
		return c.compileDefault(sc, p)
	default:
		return c.grumble("declaration")
	}
}

// once records a setter and fails when it was already declared.
func (c *Compiler) once(p *prolog, setter string) error {
	if p.setters[setter] {
		return c.errorf(setterCodes[setter], KindDeclaration, "declare %s specified more than once", setter)
	}
	p.setters[setter] = true
	return nil
}

func (c *Compiler) compileSetter(p *prolog, setter string, set func(string), values ...string) error {
	if err := c.once(p, setter); err != nil {
		return err
	}
	c.nextName()
	if !c.is(Name) || !slices.Contains(values, c.curr.Literal) {
		return c.grumble("'" + strings.Join(values, "' or '") + "'")
	}
	set(c.curr.Literal)
	c.nextOp()
	return nil
}

func (c *Compiler) compileCopyNamespaces(sc *StaticContext, p *prolog) error {
	if err := c.once(p, setCopyNamespaces); err != nil {
		return err
	}
	c.nextName()
	switch c.curr.Literal {
	case "preserve", "no-preserve":
		sc.PreserveNamespaces = c.curr.Literal == "preserve"
	default:
		return c.grumble("'preserve' or 'no-preserve'")
	}
	c.next()
	if !c.is(opSeq) {
		return c.grumble("','")
	}
	c.nextName()
	switch c.curr.Literal {
	case "inherit", "no-inherit":
		sc.InheritNamespaces = c.curr.Literal == "inherit"
	default:
		return c.grumble("'inherit' or 'no-inherit'")
	}
	c.nextOp()
	return nil
}

func (c *Compiler) compileBaseURI(sc *StaticContext, p *prolog) error {
	if err := c.once(p, setBaseURI); err != nil {
		return err
	}
	c.next()
	if !c.is(String) {
		return c.grumble("base URI")
	}
	uri, err := url.Parse(c.curr.Literal)
	if err != nil {
		return c.syntaxError("invalid base URI %s", c.curr.Literal)
	}
	if base, err := url.Parse(sc.BaseURI); err == nil && sc.BaseURI != "" {
		uri = base.ResolveReference(uri)
	}
	sc.BaseURI = uri.String()
	c.nextOp()
	return nil
}

func (c *Compiler) compileNamespaceDecl(sc *StaticContext, p *prolog) error {
	prefix, uri, err := c.compileNamespaceBinding(sc)
	if err != nil {
		return err
	}
	if isReservedBinding(prefix, uri) {
		return c.errorf(CodeXMLPrefix, KindDeclaration, "namespace prefix %s can not be declared", prefix)
	}
	if p.prefixes[prefix] {
		return c.errorf(CodeDuplicatePrefix, KindDeclaration, "namespace prefix %s declared more than once", prefix)
	}
	p.prefixes[prefix] = true
	sc.DeclareNamespace(prefix, uri)
	c.nextOp()
	return nil
}

func (c *Compiler) compileDefault(sc *StaticContext, p *prolog) error {
	c.nextName()
	switch c.curr.Literal {
	case kwCollation:
		if err := c.once(p, setCollation); err != nil {
			return err
		}
		c.next()
		if !c.is(String) {
			return c.grumble("collation URI")
		}
		p.collation = c.curr.Literal
		p.collationAt = c.locate(c.curr.Offset)
		c.nextOp()
	case kwElement, kwFunction:
		setter := setElementNS
		if c.curr.Literal == kwFunction {
			setter = setFunctionNS
		}
		if err := c.once(p, setter); err != nil {
			return err
		}
		c.nextName()
		if err := c.expectKeyword(kwNamespace); err != nil {
			return err
		}
		c.next()
		if !c.is(String) {
			return c.grumble("namespace URI")
		}
		uri := strings.TrimSpace(c.curr.Literal)
		if uri == xml.NamespaceXML || uri == xml.NamespaceXMLNS {
			return c.errorf(CodeXMLPrefix, KindDeclaration, "%s can not be the default namespace", uri)
		}
		if setter == setElementNS {
			sc.DeclareNamespace("", uri)
		} else {
			sc.DefaultFunctionNS = uri
		}
		c.nextOp()
	case kwOrder:
		if err := c.once(p, setEmptyOrder); err != nil {
			return err
		}
		c.nextName()
		if err := c.expectKeyword(kwEmpty); err != nil {
			return err
		}
		c.nextName()
		switch c.curr.Literal {
		case kwGreatest, kwLeast:
			sc.EmptyLeast = c.curr.Literal == kwLeast
		default:
			return c.grumble("'greatest' or 'least'")
		}
		c.nextOp()
	case "decimal-format":
		return c.compileDecimalFormat(sc, true)
	default:
		return c.grumble("'collation', 'element', 'function', 'order' or 'decimal-format'")
	}
	return nil
}

var singleCharProperties = []string{
	"decimal-separator",
	"grouping-separator",
	"percent",
	"per-mille",
	"zero-digit",
	"digit",
	"pattern-separator",
	"exponent-separator",
}

func (c *Compiler) compileDecimalFormat(sc *StaticContext, isDefault bool) error {
	var name xml.QName
	if !isDefault {
		c.nextName()
		if !c.is(Name) {
			return c.grumble("decimal format name")
		}
		qn, err := c.resolveName(sc, c.curr.Literal, nameOther)
		if err != nil {
			return err
		}
		name = qn
	}
	key := name.ExpandedName()
	if _, ok := sc.DecimalFormats[key]; ok {
		return c.errorf(CodeDecimalFormat, KindDeclaration, "decimal format %s declared more than once", name)
	}
	df := DecimalFormat{
		Name:       name,
		Properties: make(map[string]string),
	}
	for c.nextName(); c.is(Name); c.nextName() {
		prop := c.curr.Literal
		if !slices.Contains(decimalProperties, prop) {
			return c.syntaxError("unknown decimal format property %s", prop)
		}
		if _, ok := df.Properties[prop]; ok {
			return c.errorf(CodeDecimalProperty, KindDeclaration, "property %s specified more than once", prop)
		}
		c.next()
		if !c.is(opEq) {
			return c.grumble("'='")
		}
		c.next()
		if !c.is(String) {
			return c.grumble("property value")
		}
		if slices.Contains(singleCharProperties, prop) && len([]rune(c.curr.Literal)) != 1 {
			return c.errorf(CodeDecimalValue, KindDeclaration, "property %s must be a single character", prop)
		}
		df.Properties[prop] = c.curr.Literal
	}
	sc.DecimalFormats[key] = &df
	return nil
}

func (c *Compiler) compileSchemaImport(sc *StaticContext, p *prolog) error {
	offset := c.curr.Offset
	if !sc.Features.Has(FeatureSchemaAware) {
		return c.errorf(CodeSchemaImport, KindFeature, "schema import requires schema awareness")
	}
	imp := SchemaImport{
		Location: c.locate(offset),
	}
	c.nextName()
	switch {
	case c.isKeyword(kwNamespace):
		prefix, uri, err := c.compileNamespaceBinding(sc)
		if err != nil {
			return err
		}
		if uri == "" {
			return c.errorf(CodeSchemaPrefix, KindDeclaration, "prefix %s bound to an empty schema namespace", prefix)
		}
		imp.Prefix = prefix
		imp.Namespace = uri
	case c.isKeyword(kwDefault):
		c.nextName()
		if err := c.expectKeyword(kwElement); err != nil {
			return err
		}
		c.nextName()
		if err := c.expectKeyword(kwNamespace); err != nil {
			return err
		}
		if err := c.once(p, setElementNS); err != nil {
			return err
		}
		c.next()
		if !c.is(String) {
			return c.grumble("schema namespace")
		}
		imp.Default = true
		imp.Namespace = strings.TrimSpace(c.curr.Literal)
	case c.is(String):
		imp.Namespace = strings.TrimSpace(c.curr.Literal)
	default:
		return c.grumble("schema namespace")
	}
	hints, err := c.compileLocationHints()
	if err != nil {
		return err
	}
	imp.Hints = hints
	if imp.Prefix != "" {
		if err := c.bindImportPrefix(sc, p, imp.Prefix, imp.Namespace); err != nil {
			return err
		}
	}
	if imp.Default {
		sc.DeclareNamespace("", imp.Namespace)
	}
	c.unit.Schemas = append(c.unit.Schemas, &imp)
	return nil
}

func (c *Compiler) compileModuleImport(sc *StaticContext, p *prolog) error {
	offset := c.curr.Offset
	if err := c.expectKeyword(kwModule); err != nil {
		return err
	}
	imp := ModuleImport{
		Location: c.locate(offset),
	}
	c.nextName()
	switch {
	case c.isKeyword(kwNamespace):
		prefix, uri, err := c.compileNamespaceBinding(sc)
		if err != nil {
			return err
		}
		imp.Prefix = prefix
		imp.Namespace = uri
	case c.is(String):
		imp.Namespace = strings.TrimSpace(c.curr.Literal)
	default:
		return c.grumble("module namespace")
	}
	if imp.Namespace == "" {
		return c.errorf(CodeEmptyNamespace, KindDeclaration, "module namespace can not be empty")
	}
	if c.unit.imports(imp.Namespace) {
		return c.errorf(CodeDuplicateImport, KindDeclaration, "module %s imported more than once", imp.Namespace)
	}
	hints, err := c.compileLocationHints()
	if err != nil {
		return err
	}
	imp.Hints = hints
	if imp.Prefix != "" {
		if err := c.bindImportPrefix(sc, p, imp.Prefix, imp.Namespace); err != nil {
			return err
		}
	}
	c.unit.Imports = append(c.unit.Imports, &imp)
	return nil
}

func (c *Compiler) bindImportPrefix(sc *StaticContext, p *prolog, prefix, uri string) error {
	if isReservedBinding(prefix, uri) {
		return c.errorf(CodeXMLPrefix, KindDeclaration, "namespace prefix %s can not be declared", prefix)
	}
	if p.prefixes[prefix] {
		return c.errorf(CodeDuplicatePrefix, KindDeclaration, "namespace prefix %s declared more than once", prefix)
	}
	p.prefixes[prefix] = true
	sc.DeclareNamespace(prefix, uri)
	return nil
}

// compileLocationHints reads the optional "at" list of an import. The
// current token is the namespace literal.
func (c *Compiler) compileLocationHints() ([]string, error) {
	c.nextName()
	if !c.isKeyword(kwAt) {
		return nil, nil
	}
	var list []string
	for {
		c.next()
		if !c.is(String) {
			return nil, c.grumble("location hint")
		}
		list = append(list, strings.TrimSpace(c.curr.Literal))
		c.nextOp()
		if !c.is(opSeq) {
			break
		}
	}
	return list, nil
}

// enterDeclarations runs once, when the first declaration or the query
// body is reached: the schema imports are sealed, the default collation is
// checked then the imported modules are loaded.
func (c *Compiler) enterDeclarations(ctx context.Context, sc *StaticContext, p *prolog) error {
	if p.entered {
		return nil
	}
	p.entered = true
	c.Enter("enter-declarations")
	defer c.Leave("enter-declarations")

	c.sealSchemas(sc)
	if p.collation != "" {
		uri, err := resolveCollation(p.collation, sc.BaseURI)
		if err != nil {
			c.diag.Report(staticError(CodeCollation, KindDeclaration, p.collationAt, "%s", err))
		} else {
			sc.DefaultCollation = uri
		}
	}
	for _, imp := range c.unit.Imports {
		if err := c.link.load(ctx, imp, c.unit); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			c.diag.Report(err)
		}
	}
	return nil
}

func (c *Compiler) sealSchemas(sc *StaticContext) {
	for _, imp := range c.unit.Schemas {
		if sc.Schemas[imp.Namespace] {
			c.diag.Report(staticError(CodeDuplicateSchema, KindDeclaration, imp.Location, "schema %s imported more than once", imp.Namespace))
			continue
		}
		sc.Schemas[imp.Namespace] = true
	}
}

func (c *Compiler) checkAnnotations(annots []Annotation) (bool, error) {
	var private, public bool
	for _, a := range annots {
		if a.Name.Uri != xml.NamespaceXQuery {
			continue
		}
		switch a.Name.Name {
		case "private":
			if private || public {
				return false, c.errorf(CodeAnnotation, KindDeclaration, "visibility annotation specified more than once")
			}
			private = true
		case "public":
			if private || public {
				return false, c.errorf(CodeAnnotation, KindDeclaration, "visibility annotation specified more than once")
			}
			public = true
		default:
			return false, c.errorf(CodeReservedNamespace, KindDeclaration, "unknown annotation %%%s", a.Name.Name)
		}
	}
	return private, nil
}

// checkDeclaredName checks the namespace of a global variable or function.
func (c *Compiler) checkDeclaredName(name xml.QName, what string) error {
	if c.unit.IsLibrary && name.Uri != c.unit.Namespace {
		return c.errorf(CodeWrongNamespace, KindDeclaration, "%s %s is not in the module namespace %s", what, name, c.unit.Namespace)
	}
	return nil
}

func (c *Compiler) compileVariableDecl(sc *StaticContext, annots []Annotation, offset int) error {
	c.Enter("declare-variable")
	defer c.Leave("declare-variable")

	private, err := c.checkAnnotations(annots)
	if err != nil {
		return err
	}
	c.next()
	if !c.is(variable) {
		return c.grumble("variable")
	}
	name, err := c.resolveName(sc, c.curr.Literal, nameVariable)
	if err != nil {
		return err
	}
	if err := c.checkDeclaredName(name, "variable"); err != nil {
		return err
	}
	if c.link.declaredVariable(name, c.unit) {
		return c.errorf(CodeDuplicateVar, KindDeclaration, "variable $%s declared more than once", name)
	}
	g := GlobalVariable{
		Name:     name,
		Private:  private,
		Unit:     c.unit,
		Location: c.locate(offset),
		Slot:     -1,
	}
	c.nextOp()
	if c.isKeyword(kwAs) {
		c.next()
		typ, err := c.compileSequenceType(sc)
		if err != nil {
			return err
		}
		g.Type = &typ
	}
	if c.isKeyword(kwExternal) {
		g.External = true
		c.nextOp()
	}
	switch {
	case c.is(opAssign):
		c.next()
		if g.Init, err = c.compileExprSingle(sc); err != nil {
			return err
		}
	case !g.External:
		return c.grumble("':=' or 'external'")
	default:
	}
	c.unit.declareVariable(&g)
	return nil
}

func (c *Compiler) compileFunctionDecl(sc *StaticContext, p *prolog, annots []Annotation, offset int) error {
	c.Enter("declare-function")
	defer c.Leave("declare-function")

	private, err := c.checkAnnotations(annots)
	if err != nil {
		return err
	}
	c.nextName()
	if !c.is(Name) {
		return c.grumble("function name")
	}
	if isReserved(c.curr.Literal) {
		return c.syntaxError("%s is a reserved function name", c.curr.Literal)
	}
	name, err := c.resolveName(sc, c.curr.Literal, nameFunction)
	if err != nil {
		return err
	}
	switch {
	case name.Uri == "":
		return c.errorf(CodeNoNamespace, KindDeclaration, "function %s is not in a namespace", name)
	case slices.Contains(reservedNamespaces, name.Uri):
		return c.errorf(CodeReservedNamespace, KindDeclaration, "function %s is declared in a reserved namespace", name)
	}
	if err := c.checkDeclaredName(name, "function"); err != nil {
		return err
	}
	fn := FunctionDecl{
		Name:        name,
		Annotations: annots,
		Private:     private,
		Unit:        c.unit,
		Location:    c.locate(offset),
	}
	c.next()
	if fn.Params, err = c.compileParams(sc); err != nil {
		return err
	}
	if c.isKeyword(kwAs) {
		c.next()
		typ, err := c.compileSequenceType(sc)
		if err != nil {
			return err
		}
		fn.Return = &typ
	}
	if p.memo {
		fn.Memo = true
		p.memo = false
	}
	if c.link.declaredFunction(&fn, c.unit) {
		min, _ := fn.Arity()
		return c.errorf(CodeDuplicateFunc, KindDeclaration, "function %s#%d declared more than once", name, min)
	}
	if err := c.unit.declareFunction(&fn); err != nil {
		return c.errorf(CodeDuplicateFunc, KindDeclaration, "function %s: %s", name, err)
	}
	if c.isKeyword(kwExternal) {
		fn.External = true
		c.nextOp()
		return nil
	}
	if !c.is(begCurl) {
		return c.grumble("'{' or 'external'")
	}
	defer c.bindings.Scope()()
	for _, b := range fn.Params {
		c.bindings.Declare(b)
	}
	if fn.Body, err = c.compileCurlyBody(sc); err != nil {
		return err
	}
	c.nextOp()
	return nil
}

func (c *Compiler) compileOptionDecl(sc *StaticContext, p *prolog) error {
	c.nextName()
	if !c.is(Name) {
		return c.grumble("option name")
	}
	name, err := c.resolveName(sc, c.curr.Literal, nameOther)
	if err != nil {
		return err
	}
	if name.Space == "" && name.Uri == "" {
		name.Uri = xml.NamespaceOption
	}
	c.next()
	if !c.is(String) {
		return c.grumble("option value")
	}
	value := c.curr.Literal
	switch {
	case name.Uri == xml.NamespaceOutput:
		sc.Serialization[name.Name] = value
	case name.Uri == xml.NamespaceXQ && name.Name == "memo-function":
		p.memo = strings.TrimSpace(value) == "true"
	default:
		sc.Options[name.ExpandedName()] = value
	}
	c.nextOp()
	return nil
}

func (c *Compiler) compileContextDecl(sc *StaticContext, p *prolog, offset int) error {
	c.nextName()
	if err := c.expectKeyword(kwItem); err != nil {
		return err
	}
	if p.context {
		return c.errorf(CodeContextItem, KindDeclaration, "context item declared more than once")
	}
	p.context = true
	decl := ContextDecl{
		Location: c.locate(offset),
	}
	c.nextOp()
	if c.isKeyword(kwAs) {
		c.next()
		typ, err := c.compileSequenceType(sc)
		if err != nil {
			return err
		}
		decl.Type = &typ
		sc.ContextItem = &typ
	}
	if c.isKeyword(kwExternal) {
		decl.External = true
		c.nextOp()
	}
	switch {
	case c.is(opAssign):
		c.next()
		init, err := c.compileExprSingle(sc)
		if err != nil {
			return err
		}
		decl.Init = init
	case !decl.External:
		return c.grumble("':=' or 'external'")
	default:
	}
	c.unit.Context = &decl
	return nil
}

func (c *Compiler) compileQueryBody(sc *StaticContext) error {
	if c.unit.IsLibrary {
		if !c.done() {
			c.diag.Report(c.syntaxError("a library module can not have a query body"))
		}
		return nil
	}
	if c.done() {
		c.diag.Report(c.grumble("query body"))
		return nil
	}
	c.Enter("body")
	defer c.Leave("body")

	body, err := c.compileExpr(sc)
	if err == nil && !c.done() {
		err = c.grumble("end of input")
	}
	if err != nil {
		c.Error("body", err)
		c.diag.Report(err)
		return nil
	}
	c.unit.Body = body
	return nil
}
