package xpath

import (
	"errors"
	"strings"
	"unicode/utf8"

	"github.com/midbel/xq/xml"
)

type rawAttribute struct {
	name   string
	offset int
	value  string
	start  int
	delim  rune
}

func (c *Compiler) compileDirectElement(sc *StaticContext) (Expr, error) {
	c.Enter("direct-element")
	defer c.Leave("direct-element")

	elem, err := c.parseElement(sc, c.curr.Offset)
	if err != nil {
		return nil, err
	}
	c.nextOp()
	return elem, nil
}

func (c *Compiler) compileDirectComment(_ *StaticContext) (Expr, error) {
	expr, err := c.parseComment(c.curr.Offset)
	if err != nil {
		return nil, err
	}
	c.nextOp()
	return expr, nil
}

func (c *Compiler) compileDirectPI(_ *StaticContext) (Expr, error) {
	expr, err := c.parseInstruction(c.curr.Offset)
	if err != nil {
		return nil, err
	}
	c.nextOp()
	return expr, nil
}

// parseElement reads a direct element constructor in raw mode. The scanner
// is positioned just after the opening angle bracket.
func (c *Compiler) parseElement(sc *StaticContext, offset int) (Expr, error) {
	lexical := c.readName(sc)
	if lexical == "" || !sc.Checker.IsQName(lexical) {
		return nil, c.errorAt(CodeSyntax, KindSyntax, offset, "invalid element name")
	}
	attrs, empty, err := c.readAttributes(sc)
	if err != nil {
		return nil, err
	}
	sc.PushNamespaces()
	defer sc.PopNamespaces()

	elem := ElementConstructor{
		Direct: true,
	}
	c.mark(&elem, offset)

	var rest []rawAttribute
	for _, a := range attrs {
		prefix, ok := namespaceAttribute(a.name)
		if !ok {
			rest = append(rest, a)
			continue
		}
		uri, err := c.namespaceValue(a)
		if err != nil {
			return nil, err
		}
		for _, ns := range elem.Namespaces {
			if ns.Prefix == prefix {
				return nil, c.errorAt(CodeDuplicateAttr, KindDeclaration, a.offset, "namespace %q declared twice", prefix)
			}
		}
		if err := checkNamespaceBinding(prefix, uri); err != nil {
			return nil, c.errorAt(CodeXMLPrefix, KindDeclaration, a.offset, "%s", err)
		}
		sc.DeclareNamespace(prefix, uri)
		elem.Namespaces = append(elem.Namespaces, NamespaceBinding{Prefix: prefix, URI: uri})
	}
	if elem.Name, err = c.resolveName(sc, lexical, nameElement); err != nil {
		return nil, c.relocate(err, offset)
	}
	seen := make(map[string]struct{})
	for _, a := range rest {
		name, err := c.resolveName(sc, a.name, nameAttribute)
		if err != nil {
			return nil, c.relocate(err, a.offset)
		}
		key := name.ExpandedName()
		if _, ok := seen[key]; ok {
			return nil, c.errorAt(CodeDuplicateAttr, KindDeclaration, a.offset, "attribute %s specified more than once", a.name)
		}
		seen[key] = struct{}{}

		attr := AttributeConstructor{
			Direct: true,
			Name:   name,
		}
		loc := c.locate(a.offset)
		attr.setLocation(loc)
		if attr.Value, err = c.parseAttributeValue(sc, a, loc); err != nil {
			return nil, err
		}
		elem.Attributes = append(elem.Attributes, &attr)
	}
	if !empty {
		if elem.Content, err = c.parseContent(sc, lexical, offset); err != nil {
			return nil, err
		}
	}
	return &elem, nil
}

func namespaceAttribute(name string) (string, bool) {
	if name == "xmlns" {
		return "", true
	}
	prefix, ok := strings.CutPrefix(name, "xmlns:")
	return prefix, ok
}

var errReservedPrefix = errors.New("reserved namespace prefix or URI")

func checkNamespaceBinding(prefix, uri string) error {
	switch {
	case prefix == "xmlns" || uri == xml.NamespaceXMLNS:
		return errReservedPrefix
	case prefix == "xml" && uri != xml.NamespaceXML:
		return errReservedPrefix
	case prefix != "xml" && uri == xml.NamespaceXML:
		return errReservedPrefix
	default:
		return nil
	}
}

// namespaceValue decodes the value of a namespace declaration attribute.
// It must be a literal.
func (c *Compiler) namespaceValue(a rawAttribute) (string, error) {
	var str strings.Builder
	for i := 0; i < len(a.value); {
		r, z := utf8.DecodeRuneInString(a.value[i:])
		switch {
		case r == a.delim:
			str.WriteRune(r)
			i += 2
		case strings.HasPrefix(a.value[i:], "{{"):
			str.WriteRune(lcurly)
			i += 2
		case strings.HasPrefix(a.value[i:], "}}"):
			str.WriteRune(rcurly)
			i += 2
		case r == lcurly || r == rcurly:
			return "", c.errorAt(CodeNamespaceAttr, KindDeclaration, a.offset, "value of namespace declaration %s must be a literal", a.name)
		case r == ampersand:
			ref, n, err := c.decodeReference(a.value[i:], a.start+i)
			if err != nil {
				return "", err
			}
			str.WriteString(ref)
			i += n
		default:
			str.WriteRune(r)
			i += z
		}
	}
	return strings.TrimSpace(str.String()), nil
}

// readAttributes reads the attributes of a start tag up to and including
// the closing angle bracket. It reports whether the tag was an empty
// element tag.
func (c *Compiler) readAttributes(sc *StaticContext) ([]rawAttribute, bool, error) {
	var list []rawAttribute
	for {
		blank := c.skipRawBlank()
		offset := c.scan.Offset()
		switch r := c.peekRaw(); r {
		case eof:
			return nil, false, c.errorAt(CodeSyntax, KindSyntax, offset, "unterminated start tag")
		case slash:
			c.scan.NextChar()
			if c.scan.NextChar() != rangle {
				return nil, false, c.errorAt(CodeSyntax, KindSyntax, offset, "expected '/>'")
			}
			return list, true, nil
		case rangle:
			c.scan.NextChar()
			return list, false, nil
		}
		if blank == 0 {
			return nil, false, c.errorAt(CodeSyntax, KindSyntax, offset, "expected whitespace before attribute")
		}
		attr := rawAttribute{
			name:   c.readName(sc),
			offset: offset,
		}
		if attr.name == "" || !sc.Checker.IsQName(attr.name) {
			return nil, false, c.errorAt(CodeSyntax, KindSyntax, offset, "invalid attribute name")
		}
		c.skipRawBlank()
		if c.scan.NextChar() != equal {
			return nil, false, c.errorAt(CodeSyntax, KindSyntax, c.scan.Offset(), "expected '=' after attribute name")
		}
		c.skipRawBlank()
		attr.delim = c.scan.NextChar()
		if attr.delim != quote && attr.delim != apos {
			return nil, false, c.errorAt(CodeSyntax, KindSyntax, c.scan.Offset(), "expected quoted attribute value")
		}
		attr.start = c.scan.Offset()
		end, err := c.skipAttributeValue(attr.delim)
		if err != nil {
			return nil, false, err
		}
		attr.value = c.scan.input[attr.start:end]
		list = append(list, attr)
	}
}

// skipAttributeValue moves the scanner after the closing delimiter of an
// attribute value and returns the offset of that delimiter. String literals
// of enclosed expressions are skipped as a whole.
func (c *Compiler) skipAttributeValue(delim rune) (int, error) {
	var depth int
	for {
		offset := c.scan.Offset()
		r := c.scan.NextChar()
		switch {
		case r == eof:
			return 0, c.errorAt(CodeSyntax, KindSyntax, offset, "unterminated attribute value")
		case depth == 0 && r == delim:
			if c.peekRaw() != delim {
				return offset, nil
			}
			c.scan.NextChar()
		case r == lcurly:
			if depth == 0 && c.peekRaw() == lcurly {
				c.scan.NextChar()
				break
			}
			depth++
		case r == rcurly:
			if depth == 0 {
				if c.peekRaw() == rcurly {
					c.scan.NextChar()
				}
				break
			}
			depth--
		case depth > 0 && (r == quote || r == apos):
			for {
				x := c.scan.NextChar()
				if x == eof {
					return 0, c.errorAt(CodeSyntax, KindSyntax, offset, "unterminated string literal")
				}
				if x == r {
					if c.peekRaw() != r {
						break
					}
					c.scan.NextChar()
				}
			}
		}
	}
}

// parseAttributeValue splits the value of a direct attribute in literal
// text and enclosed expressions. Enclosed expressions are parsed by a
// nested compiler whose locations have the attribute as parent.
func (c *Compiler) parseAttributeValue(sc *StaticContext, a rawAttribute, parent *Location) ([]Expr, error) {
	var (
		list   []Expr
		str    strings.Builder
		textAt int
	)
	write := func(s string, at int) {
		if str.Len() == 0 {
			textAt = at
		}
		str.WriteString(s)
	}
	flush := func() {
		if str.Len() == 0 {
			return
		}
		list = append(list, c.mark(&Literal{Kind: TypeString, Value: str.String()}, textAt))
		str.Reset()
	}
	for i := 0; i < len(a.value); {
		var (
			r, z   = utf8.DecodeRuneInString(a.value[i:])
			offset = a.start + i
			rest   = a.value[i:]
		)
		switch {
		case r == a.delim:
			write(string(r), offset)
			i += 2
		case strings.HasPrefix(rest, "{{"):
			write("{", offset)
			i += 2
		case strings.HasPrefix(rest, "}}"):
			write("}", offset)
			i += 2
		case r == rcurly:
			return nil, c.errorAt(CodeSyntax, KindSyntax, offset, "unescaped '}' in attribute value")
		case r == langle:
			return nil, c.errorAt(CodeSyntax, KindSyntax, offset, "'<' not allowed in attribute value")
		case r == lcurly:
			flush()
			cp := c.nested(offset+1, parent)
			expr, end, err := cp.compileEnclosed(sc, endCurl)
			if err != nil {
				return nil, err
			}
			list = append(list, expr)
			i = end + 1 - a.start
		case r == ampersand:
			ref, n, err := c.decodeReference(rest, offset)
			if err != nil {
				return nil, err
			}
			write(ref, offset)
			i += n
		case r == tab || r == nl || r == cr:
			write(" ", offset)
			i += z
		default:
			write(string(r), offset)
			i += z
		}
	}
	flush()
	return list, nil
}

// parseContent reads the content of a direct element up to and including
// its end tag.
func (c *Compiler) parseContent(sc *StaticContext, lexical string, start int) ([]Expr, error) {
	var (
		list   []Expr
		str    strings.Builder
		textAt int
		keep   bool
	)
	write := func(s string, at int) {
		if str.Len() == 0 {
			textAt = at
		}
		str.WriteString(s)
	}
	flush := func() {
		defer func() {
			str.Reset()
			keep = false
		}()
		if str.Len() == 0 {
			return
		}
		text := str.String()
		if !keep && !sc.PreserveBoundarySpace && isBoundarySpace(text) {
			return
		}
		list = append(list, c.mark(&Literal{Kind: TypeString, Value: text}, textAt))
	}
	for {
		offset := c.scan.Offset()
		r := c.scan.NextChar()
		switch r {
		case eof:
			return nil, c.errorAt(CodeSyntax, KindSyntax, start, "element <%s> is not closed", lexical)
		case langle:
			switch {
			case c.scan.HasPrefix("/"):
				flush()
				c.scan.Skip(1)
				end := c.readName(sc)
				c.skipRawBlank()
				if c.scan.NextChar() != rangle {
					return nil, c.errorAt(CodeSyntax, KindSyntax, offset, "expected '>' after end tag name")
				}
				if end != lexical {
					return nil, c.errorAt(CodeEndTag, KindSyntax, offset, "end tag </%s> does not match start tag <%s>", end, lexical)
				}
				return list, nil
			case c.scan.HasPrefix("!--"):
				flush()
				c.scan.Skip(3)
				expr, err := c.parseComment(offset)
				if err != nil {
					return nil, err
				}
				list = append(list, expr)
			case c.scan.HasPrefix("![CDATA["):
				c.scan.Skip(8)
				rest := c.scan.input[c.scan.Offset():]
				ix := strings.Index(rest, "]]>")
				if ix < 0 {
					return nil, c.errorAt(CodeSyntax, KindSyntax, offset, "unterminated CDATA section")
				}
				write(rest[:ix], offset)
				keep = true
				c.scan.Skip(ix + 3)
			case c.scan.HasPrefix("?"):
				flush()
				c.scan.Skip(1)
				expr, err := c.parseInstruction(offset)
				if err != nil {
					return nil, err
				}
				list = append(list, expr)
			default:
				flush()
				expr, err := c.parseElement(sc, offset)
				if err != nil {
					return nil, err
				}
				list = append(list, expr)
			}
		case lcurly:
			if c.scan.HasPrefix("{") {
				c.scan.Skip(1)
				write("{", offset)
				keep = true
				break
			}
			flush()
			expr, err := c.parseContentExpr(sc, offset)
			if err != nil {
				return nil, err
			}
			list = append(list, expr)
		case rcurly:
			if !c.scan.HasPrefix("}") {
				return nil, c.errorAt(CodeSyntax, KindSyntax, offset, "unescaped '}' in element content")
			}
			c.scan.Skip(1)
			write("}", offset)
			keep = true
		case ampersand:
			rest := c.scan.input[offset:]
			ref, n, err := c.decodeReference(rest, offset)
			if err != nil {
				return nil, err
			}
			c.scan.Seek(offset + n)
			write(ref, offset)
			keep = true
		default:
			write(string(r), offset)
		}
	}
}

// parseContentExpr parses an enclosed expression of element content. The
// scanner leaves raw mode for the expression and the closing bracket is
// the last token read.
func (c *Compiler) parseContentExpr(sc *StaticContext, offset int) (Expr, error) {
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

func isBoundarySpace(str string) bool {
	for _, r := range str {
		if !isBlank(r) {
			return false
		}
	}
	return true
}

// parseComment reads a direct comment; the scanner is positioned after
// the comment opening.
func (c *Compiler) parseComment(offset int) (Expr, error) {
	rest := c.scan.input[c.scan.Offset():]
	ix := strings.Index(rest, "-->")
	if ix < 0 {
		return nil, c.errorAt(CodeSyntax, KindSyntax, offset, "unterminated comment")
	}
	text := rest[:ix]
	if strings.Contains(text, "--") || strings.HasSuffix(text, "-") {
		return nil, c.errorAt(CodeSyntax, KindSyntax, offset, "'--' not allowed in comment")
	}
	c.scan.Skip(ix + 3)
	cmt := CommentConstructor{
		Direct:  true,
		Content: c.mark(&Literal{Kind: TypeString, Value: text}, offset),
	}
	return c.mark(&cmt, offset), nil
}

// parseInstruction reads a direct processing instruction; the scanner is
// positioned after the question mark.
func (c *Compiler) parseInstruction(offset int) (Expr, error) {
	var target strings.Builder
	for {
		r := c.scan.NextChar()
		if r == eof || !c.scan.checker.IsNameChar(r) {
			if r != eof {
				c.scan.UnreadChar()
			}
			break
		}
		target.WriteRune(r)
	}
	name := target.String()
	if !c.scan.checker.IsNCName(name) {
		return nil, c.errorAt(CodeSyntax, KindSyntax, offset, "invalid processing instruction target")
	}
	if strings.EqualFold(name, "xml") {
		return nil, c.errorAt(CodeSyntax, KindSyntax, offset, "processing instruction target can not be %s", name)
	}
	pi := PIConstructor{
		Direct: true,
		Target: name,
	}
	if !c.scan.HasPrefix("?>") && c.skipRawBlank() == 0 {
		return nil, c.errorAt(CodeSyntax, KindSyntax, c.scan.Offset(), "expected whitespace after processing instruction target")
	}
	var (
		at   = c.scan.Offset()
		rest = c.scan.input[at:]
		ix   = strings.Index(rest, "?>")
	)
	if ix < 0 {
		return nil, c.errorAt(CodeSyntax, KindSyntax, offset, "unterminated processing instruction")
	}
	pi.Content = c.mark(&Literal{Kind: TypeString, Value: rest[:ix]}, at)
	c.scan.Skip(ix + 2)
	return c.mark(&pi, offset), nil
}

// decodeReference decodes the entity or character reference at the start
// of str and returns its replacement with the number of bytes consumed.
func (c *Compiler) decodeReference(str string, offset int) (string, int, error) {
	ix := strings.IndexByte(str, semicolon)
	if ix < 0 {
		return "", 0, c.errorAt(CodeSyntax, KindLexical, offset, "unterminated entity reference")
	}
	ref := str[1:ix]
	if strings.HasPrefix(ref, "#") {
		r, err := xml.DecodeCharRef(ref[1:], c.scan.checker)
		if err != nil {
			return "", 0, c.errorAt(CodeCharRef, KindLexical, offset, "%s", err)
		}
		return string(r), ix + 1, nil
	}
	text, err := xml.DecodeEntity(ref)
	if err != nil {
		return "", 0, c.errorAt(CodeSyntax, KindLexical, offset, "%s", err)
	}
	return text, ix + 1, nil
}

func (c *Compiler) readName(sc *StaticContext) string {
	var str strings.Builder
	for {
		r := c.scan.NextChar()
		if r == eof {
			break
		}
		if !sc.Checker.IsNameChar(r) && r != colon {
			c.scan.UnreadChar()
			break
		}
		str.WriteRune(r)
	}
	return str.String()
}

func (c *Compiler) skipRawBlank() int {
	var n int
	for {
		r := c.scan.NextChar()
		if r == eof {
			return n
		}
		if !isBlank(r) {
			c.scan.UnreadChar()
			return n
		}
		n++
	}
}

func (c *Compiler) peekRaw() rune {
	r := c.scan.NextChar()
	if r != eof {
		c.scan.UnreadChar()
	}
	return r
}

func (c *Compiler) compileComputedElement(sc *StaticContext) (Expr, error) {
	c.Enter("computed-element")
	defer c.Leave("computed-element")

	offset := c.curr.Offset
	if err := c.requireXQuery("computed constructor"); err != nil {
		return nil, err
	}
	var (
		elem ElementConstructor
		err  error
	)
	c.nextName()
	switch {
	case c.is(begCurl):
		elem.NameExpr, err = c.compileComputedName(sc)
	case c.is(Name):
		elem.Name, err = c.resolveName(sc, c.curr.Literal, nameElement)
		c.next()
	default:
		err = c.grumble("element name")
	}
	if err != nil {
		return nil, err
	}
	body, err := c.compileComputedContent(sc)
	if err != nil {
		return nil, err
	}
	elem.Content = append(elem.Content, body)
	return c.mark(&elem, offset), nil
}

func (c *Compiler) compileComputedAttribute(sc *StaticContext) (Expr, error) {
	offset := c.curr.Offset
	if err := c.requireXQuery("computed constructor"); err != nil {
		return nil, err
	}
	var (
		attr AttributeConstructor
		err  error
	)
	c.nextName()
	switch {
	case c.is(begCurl):
		attr.NameExpr, err = c.compileComputedName(sc)
	case c.is(Name):
		attr.Name, err = c.resolveName(sc, c.curr.Literal, nameAttribute)
		c.next()
	default:
		err = c.grumble("attribute name")
	}
	if err != nil {
		return nil, err
	}
	body, err := c.compileComputedContent(sc)
	if err != nil {
		return nil, err
	}
	attr.Value = append(attr.Value, body)
	return c.mark(&attr, offset), nil
}

func (c *Compiler) compileComputedPI(sc *StaticContext) (Expr, error) {
	offset := c.curr.Offset
	if err := c.requireXQuery("computed constructor"); err != nil {
		return nil, err
	}
	var (
		pi  PIConstructor
		err error
	)
	c.nextName()
	switch {
	case c.is(begCurl):
		pi.TargetExpr, err = c.compileComputedName(sc)
	case c.is(Name):
		if !sc.Checker.IsNCName(c.curr.Literal) {
			return nil, c.grumble("processing instruction target")
		}
		pi.Target = c.curr.Literal
		c.next()
	default:
		err = c.grumble("processing instruction target")
	}
	if err != nil {
		return nil, err
	}
	if pi.Content, err = c.compileComputedContent(sc); err != nil {
		return nil, err
	}
	return c.mark(&pi, offset), nil
}

func (c *Compiler) compileComputedNamespace(sc *StaticContext) (Expr, error) {
	offset := c.curr.Offset
	if err := c.requireXQuery("computed constructor"); err != nil {
		return nil, err
	}
	var (
		ns  NamespaceConstructor
		err error
	)
	c.nextName()
	switch {
	case c.is(begCurl):
		ns.PrefixExpr, err = c.compileComputedName(sc)
	case c.is(Name):
		if !sc.Checker.IsNCName(c.curr.Literal) {
			return nil, c.grumble("namespace prefix")
		}
		ns.Prefix = c.curr.Literal
		c.next()
	default:
		err = c.grumble("namespace prefix")
	}
	if err != nil {
		return nil, err
	}
	if ns.URI, err = c.compileComputedContent(sc); err != nil {
		return nil, err
	}
	return c.mark(&ns, offset), nil
}

func (c *Compiler) compileComputedText(sc *StaticContext) (Expr, error) {
	offset := c.curr.Offset
	if err := c.requireXQuery("computed constructor"); err != nil {
		return nil, err
	}
	c.next()
	body, err := c.compileComputedContent(sc)
	if err != nil {
		return nil, err
	}
	text := TextConstructor{
		Content: body,
	}
	return c.mark(&text, offset), nil
}

func (c *Compiler) compileComputedComment(sc *StaticContext) (Expr, error) {
	offset := c.curr.Offset
	if err := c.requireXQuery("computed constructor"); err != nil {
		return nil, err
	}
	c.next()
	body, err := c.compileComputedContent(sc)
	if err != nil {
		return nil, err
	}
	cmt := CommentConstructor{
		Content: body,
	}
	return c.mark(&cmt, offset), nil
}

func (c *Compiler) compileDocument(sc *StaticContext) (Expr, error) {
	offset := c.curr.Offset
	if err := c.requireXQuery("computed constructor"); err != nil {
		return nil, err
	}
	c.next()
	body, err := c.compileComputedContent(sc)
	if err != nil {
		return nil, err
	}
	doc := DocumentConstructor{
		Content: body,
	}
	return c.mark(&doc, offset), nil
}

// compileComputedName parses the enclosed expression giving the name of a
// computed constructor and moves to the token after it.
func (c *Compiler) compileComputedName(sc *StaticContext) (Expr, error) {
	c.next()
	expr, err := c.compileExpr(sc)
	if err != nil {
		return nil, err
	}
	if !c.is(endCurl) {
		return nil, c.grumble("'}'")
	}
	c.next()
	return expr, nil
}

func (c *Compiler) compileComputedContent(sc *StaticContext) (Expr, error) {
	if !c.is(begCurl) {
		return nil, c.grumble("'{'")
	}
	body, err := c.compileCurlyBody(sc)
	if err != nil {
		return nil, err
	}
	c.nextOp()
	return body, nil
}

func (c *Compiler) errorAt(code string, kind ErrorKind, offset int, format string, args ...any) error {
	return staticError(code, kind, c.locate(offset), format, args...)
}

// relocate moves a static error raised while the scanner was in raw mode
// to the given offset.
func (c *Compiler) relocate(err error, offset int) error {
	var se *StaticError
	if errors.As(err, &se) {
		se.Location = c.locate(offset)
	}
	return err
}
