package xpath

import (
	"bytes"
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/midbel/xq/xml"
)

type LexMode int8

const (
	// LexDefault is used when an operand is expected.
	LexDefault LexMode = iota
	// LexOperator is used after a complete operand.
	LexOperator
	// LexName is used where only a bare name can follow.
	LexName
)

const eof rune = -1

type ScanOption func(*Scanner)

func StartAt(offset int) ScanOption {
	return func(s *Scanner) {
		s.next = offset
	}
}

func StartLine(line int) ScanOption {
	return func(s *Scanner) {
		s.base = line
	}
}

func ForLanguage(lang Language) ScanOption {
	return func(s *Scanner) {
		s.lang = lang
	}
}

func WithChecker(checker xml.NameChecker) ScanOption {
	return func(s *Scanner) {
		s.checker = checker
	}
}

// Scanner tokenizes XPath and XQuery source. It never reads ahead of the
// token it returns so the caller can switch to character mode at any time.
type Scanner struct {
	input string
	char  rune
	curr  int
	next  int
	str   bytes.Buffer

	lang    Language
	checker xml.NameChecker

	base    int
	lines   []int
	scanned int
}

func Scan(input string, options ...ScanOption) *Scanner {
	scan := Scanner{
		input:   input,
		base:    1,
		lang:    LangXPath,
		checker: xml.Checker(xml.Version10),
		lines:   []int{0},
	}
	for _, o := range options {
		o(&scan)
	}
	scan.read()
	return &scan
}

// Position translates an offset of the input into a line and a column. It
// works for any offset, whatever the progress of the scanner.
func (s *Scanner) Position(offset int) Position {
	if offset > len(s.input) {
		offset = len(s.input)
	}
	for ; s.scanned < offset; s.scanned++ {
		if s.input[s.scanned] == '\n' {
			s.lines = append(s.lines, s.scanned+1)
		}
	}
	ix := sort.Search(len(s.lines), func(i int) bool {
		return s.lines[i] > offset
	})
	ix--
	var pos Position
	pos.Line = s.base + ix
	pos.Column = utf8.RuneCountInString(s.input[s.lines[ix]:offset]) + 1
	return pos
}

// Offset returns the offset of the next unread character.
func (s *Scanner) Offset() int {
	return s.curr
}

func (s *Scanner) Seek(offset int) {
	s.next = offset
	s.read()
}

// NextChar returns the next character of the input and consumes it. It
// returns -1 at the end of the input.
func (s *Scanner) NextChar() rune {
	c := s.char
	if c != eof {
		s.read()
	}
	return c
}

func (s *Scanner) UnreadChar() {
	if s.curr == 0 {
		return
	}
	_, z := utf8.DecodeLastRuneInString(s.input[:s.curr])
	s.Seek(s.curr - z)
}

// HasPrefix reports whether the unread input starts with str.
func (s *Scanner) HasPrefix(str string) bool {
	return strings.HasPrefix(s.input[s.curr:], str)
}

// Skip consumes n bytes of the input.
func (s *Scanner) Skip(n int) {
	s.Seek(s.curr + n)
}

func (s *Scanner) Text(tok Token) string {
	return s.input[tok.Offset:tok.End]
}

func (s *Scanner) Done() bool {
	return s.done()
}

// PeekWord returns the name that follows the blanks and comments at the
// current position without consuming anything.
func (s *Scanner) PeekWord() string {
	return s.wordAt(s.skipFrom(s.curr))
}

// PeekChar returns the first character that follows the blanks and comments
// at the current position without consuming it.
func (s *Scanner) PeekChar() rune {
	return s.charAt(s.skipFrom(s.curr))
}

func (s *Scanner) Next(mode LexMode) Token {
	var tok Token
	if err := s.skipBlankAndComment(); err != "" {
		tok.Offset = s.curr
		tok.Type = Invalid
		tok.Literal = err
		s.finish(&tok)
		return tok
	}
	s.str.Reset()
	tok.Offset = s.curr
	if s.done() {
		tok.Type = EOF
		s.finish(&tok)
		return tok
	}
	switch {
	case s.char == dollar:
		s.scanVariable(&tok)
	case s.char == apos || s.char == quote:
		s.scanLiteral(&tok)
	case isDigit(s.char) || (s.char == dot && isDigit(s.peek())):
		s.scanNumber(&tok)
	case s.char == star && mode != LexOperator:
		s.scanIdent(&tok, mode)
	case s.char == 'Q' && s.peek() == lcurly:
		s.scanIdent(&tok, mode)
	case s.checker.IsNameStartChar(s.char):
		s.scanIdent(&tok, mode)
	case s.char == langle && mode == LexDefault && s.lang == LangXQuery:
		s.scanMarkup(&tok)
	case s.char == lparen && s.peek() == hash && s.lang == LangXQuery:
		s.scanPragma(&tok)
	case isOperator(s.char):
		s.scanOperator(&tok)
	case isDelimiter(s.char):
		s.scanDelimiter(&tok)
	default:
		tok.Type = Invalid
		tok.Literal = "unexpected character '" + string(s.char) + "'"
		s.read()
	}
	s.finish(&tok)
	return tok
}

func (s *Scanner) finish(tok *Token) {
	tok.End = s.curr
	tok.Position = s.Position(tok.Offset)
	if tok.End == tok.Offset && tok.Type != EOF {
		s.read()
		tok.End = s.curr
	}
}

func (s *Scanner) scanVariable(tok *Token) {
	s.read()
	s.skipBlank()
	if !s.isNameStart() {
		tok.Type = Invalid
		tok.Literal = "expected variable name after '$'"
		return
	}
	s.scanQName(false)
	tok.Type = variable
	tok.Literal = s.str.String()
}

func (s *Scanner) scanLiteral(tok *Token) {
	delim := s.char
	s.read()
	tok.Type = String
	for !s.done() {
		if s.char == delim {
			if s.peek() != delim {
				break
			}
			s.read()
		} else if s.char == ampersand && s.lang == LangXQuery {
			if kind, msg := s.scanReference(); kind != 0 {
				tok.Type = kind
				tok.Literal = msg
				s.skipLiteral(delim)
				return
			}
			continue
		}
		s.write()
		s.read()
	}
	if s.char != delim {
		tok.Type = Invalid
		tok.Literal = "unterminated string literal"
		return
	}
	s.read()
	tok.Literal = s.str.String()
}

func (s *Scanner) skipLiteral(delim rune) {
	for !s.done() && s.char != delim {
		s.read()
	}
	s.read()
}

// scanReference decodes an entity or character reference starting at the
// current '&' and writes its replacement. On failure it returns the kind
// of invalid token and a message.
func (s *Scanner) scanReference() (rune, string) {
	var (
		start = s.curr
		ix    = strings.IndexByte(s.input[start:], semicolon)
	)
	if ix < 0 {
		return Invalid, "unterminated entity reference"
	}
	ref := s.input[start+1 : start+ix]
	s.Seek(start + ix + 1)
	if strings.HasPrefix(ref, "#") {
		r, err := xml.DecodeCharRef(ref[1:], s.checker)
		if err != nil {
			return invalidRef, err.Error()
		}
		s.str.WriteRune(r)
		return 0, ""
	}
	str, err := xml.DecodeEntity(ref)
	if err != nil {
		return Invalid, err.Error()
	}
	s.str.WriteString(str)
	return 0, ""
}

func (s *Scanner) scanNumber(tok *Token) {
	tok.Type = Integer
	for isDigit(s.char) {
		s.write()
		s.read()
	}
	if s.char == dot && s.peek() != dot {
		tok.Type = Decimal
		s.write()
		s.read()
		for isDigit(s.char) {
			s.write()
			s.read()
		}
	}
	if s.char == 'e' || s.char == 'E' {
		tok.Type = Double
		s.write()
		s.read()
		if s.char == dash || s.char == plus {
			s.write()
			s.read()
		}
		if !isDigit(s.char) {
			tok.Type = Invalid
			tok.Literal = "invalid exponent in numeric literal"
			return
		}
		for isDigit(s.char) {
			s.write()
			s.read()
		}
	}
	tok.Literal = s.str.String()
	if s.isNameStart() {
		tok.Type = Invalid
		tok.Literal = "numeric literal followed by '" + string(s.char) + "'"
		for s.checker.IsNameChar(s.char) {
			s.read()
		}
	}
}

func (s *Scanner) scanIdent(tok *Token, mode LexMode) {
	s.scanQName(mode != LexOperator)
	tok.Type = Name
	tok.Literal = s.str.String()
	if tok.Literal == "" {
		tok.Type = Invalid
		tok.Literal = "invalid name"
		return
	}
	switch mode {
	case LexOperator:
		s.classifyOperator(tok)
	case LexDefault:
		s.classifyWord(tok)
	default:
	}
}

func (s *Scanner) classifyOperator(tok *Token) {
	switch tok.Literal {
	case kwIs:
		tok.Type = opIs
	case kwIntersect:
		tok.Type = opIntersect
	case kwExcept:
		tok.Type = opExcept
	case kwUnion:
		tok.Type = opUnion
	case kwAnd:
		tok.Type = opAnd
	case kwOr:
		tok.Type = opOr
	case kwTo:
		tok.Type = opRange
	case kwDiv:
		tok.Type = opDiv
	case kwIdiv:
		tok.Type = opIdiv
	case kwMod:
		tok.Type = opMod
	case kwEq:
		tok.Type = opValEq
	case kwNe:
		tok.Type = opValNe
	case kwLt:
		tok.Type = opValLt
	case kwLe:
		tok.Type = opValLe
	case kwGt:
		tok.Type = opValGt
	case kwGe:
		tok.Type = opValGe
	case kwCast:
		if s.lookForward(kwAs) {
			tok.Type = opCastAs
		}
	case kwCastable:
		if s.lookForward(kwAs) {
			tok.Type = opCastableAs
		}
	case kwInstance:
		if s.lookForward(kwOf) {
			tok.Type = opInstanceOf
		}
	case kwTreat:
		if s.lookForward(kwAs) {
			tok.Type = opTreatAs
		}
	default:
	}
}

// classifyWord recognizes the words that start an expression by looking at
// what follows them. Axis and named function reference markers are
// consumed with the name.
func (s *Scanner) classifyWord(tok *Token) {
	var (
		next = s.skipFrom(s.curr)
		char = s.charAt(next)
		word = tok.Literal
	)
	if strings.Contains(word, "*") {
		return
	}
	switch {
	case char == lparen:
		switch {
		case word == kwIf || word == kwSwitch || word == kwTypeswitch || word == kwFunction:
			tok.Type = keyword
		case isKindTest(word):
			tok.Type = kind
		default:
			tok.Type = function
		}
	case char == dollar:
		switch word {
		case kwFor, kwLet, kwSome, kwEvery:
			tok.Type = keyword
		}
	case char == lcurly:
		if isCurlyKeyword(word) {
			tok.Type = keyword
		}
	case char == colon && s.charAt(next+1) == colon:
		tok.Type = axis
		s.Seek(next + 2)
	case char == hash && isDigit(s.charAt(s.skipFrom(next+1))):
		tok.Type = namedRef
		s.Seek(next + 1)
	default:
		switch word {
		case kwElement, kwAttribute:
			if s.isComputedName(next, false) {
				tok.Type = keyword
			}
		case kwNamespace, kwPI:
			if s.isComputedName(next, true) {
				tok.Type = keyword
			}
		case kwValidate:
			switch s.wordAt(next) {
			case "lax", "strict", "type":
				tok.Type = keyword
			}
		case kwFor:
			switch s.wordAt(next) {
			case kwTumbling, kwSliding:
				tok.Type = keyword
			}
		}
	}
}

// isComputedName reports whether a name followed by an opening curly
// bracket starts at offset.
func (s *Scanner) isComputedName(offset int, local bool) bool {
	word := s.wordAt(offset)
	if word == "" {
		return false
	}
	if local && strings.Contains(word, ":") {
		return false
	}
	return s.charAt(s.skipFrom(offset+len(word))) == lcurly
}

func (s *Scanner) scanMarkup(tok *Token) {
	switch rest := s.input[s.curr:]; {
	case strings.HasPrefix(rest, "<!--"):
		tok.Type = commentStart
		s.Seek(s.curr + 4)
	case strings.HasPrefix(rest, "<?") && s.checker.IsNameStartChar(s.charAt(s.curr+2)):
		tok.Type = piStart
		s.Seek(s.curr + 2)
	case s.checker.IsNameStartChar(s.peek()):
		tok.Type = tagStart
		s.read()
	default:
		s.scanOperator(tok)
	}
}

func (s *Scanner) scanPragma(tok *Token) {
	s.read()
	s.read()
	ix := strings.Index(s.input[s.curr:], "#)")
	if ix < 0 {
		tok.Type = Invalid
		tok.Literal = "unterminated pragma"
		s.Seek(len(s.input))
		return
	}
	tok.Type = pragma
	tok.Literal = strings.TrimSpace(s.input[s.curr : s.curr+ix])
	s.Seek(s.curr + ix + 2)
}

func (s *Scanner) scanOperator(tok *Token) {
	switch k := s.peek(); s.char {
	case question:
		tok.Type = opQuestion
	case plus:
		tok.Type = opAdd
	case dash:
		tok.Type = opSub
	case star:
		tok.Type = opMul
	case percent:
		tok.Type = annotation
	case equal:
		tok.Type = opEq
		if k == rangle {
			s.read()
			tok.Type = opArrow
		}
	case bang:
		tok.Type = opBang
		if k == equal {
			s.read()
			tok.Type = opNe
		}
	case langle:
		tok.Type = opLt
		if k == equal {
			s.read()
			tok.Type = opLe
		} else if k == langle {
			s.read()
			tok.Type = opBefore
		}
	case rangle:
		tok.Type = opGt
		if k == equal {
			s.read()
			tok.Type = opGe
		} else if k == rangle {
			s.read()
			tok.Type = opAfter
		}
	case lparen:
		tok.Type = begGrp
	case rparen:
		tok.Type = endGrp
	default:
		tok.Type = Invalid
		tok.Literal = "unexpected character '" + string(s.char) + "'"
	}
	s.read()
}

func (s *Scanner) scanDelimiter(tok *Token) {
	switch k := s.peek(); s.char {
	case colon:
		tok.Type = opColon
		if k == equal {
			s.read()
			tok.Type = opAssign
		}
	case semicolon:
		tok.Type = opSemi
	case dot:
		tok.Type = currNode
		if k == s.char {
			s.read()
			tok.Type = parentNode
		}
	case comma:
		tok.Type = opSeq
	case pipe:
		tok.Type = opUnion
		if k == s.char {
			s.read()
			tok.Type = opConcat
		}
	case lcurly:
		tok.Type = begCurl
	case rcurly:
		tok.Type = endCurl
	case lsquare:
		tok.Type = begPred
	case rsquare:
		tok.Type = endPred
	case arobase:
		tok.Type = attrNode
	case slash:
		tok.Type = currLevel
		if k == slash {
			s.read()
			tok.Type = anyLevel
		}
	default:
		tok.Type = Invalid
		tok.Literal = "unexpected character '" + string(s.char) + "'"
	}
	s.read()
}

// scanQName reads a lexical QName, a URI qualified name or, when wildcard
// is set, one of the wildcard forms "*", "p:*" and "*:local".
func (s *Scanner) scanQName(wildcard bool) {
	if s.char == 'Q' && s.peek() == lcurly {
		for !s.done() && s.char != rcurly {
			s.write()
			s.read()
		}
		s.write()
		s.read()
		s.scanNCName()
		return
	}
	if s.char == star {
		if !wildcard {
			return
		}
		s.write()
		s.read()
		if s.char == colon && s.checker.IsNameStartChar(s.peek()) {
			s.write()
			s.read()
			s.scanNCName()
		}
		return
	}
	s.scanNCName()
	if s.char != colon {
		return
	}
	switch k := s.peek(); {
	case s.checker.IsNameStartChar(k):
		s.write()
		s.read()
		s.scanNCName()
	case k == star && wildcard:
		s.write()
		s.read()
		s.write()
		s.read()
	}
}

func (s *Scanner) scanNCName() {
	if !s.checker.IsNameStartChar(s.char) {
		return
	}
	for !s.done() && s.checker.IsNameChar(s.char) {
		s.write()
		s.read()
	}
}

// lookForward consumes the given word when it is the next one in the input.
func (s *Scanner) lookForward(want string) bool {
	next := s.skipFrom(s.curr)
	if s.wordAt(next) != want {
		return false
	}
	s.Seek(next + len(want))
	return true
}

func (s *Scanner) wordAt(offset int) string {
	if offset >= len(s.input) {
		return ""
	}
	str := s.input[offset:]
	if strings.HasPrefix(str, "Q{") {
		ix := strings.IndexByte(str, rcurly)
		if ix < 0 {
			return ""
		}
		return str[:ix+1+s.nameLength(str[ix+1:])]
	}
	n := s.nameLength(str)
	if n == 0 {
		return ""
	}
	if n < len(str) && str[n] == colon {
		if m := s.nameLength(str[n+1:]); m > 0 {
			return str[:n+1+m]
		}
	}
	return str[:n]
}

func (s *Scanner) nameLength(str string) int {
	for i, c := range str {
		if i == 0 && !s.checker.IsNameStartChar(c) {
			return 0
		}
		if !s.checker.IsNameChar(c) {
			return i
		}
	}
	return len(str)
}

func (s *Scanner) charAt(offset int) rune {
	if offset >= len(s.input) {
		return eof
	}
	r, _ := utf8.DecodeRuneInString(s.input[offset:])
	return r
}

// skipFrom returns the offset of the first character after the blanks and
// comments starting at offset.
func (s *Scanner) skipFrom(offset int) int {
	for offset < len(s.input) {
		c := s.input[offset]
		if isBlank(rune(c)) {
			offset++
			continue
		}
		if c == lparen && offset+1 < len(s.input) && s.input[offset+1] == colon {
			end, ok := skipComment(s.input, offset)
			if !ok {
				return len(s.input)
			}
			offset = end
			continue
		}
		break
	}
	return offset
}

func (s *Scanner) skipBlankAndComment() string {
	for {
		s.skipBlank()
		if s.char != lparen || s.peek() != colon {
			return ""
		}
		end, ok := skipComment(s.input, s.curr)
		if !ok {
			s.Seek(len(s.input))
			return "unterminated comment"
		}
		s.Seek(end)
	}
}

// skipComment returns the offset after the, possibly nested, comment
// starting at offset.
func skipComment(input string, offset int) (int, bool) {
	var depth int
	for offset < len(input)-1 {
		switch input[offset : offset+2] {
		case "(:":
			depth++
			offset += 2
		case ":)":
			depth--
			offset += 2
			if depth == 0 {
				return offset, true
			}
		default:
			offset++
		}
	}
	return len(input), false
}

func (s *Scanner) isNameStart() bool {
	return s.checker.IsNameStartChar(s.char) || (s.char == 'Q' && s.peek() == lcurly)
}

func (s *Scanner) skipBlank() {
	for isBlank(s.char) {
		s.read()
	}
}

func (s *Scanner) write() {
	s.str.WriteRune(s.char)
}

func (s *Scanner) read() {
	s.curr = s.next
	if s.curr >= len(s.input) {
		s.curr = len(s.input)
		s.next = s.curr
		s.char = eof
		return
	}
	c, z := utf8.DecodeRuneInString(s.input[s.curr:])
	s.char = c
	s.next = s.curr + z
}

func (s *Scanner) peek() rune {
	return s.charAt(s.next)
}

func (s *Scanner) done() bool {
	return s.char == eof
}

const (
	langle     = '<'
	rangle     = '>'
	lsquare    = '['
	rsquare    = ']'
	lparen     = '('
	rparen     = ')'
	lcurly     = '{'
	rcurly     = '}'
	colon      = ':'
	semicolon  = ';'
	quote      = '"'
	apos       = '\''
	slash      = '/'
	question   = '?'
	bang       = '!'
	equal      = '='
	ampersand  = '&'
	dash       = '-'
	underscore = '_'
	dot        = '.'
	arobase    = '@'
	comma      = ','
	plus       = '+'
	star       = '*'
	percent    = '%'
	pipe       = '|'
	dollar     = '$'
	hash       = '#'
	space      = ' '
	tab        = '\t'
	nl         = '\n'
	cr         = '\r'
)

func isBlank(c rune) bool {
	return c == space || c == tab || c == nl || c == cr
}

func isDigit(c rune) bool {
	return c >= '0' && c <= '9'
}

func isDelimiter(c rune) bool {
	return c == comma || c == dot || c == pipe || c == slash ||
		c == lsquare || c == rsquare || c == colon || c == semicolon ||
		c == lcurly || c == rcurly || c == arobase
}

func isOperator(c rune) bool {
	return c == question || c == plus || c == dash || c == star || c == percent ||
		c == equal || c == bang || c == langle || c == rangle ||
		c == lparen || c == rparen
}

// Tokens reads the remaining input, switching to LexOperator after each
// token that completes an operand. Direct constructors are not followed:
// their content is read as ordinary tokens.
func (s *Scanner) Tokens() []Token {
	var (
		list []Token
		mode = LexDefault
	)
	for {
		tok := s.Next(mode)
		list = append(list, tok)
		if tok.Type == EOF {
			return list
		}
		mode = LexDefault
		if endsOperand(tok) {
			mode = LexOperator
		}
	}
}

func endsOperand(tok Token) bool {
	switch tok.Type {
	case Name, String, Integer, Decimal, Double, variable:
	case currNode, parentNode, endGrp, endPred, endCurl:
	default:
		return false
	}
	return true
}
