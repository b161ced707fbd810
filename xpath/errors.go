package xpath

import (
	"errors"
	"fmt"
	"strings"
)

const (
	CodeSyntax            = "XPST0003"
	CodeUndefinedVar      = "XPST0008"
	CodeUndefinedFunc     = "XPST0017"
	CodeUnknownType       = "XPST0051"
	CodeAbstractCast      = "XPST0080"
	CodeUnboundPrefix     = "XPST0081"
	CodeTypeMismatch      = "XPTY0004"
	CodeSchemaImport      = "XQST0009"
	CodeNamespaceAttr     = "XQST0022"
	CodeVersion           = "XQST0031"
	CodeBaseURI           = "XQST0032"
	CodeDuplicatePrefix   = "XQST0033"
	CodeDuplicateFunc     = "XQST0034"
	CodeCollation         = "XQST0038"
	CodeDuplicateParam    = "XQST0039"
	CodeDuplicateAttr     = "XQST0040"
	CodeReservedNamespace = "XQST0045"
	CodeDuplicateImport   = "XQST0047"
	CodeWrongNamespace    = "XQST0048"
	CodeDuplicateVar      = "XQST0049"
	CodeCircular          = "XQST0054"
	CodeCopyNamespaces    = "XQST0055"
	CodeSchemaPrefix      = "XQST0057"
	CodeDuplicateSchema   = "XQST0058"
	CodeModuleNotFound    = "XQST0059"
	CodeNoNamespace       = "XQST0060"
	CodeOrdering          = "XQST0065"
	CodeDefaultNamespace  = "XQST0066"
	CodeConstruction      = "XQST0067"
	CodeBoundarySpace     = "XQST0068"
	CodeEmptyOrder        = "XQST0069"
	CodeXMLPrefix         = "XQST0070"
	CodeValidate          = "XQST0075"
	CodeUnknownCollation  = "XQST0076"
	CodeEncoding          = "XQST0087"
	CodeEmptyNamespace    = "XQST0088"
	CodeDuplicatePos      = "XQST0089"
	CodeCharRef           = "XQST0090"
	CodeModuleCycle       = "XQST0093"
	CodeGroupVar          = "XQST0094"
	CodeDecimalValue      = "XQST0097"
	CodeContextItem       = "XQST0099"
	CodeAnnotation        = "XQST0106"
	CodeDecimalFormat     = "XQST0111"
	CodeDecimalProperty   = "XQST0114"
	CodeEndTag            = "XQST0118"
	CodeHigherOrder       = "XQST0129"
)

var errAbort = errors.New("compilation aborted")

type ErrorKind int8

const (
	KindSyntax ErrorKind = iota
	KindLexical
	KindDeclaration
	KindBinding
	KindType
	KindFeature
)

func (k ErrorKind) String() string {
	switch k {
	case KindLexical:
		return "lexical"
	case KindSyntax:
		return "syntax"
	case KindDeclaration:
		return "declaration"
	case KindBinding:
		return "binding"
	case KindType:
		return "type"
	case KindFeature:
		return "feature"
	default:
		return "unknown"
	}
}

type Location struct {
	Module string
	Line   int
	Column int
	// Parent is the location of the construct an embedded expression was
	// parsed from, nil otherwise.
	Parent *Location
}

func (l *Location) String() string {
	if l == nil {
		return "?"
	}
	if l.Module == "" {
		return fmt.Sprintf("%d:%d", l.Line, l.Column)
	}
	return fmt.Sprintf("%s:%d:%d", l.Module, l.Line, l.Column)
}

type StaticError struct {
	Code     string
	Kind     ErrorKind
	Message  string
	Location *Location
}

func (e *StaticError) Error() string {
	if e.Location == nil {
		return fmt.Sprintf("[%s] %s", e.Code, e.Message)
	}
	return fmt.Sprintf("[%s] %s: %s", e.Code, e.Location, e.Message)
}

func staticError(code string, kind ErrorKind, loc *Location, format string, args ...any) *StaticError {
	return &StaticError{
		Code:     code,
		Kind:     kind,
		Message:  fmt.Sprintf(format, args...),
		Location: loc,
	}
}

type ErrorHandler func(*StaticError)

// Diagnostics collects the static errors of one compilation. The first one
// reported is the one that makes the compilation fail.
type Diagnostics struct {
	handler ErrorHandler
	errors  []*StaticError
}

func NewDiagnostics(handler ErrorHandler) *Diagnostics {
	return &Diagnostics{
		handler: handler,
	}
}

func (d *Diagnostics) Report(err error) {
	if err == nil || errors.Is(err, errAbort) {
		return
	}
	var se *StaticError
	if !errors.As(err, &se) {
		se = staticError(CodeSyntax, KindSyntax, nil, "%s", err)
	}
	for _, e := range d.errors {
		if e == se {
			return
		}
	}
	d.errors = append(d.errors, se)
	if d.handler != nil {
		d.handler(se)
	}
}

func (d *Diagnostics) First() *StaticError {
	if len(d.errors) == 0 {
		return nil
	}
	return d.errors[0]
}

func (d *Diagnostics) Count() int {
	return len(d.errors)
}

func (d *Diagnostics) Errors() []*StaticError {
	return d.errors
}

func (d *Diagnostics) Err() error {
	if len(d.errors) == 0 {
		return nil
	}
	return &CompileError{
		First:  d.errors[0],
		Errors: d.errors,
	}
}

type CompileError struct {
	First  *StaticError
	Errors []*StaticError
}

func (e *CompileError) Error() string {
	if len(e.Errors) <= 1 {
		return e.First.Error()
	}
	var str strings.Builder
	str.WriteString(e.First.Error())
	fmt.Fprintf(&str, " (and %d more errors)", len(e.Errors)-1)
	return str.String()
}

func (e *CompileError) Unwrap() []error {
	list := make([]error, 0, len(e.Errors))
	for _, err := range e.Errors {
		list = append(list, err)
	}
	return list
}

// Codes returns the codes of all the errors in the order they were raised.
func (e *CompileError) Codes() []string {
	var list []string
	for _, err := range e.Errors {
		list = append(list, err.Code)
	}
	return list
}
