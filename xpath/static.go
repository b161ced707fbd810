package xpath

import (
	"github.com/midbel/xq/environ"
	"github.com/midbel/xq/xml"
)

type Language int8

const (
	LangXPath Language = iota
	LangXQuery
)

func (g Language) String() string {
	switch g {
	case LangXPath:
		return "xpath"
	case LangXQuery:
		return "xquery"
	default:
		return "unknown"
	}
}

type Feature uint8

const (
	FeatureHigherOrder Feature = 1 << iota
	FeatureSchemaAware

	FeatureNone    Feature = 0
	FeatureDefault         = FeatureHigherOrder
)

func (f Feature) Has(other Feature) bool {
	return f&other == other
}

type DecimalFormat struct {
	Name       xml.QName
	Properties map[string]string
}

var decimalProperties = []string{
	"decimal-separator",
	"grouping-separator",
	"infinity",
	"minus-sign",
	"NaN",
	"percent",
	"per-mille",
	"zero-digit",
	"digit",
	"pattern-separator",
	"exponent-separator",
}

// StaticContext holds what a unit knows at compile time. Each unit has its
// own, prepared from the options then modified by the prolog.
type StaticContext struct {
	Language Language
	Features Feature
	Checker  xml.NameChecker
	Version  xml.Version

	BaseURI           string
	Namespaces        environ.Environ[string]
	DefaultFunctionNS string
	DefaultCollation  string

	PreserveBoundarySpace bool
	PreserveConstruction  bool
	Ordered               bool
	EmptyLeast            bool
	PreserveNamespaces    bool
	InheritNamespaces     bool

	DecimalFormats map[string]*DecimalFormat
	Options        map[string]string
	Serialization  map[string]string
	// Schemas holds the target namespaces of the imported schemas once the
	// schema imports have been sealed.
	Schemas     map[string]bool
	ContextItem *SequenceType
}

var predeclared = map[string]string{
	"xml":    xml.NamespaceXML,
	"xs":     xml.NamespaceXS,
	"xsi":    xml.NamespaceXSI,
	"fn":     xml.NamespaceFN,
	"local":  xml.NamespaceLocal,
	"math":   xml.NamespaceMath,
	"map":    xml.NamespaceMap,
	"array":  xml.NamespaceArray,
	"err":    xml.NamespaceErr,
	"output": xml.NamespaceOutput,
	"xq":     xml.NamespaceXQ,
}

const collationCodepoint = "http://www.w3.org/2005/xpath-functions/collation/codepoint"

func newStaticContext(cfg *config) *StaticContext {
	root := environ.Empty[string]()
	for p, u := range predeclared {
		root.Define(p, u)
	}
	sc := StaticContext{
		Language:           cfg.lang,
		Features:           cfg.features,
		Version:            cfg.version,
		Checker:            xml.Checker(cfg.version),
		BaseURI:            cfg.baseURI,
		Namespaces:         environ.Enclosed(root),
		DefaultFunctionNS:  xml.NamespaceFN,
		DefaultCollation:   collationCodepoint,
		Ordered:            true,
		EmptyLeast:         true,
		PreserveNamespaces: true,
		InheritNamespaces:  true,
		DecimalFormats:     make(map[string]*DecimalFormat),
		Options:            make(map[string]string),
		Serialization:      make(map[string]string),
		Schemas:            make(map[string]bool),
	}
	for _, ns := range cfg.namespaces {
		sc.Namespaces.Define(ns.Prefix, ns.URI)
	}
	if cfg.elemNS != "" {
		sc.Namespaces.Define("", cfg.elemNS)
	}
	if cfg.funcNS != "" {
		sc.DefaultFunctionNS = cfg.funcNS
	}
	return &sc
}

func (s *StaticContext) DefaultElementNamespace() string {
	uri, _ := s.Namespaces.Resolve("")
	return uri
}

// ResolvePrefix returns the namespace bound to a prefix. A prefix bound to
// the empty string is not bound.
func (s *StaticContext) ResolvePrefix(prefix string) (string, bool) {
	uri, err := s.Namespaces.Resolve(prefix)
	if err != nil || uri == "" {
		return "", false
	}
	return uri, true
}

func (s *StaticContext) DeclareNamespace(prefix, uri string) {
	s.Namespaces.Define(prefix, uri)
}

// PushNamespaces opens the scope of the namespaces declared by a direct
// element constructor.
func (s *StaticContext) PushNamespaces() {
	s.Namespaces = environ.Enclosed(s.Namespaces)
}

func (s *StaticContext) PopNamespaces() {
	s.Namespaces = environ.Unwrap(s.Namespaces)
}

// InScope returns the prefixes visible from the current scope with their
// namespace, the default element namespace under the empty prefix.
func (s *StaticContext) InScope() map[string]string {
	set := make(map[string]string)
	for _, p := range s.Namespaces.Names() {
		if uri, ok := s.ResolvePrefix(p); ok {
			set[p] = uri
		}
	}
	return set
}
