package xpath

import (
	"context"

	"github.com/midbel/xq/xml"
)

// ModuleSource is the text of a library module returned by a resolver.
type ModuleSource struct {
	URI  string
	Text string
}

// ModuleResolver locates the library modules of a namespace. The hints
// are the location URIs given in the import, possibly none.
type ModuleResolver interface {
	Resolve(ctx context.Context, namespace string, hints []string) ([]ModuleSource, error)
}

type ResolverFunc func(context.Context, string, []string) ([]ModuleSource, error)

func (fn ResolverFunc) Resolve(ctx context.Context, namespace string, hints []string) ([]ModuleSource, error) {
	return fn(ctx, namespace, hints)
}

type config struct {
	lang       Language
	features   Feature
	version    xml.Version
	baseURI    string
	module     string
	baseLine   int
	namespaces []NamespaceBinding
	elemNS     string
	funcNS     string
	variables  []hostVariable
	tracer     Tracer
	resolver   ModuleResolver
	handler    ErrorHandler
	keepTree   bool
}

type hostVariable struct {
	name string
	typ  *SequenceType
}

func defaultConfig() *config {
	return &config{
		lang:     LangXPath,
		features: FeatureDefault,
		version:  xml.Version10,
		baseLine: 1,
		tracer:   discardTracer{},
	}
}

type Option func(*config)

// WithNamespace binds a prefix in the static context of every unit.
func WithNamespace(prefix, uri string) Option {
	return func(c *config) {
		ns := NamespaceBinding{
			Prefix: prefix,
			URI:    uri,
		}
		c.namespaces = append(c.namespaces, ns)
	}
}

func WithDefaultElementNamespace(uri string) Option {
	return func(c *config) {
		c.elemNS = uri
	}
}

func WithDefaultFunctionNamespace(uri string) Option {
	return func(c *config) {
		c.funcNS = uri
	}
}

func WithBaseURI(uri string) Option {
	return func(c *config) {
		c.baseURI = uri
	}
}

func WithFeatures(features Feature) Option {
	return func(c *config) {
		c.features = features
	}
}

func WithXMLVersion(version xml.Version) Option {
	return func(c *config) {
		c.version = version
	}
}

func WithModuleResolver(resolver ModuleResolver) Option {
	return func(c *config) {
		c.resolver = resolver
	}
}

// WithErrorHandler registers a function called with every static error as
// soon as it is raised.
func WithErrorHandler(handler ErrorHandler) Option {
	return func(c *config) {
		c.handler = handler
	}
}

func WithTracer(tracer Tracer) Option {
	return func(c *config) {
		if tracer == nil {
			tracer = discardTracer{}
		}
		c.tracer = tracer
	}
}

// WithVariable declares an external variable provided by the host. The
// name is a lexical QName resolved with the namespaces given by
// WithNamespace.
func WithVariable(name string) Option {
	return func(c *config) {
		c.variables = append(c.variables, hostVariable{name: name})
	}
}

// WithTypedVariable is WithVariable with a declared type.
func WithTypedVariable(name string, typ SequenceType) Option {
	return func(c *config) {
		c.variables = append(c.variables, hostVariable{name: name, typ: &typ})
	}
}

func WithLanguage(lang Language) Option {
	return func(c *config) {
		c.lang = lang
	}
}

// WithModuleURI sets the URI reported in the locations of the main unit.
func WithModuleURI(uri string) Option {
	return func(c *config) {
		c.module = uri
	}
}

// WithBaseLine sets the line number of the first line of the source.
func WithBaseLine(line int) Option {
	return func(c *config) {
		c.baseLine = line
	}
}

// WithoutOptimization keeps the expressions as they were parsed. Constant
// parts are not folded.
func WithoutOptimization() Option {
	return func(c *config) {
		c.keepTree = true
	}
}
