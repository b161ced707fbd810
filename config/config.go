// Package config loads the compiler settings of the xq command from a YAML
// file.
package config

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/midbel/xq/casing"
	"github.com/midbel/xq/modules"
	"github.com/midbel/xq/xml"
	"github.com/midbel/xq/xpath"
	"gopkg.in/yaml.v2"
)

var ErrInvalid = errors.New("invalid configuration")

type Config struct {
	Language          string            `yaml:"language"`
	XMLVersion        string            `yaml:"xml-version"`
	BaseURI           string            `yaml:"base-uri"`
	Features          []string          `yaml:"features"`
	Namespaces        map[string]string `yaml:"namespaces"`
	ElementNamespace  string            `yaml:"default-element-namespace"`
	FunctionNamespace string            `yaml:"default-function-namespace"`
	Variables         []Variable        `yaml:"variables"`
	Modules           Modules           `yaml:"modules"`

	// dir is the directory of the file the configuration was loaded from.
	dir string
}

type Variable struct {
	Name string `yaml:"name"`
	Type string `yaml:"type"`
}

type Modules struct {
	Dir     string              `yaml:"dir"`
	Catalog map[string][]string `yaml:"catalog"`
	// Inline maps a module namespace to the text of the module.
	Inline  map[string]string `yaml:"inline"`
	HTTP    bool              `yaml:"http"`
	Timeout time.Duration     `yaml:"timeout"`
	S3      *S3               `yaml:"s3"`
	Cache   bool              `yaml:"cache"`
}

type S3 struct {
	Region string `yaml:"region"`
}

// Load reads the configuration file. Relative module directories are
// resolved against the directory of the file.
func Load(file string) (*Config, error) {
	r, err := os.Open(file)
	if err != nil {
		return nil, err
	}
	defer r.Close()

	cfg, err := Parse(r)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", file, err)
	}
	cfg.dir = filepath.Dir(file)
	return cfg, nil
}

func Parse(r io.Reader) (*Config, error) {
	buf, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	var cfg Config
	if err := yaml.UnmarshalStrict(buf, &cfg); err != nil {
		return nil, fmt.Errorf("%w: %s", ErrInvalid, err)
	}
	return &cfg, nil
}

// Options converts the configuration into compiler options. The module
// resolver is only set when the configuration declares a module source.
func (c *Config) Options() ([]xpath.Option, error) {
	var options []xpath.Option
	switch strings.ToLower(c.Language) {
	case "", "xpath":
	case "xquery":
		options = append(options, xpath.WithLanguage(xpath.LangXQuery))
	default:
		return nil, fmt.Errorf("%w: unknown language %s", ErrInvalid, c.Language)
	}
	switch c.XMLVersion {
	case "", "1.0":
	case "1.1":
		options = append(options, xpath.WithXMLVersion(xml.Version11))
	default:
		return nil, fmt.Errorf("%w: unsupported xml version %s", ErrInvalid, c.XMLVersion)
	}
	if c.Features != nil {
		features, err := parseFeatures(c.Features)
		if err != nil {
			return nil, err
		}
		options = append(options, xpath.WithFeatures(features))
	}
	if c.BaseURI != "" {
		options = append(options, xpath.WithBaseURI(c.BaseURI))
	}
	var namespaces []xpath.Option
	for prefix, uri := range c.Namespaces {
		namespaces = append(namespaces, xpath.WithNamespace(prefix, uri))
	}
	options = append(options, namespaces...)
	if c.ElementNamespace != "" {
		options = append(options, xpath.WithDefaultElementNamespace(c.ElementNamespace))
	}
	if c.FunctionNamespace != "" {
		options = append(options, xpath.WithDefaultFunctionNamespace(c.FunctionNamespace))
	}
	for _, v := range c.Variables {
		if v.Name == "" {
			return nil, fmt.Errorf("%w: variable without name", ErrInvalid)
		}
		if v.Type == "" {
			options = append(options, xpath.WithVariable(v.Name))
			continue
		}
		typ, err := xpath.ParseSequenceType(v.Type, namespaces...)
		if err != nil {
			return nil, fmt.Errorf("%w: variable %s: %s", ErrInvalid, v.Name, err)
		}
		options = append(options, xpath.WithTypedVariable(v.Name, typ))
	}
	resolver, err := c.Resolver()
	if err != nil {
		return nil, err
	}
	if resolver != nil {
		options = append(options, xpath.WithModuleResolver(resolver))
	}
	return options, nil
}

func parseFeatures(list []string) (xpath.Feature, error) {
	features := xpath.FeatureNone
	for _, str := range list {
		switch casing.ToKebab(str) {
		case "higher-order":
			features |= xpath.FeatureHigherOrder
		case "schema-aware":
			features |= xpath.FeatureSchemaAware
		default:
			return 0, fmt.Errorf("%w: unknown feature %s", ErrInvalid, str)
		}
	}
	return features, nil
}

// Resolver builds the module resolver described by the configuration. The
// local file system is always available once a module source is given;
// http(s) and s3 locations must be enabled explicitly.
func (c *Config) Resolver() (xpath.ModuleResolver, error) {
	m := c.Modules
	if m.Dir == "" && len(m.Catalog) == 0 && len(m.Inline) == 0 && !m.HTTP && m.S3 == nil {
		return nil, nil
	}
	dir := m.Dir
	switch {
	case dir == "":
		dir = c.dir
	case !filepath.IsAbs(dir) && c.dir != "":
		dir = filepath.Join(c.dir, dir)
	}
	chain := modules.NewChain()
	chain.Register("file", modules.FileResolver{Dir: dir})
	if m.HTTP {
		web := modules.HTTPResolver{
			Client: &http.Client{Timeout: m.Timeout},
		}
		chain.Register("http", web)
		chain.Register("https", web)
	}
	if m.S3 != nil {
		res, err := modules.NewS3Resolver(m.S3.Region)
		if err != nil {
			return nil, err
		}
		chain.Register("s3", res)
	}

	var fallback modules.First
	if len(m.Inline) > 0 {
		mem := modules.NewMemory()
		for ns, text := range m.Inline {
			mem.Add(ns, "inline:"+ns, text)
		}
		fallback = append(fallback, mem)
	}
	if len(m.Catalog) > 0 {
		cat := modules.Catalog{
			Locations: m.Catalog,
			Next:      chain,
		}
		fallback = append(fallback, cat)
	}
	if len(fallback) > 0 {
		chain.Fallback = fallback
	}
	if m.Cache {
		return modules.NewCache(chain), nil
	}
	return chain, nil
}
