package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/midbel/xq/xpath"
)

const sample = `
language: xquery
xml-version: "1.1"
base-uri: http://example.com/
features: [HigherOrder]
namespaces:
  ex: urn:example
default-element-namespace: urn:elements
variables:
  - name: ex:limit
    type: xs:integer
  - name: input
modules:
  dir: lib
  timeout: 5s
  http: true
  catalog:
    urn:math: [math.xq]
  inline:
    urn:inline: 'module namespace i = "urn:inline"; declare function i:one() { 1 };'
`

func TestParse(t *testing.T) {
	cfg, err := Parse(strings.NewReader(sample))
	if err != nil {
		t.Fatalf("fail to parse configuration: %s", err)
	}
	want := Config{
		Language:         "xquery",
		XMLVersion:       "1.1",
		BaseURI:          "http://example.com/",
		Features:         []string{"HigherOrder"},
		Namespaces:       map[string]string{"ex": "urn:example"},
		ElementNamespace: "urn:elements",
		Variables: []Variable{
			{Name: "ex:limit", Type: "xs:integer"},
			{Name: "input"},
		},
		Modules: Modules{
			Dir:     "lib",
			Timeout: 5 * time.Second,
			HTTP:    true,
			Catalog: map[string][]string{"urn:math": {"math.xq"}},
			Inline:  map[string]string{"urn:inline": `module namespace i = "urn:inline"; declare function i:one() { 1 };`},
		},
	}
	if diff := cmp.Diff(want, *cfg, cmpopts.IgnoreUnexported(Config{})); diff != "" {
		t.Errorf("configurations mismatched: %s", diff)
	}
}

func TestParseErrors(t *testing.T) {
	tests := []string{
		"language: [xquery",
		"unknown-key: 1",
	}
	for _, str := range tests {
		_, err := Parse(strings.NewReader(str))
		if !errors.Is(err, ErrInvalid) {
			t.Errorf("%s: expected invalid configuration, got %v", str, err)
		}
	}
}

func TestOptionsErrors(t *testing.T) {
	tests := []Config{
		{Language: "xslt"},
		{XMLVersion: "2.0"},
		{Features: []string{"streaming"}},
		{Variables: []Variable{{Type: "xs:string"}}},
		{Variables: []Variable{{Name: "x", Type: "xs:string xs:string"}}},
	}
	for _, cfg := range tests {
		_, err := cfg.Options()
		if !errors.Is(err, ErrInvalid) {
			t.Errorf("%+v: expected invalid configuration, got %v", cfg, err)
		}
	}
}

func TestOptions(t *testing.T) {
	dir := t.TempDir()
	lib := filepath.Join(dir, "lib")
	if err := os.Mkdir(lib, 0o755); err != nil {
		t.Fatal(err)
	}
	math := `module namespace m = "urn:math"; declare function m:double($x) { $x * 2 };`
	if err := os.WriteFile(filepath.Join(lib, "math.xq"), []byte(math), 0o644); err != nil {
		t.Fatal(err)
	}
	file := filepath.Join(dir, "xq.yml")
	if err := os.WriteFile(file, []byte(sample), 0o644); err != nil {
		t.Fatal(err)
	}
	cfg, err := Load(file)
	if err != nil {
		t.Fatalf("fail to load configuration: %s", err)
	}
	options, err := cfg.Options()
	if err != nil {
		t.Fatalf("fail to build options: %s", err)
	}
	query := `
import module namespace m = "urn:math";
import module namespace i = "urn:inline";
m:double($ex:limit) + i:one() + count($input)
`
	q, err := xpath.CompileQuery(query, options...)
	if err != nil {
		t.Fatalf("fail to compile query: %s", err)
	}
	if len(q.Units) != 3 {
		t.Errorf("expected 3 units, got %d", len(q.Units))
	}
	if ns := q.Static.DefaultElementNamespace(); ns != "urn:elements" {
		t.Errorf("unexpected default element namespace %s", ns)
	}
	if q.Static.BaseURI != "http://example.com/" {
		t.Errorf("unexpected base URI %s", q.Static.BaseURI)
	}
}

func TestResolverDisabled(t *testing.T) {
	var cfg Config
	res, err := cfg.Resolver()
	if err != nil || res != nil {
		t.Errorf("no resolver expected without module source: %v, %v", res, err)
	}
}
