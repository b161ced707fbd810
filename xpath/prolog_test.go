package xpath

import (
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestPrologErrors(t *testing.T) {
	tests := []struct {
		Query string
		Codes []string
	}{
		{
			Query: "declare boundary-space preserve; declare boundary-space strip; 1",
			Codes: []string{CodeBoundarySpace},
		},
		{
			Query: "declare construction strip; declare construction preserve; 1",
			Codes: []string{CodeConstruction},
		},
		{
			Query: "declare ordering ordered; declare ordering unordered; 1",
			Codes: []string{CodeOrdering},
		},
		{
			Query: "declare default order empty least; declare default order empty greatest; 1",
			Codes: []string{CodeEmptyOrder},
		},
		{
			Query: "declare copy-namespaces preserve, inherit; declare copy-namespaces no-preserve, no-inherit; 1",
			Codes: []string{CodeCopyNamespaces},
		},
		{
			Query: "declare base-uri 'http://example.com/'; declare base-uri 'http://example.org/'; 1",
			Codes: []string{CodeBaseURI},
		},
		{
			Query: "declare default element namespace 'urn:a'; declare default element namespace 'urn:b'; 1",
			Codes: []string{CodeDefaultNamespace},
		},
		{
			Query: "declare default function namespace 'urn:a'; declare default function namespace 'urn:b'; 1",
			Codes: []string{CodeDefaultNamespace},
		},
		{
			Query: "declare default collation 'http://www.w3.org/2005/xpath-functions/collation/codepoint'; declare default collation 'http://www.w3.org/2005/xpath-functions/collation/codepoint'; 1",
			Codes: []string{CodeCollation},
		},
		{
			Query: "declare namespace a = 'urn:a'; declare namespace a = 'urn:b'; 1",
			Codes: []string{CodeDuplicatePrefix},
		},
		{
			Query: "declare namespace xml = 'urn:a'; 1",
			Codes: []string{CodeXMLPrefix},
		},
		{
			Query: "declare variable $x := 1; declare namespace a = 'urn:a'; 1",
			Codes: []string{CodeSyntax},
		},
		{
			Query: "declare function local:f() { 1 }; declare boundary-space strip; 1",
			Codes: []string{CodeSyntax},
		},
		{
			Query: "declare variable $x := 1; declare variable $x := 2; $x",
			Codes: []string{CodeDuplicateVar},
		},
		{
			Query: "declare function local:f() { 1 }; declare function local:f() { 2 }; 1",
			Codes: []string{CodeDuplicateFunc},
		},
		{
			Query: "declare function f() { 1 }; 1",
			Codes: []string{CodeReservedNamespace},
		},
		{
			Query: "declare function local:f($a, $a) { 1 }; 1",
			Codes: []string{CodeDuplicateParam},
		},
		{
			Query: "declare %private %public function local:f() { 1 }; 1",
			Codes: []string{CodeAnnotation},
		},
		{
			Query: "declare context item := 1; declare context item := 2; .",
			Codes: []string{CodeContextItem},
		},
		{
			Query: "declare variable $x; 1",
			Codes: []string{CodeSyntax},
		},
		{
			Query: "declare default decimal-format percent = 'pc'; 1",
			Codes: []string{CodeDecimalValue},
		},
		{
			Query: "declare default decimal-format digit = '#' digit = '#'; 1",
			Codes: []string{CodeDecimalProperty},
		},
		{
			Query: "declare decimal-format local:d NaN = 'nan'; declare decimal-format local:d NaN = 'NaN'; 1",
			Codes: []string{CodeDecimalFormat},
		},
		{
			Query: "xquery version '4.0'; 1",
			Codes: []string{CodeVersion},
		},
		{
			Query: "xquery version '3.1' encoding 'utf 8'; 1",
			Codes: []string{CodeEncoding},
		},
		{
			Query: "import schema 'urn:s'; 1",
			Codes: []string{CodeSchemaImport},
		},
		{
			Query: "import module namespace m = ''; 1",
			Codes: []string{CodeEmptyNamespace},
		},
		{
			Query: "declare variable $x := $x + 1; $x",
			Codes: []string{CodeCircular},
		},
		{
			Query: "declare variable $a := local:f(); declare function local:f() { $a }; $a",
			Codes: []string{CodeCircular},
		},
		{
			Query: "declare default collation 'urn:unknown'; 1",
			Codes: []string{CodeCollation},
		},
		{
			Query: "declare boundary-space bogus; declare ordering ordered; declare ordering unordered; 1 +",
			Codes: []string{CodeSyntax, CodeOrdering, CodeSyntax},
		},
		{
			Query: "declare variable $x := (1; declare namespace a = 'urn:a'; declare variable $y := $z; 1",
			Codes: []string{CodeSyntax, CodeSyntax},
		},
		{
			Query: "declare function local:f() { <a>{;}</a> ] }; declare function local:g() { 1 }; local:g()",
			Codes: []string{CodeSyntax},
		},
		{
			Query: `declare function local:f() { 1 ] <a b="/>">;</a> }; declare function local:g() { 1 }; declare variable $v := ]; local:g()`,
			Codes: []string{CodeSyntax, CodeSyntax},
		},
		{
			Query: "declare variable $x := <a>;</a> ]; declare variable $y := ]; 1",
			Codes: []string{CodeSyntax, CodeSyntax},
		},
		{
			Query: "declare variable $x := <a><!-- ; --><b c=';'/>{1 < 2}</a> ]; declare variable $y := 1; $y",
			Codes: []string{CodeSyntax},
		},
	}
	for _, d := range tests {
		_, err := CompileQuery(d.Query)
		if err == nil {
			t.Errorf("%s: expected error but query compiled", d.Query)
			continue
		}
		if diff := cmp.Diff(d.Codes, compileCodes(err)); diff != "" {
			t.Errorf("%s: codes mismatched: %s", d.Query, diff)
		}
	}
}

func TestPrologSetters(t *testing.T) {
	query := `
declare boundary-space preserve;
declare construction preserve;
declare ordering unordered;
declare default order empty greatest;
declare copy-namespaces no-preserve, no-inherit;
declare base-uri 'http://example.com/base/';
declare namespace ex = 'urn:example';
declare default function namespace 'urn:functions';
declare option output:method 'xml';
declare option ex:flag 'on';
1
`
	q, err := CompileQuery(query)
	if err != nil {
		t.Fatalf("fail to compile query: %s", err)
	}
	sc := q.Static
	switch {
	case !sc.PreserveBoundarySpace:
		t.Errorf("boundary space should be preserved")
	case !sc.PreserveConstruction:
		t.Errorf("construction mode should be preserve")
	case sc.Ordered:
		t.Errorf("ordering mode should be unordered")
	case sc.EmptyLeast:
		t.Errorf("empty sequence should sort greatest")
	case sc.PreserveNamespaces || sc.InheritNamespaces:
		t.Errorf("copy namespaces should be no-preserve, no-inherit")
	}
	if sc.BaseURI != "http://example.com/base/" {
		t.Errorf("unexpected base URI %s", sc.BaseURI)
	}
	if uri, ok := sc.ResolvePrefix("ex"); !ok || uri != "urn:example" {
		t.Errorf("prefix ex not bound to urn:example: %q", uri)
	}
	if sc.DefaultFunctionNS != "urn:functions" {
		t.Errorf("unexpected default function namespace %s", sc.DefaultFunctionNS)
	}
	if sc.Serialization["method"] != "xml" {
		t.Errorf("serialization parameter not recorded")
	}
	if sc.Options["Q{urn:example}flag"] != "on" {
		t.Errorf("option not recorded: %v", sc.Options)
	}
}

func TestPrologVersion(t *testing.T) {
	q, err := CompileQuery("xquery version '3.1' encoding 'UTF-8'; 1")
	if err != nil {
		t.Fatalf("fail to compile query: %s", err)
	}
	if q.Main.Version != "3.1" || q.Main.Encoding != "UTF-8" {
		t.Errorf("unexpected version declaration %s %s", q.Main.Version, q.Main.Encoding)
	}
}

func TestPrologForwardReferences(t *testing.T) {
	query := `
declare function local:a() { local:b() };
declare variable $later := local:a() + $last;
declare function local:b() { 1 };
declare variable $last := 2;
$later
`
	q, err := CompileQuery(query)
	if err != nil {
		t.Fatalf("fail to compile query: %s", err)
	}
	if len(q.Main.Functions) != 2 || len(q.Main.Variables) != 2 {
		t.Fatalf("unexpected number of declarations")
	}
	var (
		decl  = q.Main.Functions[1]
		bound bool
	)
	Walk(q.Main.Functions[0].Body, func(e Expr) bool {
		if call, ok := e.(*Call); ok {
			bound = call.Func == Function(decl)
		}
		return true
	})
	if !bound {
		t.Errorf("call to local:b not bound to its declaration")
	}
	Walk(q.Main.Variables[0].Init, func(e Expr) bool {
		if ref, ok := e.(*VarRef); ok && ref.Global != q.Main.Variables[1] {
			t.Errorf("reference to $last not bound to its declaration")
		}
		return true
	})
}

func TestPrologMemoFunction(t *testing.T) {
	query := `
declare option xq:memo-function 'true';
declare function local:f() { 1 };
declare function local:g() { 2 };
local:f() + local:g()
`
	q, err := CompileQuery(query)
	if err != nil {
		t.Fatalf("fail to compile query: %s", err)
	}
	if !q.Main.Functions[0].Memo {
		t.Errorf("local:f should be memoized")
	}
	if q.Main.Functions[1].Memo {
		t.Errorf("local:g should not be memoized")
	}
}

func TestPrologContextItem(t *testing.T) {
	q, err := CompileQuery("declare context item as xs:string := 'a'; . || 'b'")
	if err != nil {
		t.Fatalf("fail to compile query: %s", err)
	}
	if q.Main.Context == nil || q.Main.Context.Type == nil {
		t.Fatalf("context item declaration not recorded")
	}
	if q.Static.ContextItem == nil {
		t.Errorf("static type of context item not recorded")
	}
}

func TestSchemaSealOrdering(t *testing.T) {
	query := `
import schema 'urn:s';
import schema 'urn:s';
declare default collation 'urn:bad';
import module 'urn:m';
declare variable $x := 1;
$x
`
	_, err := CompileQuery(query, WithFeatures(FeatureDefault|FeatureSchemaAware))
	want := []string{CodeDuplicateSchema, CodeCollation, CodeModuleNotFound}
	if diff := cmp.Diff(want, compileCodes(err)); diff != "" {
		t.Errorf("codes mismatched: %s", diff)
	}
}

func TestSchemaImport(t *testing.T) {
	query := `
import schema namespace s = 'urn:s' at 'a.xsd', 'b.xsd';
import schema default element namespace 'urn:d';
1
`
	q, err := CompileQuery(query, WithFeatures(FeatureDefault|FeatureSchemaAware))
	if err != nil {
		t.Fatalf("fail to compile query: %s", err)
	}
	if len(q.Main.Schemas) != 2 {
		t.Fatalf("expected 2 schema imports, got %d", len(q.Main.Schemas))
	}
	if diff := cmp.Diff([]string{"a.xsd", "b.xsd"}, q.Main.Schemas[0].Hints); diff != "" {
		t.Errorf("hints mismatched: %s", diff)
	}
	if !q.Static.Schemas["urn:s"] || !q.Static.Schemas["urn:d"] {
		t.Errorf("schemas not sealed: %v", q.Static.Schemas)
	}
	if ns := q.Static.DefaultElementNamespace(); ns != "urn:d" {
		t.Errorf("unexpected default element namespace %s", ns)
	}
}

func TestCollations(t *testing.T) {
	tests := []struct {
		URI  string
		Base string
		Fail bool
	}{
		{URI: "http://www.w3.org/2005/xpath-functions/collation/codepoint"},
		{URI: "http://www.w3.org/2005/xpath-functions/collation/html-ascii-case-insensitive"},
		{URI: "http://www.w3.org/2013/collation/UCA"},
		{URI: "http://www.w3.org/2013/collation/UCA?lang=en;strength=primary"},
		{URI: "http://www.w3.org/2013/collation/UCA?fallback=no;bogus=1", Fail: true},
		{URI: "http://www.w3.org/2013/collation/UCA?fallback=no;strength=7", Fail: true},
		{URI: "codepoint", Base: "http://www.w3.org/2005/xpath-functions/collation/"},
		{URI: "codepoint", Fail: true},
		{URI: "urn:unknown", Fail: true},
	}
	for _, d := range tests {
		_, err := resolveCollation(d.URI, d.Base)
		if d.Fail && err == nil {
			t.Errorf("%s: expected error", d.URI)
		}
		if !d.Fail && err != nil {
			t.Errorf("%s: unexpected error: %s", d.URI, err)
		}
	}
}
