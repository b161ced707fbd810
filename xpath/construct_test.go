package xpath

import (
	"errors"
	"testing"
)

func TestConstructors(t *testing.T) {
	tests := []string{
		"<a/>",
		"<a b='1' c=\"{1}\">text {1 + 1} <b/></a>",
		"<a xmlns:p='urn:p'><p:b p:c='1'/></a>",
		"<a xmlns='urn:default'><b/></a>",
		"<a><!-- comment --><?pi data?><![CDATA[<x>]]></a>",
		"<a>{{}}</a>",
		"<a>{}</a>",
		"<a b='{{x}}'/>",
		"<a>&lt;&#x41;&amp;</a>",
		"<!-- comment -->",
		"<?pi data?>",
		"element a { attribute b { 1 }, text { 'x' } }",
		"element { 'a' } { () }",
		"document { <a/> }",
		"comment { 'c' }",
		"processing-instruction pi { 'x' }",
		"namespace p { 'urn:p' }",
		"for $i in 1 to 3 return <item id='{$i}'>{$i * 2}</item>",
	}
	for _, str := range tests {
		_, err := CompileQuery(str)
		if err != nil {
			t.Errorf("%s: fail to compile constructor: %s", str, err)
		}
	}
}

func TestConstructorErrors(t *testing.T) {
	tests := []struct {
		Expr string
		Code string
	}{
		{Expr: "<a></b>", Code: CodeEndTag},
		{Expr: "<a b='1' b='2'/>", Code: CodeDuplicateAttr},
		{Expr: "<a xmlns:p='urn:p' xmlns:p='urn:q'/>", Code: CodeDuplicateAttr},
		{Expr: "<a xmlns:xml='urn:x'/>", Code: CodeXMLPrefix},
		{Expr: "<a>", Code: CodeSyntax},
		{Expr: "<a b='}'/>", Code: CodeSyntax},
		{Expr: "<a b='{1'/>", Code: CodeSyntax},
		{Expr: "<a>}</a>", Code: CodeSyntax},
		{Expr: "<a b='1'c='2'/>", Code: CodeSyntax},
		{Expr: "<p:a/>", Code: CodeUnboundPrefix},
		{Expr: "<a>&#0;</a>", Code: CodeCharRef},
		{Expr: "<!-- open", Code: CodeSyntax},
	}
	for _, d := range tests {
		_, err := CompileQuery(d.Expr)
		var se *StaticError
		if !errors.As(err, &se) {
			t.Errorf("%s: expected static error, got %v", d.Expr, err)
			continue
		}
		if se.Code != d.Code {
			t.Errorf("%s: codes mismatched! want %s, got %s", d.Expr, d.Code, se.Code)
		}
	}
}

func TestConstructorsInXPath(t *testing.T) {
	if _, err := Compile("element a { 1 }"); err == nil {
		t.Errorf("computed constructor should be rejected in XPath")
	}
}

func TestAttributeValueTemplate(t *testing.T) {
	q, err := CompileQuery("<a b=\"x{$v}y\"/>", WithVariable("v"))
	if err != nil {
		t.Fatalf("fail to compile query: %s", err)
	}
	elem, ok := q.Body.(*ElementConstructor)
	if !ok {
		t.Fatalf("expected element constructor, got %s", Debug(q.Body))
	}
	if len(elem.Attributes) != 1 {
		t.Fatalf("expected 1 attribute, got %d", len(elem.Attributes))
	}
	attr := elem.Attributes[0].(*AttributeConstructor)
	if len(attr.Value) != 3 {
		t.Fatalf("expected 3 parts in attribute value, got %d", len(attr.Value))
	}
	ref, ok := attr.Value[1].(*VarRef)
	if !ok {
		t.Fatalf("expected variable reference, got %s", Debug(attr.Value[1]))
	}
	loc := ref.Location()
	if loc.Line != 1 || loc.Column != 9 {
		t.Errorf("unexpected location of variable reference %s", loc)
	}
	if loc.Parent == nil || loc.Parent.Line != 1 || loc.Parent.Column != 4 {
		t.Errorf("location should point to the attribute: %v", loc.Parent)
	}
	if elem.Location().Parent != nil {
		t.Errorf("element should not have a parent location")
	}
}

func TestBoundarySpace(t *testing.T) {
	tests := []struct {
		Query string
		Want  int
	}{
		{Query: "<a> <b/> </a>", Want: 1},
		{Query: "declare boundary-space preserve; <a> <b/> </a>", Want: 3},
		{Query: "<a>text {1} <b/></a>", Want: 3},
		{Query: "<a> &#x20; </a>", Want: 1},
		{Query: "<a><![CDATA[ ]]></a>", Want: 1},
	}
	for _, d := range tests {
		q, err := CompileQuery(d.Query)
		if err != nil {
			t.Errorf("%s: fail to compile query: %s", d.Query, err)
			continue
		}
		elem, ok := q.Body.(*ElementConstructor)
		if !ok {
			t.Errorf("%s: expected element constructor, got %s", d.Query, Debug(q.Body))
			continue
		}
		if len(elem.Content) != d.Want {
			t.Errorf("%s: content length mismatched! want %d, got %d", d.Query, d.Want, len(elem.Content))
		}
	}
}

func TestElementNamespaces(t *testing.T) {
	q, err := CompileQuery("<p:a xmlns:p='urn:p'><p:b/><c/></p:a>")
	if err != nil {
		t.Fatalf("fail to compile query: %s", err)
	}
	elem := q.Body.(*ElementConstructor)
	if elem.Name.Uri != "urn:p" {
		t.Errorf("element not in namespace urn:p: %s", elem.Name.ExpandedName())
	}
	if len(elem.Namespaces) != 1 || elem.Namespaces[0].Prefix != "p" {
		t.Errorf("namespace declaration not recorded")
	}
	if _, ok := q.Static.ResolvePrefix("p"); ok {
		t.Errorf("prefix p should not be visible outside of the element")
	}
	inner := elem.Content[1].(*ElementConstructor)
	if inner.Name.Uri != "" {
		t.Errorf("unprefixed element should not be in a namespace: %s", inner.Name.ExpandedName())
	}
}
