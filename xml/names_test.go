package xml_test

import (
	"errors"
	"testing"

	"github.com/midbel/xq/xml"
)

func TestParseName(t *testing.T) {
	tests := []struct {
		Input string
		Want  xml.QName
		Fail  bool
	}{
		{Input: "item", Want: xml.LocalName("item")},
		{Input: "xs:integer", Want: xml.QualifiedName("integer", "xs")},
		{Input: "Q{urn:test}item", Want: xml.ExpandedName("item", "", "urn:test")},
		{Input: ":item", Fail: true},
		{Input: "xs:", Fail: true},
		{Input: "Q{urn:test", Fail: true},
	}
	for _, d := range tests {
		got, err := xml.ParseName(d.Input)
		if d.Fail {
			if !errors.Is(err, xml.ErrName) {
				t.Errorf("%s: expected invalid name error, got %v", d.Input, err)
			}
			continue
		}
		if err != nil {
			t.Errorf("%s: unexpected error: %s", d.Input, err)
			continue
		}
		if got != d.Want {
			t.Errorf("%s: names mismatched! want %#v, got %#v", d.Input, d.Want, got)
		}
	}
}

func TestExpandedName(t *testing.T) {
	a := xml.ExpandedName("item", "a", "urn:test")
	b := xml.ExpandedName("item", "b", "urn:test")
	if !a.Equal(b) {
		t.Errorf("names with same uri and local part should be equal")
	}
	if got := a.ExpandedName(); got != "Q{urn:test}item" {
		t.Errorf("unexpected expanded name %s", got)
	}
	if got := a.QualifiedName(); got != "a:item" {
		t.Errorf("unexpected qualified name %s", got)
	}
}

func TestChecker(t *testing.T) {
	x10 := xml.Checker(xml.Version10)
	x11 := xml.Checker(xml.Version11)
	tests := []struct {
		Name string
		Ok   bool
	}{
		{Name: "item", Ok: true},
		{Name: "_item-1.2", Ok: true},
		{Name: "1item", Ok: false},
		{Name: "-item", Ok: false},
		{Name: "a:b", Ok: false},
		{Name: "", Ok: false},
	}
	for _, d := range tests {
		if got := x10.IsNCName(d.Name); got != d.Ok {
			t.Errorf("xml 1.0 %q: want %t, got %t", d.Name, d.Ok, got)
		}
		if got := x11.IsNCName(d.Name); got != d.Ok {
			t.Errorf("xml 1.1 %q: want %t, got %t", d.Name, d.Ok, got)
		}
	}
	if !x10.IsQName("xs:integer") {
		t.Errorf("xs:integer should be a valid qname")
	}
	if x10.IsValidChar(0x1) {
		t.Errorf("#x1 is not allowed in xml 1.0")
	}
	if !x11.IsValidChar(0x1) {
		t.Errorf("#x1 is allowed in xml 1.1")
	}
}

func TestDecodeCharRef(t *testing.T) {
	checker := xml.Checker(xml.Version10)
	tests := []struct {
		Ref  string
		Want rune
		Fail bool
	}{
		{Ref: "65", Want: 'A'},
		{Ref: "x41", Want: 'A'},
		{Ref: "x20AC", Want: '€'},
		{Ref: "0", Fail: true},
		{Ref: "x", Fail: true},
		{Ref: "xZZ", Fail: true},
		{Ref: "xD800", Fail: true},
	}
	for _, d := range tests {
		got, err := xml.DecodeCharRef(d.Ref, checker)
		if d.Fail {
			if !errors.Is(err, xml.ErrCharRef) {
				t.Errorf("%s: expected error, got %v", d.Ref, err)
			}
			continue
		}
		if err != nil {
			t.Errorf("%s: unexpected error: %s", d.Ref, err)
			continue
		}
		if got != d.Want {
			t.Errorf("%s: want %q, got %q", d.Ref, d.Want, got)
		}
	}
	if _, err := xml.DecodeEntity("nbsp"); !errors.Is(err, xml.ErrEntity) {
		t.Errorf("nbsp is not a predefined entity")
	}
	if str, _ := xml.DecodeEntity("amp"); str != "&" {
		t.Errorf("amp should decode to &, got %s", str)
	}
}
