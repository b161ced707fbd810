package environ_test

import (
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/midbel/xq/environ"
)

func TestEnclosed(t *testing.T) {
	top := environ.Empty[string]()
	top.Define("xs", "http://www.w3.org/2001/XMLSchema")
	top.Define("a", "urn:a")

	inner := environ.Enclosed(top)
	inner.Define("a", "urn:inner")

	if v, err := inner.Resolve("a"); err != nil || v != "urn:inner" {
		t.Errorf("inner scope should shadow outer definition, got %q (%v)", v, err)
	}
	if v, err := inner.Resolve("xs"); err != nil || v != "http://www.w3.org/2001/XMLSchema" {
		t.Errorf("outer definition should be visible, got %q (%v)", v, err)
	}
	if inner.Defined("xs") {
		t.Errorf("xs is not defined in the local scope")
	}
	if _, err := inner.Resolve("b"); !errors.Is(err, environ.ErrDefined) {
		t.Errorf("expected undefined error, got %v", err)
	}
	if diff := cmp.Diff([]string{"a", "xs"}, inner.Names()); diff != "" {
		t.Errorf("names mismatched (-want +got):\n%s", diff)
	}

	outer := environ.Unwrap(inner)
	if v, _ := outer.Resolve("a"); v != "urn:a" {
		t.Errorf("unwrap should restore outer scope, got %q", v)
	}
	if environ.Unwrap(top) != top {
		t.Errorf("unwrapping a top level scope returns itself")
	}
}

func TestClone(t *testing.T) {
	top := environ.Empty[int]()
	top.Define("x", 1)
	inner := environ.Enclosed(top)
	inner.Define("y", 2)

	c := inner.(interface{ Clone() environ.Environ[int] }).Clone()
	top.Define("x", 10)
	if v, _ := c.Resolve("x"); v != 1 {
		t.Errorf("clone should not see later definitions, got %d", v)
	}
}
