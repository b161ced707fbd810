package casing_test

import (
	"testing"

	"github.com/midbel/xq/casing"
)

func TestCasing(t *testing.T) {
	data := []struct {
		Input string
		Kebab string
		Snake string
	}{
		{Input: "foobar", Kebab: "foobar", Snake: "foobar"},
		{Input: "fooBar", Kebab: "foo-bar", Snake: "foo_bar"},
		{Input: "HigherOrder", Kebab: "higher-order", Snake: "higher_order"},
		{Input: "schema_aware", Kebab: "schema-aware", Snake: "schema_aware"},
		{Input: "  schema  aware ", Kebab: "schema-aware", Snake: "schema_aware"},
		{Input: "higher--order!", Kebab: "higher-order", Snake: "higher_order"},
		{Input: "XMLVersion", Kebab: "xmlversion", Snake: "xmlversion"},
		{Input: "", Kebab: "", Snake: ""},
	}
	for _, d := range data {
		if got := casing.ToKebab(d.Input); got != d.Kebab {
			t.Errorf("%q: kebab mismatched! want %q, got %q", d.Input, d.Kebab, got)
		}
		if got := casing.ToSnake(d.Input); got != d.Snake {
			t.Errorf("%q: snake mismatched! want %q, got %q", d.Input, d.Snake, got)
		}
	}
}
