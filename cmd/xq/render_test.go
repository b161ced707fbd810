package main

import (
	"testing"
)

func TestSnippet(t *testing.T) {
	tests := []struct {
		Text   string
		Line   int
		Column int
		Want   string
		Caret  string
		Fail   bool
	}{
		{Text: "1 +", Line: 1, Column: 4, Want: "1 +", Caret: "   ^"},
		{Text: "let $x := 1\n\treturn $y", Line: 2, Column: 9, Want: "\treturn $y", Caret: "\t       ^"},
		{Text: "é + x", Line: 1, Column: 5, Want: "é + x", Caret: "    ^"},
		{Text: "1\r\n+ ?", Line: 2, Column: 3, Want: "+ ?", Caret: "  ^"},
		{Text: "abc", Line: 1, Column: 10, Want: "abc", Caret: "   ^"},
		{Text: "abc", Line: 2, Column: 1, Fail: true},
		{Text: "abc", Line: 0, Column: 1, Fail: true},
	}
	for _, d := range tests {
		line, caret, ok := snippet(d.Text, d.Line, d.Column)
		if ok == d.Fail {
			t.Errorf("%q (%d:%d): unexpected result %t", d.Text, d.Line, d.Column, ok)
			continue
		}
		if d.Fail {
			continue
		}
		if line != d.Want {
			t.Errorf("%q: lines mismatched! want %q, got %q", d.Text, d.Want, line)
		}
		if caret != d.Caret {
			t.Errorf("%q: carets mismatched! want %q, got %q", d.Text, d.Caret, caret)
		}
	}
}
