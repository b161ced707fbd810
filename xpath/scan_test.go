package xpath

import (
	"testing"

	"github.com/google/go-cmp/cmp"
)

type scanStep struct {
	Mode    LexMode
	Type    rune
	Literal string
}

func TestScannerModes(t *testing.T) {
	tests := []struct {
		Input string
		Lang  Language
		Steps []scanStep
	}{
		{
			Input: "1 + 2.5",
			Steps: []scanStep{
				{Mode: LexDefault, Type: Integer, Literal: "1"},
				{Mode: LexOperator, Type: opAdd},
				{Mode: LexDefault, Type: Decimal, Literal: "2.5"},
				{Mode: LexOperator, Type: EOF},
			},
		},
		{
			Input: "* * *",
			Steps: []scanStep{
				{Mode: LexDefault, Type: Name, Literal: "*"},
				{Mode: LexOperator, Type: opMul},
				{Mode: LexDefault, Type: Name, Literal: "*"},
			},
		},
		{
			Input: "div div div",
			Steps: []scanStep{
				{Mode: LexDefault, Type: Name, Literal: "div"},
				{Mode: LexOperator, Type: opDiv, Literal: "div"},
				{Mode: LexDefault, Type: Name, Literal: "div"},
			},
		},
		{
			Input: "for $x",
			Steps: []scanStep{
				{Mode: LexDefault, Type: keyword, Literal: "for"},
				{Mode: LexDefault, Type: variable, Literal: "x"},
			},
		},
		{
			Input: "for",
			Steps: []scanStep{
				{Mode: LexDefault, Type: Name, Literal: "for"},
			},
		},
		{
			Input: "if (",
			Steps: []scanStep{
				{Mode: LexDefault, Type: keyword, Literal: "if"},
				{Mode: LexDefault, Type: begGrp},
			},
		},
		{
			Input: "function (",
			Steps: []scanStep{
				{Mode: LexName, Type: Name, Literal: "function"},
			},
		},
		{
			Input: "fn:count(",
			Steps: []scanStep{
				{Mode: LexDefault, Type: function, Literal: "fn:count"},
				{Mode: LexDefault, Type: begGrp},
			},
		},
		{
			Input: "node()",
			Steps: []scanStep{
				{Mode: LexDefault, Type: kind, Literal: "node"},
			},
		},
		{
			Input: "child::item",
			Steps: []scanStep{
				{Mode: LexDefault, Type: axis, Literal: "child"},
				{Mode: LexName, Type: Name, Literal: "item"},
			},
		},
		{
			Input: "fn:count#1",
			Steps: []scanStep{
				{Mode: LexDefault, Type: namedRef, Literal: "fn:count"},
				{Mode: LexDefault, Type: Integer, Literal: "1"},
			},
		},
		{
			Input: "$a instance of xs:integer",
			Steps: []scanStep{
				{Mode: LexDefault, Type: variable, Literal: "a"},
				{Mode: LexOperator, Type: opInstanceOf, Literal: "instance"},
				{Mode: LexDefault, Type: Name, Literal: "xs:integer"},
			},
		},
		{
			Input: "$a cast as xs:integer",
			Steps: []scanStep{
				{Mode: LexDefault, Type: variable, Literal: "a"},
				{Mode: LexOperator, Type: opCastAs, Literal: "cast"},
			},
		},
		{
			Input: "a:* *:b Q{urn:x}c",
			Steps: []scanStep{
				{Mode: LexDefault, Type: Name, Literal: "a:*"},
				{Mode: LexDefault, Type: Name, Literal: "*:b"},
				{Mode: LexDefault, Type: Name, Literal: "Q{urn:x}c"},
			},
		},
		{
			Input: "(: outer (: inner :) :) 42",
			Steps: []scanStep{
				{Mode: LexDefault, Type: Integer, Literal: "42"},
			},
		},
		{
			Input: "a || b => c",
			Steps: []scanStep{
				{Mode: LexDefault, Type: Name, Literal: "a"},
				{Mode: LexOperator, Type: opConcat},
				{Mode: LexDefault, Type: Name, Literal: "b"},
				{Mode: LexOperator, Type: opArrow},
			},
		},
		{
			Input: "1 < 2",
			Lang:  LangXQuery,
			Steps: []scanStep{
				{Mode: LexDefault, Type: Integer, Literal: "1"},
				{Mode: LexOperator, Type: opLt},
			},
		},
		{
			Input: "<a/>",
			Lang:  LangXQuery,
			Steps: []scanStep{
				{Mode: LexDefault, Type: tagStart},
			},
		},
		{
			Input: "<a/>",
			Steps: []scanStep{
				{Mode: LexDefault, Type: opLt},
			},
		},
		{
			Input: "(# xq:opt value #) { 1 }",
			Lang:  LangXQuery,
			Steps: []scanStep{
				{Mode: LexDefault, Type: pragma, Literal: "xq:opt value"},
				{Mode: LexDefault, Type: begCurl},
			},
		},
	}
	for _, d := range tests {
		scan := Scan(d.Input, ForLanguage(d.Lang))
		for i, s := range d.Steps {
			tok := scan.Next(s.Mode)
			if tok.Type != s.Type {
				t.Errorf("%s: token %d: types mismatched! want %s, got %s", d.Input, i, Token{Type: s.Type, Literal: s.Literal}, tok)
				break
			}
			if s.Literal != "" && tok.Literal != s.Literal {
				t.Errorf("%s: token %d: literals mismatched! want %q, got %q", d.Input, i, s.Literal, tok.Literal)
				break
			}
		}
	}
}

func TestScannerLiterals(t *testing.T) {
	tests := []struct {
		Input string
		Lang  Language
		Type  rune
		Want  string
	}{
		{Input: `'it''s'`, Type: String, Want: "it's"},
		{Input: `"say ""hi"""`, Type: String, Want: `say "hi"`},
		{Input: `'&lt;a&gt;'`, Type: String, Want: "&lt;a&gt;"},
		{Input: `'&lt;a&gt;'`, Lang: LangXQuery, Type: String, Want: "<a>"},
		{Input: `'&#x41;&#66;'`, Lang: LangXQuery, Type: String, Want: "AB"},
		{Input: `'&#0;'`, Lang: LangXQuery, Type: invalidRef},
		{Input: `'&nbsp;'`, Lang: LangXQuery, Type: Invalid},
		{Input: `'open`, Type: Invalid},
		{Input: `12abc`, Type: Invalid},
		{Input: `1e`, Type: Invalid},
		{Input: `1.5e-3`, Type: Double, Want: "1.5e-3"},
		{Input: `.5`, Type: Decimal, Want: ".5"},
		{Input: `(: open`, Type: Invalid},
	}
	for _, d := range tests {
		scan := Scan(d.Input, ForLanguage(d.Lang))
		tok := scan.Next(LexDefault)
		if tok.Type != d.Type {
			t.Errorf("%s: types mismatched! got %s", d.Input, tok)
			continue
		}
		if d.Want != "" && tok.Literal != d.Want {
			t.Errorf("%s: literals mismatched! want %q, got %q", d.Input, d.Want, tok.Literal)
		}
	}
}

func TestScannerInvalidAdvances(t *testing.T) {
	scan := Scan("^^ 1")
	var count int
	for {
		tok := scan.Next(LexDefault)
		if tok.Type == EOF {
			break
		}
		if tok.End <= tok.Offset {
			t.Fatalf("token %s does not advance", tok)
		}
		count++
		if count > 10 {
			t.Fatalf("scanner does not reach the end of input")
		}
	}
	if count != 3 {
		t.Errorf("expected 3 tokens, got %d", count)
	}
}

func TestScannerPositions(t *testing.T) {
	input := "1\n+\n  2 (: a\ncomment :) * 3"
	tests := []struct {
		Base int
		Want []Position
	}{
		{
			Base: 1,
			Want: []Position{{1, 1}, {2, 1}, {3, 3}, {4, 12}, {4, 14}},
		},
		{
			Base: 10,
			Want: []Position{{10, 1}, {11, 1}, {12, 3}, {13, 12}, {13, 14}},
		},
	}
	for _, d := range tests {
		var (
			scan = Scan(input, StartLine(d.Base))
			mode = LexDefault
			got  []Position
		)
		for {
			tok := scan.Next(mode)
			if tok.Type == EOF {
				break
			}
			got = append(got, tok.Position)
			if mode == LexDefault {
				mode = LexOperator
			} else {
				mode = LexDefault
			}
		}
		if diff := cmp.Diff(d.Want, got); diff != "" {
			t.Errorf("base %d: positions mismatched: %s", d.Base, diff)
		}
	}
}

func TestScannerPositionAnyOffset(t *testing.T) {
	scan := Scan("ab\ncd\n\nef")
	tests := []struct {
		Offset int
		Want   Position
	}{
		{Offset: 8, Want: Position{4, 2}},
		{Offset: 0, Want: Position{1, 1}},
		{Offset: 4, Want: Position{2, 2}},
		{Offset: 6, Want: Position{3, 1}},
		{Offset: 100, Want: Position{4, 3}},
	}
	for _, d := range tests {
		got := scan.Position(d.Offset)
		if got != d.Want {
			t.Errorf("offset %d: positions mismatched! want %s, got %s", d.Offset, d.Want, got)
		}
	}
}

func TestScannerRawMode(t *testing.T) {
	scan := Scan("<a>x</a> + 1", ForLanguage(LangXQuery))
	tok := scan.Next(LexDefault)
	if tok.Type != tagStart {
		t.Fatalf("expected tag start, got %s", tok)
	}
	var str []rune
	for scan.PeekChar() != '>' {
		str = append(str, scan.NextChar())
	}
	if string(str) != "a" {
		t.Fatalf("expected tag name a, got %q", string(str))
	}
	if !scan.HasPrefix(">x</a>") {
		t.Fatalf("unexpected remaining input at offset %d", scan.Offset())
	}
	scan.Skip(len(">x</a>"))
	if tok := scan.Next(LexOperator); tok.Type != opAdd {
		t.Fatalf("expected '+' after leaving raw mode, got %s", tok)
	}
	scan.UnreadChar()
	if c := scan.NextChar(); c != '+' {
		t.Fatalf("expected '+' after unread, got %q", c)
	}
	if tok := scan.Next(LexDefault); tok.Type != Integer || tok.Literal != "1" {
		t.Fatalf("expected integer, got %s", tok)
	}
}

func TestScannerStartAt(t *testing.T) {
	src := "abc {\n  1 + 2 }"
	scan := Scan(src, StartAt(5), StartLine(3))
	tok := scan.Next(LexDefault)
	if tok.Type != Integer || tok.Offset != 8 {
		t.Fatalf("unexpected token %s at %d", tok, tok.Offset)
	}
	if want := (Position{4, 3}); tok.Position != want {
		t.Errorf("positions mismatched! want %s, got %s", want, tok.Position)
	}
}

func TestScannerTokens(t *testing.T) {
	var (
		list = Scan("$a div 2 * (b)").Tokens()
		got  []rune
	)
	for _, tok := range list {
		got = append(got, tok.Type)
	}
	want := []rune{variable, opDiv, Integer, opMul, begGrp, Name, endGrp, EOF}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("tokens mismatched: %s", diff)
	}
}
