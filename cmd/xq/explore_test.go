package main

import (
	"errors"
	"strings"
	"testing"

	"github.com/midbel/xq/xpath"
)

func TestExplorerLoad(t *testing.T) {
	src := Source{
		File: "query.xq",
		Text: "$a + 1",
	}
	query, err := xpath.CompileQuery(src.Text, xpath.WithModuleURI(src.File), xpath.WithVariable("a"))
	if err != nil {
		t.Fatalf("fail to compile query: %s", err)
	}
	m := newExplorer(src)
	m.load(query, nil, false)
	if m.curr != paneTree {
		t.Errorf("explorer should start on the tree pane")
	}
	if !strings.Contains(m.panes[paneTree], "+(") {
		t.Errorf("tree pane does not show the expression: %q", m.panes[paneTree])
	}
	if !strings.Contains(m.panes[paneTokens], "variable(a)") {
		t.Errorf("tokens pane does not show the tokens: %q", m.panes[paneTokens])
	}
	m.switchPane(-1)
	if m.curr != paneErrors {
		t.Errorf("switching backward from first pane should go to the last one")
	}
}

func TestExplorerLoadErrors(t *testing.T) {
	src := Source{
		File: "query.xq",
		Text: "1 +",
	}
	_, err := xpath.CompileQuery(src.Text, xpath.WithModuleURI(src.File))
	if err == nil {
		t.Fatalf("query should not compile")
	}
	m := newExplorer(src)
	m.load(nil, err, false)
	if m.curr != paneErrors {
		t.Errorf("explorer should start on the errors pane")
	}
	if !strings.Contains(m.panes[paneErrors], xpath.CodeSyntax) {
		t.Errorf("errors pane does not show the code: %q", m.panes[paneErrors])
	}
	m.load(nil, errors.New("boom"), false)
	if !strings.Contains(m.panes[paneErrors], "boom") {
		t.Errorf("errors pane does not show the error: %q", m.panes[paneErrors])
	}
}
