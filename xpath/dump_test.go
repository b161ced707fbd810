package xpath

import (
	"strings"
	"testing"
)

func TestDebug(t *testing.T) {
	tests := []struct {
		Expr string
		Want string
	}{
		{Expr: "$a + 1", Want: "+($a, 1)"},
		{Expr: "for $x in $a return $x * 2", Want: "flwor(for($x, $a), return(*($x, 2)))"},
		{Expr: "$a instance of xs:integer+", Want: "instance-of($a, xs:integer+)"},
		{Expr: "$a cast as xs:string?", Want: "cast($a, xs:string?)"},
		{Expr: "fn:count($a)", Want: "call:fn:count($a)"},
		{Expr: "fn:count#1", Want: "ref(fn:count#1)"},
		{Expr: "'a' || $b", Want: `||("a", $b)`},
	}
	for _, d := range tests {
		q, err := compileWithHosts(d.Expr)
		if err != nil {
			t.Errorf("%s: fail to compile expression: %s", d.Expr, err)
			continue
		}
		if got := Debug(q.Body); got != d.Want {
			t.Errorf("%s: trees mismatched! want %s, got %s", d.Expr, d.Want, got)
		}
	}
}

func TestDebugTree(t *testing.T) {
	q, err := compileWithHosts("$a + 1")
	if err != nil {
		t.Fatalf("fail to compile expression: %s", err)
	}
	var str strings.Builder
	DebugTree(&str, q.Body)
	want := "+(\n  $a,\n  1\n)\n"
	if got := str.String(); got != want {
		t.Errorf("trees mismatched! want %q, got %q", want, got)
	}
}
