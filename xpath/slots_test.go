package xpath

import (
	"testing"
)

func TestAllocateSlots(t *testing.T) {
	query := `
declare variable $g := 1;
declare function local:f($a, $b) {
  let $c := $a
  return $c + $b
};
for $x at $i in (1, 2)
let $h := function($z) { $z * $g }
return local:f($x, $i) + $h($x)
`
	q, err := CompileQuery(query, WithVariable("host"))
	if err != nil {
		t.Fatalf("fail to compile query: %s", err)
	}
	if g := q.Main.Variables[0]; g.Slot != 1 {
		t.Errorf("global variable: unexpected slot %d", g.Slot)
	}
	fn := q.Main.Functions[0]
	if fn.Frame != 3 {
		t.Errorf("function: unexpected frame size %d", fn.Frame)
	}
	for i, p := range fn.Params {
		if p.Slot != i {
			t.Errorf("parameter %d: unexpected slot %d", i, p.Slot)
		}
	}
	if q.Main.Frame != 3 {
		t.Errorf("body: unexpected frame size %d", q.Main.Frame)
	}
	var inline *InlineFunction
	Walk(q.Body, func(e Expr) bool {
		if fn, ok := e.(*InlineFunction); ok {
			inline = fn
		}
		return true
	})
	if inline == nil {
		t.Fatalf("inline function not found")
	}
	if inline.Frame != 1 || inline.Params[0].Slot != 0 {
		t.Errorf("inline function should have its own frame: size %d, slot %d", inline.Frame, inline.Params[0].Slot)
	}
}

func TestAllocateSlotsStable(t *testing.T) {
	query := "for $x in (1, 2) let $y := $x return some $z in ($x, $y) satisfies $z eq 2"
	q, err := CompileQuery(query)
	if err != nil {
		t.Fatalf("fail to compile query: %s", err)
	}
	flwor := q.Body.(*FLWOR)
	var slots []int
	for _, c := range flwor.Clauses {
		switch c := c.(type) {
		case *ForClause:
			slots = append(slots, c.Var.Slot)
		case *LetClause:
			slots = append(slots, c.Var.Slot)
		}
	}
	quant := flwor.Return.(*Quantified)
	slots = append(slots, quant.Bindings[0].Var.Slot)
	for i, s := range slots {
		if s != i {
			t.Errorf("binding %d: unexpected slot %d", i, s)
		}
	}
	if q.Main.Frame != 3 {
		t.Errorf("unexpected frame size %d", q.Main.Frame)
	}
}
