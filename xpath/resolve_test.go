package xpath

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func libraries(mods map[string]string) ModuleResolver {
	return ResolverFunc(func(_ context.Context, ns string, _ []string) ([]ModuleSource, error) {
		text, ok := mods[ns]
		if !ok {
			return nil, nil
		}
		src := ModuleSource{
			URI:  ns + ".xq",
			Text: text,
		}
		return []ModuleSource{src}, nil
	})
}

const (
	mathModule = `
module namespace m = "urn:math";
declare function m:scale($x) { $x * $m:factor };
declare %private function m:hidden() { 0 };
declare %private variable $m:secret := 42;
declare variable $m:factor := m:hidden() + 10;
`
	cycleA = `
module namespace a = "urn:a";
import module namespace b = "urn:b";
declare function a:f() { 1 };
`
	cycleB = `
module namespace b = "urn:b";
import module namespace a = "urn:a";
declare function b:g() { a:f() };
`
)

func TestImportModule(t *testing.T) {
	mods := map[string]string{
		"urn:math": mathModule,
	}
	query := `
import module namespace m = "urn:math";
m:scale(2) + $m:factor
`
	q, err := CompileQuery(query, WithModuleResolver(libraries(mods)))
	if err != nil {
		t.Fatalf("fail to compile query: %s", err)
	}
	if len(q.Units) != 2 {
		t.Fatalf("expected 2 units, got %d", len(q.Units))
	}
	lib := q.Units[1]
	if !lib.IsLibrary || lib.Namespace != "urn:math" || lib.URI != "urn:math.xq" {
		t.Errorf("unexpected library unit %s (%s)", lib.URI, lib.Namespace)
	}
	if imp := q.Main.Imports[0]; len(imp.Units) != 1 || imp.Units[0] != lib {
		t.Errorf("import not linked to library unit")
	}
	var calls int
	Walk(q.Body, func(e Expr) bool {
		call, ok := e.(*Call)
		if !ok {
			return true
		}
		calls++
		decl, ok := call.Func.(*FunctionDecl)
		if !ok || decl.Unit != lib {
			t.Errorf("call to %s not bound to the library declaration", call.Name)
		}
		return true
	})
	if calls != 1 {
		t.Errorf("expected 1 call in body, got %d", calls)
	}
}

func TestImportVisibility(t *testing.T) {
	mods := map[string]string{
		"urn:math": mathModule,
	}
	tests := []struct {
		Query string
		Code  string
	}{
		{
			Query: `import module namespace m = "urn:math"; m:hidden()`,
			Code:  CodeUndefinedFunc,
		},
		{
			Query: `import module namespace m = "urn:math"; $m:secret`,
			Code:  CodeUndefinedVar,
		},
		{
			Query: `declare namespace m = "urn:math"; m:scale(1)`,
			Code:  CodeUndefinedFunc,
		},
		{
			Query: `import module namespace m = "urn:math"; m:scale(1, 2)`,
			Code:  CodeUndefinedFunc,
		},
		{
			Query: `import module namespace n = "urn:none"; 1`,
			Code:  CodeModuleNotFound,
		},
		{
			Query: `import module namespace m = "urn:math"; import module namespace n = "urn:math"; 1`,
			Code:  CodeDuplicateImport,
		},
	}
	for _, d := range tests {
		_, err := CompileQuery(d.Query, WithModuleResolver(libraries(mods)))
		var se *StaticError
		if !errors.As(err, &se) {
			t.Errorf("%s: expected static error, got %v", d.Query, err)
			continue
		}
		if se.Code != d.Code {
			t.Errorf("%s: codes mismatched! want %s, got %s", d.Query, d.Code, se.Code)
		}
	}
}

func TestPrivateVariableMessage(t *testing.T) {
	mods := map[string]string{
		"urn:math": mathModule,
	}
	_, err := CompileQuery(`import module namespace m = "urn:math"; $m:secret`, WithModuleResolver(libraries(mods)))
	if err == nil || !strings.Contains(err.Error(), "private") {
		t.Errorf("message should tell the variable is private: %v", err)
	}
}

func TestUndefinedFunctionArities(t *testing.T) {
	_, err := CompileQuery("declare function local:f($a) { $a }; declare function local:f($a, $b) { $b }; local:f()")
	if err == nil {
		t.Fatalf("expected error")
	}
	if !strings.Contains(err.Error(), "defined with 1, 2 argument(s)") {
		t.Errorf("message should list the known arities: %s", err)
	}
}

func TestModuleWithoutResolver(t *testing.T) {
	_, err := CompileQuery(`import module namespace m = "urn:math"; 1`)
	if err == nil || !strings.Contains(err.Error(), ErrNoResolver.Error()) {
		t.Errorf("expected error about missing resolver, got %v", err)
	}
}

func TestModuleCycle(t *testing.T) {
	mods := map[string]string{
		"urn:a": cycleA,
		"urn:b": cycleB,
	}
	_, err := CompileQuery(`import module namespace a = "urn:a"; a:f()`, WithModuleResolver(libraries(mods)))
	if diff := cmp.Diff([]string{CodeModuleCycle}, compileCodes(err)); diff != "" {
		t.Errorf("codes mismatched: %s", diff)
	}
}

func TestResolverError(t *testing.T) {
	var (
		failure  = errors.New("connection refused")
		resolver = ResolverFunc(func(context.Context, string, []string) ([]ModuleSource, error) {
			return nil, failure
		})
	)
	_, err := CompileQuery(`import module namespace m = "urn:math"; 1`, WithModuleResolver(resolver))
	var se *StaticError
	if !errors.As(err, &se) || se.Code != CodeModuleNotFound {
		t.Fatalf("expected module not found error, got %v", err)
	}
	if !strings.Contains(se.Message, failure.Error()) {
		t.Errorf("message should contain the cause: %s", se.Message)
	}
}

func TestResolverCanceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	resolver := ResolverFunc(func(ctx context.Context, _ string, _ []string) ([]ModuleSource, error) {
		cancel()
		return nil, ctx.Err()
	})
	_, err := CompileQueryContext(ctx, `import module namespace m = "urn:math"; 1`, WithModuleResolver(resolver))
	if !errors.Is(err, context.Canceled) {
		t.Errorf("expected canceled context, got %v", err)
	}
}

func TestCompileLibrary(t *testing.T) {
	q, err := CompileLibrary(mathModule)
	if err != nil {
		t.Fatalf("fail to compile library: %s", err)
	}
	if len(q.Main.Functions) != 2 || len(q.Main.Variables) != 2 {
		t.Errorf("unexpected number of declarations")
	}
	if _, err := CompileLibrary("1 + 1"); err == nil {
		t.Errorf("main module should be rejected")
	}
	if _, err := CompileQuery(mathModule); err == nil {
		t.Errorf("library module should be rejected")
	}
	tests := []struct {
		Module string
		Code   string
	}{
		{
			Module: `module namespace m = "urn:m"; declare variable $x := 1;`,
			Code:   CodeWrongNamespace,
		},
		{
			Module: `module namespace m = "urn:m"; declare function local:f() { 1 };`,
			Code:   CodeWrongNamespace,
		},
		{
			Module: `module namespace m = "urn:m"; declare function m:f() { 1 }; m:f()`,
			Code:   CodeSyntax,
		},
		{
			Module: `module namespace m = ""; declare function m:f() { 1 };`,
			Code:   CodeEmptyNamespace,
		},
	}
	for _, d := range tests {
		_, err := CompileLibrary(d.Module)
		var se *StaticError
		if !errors.As(err, &se) || se.Code != d.Code {
			t.Errorf("%s: expected %s, got %v", d.Module, d.Code, err)
		}
	}
}

func TestHostVariables(t *testing.T) {
	typ := atomicOf("integer", OccursOne)
	q, err := CompileQuery("$h:value + $count",
		WithNamespace("h", "urn:host"),
		WithVariable("h:value"),
		WithTypedVariable("count", typ),
	)
	if err != nil {
		t.Fatalf("fail to compile query: %s", err)
	}
	var refs int
	Walk(q.Body, func(e Expr) bool {
		if ref, ok := e.(*VarRef); ok {
			refs++
			if ref.Global == nil || ref.Global.Unit != nil {
				t.Errorf("$%s not bound to host variable", ref.Name)
			}
		}
		return true
	})
	if refs != 2 {
		t.Errorf("expected 2 variable references, got %d", refs)
	}
	_, err = Compile("$h:value", WithVariable("h:value"))
	var se *StaticError
	if !errors.As(err, &se) || se.Code != CodeUnboundPrefix {
		t.Errorf("expected unbound prefix error, got %v", err)
	}
}

func TestUndefinedFunctionSuggestion(t *testing.T) {
	_, err := Compile("fn:cuont((1, 2))")
	var se *StaticError
	if !errors.As(err, &se) || se.Code != CodeUndefinedFunc {
		t.Fatalf("expected undefined function error, got %v", err)
	}
	if !strings.HasPrefix(se.Message, "function fn:cuont#1 is not defined") {
		t.Errorf("unexpected message %s", se.Message)
	}
}
