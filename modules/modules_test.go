package modules

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/awserr"
	"github.com/aws/aws-sdk-go/aws/request"
	"github.com/aws/aws-sdk-go/service/s3"
	"github.com/aws/aws-sdk-go/service/s3/s3iface"
	"github.com/google/go-cmp/cmp"
	"github.com/midbel/xq/xpath"
)

const mathModule = `module namespace m = "urn:math"; declare function m:double($x) { $x * 2 };`

func TestScheme(t *testing.T) {
	tests := []struct {
		Hint string
		Want string
	}{
		{Hint: "lib/math.xq", Want: "file"},
		{Hint: "/usr/lib/math.xq", Want: "file"},
		{Hint: "file:///usr/lib/math.xq", Want: "file"},
		{Hint: `C:\lib\math.xq`, Want: "file"},
		{Hint: "HTTPS://example.com/math.xq", Want: "https"},
		{Hint: "s3://bucket/math.xq", Want: "s3"},
	}
	for _, d := range tests {
		if got := Scheme(d.Hint); got != d.Want {
			t.Errorf("%s: schemes mismatched! want %s, got %s", d.Hint, d.Want, got)
		}
	}
}

func TestFileResolver(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "math.xq"), []byte(mathModule), 0o644); err != nil {
		t.Fatal(err)
	}
	res := FileResolver{Dir: dir}
	for _, hint := range []string{"math.xq", filepath.Join(dir, "math.xq"), "file://" + filepath.ToSlash(filepath.Join(dir, "math.xq"))} {
		list, err := res.Resolve(context.Background(), "urn:math", []string{hint})
		if err != nil {
			t.Errorf("%s: fail to resolve module: %s", hint, err)
			continue
		}
		if len(list) != 1 || list[0].Text != mathModule {
			t.Errorf("%s: unexpected module sources", hint)
		}
	}
	_, err := res.Resolve(context.Background(), "urn:math", []string{"missing.xq"})
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("expected not found error, got %v", err)
	}
	_, err = res.Resolve(context.Background(), "urn:math", nil)
	if !errors.Is(err, ErrLocation) {
		t.Errorf("expected missing location error, got %v", err)
	}
}

func TestHTTPResolver(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/math.xq":
			io.WriteString(w, mathModule)
		case "/broken.xq":
			w.WriteHeader(http.StatusInternalServerError)
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	res := HTTPResolver{Client: srv.Client()}
	list, err := res.Resolve(context.Background(), "urn:math", []string{srv.URL + "/math.xq"})
	if err != nil {
		t.Fatalf("fail to resolve module: %s", err)
	}
	want := []xpath.ModuleSource{
		{URI: srv.URL + "/math.xq", Text: mathModule},
	}
	if diff := cmp.Diff(want, list); diff != "" {
		t.Errorf("sources mismatched: %s", diff)
	}
	if _, err := res.Resolve(context.Background(), "urn:math", []string{srv.URL + "/other.xq"}); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected not found error, got %v", err)
	}
	if _, err := res.Resolve(context.Background(), "urn:math", []string{srv.URL + "/broken.xq"}); err == nil {
		t.Errorf("expected error on server failure")
	}
	small := HTTPResolver{Client: srv.Client(), MaxSize: 10}
	if _, err := small.Resolve(context.Background(), "urn:math", []string{srv.URL + "/math.xq"}); err == nil {
		t.Errorf("expected error on module too large")
	}
}

type fakeS3 struct {
	s3iface.S3API
	objects map[string]string
}

func (f fakeS3) GetObjectWithContext(_ aws.Context, in *s3.GetObjectInput, _ ...request.Option) (*s3.GetObjectOutput, error) {
	body, ok := f.objects[aws.StringValue(in.Bucket)+"/"+aws.StringValue(in.Key)]
	if !ok {
		return nil, awserr.New(s3.ErrCodeNoSuchKey, "the specified key does not exist", nil)
	}
	out := s3.GetObjectOutput{
		Body: io.NopCloser(bytes.NewBufferString(body)),
	}
	return &out, nil
}

func TestS3Resolver(t *testing.T) {
	client := fakeS3{
		objects: map[string]string{
			"modules/lib/math.xq": mathModule,
		},
	}
	res := S3Resolver{Client: client}
	list, err := res.Resolve(context.Background(), "urn:math", []string{"s3://modules/lib/math.xq"})
	if err != nil {
		t.Fatalf("fail to resolve module: %s", err)
	}
	if len(list) != 1 || list[0].URI != "s3://modules/lib/math.xq" || list[0].Text != mathModule {
		t.Errorf("unexpected module sources: %v", list)
	}
	tests := []struct {
		Hint string
		Err  error
	}{
		{Hint: "s3://modules/lib/other.xq", Err: ErrNotFound},
		{Hint: "https://modules/lib/math.xq", Err: ErrScheme},
	}
	for _, d := range tests {
		_, err := res.Resolve(context.Background(), "urn:math", []string{d.Hint})
		if !errors.Is(err, d.Err) {
			t.Errorf("%s: errors mismatched! want %s, got %v", d.Hint, d.Err, err)
		}
	}
	if _, err := res.Resolve(context.Background(), "urn:math", []string{"s3://modules"}); err == nil {
		t.Errorf("location without key should be rejected")
	}
}

func TestMemory(t *testing.T) {
	mem := NewMemory()
	mem.Add("urn:math", "math.xq", "old")
	mem.Add("urn:math", "math.xq", mathModule)
	mem.Add("urn:math", "more.xq", "more")

	list, err := mem.Resolve(context.Background(), "urn:math", []string{"ignored"})
	if err != nil {
		t.Fatalf("fail to resolve module: %s", err)
	}
	want := []xpath.ModuleSource{
		{URI: "math.xq", Text: mathModule},
		{URI: "more.xq", Text: "more"},
	}
	if diff := cmp.Diff(want, list); diff != "" {
		t.Errorf("sources mismatched: %s", diff)
	}
	if _, err := mem.Resolve(context.Background(), "urn:other", nil); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected not found error, got %v", err)
	}
}

func TestChain(t *testing.T) {
	var calls [][]string
	record := func(name string) xpath.ModuleResolver {
		return xpath.ResolverFunc(func(_ context.Context, ns string, hints []string) ([]xpath.ModuleSource, error) {
			calls = append(calls, append([]string{name}, hints...))
			return []xpath.ModuleSource{{URI: name, Text: ns}}, nil
		})
	}
	chain := NewChain()
	chain.Fallback = record("fallback")
	chain.Register("file", record("file"))
	chain.Register("HTTPS", record("https"))

	hints := []string{"a.xq", "https://example.com/b.xq", "c.xq"}
	list, err := chain.Resolve(context.Background(), "urn:x", hints)
	if err != nil {
		t.Fatalf("fail to resolve module: %s", err)
	}
	if len(list) != 2 {
		t.Errorf("expected 2 sources, got %d", len(list))
	}
	want := [][]string{
		{"file", "a.xq", "c.xq"},
		{"https", "https://example.com/b.xq"},
	}
	if diff := cmp.Diff(want, calls); diff != "" {
		t.Errorf("calls mismatched: %s", diff)
	}
	calls = nil
	if _, err := chain.Resolve(context.Background(), "urn:x", nil); err != nil {
		t.Errorf("fallback should resolve imports without hints: %s", err)
	}
	if diff := cmp.Diff([][]string{{"fallback"}}, calls); diff != "" {
		t.Errorf("calls mismatched: %s", diff)
	}
	if _, err := chain.Resolve(context.Background(), "urn:x", []string{"s3://bucket/key"}); !errors.Is(err, ErrScheme) {
		t.Errorf("expected unsupported scheme error, got %v", err)
	}
}

func TestCatalog(t *testing.T) {
	mem := NewMemory()
	mem.Add("urn:math", "math.xq", mathModule)
	var seen []string
	next := xpath.ResolverFunc(func(ctx context.Context, ns string, hints []string) ([]xpath.ModuleSource, error) {
		seen = hints
		return mem.Resolve(ctx, ns, hints)
	})
	cat := Catalog{
		Locations: map[string][]string{
			"urn:math": {"lib/math.xq"},
		},
		Next: next,
	}
	if _, err := cat.Resolve(context.Background(), "urn:math", nil); err != nil {
		t.Fatalf("fail to resolve module: %s", err)
	}
	if diff := cmp.Diff([]string{"lib/math.xq"}, seen); diff != "" {
		t.Errorf("hints mismatched: %s", diff)
	}
	if _, err := cat.Resolve(context.Background(), "urn:math", []string{"given.xq"}); err != nil {
		t.Fatalf("fail to resolve module: %s", err)
	}
	if diff := cmp.Diff([]string{"given.xq"}, seen); diff != "" {
		t.Errorf("given hints should be kept: %s", diff)
	}
	if _, err := cat.Resolve(context.Background(), "urn:other", nil); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected not found error, got %v", err)
	}
}

func TestCache(t *testing.T) {
	var count int
	next := xpath.ResolverFunc(func(_ context.Context, ns string, _ []string) ([]xpath.ModuleSource, error) {
		count++
		return []xpath.ModuleSource{{URI: "math.xq", Text: mathModule}}, nil
	})
	cache := NewCache(next)
	for i := 0; i < 3; i++ {
		if _, err := cache.Resolve(context.Background(), "urn:math", []string{"math.xq"}); err != nil {
			t.Fatalf("fail to resolve module: %s", err)
		}
	}
	if count != 1 {
		t.Errorf("module fetched %d times", count)
	}
}

func TestResolveQuery(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "math.xq"), []byte(mathModule), 0o644); err != nil {
		t.Fatal(err)
	}
	chain := NewChain()
	chain.Register("file", FileResolver{Dir: dir})

	query := `import module namespace m = "urn:math" at "math.xq"; m:double(21)`
	q, err := xpath.CompileQuery(query, xpath.WithModuleResolver(chain))
	if err != nil {
		t.Fatalf("fail to compile query: %s", err)
	}
	if len(q.Units) != 2 {
		t.Errorf("expected 2 units, got %d", len(q.Units))
	}
}

func TestFirst(t *testing.T) {
	var (
		empty = NewMemory()
		full  = NewMemory()
	)
	full.Add("urn:math", "math.xq", mathModule)
	res := First{empty, full}
	list, err := res.Resolve(context.Background(), "urn:math", nil)
	if err != nil {
		t.Fatalf("fail to resolve module: %s", err)
	}
	if len(list) != 1 || list[0].URI != "math.xq" {
		t.Errorf("unexpected module sources: %v", list)
	}
	if _, err := res.Resolve(context.Background(), "urn:other", nil); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected not found error, got %v", err)
	}
	failing := xpath.ResolverFunc(func(context.Context, string, []string) ([]xpath.ModuleSource, error) {
		return nil, errors.New("boom")
	})
	if _, err := (First{failing, full}).Resolve(context.Background(), "urn:math", nil); err == nil || errors.Is(err, ErrNotFound) {
		t.Errorf("unexpected error should stop the search, got %v", err)
	}
}
