package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"iter"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/midbel/xq/config"
	"github.com/midbel/xq/xpath"
)

// Source is a module read from a file, an url or the standard input.
type Source struct {
	File string
	Text string
}

var extensions = []string{".xq", ".xql", ".xqm", ".xqy", ".xquery", ".xpath"}

// CompilerOptions are the flags shared by the commands that compile their
// input.
type CompilerOptions struct {
	Config  string
	Trace   bool
	XPath   bool
	Library bool
}

func (o *CompilerOptions) Attach(set *flag.FlagSet) {
	set.StringVar(&o.Config, "config", "", "compiler configuration file")
	set.BoolVar(&o.Trace, "trace", false, "trace the rules of the compiler on stderr")
	set.BoolVar(&o.XPath, "xpath", false, "read input as an XPath expression")
	set.BoolVar(&o.Library, "library", false, "read input as a library module")
}

func (o CompilerOptions) Options() ([]xpath.Option, error) {
	var options []xpath.Option
	if o.Config != "" {
		cfg, err := config.Load(o.Config)
		if err != nil {
			return nil, err
		}
		if options, err = cfg.Options(); err != nil {
			return nil, err
		}
	}
	if o.Trace {
		options = append(options, xpath.WithTracer(xpath.TraceStderr()))
	}
	return options, nil
}

func (o CompilerOptions) Compile(ctx context.Context, src Source, options []xpath.Option) (*xpath.Query, error) {
	options = append(slices.Clip(options), xpath.WithModuleURI(src.File))
	switch {
	case o.XPath:
		return xpath.Compile(src.Text, options...)
	case o.Library:
		return xpath.CompileLibrary(src.Text, options...)
	default:
		return xpath.CompileQueryContext(ctx, src.Text, options...)
	}
}

func iterSources(files []string) iter.Seq2[Source, error] {
	fn := func(yield func(Source, error) bool) {
		if len(files) == 0 {
			files = []string{"-"}
		}
		for _, f := range files {
			if s, err := os.Stat(f); err == nil && s.IsDir() {
				es, err := os.ReadDir(f)
				if err != nil {
					yield(Source{File: f}, err)
					return
				}
				for _, e := range es {
					if e.IsDir() || !slices.Contains(extensions, filepath.Ext(e.Name())) {
						continue
					}
					if !yield(readSource(filepath.Join(f, e.Name()))) {
						return
					}
				}
			} else if !yield(readSource(f)) {
				return
			}
		}
	}
	return fn
}

func readSource(file string) (Source, error) {
	src := Source{
		File: file,
	}
	r, err := openFile(file)
	if err != nil {
		return src, err
	}
	defer r.Close()

	text, err := io.ReadAll(r)
	if err == nil {
		src.Text = string(text)
	}
	return src, err
}

func openFile(file string) (io.ReadCloser, error) {
	if file == "-" {
		return io.NopCloser(os.Stdin), nil
	}
	u, err := url.Parse(file)
	if err != nil {
		return nil, err
	}
	switch u.Scheme {
	case "http", "https":
		req, err := http.NewRequest(http.MethodGet, u.String(), nil)
		if err != nil {
			return nil, err
		}
		req.Header.Set("accept", "application/xquery")
		res, err := http.DefaultClient.Do(req)
		if err != nil {
			return nil, err
		}
		if res.StatusCode != http.StatusOK {
			res.Body.Close()
			return nil, fmt.Errorf("%s: fail to retrieve remote file (%s)", file, res.Status)
		}
		return res.Body, nil
	default:
		return os.Open(strings.TrimPrefix(file, "file://"))
	}
}
