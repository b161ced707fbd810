package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/midbel/cli"
	"github.com/midbel/xq/xpath"
)

var parseCmd = cli.Command{
	Name:    "parse",
	Summary: "print the compiled expression of a query with its constants folded",
	Handler: &ParseCmd{},
}

var treeCmd = cli.Command{
	Name:    "tree",
	Summary: "print the compiled expression of a query as an indented tree with its constants folded",
	Handler: &ParseCmd{Tree: true},
}

type ParseCmd struct {
	Tree bool
	Raw  bool
	CompilerOptions
}

func (c *ParseCmd) Run(args []string) error {
	set := flag.NewFlagSet("parse", flag.ContinueOnError)
	set.BoolVar(&c.Tree, "tree", c.Tree, "print expression as an indented tree")
	set.BoolVar(&c.Raw, "raw", c.Raw, "print expression as parsed, without constant folding")
	c.Attach(set)
	if err := set.Parse(args); err != nil {
		return err
	}
	options, err := c.Options()
	if err != nil {
		return err
	}
	if c.Raw {
		options = append(options, xpath.WithoutOptimization())
	}
	var failed bool
	for src, err := range iterSources(set.Args()) {
		if err != nil {
			return err
		}
		query, err := c.Compile(context.Background(), src, options)
		if err != nil {
			renderError(os.Stderr, src, err)
			failed = true
			continue
		}
		if c.Tree {
			xpath.DebugTree(os.Stdout, query.Body)
		} else {
			fmt.Fprintln(os.Stdout, xpath.Debug(query.Body))
		}
	}
	if failed {
		return errFail
	}
	return nil
}
