package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/midbel/cli"
	"github.com/midbel/xq/xpath"
)

var scanCmd = cli.Command{
	Name:    "scan",
	Summary: "print the tokens of a query",
	Handler: &ScanCmd{},
}

type ScanCmd struct {
	XPath bool
}

func (c *ScanCmd) Run(args []string) error {
	set := flag.NewFlagSet("scan", flag.ContinueOnError)
	set.BoolVar(&c.XPath, "xpath", false, "scan input as an XPath expression")
	if err := set.Parse(args); err != nil {
		return err
	}
	lang := xpath.LangXQuery
	if c.XPath {
		lang = xpath.LangXPath
	}
	for src, err := range iterSources(set.Args()) {
		if err != nil {
			return err
		}
		scan := xpath.Scan(src.Text, xpath.ForLanguage(lang))
		for _, tok := range scan.Tokens() {
			pos := locStyle.Render(fmt.Sprintf("%s:%s", src.File, tok.Position))
			fmt.Fprintf(os.Stdout, "%s %s", pos, tok)
			fmt.Fprintln(os.Stdout)
		}
	}
	return nil
}
