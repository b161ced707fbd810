package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"runtime"
	"time"

	"github.com/midbel/cli"
	"github.com/midbel/xq/xpath"
	"golang.org/x/sync/errgroup"
)

var checkCmd = cli.Command{
	Name:    "check",
	Summary: "report the static errors of modules",
	Handler: &CheckCmd{},
}

type CheckCmd struct {
	FailFast bool
	Quiet    bool
	Jobs     int
	Timeout  time.Duration
	CompilerOptions
}

type checkResult struct {
	Source
	Err     error
	Elapsed time.Duration
}

const checkInfo = "%d module(s) checked in %s - %d with errors"

func (c *CheckCmd) Run(args []string) error {
	set := flag.NewFlagSet("check", flag.ContinueOnError)
	set.BoolVar(&c.FailFast, "fail-fast", false, "stop checking modules as soon as first error is encountered")
	set.BoolVar(&c.Quiet, "quiet", false, "do not show progress")
	set.IntVar(&c.Jobs, "jobs", runtime.NumCPU(), "number of modules checked in parallel")
	set.DurationVar(&c.Timeout, "timeout", 0, "maximum time given to check all modules")
	c.Attach(set)
	if err := set.Parse(args); err != nil {
		return err
	}
	options, err := c.Options()
	if err != nil {
		return err
	}
	var sources []Source
	for src, err := range iterSources(set.Args()) {
		if err != nil {
			return err
		}
		sources = append(sources, src)
	}
	if c.Trace || c.Jobs < 1 {
		c.Jobs = 1
	}

	ctx := context.Background()
	if c.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.Timeout)
		defer cancel()
	}
	var (
		now     = time.Now()
		results = make([]checkResult, len(sources))
		spin    = NewSpinner(os.Stderr)
	)
	spin.SetMessage(fmt.Sprintf("checking %d module(s)", len(sources)))
	if !c.Quiet && !c.Trace {
		spin.Start()
	}
	err = c.checkAll(ctx, sources, results, options)
	spin.Stop()

	var failed int
	for _, r := range results {
		if r.File == "" {
			continue
		}
		if r.Err != nil {
			failed++
			renderError(os.Stderr, r.Source, r.Err)
			continue
		}
		if !c.Quiet {
			renderSuccess(os.Stdout, r.File, r.Elapsed)
		}
	}
	if !c.Quiet {
		fmt.Fprintf(os.Stdout, checkInfo, len(sources), time.Since(now), failed)
		fmt.Fprintln(os.Stdout)
	}
	if err != nil || failed > 0 {
		return errFail
	}
	return nil
}

func (c *CheckCmd) checkAll(ctx context.Context, sources []Source, results []checkResult, options []xpath.Option) error {
	grp, ctx := errgroup.WithContext(ctx)
	grp.SetLimit(c.Jobs)
	for i, src := range sources {
		grp.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			now := time.Now()
			_, err := c.Compile(ctx, src, options)
			results[i] = checkResult{
				Source:  src,
				Err:     err,
				Elapsed: time.Since(now),
			}
			if err != nil && c.FailFast {
				return err
			}
			return nil
		})
	}
	return grp.Wait()
}
