// Package cat implements the "tarpath cat" subcommand.
package cat

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"

	"github.com/jessevdk/go-flags"
	"github.com/tarpath/tarpath"
	"github.com/tarpath/tarpath/internal"
)

type Command struct {
	All  bool   `short:"a" long:"all" description:"print every match instead of just the first"`
	Text bool   `short:"t" long:"text" description:"fail on files that are not valid UTF-8"`
	Base string `short:"C" long:"directory" description:"resolve paths relative to this directory" default:"."`
	Args struct {
		Paths []string `positional-arg-name:"path" description:"the nested archive paths to resolve, e.g. foo.tar/bar.tar/baz.txt" required:"yes"`
	} `positional-args:"yes"`
}

func (c *Command) Execute(args []string) error {
	if len(args) != 0 {
		return fmt.Errorf("unknown positional arguments: %s", strings.Join(args, " "))
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, os.Kill)
	defer stop()

	failures := 0
	n := len(c.Args.Paths)
	for i, name := range c.Args.Paths {
		logger := internal.NewLogger(i, n, name)

		if err := c.cat(ctx, name); err != nil {
			if errors.Is(err, context.Canceled) {
				break
			}

			logger.Printf("%v", err)
			failures++
		}
	}

	if failures != 0 {
		return fmt.Errorf("failed to resolve %d/%d paths", failures, n)
	}

	return nil
}

func (c *Command) cat(ctx context.Context, name string) error {
	opt := func(r *tarpath.Resolver) {
		r.Base = c.Base
		if c.Text {
			r.Mode = tarpath.ModeText
		}
	}

	if !c.All {
		res, err := tarpath.Get(ctx, name, opt)
		if err != nil {
			return err
		}

		return print(res)
	}

	results, err := tarpath.GetAll(ctx, name, opt)
	if err != nil {
		return err
	}
	if len(results) == 0 {
		return &tarpath.NotFoundError{Path: name}
	}

	for _, res := range results {
		if err = print(res); err != nil {
			return err
		}
	}

	return nil
}

func print(res tarpath.Result) error {
	if res.Dir {
		_, err := fmt.Println(res.Path)
		return err
	}

	_, err := os.Stdout.Write(res.Data)
	return err
}

var _ flags.Commander = &Command{}
