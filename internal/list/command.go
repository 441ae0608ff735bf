// Package list implements the "tarpath ls" subcommand.
package list

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/jessevdk/go-flags"
	"github.com/tarpath/tarpath"
	"github.com/tarpath/tarpath/internal"
)

type Command struct {
	Base string `short:"C" long:"directory" description:"resolve paths relative to this directory" default:"."`
	Args struct {
		Paths []string `positional-arg-name:"path" description:"the nested archive paths to list; segments may contain glob wildcards" required:"yes"`
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

		results, err := tarpath.GetAll(ctx, name, func(r *tarpath.Resolver) {
			r.Base = c.Base
		})
		switch {
		case errors.Is(err, context.Canceled):
			return nil
		case err != nil:
			logger.Printf("%v", err)
			failures++
			continue
		case len(results) == 0:
			logger.Printf("no matches")
			failures++
			continue
		}

		for _, res := range results {
			if res.Dir {
				fmt.Printf("%10s\t%s\n", "-", res.Path)
			} else {
				fmt.Printf("%10s\t%s\n", humanize.IBytes(uint64(len(res.Data))), res.Path)
			}
		}
	}

	if failures != 0 {
		return fmt.Errorf("failed to resolve %d/%d paths", failures, n)
	}

	return nil
}

var _ flags.Commander = &Command{}
