// Package fetch implements the "tarpath fetch" subcommand.
package fetch

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strings"

	"github.com/jessevdk/go-flags"
	"github.com/schollz/progressbar/v3"
	"github.com/tarpath/tarpath"
	"github.com/tarpath/tarpath/internal"
	"github.com/tarpath/tarpath/util"
)

type Command struct {
	All    bool           `short:"a" long:"all" description:"print every match instead of just the first"`
	Text   bool           `short:"t" long:"text" description:"fail on files that are not valid UTF-8"`
	Keep   bool           `short:"k" long:"keep" description:"keep the scratch directory instead of deleting it on exit"`
	Output flags.Filename `short:"o" long:"output" description:"write the first match of the first path to a new file named after its terminal segment in this directory instead of stdout" optional:"yes" optional-value:"."`
	Args   struct {
		URL   string   `positional-arg-name:"url" description:"the http, https, or s3 URL of the root archive" required:"yes"`
		Paths []string `positional-arg-name:"path" description:"nested archive paths to resolve beneath the downloaded archive"`
	} `positional-args:"yes"`
}

func (c *Command) Execute(args []string) error {
	if len(args) != 0 {
		return fmt.Errorf("unknown positional arguments: %s", strings.Join(args, " "))
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, os.Kill)
	defer stop()

	var bar *progressbar.ProgressBar
	remote, err := tarpath.NewRemote(c.Args.URL, func(r *tarpath.Remote) {
		r.Keep = c.Keep
		r.Progress = func(written, total int64) {
			if bar == nil {
				bar = internal.DefaultBytes(total, "downloading")
			}
			_ = bar.Set64(written)
		}
	})
	if err != nil {
		return err
	}
	defer func() {
		if bar != nil {
			_ = bar.Close()
		}
		if c.Keep {
			log.Printf(`keeping scratch directory of "%s"`, remote.Root())
			return
		}
		if err := remote.Close(); err != nil {
			log.Printf("remove scratch directory error: %v", err)
		}
	}()

	// with no paths, just download the root archive; pair with --keep or the
	// scratch directory is deleted right away.
	if len(c.Args.Paths) == 0 {
		if err = remote.Download(ctx); err != nil {
			return err
		}

		log.Printf(`downloaded to "%s"`, remote.Root())
		return nil
	}

	failures := 0
	n := len(c.Args.Paths)
	for i, name := range c.Args.Paths {
		logger := internal.NewLogger(i, n, name)

		if err = c.fetch(ctx, remote, name, i == 0); err != nil {
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

func (c *Command) fetch(ctx context.Context, remote *tarpath.Remote, name string, first bool) error {
	opt := func(r *tarpath.Resolver) {
		if c.Text {
			r.Mode = tarpath.ModeText
		}
	}

	if first && c.Output != "" {
		res, err := remote.Get(ctx, name, opt)
		if err != nil {
			return err
		}

		return c.save(res)
	}

	if !c.All {
		res, err := remote.Get(ctx, name, opt)
		if err != nil {
			return err
		}

		return print(res)
	}

	results, err := remote.GetAll(ctx, name, opt)
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

// save writes the result to a new file in the output directory, named after the
// terminal segment with numeric suffixes on collision.
func (c *Command) save(res tarpath.Result) error {
	if res.Dir {
		return fmt.Errorf(`"%s" is a directory`, res.Path)
	}

	stem, ext := util.StemAndExt(res.Path)
	f, err := util.OpenExclFile(string(c.Output), stem, ext, 0666)
	if err != nil {
		return err
	}

	if _, err = f.Write(res.Data); err != nil {
		_ = f.Close()
		return fmt.Errorf(`write file "%s" error: %w`, f.Name(), err)
	}
	if err = f.Close(); err != nil {
		return err
	}

	log.Printf(`saved to "%s"`, f.Name())
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
