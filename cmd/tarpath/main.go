package main

import (
	"fmt"
	"os"
	"runtime"

	"github.com/jessevdk/go-flags"
	"github.com/tarpath/tarpath/internal/cat"
	"github.com/tarpath/tarpath/internal/fetch"
	"github.com/tarpath/tarpath/internal/list"
)

var opts struct {
	Profile string        `short:"p" long:"profile" description:"override AWS_PROFILE for s3 downloads if given"`
	Cat     cat.Command   `command:"cat" description:"print the contents of files at a nested archive path"`
	List    list.Command  `command:"ls" alias:"list" description:"list every entry matching a nested archive path"`
	Fetch   fetch.Command `command:"fetch" description:"download a remote archive and resolve nested archive paths beneath it"`
}

func main() {
	p := flags.NewParser(&opts, flags.Default)
	p.CommandHandler = func(command flags.Commander, args []string) error {
		if opts.Profile != "" {
			if err := os.Setenv("AWS_PROFILE", opts.Profile); err != nil {
				return fmt.Errorf("set AWS_PROFILE error: %w", err)
			}
		}

		return command.Execute(args)
	}

	_, err := p.Parse()

	// need this on windows to keep the console open.
	if runtime.GOOS == "windows" {
		_, _ = fmt.Fprintf(os.Stderr, "Press any key to close console\n")
		_, _ = fmt.Scanf("h")
	}

	if err != nil && !flags.WroteHelp(err) {
		os.Exit(1)
	}
}
