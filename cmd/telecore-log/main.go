// Command telecore-log inspects protocol captures written by telecore-master
// (log.protocol_log in its config).
//
// Usage:
//
//	telecore-log <command> [flags] <capture.tlog>
//
// Every command accepts the same selection flags (-channel, -stream-id,
// -point-type, -layer, -direction, -category, -since, -until).
//
// Examples:
//
//	telecore-log view -layer db -point-type counter master.tlog
//	telecore-log export -format csv -o plant.csv -channel plant master.tlog
//	telecore-log filter -o errors.tlog -category error master.tlog
//	telecore-log stats master.tlog
package main

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"slices"

	"github.com/telecore/telecore-go/cmd/telecore-log/commands"
)

type command struct {
	summary string
	run     func(fs *flag.FlagSet, sel *commands.Selector, args []string) error
}

var cmds = map[string]command{
	"view": {"print events in readable form", func(fs *flag.FlagSet, sel *commands.Selector, args []string) error {
		path, err := parse(fs, args)
		if err != nil {
			return err
		}
		return commands.RunView(path, *sel, os.Stdout)
	}},
	"export": {"convert events to jsonl or csv", func(fs *flag.FlagSet, sel *commands.Selector, args []string) error {
		format := fs.String("format", "jsonl", "output format (csv, jsonl)")
		output := fs.String("o", "", "output file (default stdout)")
		path, err := parse(fs, args)
		if err != nil {
			return err
		}
		return commands.RunExport(path, *format, *output, *sel)
	}},
	"filter": {"copy selected events into another capture", func(fs *flag.FlagSet, sel *commands.Selector, args []string) error {
		output := fs.String("o", "", "output capture (required)")
		path, err := parse(fs, args)
		if err != nil {
			return err
		}
		if *output == "" {
			return errors.New("-o is required")
		}
		n, err := commands.RunFilter(path, *output, *sel)
		if err != nil {
			return err
		}
		fmt.Printf("%d events written to %s\n", n, *output)
		return nil
	}},
	"stats": {"summarise a capture", func(fs *flag.FlagSet, sel *commands.Selector, args []string) error {
		path, err := parse(fs, args)
		if err != nil {
			return err
		}
		return commands.RunStats(path, *sel, os.Stdout)
	}},
}

func main() {
	os.Exit(run(os.Args[1:], os.Stderr))
}

func run(args []string, stderr io.Writer) int {
	if len(args) == 0 {
		usage(stderr)
		return 2
	}
	name := args[0]
	if name == "help" || name == "-h" || name == "-help" || name == "--help" {
		usage(os.Stdout)
		return 0
	}
	cmd, ok := cmds[name]
	if !ok {
		fmt.Fprintf(stderr, "telecore-log: unknown command %q\n\n", name)
		usage(stderr)
		return 2
	}

	fs := flag.NewFlagSet("telecore-log "+name, flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.Usage = func() {
		fmt.Fprintf(stderr, "usage: telecore-log %s [flags] <capture.tlog>\n\n%s.\n\nflags:\n", name, cmd.summary)
		fs.PrintDefaults()
	}
	var sel commands.Selector
	sel.Bind(fs)

	if err := cmd.run(fs, &sel, args[1:]); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		fmt.Fprintf(stderr, "telecore-log %s: %v\n", name, err)
		return 1
	}
	return 0
}

// parse parses flags and returns the single capture path.
func parse(fs *flag.FlagSet, args []string) (string, error) {
	if err := fs.Parse(args); err != nil {
		return "", err
	}
	if fs.NArg() != 1 {
		fs.Usage()
		return "", errors.New("exactly one capture file is required")
	}
	return fs.Arg(0), nil
}

func usage(w io.Writer) {
	fmt.Fprintln(w, "usage: telecore-log <command> [flags] <capture.tlog>")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "commands:")
	names := make([]string, 0, len(cmds))
	for n := range cmds {
		names = append(names, n)
	}
	slices.Sort(names)
	for _, n := range names {
		fmt.Fprintf(w, "  %-8s %s\n", n, cmds[n].summary)
	}
	fmt.Fprintln(w, "\nrun 'telecore-log <command> -h' for flags")
}
