package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"text/tabwriter"

	"github.com/chzyer/readline"

	"github.com/telecore/telecore-go/pkg/database"
	"github.com/telecore/telecore-go/pkg/persistence"
	"github.com/telecore/telecore-go/pkg/point"
	"github.com/telecore/telecore-go/pkg/service"
)

// Shell is the interactive command interface.
type Shell struct {
	db       *database.Database
	manager  *service.Manager
	history  *persistence.HistoryStore
	snapshot func() error
	rl       *readline.Instance
	out      io.Writer
}

// NewReadline creates the prompt. Its Stdout coordinates with user input and
// should receive log output while the shell runs.
func NewReadline() (*readline.Instance, error) {
	rl, err := readline.NewEx(&readline.Config{
		Prompt:          "telecore> ",
		InterruptPrompt: "^C",
		EOFPrompt:       "exit",
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create readline: %w", err)
	}
	return rl, nil
}

// NewShell creates a shell reading from rl. history and snapshot may be nil.
func NewShell(rl *readline.Instance, db *database.Database, manager *service.Manager, history *persistence.HistoryStore, snapshot func() error) *Shell {
	return &Shell{
		db:       db,
		manager:  manager,
		history:  history,
		snapshot: snapshot,
		rl:       rl,
		out:      rl.Stdout(),
	}
}

// Run reads commands until quit, EOF or ctx ends.
func (sh *Shell) Run(ctx context.Context, cancel context.CancelFunc) {
	defer sh.rl.Close()

	sh.printHelp()

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		line, err := sh.rl.Readline()
		if err != nil {
			if errors.Is(err, readline.ErrInterrupt) {
				continue
			}
			fmt.Fprintln(sh.out, "Exiting...")
			cancel()
			return
		}
		if quit := sh.Exec(line); quit {
			fmt.Fprintln(sh.out, "Exiting...")
			cancel()
			return
		}
	}
}

// Exec runs one command line and reports whether the shell should exit.
func (sh *Shell) Exec(line string) bool {
	parts := strings.Fields(line)
	if len(parts) == 0 {
		return false
	}
	cmd := strings.ToLower(parts[0])
	args := parts[1:]

	switch cmd {
	case "help", "?":
		sh.printHelp()
	case "get", "g":
		sh.cmdGet(args)
	case "snapshot", "snap", "s":
		sh.cmdSnapshot(args)
	case "tables", "t":
		sh.cmdTables()
	case "channels", "ch":
		sh.cmdChannels()
	case "history", "h":
		sh.cmdHistory(args)
	case "save":
		sh.cmdSave()
	case "quit", "exit", "q":
		return true
	default:
		fmt.Fprintf(sh.out, "Unknown command: %s (type 'help' for commands)\n", cmd)
	}
	return false
}

func (sh *Shell) printHelp() {
	fmt.Fprintln(sh.out, `
Telecore Master Commands:
  Points:
    get <type> <index>             - Show one point
    snapshot <type>                - Show every point of a table
    tables                         - Show point counts per table
    history <type> <index> [limit] - Show recorded events for a point

  Channels:
    channels                       - Show channel sessions

  General:
    save                           - Save a database snapshot now
    help                           - Show this help
    quit                           - Exit

  Types: binary, analog, counter, frozen_counter,
         binary_output_status, analog_output_status`)
}

func (sh *Shell) cmdGet(args []string) {
	if len(args) != 2 {
		fmt.Fprintln(sh.out, "Usage: get <type> <index>")
		return
	}
	t, idx, ok := sh.parsePointRef(args[0], args[1])
	if !ok {
		return
	}
	p, err := sh.db.Get(t, idx)
	if err != nil {
		fmt.Fprintf(sh.out, "Error: %v\n", err)
		return
	}
	sh.printPoints([]point.Point{p})
}

func (sh *Shell) cmdSnapshot(args []string) {
	if len(args) != 1 {
		fmt.Fprintln(sh.out, "Usage: snapshot <type>")
		return
	}
	t, err := point.ParseType(args[0])
	if err != nil {
		fmt.Fprintf(sh.out, "Error: %v\n", err)
		return
	}
	points := sh.db.Snapshot(t)
	if len(points) == 0 {
		fmt.Fprintf(sh.out, "No %s points\n", t)
		return
	}
	sh.printPoints(points)
}

func (sh *Shell) cmdTables() {
	tw := tabwriter.NewWriter(sh.out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "TYPE\tPOINTS")
	for _, t := range point.Types {
		fmt.Fprintf(tw, "%s\t%d\n", t, sh.db.Count(t))
	}
	tw.Flush()
}

func (sh *Shell) cmdChannels() {
	if sh.manager == nil {
		fmt.Fprintln(sh.out, "No channels")
		return
	}
	chans := sh.manager.Channels()
	if len(chans) == 0 {
		fmt.Fprintln(sh.out, "No channels")
		return
	}
	tw := tabwriter.NewWriter(sh.out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "NAME\tKIND\tTARGET\tSTATE\tFRAMES\tUPDATES\tREJECTED\tLAST ERROR")
	for _, c := range chans {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%d\t%d\t%d\t%s\n",
			c.Name, c.Kind, c.Target, c.State, c.Frames, c.Updates, c.Rejected, c.LastError)
	}
	tw.Flush()
}

func (sh *Shell) cmdHistory(args []string) {
	if sh.history == nil {
		fmt.Fprintln(sh.out, "History is disabled")
		return
	}
	if len(args) < 2 || len(args) > 3 {
		fmt.Fprintln(sh.out, "Usage: history <type> <index> [limit]")
		return
	}
	t, idx, ok := sh.parsePointRef(args[0], args[1])
	if !ok {
		return
	}
	limit := 20
	if len(args) == 3 {
		n, err := strconv.Atoi(args[2])
		if err != nil || n <= 0 {
			fmt.Fprintf(sh.out, "Invalid limit: %s\n", args[2])
			return
		}
		limit = n
	}

	recs, err := sh.history.Query(t, idx, limit)
	if err != nil {
		fmt.Fprintf(sh.out, "Error: %v\n", err)
		return
	}
	if len(recs) == 0 {
		fmt.Fprintln(sh.out, "No events")
		return
	}
	tw := tabwriter.NewWriter(sh.out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "RECORDED\tVALUE\tQUALITY\tREASONS")
	for _, r := range recs {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n",
			r.RecordedAt.Local().Format("15:04:05.000"), r.Value,
			t.Table().FromBits(r.Quality), r.Reasons)
	}
	tw.Flush()
}

func (sh *Shell) cmdSave() {
	if sh.snapshot == nil {
		fmt.Fprintln(sh.out, "Snapshots are disabled")
		return
	}
	if err := sh.snapshot(); err != nil {
		fmt.Fprintf(sh.out, "Error: %v\n", err)
		return
	}
	fmt.Fprintln(sh.out, "Snapshot saved")
}

func (sh *Shell) parsePointRef(typ, index string) (point.Type, uint16, bool) {
	t, err := point.ParseType(typ)
	if err != nil {
		fmt.Fprintf(sh.out, "Error: %v\n", err)
		return 0, 0, false
	}
	idx, err := strconv.ParseUint(index, 10, 16)
	if err != nil {
		fmt.Fprintf(sh.out, "Invalid index: %s\n", index)
		return 0, 0, false
	}
	return t, uint16(idx), true
}

func (sh *Shell) printPoints(points []point.Point) {
	tw := tabwriter.NewWriter(sh.out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "INDEX\tVALUE\tQUALITY\tTIMESTAMP\tSTALE")
	for _, p := range points {
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%t\n", p.Index, p.Value, p.Quality, p.Timestamp, p.IsStale())
	}
	tw.Flush()
}
