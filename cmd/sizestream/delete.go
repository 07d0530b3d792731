package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/sadopc/sizestream/internal/engine"
	"github.com/sadopc/sizestream/internal/events"
	"github.com/sadopc/sizestream/internal/model"
	"github.com/sadopc/sizestream/internal/ops"
	"github.com/sadopc/sizestream/internal/util"
	"github.com/spf13/cobra"
	"golang.org/x/term"
)

var errAborted = errors.New("deletion aborted")

type deleteOptions struct {
	json bool
	yes  bool
	root string
}

// deleteIO is the terminal a delete command talks to.
type deleteIO struct {
	in          io.Reader
	out         io.Writer
	errOut      io.Writer
	interactive bool
}

func newDeleteCommand(global *globalOptions) *cobra.Command {
	var opts deleteOptions

	cmd := &cobra.Command{
		Use:   "delete PATH...",
		Short: "Delete files and directory trees, reporting progress",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			eng := engine.New(engine.WithMetrics(global.metrics), engine.WithDeleteRoot(opts.root))
			tio := deleteIO{
				in:          cmd.InOrStdin(),
				out:         cmd.OutOrStdout(),
				errOut:      cmd.ErrOrStderr(),
				interactive: term.IsTerminal(int(os.Stdin.Fd())),
			}
			return runDelete(cmd.Context(), eng, opts, args, tio)
		},
	}

	flags := cmd.Flags()
	flags.BoolVar(&opts.json, "json", false, "Write deletion progress to stdout as JSON lines")
	flags.BoolVarP(&opts.yes, "yes", "y", false, "Do not ask for confirmation")
	flags.StringVar(&opts.root, "root", "", "Refuse to delete anything that is not strictly inside this directory")
	return cmd
}

func runDelete(ctx context.Context, eng *engine.Engine, opts deleteOptions, paths []string, tio deleteIO) error {
	if !opts.yes {
		if !tio.interactive {
			return errors.New("refusing to delete without --yes when stdin is not a terminal")
		}
		ok, err := confirmDelete(tio, paths)
		if err != nil {
			return err
		}
		if !ok {
			return errAborted
		}
	}

	var sink events.Sink
	var w *events.Writer
	if opts.json {
		var err error
		if w, err = events.NewWriter(tio.out); err != nil {
			return err
		}
		sink = w
	} else {
		sink = events.Func(func(ev events.Event) {
			if p, ok := ev.(model.DeletionProgress); ok {
				printDeleteProgress(tio.errOut, p)
			}
		})
	}

	sum := eng.DeleteBatch(ctx, paths, sink).Wait()
	if w != nil {
		if err := w.Close(); err != nil {
			return fmt.Errorf("writing event stream: %w", err)
		}
	}
	if !opts.json {
		for _, f := range sum.Failures {
			fmt.Fprintf(tio.errOut, "  failed: %s: %v\n", f.Path, f.Err)
		}
	}
	if n := len(sum.Failures); n > 0 {
		return fmt.Errorf("%d of %d item(s) could not be deleted", n, sum.Total)
	}
	return nil
}

func confirmDelete(tio deleteIO, paths []string) (bool, error) {
	var total uint64
	for _, p := range paths {
		size, err := ops.DiskUsage(ops.NormalizePath(p))
		if err != nil {
			fmt.Fprintf(tio.errOut, "  %s\n", p)
			continue
		}
		total = model.SaturatingAdd(total, size)
		fmt.Fprintf(tio.errOut, "  %10s  %s\n", util.FormatSize(size), p)
	}
	fmt.Fprintf(tio.errOut, "Delete %d item(s), %s? [y/N] ", len(paths), util.FormatSize(total))

	line, err := bufio.NewReader(tio.in).ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return false, err
	}
	switch strings.ToLower(strings.TrimSpace(line)) {
	case "y", "yes":
		return true, nil
	}
	return false, nil
}

func printDeleteProgress(w io.Writer, p model.DeletionProgress) {
	if !p.Completed {
		fmt.Fprintf(w, "[%d/%d] deleting %s\n", p.Current, p.Total, p.CurrentPath)
		return
	}
	var size uint64
	var deleted, failed int
	if p.DeletedSize != nil {
		size = *p.DeletedSize
	}
	if p.DeletedCount != nil {
		deleted = *p.DeletedCount
	}
	if p.FailedCount != nil {
		failed = *p.FailedCount
	}
	fmt.Fprintf(w, "Deleted %s item(s), freed %s", util.FormatCount(uint64(deleted)), util.FormatSize(size))
	if failed > 0 {
		fmt.Fprintf(w, ", %d failed", failed)
	}
	fmt.Fprintln(w)
}
