package main

import (
	"context"
	"fmt"
	"io"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/containerd/log"
	"github.com/sadopc/sizestream/internal/engine"
	"github.com/sadopc/sizestream/internal/events"
	"github.com/sadopc/sizestream/internal/remote"
	"github.com/sadopc/sizestream/internal/ui"
	"github.com/spf13/cobra"
)

// eventBuffer is the backlog the interactive view may fall behind by before
// scan events are dropped.
const eventBuffer = 1024

type scanOptions struct {
	json     bool
	compress bool
}

func newScanCommand(global *globalOptions) *cobra.Command {
	var opts scanOptions

	cmd := &cobra.Command{
		Use:   "scan [PATH | user@host [REMOTE_PATH]]",
		Short: "Scan a directory tree and stream its disk usage",
		Example: `  sizestream scan /home
  sizestream scan --json . > scan.jsonl
  sizestream scan --ssh-port 2222 alice@server /var/log`,
		Args: cobra.MaximumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runScan(cmd.Context(), global, opts, args, cmd.OutOrStdout())
		},
	}

	flags := cmd.Flags()
	flags.BoolVar(&opts.json, "json", false, "Write the event stream to stdout as JSON lines")
	flags.BoolVar(&opts.compress, "compress", false, "Compress the JSON stream with zstd")
	return cmd
}

func runScan(ctx context.Context, global *globalOptions, opts scanOptions, args []string, out io.Writer) error {
	if opts.compress && !opts.json {
		return fmt.Errorf("--compress requires --json")
	}
	target, err := resolveScanTarget(args)
	if err != nil {
		return err
	}

	cfg := global.cfg
	engineOpts := []engine.Option{engine.WithMetrics(global.metrics)}
	root := target.LocalPath
	var uiOpts []ui.Option

	if target.Remote {
		timeout, err := cfg.RemoteTimeout()
		if err != nil {
			return err
		}
		conn, err := remote.Dial(ctx, remote.Options{
			Target:    target.Destination,
			Port:      cfg.Remote.Port,
			BatchMode: cfg.Remote.BatchMode,
			Timeout:   timeout,
		})
		if err != nil {
			return err
		}
		defer conn.Close()

		engineOpts = append(engineOpts, engine.WithScanner(conn.Scanner(target.RemotePath, cfg.ScanOptions())))
		root = target.RemotePath
		uiOpts = append(uiOpts, ui.ReadOnly())
	} else {
		engineOpts = append(engineOpts, engine.WithScanOptions(cfg.ScanOptions()))
	}
	eng := engine.New(engineOpts...)

	ctx = log.WithLogger(ctx, log.G(ctx).WithField("target", target.String()))
	if opts.json {
		return scanJSON(ctx, eng, root, opts.compress, out)
	}
	return scanInteractive(ctx, eng, global, root, uiOpts)
}

func scanJSON(ctx context.Context, eng *engine.Engine, root string, compress bool, out io.Writer) error {
	var wopts []events.WriterOption
	if compress {
		wopts = append(wopts, events.WithCompression())
	}
	w, err := events.NewWriter(out, wopts...)
	if err != nil {
		return err
	}

	h, err := eng.StartScan(ctx, root, w)
	if err != nil {
		return err
	}
	_, scanErr := h.Wait()
	if err := w.Close(); err != nil && scanErr == nil {
		return fmt.Errorf("writing event stream: %w", err)
	}
	return scanErr
}

func scanInteractive(ctx context.Context, eng *engine.Engine, global *globalOptions, root string, uiOpts []ui.Option) error {
	sink := events.NewChan(eventBuffer)
	sink.OnDrop(global.metrics.EventDropped)
	defer sink.Close()

	h, err := eng.StartScan(ctx, root, sink)
	if err != nil {
		return err
	}

	ctl := &controller{ctx: ctx, engine: eng, scan: h}
	app := ui.NewApp(h.Root, sink.C(), ctl, uiOpts...)
	p := tea.NewProgram(app, tea.WithAltScreen(), tea.WithContext(ctx))
	ctl.program = p

	go func() {
		tree, err := h.Wait()
		visited, _ := h.Stats()
		p.Send(ui.ScanDoneMsg{Tree: tree, Scanned: visited, Err: err})
	}()

	_, runErr := p.Run()
	h.Cancel()
	<-h.Done()
	ctl.wait()

	if runErr != nil && ctx.Err() == nil {
		return runErr
	}
	if err := app.FatalError(); err != nil {
		return err
	}
	if n := sink.Dropped(); n > 0 {
		log.G(ctx).WithField("dropped", n).Debug("view fell behind the scan")
	}
	return nil
}

// controller carries out the actions requested from the view. Deletion
// progress is delivered straight to the program so the final aggregate is
// never lost to a full buffer.
type controller struct {
	ctx     context.Context
	engine  *engine.Engine
	scan    *engine.ScanHandle
	program *tea.Program

	deletes []*engine.DeleteHandle
}

func (c *controller) CancelScan() { c.scan.Cancel() }

func (c *controller) Delete(paths []string) {
	sink := events.Func(func(ev events.Event) {
		c.program.Send(ui.EventMsg{Event: ev})
	})
	c.deletes = append(c.deletes, c.engine.DeleteBatch(c.ctx, paths, sink))
}

// wait blocks until every deletion the user started has finished, so the
// process never exits halfway through removing a tree.
func (c *controller) wait() {
	for _, h := range c.deletes {
		h.Wait()
	}
}

var _ ui.Controller = (*controller)(nil)
