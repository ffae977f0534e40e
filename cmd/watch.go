package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/spf13/cobra"

	appautoload "github.com/zjrosen/autoload/internal/application/autoload"
	domain "github.com/zjrosen/autoload/internal/domain/autoload"
	"github.com/zjrosen/autoload/internal/log"
	"github.com/zjrosen/autoload/internal/presentation"
	"github.com/zjrosen/autoload/internal/pubsub"
	"github.com/zjrosen/autoload/internal/watcher"
)

var (
	watchFormat string
	watchLogs   bool
)

var watchCmd = &cobra.Command{
	Use:   "watch [script]",
	Short: "Keep registrations live while manifests and scripts change",
	Long: `Watch manifest directories, manifest files and every registered base
directory. After a burst of changes the manifests are re-applied: higher
versions take over their namespace and stale ones are skipped. Nothing is
ever unregistered.

Registry events are printed as they happen. When a script is given it runs
once at startup and again after every reload. Files that already loaded are
not loaded again.

Examples:
  autoload watch
  autoload watch --format text main.lua
  autoload --debug watch --logs`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := presentation.ValidateFormat(watchFormat); err != nil {
			return err
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		var script string
		if len(args) == 1 {
			script = args[0]
		}
		return runWatch(ctx, cmd, script)
	},
}

func init() {
	watchCmd.Flags().StringVarP(&watchFormat, "format", "f", presentation.FormatJSON, "event output format: json or text")
	watchCmd.Flags().BoolVar(&watchLogs, "logs", false, "echo debug log lines to stderr (requires --debug)")
	rootCmd.AddCommand(watchCmd)
}

func runWatch(ctx context.Context, cmd *cobra.Command, script string) error {
	var mu sync.Mutex
	out := &syncWriter{mu: &mu, w: cmd.OutOrStdout()}
	errOut := &syncWriter{mu: &mu, w: cmd.ErrOrStderr()}

	svc, cleanup, err := openService(ctx, out)
	if err != nil {
		return err
	}
	defer cleanup()

	ctx, cancel := context.WithCancel(ctx)
	forwarded := make(chan struct{})
	defer func() {
		cancel()
		<-forwarded
	}()

	formatter := presentation.NewFormatter(out, watchFormat)
	for _, reg := range svc.List() {
		printEvent(formatter, domain.Event{Kind: domain.EventRegistered, Registration: reg})
	}
	go func() {
		defer close(forwarded)
		pubsub.Forward(ctx, svc, func(ev pubsub.Event[domain.Event]) {
			if ev.Type != pubsub.ReloadedEvent {
				printEvent(formatter, ev.Payload)
			}
		})
	}()

	if watchLogs {
		if logs := log.Subscribe(ctx); logs != nil {
			go func() {
				for entry := range logs {
					_, _ = fmt.Fprint(errOut, entry.Payload)
				}
			}()
		}
	}

	w, err := watcher.New(watcher.Config{
		Dirs:       svc.WatchDirs(),
		Extensions: []string{".yaml", ".yml", svc.Extension()},
		Debounce:   cfg.Watch.Debounce,
	})
	if err != nil {
		return err
	}
	defer func() { _ = w.Stop() }()

	rerun := func(ctx context.Context) { runScript(ctx, svc, errOut, script) }
	rerun(ctx)
	reloadOnChange(ctx, svc, w, w.Start(), errOut, rerun)
	return nil
}

// dirWatcher is the part of the watcher the reload loop extends.
type dirWatcher interface {
	Add(dir string) error
}

// reloadOnChange re-applies registrations after every change signal, adds
// newly registered base dirs to w and calls rerun. It returns when ctx is
// done or changes is closed. A failed reload is reported and skipped.
func reloadOnChange(ctx context.Context, svc *appautoload.Service, w dirWatcher, changes <-chan struct{}, errOut io.Writer, rerun func(context.Context)) {
	for {
		select {
		case <-ctx.Done():
			return
		case _, ok := <-changes:
			if !ok {
				return
			}
			if _, err := svc.Reload(ctx); err != nil {
				log.ErrorErr(log.CatWatcher, "reload failed", err)
				_, _ = fmt.Fprintf(errOut, "reload failed: %v\n", err)
				continue
			}
			for _, dir := range svc.WatchDirs() {
				if err := w.Add(dir); err != nil {
					log.Warn(log.CatWatcher, "not watching directory", "dir", dir, "error", err.Error())
				}
			}
			rerun(ctx)
		}
	}
}

func runScript(ctx context.Context, svc *appautoload.Service, errOut io.Writer, script string) {
	if script == "" {
		return
	}
	if err := svc.Run(ctx, script); err != nil {
		_, _ = fmt.Fprintf(errOut, "run %s: %v\n", script, err)
	}
}

// syncWriter serializes writes from the event forwarder, the log echo and
// script output, which share the command's writers.
type syncWriter struct {
	mu *sync.Mutex
	w  io.Writer
}

func (s *syncWriter) Write(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.w.Write(p)
}

func printEvent(f *presentation.Formatter, ev domain.Event) {
	if err := f.FormatEvent(presentation.FromEvent(ev)); err != nil {
		log.ErrorErr(log.CatWatcher, "print event", err)
	}
}
