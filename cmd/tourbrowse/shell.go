package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"github.com/eugener/tourbook/internal/state"
	"github.com/eugener/tourbook/internal/worker"
)

const prompt = "tourbrowse> "

func (c *cli) shellCmd() *cobra.Command {
	var metricsAddr string
	cmd := &cobra.Command{
		Use:   "shell",
		Short: "Browse interactively with background cache maintenance",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			c.interactive = true
			a := c.app
			ctx, cancel := context.WithCancel(cmd.Context())
			defer cancel()

			runner := worker.NewRunner(
				worker.NewCacheJanitor(a.cache, a.cfg.Client.JanitorInterval),
				worker.NewBreakerEvictor(a.breakers),
				worker.NewDNSRefresher(a.resolver, 0),
			)
			workersDone := make(chan error, 1)
			go func() { workersDone <- runner.Run(ctx) }()

			if metricsAddr != "" {
				srv := &http.Server{
					Addr:              metricsAddr,
					Handler:           promhttp.HandlerFor(a.registry, promhttp.HandlerOpts{}),
					ReadHeaderTimeout: 5 * time.Second,
				}
				go func() {
					if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
						slog.Error("metrics server", "error", err)
					}
				}()
				defer srv.Close()
			}

			unsubscribe := a.state.Subscribe(func(s state.Snapshot) {
				slog.Debug("state updated",
					"tours", len(s.Tours),
					"loading", s.Loading,
					"page", s.Pagination.Page,
					"from_cache", s.FromCache,
				)
			})
			defer unsubscribe()

			err := c.repl(ctx, cmd)
			cancel()
			if werr := <-workersDone; werr != nil && err == nil {
				err = werr
			}
			return err
		},
	}
	cmd.Flags().StringVar(&metricsAddr, "metrics-addr", "", "serve Prometheus metrics on this address")
	return cmd
}

// repl reads one command per line until EOF, exit or cancellation. Every
// line gets a fresh command tree so flag values never leak between lines.
func (c *cli) repl(ctx context.Context, cmd *cobra.Command) error {
	out := cmd.OutOrStdout()
	lines := make(chan string)
	go func() {
		defer close(lines)
		sc := bufio.NewScanner(cmd.InOrStdin())
		for sc.Scan() {
			select {
			case lines <- sc.Text():
			case <-ctx.Done():
				return
			}
		}
	}()

	fmt.Fprintln(out, `Type "help" for commands, "exit" to quit.`)
	for {
		fmt.Fprint(out, prompt)
		var line string
		select {
		case <-ctx.Done():
			fmt.Fprintln(out)
			return nil
		case l, ok := <-lines:
			if !ok {
				fmt.Fprintln(out)
				return nil
			}
			line = l
		}

		args := strings.Fields(line)
		if len(args) == 0 {
			continue
		}
		if args[0] == "exit" || args[0] == "quit" {
			return nil
		}

		sub := &cobra.Command{
			Use:           "tourbrowse",
			SilenceUsage:  true,
			SilenceErrors: true,
		}
		c.addBrowseCmds(sub)
		sub.SetArgs(args)
		sub.SetOut(out)
		sub.SetErr(cmd.ErrOrStderr())
		if err := sub.ExecuteContext(ctx); err != nil {
			fmt.Fprintln(cmd.ErrOrStderr(), "error:", err)
		}
	}
}
