package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"os"

	"github.com/spf13/cobra"

	tourbook "github.com/eugener/tourbook/internal"
	"github.com/eugener/tourbook/internal/config"
	"github.com/eugener/tourbook/internal/fetch"
	"github.com/eugener/tourbook/internal/state"
)

// cli holds the state shared by every command. app is built once, before
// the first command runs, and reused by every line of a shell session.
type cli struct {
	configPath  string
	interactive bool
	app         *app
}

func (c *cli) rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "tourbrowse",
		Short:         "Browse the tour catalog through a local cache",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			if c.app != nil {
				return nil
			}
			cfg, err := config.Load(c.configPath)
			if err != nil {
				return err
			}
			slog.SetDefault(cfg.Log.NewLogger(os.Stderr))
			c.app, err = newApp(cmd.Context(), cfg, cmd.OutOrStdout())
			return err
		},
	}
	root.PersistentFlags().StringVar(&c.configPath, "config", "", "path to config file (defaults built in)")

	c.addBrowseCmds(root)
	root.AddCommand(c.shellCmd())
	return root
}

// addBrowseCmds registers the commands available both one-shot and in the shell.
func (c *cli) addBrowseCmds(parent *cobra.Command) {
	parent.AddCommand(
		c.getCmd(),
		c.listCmd(),
		c.filtersCmd(),
		c.nextCmd(),
		c.cacheCmd(),
	)
}

func (c *cli) getCmd() *cobra.Command {
	var refetch bool
	cmd := &cobra.Command{
		Use:   "get <id>",
		Short: "Show one tour, from the cache when fresh",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			v := state.NewTourView(args[0], c.app.fetcher, c.app.cache)
			load := v.Load
			if refetch {
				load = v.Refetch
			}
			if err := load(ctx); err != nil {
				return err
			}
			snap := v.Snapshot()
			if snap.Tour == nil {
				return fmt.Errorf("tour %q: %w", args[0], tourbook.ErrNotFound)
			}
			renderTour(cmd.OutOrStdout(), snap.Tour, snap.FromCache)
			c.settle(ctx, snap.Revalidation)
			return nil
		},
	}
	cmd.Flags().BoolVar(&refetch, "refetch", false, "skip the cache and fetch from the catalog")
	return cmd
}

func (c *cli) listCmd() *cobra.Command {
	var (
		ff      filterFlags
		page    int
		limit   int
		noCache bool
	)
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List tours matching the saved filters",
		Long:  "List tours matching the saved filters. Filter flags update the saved filters.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			a := c.app
			if ff.changed(cmd) {
				if err := ff.save(cmd, a.state); err != nil {
					return err
				}
			}
			q := a.state.Query(page)
			if cmd.Flags().Changed("limit") {
				q.Limit = limit
			}
			mode := fetch.CacheFirst
			if noCache {
				mode = fetch.Bypass
			}
			if err := a.state.Load(ctx, q, mode); err != nil {
				return err
			}
			a.savePage(ctx)
			snap := a.state.Snapshot()
			renderList(cmd.OutOrStdout(), snap)
			c.settle(ctx, snap.Revalidation)
			return nil
		},
	}
	ff.bind(cmd)
	cmd.Flags().IntVar(&page, "page", 1, "page number")
	cmd.Flags().IntVar(&limit, "limit", tourbook.DefaultLimit, "tours per page (1-50)")
	cmd.Flags().BoolVar(&noCache, "no-cache", false, "skip the cache and fetch from the catalog")
	return cmd
}

func (c *cli) nextCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "next",
		Short: "Load the page after the last listed one",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			a := c.app
			if !a.state.HasNextPage() {
				fmt.Fprintln(cmd.OutOrStdout(), "no more pages")
				return nil
			}
			if err := a.state.LoadNextPage(ctx); err != nil {
				return err
			}
			a.savePage(ctx)
			snap := a.state.Snapshot()
			renderList(cmd.OutOrStdout(), snap)
			c.settle(ctx, snap.Revalidation)
			return nil
		},
	}
}

func (c *cli) filtersCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "filters",
		Short: "Show or change the saved filters",
	}

	show := &cobra.Command{
		Use:   "show",
		Short: "Print the saved filters",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			renderFilters(cmd.OutOrStdout(), c.app.state.Filters())
		},
	}

	var ff filterFlags
	set := &cobra.Command{
		Use:   "set",
		Short: "Change the saved filters and go back to the first page",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if !ff.changed(cmd) {
				return errors.New("nothing to set: pass --location, --category, --min-price or --max-price")
			}
			if err := ff.save(cmd, c.app.state); err != nil {
				return err
			}
			c.app.savePage(cmd.Context())
			renderFilters(cmd.OutOrStdout(), c.app.state.Filters())
			return nil
		},
	}
	ff.bind(set)

	reset := &cobra.Command{
		Use:   "reset",
		Short: "Clear every filter",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := c.app.state.ResetFilters(cmd.Context()); err != nil {
				return err
			}
			c.app.savePage(cmd.Context())
			renderFilters(cmd.OutOrStdout(), c.app.state.Filters())
			return nil
		},
	}

	cmd.AddCommand(show, set, reset)
	return cmd
}

func (c *cli) cacheCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cache",
		Short: "Inspect or maintain the local tour cache",
	}
	cmd.AddCommand(
		&cobra.Command{
			Use:   "stats",
			Short: "Count cached and expired tours",
			Args:  cobra.NoArgs,
			Run: func(cmd *cobra.Command, _ []string) {
				renderStats(cmd.OutOrStdout(), c.app.cache.Stats(cmd.Context()), c.app.breakers.States())
			},
		},
		&cobra.Command{
			Use:   "clear",
			Short: "Remove every cached tour",
			Args:  cobra.NoArgs,
			Run: func(cmd *cobra.Command, _ []string) {
				c.app.state.ClearCache(cmd.Context())
				fmt.Fprintln(cmd.OutOrStdout(), "cache cleared")
			},
		},
		&cobra.Command{
			Use:   "prune",
			Short: "Remove expired tours now",
			Args:  cobra.NoArgs,
			Run: func(cmd *cobra.Command, _ []string) {
				n := c.app.cache.ClearExpired(cmd.Context())
				fmt.Fprintf(cmd.OutOrStdout(), "removed %d expired tours\n", n)
			},
		},
	)
	return cmd
}

// settle lets a one-shot command's background revalidation finish before
// the process exits. The shell keeps running, so it does not wait.
func (c *cli) settle(ctx context.Context, rev *fetch.Revalidation) {
	if c.interactive || rev == nil {
		return
	}
	ctx, cancel := context.WithTimeout(ctx, c.app.cfg.Client.RevalidateDelay+c.app.cfg.Client.Timeout)
	defer cancel()
	if err := rev.Wait(ctx); err != nil {
		slog.Debug("revalidation did not complete", "error", err)
	}
}

// filterFlags are the filter options shared by list and filters set.
type filterFlags struct {
	location string
	category string
	minPrice float64
	maxPrice float64
}

func (f *filterFlags) bind(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.location, "location", "", "location substring, any case (empty clears)")
	cmd.Flags().StringVar(&f.category, "category", "", "exact category (empty clears)")
	cmd.Flags().Float64Var(&f.minPrice, "min-price", 0, "lowest price")
	cmd.Flags().Float64Var(&f.maxPrice, "max-price", 0, "highest price")
}

func (f *filterFlags) changed(cmd *cobra.Command) bool {
	fl := cmd.Flags()
	return fl.Changed("location") || fl.Changed("category") || fl.Changed("min-price") || fl.Changed("max-price")
}

// save merges the changed flags into the saved filters. An unset price end
// stays open.
func (f *filterFlags) save(cmd *cobra.Command, s *state.AppState) error {
	fl := cmd.Flags()
	next := s.Filters()
	if fl.Changed("location") {
		next.Location = f.location
	}
	if fl.Changed("category") {
		next.Category = f.category
	}
	if fl.Changed("min-price") || fl.Changed("max-price") {
		lo, hi := -math.MaxFloat64, math.MaxFloat64
		if next.PriceRange != nil {
			lo, hi = next.PriceRange[0], next.PriceRange[1]
		}
		if fl.Changed("min-price") {
			lo = f.minPrice
		}
		if fl.Changed("max-price") {
			hi = f.maxPrice
		}
		if lo > hi {
			return &tourbook.ValidationError{
				Message: "invalid price range",
				Details: []tourbook.FieldError{{Field: "min-price", Message: "must not exceed max-price"}},
			}
		}
		next.PriceRange = &[2]float64{lo, hi}
	}
	return s.UpdateFilters(cmd.Context(), func(cur *tourbook.Filters) { *cur = next })
}
