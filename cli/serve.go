package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/odvcencio/cursorfold/folding"
	cflog "github.com/odvcencio/cursorfold/internal/log"
	"github.com/odvcencio/cursorfold/lsp"
	"github.com/odvcencio/cursorfold/mcptools"
	"github.com/odvcencio/cursorfold/source"
	"github.com/odvcencio/cursorfold/web"
)

const shutdownTimeout = 5 * time.Second

func newServeCommand(g *globals) *cobra.Command {
	var (
		addr     string
		watchDir string
		pattern  string
	)
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve folding over websocket JSON-RPC",
		Long: `Serve starts the websocket JSON-RPC endpoint at /ws, Prometheus metrics at
/metrics and a health check at /healthz.

Requests naming a uri read ranges files (*.ranges.json, *.ranges.yaml)
from disk and ask a language server for everything else. With --watch,
clients are sent a rangesChanged notification when a ranges file changes.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if !cmd.Flags().Changed("addr") {
				addr = g.cfg.Serve.Addr
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			provider := routingProvider{lsp: g.lspProvider()}
			defer provider.Close()
			srv := web.NewServer(web.Config{
				Provider: provider,
				Options:  g.cfg.Folding,
				Validate: g.cfg.Validate,
				Logger:   g.logger,
			})

			var watcher *source.Watcher
			if watchDir != "" {
				var err error
				watcher, err = source.NewWatcher(source.WatcherConfig{Root: watchDir, Pattern: pattern, Logger: g.logger})
				if err != nil {
					return err
				}
				defer watcher.Close()
			}

			ln, err := net.Listen("tcp", addr)
			if err != nil {
				return fmt.Errorf("listen: %w", err)
			}
			httpServer := &http.Server{Handler: srv, ReadHeaderTimeout: 10 * time.Second}

			eg, ctx := errgroup.WithContext(ctx)
			eg.Go(func() error {
				if err := httpServer.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
					return err
				}
				return nil
			})
			eg.Go(func() error {
				<-ctx.Done()
				shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
				defer cancel()
				return httpServer.Shutdown(shutdownCtx)
			})
			if watcher != nil {
				eg.Go(func() error {
					for path := range watcher.Watch(ctx) {
						srv.Broadcast("rangesChanged", map[string]string{"uri": lsp.URIFromPath(path)})
					}
					return nil
				})
			}

			g.logger.Info("serving", "addr", ln.Addr().String())
			fmt.Fprintf(cmd.OutOrStdout(), "listening on ws://%s/ws\n", ln.Addr())
			return eg.Wait()
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "Listen address (default: serve.addr from config)")
	cmd.Flags().StringVar(&watchDir, "watch", "", "Notify clients when ranges files under this directory change")
	cmd.Flags().StringVar(&pattern, "pattern", source.DefaultPattern, "Glob of watched ranges files")
	return cmd
}

func newMCPCommand(g *globals) *cobra.Command {
	return &cobra.Command{
		Use:   "mcp",
		Short: "Serve the folding tools over MCP on stdio",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			provider := routingProvider{lsp: g.lspProvider()}
			defer provider.Close()
			srv := mcptools.NewServer(mcptools.ServerConfig{
				Version:  GetVersion(),
				Provider: provider,
				Options:  g.cfg.Folding,
				Logger:   g.logger,
			})
			return srv.Run(cmd.Context())
		},
	}
}

// watchReport is one line of watch output.
type watchReport struct {
	Path   string              `json:"path"`
	Depth  int                 `json:"depth"`
	Count  int                 `json:"count"`
	Levels folding.LevelGroups `json:"levels,omitempty"`
	Error  string              `json:"error,omitempty"`
}

func newWatchCommand(g *globals) *cobra.Command {
	var pattern string
	cmd := &cobra.Command{
		Use:   "watch [DIR]",
		Short: "Recompute levels whenever a ranges file changes",
		Long: `Watch follows ranges files under DIR (default: the working directory)
and prints the level grouping of each file as it changes. Under --json
every change is one JSON object per line.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			root := "."
			if len(args) == 1 {
				root = args[0]
			}
			watcher, err := source.NewWatcher(source.WatcherConfig{
				Root:    root,
				Pattern: pattern,
				Logger:  cflog.WithComponent(g.logger, "watch"),
			})
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			out := cmd.OutOrStdout()
			enc := json.NewEncoder(out)
			for path := range watcher.Watch(ctx) {
				report := g.report(path)
				if g.json {
					if err := enc.Encode(report); err != nil {
						return err
					}
					continue
				}
				if report.Error != "" {
					fmt.Fprintf(out, "%s: %s\n", path, report.Error)
					continue
				}
				fmt.Fprintf(out, "%s: %d ranges, depth %d\n", path, report.Count, report.Depth)
				for i, bucket := range report.Levels {
					fmt.Fprintf(out, "  level %d: %s\n", i+1, joinRanges(bucket))
				}
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&pattern, "pattern", source.DefaultPattern, "Glob of watched ranges files")
	return cmd
}

// report reads and groups one changed file. A file that cannot be read or
// fails validation is reported, not fatal.
func (g *globals) report(path string) watchReport {
	report := watchReport{Path: path}
	ranges, err := source.ReadRanges(path)
	if err == nil && g.cfg.Validate {
		err = folding.Validate(ranges)
	}
	if err != nil {
		g.logger.Warn("ranges file rejected", cflog.URIKey, path, "error", err)
		report.Error = err.Error()
		return report
	}
	groups := folding.GroupLevels(ranges)
	report.Depth = groups.Depth()
	report.Count = len(ranges)
	report.Levels = groups
	return report
}
