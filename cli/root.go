// Package cli implements the cursorfold command line.
package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/spf13/cobra"

	"github.com/odvcencio/cursorfold/config"
	cflog "github.com/odvcencio/cursorfold/internal/log"
)

var version = "dev"

// SetVersion sets the version reported by --version (called from main).
func SetVersion(v string) {
	if v != "" {
		version = v
	}
}

// GetVersion returns the version reported by --version.
func GetVersion() string {
	return version
}

// globals holds the persistent flags and what PersistentPreRunE derives
// from them.
type globals struct {
	configPath string
	json       bool
	logLevel   string
	validate   bool

	cfg    *config.Config
	logger *slog.Logger
}

// NewRootCommand creates the root Cobra command for cursorfold.
func NewRootCommand() *cobra.Command {
	g := &globals{}

	cmd := &cobra.Command{
		Use:   "cursorfold",
		Short: "cursorfold - cursor-aware code folding",
		Long: `cursorfold computes cursor-aware folds over the folding ranges of a
document: nesting levels, the blocks enclosing a line, the range forest and
the minimal set of ranges covering a selection.

Ranges come from a JSON or YAML ranges file (--ranges) or from a language
server (--lsp). Run 'cursorfold commands' to list the folding commands.`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return g.load(cmd)
		},
	}

	cmd.PersistentFlags().StringVar(&g.configPath, "config", "", "Path to config file (default: $XDG_CONFIG_HOME/cursorfold/config.yaml)")
	cmd.PersistentFlags().BoolVar(&g.json, "json", false, "Output in JSON format")
	cmd.PersistentFlags().StringVar(&g.logLevel, "log-level", "", "Log level: debug, info, warn, error (overrides config)")
	cmd.PersistentFlags().BoolVar(&g.validate, "validate", false, "Reject folding ranges that are not sorted and laminar")

	cmd.AddCommand(
		newLevelsCommand(g),
		newEncloseCommand(g),
		newForestCommand(g),
		newCoverCommand(g),
		newRunCommand(g),
		newCommandsCommand(g),
		newServeCommand(g),
		newMCPCommand(g),
		newWatchCommand(g),
	)
	cmd.SetHelpFunc(helpFunc(cmd.HelpFunc()))
	return cmd
}

// load reads the config file and applies the persistent flag overrides.
func (g *globals) load(cmd *cobra.Command) error {
	path := g.configPath
	if path == "" {
		path = config.Path()
	}
	cfg, err := config.Load(path)
	if err != nil {
		return err
	}

	flags := cmd.Flags()
	if flags.Changed("log-level") {
		cfg.Log.Level = strings.ToLower(g.logLevel)
		if err := cfg.Check(); err != nil {
			return err
		}
	}
	if flags.Changed("validate") {
		cfg.Validate = g.validate
	}

	logCfg := cfg.Logging()
	logCfg.Output = cmd.ErrOrStderr()
	g.cfg = cfg
	g.logger = cflog.New(logCfg)
	g.logger.Debug("config loaded", "path", path, "validate", cfg.Validate)
	return nil
}

// print writes v as indented JSON under --json, else calls text.
func (g *globals) print(w io.Writer, v any, text func(io.Writer) error) error {
	if g.json {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	}
	return text(w)
}

func joinRanges[T fmt.Stringer](items []T) string {
	parts := make([]string, len(items))
	for i, item := range items {
		parts[i] = item.String()
	}
	return strings.Join(parts, " ")
}
