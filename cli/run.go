package cli

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/odvcencio/cursorfold/commands"
	"github.com/odvcencio/cursorfold/editor"
	"github.com/odvcencio/cursorfold/folding"
)

func newRunCommand(g *globals) *cobra.Command {
	var (
		src        rangeFlags
		cursor     int
		selections selectionsValue
		level      int
		options    []string
		lines      int
	)
	cmd := &cobra.Command{
		Use:   "run COMMAND",
		Short: "Run a folding command and print its plan",
		Long: `Run executes one folding command against a document's ranges and prints
the fold plan it produces together with the lines left folded when the
plan is applied to a fully unfolded document.

COMMAND is a full identifier (cursor-folding.foldLevelN) or its short
form (foldLevelN). Options default to the config file's folding section
and can be overridden with --option.`,
		Example: `  cursorfold run foldAllExceptCursor --ranges main.ranges.json --cursor 42
  cursorfold run foldLevelN --lsp main.go --level 2
  cursorfold run foldSelection --ranges main.ranges.json --select 3:7 -o onlyFoldSelectionsWhenFullyCapped=true`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			command, ok := commands.Lookup(args[0])
			if !ok {
				return fmt.Errorf("%w: %s (run 'cursorfold commands' for the list)", commands.ErrUnknownCommand, args[0])
			}
			opts, err := applyOptions(g.cfg.Folding, options)
			if err != nil {
				return err
			}
			req := commands.Request{
				Cursor:     cursor,
				Selections: selections,
				Level:      level,
				Options:    opts,
			}

			state := editor.NewFoldState()
			if command.NeedsRanges || src.file != "" || src.lsp != "" {
				ranges, uri, err := src.load(cmd, g)
				if err != nil {
					return err
				}
				if ranges == nil {
					ranges = []folding.Range{}
				}
				req.URI, req.Ranges = uri, ranges
				state.SetRanges(ranges)
			}

			dispatcher := commands.NewDispatcher(nil, state,
				commands.WithLogger(g.logger),
				commands.WithValidation(g.cfg.Validate),
			)
			plan, err := dispatcher.Execute(cmd.Context(), command.ID, req)
			if err != nil {
				return err
			}

			out := struct {
				Command string        `json:"command"`
				URI     string        `json:"uri,omitempty"`
				Plan    commands.Plan `json:"plan"`
				Folded  []int         `json:"folded"`
				Visible []int         `json:"visible,omitempty"`
			}{Command: command.ID, URI: req.URI, Plan: plan, Folded: state.Folded()}
			if out.Plan == nil {
				out.Plan = commands.Plan{}
			}
			if out.Folded == nil {
				out.Folded = []int{}
			}
			if lines > 0 {
				out.Visible = state.VisibleLines(lines)
			}
			return g.print(cmd.OutOrStdout(), out, func(w io.Writer) error {
				if len(plan) == 0 {
					fmt.Fprintln(w, "nothing to do")
				}
				for _, in := range plan {
					fmt.Fprintln(w, formatInstruction(in))
				}
				fmt.Fprintf(w, "folded: %s\n", joinInts(out.Folded))
				if out.Visible != nil {
					fmt.Fprintf(w, "visible: %s\n", joinInts(out.Visible))
				}
				return nil
			})
		},
	}
	src.register(cmd.Flags())
	cmd.Flags().IntVarP(&cursor, "cursor", "c", 0, "Line of the primary cursor")
	cmd.Flags().Var(&selections, "select", "Selection as start:end or a line; repeat or comma separate (default: the cursor)")
	cmd.Flags().IntVar(&level, "level", 0, "1-based level for foldLevelN")
	cmd.Flags().StringSliceVarP(&options, "option", "o", nil, "Override a folding setting in key=value format")
	cmd.Flags().IntVar(&lines, "lines", 0, "Document length; when set, also print the visible lines")
	return cmd
}

func formatInstruction(in commands.Instruction) string {
	var b strings.Builder
	b.WriteString(string(in.Action))
	if len(in.Lines) > 0 {
		b.WriteString(" lines=" + strings.ReplaceAll(joinInts(in.Lines), " ", ","))
	}
	if in.Levels > 0 {
		fmt.Fprintf(&b, " levels=%d", in.Levels)
	}
	if in.Direction != "" {
		fmt.Fprintf(&b, " direction=%s", in.Direction)
	}
	return b.String()
}

func joinInts(values []int) string {
	parts := make([]string, len(values))
	for i, v := range values {
		parts[i] = fmt.Sprint(v)
	}
	return strings.Join(parts, " ")
}

func newCommandsCommand(g *globals) *cobra.Command {
	return &cobra.Command{
		Use:   "commands",
		Short: "List the folding commands",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			all := commands.All()
			return g.print(cmd.OutOrStdout(), all, func(w io.Writer) error {
				tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
				fmt.Fprintln(tw, "COMMAND\tCATEGORY\tTITLE")
				for _, c := range all {
					fmt.Fprintf(tw, "%s\t%s\t%s\n", c.ID, c.Category, c.Title)
				}
				return tw.Flush()
			})
		},
	}
}
