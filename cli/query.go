package cli

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/odvcencio/cursorfold/folding"
)

func newLevelsCommand(g *globals) *cobra.Command {
	var (
		src   rangeFlags
		level int
	)
	cmd := &cobra.Command{
		Use:   "levels",
		Short: "Group folding ranges by nesting depth",
		Example: `  cursorfold levels --ranges main.ranges.json
  cursorfold levels --lsp main.go --level 2`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if level < 0 {
				return fmt.Errorf("--level must be at least 1")
			}
			ranges, uri, err := src.load(cmd, g)
			if err != nil {
				return err
			}
			groups := folding.GroupLevels(ranges)

			if level > 0 {
				selected := groups.Level(level)
				if selected == nil {
					selected = []folding.Range{}
				}
				out := struct {
					URI    string          `json:"uri,omitempty"`
					Level  int             `json:"level"`
					Ranges []folding.Range `json:"ranges"`
				}{uri, level, selected}
				return g.print(cmd.OutOrStdout(), out, func(w io.Writer) error {
					_, err := fmt.Fprintf(w, "level %d: %s\n", level, joinRanges(selected))
					return err
				})
			}

			out := struct {
				URI    string              `json:"uri,omitempty"`
				Depth  int                 `json:"depth"`
				Levels folding.LevelGroups `json:"levels"`
			}{uri, groups.Depth(), groups}
			if out.Levels == nil {
				out.Levels = folding.LevelGroups{}
			}
			return g.print(cmd.OutOrStdout(), out, func(w io.Writer) error {
				for i, bucket := range groups {
					if _, err := fmt.Fprintf(w, "level %d: %s\n", i+1, joinRanges(bucket)); err != nil {
						return err
					}
				}
				return nil
			})
		},
	}
	src.register(cmd.Flags())
	cmd.Flags().IntVar(&level, "level", 0, "Print only this 1-based level")
	return cmd
}

func newEncloseCommand(g *globals) *cobra.Command {
	var src rangeFlags
	cmd := &cobra.Command{
		Use:     "enclose LINE",
		Short:   "List the ranges enclosing a line, outermost first",
		Example: `  cursorfold enclose 42 --ranges main.ranges.json`,
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			line, err := strconv.Atoi(args[0])
			if err != nil {
				return fmt.Errorf("invalid line %q", args[0])
			}
			ranges, uri, err := src.load(cmd, g)
			if err != nil {
				return err
			}
			path := folding.GroupLevels(ranges).Enclose(line)
			if path == nil {
				path = folding.EnclosurePath{}
			}

			out := struct {
				URI   string                `json:"uri,omitempty"`
				Line  int                   `json:"line"`
				Depth int                   `json:"depth"`
				Path  folding.EnclosurePath `json:"path"`
			}{uri, line, path.Depth(), path}
			return g.print(cmd.OutOrStdout(), out, func(w io.Writer) error {
				if len(path) == 0 {
					_, err := fmt.Fprintf(w, "line %d: not enclosed\n", line)
					return err
				}
				fmt.Fprintf(w, "line %d: depth %d\n", line, path.Depth())
				for _, e := range path {
					fmt.Fprintf(w, "  %d %s\n", e.Depth, e.Range)
				}
				return nil
			})
		},
	}
	src.register(cmd.Flags())
	return cmd
}

func newForestCommand(g *globals) *cobra.Command {
	var src rangeFlags
	cmd := &cobra.Command{
		Use:   "forest",
		Short: "Print the parent/child structure of the folding ranges",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ranges, uri, err := src.load(cmd, g)
			if err != nil {
				return err
			}
			forest := folding.BuildForest(ranges)
			if forest == nil {
				forest = folding.Forest{}
			}

			out := struct {
				URI    string         `json:"uri,omitempty"`
				Count  int            `json:"count"`
				Forest folding.Forest `json:"forest"`
			}{uri, forest.Len(), forest}
			return g.print(cmd.OutOrStdout(), out, func(w io.Writer) error {
				forest.Walk(func(n *folding.Node, depth int) bool {
					fmt.Fprintf(w, "%s%s\n", strings.Repeat("  ", depth-1), n.Range)
					return true
				})
				return nil
			})
		},
	}
	src.register(cmd.Flags())
	return cmd
}

func newCoverCommand(g *globals) *cobra.Command {
	var (
		src        rangeFlags
		selections selectionsValue
		policy     policyValue
	)
	cmd := &cobra.Command{
		Use:   "cover",
		Short: "Find the outermost ranges covered by selections",
		Long: `Cover resolves selections to the outermost folding ranges they cover.

With the loose policy a selection covers any range it touches; with the
strict policy only ranges it fully encloses. The default policy comes from
the folding.onlyFoldSelectionsWhenFullyCapped config setting.`,
		Example: `  cursorfold cover --ranges main.ranges.json --select 3:7
  cursorfold cover --ranges main.ranges.json --select 3:7,12 --policy strict`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if len(selections) == 0 {
				return fmt.Errorf("no selections: pass --select")
			}
			ranges, uri, err := src.load(cmd, g)
			if err != nil {
				return err
			}
			p := folding.Policy(policy)
			if !cmd.Flags().Changed("policy") {
				p = g.cfg.Folding.Policy()
			}
			covered := folding.Cover(folding.BuildForest(ranges), selections, p)
			if covered == nil {
				covered = []folding.Range{}
			}

			out := struct {
				URI    string          `json:"uri,omitempty"`
				Policy folding.Policy  `json:"policy"`
				Ranges []folding.Range `json:"ranges"`
			}{uri, p, covered}
			return g.print(cmd.OutOrStdout(), out, func(w io.Writer) error {
				_, err := fmt.Fprintf(w, "%s: %s\n", p, joinRanges(covered))
				return err
			})
		},
	}
	src.register(cmd.Flags())
	cmd.Flags().Var(&selections, "select", "Selection as start:end or a line; repeat or comma separate")
	cmd.Flags().Var(&policy, "policy", "Coverage policy: loose or strict")
	return cmd
}
