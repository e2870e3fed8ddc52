package cli

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/odvcencio/cursorfold/folding"
	cflog "github.com/odvcencio/cursorfold/internal/log"
	"github.com/odvcencio/cursorfold/lsp"
	"github.com/odvcencio/cursorfold/source"
)

// rangeFlags picks where a command's folding ranges come from.
type rangeFlags struct {
	file string
	lsp  string
}

func (f *rangeFlags) register(fs *pflag.FlagSet) {
	fs.StringVar(&f.file, "ranges", "", "Read folding ranges from a JSON or YAML file (- for stdin)")
	fs.StringVar(&f.lsp, "lsp", "", "Ask a language server for the folding ranges of this source file")
}

// load returns the ranges and the document uri they belong to.
func (f *rangeFlags) load(cmd *cobra.Command, g *globals) ([]folding.Range, string, error) {
	var (
		ranges []folding.Range
		uri    string
		err    error
	)
	switch {
	case f.file != "" && f.lsp != "":
		return nil, "", errors.New("--ranges and --lsp are mutually exclusive")
	case f.file == "-":
		var data []byte
		if data, err = io.ReadAll(cmd.InOrStdin()); err != nil {
			return nil, "", fmt.Errorf("read stdin: %w", err)
		}
		ranges, err = source.ParseRanges(data)
	case f.file != "":
		uri = lsp.URIFromPath(f.file)
		ranges, err = source.ReadRanges(f.file)
	case f.lsp != "":
		uri = lsp.URIFromPath(f.lsp)
		provider := g.lspProvider()
		defer provider.Close()
		ranges, err = provider.FoldingRanges(cmd.Context(), uri)
	default:
		return nil, "", errors.New("no folding ranges: pass --ranges or --lsp")
	}
	if err != nil {
		return nil, "", err
	}

	if g.cfg.Validate {
		if err := folding.Validate(ranges); err != nil {
			return nil, "", err
		}
	}
	g.logger.Debug("ranges loaded", cflog.URIKey, uri, "count", len(ranges))
	return ranges, uri, nil
}

func (g *globals) lspProvider() *lsp.Provider {
	return lsp.NewProvider(
		lsp.WithServers(g.cfg.AllServers()),
		lsp.WithLogger(g.logger),
	)
}

// routingProvider serves ranges files from disk and everything else from
// language servers.
type routingProvider struct {
	files source.FileProvider
	lsp   *lsp.Provider
}

func (p routingProvider) FoldingRanges(ctx context.Context, uri string) ([]folding.Range, error) {
	if source.IsRangesFile(lsp.PathFromURI(uri)) {
		return p.files.FoldingRanges(ctx, uri)
	}
	return p.lsp.FoldingRanges(ctx, uri)
}

func (p routingProvider) Close() error {
	return p.lsp.Close()
}
