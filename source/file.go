// Package source reads folding ranges from files and watches them for
// changes.
package source

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/bmatcuk/doublestar/v4"
	"gopkg.in/yaml.v3"

	"github.com/odvcencio/cursorfold/folding"
	"github.com/odvcencio/cursorfold/lsp"
)

// ErrInvalidRanges is wrapped by every parse failure.
var ErrInvalidRanges = errors.New("invalid ranges file")

// entry accepts both the short {start,end} form and the LSP
// {startLine,endLine} form.
type entry struct {
	Start     *int `yaml:"start"`
	End       *int `yaml:"end"`
	StartLine *int `yaml:"startLine"`
	EndLine   *int `yaml:"endLine"`
}

func (e entry) toRange(i int) (folding.Range, error) {
	switch {
	case e.Start != nil && e.End != nil:
		return folding.Range{Start: *e.Start, End: *e.End}, nil
	case e.StartLine != nil && e.EndLine != nil:
		return folding.Range{Start: *e.StartLine, End: *e.EndLine}, nil
	default:
		return folding.Range{}, fmt.Errorf("%w: entry %d needs start and end", ErrInvalidRanges, i)
	}
}

// ParseRanges decodes a JSON or YAML ranges document: either a list of
// ranges or a mapping with a "ranges" list. The result is sorted by start.
func ParseRanges(data []byte) ([]folding.Range, error) {
	var doc yaml.Node
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidRanges, err)
	}
	if len(doc.Content) == 0 {
		return nil, nil
	}

	root := doc.Content[0]
	var entries []entry
	switch root.Kind {
	case yaml.SequenceNode:
		if err := root.Decode(&entries); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidRanges, err)
		}
	case yaml.MappingNode:
		var wrapped struct {
			Ranges []entry `yaml:"ranges"`
		}
		if err := root.Decode(&wrapped); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidRanges, err)
		}
		entries = wrapped.Ranges
	default:
		return nil, fmt.Errorf("%w: expected a list or a mapping at line %d", ErrInvalidRanges, root.Line)
	}

	ranges := make([]folding.Range, 0, len(entries))
	for i, e := range entries {
		r, err := e.toRange(i)
		if err != nil {
			return nil, err
		}
		ranges = append(ranges, r)
	}
	folding.SortRanges(ranges)
	return ranges, nil
}

// ReadRanges parses the ranges file at path.
func ReadRanges(path string) ([]folding.Range, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	ranges, err := ParseRanges(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return ranges, nil
}

// FileProvider serves folding ranges from ranges files. The uri passed to
// FoldingRanges names the file, as a file:// URI or a path.
type FileProvider struct {
	// Path, when set, is read for every uri.
	Path string
}

// FoldingRanges implements commands.RangeProvider.
func (p FileProvider) FoldingRanges(ctx context.Context, uri string) ([]folding.Range, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	path := p.Path
	if path == "" {
		path = lsp.PathFromURI(uri)
	}
	if path == "" {
		return nil, fmt.Errorf("%w: no file given", ErrInvalidRanges)
	}
	return ReadRanges(path)
}

// IsRangesFile reports whether path names a ranges file by the
// DefaultPattern naming convention.
func IsRangesFile(path string) bool {
	ok, _ := doublestar.Match(DefaultPattern, filepath.Base(path))
	return ok
}
