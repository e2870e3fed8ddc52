package cli

import (
	"bytes"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/spf13/pflag"
	"gopkg.in/yaml.v3"

	"github.com/odvcencio/cursorfold/commands"
	"github.com/odvcencio/cursorfold/folding"
)

// policyValue is a pflag.Value accepting "loose" or "strict".
type policyValue folding.Policy

var _ pflag.Value = (*policyValue)(nil)

func (p *policyValue) String() string { return folding.Policy(*p).String() }

func (p *policyValue) Set(s string) error {
	policy, err := folding.ParsePolicy(s)
	if err != nil {
		return err
	}
	*p = policyValue(policy)
	return nil
}

func (p *policyValue) Type() string { return "policy" }

// selectionsValue collects selections given as "start:end" or a bare line,
// comma separated or by repeating the flag.
type selectionsValue []folding.Selection

var _ pflag.Value = (*selectionsValue)(nil)

func (s *selectionsValue) String() string {
	parts := make([]string, len(*s))
	for i, sel := range *s {
		parts[i] = fmt.Sprintf("%d:%d", sel.Start, sel.End)
	}
	return strings.Join(parts, ",")
}

func (s *selectionsValue) Set(value string) error {
	for _, item := range strings.Split(value, ",") {
		sel, err := parseSelection(strings.TrimSpace(item))
		if err != nil {
			return err
		}
		*s = append(*s, sel)
	}
	return nil
}

func (s *selectionsValue) Type() string { return "selections" }

func parseSelection(item string) (folding.Selection, error) {
	from, to, found := strings.Cut(item, ":")
	a, err := strconv.Atoi(from)
	if err != nil {
		return folding.Selection{}, fmt.Errorf("invalid selection %q: want start:end or a line", item)
	}
	if !found {
		return folding.Cursor(a), nil
	}
	b, err := strconv.Atoi(to)
	if err != nil {
		return folding.Selection{}, fmt.Errorf("invalid selection %q: want start:end or a line", item)
	}
	return folding.NewSelection(a, b), nil
}

// applyOptions overlays --option key=value pairs, keyed by the setting
// names of the config file's folding section, onto base.
func applyOptions(base commands.Options, pairs []string) (commands.Options, error) {
	if len(pairs) == 0 {
		return base, nil
	}
	set := make(map[string]string, len(pairs))
	for _, pair := range pairs {
		key, value, ok := strings.Cut(pair, "=")
		if !ok || key == "" {
			return base, fmt.Errorf("invalid --option %q: want key=value", pair)
		}
		set[strings.TrimSpace(key)] = strings.TrimSpace(value)
	}
	keys := make([]string, 0, len(set))
	for k := range set {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var doc bytes.Buffer
	for _, k := range keys {
		fmt.Fprintf(&doc, "%s: %s\n", k, set[k])
	}
	dec := yaml.NewDecoder(&doc)
	dec.KnownFields(true)
	if err := dec.Decode(&base); err != nil {
		return base, fmt.Errorf("invalid --option: %w", err)
	}
	return base, nil
}
