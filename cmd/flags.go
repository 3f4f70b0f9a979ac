package cmd

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
	"github.com/spf13/pflag"

	"github.com/gzn7264/ai-travel-planner/internal/dateparse"
	"github.com/gzn7264/ai-travel-planner/internal/models"
	"github.com/gzn7264/ai-travel-planner/internal/repo"
)

// decimalValue is a pflag.Value holding a money amount.
type decimalValue struct {
	d decimal.Decimal
}

var _ pflag.Value = (*decimalValue)(nil)

func (v *decimalValue) String() string { return v.d.String() }

func (v *decimalValue) Set(s string) error {
	d, err := decimal.NewFromString(strings.TrimSpace(s))
	if err != nil {
		return fmt.Errorf("invalid amount %q", s)
	}
	v.d = d
	return nil
}

func (v *decimalValue) Type() string { return "amount" }

// amountFlag registers an amount flag on fs.
func amountFlag(fs *pflag.FlagSet, name, usage string) {
	fs.Var(&decimalValue{}, name, usage)
}

// getAmount returns the amount given for name and whether it was set.
func getAmount(fs *pflag.FlagSet, name string) (decimal.Decimal, bool) {
	f := fs.Lookup(name)
	if f == nil || !f.Changed {
		return decimal.Zero, false
	}
	return f.Value.(*decimalValue).d, true
}

// resolveID finds the entity arg refers to: an exact local or server id,
// or a unique suffix of a local id as printed by list commands.
func resolveID(metas []models.SyncMeta, arg string) (string, error) {
	arg = strings.TrimSpace(arg)
	if arg == "" {
		return "", fmt.Errorf("id is required")
	}
	for _, m := range metas {
		if m.LocalID == arg || (m.ServerID != "" && m.ServerID == arg) {
			return m.LocalID, nil
		}
	}
	var matches []string
	lower := strings.ToLower(arg)
	for _, m := range metas {
		if strings.HasSuffix(strings.ToLower(m.LocalID), lower) {
			matches = append(matches, m.LocalID)
		}
	}
	switch len(matches) {
	case 0:
		return "", fmt.Errorf("%s: not found", arg)
	case 1:
		return matches[0], nil
	}
	return "", fmt.Errorf("%s: ambiguous, matches %d entries", arg, len(matches))
}

func metasOf[T any](items []repo.Entity[T]) []models.SyncMeta {
	out := make([]models.SyncMeta, len(items))
	for i, it := range items {
		out[i] = it.SyncMeta
	}
	return out
}

// getDate reads a date flag, resolving shorthands like "today" or "+3d".
func getDate(fs *pflag.FlagSet, name string) (string, error) {
	raw, _ := fs.GetString(name)
	d, err := dateparse.Parse(raw)
	if err != nil {
		return "", fmt.Errorf("--%s: %w", name, err)
	}
	return d, nil
}
