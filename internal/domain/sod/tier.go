package sod

import (
	"fmt"
	"sort"

	"github.com/shopspring/decimal"
)

// Tier is one row of an approval threshold table. Amounts up to and including
// MaxAmount fall in the tier; a nil MaxAmount is unbounded.
type Tier struct {
	MaxAmount *decimal.Decimal
	// BelowMaxAmount makes the bound exclusive (amount < MaxAmount).
	BelowMaxAmount bool
	// LevelRoles is the minimum role per approval level; its length is the
	// number of levels. Empty means auto-approve.
	LevelRoles        []Role
	RequiresExecutive bool
}

// Levels returns the number of approval levels of the tier
func (t Tier) Levels() int { return len(t.LevelRoles) }

// Seniority is the most senior role the tier requires.
func (t Tier) Seniority() int {
	return Highest(t.LevelRoles).Rank()
}

func (t Tier) contains(amount decimal.Decimal) bool {
	if t.MaxAmount == nil {
		return true
	}
	if t.BelowMaxAmount {
		return amount.LessThan(*t.MaxAmount)
	}
	return amount.LessThanOrEqual(*t.MaxAmount)
}

// TierTable is an ordered, validated threshold table.
type TierTable struct {
	tiers []Tier
}

func bound(v string) *decimal.Decimal {
	d := decimal.RequireFromString(v)
	return &d
}

// DefaultTiers is used for tenants without configured thresholds.
func DefaultTiers() TierTable {
	return TierTable{tiers: []Tier{
		{MaxAmount: bound("500"), BelowMaxAmount: true},
		{MaxAmount: bound("25000"), LevelRoles: []Role{RoleManager}},
		{MaxAmount: bound("50000"), LevelRoles: []Role{RoleManager, RoleDirector}},
		{MaxAmount: bound("100000"), LevelRoles: []Role{RoleManager, RoleVP}, RequiresExecutive: true},
		{LevelRoles: []Role{RoleDirector, RoleCFO}, RequiresExecutive: true},
	}}
}

// NewTierTable orders tiers by bound and checks that seniority and level
// counts never decrease as the amount grows. The last tier must be unbounded.
func NewTierTable(tiers []Tier) (TierTable, error) {
	if len(tiers) == 0 {
		return TierTable{}, fmt.Errorf("approval tier table is empty")
	}
	sorted := make([]Tier, len(tiers))
	copy(sorted, tiers)
	sort.SliceStable(sorted, func(i, j int) bool {
		a, b := sorted[i].MaxAmount, sorted[j].MaxAmount
		switch {
		case a == nil:
			return false
		case b == nil:
			return true
		default:
			return a.LessThan(*b)
		}
	})
	for i, t := range sorted {
		for _, r := range t.LevelRoles {
			if r.Rank() == 0 {
				return TierTable{}, fmt.Errorf("approval tier %d: unknown role %q", i, r)
			}
		}
		if t.MaxAmount == nil && i != len(sorted)-1 {
			return TierTable{}, fmt.Errorf("approval tier table has more than one unbounded tier")
		}
		if i == 0 {
			continue
		}
		prev := sorted[i-1]
		if t.Seniority() < prev.Seniority() {
			return TierTable{}, fmt.Errorf("approval tier %d requires a lower role than the tier below it", i)
		}
		if t.Levels() < prev.Levels() {
			return TierTable{}, fmt.Errorf("approval tier %d requires fewer levels than the tier below it", i)
		}
		if prev.RequiresExecutive && !t.RequiresExecutive {
			return TierTable{}, fmt.Errorf("approval tier %d drops the executive requirement", i)
		}
		for lvl := 0; lvl < prev.Levels(); lvl++ {
			if t.LevelRoles[lvl].Rank() < prev.LevelRoles[lvl].Rank() {
				return TierTable{}, fmt.Errorf("approval tier %d level %d requires a lower role than the tier below it", i, lvl+1)
			}
		}
	}
	if sorted[len(sorted)-1].MaxAmount != nil {
		return TierTable{}, fmt.Errorf("approval tier table must end with an unbounded tier")
	}
	return TierTable{tiers: sorted}, nil
}

// Lookup returns the tier an amount falls into.
func (tt TierTable) Lookup(amount decimal.Decimal) Tier {
	for _, t := range tt.tiers {
		if t.contains(amount) {
			return t
		}
	}
	return tt.Highest()
}

// Highest returns the most demanding tier.
func (tt TierTable) Highest() Tier {
	if len(tt.tiers) == 0 {
		return DefaultTiers().Highest()
	}
	return tt.tiers[len(tt.tiers)-1]
}

// Tiers returns a copy of the ordered tiers
func (tt TierTable) Tiers() []Tier {
	out := make([]Tier, len(tt.tiers))
	copy(out, tt.tiers)
	return out
}
