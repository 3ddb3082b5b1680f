package allocation

import (
	"github.com/aimee/backend/internal/inventory"
	"github.com/aimee/backend/internal/models"
)

type Limits struct {
	// MaxShortages caps how many shortage entries one call looks at.
	MaxShortages int
	// MaxChanges caps the transfers returned by one call.
	MaxChanges int
	// MaxPerPair caps the people moved between one surplus/shortage pair.
	MaxPerPair int
}

func DefaultLimits() Limits {
	return Limits{MaxShortages: 5, MaxChanges: 3, MaxPerPair: 2}
}

var DefaultProactiveOrder = []string{"entry-1", "entry-2", "correction", "supervisor-correction"}

type Matcher struct {
	Limits                  Limits
	Selector                Selector
	PrimaryBusinessCategory string
	ProactiveOrder          []string
}

func NewMatcher(limits Limits, selector Selector, primary string, order []string) *Matcher {
	if selector == nil {
		selector = NewRandomSelector(0)
	}
	if len(order) == 0 {
		order = DefaultProactiveOrder
	}
	return &Matcher{Limits: limits, Selector: selector, PrimaryBusinessCategory: primary, ProactiveOrder: order}
}

// Match pairs shortage buckets with surplus buckets. Both slices are
// decremented in place, so a surplus consumed for one shortage is gone for
// the next. When nothing is short and proactive is set, idle non-primary
// capacity is pulled into the primary business instead.
func (m *Matcher) Match(shortage, surplus []models.GapEntry, inv inventory.Inventory, proactive bool) []models.TransferChange {
	changes := []models.TransferChange{}
	if len(shortage) == 0 {
		if proactive {
			return m.matchProactive(surplus, inv)
		}
		return changes
	}

	limit := len(shortage)
	if m.Limits.MaxShortages > 0 && limit > m.Limits.MaxShortages {
		limit = m.Limits.MaxShortages
	}

	for i := 0; i < limit; i++ {
		if m.full(changes) {
			break
		}
		need := &shortage[i]
		for _, idx := range candidateOrder(*need, surplus) {
			if need.Shortage <= 0 || m.full(changes) {
				break
			}
			cand := &surplus[idx]
			if cand.Surplus <= 0 || cand.Location == need.Location {
				continue
			}
			n := minInt(cand.Surplus, need.Shortage, m.Limits.MaxPerPair)
			if n <= 0 {
				continue
			}

			// The same person may end up in two changes here; only the
			// proactive path tracks who was already picked.
			chosen := m.Selector.Select(movable(inv, *cand, *need), n)
			changes = append(changes, transfer(*cand, need.Key(), n, chosen))
			cand.Surplus -= n
			need.Shortage -= n
		}
	}
	return changes
}

// candidateOrder returns indexes of surplus entries for the same process:
// every cross-business candidate first, then same-business ones, each group
// in input order.
func candidateOrder(need models.GapEntry, surplus []models.GapEntry) []int {
	var cross, same []int
	for i, s := range surplus {
		if s.ProcessName != need.ProcessName {
			continue
		}
		if s.BusinessCategory != need.BusinessCategory {
			cross = append(cross, i)
		} else {
			same = append(same, i)
		}
	}
	return append(cross, same...)
}

func movable(inv inventory.Inventory, from, to models.GapEntry) []models.CapabilityRecord {
	if people := inv.People(from.Key()); len(people) > 0 {
		return people
	}
	var out []models.CapabilityRecord
	for _, r := range inv.PeopleAt(from.Location, from.ProcessName) {
		if r.BusinessCategory == to.BusinessCategory && r.BusinessName == to.BusinessName && r.ProcessCategory == to.ProcessCategory {
			out = append(out, r)
		}
	}
	return out
}

func (m *Matcher) matchProactive(surplus []models.GapEntry, inv inventory.Inventory) []models.TransferChange {
	changes := []models.TransferChange{}
	selected := map[string]struct{}{}

	for _, process := range m.ProactiveOrder {
		if m.full(changes) {
			break
		}
		for i := range surplus {
			src := &surplus[i]
			if src.ProcessName != process || src.BusinessCategory == m.PrimaryBusinessCategory || src.Surplus <= 0 {
				continue
			}
			var available []models.CapabilityRecord
			for _, p := range inv.People(src.Key()) {
				if _, taken := selected[personKey(p)]; !taken {
					available = append(available, p)
				}
			}
			if len(available) == 0 {
				continue
			}
			n := minInt(src.Surplus, len(available), m.Limits.MaxPerPair)
			chosen := m.Selector.Select(available, n)
			if len(chosen) == 0 {
				continue
			}
			for _, p := range chosen {
				selected[personKey(p)] = struct{}{}
			}
			changes = append(changes, transfer(*src, m.primaryTarget(*src, inv), len(chosen), chosen))
			src.Surplus -= len(chosen)
			break
		}
	}
	return changes
}

// primaryTarget picks the primary-business bucket for the same process at
// another site. Without one, the site is left open for the approver.
func (m *Matcher) primaryTarget(src models.GapEntry, inv inventory.Inventory) models.HierarchyKey {
	for _, key := range inv.Keys() {
		if key.BusinessCategory == m.PrimaryBusinessCategory && key.ProcessName == src.ProcessName && key.Location != src.Location {
			return key
		}
	}
	return models.HierarchyKey{
		BusinessCategory: m.PrimaryBusinessCategory,
		BusinessName:     m.PrimaryBusinessCategory,
		ProcessCategory:  src.ProcessCategory,
		ProcessName:      src.ProcessName,
	}
}

func (m *Matcher) full(changes []models.TransferChange) bool {
	return m.Limits.MaxChanges > 0 && len(changes) >= m.Limits.MaxChanges
}

func transfer(from models.GapEntry, to models.HierarchyKey, count int, chosen []models.CapabilityRecord) models.TransferChange {
	names := make([]string, 0, len(chosen))
	for _, p := range chosen {
		names = append(names, p.PersonName)
	}
	return models.TransferChange{
		FromLocation:         from.Location,
		FromBusinessCategory: from.BusinessCategory,
		FromBusinessName:     from.BusinessName,
		FromProcessCategory:  from.ProcessCategory,
		FromProcessName:      from.ProcessName,
		ToLocation:           to.Location,
		ToBusinessCategory:   to.BusinessCategory,
		ToBusinessName:       to.BusinessName,
		ToProcessCategory:    to.ProcessCategory,
		ToProcessName:        to.ProcessName,
		Count:                count,
		Operators:            names,
		IsCrossBusiness:      from.BusinessCategory != to.BusinessCategory,
	}
}

func personKey(r models.CapabilityRecord) string {
	if r.PersonID != "" {
		return r.PersonID
	}
	return r.PersonName
}

func minInt(values ...int) int {
	m := values[0]
	for _, v := range values[1:] {
		if v < m {
			m = v
		}
	}
	return m
}
