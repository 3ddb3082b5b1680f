package inventory

import "github.com/aimee/backend/internal/models"

// Thresholds drive the headcount heuristic.
type Thresholds struct {
	// SurplusTrigger is the smallest headcount treated as surplus.
	SurplusTrigger int
	// SurplusFloor is the headcount a surplus bucket keeps.
	SurplusFloor int
	// ShortageAt is the headcount flagged as a shortage of one.
	ShortageAt int
	// ForcedNeed is the need assigned to an explicitly reported incident.
	ForcedNeed int
}

func DefaultThresholds() Thresholds {
	return Thresholds{SurplusTrigger: 3, SurplusFloor: 2, ShortageAt: 1, ForcedNeed: 10}
}

// Reported is a location+process pair the requester said is in trouble.
type Reported struct {
	Location    string
	ProcessName string
}

type Gaps struct {
	Surplus  []models.GapEntry
	Shortage []models.GapEntry
}

// Analyze derives surplus and shortage lists from the inventory. Identical
// input always yields identical output.
func Analyze(inv Inventory, reported *Reported, th Thresholds) Gaps {
	gaps := Gaps{Surplus: []models.GapEntry{}, Shortage: []models.GapEntry{}}
	for _, key := range inv.Keys() {
		count := inv.Headcount(key)
		if count == 0 {
			continue
		}
		entry := gapEntry(key, count)
		switch {
		case count >= th.SurplusTrigger:
			entry.Surplus = count - th.SurplusFloor
			gaps.Surplus = append(gaps.Surplus, entry)
		case count == th.ShortageAt:
			entry.Shortage = 1
			gaps.Shortage = append(gaps.Shortage, entry)
		}
	}

	if reported != nil && reported.Location != "" && reported.ProcessName != "" {
		gaps.Shortage = force(gaps.Shortage, inv, *reported, th.ForcedNeed)
	}
	return gaps
}

// force makes the reported pair a shortage of at least need. A human report
// outweighs the headcount rule, so an existing mechanical entry is raised too.
func force(shortage []models.GapEntry, inv Inventory, rep Reported, need int) []models.GapEntry {
	for i := range shortage {
		if shortage[i].Location == rep.Location && shortage[i].ProcessName == rep.ProcessName {
			if shortage[i].Shortage < need {
				shortage[i].Shortage = need
			}
			shortage[i].Forced = true
			return shortage
		}
	}
	for _, key := range inv.Keys() {
		if key.Location != rep.Location || key.ProcessName != rep.ProcessName {
			continue
		}
		count := inv.Headcount(key)
		if count == 0 {
			continue
		}
		entry := gapEntry(key, count)
		entry.Shortage = need
		entry.Forced = true
		return append(shortage, entry)
	}
	return shortage
}

func gapEntry(key models.HierarchyKey, count int) models.GapEntry {
	return models.GapEntry{
		Location:         key.Location,
		BusinessCategory: key.BusinessCategory,
		BusinessName:     key.BusinessName,
		ProcessCategory:  key.ProcessCategory,
		ProcessName:      key.ProcessName,
		CurrentCount:     count,
	}
}

// Clone copies entries so the matcher can decrement them without touching
// the caller's lists.
func Clone(entries []models.GapEntry) []models.GapEntry {
	out := make([]models.GapEntry, len(entries))
	copy(out, entries)
	return out
}
