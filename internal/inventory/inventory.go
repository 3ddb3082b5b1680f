package inventory

import "github.com/aimee/backend/internal/models"

// Inventory indexes capability records two ways. Keys preserve the order in
// which the source first returned them.
type Inventory struct {
	Records     []models.CapabilityRecord
	ByHierarchy map[models.HierarchyKey][]models.CapabilityRecord
	BySimple    map[models.SimpleKey][]models.CapabilityRecord
	Snapshots   []models.SnapshotRow

	hierarchyOrder []models.HierarchyKey
}

func Build(records []models.CapabilityRecord, snapshots []models.SnapshotRow) Inventory {
	inv := Inventory{
		Records:     records,
		ByHierarchy: map[models.HierarchyKey][]models.CapabilityRecord{},
		BySimple:    map[models.SimpleKey][]models.CapabilityRecord{},
		Snapshots:   snapshots,
	}
	for _, r := range records {
		hk := r.HierarchyKey()
		if _, ok := inv.ByHierarchy[hk]; !ok {
			inv.hierarchyOrder = append(inv.hierarchyOrder, hk)
		}
		inv.ByHierarchy[hk] = append(inv.ByHierarchy[hk], r)
		sk := r.SimpleKey()
		inv.BySimple[sk] = append(inv.BySimple[sk], r)
	}
	return inv
}

// Keys returns hierarchy keys in source order.
func (inv Inventory) Keys() []models.HierarchyKey {
	out := make([]models.HierarchyKey, len(inv.hierarchyOrder))
	copy(out, inv.hierarchyOrder)
	return out
}

// Headcount counts distinct people in a hierarchy bucket.
func (inv Inventory) Headcount(key models.HierarchyKey) int {
	return len(distinct(inv.ByHierarchy[key]))
}

func (inv Inventory) Empty() bool {
	return len(inv.Records) == 0
}

func distinct(records []models.CapabilityRecord) []models.CapabilityRecord {
	seen := make(map[string]struct{}, len(records))
	out := make([]models.CapabilityRecord, 0, len(records))
	for _, r := range records {
		id := r.PersonID
		if id == "" {
			id = r.PersonName
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, r)
	}
	return out
}

// People returns the distinct people in a hierarchy bucket.
func (inv Inventory) People(key models.HierarchyKey) []models.CapabilityRecord {
	return distinct(inv.ByHierarchy[key])
}

// PeopleAt returns distinct people at a site who can run process.
func (inv Inventory) PeopleAt(location, process string) []models.CapabilityRecord {
	return distinct(inv.BySimple[models.SimpleKey{Location: location, ProcessName: process}])
}
