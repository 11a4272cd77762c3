package usecase

import "github.com/user/court-watch/internal/entity"

// Dedupe drops records whose key was already seen, keeping first-seen order.
// Dedupe(Dedupe(x)) equals Dedupe(x).
func Dedupe(records []entity.SlotRecord) []entity.SlotRecord {
	seen := make(map[entity.SlotKey]struct{}, len(records))
	out := make([]entity.SlotRecord, 0, len(records))
	for _, r := range records {
		k := r.Key()
		if _, ok := seen[k]; ok {
			continue
		}
		seen[k] = struct{}{}
		out = append(out, r)
	}
	return out
}

// Aggregate concatenates per-facility results in facility order and dedupes them.
func Aggregate(results []entity.FacilityResult) entity.ScanResult {
	var all []entity.SlotRecord
	for _, r := range results {
		all = append(all, r.Slots...)
	}
	return entity.ScanResult{Slots: Dedupe(all)}
}

// CountByFacility returns the number of slots per facility key.
func CountByFacility(slots []entity.SlotRecord) map[string]int {
	out := make(map[string]int)
	for _, s := range slots {
		out[s.Facility]++
	}
	return out
}
