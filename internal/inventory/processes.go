package inventory

import "sort"

// DefaultProcessLimit is the number of processes kept in a report
const DefaultProcessLimit = 20

// topProcesses orders samples by CPU percent, highest first, and keeps at
// most limit entries. Missing CPU values rank as zero and equal values keep
// their enumeration order.
func topProcesses(samples []ProcessEntry, limit int) []ProcessEntry {
	sorted := make([]ProcessEntry, len(samples))
	copy(sorted, samples)

	sort.SliceStable(sorted, func(i, j int) bool {
		return cpuOrZero(sorted[i]) > cpuOrZero(sorted[j])
	})

	if limit >= 0 && len(sorted) > limit {
		sorted = sorted[:limit]
	}
	return sorted
}

func cpuOrZero(p ProcessEntry) float64 {
	if p.CPUPercent == nil {
		return 0
	}
	return *p.CPUPercent
}
