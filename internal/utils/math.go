package utils

import "math"

const bytesPerGiB = 1024 * 1024 * 1024

// Round rounds a float64 value to 2 decimal places
func Round(val float64) float64 {
	return math.Round(val*100) / 100
}

// BytesToGiB converts a byte count to GiB without rounding
func BytesToGiB(b uint64) float64 {
	return float64(b) / bytesPerGiB
}

// Percent returns part/total*100, or 0 when total is zero
func Percent(part, total uint64) float64 {
	if total == 0 {
		return 0
	}
	return float64(part) / float64(total) * 100
}
