package postgres

import (
	"math"
)

// clampInt64ToInt32 safely narrows an int64 to int32 by clamping to the
// int32 range. duration_ms is stored as INT4 (max ~24.8 days), which is
// sufficient for any realistic region batch run.
func clampInt64ToInt32(v int64) int32 {
	if v > math.MaxInt32 {
		return math.MaxInt32
	}
	if v < math.MinInt32 {
		return math.MinInt32
	}
	return int32(v)
}
