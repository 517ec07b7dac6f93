package timeseries

import "yieldscope/internal/domain"

// ResolveAPY returns the yield rate for a sample under a fixed priority:
//
//  1. total APY, when reported
//  2. base + reward, when both components are reported
//  3. base alone
//  4. reward alone
//
// Returns nil when no component was observed. Absent is never coerced to zero.
func ResolveAPY(s *domain.Sample) *float64 {
	switch {
	case s.APY != nil:
		return s.APY
	case s.APYBase != nil && s.APYReward != nil:
		v := *s.APYBase + *s.APYReward
		return &v
	case s.APYBase != nil:
		return s.APYBase
	case s.APYReward != nil:
		return s.APYReward
	}
	return nil
}
