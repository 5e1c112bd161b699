package jobmodel

import "fmt"

// StandardConcurrencyLimit is the hard cap on simultaneously running jobs
// (spec §5, §3: "maximum STANDARD_CONCURRENCY_LIMIT (16)").
const StandardConcurrencyLimit = 16

// IdlePoolLimit is the cap on cached-but-unused slot contexts between
// assignment passes (spec §5: "1.5 x STANDARD_CONCURRENCY_LIMIT = 24").
const IdlePoolLimit = StandardConcurrencyLimit * 3 / 2

// ScreenState selects which half of the WorkTypeConfig table applies.
type ScreenState int

const (
	ScreenOff ScreenState = iota
	ScreenOn
)

// MemoryTrimLevel mirrors Android's ActivityManager trim levels, coarsened
// to the four buckets the spec's config table is keyed on.
type MemoryTrimLevel int

const (
	TrimNormal MemoryTrimLevel = iota
	TrimModerate
	TrimLow
	TrimCritical
)

// WorkTypeConfig is one row of the (screenState x memoryTrimLevel) table:
// a total slot budget plus a per-work-type floor and ceiling (spec §3).
type WorkTypeConfig struct {
	MaxTotal    int
	MinReserved [6]int
	MaxAllowed  [6]int
}

// Validate checks the invariants spec §3 places on a WorkTypeConfig:
// minReserved sums within maxTotal, no negative reservation, TOP always
// gets at least one guaranteed slot, and every cap sits in [1, maxTotal].
func (c WorkTypeConfig) Validate() error {
	if c.MaxTotal <= 0 || c.MaxTotal > StandardConcurrencyLimit {
		return fmt.Errorf("maxTotal %d out of range (1..%d)", c.MaxTotal, StandardConcurrencyLimit)
	}
	sum := 0
	for _, wt := range AllWorkTypes {
		r := c.MinReserved[wt]
		if r < 0 {
			return fmt.Errorf("minReserved[%s] = %d must be >= 0", wt, r)
		}
		sum += r
		a := c.MaxAllowed[wt]
		if a < 1 || a > c.MaxTotal {
			return fmt.Errorf("maxAllowed[%s] = %d out of range (1..%d)", wt, a, c.MaxTotal)
		}
	}
	if sum > c.MaxTotal {
		return fmt.Errorf("sum(minReserved)=%d exceeds maxTotal=%d", sum, c.MaxTotal)
	}
	if c.MinReserved[WorkTypeTop] < 1 {
		return fmt.Errorf("minReserved[TOP] must be >= 1")
	}
	return nil
}

// DefaultConfigs builds the {on,off} x {normal,moderate,low,critical}
// table spec §3 requires be pre-built, with reasonable reservations.
func DefaultConfigs() map[ScreenState]map[MemoryTrimLevel]WorkTypeConfig {
	build := func(maxTotal int, scale float64) WorkTypeConfig {
		c := WorkTypeConfig{MaxTotal: maxTotal}
		minBase := [6]int{1, 1, 1, 1, 1, 1}
		maxBase := [6]int{maxTotal, maxTotal, maxTotal, maxTotal, maxTotal, maxTotal}
		for _, wt := range AllWorkTypes {
			m := int(float64(minBase[wt]) * scale)
			if m < 0 {
				m = 0
			}
			c.MinReserved[wt] = m
			c.MaxAllowed[wt] = maxBase[wt]
		}
		c.MinReserved[WorkTypeTop] = 1
		sum := 0
		for _, wt := range AllWorkTypes {
			sum += c.MinReserved[wt]
		}
		for i := len(AllWorkTypes) - 1; i > 0 && sum > maxTotal; i-- {
			if wt := AllWorkTypes[i]; c.MinReserved[wt] > 0 {
				c.MinReserved[wt]--
				sum--
			}
		}
		return c
	}

	return map[ScreenState]map[MemoryTrimLevel]WorkTypeConfig{
		ScreenOn: {
			TrimNormal:   build(StandardConcurrencyLimit, 1.0),
			TrimModerate: build(12, 1.0),
			TrimLow:      build(8, 1.0),
			TrimCritical: build(4, 1.0),
		},
		ScreenOff: {
			TrimNormal:   build(10, 1.0),
			TrimModerate: build(8, 1.0),
			TrimLow:      build(5, 1.0),
			TrimCritical: build(3, 1.0),
		},
	}
}
