package jobmodel

// PackageKey identifies a (userId, package) pair for per-app accounting.
type PackageKey struct {
	UserID  int
	Package string
}

// PackageStats tracks concurrent running+staged job counts for one
// (user, package), split expedited vs. regular (spec §3, §4.2).
type PackageStats struct {
	NumRunningEJ      int
	NumRunningRegular int
	NumStagedEJ       int
	NumStagedRegular  int
}

// IsEmpty reports whether every counter is zero, the condition under
// which the owning map must delete this entry (spec invariant 4).
func (p *PackageStats) IsEmpty() bool {
	return p.NumRunningEJ == 0 && p.NumRunningRegular == 0 &&
		p.NumStagedEJ == 0 && p.NumStagedRegular == 0
}

func clampFloor0(n int) int {
	if n < 0 {
		return 0
	}
	return n
}

// AdjustRunning applies delta to the running counter for the ej/regular
// lane, floor-clamped at 0 per the failure-semantics rule in spec §4.1.
func (p *PackageStats) AdjustRunning(forEJ bool, delta int) {
	if forEJ {
		p.NumRunningEJ = clampFloor0(p.NumRunningEJ + delta)
	} else {
		p.NumRunningRegular = clampFloor0(p.NumRunningRegular + delta)
	}
}

// AdjustStaged applies delta to the staged counter for the ej/regular lane.
func (p *PackageStats) AdjustStaged(forEJ bool, delta int) {
	if forEJ {
		p.NumStagedEJ = clampFloor0(p.NumStagedEJ + delta)
	} else {
		p.NumStagedRegular = clampFloor0(p.NumStagedRegular + delta)
	}
}
