package jobmodel

// WorkType tags, for assignment accounting only, what flavor of work a
// running job is consuming. See spec §3.
type WorkType int

const (
	WorkTypeTop WorkType = iota
	WorkTypeFGS
	WorkTypeEJ
	WorkTypeBG
	WorkTypeBGUserI
	WorkTypeBGUser
	WorkTypeNone
)

func (w WorkType) String() string {
	switch w {
	case WorkTypeTop:
		return "TOP"
	case WorkTypeFGS:
		return "FGS"
	case WorkTypeEJ:
		return "EJ"
	case WorkTypeBG:
		return "BG"
	case WorkTypeBGUserI:
		return "BGUSER_I"
	case WorkTypeBGUser:
		return "BGUSER"
	default:
		return "NONE"
	}
}

// AllWorkTypes is the fixed TOP..BGUSER iteration order the tracker uses
// for every ordered scan (spec §4.1 canJobStart, §4.4.3).
var AllWorkTypes = [6]WorkType{
	WorkTypeTop, WorkTypeFGS, WorkTypeEJ, WorkTypeBG, WorkTypeBGUserI, WorkTypeBGUser,
}

// WorkTypeSet is a bitmask over the 6 accounted work types, per DESIGN
// NOTES §9: a job may be acceptable as any one of several types, and the
// tracker picks one at start time.
type WorkTypeSet uint8

func NewWorkTypeSet(types ...WorkType) WorkTypeSet {
	var s WorkTypeSet
	for _, t := range types {
		s = s.Add(t)
	}
	return s
}

func (s WorkTypeSet) Add(t WorkType) WorkTypeSet {
	if t == WorkTypeNone {
		return s
	}
	return s | (1 << uint(t))
}

func (s WorkTypeSet) Contains(t WorkType) bool {
	if t == WorkTypeNone {
		return false
	}
	return s&(1<<uint(t)) != 0
}

func (s WorkTypeSet) Empty() bool {
	return s == 0
}

// Iterate calls fn for every member of the set in the fixed TOP..BGUSER
// order, stopping early if fn returns false.
func (s WorkTypeSet) Iterate(fn func(WorkType) bool) {
	for _, t := range AllWorkTypes {
		if s.Contains(t) {
			if !fn(t) {
				return
			}
		}
	}
}

// Remove returns the set with t cleared, used by shouldStopRunningJob's
// remainingWorkTypes bookkeeping (§4.4.3 step 8).
func (s WorkTypeSet) Remove(t WorkType) WorkTypeSet {
	return s &^ (1 << uint(t))
}

// ClassifyWorkTypes derives the acceptable set for a job from (bias,
// isExpedited, fg-user status), per spec §3's WorkType table.
func ClassifyWorkTypes(bias Bias, isExpedited bool, isForegroundUser bool) WorkTypeSet {
	var s WorkTypeSet
	if isForegroundUser {
		switch {
		case bias >= BiasTopApp:
			s = s.Add(WorkTypeTop)
		case bias >= BiasFgService:
			s = s.Add(WorkTypeFGS)
		default:
			if !isExpedited {
				s = s.Add(WorkTypeBG)
			}
		}
		if isExpedited {
			s = s.Add(WorkTypeEJ)
		}
	} else {
		s = s.Add(WorkTypeBGUser)
		if bias >= BiasFgService || isExpedited {
			s = s.Add(WorkTypeBGUserI)
		}
	}
	return s
}
