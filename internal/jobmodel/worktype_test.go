package jobmodel

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestWorkTypeSetAddContainsRemove(t *testing.T) {
	s := NewWorkTypeSet(WorkTypeTop, WorkTypeEJ)
	assert.True(t, s.Contains(WorkTypeTop))
	assert.True(t, s.Contains(WorkTypeEJ))
	assert.False(t, s.Contains(WorkTypeBG))

	s = s.Remove(WorkTypeTop)
	assert.False(t, s.Contains(WorkTypeTop))
	assert.True(t, s.Contains(WorkTypeEJ))
}

func TestWorkTypeSetAddIgnoresNone(t *testing.T) {
	s := NewWorkTypeSet(WorkTypeNone)
	assert.True(t, s.Empty())
}

func TestWorkTypeSetIterateFixedOrder(t *testing.T) {
	s := NewWorkTypeSet(WorkTypeBG, WorkTypeTop, WorkTypeEJ)

	var seen []WorkType
	s.Iterate(func(w WorkType) bool {
		seen = append(seen, w)
		return true
	})

	assert.Equal(t, []WorkType{WorkTypeTop, WorkTypeEJ, WorkTypeBG}, seen)
}

func TestWorkTypeSetIterateStopsEarly(t *testing.T) {
	s := NewWorkTypeSet(WorkTypeTop, WorkTypeEJ, WorkTypeBG)

	var seen []WorkType
	s.Iterate(func(w WorkType) bool {
		seen = append(seen, w)
		return w != WorkTypeEJ
	})

	assert.Equal(t, []WorkType{WorkTypeTop, WorkTypeEJ}, seen)
}

func TestClassifyWorkTypesForegroundUser(t *testing.T) {
	assert.True(t, ClassifyWorkTypes(BiasTopApp, false, true).Contains(WorkTypeTop))
	assert.True(t, ClassifyWorkTypes(BiasFgService, false, true).Contains(WorkTypeFGS))
	assert.True(t, ClassifyWorkTypes(BiasDefault, false, true).Contains(WorkTypeBG))

	expedited := ClassifyWorkTypes(BiasDefault, true, true)
	assert.True(t, expedited.Contains(WorkTypeEJ))
	assert.False(t, expedited.Contains(WorkTypeBG))
}

func TestClassifyWorkTypesBackgroundUser(t *testing.T) {
	s := ClassifyWorkTypes(BiasDefault, false, false)
	assert.True(t, s.Contains(WorkTypeBGUser))
	assert.False(t, s.Contains(WorkTypeBGUserI))

	s = ClassifyWorkTypes(BiasFgService, false, false)
	assert.True(t, s.Contains(WorkTypeBGUserI))

	s = ClassifyWorkTypes(BiasDefault, true, false)
	assert.True(t, s.Contains(WorkTypeBGUserI))
}
