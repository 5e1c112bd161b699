package jobstore

import (
	"testing"

	"github.com/bravo1goingdark/schedcore/internal/jobmodel"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryStoreAddGetRemove(t *testing.T) {
	s := NewMemoryStore()
	j := jobmodel.NewJob(jobmodel.Identity{SourceUID: 100, SourceUserID: 0, SourcePackage: "com.example.app", JobID: 7})

	require.NoError(t, s.Add(j))

	got, ok := s.Get(100, 7)
	require.True(t, ok)
	assert.Equal(t, j.InternalID, got.InternalID)

	count, err := s.CountForUID(100)
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	require.NoError(t, s.Remove(100, 7))
	_, ok = s.Get(100, 7)
	assert.False(t, ok)
}

func TestMemoryStoreForEachStopsEarly(t *testing.T) {
	s := NewMemoryStore()
	for i := int64(0); i < 5; i++ {
		require.NoError(t, s.Add(jobmodel.NewJob(jobmodel.Identity{SourceUID: 1, JobID: i})))
	}

	seen := 0
	err := s.ForEach(func(j *jobmodel.Job) bool {
		seen++
		return seen < 2
	})
	require.NoError(t, err)
	assert.Equal(t, 2, seen)
}
