package jobstore

import (
	"path/filepath"
	"testing"

	"github.com/bravo1goingdark/schedcore/internal/jobmodel"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestBoltStore(t *testing.T) *BoltStore {
	t.Helper()
	path := filepath.Join(t.TempDir(), "scheduler.db")
	s, err := NewBoltStore(path)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestBoltStoreRoundTrip(t *testing.T) {
	s := openTestBoltStore(t)
	j := jobmodel.NewJob(jobmodel.Identity{SourceUID: 42, SourceUserID: 0, SourcePackage: "com.example.app", JobID: 9})
	j.IsExpedited = true

	require.NoError(t, s.Add(j))

	got, ok := s.Get(42, 9)
	require.True(t, ok)
	assert.True(t, got.IsExpedited)
	assert.Equal(t, "com.example.app", got.SourcePackage)

	require.NoError(t, s.Remove(42, 9))
	_, ok = s.Get(42, 9)
	assert.False(t, ok)
}

func TestBoltStoreCountForUID(t *testing.T) {
	s := openTestBoltStore(t)
	require.NoError(t, s.Add(jobmodel.NewJob(jobmodel.Identity{SourceUID: 5, JobID: 1})))
	require.NoError(t, s.Add(jobmodel.NewJob(jobmodel.Identity{SourceUID: 5, JobID: 2})))
	require.NoError(t, s.Add(jobmodel.NewJob(jobmodel.Identity{SourceUID: 6, JobID: 1})))

	count, err := s.CountForUID(5)
	require.NoError(t, err)
	assert.Equal(t, 2, count)
}
