package jobstore

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/bravo1goingdark/schedcore/internal/jobmodel"
	"github.com/pkg/errors"
	"go.etcd.io/bbolt"
)

const jobsBucket = "jobs"

// BoltStore is a bbolt-backed JobStore, for a scheduler process that
// needs its pending/running set to survive a restart.
type BoltStore struct {
	db *bbolt.DB
}

// NewBoltStore opens (creating if absent) a bbolt database at path and
// ensures its job bucket exists.
func NewBoltStore(path string) (*BoltStore, error) {
	db, err := bbolt.Open(path, 0600, nil)
	if err != nil {
		return nil, errors.Wrapf(err, "open bolt db at %s", path)
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists([]byte(jobsBucket))
		return errors.Wrapf(err, "create %s bucket", jobsBucket)
	})
	if err != nil {
		return nil, errors.Wrap(err, "initialize bolt buckets")
	}

	return &BoltStore{db: db}, nil
}

func boltKey(uid int, jobID int64) []byte {
	return []byte(strconv.Itoa(uid) + ":" + strconv.FormatInt(jobID, 10))
}

func parseBoltKey(key []byte) (uid int, jobID int64, err error) {
	parts := strings.SplitN(string(key), ":", 2)
	if len(parts) != 2 {
		return 0, 0, fmt.Errorf("malformed job key %q", key)
	}
	uid, err = strconv.Atoi(parts[0])
	if err != nil {
		return 0, 0, fmt.Errorf("malformed uid in key %q: %w", key, err)
	}
	jobID, err = strconv.ParseInt(parts[1], 10, 64)
	if err != nil {
		return 0, 0, fmt.Errorf("malformed jobID in key %q: %w", key, err)
	}
	return uid, jobID, nil
}

func (s *BoltStore) Add(j *jobmodel.Job) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket([]byte(jobsBucket))
		encoded, err := json.Marshal(j)
		if err != nil {
			return errors.Wrap(err, "marshal job")
		}
		return errors.Wrap(b.Put(boltKey(j.SourceUID, j.JobID), encoded), "put job")
	})
}

func (s *BoltStore) Remove(uid int, jobID int64) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket([]byte(jobsBucket))
		return errors.Wrap(b.Delete(boltKey(uid, jobID)), "delete job")
	})
}

func (s *BoltStore) Get(uid int, jobID int64) (*jobmodel.Job, bool) {
	var job jobmodel.Job
	found := false
	_ = s.db.View(func(tx *bbolt.Tx) error {
		b := tx.Bucket([]byte(jobsBucket))
		val := b.Get(boltKey(uid, jobID))
		if val == nil {
			return nil
		}
		if err := json.Unmarshal(val, &job); err != nil {
			return errors.Wrap(err, "unmarshal job")
		}
		found = true
		return nil
	})
	if !found {
		return nil, false
	}
	return &job, true
}

func (s *BoltStore) ForEach(fn func(j *jobmodel.Job) bool) error {
	return s.db.View(func(tx *bbolt.Tx) error {
		b := tx.Bucket([]byte(jobsBucket))
		c := b.Cursor()
		for k, v := c.First(); k != nil; k, v = c.Next() {
			var job jobmodel.Job
			if err := json.Unmarshal(v, &job); err != nil {
				return errors.Wrapf(err, "unmarshal job at key %q", k)
			}
			if !fn(&job) {
				break
			}
		}
		return nil
	})
}

func (s *BoltStore) CountForUID(uid int) (int, error) {
	n := 0
	err := s.db.View(func(tx *bbolt.Tx) error {
		b := tx.Bucket([]byte(jobsBucket))
		c := b.Cursor()
		for k, _ := c.First(); k != nil; k, _ = c.Next() {
			keyUID, _, err := parseBoltKey(k)
			if err != nil {
				return err
			}
			if keyUID == uid {
				n++
			}
		}
		return nil
	})
	return n, err
}

func (s *BoltStore) Close() error {
	return s.db.Close()
}
