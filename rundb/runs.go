package rundb

import (
	"encoding/binary"
	"github.com/go-errors/errors"
	"go.etcd.io/bbolt"
	"time"
)

// Outcome tells how a run ended.
type Outcome string

const (
	OutcomeDone        Outcome = "done"
	OutcomeFailed      Outcome = "failed"
	OutcomeInterrupted Outcome = "interrupted"
)

// Run is the record of one pass through the controller loop.
type Run struct {
	Id        uint64    `json:"id"`
	Started   time.Time `json:"started"`
	Finished  time.Time `json:"finished"`
	MotorPort string    `json:"motorPort"`
	TouchPort string    `json:"touchPort"`
	Speed     int       `json:"speed"`
	Polls     int       `json:"polls"`
	Outcome   Outcome   `json:"outcome"`
	Error     string    `json:"error,omitempty"`
}

// SaveRun stores run under the next sequence number and sets its id.
func (db *DB) SaveRun(run *Run) error {
	err := db.Update(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket(runsBucket)

		id, err := bucket.NextSequence()
		if err != nil {
			return err
		}

		run.Id = id

		return putJSON(bucket, itob(id), run)
	})
	if err != nil {
		return errors.Errorf("Could not save run: %v", err)
	}

	return nil
}

// Runs lists all stored runs, oldest first.
func (db *DB) Runs() ([]*Run, error) {
	runs := []*Run{}

	err := db.View(func(tx *bbolt.Tx) error {
		return tx.Bucket(runsBucket).ForEach(func(k, v []byte) error {
			run := &Run{}
			if err := getJSON(v, run); err != nil {
				return err
			}

			runs = append(runs, run)
			return nil
		})
	})
	if err != nil {
		return nil, errors.Errorf("Could not list runs: %v", err)
	}

	return runs, nil
}

// LastRun returns the most recent run or nil if none was stored yet.
func (db *DB) LastRun() (*Run, error) {
	var run *Run

	err := db.View(func(tx *bbolt.Tx) error {
		_, v := tx.Bucket(runsBucket).Cursor().Last()
		if v == nil {
			return nil
		}

		run = &Run{}
		return getJSON(v, run)
	})
	if err != nil {
		return nil, errors.Errorf("Could not get last run: %v", err)
	}

	return run, nil
}

// itob encodes ids big endian so keys sort in insertion order.
func itob(v uint64) []byte {
	b := make([]byte, 8)
	binary.BigEndian.PutUint64(b, v)
	return b
}
