package rundb

import (
	"github.com/go-errors/errors"
	"go.etcd.io/bbolt"
	"os"
	"path/filepath"
	"time"
)

const (
	dbName           = "touchstop.db"
	dbFilePermission = 0600
)

var (
	runsBucket = []byte("runs")
)

// DB persistently stores the history of controller runs.
type DB struct {
	*bbolt.DB
}

// Open opens or creates the run database inside dir.
func Open(dir string) (*DB, error) {
	if err := os.MkdirAll(dir, 0700); err != nil {
		return nil, errors.Errorf("Could not create data dir %v: %v", dir, err)
	}

	path := filepath.Join(dir, dbName)

	bdb, err := bbolt.Open(path, dbFilePermission, &bbolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return nil, errors.Errorf("Could not open %v: %v", path, err)
	}

	db := &DB{
		DB: bdb,
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(runsBucket)
		return err
	})
	if err != nil {
		_ = bdb.Close()
		return nil, errors.Errorf("Could not initialize %v: %v", path, err)
	}

	return db, nil
}
