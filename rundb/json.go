package rundb

import (
	"encoding/json"
	"github.com/go-errors/errors"
	"go.etcd.io/bbolt"
)

func putJSON(bucket *bbolt.Bucket, key []byte, v interface{}) error {
	payload, err := json.Marshal(v)
	if err != nil {
		return errors.Errorf("Could not marshal data: %v", err)
	}

	return bucket.Put(key, payload)
}

func getJSON(payload []byte, v interface{}) error {
	if err := json.Unmarshal(payload, v); err != nil {
		return errors.Errorf("Could not unmarshal data: %v", err)
	}

	return nil
}
