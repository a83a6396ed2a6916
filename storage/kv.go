package storage

import (
	"errors"
	"fmt"
	"time"
)

// defaultKeyTTL keeps records for thirty days unless configured otherwise
const defaultKeyTTL time.Duration = 720 * time.Hour

// ErrNotFound is returned by Read when no entry has the requested key.
var ErrNotFound = errors.New("entry not found")

// KVConfig contains settings specific to BadgerDB connections
type KVConfig struct {
	StorageDirPath string        `yaml:"storageDir" json:"storageDir"`
	KeyTTLDuration time.Duration `yaml:"keyTTL" json:"keyTTL"`
}

// UnmarshalYAML parses a user-provided YAML configuration, returning any
// parsing errors.
func (c *KVConfig) UnmarshalYAML(unmarshal func(interface{}) error) error {
	v := make(map[string]string)
	err := unmarshal(&v)

	if err != nil {
		return fmt.Errorf("can't parse the storage config: %v", err)
	}

	sp, ok := v["storageDir"]
	if !ok || sp == "" {
		return errors.New("the storage config must include a storageDir")
	}
	c.StorageDirPath = sp

	t, ok := v["keyTTL"]
	if !ok || t == "" {
		c.KeyTTLDuration = defaultKeyTTL
		return nil
	}

	d, err := time.ParseDuration(t)
	if err != nil {
		return fmt.Errorf("can't parse the key TTL as a duration: %v", err)
	}
	if d <= 0 {
		return errors.New("the key TTL must be positive")
	}
	c.KeyTTLDuration = d

	return nil
}

// KeyValue exposes a common interface for performing CRUD operations on an
// underlying storage layer.
//
// Implentations need to include connection logic in code to initialize
// a Store.
type KeyValue interface {
	// Replace the value of an entry or create a new one if it doesn't exist
	Put(KVEntry) error
	// Return an entry given its key. Returns ErrNotFound if there is none.
	Read(key []byte) (KVEntry, error)
	// Return every entry whose key starts with prefix, in key order
	Scan(prefix []byte) ([]KVEntry, error)
	// Cleanup performs routine deletion of old records. We assign
	// TTLs to KV pairs and delete them periodically.
	Cleanup() error
	// Drain/tear down the connection, or something analogous for
	// an embedded database
	Close() error
}

// KVEntry is what we'll write to and read from the KV store
type KVEntry struct {
	Key   []byte
	Value []byte
}
