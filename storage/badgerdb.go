package storage

import (
	"errors"
	"fmt"
	"time"

	badger "github.com/dgraph-io/badger/v3"
)

// BadgerDB implements KeyValue and represents the application's connection
// to BadgerDB.
type BadgerDB struct {
	connection *badger.DB
	keyTTL     time.Duration // TTL for each key in the db
}

// NewBadgerDB initializes the BadgerDB embedded database. It is up to the
// caller to close the database with Close().
func NewBadgerDB(conf *KVConfig) (*BadgerDB, error) {
	// Open the Badger database at dirPath. Badger logs through its own
	// logger by default, which would interleave with ours.
	// See: https://dgraph.io/docs/badger/get-started/#opening-a-database
	opts := badger.DefaultOptions(conf.StorageDirPath).WithLogger(nil)
	db, err := badger.Open(opts)

	if err != nil {
		return &BadgerDB{}, fmt.Errorf("can't open the db connection: %v", err)
	}

	ttl := conf.KeyTTLDuration
	if ttl <= 0 {
		ttl = defaultKeyTTL
	}

	return &BadgerDB{
		connection: db,
		keyTTL:     ttl,
	}, nil
}

// Put upserts an entry
func (db *BadgerDB) Put(entry KVEntry) error {
	err := db.connection.Update(func(txn *badger.Txn) error {
		e := badger.NewEntry(entry.Key, entry.Value).WithTTL(db.keyTTL)
		err := txn.SetEntry(e)
		if err != nil {
			return fmt.Errorf("could not set the KV pair: %v", err)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("transaction failed: %v", err)
	}
	return nil
}

// Read returns an entry by key.
func (db *BadgerDB) Read(key []byte) (KVEntry, error) {
	var val []byte
	// See: https://dgraph.io/docs/badger/get-started/#read-only-transactions
	err := db.connection.View(func(txn *badger.Txn) error {
		item, err := txn.Get(key)

		if errors.Is(err, badger.ErrKeyNotFound) {
			return ErrNotFound
		}
		if err != nil {
			return fmt.Errorf("can't retrieve a value for the key provided: %v", err)
		}

		// We copy values rather than return them directly because item.Value()
		// is considered undefined behavior outside a transaction.
		// https://godoc.org/github.com/dgraph-io/badger#Item.Value
		val, err = item.ValueCopy(nil)

		if err != nil {
			return fmt.Errorf("can't copy the value from the database: %v", err)
		}
		return nil
	})
	if err != nil {
		return KVEntry{}, err
	}
	return KVEntry{
		Key:   key,
		Value: val,
	}, nil
}

// Scan returns copies of all entries whose keys begin with prefix.
func (db *BadgerDB) Scan(prefix []byte) ([]KVEntry, error) {
	entries := []KVEntry{}
	err := db.connection.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()

		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			item := it.Item()
			val, err := item.ValueCopy(nil)
			if err != nil {
				return fmt.Errorf("can't copy the value from the database: %v", err)
			}
			entries = append(entries, KVEntry{
				Key:   item.KeyCopy(nil),
				Value: val,
			})
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return entries, nil
}

// Cleanup performs BadgerDB's garbage collection routine with the
// recommended discardRatio.
//
// See: https://pkg.go.dev/github.com/dgraph-io/badger/v3#DB.RunValueLogGC
//
// This is the only time old records are actually removed, so make sure you're
// setting TTLs for records!
func (db *BadgerDB) Cleanup() error {
	var discardRatio float64 = .5
	err := db.connection.RunValueLogGC(discardRatio)
	// If the GC determines that it can't rewrite anything, don't worry the
	// caller--just skip it
	if errors.Is(err, badger.ErrNoRewrite) {
		return nil
	}
	if err != nil {
		return err
	}
	return nil
}

// Close tears down the database connection. You should defer this.
func (db *BadgerDB) Close() error {
	if err := db.connection.Close(); err != nil {
		return fmt.Errorf("could not close the database: %v", err)
	}
	return nil
}
