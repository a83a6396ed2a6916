// Package journal keeps a persistent record of email that could not be sent,
// so failures can be inspected later, possibly from another process. Records
// are stored as JSON in a storage.KeyValue and expire with the store's TTL.
package journal

import (
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/ptgott/mailsend/email"
	"github.com/ptgott/mailsend/storage"
)

const keyPrefix string = "failure/"

// ErrNoFailure is returned by Record when given a nil failure.
var ErrNoFailure = errors.New("must supply a send failure to record")

// Entry is one recorded send failure.
type Entry struct {
	ID       uuid.UUID        `json:"id"`
	Recorded time.Time        `json:"recorded"`
	Failure  *email.SendError `json:"failure"`
}

// Journal records send failures in a KeyValue store. It does not own the
// store: closing it is up to the caller.
type Journal struct {
	db  storage.KeyValue
	now func() time.Time
}

// New returns a Journal backed by db.
func New(db storage.KeyValue) *Journal {
	return &Journal{
		db:  db,
		now: time.Now,
	}
}

// Record stores se and returns the new entry.
func (j *Journal) Record(se *email.SendError) (Entry, error) {
	if se == nil {
		return Entry{}, ErrNoFailure
	}

	e := Entry{
		ID:       uuid.New(),
		Recorded: j.now().UTC(),
		Failure:  se,
	}

	b, err := json.Marshal(e)
	if err != nil {
		return Entry{}, fmt.Errorf("can't encode the journal entry: %v", err)
	}

	err = j.db.Put(storage.KVEntry{
		Key:   entryKey(e.ID),
		Value: b,
	})
	if err != nil {
		return Entry{}, fmt.Errorf("can't save the journal entry: %w", err)
	}

	return e, nil
}

// Read returns the entry with the given ID. The error wraps
// storage.ErrNotFound if there is none.
func (j *Journal) Read(id uuid.UUID) (Entry, error) {
	kv, err := j.db.Read(entryKey(id))
	if err != nil {
		return Entry{}, fmt.Errorf("can't read journal entry %v: %w", id, err)
	}
	return decodeEntry(kv)
}

// List returns every entry in the journal, oldest first.
func (j *Journal) List() ([]Entry, error) {
	kvs, err := j.db.Scan([]byte(keyPrefix))
	if err != nil {
		return nil, fmt.Errorf("can't list the journal: %w", err)
	}

	entries := make([]Entry, 0, len(kvs))
	for _, kv := range kvs {
		e, err := decodeEntry(kv)
		if err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}

	sort.SliceStable(entries, func(a, b int) bool {
		return entries[a].Recorded.Before(entries[b].Recorded)
	})
	return entries, nil
}

func entryKey(id uuid.UUID) []byte {
	return []byte(keyPrefix + id.String())
}

func decodeEntry(kv storage.KVEntry) (Entry, error) {
	var e Entry
	if err := json.Unmarshal(kv.Value, &e); err != nil {
		return Entry{}, fmt.Errorf("can't decode the journal entry at %q: %v", kv.Key, err)
	}
	return e, nil
}
