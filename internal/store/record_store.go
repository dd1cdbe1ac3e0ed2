// Package store persists named collections of JSON records.
//
// Every collection is a JSON array owned by a single Backend. The RecordStore
// keeps one lock per collection; Collection.Update and Collection.Insert hold
// it across the whole load-mutate-save span so concurrent writers in the same
// process cannot lose each other's changes.
package store

import (
	"encoding/json"
	"errors"
	"log/slog"
	"sync"
)

type RecordStore struct {
	backend Backend
	logger  *slog.Logger

	mu    sync.Mutex
	locks map[string]*sync.RWMutex
}

func NewRecordStore(backend Backend, logger *slog.Logger) *RecordStore {
	if logger == nil {
		logger = slog.Default()
	}
	return &RecordStore{
		backend: backend,
		logger:  logger,
		locks:   make(map[string]*sync.RWMutex),
	}
}

func (s *RecordStore) Close() error {
	return s.backend.Close()
}

func (s *RecordStore) lockFor(name string) *sync.RWMutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.locks[name]
	if !ok {
		l = &sync.RWMutex{}
		s.locks[name] = l
	}
	return l
}

// NextID returns one greater than the largest id in records, or 1 if empty.
func NextID[T Record](records []T) int64 {
	var maxID int64
	for _, r := range records {
		if id := r.RecordID(); id > maxID {
			maxID = id
		}
	}
	return maxID + 1
}

// Collection is a typed view over one named collection of a RecordStore.
type Collection[T Record] struct {
	store *RecordStore
	name  string
}

func NewCollection[T Record](s *RecordStore, name string) *Collection[T] {
	return &Collection[T]{store: s, name: name}
}

func (c *Collection[T]) Name() string {
	return c.name
}

// Load returns the records in insertion order. A missing or malformed
// collection yields an empty slice.
func (c *Collection[T]) Load() ([]T, error) {
	l := c.store.lockFor(c.name)
	l.RLock()
	defer l.RUnlock()
	return c.load()
}

// Save replaces the entire collection.
func (c *Collection[T]) Save(records []T) error {
	l := c.store.lockFor(c.name)
	l.Lock()
	defer l.Unlock()
	if _, err := c.loadForWrite(); err != nil {
		return err
	}
	return c.save(records)
}

// Update loads the collection, applies mutate and saves the result while
// holding the collection's write lock. If mutate returns ErrSkipSave nothing
// is written and Update returns nil; any other error aborts without writing.
func (c *Collection[T]) Update(mutate func(records []T) ([]T, error)) error {
	l := c.store.lockFor(c.name)
	l.Lock()
	defer l.Unlock()

	records, err := c.loadForWrite()
	if err != nil {
		return err
	}
	updated, err := mutate(records)
	if err != nil {
		if errors.Is(err, ErrSkipSave) {
			return nil
		}
		return err
	}
	return c.save(updated)
}

// Insert appends the record produced by build under the collection's write
// lock. build receives the current records (for uniqueness checks) and the id
// to assign. Ids are never reused: the high-water mark is persisted before
// the collection itself.
func (c *Collection[T]) Insert(build func(records []T, id int64) (T, error)) (T, error) {
	var zero T

	l := c.store.lockFor(c.name)
	l.Lock()
	defer l.Unlock()

	records, err := c.loadForWrite()
	if err != nil {
		return zero, err
	}

	id := NextID(records)
	highWater, err := c.store.backend.ReadSequence(c.name)
	if err != nil {
		c.store.logger.Warn("unreadable id sequence, falling back to collection max", "collection", c.name, "error", err)
		highWater = 0
	}
	if highWater >= id {
		id = highWater + 1
	}

	record, err := build(records, id)
	if err != nil {
		return zero, err
	}

	if err := c.store.backend.WriteSequence(c.name, id); err != nil {
		return zero, &StorageError{Collection: c.name, Op: "sequence", Err: err}
	}
	if err := c.save(append(records, record)); err != nil {
		return zero, err
	}
	return record, nil
}

func (c *Collection[T]) load() ([]T, error) {
	records, _, err := c.read()
	return records, err
}

// loadForWrite is load for callers about to replace the collection. An
// unparseable payload is moved aside first so the write cannot destroy it.
func (c *Collection[T]) loadForWrite() ([]T, error) {
	records, malformed, err := c.read()
	if err != nil || !malformed {
		return records, err
	}
	dest, err := c.store.backend.Quarantine(c.name)
	if err != nil {
		return nil, &StorageError{Collection: c.name, Op: "quarantine", Err: err}
	}
	c.store.logger.Warn("moved malformed collection aside", "collection", c.name, "dest", dest)
	return records, nil
}

// read reports a malformed payload as an empty collection with malformed set.
func (c *Collection[T]) read() ([]T, bool, error) {
	data, err := c.store.backend.ReadCollection(c.name)
	if err != nil {
		if errors.Is(err, ErrCollectionNotFound) {
			return []T{}, false, nil
		}
		return nil, false, &StorageError{Collection: c.name, Op: "read", Err: err}
	}

	var records []T
	if err := json.Unmarshal(data, &records); err != nil {
		c.store.logger.Warn("malformed collection, treating as empty", "collection", c.name, "error", err)
		return []T{}, true, nil
	}
	if records == nil {
		records = []T{}
	}
	return records, false, nil
}

func (c *Collection[T]) save(records []T) error {
	if records == nil {
		records = []T{}
	}
	data, err := json.MarshalIndent(records, "", "  ")
	if err != nil {
		return &StorageError{Collection: c.name, Op: "encode", Err: err}
	}
	if err := c.store.backend.WriteCollection(c.name, data); err != nil {
		return &StorageError{Collection: c.name, Op: "write", Err: err}
	}
	return nil
}
