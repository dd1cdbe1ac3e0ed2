package store

import (
	"errors"
	"fmt"
)

// ErrCollectionNotFound is returned by a Backend when a collection has never been written.
var ErrCollectionNotFound = errors.New("collection not found")

// ErrSkipSave can be returned from an Update mutation to leave the collection untouched.
var ErrSkipSave = errors.New("no changes to save")

// StorageError reports a failure reading or writing a collection.
type StorageError struct {
	Collection string
	Op         string // "read", "encode", "write", "sequence", "quarantine"
	Err        error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("storage error: %s %s: %v", e.Op, e.Collection, e.Err)
}

func (e *StorageError) Unwrap() error {
	return e.Err
}
