package store

// Backend persists raw collection payloads. WriteCollection must be atomic:
// a concurrent reader sees either the previous payload or the new one.
type Backend interface {
	ReadCollection(name string) ([]byte, error)
	WriteCollection(name string, data []byte) error

	// ReadSequence returns the highest id ever assigned in the collection, 0 if none.
	ReadSequence(name string) (int64, error)
	WriteSequence(name string, value int64) error

	// Quarantine moves the current payload of a collection out of the way and
	// returns where it went. The collection then reads as never written.
	Quarantine(name string) (string, error)

	Close() error
}
