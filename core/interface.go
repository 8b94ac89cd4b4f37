package core

// StateStore is the key/value view of persistent contract state that a
// host lends to the engine for the duration of one execution. The host
// owns the store and is responsible for serializing access between
// concurrent executions and for discarding the writes of a faulted one.
type StateStore interface {
	// Get returns the value stored under key, or (nil, nil) if the key
	// has never been written.
	Get(key []byte) ([]byte, error)

	// Set writes value under key, replacing any previous value.
	Set(key []byte, value []byte) error

	// Delete removes key. Deleting a missing key is not an error.
	Delete(key []byte) error

	// Close releases any resources held by the store.
	Close() error
}
