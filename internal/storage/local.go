package storage

// LocalStore is the synchronous key/value store every read is served from.
// In bridge mode it doubles as the read-through cache of the bridge.
type LocalStore interface {
	// Read returns the raw JSON stored under key; ok is false when absent
	Read(key string) (value []byte, ok bool, err error)
	// Write replaces the raw JSON stored under key
	Write(key string, value []byte) error
	// Keys lists every stored key in name order
	Keys() ([]string, error)
	Close() error
}
