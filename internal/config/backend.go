package config

// ConfigBackend is the persistent store behind `claimdecomp config set`.
// Keys are the dotted names from the key table. A missing key reports
// ok == false with a nil error.
type ConfigBackend interface {
	GetString(key string) (val string, ok bool, err error)
	GetInt(key string) (val int, ok bool, err error)
	SetString(key, val string) error
	SetInt(key string, val int) error
	// Delete removes key. Deleting a missing key is not an error.
	Delete(key string) error
	// Location names the backing store for display.
	Location() string
}
