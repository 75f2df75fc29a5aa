package config

// ConfigBackend is where `preppal config set` persists values: the
// com.preppal.app defaults domain on macOS, a JSON file elsewhere. Values
// are read back through the keySpec table, so a backend only needs string
// and integer storage.
type ConfigBackend interface {
	GetString(key string) (val string, ok bool, err error)
	GetInt(key string) (val int, ok bool, err error)
	SetString(key, val string) error
	SetInt(key string, val int) error
	Delete(key string) error
}
