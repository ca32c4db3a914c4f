package config

// Store persists the non-secret settings listed in specs under their dotted
// key ("catalog.source"). Values travel as strings; specs parse and check them.
type Store interface {
	Get(key string) (val string, ok bool, err error)
	Set(key, val string) error
	Unset(key string) error
}
