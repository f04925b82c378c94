package domain

// CacheConfig bounds the artifact cache.
// Zero MaxEntries or MaxSizeBytes means unbounded on that axis.
type CacheConfig struct {
	Dir          string
	MaxEntries   int
	MaxSizeBytes int64
}

// Config is the parsed engine configuration plus the project definition.
// The CLI surface that produced it is an external collaborator; the engine
// only ever sees the parsed form.
type Config struct {
	Project  Project
	Compiler []string
	Workers  int
	Cache    CacheConfig
}
