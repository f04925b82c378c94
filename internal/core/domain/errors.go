package domain

import "go.trai.ch/zerr"

var (
	// ErrCycleDetected is returned when the module graph contains a
	// dependency cycle. The build aborts; no partial result is produced.
	ErrCycleDetected = zerr.New("cyclic module dependency")

	// ErrUnknownDependency is returned when a module depends on an id no module declares.
	ErrUnknownDependency = zerr.New("unknown dependency")

	// ErrUnitUnreadable is returned when a unit's source cannot be read.
	// Callers must treat the unit as always changed, never silently skip it.
	ErrUnitUnreadable = zerr.New("unit unreadable")

	// ErrEntryTooLarge is returned when a single artifact exceeds the
	// cache's byte bound. The entry is rejected rather than cached.
	ErrEntryTooLarge = zerr.New("artifact exceeds cache size bound")

	// ErrCacheDirUnavailable is returned when the cache directory cannot be
	// created or written. This is the one cache failure that aborts a build.
	ErrCacheDirUnavailable = zerr.New("cache directory unavailable")

	// ErrCompileFailed wraps an error from the external compile collaborator.
	ErrCompileFailed = zerr.New("compilation failed")

	// ErrNoCompilerConfigured is returned when a build needs to compile but
	// no compiler command is configured.
	ErrNoCompilerConfigured = zerr.New("no compiler configured")

	// ErrJobPanicked is returned for an executor job that panicked.
	ErrJobPanicked = zerr.New("job panicked")

	// ErrBuildFailed is returned by the application layer when a build
	// finishes with failed or skipped modules.
	ErrBuildFailed = zerr.New("build finished with failures")

	// ErrConfigReadFailed is returned when the config file cannot be read.
	ErrConfigReadFailed = zerr.New("failed to read config file")

	// ErrConfigParseFailed is returned when the config file cannot be parsed.
	ErrConfigParseFailed = zerr.New("failed to parse config file")

	// ErrConfigInvalid is returned when the config fails schema validation.
	ErrConfigInvalid = zerr.New("invalid configuration")

	// ErrSnapshotWriteFailed is returned when the fingerprint snapshot
	// cannot be persisted.
	ErrSnapshotWriteFailed = zerr.New("failed to write fingerprint snapshot")

	// ErrIndexWriteFailed is returned when the cache index cannot be persisted.
	ErrIndexWriteFailed = zerr.New("failed to write cache index")
)
