package ports

import (
	"context"
	"iter"
)

// WatchEvent is one file system change under the watched root.
type WatchEvent struct {
	Path string
}

// Watcher watches a directory tree for source changes.
type Watcher interface {
	// Start begins watching the given root directory recursively.
	Start(ctx context.Context, root string) error
	// Events returns an iterator of file system events.
	Events() iter.Seq[WatchEvent]
	// Stop stops the watcher and releases all resources.
	Stop() error
}
