// Package store provides the key-value document store the ledger core writes
// through: single-path get/set/remove, an atomic multi-path update and
// server-generated push identifiers.
package store

import "context"

// Snapshot is the result of reading a single path.
type Snapshot interface {
	// Exists reports whether a document was present at the path.
	Exists() bool
	// Val unmarshals the document into dest.
	Val(dest any) error
}

// Store abstracts the document store backends.
type Store interface {
	// Get reads the document at path.
	Get(ctx context.Context, path string) (Snapshot, error)
	// List reads every document whose path starts with prefix, keyed by full path.
	List(ctx context.Context, prefix string) (map[string]Snapshot, error)
	// Set writes a single document. Not atomic with respect to other paths.
	Set(ctx context.Context, path string, value any) error
	// Remove deletes a single document.
	Remove(ctx context.Context, path string) error
	// Update applies every entry as one unit or none. A nil value deletes the path.
	Update(ctx context.Context, writes map[string]any) error
	// Push allocates a server-generated child identifier under path.
	Push(ctx context.Context, path string) (string, error)
}

// Join composes path segments with the store separator.
func Join(segments ...string) string {
	out := ""
	for i, s := range segments {
		if i > 0 {
			out += "/"
		}
		out += s
	}
	return out
}
