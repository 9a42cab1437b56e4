// Package registry provides a generic thread-safe registry for values
// indexed by key.
//
// Registry is designed for read-heavy workloads using sync.RWMutex. It
// supports any comparable key type and any value type through Go
// generics.
//
// # Per-Project Sessions
//
// The server keeps one live graph session per project and materializes
// them lazily:
//
//	sessions := registry.New[string, *Session]()
//
//	// First request for a project creates its session; later
//	// requests share it.
//	sess := sessions.GetOrCreate(projectID, func() *Session {
//	    return openSession(projectID)
//	})
//
// GetOrCreate is atomic: the factory runs at most once per key, even
// under concurrent access.
//
// # Thread Safety
//
// All Registry methods are safe for concurrent use. Range iterates
// over a snapshot, so handlers may register or delete entries during
// iteration without affecting the pass in progress.
package registry
