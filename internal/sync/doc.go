// Package sync keeps a main XML document and its satellite documents in step
// over WebDAV.
//
// The main document holds one task subsection per satellite. A sync cycle
// copies task subtrees between them in one direction:
//
//   - resources-to-main: each satellite's tasks replace the tasks of its
//     subsection in the main document
//   - main-to-resources: each subsection's tasks replace the tasks of its
//     satellite
//
// # Change detection
//
// ETag baselines are held in a caller-owned state.ETags. Manager.MainChanged
// and Manager.ResourcesChanged compare the current ETags reported by the
// server against those baselines; a resource without a baseline has changed.
// Every SyncFiles call ends by refreshing the baselines of all resources.
//
// # Cycle
//
// SyncFiles locks every satellite and then the main document, fetches the
// locked satellites and the main document, merges in memory, writes every
// synced satellite and the main document back with their lock tokens,
// unlocks, and refreshes ETags. A satellite whose LOCK yields no token is
// left out of the fetch, merge and write steps but still has its ETag
// refreshed. A main document whose root holds no elements ends the cycle with
// ErrEmptyMainDocument before anything is merged or written.
//
// Failures are returned as *Error carrying the Stage and Resource. There is
// no rollback: resources already written stay written and locks already held
// stay held.
//
// The coordinator subpackage runs cycles on an interval.
package sync
