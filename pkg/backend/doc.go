// Package backend is the lock-guarded façade over the BOM graph, rollups,
// snapshots, diffs and CSV interchange.
//
// # Concurrency
//
// A [Backend] owns one [bom.Graph] behind a sync.RWMutex. Mutations hold
// the write lock from validation through the cycle check to persistence;
// reads, rollups and snapshot captures hold the read lock, so any number
// of them run in parallel and each sees one consistent version of the
// graph. Snapshot persistence and deduplication are serialized separately
// by the snapshot store.
//
// # Persistence
//
// Every mutation is applied in memory first, then the whole state is saved
// through the configured [storage.StateRepository]. If the save fails the
// in-memory change is reverted, so memory and storage never disagree.
//
// # Results
//
// Every operation returns a [result.Result] envelope. Panics inside an
// operation are recovered and reported as INTERNAL_ERROR failures.
package backend
