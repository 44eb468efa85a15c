// Package caslist implements reactive, lazily populated views over remotely
// sourced collections. Stale responses never overwrite newer data: every list
// carries a version that is bumped on reload and compared when a fetch completes.
//
// Components:
//   - List[T]: wraps a single ListFunc; at most one fetch in flight.
//   - PagedList[T]: random-access view that loads fixed-size pages on demand.
//     Each slot is stamped with the version that wrote it.
//   - Call[T]: completion handle returned by every triggered operation.
//   - Reconciler[T]: hook through which every fetched entity passes before it is
//     stored, typically an identity.Cache so that one canonical instance exists
//     per entity id.
//
// Versioning:
//
//	v := list.version        // captured when LoadPage starts
//	page := fetch(ctx, size, idx)
//	if v == list.version {   // checked on completion
//	    write + stamp slots with v
//	} // else: dropped, counters adjusted
//
// Reads never block and never return errors. Consumers observe progress through
// State (IsLoading, IsReloading, Err, TotalLength, IsFullyLoaded, ...) and
// Subscribe, or await the returned Call.
package caslist
