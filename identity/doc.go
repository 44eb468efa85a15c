// Package identity keeps one canonical in-memory instance per entity id.
//
// Every entity that comes out of a fetch (list item, get-by-id result,
// create/update response) goes through Reconcile. The first instance seen for
// an id becomes canonical; later instances are merged into it in place, so all
// holders of the pointer observe the update:
//
//	users := identity.New[string, User](identity.Options[string, User]{Name: "user"})
//	a := users.Reconcile(&User{ID: "1", Name: "A"})
//	b := users.Reconcile(&User{ID: "1", Name: "B"})
//	// a == b, a.Name == "B"
//
// Merging writes through the canonical pointer. Readers on other goroutines
// must synchronise with writers themselves, the same as with any shared struct.
//
// Fetch coalesces concurrent get-by-id calls for the same id. Forget and Clear
// mark any fetch still in flight for the id as dropped, so its result does not
// bring the entity back into the cache. Nothing is kept for ids that are not
// being fetched.
package identity
