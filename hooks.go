package caslist

// Hooks lightweight callbacks for high-signal events.
// Implementations MUST be cheap and non-blocking.
// Lists and the identity cache call them on hot paths.
type Hooks interface {
	// A page (or whole-list, page=-1) fetch was issued to the provider.
	FetchStarted(list string, page int, version uint64)

	// A LoadPage/Preload/Reload call joined a fetch already in flight.
	FetchDeduped(list string, page int, version uint64)

	// A response arrived for an older version and was discarded.
	StaleDropped(list string, page int, requestVersion, liveVersion uint64)

	// A current fetch failed. Stale failures are not reported.
	FetchFailed(list string, page int, err error)

	// Reload bumped the version.
	Reloaded(list string, version uint64, clear bool)

	// A fetched entity was merged into an existing canonical instance.
	EntityMerged(cache string, id string)

	// A get-by-id joined a fetch for the same id already in flight.
	EntityFetchCoalesced(cache string, id string)

	// pagestore dropped an entry it could not trust (reason: "corrupt",
	// "stale_gen", "decode").
	PageSelfHealed(storageKey, reason string)

	// The byte store refused a page write.
	PageSetRejected(storageKey string)

	// Reading or bumping a group generation failed.
	PageGenError(group string, err error)
}

// NopHooks is the default no-op
type NopHooks struct{}

func (NopHooks) FetchStarted(string, int, uint64)         {}
func (NopHooks) FetchDeduped(string, int, uint64)         {}
func (NopHooks) StaleDropped(string, int, uint64, uint64) {}
func (NopHooks) FetchFailed(string, int, error)           {}
func (NopHooks) Reloaded(string, uint64, bool)            {}
func (NopHooks) EntityMerged(string, string)              {}
func (NopHooks) EntityFetchCoalesced(string, string)      {}
func (NopHooks) PageSelfHealed(string, string)            {}
func (NopHooks) PageSetRejected(string)                   {}
func (NopHooks) PageGenError(string, error)               {}
