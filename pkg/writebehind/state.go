package writebehind

// EntryState is the lifecycle state of a cache entry
type EntryState string

const (
	// StateNotYetRead marks an entry whose initial storage read has not
	// completed
	StateNotYetRead EntryState = "NOT_YET_READ"

	// StateLoaded marks an entry whose value is available to clients
	StateLoaded EntryState = "LOADED"

	// StateResyncPending marks an entry with a refresh read in flight
	StateResyncPending EntryState = "RESYNC_PENDING"

	// StateRemoved marks an entry dropped from the inflight map; no
	// client observation of it occurs afterwards
	StateRemoved EntryState = "REMOVED_FROM_CACHE"

	// StateReadFailedFinal marks an entry whose initial read exhausted
	// its retries; operations against it fail until it is evicted
	StateReadFailedFinal EntryState = "READ_FAILED_FINAL"
)

// ControlState is the lifecycle state of the cache as a whole
type ControlState string

const (
	ControlNotStarted         ControlState = "NOT_STARTED"
	ControlRunning            ControlState = "RUNNING"
	ControlFlushing           ControlState = "FLUSHING"
	ControlShutdownInProgress ControlState = "SHUTDOWN_IN_PROGRESS"
	ControlShutdownCompleted  ControlState = "SHUTDOWN_COMPLETED"
)

// ReadFailedFinalAction selects what happens to an entry whose initial
// read exhausted its retry budget
type ReadFailedFinalAction string

const (
	// ReadFailedRemove drops the entry; waiting reads retry on a fresh
	// entry and fail with ErrRemovedRetryExhausted past MaxCacheRemovedRetries
	ReadFailedRemove ReadFailedFinalAction = "REMOVE_FROM_CACHE"

	// ReadFailedKeep keeps the entry in READ_FAILED_FINAL so subsequent
	// operations fail with failed-to-load
	ReadFailedKeep ReadFailedFinalAction = "KEEP_AND_FAIL"
)

// ResyncFailedFinalAction selects what happens to an entry whose refresh
// read exhausted its retry budget
type ResyncFailedFinalAction string

const (
	ResyncFailedRemove         ResyncFailedFinalAction = "REMOVE_FROM_CACHE"
	ResyncFailedStopCollecting ResyncFailedFinalAction = "STOP_COLLECTING_UPDATES"
	ResyncFailedKeepCollecting ResyncFailedFinalAction = "KEEP_COLLECTING_UPDATES"
)

// TooLateAction selects what happens to a refresh read that arrives after
// the entry advanced past the point where it could be merged
type TooLateAction string

const (
	// TooLateDrop discards the refresh result and counts it
	TooLateDrop TooLateAction = "DROP"

	// TooLateMerge merges the refresh result anyway
	TooLateMerge TooLateAction = "MERGE"

	// TooLateRemove removes the entry
	TooLateRemove TooLateAction = "REMOVE_FROM_CACHE"

	// TooLateNothing leaves the entry untouched. The refresh result is
	// discarded without clearing the read-pending flag, so a stuck flag
	// can follow; the event is counted. Prefer TooLateDrop.
	TooLateNothing TooLateAction = "DO_NOTHING"
)
