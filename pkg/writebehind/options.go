package writebehind

import (
	"fmt"
	"time"

	"github.com/cuemby/burrow/pkg/config"
)

// Options holds the full configuration of a cache instance. Zero values
// are not usable; start from DefaultOptions or ParseOptions.
type Options struct {
	// CacheName identifies the instance in logs, metrics, events and status
	CacheName string

	// MainQueueCacheTime is the target residency in the main queue
	MainQueueCacheTime time.Duration

	// MainQueueCacheTimeMin is the minimum residency; new allocations are
	// rejected when the remaining drain budget is below it
	MainQueueCacheTimeMin time.Duration

	// MainQueueMaxTargetSize is the soft size target of the main queue;
	// above it, processing accelerates and return-queue retention stops
	MainQueueMaxTargetSize int

	// MaxCacheElementsHardLimit is the admission bound on resident entries
	MaxCacheElementsHardLimit int

	// ReturnQueueCacheTimeMin is the target residency in the return queue
	ReturnQueueCacheTimeMin time.Duration

	// ReturnQueueMaxRequeueCount bounds how often an entry with a pending
	// write is re-queued before it is forced out
	ReturnQueueMaxRequeueCount int

	// UntouchedItemCacheExpirationDelay is the minimum idle time making an
	// entry eligible for expiry at return-queue processing
	UntouchedItemCacheExpirationDelay time.Duration

	// MaxUpdatesToCollect caps the pending update list per entry
	MaxUpdatesToCollect int

	// CanMergeWrites permits combining a failed write payload with the
	// next accumulated write
	CanMergeWrites bool

	InitialReadFailedFinalAction ReadFailedFinalAction
	ResyncTooLateAction          TooLateAction
	ResyncFailedFinalAction      ResyncFailedFinalAction

	// AllowDataReadingAfterResyncFailedFinal permits stale reads once
	// resyncing has failed terminally
	AllowDataReadingAfterResyncFailedFinal bool

	// AllowDataWritingAfterResyncFailedFinal permits further writes once
	// resyncing has failed terminally
	AllowDataWritingAfterResyncFailedFinal bool

	// AllowUpdatesCollectionForMultipleFullCycles keeps collecting pending
	// updates while an entry has been failing for more than one cycle
	AllowUpdatesCollectionForMultipleFullCycles bool

	// ReadQueueBatchingDelay and WriteQueueBatchingDelay open a batching
	// window after the first dequeued item; zero disables batching
	ReadQueueBatchingDelay  time.Duration
	WriteQueueBatchingDelay time.Duration

	// ReadQueueBatchingHook and WriteQueueBatchingHook fire when a
	// batching window elapses, with the collected batch size. Not
	// settable from flat config.
	ReadQueueBatchingHook  func(batchSize int)
	WriteQueueBatchingHook func(batchSize int)

	// Pool sizes; (-1,-1) disables the pool and storage calls run inline
	// on the queue worker
	ReadPoolMinSize  int
	ReadPoolMaxSize  int
	WritePoolMinSize int
	WritePoolMaxSize int

	ReadFailureMaxRetryCount           int
	WriteFailureMaxRetryCount          int
	FullCacheCycleFailureMaxRetryCount int

	// MaxSleepTime bounds every internal uninterrupted block
	MaxSleepTime time.Duration

	// AcceptOutOfOrderReads merges refresh reads that arrive after the
	// entry advanced past its resync point
	AcceptOutOfOrderReads bool

	LogThrottleTimeInterval                     time.Duration
	LogThrottleMaxMessagesOfTypePerTimeInterval int

	// EventNotificationEnabled publishes pipeline events to the broker
	EventNotificationEnabled bool

	// MonitoringFullCacheCyclesThresholds are the five ascending bucket
	// bounds for the full-cycles-in-cache histogram
	MonitoringFullCacheCyclesThresholds []int

	// MonitoringTimeSinceAccessThresholds are the five ascending bucket
	// bounds for the idle-time histogram
	MonitoringTimeSinceAccessThresholds []time.Duration

	// MaxCacheRemovedRetries bounds how often a client read retries
	// across removed-from-cache observations
	MaxCacheRemovedRetries int

	// Clock supplies virtual time; nil selects the wall clock
	Clock Clock
}

// DefaultOptions returns a usable configuration for the given cache name
func DefaultOptions(name string) Options {
	return Options{
		CacheName:                                   name,
		MainQueueCacheTime:                          5 * time.Second,
		MainQueueCacheTimeMin:                       1 * time.Second,
		MainQueueMaxTargetSize:                      10000,
		MaxCacheElementsHardLimit:                   20000,
		ReturnQueueCacheTimeMin:                     2 * time.Second,
		ReturnQueueMaxRequeueCount:                  10,
		UntouchedItemCacheExpirationDelay:           20 * time.Second,
		MaxUpdatesToCollect:                         128,
		CanMergeWrites:                              true,
		InitialReadFailedFinalAction:                ReadFailedRemove,
		ResyncTooLateAction:                         TooLateDrop,
		ResyncFailedFinalAction:                     ResyncFailedKeepCollecting,
		AllowDataReadingAfterResyncFailedFinal:      true,
		AllowDataWritingAfterResyncFailedFinal:      true,
		AllowUpdatesCollectionForMultipleFullCycles: true,
		ReadPoolMinSize:                             -1,
		ReadPoolMaxSize:                             -1,
		WritePoolMinSize:                            -1,
		WritePoolMaxSize:                            -1,
		ReadFailureMaxRetryCount:                    3,
		WriteFailureMaxRetryCount:                   3,
		FullCacheCycleFailureMaxRetryCount:          5,
		MaxSleepTime:                                100 * time.Millisecond,
		AcceptOutOfOrderReads:                       true,
		LogThrottleTimeInterval:                     time.Minute,
		LogThrottleMaxMessagesOfTypePerTimeInterval: 10,
		MonitoringFullCacheCyclesThresholds:         []int{1, 2, 4, 8, 16},
		MonitoringTimeSinceAccessThresholds: []time.Duration{
			time.Second, 5 * time.Second, 15 * time.Second, time.Minute, 5 * time.Minute,
		},
		MaxCacheRemovedRetries: 3,
	}
}

// ParseOptions reads the recognized keys from cfg on top of the defaults
func ParseOptions(cfg *config.Config) (Options, error) {
	name, err := cfg.String("cacheName")
	if err != nil {
		return Options{}, err
	}
	o := DefaultOptions(name)

	var firstErr error
	durKey := func(key string, dst *time.Duration) {
		v, err := cfg.DurationDefault(key, *dst)
		if err != nil && firstErr == nil {
			firstErr = err
		}
		*dst = v
	}
	intKey := func(key string, dst *int) {
		v, err := cfg.IntDefault(key, *dst)
		if err != nil && firstErr == nil {
			firstErr = err
		}
		*dst = v
	}
	boolKey := func(key string, dst *bool) {
		v, err := cfg.BoolDefault(key, *dst)
		if err != nil && firstErr == nil {
			firstErr = err
		}
		*dst = v
	}
	strKey := func(key string, dst *string) {
		*dst = cfg.StringDefault(key, *dst)
	}

	durKey("mainQueueCacheTime", &o.MainQueueCacheTime)
	durKey("mainQueueCacheTimeMin", &o.MainQueueCacheTimeMin)
	intKey("mainQueueMaxTargetSize", &o.MainQueueMaxTargetSize)
	intKey("maxCacheElementsHardLimit", &o.MaxCacheElementsHardLimit)
	durKey("returnQueueCacheTimeMin", &o.ReturnQueueCacheTimeMin)
	intKey("returnQueueMaxRequeueCount", &o.ReturnQueueMaxRequeueCount)
	durKey("untouchedItemCacheExpirationDelay", &o.UntouchedItemCacheExpirationDelay)
	intKey("maxUpdatesToCollect", &o.MaxUpdatesToCollect)
	boolKey("canMergeWrites", &o.CanMergeWrites)
	boolKey("allowDataReadingAfterResyncFailedFinal", &o.AllowDataReadingAfterResyncFailedFinal)
	boolKey("allowDataWritingAfterResyncFailedFinal", &o.AllowDataWritingAfterResyncFailedFinal)
	boolKey("allowUpdatesCollectionForMultipleFullCycles", &o.AllowUpdatesCollectionForMultipleFullCycles)
	durKey("readQueueBatchingDelay", &o.ReadQueueBatchingDelay)
	durKey("writeQueueBatchingDelay", &o.WriteQueueBatchingDelay)
	intKey("readFailureMaxRetryCount", &o.ReadFailureMaxRetryCount)
	intKey("writeFailureMaxRetryCount", &o.WriteFailureMaxRetryCount)
	intKey("fullCacheCycleFailureMaxRetryCount", &o.FullCacheCycleFailureMaxRetryCount)
	durKey("maxSleepTime", &o.MaxSleepTime)
	boolKey("acceptOutOfOrderReads", &o.AcceptOutOfOrderReads)
	durKey("logThrottleTimeInterval", &o.LogThrottleTimeInterval)
	intKey("logThrottleMaxMessagesOfTypePerTimeInterval", &o.LogThrottleMaxMessagesOfTypePerTimeInterval)
	boolKey("eventNotificationEnabled", &o.EventNotificationEnabled)
	intKey("maxCacheRemovedRetries", &o.MaxCacheRemovedRetries)

	var action string
	strKey("initialReadFailedFinalAction", &action)
	if action != "" {
		o.InitialReadFailedFinalAction = ReadFailedFinalAction(action)
	}
	action = ""
	strKey("resyncTooLateAction", &action)
	if action != "" {
		o.ResyncTooLateAction = TooLateAction(action)
	}
	action = ""
	strKey("resyncFailedFinalAction", &action)
	if action != "" {
		o.ResyncFailedFinalAction = ResyncFailedFinalAction(action)
	}

	if cfg.Has("readThreadPoolSize") {
		minSize, maxSize, err := cfg.IntPair("readThreadPoolSize")
		if err != nil && firstErr == nil {
			firstErr = err
		}
		o.ReadPoolMinSize, o.ReadPoolMaxSize = minSize, maxSize
	}
	if cfg.Has("writeThreadPoolSize") {
		minSize, maxSize, err := cfg.IntPair("writeThreadPoolSize")
		if err != nil && firstErr == nil {
			firstErr = err
		}
		o.WritePoolMinSize, o.WritePoolMaxSize = minSize, maxSize
	}
	if cfg.Has("monitoringFullCacheCyclesThresholds") {
		v, err := cfg.Ints("monitoringFullCacheCyclesThresholds")
		if err != nil && firstErr == nil {
			firstErr = err
		}
		o.MonitoringFullCacheCyclesThresholds = v
	}
	if cfg.Has("monitoringTimeSinceAccessThresholds") {
		v, err := cfg.Durations("monitoringTimeSinceAccessThresholds")
		if err != nil && firstErr == nil {
			firstErr = err
		}
		o.MonitoringTimeSinceAccessThresholds = v
	}

	if firstErr != nil {
		return Options{}, firstErr
	}
	if err := o.Validate(); err != nil {
		return Options{}, err
	}
	return o, nil
}

// Validate checks internal constraints
func (o *Options) Validate() error {
	if o.CacheName == "" {
		return fmt.Errorf("cacheName must not be empty")
	}
	if o.MainQueueCacheTime <= 0 {
		return fmt.Errorf("mainQueueCacheTime must be positive")
	}
	if o.MainQueueCacheTimeMin < 0 || o.MainQueueCacheTimeMin > o.MainQueueCacheTime {
		return fmt.Errorf("mainQueueCacheTimeMin must be within [0, mainQueueCacheTime]")
	}
	if o.MaxCacheElementsHardLimit < o.MainQueueMaxTargetSize {
		return fmt.Errorf("maxCacheElementsHardLimit must be at least mainQueueMaxTargetSize")
	}
	if o.MaxUpdatesToCollect < 0 {
		return fmt.Errorf("maxUpdatesToCollect must not be negative")
	}
	if o.MaxSleepTime <= 0 {
		return fmt.Errorf("maxSleepTime must be positive")
	}
	switch o.InitialReadFailedFinalAction {
	case ReadFailedRemove, ReadFailedKeep:
	default:
		return fmt.Errorf("unknown initialReadFailedFinalAction: %s", o.InitialReadFailedFinalAction)
	}
	switch o.ResyncTooLateAction {
	case TooLateDrop, TooLateMerge, TooLateRemove, TooLateNothing:
	default:
		return fmt.Errorf("unknown resyncTooLateAction: %s", o.ResyncTooLateAction)
	}
	switch o.ResyncFailedFinalAction {
	case ResyncFailedRemove, ResyncFailedStopCollecting, ResyncFailedKeepCollecting:
	default:
		return fmt.Errorf("unknown resyncFailedFinalAction: %s", o.ResyncFailedFinalAction)
	}
	if err := validatePool("readThreadPoolSize", o.ReadPoolMinSize, o.ReadPoolMaxSize); err != nil {
		return err
	}
	if err := validatePool("writeThreadPoolSize", o.WritePoolMinSize, o.WritePoolMaxSize); err != nil {
		return err
	}
	if len(o.MonitoringFullCacheCyclesThresholds) != 5 {
		return fmt.Errorf("monitoringFullCacheCyclesThresholds must have exactly 5 values")
	}
	for i := 1; i < len(o.MonitoringFullCacheCyclesThresholds); i++ {
		if o.MonitoringFullCacheCyclesThresholds[i] <= o.MonitoringFullCacheCyclesThresholds[i-1] {
			return fmt.Errorf("monitoringFullCacheCyclesThresholds must be ascending")
		}
	}
	if len(o.MonitoringTimeSinceAccessThresholds) != 5 {
		return fmt.Errorf("monitoringTimeSinceAccessThresholds must have exactly 5 values")
	}
	for i := 1; i < len(o.MonitoringTimeSinceAccessThresholds); i++ {
		if o.MonitoringTimeSinceAccessThresholds[i] <= o.MonitoringTimeSinceAccessThresholds[i-1] {
			return fmt.Errorf("monitoringTimeSinceAccessThresholds must be ascending")
		}
	}
	return nil
}

func validatePool(name string, minSize, maxSize int) error {
	if minSize == -1 && maxSize == -1 {
		return nil
	}
	if minSize < 0 || maxSize < 1 || minSize > maxSize {
		return fmt.Errorf("%s: invalid pool size (%d,%d)", name, minSize, maxSize)
	}
	return nil
}
