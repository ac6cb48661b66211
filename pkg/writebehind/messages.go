package writebehind

import "github.com/rs/zerolog"

// Severity classifies a cache message. The EXTERNAL variants mark events
// that an operator must see because they concern data visible outside the
// process (storage contents, data loss).
type Severity int

const (
	SeverityDebug Severity = iota
	SeverityInfo
	SeverityExternalInfo
	SeverityWarn
	SeverityExternalWarn
	SeverityError
	SeverityExternalError
	SeverityExternalDataLoss
	SeverityFatal

	numSeverities
)

var severityNames = [numSeverities]string{
	"DEBUG",
	"INFO",
	"EXTERNAL_INFO",
	"WARN",
	"EXTERNAL_WARN",
	"ERROR",
	"EXTERNAL_ERROR",
	"EXTERNAL_DATA_LOSS",
	"FATAL",
}

func (s Severity) String() string {
	if s < 0 || s >= numSeverities {
		return "UNKNOWN"
	}
	return severityNames[s]
}

// level maps a severity to the zerolog level it is emitted at. FATAL maps
// to error level with a fatal marker field; the library never terminates
// the host process.
func (s Severity) level() zerolog.Level {
	switch s {
	case SeverityDebug:
		return zerolog.DebugLevel
	case SeverityInfo, SeverityExternalInfo:
		return zerolog.InfoLevel
	case SeverityWarn, SeverityExternalWarn:
		return zerolog.WarnLevel
	default:
		return zerolog.ErrorLevel
	}
}

// Message is a typed cache log message with a fixed severity and a
// throttling classifier equal to its name.
type Message int

const (
	MsgCacheStarted Message = iota
	MsgCacheFlushed
	MsgCacheFlushTimeout
	MsgCacheShutdownCompleted
	MsgCacheShutdownTimeout
	MsgStorageReadFailure
	MsgStorageReadFailureFinal
	MsgStorageResyncFailureFinal
	MsgStorageResyncTooLate
	MsgStorageResyncDoNothing
	MsgStorageWriteFailure
	MsgStorageWriteFailureFinal
	MsgStorageWriteDataLoss
	MsgTooManyPendingUpdates
	MsgNegativeTimeSinceAccess
	MsgEntryRemovedOnError
	MsgFullCycleRetriesExhausted
	MsgUnexpectedEntryState
	MsgMessagesMayBeSkipped
	MsgPreviousMessagesSkipped
	MsgNonStandard
)

type messageInfo struct {
	name     string
	severity Severity
}

var messageTable = map[Message]messageInfo{
	MsgCacheStarted:              {"CACHE_STARTED", SeverityInfo},
	MsgCacheFlushed:              {"CACHE_FLUSHED", SeverityInfo},
	MsgCacheFlushTimeout:         {"CACHE_FLUSH_TIMEOUT", SeverityExternalWarn},
	MsgCacheShutdownCompleted:    {"CACHE_SHUTDOWN_COMPLETED", SeverityInfo},
	MsgCacheShutdownTimeout:      {"CACHE_SHUTDOWN_TIMEOUT", SeverityExternalError},
	MsgStorageReadFailure:        {"STORAGE_READ_FAILURE", SeverityWarn},
	MsgStorageReadFailureFinal:   {"STORAGE_READ_FAILURE_FINAL", SeverityExternalError},
	MsgStorageResyncFailureFinal: {"STORAGE_RESYNC_FAILURE_FINAL", SeverityExternalWarn},
	MsgStorageResyncTooLate:      {"STORAGE_RESYNC_TOO_LATE", SeverityWarn},
	MsgStorageResyncDoNothing:    {"STORAGE_RESYNC_DO_NOTHING", SeverityWarn},
	MsgStorageWriteFailure:       {"STORAGE_WRITE_FAILURE", SeverityWarn},
	MsgStorageWriteFailureFinal:  {"STORAGE_WRITE_FAILURE_FINAL", SeverityExternalWarn},
	MsgStorageWriteDataLoss:      {"STORAGE_WRITE_DATA_LOSS", SeverityExternalDataLoss},
	MsgTooManyPendingUpdates:     {"TOO_MANY_PENDING_UPDATES", SeverityWarn},
	MsgNegativeTimeSinceAccess:   {"NEGATIVE_TIME_SINCE_ACCESS", SeverityError},
	MsgEntryRemovedOnError:       {"ENTRY_REMOVED_ON_ERROR", SeverityExternalWarn},
	MsgFullCycleRetriesExhausted: {"FULL_CYCLE_RETRIES_EXHAUSTED", SeverityExternalWarn},
	MsgUnexpectedEntryState:      {"UNEXPECTED_ENTRY_STATE", SeverityFatal},
	MsgMessagesMayBeSkipped:      {"LOG_MESSAGE_TYPE_MESSAGES_MAY_BE_SKIPPED_FOR", SeverityInfo},
	MsgPreviousMessagesSkipped:   {"LOG_MESSAGE_TYPE_PREVIOUS_MESSAGES_SKIPPED", SeverityInfo},
	MsgNonStandard:               {"NON_STANDARD", SeverityInfo},
}

// Name returns the message's symbolic name
func (m Message) Name() string {
	return messageTable[m].name
}

// Severity returns the message's fixed severity
func (m Message) Severity() Severity {
	return messageTable[m].severity
}
