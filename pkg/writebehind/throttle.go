package writebehind

import (
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// throttler rate-limits log emission per (classifier, severity) key. At
// most maxPerInterval messages of one key pass per interval; the first
// suppressed message of a streak emits a may-be-skipped marker, and the
// first message after the window elapses is preceded by a skipped-count
// marker.
type throttler struct {
	logger zerolog.Logger
	mon    *monitor
	clock  Clock

	intervalMillis func() int64
	maxPerInterval func() int64

	mu     sync.Mutex
	states map[string]*throttleState
}

type throttleState struct {
	windowStart   int64
	passed        int64
	skipped       int64
	markerEmitted bool
}

func newThrottler(logger zerolog.Logger, mon *monitor, clock Clock, interval func() int64, maxPer func() int64) *throttler {
	return &throttler{
		logger:         logger,
		mon:            mon,
		clock:          clock,
		intervalMillis: interval,
		maxPerInterval: maxPer,
		states:         make(map[string]*throttleState),
	}
}

// logMessage offers a typed message under its own name as classifier
func (t *throttler) logMessage(msg Message, cause error, fields map[string]string) {
	t.log(msg, msg.Severity(), msg.Name(), cause, fields)
}

// log offers a message under an explicit (severity, classifier) pair
func (t *throttler) log(msg Message, sev Severity, classifier string, cause error, fields map[string]string) {
	t.mon.noteMessage(sev)

	now := t.clock.Now()
	key := classifier + "_" + sev.String()
	maxPer := t.maxPerInterval()
	interval := t.intervalMillis()

	var skippedToReport int64
	pass := true
	if maxPer > 0 {
		t.mu.Lock()
		st, ok := t.states[key]
		if !ok {
			st = &throttleState{windowStart: now}
			t.states[key] = st
		}
		if now-st.windowStart >= interval {
			skippedToReport = st.skipped
			st.windowStart = now
			st.passed = 0
			st.skipped = 0
			st.markerEmitted = false
		}
		if st.passed < maxPer {
			st.passed++
		} else {
			pass = false
			st.skipped++
			if !st.markerEmitted {
				st.markerEmitted = true
				t.mu.Unlock()
				t.emitMarker(MsgMessagesMayBeSkipped, key, 0, interval)
				return
			}
		}
		t.mu.Unlock()
	}

	if skippedToReport > 0 {
		t.emitMarker(MsgPreviousMessagesSkipped, key, skippedToReport, interval)
	}
	if !pass {
		return
	}

	text := msg.Name()
	ev := t.logger.WithLevel(sev.level()).
		Str("severity", sev.String()).
		Str("classifier", classifier)
	if sev == SeverityFatal {
		ev = ev.Bool("fatal", true)
	}
	if cause != nil {
		ev = ev.Err(cause)
		text = fmt.Sprintf("%s: %v", text, cause)
	}
	for k, v := range fields {
		ev = ev.Str(k, v)
		text = fmt.Sprintf("%s %s=%s", text, k, v)
	}
	ev.Msg(msg.Name())

	t.mon.noteLogged(sev, text)
}

func (t *throttler) emitMarker(marker Message, key string, skipped int64, intervalMillis int64) {
	sev := marker.Severity()
	t.mon.noteMessage(sev)

	ev := t.logger.WithLevel(sev.level()).
		Str("throttled_key", key)
	text := fmt.Sprintf("%s key=%s", marker.Name(), key)
	if marker == MsgPreviousMessagesSkipped {
		ev = ev.Int64("skipped", skipped)
		text = fmt.Sprintf("%s skipped=%d", text, skipped)
	} else {
		ev = ev.Dur("interval", time.Duration(intervalMillis)*time.Millisecond)
	}
	ev.Msg(marker.Name())

	t.mon.noteLogged(sev, text)
}
