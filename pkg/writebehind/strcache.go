package writebehind

import (
	"context"
	"errors"
	"strings"

	"github.com/cuemby/burrow/pkg/storage"
)

// StrValue is the cached value of the character-sequence cache. It keeps
// the storage-derived base, the characters split into an outstanding
// write, and the characters accumulated since the last split.
type StrValue struct {
	base      string
	inflight  string
	unwritten string
}

// String returns the composed client view
func (v StrValue) String() string {
	return v.base + v.inflight + v.unwritten
}

// StringAdapter composes character-sequence values: updates are single
// bytes appended to the value, writes carry the accumulated tail, and a
// refresh read replaces the base while locally appended characters ride
// on top until their own writes land.
type StringAdapter struct{}

func (StringAdapter) ValueFromStorage(key string, payload []byte) (StrValue, error) {
	return StrValue{base: string(payload)}, nil
}

func (StringAdapter) ApplyUpdate(v StrValue, update byte) StrValue {
	v.unwritten += string(update)
	return v
}

func (StringAdapter) SplitForWrite(key string, v StrValue) WriteSplit[StrValue, []byte] {
	if v.unwritten == "" {
		return WriteSplit[StrValue, []byte]{Retained: v}
	}
	payload := []byte(v.unwritten)
	v.inflight += v.unwritten
	v.unwritten = ""
	return WriteSplit[StrValue, []byte]{Payload: payload, HasPayload: true, Retained: v}
}

func (StringAdapter) WriteCompleted(v StrValue, payload []byte) StrValue {
	s := string(payload)
	if strings.HasPrefix(v.inflight, s) {
		v.inflight = v.inflight[len(s):]
	} else if len(v.inflight) >= len(s) {
		v.inflight = v.inflight[len(s):]
	} else {
		v.inflight = ""
	}
	v.base += s
	return v
}

func (StringAdapter) MergeWithResync(key string, payload []byte, current StrValue, pending []byte) (StrValue, error) {
	current.base = string(payload)
	return current, nil
}

func (StringAdapter) MergeFailedWrites(older, newer []byte) []byte {
	merged := make([]byte, 0, len(older)+len(newer))
	merged = append(merged, older...)
	return append(merged, newer...)
}

// StringCache is the concrete character-sequence cache used by demos and
// tests
type StringCache = Cache[StrValue, byte, []byte]

// NewStringCache builds a StringCache over a byte-payload store. Keys the
// store has never seen load as the empty sequence.
func NewStringCache(opts Options, store storage.Store) (*StringCache, error) {
	return New[StrValue, byte, []byte](opts, missingAsEmpty{store}, StringAdapter{})
}

// missingAsEmpty maps a not-found read to an empty payload so first
// access behaves as an empty sequence rather than a read failure
type missingAsEmpty struct {
	inner storage.Store
}

func (s missingAsEmpty) Read(ctx context.Context, key string) ([]byte, error) {
	payload, err := s.inner.Read(ctx, key)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, nil
	}
	return payload, err
}

func (s missingAsEmpty) Write(ctx context.Context, key string, payload []byte) error {
	return s.inner.Write(ctx, key, payload)
}
