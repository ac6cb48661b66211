package events

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestPublishSubscribe tests delivery and channel closure
func TestPublishSubscribe(t *testing.T) {
	broker := NewBroker()
	sub := broker.Subscribe(8)
	assert.Equal(t, 1, broker.SubscriberCount())

	broker.Publish(Event{Type: EventEntryLoaded, Cache: "c", Key: "k"})

	select {
	case ev := <-sub.C:
		assert.Equal(t, EventEntryLoaded, ev.Type)
		assert.Equal(t, "k", ev.Key)
		assert.False(t, ev.Timestamp.IsZero())
	case <-time.After(time.Second):
		t.Fatal("event not delivered")
	}

	broker.Unsubscribe(sub)
	assert.Equal(t, 0, broker.SubscriberCount())

	_, open := <-sub.C
	require.False(t, open)
}

// TestTypeFilteredSubscription tests that a narrowed subscription only
// sees its types
func TestTypeFilteredSubscription(t *testing.T) {
	broker := NewBroker()
	sub := broker.Subscribe(8, EventEntryExpired)

	broker.Publish(Event{Type: EventEntryLoaded, Key: "a"})
	broker.Publish(Event{Type: EventEntryExpired, Key: "b"})

	select {
	case ev := <-sub.C:
		assert.Equal(t, EventEntryExpired, ev.Type)
		assert.Equal(t, "b", ev.Key)
	case <-time.After(time.Second):
		t.Fatal("expired event not delivered")
	}
	select {
	case ev := <-sub.C:
		t.Fatalf("unexpected event %s", ev.Type)
	default:
	}
}

// TestFullBufferDropsAndCounts tests the non-blocking delivery contract
func TestFullBufferDropsAndCounts(t *testing.T) {
	broker := NewBroker()
	broker.Subscribe(1)

	broker.Publish(Event{Type: EventEntryLoaded, Key: "1"})
	broker.Publish(Event{Type: EventEntryLoaded, Key: "2"})
	broker.Publish(Event{Type: EventEntryLoaded, Key: "3"})

	assert.Equal(t, int64(2), broker.Dropped())
}

// TestCloseEndsSubscriptions tests that Close closes channels and
// silences later publishes
func TestCloseEndsSubscriptions(t *testing.T) {
	broker := NewBroker()
	sub := broker.Subscribe(1)

	broker.Close()
	_, open := <-sub.C
	assert.False(t, open)
	assert.Equal(t, 0, broker.SubscriberCount())

	// Safe after close
	broker.Publish(Event{Type: EventEntryLoaded})
	broker.Close()
	broker.Unsubscribe(sub)

	late := broker.Subscribe(1)
	_, open = <-late.C
	assert.False(t, open)
}
