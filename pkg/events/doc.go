/*
Package events provides event distribution for Burrow cache pipelines.

When event notification is enabled on a cache, every significant entry
transition (loaded, resynced, written, expired, removed) and every
control state change is published to the cache's Broker. Delivery is
synchronous from the publishing worker and never blocks: a subscriber
whose buffer is full loses events, and the broker counts the loss so the
cache's status snapshot can surface it.

Subscriptions can narrow to the event types they care about:

	broker := cache.Events()
	sub := broker.Subscribe(64, events.EventEntryExpired, events.EventEntryRemoved)
	defer broker.Unsubscribe(sub)

	for ev := range sub.C {
		fmt.Println(ev.Type, ev.Key)
	}

The owning cache closes the broker at shutdown, which closes every
subscription channel.
*/
package events
