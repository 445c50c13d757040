package bus

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestBus_PublishReachesAllSubscribers(t *testing.T) {
	b := New()

	var first, second []Event
	b.Subscribe(NotificationRead, func(ev Event) { first = append(first, ev) })
	b.Subscribe(NotificationRead, func(ev Event) { second = append(second, ev) })

	b.Publish(NotificationRead, "instance-a", "notification-1")

	assert.Len(t, first, 1)
	assert.Len(t, second, 1)
	assert.Equal(t, "instance-a", first[0].SourceID)
	assert.Equal(t, "notification-1", first[0].Payload)
}

func TestBus_EventNamesAreIsolated(t *testing.T) {
	b := New()

	var got []Event
	b.Subscribe(NotificationRead, func(ev Event) { got = append(got, ev) })

	b.Publish(NotificationDeleted, "instance-a", "notification-1")

	assert.Empty(t, got)
}

func TestBus_UnsubscribeStopsDelivery(t *testing.T) {
	b := New()

	count := 0
	off := b.Subscribe(NotificationNew, func(Event) { count++ })

	b.Publish(NotificationNew, "instance-a", nil)
	off()
	b.Publish(NotificationNew, "instance-a", nil)

	assert.Equal(t, 1, count)
}

func TestBus_UnsubscribeTwiceIsSafe(t *testing.T) {
	b := New()

	off := b.Subscribe(NotificationNew, func(Event) {})
	off()
	off()

	// A fresh subscriber still works after the double-unsubscribe.
	count := 0
	b.Subscribe(NotificationNew, func(Event) { count++ })
	b.Publish(NotificationNew, "instance-a", nil)
	assert.Equal(t, 1, count)
}

func TestBus_HandlerMayUnsubscribeDuringDispatch(t *testing.T) {
	b := New()

	var off func()
	count := 0
	off = b.Subscribe(NotificationNew, func(Event) {
		count++
		off()
	})

	b.Publish(NotificationNew, "instance-a", nil)
	b.Publish(NotificationNew, "instance-a", nil)

	assert.Equal(t, 1, count)
}

func TestBus_SynchronousDelivery(t *testing.T) {
	b := New()

	delivered := false
	b.Subscribe(MessageNew, func(Event) { delivered = true })

	b.Publish(MessageNew, "instance-a", nil)

	// Handlers run in the publishing goroutine, so the effect is
	// visible as soon as Publish returns.
	assert.True(t, delivered)
}
