package realtime

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func recvEnvelope(t *testing.T, c *Client) Envelope {
	t.Helper()
	select {
	case payload := <-c.send:
		var env Envelope
		require.NoError(t, json.Unmarshal(payload, &env))
		return env
	case <-time.After(time.Second):
		t.Fatal("no payload delivered")
		return Envelope{}
	}
}

func TestHub_PushReachesEveryConnectionOfUser(t *testing.T) {
	h := NewHub(nil)
	laptop := NewClient("student-1", nil, h)
	phone := NewClient("student-1", nil, h)
	other := NewClient("student-2", nil, h)
	h.Register(laptop)
	h.Register(phone)
	h.Register(other)

	h.PushToUser("student-1", EventNewNotification, map[string]string{"title": "hi"})

	for _, c := range []*Client{laptop, phone} {
		env := recvEnvelope(t, c)
		assert.Equal(t, EventNewNotification, env.Event)
	}
	select {
	case <-other.send:
		t.Fatal("push leaked to another user")
	default:
	}
}

func TestHub_PushToUnknownUserIsNoop(t *testing.T) {
	h := NewHub(nil)
	h.PushToUser("nobody", EventNewMessage, nil)
}

func TestHub_SlowConnectionIsSkippedNotBlocked(t *testing.T) {
	h := NewHub(nil)
	// An unbuffered send channel models a connection whose write pump has
	// stalled.
	stalled := &Client{ID: "stalled", UserID: "student-1", send: make(chan []byte)}
	healthy := NewClient("student-1", nil, h)
	h.Register(stalled)
	h.Register(healthy)

	done := make(chan struct{})
	go func() {
		h.PushToUser("student-1", EventNewMessage, map[string]string{"content": "hello"})
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("push blocked on a stalled connection")
	}
	recvEnvelope(t, healthy)
}

func TestHub_UnregisterRemovesConnectionAndClosesSend(t *testing.T) {
	h := NewHub(nil)
	c := NewClient("student-1", nil, h)
	h.Register(c)
	require.Equal(t, 1, h.ConnectionCount("student-1"))

	h.Unregister(c)
	assert.Equal(t, 0, h.ConnectionCount("student-1"))

	_, open := <-c.send
	assert.False(t, open, "send channel must be closed on unregister")

	// Repeated unregister must not close the channel twice.
	h.Unregister(c)
}

func TestHub_ConnectionCountTracksPerUser(t *testing.T) {
	h := NewHub(nil)
	a := NewClient("student-1", nil, h)
	b := NewClient("student-1", nil, h)
	h.Register(a)
	h.Register(b)

	assert.Equal(t, 2, h.ConnectionCount("student-1"))
	assert.Equal(t, 0, h.ConnectionCount("student-2"))

	h.Unregister(a)
	assert.Equal(t, 1, h.ConnectionCount("student-1"))
}
