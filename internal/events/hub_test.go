package events

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPublishFansOut(t *testing.T) {
	h := NewHub()
	a := h.Subscribe()
	b := h.Subscribe()
	defer h.Unsubscribe(a)
	defer h.Unsubscribe(b)

	h.Publish(RunStarted("r1", "manual"))

	for _, ch := range []chan string{a, b} {
		var e Event
		require.NoError(t, json.Unmarshal([]byte(<-ch), &e))
		assert.Equal(t, TypeRunStarted, e.Type)
	}
}

func TestSlowSubscriberDropsInsteadOfBlocking(t *testing.T) {
	h := NewHub()
	slow := h.Subscribe()
	defer h.Unsubscribe(slow)

	// one past the buffer; the publish must return regardless
	for i := 0; i < 17; i++ {
		h.Publish(Progress("r1", "search", "working", "info"))
	}
	assert.Len(t, slow, 16)
}

func TestUnsubscribeClosesChannel(t *testing.T) {
	h := NewHub()
	ch := h.Subscribe()
	assert.Equal(t, 1, h.Subscribers())

	h.Unsubscribe(ch)
	_, open := <-ch
	assert.False(t, open)
	assert.Equal(t, 0, h.Subscribers())
}

func TestEventShapes(t *testing.T) {
	var e Event

	require.NoError(t, json.Unmarshal([]byte(RunCompleted("r9", map[string]int{"analyzed": 3})), &e))
	assert.Equal(t, TypeRunCompleted, e.Type)
	assert.Contains(t, string(e.Data), `"analyzed":3`)

	require.NoError(t, json.Unmarshal([]byte(RunFailed("r9", "worker timed out")), &e))
	assert.Equal(t, TypeRunFailed, e.Type)
	assert.Contains(t, string(e.Data), "worker timed out")
}
