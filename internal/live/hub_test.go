package live

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func drain(c *Client) []Frame {
	var out []Frame
	for {
		select {
		case f := <-c.Frames():
			out = append(out, f)
		default:
			return out
		}
	}
}

func TestHub_PushReachesEveryConnectionOfUser(t *testing.T) {
	hub := NewHub(nil)
	tab1, tab2, other := NewClient(), NewClient(), NewClient()
	hub.Register("u1", tab1)
	hub.Register("u1", tab2)
	hub.Register("u2", other)

	hub.Push(context.Background(), "u1", Frame{Type: TypeNotification})

	assert.Len(t, drain(tab1), 1)
	assert.Len(t, drain(tab2), 1)
	assert.Empty(t, drain(other))
	assert.Equal(t, 3, hub.Connections())
}

func TestHub_UnregisterKeepsOtherTabs(t *testing.T) {
	hub := NewHub(nil)
	tab1, tab2 := NewClient(), NewClient()
	hub.Register("u1", tab1)
	hub.Register("u1", tab2)

	hub.Unregister(tab1)
	assert.True(t, hub.Online("u1"))

	hub.Push(context.Background(), "u1", Frame{Type: TypeNotification})
	assert.Empty(t, drain(tab1))
	assert.Len(t, drain(tab2), 1)

	hub.Unregister(tab2)
	assert.False(t, hub.Online("u1"))
	assert.Zero(t, hub.Connections())
}

func TestHub_ReRegisterMovesClient(t *testing.T) {
	hub := NewHub(nil)
	c := NewClient()
	hub.Register("u1", c)
	hub.Register("u2", c)

	assert.False(t, hub.Online("u1"))
	assert.True(t, hub.Online("u2"))
	assert.Equal(t, 1, hub.Connections())
}

func TestHub_PushToOfflineUserIsNoop(t *testing.T) {
	hub := NewHub(nil)
	require.NotPanics(t, func() {
		hub.Push(context.Background(), "nobody", Frame{Type: TypeNotification})
	})
}

func TestHub_FullQueueDropsFrames(t *testing.T) {
	hub := NewHub(nil)
	c := NewClient()
	hub.Register("u1", c)

	for i := 0; i < sendBuffer+10; i++ {
		hub.Push(context.Background(), "u1", Frame{Type: TypeNotification})
	}
	assert.Len(t, drain(c), sendBuffer)
}

func TestHub_UnregisterUnknownClient(t *testing.T) {
	hub := NewHub(nil)
	require.NotPanics(t, func() { hub.Unregister(NewClient()) })
}
