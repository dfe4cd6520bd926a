package live

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRelay(t *testing.T) (*RedisRelay, *Hub, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { rdb.Close() })
	hub := NewHub(nil)
	return NewRedisRelay(rdb, hub), hub, mr
}

func TestRedisRelay_DeliversThroughPubSub(t *testing.T) {
	relay, hub, _ := newTestRelay(t)
	c := NewClient()
	hub.Register("u1", c)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- relay.Run(ctx) }()

	// frames published before the subscription is live are lost, so keep
	// pushing until one lands
	var got []Frame
	require.Eventually(t, func() bool {
		relay.Push(context.Background(), "u1", Frame{Type: TypeUnreadCount, Payload: CountPayload{Count: 4}})
		select {
		case f := <-c.Frames():
			got = append(got, f)
			return true
		case <-time.After(20 * time.Millisecond):
			return false
		}
	}, 2*time.Second, 10*time.Millisecond)

	assert.Equal(t, TypeUnreadCount, got[0].Type)
	raw, ok := got[0].Payload.(json.RawMessage)
	require.True(t, ok)
	var p CountPayload
	require.NoError(t, json.Unmarshal(raw, &p))
	assert.Equal(t, 4, p.Count)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("relay did not stop")
	}
}

func TestRedisRelay_OnlyRecipientReceives(t *testing.T) {
	relay, hub, mr := newTestRelay(t)
	u1, u2 := NewClient(), NewClient()
	hub.Register("u1", u1)
	hub.Register("u2", u2)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = relay.Run(ctx) }()
	require.Eventually(t, func() bool {
		return len(mr.PubSubChannels(RelayChannel)) == 1
	}, 2*time.Second, 10*time.Millisecond)

	relay.Push(context.Background(), "u2", Frame{Type: TypeNotification, Payload: map[string]string{"title": "hi"}})

	select {
	case f := <-u2.Frames():
		assert.Equal(t, TypeNotification, f.Type)
		assert.JSONEq(t, `{"title":"hi"}`, string(f.Payload.(json.RawMessage)))
	case <-time.After(2 * time.Second):
		t.Fatal("frame not relayed")
	}
	assert.Empty(t, drain(u1))
}

func TestRedisRelay_FallsBackToLocalDelivery(t *testing.T) {
	relay, hub, mr := newTestRelay(t)
	c := NewClient()
	hub.Register("u1", c)
	mr.Close()

	relay.Push(context.Background(), "u1", Frame{Type: TypeNotification, Payload: CountPayload{Count: 1}})

	frames := drain(c)
	require.Len(t, frames, 1)
	assert.Equal(t, TypeNotification, frames[0].Type)
	assert.Equal(t, CountPayload{Count: 1}, frames[0].Payload)
}

func TestRedisRelay_SkipsMalformedEnvelopes(t *testing.T) {
	relay, hub, mr := newTestRelay(t)
	c := NewClient()
	hub.Register("u1", c)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = relay.Run(ctx) }()
	require.Eventually(t, func() bool {
		return len(mr.PubSubChannels(RelayChannel)) == 1
	}, 2*time.Second, 10*time.Millisecond)

	mr.Publish(RelayChannel, "not json")
	relay.Push(context.Background(), "u1", Frame{Type: TypeUnreadCount, Payload: CountPayload{Count: 2}})

	select {
	case f := <-c.Frames():
		assert.Equal(t, TypeUnreadCount, f.Type)
	case <-time.After(2 * time.Second):
		t.Fatal("relay stopped after a malformed envelope")
	}
}
