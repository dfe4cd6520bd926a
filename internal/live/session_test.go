package live

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"servicemarket/marketplace-service/internal/apperr"
	"servicemarket/marketplace-service/internal/model"
)

type fakeMessenger struct {
	unread  int
	sent    []model.MessageInput
	sendErr error
	markErr error
	marked  []string
}

func (f *fakeMessenger) SendMessage(_ context.Context, senderID string, in model.MessageInput) (*model.Message, error) {
	if f.sendErr != nil {
		return nil, f.sendErr
	}
	f.sent = append(f.sent, in)
	return &model.Message{ID: "m1", SenderID: senderID, Text: in.Text}, nil
}

func (f *fakeMessenger) MarkRead(_ context.Context, _ string, messageID string) error {
	if f.markErr != nil {
		return f.markErr
	}
	f.marked = append(f.marked, messageID)
	if f.unread > 0 {
		f.unread--
	}
	return nil
}

func (f *fakeMessenger) UnreadCount(context.Context, string) (int, error) {
	return f.unread, nil
}

func newTestSession(tokenUser string, m Messenger) (*Session, *Hub, *Client) {
	hub := NewHub(nil)
	c := NewClient()
	return NewSession(hub, m, c, tokenUser), hub, c
}

func errorText(t *testing.T, f Frame) string {
	t.Helper()
	require.Equal(t, TypeError, f.Type)
	p, ok := f.Payload.(errorPayload)
	require.True(t, ok)
	return p.Message
}

func TestSession_AuthRegistersAndSendsUnreadCount(t *testing.T) {
	m := &fakeMessenger{unread: 3}
	s, hub, c := newTestSession("u1", m)

	s.Handle(context.Background(), []byte(`{"type":"auth","userId":"u1"}`))

	assert.True(t, hub.Online("u1"))
	frames := drain(c)
	require.Len(t, frames, 1)
	assert.Equal(t, TypeUnreadCount, frames[0].Type)
	assert.Equal(t, CountPayload{Count: 3}, frames[0].Payload)
}

func TestSession_AuthForOtherUserRefused(t *testing.T) {
	s, hub, c := newTestSession("u1", &fakeMessenger{})

	s.Handle(context.Background(), []byte(`{"type":"auth","userId":"u2"}`))

	assert.False(t, hub.Online("u2"))
	frames := drain(c)
	require.Len(t, frames, 1)
	assert.Contains(t, errorText(t, frames[0]), "does not match")
}

func TestSession_FramesBeforeAuthRefused(t *testing.T) {
	m := &fakeMessenger{}
	s, _, c := newTestSession("u1", m)

	s.Handle(context.Background(), []byte(`{"type":"message","payload":{"text":"hi"}}`))

	assert.Empty(t, m.sent)
	frames := drain(c)
	require.Len(t, frames, 1)
	assert.Equal(t, "not authenticated", errorText(t, frames[0]))
}

func TestSession_MalformedFrameKeepsSession(t *testing.T) {
	m := &fakeMessenger{}
	s, hub, c := newTestSession("u1", m)
	s.Handle(context.Background(), []byte(`{"type":"auth","userId":"u1"}`))
	drain(c)

	s.Handle(context.Background(), []byte(`{not json`))
	frames := drain(c)
	require.Len(t, frames, 1)
	assert.Equal(t, "malformed frame", errorText(t, frames[0]))

	// still usable
	s.Handle(context.Background(), []byte(`{"type":"message","payload":{"text":"hi","receiverId":"u2"}}`))
	require.Len(t, m.sent, 1)
	assert.True(t, hub.Online("u1"))
}

func TestSession_MessageAcksSender(t *testing.T) {
	m := &fakeMessenger{}
	s, _, c := newTestSession("u1", m)
	s.Handle(context.Background(), []byte(`{"type":"auth","userId":"u1"}`))
	drain(c)

	s.Handle(context.Background(), []byte(`{"type":"message","payload":{"jobId":"j1","text":"on my way"}}`))

	require.Len(t, m.sent, 1)
	require.NotNil(t, m.sent[0].JobID)
	assert.Equal(t, "j1", *m.sent[0].JobID)
	frames := drain(c)
	require.Len(t, frames, 1)
	assert.Equal(t, TypeMessageSent, frames[0].Type)
	msg, ok := frames[0].Payload.(*model.Message)
	require.True(t, ok)
	assert.Equal(t, "on my way", msg.Text)
}

func TestSession_SendErrorBecomesErrorFrame(t *testing.T) {
	m := &fakeMessenger{sendErr: apperr.Forbidden("NOT_A_PARTY", "you are not part of this job's conversation")}
	s, _, c := newTestSession("u1", m)
	s.Handle(context.Background(), []byte(`{"type":"auth","userId":"u1"}`))
	drain(c)

	s.Handle(context.Background(), []byte(`{"type":"message","payload":{"text":"x"}}`))

	frames := drain(c)
	require.Len(t, frames, 1)
	assert.Equal(t, "you are not part of this job's conversation", errorText(t, frames[0]))
	assert.Equal(t, "NOT_A_PARTY", frames[0].Payload.(errorPayload).Code)
}

func TestSession_InternalErrorsAreHidden(t *testing.T) {
	m := &fakeMessenger{sendErr: errors.New(`pq: relation "messages" does not exist`)}
	s, _, c := newTestSession("u1", m)
	s.Handle(context.Background(), []byte(`{"type":"auth","userId":"u1"}`))
	drain(c)

	s.Handle(context.Background(), []byte(`{"type":"message","payload":{"text":"x"}}`))
	frames := drain(c)
	require.Len(t, frames, 1)
	assert.Equal(t, "internal server error", errorText(t, frames[0]))

	m.markErr = errors.New("connection reset by peer")
	s.Handle(context.Background(), []byte(`{"type":"mark_read","payload":{"messageId":"m1"}}`))
	frames = drain(c)
	require.Len(t, frames, 1)
	assert.Equal(t, "internal server error", errorText(t, frames[0]))
	assert.Empty(t, frames[0].Payload.(errorPayload).Code)
}

func TestSession_MarkReadEchoesCount(t *testing.T) {
	m := &fakeMessenger{unread: 2}
	s, _, c := newTestSession("u1", m)
	s.Handle(context.Background(), []byte(`{"type":"auth","userId":"u1"}`))
	drain(c)

	s.Handle(context.Background(), []byte(`{"type":"mark_read","payload":{"messageId":"m9"}}`))

	assert.Equal(t, []string{"m9"}, m.marked)
	frames := drain(c)
	require.Len(t, frames, 1)
	assert.Equal(t, CountPayload{Count: 1}, frames[0].Payload)
}

func TestSession_MarkReadRequiresID(t *testing.T) {
	s, _, c := newTestSession("u1", &fakeMessenger{})
	s.Handle(context.Background(), []byte(`{"type":"auth","userId":"u1"}`))
	drain(c)

	s.Handle(context.Background(), []byte(`{"type":"mark_read","payload":{}}`))
	frames := drain(c)
	require.Len(t, frames, 1)
	assert.Equal(t, "messageId is required", errorText(t, frames[0]))
}

func TestSession_UnknownType(t *testing.T) {
	s, _, c := newTestSession("u1", &fakeMessenger{})
	s.Handle(context.Background(), []byte(`{"type":"auth","userId":"u1"}`))
	drain(c)

	s.Handle(context.Background(), []byte(`{"type":"typing"}`))
	frames := drain(c)
	require.Len(t, frames, 1)
	assert.Contains(t, errorText(t, frames[0]), "unknown frame type")
}

func TestSession_CloseUnregisters(t *testing.T) {
	s, hub, _ := newTestSession("u1", &fakeMessenger{})
	s.Handle(context.Background(), []byte(`{"type":"auth","userId":"u1"}`))
	require.True(t, hub.Online("u1"))

	s.Close()
	assert.False(t, hub.Online("u1"))
}
