package messaging_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"servicemarket/marketplace-service/internal/apperr"
	"servicemarket/marketplace-service/internal/auth"
	"servicemarket/marketplace-service/internal/live"
	"servicemarket/marketplace-service/internal/messaging"
	"servicemarket/marketplace-service/internal/model"
	"servicemarket/marketplace-service/internal/notify"
	"servicemarket/marketplace-service/internal/store/memstore"
)

func strp(s string) *string { return &s }

type fixture struct {
	st  *memstore.Store
	hub *live.Hub
	svc *messaging.Service
	job model.Job
}

// newFixture seeds an accepted job: requester "req", assigned provider "prov",
// plus a rejected applicant "app2".
func newFixture(t *testing.T) fixture {
	t.Helper()
	ctx := context.Background()
	st := memstore.New()
	st.AddAdmin("admin")
	hub := live.NewHub(nil)

	job := model.Job{RequesterID: "req", CategoryID: 5, City: "Gaborone", Status: model.JobAccepted, ProviderID: strp("prov")}
	require.NoError(t, st.CreateJob(ctx, &job))
	require.NoError(t, st.CreateApplication(ctx, &model.Application{JobID: job.ID, ProviderID: "prov", Status: model.ApplicationSelected}))
	require.NoError(t, st.CreateApplication(ctx, &model.Application{JobID: job.ID, ProviderID: "app2", Status: model.ApplicationRejected}))

	svc := messaging.NewService(st, hub, notify.NewWriter(st, hub, nil))
	return fixture{st: st, hub: hub, svc: svc, job: job}
}

func drain(c *live.Client) []live.Frame {
	var out []live.Frame
	for {
		select {
		case f := <-c.Frames():
			out = append(out, f)
		default:
			return out
		}
	}
}

func framesOfType(frames []live.Frame, typ string) []live.Frame {
	var out []live.Frame
	for _, f := range frames {
		if f.Type == typ {
			out = append(out, f)
		}
	}
	return out
}

func TestSendMessage_LiveRecipientGetsMessageAndCount(t *testing.T) {
	ctx := context.Background()
	fx := newFixture(t)

	// requester and provider both connected through real sessions
	reqClient, provClient := live.NewClient(), live.NewClient()
	reqSession := live.NewSession(fx.hub, fx.svc, reqClient, "req")
	provSession := live.NewSession(fx.hub, fx.svc, provClient, "prov")
	reqSession.Handle(ctx, []byte(`{"type":"auth","userId":"req"}`))
	provSession.Handle(ctx, []byte(`{"type":"auth","userId":"prov"}`))
	drain(reqClient)
	drain(provClient)

	reqSession.Handle(ctx, []byte(`{"type":"message","payload":{"jobId":"`+fx.job.ID+`","text":"When can you come?"}}`))

	sender := drain(reqClient)
	require.Len(t, sender, 1)
	assert.Equal(t, live.TypeMessageSent, sender[0].Type)

	recipient := drain(provClient)
	msgFrames := framesOfType(recipient, live.TypeMessage)
	require.Len(t, msgFrames, 1)
	msg := msgFrames[0].Payload.(*model.Message)
	assert.Equal(t, "prov", msg.ReceiverID)
	assert.Equal(t, "When can you come?", msg.Text)

	counts := framesOfType(recipient, live.TypeUnreadCount)
	require.Len(t, counts, 1)
	assert.Equal(t, live.CountPayload{Count: 1}, counts[0].Payload)

	// message_received notification was written and pushed
	assert.Len(t, framesOfType(recipient, live.TypeNotification), 1)
	n, err := fx.st.CountUnreadNotifications(ctx, "prov")
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestSendMessage_OfflineRecipientStillPersisted(t *testing.T) {
	ctx := context.Background()
	fx := newFixture(t)

	msg, err := fx.svc.SendMessage(ctx, "prov", model.MessageInput{JobID: strp(fx.job.ID), Text: "on my way"})
	require.NoError(t, err)
	assert.Equal(t, "req", msg.ReceiverID)
	assert.Equal(t, model.MessageJob, msg.MessageType)

	n, err := fx.svc.UnreadCount(ctx, "req")
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestSendMessage_Authorization(t *testing.T) {
	ctx := context.Background()
	fx := newFixture(t)

	_, err := fx.svc.SendMessage(ctx, "stranger", model.MessageInput{JobID: strp(fx.job.ID), Text: "hi"})
	assert.True(t, errors.Is(err, apperr.ErrForbidden))

	// applicants may talk to the requester
	msg, err := fx.svc.SendMessage(ctx, "app2", model.MessageInput{JobID: strp(fx.job.ID), Text: "still available?"})
	require.NoError(t, err)
	assert.Equal(t, "req", msg.ReceiverID)

	// but not to a non-party
	_, err = fx.svc.SendMessage(ctx, "req", model.MessageInput{JobID: strp(fx.job.ID), ReceiverID: strp("stranger"), Text: "hi"})
	assert.True(t, errors.Is(err, apperr.ErrForbidden))

	_, err = fx.svc.SendMessage(ctx, "req", model.MessageInput{JobID: strp("missing"), Text: "hi"})
	assert.True(t, errors.Is(err, apperr.ErrNotFound))
}

func TestSendMessage_Validation(t *testing.T) {
	ctx := context.Background()
	fx := newFixture(t)

	_, err := fx.svc.SendMessage(ctx, "req", model.MessageInput{JobID: strp(fx.job.ID), Text: "   "})
	assert.True(t, errors.Is(err, apperr.ErrValidation))

	_, err = fx.svc.SendMessage(ctx, "req", model.MessageInput{Text: "no job"})
	assert.True(t, errors.Is(err, apperr.ErrValidation))

	_, err = fx.svc.SendMessage(ctx, "req", model.MessageInput{Text: "x", MessageType: "sms"})
	assert.True(t, errors.Is(err, apperr.ErrValidation))
}

func TestListForJob_MarksReceivedRead(t *testing.T) {
	ctx := context.Background()
	fx := newFixture(t)

	_, err := fx.svc.SendMessage(ctx, "prov", model.MessageInput{JobID: strp(fx.job.ID), Text: "first"})
	require.NoError(t, err)
	_, err = fx.svc.SendMessage(ctx, "req", model.MessageInput{JobID: strp(fx.job.ID), Text: "second"})
	require.NoError(t, err)

	thread, err := fx.svc.ListForJob(ctx, auth.Identity{UserID: "req"}, fx.job.ID)
	require.NoError(t, err)
	require.Len(t, thread, 2)
	assert.Equal(t, "first", thread[0].Text)
	assert.True(t, thread[0].IsRead)
	assert.False(t, thread[1].IsRead, "provider has not read the reply")

	_, err = fx.svc.ListForJob(ctx, auth.Identity{UserID: "stranger"}, fx.job.ID)
	assert.True(t, errors.Is(err, apperr.ErrForbidden))

	_, err = fx.svc.ListForJob(ctx, auth.Identity{UserID: "admin", Role: model.RoleAdmin}, fx.job.ID)
	assert.NoError(t, err)
}

func TestAdminChat(t *testing.T) {
	ctx := context.Background()
	fx := newFixture(t)
	user := auth.Identity{UserID: "req", Role: model.RoleRequester}
	admin := auth.Identity{UserID: "admin", Role: model.RoleAdmin}

	msg, err := fx.svc.SendAdminChat(ctx, user, "I need help", nil)
	require.NoError(t, err)
	assert.Equal(t, "admin", msg.ReceiverID)
	assert.Nil(t, msg.JobID)

	_, err = fx.svc.SendAdminChat(ctx, admin, "hello", nil)
	assert.True(t, errors.Is(err, apperr.ErrInvalidState))

	_, err = fx.svc.SendAdminChat(ctx, admin, "How can I help?", strp("req"))
	require.NoError(t, err)

	// admin message between two non-admins is refused
	_, err = fx.svc.SendMessage(ctx, "req", model.MessageInput{MessageType: model.MessageAdmin, ReceiverID: strp("prov"), Text: "x"})
	assert.True(t, errors.Is(err, apperr.ErrForbidden))

	thread, err := fx.svc.AdminChat(ctx, user, "")
	require.NoError(t, err)
	require.Len(t, thread, 2)
	assert.Equal(t, "I need help", thread[0].Text)

	_, err = fx.svc.AdminChat(ctx, admin, "")
	assert.True(t, errors.Is(err, apperr.ErrValidation))

	thread, err = fx.svc.AdminChat(ctx, admin, "req")
	require.NoError(t, err)
	assert.Len(t, thread, 2)

	n, err := fx.svc.ReadAllAdminChat(ctx, "req")
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestAdminChat_NoAdmin(t *testing.T) {
	st := memstore.New()
	svc := messaging.NewService(st, nil, nil)
	_, err := svc.SendAdminChat(context.Background(), auth.Identity{UserID: "u1"}, "help", nil)
	assert.True(t, errors.Is(err, apperr.ErrNotFound))
}

func TestSendAdminChat_FirstMessageNotifiesEveryAdmin(t *testing.T) {
	ctx := context.Background()
	fx := newFixture(t)
	fx.st.AddAdmin("admin2")
	user := auth.Identity{UserID: "req", Role: model.RoleRequester}

	_, err := fx.svc.SendAdminChat(ctx, user, "my provider never showed up", nil)
	require.NoError(t, err)

	opened := func(adminID string) int {
		ns, err := fx.st.ListNotifications(ctx, adminID, false)
		require.NoError(t, err)
		n := 0
		for _, x := range ns {
			if x.Title == "New support conversation" {
				assert.Equal(t, "my provider never showed up", x.Message)
				n++
			}
		}
		return n
	}
	assert.Equal(t, 1, opened("admin"))
	assert.Equal(t, 1, opened("admin2"))

	// follow-ups in the same thread only reach the receiving admin
	_, err = fx.svc.SendAdminChat(ctx, user, "any update?", nil)
	require.NoError(t, err)
	assert.Equal(t, 1, opened("admin"))
	assert.Equal(t, 1, opened("admin2"))

	// admins writing first do not open a support conversation
	_, err = fx.svc.SendAdminChat(ctx, auth.Identity{UserID: "admin2", Role: model.RoleAdmin}, "checking in", strp("prov"))
	require.NoError(t, err)
	assert.Equal(t, 1, opened("admin"))
}

// ctxStore fails notification inserts once the context is done, like a
// database driver would.
type ctxStore struct {
	*memstore.Store
}

func (s ctxStore) InsertNotification(ctx context.Context, n *model.Notification) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return s.Store.InsertNotification(ctx, n)
}

func TestSendMessage_CallerCancellationDoesNotDropNotification(t *testing.T) {
	fx := newFixture(t)
	st := ctxStore{fx.st}
	svc := messaging.NewService(st, fx.hub, notify.NewWriter(st, fx.hub, nil))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := svc.SendMessage(ctx, "req", model.MessageInput{JobID: strp(fx.job.ID), Text: "see you at 9"})
	require.NoError(t, err)

	ns, err := fx.st.ListNotifications(context.Background(), "prov", false)
	require.NoError(t, err)
	require.Len(t, ns, 1)
	assert.Equal(t, model.NotifyMessageReceived, ns[0].Type)
}

func TestConversations_GroupsByJobAndParty(t *testing.T) {
	ctx := context.Background()
	fx := newFixture(t)

	send := func(from string, in model.MessageInput) {
		t.Helper()
		_, err := fx.svc.SendMessage(ctx, from, in)
		require.NoError(t, err)
	}
	send("prov", model.MessageInput{JobID: strp(fx.job.ID), Text: "p1"})
	send("app2", model.MessageInput{JobID: strp(fx.job.ID), Text: "a1"})
	send("prov", model.MessageInput{JobID: strp(fx.job.ID), Text: "p2"})
	send("admin", model.MessageInput{MessageType: model.MessageAdmin, ReceiverID: strp("req"), Text: "hi"})

	convs, err := fx.svc.Conversations(ctx, "req")
	require.NoError(t, err)
	require.Len(t, convs, 3)

	assert.Equal(t, "admin", convs[0].OtherUserID)
	assert.Equal(t, model.MessageAdmin, convs[0].MessageType)

	assert.Equal(t, "prov", convs[1].OtherUserID)
	assert.Equal(t, "p2", convs[1].LastMessage.Text)
	assert.Equal(t, 2, convs[1].UnreadCount)

	assert.Equal(t, "app2", convs[2].OtherUserID)
	assert.Equal(t, 1, convs[2].UnreadCount)
}

func TestMarkRead_OnlyReceiver(t *testing.T) {
	ctx := context.Background()
	fx := newFixture(t)

	msg, err := fx.svc.SendMessage(ctx, "prov", model.MessageInput{JobID: strp(fx.job.ID), Text: "x"})
	require.NoError(t, err)

	assert.ErrorIs(t, fx.svc.MarkRead(ctx, "prov", msg.ID), apperr.ErrNotFound)
	require.NoError(t, fx.svc.MarkRead(ctx, "req", msg.ID))

	n, err := fx.svc.UnreadCount(ctx, "req")
	require.NoError(t, err)
	assert.Zero(t, n)
}
