package messaging

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"servicemarket/marketplace-service/internal/apperr"
	"servicemarket/marketplace-service/internal/model"
)

func strp(s string) *string { return &s }

func TestResolveReceiver(t *testing.T) {
	assigned := &model.Job{ID: "j1", RequesterID: "req", ProviderID: strp("prov")}
	unassigned := &model.Job{ID: "j2", RequesterID: "req"}

	cases := []struct {
		name    string
		sender  string
		in      model.MessageInput
		job     *model.Job
		want    string
		wantErr error
	}{
		{"explicit receiver wins", "req", model.MessageInput{ReceiverID: strp("applicant")}, assigned, "applicant", nil},
		{"requester to assigned provider", "req", model.MessageInput{MessageType: model.MessageJob}, assigned, "prov", nil},
		{"provider to requester", "prov", model.MessageInput{MessageType: model.MessageJob}, assigned, "req", nil},
		{"applicant to requester", "applicant", model.MessageInput{}, unassigned, "req", nil},
		{"requester without provider", "req", model.MessageInput{}, unassigned, "", apperr.ErrInvalidState},
		{"admin message needs receiver", "admin", model.MessageInput{MessageType: model.MessageAdmin}, nil, "", apperr.ErrInvalidState},
		{"admin message explicit", "admin", model.MessageInput{MessageType: model.MessageAdmin, ReceiverID: strp("u1")}, nil, "u1", nil},
		{"job message without job", "u1", model.MessageInput{}, nil, "", apperr.ErrValidation},
		{"self addressed", "u1", model.MessageInput{ReceiverID: strp("u1")}, assigned, "", apperr.ErrInvalidState},
		{"empty explicit receiver falls through", "prov", model.MessageInput{ReceiverID: strp("")}, assigned, "req", nil},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := ResolveReceiver(tc.sender, tc.in, tc.job)
			if tc.wantErr != nil {
				require.Error(t, err)
				assert.True(t, errors.Is(err, tc.wantErr), "got %v", err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
}
