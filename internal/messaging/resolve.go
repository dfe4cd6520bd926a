package messaging

import (
	"servicemarket/marketplace-service/internal/apperr"
	"servicemarket/marketplace-service/internal/model"
)

// ResolveReceiver decides who receives a message.
//
//   - An explicit ReceiverID always wins.
//   - An admin message must name its receiver.
//   - A job message from the job's requester goes to the assigned provider;
//     from anyone else it goes to the requester.
//
// job may be nil for admin messages. ResolveReceiver does not check that the
// sender belongs to the conversation.
func ResolveReceiver(senderID string, in model.MessageInput, job *model.Job) (string, error) {
	if in.ReceiverID != nil && *in.ReceiverID != "" {
		if *in.ReceiverID == senderID {
			return "", apperr.InvalidState("INVALID_RECEIVER", "cannot send a message to yourself")
		}
		return *in.ReceiverID, nil
	}

	if in.MessageType == model.MessageAdmin {
		return "", apperr.InvalidState("RECEIVER_REQUIRED", "receiverId is required for admin messages")
	}
	if job == nil {
		return "", apperr.Validation(map[string]string{"jobId": "jobId is required for job messages"})
	}

	if senderID == job.RequesterID {
		if job.ProviderID == nil {
			return "", apperr.InvalidState("NO_ASSIGNED_PROVIDER", "job has no assigned provider; name a receiver")
		}
		return *job.ProviderID, nil
	}
	return job.RequesterID, nil
}
