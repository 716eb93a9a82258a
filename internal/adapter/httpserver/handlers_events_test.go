package httpserver

import (
	"context"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pscheid92/askpulse/internal/domain"
)

func TestHandleAnswerPosted(t *testing.T) {
	var gotQuestion domain.EntityRef
	var gotAnswer, gotAnswerer string
	notifications := &mockNotificationService{
		notifyAnswerPostedFn: func(_ context.Context, question domain.EntityRef, answerID, answererID string) (domain.DeliveryStatus, bool, error) {
			gotQuestion, gotAnswer, gotAnswerer = question, answerID, answererID
			return domain.DeliveryDelivered, true, nil
		},
	}
	srv := newTestServer(t, withNotifications(notifications))

	rec := do(t, srv, http.MethodPost, "/api/events/answer-posted", "u3", `{"question_id":"q1","answer_id":"a9"}`)

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.JSONEq(t, `{"notified":true,"delivery":"delivered"}`, rec.Body.String())
	assert.Equal(t, domain.EntityRef{Kind: domain.KindQuestion, ID: "q1"}, gotQuestion)
	assert.Equal(t, "a9", gotAnswer)
	assert.Equal(t, "u3", gotAnswerer)
}

func TestHandleAnswerPosted_UnknownQuestion(t *testing.T) {
	notifications := &mockNotificationService{
		notifyAnswerPostedFn: func(context.Context, domain.EntityRef, string, string) (domain.DeliveryStatus, bool, error) {
			return domain.DeliveryAbsent, false, domain.ErrEntityNotFound
		},
	}
	srv := newTestServer(t, withNotifications(notifications))

	rec := do(t, srv, http.MethodPost, "/api/events/answer-posted", "u3", `{"question_id":"q404","answer_id":"a9"}`)

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestHandleMention(t *testing.T) {
	var gotRecipient, gotMentioner, gotRelated string
	notifications := &mockNotificationService{
		notifyMentionFn: func(_ context.Context, recipientID, mentionerID, relatedEntityID string) (domain.DeliveryStatus, bool, error) {
			gotRecipient, gotMentioner, gotRelated = recipientID, mentionerID, relatedEntityID
			if recipientID == mentionerID {
				return domain.DeliveryAbsent, false, nil
			}
			return domain.DeliveryAbsent, true, nil
		},
	}
	srv := newTestServer(t, withNotifications(notifications))

	rec := do(t, srv, http.MethodPost, "/api/events/mention", "u1", `{"recipient_id":"u2","related_entity_id":"answer:a1"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"notified":true,"delivery":"absent"}`, rec.Body.String())
	assert.Equal(t, "u2", gotRecipient)
	assert.Equal(t, "u1", gotMentioner)
	assert.Equal(t, "answer:a1", gotRelated)

	rec = do(t, srv, http.MethodPost, "/api/events/mention", "u1", `{"recipient_id":"u1"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"notified":false,"delivery":"absent"}`, rec.Body.String())
}
