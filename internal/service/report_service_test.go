package service

import (
	"context"
	"testing"

	"confessional/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReportUser(t *testing.T) {
	h := newHarness(t, "")
	ctx := context.Background()

	_, err := h.reports.ReportUser(ctx, 5, 5, "reporting myself")
	assertAppErrorCode(t, err, models.CodeValidation)

	_, err = h.reports.ReportUser(ctx, 5, 6, "bad")
	assertAppErrorCode(t, err, models.CodeValidation)

	report, err := h.reports.ReportUser(ctx, 5, 6, "harassment in comments")
	require.NoError(t, err)
	assert.Equal(t, models.ReportStatusOpen, report.Status)

	open, err := h.reports.ListOpenReports(ctx, 10)
	require.NoError(t, err)
	require.Len(t, open, 1)
	assert.Equal(t, report.ID, open[0].ID)
	assert.Contains(t, h.notifier.lastAlert(), "Reporter: 5")
}

func TestChatRequestsDisabled(t *testing.T) {
	h := newHarness(t, "chat_requests=off")
	ctx := context.Background()

	_, err := h.reports.RequestChat(ctx, 5, 6, "hello there")
	assertAppErrorCode(t, err, models.CodeForbidden)

	persona, err := h.profiles.Persona(ctx, 6)
	require.NoError(t, err)
	_, err = h.drafts.StartChatRequest(ctx, 5, persona.Token)
	assertAppErrorCode(t, err, models.CodeForbidden)
}

func TestChatRequestAccept(t *testing.T) {
	h := newHarness(t, "chat_requests=on")
	ctx := context.Background()

	persona, err := h.profiles.Persona(ctx, 6)
	require.NoError(t, err)
	_, err = h.drafts.StartChatRequest(ctx, 5, persona.Token)
	require.NoError(t, err)
	outcome, err := h.drafts.SubmitText(ctx, 5, "want to talk about it?", nil)
	require.NoError(t, err)
	request := outcome.ChatRequest
	require.NotNil(t, request)
	assert.Equal(t, models.ChatRequestPending, request.Status)

	toTarget := h.notifier.notesFor(6)
	require.Len(t, toTarget, 1)
	assert.Contains(t, toTarget[0].Text, "want to talk about it?")

	// only the target answers
	_, err = h.reports.AcceptChatRequest(ctx, request.ID, 5)
	assertAppErrorCode(t, err, models.CodeForbidden)

	accepted, err := h.reports.AcceptChatRequest(ctx, request.ID, 6)
	require.NoError(t, err)
	assert.Equal(t, models.ChatRequestAccepted, accepted.Status)
	require.NotNil(t, accepted.RespondedAt)

	toRequester := h.notifier.notesFor(5)
	require.Len(t, toRequester, 1)
	assert.Equal(t, "tg://user?id=6", toRequester[0].Link)

	_, err = h.reports.DeclineChatRequest(ctx, request.ID, 6)
	assertAppErrorCode(t, err, models.CodeAlreadyDone)
}

func TestChatRequestDecline(t *testing.T) {
	h := newHarness(t, "chat_requests=on")
	ctx := context.Background()

	request, err := h.reports.RequestChat(ctx, 5, 6, "coffee sometime?")
	require.NoError(t, err)

	_, err = h.reports.RequestChat(ctx, 5, 5, "talking to myself")
	assertAppErrorCode(t, err, models.CodeValidation)

	declined, err := h.reports.DeclineChatRequest(ctx, request.ID, 6)
	require.NoError(t, err)
	assert.Equal(t, models.ChatRequestDeclined, declined.Status)

	toRequester := h.notifier.notesFor(5)
	require.Len(t, toRequester, 1)
	assert.Equal(t, "Your chat request was declined.", toRequester[0].Text)
}
