package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"confessional/internal/models"
	"confessional/internal/publish"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func submitPending(t *testing.T, h *harness, authorID int64) *models.Confession {
	t.Helper()
	result, err := h.submissions.Submit(context.Background(), SubmitInput{
		AuthorID: authorID,
		Text:     fmt.Sprintf("confession from user %d", authorID),
		Tags:     []string{"Secret"},
	})
	require.NoError(t, err)
	return result.Confession
}

func TestApproveNumbersAndPublishes(t *testing.T) {
	h := newHarness(t, "")
	ctx := context.Background()
	pending := submitPending(t, h, 42)

	result, err := h.moderation.Approve(ctx, pending.ID, testAdmin)
	require.NoError(t, err)
	require.NoError(t, result.PublishErr)
	assert.Equal(t, 1, result.Attempts)
	assert.Equal(t, "post-1", result.PublishedRef)
	require.NotNil(t, result.Confession.Number)
	assert.EqualValues(t, 1, *result.Confession.Number)

	stored, err := h.confessions.GetByID(ctx, pending.ID)
	require.NoError(t, err)
	require.NotNil(t, stored.PublishedRef)
	assert.Equal(t, "post-1", *stored.PublishedRef)
	require.NotNil(t, stored.ApprovedAt)
	assert.True(t, stored.ApprovedAt.Equal(h.clock.Now()))

	notes := h.notifier.notesFor(42)
	require.Len(t, notes, 1)
	assert.Equal(t, "✅ Your confession #1 has been approved.", notes[0].Text)
	assert.Equal(t, h.links.ThreadURL(pending.ID), notes[0].Link)

	second := submitPending(t, h, 43)
	result, err = h.moderation.Approve(ctx, second.ID, testAdmin)
	require.NoError(t, err)
	assert.EqualValues(t, 2, *result.Confession.Number)
}

func TestApproveTwiceIsAlreadyProcessed(t *testing.T) {
	h := newHarness(t, "")
	ctx := context.Background()
	pending := submitPending(t, h, 42)

	_, err := h.moderation.Approve(ctx, pending.ID, testAdmin)
	require.NoError(t, err)

	_, err = h.moderation.Approve(ctx, pending.ID, testAdmin)
	assertAppErrorCode(t, err, models.CodeAlreadyDone)
	assert.Equal(t, 1, h.publisher.callCount())
}

func TestModerateUnknownConfession(t *testing.T) {
	h := newHarness(t, "")
	ctx := context.Background()

	_, err := h.moderation.Approve(ctx, uuid.New(), testAdmin)
	assertAppErrorCode(t, err, models.CodeNotFound)

	err = h.moderation.Reject(ctx, uuid.New(), testAdmin)
	assertAppErrorCode(t, err, models.CodeNotFound)
}

func TestRejectAfterApproveIsAlreadyProcessed(t *testing.T) {
	h := newHarness(t, "")
	ctx := context.Background()
	pending := submitPending(t, h, 42)

	_, err := h.moderation.Approve(ctx, pending.ID, testAdmin)
	require.NoError(t, err)

	err = h.moderation.Reject(ctx, pending.ID, testAdmin)
	assertAppErrorCode(t, err, models.CodeAlreadyDone)
}

func TestConcurrentApproveHasOneWinner(t *testing.T) {
	h := newHarness(t, "")
	pending := submitPending(t, h, 42)

	var wg sync.WaitGroup
	errs := make([]error, 4)
	for i := range errs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = h.moderation.Approve(context.Background(), pending.ID, testAdmin)
		}(i)
	}
	wg.Wait()

	wins := 0
	for _, err := range errs {
		if err == nil {
			wins++
			continue
		}
		assertAppErrorCode(t, err, models.CodeAlreadyDone)
	}
	assert.Equal(t, 1, wins)
}

func TestApproveRetriesWithBackoff(t *testing.T) {
	h := newHarness(t, "")
	h.publisher.failFirst = 2
	h.publisher.err = errors.New("gateway timeout")
	pending := submitPending(t, h, 42)

	result, err := h.moderation.Approve(context.Background(), pending.ID, testAdmin)
	require.NoError(t, err)
	require.NoError(t, result.PublishErr)
	assert.Equal(t, 3, result.Attempts)
	assert.Equal(t, []time.Duration{2 * time.Second, 4 * time.Second}, h.sleeps)
}

func TestApprovePublishExhaustionAlertsOperators(t *testing.T) {
	h := newHarness(t, "")
	h.publisher.failFirst = 10
	h.publisher.err = errors.New("gateway timeout")
	pending := submitPending(t, h, 42)
	alertsBefore := h.notifier.alertCount()

	result, err := h.moderation.Approve(context.Background(), pending.ID, testAdmin)
	require.NoError(t, err)
	assertAppErrorCode(t, result.PublishErr, models.CodePublishFailure)
	assert.Equal(t, models.CodePublishFailure, result.PublishErrorCode)
	assert.Equal(t, 3, result.Attempts)
	assert.Equal(t, 3, h.publisher.callCount())

	require.Equal(t, alertsBefore+1, h.notifier.alertCount())
	assert.Contains(t, h.notifier.lastAlert(), "Posting failure: confession #1")
	assert.Contains(t, h.notifier.lastAlert(), "after 3 attempt(s)")

	stored, err := h.confessions.GetByID(context.Background(), pending.ID)
	require.NoError(t, err)
	assert.Equal(t, models.ConfessionStatusApproved, stored.Status)
	assert.Nil(t, stored.PublishedRef)

	// the author still hears about the approval
	require.Len(t, h.notifier.notesFor(42), 1)
}

func TestApprovePermanentErrorStopsEarly(t *testing.T) {
	h := newHarness(t, "")
	h.publisher.failFirst = 10
	h.publisher.err = fmt.Errorf("%w: chat_not_found", publish.ErrPermanent)
	pending := submitPending(t, h, 42)

	result, err := h.moderation.Approve(context.Background(), pending.ID, testAdmin)
	require.NoError(t, err)
	require.Error(t, result.PublishErr)
	assert.Equal(t, 1, result.Attempts)
	assert.Empty(t, h.sleeps)
}

func TestRepublishPending(t *testing.T) {
	h := newHarness(t, "")
	ctx := context.Background()
	h.publisher.failFirst = 3
	h.publisher.err = errors.New("gateway down")
	pending := submitPending(t, h, 42)

	result, err := h.moderation.Approve(ctx, pending.ID, testAdmin)
	require.NoError(t, err)
	require.Error(t, result.PublishErr)

	// too recent to retry
	published, err := h.moderation.RepublishPending(ctx)
	require.NoError(t, err)
	assert.Zero(t, published)

	h.clock.Advance(2 * time.Minute)
	published, err = h.moderation.RepublishPending(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, published)

	stored, err := h.confessions.GetByID(ctx, pending.ID)
	require.NoError(t, err)
	require.NotNil(t, stored.PublishedRef)
	assert.Equal(t, "post-1", *stored.PublishedRef)

	published, err = h.moderation.RepublishPending(ctx)
	require.NoError(t, err)
	assert.Zero(t, published)
}

func TestRejectDeletesAndNotifies(t *testing.T) {
	h := newHarness(t, "")
	ctx := context.Background()
	pending := submitPending(t, h, 42)

	require.NoError(t, h.moderation.Reject(ctx, pending.ID, testAdmin))

	_, err := h.confessions.GetByID(ctx, pending.ID)
	assertAppErrorCode(t, err, models.CodeNotFound)

	notes := h.notifier.notesFor(42)
	require.Len(t, notes, 1)
	assert.Equal(t, "❌ Your confession was not approved by the admins.", notes[0].Text)

	var record models.ModerationRecord
	require.NoError(t, h.db.Where("confession_id = ?", pending.ID).First(&record).Error)
	assert.Equal(t, models.ModerationReject, record.Action)
	assert.Equal(t, testAdmin, record.ModeratorID)
}

func TestPendingQueueAndReply(t *testing.T) {
	h := newHarness(t, "")
	ctx := context.Background()
	first := submitPending(t, h, 42)
	second := submitPending(t, h, 43)

	pending, err := h.moderation.ListPending(ctx)
	require.NoError(t, err)
	require.Len(t, pending, 2)
	assert.ElementsMatch(t, []uuid.UUID{first.ID, second.ID}, []uuid.UUID{pending[0].ID, pending[1].ID})

	view, err := h.moderation.ViewPending(ctx, first.ID)
	require.NoError(t, err)
	assert.EqualValues(t, 42, view.AuthorID)

	require.NoError(t, h.moderation.ReplyToConfessor(ctx, first.ID, testAdmin, "Please remove the names."))
	notes := h.notifier.notesFor(42)
	require.Len(t, notes, 1)
	assert.Contains(t, notes[0].Text, "Please remove the names.")

	_, err = h.moderation.Approve(ctx, first.ID, testAdmin)
	require.NoError(t, err)
	err = h.moderation.ReplyToConfessor(ctx, first.ID, testAdmin, "too late")
	assertAppErrorCode(t, err, models.CodeNotFound)
}

func TestBlockAndUnblock(t *testing.T) {
	h := newHarness(t, "")
	ctx := context.Background()

	err := h.moderation.BlockUser(ctx, testAdmin, testAdmin, "")
	assertAppErrorCode(t, err, models.CodeValidation)

	require.NoError(t, h.moderation.BlockUser(ctx, 42, testAdmin, " spam "))
	blocked, err := h.moderation.IsBlocked(ctx, 42)
	require.NoError(t, err)
	assert.True(t, blocked)

	list, err := h.moderation.ListBlocked(ctx)
	require.NoError(t, err)
	require.Len(t, list, 1)

	removed, err := h.moderation.UnblockUser(ctx, 42)
	require.NoError(t, err)
	assert.True(t, removed)

	removed, err = h.moderation.UnblockUser(ctx, 42)
	require.NoError(t, err)
	assert.False(t, removed)
}

func TestToggleAutoApprove(t *testing.T) {
	h := newHarness(t, "")
	ctx := context.Background()

	on, err := h.moderation.AutoApprove(ctx)
	require.NoError(t, err)
	assert.False(t, on)

	on, err = h.moderation.ToggleAutoApprove(ctx, testAdmin)
	require.NoError(t, err)
	assert.True(t, on)

	on, err = h.moderation.ToggleAutoApprove(ctx, testAdmin)
	require.NoError(t, err)
	assert.False(t, on)

	assert.True(t, h.moderation.IsAdmin(testAdmin))
	assert.False(t, h.moderation.IsAdmin(42))
}

func TestRepublishSkipsConfessionsBeingPublished(t *testing.T) {
	h := newHarness(t, "")
	ctx := context.Background()
	h.publisher.failFirst = 3
	h.publisher.err = errors.New("gateway down")
	pending := submitPending(t, h, 42)

	_, err := h.moderation.Approve(ctx, pending.ID, testAdmin)
	require.NoError(t, err)
	calls := h.publisher.callCount()
	alerts := h.notifier.alertCount()
	h.clock.Advance(2 * time.Minute)

	// an approval still running its publish loop owns the confession
	h.moderation.inflight.Store(pending.ID, struct{}{})
	published, err := h.moderation.RepublishPending(ctx)
	require.NoError(t, err)
	assert.Zero(t, published)
	assert.Equal(t, calls, h.publisher.callCount())
	assert.Equal(t, alerts, h.notifier.alertCount())

	h.moderation.inflight.Delete(pending.ID)
	published, err = h.moderation.RepublishPending(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, published)
	_, busy := h.moderation.inflight.Load(pending.ID)
	assert.False(t, busy)
}
