package service

import (
	"context"
	"fmt"
	"testing"

	"confessional/internal/cache"
	"confessional/internal/deeplink"
	"confessional/internal/models"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func addComment(t *testing.T, h *harness, id uuid.UUID, author int64, parent int, text string) *models.Comment {
	t.Helper()
	c, err := h.comments.AddComment(context.Background(), AddCommentInput{ConfessionID: id, AuthorID: author, ParentIndex: parent, Text: text})
	require.NoError(t, err)
	return c
}

func TestThreadViewLabelsAndBounds(t *testing.T) {
	h := newHarness(t, "")
	ctx := context.Background()
	c := h.submitAndApprove(t, 1, "a confession with a busy thread")
	require.NoError(t, h.profiles.EditNickname(ctx, 2, "Night Owl"))
	require.NoError(t, h.profiles.SetEmoji(ctx, 2, "👽"))

	addComment(t, h, c.ID, 2, models.NoParent, "first top level") // 0
	addComment(t, h, c.ID, 1, 0, "author answers")                // 1
	for i := 0; i < 4; i++ {
		addComment(t, h, c.ID, 3, 0, fmt.Sprintf("reply number %d", i)) // 2..5
	}

	view, err := h.threads.View(ctx, c.ID)
	require.NoError(t, err)
	assert.EqualValues(t, 1, view.Confession.Number)
	assert.Equal(t, 6, view.Confession.CommentCount)
	assert.Equal(t, h.links.ThreadURL(c.ID), view.Link)
	assert.Zero(t, view.HiddenThreads)

	// top level, three replies, then the marker for the other two
	require.Len(t, view.Rows, 5)
	assert.Equal(t, "👽 Night Owl", view.Rows[0].Label)
	assert.Equal(t, 0, view.Rows[0].Depth)
	assert.NotEmpty(t, view.Rows[0].PersonaLink)

	assert.Equal(t, "Author", view.Rows[1].Label)
	assert.Empty(t, view.Rows[1].PersonaLink)
	assert.Equal(t, 1, view.Rows[1].Depth)

	assert.Equal(t, "👤 anonymous", view.Rows[2].Label)
	assert.Equal(t, 2, view.Rows[2].Index)
	assert.Equal(t, 3, view.Rows[3].Index)

	assert.Equal(t, "+2 more", view.Rows[4].More)
	assert.Equal(t, -1, view.Rows[4].Index)
	assert.Equal(t, 1, view.Rows[4].Depth)
}

func TestThreadViewHiddenThreads(t *testing.T) {
	h := newHarness(t, "")
	c := h.submitAndApprove(t, 1, "a confession with many threads")
	for i := 0; i < 7; i++ {
		addComment(t, h, c.ID, int64(10+i), models.NoParent, fmt.Sprintf("top level %d", i))
	}

	view, err := h.threads.View(context.Background(), c.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, view.HiddenThreads)
	require.Len(t, view.Rows, 6)
	assert.Equal(t, "+2 more", view.Rows[5].More)
	assert.Equal(t, 0, view.Rows[5].Depth)
}

func TestThreadViewRequiresApproval(t *testing.T) {
	h := newHarness(t, "")
	pending := submitPending(t, h, 1)

	_, err := h.threads.View(context.Background(), pending.ID)
	assertAppErrorCode(t, err, models.CodeNotFound)
}

func TestOpenThreadLink(t *testing.T) {
	h := newHarness(t, "")
	c := h.submitAndApprove(t, 1, "a confession behind a link")

	view, err := h.threads.Open(context.Background(), deeplink.ThreadToken(c.ID))
	require.NoError(t, err)
	assert.Equal(t, c.ID, view.Confession.ID)

	_, err = h.threads.Open(context.Background(), "comment_zzz")
	assertAppErrorCode(t, err, models.CodeNotFound)
}

func TestThreadViewIsCachedAndInvalidated(t *testing.T) {
	mr := miniredis.RunT(t)
	cache.SetClient(redis.NewClient(&redis.Options{Addr: mr.Addr()}))
	t.Cleanup(func() { cache.SetClient(nil) })

	h := newHarness(t, "")
	ctx := context.Background()
	c := h.submitAndApprove(t, 1, "a cached confession thread")

	view, err := h.threads.View(ctx, c.ID)
	require.NoError(t, err)
	assert.Empty(t, view.Rows)
	assert.True(t, mr.Exists(cache.ThreadViewKey(ctx, c.ID.String())))

	addComment(t, h, c.ID, 2, models.NoParent, "a fresh comment")
	assert.False(t, mr.Exists(cache.ThreadViewKey(ctx, c.ID.String())))

	view, err = h.threads.View(ctx, c.ID)
	require.NoError(t, err)
	require.Len(t, view.Rows, 1)
	assert.Equal(t, "a fresh comment", view.Rows[0].Text)

	// the cached copy carries no author ids
	raw, err := mr.Get(cache.ThreadViewKey(ctx, c.ID.String()))
	require.NoError(t, err)
	assert.NotContains(t, raw, "author_id")
}

func TestPersonaEditRefreshesCachedThread(t *testing.T) {
	mr := miniredis.RunT(t)
	cache.SetClient(redis.NewClient(&redis.Options{Addr: mr.Addr()}))
	t.Cleanup(func() { cache.SetClient(nil) })

	h := newHarness(t, "")
	ctx := context.Background()
	c := h.submitAndApprove(t, 1, "a thread with a renamed commenter")
	addComment(t, h, c.ID, 2, models.NoParent, "first!")

	before, err := h.threads.View(ctx, c.ID)
	require.NoError(t, err)
	require.Len(t, before.Rows, 1)
	staleKey := cache.ThreadViewKey(ctx, c.ID.String())
	assert.True(t, mr.Exists(staleKey))

	require.NoError(t, h.profiles.EditNickname(ctx, 2, "Renamed"))
	assert.NotEqual(t, staleKey, cache.ThreadViewKey(ctx, c.ID.String()))

	after, err := h.threads.View(ctx, c.ID)
	require.NoError(t, err)
	require.Len(t, after.Rows, 1)
	assert.Contains(t, after.Rows[0].Label, "Renamed")
	assert.NotContains(t, before.Rows[0].Label, "Renamed")
}

func TestBrowse(t *testing.T) {
	h := newHarness(t, "")
	ctx := context.Background()
	submitPending(t, h, 9)
	var ids []uuid.UUID
	for i := int64(1); i <= 6; i++ {
		ids = append(ids, h.submitAndApprove(t, i, fmt.Sprintf("browse confession %d", i)).ID)
	}

	found, err := h.browse.FindByNumber(ctx, 3)
	require.NoError(t, err)
	assert.Equal(t, ids[2], found.ID)

	_, err = h.browse.FindByNumber(ctx, 0)
	assertAppErrorCode(t, err, models.CodeValidation)
	_, err = h.browse.FindByNumber(ctx, 99)
	assertAppErrorCode(t, err, models.CodeNotFound)

	latest, err := h.browse.Latest(ctx)
	require.NoError(t, err)
	require.Len(t, latest, 5)
	assert.EqualValues(t, 6, *latest[0].Number)

	random, err := h.browse.Random(ctx)
	require.NoError(t, err)
	assert.Equal(t, models.ConfessionStatusApproved, random.Status)
}
