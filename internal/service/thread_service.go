package service

import (
	"context"
	"time"

	"confessional/internal/cache"
	"confessional/internal/deeplink"
	"confessional/internal/models"
	"confessional/internal/repository"
	"confessional/internal/thread"

	"github.com/google/uuid"
)

// ConfessionView is the public part of a confession.
type ConfessionView struct {
	ID           uuid.UUID  `json:"id"`
	Number       int64      `json:"number"`
	Text         string     `json:"text"`
	Tags         []string   `json:"tags"`
	MediaRef     *string    `json:"media_ref,omitempty"`
	Likes        int        `json:"likes"`
	Dislikes     int        `json:"dislikes"`
	CommentCount int        `json:"comment_count"`
	ApprovedAt   *time.Time `json:"approved_at,omitempty"`
}

// ThreadRow is one rendered line. More rows only carry Depth and More.
type ThreadRow struct {
	Index       int     `json:"index"`
	ParentIndex int     `json:"parent_index"`
	Depth       int     `json:"depth"`
	Label       string  `json:"label,omitempty"`
	PersonaLink string  `json:"persona_link,omitempty"`
	Text        string  `json:"text,omitempty"`
	MediaRef    *string `json:"media_ref,omitempty"`
	Likes       int     `json:"likes"`
	Dislikes    int     `json:"dislikes"`
	More        string  `json:"more,omitempty"`
}

// ThreadView is render_thread's output. It holds no author ids, so it can be
// cached as is.
type ThreadView struct {
	Confession    ConfessionView `json:"confession"`
	Rows          []ThreadRow    `json:"rows"`
	HiddenThreads int            `json:"hidden_threads"`
	Link          string         `json:"link"`
}

type ThreadService struct {
	confessions repository.ConfessionRepository
	profiles    *ProfileService
	links       *deeplink.Resolver
	bounds      thread.Bounds
}

func NewThreadService(confessions repository.ConfessionRepository, profiles *ProfileService, links *deeplink.Resolver, bounds thread.Bounds) *ThreadService {
	return &ThreadService{confessions: confessions, profiles: profiles, links: links, bounds: bounds}
}

// View renders an approved confession with its bounded comment forest.
func (s *ThreadService) View(ctx context.Context, confessionID uuid.UUID) (*ThreadView, error) {
	var view ThreadView
	err := cache.Aside(ctx, cache.ThreadViewKey(ctx, confessionID.String()), &view, cache.ThreadTTL, func() error {
		built, err := s.render(ctx, confessionID)
		if err != nil {
			return err
		}
		view = *built
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &view, nil
}

// Open resolves a thread deep link and renders it.
func (s *ThreadService) Open(ctx context.Context, token string) (*ThreadView, error) {
	id, err := deeplink.ParseThread(token)
	if err != nil {
		return nil, err
	}
	return s.View(ctx, id)
}

func (s *ThreadService) render(ctx context.Context, confessionID uuid.UUID) (*ThreadView, error) {
	confession, comments, err := s.confessions.GetThread(ctx, confessionID)
	if err != nil {
		return nil, err
	}

	forest := thread.Build(comments, s.bounds)
	view := &ThreadView{
		Confession:    confessionView(confession),
		HiddenThreads: forest.HiddenThreads,
		Link:          s.links.ThreadURL(confession.ID),
	}

	personas := make(map[int64]*Persona)
	for _, row := range forest.Flatten() {
		if row.IsMore() {
			view.Rows = append(view.Rows, ThreadRow{Index: -1, ParentIndex: -1, Depth: row.Depth, More: row.MoreText()})
			continue
		}
		c := row.Comment
		out := ThreadRow{
			Index:       c.Index,
			ParentIndex: c.ParentIndex,
			Depth:       row.Depth,
			Text:        c.Text,
			MediaRef:    c.MediaRef,
			Likes:       c.Likes,
			Dislikes:    c.Dislikes,
		}
		if c.AuthorID == confession.AuthorID {
			out.Label = thread.Label(*c, confession.AuthorID, nil)
		} else {
			persona, ok := personas[c.AuthorID]
			if !ok {
				persona, err = s.profiles.Persona(ctx, c.AuthorID)
				if err != nil {
					return nil, err
				}
				personas[c.AuthorID] = persona
			}
			out.Label = thread.Label(*c, confession.AuthorID, &models.UserProfile{Nickname: persona.Nickname, Emoji: persona.Emoji})
			out.PersonaLink = s.links.PersonaURLForToken(persona.Token)
		}
		view.Rows = append(view.Rows, out)
	}
	return view, nil
}

func confessionView(c *models.Confession) ConfessionView {
	return ConfessionView{
		ID:           c.ID,
		Number:       numberOf(c),
		Text:         c.Text,
		Tags:         c.Tags,
		MediaRef:     c.MediaRef,
		Likes:        c.Likes,
		Dislikes:     c.Dislikes,
		CommentCount: c.CommentCount,
		ApprovedAt:   c.ApprovedAt,
	}
}
