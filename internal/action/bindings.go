package action

import (
	"context"
	"strings"

	"confessional/internal/catalog"
	"confessional/internal/deeplink"
	"confessional/internal/models"
	"confessional/internal/service"

	"github.com/google/uuid"
)

// Services are the use cases the actions drive.
type Services struct {
	Submissions *service.SubmissionService
	Moderation  *service.ModerationService
	Drafts      *service.DraftService
	Comments    *service.CommentService
	Votes       *service.VoteService
	Threads     *service.ThreadService
	Profiles    *service.ProfileService
	Reports     *service.ReportService
	Browse      *service.BrowseService
	Links       *deeplink.Resolver
	Catalog     *catalog.Catalog
}

type textPayload struct {
	Text     string  `json:"text"`
	MediaRef *string `json:"media_ref,omitempty"`
}

type tagPayload struct {
	Tag string `json:"tag"`
}

type commentStartPayload struct {
	ParentIndex *int `json:"parent_index,omitempty"`
}

type votePayload struct {
	Value        string `json:"value"`
	CommentIndex int    `json:"comment_index"`
}

type findPayload struct {
	Number int64 `json:"number"`
}

type choicePayload struct {
	Value string `json:"value"`
}

type blockPayload struct {
	UserID int64  `json:"user_id"`
	Reason string `json:"reason"`
}

// Toggle results.
type flagResult struct {
	Enabled bool `json:"enabled"`
}

type karmaResult struct {
	Aura    int    `json:"aura"`
	Display string `json:"display"`
}

type doneResult struct {
	Done bool `json:"done"`
}

var done = doneResult{Done: true}

// CatalogResult is everything a transport needs to render the tag, emoji and
// gender pickers and the rules screen.
type CatalogResult struct {
	Tags      []string      `json:"tags"`
	Emoji     []string      `json:"emoji"`
	Genders   []string      `json:"genders"`
	Rules     catalog.Rules `json:"rules"`
	RulesText string        `json:"rules_text"`
}

type rulesResult struct {
	Rules catalog.Rules `json:"rules"`
	Text  string        `json:"text"`
}

func confessionRef(req Request) (uuid.UUID, error) {
	id, err := uuid.Parse(strings.TrimSpace(req.TargetRef))
	if err != nil {
		return uuid.Nil, models.NewValidationError("target_ref must be a confession id")
	}
	return id, nil
}

func requestRef(req Request) (uuid.UUID, error) {
	id, err := uuid.Parse(strings.TrimSpace(req.TargetRef))
	if err != nil {
		return uuid.Nil, models.NewValidationError("target_ref must be a chat request id")
	}
	return id, nil
}

func decodeText(req Request) (textPayload, error) {
	var p textPayload
	err := req.Decode(&p)
	return p, err
}

// NewServiceRouter registers every kind against svc.
func NewServiceRouter(svc Services) *Router {
	r := NewRouter(svc.Moderation.IsAdmin)
	registerSubmission(r, svc)
	registerEngagement(r, svc)
	registerModeration(r, svc)
	registerBrowse(r, svc)
	registerProfile(r, svc)
	registerSocial(r, svc)
	registerInfo(r, svc)
	return r
}

func registerInfo(r *Router, svc Services) {
	cat := svc.Catalog
	if cat == nil {
		cat = catalog.Default()
	}
	r.Handle(Catalog, false, func(context.Context, Request) (any, error) {
		return CatalogResult{
			Tags:      cat.Tags,
			Emoji:     cat.Emoji,
			Genders:   cat.Genders,
			Rules:     cat.Rules,
			RulesText: cat.RulesText(),
		}, nil
	})
	r.Handle(Rules, false, func(context.Context, Request) (any, error) {
		return rulesResult{Rules: cat.Rules, Text: cat.RulesText()}, nil
	})
	r.Handle(Help, false, func(_ context.Context, req Request) (any, error) {
		return r.Available(req.ActorID), nil
	})
}

func registerSubmission(r *Router, svc Services) {
	r.Handle(SubmitStart, false, func(ctx context.Context, req Request) (any, error) {
		return svc.Drafts.StartConfession(ctx, req.ActorID)
	})
	r.Handle(SubmitText, false, func(ctx context.Context, req Request) (any, error) {
		p, err := decodeText(req)
		if err != nil {
			return nil, err
		}
		return svc.Drafts.SubmitText(ctx, req.ActorID, p.Text, p.MediaRef)
	})
	r.Handle(SubmitTag, false, func(ctx context.Context, req Request) (any, error) {
		var p tagPayload
		if err := req.Decode(&p); err != nil {
			return nil, err
		}
		return svc.Drafts.ToggleTag(ctx, req.ActorID, p.Tag)
	})
	r.Handle(SubmitAutoTag, false, func(ctx context.Context, req Request) (any, error) {
		return svc.Drafts.AutoTag(ctx, req.ActorID)
	})
	r.Handle(SubmitConfirm, false, func(ctx context.Context, req Request) (any, error) {
		return svc.Drafts.Confirm(ctx, req.ActorID)
	})
	r.Handle(DraftAbandon, false, func(ctx context.Context, req Request) (any, error) {
		return done, svc.Drafts.Abandon(ctx, req.ActorID)
	})
}

func registerEngagement(r *Router, svc Services) {
	r.Handle(CommentStart, false, func(ctx context.Context, req Request) (any, error) {
		id, err := confessionRef(req)
		if err != nil {
			return nil, err
		}
		var p commentStartPayload
		if err := req.Decode(&p); err != nil {
			return nil, err
		}
		parent := models.NoParent
		if p.ParentIndex != nil {
			parent = *p.ParentIndex
		}
		return svc.Drafts.StartComment(ctx, req.ActorID, id, parent)
	})
	r.Handle(CommentSubmit, false, func(ctx context.Context, req Request) (any, error) {
		p, err := decodeText(req)
		if err != nil {
			return nil, err
		}
		draft, err := svc.Drafts.Current(ctx, req.ActorID)
		if err != nil || draft.Kind != models.DraftComment {
			return nil, models.NewValidationError("Start a comment first")
		}
		return svc.Drafts.SubmitText(ctx, req.ActorID, p.Text, p.MediaRef)
	})
	r.Handle(Vote, false, func(ctx context.Context, req Request) (any, error) {
		return castVote(ctx, svc, req, true)
	})
	r.Handle(CommentVote, false, func(ctx context.Context, req Request) (any, error) {
		return castVote(ctx, svc, req, false)
	})
}

func castVote(ctx context.Context, svc Services, req Request, onConfession bool) (any, error) {
	id, err := confessionRef(req)
	if err != nil {
		return nil, err
	}
	var p votePayload
	if err := req.Decode(&p); err != nil {
		return nil, err
	}
	value, err := models.ParseVoteValue(p.Value)
	if err != nil {
		return nil, err
	}
	target := models.VoteTarget{ConfessionID: id, CommentIndex: models.ConfessionTarget}
	if !onConfession {
		if p.CommentIndex < 0 {
			return nil, models.NewValidationError("comment_index must not be negative")
		}
		target.CommentIndex = p.CommentIndex
	}
	return svc.Votes.Cast(ctx, target, req.ActorID, value)
}

func registerModeration(r *Router, svc Services) {
	r.Handle(Approve, true, func(ctx context.Context, req Request) (any, error) {
		id, err := confessionRef(req)
		if err != nil {
			return nil, err
		}
		return svc.Moderation.Approve(ctx, id, req.ActorID)
	})
	r.Handle(Reject, true, func(ctx context.Context, req Request) (any, error) {
		id, err := confessionRef(req)
		if err != nil {
			return nil, err
		}
		return done, svc.Moderation.Reject(ctx, id, req.ActorID)
	})
	r.Handle(AdminReply, true, func(ctx context.Context, req Request) (any, error) {
		id, err := confessionRef(req)
		if err != nil {
			return nil, err
		}
		p, err := decodeText(req)
		if err != nil {
			return nil, err
		}
		if strings.TrimSpace(p.Text) == "" {
			return svc.Drafts.StartAdminReply(ctx, req.ActorID, id)
		}
		return done, svc.Moderation.ReplyToConfessor(ctx, id, req.ActorID, p.Text)
	})
	r.Handle(ToggleAutoApprove, true, func(ctx context.Context, req Request) (any, error) {
		enabled, err := svc.Moderation.ToggleAutoApprove(ctx, req.ActorID)
		return flagResult{Enabled: enabled}, err
	})
	r.Handle(PendingList, true, func(ctx context.Context, req Request) (any, error) {
		if req.TargetRef != "" {
			id, err := confessionRef(req)
			if err != nil {
				return nil, err
			}
			return svc.Moderation.ViewPending(ctx, id)
		}
		return svc.Moderation.ListPending(ctx)
	})
	r.Handle(BlockUser, true, func(ctx context.Context, req Request) (any, error) {
		var p blockPayload
		if err := req.Decode(&p); err != nil {
			return nil, err
		}
		if p.UserID <= 0 {
			return nil, models.NewValidationError("user_id is required")
		}
		return done, svc.Moderation.BlockUser(ctx, p.UserID, req.ActorID, p.Reason)
	})
	r.Handle(UnblockUser, true, func(ctx context.Context, req Request) (any, error) {
		var p blockPayload
		if err := req.Decode(&p); err != nil {
			return nil, err
		}
		removed, err := svc.Moderation.UnblockUser(ctx, p.UserID)
		return doneResult{Done: removed}, err
	})
}

func registerBrowse(r *Router, svc Services) {
	r.Handle(ViewThread, false, func(ctx context.Context, req Request) (any, error) {
		id, err := confessionRef(req)
		if err != nil {
			return nil, err
		}
		return svc.Threads.View(ctx, id)
	})
	r.Handle(OpenLink, false, func(ctx context.Context, req Request) (any, error) {
		target, err := svc.Links.Resolve(ctx, strings.TrimSpace(req.TargetRef))
		if err != nil {
			return nil, err
		}
		if target.Kind == deeplink.TargetThread {
			return svc.Threads.View(ctx, target.ConfessionID)
		}
		return svc.Profiles.ViewPublic(ctx, req.TargetRef)
	})
	r.Handle(Find, false, func(ctx context.Context, req Request) (any, error) {
		var p findPayload
		if err := req.Decode(&p); err != nil {
			return nil, err
		}
		return svc.Browse.FindByNumber(ctx, p.Number)
	})
	r.Handle(Latest, false, func(ctx context.Context, _ Request) (any, error) {
		return svc.Browse.Latest(ctx)
	})
	r.Handle(Random, false, func(ctx context.Context, _ Request) (any, error) {
		return svc.Browse.Random(ctx)
	})
}

func registerProfile(r *Router, svc Services) {
	r.Handle(ProfileView, false, func(ctx context.Context, req Request) (any, error) {
		return svc.Profiles.ViewOwn(ctx, req.ActorID)
	})
	r.Handle(ProfilePublic, false, func(ctx context.Context, req Request) (any, error) {
		return svc.Profiles.ViewPublic(ctx, strings.TrimSpace(req.TargetRef))
	})
	r.Handle(EditNickname, false, func(ctx context.Context, req Request) (any, error) {
		p, err := decodeText(req)
		if err != nil {
			return nil, err
		}
		if p.Text == "" {
			return svc.Drafts.StartNickname(ctx, req.ActorID)
		}
		return done, svc.Profiles.EditNickname(ctx, req.ActorID, p.Text)
	})
	r.Handle(EditBio, false, func(ctx context.Context, req Request) (any, error) {
		p, err := decodeText(req)
		if err != nil {
			return nil, err
		}
		if p.Text == "" {
			return svc.Drafts.StartBio(ctx, req.ActorID)
		}
		return done, svc.Profiles.EditBio(ctx, req.ActorID, p.Text)
	})
	r.Handle(SetEmoji, false, func(ctx context.Context, req Request) (any, error) {
		var p choicePayload
		if err := req.Decode(&p); err != nil {
			return nil, err
		}
		return done, svc.Profiles.SetEmoji(ctx, req.ActorID, p.Value)
	})
	r.Handle(SetGender, false, func(ctx context.Context, req Request) (any, error) {
		var p choicePayload
		if err := req.Decode(&p); err != nil {
			return nil, err
		}
		return done, svc.Profiles.SetGender(ctx, req.ActorID, p.Value)
	})
	r.Handle(TogglePrivacy, false, func(ctx context.Context, req Request) (any, error) {
		var p choicePayload
		if err := req.Decode(&p); err != nil {
			return nil, err
		}
		visible, err := svc.Profiles.TogglePrivacy(ctx, req.ActorID, models.PrivacyField(p.Value))
		return flagResult{Enabled: visible}, err
	})
	r.Handle(AgreeRules, false, func(ctx context.Context, req Request) (any, error) {
		return done, svc.Profiles.AgreeToRules(ctx, req.ActorID)
	})
	r.Handle(MyKarma, false, func(ctx context.Context, req Request) (any, error) {
		aura, display, err := svc.Profiles.MyKarma(ctx, req.ActorID)
		return karmaResult{Aura: aura, Display: display}, err
	})
}

func registerSocial(r *Router, svc Services) {
	r.Handle(ReportUser, false, func(ctx context.Context, req Request) (any, error) {
		p, err := decodeText(req)
		if err != nil {
			return nil, err
		}
		if p.Text == "" {
			return svc.Drafts.StartReport(ctx, req.ActorID, req.TargetRef)
		}
		target, err := svc.Profiles.ResolveTarget(ctx, req.TargetRef)
		if err != nil {
			return nil, err
		}
		return svc.Reports.ReportUser(ctx, req.ActorID, target, p.Text)
	})
	r.Handle(RequestChat, false, func(ctx context.Context, req Request) (any, error) {
		p, err := decodeText(req)
		if err != nil {
			return nil, err
		}
		if p.Text == "" {
			return svc.Drafts.StartChatRequest(ctx, req.ActorID, req.TargetRef)
		}
		target, err := svc.Profiles.ResolveTarget(ctx, req.TargetRef)
		if err != nil {
			return nil, err
		}
		return svc.Reports.RequestChat(ctx, req.ActorID, target, p.Text)
	})
	r.Handle(AcceptChat, false, func(ctx context.Context, req Request) (any, error) {
		id, err := requestRef(req)
		if err != nil {
			return nil, err
		}
		return svc.Reports.AcceptChatRequest(ctx, id, req.ActorID)
	})
	r.Handle(DeclineChat, false, func(ctx context.Context, req Request) (any, error) {
		id, err := requestRef(req)
		if err != nil {
			return nil, err
		}
		return svc.Reports.DeclineChatRequest(ctx, id, req.ActorID)
	})
}
