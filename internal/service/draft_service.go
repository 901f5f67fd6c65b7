package service

import (
	"context"
	"time"

	"confessional/internal/catalog"
	"confessional/internal/cooldown"
	"confessional/internal/models"
	"confessional/internal/repository"
	"confessional/internal/validation"

	"github.com/google/uuid"
)

// TextOutcome says what a submitted text did. Draft is set while the flow
// continues; the other fields are set when it completed.
type TextOutcome struct {
	Draft       *models.Draft       `json:"draft,omitempty"`
	Comment     *models.Comment     `json:"comment,omitempty"`
	Report      *models.Report      `json:"report,omitempty"`
	ChatRequest *models.ChatRequest `json:"chat_request,omitempty"`
	Done        bool                `json:"done"`
}

// DraftService drives the per-user multi-step flows. Nothing reaches the
// content tables before the flow completes.
type DraftService struct {
	drafts      repository.DraftRepository
	profileRepo repository.ProfileRepository
	blocks      repository.BlockRepository
	guard       *cooldown.Guard
	catalog     *catalog.Catalog
	ttl         time.Duration

	submissions *SubmissionService
	comments    *CommentService
	profiles    *ProfileService
	reports     *ReportService
	moderation  *ModerationService
}

type DraftDeps struct {
	Drafts      repository.DraftRepository
	ProfileRepo repository.ProfileRepository
	Blocks      repository.BlockRepository
	Guard       *cooldown.Guard
	Catalog     *catalog.Catalog
	TTL         time.Duration
	Submissions *SubmissionService
	Comments    *CommentService
	Profiles    *ProfileService
	Reports     *ReportService
	Moderation  *ModerationService
}

func NewDraftService(deps DraftDeps) *DraftService {
	ttl := deps.TTL
	if ttl <= 0 {
		ttl = 30 * time.Minute
	}
	return &DraftService{
		drafts:      deps.Drafts,
		profileRepo: deps.ProfileRepo,
		blocks:      deps.Blocks,
		guard:       deps.Guard,
		catalog:     deps.Catalog,
		ttl:         ttl,
		submissions: deps.Submissions,
		comments:    deps.Comments,
		profiles:    deps.Profiles,
		reports:     deps.Reports,
		moderation:  deps.Moderation,
	}
}

func (s *DraftService) Current(ctx context.Context, userID int64) (*models.Draft, error) {
	return s.drafts.Get(ctx, userID, s.guard.Now())
}

func (s *DraftService) start(ctx context.Context, draft *models.Draft) (*models.Draft, error) {
	now := s.guard.Now()
	draft.State = models.DraftAwaitingText
	draft.ExpiresAt = now.Add(s.ttl)
	if draft.Tags == nil {
		draft.Tags = []string{}
	}
	if err := s.drafts.Save(ctx, draft); err != nil {
		return nil, err
	}
	return draft, nil
}

func (s *DraftService) save(ctx context.Context, draft *models.Draft) (*models.Draft, error) {
	draft.ExpiresAt = s.guard.Now().Add(s.ttl)
	if err := s.drafts.Save(ctx, draft); err != nil {
		return nil, err
	}
	return draft, nil
}

func (s *DraftService) current(ctx context.Context, userID int64, kind models.DraftKind) (*models.Draft, error) {
	draft, err := s.Current(ctx, userID)
	if err != nil {
		if models.IsCode(err, models.CodeNotFound) {
			return nil, models.NewValidationError("Nothing in progress. Start again from the menu.")
		}
		return nil, err
	}
	if kind != "" && draft.Kind != kind {
		return nil, models.NewValidationError("This step does not belong to the current flow")
	}
	return draft, nil
}

// StartConfession fails early on a block or an open cooldown window.
func (s *DraftService) StartConfession(ctx context.Context, userID int64) (*models.Draft, error) {
	if err := ensureNotBlocked(ctx, s.blocks, userID); err != nil {
		return nil, err
	}
	profile, err := s.profileRepo.GetOrCreate(ctx, userID)
	if err != nil {
		return nil, err
	}
	if err := s.guard.CheckSubmission(profile, s.guard.Now()); err != nil {
		return nil, err
	}
	return s.start(ctx, &models.Draft{UserID: userID, Kind: models.DraftConfession, ParentIndex: models.NoParent})
}

func (s *DraftService) StartComment(ctx context.Context, userID int64, confessionID uuid.UUID, parentIndex int) (*models.Draft, error) {
	if err := ensureNotBlocked(ctx, s.blocks, userID); err != nil {
		return nil, err
	}
	confession, err := s.comments.CanComment(ctx, confessionID)
	if err != nil {
		return nil, err
	}
	if parentIndex < models.NoParent || parentIndex >= confession.CommentCount {
		parentIndex = models.NoParent
	}
	return s.start(ctx, &models.Draft{
		UserID:             userID,
		Kind:               models.DraftComment,
		TargetConfessionID: &confessionID,
		ParentIndex:        parentIndex,
	})
}

func (s *DraftService) StartNickname(ctx context.Context, userID int64) (*models.Draft, error) {
	if err := s.profiles.CheckNicknameCooldown(ctx, userID); err != nil {
		return nil, err
	}
	return s.start(ctx, &models.Draft{UserID: userID, Kind: models.DraftNickname, ParentIndex: models.NoParent})
}

func (s *DraftService) StartBio(ctx context.Context, userID int64) (*models.Draft, error) {
	return s.start(ctx, &models.Draft{UserID: userID, Kind: models.DraftBio, ParentIndex: models.NoParent})
}

// StartReport resolves the persona token now so the draft keeps the user id.
func (s *DraftService) StartReport(ctx context.Context, userID int64, personaToken string) (*models.Draft, error) {
	return s.startTargeted(ctx, userID, personaToken, models.DraftReport)
}

func (s *DraftService) StartChatRequest(ctx context.Context, userID int64, personaToken string) (*models.Draft, error) {
	if err := s.reports.ChatsEnabled(userID); err != nil {
		return nil, err
	}
	return s.startTargeted(ctx, userID, personaToken, models.DraftChatRequest)
}

func (s *DraftService) startTargeted(ctx context.Context, userID int64, token string, kind models.DraftKind) (*models.Draft, error) {
	target, err := s.profiles.ResolveTarget(ctx, token)
	if err != nil {
		return nil, err
	}
	if target == userID {
		return nil, models.NewValidationError("That is your own profile")
	}
	return s.start(ctx, &models.Draft{UserID: userID, Kind: kind, TargetUserID: &target, ParentIndex: models.NoParent})
}

// StartAdminReply is only routed for operators.
func (s *DraftService) StartAdminReply(ctx context.Context, operatorID int64, confessionID uuid.UUID) (*models.Draft, error) {
	if _, err := s.moderation.ViewPending(ctx, confessionID); err != nil {
		return nil, err
	}
	return s.start(ctx, &models.Draft{
		UserID:             operatorID,
		Kind:               models.DraftAdminReply,
		TargetConfessionID: &confessionID,
		ParentIndex:        models.NoParent,
	})
}

// SubmitText feeds the awaited text into whichever flow is in progress.
func (s *DraftService) SubmitText(ctx context.Context, userID int64, text string, mediaRef *string) (*TextOutcome, error) {
	draft, err := s.current(ctx, userID, "")
	if err != nil {
		return nil, err
	}

	if draft.Kind == models.DraftConfession {
		normalized, err := validation.ConfessionText(text, mediaRef != nil)
		if err != nil {
			return nil, err
		}
		if err := draft.Transition(models.DraftAwaitingTags); err != nil {
			return nil, err
		}
		draft.Text = normalized
		draft.MediaRef = mediaRef
		saved, err := s.save(ctx, draft)
		if err != nil {
			return nil, err
		}
		return &TextOutcome{Draft: saved}, nil
	}

	if err := draft.Transition(models.DraftAwaitingConfirm); err != nil {
		return nil, err
	}
	outcome := &TextOutcome{Done: true}
	switch draft.Kind {
	case models.DraftComment:
		outcome.Comment, err = s.comments.AddComment(ctx, AddCommentInput{
			ConfessionID: *draft.TargetConfessionID,
			AuthorID:     userID,
			ParentIndex:  draft.ParentIndex,
			Text:         text,
			MediaRef:     mediaRef,
		})
	case models.DraftNickname:
		err = s.profiles.EditNickname(ctx, userID, text)
	case models.DraftBio:
		err = s.profiles.EditBio(ctx, userID, text)
	case models.DraftReport:
		outcome.Report, err = s.reports.ReportUser(ctx, userID, *draft.TargetUserID, text)
	case models.DraftChatRequest:
		outcome.ChatRequest, err = s.reports.RequestChat(ctx, userID, *draft.TargetUserID, text)
	case models.DraftAdminReply:
		err = s.moderation.ReplyToConfessor(ctx, *draft.TargetConfessionID, userID, text)
	default:
		err = models.NewValidationError("Unknown flow")
	}
	if err != nil {
		if models.IsCode(err, models.CodeValidation) {
			// let the user try again
			return nil, err
		}
		_ = s.drafts.Delete(ctx, userID)
		return nil, err
	}
	if err := s.drafts.Delete(ctx, userID); err != nil {
		logWarn(ctx, "completed draft not deleted", err)
	}
	return outcome, nil
}

func (s *DraftService) ToggleTag(ctx context.Context, userID int64, tag string) (*models.Draft, error) {
	if !s.catalog.IsTag(tag) {
		return nil, models.NewValidationError("Unknown tag")
	}
	draft, err := s.current(ctx, userID, models.DraftConfession)
	if err != nil {
		return nil, err
	}
	if err := draft.Transition(models.DraftAwaitingTags); err != nil {
		return nil, err
	}
	draft.ToggleTag(tag)
	return s.save(ctx, draft)
}

// AutoTag selects the catch-all tag for users who skip tagging.
func (s *DraftService) AutoTag(ctx context.Context, userID int64) (*models.Draft, error) {
	draft, err := s.current(ctx, userID, models.DraftConfession)
	if err != nil {
		return nil, err
	}
	if err := draft.Transition(models.DraftAwaitingTags); err != nil {
		return nil, err
	}
	if !draft.HasTag(catalog.OtherTag) {
		draft.ToggleTag(catalog.OtherTag)
	}
	return s.save(ctx, draft)
}

// Confirm submits the drafted confession and clears the draft.
func (s *DraftService) Confirm(ctx context.Context, userID int64) (*SubmitResult, error) {
	draft, err := s.current(ctx, userID, models.DraftConfession)
	if err != nil {
		return nil, err
	}
	if len(draft.Tags) == 0 {
		return nil, models.NewValidationError("Select at least one tag")
	}
	if draft.State != models.DraftAwaitingConfirm {
		if err := draft.Transition(models.DraftAwaitingConfirm); err != nil {
			return nil, err
		}
	}

	result, err := s.submissions.Submit(ctx, SubmitInput{
		AuthorID: userID,
		Text:     draft.Text,
		MediaRef: draft.MediaRef,
		Tags:     draft.Tags,
	})
	if err != nil {
		if models.IsCode(err, models.CodeRateLimited) || models.IsCode(err, models.CodeForbidden) {
			_ = s.drafts.Delete(ctx, userID)
		}
		return nil, err
	}
	if err := s.drafts.Delete(ctx, userID); err != nil {
		logWarn(ctx, "submitted draft not deleted", err)
	}
	return result, nil
}

// Abandon discards the draft with no other effect.
func (s *DraftService) Abandon(ctx context.Context, userID int64) error {
	return s.drafts.Delete(ctx, userID)
}

// PurgeExpired is the janitor entry point.
func (s *DraftService) PurgeExpired(ctx context.Context) (int64, error) {
	return s.drafts.PurgeExpired(ctx, s.guard.Now())
}
