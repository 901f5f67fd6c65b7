// Package action binds the closed set of user and operator actions to the
// services. Transports decode a Request and hand it to a Router.
package action

import (
	"encoding/json"
	"fmt"
	"sort"

	"confessional/internal/models"
)

// Kind names one user-visible action.
type Kind string

const (
	SubmitStart       Kind = "submit_start"
	SubmitText        Kind = "submit_text"
	SubmitTag         Kind = "submit_tag"
	SubmitAutoTag     Kind = "submit_auto_tag"
	SubmitConfirm     Kind = "submit_confirm"
	DraftAbandon      Kind = "draft_abandon"
	CommentStart      Kind = "comment_start"
	CommentSubmit     Kind = "comment_submit"
	Vote              Kind = "vote"
	CommentVote       Kind = "comment_vote"
	Approve           Kind = "approve"
	Reject            Kind = "reject"
	AdminReply        Kind = "admin_reply"
	ToggleAutoApprove Kind = "toggle_auto_approve"
	PendingList       Kind = "pending_list"
	ViewThread        Kind = "view_thread"
	OpenLink          Kind = "open_link"
	Find              Kind = "find"
	Latest            Kind = "latest"
	Random            Kind = "random"
	ProfileView       Kind = "profile_view"
	ProfilePublic     Kind = "profile_public"
	EditNickname      Kind = "edit_nickname"
	EditBio           Kind = "edit_bio"
	SetEmoji          Kind = "set_emoji"
	SetGender         Kind = "set_gender"
	TogglePrivacy     Kind = "toggle_privacy"
	AgreeRules        Kind = "agree_rules"
	MyKarma           Kind = "my_karma"
	ReportUser        Kind = "report_user"
	RequestChat       Kind = "request_chat"
	AcceptChat        Kind = "accept_chat"
	DeclineChat       Kind = "decline_chat"
	BlockUser         Kind = "block_user"
	UnblockUser       Kind = "unblock_user"
	Catalog           Kind = "catalog"
	Rules             Kind = "rules"
	Help              Kind = "help"
)

var allKinds = []Kind{
	SubmitStart, SubmitText, SubmitTag, SubmitAutoTag, SubmitConfirm, DraftAbandon,
	CommentStart, CommentSubmit, Vote, CommentVote,
	Approve, Reject, AdminReply, ToggleAutoApprove, PendingList,
	ViewThread, OpenLink, Find, Latest, Random,
	ProfileView, ProfilePublic, EditNickname, EditBio, SetEmoji, SetGender, TogglePrivacy, AgreeRules, MyKarma,
	ReportUser, RequestChat, AcceptChat, DeclineChat,
	BlockUser, UnblockUser,
	Catalog, Rules, Help,
}

var known = func() map[Kind]struct{} {
	m := make(map[Kind]struct{}, len(allKinds))
	for _, k := range allKinds {
		m[k] = struct{}{}
	}
	return m
}()

// Kinds returns the closed set, sorted.
func Kinds() []Kind {
	out := make([]Kind, len(allKinds))
	copy(out, allKinds)
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// ParseKind fails VALIDATION_ERROR for anything outside the closed set.
func ParseKind(s string) (Kind, error) {
	k := Kind(s)
	if _, ok := known[k]; !ok {
		return "", models.NewValidationError(fmt.Sprintf("unknown action %q", s))
	}
	return k, nil
}

// Request is one action invocation. ActorID comes from the authenticated
// caller, never from the body.
type Request struct {
	Kind      Kind            `json:"kind"`
	Payload   json.RawMessage `json:"payload,omitempty"`
	TargetRef string          `json:"target_ref,omitempty"`
	ActorID   int64           `json:"-"`
}

// Decode unmarshals the payload into dest. An empty payload leaves dest untouched.
func (r Request) Decode(dest any) error {
	if len(r.Payload) == 0 || string(r.Payload) == "null" {
		return nil
	}
	if err := json.Unmarshal(r.Payload, dest); err != nil {
		return models.NewValidationError(fmt.Sprintf("invalid payload for %s", r.Kind))
	}
	return nil
}
