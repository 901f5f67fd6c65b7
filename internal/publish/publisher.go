// Package publish is the client of the broadcast boundary: it posts approved
// confessions to the channel gateway and keeps the posted copy's counters fresh.
package publish

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"confessional/internal/models"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
)

// ErrPermanent marks failures no retry can fix, such as the channel being
// gone or the bot losing its admin rights.
var ErrPermanent = errors.New("permanent publish failure")

// Publisher is the broadcast boundary consumed by the moderation workflow.
type Publisher interface {
	Publish(ctx context.Context, confession *models.Confession) (string, error)
	UpdateMarkup(ctx context.Context, ref string, likes, dislikes, comments int) error
}

// LinkFunc builds the thread deep link embedded in a post.
type LinkFunc func(confessionID uuid.UUID) string

// Post is the body of a publish call.
type Post struct {
	ConfessionID uuid.UUID `json:"confession_id"`
	Number       int64     `json:"number"`
	Text         string    `json:"text"`
	Tags         []string  `json:"tags"`
	MediaRef     *string   `json:"media_ref,omitempty"`
	ThreadURL    string    `json:"thread_url"`
	Likes        int       `json:"likes"`
	Dislikes     int       `json:"dislikes"`
	Comments     int       `json:"comments"`
}

// Markup is the body of a markup refresh.
type Markup struct {
	Ref      string `json:"ref"`
	Likes    int    `json:"likes"`
	Dislikes int    `json:"dislikes"`
	Comments int    `json:"comments"`
}

type publishResponse struct {
	Ref string `json:"ref"`
}

type gatewayError struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

// HeaderIdempotencyKey lets the gateway answer a repeated publish of the same
// confession with the ref it already posted.
const HeaderIdempotencyKey = "Idempotency-Key"

// IdempotencyKey is the key sent when publishing confessionID.
func IdempotencyKey(confessionID uuid.UUID) string {
	return "confession-" + confessionID.String()
}

// permanentCodes are gateway error codes that will not clear on retry.
var permanentCodes = map[string]struct{}{
	"chat_not_found": {},
	"not_admin":      {},
	"bad_request":    {},
}

// GatewayPublisher calls the chat gateway over HTTP.
type GatewayPublisher struct {
	baseURL string
	token   string
	timeout time.Duration
	link    LinkFunc
}

// NewGatewayPublisher validates the gateway URL.
func NewGatewayPublisher(baseURL, token string, timeout time.Duration, link LinkFunc) (*GatewayPublisher, error) {
	baseURL = strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if !strings.HasPrefix(baseURL, "http://") && !strings.HasPrefix(baseURL, "https://") {
		return nil, fmt.Errorf("publish: gateway URL %q must be http or https", baseURL)
	}
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &GatewayPublisher{baseURL: baseURL, token: token, timeout: timeout, link: link}, nil
}

// Publish posts an approved confession and returns the gateway's message ref.
func (p *GatewayPublisher) Publish(ctx context.Context, c *models.Confession) (string, error) {
	if c.Number == nil {
		return "", fmt.Errorf("%w: confession %s has no number", ErrPermanent, c.ID)
	}
	post := Post{
		ConfessionID: c.ID,
		Number:       *c.Number,
		Text:         c.Text,
		Tags:         c.Tags,
		MediaRef:     c.MediaRef,
		Likes:        c.Likes,
		Dislikes:     c.Dislikes,
		Comments:     c.CommentCount,
	}
	if p.link != nil {
		post.ThreadURL = p.link(c.ID)
	}

	body, err := p.post(ctx, "/publish", IdempotencyKey(c.ID), post)
	if err != nil {
		return "", err
	}
	var resp publishResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return "", fmt.Errorf("publish: decode response: %w", err)
	}
	if resp.Ref == "" {
		return "", errors.New("publish: gateway returned an empty ref")
	}
	return resp.Ref, nil
}

// UpdateMarkup refreshes the counters shown under a published post.
func (p *GatewayPublisher) UpdateMarkup(ctx context.Context, ref string, likes, dislikes, comments int) error {
	_, err := p.post(ctx, "/markup", "", Markup{Ref: ref, Likes: likes, Dislikes: dislikes, Comments: comments})
	return err
}

func (p *GatewayPublisher) post(ctx context.Context, path, idempotencyKey string, payload interface{}) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	timeout := p.timeout
	if deadline, ok := ctx.Deadline(); ok {
		if left := time.Until(deadline); left < timeout {
			timeout = left
		}
	}

	agent := fiber.Post(p.baseURL + path)
	agent.Timeout(timeout)
	agent.JSON(payload)
	if p.token != "" {
		agent.Set(fiber.HeaderAuthorization, "Bearer "+p.token)
	}
	if idempotencyKey != "" {
		agent.Set(HeaderIdempotencyKey, idempotencyKey)
	}

	status, body, errs := agent.Bytes()
	if len(errs) > 0 {
		return nil, fmt.Errorf("publish: request to %s failed: %w", path, errors.Join(errs...))
	}
	if status >= 200 && status < 300 {
		return body, nil
	}

	var gwErr gatewayError
	_ = json.Unmarshal(body, &gwErr)
	if _, ok := permanentCodes[gwErr.Code]; ok {
		return nil, fmt.Errorf("%w: %s (%s)", ErrPermanent, gwErr.Error, gwErr.Code)
	}
	return nil, fmt.Errorf("publish: gateway answered %d on %s: %s", status, path, strings.TrimSpace(string(body)))
}
