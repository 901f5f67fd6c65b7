// Package notifications delivers best-effort user notifications and operator
// alerts over Redis pub/sub and relays them to the connected chat gateway.
package notifications

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"runtime/debug"
	"strconv"
	"strings"

	"confessional/internal/middleware"

	"github.com/redis/go-redis/v9"
)

const (
	userChannelPrefix = "notifications:user:"
	// OperatorChannel receives every operator alert once, regardless of admin count.
	OperatorChannel = "notifications:operators"
)

// Message types carried on the wire.
const (
	TypeNotify = "notify"
	TypeAlert  = "alert"
)

// Message is the JSON payload published on notification channels.
type Message struct {
	Type   string `json:"type"`
	UserID int64  `json:"user_id"`
	Text   string `json:"text"`
	Link   string `json:"link,omitempty"`
}

// Notifier provides helpers to publish notifications into Redis channels.
// A nil client turns every publish into a no-op.
type Notifier struct {
	rdb *redis.Client
}

// NewNotifier creates a new Notifier instance using the provided Redis client.
func NewNotifier(rdb *redis.Client) *Notifier {
	return &Notifier{rdb: rdb}
}

// PublishUser sends a raw payload to a user's channel.
func (n *Notifier) PublishUser(ctx context.Context, userID int64, payload string) error {
	if n == nil || n.rdb == nil {
		return nil
	}
	return n.rdb.Publish(ctx, UserChannel(userID), payload).Err()
}

// Notify tells one user something. Failures are logged and swallowed so an
// unreachable recipient never fails the operation that triggered it.
func (n *Notifier) Notify(ctx context.Context, userID int64, text, link string) {
	msg := Message{Type: TypeNotify, UserID: userID, Text: text, Link: link}
	if err := n.publish(ctx, UserChannel(userID), msg); err != nil {
		middleware.Logger.WarnContext(ctx, "notify failed",
			slog.Int64("recipient", userID), slog.String("error", err.Error()))
	}
}

// Alert escalates text to every operator and to the shared operator channel.
func (n *Notifier) Alert(ctx context.Context, adminIDs []int64, text string) {
	for _, id := range adminIDs {
		msg := Message{Type: TypeAlert, UserID: id, Text: text}
		if err := n.publish(ctx, UserChannel(id), msg); err != nil {
			middleware.Logger.WarnContext(ctx, "operator alert failed",
				slog.Int64("operator", id), slog.String("error", err.Error()))
		}
	}
	if err := n.publish(ctx, OperatorChannel, Message{Type: TypeAlert, Text: text}); err != nil {
		middleware.Logger.WarnContext(ctx, "operator alert failed",
			slog.String("channel", OperatorChannel), slog.String("error", err.Error()))
	}
}

func (n *Notifier) publish(ctx context.Context, channel string, msg Message) error {
	if n == nil || n.rdb == nil {
		return nil
	}
	payload, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}
	return n.rdb.Publish(ctx, channel, payload).Err()
}

// StartPatternSubscriber subscribes to every user channel and the operator
// channel and calls onMessage for each incoming message until ctx is done.
func (n *Notifier) StartPatternSubscriber(
	ctx context.Context, onMessage func(channel string, payload string),
) error {
	if n == nil || n.rdb == nil {
		return nil
	}
	sub := n.rdb.PSubscribe(ctx, userChannelPrefix+"*", OperatorChannel)
	// Wait for the subscription confirmation so publishes right after start are not lost.
	if _, err := sub.Receive(ctx); err != nil {
		_ = sub.Close()
		return err
	}
	ch := sub.Channel()

	go func() {
		defer func() { _ = sub.Close() }()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-ch:
				if !ok {
					return
				}
				func() {
					defer func() {
						if r := recover(); r != nil {
							middleware.Logger.Error("panic in notification subscriber",
								slog.Any("panic", r), slog.String("stack", string(debug.Stack())))
						}
					}()
					onMessage(msg.Channel, msg.Payload)
				}()
			}
		}
	}()

	return nil
}

// UserChannel derives the Redis channel name for a user.
func UserChannel(userID int64) string {
	return userChannelPrefix + strconv.FormatInt(userID, 10)
}

// ParseUserChannel extracts the user id from a user channel name.
func ParseUserChannel(channel string) (int64, bool) {
	rest, ok := strings.CutPrefix(channel, userChannelPrefix)
	if !ok {
		return 0, false
	}
	id, err := strconv.ParseInt(rest, 10, 64)
	if err != nil {
		return 0, false
	}
	return id, true
}
