package testutil

import (
	"context"
	"fmt"
	"sync"
	"time"

	"confessional/internal/models"
)

// Message is one recorded notification.
type Message struct {
	UserID int64
	Text   string
	Link   string
}

// RecordingNotifier stores everything it is asked to deliver.
type RecordingNotifier struct {
	mu     sync.Mutex
	notes  []Message
	alerts []string
}

func (n *RecordingNotifier) Notify(_ context.Context, userID int64, text, link string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.notes = append(n.notes, Message{UserID: userID, Text: text, Link: link})
}

func (n *RecordingNotifier) Alert(_ context.Context, _ []int64, text string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.alerts = append(n.alerts, text)
}

// NotesFor returns the notifications sent to userID in order.
func (n *RecordingNotifier) NotesFor(userID int64) []Message {
	n.mu.Lock()
	defer n.mu.Unlock()
	var out []Message
	for _, m := range n.notes {
		if m.UserID == userID {
			out = append(out, m)
		}
	}
	return out
}

func (n *RecordingNotifier) AlertCount() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.alerts)
}

func (n *RecordingNotifier) LastAlert() string {
	n.mu.Lock()
	defer n.mu.Unlock()
	if len(n.alerts) == 0 {
		return ""
	}
	return n.alerts[len(n.alerts)-1]
}

// FakePublisher fails the first FailFirst calls with Err and then hands out
// "post-<number>" refs.
type FakePublisher struct {
	mu        sync.Mutex
	FailFirst int
	Err       error
	calls     int
	markups   []string
}

func (p *FakePublisher) Publish(_ context.Context, c *models.Confession) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls++
	if p.calls <= p.FailFirst {
		return "", p.Err
	}
	var number int64
	if c.Number != nil {
		number = *c.Number
	}
	return fmt.Sprintf("post-%d", number), nil
}

func (p *FakePublisher) UpdateMarkup(_ context.Context, ref string, likes, dislikes, comments int) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.markups = append(p.markups, fmt.Sprintf("%s:%d/%d/%d", ref, likes, dislikes, comments))
	return nil
}

func (p *FakePublisher) CallCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.calls
}

// Markups lists UpdateMarkup calls as "ref:likes/dislikes/comments".
func (p *FakePublisher) Markups() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.markups...)
}

// Clock is a settable time source.
type Clock struct {
	mu  sync.Mutex
	now time.Time
}

func NewClock(start time.Time) *Clock {
	return &Clock{now: start.UTC()}
}

func (c *Clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *Clock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}
