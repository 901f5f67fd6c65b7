// Package cooldown enforces the submission and nickname-change windows.
//
// The Guard answers "may this user act now" from a profile snapshot; the
// profile store repeats the check inside a conditional update, so the Guard is
// the fast path and the store is the authority.
package cooldown

import (
	"fmt"
	"time"

	"confessional/internal/models"

	"github.com/dustin/go-humanize"
)

// Clock returns the current time. NewGuard normalizes its output to UTC.
type Clock func() time.Time

// Guard holds the configured windows and the clock.
type Guard struct {
	submission time.Duration
	nickname   time.Duration
	clock      Clock
}

// NewGuard builds a Guard. A nil clock uses time.Now.
func NewGuard(submission, nickname time.Duration, clock Clock) *Guard {
	if clock == nil {
		clock = time.Now
	}
	return &Guard{submission: submission, nickname: nickname, clock: clock}
}

// Now returns the guard clock in UTC.
func (g *Guard) Now() time.Time {
	return g.clock().UTC()
}

func (g *Guard) SubmissionWindow() time.Duration { return g.submission }

func (g *Guard) NicknameWindow() time.Duration { return g.nickname }

// Remaining is the wait left in a window that started at last. Zero when the
// window never started or already elapsed.
func Remaining(last *time.Time, window time.Duration, now time.Time) time.Duration {
	if last == nil {
		return 0
	}
	left := last.UTC().Add(window).Sub(now.UTC())
	if left < 0 {
		return 0
	}
	return left
}

// CheckSubmission fails RATE_LIMITED while the author's submission window is open.
func (g *Guard) CheckSubmission(p *models.UserProfile, now time.Time) error {
	if left := Remaining(p.LastSubmissionAt, g.submission, now); left > 0 {
		return SubmissionError(left)
	}
	return nil
}

// CheckNickname fails RATE_LIMITED while the nickname window is open.
func (g *Guard) CheckNickname(p *models.UserProfile, now time.Time) error {
	if left := Remaining(p.LastNicknameChange, g.nickname, now); left > 0 {
		return NicknameError(left)
	}
	return nil
}

// WaitMinutes rounds the remaining wait up to whole minutes, never below 1.
func WaitMinutes(remaining time.Duration) int {
	minutes := int((remaining + time.Minute - 1) / time.Minute)
	if minutes < 1 {
		return 1
	}
	return minutes
}

var waitMagnitudes = []humanize.RelTimeMagnitude{
	{D: time.Minute, Format: "less than a minute%s", DivBy: 1},
	{D: 2 * time.Minute, Format: "1 minute%s", DivBy: 1},
	{D: time.Hour, Format: "%d minutes%s", DivBy: time.Minute},
	{D: 2 * time.Hour, Format: "1 hour%s", DivBy: 1},
	{D: humanize.Day, Format: "%d hours%s", DivBy: time.Hour},
	{D: 2 * humanize.Day, Format: "1 day%s", DivBy: 1},
	{D: humanize.LongTime, Format: "%d days%s", DivBy: humanize.Day},
}

// Humanize renders a wait such as "29 days" or "3 hours".
func Humanize(remaining time.Duration) string {
	var base time.Time
	return humanize.CustomRelTime(base, base.Add(remaining), "", "", waitMagnitudes)
}

// SubmissionError is the user-facing RATE_LIMITED error for a confession submit.
func SubmissionError(remaining time.Duration) error {
	return models.NewRateLimitedError(
		fmt.Sprintf("Please wait %d more minute(s) before sending another confession.", WaitMinutes(remaining)),
		remaining,
	)
}

// NicknameError is the user-facing RATE_LIMITED error for a nickname edit.
func NicknameError(remaining time.Duration) error {
	return models.NewRateLimitedError(
		fmt.Sprintf("You can change your nickname again in %s.", Humanize(remaining)),
		remaining,
	)
}
