// Package featureflags evaluates FEATURE_FLAGS, a comma-separated list such
// as "chat_requests=on,reports=25%".
package featureflags

import (
	"fmt"
	"hash/fnv"
	"strconv"
	"strings"

	"confessional/internal/models"
)

// ChatRequests gates the persona chat request flow.
const ChatRequests = "chat_requests"

// rule is one parsed flag value. percent is -1 for plain on/off.
type rule struct {
	raw     string
	on      bool
	percent int
}

func parseRule(value string) (rule, bool) {
	r := rule{raw: value, percent: -1}
	switch value {
	case "on", "true", "1":
		r.on = true
		return r, true
	case "off", "false", "0":
		return r, true
	}
	pct, ok := strings.CutSuffix(value, "%")
	if !ok {
		return r, false
	}
	n, err := strconv.Atoi(pct)
	if err != nil {
		return r, false
	}
	r.percent = min(max(n, 0), 100)
	return r, true
}

// Manager holds the parsed flags. A nil Manager reports every flag off.
type Manager struct {
	rules map[string]rule
}

// NewManager parses raw. Malformed entries are skipped.
func NewManager(raw string) *Manager {
	rules := make(map[string]rule)
	for _, pair := range strings.Split(raw, ",") {
		key, value, ok := strings.Cut(pair, "=")
		if !ok {
			continue
		}
		key, value = normalize(key), normalize(value)
		if key == "" || value == "" {
			continue
		}
		if r, ok := parseRule(value); ok {
			rules[key] = r
		}
	}
	return &Manager{rules: rules}
}

// Enabled reports whether name is on for userID. Percentage rollouts bucket
// users deterministically and never include the anonymous user 0.
func (m *Manager) Enabled(name string, userID int64) bool {
	if m == nil {
		return false
	}
	r, ok := m.rules[normalize(name)]
	if !ok {
		return false
	}
	switch {
	case r.percent < 0:
		return r.on
	case r.percent == 0:
		return false
	case r.percent == 100:
		return true
	case userID == 0:
		return false
	}
	return rolloutBucket(name, userID) < r.percent
}

// Require fails FORBIDDEN when the flag is off for the user.
func (m *Manager) Require(name string, userID int64) error {
	if !m.Enabled(name, userID) {
		label := strings.ReplaceAll(normalize(name), "_", " ")
		return models.NewForbiddenError(label + " is not available right now")
	}
	return nil
}

// Raw returns the configured values as written.
func (m *Manager) Raw() map[string]string {
	out := make(map[string]string, len(m.rules))
	for k, r := range m.rules {
		out[k] = r.raw
	}
	return out
}

// Snapshot evaluates every configured flag for one user.
func (m *Manager) Snapshot(userID int64) map[string]bool {
	out := make(map[string]bool, len(m.rules))
	for name := range m.rules {
		out[name] = m.Enabled(name, userID)
	}
	return out
}

func normalize(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

func rolloutBucket(name string, userID int64) int {
	h := fnv.New32a()
	fmt.Fprintf(h, "%s:%d", normalize(name), userID)
	return int(h.Sum32() % 100)
}
