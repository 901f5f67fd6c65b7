package cache

import (
	"context"
	"fmt"
	"strconv"
	"time"
)

const (
	ThreadKeyPrefix  = "thread:%s"
	ProfileKeyPrefix = "profile:%d"
	LatestKey        = "confessions:latest"
	AutoApproveKey   = "settings:auto_approve"

	// PersonaVersionKey is bumped on every nickname or emoji change. Thread
	// views embed persona labels, so their keys carry this version.
	PersonaVersionKey = "personas:version"
)

const (
	ThreadTTL      = 2 * time.Minute
	ProfileTTL     = 5 * time.Minute
	LatestTTL      = 1 * time.Minute
	AutoApproveTTL = 30 * time.Second
)

func ThreadKey(confessionID string) string {
	return fmt.Sprintf(ThreadKeyPrefix, confessionID)
}

// ThreadViewKey is ThreadKey under the current persona version.
func ThreadViewKey(ctx context.Context, confessionID string) string {
	return ThreadKey(confessionID) + ":p" + strconv.FormatInt(PersonaVersion(ctx), 10)
}

// PersonaVersion reads the persona version; without Redis it is 0.
func PersonaVersion(ctx context.Context) int64 {
	if client == nil {
		return 0
	}
	v, err := client.Get(ctx, PersonaVersionKey).Int64()
	if err != nil {
		return 0
	}
	return v
}

// BumpPersonaVersion retires every cached thread view at once. Old entries
// age out with ThreadTTL.
func BumpPersonaVersion(ctx context.Context) {
	if client != nil {
		client.Incr(ctx, PersonaVersionKey)
	}
}

func ProfileKey(userID int64) string {
	return fmt.Sprintf(ProfileKeyPrefix, userID)
}

func Invalidate(ctx context.Context, key string) {
	if client != nil {
		client.Del(ctx, key)
	}
}

// InvalidateThread drops the cached thread and the latest list that embeds its counters.
func InvalidateThread(ctx context.Context, confessionID string) {
	Invalidate(ctx, ThreadViewKey(ctx, confessionID))
	Invalidate(ctx, LatestKey)
}

func InvalidateProfile(ctx context.Context, userID int64) {
	Invalidate(ctx, ProfileKey(userID))
}
