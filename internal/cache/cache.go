// Package cache is the advisory cache in front of job listings.
//
// Entries are tagged with the ids they depend on; Invalidate drops every
// entry carrying any of the given tags. Implementations never return errors:
// a failing backend behaves like an empty cache.
package cache

import (
	"context"
	"time"
)

// Cache stores tagged byte values.
type Cache interface {
	Get(ctx context.Context, key string) ([]byte, bool)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration, tags ...string)
	Invalidate(ctx context.Context, tags ...string)
}

// Tag helpers. Every listing depends on the caller (UserTag); provider
// listings also depend on the shared open-job pool (ProviderListingsTag).
const ProviderListingsTag = "listings:providers"

// UserTag tags entries computed for or affected by a user.
func UserTag(userID string) string { return "user:" + userID }

// JobTag tags entries containing a job.
func JobTag(jobID string) string { return "job:" + jobID }
