package notify

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/nestora/nestora-api/internal/pkg/cache"
)

// Gate deduplicates notifications with a claim-first SetNX: the first
// caller to claim a key within its window wins, everyone else stays
// silent until the window passes.
type Gate struct {
	store cache.Store
}

func NewGate(store cache.Store) *Gate {
	return &Gate{store: store}
}

// ShouldNotify claims the key for the given window. On store failure it
// fails open: a duplicate email beats a silently dropped one.
func (g *Gate) ShouldNotify(ctx context.Context, key string, ttl time.Duration) bool {
	if ttl <= 0 {
		return true
	}
	claimed, err := g.store.SetNX(ctx, "notify:"+key, "1", ttl)
	if err != nil {
		log.Warn().Err(err).Str("key", key).Msg("Dedup store unavailable, allowing notification")
		return true
	}
	return claimed
}

// Release frees a claimed key, used when the send after a claim failed
// outright and a retry should be allowed through.
func (g *Gate) Release(ctx context.Context, key string) {
	if err := g.store.Delete(ctx, "notify:"+key); err != nil {
		log.Warn().Err(err).Str("key", key).Msg("Failed to release dedup key")
	}
}
