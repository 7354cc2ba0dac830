package presence

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const redisTimeout = 2 * time.Second

// Mirrored keeps handles in a Local registry and mirrors the online set into
// Redis, so IsOnline and ListOnline also see users connected to other
// instances. Lookup stays local: a handle is only usable on its own process.
//
// Register and Unregister hold mu across the local change and its Redis
// write, so the set always ends up matching the local registry.
type Mirrored struct {
	*Local
	mu     sync.Mutex
	client *redis.Client
	key    string
	log    *zap.Logger
}

func NewMirrored(client *redis.Client, prefix string, log *zap.Logger) *Mirrored {
	return &Mirrored{
		Local:  NewLocal(),
		client: client,
		key:    fmt.Sprintf("%s:presence:online", prefix),
		log:    log,
	}
}

var _ Registry = (*Mirrored)(nil)

func (m *Mirrored) Register(userID string, h Handle) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Local.Register(userID, h)

	ctx, cancel := context.WithTimeout(context.Background(), redisTimeout)
	defer cancel()
	if err := m.client.SAdd(ctx, m.key, userID).Err(); err != nil {
		m.log.Warn("presence mirror add failed", zap.String("user_id", userID), zap.Error(err))
	}
}

func (m *Mirrored) Unregister(userID string, h Handle) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.Local.Unregister(userID, h) {
		return false
	}

	ctx, cancel := context.WithTimeout(context.Background(), redisTimeout)
	defer cancel()
	if err := m.client.SRem(ctx, m.key, userID).Err(); err != nil {
		m.log.Warn("presence mirror remove failed", zap.String("user_id", userID), zap.Error(err))
	}
	return true
}

func (m *Mirrored) IsOnline(userID string) bool {

	ctx, cancel := context.WithTimeout(context.Background(), redisTimeout)
	defer cancel()
	ok, err := m.client.SIsMember(ctx, m.key, userID).Result()
	if err != nil {
		m.log.Warn("presence mirror lookup failed", zap.String("user_id", userID), zap.Error(err))
		return false
	}
	return ok
}

func (m *Mirrored) ListOnline() []string {
	local := m.Local.ListOnline()

	ctx, cancel := context.WithTimeout(context.Background(), redisTimeout)
	defer cancel()
	remote, err := m.client.SMembers(ctx, m.key).Result()
	if err != nil {
		m.log.Warn("presence mirror list failed", zap.Error(err))
		return local
	}

	seen := make(map[string]struct{}, len(local)+len(remote))
	for _, id := range local {
		seen[id] = struct{}{}
	}
	for _, id := range remote {
		if _, ok := seen[id]; !ok {
			local = append(local, id)
			seen[id] = struct{}{}
		}
	}
	sort.Strings(local)
	return local
}
