package redisstore

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	activeSetKey   = "carechat:sessions:active"
	sessionKeyPfx  = "carechat:session:"
	presenceWindow = 2 * time.Minute
)

// Store tracks which sessions currently have live connections, for the
// therapist dashboard. The in-process registry stays authoritative for
// routing; this is a read-side view that survives across processes.
type Store struct {
	rdb *redis.Client
}

func New(addr, password string, db int) *Store {
	return &Store{rdb: redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})}
}

func (s *Store) Close() error { return s.rdb.Close() }

func (s *Store) Ping(ctx context.Context) error {
	return s.rdb.Ping(ctx).Err()
}

// MarkActive records a session as live. Called on connect and
// periodically while connections remain; the per-session key expires if
// refreshes stop.
func (s *Store) MarkActive(ctx context.Context, sessionID string) error {
	pipe := s.rdb.TxPipeline()
	pipe.SAdd(ctx, activeSetKey, sessionID)
	pipe.Set(ctx, sessionKeyPfx+sessionID, "1", presenceWindow)
	_, err := pipe.Exec(ctx)
	return err
}

// MarkInactive removes a session once its last connection drops.
func (s *Store) MarkInactive(ctx context.Context, sessionID string) error {
	pipe := s.rdb.TxPipeline()
	pipe.SRem(ctx, activeSetKey, sessionID)
	pipe.Del(ctx, sessionKeyPfx+sessionID)
	_, err := pipe.Exec(ctx)
	return err
}

// ActiveSessions lists sessions with a live presence key, pruning
// entries whose key expired without a clean disconnect.
func (s *Store) ActiveSessions(ctx context.Context) ([]string, error) {
	ids, err := s.rdb.SMembers(ctx, activeSetKey).Result()
	if err != nil {
		return nil, err
	}
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		n, err := s.rdb.Exists(ctx, sessionKeyPfx+id).Result()
		if err != nil {
			return nil, err
		}
		if n > 0 {
			out = append(out, id)
		} else {
			_ = s.rdb.SRem(ctx, activeSetKey, id).Err()
		}
	}
	return out, nil
}
