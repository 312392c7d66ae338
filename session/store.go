package session

import (
	"context"
	"time"

	"github.com/google/uuid"
	gocache "github.com/patrickmn/go-cache"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"

	"github.com/room4-2/OpenCanteen/config"
)

const cleanupInterval = time.Minute

// Store holds one Session per conversation key. Sessions are never destroyed
// explicitly; the TTL cache evicts them after the configured idle timeout.
// A Redis mirror of session metadata is kept when Redis is reachable, for
// operational visibility across instances.
type Store struct {
	sessions *gocache.Cache
	redis    *redis.Client
	cfg      *config.Config
}

// NewStore builds the store. Redis being unreachable is not an error; the
// store degrades to memory-only, same as the rest of the system.
func NewStore(cfg *config.Config) *Store {
	s := &Store{
		sessions: gocache.New(cfg.SessionTimeout, cleanupInterval),
		cfg:      cfg,
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisURL,
		Password: cfg.RedisPassword,
		DB:       0,
	})
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		log.Warn().Err(err).Msg("redis unavailable, sessions are memory-only")
		client = nil
	}
	s.redis = client

	s.sessions.OnEvicted(func(id string, _ interface{}) {
		s.dropMirror(id)
	})
	return s
}

// GetOrCreate returns the session for id, creating it on first sight. It
// never fails; a blank id gets a fresh key. The returned session's ID is
// authoritative (clients learn it from the response).
func (s *Store) GetOrCreate(_ context.Context, id string) *Session {
	if id == "" {
		id = uuid.New().String()
	}
	for {
		if v, ok := s.sessions.Get(id); ok {
			return v.(*Session)
		}
		sess := newSession(id)
		// Add is atomic; a concurrent creator wins and we retry the Get.
		if err := s.sessions.Add(id, sess, gocache.DefaultExpiration); err == nil {
			if n := s.sessions.ItemCount(); n > s.cfg.MaxSessions {
				log.Warn().Int("sessions", n).Msg("session count above configured maximum")
			}
			s.mirror(sess)
			return sess
		}
	}
}

// Touch refreshes the session's TTL and mirror after a completed turn.
func (s *Store) Touch(sess *Session) {
	s.sessions.Set(sess.ID, sess, gocache.DefaultExpiration)
	s.mirror(sess)
}

// Count returns the number of live sessions.
func (s *Store) Count() int {
	return s.sessions.ItemCount()
}

func (s *Store) mirror(sess *Session) {
	if s.redis == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	key := "session:" + sess.ID
	s.redis.HSet(ctx, key, map[string]interface{}{
		"created_at":    sess.CreatedAt.Format(time.RFC3339),
		"last_activity": sess.LastActivity().Format(time.RFC3339),
		"stage":         sess.Stage().String(),
	})
	s.redis.SAdd(ctx, "active_sessions", sess.ID)
	s.redis.Expire(ctx, key, s.cfg.SessionTimeout)
}

func (s *Store) dropMirror(id string) {
	if s.redis == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	s.redis.Del(ctx, "session:"+id)
	s.redis.SRem(ctx, "active_sessions", id)
}

// Shutdown releases the Redis connection.
func (s *Store) Shutdown() {
	if s.redis != nil {
		_ = s.redis.Close()
	}
}
