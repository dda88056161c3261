package session

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-redis/redis/v7"
	extErrors "github.com/pkg/errors"
	"go.uber.org/zap"
)

// DefaultTTL is how long an idle conversation survives before Redis expires it
const DefaultTTL = 30 * time.Minute

const keyPrefix = "session:"

// State is the conversation state for one subscriber mid-flow (signup,
// discount code entry, plan selection). It lives in Redis so any process
// can resume the conversation.
type State struct {
	PhoneNumber    string            `json:"phoneNumber"`
	Step           string            `json:"step"`
	SelectedPlanID *uint             `json:"selectedPlanId,omitempty"`
	PendingCode    string            `json:"pendingCode,omitempty"`
	Data           map[string]string `json:"data,omitempty"`
	UpdatedAt      time.Time         `json:"updatedAt"`
}

// Options provides initialization parameters for the session Store
type Options struct {
	Redis  redis.UniversalClient
	Logger *zap.Logger
	TTL    time.Duration
}

// Store persists conversation state in Redis with a sliding TTL
type Store struct {
	Options
}

// NewStore returns a Redis-backed session Store
func NewStore(option Options) (*Store, error) {
	if option.Redis == nil {
		return nil, fmt.Errorf("nil Redis is invalid")
	}
	if option.Logger == nil {
		return nil, fmt.Errorf("nil Logger is invalid")
	}
	if option.TTL <= 0 {
		option.TTL = DefaultTTL
	}
	return &Store{
		Options: option,
	}, nil
}

// Get returns the conversation state for the identity, or nil if none exists
func (s *Store) Get(ctx context.Context, identity string) (*State, error) {
	val, err := s.Redis.Get(keyPrefix + identity).Result()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, extErrors.Wrap(err, "Cannot get session")
	}
	var state State
	if err := json.Unmarshal([]byte(val), &state); err != nil {
		s.Logger.Error("Discarding malformed session state",
			zap.String("Identity", identity),
			zap.Error(err),
		)
		s.Redis.Del(keyPrefix + identity)
		return nil, nil
	}
	return &state, nil
}

// Set stores the conversation state and resets the TTL
func (s *Store) Set(ctx context.Context, identity string, state *State) error {
	state.UpdatedAt = time.Now().UTC()
	buf, err := json.Marshal(state)
	if err != nil {
		return extErrors.Wrap(err, "Cannot encode session")
	}
	if err := s.Redis.Set(keyPrefix+identity, buf, s.TTL).Err(); err != nil {
		return extErrors.Wrap(err, "Cannot store session")
	}
	return nil
}

// Touch extends the TTL without rewriting the state
func (s *Store) Touch(ctx context.Context, identity string) error {
	if err := s.Redis.Expire(keyPrefix+identity, s.TTL).Err(); err != nil {
		return extErrors.Wrap(err, "Cannot extend session")
	}
	return nil
}

// Delete removes the conversation state
func (s *Store) Delete(ctx context.Context, identity string) error {
	if err := s.Redis.Del(keyPrefix + identity).Err(); err != nil {
		return extErrors.Wrap(err, "Cannot delete session")
	}
	return nil
}
