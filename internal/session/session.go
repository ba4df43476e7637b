// Package session keeps the conversation step of each chat actor in redis.
// A session is scoped to one identity and expires after a period of silence.
package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
)

type Step string

const (
	StepNone             Step = ""
	StepAmount           Step = "awaiting_amount"
	StepMethod           Step = "awaiting_method"
	StepInstructions     Step = "awaiting_instructions"
	StepReceipt          Step = "awaiting_receipt"
	StepBroadcast        Step = "awaiting_broadcast"
	StepBroadcastConfirm Step = "awaiting_broadcast_confirm"
	StepPlayerSearch     Step = "awaiting_player_id"
	StepPayoutCode       Step = "awaiting_payout_code"
)

type Session struct {
	Step      Step            `json:"step"`
	Amount    decimal.Decimal `json:"amount"`
	DepositID int64           `json:"deposit_id,omitempty"`
	MessageID int             `json:"message_id,omitempty"`
	Text      string          `json:"text,omitempty"`
	UpdatedAt time.Time       `json:"updated_at"`
}

type Store struct {
	rdb *redis.Client
	ttl time.Duration
}

func NewStore(rdb *redis.Client, ttl time.Duration) *Store {
	return &Store{rdb: rdb, ttl: ttl}
}

func key(userID int64) string {
	return "session:" + strconv.FormatInt(userID, 10)
}

// Get returns the current session; an empty one when none is stored.
func (s *Store) Get(ctx context.Context, userID int64) (*Session, error) {
	raw, err := s.rdb.Get(ctx, key(userID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return &Session{}, nil
		}
		return nil, fmt.Errorf("failed to load session of %d: %w", userID, err)
	}

	var sess Session
	if err := json.Unmarshal(raw, &sess); err != nil {
		return nil, fmt.Errorf("failed to decode session of %d: %w", userID, err)
	}
	return &sess, nil
}

func (s *Store) Save(ctx context.Context, userID int64, sess *Session) error {
	sess.UpdatedAt = time.Now().UTC()
	raw, err := json.Marshal(sess)
	if err != nil {
		return fmt.Errorf("failed to encode session of %d: %w", userID, err)
	}
	if err := s.rdb.Set(ctx, key(userID), raw, s.ttl).Err(); err != nil {
		return fmt.Errorf("failed to save session of %d: %w", userID, err)
	}
	return nil
}

func (s *Store) Clear(ctx context.Context, userID int64) error {
	if err := s.rdb.Del(ctx, key(userID)).Err(); err != nil {
		return fmt.Errorf("failed to clear session of %d: %w", userID, err)
	}
	return nil
}
