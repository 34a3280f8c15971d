package redis

import (
	"context"
	"encoding/json"
	"fmt"

	"camrelay/internal/core/domain"
	"camrelay/internal/core/ports"
	"camrelay/pkg/feed"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

type RedisCandidateRepository struct {
	*Store
}

func NewRedisCandidateRepository(store *Store) ports.CandidateRepository {
	return &RedisCandidateRepository{Store: store}
}

// Add appends to a per-session list. The parent session is watched so a
// candidate can never be written after its session was deleted.
func (r *RedisCandidateRepository) Add(ctx context.Context, ref domain.SessionRef, candidate *domain.ICECandidate) error {
	now, err := r.now(ctx)
	if err != nil {
		return err
	}
	if candidate.ID == "" {
		candidate.ID = domain.CandidateID(uuid.NewString())
	}
	candidate.CreatedAt = now

	data, err := json.Marshal(candidate)
	if err != nil {
		return fmt.Errorf("failed to marshal candidate: %w", err)
	}

	sessionKey := r.keys.session(ref)
	return r.watchKeys(ctx, func(tx *redis.Tx) error {
		n, err := tx.Exists(ctx, sessionKey).Result()
		if err != nil {
			return fmt.Errorf("failed to check session: %w", err)
		}
		if n == 0 {
			return domain.ErrSessionNotFound
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.RPush(ctx, r.keys.candidates(ref), data)
			r.publish(ctx, pipe, candidatesTopic(ref))
			return nil
		})
		return err
	}, sessionKey)
}

func (r *RedisCandidateRepository) List(ctx context.Context, ref domain.SessionRef) ([]*domain.ICECandidate, error) {
	raw, err := r.client.LRange(ctx, r.keys.candidates(ref), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list candidates: %w", err)
	}

	candidates := make([]*domain.ICECandidate, 0, len(raw))
	for _, item := range raw {
		var c domain.ICECandidate
		if err := json.Unmarshal([]byte(item), &c); err != nil || c.Candidate == "" {
			r.logger.Warnw("skipping undecodable candidate", "path", ref.String(), "error", err)
			continue
		}
		candidates = append(candidates, &c)
	}
	return candidates, nil
}

func (r *RedisCandidateRepository) Watch(ctx context.Context, ref domain.SessionRef) (*feed.Subscription[[]*domain.ICECandidate], error) {
	return watch(ctx, r.Store, candidatesTopic(ref), func(ctx context.Context) ([]*domain.ICECandidate, error) {
		return r.List(ctx, ref)
	})
}
