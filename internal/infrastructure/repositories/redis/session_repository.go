package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"

	"camrelay/internal/core/domain"
	"camrelay/internal/core/ports"
	"camrelay/pkg/feed"

	"github.com/redis/go-redis/v9"
)

type RedisSessionRepository struct {
	*Store
}

func NewRedisSessionRepository(store *Store) ports.SessionRepository {
	return &RedisSessionRepository{Store: store}
}

func (r *RedisSessionRepository) Create(ctx context.Context, session *domain.Session) error {
	now, err := r.now(ctx)
	if err != nil {
		return err
	}
	session.CreatedAt = now

	fields, err := encodeSession(session)
	if err != nil {
		return err
	}

	ref := session.Ref()
	key := r.keys.session(ref)
	member := refMember(ref)
	score := float64(now.UnixMilli())
	err = r.watchKeys(ctx, func(tx *redis.Tx) error {
		exists, err := tx.Exists(ctx, key).Result()
		if err != nil {
			return fmt.Errorf("failed to check session: %w", err)
		}
		if exists > 0 {
			return fmt.Errorf("%w: %s", domain.ErrSessionExists, ref)
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			// A candidate list can outlive a half-finished delete; a new
			// session never starts with someone else's candidates.
			pipe.Del(ctx, r.keys.candidates(ref))
			pipe.HSet(ctx, key, fields)
			pipe.ZAdd(ctx, r.keys.cameraSessions(ref.CameraID), redis.Z{Score: score, Member: string(ref.SessionID)})
			r.reindexStatus(ctx, pipe, member, session.Status, score)
			r.publish(ctx, pipe, sessionsTopic(ref.CameraID))
			return nil
		})
		return err
	}, key)
	if errors.Is(err, domain.ErrSessionExists) {
		return err
	}
	if err != nil {
		return fmt.Errorf("failed to create session in Redis: %w", err)
	}
	return nil
}

// readState returns the stored createdAt score and status of a session, or
// ok=false when the document is absent.
func (r *RedisSessionRepository) readState(ctx context.Context, tx *redis.Tx, key string) (score float64, status domain.SessionStatus, ok bool, err error) {
	vals, err := tx.HMGet(ctx, key, fieldCreatedAt, fieldStatus).Result()
	if err != nil {
		return 0, "", false, fmt.Errorf("failed to read session: %w", err)
	}
	createdAt, _ := vals[0].(string)
	if createdAt == "" {
		return 0, "", false, nil
	}
	st, _ := vals[1].(string)
	score, _ = strconv.ParseFloat(createdAt, 64)
	return score, domain.SessionStatus(st), true, nil
}

// reindexStatus moves member into the index of status.
func (r *RedisSessionRepository) reindexStatus(ctx context.Context, pipe redis.Pipeliner, member string, status domain.SessionStatus, score float64) {
	for _, st := range allStatuses {
		if st != status {
			pipe.ZRem(ctx, r.keys.statusSessions(st), member)
		}
	}
	pipe.ZAdd(ctx, r.keys.statusSessions(status), redis.Z{Score: score, Member: member})
}

func (r *RedisSessionRepository) decode(ref domain.SessionRef, h map[string]string) (*domain.Session, error) {
	sess, answerErr, err := decodeSession(ref, h)
	if errors.Is(err, domain.ErrDecodeFailed) {
		r.logger.Warnw("treating undecodable session as absent", "path", ref.String(), "error", err)
		return nil, domain.ErrSessionNotFound
	}
	if err != nil {
		return nil, err
	}
	if answerErr != nil {
		r.logger.Warnw("ignoring undecodable answer", "path", ref.String(), "error", answerErr)
	}
	return sess, nil
}

func (r *RedisSessionRepository) Get(ctx context.Context, ref domain.SessionRef) (*domain.Session, error) {
	h, err := r.client.HGetAll(ctx, r.keys.session(ref)).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to get session from Redis: %w", err)
	}
	return r.decode(ref, h)
}

func (r *RedisSessionRepository) Update(ctx context.Context, ref domain.SessionRef, update domain.SessionUpdate) error {
	if update.IsEmpty() {
		return nil
	}

	fields := map[string]interface{}{}
	if update.Answer != nil {
		answer, err := json.Marshal(update.Answer)
		if err != nil {
			return fmt.Errorf("failed to marshal answer: %w", err)
		}
		fields[fieldAnswer] = string(answer)
	}
	if update.Status != nil {
		fields[fieldStatus] = string(*update.Status)
	}
	if update.AudioEnabled != nil {
		fields[fieldAudioEnabled] = formatBool(*update.AudioEnabled)
	}
	if update.Heartbeat {
		now, err := r.now(ctx)
		if err != nil {
			return err
		}
		fields[fieldLastHeartbeat] = formatTime(now)
	}

	key := r.keys.session(ref)
	return r.watchKeys(ctx, func(tx *redis.Tx) error {
		score, current, ok, err := r.readState(ctx, tx, key)
		if err != nil {
			return err
		}
		if !ok {
			return domain.ErrSessionNotFound
		}
		if update.Status != nil {
			if err := current.CheckTransition(*update.Status); err != nil {
				return err
			}
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.HSet(ctx, key, fields)
			if update.Status != nil {
				r.reindexStatus(ctx, pipe, refMember(ref), *update.Status, score)
			}
			r.publish(ctx, pipe, sessionsTopic(ref.CameraID))
			return nil
		})
		return err
	}, key)
}

func (r *RedisSessionRepository) Delete(ctx context.Context, ref domain.SessionRef) error {
	return r.ApplyBatch(ctx, []domain.SessionMutation{{Ref: ref, Kind: domain.SessionDelete}})
}

func (r *RedisSessionRepository) loadMany(ctx context.Context, refs []domain.SessionRef) ([]*domain.Session, error) {
	if len(refs) == 0 {
		return []*domain.Session{}, nil
	}

	pipe := r.client.Pipeline()
	cmds := make([]*redis.MapStringStringCmd, len(refs))
	for i, ref := range refs {
		cmds[i] = pipe.HGetAll(ctx, r.keys.session(ref))
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return nil, fmt.Errorf("failed to load sessions: %w", err)
	}

	sessions := make([]*domain.Session, 0, len(refs))
	for i, cmd := range cmds {
		sess, err := r.decode(refs[i], cmd.Val())
		if err != nil {
			// Index entries can briefly outlive their document.
			continue
		}
		sessions = append(sessions, sess)
	}
	return sessions, nil
}

func (r *RedisSessionRepository) ListByCamera(ctx context.Context, cameraID domain.CameraID, filter domain.SessionFilter) ([]*domain.Session, error) {
	ids, err := r.client.ZRange(ctx, r.keys.cameraSessions(cameraID), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list camera sessions: %w", err)
	}

	refs := make([]domain.SessionRef, len(ids))
	for i, id := range ids {
		refs[i] = domain.SessionRef{CameraID: cameraID, SessionID: domain.SessionID(id)}
	}
	sessions, err := r.loadMany(ctx, refs)
	if err != nil {
		return nil, err
	}

	matching := sessions[:0]
	for _, sess := range sessions {
		if filter.Matches(sess) {
			matching = append(matching, sess)
		}
	}
	return matching, nil
}

func (r *RedisSessionRepository) Query(ctx context.Context, q domain.SessionQuery) ([]*domain.Session, error) {
	statuses := allStatuses
	if q.Status != "" {
		statuses = []domain.SessionStatus{q.Status}
	}
	maxScore := "+inf"
	if !q.CreatedBefore.IsZero() {
		maxScore = "(" + strconv.FormatInt(q.CreatedBefore.UnixMilli(), 10)
	}

	var refs []domain.SessionRef
	for _, st := range statuses {
		members, err := r.client.ZRangeByScore(ctx, r.keys.statusSessions(st), &redis.ZRangeBy{Min: "-inf", Max: maxScore}).Result()
		if err != nil {
			return nil, fmt.Errorf("failed to query %s sessions: %w", st, err)
		}
		for _, m := range members {
			if ref, ok := parseRefMember(m); ok {
				refs = append(refs, ref)
			}
		}
	}

	sessions, err := r.loadMany(ctx, refs)
	if err != nil {
		return nil, err
	}
	matching := sessions[:0]
	for _, sess := range sessions {
		if q.Matches(sess) {
			matching = append(matching, sess)
		}
	}
	return matching, nil
}

func (r *RedisSessionRepository) ApplyBatch(ctx context.Context, mutations []domain.SessionMutation) error {
	if len(mutations) > r.maxBatchSize {
		return fmt.Errorf("%w: %d > %d", domain.ErrBatchTooLarge, len(mutations), r.maxBatchSize)
	}
	if len(mutations) == 0 {
		return nil
	}

	keys := make([]string, len(mutations))
	for i, m := range mutations {
		keys[i] = r.keys.session(m.Ref)
	}

	return r.watchKeys(ctx, func(tx *redis.Tx) error {
		// Status flips on missing or terminal sessions are skipped so one
		// concurrent delete cannot fail the rest of the chunk.
		scores := make([]float64, len(mutations))
		skip := make([]bool, len(mutations))
		for i, m := range mutations {
			if m.Kind == domain.SessionDelete {
				continue
			}
			score, current, ok, err := r.readState(ctx, tx, keys[i])
			if err != nil {
				return fmt.Errorf("session %s: %w", m.Ref, err)
			}
			skip[i] = !ok || current.CheckTransition(m.Status) != nil
			scores[i] = score
		}

		_, err := tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			topics := make([]string, 0, len(mutations)*2)
			for i, m := range mutations {
				if skip[i] {
					continue
				}
				member := refMember(m.Ref)
				switch m.Kind {
				case domain.SessionDelete:
					pipe.Del(ctx, keys[i], r.keys.candidates(m.Ref))
					pipe.ZRem(ctx, r.keys.cameraSessions(m.Ref.CameraID), string(m.Ref.SessionID))
					for _, st := range allStatuses {
						pipe.ZRem(ctx, r.keys.statusSessions(st), member)
					}
					topics = append(topics, candidatesTopic(m.Ref))
				case domain.SessionSetStatus:
					pipe.HSet(ctx, keys[i], fieldStatus, string(m.Status))
					r.reindexStatus(ctx, pipe, member, m.Status, scores[i])
				}
				topics = append(topics, sessionsTopic(m.Ref.CameraID))
			}
			r.publish(ctx, pipe, topics...)
			return nil
		})
		return err
	}, keys...)
}

func (r *RedisSessionRepository) MaxBatchSize() int {
	return r.maxBatchSize
}

func (r *RedisSessionRepository) Watch(ctx context.Context, cameraID domain.CameraID, filter domain.SessionFilter) (*feed.Subscription[[]*domain.Session], error) {
	return watch(ctx, r.Store, sessionsTopic(cameraID), func(ctx context.Context) ([]*domain.Session, error) {
		return r.ListByCamera(ctx, cameraID, filter)
	})
}

func (r *RedisSessionRepository) WatchOne(ctx context.Context, ref domain.SessionRef) (*feed.Subscription[*domain.Session], error) {
	return watch(ctx, r.Store, sessionsTopic(ref.CameraID), func(ctx context.Context) (*domain.Session, error) {
		sess, err := r.Get(ctx, ref)
		if errors.Is(err, domain.ErrSessionNotFound) {
			return nil, nil
		}
		return sess, err
	})
}
