package redis

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"camrelay/internal/core/domain"
	"camrelay/internal/core/ports"
	"camrelay/pkg/feed"

	"github.com/redis/go-redis/v9"
)

type RedisLinkRepository struct {
	*Store
}

func NewRedisLinkRepository(store *Store) ports.LinkRepository {
	return &RedisLinkRepository{Store: store}
}

func (r *RedisLinkRepository) Get(ctx context.Context, id domain.LinkID) (*domain.MonitorLink, error) {
	h, err := r.client.HGetAll(ctx, r.keys.link(id)).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to get link from Redis: %w", err)
	}
	link, err := decodeLink(id, h)
	if errors.Is(err, domain.ErrDecodeFailed) {
		r.logger.Warnw("treating undecodable link as absent", "link_id", id, "error", err)
		return nil, domain.ErrLinkNotFound
	}
	return link, err
}

// Upsert writes only the fields present in link, so fields of an existing
// record that the payload leaves empty survive.
func (r *RedisLinkRepository) Upsert(ctx context.Context, link *domain.MonitorLink) error {
	now, err := r.now(ctx)
	if err != nil {
		return err
	}
	link.PairedAt = now

	key := r.keys.link(link.ID)
	_, err = r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HSet(ctx, key, encodeLink(link))
		if link.MonitorUserID != "" {
			pipe.SAdd(ctx, r.keys.userLinks(link.MonitorUserID), string(link.ID))
		}
		if link.CameraID != "" {
			pipe.SAdd(ctx, r.keys.cameraLinks(link.CameraID), string(link.ID))
		}
		r.publish(ctx, pipe, linksTopic(link.MonitorUserID))
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to upsert link in Redis: %w", err)
	}
	return nil
}

func (r *RedisLinkRepository) SetActive(ctx context.Context, id domain.LinkID, active bool) error {
	return r.ApplyBatch(ctx, []domain.LinkMutation{{ID: id, Kind: domain.LinkSetActive, Active: active}})
}

func (r *RedisLinkRepository) getMany(ctx context.Context, ids []string) ([]*domain.MonitorLink, error) {
	if len(ids) == 0 {
		return []*domain.MonitorLink{}, nil
	}

	pipe := r.client.Pipeline()
	cmds := make([]*redis.MapStringStringCmd, len(ids))
	for i, id := range ids {
		cmds[i] = pipe.HGetAll(ctx, r.keys.link(domain.LinkID(id)))
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return nil, fmt.Errorf("failed to load links: %w", err)
	}

	links := make([]*domain.MonitorLink, 0, len(ids))
	for i, cmd := range cmds {
		link, err := decodeLink(domain.LinkID(ids[i]), cmd.Val())
		if err != nil {
			if errors.Is(err, domain.ErrDecodeFailed) {
				r.logger.Warnw("skipping undecodable link", "link_id", ids[i], "error", err)
			}
			continue
		}
		links = append(links, link)
	}
	// Sets are unordered; id order stands in for natural document order.
	sort.Slice(links, func(i, j int) bool { return links[i].ID < links[j].ID })
	return links, nil
}

func (r *RedisLinkRepository) ListActiveByUser(ctx context.Context, userID domain.UserID) ([]*domain.MonitorLink, error) {
	links, err := r.ListByUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	active := links[:0]
	for _, l := range links {
		if l.IsActive {
			active = append(active, l)
		}
	}
	return active, nil
}

func (r *RedisLinkRepository) ListByUser(ctx context.Context, userID domain.UserID) ([]*domain.MonitorLink, error) {
	ids, err := r.client.SMembers(ctx, r.keys.userLinks(userID)).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list user links: %w", err)
	}
	links, err := r.getMany(ctx, ids)
	if err != nil {
		return nil, err
	}
	owned := links[:0]
	for _, l := range links {
		if l.MonitorUserID == userID {
			owned = append(owned, l)
		}
	}
	return owned, nil
}

func (r *RedisLinkRepository) ListByCamera(ctx context.Context, cameraID domain.CameraID) ([]*domain.MonitorLink, error) {
	ids, err := r.client.SMembers(ctx, r.keys.cameraLinks(cameraID)).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list camera links: %w", err)
	}
	links, err := r.getMany(ctx, ids)
	if err != nil {
		return nil, err
	}
	matching := links[:0]
	for _, l := range links {
		if l.CameraID == cameraID {
			matching = append(matching, l)
		}
	}
	return matching, nil
}

func (r *RedisLinkRepository) ApplyBatch(ctx context.Context, mutations []domain.LinkMutation) error {
	if len(mutations) > r.maxBatchSize {
		return fmt.Errorf("%w: %d > %d", domain.ErrBatchTooLarge, len(mutations), r.maxBatchSize)
	}
	if len(mutations) == 0 {
		return nil
	}

	keys := make([]string, len(mutations))
	for i, m := range mutations {
		keys[i] = r.keys.link(m.ID)
	}

	return r.watchKeys(ctx, func(tx *redis.Tx) error {
		owners := make([]struct{ user, camera string }, len(mutations))
		for i, m := range mutations {
			vals, err := tx.HMGet(ctx, keys[i], fieldMonitorUserID, fieldCameraID).Result()
			if err != nil {
				return fmt.Errorf("failed to read link %s: %w", m.ID, err)
			}
			user, _ := vals[0].(string)
			camera, _ := vals[1].(string)
			if user == "" && m.Kind != domain.LinkDelete {
				return fmt.Errorf("%w: %s", domain.ErrLinkNotFound, m.ID)
			}
			owners[i].user, owners[i].camera = user, camera
		}

		_, err := tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			topics := make([]string, 0, len(mutations))
			for i, m := range mutations {
				switch m.Kind {
				case domain.LinkSetActive:
					pipe.HSet(ctx, keys[i], fieldIsActive, formatBool(m.Active))
				case domain.LinkSetName:
					pipe.HSet(ctx, keys[i], fieldCameraName, m.CameraName)
				case domain.LinkDelete:
					pipe.Del(ctx, keys[i])
					if owners[i].user != "" {
						pipe.SRem(ctx, r.keys.userLinks(domain.UserID(owners[i].user)), string(m.ID))
					}
					if owners[i].camera != "" {
						pipe.SRem(ctx, r.keys.cameraLinks(domain.CameraID(owners[i].camera)), string(m.ID))
					}
				}
				if owners[i].user != "" {
					topics = append(topics, linksTopic(domain.UserID(owners[i].user)))
				}
			}
			r.publish(ctx, pipe, topics...)
			return nil
		})
		return err
	}, keys...)
}

func (r *RedisLinkRepository) MaxBatchSize() int {
	return r.maxBatchSize
}

func (r *RedisLinkRepository) WatchActiveByUser(ctx context.Context, userID domain.UserID) (*feed.Subscription[[]*domain.MonitorLink], error) {
	return watch(ctx, r.Store, linksTopic(userID), func(ctx context.Context) ([]*domain.MonitorLink, error) {
		return r.ListActiveByUser(ctx, userID)
	})
}
