package redis

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"

	"camrelay/internal/core/domain"
	"camrelay/internal/core/ports"
	"camrelay/pkg/feed"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

type RedisCameraRepository struct {
	*Store
}

func NewRedisCameraRepository(store *Store) ports.CameraRepository {
	return &RedisCameraRepository{Store: store}
}

func (r *RedisCameraRepository) Create(ctx context.Context, camera *domain.Camera) error {
	now, err := r.now(ctx)
	if err != nil {
		return err
	}
	if camera.ID == "" {
		camera.ID = domain.CameraID(uuid.NewString())
	}
	camera.CreatedAt = now
	camera.LastSeen = now

	key := r.keys.camera(camera.ID)
	_, err = r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, key)
		pipe.HSet(ctx, key, encodeCamera(camera))
		pipe.SAdd(ctx, r.keys.ownerCameras(camera.OwnerUserID), string(camera.ID))
		pipe.SAdd(ctx, r.keys.allCameras(), string(camera.ID))
		r.publish(ctx, pipe, cameraTopic(camera.ID))
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to create camera in Redis: %w", err)
	}
	return nil
}

func (r *RedisCameraRepository) Get(ctx context.Context, id domain.CameraID) (*domain.Camera, error) {
	h, err := r.client.HGetAll(ctx, r.keys.camera(id)).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to get camera from Redis: %w", err)
	}
	camera, err := decodeCamera(id, h)
	if errors.Is(err, domain.ErrDecodeFailed) {
		r.logger.Warnw("treating undecodable camera as absent", "camera_id", id, "error", err)
		return nil, domain.ErrCameraNotFound
	}
	return camera, err
}

func (r *RedisCameraRepository) Update(ctx context.Context, id domain.CameraID, update domain.CameraUpdate) error {
	fields := map[string]interface{}{}
	if update.Online != nil {
		fields[fieldIsOnline] = formatBool(*update.Online)
	}
	if update.TouchLastSeen {
		now, err := r.now(ctx)
		if err != nil {
			return err
		}
		fields[fieldLastSeen] = formatTime(now)
	}
	if update.BatteryLevel != nil {
		fields[fieldBatteryLevel] = strconv.Itoa(*update.BatteryLevel)
	}
	if update.DeviceName != nil {
		fields[fieldDeviceName] = *update.DeviceName
	}
	if update.PushToken != nil {
		fields[fieldPushToken] = *update.PushToken
	}
	if update.PairingCode != nil {
		fields[fieldPairingCode] = *update.PairingCode
	}
	if update.ConnectedMonitors != nil {
		fields[fieldConnectedMonitors] = strconv.Itoa(*update.ConnectedMonitors)
	}
	if len(fields) == 0 {
		return nil
	}

	key := r.keys.camera(id)
	return r.watchKeys(ctx, func(tx *redis.Tx) error {
		n, err := tx.Exists(ctx, key).Result()
		if err != nil {
			return fmt.Errorf("failed to check camera: %w", err)
		}
		if n == 0 {
			return domain.ErrCameraNotFound
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.HSet(ctx, key, fields)
			r.publish(ctx, pipe, cameraTopic(id))
			return nil
		})
		return err
	}, key)
}

func (r *RedisCameraRepository) Delete(ctx context.Context, id domain.CameraID) error {
	key := r.keys.camera(id)
	owner, err := r.client.HGet(ctx, key, fieldUserID).Result()
	if err != nil && err != redis.Nil {
		return fmt.Errorf("failed to get camera owner: %w", err)
	}

	_, err = r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, key)
		pipe.SRem(ctx, r.keys.allCameras(), string(id))
		if owner != "" {
			pipe.SRem(ctx, r.keys.ownerCameras(domain.UserID(owner)), string(id))
		}
		r.publish(ctx, pipe, cameraTopic(id))
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to delete camera from Redis: %w", err)
	}
	return nil
}

func (r *RedisCameraRepository) ListByOwner(ctx context.Context, owner domain.UserID) ([]*domain.Camera, error) {
	return r.listIndexed(ctx, r.keys.ownerCameras(owner))
}

func (r *RedisCameraRepository) List(ctx context.Context) ([]*domain.Camera, error) {
	return r.listIndexed(ctx, r.keys.allCameras())
}

// listIndexed loads the cameras named by an id set, skipping ids whose
// document has since been deleted.
func (r *RedisCameraRepository) listIndexed(ctx context.Context, index string) ([]*domain.Camera, error) {
	ids, err := r.client.SMembers(ctx, index).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list cameras: %w", err)
	}
	sort.Strings(ids)

	var cameras []*domain.Camera
	for _, id := range ids {
		camera, err := r.Get(ctx, domain.CameraID(id))
		if errors.Is(err, domain.ErrCameraNotFound) {
			continue
		}
		if err != nil {
			return nil, err
		}
		cameras = append(cameras, camera)
	}
	return cameras, nil
}

func (r *RedisCameraRepository) Watch(ctx context.Context, id domain.CameraID) (*feed.Subscription[*domain.Camera], error) {
	return watch(ctx, r.Store, cameraTopic(id), func(ctx context.Context) (*domain.Camera, error) {
		camera, err := r.Get(ctx, id)
		if errors.Is(err, domain.ErrCameraNotFound) {
			return nil, nil
		}
		return camera, err
	})
}

func cameraTopic(id domain.CameraID) string {
	return "camera:" + string(id)
}

func sessionsTopic(id domain.CameraID) string {
	return "sessions:" + string(id)
}

func candidatesTopic(ref domain.SessionRef) string {
	return "candidates:" + ref.String()
}

func linksTopic(userID domain.UserID) string {
	return "links:" + string(userID)
}
