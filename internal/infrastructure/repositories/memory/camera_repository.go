package memory

import (
	"context"
	"sort"

	"camrelay/internal/core/domain"
	"camrelay/internal/core/ports"
	"camrelay/pkg/feed"

	"github.com/google/uuid"
)

type MemoryCameraRepository struct {
	store *Store
}

func NewMemoryCameraRepository(store *Store) ports.CameraRepository {
	return &MemoryCameraRepository{store: store}
}

func (r *MemoryCameraRepository) Create(ctx context.Context, camera *domain.Camera) error {
	s := r.store
	s.mu.Lock()
	if camera.ID == "" {
		camera.ID = domain.CameraID(uuid.NewString())
	}
	now := s.now()
	camera.CreatedAt = now
	camera.LastSeen = now
	s.cameras[camera.ID] = &cameraDoc{seq: s.nextSeq(), camera: cloneCamera(camera)}
	s.mu.Unlock()

	s.hub.notify(cameraTopic(camera.ID))
	return nil
}

func (r *MemoryCameraRepository) Get(ctx context.Context, id domain.CameraID) (*domain.Camera, error) {
	s := r.store
	s.mu.RLock()
	defer s.mu.RUnlock()

	doc, ok := s.cameras[id]
	if !ok {
		return nil, domain.ErrCameraNotFound
	}
	return cloneCamera(doc.camera), nil
}

func (r *MemoryCameraRepository) Update(ctx context.Context, id domain.CameraID, update domain.CameraUpdate) error {
	s := r.store
	s.mu.Lock()
	doc, ok := s.cameras[id]
	if !ok {
		s.mu.Unlock()
		return domain.ErrCameraNotFound
	}

	c := doc.camera
	if update.Online != nil {
		c.IsOnline = *update.Online
	}
	if update.TouchLastSeen {
		c.LastSeen = s.now()
	}
	if update.BatteryLevel != nil {
		level := *update.BatteryLevel
		c.BatteryLevel = &level
	}
	if update.DeviceName != nil {
		c.DeviceName = *update.DeviceName
	}
	if update.PushToken != nil {
		c.PushToken = *update.PushToken
	}
	if update.PairingCode != nil {
		c.PairingCode = *update.PairingCode
	}
	if update.ConnectedMonitors != nil {
		c.ConnectedMonitors = *update.ConnectedMonitors
	}
	s.mu.Unlock()

	s.hub.notify(cameraTopic(id))
	return nil
}

func (r *MemoryCameraRepository) Delete(ctx context.Context, id domain.CameraID) error {
	s := r.store
	s.mu.Lock()
	delete(s.cameras, id)
	s.mu.Unlock()

	s.hub.notify(cameraTopic(id))
	return nil
}

func (r *MemoryCameraRepository) ListByOwner(ctx context.Context, owner domain.UserID) ([]*domain.Camera, error) {
	return r.list(func(c *domain.Camera) bool { return c.OwnerUserID == owner }), nil
}

func (r *MemoryCameraRepository) List(ctx context.Context) ([]*domain.Camera, error) {
	return r.list(func(*domain.Camera) bool { return true }), nil
}

func (r *MemoryCameraRepository) list(keep func(*domain.Camera) bool) []*domain.Camera {
	s := r.store
	s.mu.RLock()
	defer s.mu.RUnlock()

	docs := make([]*cameraDoc, 0)
	for _, doc := range s.cameras {
		if keep(doc.camera) {
			docs = append(docs, doc)
		}
	}
	sort.Slice(docs, func(i, j int) bool { return docs[i].seq < docs[j].seq })

	cameras := make([]*domain.Camera, len(docs))
	for i, doc := range docs {
		cameras[i] = cloneCamera(doc.camera)
	}
	return cameras
}

func (r *MemoryCameraRepository) Watch(ctx context.Context, id domain.CameraID) (*feed.Subscription[*domain.Camera], error) {
	return watch(ctx, r.store, cameraTopic(id), func() *domain.Camera {
		camera, err := r.Get(ctx, id)
		if err != nil {
			return nil
		}
		return camera
	}), nil
}
