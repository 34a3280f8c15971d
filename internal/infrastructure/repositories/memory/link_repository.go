package memory

import (
	"context"
	"fmt"
	"sort"

	"camrelay/internal/core/domain"
	"camrelay/internal/core/ports"
	"camrelay/pkg/feed"
)

type MemoryLinkRepository struct {
	store *Store
}

func NewMemoryLinkRepository(store *Store) ports.LinkRepository {
	return &MemoryLinkRepository{store: store}
}

func (r *MemoryLinkRepository) Get(ctx context.Context, id domain.LinkID) (*domain.MonitorLink, error) {
	s := r.store
	s.mu.RLock()
	defer s.mu.RUnlock()

	doc, ok := s.links[id]
	if !ok {
		return nil, domain.ErrLinkNotFound
	}
	return cloneLink(doc.link), nil
}

func (r *MemoryLinkRepository) Upsert(ctx context.Context, link *domain.MonitorLink) error {
	s := r.store
	s.mu.Lock()
	link.PairedAt = s.now()
	doc, ok := s.links[link.ID]
	if !ok {
		s.links[link.ID] = &linkDoc{seq: s.nextSeq(), link: cloneLink(link)}
	} else {
		// Merge: fields absent from the payload keep their stored value.
		existing := doc.link
		if link.MonitorUserID != "" {
			existing.MonitorUserID = link.MonitorUserID
		}
		if link.CameraID != "" {
			existing.CameraID = link.CameraID
		}
		if link.CameraName != "" {
			existing.CameraName = link.CameraName
		}
		existing.PairedAt = link.PairedAt
		existing.IsActive = link.IsActive
	}
	userID := s.links[link.ID].link.MonitorUserID
	s.mu.Unlock()

	s.hub.notify(linksTopic(userID))
	return nil
}

func (r *MemoryLinkRepository) SetActive(ctx context.Context, id domain.LinkID, active bool) error {
	return r.ApplyBatch(ctx, []domain.LinkMutation{{ID: id, Kind: domain.LinkSetActive, Active: active}})
}

func (r *MemoryLinkRepository) list(match func(*domain.MonitorLink) bool) []*domain.MonitorLink {
	s := r.store
	s.mu.RLock()
	defer s.mu.RUnlock()

	docs := make([]*linkDoc, 0)
	for _, doc := range s.links {
		if match(doc.link) {
			docs = append(docs, doc)
		}
	}
	sort.Slice(docs, func(i, j int) bool { return docs[i].seq < docs[j].seq })

	links := make([]*domain.MonitorLink, len(docs))
	for i, doc := range docs {
		links[i] = cloneLink(doc.link)
	}
	return links
}

func (r *MemoryLinkRepository) ListActiveByUser(ctx context.Context, userID domain.UserID) ([]*domain.MonitorLink, error) {
	return r.list(func(l *domain.MonitorLink) bool {
		return l.MonitorUserID == userID && l.IsActive
	}), nil
}

func (r *MemoryLinkRepository) ListByUser(ctx context.Context, userID domain.UserID) ([]*domain.MonitorLink, error) {
	return r.list(func(l *domain.MonitorLink) bool {
		return l.MonitorUserID == userID
	}), nil
}

func (r *MemoryLinkRepository) ListByCamera(ctx context.Context, cameraID domain.CameraID) ([]*domain.MonitorLink, error) {
	return r.list(func(l *domain.MonitorLink) bool {
		return l.CameraID == cameraID
	}), nil
}

func (r *MemoryLinkRepository) ApplyBatch(ctx context.Context, mutations []domain.LinkMutation) error {
	s := r.store
	if len(mutations) > s.maxBatchSize {
		return fmt.Errorf("%w: %d > %d", domain.ErrBatchTooLarge, len(mutations), s.maxBatchSize)
	}

	s.mu.Lock()
	// Updates require the document to exist; validate before applying anything.
	for _, m := range mutations {
		if m.Kind == domain.LinkDelete {
			continue
		}
		if _, ok := s.links[m.ID]; !ok {
			s.mu.Unlock()
			return fmt.Errorf("%w: %s", domain.ErrLinkNotFound, m.ID)
		}
	}

	topics := make([]string, 0, len(mutations))
	for _, m := range mutations {
		doc, ok := s.links[m.ID]
		if !ok {
			continue
		}
		topics = append(topics, linksTopic(doc.link.MonitorUserID))
		switch m.Kind {
		case domain.LinkSetActive:
			doc.link.IsActive = m.Active
		case domain.LinkSetName:
			doc.link.CameraName = m.CameraName
		case domain.LinkDelete:
			delete(s.links, m.ID)
		}
	}
	s.mu.Unlock()

	s.hub.notify(topics...)
	return nil
}

func (r *MemoryLinkRepository) MaxBatchSize() int {
	return r.store.maxBatchSize
}

func (r *MemoryLinkRepository) WatchActiveByUser(ctx context.Context, userID domain.UserID) (*feed.Subscription[[]*domain.MonitorLink], error) {
	return watch(ctx, r.store, linksTopic(userID), func() []*domain.MonitorLink {
		links, _ := r.ListActiveByUser(ctx, userID)
		return links
	}), nil
}
