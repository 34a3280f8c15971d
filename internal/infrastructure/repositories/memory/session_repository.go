package memory

import (
	"context"
	"fmt"
	"sort"

	"camrelay/internal/core/domain"
	"camrelay/internal/core/ports"
	"camrelay/pkg/feed"
)

type MemorySessionRepository struct {
	store *Store
}

func NewMemorySessionRepository(store *Store) ports.SessionRepository {
	return &MemorySessionRepository{store: store}
}

func (r *MemorySessionRepository) Create(ctx context.Context, session *domain.Session) error {
	s := r.store
	s.mu.Lock()
	ref := session.Ref()
	if _, exists := s.sessions[ref]; exists {
		s.mu.Unlock()
		return fmt.Errorf("%w: %s", domain.ErrSessionExists, ref)
	}
	session.CreatedAt = s.now()
	s.sessions[ref] = &sessionDoc{seq: s.nextSeq(), session: cloneSession(session)}
	s.mu.Unlock()

	s.hub.notify(sessionsTopic(ref.CameraID))
	return nil
}

func (r *MemorySessionRepository) Get(ctx context.Context, ref domain.SessionRef) (*domain.Session, error) {
	s := r.store
	s.mu.RLock()
	defer s.mu.RUnlock()

	doc, ok := s.sessions[ref]
	if !ok {
		return nil, domain.ErrSessionNotFound
	}
	return cloneSession(doc.session), nil
}

func (r *MemorySessionRepository) Update(ctx context.Context, ref domain.SessionRef, update domain.SessionUpdate) error {
	s := r.store
	s.mu.Lock()
	doc, ok := s.sessions[ref]
	if !ok {
		s.mu.Unlock()
		return domain.ErrSessionNotFound
	}

	sess := doc.session
	if update.Status != nil {
		if err := sess.Status.CheckTransition(*update.Status); err != nil {
			s.mu.Unlock()
			return err
		}
	}
	if update.Answer != nil {
		answer := *update.Answer
		sess.Answer = &answer
	}
	if update.Status != nil {
		sess.Status = *update.Status
	}
	if update.AudioEnabled != nil {
		enabled := *update.AudioEnabled
		sess.AudioEnabled = &enabled
	}
	if update.Heartbeat {
		now := s.now()
		sess.LastHeartbeat = &now
	}
	s.mu.Unlock()

	s.hub.notify(sessionsTopic(ref.CameraID))
	return nil
}

func (r *MemorySessionRepository) Delete(ctx context.Context, ref domain.SessionRef) error {
	return r.ApplyBatch(ctx, []domain.SessionMutation{{Ref: ref, Kind: domain.SessionDelete}})
}

func (r *MemorySessionRepository) list(match func(*domain.Session) bool) []*domain.Session {
	s := r.store
	s.mu.RLock()
	defer s.mu.RUnlock()

	docs := make([]*sessionDoc, 0)
	for _, doc := range s.sessions {
		if match(doc.session) {
			docs = append(docs, doc)
		}
	}
	sort.Slice(docs, func(i, j int) bool { return docs[i].seq < docs[j].seq })

	sessions := make([]*domain.Session, len(docs))
	for i, doc := range docs {
		sessions[i] = cloneSession(doc.session)
	}
	return sessions
}

func (r *MemorySessionRepository) ListByCamera(ctx context.Context, cameraID domain.CameraID, filter domain.SessionFilter) ([]*domain.Session, error) {
	return r.list(func(sess *domain.Session) bool {
		return sess.CameraID == cameraID && filter.Matches(sess)
	}), nil
}

func (r *MemorySessionRepository) Query(ctx context.Context, q domain.SessionQuery) ([]*domain.Session, error) {
	return r.list(q.Matches), nil
}

func (r *MemorySessionRepository) ApplyBatch(ctx context.Context, mutations []domain.SessionMutation) error {
	s := r.store
	if len(mutations) > s.maxBatchSize {
		return fmt.Errorf("%w: %d > %d", domain.ErrBatchTooLarge, len(mutations), s.maxBatchSize)
	}

	// Missing documents and flips out of a terminal status are skipped, not
	// failed: a session deleted or disconnected since the caller queried it is
	// already past the state the flip was meant to reach.
	s.mu.Lock()
	topics := make([]string, 0, len(mutations)*2)
	for _, m := range mutations {
		switch m.Kind {
		case domain.SessionDelete:
			delete(s.sessions, m.Ref)
			delete(s.candidates, m.Ref)
			topics = append(topics, candidatesTopic(m.Ref))
		case domain.SessionSetStatus:
			doc, ok := s.sessions[m.Ref]
			if !ok || doc.session.Status.CheckTransition(m.Status) != nil {
				continue
			}
			doc.session.Status = m.Status
		}
		topics = append(topics, sessionsTopic(m.Ref.CameraID))
	}
	s.mu.Unlock()

	s.hub.notify(topics...)
	return nil
}

func (r *MemorySessionRepository) MaxBatchSize() int {
	return r.store.maxBatchSize
}

func (r *MemorySessionRepository) Watch(ctx context.Context, cameraID domain.CameraID, filter domain.SessionFilter) (*feed.Subscription[[]*domain.Session], error) {
	return watch(ctx, r.store, sessionsTopic(cameraID), func() []*domain.Session {
		sessions, _ := r.ListByCamera(ctx, cameraID, filter)
		return sessions
	}), nil
}

func (r *MemorySessionRepository) WatchOne(ctx context.Context, ref domain.SessionRef) (*feed.Subscription[*domain.Session], error) {
	return watch(ctx, r.store, sessionsTopic(ref.CameraID), func() *domain.Session {
		sess, err := r.Get(ctx, ref)
		if err != nil {
			return nil
		}
		return sess
	}), nil
}
