package memory

import (
	"context"

	"camrelay/internal/core/domain"
	"camrelay/internal/core/ports"
	"camrelay/pkg/feed"

	"github.com/google/uuid"
)

type MemoryCandidateRepository struct {
	store *Store
}

func NewMemoryCandidateRepository(store *Store) ports.CandidateRepository {
	return &MemoryCandidateRepository{store: store}
}

func (r *MemoryCandidateRepository) Add(ctx context.Context, ref domain.SessionRef, candidate *domain.ICECandidate) error {
	s := r.store
	s.mu.Lock()
	if _, ok := s.sessions[ref]; !ok {
		s.mu.Unlock()
		return domain.ErrSessionNotFound
	}
	if candidate.ID == "" {
		candidate.ID = domain.CandidateID(uuid.NewString())
	}
	candidate.CreatedAt = s.now()
	s.candidates[ref] = append(s.candidates[ref], cloneCandidate(candidate))
	s.mu.Unlock()

	s.hub.notify(candidatesTopic(ref))
	return nil
}

func (r *MemoryCandidateRepository) List(ctx context.Context, ref domain.SessionRef) ([]*domain.ICECandidate, error) {
	s := r.store
	s.mu.RLock()
	defer s.mu.RUnlock()

	stored := s.candidates[ref]
	candidates := make([]*domain.ICECandidate, len(stored))
	for i, c := range stored {
		candidates[i] = cloneCandidate(c)
	}
	return candidates, nil
}

func (r *MemoryCandidateRepository) Watch(ctx context.Context, ref domain.SessionRef) (*feed.Subscription[[]*domain.ICECandidate], error) {
	return watch(ctx, r.store, candidatesTopic(ref), func() []*domain.ICECandidate {
		candidates, _ := r.List(ctx, ref)
		return candidates
	}), nil
}
