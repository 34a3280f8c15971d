package services

import (
	"context"
	"fmt"

	"camrelay/internal/core/domain"
	"camrelay/internal/core/ports"
	"camrelay/pkg/feed"
	"camrelay/pkg/validation"
)

type candidateService struct {
	candidates ports.CandidateRepository
	metrics    MetricsRecorder
}

func NewCandidateService(candidates ports.CandidateRepository, metrics MetricsRecorder) ports.CandidateService {
	return &candidateService{candidates: candidates, metrics: metricsOrNop(metrics)}
}

// Add appends one candidate. The parent session must exist at write time.
func (s *candidateService) Add(ctx context.Context, ref domain.SessionRef, candidate *domain.ICECandidate) (domain.CandidateID, error) {
	if !candidate.Sender.Valid() {
		return "", fmt.Errorf("%w: unknown sender %q", domain.ErrInvalidCandidate, candidate.Sender)
	}
	if err := validation.ValidateCandidate(candidate.Candidate); err != nil {
		return "", fmt.Errorf("%w: %v", domain.ErrInvalidCandidate, err)
	}
	if err := s.candidates.Add(ctx, ref, candidate); err != nil {
		return "", fmt.Errorf("failed to add candidate: %w", err)
	}
	s.metrics.CandidateAdded(string(candidate.Sender))
	return candidate.ID, nil
}

func (s *candidateService) List(ctx context.Context, ref domain.SessionRef) ([]*domain.ICECandidate, error) {
	return s.candidates.List(ctx, ref)
}

// Watch emits every candidate of the session on each change. Order follows
// the store and is not guaranteed to match insertion order.
func (s *candidateService) Watch(ctx context.Context, ref domain.SessionRef) (*feed.Subscription[[]*domain.ICECandidate], error) {
	return s.candidates.Watch(ctx, ref)
}
