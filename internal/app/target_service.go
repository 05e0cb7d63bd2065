package app

import (
	"context"
	"fmt"

	"github.com/reconforge/api/pkg/domain/shared"
	"github.com/reconforge/api/pkg/domain/target"
	"github.com/reconforge/api/pkg/logger"
)

// TargetService handles target-related business operations.
type TargetService struct {
	repo   target.Repository
	logger *logger.Logger
}

// NewTargetService creates a new TargetService.
func NewTargetService(repo target.Repository, log *logger.Logger) *TargetService {
	return &TargetService{
		repo:   repo,
		logger: log.With("service", "target"),
	}
}

// CreateTargetInput represents the input for creating a target.
type CreateTargetInput struct {
	OrganizationID string `validate:"required,uuid"`
	Domain         string `validate:"required,domain_name"`
}

// CreateTarget registers a new scan target.
func (s *TargetService) CreateTarget(ctx context.Context, input CreateTargetInput) (*target.Target, error) {
	orgID, err := shared.IDFromString(input.OrganizationID)
	if err != nil {
		return nil, fmt.Errorf("%w: invalid organization id", shared.ErrValidation)
	}

	t, err := target.New(orgID, input.Domain)
	if err != nil {
		return nil, err
	}

	if err := s.repo.Create(ctx, t); err != nil {
		if shared.IsConflict(err) {
			return nil, shared.NewDomainError("CONFLICT",
				fmt.Sprintf("target %q already exists", t.Domain), shared.ErrConflict)
		}
		return nil, fmt.Errorf("failed to create target: %w", err)
	}

	s.logger.Info("target created", "target_id", t.ID, "domain", t.Domain)
	return t, nil
}

// GetTarget retrieves a target by ID.
func (s *TargetService) GetTarget(ctx context.Context, id int) (*target.Target, error) {
	return s.repo.GetByID(ctx, id)
}

// ListTargets lists an organization's targets.
func (s *TargetService) ListTargets(ctx context.Context, orgID shared.ID) ([]*target.Target, error) {
	return s.repo.ListByOrganization(ctx, orgID)
}
