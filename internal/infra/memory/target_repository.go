package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/reconforge/api/pkg/domain/shared"
	"github.com/reconforge/api/pkg/domain/target"
)

// TargetRepository implements target.Repository in memory.
type TargetRepository struct {
	mu      sync.RWMutex
	nextID  int
	targets map[int]*target.Target
}

// NewTargetRepository creates an empty repository.
func NewTargetRepository() *TargetRepository {
	return &TargetRepository{nextID: 1, targets: make(map[int]*target.Target)}
}

// Create persists a new target and assigns its ID.
func (r *TargetRepository) Create(ctx context.Context, t *target.Target) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, existing := range r.targets {
		if existing.OrganizationID.Equals(t.OrganizationID) && existing.Domain == t.Domain {
			return shared.NewDomainError("CONFLICT",
				fmt.Sprintf("target %q already exists", t.Domain), shared.ErrConflict)
		}
	}

	t.ID = r.nextID
	r.nextID++
	clone := *t
	r.targets[t.ID] = &clone
	return nil
}

// GetByID retrieves a target, shared.ErrNotFound if absent.
func (r *TargetRepository) GetByID(ctx context.Context, id int) (*target.Target, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	t, ok := r.targets[id]
	if !ok {
		return nil, shared.NewDomainError("NOT_FOUND", "target not found", shared.ErrNotFound)
	}
	clone := *t
	return &clone, nil
}

// ListByOrganization lists an organization's targets by domain.
func (r *TargetRepository) ListByOrganization(ctx context.Context, orgID shared.ID) ([]*target.Target, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var targets []*target.Target
	for _, t := range r.targets {
		if t.OrganizationID.Equals(orgID) {
			clone := *t
			targets = append(targets, &clone)
		}
	}
	sort.Slice(targets, func(i, j int) bool { return targets[i].Domain < targets[j].Domain })
	return targets, nil
}

// UpdateStats replaces the denormalized stat counters.
func (r *TargetRepository) UpdateStats(ctx context.Context, id int, stats target.Stats) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	t, ok := r.targets[id]
	if !ok {
		return shared.NewDomainError("NOT_FOUND", "target not found", shared.ErrNotFound)
	}
	t.Stats = stats
	if !stats.LastUpdated.IsZero() {
		t.UpdatedAt = stats.LastUpdated
	}
	return nil
}
