package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/reconforge/api/pkg/domain/shared"
	"github.com/reconforge/api/pkg/domain/target"
)

// TargetRepository implements target.Repository using PostgreSQL.
type TargetRepository struct {
	db *DB
}

// NewTargetRepository creates a new TargetRepository.
func NewTargetRepository(db *DB) *TargetRepository {
	return &TargetRepository{db: db}
}

const targetColumns = `
	id, organization_id, domain, subdomains_count, open_ports_count,
	vulnerabilities_count, stats_updated_at, created_at, updated_at
`

// Create persists a new target and assigns its serial ID.
func (r *TargetRepository) Create(ctx context.Context, t *target.Target) error {
	query := `
		INSERT INTO targets (
			organization_id, domain, subdomains_count, open_ports_count,
			vulnerabilities_count, created_at, updated_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id
	`

	err := r.db.QueryRowContext(ctx, query,
		t.OrganizationID.String(),
		t.Domain,
		t.Stats.Subdomains,
		t.Stats.OpenPorts,
		t.Stats.Vulnerabilities,
		t.CreatedAt,
		t.UpdatedAt,
	).Scan(&t.ID)

	if err != nil {
		if isUniqueViolation(err) {
			return shared.NewDomainError("CONFLICT",
				fmt.Sprintf("target %q already exists", t.Domain), shared.ErrConflict)
		}
		return fmt.Errorf("failed to create target: %w", err)
	}
	return nil
}

// GetByID retrieves a target by ID.
func (r *TargetRepository) GetByID(ctx context.Context, id int) (*target.Target, error) {
	query := `SELECT ` + targetColumns + ` FROM targets WHERE id = $1`
	return r.scanTarget(r.db.QueryRowContext(ctx, query, id))
}

// ListByOrganization lists an organization's targets.
func (r *TargetRepository) ListByOrganization(ctx context.Context, orgID shared.ID) ([]*target.Target, error) {
	query := `SELECT ` + targetColumns + ` FROM targets WHERE organization_id = $1 ORDER BY domain`

	rows, err := r.db.QueryContext(ctx, query, orgID.String())
	if err != nil {
		return nil, fmt.Errorf("failed to list targets: %w", err)
	}
	defer rows.Close()

	var targets []*target.Target
	for rows.Next() {
		t, err := r.scanTarget(rows)
		if err != nil {
			return nil, err
		}
		targets = append(targets, t)
	}
	return targets, rows.Err()
}

// UpdateStats replaces the denormalized stat counters.
func (r *TargetRepository) UpdateStats(ctx context.Context, id int, stats target.Stats) error {
	query := `
		UPDATE targets
		SET subdomains_count = $2,
		    open_ports_count = $3,
		    vulnerabilities_count = $4,
		    stats_updated_at = $5,
		    updated_at = $5
		WHERE id = $1
	`

	res, err := r.db.ExecContext(ctx, query,
		id, stats.Subdomains, stats.OpenPorts, stats.Vulnerabilities, stats.LastUpdated)
	if err != nil {
		return fmt.Errorf("failed to update target stats: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return shared.NewDomainError("NOT_FOUND", "target not found", shared.ErrNotFound)
	}
	return nil
}

func (r *TargetRepository) scanTarget(row rowScanner) (*target.Target, error) {
	var (
		t       target.Target
		orgStr  string
		statsAt sql.NullTime
	)

	err := row.Scan(
		&t.ID,
		&orgStr,
		&t.Domain,
		&t.Stats.Subdomains,
		&t.Stats.OpenPorts,
		&t.Stats.Vulnerabilities,
		&statsAt,
		&t.CreatedAt,
		&t.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, shared.NewDomainError("NOT_FOUND", "target not found", shared.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to scan target row: %w", err)
	}

	t.OrganizationID, err = shared.IDFromString(orgStr)
	if err != nil {
		return nil, fmt.Errorf("invalid organization id %q: %w", orgStr, err)
	}
	if statsAt.Valid {
		t.Stats.LastUpdated = statsAt.Time
	}
	return &t, nil
}
