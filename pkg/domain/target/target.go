// Package target defines the Target entity: the domain an organization
// runs reconnaissance jobs against.
package target

import (
	"context"
	"strings"
	"time"

	"github.com/reconforge/api/pkg/domain/shared"
)

// Target is a scannable asset, identified by its apex domain.
type Target struct {
	ID             int
	OrganizationID shared.ID
	Domain         string

	// Stats holds denormalized counters refreshed after completed
	// jobs (subdomains, open ports, vulnerabilities).
	Stats Stats

	CreatedAt time.Time
	UpdatedAt time.Time
}

// Stats holds per-target summary counters.
type Stats struct {
	Subdomains      int        `json:"subdomains"`
	OpenPorts       int        `json:"open_ports"`
	Vulnerabilities int        `json:"vulnerabilities"`
	LastUpdated     time.Time `json:"last_updated,omitzero"`
}

// New creates a target after normalizing and validating the domain.
func New(orgID shared.ID, domain string) (*Target, error) {
	domain = strings.ToLower(strings.TrimSpace(domain))
	if domain == "" {
		return nil, shared.NewDomainError("VALIDATION", "domain is required", shared.ErrValidation)
	}
	if !ValidDomain(domain) {
		return nil, shared.NewDomainError("VALIDATION", "invalid domain", shared.ErrValidation)
	}
	if orgID.IsZero() {
		return nil, shared.NewDomainError("VALIDATION", "organization_id is required", shared.ErrValidation)
	}

	now := time.Now().UTC()
	return &Target{
		OrganizationID: orgID,
		Domain:         domain,
		CreatedAt:      now,
		UpdatedAt:      now,
	}, nil
}

// ValidDomain checks the rough shape of a DNS name: labels of
// alphanumerics and hyphens separated by dots, at least one dot.
func ValidDomain(domain string) bool {
	if len(domain) > 253 || !strings.Contains(domain, ".") {
		return false
	}
	for _, label := range strings.Split(domain, ".") {
		if label == "" || len(label) > 63 {
			return false
		}
		if strings.HasPrefix(label, "-") || strings.HasSuffix(label, "-") {
			return false
		}
		for _, r := range label {
			switch {
			case r >= 'a' && r <= 'z':
			case r >= '0' && r <= '9':
			case r == '-':
			default:
				return false
			}
		}
	}
	return true
}

// Repository defines target persistence.
type Repository interface {
	// Create persists a new target and assigns its ID.
	Create(ctx context.Context, t *Target) error

	// GetByID retrieves a target, shared.ErrNotFound if absent.
	GetByID(ctx context.Context, id int) (*Target, error)

	// ListByOrganization lists an organization's targets.
	ListByOrganization(ctx context.Context, orgID shared.ID) ([]*Target, error)

	// UpdateStats replaces the denormalized stat counters.
	UpdateStats(ctx context.Context, id int, stats Stats) error
}
