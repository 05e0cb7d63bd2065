package target

import (
	"testing"

	"github.com/reconforge/api/pkg/domain/shared"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew(t *testing.T) {
	tgt, err := New(shared.NewID(), "  Example.COM ")

	require.NoError(t, err)
	assert.Equal(t, "example.com", tgt.Domain)
	assert.Zero(t, tgt.Stats.Subdomains)
	assert.False(t, tgt.CreatedAt.IsZero())
}

func TestNew_ValidationErrors(t *testing.T) {
	orgID := shared.NewID()

	_, err := New(orgID, "")
	assert.True(t, shared.IsValidation(err))

	_, err = New(orgID, "not a domain")
	assert.True(t, shared.IsValidation(err))

	_, err = New(shared.ID{}, "example.com")
	assert.True(t, shared.IsValidation(err))
}

func TestValidDomain(t *testing.T) {
	valid := []string{"example.com", "a.b.c.example.co.uk", "my-host.example.com", "0day.example.com"}
	for _, d := range valid {
		assert.True(t, ValidDomain(d), d)
	}

	invalid := []string{"localhost", "example..com", "-bad.example.com", "bad-.example.com", "exa_mple.com", "http://example.com"}
	for _, d := range invalid {
		assert.False(t, ValidDomain(d), d)
	}
}
