package aggregate

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/reconforge/api/pkg/domain/finding"
	"github.com/reconforge/api/pkg/domain/scanjob"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func subdomain(value string) finding.Finding {
	return finding.Finding{Type: finding.TypeSubdomain, Value: value}
}

// =============================================================================
// Deduplication
// =============================================================================

func TestAggregate_DedupAcrossTools(t *testing.T) {
	inputs := []Input{
		{Tool: "subfinder", Findings: []finding.Finding{
			subdomain("api.example.com"),
			subdomain("www.example.com"),
		}},
		{Tool: "amass", Findings: []finding.Finding{
			subdomain("API.example.com."),
			subdomain("mail.example.com"),
		}},
	}

	result := Aggregate(scanjob.JobTypeSubdomainScan, inputs, Options{})

	require.Equal(t, 3, result.TotalUnique)

	byValue := map[string]finding.Finding{}
	for _, f := range result.Findings {
		byValue[f.Value] = f
	}
	api, ok := byValue["api.example.com"]
	require.True(t, ok, "case and trailing dot variants collapse to one finding")
	assert.Equal(t, []string{"amass", "subfinder"}, api.Tools)
	assert.Equal(t, []string{"subfinder"}, byValue["www.example.com"].Tools)
}

func TestAggregate_URLQueryExcludedFromIdentity(t *testing.T) {
	inputs := []Input{
		{Tool: "ffuf", Findings: []finding.Finding{
			{Type: finding.TypeURL, Value: "https://example.com/admin/?x=1"},
		}},
		{Tool: "waymore", Findings: []finding.Finding{
			{Type: finding.TypeURL, Value: "https://EXAMPLE.com/admin"},
		}},
	}

	result := Aggregate(scanjob.JobTypeContentDiscovery, inputs, Options{})

	require.Equal(t, 1, result.TotalUnique)
	f := result.Findings[0]
	assert.Equal(t, "https://example.com/admin", f.Value)
	assert.Equal(t, []string{"ffuf", "waymore"}, f.Tools)
	// The query survives as an attribute even though it is not identity.
	assert.Equal(t, "x=1", f.Attributes["query"])
}

func TestAggregate_PortIdentityTriple(t *testing.T) {
	inputs := []Input{
		{Tool: "naabu", Findings: []finding.Finding{
			{Type: finding.TypeOpenPort, Value: "example.com:80",
				Attributes: map[string]string{"host": "example.com", "port": "80", "protocol": "tcp"}},
		}},
		{Tool: "nmap", Findings: []finding.Finding{
			{Type: finding.TypeOpenPort, Value: "example.com:80",
				Attributes: map[string]string{"host": "example.com", "port": "80", "protocol": "tcp", "service": "http"}},
			{Type: finding.TypeOpenPort, Value: "example.com:80",
				Attributes: map[string]string{"host": "example.com", "port": "80", "protocol": "udp"}},
		}},
	}

	result := Aggregate(scanjob.JobTypePortScan, inputs, Options{})

	// Same port over tcp and udp are distinct entities.
	require.Equal(t, 2, result.TotalUnique)

	var tcp finding.Finding
	for _, f := range result.Findings {
		if f.Attributes["protocol"] == "tcp" {
			tcp = f
		}
	}
	assert.Equal(t, []string{"naabu", "nmap"}, tcp.Tools)
	// Attribute missing from one tool is filled in from the other.
	assert.Equal(t, "http", tcp.Attributes["service"])
}

func TestAggregate_AttributeConflictFirstToolWins(t *testing.T) {
	inputs := []Input{
		{Tool: "nmap", Findings: []finding.Finding{
			{Type: finding.TypeOpenPort,
				Attributes: map[string]string{"host": "a.example.com", "port": "443", "service": "https"}},
		}},
		{Tool: "naabu", Findings: []finding.Finding{
			{Type: finding.TypeOpenPort,
				Attributes: map[string]string{"host": "a.example.com", "port": "443", "service": "ssl/http"}},
		}},
	}

	result := Aggregate(scanjob.JobTypePortScan, inputs, Options{})

	require.Equal(t, 1, result.TotalUnique)
	// Inputs merge in tool name order, so naabu's value sticks.
	assert.Equal(t, "ssl/http", result.Findings[0].Attributes["service"])
}

// =============================================================================
// Determinism
// =============================================================================

func TestAggregate_DeterministicAcrossInputOrder(t *testing.T) {
	a := Input{Tool: "subfinder", Findings: []finding.Finding{
		subdomain("b.example.com"), subdomain("a.example.com"),
	}}
	b := Input{Tool: "amass", Findings: []finding.Finding{
		subdomain("a.example.com"), subdomain("c.example.com"),
	}}

	r1 := Aggregate(scanjob.JobTypeSubdomainScan, []Input{a, b}, Options{})
	r2 := Aggregate(scanjob.JobTypeSubdomainScan, []Input{b, a}, Options{})

	j1, err := json.Marshal(r1)
	require.NoError(t, err)
	j2, err := json.Marshal(r2)
	require.NoError(t, err)
	assert.Equal(t, j1, j2)

	// Findings come out sorted by key.
	values := make([]string, 0, len(r1.Findings))
	for _, f := range r1.Findings {
		values = append(values, f.Value)
	}
	assert.Equal(t, []string{"a.example.com", "b.example.com", "c.example.com"}, values)
}

// =============================================================================
// Failed adapters
// =============================================================================

func TestAggregate_FailedToolRecorded(t *testing.T) {
	inputs := []Input{
		{Tool: "subfinder", Findings: []finding.Finding{subdomain("a.example.com")}},
		{Tool: "amass", Err: errors.New("exit status 1: invalid flag")},
	}

	result := Aggregate(scanjob.JobTypeSubdomainScan, inputs, Options{})

	assert.Equal(t, 1, result.TotalUnique)
	assert.Equal(t, finding.ToolStatusOK, result.Tools["subfinder"].Status)
	assert.Equal(t, finding.ToolStatusFailed, result.Tools["amass"].Status)
	assert.Contains(t, result.Tools["amass"].Error, "exit status 1")
	require.Len(t, result.Warnings, 1)
	assert.Contains(t, result.Warnings[0], "adapter amass failed")
	assert.Equal(t, []string{"amass"}, result.FailedTools())
}

func TestAggregate_AllToolsFailed(t *testing.T) {
	inputs := []Input{
		{Tool: "subfinder", Err: errors.New("timed out")},
		{Tool: "amass", Err: errors.New("binary not found")},
	}

	result := Aggregate(scanjob.JobTypeSubdomainScan, inputs, Options{})

	assert.Zero(t, result.TotalUnique)
	assert.Empty(t, result.Findings)
	assert.Equal(t, []string{"amass", "subfinder"}, result.FailedTools())
	assert.Len(t, result.Warnings, 2)
}

// =============================================================================
// Interesting flagging
// =============================================================================

func TestAggregate_KeywordFlagging(t *testing.T) {
	inputs := []Input{
		{Tool: "subfinder", Findings: []finding.Finding{
			subdomain("Admin.example.com"),
			subdomain("www.example.com"),
			subdomain("staging.example.com"),
		}},
	}

	result := Aggregate(scanjob.JobTypeSubdomainScan, inputs, Options{Keywords: []string{"ADMIN", "staging"}})

	assert.Equal(t, 2, result.InterestingCount)
	for _, f := range result.Findings {
		switch f.Value {
		case "admin.example.com", "staging.example.com":
			assert.True(t, f.Interesting, f.Value)
		default:
			assert.False(t, f.Interesting, f.Value)
		}
	}
}

func TestAggregate_ToolFlagSurvivesMerge(t *testing.T) {
	inputs := []Input{
		{Tool: "nuclei", Findings: []finding.Finding{
			{Type: finding.TypeVulnerability, Value: "Exposed .git",
				Interesting: true,
				Attributes:  map[string]string{"target": "example.com", "vulnerability": "git-config", "location": "https://example.com/.git/config"}},
		}},
		{Tool: "other", Findings: []finding.Finding{
			{Type: finding.TypeVulnerability, Value: "Exposed .git",
				Attributes: map[string]string{"target": "example.com", "vulnerability": "git-config", "location": "https://example.com/.git/config"}},
		}},
	}

	result := Aggregate(scanjob.JobTypeVulnerabilityScan, inputs, Options{})

	require.Equal(t, 1, result.TotalUnique)
	assert.True(t, result.Findings[0].Interesting)
	assert.Equal(t, 1, result.InterestingCount)
}

func TestAggregate_EmptyInputs(t *testing.T) {
	result := Aggregate(scanjob.JobTypeSubdomainScan, nil, Options{})

	assert.Zero(t, result.TotalUnique)
	assert.NotNil(t, result.Findings)
	assert.Empty(t, result.Warnings)
}
