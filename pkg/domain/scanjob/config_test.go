package scanjob

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/reconforge/api/pkg/domain/shared"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseConfig_Defaults(t *testing.T) {
	tests := []struct {
		jobType JobType
		raw     json.RawMessage
	}{
		{JobTypeSubdomainScan, nil},
		{JobTypeSubdomainScan, json.RawMessage(`{}`)},
		{JobTypePortScan, nil},
		{JobTypeContentDiscovery, nil},
		{JobTypeJSFilesScan, nil},
		{JobTypeAPIDiscovery, nil},
		{JobTypeVulnerabilityScan, nil},
		{JobTypeFullScan, nil},
		{JobTypeLiveHostsScan, nil},
	}

	for _, tt := range tests {
		t.Run(string(tt.jobType), func(t *testing.T) {
			cfg, err := ParseConfig(tt.jobType, tt.raw)
			require.NoError(t, err)
			assert.NotNil(t, cfg)
			assert.Greater(t, cfg.AdapterTimeout(), time.Duration(0))
		})
	}
}

func TestParseConfig_Overrides(t *testing.T) {
	cfg, err := ParseConfig(JobTypeSubdomainScan, json.RawMessage(`{"use_amass":false,"threads":20,"timeout":120}`))
	require.NoError(t, err)

	sub, ok := cfg.(*SubdomainScanConfig)
	require.True(t, ok)
	assert.True(t, sub.UseSubfinder)
	assert.False(t, sub.UseAmass)
	assert.Equal(t, 20, sub.Threads)
	assert.Equal(t, 2*time.Minute, sub.AdapterTimeout())
}

func TestParseConfig_UnknownFieldRejected(t *testing.T) {
	_, err := ParseConfig(JobTypeSubdomainScan, json.RawMessage(`{"use_subfiner":true}`))

	require.Error(t, err)
	assert.True(t, shared.IsValidation(err))
	assert.Contains(t, err.Error(), "use_subfiner")
}

func TestParseConfig_MalformedJSON(t *testing.T) {
	_, err := ParseConfig(JobTypePortScan, json.RawMessage(`{"ports":`))

	require.Error(t, err)
	assert.True(t, shared.IsValidation(err))
}

func TestParseConfig_UnknownJobType(t *testing.T) {
	_, err := ParseConfig(JobType("banner_grab"), nil)

	require.Error(t, err)
	assert.True(t, shared.IsValidation(err))
}

func TestParseConfig_ValueValidation(t *testing.T) {
	tests := []struct {
		name    string
		jobType JobType
		raw     string
		wantErr string
	}{
		{"no adapters", JobTypeSubdomainScan, `{"use_subfinder":false,"use_amass":false}`, "at least one adapter"},
		{"threads too high", JobTypeSubdomainScan, `{"threads":500}`, "threads must be"},
		{"timeout too low", JobTypeSubdomainScan, `{"timeout":1}`, "timeout must be"},
		{"timeout too high", JobTypePortScan, `{"timeout":99999}`, "timeout must be"},
		{"bad port spec", JobTypePortScan, `{"ports":"80,abc"}`, "ports must be"},
		{"top ports out of range", JobTypePortScan, `{"top_ports":70000}`, "top_ports must be"},
		{"bad match code", JobTypeContentDiscovery, `{"match_codes":[200,999]}`, "match_codes"},
		{"wordlist traversal", JobTypeContentDiscovery, `{"wordlist":"../../etc/passwd"}`, "path traversal"},
		{"bad severity", JobTypeVulnerabilityScan, `{"severity":["critical","silly"]}`, "severity must be"},
		{"templates traversal", JobTypeVulnerabilityScan, `{"templates":"../secret"}`, "path traversal"},
		{"rate limit too high", JobTypeLiveHostsScan, `{"rate_limit":20000}`, "rate_limit must be"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseConfig(tt.jobType, json.RawMessage(tt.raw))

			require.Error(t, err)
			assert.True(t, shared.IsValidation(err))
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestPortSpec(t *testing.T) {
	valid := []string{"80", "80,443", "1-1024", "80, 443, 8000-9000"}
	for _, spec := range valid {
		cfg := DefaultPortScanConfig()
		cfg.Ports = spec
		assert.NoError(t, cfg.Validate(), spec)
	}

	invalid := []string{",", "80,,443", "http", "80;443"}
	for _, spec := range invalid {
		cfg := DefaultPortScanConfig()
		cfg.Ports = spec
		assert.Error(t, cfg.Validate(), spec)
	}
}
