package scanjob

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/reconforge/api/pkg/domain/shared"
)

// JobConfig is the validated, job-type-specific option set of a scan
// job. Each job type has an explicit struct; unknown options are
// rejected at parse time rather than silently ignored.
type JobConfig interface {
	// Validate checks option values after strict decoding.
	Validate() error

	// AdapterTimeout returns the per-adapter execution timeout.
	AdapterTimeout() time.Duration
}

// ParseConfig decodes and validates a raw config document for the
// given job type. An empty document yields the defaults for the type.
func ParseConfig(jobType JobType, raw json.RawMessage) (JobConfig, error) {
	cfg, err := defaultConfig(jobType)
	if err != nil {
		return nil, err
	}

	if len(raw) > 0 && !bytes.Equal(bytes.TrimSpace(raw), []byte("{}")) {
		dec := json.NewDecoder(bytes.NewReader(raw))
		dec.DisallowUnknownFields()
		if err := dec.Decode(cfg); err != nil {
			return nil, shared.NewDomainError("VALIDATION",
				fmt.Sprintf("invalid config for %s: %v", jobType, err), shared.ErrValidation)
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func defaultConfig(jobType JobType) (JobConfig, error) {
	switch jobType {
	case JobTypeSubdomainScan:
		return DefaultSubdomainScanConfig(), nil
	case JobTypePortScan:
		return DefaultPortScanConfig(), nil
	case JobTypeContentDiscovery:
		return DefaultContentDiscoveryConfig(), nil
	case JobTypeJSFilesScan:
		return DefaultJSFilesScanConfig(), nil
	case JobTypeAPIDiscovery:
		return DefaultAPIDiscoveryConfig(), nil
	case JobTypeVulnerabilityScan:
		return DefaultVulnerabilityScanConfig(), nil
	case JobTypeFullScan:
		return DefaultFullScanConfig(), nil
	case JobTypeLiveHostsScan:
		return DefaultLiveHostsScanConfig(), nil
	default:
		return nil, shared.NewDomainError("VALIDATION",
			fmt.Sprintf("invalid job_type: %q", jobType), shared.ErrValidation)
	}
}

// validateCommon checks option ranges shared by all config types.
func validateCommon(threads, timeout, rateLimit int) error {
	if threads < 0 || threads > 200 {
		return shared.NewDomainError("VALIDATION", "threads must be 0-200", shared.ErrValidation)
	}
	if timeout < 10 || timeout > 7200 {
		return shared.NewDomainError("VALIDATION", "timeout must be 10-7200 seconds", shared.ErrValidation)
	}
	if rateLimit < 0 || rateLimit > 10000 {
		return shared.NewDomainError("VALIDATION", "rate_limit must be 0-10000", shared.ErrValidation)
	}
	return nil
}

// SubdomainScanConfig holds options for subdomain enumeration jobs.
type SubdomainScanConfig struct {
	UseSubfinder bool `json:"use_subfinder"`
	UseAmass     bool `json:"use_amass"`
	Threads      int  `json:"threads"`
	Timeout      int  `json:"timeout"`
	RateLimit    int  `json:"rate_limit"`
}

// DefaultSubdomainScanConfig returns the defaults for subdomain scans.
func DefaultSubdomainScanConfig() *SubdomainScanConfig {
	return &SubdomainScanConfig{
		UseSubfinder: true,
		UseAmass:     true,
		Threads:      10,
		Timeout:      300,
	}
}

// Validate implements JobConfig.
func (c *SubdomainScanConfig) Validate() error {
	if !c.UseSubfinder && !c.UseAmass {
		return shared.NewDomainError("VALIDATION", "at least one adapter must be enabled", shared.ErrValidation)
	}
	return validateCommon(c.Threads, c.Timeout, c.RateLimit)
}

// AdapterTimeout implements JobConfig.
func (c *SubdomainScanConfig) AdapterTimeout() time.Duration {
	return time.Duration(c.Timeout) * time.Second
}

// PortScanConfig holds options for port scanning jobs.
type PortScanConfig struct {
	UseNmap   bool   `json:"use_nmap"`
	UseNaabu  bool   `json:"use_naabu"`
	Ports     string `json:"ports"`
	TopPorts  int    `json:"top_ports"`
	Timeout   int    `json:"timeout"`
	RateLimit int    `json:"rate_limit"`
}

// DefaultPortScanConfig returns the defaults for port scans.
func DefaultPortScanConfig() *PortScanConfig {
	return &PortScanConfig{
		UseNmap: true,
		Timeout: 600,
	}
}

// Validate implements JobConfig.
func (c *PortScanConfig) Validate() error {
	if !c.UseNmap && !c.UseNaabu {
		return shared.NewDomainError("VALIDATION", "at least one adapter must be enabled", shared.ErrValidation)
	}
	if c.TopPorts < 0 || c.TopPorts > 65535 {
		return shared.NewDomainError("VALIDATION", "top_ports must be 0-65535", shared.ErrValidation)
	}
	if c.Ports != "" && !validPortSpec(c.Ports) {
		return shared.NewDomainError("VALIDATION", "ports must be a comma-separated list of ports or ranges", shared.ErrValidation)
	}
	return validateCommon(0, c.Timeout, c.RateLimit)
}

// AdapterTimeout implements JobConfig.
func (c *PortScanConfig) AdapterTimeout() time.Duration {
	return time.Duration(c.Timeout) * time.Second
}

// validPortSpec checks a "80,443,8000-9000" style port list.
func validPortSpec(spec string) bool {
	for _, part := range strings.Split(spec, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			return false
		}
		for _, r := range part {
			if (r < '0' || r > '9') && r != '-' {
				return false
			}
		}
	}
	return true
}

// ContentDiscoveryConfig holds options for content discovery jobs.
type ContentDiscoveryConfig struct {
	UseFfuf    bool   `json:"use_ffuf"`
	UseWaymore bool   `json:"use_waymore"`
	Threads    int    `json:"threads"`
	Timeout    int    `json:"timeout"`
	Wordlist   string `json:"wordlist"`
	RateLimit  int    `json:"rate_limit"`
	MatchCodes []int  `json:"match_codes"`
	MaxDepth   int    `json:"max_depth"`
}

// DefaultContentDiscoveryConfig returns the defaults for content
// discovery. Match codes follow the classic ffuf invocation.
func DefaultContentDiscoveryConfig() *ContentDiscoveryConfig {
	return &ContentDiscoveryConfig{
		UseFfuf:    true,
		UseWaymore: true,
		Threads:    40,
		Timeout:    600,
		MatchCodes: []int{200, 204, 301, 302, 307, 401, 403},
		MaxDepth:   2,
	}
}

// Validate implements JobConfig.
func (c *ContentDiscoveryConfig) Validate() error {
	if !c.UseFfuf && !c.UseWaymore {
		return shared.NewDomainError("VALIDATION", "at least one adapter must be enabled", shared.ErrValidation)
	}
	for _, code := range c.MatchCodes {
		if code < 100 || code > 599 {
			return shared.NewDomainError("VALIDATION", "match_codes must be valid HTTP status codes", shared.ErrValidation)
		}
	}
	if c.MaxDepth < 0 || c.MaxDepth > 10 {
		return shared.NewDomainError("VALIDATION", "max_depth must be 0-10", shared.ErrValidation)
	}
	if strings.Contains(c.Wordlist, "..") {
		return shared.NewDomainError("VALIDATION", "wordlist must not contain path traversal", shared.ErrValidation)
	}
	return validateCommon(c.Threads, c.Timeout, c.RateLimit)
}

// AdapterTimeout implements JobConfig.
func (c *ContentDiscoveryConfig) AdapterTimeout() time.Duration {
	return time.Duration(c.Timeout) * time.Second
}

// JSFilesScanConfig holds options for JavaScript analysis jobs.
type JSFilesScanConfig struct {
	UseGetJS      bool `json:"use_getjs"`
	UseLinkFinder bool `json:"use_linkfinder"`
	Threads       int  `json:"threads"`
	Timeout       int  `json:"timeout"`
	RateLimit     int  `json:"rate_limit"`
}

// DefaultJSFilesScanConfig returns the defaults for JS file scans.
func DefaultJSFilesScanConfig() *JSFilesScanConfig {
	return &JSFilesScanConfig{
		UseGetJS:      true,
		UseLinkFinder: true,
		Threads:       10,
		Timeout:       300,
	}
}

// Validate implements JobConfig.
func (c *JSFilesScanConfig) Validate() error {
	if !c.UseGetJS && !c.UseLinkFinder {
		return shared.NewDomainError("VALIDATION", "at least one adapter must be enabled", shared.ErrValidation)
	}
	return validateCommon(c.Threads, c.Timeout, c.RateLimit)
}

// AdapterTimeout implements JobConfig.
func (c *JSFilesScanConfig) AdapterTimeout() time.Duration {
	return time.Duration(c.Timeout) * time.Second
}

// APIDiscoveryConfig holds options for API endpoint discovery jobs.
type APIDiscoveryConfig struct {
	UseFfuf    bool   `json:"use_ffuf"`
	UseWaymore bool   `json:"use_waymore"`
	Threads    int    `json:"threads"`
	Timeout    int    `json:"timeout"`
	Wordlist   string `json:"wordlist"`
	RateLimit  int    `json:"rate_limit"`
}

// DefaultAPIDiscoveryConfig returns the defaults for API discovery.
func DefaultAPIDiscoveryConfig() *APIDiscoveryConfig {
	return &APIDiscoveryConfig{
		UseFfuf:    true,
		UseWaymore: true,
		Threads:    20,
		Timeout:    600,
	}
}

// Validate implements JobConfig.
func (c *APIDiscoveryConfig) Validate() error {
	if !c.UseFfuf && !c.UseWaymore {
		return shared.NewDomainError("VALIDATION", "at least one adapter must be enabled", shared.ErrValidation)
	}
	if strings.Contains(c.Wordlist, "..") {
		return shared.NewDomainError("VALIDATION", "wordlist must not contain path traversal", shared.ErrValidation)
	}
	return validateCommon(c.Threads, c.Timeout, c.RateLimit)
}

// AdapterTimeout implements JobConfig.
func (c *APIDiscoveryConfig) AdapterTimeout() time.Duration {
	return time.Duration(c.Timeout) * time.Second
}

// VulnerabilityScanConfig holds options for vulnerability scan jobs.
type VulnerabilityScanConfig struct {
	UseNuclei bool     `json:"use_nuclei"`
	Severity  []string `json:"severity"`
	Templates string   `json:"templates"`
	Timeout   int      `json:"timeout"`
	RateLimit int      `json:"rate_limit"`
}

// DefaultVulnerabilityScanConfig returns the defaults for vuln scans.
func DefaultVulnerabilityScanConfig() *VulnerabilityScanConfig {
	return &VulnerabilityScanConfig{
		UseNuclei: true,
		Timeout:   600,
		RateLimit: 150,
	}
}

// Validate implements JobConfig.
func (c *VulnerabilityScanConfig) Validate() error {
	if !c.UseNuclei {
		return shared.NewDomainError("VALIDATION", "at least one adapter must be enabled", shared.ErrValidation)
	}
	for _, s := range c.Severity {
		switch strings.ToLower(s) {
		case "info", "low", "medium", "high", "critical":
		default:
			return shared.NewDomainError("VALIDATION",
				"severity must be one of: info, low, medium, high, critical", shared.ErrValidation)
		}
	}
	if strings.Contains(c.Templates, "..") {
		return shared.NewDomainError("VALIDATION", "templates must not contain path traversal", shared.ErrValidation)
	}
	return validateCommon(0, c.Timeout, c.RateLimit)
}

// AdapterTimeout implements JobConfig.
func (c *VulnerabilityScanConfig) AdapterTimeout() time.Duration {
	return time.Duration(c.Timeout) * time.Second
}

// LiveHostsScanConfig holds options for live host probing jobs.
type LiveHostsScanConfig struct {
	UseHTTPX  bool `json:"use_httpx"`
	Threads   int  `json:"threads"`
	Timeout   int  `json:"timeout"`
	RateLimit int  `json:"rate_limit"`
}

// DefaultLiveHostsScanConfig returns the defaults for live host scans.
func DefaultLiveHostsScanConfig() *LiveHostsScanConfig {
	return &LiveHostsScanConfig{
		UseHTTPX: true,
		Threads:  50,
		Timeout:  300,
	}
}

// Validate implements JobConfig.
func (c *LiveHostsScanConfig) Validate() error {
	if !c.UseHTTPX {
		return shared.NewDomainError("VALIDATION", "at least one adapter must be enabled", shared.ErrValidation)
	}
	return validateCommon(c.Threads, c.Timeout, c.RateLimit)
}

// AdapterTimeout implements JobConfig.
func (c *LiveHostsScanConfig) AdapterTimeout() time.Duration {
	return time.Duration(c.Timeout) * time.Second
}

// FullScanConfig holds options for full scans, which run the combined
// subdomain, port and content discovery adapter set.
type FullScanConfig struct {
	UseSubfinder bool   `json:"use_subfinder"`
	UseAmass     bool   `json:"use_amass"`
	UseNmap      bool   `json:"use_nmap"`
	UseFfuf      bool   `json:"use_ffuf"`
	UseWaymore   bool   `json:"use_waymore"`
	Threads      int    `json:"threads"`
	Timeout      int    `json:"timeout"`
	Wordlist     string `json:"wordlist"`
	RateLimit    int    `json:"rate_limit"`
}

// DefaultFullScanConfig returns the defaults for full scans.
func DefaultFullScanConfig() *FullScanConfig {
	return &FullScanConfig{
		UseSubfinder: true,
		UseAmass:     true,
		UseNmap:      true,
		UseFfuf:      true,
		UseWaymore:   false,
		Threads:      10,
		Timeout:      600,
	}
}

// Validate implements JobConfig.
func (c *FullScanConfig) Validate() error {
	if !c.UseSubfinder && !c.UseAmass && !c.UseNmap && !c.UseFfuf && !c.UseWaymore {
		return shared.NewDomainError("VALIDATION", "at least one adapter must be enabled", shared.ErrValidation)
	}
	if strings.Contains(c.Wordlist, "..") {
		return shared.NewDomainError("VALIDATION", "wordlist must not contain path traversal", shared.ErrValidation)
	}
	return validateCommon(c.Threads, c.Timeout, c.RateLimit)
}

// AdapterTimeout implements JobConfig.
func (c *FullScanConfig) AdapterTimeout() time.Duration {
	return time.Duration(c.Timeout) * time.Second
}
