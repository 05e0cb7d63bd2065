package adapters

import (
	"strings"
	"time"

	"github.com/reconforge/api/pkg/domain/finding"
	"github.com/reconforge/api/pkg/domain/scanjob"
)

// Subfinder wraps projectdiscovery's passive subdomain enumerator.
type Subfinder struct{}

func (s *Subfinder) Name() string { return "subfinder" }

func (s *Subfinder) JobTypes() []scanjob.JobType {
	return []scanjob.JobType{scanjob.JobTypeSubdomainScan, scanjob.JobTypeFullScan}
}

func (s *Subfinder) Enabled(cfg scanjob.JobConfig) bool {
	switch c := cfg.(type) {
	case *scanjob.SubdomainScanConfig:
		return c.UseSubfinder
	case *scanjob.FullScanConfig:
		return c.UseSubfinder
	}
	return false
}

func (s *Subfinder) Command(target string, cfg scanjob.JobConfig) (string, []string) {
	args := []string{"-d", target, "-all", "-silent"}
	if c, ok := cfg.(*scanjob.SubdomainScanConfig); ok && c.Threads > 0 {
		args = append(args, "-t", itoa(c.Threads))
	}
	return "subfinder", args
}

func (s *Subfinder) Timeout(cfg scanjob.JobConfig) time.Duration {
	return cfg.AdapterTimeout()
}

// Parse reads one hostname per line. Subfinder occasionally emits
// wildcard entries; the leading "*." is stripped.
func (s *Subfinder) Parse(target string, raw []byte) ([]finding.Finding, error) {
	var findings []finding.Finding
	err := eachLine(raw, func(line string) {
		host := strings.TrimPrefix(line, "*.")
		if !strings.Contains(host, ".") {
			return
		}
		findings = append(findings, finding.Finding{
			Type:  finding.TypeSubdomain,
			Value: host,
		})
	})
	return findings, err
}
