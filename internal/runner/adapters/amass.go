package adapters

import (
	"strings"
	"time"

	"github.com/reconforge/api/pkg/domain/finding"
	"github.com/reconforge/api/pkg/domain/scanjob"
)

// Amass wraps OWASP amass in passive enumeration mode.
type Amass struct{}

func (a *Amass) Name() string { return "amass" }

func (a *Amass) JobTypes() []scanjob.JobType {
	return []scanjob.JobType{scanjob.JobTypeSubdomainScan, scanjob.JobTypeFullScan}
}

func (a *Amass) Enabled(cfg scanjob.JobConfig) bool {
	switch c := cfg.(type) {
	case *scanjob.SubdomainScanConfig:
		return c.UseAmass
	case *scanjob.FullScanConfig:
		return c.UseAmass
	}
	return false
}

func (a *Amass) Command(target string, cfg scanjob.JobConfig) (string, []string) {
	return "amass", []string{"enum", "-passive", "-d", target, "-silent", "-nocolor"}
}

func (a *Amass) Timeout(cfg scanjob.JobConfig) time.Duration {
	return cfg.AdapterTimeout()
}

// Parse reads one hostname per line. Amass v4 prefixes discovery
// events with "name --> relation"; only the leading name column is a
// hostname.
func (a *Amass) Parse(target string, raw []byte) ([]finding.Finding, error) {
	var findings []finding.Finding
	err := eachLine(raw, func(line string) {
		host := line
		if i := strings.IndexByte(line, ' '); i > 0 {
			host = line[:i]
		}
		if !strings.Contains(host, ".") || strings.ContainsAny(host, "/:") {
			return
		}
		findings = append(findings, finding.Finding{
			Type:  finding.TypeSubdomain,
			Value: host,
		})
	})
	return findings, err
}
