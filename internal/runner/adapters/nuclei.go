package adapters

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/reconforge/api/pkg/domain/finding"
	"github.com/reconforge/api/pkg/domain/scanjob"
)

// Nuclei wraps projectdiscovery's template-based vulnerability scanner.
type Nuclei struct{}

func (n *Nuclei) Name() string { return "nuclei" }

func (n *Nuclei) JobTypes() []scanjob.JobType {
	return []scanjob.JobType{scanjob.JobTypeVulnerabilityScan}
}

func (n *Nuclei) Enabled(cfg scanjob.JobConfig) bool {
	c, ok := cfg.(*scanjob.VulnerabilityScanConfig)
	return ok && c.UseNuclei
}

func (n *Nuclei) Command(target string, cfg scanjob.JobConfig) (string, []string) {
	args := []string{"-u", target, "-silent", "-jsonl", "-no-color"}
	if c, ok := cfg.(*scanjob.VulnerabilityScanConfig); ok {
		if len(c.Severity) > 0 {
			args = append(args, "-severity", strings.Join(c.Severity, ","))
		}
		if c.Templates != "" {
			args = append(args, "-t", c.Templates)
		}
		if c.RateLimit > 0 {
			args = append(args, "-rl", itoa(c.RateLimit))
		}
	}
	return "nuclei", args
}

func (n *Nuclei) Timeout(cfg scanjob.JobConfig) time.Duration {
	return cfg.AdapterTimeout()
}

// nucleiResult is one line of nuclei's JSONL output.
type nucleiResult struct {
	TemplateID string `json:"template-id"`
	Host       string `json:"host"`
	MatchedAt  string `json:"matched-at"`
	Info       struct {
		Name     string `json:"name"`
		Severity string `json:"severity"`
	} `json:"info"`
}

// Parse reads JSONL result lines. Identity is the (target, template,
// matched location) triple; severity and title ride as attributes.
func (n *Nuclei) Parse(target string, raw []byte) ([]finding.Finding, error) {
	var findings []finding.Finding
	err := eachLine(raw, func(line string) {
		if !strings.HasPrefix(line, "{") {
			return
		}
		var r nucleiResult
		if err := json.Unmarshal([]byte(line), &r); err != nil || r.TemplateID == "" {
			return
		}
		host := r.Host
		if host == "" {
			host = target
		}
		findings = append(findings, finding.Finding{
			Type:        finding.TypeVulnerability,
			Value:       r.Info.Name,
			Interesting: highSeverity(r.Info.Severity),
			Attributes: map[string]string{
				"target":        host,
				"vulnerability": r.TemplateID,
				"location":      r.MatchedAt,
				"severity":      strings.ToLower(r.Info.Severity),
				"title":         r.Info.Name,
			},
		})
	})
	return findings, err
}

func highSeverity(s string) bool {
	switch strings.ToLower(s) {
	case "high", "critical":
		return true
	}
	return false
}
