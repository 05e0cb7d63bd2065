package adapters

import (
	"strings"
	"time"

	"github.com/reconforge/api/pkg/domain/finding"
	"github.com/reconforge/api/pkg/domain/scanjob"
)

// Waymore wraps the waymore archive URL collector. It queries web
// archives without touching the target, so it carries no rate limit.
type Waymore struct{}

func (w *Waymore) Name() string { return "waymore" }

func (w *Waymore) JobTypes() []scanjob.JobType {
	return []scanjob.JobType{
		scanjob.JobTypeContentDiscovery,
		scanjob.JobTypeAPIDiscovery,
		scanjob.JobTypeFullScan,
	}
}

func (w *Waymore) Enabled(cfg scanjob.JobConfig) bool {
	switch c := cfg.(type) {
	case *scanjob.ContentDiscoveryConfig:
		return c.UseWaymore
	case *scanjob.APIDiscoveryConfig:
		return c.UseWaymore
	case *scanjob.FullScanConfig:
		return c.UseWaymore
	}
	return false
}

func (w *Waymore) Command(target string, cfg scanjob.JobConfig) (string, []string) {
	return "waymore", []string{"-i", target, "-mode", "U", "-oU", "/dev/stdout"}
}

func (w *Waymore) Timeout(cfg scanjob.JobConfig) time.Duration {
	return cfg.AdapterTimeout()
}

// Parse reads one archived URL per line.
func (w *Waymore) Parse(target string, raw []byte) ([]finding.Finding, error) {
	return w.parse(raw, nil)
}

// ParseWithConfig narrows the archive dump to API-shaped paths when
// the job is an API discovery run; other job types keep every URL.
func (w *Waymore) ParseWithConfig(target string, cfg scanjob.JobConfig, raw []byte) ([]finding.Finding, error) {
	if _, ok := cfg.(*scanjob.APIDiscoveryConfig); ok {
		return w.parse(raw, apiPath)
	}
	return w.parse(raw, nil)
}

func (w *Waymore) parse(raw []byte, keep func(string) bool) ([]finding.Finding, error) {
	var findings []finding.Finding
	err := eachLine(raw, func(line string) {
		if !strings.HasPrefix(line, "http://") && !strings.HasPrefix(line, "https://") {
			return
		}
		if keep != nil && !keep(line) {
			return
		}
		findings = append(findings, finding.Finding{
			Type:  finding.TypeURL,
			Value: line,
			Attributes: map[string]string{
				"source": "archive",
			},
		})
	})
	return findings, err
}

// apiPath reports whether an archived URL looks like an API endpoint:
// an /api or /rest segment, a graphql path, a versioned path segment
// or a .json document.
func apiPath(rawURL string) bool {
	u := strings.ToLower(rawURL)
	if i := strings.IndexAny(u, "?#"); i >= 0 {
		u = u[:i]
	}
	u = strings.TrimPrefix(strings.TrimPrefix(u, "https://"), "http://")
	path := "/"
	if i := strings.Index(u, "/"); i >= 0 {
		path = u[i:]
	}
	if strings.HasSuffix(path, ".json") || strings.Contains(path, "graphql") {
		return true
	}
	for _, seg := range strings.Split(path, "/") {
		switch {
		case seg == "api" || seg == "rest":
			return true
		case len(seg) >= 2 && seg[0] == 'v' && isDigits(seg[1:]):
			return true
		}
	}
	return false
}

func isDigits(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
