package adapters

import (
	"strings"
	"time"

	"github.com/reconforge/api/pkg/domain/finding"
	"github.com/reconforge/api/pkg/domain/scanjob"
)

// GetJS wraps getJS, which extracts JavaScript file references from a
// target's pages.
type GetJS struct{}

func (g *GetJS) Name() string { return "getjs" }

func (g *GetJS) JobTypes() []scanjob.JobType {
	return []scanjob.JobType{scanjob.JobTypeJSFilesScan}
}

func (g *GetJS) Enabled(cfg scanjob.JobConfig) bool {
	c, ok := cfg.(*scanjob.JSFilesScanConfig)
	return ok && c.UseGetJS
}

func (g *GetJS) Command(target string, cfg scanjob.JobConfig) (string, []string) {
	return "getJS", []string{"--url", "https://" + target, "--complete"}
}

func (g *GetJS) Timeout(cfg scanjob.JobConfig) time.Duration {
	return cfg.AdapterTimeout()
}

// Parse reads one script URL per line.
func (g *GetJS) Parse(target string, raw []byte) ([]finding.Finding, error) {
	var findings []finding.Finding
	err := eachLine(raw, func(line string) {
		if !strings.HasPrefix(line, "http://") && !strings.HasPrefix(line, "https://") {
			return
		}
		findings = append(findings, finding.Finding{
			Type:  finding.TypeJSFile,
			Value: line,
		})
	})
	return findings, err
}
