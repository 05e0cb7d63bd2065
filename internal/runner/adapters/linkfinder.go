package adapters

import (
	"strings"
	"time"

	"github.com/reconforge/api/pkg/domain/finding"
	"github.com/reconforge/api/pkg/domain/scanjob"
)

// LinkFinder wraps linkfinder, which extracts endpoint references from
// a target's JavaScript. Relative endpoints are resolved against the
// target host.
type LinkFinder struct{}

func (l *LinkFinder) Name() string { return "linkfinder" }

func (l *LinkFinder) JobTypes() []scanjob.JobType {
	return []scanjob.JobType{scanjob.JobTypeJSFilesScan}
}

func (l *LinkFinder) Enabled(cfg scanjob.JobConfig) bool {
	c, ok := cfg.(*scanjob.JSFilesScanConfig)
	return ok && c.UseLinkFinder
}

func (l *LinkFinder) Command(target string, cfg scanjob.JobConfig) (string, []string) {
	return "linkfinder", []string{"-i", "https://" + target, "-d", "-o", "cli"}
}

func (l *LinkFinder) Timeout(cfg scanjob.JobConfig) time.Duration {
	return cfg.AdapterTimeout()
}

// Parse reads one endpoint per line. Script URLs become js_file
// findings, everything else a url finding.
func (l *LinkFinder) Parse(target string, raw []byte) ([]finding.Finding, error) {
	var findings []finding.Finding
	err := eachLine(raw, func(line string) {
		var value string
		switch {
		case strings.HasPrefix(line, "http://"), strings.HasPrefix(line, "https://"):
			value = line
		case strings.HasPrefix(line, "/"):
			value = "https://" + target + line
		default:
			return
		}
		typ := finding.TypeURL
		if strings.HasSuffix(strings.ToLower(trimQuery(value)), ".js") {
			typ = finding.TypeJSFile
		}
		findings = append(findings, finding.Finding{
			Type:  typ,
			Value: value,
			Attributes: map[string]string{
				"source": "javascript",
			},
		})
	})
	return findings, err
}

func trimQuery(u string) string {
	if i := strings.IndexByte(u, '?'); i >= 0 {
		return u[:i]
	}
	return u
}
