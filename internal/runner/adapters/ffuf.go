package adapters

import (
	"encoding/json"
	"strconv"
	"strings"
	"time"

	"github.com/reconforge/api/pkg/domain/finding"
	"github.com/reconforge/api/pkg/domain/scanjob"
)

// defaultWordlist is used when the job config does not name one.
const defaultWordlist = "/usr/share/wordlists/content-discovery.txt"

// apiWordlist targets common API route naming.
const apiWordlist = "/usr/share/wordlists/api-endpoints.txt"

// Ffuf wraps the ffuf web fuzzer for content and API discovery.
type Ffuf struct{}

func (f *Ffuf) Name() string { return "ffuf" }

func (f *Ffuf) JobTypes() []scanjob.JobType {
	return []scanjob.JobType{
		scanjob.JobTypeContentDiscovery,
		scanjob.JobTypeAPIDiscovery,
		scanjob.JobTypeFullScan,
	}
}

func (f *Ffuf) Enabled(cfg scanjob.JobConfig) bool {
	switch c := cfg.(type) {
	case *scanjob.ContentDiscoveryConfig:
		return c.UseFfuf
	case *scanjob.APIDiscoveryConfig:
		return c.UseFfuf
	case *scanjob.FullScanConfig:
		return c.UseFfuf
	}
	return false
}

func (f *Ffuf) Command(target string, cfg scanjob.JobConfig) (string, []string) {
	url := "https://" + target + "/FUZZ"
	args := []string{"-u", url, "-json", "-noninteractive"}

	switch c := cfg.(type) {
	case *scanjob.ContentDiscoveryConfig:
		args = append(args, "-w", orDefault(c.Wordlist, defaultWordlist))
		if len(c.MatchCodes) > 0 {
			args = append(args, "-mc", joinInts(c.MatchCodes))
		}
		if c.Threads > 0 {
			args = append(args, "-t", itoa(c.Threads))
		}
		if c.MaxDepth > 0 {
			args = append(args, "-recursion", "-recursion-depth", itoa(c.MaxDepth))
		}
		if c.RateLimit > 0 {
			args = append(args, "-rate", itoa(c.RateLimit))
		}
	case *scanjob.APIDiscoveryConfig:
		args = append(args, "-w", orDefault(c.Wordlist, apiWordlist))
		args = append(args, "-mc", "200,201,204,301,302,401,403,405")
		if c.Threads > 0 {
			args = append(args, "-t", itoa(c.Threads))
		}
		if c.RateLimit > 0 {
			args = append(args, "-rate", itoa(c.RateLimit))
		}
	case *scanjob.FullScanConfig:
		args = append(args, "-w", orDefault(c.Wordlist, defaultWordlist))
		if c.Threads > 0 {
			args = append(args, "-t", itoa(c.Threads))
		}
	}
	return "ffuf", args
}

func (f *Ffuf) Timeout(cfg scanjob.JobConfig) time.Duration {
	return cfg.AdapterTimeout()
}

// ffufResult is one line of ffuf's newline-delimited JSON output.
type ffufResult struct {
	URL    string `json:"url"`
	Status int    `json:"status"`
	Length int    `json:"length"`
	Words  int    `json:"words"`
}

// Parse reads NDJSON result lines. Non-JSON banner lines are skipped.
func (f *Ffuf) Parse(target string, raw []byte) ([]finding.Finding, error) {
	var findings []finding.Finding
	err := eachLine(raw, func(line string) {
		if !strings.HasPrefix(line, "{") {
			return
		}
		var r ffufResult
		if err := json.Unmarshal([]byte(line), &r); err != nil || r.URL == "" {
			return
		}
		findings = append(findings, finding.Finding{
			Type:  finding.TypeURL,
			Value: r.URL,
			Attributes: map[string]string{
				"status_code":    strconv.Itoa(r.Status),
				"content_length": strconv.Itoa(r.Length),
			},
		})
	})
	return findings, err
}

func orDefault(v, def string) string {
	if v == "" {
		return def
	}
	return v
}

func joinInts(ns []int) string {
	parts := make([]string, len(ns))
	for i, n := range ns {
		parts[i] = strconv.Itoa(n)
	}
	return strings.Join(parts, ",")
}
