package adapters

import (
	"encoding/json"
	"strconv"
	"strings"
	"time"

	"github.com/reconforge/api/pkg/domain/finding"
	"github.com/reconforge/api/pkg/domain/scanjob"
)

// HTTPX wraps projectdiscovery's HTTP prober for live host detection.
type HTTPX struct{}

func (h *HTTPX) Name() string { return "httpx" }

func (h *HTTPX) JobTypes() []scanjob.JobType {
	return []scanjob.JobType{scanjob.JobTypeLiveHostsScan}
}

func (h *HTTPX) Enabled(cfg scanjob.JobConfig) bool {
	c, ok := cfg.(*scanjob.LiveHostsScanConfig)
	return ok && c.UseHTTPX
}

func (h *HTTPX) Command(target string, cfg scanjob.JobConfig) (string, []string) {
	args := []string{"-u", target, "-silent", "-json", "-no-color",
		"-status-code", "-title", "-web-server"}
	if c, ok := cfg.(*scanjob.LiveHostsScanConfig); ok {
		if c.Threads > 0 {
			args = append(args, "-threads", itoa(c.Threads))
		}
		if c.RateLimit > 0 {
			args = append(args, "-rate-limit", itoa(c.RateLimit))
		}
	}
	return "httpx", args
}

func (h *HTTPX) Timeout(cfg scanjob.JobConfig) time.Duration {
	return cfg.AdapterTimeout()
}

// httpxResult is one line of httpx's JSON output.
type httpxResult struct {
	Input      string `json:"input"`
	URL        string `json:"url"`
	Host       string `json:"host"`
	StatusCode int    `json:"status_code"`
	Title      string `json:"title"`
	WebServer  string `json:"webserver"`
}

// Parse reads JSON result lines, one probed host each.
func (h *HTTPX) Parse(target string, raw []byte) ([]finding.Finding, error) {
	var findings []finding.Finding
	err := eachLine(raw, func(line string) {
		if !strings.HasPrefix(line, "{") {
			return
		}
		var r httpxResult
		if err := json.Unmarshal([]byte(line), &r); err != nil {
			return
		}
		host := r.Input
		if host == "" {
			host = r.Host
		}
		if host == "" {
			return
		}
		attrs := map[string]string{
			"status_code": strconv.Itoa(r.StatusCode),
			"url":         r.URL,
		}
		if r.Title != "" {
			attrs["title"] = r.Title
		}
		if r.WebServer != "" {
			attrs["webserver"] = r.WebServer
		}
		findings = append(findings, finding.Finding{
			Type:       finding.TypeLiveHost,
			Value:      host,
			Attributes: attrs,
		})
	})
	return findings, err
}
