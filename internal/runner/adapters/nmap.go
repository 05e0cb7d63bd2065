package adapters

import (
	"strings"
	"time"

	"github.com/reconforge/api/pkg/domain/finding"
	"github.com/reconforge/api/pkg/domain/scanjob"
)

// Nmap wraps nmap using grepable output, which is stable across nmap
// versions and trivially line-oriented.
type Nmap struct{}

func (n *Nmap) Name() string { return "nmap" }

func (n *Nmap) JobTypes() []scanjob.JobType {
	return []scanjob.JobType{scanjob.JobTypePortScan, scanjob.JobTypeFullScan}
}

func (n *Nmap) Enabled(cfg scanjob.JobConfig) bool {
	switch c := cfg.(type) {
	case *scanjob.PortScanConfig:
		return c.UseNmap
	case *scanjob.FullScanConfig:
		return c.UseNmap
	}
	return false
}

func (n *Nmap) Command(target string, cfg scanjob.JobConfig) (string, []string) {
	args := []string{"-Pn", "-T4", "-oG", "-"}
	if c, ok := cfg.(*scanjob.PortScanConfig); ok {
		switch {
		case c.Ports != "":
			args = append(args, "-p", c.Ports)
		case c.TopPorts > 0:
			args = append(args, "--top-ports", itoa(c.TopPorts))
		default:
			args = append(args, "--top-ports", "1000")
		}
	} else {
		args = append(args, "--top-ports", "1000")
	}
	return "nmap", append(args, target)
}

func (n *Nmap) Timeout(cfg scanjob.JobConfig) time.Duration {
	return cfg.AdapterTimeout()
}

// Parse reads grepable output lines of the form
//
//	Host: 1.2.3.4 (host.example.com)  Ports: 80/open/tcp//http///, 443/open/tcp//https///
//
// Only open ports are reported.
func (n *Nmap) Parse(target string, raw []byte) ([]finding.Finding, error) {
	var findings []finding.Finding
	err := eachLine(raw, func(line string) {
		if !strings.HasPrefix(line, "Host:") {
			return
		}
		_, ports, ok := strings.Cut(line, "Ports:")
		if !ok {
			return
		}
		host := hostFromGrepable(line, target)
		for _, entry := range strings.Split(ports, ",") {
			fields := strings.Split(strings.TrimSpace(entry), "/")
			if len(fields) < 3 || fields[1] != "open" {
				continue
			}
			attrs := map[string]string{
				"host":     host,
				"port":     fields[0],
				"protocol": fields[2],
			}
			if len(fields) >= 5 && fields[4] != "" {
				attrs["service"] = fields[4]
			}
			findings = append(findings, finding.Finding{
				Type:       finding.TypeOpenPort,
				Value:      host + ":" + fields[0] + "/" + fields[2],
				Attributes: attrs,
			})
		}
	})
	return findings, err
}

// hostFromGrepable prefers the reverse name in parentheses over the
// address so port identities line up with hostname findings.
func hostFromGrepable(line, fallback string) string {
	rest := strings.TrimSpace(strings.TrimPrefix(line, "Host:"))
	addr, tail, _ := strings.Cut(rest, " ")
	if open := strings.IndexByte(tail, '('); open >= 0 {
		if end := strings.IndexByte(tail, ')'); end > open+1 {
			return tail[open+1 : end]
		}
	}
	if addr != "" {
		return addr
	}
	return fallback
}
