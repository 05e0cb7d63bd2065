package adapters

import (
	"net"
	"time"

	"github.com/reconforge/api/pkg/domain/finding"
	"github.com/reconforge/api/pkg/domain/scanjob"
)

// Naabu wraps projectdiscovery's fast SYN port scanner.
type Naabu struct{}

func (n *Naabu) Name() string { return "naabu" }

func (n *Naabu) JobTypes() []scanjob.JobType {
	return []scanjob.JobType{scanjob.JobTypePortScan}
}

func (n *Naabu) Enabled(cfg scanjob.JobConfig) bool {
	c, ok := cfg.(*scanjob.PortScanConfig)
	return ok && c.UseNaabu
}

func (n *Naabu) Command(target string, cfg scanjob.JobConfig) (string, []string) {
	args := []string{"-host", target, "-silent"}
	if c, ok := cfg.(*scanjob.PortScanConfig); ok {
		switch {
		case c.Ports != "":
			args = append(args, "-p", c.Ports)
		case c.TopPorts > 0:
			args = append(args, "-top-ports", itoa(c.TopPorts))
		}
		if c.RateLimit > 0 {
			args = append(args, "-rate", itoa(c.RateLimit))
		}
	}
	return "naabu", args
}

func (n *Naabu) Timeout(cfg scanjob.JobConfig) time.Duration {
	return cfg.AdapterTimeout()
}

// Parse reads "host:port" lines. Naabu only probes TCP.
func (n *Naabu) Parse(target string, raw []byte) ([]finding.Finding, error) {
	var findings []finding.Finding
	err := eachLine(raw, func(line string) {
		host, port, err := net.SplitHostPort(line)
		if err != nil || host == "" || port == "" {
			return
		}
		findings = append(findings, finding.Finding{
			Type:  finding.TypeOpenPort,
			Value: host + ":" + port + "/tcp",
			Attributes: map[string]string{
				"host":     host,
				"port":     port,
				"protocol": "tcp",
			},
		})
	})
	return findings, err
}
