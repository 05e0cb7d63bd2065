// Package runner executes external reconnaissance tools for a scan job
// with bounded parallelism, per-tool timeouts and cooperative
// cancellation, then hands the normalized output to the aggregator.
package runner

import (
	"fmt"
	"sort"
	"time"

	"github.com/reconforge/api/pkg/domain/finding"
	"github.com/reconforge/api/pkg/domain/scanjob"
)

// Adapter wraps one external tool: it builds the command line for a
// target and parses the tool's raw output into normalized findings.
// Adapters are stateless and safe for concurrent use.
type Adapter interface {
	// Name is the tool name as it appears in results ("subfinder").
	Name() string

	// JobTypes lists the job types this adapter can serve.
	JobTypes() []scanjob.JobType

	// Enabled reports whether the job config selects this adapter.
	Enabled(cfg scanjob.JobConfig) bool

	// Command returns the binary and arguments to invoke for target.
	Command(target string, cfg scanjob.JobConfig) (bin string, args []string)

	// Timeout returns the per-invocation deadline for this adapter
	// under the given config.
	Timeout(cfg scanjob.JobConfig) time.Duration

	// Parse converts the tool's raw stdout into findings. Parse is
	// called only after a zero exit; it should tolerate blank lines
	// and banner noise.
	Parse(target string, raw []byte) ([]finding.Finding, error)
}

// ConfigParser is implemented by adapters whose output filtering
// depends on the job config. The pool prefers it over Parse.
type ConfigParser interface {
	ParseWithConfig(target string, cfg scanjob.JobConfig, raw []byte) ([]finding.Finding, error)
}

// Registry resolves the adapters for a job type.
type Registry struct {
	byType map[scanjob.JobType][]Adapter
}

// NewRegistry builds a registry from the given adapters.
func NewRegistry(adapters ...Adapter) *Registry {
	r := &Registry{byType: make(map[scanjob.JobType][]Adapter)}
	for _, a := range adapters {
		for _, jt := range a.JobTypes() {
			r.byType[jt] = append(r.byType[jt], a)
		}
	}
	for _, list := range r.byType {
		sort.Slice(list, func(i, j int) bool { return list[i].Name() < list[j].Name() })
	}
	return r
}

// ForJob returns the adapters enabled by cfg for the job type, in name
// order. An error is returned when the config enables no adapter;
// callers treat that as a validation failure, not a scan failure.
func (r *Registry) ForJob(jobType scanjob.JobType, cfg scanjob.JobConfig) ([]Adapter, error) {
	all := r.byType[jobType]
	if len(all) == 0 {
		return nil, fmt.Errorf("no adapters registered for job type %q", jobType)
	}
	var enabled []Adapter
	for _, a := range all {
		if a.Enabled(cfg) {
			enabled = append(enabled, a)
		}
	}
	if len(enabled) == 0 {
		return nil, fmt.Errorf("job config enables no adapter for job type %q", jobType)
	}
	return enabled, nil
}
