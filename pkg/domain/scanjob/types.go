// Package scanjob defines the ScanJob domain entity and types.
// A ScanJob is one requested unit of reconnaissance work against a
// target, of a single job type, executed by a set of tool adapters.
package scanjob

import (
	"fmt"
	"strings"
)

// JobType represents the kind of reconnaissance a job performs.
type JobType string

const (
	JobTypeSubdomainScan     JobType = "subdomain_scan"
	JobTypePortScan          JobType = "port_scan"
	JobTypeContentDiscovery  JobType = "content_discovery"
	JobTypeJSFilesScan       JobType = "js_files_scan"
	JobTypeAPIDiscovery      JobType = "api_discovery"
	JobTypeVulnerabilityScan JobType = "vulnerability_scan"
	JobTypeFullScan          JobType = "full_scan"
	JobTypeLiveHostsScan     JobType = "live_hosts_scan"
)

// AllJobTypes returns all valid job types.
func AllJobTypes() []JobType {
	return []JobType{
		JobTypeSubdomainScan,
		JobTypePortScan,
		JobTypeContentDiscovery,
		JobTypeJSFilesScan,
		JobTypeAPIDiscovery,
		JobTypeVulnerabilityScan,
		JobTypeFullScan,
		JobTypeLiveHostsScan,
	}
}

// ParseJobType parses a string into a JobType.
func ParseJobType(s string) (JobType, error) {
	jt := JobType(strings.ToLower(strings.TrimSpace(s)))
	for _, valid := range AllJobTypes() {
		if jt == valid {
			return jt, nil
		}
	}
	return "", fmt.Errorf("invalid job_type: %q", s)
}

// Status represents the lifecycle state of a scan job.
type Status string

const (
	StatusPending   Status = "pending"
	StatusRunning   Status = "running"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
	StatusCancelled Status = "cancelled"
)

// AllStatuses returns all valid statuses.
func AllStatuses() []Status {
	return []Status{StatusPending, StatusRunning, StatusCompleted, StatusFailed, StatusCancelled}
}

// ParseStatus parses a string into a Status.
func ParseStatus(s string) (Status, error) {
	st := Status(strings.ToLower(strings.TrimSpace(s)))
	for _, valid := range AllStatuses() {
		if st == valid {
			return st, nil
		}
	}
	return "", fmt.Errorf("invalid status: %q", s)
}

// IsTerminal reports whether the status is terminal and immutable.
func (s Status) IsTerminal() bool {
	switch s {
	case StatusCompleted, StatusFailed, StatusCancelled:
		return true
	default:
		return false
	}
}

// Priority controls dispatch order among pending jobs.
type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityMedium Priority = "medium"
	PriorityHigh   Priority = "high"
	PriorityUrgent Priority = "urgent"
)

// AllPriorities returns all valid priorities.
func AllPriorities() []Priority {
	return []Priority{PriorityLow, PriorityMedium, PriorityHigh, PriorityUrgent}
}

// ParsePriority parses a string into a Priority. Empty input defaults
// to medium, matching the persisted column default.
func ParsePriority(s string) (Priority, error) {
	if strings.TrimSpace(s) == "" {
		return PriorityMedium, nil
	}
	p := Priority(strings.ToLower(strings.TrimSpace(s)))
	for _, valid := range AllPriorities() {
		if p == valid {
			return p, nil
		}
	}
	return "", fmt.Errorf("invalid priority: %q", s)
}

// Queue returns the dispatch queue name for this priority.
func (p Priority) Queue() string {
	return string(p)
}
