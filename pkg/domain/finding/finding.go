// Package finding defines the normalized discovery records produced by
// tool adapters and the aggregated per-job result set.
package finding

import "slices"

// Type classifies a normalized discovery record.
type Type string

const (
	TypeSubdomain     Type = "subdomain"
	TypeOpenPort      Type = "open_port"
	TypeURL           Type = "url"
	TypeJSFile        Type = "js_file"
	TypeVulnerability Type = "vulnerability"
	TypeLiveHost      Type = "live_host"
)

// Finding is one normalized discovered fact. Adapters emit findings
// with Value and Attributes populated; the aggregator computes Key,
// merges Tools, and sets the Interesting flag.
type Finding struct {
	// Type of the discovered entity.
	Type Type `json:"type"`

	// Value is the primary raw value as reported by the tool
	// (hostname, URL, "host:port/proto", vulnerability title).
	Value string `json:"value"`

	// Key is the canonicalized identity used for deduplication.
	// Set by the aggregator.
	Key string `json:"key,omitempty"`

	// Tools lists the adapters that reported this entity, sorted.
	Tools []string `json:"tools,omitempty"`

	// Interesting is set when any adapter flags the entity or its
	// canonical value matches the configured keyword list.
	Interesting bool `json:"is_interesting"`

	// FirstSeen marks an entity not present in earlier scans of the
	// same target.
	FirstSeen bool `json:"first_seen"`

	// Attributes carries type-specific fields (port, protocol,
	// status_code, severity, query, ...). Keys are stable so that
	// serialized results are deterministic.
	Attributes map[string]string `json:"attributes,omitempty"`
}

// ToolStat records one adapter's contribution to an aggregated result.
type ToolStat struct {
	// Findings is the number of raw findings the adapter reported.
	Findings int `json:"findings"`

	// Status is "ok" or "failed".
	Status string `json:"status"`

	// Error holds the failure reason for failed adapters.
	Error string `json:"error,omitempty"`
}

// Tool statuses.
const (
	ToolStatusOK     = "ok"
	ToolStatusFailed = "failed"
)

// AggregatedResult is the deduplicated union of findings from all
// adapters of one job. Serialization is deterministic: findings are
// sorted by (type, key) and maps marshal with sorted keys, so
// aggregating the same finding multiset always yields identical bytes.
type AggregatedResult struct {
	JobType          string              `json:"job_type"`
	Findings         []Finding           `json:"findings"`
	TotalUnique      int                 `json:"total_unique"`
	InterestingCount int                 `json:"interesting_count"`
	Tools            map[string]ToolStat `json:"tools"`
	Warnings         []string            `json:"warnings,omitempty"`
}

// FailedTools returns the names of adapters that failed, sorted.
func (r *AggregatedResult) FailedTools() []string {
	var failed []string
	for name, stat := range r.Tools {
		if stat.Status == ToolStatusFailed {
			failed = append(failed, name)
		}
	}
	slices.Sort(failed)
	return failed
}
