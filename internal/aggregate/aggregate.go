// Package aggregate merges the findings of many tool adapters into one
// deduplicated result set per job.
//
// Aggregation is deterministic: adapter reports are processed in tool
// name order and the output findings are sorted by (type, key), so
// aggregating an identical finding multiset always produces identical
// bytes regardless of completion order. Partial-progress snapshots and
// retries therefore stay consistent.
package aggregate

import (
	"fmt"
	"sort"
	"strings"

	"github.com/reconforge/api/pkg/domain/finding"
	"github.com/reconforge/api/pkg/domain/scanjob"
)

// Input is one adapter's report: either a list of normalized findings
// or a failure. A failed adapter contributes zero findings and is
// recorded in the per-tool stats; it never fails the job by itself.
type Input struct {
	Tool     string
	Findings []finding.Finding
	Err      error
}

// Options configures aggregation.
type Options struct {
	// Keywords flag findings whose canonical value contains any of
	// the entries (case-insensitive). Policy input, not hardcoded.
	Keywords []string
}

// Aggregate merges adapter reports into a deduplicated result.
func Aggregate(jobType scanjob.JobType, inputs []Input, opts Options) *finding.AggregatedResult {
	// Sort a copy of the inputs by tool name so merge order does not
	// depend on adapter completion order.
	sorted := make([]Input, len(inputs))
	copy(sorted, inputs)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Tool < sorted[j].Tool })

	merged := make(map[string]*finding.Finding)
	tools := make(map[string]finding.ToolStat, len(sorted))
	var warnings []string

	for _, in := range sorted {
		if in.Err != nil {
			tools[in.Tool] = finding.ToolStat{
				Status: finding.ToolStatusFailed,
				Error:  in.Err.Error(),
			}
			warnings = append(warnings, fmt.Sprintf("adapter %s failed: %v", in.Tool, in.Err))
			continue
		}

		tools[in.Tool] = finding.ToolStat{
			Findings: len(in.Findings),
			Status:   finding.ToolStatusOK,
		}

		for _, f := range in.Findings {
			canon := canonicalize(f)
			if canon.Key == "" {
				continue
			}
			existing, ok := merged[canon.Key]
			if !ok {
				canon.Tools = []string{in.Tool}
				merged[canon.Key] = &canon
				continue
			}
			mergeInto(existing, &canon, in.Tool)
		}
	}

	keys := make([]string, 0, len(merged))
	for k := range merged {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	findings := make([]finding.Finding, 0, len(keys))
	interesting := 0
	for _, k := range keys {
		f := merged[k]
		f.Interesting = f.Interesting || matchesKeywords(f.Key, opts.Keywords)
		if f.Interesting {
			interesting++
		}
		findings = append(findings, *f)
	}

	return &finding.AggregatedResult{
		JobType:          string(jobType),
		Findings:         findings,
		TotalUnique:      len(findings),
		InterestingCount: interesting,
		Tools:            tools,
		Warnings:         warnings,
	}
}

// canonicalize computes the identity key and canonical value for one
// raw finding, per type:
//
//   - hostnames compare lowercased (subdomains, live hosts)
//   - URLs compare by scheme+host+path, trailing slash trimmed and
//     query excluded (retained as an attribute)
//   - ports compare by (host, port, protocol)
//   - vulnerabilities compare by (target, type, evidence location)
func canonicalize(f finding.Finding) finding.Finding {
	out := f
	if out.Attributes == nil {
		out.Attributes = map[string]string{}
	} else {
		attrs := make(map[string]string, len(out.Attributes))
		for k, v := range out.Attributes {
			attrs[k] = v
		}
		out.Attributes = attrs
	}

	switch f.Type {
	case finding.TypeSubdomain, finding.TypeLiveHost:
		host := CanonicalHost(f.Value)
		out.Value = host
		out.Key = string(f.Type) + ":" + host
	case finding.TypeURL, finding.TypeJSFile:
		canon, query := CanonicalURL(f.Value)
		out.Value = canon
		out.Key = string(f.Type) + ":" + canon
		if query != "" && out.Attributes["query"] == "" {
			out.Attributes["query"] = query
		}
	case finding.TypeOpenPort:
		host := f.Attributes["host"]
		if host == "" {
			host = f.Value
		}
		key := PortKey(host, f.Attributes["port"], f.Attributes["protocol"])
		out.Value = key
		out.Key = string(f.Type) + ":" + key
	case finding.TypeVulnerability:
		key := VulnKey(f.Attributes["target"], f.Attributes["vulnerability"], f.Attributes["location"])
		out.Key = string(f.Type) + ":" + key
	default:
		out.Key = ""
	}
	return out
}

// mergeInto unions incoming into existing: tool sets are combined,
// attributes prefer the non-empty value (first tool in name order wins
// on conflict), and flags are OR-ed. Nothing is counted twice.
func mergeInto(existing, incoming *finding.Finding, tool string) {
	if !containsString(existing.Tools, tool) {
		existing.Tools = append(existing.Tools, tool)
		sort.Strings(existing.Tools)
	}
	for k, v := range incoming.Attributes {
		if v != "" && existing.Attributes[k] == "" {
			existing.Attributes[k] = v
		}
	}
	existing.Interesting = existing.Interesting || incoming.Interesting
	existing.FirstSeen = existing.FirstSeen || incoming.FirstSeen
}

func matchesKeywords(key string, keywords []string) bool {
	if len(keywords) == 0 {
		return false
	}
	lower := strings.ToLower(key)
	for _, kw := range keywords {
		if kw != "" && strings.Contains(lower, strings.ToLower(kw)) {
			return true
		}
	}
	return false
}

func containsString(s []string, v string) bool {
	for _, x := range s {
		if x == v {
			return true
		}
	}
	return false
}
