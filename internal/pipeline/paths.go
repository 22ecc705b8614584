package pipeline

import "path/filepath"

// Paths are the artifacts exchanged between stages.
type Paths struct {
	ParsedRules   string
	ParseFailures string
	ParseStats    string
	Index         string
	Normalized    string
	Matches       string
	Grouped       string
	Nested        string
	Summaries     string
	Takeaways     string
	TakeawaysText string
	TakeawaysHTML string
}

// PathsFor lays the artifacts out under dir.
func PathsFor(dir string) Paths {
	j := func(name string) string { return filepath.Join(dir, name) }
	return Paths{
		ParsedRules:   j("parsed_rules.jsonl"),
		ParseFailures: j("parse_failures.json"),
		ParseStats:    j("parse_stats.json"),
		Index:         j("rule_index.db"),
		Normalized:    j("normalized_alerts.jsonl"),
		Matches:       j("alert_matches.jsonl"),
		Grouped:       j("grouped_matches.jsonl"),
		Nested:        j("nested_grouped_matches.jsonl"),
		Summaries:     j("group_summaries.jsonl"),
		Takeaways:     j("takeaways.jsonl"),
		TakeawaysText: j("takeaways.txt"),
		TakeawaysHTML: j("takeaways.html"),
	}
}
