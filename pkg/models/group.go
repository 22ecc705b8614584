package models

// GroupEntry is one alert and the rule it was correlated with.
type GroupEntry struct {
	Alert       Alert   `json:"alert"`
	MatchedRule Rule    `json:"matched_rule"`
	Score       float64 `json:"score"`
}

// Group buckets entries sharing the same host, user and tactic.
type Group struct {
	GroupID    string       `json:"group_id"`
	Host       string       `json:"host"`
	User       string       `json:"user"`
	Tactic     string       `json:"tactic"`
	Technique  string       `json:"technique"`
	AlertCount int          `json:"alert_count"`
	Entries    []GroupEntry `json:"entries"`
}

// NestedLeaf is one tactic/technique/host_user bucket of the nested tree.
type NestedLeaf struct {
	Tactic    string   `json:"tactic"`
	Technique string   `json:"technique"`
	HostUser  string   `json:"host_user"`
	Groups    []*Group `json:"groups"`
}
