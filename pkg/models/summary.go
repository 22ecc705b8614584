package models

// GroupSummary is the executive summary produced for one group.
type GroupSummary struct {
	Tactic     string `json:"tactic"`
	Technique  string `json:"technique"`
	HostUser   string `json:"host_user"`
	AlertCount int    `json:"alert_count"`
	Summary    string `json:"summary"`
}

// Takeaway is one validated organization-level risk item.
type Takeaway struct {
	Title      string `json:"title" validate:"notblank"`
	What       string `json:"what" validate:"notblank"`
	Impact     string `json:"impact" validate:"notblank"`
	Mitigation string `json:"mitigation" validate:"notblank"`
}
