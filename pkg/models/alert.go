package models

// Alert is a security alert after field coalescing.
type Alert struct {
	Source      string `json:"source"`
	AlertID     string `json:"alert_id"`
	Title       string `json:"title"`
	Tactic      string `json:"tactic"`
	Technique   string `json:"technique"`
	TechniqueID string `json:"technique_id"`
	Process     string `json:"process"`
	Host        string `json:"host"`
	User        string `json:"user"`
	Timestamp   string `json:"timestamp"`
	Description string `json:"description"`
}
