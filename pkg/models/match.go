package models

// Match is one ranked rule candidate for an alert. Lower scores are closer.
type Match struct {
	RuleIndex int     `json:"rule_index"`
	Rank      int     `json:"rank"`
	Score     float64 `json:"score"`
	Rule
}

// MatchResult pairs an alert with its nearest rules in ascending score order.
type MatchResult struct {
	Alert   Alert   `json:"alert"`
	Matches []Match `json:"matches"`
}
