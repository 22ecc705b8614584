package models

// Rule dialects understood by the corpus loader.
const (
	DialectElastic = "elastic"
	DialectSigma   = "sigma"
)

// Rule is a detection rule flattened for embedding and matching.
type Rule struct {
	Title       string   `json:"title"`
	Description string   `json:"description"`
	Query       string   `json:"query"`
	Tactic      string   `json:"tactic"`
	Technique   string   `json:"technique"`
	TechniqueID string   `json:"technique_id"`
	RiskScore   float64  `json:"risk_score,omitempty"`
	Tags        []string `json:"tags"`
	References  []string `json:"references"`
	File        string   `json:"file"`
	Dialect     string   `json:"dialect,omitempty"`
}

// ParseStats summarizes one corpus load.
type ParseStats struct {
	TotalFiles         int     `json:"total_files"`
	ParsedSuccessfully int     `json:"parsed_successfully"`
	Failed             int     `json:"failed"`
	SuccessRate        float64 `json:"success_rate"`
}

// ParseFailure records one rule file that could not be parsed.
type ParseFailure struct {
	File  string `json:"file"`
	Error string `json:"error"`
}
