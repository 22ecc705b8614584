package summarize

import (
	"fmt"
	"sort"
	"strings"

	"alertlens/pkg/models"
)

// maxSamples caps the alert descriptions quoted in a group prompt.
const maxSamples = 10

const titlesPrompt = "Return ONLY a JSON array (no markdown, no commentary) of exactly %s short, " +
	"distinct risk titles based on the context below.\n\nContext:\n%s"

const detailPrompt = "Return ONLY a JSON object with keys 'what', 'impact', 'mitigation'. " +
	"Each value must be 1–2 plain sentences, no other keys, no markdown. " +
	"Risk title: \"%s\"."

// GroupPrompt builds the executive summary prompt for one group.
func GroupPrompt(tactic, technique, hostUser string, entries []models.GroupEntry) string {
	var samples strings.Builder
	for i, e := range entries {
		if i == maxSamples {
			break
		}
		if i > 0 {
			samples.WriteByte('\n')
		}
		samples.WriteString("- ")
		samples.WriteString(e.Alert.Description)
	}

	return "Summarize the following security alert group in executive terms.\n\n" +
		fmt.Sprintf("MITRE tactic: %s\n", tactic) +
		fmt.Sprintf("Technique: %s\n", technique) +
		fmt.Sprintf("Host/User group: %s\n\n", hostUser) +
		"Example alert details:\n" +
		samples.String() + "\n\n" +
		"Explain what this activity means, the behaviors observed, and what business impact or risk it may imply."
}

// BuildContext renders group summaries as a bullet list, largest groups
// first. Equal counts keep input order.
func BuildContext(summaries []models.GroupSummary) string {
	sorted := append([]models.GroupSummary(nil), summaries...)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].AlertCount > sorted[j].AlertCount
	})

	lines := make([]string, len(sorted))
	for i, g := range sorted {
		lines[i] = fmt.Sprintf("- [%d alerts] %s/%s on %s: %s", g.AlertCount, g.Tactic, g.Technique, g.HostUser, g.Summary)
	}
	return strings.Join(lines, "\n")
}

// TitlesPrompt asks for exactly n risk titles.
func TitlesPrompt(digest string, n int) string {
	return fmt.Sprintf(titlesPrompt, countWord(n), digest)
}

// DetailPrompt asks for the what/impact/mitigation record of one title.
func DetailPrompt(title string) string {
	return fmt.Sprintf(detailPrompt, title)
}

var countWords = []string{"zero", "one", "two", "three", "four", "five", "six", "seven", "eight", "nine", "ten"}

func countWord(n int) string {
	if n >= 0 && n < len(countWords) {
		return countWords[n]
	}
	return fmt.Sprintf("%d", n)
}
