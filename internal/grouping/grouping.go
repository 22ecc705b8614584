// Package grouping folds matched alerts into a stable host/user/tactic
// hierarchy.
package grouping

import (
	"fmt"
	"strings"

	"alertlens/pkg/models"
)

// Pairing modes for Pairs.
const (
	PairBest = "best"
	PairAll  = "all"
)

const (
	unknownHost      = "unknown_host"
	unknownUser      = "unknown_user"
	unknownTactic    = "unknown_tactic"
	unknownTechnique = "unknown_technique"
)

// Key identifies a group. Two keys are equal iff all fields are equal.
type Key struct {
	Host   string
	User   string
	Tactic string
}

// KeyOf derives the grouping key from the alert alone. Blank fields key as
// unknown_<field>.
func KeyOf(alert models.Alert) Key {
	return Key{
		Host:   norm(alert.Host, unknownHost),
		User:   norm(alert.User, unknownUser),
		Tactic: norm(alert.Tactic, unknownTactic),
	}
}

// ID renders the key as a group identifier.
func (k Key) ID() string {
	return fmt.Sprintf("host-%s_user-%s_tactic-%s", k.Host, k.User, k.Tactic)
}

// Grouper accumulates entries into groups. Groups come out in the order
// their keys were first seen; entries keep insertion order.
type Grouper struct {
	order []*models.Group
	byKey map[Key]*models.Group
}

// NewGrouper returns an empty accumulator.
func NewGrouper() *Grouper {
	return &Grouper{byKey: make(map[Key]*models.Group)}
}

// Add appends entry to its group, creating the group on first sight.
func (g *Grouper) Add(entry models.GroupEntry) {
	key := KeyOf(entry.Alert)
	grp, ok := g.byKey[key]
	if !ok {
		grp = &models.Group{
			GroupID:   key.ID(),
			Host:      key.Host,
			User:      key.User,
			Tactic:    key.Tactic,
			Technique: techniqueOf(entry),
			Entries:   make([]models.GroupEntry, 0, 4),
		}
		g.byKey[key] = grp
		g.order = append(g.order, grp)
	}
	grp.Entries = append(grp.Entries, entry)
	grp.AlertCount = len(grp.Entries)
}

// Groups returns the groups accumulated so far.
func (g *Grouper) Groups() []*models.Group {
	out := make([]*models.Group, len(g.order))
	copy(out, g.order)
	return out
}

// Len returns the number of groups.
func (g *Grouper) Len() int {
	return len(g.order)
}

// Group folds entries into groups.
func Group(entries []models.GroupEntry) []*models.Group {
	g := NewGrouper()
	for _, e := range entries {
		g.Add(e)
	}
	return g.Groups()
}

// Pairs flattens match results into group entries. In best mode only the
// top match of each alert is used; in all mode every match is. An alert
// with no matches is kept with an empty rule and a zero score.
func Pairs(results []models.MatchResult, mode string) ([]models.GroupEntry, error) {
	switch mode {
	case "", PairBest, PairAll:
	default:
		return nil, fmt.Errorf("unknown pairing mode %q (want %s or %s)", mode, PairBest, PairAll)
	}

	out := make([]models.GroupEntry, 0, len(results))
	for _, res := range results {
		if len(res.Matches) == 0 {
			out = append(out, models.GroupEntry{Alert: res.Alert, MatchedRule: models.Rule{}, Score: 0})
			continue
		}
		for i, m := range res.Matches {
			if i > 0 && mode != PairAll {
				break
			}
			out = append(out, models.GroupEntry{Alert: res.Alert, MatchedRule: m.Rule, Score: m.Score})
		}
	}
	return out, nil
}

func techniqueOf(e models.GroupEntry) string {
	t := e.Alert.Technique
	if strings.TrimSpace(t) == "" {
		t = e.MatchedRule.Technique
	}
	return norm(t, unknownTechnique)
}

func norm(s, placeholder string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" {
		return placeholder
	}
	return s
}
