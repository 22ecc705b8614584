package grouping

import "alertlens/pkg/models"

// HostUser is the composite label a group is filed under in the nested tree.
func HostUser(g *models.Group) string {
	return g.Host + "/" + g.User
}

// ordered is an insertion-ordered map.
type ordered[V any] struct {
	keys []string
	vals map[string]V
}

func (o *ordered[V]) get(k string, mk func() V) V {
	if o.vals == nil {
		o.vals = make(map[string]V)
	}
	v, ok := o.vals[k]
	if !ok {
		v = mk()
		o.vals[k] = v
		o.keys = append(o.keys, k)
	}
	return v
}

type techniqueNode struct {
	hostUsers ordered[*models.NestedLeaf]
}

type tacticNode struct {
	techniques ordered[*techniqueNode]
}

// Nest files whole groups under tactic, then technique, then host/user and
// returns the leaves in tree order. Each level keeps first-seen order.
func Nest(groups []*models.Group) []models.NestedLeaf {
	var tree ordered[*tacticNode]
	for _, g := range groups {
		tn := tree.get(g.Tactic, func() *tacticNode { return &tacticNode{} })
		qn := tn.techniques.get(g.Technique, func() *techniqueNode { return &techniqueNode{} })
		hu := HostUser(g)
		leaf := qn.hostUsers.get(hu, func() *models.NestedLeaf {
			return &models.NestedLeaf{Tactic: g.Tactic, Technique: g.Technique, HostUser: hu}
		})
		leaf.Groups = append(leaf.Groups, g)
	}

	leaves := make([]models.NestedLeaf, 0, len(groups))
	for _, tk := range tree.keys {
		tn := tree.vals[tk]
		for _, qk := range tn.techniques.keys {
			qn := tn.techniques.vals[qk]
			for _, hk := range qn.hostUsers.keys {
				leaves = append(leaves, *qn.hostUsers.vals[hk])
			}
		}
	}
	return leaves
}

// AlertCount sums the alerts across a leaf's groups.
func AlertCount(leaf models.NestedLeaf) int {
	n := 0
	for _, g := range leaf.Groups {
		n += g.AlertCount
	}
	return n
}
