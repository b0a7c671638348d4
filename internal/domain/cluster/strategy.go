// Package cluster groups raw mentions into opportunity clusters.
//
// Grouping is rule based. A mention's signature is the noun phrase that
// follows the first configured trigger template found in its text, or the
// trigger itself when no phrase follows any of them. Mentions with equal
// signatures share a cluster. Mentions matching no trigger become singletons
// that are routed to manual review.
package cluster

import (
	"sort"

	"github.com/okian/painpoint/internal/domain/model"
)

// SingletonPrefix starts the key of every trigger-less cluster.
const SingletonPrefix = "single:"

// Signature is the grouping key extracted from one mention.
type Signature struct {
	Key     string // canonical words joined by a space
	Trigger string // template that matched
}

// Strategy turns mentions into clusters. The rule based implementation is the
// only one today, the interface keeps the orchestrator independent of it.
type Strategy interface {
	Name() string
	Signature(text string) (Signature, bool)
	Group(mentions []model.RawMention) []*model.Cluster
}

// group is the shared grouping loop over a signature function.
func group(mentions []model.RawMention, sig func(string) (Signature, bool)) []*model.Cluster {
	byKey := make(map[string]*model.Cluster)
	for _, m := range mentions {
		s, ok := sig(m.Content())
		if !ok {
			key := SingletonPrefix + m.Key()
			if _, dup := byKey[key]; dup {
				continue
			}
			c := model.NewCluster(key, "", "")
			c.Add(m)
			byKey[key] = c
			continue
		}
		c, exists := byKey[s.Key]
		if !exists {
			c = model.NewCluster(s.Key, s.Key, s.Trigger)
			byKey[s.Key] = c
		}
		c.Add(m)
	}

	out := make([]*model.Cluster, 0, len(byKey))
	for _, c := range byKey {
		c.Finalize()
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out
}
