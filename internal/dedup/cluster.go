package dedup

import "sort"

type ClusterKind string

const (
	ClusterExact ClusterKind = "exact"
	ClusterNear  ClusterKind = "near"
)

// Cluster is a set of records folded into one. Members holds original record
// indexes in ascending order; Canonical is always Members[0].
type Cluster struct {
	Kind      ClusterKind `json:"kind" yaml:"kind"`
	Canonical int         `json:"canonical" yaml:"canonical"`
	Members   []int       `json:"members" yaml:"members"`
}

// Duplicates returns the members dropped in favor of the canonical record.
func (cluster Cluster) Duplicates() []int {
	if len(cluster.Members) <= 1 {
		return nil
	}
	return cluster.Members[1:]
}

func (cluster Cluster) Size() int {
	return len(cluster.Members)
}

func sortClusters(clusters []Cluster) {
	sort.Slice(clusters, func(left int, right int) bool {
		return clusters[left].Canonical < clusters[right].Canonical
	})
}
