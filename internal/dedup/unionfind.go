package dedup

// unionFind is a disjoint-set forest over dense ids 0..n-1 stored as index
// arrays. Each root also tracks the lowest id in its set, which is the
// canonical member. It is not safe for concurrent use.
type unionFind struct {
	parent []int
	rank   []int
	lowest []int
}

func newUnionFind(size int) *unionFind {
	set := &unionFind{
		parent: make([]int, size),
		rank:   make([]int, size),
		lowest: make([]int, size),
	}
	for id := 0; id < size; id++ {
		set.parent[id] = id
		set.lowest[id] = id
	}
	return set
}

func (set *unionFind) find(id int) int {
	root := id
	for set.parent[root] != root {
		root = set.parent[root]
	}
	// Path compression
	for set.parent[id] != root {
		next := set.parent[id]
		set.parent[id] = root
		id = next
	}
	return root
}

// union merges the sets of left and right and reports whether they were
// disjoint before the call.
func (set *unionFind) union(left int, right int) bool {
	rootLeft := set.find(left)
	rootRight := set.find(right)
	if rootLeft == rootRight {
		return false
	}

	if set.rank[rootLeft] < set.rank[rootRight] {
		rootLeft, rootRight = rootRight, rootLeft
	}
	set.parent[rootRight] = rootLeft
	if set.rank[rootLeft] == set.rank[rootRight] {
		set.rank[rootLeft]++
	}
	if set.lowest[rootRight] < set.lowest[rootLeft] {
		set.lowest[rootLeft] = set.lowest[rootRight]
	}
	return true
}

func (set *unionFind) connected(left int, right int) bool {
	return set.find(left) == set.find(right)
}

// canonical returns the lowest id in the set containing id.
func (set *unionFind) canonical(id int) int {
	return set.lowest[set.find(id)]
}

// groups returns every set with at least two members, keyed by canonical id,
// members in ascending order.
func (set *unionFind) groups() map[int][]int {
	groups := map[int][]int{}
	for id := range set.parent {
		canonical := set.canonical(id)
		groups[canonical] = append(groups[canonical], id)
	}
	for canonical, members := range groups {
		if len(members) < 2 {
			delete(groups, canonical)
		}
	}
	return groups
}
