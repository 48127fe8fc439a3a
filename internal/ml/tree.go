package ml

import (
	"math"
	"math/rand"
	"sort"
)

// node is either a split (x[feature] <= threshold goes left) or a leaf
// holding a class index.
type node struct {
	leaf      bool
	class     int
	feature   int
	threshold float64
	left      *node
	right     *node
}

func (n *node) predict(x []float64) int {
	for !n.leaf {
		if x[n.feature] <= n.threshold {
			n = n.left
		} else {
			n = n.right
		}
	}
	return n.class
}

func (n *node) depth() int {
	if n.leaf {
		return 0
	}
	return 1 + max(n.left.depth(), n.right.depth())
}

// treeBuilder grows one CART tree with Gini impurity. y holds class indexes
// in [0, classes).
type treeBuilder struct {
	x        [][]float64
	y        []int
	classes  int
	features int
	minLeaf  int
	maxDepth int
	rnd      *rand.Rand
}

func (b *treeBuilder) counts(idx []int) []int {
	counts := make([]int, b.classes)
	for _, i := range idx {
		counts[b.y[i]]++
	}
	return counts
}

func gini(counts []int, n int) float64 {
	if n == 0 {
		return 0
	}
	impurity := 1.0
	for _, c := range counts {
		p := float64(c) / float64(n)
		impurity -= p * p
	}
	return impurity
}

// majority returns the most frequent class, the lowest index on ties.
func majority(counts []int) int {
	best := 0
	for c := 1; c < len(counts); c++ {
		if counts[c] > counts[best] {
			best = c
		}
	}
	return best
}

type split struct {
	feature   int
	threshold float64
	impurity  float64
}

// bestSplit evaluates every threshold of one feature and returns the split
// with the lowest weighted impurity that leaves minLeaf samples per side.
func (b *treeBuilder) bestSplit(idx []int, feature int, total []int) (split, bool) {
	sorted := make([]int, len(idx))
	copy(sorted, idx)
	sort.SliceStable(sorted, func(i, j int) bool {
		return b.x[sorted[i]][feature] < b.x[sorted[j]][feature]
	})

	left := make([]int, b.classes)
	right := make([]int, b.classes)
	copy(right, total)
	n := len(sorted)

	best := split{feature: feature, impurity: math.Inf(1)}
	found := false
	for i := 0; i < n-1; i++ {
		c := b.y[sorted[i]]
		left[c]++
		right[c]--
		nl, nr := i+1, n-i-1
		if nl < b.minLeaf || nr < b.minLeaf {
			continue
		}
		v, next := b.x[sorted[i]][feature], b.x[sorted[i+1]][feature]
		if v == next {
			continue
		}
		impurity := (float64(nl)*gini(left, nl) + float64(nr)*gini(right, nr)) / float64(n)
		if impurity < best.impurity {
			best.impurity = impurity
			best.threshold = v + (next-v)/2
			found = true
		}
	}
	return best, found
}

func (b *treeBuilder) build(idx []int, depth int) *node {
	total := b.counts(idx)
	class := majority(total)
	parent := gini(total, len(idx))
	if parent == 0 || len(idx) < 2*b.minLeaf || (b.maxDepth > 0 && depth >= b.maxDepth) {
		return &node{leaf: true, class: class}
	}

	// Try a random subset of features first and fall back to the remaining
	// ones only when none of the subset can split the node.
	order := b.rnd.Perm(len(b.x[idx[0]]))
	var best split
	found := false
	for k, feature := range order {
		if k >= b.features && found {
			break
		}
		s, ok := b.bestSplit(idx, feature, total)
		if ok && (!found || s.impurity < best.impurity) {
			best, found = s, true
		}
	}
	if !found || best.impurity >= parent {
		return &node{leaf: true, class: class}
	}

	var left, right []int
	for _, i := range idx {
		if b.x[i][best.feature] <= best.threshold {
			left = append(left, i)
		} else {
			right = append(right, i)
		}
	}
	return &node{
		feature:   best.feature,
		threshold: best.threshold,
		left:      b.build(left, depth+1),
		right:     b.build(right, depth+1),
	}
}
