// Package tree implements CART decision trees for classification and
// regression. They are the base learners behind every ensemble in the
// ensemble package, so fitting is sample-weight aware and splits can
// optionally be drawn at random (extra-trees mode).
package tree

import (
	"math"
	"math/rand/v2"
	"sort"
	"time"

	"gonum.org/v1/gonum/mat"
)

// Node is one node of a fitted tree. Fields are exported so fitted
// trees survive gob encoding.
type Node struct {
	IsLeaf    bool
	Feature   int
	Threshold float64
	Left      *Node
	Right     *Node

	// Value holds weighted class proportions for classifiers (one
	// entry per class) or a single weighted mean for regressors.
	Value []float64
}

// grower carries the state of one tree-fitting run.
type grower struct {
	X mat.Matrix
	y []float64 // class indices (classifier) or raw targets (regressor)
	w []float64

	nClasses  int // 0 means regression
	nFeatures int
	p         treeParams
	rng       *rand.Rand

	minSplitCount int
	perSplit      int
	totalWeight   float64

	importances []float64
	nLeaves     int
	depth       int
}

type nodeStats struct {
	weight   float64
	impurity float64
	value    []float64
}

func newRNG(seed int64) *rand.Rand {
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	return rand.New(rand.NewPCG(uint64(seed), uint64(seed)^0x9e3779b97f4a7c15))
}

func newGrower(X mat.Matrix, y, w []float64, nClasses int, p treeParams) *grower {
	n, d := X.Dims()

	minSplit := 2
	if p.minSamplesSplit >= 1 {
		minSplit = int(p.minSamplesSplit)
	} else if p.minSamplesSplit > 0 {
		minSplit = int(math.Ceil(p.minSamplesSplit * float64(n)))
	}
	if minSplit < 2 {
		minSplit = 2
	}

	total := 0.0
	for _, wi := range w {
		total += wi
	}

	return &grower{
		X:             X,
		y:             y,
		w:             w,
		nClasses:      nClasses,
		nFeatures:     d,
		p:             p,
		rng:           newRNG(p.randomState),
		minSplitCount: minSplit,
		perSplit:      p.maxFeatures.resolve(d),
		totalWeight:   total,
		importances:   make([]float64, d),
	}
}

// stats computes the weighted value and impurity of a node.
func (g *grower) stats(indices []int) nodeStats {
	if g.nClasses > 0 {
		counts := make([]float64, g.nClasses)
		weight := 0.0
		for _, i := range indices {
			counts[int(g.y[i])] += g.w[i]
			weight += g.w[i]
		}
		value := make([]float64, g.nClasses)
		for c := range counts {
			if weight > 0 {
				value[c] = counts[c] / weight
			}
		}
		return nodeStats{weight: weight, impurity: g.classImpurity(value), value: value}
	}

	weight, mean := 0.0, 0.0
	for _, i := range indices {
		weight += g.w[i]
		mean += g.w[i] * g.y[i]
	}
	if weight > 0 {
		mean /= weight
	}
	variance := 0.0
	for _, i := range indices {
		d := g.y[i] - mean
		variance += g.w[i] * d * d
	}
	if weight > 0 {
		variance /= weight
	}
	return nodeStats{weight: weight, impurity: variance, value: []float64{mean}}
}

func (g *grower) classImpurity(proportions []float64) float64 {
	switch g.p.criterion {
	case "entropy":
		h := 0.0
		for _, p := range proportions {
			if p > 0 {
				h -= p * math.Log2(p)
			}
		}
		return h
	default: // gini
		sum := 0.0
		for _, p := range proportions {
			sum += p * p
		}
		return 1 - sum
	}
}

type split struct {
	feature   int
	threshold float64
	left      []int
	right     []int
	decrease  float64 // weighted impurity decrease, unnormalized
	valid     bool
}

// grow builds the subtree for the given sample indices.
func (g *grower) grow(indices []int, depth int) *Node {
	st := g.stats(indices)
	if depth > g.depth {
		g.depth = depth
	}

	if g.isLeaf(indices, st, depth) {
		g.nLeaves++
		return &Node{IsLeaf: true, Value: st.value}
	}

	best := g.bestSplit(indices, st)
	if !best.valid {
		g.nLeaves++
		return &Node{IsLeaf: true, Value: st.value}
	}

	g.importances[best.feature] += best.decrease

	return &Node{
		Feature:   best.feature,
		Threshold: best.threshold,
		Left:      g.grow(best.left, depth+1),
		Right:     g.grow(best.right, depth+1),
		Value:     st.value,
	}
}

func (g *grower) isLeaf(indices []int, st nodeStats, depth int) bool {
	if g.p.maxDepth > 0 && depth >= g.p.maxDepth {
		return true
	}
	if len(indices) < g.minSplitCount {
		return true
	}
	return st.impurity <= 1e-12
}

// bestSplit scans a random feature subset for the split with the
// largest weighted impurity decrease.
func (g *grower) bestSplit(indices []int, parent nodeStats) split {
	var best split

	perm := g.rng.Perm(g.nFeatures)
	considered := 0
	for _, f := range perm {
		// Keep sampling past constant features so trees still split
		// on sparse abundance tables.
		cand, ok := g.splitOnFeature(indices, parent, f)
		if ok {
			considered++
			if !best.valid || cand.decrease > best.decrease {
				best = cand
			}
		}
		if considered >= g.perSplit {
			break
		}
	}
	return best
}

func (g *grower) splitOnFeature(indices []int, parent nodeStats, f int) (split, bool) {
	if g.p.randomSplitter {
		return g.randomSplit(indices, parent, f)
	}
	return g.exhaustiveSplit(indices, parent, f)
}

// exhaustiveSplit sorts the node's samples on feature f and evaluates
// the midpoint between every pair of distinct consecutive values.
func (g *grower) exhaustiveSplit(indices []int, parent nodeStats, f int) (split, bool) {
	n := len(indices)
	order := make([]int, n)
	copy(order, indices)
	sort.Slice(order, func(a, b int) bool {
		return g.X.At(order[a], f) < g.X.At(order[b], f)
	})

	if g.X.At(order[0], f) == g.X.At(order[n-1], f) {
		return split{}, false // constant feature
	}

	var best split
	for cut := 1; cut < n; cut++ {
		lo := g.X.At(order[cut-1], f)
		hi := g.X.At(order[cut], f)
		if lo == hi {
			continue
		}
		cand := g.evaluate(order[:cut], order[cut:], parent, f, (lo+hi)/2)
		if cand.valid && (!best.valid || cand.decrease > best.decrease) {
			best = cand
		}
	}
	return best, best.valid
}

// randomSplit draws one threshold uniformly between the feature's
// minimum and maximum over the node's samples.
func (g *grower) randomSplit(indices []int, parent nodeStats, f int) (split, bool) {
	lo, hi := math.Inf(1), math.Inf(-1)
	for _, i := range indices {
		v := g.X.At(i, f)
		if v < lo {
			lo = v
		}
		if v > hi {
			hi = v
		}
	}
	if lo == hi {
		return split{}, false
	}

	threshold := lo + g.rng.Float64()*(hi-lo)
	var left, right []int
	for _, i := range indices {
		if g.X.At(i, f) <= threshold {
			left = append(left, i)
		} else {
			right = append(right, i)
		}
	}
	cand := g.evaluate(left, right, parent, f, threshold)
	return cand, cand.valid
}

// evaluate checks leaf constraints and computes the impurity decrease
// of a candidate split.
func (g *grower) evaluate(left, right []int, parent nodeStats, f int, threshold float64) split {
	if len(left) < g.p.minSamplesLeaf || len(right) < g.p.minSamplesLeaf {
		return split{}
	}

	ls := g.stats(left)
	rs := g.stats(right)
	if g.p.minWeightFractionLeaf > 0 {
		minWeight := g.p.minWeightFractionLeaf * g.totalWeight
		if ls.weight < minWeight || rs.weight < minWeight {
			return split{}
		}
	}

	decrease := parent.weight*parent.impurity - ls.weight*ls.impurity - rs.weight*rs.impurity
	if decrease <= 0 {
		return split{}
	}

	// Copies: left/right alias the caller's sort buffer.
	l := make([]int, len(left))
	copy(l, left)
	r := make([]int, len(right))
	copy(r, right)

	return split{
		feature:   f,
		threshold: threshold,
		left:      l,
		right:     r,
		decrease:  decrease,
		valid:     true,
	}
}

// normalizedImportances returns per-feature impurity decreases scaled
// to sum to one.
func (g *grower) normalizedImportances() []float64 {
	out := make([]float64, len(g.importances))
	total := 0.0
	for _, v := range g.importances {
		total += v
	}
	if total > 0 {
		for i, v := range g.importances {
			out[i] = v / total
		}
	}
	return out
}

// traverse walks a fitted tree down to the leaf for row i of X.
func traverse(root *Node, X mat.Matrix, i int) *Node {
	node := root
	for !node.IsLeaf {
		if X.At(i, node.Feature) <= node.Threshold {
			node = node.Left
		} else {
			node = node.Right
		}
	}
	return node
}

// countNodes walks the tree and reports depth and leaf count; used to
// restore accessor state after gob decoding.
func countNodes(root *Node, depth int, leaves *int, maxDepth *int) {
	if depth > *maxDepth {
		*maxDepth = depth
	}
	if root.IsLeaf {
		*leaves++
		return
	}
	countNodes(root.Left, depth+1, leaves, maxDepth)
	countNodes(root.Right, depth+1, leaves, maxDepth)
}

func uniformWeights(n int) []float64 {
	w := make([]float64, n)
	for i := range w {
		w[i] = 1
	}
	return w
}
