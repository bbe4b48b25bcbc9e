package analytics

import (
	"math"
	"math/rand"
)

const (
	forestTrees      = 100
	forestMaxSamples = 256
	forestSeed       = 42
	eulerGamma       = 0.5772156649
	// a point scoring above this is an outlier
	anomalyThreshold = 0.5
)

// isolationTree is a node of a one-dimensional isolation tree.
type isolationTree struct {
	split       float64
	left, right *isolationTree
	// size is the number of training samples that reached a leaf
	size int
}

func (n *isolationTree) isLeaf() bool {
	return n.left == nil
}

// isolationForest scores single-feature observations by how quickly random
// axis splits isolate them.
type isolationForest struct {
	trees      []*isolationTree
	sampleSize int
}

func fitIsolationForest(values []float64, trees int, seed int64) *isolationForest {
	rng := rand.New(rand.NewSource(seed))

	sampleSize := len(values)
	if sampleSize > forestMaxSamples {
		sampleSize = forestMaxSamples
	}
	heightLimit := int(math.Ceil(math.Log2(float64(max(sampleSize, 2)))))

	forest := &isolationForest{trees: make([]*isolationTree, 0, trees), sampleSize: sampleSize}
	for i := 0; i < trees; i++ {
		perm := rng.Perm(len(values))[:sampleSize]
		sample := make([]float64, sampleSize)
		for j, idx := range perm {
			sample[j] = values[idx]
		}
		forest.trees = append(forest.trees, growTree(sample, 0, heightLimit, rng))
	}
	return forest
}

func growTree(sample []float64, depth, heightLimit int, rng *rand.Rand) *isolationTree {
	if depth >= heightLimit || len(sample) <= 1 {
		return &isolationTree{size: len(sample)}
	}

	lo, hi := sample[0], sample[0]
	for _, v := range sample[1:] {
		lo = math.Min(lo, v)
		hi = math.Max(hi, v)
	}
	if lo == hi {
		return &isolationTree{size: len(sample)}
	}

	split := lo + rng.Float64()*(hi-lo)
	var left, right []float64
	for _, v := range sample {
		if v < split {
			left = append(left, v)
		} else {
			right = append(right, v)
		}
	}

	return &isolationTree{
		split: split,
		left:  growTree(left, depth+1, heightLimit, rng),
		right: growTree(right, depth+1, heightLimit, rng),
	}
}

func (n *isolationTree) pathLength(v float64) float64 {
	depth := 0.0
	node := n
	for !node.isLeaf() {
		if v < node.split {
			node = node.left
		} else {
			node = node.right
		}
		depth++
	}
	return depth + averagePathLength(node.size)
}

// score returns 2^(-E[h(v)]/c(n)); values near 1 are anomalous.
func (f *isolationForest) score(v float64) float64 {
	if len(f.trees) == 0 {
		return 0
	}
	total := 0.0
	for _, tree := range f.trees {
		total += tree.pathLength(v)
	}
	mean := total / float64(len(f.trees))
	norm := averagePathLength(f.sampleSize)
	if norm == 0 {
		return 0
	}
	return math.Pow(2, -mean/norm)
}

// averagePathLength is c(n), the expected path length of an unsuccessful
// search in a binary search tree of n points.
func averagePathLength(n int) float64 {
	switch {
	case n <= 1:
		return 0
	case n == 2:
		return 1
	default:
		fn := float64(n)
		return 2*(math.Log(fn-1)+eulerGamma) - 2*(fn-1)/fn
	}
}
